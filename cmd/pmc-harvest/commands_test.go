// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"archive/tar"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/pmc-harvest/internal/oaindex"
)

const oaFileListCSV = `File,Article Citation,Accession ID,Last Updated (YYYY-MM-DD HH:MM:SS),PMID,License
oa_package/aa/bb/PMC100.tar.gz,Breast Cancer Res. 2001; 3(1):55-60,PMC100,2019-11-05 11:56:12,11250746,NO-CC CODE
oa_package/cc/dd/PMC200.tar.gz,Breast Cancer Res. 2001; 3(1):61-65,PMC200,2019-11-05 11:56:12,11250747,CC BY
`

// resetFlags restores every flag of fs to its default and clears Changed,
// since rootCmd and its flags are shared between executions.
func resetFlags(fs *pflag.FlagSet) {
	fs.VisitAll(func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			sv.Replace(nil)
		} else {
			f.Value.Set(f.DefValue)
		}
		f.Changed = false
	})
}

// execute runs the CLI with args and returns what it wrote to stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	resetFlags(rootCmd.PersistentFlags())
	for _, c := range rootCmd.Commands() {
		resetFlags(c.Flags())
	}

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

// packageBytes builds a PMC-style OA package for accession.
func packageBytes(t *testing.T, accession string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(zw)
	for name, body := range map[string]string{
		accession + "/article.nxml": "<article/>",
		accession + "/article.pdf":  "%PDF-1.4 " + accession,
	} {
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: name, Typeflag: tar.TypeReg, Mode: 0o644, Size: int64(len(body))}))
		_, err := tw.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// newNCBIServer serves esearch, the OA web service, and OA packages under
// /pub/pmc/. esearch returns ids, and the OA service knows only PMC100.
func newNCBIServer(t *testing.T, ids ...string) *httptest.Server {
	t.Helper()
	var ts *httptest.Server
	ts = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/esearch.fcgi":
			fmt.Fprintf(w, "<eSearchResult><Count>%d</Count><IdList>", len(ids))
			for _, id := range ids {
				fmt.Fprintf(w, "<Id>%s</Id>", id)
			}
			fmt.Fprint(w, "</IdList></eSearchResult>")
		case r.URL.Path == "/oa.fcgi":
			id := r.URL.Query().Get("id")
			if id != "PMC100" {
				fmt.Fprintf(w, `<OA><error code="idIsNotOpenAccess">identifier '%s' is not Open Access</error></OA>`, id)
				return
			}
			fmt.Fprintf(w, `<OA><records><record id="PMC100"><link format="tgz" href="%s/pub/pmc/oa_package/aa/bb/PMC100.tar.gz"/></record></records></OA>`, ts.URL)
		case strings.HasPrefix(r.URL.Path, "/pub/pmc/oa_package/"):
			accession := strings.TrimSuffix(filepath.Base(r.URL.Path), ".tar.gz")
			w.Write(packageBytes(t, accession))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(ts.Close)
	return ts
}

func writeFileList(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "oa_file_list.csv")
	require.NoError(t, os.WriteFile(path, []byte(oaFileListCSV), 0o644))
	return path
}

func TestSearchCommand(t *testing.T) {
	ts := newNCBIServer(t, "100", "200")
	t.Setenv("PMC_HARVEST_SEARCH_BASE_URL", ts.URL+"/esearch.fcgi")

	out, err := execute(t, "search", "--out", t.TempDir(), "gene", "therapy")
	require.NoError(t, err)
	assert.Equal(t, "PMC100\nPMC200\n", out)

	out, err = execute(t, "search", "--json", "gene")
	require.NoError(t, err)
	var got struct {
		Term  string   `json:"term"`
		Count int      `json:"count"`
		IDs   []string `json:"ids"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "gene", got.Term)
	assert.Equal(t, 2, got.Count)
	assert.Equal(t, []string{"PMC100", "PMC200"}, got.IDs)
}

func TestSearchCommandSavesResponse(t *testing.T) {
	ts := newNCBIServer(t, "100")
	t.Setenv("PMC_HARVEST_SEARCH_BASE_URL", ts.URL+"/esearch.fcgi")
	dir := t.TempDir()

	_, err := execute(t, "search", "--out", dir, "--save-response", "gene")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "esearch_pmc_gene_id.xml"))
}

func TestIndexCommand(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "oa.db")

	out, err := execute(t, "index", "--index", db, writeFileList(t, dir))
	require.NoError(t, err)
	assert.Contains(t, out, "indexed: 2 entries")

	idx, err := oaindex.Open(db)
	require.NoError(t, err)
	defer idx.Close()
	e, err := idx.Lookup(context.Background(), "200")
	require.NoError(t, err)
	assert.Equal(t, "oa_package/cc/dd/PMC200.tar.gz", e.File)
}

func TestFetchCommand(t *testing.T) {
	ts := newNCBIServer(t)
	dir := t.TempDir()
	db := filepath.Join(dir, "oa.db")
	outDir := filepath.Join(dir, "dataset")

	_, err := execute(t, "index", "--index", db, writeFileList(t, dir))
	require.NoError(t, err)

	out, err := execute(t, "fetch",
		"--index", db,
		"--out", outDir,
		"--base-url", ts.URL+"/pub/pmc/",
		"--oa-service=false",
		"PMC100", "300")
	require.NoError(t, err)

	assert.Contains(t, out, "downloading: PMC100")
	assert.Contains(t, out, "no package: PMC300")
	assert.Contains(t, out, "1 harvested, 0 skipped, 1 without package (total: 2)")
	assert.FileExists(t, filepath.Join(outDir, "PMC100", "article.pdf"))
	assert.FileExists(t, filepath.Join(outDir, "metadata", "PMC100.yaml"))
}

func TestFetchCommandErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := execute(t, "fetch", "--out", dir, "12/34")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid PMCID")

	_, err = execute(t, "fetch", "--out", dir, "--index", filepath.Join(dir, "missing.db"), "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OA file list index")

	_, err = execute(t, "fetch", "--out", dir, "--collect", "[bad", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid collect pattern")
}

func TestRunCommand(t *testing.T) {
	ts := newNCBIServer(t, "100", "300")
	t.Setenv("PMC_HARVEST_SEARCH_BASE_URL", ts.URL+"/esearch.fcgi")
	t.Setenv("PMC_HARVEST_FETCH_OA_SERVICE_URL", ts.URL+"/oa.fcgi")
	dir := t.TempDir()
	outDir := filepath.Join(dir, "dataset")

	out, err := execute(t, "run",
		"--out", outDir,
		"--index=",
		"--collect", "**/*.pdf",
		"gene")
	require.NoError(t, err)

	assert.Contains(t, out, `found: 2 identifier(s) for "gene"`)
	assert.Contains(t, out, "collected: article.pdf")
	assert.Contains(t, out, "no package: PMC300")
	assert.Contains(t, out, "1 harvested, 0 skipped, 1 without package (total: 2)")
	assert.FileExists(t, filepath.Join(outDir, "article.pdf"))
	assert.NoDirExists(t, filepath.Join(outDir, "PMC100"))

	tarballs, err := filepath.Glob(filepath.Join(outDir, "*.tar.gz"))
	require.NoError(t, err)
	assert.Empty(t, tarballs)
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "pmc-harvest dev\n", out)
}
