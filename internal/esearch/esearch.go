// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package esearch queries the NCBI E-utilities esearch endpoint for PMC
// articles matching a search term and parses the returned identifiers.
package esearch

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/net/html/charset"

	"github.com/pdiddy/pmc-harvest/internal/httputil"
	"github.com/pdiddy/pmc-harvest/internal/logger"
	"github.com/pdiddy/pmc-harvest/pkg/types"
)

// esearchBase is the E-utilities search endpoint. Declared as a var so tests
// can substitute an httptest server.
var esearchBase = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/esearch.fcgi"

const (
	database          = "pmc"
	defaultMaxResults = 20
)

// ErrEmptyTerm is returned when the search term is blank.
var ErrEmptyTerm = errors.New("search term is empty")

// Result holds the identifiers from one esearch call.
type Result struct {
	// IDs are the article identifiers in response order.
	IDs []types.PMCID

	// Count is the total number of hits reported by esearch, which may
	// exceed len(IDs) when the result was capped by retmax.
	Count int

	// NotFound lists query phrases esearch could not match.
	NotFound []string

	// SavedPath is the raw response copy, when SaveDir was set.
	SavedPath string
}

// Client runs esearch queries.
type Client struct {
	HTTP *http.Client
	Log  *zap.Logger
}

// SearchURL builds the esearch request URL for term.
func SearchURL(term string, cfg types.SearchConfig) string {
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	q := url.Values{}
	q.Set("db", database)
	q.Set("term", term)
	q.Set("retmax", strconv.Itoa(maxResults))
	if cfg.APIKey != "" {
		q.Set("api_key", cfg.APIKey)
	}
	if cfg.Email != "" {
		q.Set("email", cfg.Email)
	}
	if cfg.Tool != "" {
		q.Set("tool", cfg.Tool)
	}
	base := esearchBase
	if cfg.BaseURL != "" {
		base = cfg.BaseURL
	}
	return base + "?" + q.Encode()
}

// Search queries esearch for term and returns the matching identifiers.
func (c *Client) Search(ctx context.Context, term string, cfg types.SearchConfig) (Result, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return Result{}, ErrEmptyTerm
	}
	log := logger.OrNop(c.Log)

	apiURL := SearchURL(term, cfg)
	log.Debug("esearch request", zap.String("term", term), zap.Int("retmax", cfg.MaxResults))

	resp, err := httputil.Get(ctx, c.HTTP, apiURL, cfg.UserAgent, "application/xml")
	if err != nil {
		return Result{}, fmt.Errorf("esearch request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("reading esearch response: %w", err)
	}

	var res Result
	if cfg.SaveDir != "" {
		path, err := saveResponse(cfg.SaveDir, term, data)
		if err != nil {
			return Result{}, err
		}
		res.SavedPath = path
		log.Debug("saved esearch response", zap.String("path", path))
	}

	parsed, err := parse(bytes.NewReader(data))
	if err != nil {
		return Result{}, err
	}
	res.IDs = parsed.IDs
	res.Count = parsed.Count
	res.NotFound = parsed.NotFound
	for _, phrase := range res.NotFound {
		log.Warn("esearch phrase not found", zap.String("phrase", phrase))
	}
	return res, nil
}

// esearch XML structures.
type eSearchResult struct {
	XMLName  xml.Name `xml:"eSearchResult"`
	Count    string   `xml:"Count"`
	IDs      []string `xml:"IdList>Id"`
	Error    string   `xml:"ERROR"`
	NotFound []string `xml:"ErrorList>PhraseNotFound"`
}

// ParseIDs decodes an esearch XML response and returns its identifiers in
// response order. Blank identifiers are dropped.
func ParseIDs(r io.Reader) ([]types.PMCID, error) {
	res, err := parse(r)
	if err != nil {
		return nil, err
	}
	return res.IDs, nil
}

func parse(r io.Reader) (Result, error) {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charset.NewReaderLabel

	var doc eSearchResult
	if err := dec.Decode(&doc); err != nil {
		return Result{}, fmt.Errorf("parsing esearch response: %w", err)
	}
	if msg := strings.TrimSpace(doc.Error); msg != "" {
		return Result{}, fmt.Errorf("esearch error: %s", msg)
	}

	var res Result
	for _, raw := range doc.IDs {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		id, err := types.ParsePMCID(raw)
		if err != nil {
			return Result{}, fmt.Errorf("parsing esearch response: %w", err)
		}
		res.IDs = append(res.IDs, id)
	}
	res.NotFound = doc.NotFound
	if n, err := strconv.Atoi(strings.TrimSpace(doc.Count)); err == nil {
		res.Count = n
	}
	return res, nil
}

// ResponseFileName returns the file name used to save the raw response for term.
func ResponseFileName(term string) string {
	slug := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' {
			return r
		}
		return '_'
	}, term)
	return fmt.Sprintf("esearch_%s_%s_id.xml", database, slug)
}

func saveResponse(dir, term string, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating directory %s: %w", dir, err)
	}
	path := filepath.Join(dir, ResponseFileName(term))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("saving esearch response: %w", err)
	}
	return path, nil
}
