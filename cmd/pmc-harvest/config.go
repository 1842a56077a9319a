// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/pmc-harvest/internal/fetch"
	"github.com/pdiddy/pmc-harvest/internal/oaindex"
	"github.com/pdiddy/pmc-harvest/internal/secrets"
	"github.com/pdiddy/pmc-harvest/internal/unpack"
	"github.com/pdiddy/pmc-harvest/pkg/types"
)

// Config keys. Nested keys map to sections of pmc-harvest.yaml and to
// PMC_HARVEST_* environment variables (dots become underscores).
const (
	keyLogLevel     = "log_level"
	keyTimeout      = "http.timeout"
	keyUserAgent    = "http.user_agent"
	keyOutDir       = "out_dir"
	keyMaxResults   = "search.max_results"
	keyAPIKey       = "search.api_key"
	keyEmail        = "search.email"
	keyTool         = "search.tool"
	keySaveResponse = "search.save_response"
	keySearchURL    = "search.base_url"
	keyBaseURL      = "fetch.base_url"
	keyIndex        = "fetch.index"
	keyOAService    = "fetch.oa_service"
	keyOAServiceURL = "fetch.oa_service_url"
	keyPreferHTTPS  = "fetch.prefer_https"
	keyCollect      = "extract.collect"
)

const (
	defaultTimeout   = 60 * time.Second
	defaultUserAgent = "pmc-harvest/0.1"
	defaultOutDir    = "pmc_dataset"
	defaultIndex     = "oa_file_list.db"
	defaultTool      = "pmc-harvest"
)

var envKeyReplacer = strings.NewReplacer(".", "_")

// persistentBindings maps root persistent flags to config keys.
var persistentBindings = map[string]string{
	"log-level": keyLogLevel,
	"timeout":   keyTimeout,
	"out":       keyOutDir,
	"index":     keyIndex,
}

func setDefaults() {
	viper.SetDefault(keyLogLevel, "warn")
	viper.SetDefault(keyTimeout, defaultTimeout)
	viper.SetDefault(keyUserAgent, defaultUserAgent)
	viper.SetDefault(keyOutDir, defaultOutDir)
	viper.SetDefault(keyMaxResults, 20)
	viper.SetDefault(keyTool, defaultTool)
	viper.SetDefault(keyBaseURL, fetch.DefaultBaseURL)
	viper.SetDefault(keyIndex, defaultIndex)
	viper.SetDefault(keyOAService, true)
	viper.SetDefault(keyPreferHTTPS, true)
}

// bindFlags binds the named flags of cmd to config keys. Binding happens when
// a command runs so that flags shared by several commands bind to the one
// actually invoked.
func bindFlags(cmd *cobra.Command, bindings map[string]string) error {
	for flag, key := range bindings {
		f := cmd.Flags().Lookup(flag)
		if f == nil {
			continue
		}
		if err := viper.BindPFlag(key, f); err != nil {
			return fmt.Errorf("binding flag --%s: %w", flag, err)
		}
	}
	return nil
}

func httpConfig() types.HTTPConfig {
	timeout := viper.GetDuration(keyTimeout)
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return types.HTTPConfig{
		Timeout:   timeout,
		UserAgent: viper.GetString(keyUserAgent),
	}
}

func harvestConfig() types.HarvestConfig {
	hc := httpConfig()
	outDir := viper.GetString(keyOutDir)

	search := types.SearchConfig{
		HTTPConfig: hc,
		MaxResults: viper.GetInt(keyMaxResults),
		APIKey:     loadedSecrets.Get(secrets.NCBIAPIKey, viper.GetString(keyAPIKey)),
		Email:      loadedSecrets.Get(secrets.NCBIEmail, viper.GetString(keyEmail)),
		Tool:       viper.GetString(keyTool),
		BaseURL:    viper.GetString(keySearchURL),
	}
	if viper.GetBool(keySaveResponse) {
		search.SaveDir = outDir
	}

	return types.HarvestConfig{
		Search: search,
		Fetch: types.FetchConfig{
			HTTPConfig:   hc,
			BaseURL:      viper.GetString(keyBaseURL),
			IndexPath:    viper.GetString(keyIndex),
			UseOAService: viper.GetBool(keyOAService),
			OAServiceURL: viper.GetString(keyOAServiceURL),
			PreferHTTPS:  viper.GetBool(keyPreferHTTPS),
		},
		Extract: types.ExtractConfig{
			Collect: viper.GetStringSlice(keyCollect),
		},
		OutDir: outDir,
	}
}

func newHTTPClient(hc types.HTTPConfig) *http.Client {
	return &http.Client{Timeout: hc.Timeout}
}

// openIndex opens the OA file list index at path when the file exists. A
// missing default index is not an error; a missing index the user named
// explicitly is.
func openIndex(cmd *cobra.Command, path string) (*oaindex.Index, error) {
	if path == "" {
		return nil, nil
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) && !indexExplicit(cmd) {
			return nil, nil
		}
		return nil, fmt.Errorf("OA file list index: %w", err)
	}
	return oaindex.Open(path)
}

func indexExplicit(cmd *cobra.Command) bool {
	if cmd.Flags().Changed("index") || viper.InConfig(keyIndex) {
		return true
	}
	_, ok := os.LookupEnv("PMC_HARVEST_" + strings.ToUpper(envKeyReplacer.Replace(keyIndex)))
	return ok
}

// newFetcher builds a Fetcher over the configured resolver chain. The
// returned close function releases the index, if one was opened.
func newFetcher(cmd *cobra.Command, client *http.Client, cfg types.FetchConfig) (*fetch.Fetcher, func(), error) {
	idx, err := openIndex(cmd, cfg.IndexPath)
	if err != nil {
		return nil, nil, err
	}

	var lookup fetch.Lookuper
	closeFn := func() {}
	if idx != nil {
		lookup = idx
		closeFn = func() { idx.Close() }
	}

	resolver := fetch.NewResolver(client, cfg, lookup)
	if c, ok := resolver.(fetch.Chain); ok && len(c) == 0 {
		closeFn()
		return nil, nil, fmt.Errorf("no archive resolver available: build an index with \"pmc-harvest index\" or enable the OA service")
	}

	return &fetch.Fetcher{
		Client:   client,
		Resolver: resolver,
		Config:   cfg,
		Log:      log,
	}, closeFn, nil
}

func validateCollect(patterns []string) error {
	return unpack.ValidatePatterns(patterns)
}
