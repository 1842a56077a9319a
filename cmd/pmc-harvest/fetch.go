// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"github.com/spf13/cobra"

	"github.com/pdiddy/pmc-harvest/internal/esearch"
	"github.com/pdiddy/pmc-harvest/internal/harvest"
	"github.com/pdiddy/pmc-harvest/pkg/types"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <pmcid...>",
	Short: "Download and unpack packages for the given PMC identifiers",
	Long: `Fetch downloads the Open Access package for each identifier (bare
"1234567" or prefixed "PMC1234567") and unpacks it into the output directory.
Articles already harvested there are skipped.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runFetch,
}

var fetchBindings = map[string]string{
	"collect":    keyCollect,
	"oa-service": keyOAService,
	"base-url":   keyBaseURL,
}

func addFetchFlags(cmd *cobra.Command) {
	cmd.Flags().StringSlice("collect", nil, `move files matching these patterns (e.g. "**/*.pdf") into the output directory and drop the rest`)
	cmd.Flags().Bool("oa-service", true, "fall back to the PMC OA web service for identifiers missing from the index")
	cmd.Flags().String("base-url", "", "file server root for OA file list paths")
}

func init() {
	addFetchFlags(fetchCmd)
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	if err := bindFlags(cmd, fetchBindings); err != nil {
		return err
	}
	ids, err := types.ParsePMCIDs(args)
	if err != nil {
		return err
	}

	h, closeFn, err := newHarvester(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	_, err = h.Harvest(cmd.Context(), ids, cmd.OutOrStdout())
	return err
}

// newHarvester assembles a Harvester from the bound configuration.
func newHarvester(cmd *cobra.Command) (*harvest.Harvester, func(), error) {
	cfg := harvestConfig()
	if err := validateCollect(cfg.Extract.Collect); err != nil {
		return nil, nil, err
	}

	client := newHTTPClient(cfg.Fetch.HTTPConfig)
	f, closeFn, err := newFetcher(cmd, client, cfg.Fetch)
	if err != nil {
		return nil, nil, err
	}

	searcher := &esearch.Client{HTTP: newHTTPClient(cfg.Search.HTTPConfig), Log: log}
	return harvest.New(searcher, f, cfg, log), closeFn, nil
}
