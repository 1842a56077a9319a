// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/pmc-harvest/internal/esearch"
)

var searchCmd = &cobra.Command{
	Use:   "search <term...>",
	Short: "List PMC identifiers matching a search term",
	Long: `Search queries NCBI E-utilities (esearch, db=pmc) and prints the matching
PMC accession IDs, one per line. Nothing is downloaded.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

var searchBindings = map[string]string{
	"max-results":   keyMaxResults,
	"save-response": keySaveResponse,
}

func init() {
	searchCmd.Flags().Int("max-results", 0, "maximum number of identifiers (esearch retmax, default 20)")
	searchCmd.Flags().Bool("save-response", false, "save the raw esearch XML into the output directory")
	searchCmd.Flags().Bool("json", false, "output identifiers as JSON")

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	if err := bindFlags(cmd, searchBindings); err != nil {
		return err
	}
	cfg := harvestConfig()
	term := strings.Join(args, " ")

	c := &esearch.Client{HTTP: newHTTPClient(cfg.Search.HTTPConfig), Log: log}
	res, err := c.Search(cmd.Context(), term, cfg.Search)
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		accessions := make([]string, len(res.IDs))
		for i, id := range res.IDs {
			accessions[i] = id.Accession()
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Term  string   `json:"term"`
			Count int      `json:"count"`
			IDs   []string `json:"ids"`
		}{term, res.Count, accessions})
	}

	for _, id := range res.IDs {
		fmt.Fprintln(cmd.OutOrStdout(), id.Accession())
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%d of %d total hits\n", len(res.IDs), res.Count)
	if res.SavedPath != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "saved: %s\n", res.SavedPath)
	}
	return nil
}
