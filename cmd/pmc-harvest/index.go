// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/pmc-harvest/internal/oaindex"
)

var indexCmd = &cobra.Command{
	Use:   "index <oa_file_list.csv>",
	Short: "Import the PMC OA file list into the local index",
	Long: `Index imports the PMC Open Access file list CSV (oa_file_list.csv or
oa_comm_use_file_list.csv from https://ftp.ncbi.nlm.nih.gov/pub/pmc/) into a
SQLite database used to locate each article's package on the file server.
Re-importing updates existing entries.`,
	Args: cobra.ExactArgs(1),
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	path := viper.GetString(keyIndex)
	idx, err := oaindex.Open(path)
	if err != nil {
		return err
	}
	defer idx.Close()

	n, err := idx.ImportFile(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	total, err := idx.Count(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "indexed: %d entries from %s (%d total in %s)\n", n, args[0], total, path)
	return nil
}
