// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"strings"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <term...>",
	Short: "Search, download, and unpack in one pass",
	Long: `Run searches PMC for the term, then downloads and unpacks the Open Access
package of every identifier found. Identifiers without a package are reported
and skipped; any other failure stops the run.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().Int("max-results", 0, "maximum number of identifiers (esearch retmax, default 20)")
	runCmd.Flags().Bool("save-response", false, "save the raw esearch XML into the output directory")
	addFetchFlags(runCmd)

	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	if err := bindFlags(cmd, searchBindings); err != nil {
		return err
	}
	if err := bindFlags(cmd, fetchBindings); err != nil {
		return err
	}

	h, closeFn, err := newHarvester(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	_, err = h.Run(cmd.Context(), strings.Join(args, " "), cmd.OutOrStdout())
	return err
}
