// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the pmc-harvest CLI: search PMC with
// E-utilities, download Open Access packages, and unpack them to disk.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/pmc-harvest/internal/logger"
	"github.com/pdiddy/pmc-harvest/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	// loadedSecrets holds API keys loaded from .secrets/ at startup.
	loadedSecrets secrets.Secrets

	// log is the diagnostic logger, built once flags and config are read.
	log = zap.NewNop()
)

// rootCmd is the base command for the pmc-harvest CLI.
var rootCmd = &cobra.Command{
	Use:   "pmc-harvest",
	Short: "Download and unpack PubMed Central Open Access packages",
	Long: `pmc-harvest queries NCBI E-utilities for PMC articles matching a search
term, downloads each article's Open Access package (PMC<id>.tar.gz) from the
NCBI file server, and unpacks it into an output directory.

Archive locations come from a local index of the OA file list (see "index")
and, when enabled, the PMC OA web service.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := bindFlags(cmd, persistentBindings); err != nil {
			return err
		}
		l, err := logger.New(viper.GetString(keyLogLevel))
		if err != nil {
			return err
		}
		log = l

		s, err := secrets.Load(".secrets/", log)
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			log.Info("loaded secrets", zap.Strings("keys", keys))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		log.Sync()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./pmc-harvest.yaml or ~/.config/pmc-harvest/pmc-harvest.yaml)")
	pf.String("log-level", "", "diagnostic log level: debug, info, warn, error (default warn)")
	pf.Duration("timeout", 0, "HTTP request timeout (default 60s)")
	pf.String("out", "", "output directory for unpacked packages (default pmc_dataset)")
	pf.String("index", "", "OA file list index database (default oa_file_list.db)")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("pmc-harvest")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "pmc-harvest"))
		}
	}

	setDefaults()

	viper.SetEnvPrefix("PMC_HARVEST")
	viper.SetEnvKeyReplacer(envKeyReplacer)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
