// Package cmd implements the suapemap command line
package cmd

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "suapemap",
	Short: "Extract the Suape company map as GeoJSON",
	Long: `
suapemap downloads the list of companies published on the Suape business map,
reads name, activity, polo and coordinates of each one and writes them as a
GeoJSON FeatureCollection.

The page is acquired by the first strategy that works: headless Chrome, a
plain HTTP request, or a copy saved locally (HTML_FALLBACK).
`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		setupLogging(verbose)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return extractCmd.RunE(cmd, args)
	},
}

var Version = "dev"

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("SUAPEMAP_CONFIG"), "YAML configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")
	addExtractFlags(rootCmd)
}

func setupLogging(verbose bool) {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// Execute runs the root command
func Execute(version string) {
	Version = version

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
