package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pclean-go/pclean/internal/obslog"
	"github.com/pclean-go/pclean/pkg/config"
)

var (
	// Version is set during build.
	Version = "0.1.0"

	cfgFile  string
	logLevel string
	quiet    bool
)

var rootCmd = &cobra.Command{
	Use:   "pclean",
	Short: "Hierarchical nonparametric relational learner",
	Long: `pclean jointly infers entity clustering, relation clustering, latent
attribute values, and reference linkages over a user-defined schema via
Gibbs sampling.

Examples:
  pclean run --schema schema.yaml --observations obs.csv
  pclean load --dump model.dump
  pclean serve --dump model.dump`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := logLevel
		if quiet {
			level = "error"
		}
		obslog.Init(obslog.Config{Level: level, Format: "console"})
	},
}

// Execute adds all child commands to the root command and runs it.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "suppress output")
}

// loadConfig loads the process config, honoring an explicit --config path
// if one was given.
func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		return config.LoadFrom(cfgFile)
	}
	return config.Load()
}

// rootLogger returns the top-level command logger. obslog.Init has already
// run by the time any RunE body calls this, via PersistentPreRun.
func rootLogger() *obslog.Logger {
	return obslog.GetLogger("pclean")
}
