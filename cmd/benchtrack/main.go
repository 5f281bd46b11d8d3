// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Benchtrack records benchmark results per commit and detects
// regressions against a rolling baseline.
//
// Usage:
//
//	benchtrack [--config file] [--group key] command [args]
//
// The commands are:
//
//	ingest    record Run payloads from files or standard input
//	series    print the history of one benchmark
//	check     report regressions in a commit range; exit 1 if any
//	serve     run the HTTP server
//	upload    send Run payloads to a server
//
// Configuration is read from a YAML file (see internal/config);
// flags override it.
package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/benchtrack/internal/config"
)

var (
	configFile string
	groupFlag  string
	logLevel   string
	logJSON    bool

	// cfg is loaded before any command runs.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "benchtrack",
	Short: "Track benchmark results and detect regressions",
	Long: `Benchtrack keeps an append-only history of benchmark results per commit
and classifies every new result against a rolling baseline of the results
before it.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configFile, "config", "c", os.Getenv("BENCHTRACK_CONFIG"), "path to benchtrack.yaml configuration `file`")
	pf.StringVarP(&groupFlag, "group", "g", "", "group `key` (default from configuration)")
	pf.StringVar(&logLevel, "log-level", "info", "log `level` (debug, info, warn, error)")
	pf.BoolVar(&logJSON, "log-json", false, "log in JSON format")

	rootCmd.AddCommand(ingestCmd, seriesCmd, checkCmd, serveCmd, uploadCmd)
}

func setup(cmd *cobra.Command, args []string) error {
	lvl, err := log.ParseLevel(logLevel)
	if err != nil {
		return err
	}
	log.SetLevel(lvl)
	log.SetOutput(os.Stderr)
	if logJSON {
		log.SetFormatter(&log.JSONFormatter{})
	}

	cfg, err = config.Load(configFile)
	if err != nil {
		return err
	}
	if groupFlag != "" {
		cfg.Group = groupFlag
	}
	return nil
}

// warnf routes library warnings to the logger.
func warnf(format string, args ...interface{}) {
	log.Warnf(format, args...)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "benchtrack: %v\n", err)
		os.Exit(1)
	}
}
