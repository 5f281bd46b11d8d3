// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/benchtrack/benchdetect"
	"golang.org/x/benchtrack/benchingest"
	"golang.org/x/benchtrack/benchunit"
)

var (
	ingestJSON bool
	ingestFail bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [file...]",
	Short: "Record Run payloads from files or standard input",
	Long: `Ingest records each JSON Run payload in the group's history and prints
the classification of every newly recorded benchmark. With no files, or
with "-", it reads one payload from standard input.

Re-ingesting a run that is already recorded changes nothing.`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestJSON, "json", false, "print the ingestion reports as JSON")
	ingestCmd.Flags().BoolVar(&ingestFail, "fail-on-regression", false, "exit with status 1 if any new result is a regression")
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	st, closeStore, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()
	in := &benchingest.Ingester{Store: st, Detector: cfg.DetectorConfig(warnf)}

	if len(args) == 0 {
		args = []string{"-"}
	}
	regressions := 0
	for _, name := range args {
		rep, err := ingestFile(cmd, in, name)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		log.WithFields(log.Fields{
			"group":    rep.Group,
			"sha":      rep.Commit,
			"appended": len(rep.Append.Appended()),
		}).Info("ingested run")
		regressions += len(rep.Regressions())
		if ingestJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(rep); err != nil {
				return err
			}
			continue
		}
		printClassifications(cmd.OutOrStdout(), rep.Classifications)
	}
	if ingestFail && regressions > 0 {
		return fmt.Errorf("%d regression(s) detected", regressions)
	}
	return nil
}

func ingestFile(cmd *cobra.Command, in *benchingest.Ingester, name string) (*benchingest.Report, error) {
	var r io.Reader = cmd.InOrStdin()
	if name != "-" {
		f, err := os.Open(name)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	return in.IngestJSON(cmd.Context(), cfg.Group, r)
}

// printClassifications writes one line per classification.
func printClassifications(w io.Writer, cls []benchdetect.Classification) {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	for _, cl := range cls {
		vals, unit := benchunit.FormatValues([]float64{cl.BaselineValue, cl.NewValue}, cl.Unit)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s %s\t%+.1f%%", cl.Commit, cl.Name, cl.Status, vals[0], vals[1], unit, 100*cl.Change)
		if cl.HighVariance {
			fmt.Fprintf(tw, "\tnoisy (cv %.2f)", cl.CV)
		}
		if cl.Reason != "" && cl.Status == benchdetect.Neutral {
			fmt.Fprintf(tw, "\t%s", cl.Reason)
		}
		fmt.Fprintln(tw)
	}
	tw.Flush()
}
