// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/benchtrack/benchunit"
)

var (
	seriesRemote remoteFlags
	seriesRange  rangeFlags
	seriesJSON   bool
)

var seriesCmd = &cobra.Command{
	Use:   "series NAME",
	Short: "Print the history of one benchmark",
	Long: `Series prints the recorded results of benchmark NAME in the group, oldest
first. The range flags are inclusive; --from and --to name commits whose
timestamps bound the range.`,
	Args: cobra.ExactArgs(1),
	RunE: runSeries,
}

func init() {
	seriesRemote.register(seriesCmd)
	seriesRange.register(seriesCmd)
	seriesCmd.Flags().BoolVar(&seriesJSON, "json", false, "print the series as JSON")
}

func runSeries(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	r, err := seriesRange.parse()
	if err != nil {
		return err
	}
	q, closeQ, err := seriesRemote.querier(ctx)
	if err != nil {
		return err
	}
	defer closeQ()

	points, err := q.Series(ctx, cfg.Group, args[0], r)
	if err != nil {
		return err
	}
	if seriesJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(points)
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 8, 2, ' ', 0)
	// A series has one unit, so its values share one scale.
	vals := make([]float64, len(points))
	for i, p := range points {
		vals[i] = p.Value
	}
	var unit string
	if len(points) > 0 {
		unit = points[0].Unit
	}
	formatted, unit := benchunit.FormatValues(vals, unit)
	for i, p := range points {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.CommitSHA, p.Timestamp.Format(time.RFC3339), formatted[i], unit)
	}
	return tw.Flush()
}
