// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"encoding/json"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	checkRemote remoteFlags
	checkRange  rangeFlags
	checkJSON   bool
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Report regressions in a commit range; exit 1 if any",
	Long: `Check classifies every recorded result in the range against its baseline
and prints the regressions. It exits with status 1 if there are any, so it
can gate a CI pipeline:

	benchtrack check --from $BASE_SHA --to $HEAD_SHA`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func init() {
	checkRemote.register(checkCmd)
	checkRange.register(checkCmd)
	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "print the regressions as JSON")
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	r, err := checkRange.parse()
	if err != nil {
		return err
	}
	q, closeQ, err := checkRemote.querier(ctx)
	if err != nil {
		return err
	}
	defer closeQ()

	regs, err := q.Regressions(ctx, cfg.Group, r)
	if err != nil {
		return err
	}
	if checkJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(regs); err != nil {
			return err
		}
	} else {
		printClassifications(cmd.OutOrStdout(), regs)
	}
	log.WithFields(log.Fields{"group": cfg.Group, "regressions": len(regs)}).Debug("check done")
	if len(regs) > 0 {
		return fmt.Errorf("%d regression(s) in group %s", len(regs), cfg.Group)
	}
	return nil
}
