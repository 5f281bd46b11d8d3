// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/benchtrack/benchrun"
	"golang.org/x/benchtrack/storage"
)

var (
	uploadRemote remoteFlags
	uploadFail   bool
)

var uploadCmd = &cobra.Command{
	Use:   "upload [file...]",
	Short: "Send Run payloads to a server",
	Long: `Upload sends each JSON Run payload to the server named by --server and
prints the classification of every newly recorded benchmark. With no
files, or with "-", it reads one payload from standard input.`,
	RunE: runUpload,
}

func init() {
	uploadRemote.register(uploadCmd)
	uploadCmd.Flags().BoolVar(&uploadFail, "fail-on-regression", false, "exit with status 1 if any new result is a regression")
}

func runUpload(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if uploadRemote.server == "" {
		return fmt.Errorf("--server is required")
	}
	client, err := uploadRemote.client(ctx)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		args = []string{"-"}
	}
	regressions := 0
	for _, name := range args {
		run, err := readRun(cmd.InOrStdin(), name)
		if err != nil {
			return err
		}
		rep, err := client.Upload(ctx, cfg.Group, run)
		if err != nil {
			var e *storage.Error
			if errors.As(err, &e) {
				for _, v := range e.Violations {
					log.WithField("file", name).Error(v)
				}
			}
			return fmt.Errorf("%s: %w", name, err)
		}
		regressions += len(rep.Regressions())
		printClassifications(cmd.OutOrStdout(), rep.Classifications)
	}
	if uploadFail && regressions > 0 {
		return fmt.Errorf("%d regression(s) detected", regressions)
	}
	return nil
}

func readRun(stdin io.Reader, name string) (*benchrun.Run, error) {
	r := stdin
	if name != "-" {
		f, err := os.Open(name)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	run, err := benchrun.DecodeRun(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return run, nil
}
