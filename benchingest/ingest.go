// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package benchingest is the entry point for benchmark results
// produced by CI runs. It normalizes and validates a Run, appends it
// to a series store, and classifies the newly recorded measurements.
package benchingest

import (
	"context"
	"io"
	"strings"

	"golang.org/x/benchtrack/benchdetect"
	"golang.org/x/benchtrack/benchrun"
	"golang.org/x/benchtrack/benchseries"
	"golang.org/x/benchtrack/benchunit"
)

// Normalize returns a copy of run with surrounding whitespace removed
// from the commit SHA, tool and benchmark names, and every unit
// rewritten by benchunit.Normalize.
func Normalize(run *benchrun.Run) *benchrun.Run {
	out := *run
	out.Commit.SHA = strings.TrimSpace(run.Commit.SHA)
	out.Tool = strings.TrimSpace(run.Tool)
	out.Benches = make([]benchrun.Point, len(run.Benches))
	for i, p := range run.Benches {
		p.Name = strings.TrimSpace(p.Name)
		p.Unit = benchunit.Normalize(p.Unit)
		out.Benches[i] = p
	}
	return &out
}

// Validate returns a *benchrun.ValidationError listing every problem
// with run, or nil. run should already be normalized.
func Validate(run *benchrun.Run) error {
	return run.Validate()
}

// Store is the part of a benchseries.Store an Ingester writes to.
type Store interface {
	Append(ctx context.Context, groupKey string, commit benchrun.Commit, tool string, points []benchrun.Point) (*benchseries.AppendResult, error)
	Snapshot(ctx context.Context, groupKey string) (*benchseries.Snapshot, error)
}

// An Ingester records runs in a Store.
type Ingester struct {
	Store Store

	// Detector configures the classification of new measurements.
	// nil selects the defaults.
	Detector *benchdetect.Config
}

// A Report is the outcome of ingesting one run.
type Report struct {
	Group  string                    `json:"group"`
	Commit string                    `json:"commit"`
	Append *benchseries.AppendResult `json:"append"`

	// Classifications holds the verdict on each newly appended
	// measurement, in run order. Skipped duplicates are not
	// classified again.
	Classifications []benchdetect.Classification `json:"classifications"`
}

// Regressions returns the classifications in r that are regressions.
func (r *Report) Regressions() []benchdetect.Classification {
	var out []benchdetect.Classification
	for _, cl := range r.Classifications {
		if cl.Status == benchdetect.Regression {
			out = append(out, cl)
		}
	}
	return out
}

// Ingest normalizes and validates run, appends it to groupKey, and
// classifies every point it appended.
//
// An invalid run is rejected with a *benchrun.ValidationError before
// anything is stored. Store errors are returned unchanged. If the run
// was stored but could not be read back for classification, Ingest
// returns the report without classifications along with the error.
func (in *Ingester) Ingest(ctx context.Context, groupKey string, run *benchrun.Run) (*Report, error) {
	run = Normalize(run)
	if err := Validate(run); err != nil {
		return nil, err
	}
	res, err := in.Store.Append(ctx, groupKey, run.Commit, run.Tool, run.Benches)
	if err != nil {
		return nil, err
	}
	rep := &Report{Group: groupKey, Commit: run.Commit.SHA, Append: res}
	appended := res.Appended()
	if len(appended) == 0 {
		return rep, nil
	}

	snap, err := in.Store.Snapshot(ctx, groupKey)
	if err != nil {
		return rep, err
	}
	for _, name := range appended {
		s := snap.Series[name]
		if s == nil {
			continue
		}
		// A later append may already have landed; classify the
		// entry for this commit wherever it sits.
		if i := s.Index(run.Commit.SHA); i >= 0 {
			rep.Classifications = append(rep.Classifications, benchdetect.ClassifyEntry(s, i, in.Detector))
		}
	}
	return rep, nil
}

// IngestJSON decodes a JSON Run payload from r and ingests it.
func (in *Ingester) IngestJSON(ctx context.Context, groupKey string, r io.Reader) (*Report, error) {
	run, err := benchrun.DecodeRun(r)
	if err != nil {
		return nil, err
	}
	return in.Ingest(ctx, groupKey, run)
}
