// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package benchquery is the read-only view of stored benchmark
// series and their classifications, for dashboards, CI gates and
// alerting.
package benchquery

import (
	"context"
	"errors"
	"sort"
	"time"

	"golang.org/x/benchtrack/benchdetect"
	"golang.org/x/benchtrack/benchseries"
)

// A SeriesPoint is one measurement of a series as seen by consumers.
type SeriesPoint struct {
	CommitSHA string    `json:"commit_sha"`
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
	Unit      string    `json:"unit"`
}

// A Service answers queries over a benchseries.Reader. It cannot
// modify the store.
type Service struct {
	Reader benchseries.Reader

	// Detector configures classification. nil selects the
	// defaults.
	Detector *benchdetect.Config
}

// NewService returns a Service reading r.
func NewService(r benchseries.Reader, cfg *benchdetect.Config) *Service {
	return &Service{Reader: r, Detector: cfg}
}

// GetSeries returns the measurements of name in groupKey selected by
// r, oldest first.
func (q *Service) GetSeries(ctx context.Context, groupKey, name string, r benchseries.Range) ([]SeriesPoint, error) {
	s, err := q.Reader.Read(ctx, groupKey, name, r)
	if err != nil {
		return nil, err
	}
	pts := make([]SeriesPoint, len(s.Entries))
	for i, e := range s.Entries {
		pts[i] = SeriesPoint{
			CommitSHA: e.Commit.SHA,
			Timestamp: e.Commit.Timestamp,
			Value:     e.Value,
			Unit:      s.Unit,
		}
	}
	return pts, nil
}

// GetLatestClassification classifies the most recent measurement of
// name in groupKey.
func (q *Service) GetLatestClassification(ctx context.Context, groupKey, name string) (*benchdetect.Classification, error) {
	s, err := q.Reader.Read(ctx, groupKey, name, benchseries.Range{})
	if err != nil {
		return nil, err
	}
	cl, ok := benchdetect.Latest(s, q.Detector)
	if !ok {
		return nil, &benchseries.NotFoundError{GroupKey: groupKey, Name: name}
	}
	return &cl, nil
}

// GetAllRegressionsSince classifies every measurement in groupKey
// whose commit lies in r against the measurements before it, and
// returns the regressions ordered by commit timestamp, then name.
//
// The baseline of a measurement near the start of r reaches back
// before r. A group with no history has no regressions, but a commit
// named by r must exist.
func (q *Service) GetAllRegressionsSince(ctx context.Context, groupKey string, r benchseries.Range) ([]benchdetect.Classification, error) {
	snap, err := q.Reader.Snapshot(ctx, groupKey)
	var nf *benchseries.NotFoundError
	if errors.As(err, &nf) {
		snap = benchseries.NewSnapshot(groupKey)
		err = nil
	}
	if err != nil {
		return nil, err
	}
	lo, hi, err := snap.Bounds(r)
	if err != nil {
		return nil, err
	}
	var out []benchdetect.Classification
	for _, name := range snap.Names() {
		for _, cl := range benchdetect.ClassifySeries(snap.Series[name], q.Detector) {
			if cl.Status != benchdetect.Regression {
				continue
			}
			if (!lo.IsZero() && cl.Timestamp.Before(lo)) || (!hi.IsZero() && cl.Timestamp.After(hi)) {
				continue
			}
			out = append(out, cl)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// Summary returns the latest classification of every series in
// groupKey, ordered by name.
func (q *Service) Summary(ctx context.Context, groupKey string) ([]benchdetect.Classification, error) {
	snap, err := q.Reader.Snapshot(ctx, groupKey)
	if err != nil {
		return nil, err
	}
	var out []benchdetect.Classification
	for _, name := range snap.Names() {
		if cl, ok := benchdetect.Latest(snap.Series[name], q.Detector); ok {
			out = append(out, cl)
		}
	}
	return out, nil
}
