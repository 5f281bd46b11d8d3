// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package benchrun defines the typed representation of benchmark
// results as they arrive from CI: a Run is one CI execution at one
// commit, carrying one Point per benchmark.
//
// The types are plain data. IsValid and Validate check the structural
// invariants every other package relies on; DecodeRun reads the JSON
// payload emitted by CI benchmark harnesses.
package benchrun

import (
	"math"
	"time"
)

// A Person is the opaque author or committer metadata of a commit.
// It is carried for display only.
type Person struct {
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	Username string `json:"username,omitempty"`
}

// A Commit identifies the source revision a Run measured.
//
// SHA is the identity of the commit. Timestamp orders commits within a
// series. The remaining fields are carried verbatim and never
// interpreted.
type Commit struct {
	SHA       string    `json:"sha"`
	Timestamp time.Time `json:"timestamp"`
	Author    Person    `json:"author"`
	Committer Person    `json:"committer"`
	Message   string    `json:"message,omitempty"`
	URL       string    `json:"url,omitempty"`
}

// IsValid reports whether c has a SHA and a timestamp.
func (c Commit) IsValid() bool {
	return c.SHA != "" && !c.Timestamp.IsZero()
}

// Equal reports whether c and o describe the same commit, comparing
// timestamps as instants.
func (c Commit) Equal(o Commit) bool {
	return c.SHA == o.SHA &&
		c.Timestamp.Equal(o.Timestamp) &&
		c.Author == o.Author &&
		c.Committer == o.Committer &&
		c.Message == o.Message &&
		c.URL == o.URL
}

// Stats holds the optional distribution summary a harness reports
// alongside a Point's primary value. Absent fields are nil.
type Stats struct {
	StdDev *float64 `json:"stddev,omitempty"`
	Rounds *int64   `json:"rounds,omitempty"`
	Mean   *float64 `json:"mean,omitempty"`
	Min    *float64 `json:"min,omitempty"`
	Max    *float64 `json:"max,omitempty"`
	Median *float64 `json:"median,omitempty"`
}

func (s *Stats) equal(o *Stats) bool {
	if s == nil || o == nil {
		return s == o
	}
	return eqFloat(s.StdDev, o.StdDev) &&
		eqInt(s.Rounds, o.Rounds) &&
		eqFloat(s.Mean, o.Mean) &&
		eqFloat(s.Min, o.Min) &&
		eqFloat(s.Max, o.Max) &&
		eqFloat(s.Median, o.Median)
}

func eqFloat(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func eqInt(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// A Point is a single benchmark measurement.
//
// Name is unique within a Run and conventionally has the form
// "<suite>::<test>". Value is the primary metric in Unit. Range and
// Extra are free-form strings some harnesses attach for display.
type Point struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
	Range string  `json:"range,omitempty"`
	Extra string  `json:"extra,omitempty"`
	Stats *Stats  `json:"stats,omitempty"`
}

// IsValid reports whether p has a name and a unit and a finite,
// non-negative value.
func (p Point) IsValid() bool {
	return p.Name != "" && p.Unit != "" && validValue(p.Value)
}

func validValue(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}

// Variance returns the reported standard deviation of p, if any.
func (p Point) Variance() (float64, bool) {
	if p.Stats == nil || p.Stats.StdDev == nil {
		return 0, false
	}
	return *p.Stats.StdDev, true
}

// SampleSize returns the reported number of rounds behind p, if any.
func (p Point) SampleSize() (int64, bool) {
	if p.Stats == nil || p.Stats.Rounds == nil {
		return 0, false
	}
	return *p.Stats.Rounds, true
}

// Equal reports whether p and o are the same measurement.
func (p Point) Equal(o Point) bool {
	return p.Name == o.Name &&
		p.Value == o.Value &&
		p.Unit == o.Unit &&
		p.Range == o.Range &&
		p.Extra == o.Extra &&
		p.Stats.equal(o.Stats)
}

// A Run is the output of one CI execution: every benchmark measured
// by Tool at Commit. Runs are immutable once ingested.
type Run struct {
	Commit Commit `json:"commit"`
	Tool   string `json:"tool"`

	// Date is when the run executed, in milliseconds since the
	// Unix epoch. It is informational; series are ordered by
	// Commit.Timestamp.
	Date int64 `json:"date,omitempty"`

	Benches []Point `json:"benches"`
}

// IsValid reports whether r has a valid commit and valid points with
// unique names.
func (r *Run) IsValid() bool {
	return r.Validate() == nil
}

// Time returns Date as a time.Time, or the zero time if unset.
func (r *Run) Time() time.Time {
	if r.Date == 0 {
		return time.Time{}
	}
	return time.UnixMilli(r.Date).UTC()
}

// Equal reports whether r and o carry the same commit, tool and
// points in the same order.
func (r *Run) Equal(o *Run) bool {
	if r.Tool != o.Tool || r.Date != o.Date || !r.Commit.Equal(o.Commit) || len(r.Benches) != len(o.Benches) {
		return false
	}
	for i := range r.Benches {
		if !r.Benches[i].Equal(o.Benches[i]) {
			return false
		}
	}
	return true
}
