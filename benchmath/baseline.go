// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package benchmath computes the rolling-baseline statistics used to
// judge a new benchmark measurement against the history before it.
//
// Analysis results carry a list of warnings, captured as an []error
// value. These aren't errors that prevent analysis, but should be
// presented to the user along with the results.
package benchmath

import (
	"fmt"
	"math"

	"github.com/aclements/go-moremath/stats"
	"golang.org/x/benchtrack/benchunit"
)

// A Baseline summarizes a window of prior measurements of one
// benchmark.
type Baseline struct {
	// Values are the window's measurements in series order.
	Values []float64

	// Mean is the arithmetic mean of Values.
	Mean float64

	// StdDev is the sample standard deviation of Values. It is 0
	// when there are fewer than two values.
	StdDev float64

	// Warnings is a list of warnings about this baseline that
	// should be reported to the user.
	Warnings []error
}

// NewBaseline computes a Baseline over values. values is not
// modified or retained beyond the returned Baseline.
func NewBaseline(values []float64) *Baseline {
	b := &Baseline{Values: append([]float64(nil), values...)}
	if len(values) == 0 {
		b.Mean = math.NaN()
		b.Warnings = append(b.Warnings, fmt.Errorf("empty baseline window"))
		return b
	}
	s := stats.Sample{Xs: b.Values}
	b.Mean = s.Mean()
	if len(values) >= 2 {
		b.StdDev = s.StdDev()
	}
	if b.Mean == 0 {
		b.Warnings = append(b.Warnings, fmt.Errorf("baseline mean is zero; relative deviation is undefined"))
	}
	return b
}

// N returns the number of values in the window.
func (b *Baseline) N() int {
	return len(b.Values)
}

// CV returns the coefficient of variation StdDev/Mean. It is +Inf if
// the mean is zero and the values vary, and 0 if they do not.
func (b *Baseline) CV() float64 {
	if b.StdDev == 0 {
		return 0
	}
	if b.Mean == 0 {
		return math.Inf(1)
	}
	return b.StdDev / math.Abs(b.Mean)
}

// Deviation returns the relative change of v from the baseline mean,
// signed so that a positive result is an improvement under polarity
// p: (v-μ)/μ if higher is better and (μ-v)/μ if lower is better.
// Unknown polarity is treated as higher-is-better.
//
// Deviation returns NaN if the mean is zero.
func (b *Baseline) Deviation(v float64, p benchunit.Polarity) float64 {
	if b.Mean == 0 || math.IsNaN(b.Mean) {
		return math.NaN()
	}
	d := (v - b.Mean) / b.Mean
	if p == benchunit.LowerIsBetter {
		d = -d
	}
	return d
}

// ZScore returns the number of standard deviations v lies from the
// mean, signed like Deviation. It returns NaN if StdDev is zero.
func (b *Baseline) ZScore(v float64, p benchunit.Polarity) float64 {
	if b.StdDev == 0 {
		return math.NaN()
	}
	z := (v - b.Mean) / b.StdDev
	if p == benchunit.LowerIsBetter {
		z = -z
	}
	return z
}
