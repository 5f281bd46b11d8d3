// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package benchdetect classifies benchmark measurements as
// improvements, regressions, or neither, by comparing each one to a
// rolling baseline of the measurements before it in its series.
//
// Classification is a pure function of the series history and a
// Config. A regression is an ordinary result, not an error.
package benchdetect

import (
	"fmt"
	"math"
	"time"

	"golang.org/x/benchtrack/benchmath"
	"golang.org/x/benchtrack/benchseries"
	"golang.org/x/benchtrack/benchunit"
)

// A Status is the verdict on one measurement.
type Status string

const (
	Improvement Status = "improvement"
	Neutral     Status = "neutral"
	Regression  Status = "regression"
)

// MinHistory is the smallest usable Config.MinHistory: a single
// prior measurement has no spread to judge against.
const MinHistory = 2

// A Policy selects how a deviation from the baseline is judged.
type Policy string

const (
	// Fixed compares the relative change against Config.Threshold.
	Fixed Policy = "fixed"
	// ZScore compares the change in baseline standard deviations
	// against Config.ZThreshold. It falls back to Fixed when the
	// baseline has no variance.
	ZScore Policy = "zscore"
)

// ParsePolicy parses a policy name.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(s); p {
	case Fixed, ZScore:
		return p, nil
	case "":
		return Fixed, nil
	}
	return "", fmt.Errorf("unknown policy %q (want %s or %s)", s, Fixed, ZScore)
}

// Config controls classification. The zero value of each field
// selects its default.
type Config struct {
	// Window is the number of preceding measurements forming the
	// baseline. Default 5.
	Window int

	// MinHistory is the fewest preceding measurements needed for
	// a verdict other than Neutral. Default and minimum 2. A
	// positive Window smaller than MinHistory is raised to it.
	MinHistory int

	// Threshold is the relative change, as a fraction of the
	// baseline mean, that counts as a regression or improvement
	// under the Fixed policy. Default 0.1.
	Threshold float64

	// Policy is Fixed by default.
	Policy Policy

	// ZThreshold is the z-score that counts as a regression or
	// improvement under the ZScore policy. Default 2.
	ZThreshold float64

	// NoiseCeiling is the coefficient of variation above which a
	// baseline is considered high-variance. Verdicts on
	// high-variance series are downgraded to Neutral unless the
	// change exceeds the threshold by more than the coefficient of
	// variation. Default 0.25; a negative value disables the
	// guard.
	NoiseCeiling float64

	// NamePolarity and UnitPolarity override the polarity of
	// individual benchmarks and units. A name override takes
	// precedence. UnitPolarity keys are normalized with
	// benchunit.Normalize.
	NamePolarity map[string]benchunit.Polarity
	UnitPolarity map[string]benchunit.Polarity

	// Warn, if non-nil, is called for units whose polarity is not
	// known and is assumed to be higher-is-better.
	Warn func(format string, args ...interface{})
}

// DefaultConfig returns a Config with every default filled in.
func DefaultConfig() *Config {
	c := (*Config)(nil).withDefaults()
	return &c
}

func (c *Config) withDefaults() Config {
	var out Config
	if c != nil {
		out = *c
	}
	if out.Window <= 0 {
		out.Window = 5
	}
	if out.MinHistory < MinHistory {
		out.MinHistory = MinHistory
	}
	if out.Window < out.MinHistory {
		out.Window = out.MinHistory
	}
	if out.Threshold <= 0 {
		out.Threshold = 0.1
	}
	if out.Policy == "" {
		out.Policy = Fixed
	}
	if out.ZThreshold <= 0 {
		out.ZThreshold = 2
	}
	if out.NoiseCeiling == 0 {
		out.NoiseCeiling = 0.25
	}
	if out.Warn == nil {
		out.Warn = func(string, ...interface{}) {}
	}
	return out
}

// Validate reports settings that withDefaults would silently
// override: a MinHistory below the minimum, or a Window too small to
// ever hold MinHistory measurements.
func (c *Config) Validate() error {
	if c.Window < 0 || c.MinHistory < 0 || c.Threshold < 0 || c.ZThreshold < 0 {
		return fmt.Errorf("window, min history, threshold and z threshold must not be negative")
	}
	if c.MinHistory > 0 && c.MinHistory < MinHistory {
		return fmt.Errorf("min history %d is below the minimum of %d", c.MinHistory, MinHistory)
	}
	if _, err := ParsePolicy(string(c.Policy)); err != nil {
		return err
	}
	d := c.withDefaults()
	if c.Window > 0 && c.Window < d.MinHistory {
		return fmt.Errorf("window %d is smaller than min history %d; no measurement could ever be classified", c.Window, d.MinHistory)
	}
	return nil
}

// Polarity returns the polarity of benchmark name measured in unit:
// a name override, else a unit override, else the polarity implied
// by the unit itself. Units with no known polarity are reported
// through Warn and treated as higher-is-better.
func (c *Config) Polarity(name, unit string) benchunit.Polarity {
	cfg := c.withDefaults()
	return cfg.polarity(name, unit)
}

func (c *Config) polarity(name, unit string) benchunit.Polarity {
	if p := c.NamePolarity[name]; p != benchunit.Unknown {
		return p
	}
	norm := benchunit.Normalize(unit)
	for u, p := range c.UnitPolarity {
		if p != benchunit.Unknown && benchunit.Normalize(u) == norm {
			return p
		}
	}
	if p := benchunit.Better(norm); p != benchunit.Unknown {
		return p
	}
	c.Warn("unit %q of %s has no known polarity; assuming higher is better", unit, name)
	return benchunit.HigherIsBetter
}

// A Classification is the verdict on one measurement of a benchmark.
// It is derived data: it can always be recomputed from the series.
type Classification struct {
	Name   string `json:"name"`
	Status Status `json:"status"`

	// BaselineValue is the mean of the baseline window.
	BaselineValue float64 `json:"baselineValue"`
	NewValue      float64 `json:"newValue"`

	// Deviation is the quantity compared against Threshold: the
	// relative change under the Fixed policy, or the z-score
	// under the ZScore policy. Positive is better.
	Deviation float64 `json:"deviation"`
	Threshold float64 `json:"threshold"`
	Policy    Policy  `json:"policy"`

	// Change is the relative change from the baseline mean,
	// positive when better, whatever the policy.
	Change float64 `json:"change"`

	Unit     string             `json:"unit"`
	Polarity benchunit.Polarity `json:"polarity"`

	// Window is the number of measurements in the baseline.
	Window int `json:"window"`

	// CV is the baseline's coefficient of variation.
	CV           float64 `json:"cv"`
	HighVariance bool    `json:"highVariance,omitempty"`

	// Reason explains a Neutral verdict that was not reached by
	// comparing against the threshold.
	Reason string `json:"reason,omitempty"`

	// Commit and Timestamp identify the classified measurement,
	// when it came from a stored series.
	Commit    string    `json:"commit,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// Classify judges newValue of benchmark name, measured in unit,
// against history, the measurements preceding it in series order.
// Only the last cfg.Window values of history are used. cfg may be
// nil.
func Classify(history []float64, newValue float64, unit, name string, cfg *Config) Classification {
	c := cfg.withDefaults()
	return c.classify(history, newValue, unit, name, c.polarity(name, unit))
}

func (c *Config) classify(history []float64, v float64, unit, name string, pol benchunit.Polarity) Classification {
	cl := Classification{
		Name:      name,
		Status:    Neutral,
		NewValue:  v,
		Threshold: c.Threshold,
		Policy:    c.Policy,
		Unit:      unit,
		Polarity:  pol,
	}
	if len(history) > c.Window {
		history = history[len(history)-c.Window:]
	}
	cl.Window = len(history)
	if len(history) < c.MinHistory {
		cl.Reason = fmt.Sprintf("insufficient history: %d prior measurements, need %d", len(history), c.MinHistory)
		if len(history) > 0 {
			cl.BaselineValue = benchmath.NewBaseline(history).Mean
		}
		return cl
	}

	b := benchmath.NewBaseline(history)
	for _, w := range b.Warnings {
		c.Warn("%s: %v", name, w)
	}
	cl.BaselineValue = b.Mean
	d := b.Deviation(v, pol)
	if math.IsNaN(d) {
		cl.Reason = "baseline mean is zero"
		return cl
	}
	cl.Change = d
	cl.CV = b.CV()
	cl.Deviation = d

	score, limit := d, c.Threshold
	if c.Policy == ZScore && b.StdDev > 0 {
		score, limit = b.ZScore(v, pol), c.ZThreshold
		cl.Deviation, cl.Threshold = score, limit
	}
	switch {
	case score <= -limit:
		cl.Status = Regression
	case score >= limit:
		cl.Status = Improvement
	}

	if c.NoiseCeiling > 0 && cl.CV > c.NoiseCeiling {
		cl.HighVariance = true
		if cl.Status != Neutral && math.Abs(d) < c.Threshold+cl.CV {
			cl.Reason = fmt.Sprintf("%s within noise (cv %.3f)", cl.Status, cl.CV)
			cl.Status = Neutral
		}
	}
	return cl
}

// ClassifySeries classifies every entry of s against the entries
// before it.
func ClassifySeries(s *benchseries.Series, cfg *Config) []Classification {
	if s.Len() == 0 {
		return nil
	}
	c := cfg.withDefaults()
	pol := c.polarity(s.Name, s.Unit)
	values := s.Values()
	out := make([]Classification, len(values))
	for i, e := range s.Entries {
		out[i] = c.classify(values[:i], e.Value, s.Unit, s.Name, pol)
		out[i].Commit = e.Commit.SHA
		out[i].Timestamp = e.Commit.Timestamp
	}
	return out
}

// ClassifyEntry classifies entry i of s against the entries before
// it.
func ClassifyEntry(s *benchseries.Series, i int, cfg *Config) Classification {
	c := cfg.withDefaults()
	e := s.Entries[i]
	cl := c.classify(s.Values()[:i], e.Value, s.Unit, s.Name, c.polarity(s.Name, s.Unit))
	cl.Commit = e.Commit.SHA
	cl.Timestamp = e.Commit.Timestamp
	return cl
}

// Latest classifies the most recent entry of s against the entries
// before it. It reports false if s is empty.
func Latest(s *benchseries.Series, cfg *Config) (Classification, bool) {
	if s.Len() == 0 {
		return Classification{}, false
	}
	return ClassifyEntry(s, s.Len()-1, cfg), true
}
