// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package benchdetect

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/benchtrack/benchrun"
	"golang.org/x/benchtrack/benchseries"
	"golang.org/x/benchtrack/benchunit"
)

var window = []float64{1000, 1010, 995, 1005, 1002}

func near(a, b float64) bool {
	return math.Abs(a-b) < 0.001
}

func TestClassifyFixed(t *testing.T) {
	for _, test := range []struct {
		v      float64
		status Status
		d      float64
	}{
		{850, Regression, -0.152},
		{1200, Improvement, 0.197},
		{1002.4, Neutral, 0},
		{910, Neutral, -0.092},
	} {
		cl := Classify(window, test.v, "iter/sec", "suite::bench", nil)
		if cl.Status != test.status || !near(cl.Deviation, test.d) {
			t.Errorf("Classify(%v) = %s (d=%.4f), want %s (d≈%.3f)", test.v, cl.Status, cl.Deviation, test.status, test.d)
		}
		if !near(cl.BaselineValue, 1002.4) || cl.Threshold != 0.1 || cl.Window != 5 {
			t.Errorf("Classify(%v) baseline=%v threshold=%v window=%d", test.v, cl.BaselineValue, cl.Threshold, cl.Window)
		}
	}
}

func TestClassifyLowerIsBetter(t *testing.T) {
	cl := Classify(window, 850, "msec", "latency", nil)
	if cl.Status != Improvement || cl.Polarity != benchunit.LowerIsBetter {
		t.Errorf("faster latency classified %s with polarity %v", cl.Status, cl.Polarity)
	}
	cl = Classify(window, 1200, "msec", "latency", nil)
	if cl.Status != Regression || !near(cl.Deviation, -0.197) {
		t.Errorf("slower latency classified %s (d=%.4f)", cl.Status, cl.Deviation)
	}
}

func TestInsufficientHistory(t *testing.T) {
	for _, cfg := range []*Config{nil, {MinHistory: 1}, {MinHistory: 1, Window: 1}} {
		for _, hist := range [][]float64{nil, {1000}} {
			for _, v := range []float64{0, 1, 1e9} {
				cl := Classify(hist, v, "iter/sec", "x", cfg)
				if cl.Status != Neutral || !strings.Contains(cl.Reason, "insufficient history") {
					t.Errorf("Classify(%v, %v, %+v) = %s %q, want neutral with insufficient history", hist, v, cfg, cl.Status, cl.Reason)
				}
			}
		}
	}
}

func TestSmallWindowRaisedToMinHistory(t *testing.T) {
	cl := Classify(window, 850, "iter/sec", "x", &Config{Window: 1})
	if cl.Window != 2 || cl.Status != Regression {
		t.Errorf("Classify with Window 1 = %s over %d values (%q), want regression over 2", cl.Status, cl.Window, cl.Reason)
	}
}

func TestConfigValidate(t *testing.T) {
	for _, test := range []struct {
		cfg  Config
		want string
	}{
		{Config{}, ""},
		{Config{Window: 2}, ""},
		{Config{Window: 10, MinHistory: 4, Policy: ZScore}, ""},
		{Config{MinHistory: 1}, "below the minimum"},
		{Config{Window: 1}, "smaller than min history"},
		{Config{Window: 3, MinHistory: 4}, "smaller than min history"},
		{Config{Threshold: -1}, "negative"},
		{Config{Policy: "magic"}, "unknown policy"},
	} {
		err := test.cfg.Validate()
		if test.want == "" && err != nil {
			t.Errorf("%+v.Validate() = %v, want nil", test.cfg, err)
		}
		if test.want != "" && (err == nil || !strings.Contains(err.Error(), test.want)) {
			t.Errorf("%+v.Validate() = %v, want error containing %q", test.cfg, err, test.want)
		}
	}
}

func TestWindowUsesMostRecent(t *testing.T) {
	hist := append([]float64{1, 1, 1, 1}, window...)
	cl := Classify(hist, 850, "iter/sec", "x", nil)
	if cl.Window != 5 || !near(cl.BaselineValue, 1002.4) {
		t.Errorf("window = %d, baseline = %v, want 5, 1002.4", cl.Window, cl.BaselineValue)
	}
	cl = Classify(hist, 850, "iter/sec", "x", &Config{Window: 7})
	if cl.Window != 7 {
		t.Errorf("window = %d, want 7", cl.Window)
	}
}

func TestZScorePolicy(t *testing.T) {
	cfg := &Config{Policy: ZScore}
	// σ ≈ 5.6, so a drop of 20 is about 3.6σ but only 2%.
	cl := Classify(window, 982, "iter/sec", "x", cfg)
	if cl.Status != Regression || cl.Policy != ZScore || cl.Threshold != 2 {
		t.Errorf("zscore: %+v", cl)
	}
	if !near(cl.Change, (982-1002.4)/1002.4) {
		t.Errorf("Change = %v", cl.Change)
	}
	if fixed := Classify(window, 982, "iter/sec", "x", nil); fixed.Status != Neutral {
		t.Errorf("fixed policy classified a 2%% drop as %s", fixed.Status)
	}

	// No variance: fall back to the fixed threshold.
	flat := []float64{100, 100, 100}
	cl = Classify(flat, 80, "iter/sec", "x", cfg)
	if cl.Status != Regression || cl.Threshold != 0.1 || !near(cl.Deviation, -0.2) {
		t.Errorf("zscore on flat baseline: %+v", cl)
	}
}

func TestNoiseCeiling(t *testing.T) {
	noisy := []float64{100, 150, 60, 140, 50} // cv ≈ 0.45
	cl := Classify(noisy, 80, "iter/sec", "x", nil)
	if !cl.HighVariance || cl.Status != Neutral {
		t.Errorf("borderline drop on noisy series: %s highVariance=%v, want neutral/true", cl.Status, cl.HighVariance)
	}
	cl = Classify(noisy, 10, "iter/sec", "x", nil)
	if !cl.HighVariance || cl.Status != Regression {
		t.Errorf("large drop on noisy series: %s, want regression", cl.Status)
	}
	cl = Classify(noisy, 80, "iter/sec", "x", &Config{NoiseCeiling: -1})
	if cl.HighVariance || cl.Status != Regression {
		t.Errorf("with guard disabled: %s highVariance=%v, want regression/false", cl.Status, cl.HighVariance)
	}
}

func TestZeroMean(t *testing.T) {
	var warnings []string
	cfg := &Config{Warn: func(format string, args ...interface{}) {
		warnings = append(warnings, fmt.Sprintf(format, args...))
	}}
	cl := Classify([]float64{0, 0, 0}, 5, "iter/sec", "x", cfg)
	if cl.Status != Neutral || cl.Reason == "" {
		t.Errorf("zero baseline: %+v", cl)
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "mean is zero") {
		t.Errorf("warnings = %q, want one about the zero mean", warnings)
	}
	if _, err := json.Marshal(cl); err != nil {
		t.Errorf("Classification with zero baseline does not marshal: %v", err)
	}
}

func TestPolarityResolution(t *testing.T) {
	var warnings []string
	cfg := &Config{
		NamePolarity: map[string]benchunit.Polarity{"errors": benchunit.LowerIsBetter},
		UnitPolarity: map[string]benchunit.Polarity{"Widgets": benchunit.LowerIsBetter},
		Warn: func(format string, args ...interface{}) {
			warnings = append(warnings, fmt.Sprintf(format, args...))
		},
	}
	for _, test := range []struct {
		name, unit string
		want       benchunit.Polarity
	}{
		{"errors", "errors/sec", benchunit.LowerIsBetter},
		{"other", "errors/sec", benchunit.HigherIsBetter},
		{"w", "widgets", benchunit.LowerIsBetter},
		{"t", "ms", benchunit.LowerIsBetter},
		{"q", "gadgets", benchunit.HigherIsBetter},
	} {
		if got := cfg.Polarity(test.name, test.unit); got != test.want {
			t.Errorf("Polarity(%q, %q) = %v, want %v", test.name, test.unit, got, test.want)
		}
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "gadgets") {
		t.Errorf("warnings = %q, want one about gadgets", warnings)
	}
}

func series(values ...float64) *benchseries.Series {
	s := &benchseries.Series{Name: "x", Unit: "iter/sec"}
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, v := range values {
		s.Entries = append(s.Entries, benchseries.Entry{
			Commit: benchrun.Commit{SHA: fmt.Sprint("c", i), Timestamp: t0.Add(time.Duration(i) * time.Hour)},
			Point:  benchrun.Point{Name: "x", Value: v, Unit: "iter/sec"},
		})
	}
	return s
}

func TestClassifySeries(t *testing.T) {
	s := series(append(append([]float64(nil), window...), 850, 1200)...)
	cls := ClassifySeries(s, nil)
	var got []Status
	for _, cl := range cls {
		got = append(got, cl.Status)
	}
	want := []Status{Neutral, Neutral, Neutral, Neutral, Neutral, Regression, Improvement}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("statuses (-want +got):\n%s", diff)
	}
	if cls[5].Commit != "c5" || !cls[5].Timestamp.Equal(s.Entries[5].Commit.Timestamp) {
		t.Errorf("classification 5 identifies %s at %v", cls[5].Commit, cls[5].Timestamp)
	}

	latest, ok := Latest(s, nil)
	if !ok || latest.Commit != "c6" {
		t.Fatalf("Latest = %+v, %v", latest, ok)
	}
	if diff := cmp.Diff(cls[6], latest); diff != "" {
		t.Errorf("Latest differs from ClassifySeries (-series +latest):\n%s", diff)
	}

	if _, ok := Latest(&benchseries.Series{}, nil); ok {
		t.Errorf("Latest(empty) reported ok")
	}
}

func TestParsePolicy(t *testing.T) {
	for in, want := range map[string]Policy{"": Fixed, "fixed": Fixed, "zscore": ZScore} {
		if got, err := ParsePolicy(in); err != nil || got != want {
			t.Errorf("ParsePolicy(%q) = %v, %v, want %v", in, got, err, want)
		}
	}
	if _, err := ParsePolicy("magic"); err == nil {
		t.Errorf("ParsePolicy(magic) succeeded")
	}
}
