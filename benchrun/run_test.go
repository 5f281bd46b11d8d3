// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package benchrun

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

var ts = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestPointIsValid(t *testing.T) {
	for _, test := range []struct {
		p    Point
		want bool
	}{
		{Point{Name: "a::b", Value: 1, Unit: "iter/sec"}, true},
		{Point{Name: "a::b", Value: 0, Unit: "iter/sec"}, true},
		{Point{Name: "", Value: 1, Unit: "iter/sec"}, false},
		{Point{Name: "a::b", Value: 1, Unit: ""}, false},
		{Point{Name: "a::b", Value: -1, Unit: "iter/sec"}, false},
		{Point{Name: "a::b", Value: math.NaN(), Unit: "iter/sec"}, false},
		{Point{Name: "a::b", Value: math.Inf(1), Unit: "iter/sec"}, false},
	} {
		if got := test.p.IsValid(); got != test.want {
			t.Errorf("%+v.IsValid() = %v, want %v", test.p, got, test.want)
		}
	}
}

func TestRunValidateReportsEveryViolation(t *testing.T) {
	run := &Run{
		Commit: Commit{SHA: ""},
		Tool:   "pytest",
		Benches: []Point{
			{Name: "x", Value: 1, Unit: "iter/sec"},
			{Name: "x", Value: 2, Unit: "iter/sec"},
			{Name: "y", Value: -3, Unit: ""},
		},
	}
	if run.IsValid() {
		t.Fatalf("IsValid() = true, want false")
	}
	err := run.Validate()
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("Validate() = %v, want *ValidationError", err)
	}
	var got []string
	for _, v := range ve.Violations {
		got = append(got, v.Field)
	}
	want := []string{
		"commit.sha",
		"commit.timestamp",
		"benches[1].name",
		"benches[2].unit",
		"benches[2].value",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("violated fields mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(err.Error(), `duplicate "x"`) {
		t.Errorf("Error() = %q, want mention of duplicate name", err)
	}
}

func TestRunValidateOK(t *testing.T) {
	run := &Run{
		Commit:  Commit{SHA: "abc", Timestamp: ts},
		Benches: []Point{{Name: "x", Value: 1, Unit: "ms"}, {Name: "y", Value: 2, Unit: "ms"}},
	}
	if err := run.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestPointEqual(t *testing.T) {
	sd := 1.5
	sd2 := 1.5
	a := Point{Name: "x", Value: 1, Unit: "ms", Stats: &Stats{StdDev: &sd}}
	b := Point{Name: "x", Value: 1, Unit: "ms", Stats: &Stats{StdDev: &sd2}}
	if !a.Equal(b) {
		t.Errorf("%+v.Equal(%+v) = false, want true", a, b)
	}
	b.Stats = nil
	if a.Equal(b) {
		t.Errorf("points with and without stats compare equal")
	}
	if v, ok := a.Variance(); !ok || v != 1.5 {
		t.Errorf("Variance() = %v, %v, want 1.5, true", v, ok)
	}
	if _, ok := a.SampleSize(); ok {
		t.Errorf("SampleSize() reported a value for a point without rounds")
	}
}

func TestCommitEqualComparesInstants(t *testing.T) {
	a := Commit{SHA: "abc", Timestamp: ts}
	b := Commit{SHA: "abc", Timestamp: ts.In(time.FixedZone("X", 3600))}
	if !a.Equal(b) {
		t.Errorf("commits at the same instant in different zones compare unequal")
	}
}
