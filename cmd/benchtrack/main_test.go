// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/benchtrack/benchdetect"
	"golang.org/x/benchtrack/storage/app"
)

func writeRun(t *testing.T, dir, sha string, hour int, value float64) string {
	t.Helper()
	payload := fmt.Sprintf(`{
		"commit": {"sha": %q, "timestamp": %q},
		"tool": "pytest",
		"benches": [{"name": "t::throughput", "value": %g, "unit": "iter/sec"}]
	}`, sha, time.Date(2024, 3, 1, hour, 0, 0, 0, time.UTC).Format(time.RFC3339), value)
	name := filepath.Join(dir, sha+".json")
	if err := os.WriteFile(name, []byte(payload), 0o666); err != nil {
		t.Fatal(err)
	}
	return name
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestIngestAndCheck(t *testing.T) {
	dir := t.TempDir()
	conf := filepath.Join(dir, "benchtrack.yaml")
	yaml := fmt.Sprintf("group: proj\nstorage:\n  backend: dir\n  dir: %s\n", filepath.Join(dir, "data"))
	if err := os.WriteFile(conf, []byte(yaml), 0o666); err != nil {
		t.Fatal(err)
	}

	var files []string
	for i, v := range []float64{1000, 1010, 990, 1000} {
		files = append(files, writeRun(t, dir, fmt.Sprintf("c%d", i), i, v))
	}
	if _, err := execute(t, append([]string{"--config", conf, "ingest", "--fail-on-regression"}, files...)...); err != nil {
		t.Fatalf("ingest stable history: %v", err)
	}
	if _, err := execute(t, "--config", conf, "check"); err != nil {
		t.Fatalf("check on stable history: %v", err)
	}

	slow := writeRun(t, dir, "c4", 4, 850)
	out, err := execute(t, "--config", conf, "ingest", "--fail-on-regression", slow)
	if err == nil || !strings.Contains(err.Error(), "1 regression") {
		t.Errorf("ingest regression: err = %v, want 1 regression", err)
	}
	if !strings.Contains(out, "regression") {
		t.Errorf("ingest output missing regression:\n%s", out)
	}
	ingestFail = false

	out, err = execute(t, "--config", conf, "check", "--from", "c4")
	if err == nil {
		t.Errorf("check --from c4 succeeded, want failure")
	}
	if !strings.Contains(out, "c4") {
		t.Errorf("check output does not name c4:\n%s", out)
	}
	out, err = execute(t, "--config", conf, "check", "--from", "c0", "--to", "c3")
	if err != nil {
		t.Errorf("check --from c0 --to c3: %v\n%s", err, out)
	}
	checkRange = rangeFlags{}

	out, err = execute(t, "--config", conf, "series", "t::throughput")
	if err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(out, "\n"); n != 5 {
		t.Errorf("series printed %d lines, want 5:\n%s", n, out)
	}
	if !strings.Contains(out, "850.0 ") || !strings.Contains(out, "1010.0 ") {
		t.Errorf("series values not on a common scale:\n%s", out)
	}
}

func TestPrintClassificationsScalesValues(t *testing.T) {
	var buf bytes.Buffer
	printClassifications(&buf, []benchdetect.Classification{{
		Commit:        "c9",
		Name:          "BenchmarkParse",
		Status:        benchdetect.Regression,
		BaselineValue: 1500000,
		NewValue:      1800000,
		Unit:          "nsec/op",
		Change:        -0.2,
	}})
	out := buf.String()
	for _, want := range []string{"1.500m", "1.800m sec/op", "-20.0%"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestCheckFreshGroup(t *testing.T) {
	conf := filepath.Join(t.TempDir(), "benchtrack.yaml")
	if err := os.WriteFile(conf, []byte("group: fresh\nstorage:\n  backend: mem\n"), 0o666); err != nil {
		t.Fatal(err)
	}
	checkRange = rangeFlags{}
	if out, err := execute(t, "--config", conf, "check"); err != nil {
		t.Errorf("check on a group with no history: %v\n%s", err, out)
	}
	_, err := execute(t, "--config", conf, "check", "--from", "abc")
	if err == nil || !strings.Contains(err.Error(), "abc") {
		t.Errorf("check --from unknown commit = %v, want not-found error naming abc", err)
	}
	checkRange = rangeFlags{}
}

func TestErrorsPrintedOnce(t *testing.T) {
	out, err := execute(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "check")
	if err == nil {
		t.Fatal("missing config file accepted")
	}
	if strings.Contains(out, "Error:") {
		t.Errorf("cobra printed the error as well as main:\n%s", out)
	}
}

func TestRangeFlags(t *testing.T) {
	f := rangeFlags{since: "2024-03-01T00:00:00Z", to: "abc"}
	r, err := f.parse()
	if err != nil {
		t.Fatal(err)
	}
	if !r.Since.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)) || !r.Until.IsZero() || r.ToSHA != "abc" {
		t.Errorf("parse() = %+v", r)
	}
	f = rangeFlags{until: "last week"}
	if _, err := f.parse(); err == nil || !strings.Contains(err.Error(), "--until") {
		t.Errorf("parse(bad until) = %v, want --until error", err)
	}
}

func TestBearerAuth(t *testing.T) {
	auth := bearerAuth("s3cret")
	for _, tc := range []struct {
		header string
		want   int
	}{
		{"Bearer s3cret", http.StatusOK},
		{"Bearer nope", http.StatusUnauthorized},
		{"", http.StatusUnauthorized},
		{"Basic s3cret", http.StatusUnauthorized},
	} {
		w := httptest.NewRecorder()
		r := httptest.NewRequest("POST", "/upload", nil)
		if tc.header != "" {
			r.Header.Set("Authorization", tc.header)
		}
		_, err := auth(w, r)
		got := http.StatusOK
		if err != nil {
			if err != app.ErrResponseWritten {
				t.Fatalf("auth(%q) = %v", tc.header, err)
			}
			got = w.Code
		}
		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Errorf("auth(%q) status mismatch (-want +got):\n%s", tc.header, diff)
		}
	}
}
