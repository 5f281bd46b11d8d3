// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package benchrun

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"
)

const samplePayload = `{
  "commit": {
    "author": {"email": "dev@example.com", "name": "Dev", "username": "dev"},
    "committer": {"email": "noreply@example.com", "name": "CI", "username": "ci"},
    "distinct": true,
    "id": "4a1b9e0c",
    "message": "Speed up parser",
    "timestamp": "2024-03-01T12:00:00+01:00",
    "url": "https://example.com/commit/4a1b9e0c"
  },
  "date": 1709294400000,
  "tool": "pytest",
  "benches": [
    {
      "name": "tests/test_parse.py::test_small",
      "value": 1002.5,
      "unit": "iter/sec",
      "range": "stddev: 0.0001",
      "extra": "mean: 997 usec\nrounds: 120",
      "stats": {"stddev": 0.0001, "rounds": 120, "mean": 0.000997}
    }
  ]
}`

func TestDecodeRun(t *testing.T) {
	run, err := DecodeRun(strings.NewReader(samplePayload))
	if err != nil {
		t.Fatalf("DecodeRun: %v", err)
	}
	if run.Commit.SHA != "4a1b9e0c" {
		t.Errorf("SHA = %q, want the id alias %q", run.Commit.SHA, "4a1b9e0c")
	}
	if want := time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC); !run.Commit.Timestamp.Equal(want) || run.Commit.Timestamp.Location() != time.UTC {
		t.Errorf("Timestamp = %v, want %v in UTC", run.Commit.Timestamp, want)
	}
	if run.Commit.Author.Username != "dev" {
		t.Errorf("Author = %+v, want username dev", run.Commit.Author)
	}
	if len(run.Benches) != 1 {
		t.Fatalf("len(Benches) = %d, want 1", len(run.Benches))
	}
	b := run.Benches[0]
	if n, ok := b.SampleSize(); !ok || n != 120 {
		t.Errorf("SampleSize() = %d, %v, want 120, true", n, ok)
	}
	if err := run.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
	if got := run.Time(); !got.Equal(time.UnixMilli(1709294400000)) {
		t.Errorf("Time() = %v", got)
	}

	// Encoding and decoding again must give back the same run.
	var buf bytes.Buffer
	if err := EncodeRun(&buf, run); err != nil {
		t.Fatalf("EncodeRun: %v", err)
	}
	run2, err := DecodeRun(&buf)
	if err != nil {
		t.Fatalf("DecodeRun(EncodeRun(run)): %v", err)
	}
	if !run.Equal(run2) {
		t.Errorf("re-decoded run differs:\n%+v\n%+v", run, run2)
	}
}

func TestDecodeRunErrors(t *testing.T) {
	for _, test := range []struct {
		in    string
		field string
	}{
		{`{"commit": {"sha": "a", "timestamp": "yesterday"}}`, "commit.timestamp"},
		{`{"commit": `, "payload"},
		{`{"benches": [{"name": "x", "value": "fast"}]}`, "benches.value"},
	} {
		_, err := DecodeRun(strings.NewReader(test.in))
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Errorf("DecodeRun(%s) = %v, want *ValidationError", test.in, err)
			continue
		}
		if got := ve.Violations[0].Field; got != test.field {
			t.Errorf("DecodeRun(%s) violation on %q, want %q", test.in, got, test.field)
		}
	}
}

func TestPersonFromString(t *testing.T) {
	run, err := DecodeRun(strings.NewReader(`{"commit": {"sha": "a", "timestamp": "20211229T213212", "author": "Dev"}, "benches": []}`))
	if err != nil {
		t.Fatalf("DecodeRun: %v", err)
	}
	if run.Commit.Author.Name != "Dev" {
		t.Errorf("Author.Name = %q, want Dev", run.Commit.Author.Name)
	}
	if want := time.Date(2021, 12, 29, 21, 32, 12, 0, time.UTC); !run.Commit.Timestamp.Equal(want) {
		t.Errorf("Timestamp = %v, want %v", run.Commit.Timestamp, want)
	}
}

func TestParseTime(t *testing.T) {
	want := time.Date(2021, 12, 29, 21, 32, 12, 0, time.UTC)
	for _, in := range []string{
		"20211229T213212",
		"2021-12-29T21:32:12Z",
		"2021-12-29T22:32:12+01:00",
		"2021-12-29 21:32:12 +0000",
	} {
		got, err := ParseTime(in)
		if err != nil {
			t.Errorf("ParseTime(%q): %v", in, err)
			continue
		}
		if !got.Equal(want) {
			t.Errorf("ParseTime(%q) = %v, want %v", in, got, want)
		}
	}
	if _, err := ParseTime("not a time"); err == nil {
		t.Errorf("ParseTime(garbage) succeeded")
	}
}
