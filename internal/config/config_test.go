// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/benchtrack/benchdetect"
	"golang.org/x/benchtrack/benchunit"
)

const sample = `
group: myproject
detector:
  window: 8
  threshold: 0.05
  policy: zscore
  z_threshold: 3
  noise_ceiling: -1
  polarity:
    names:
      "suite::errors": lower
    units:
      widgets: higher
storage:
  backend: sqlite3
  dsn: /var/lib/benchtrack.db
retry:
  max_attempts: 4
  io_timeout: 5s
server:
  addr: ":9000"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "benchtrack.yaml")
	if err := os.WriteFile(path, []byte(content), 0o666); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	c, err := Load(writeConfig(t, sample))
	if err != nil {
		t.Fatal(err)
	}
	want := Default()
	want.Group = "myproject"
	want.Detector = Detector{
		Window:       8,
		Threshold:    0.05,
		Policy:       "zscore",
		ZThreshold:   3,
		NoiseCeiling: -1,
		Polarity: Polarity{
			Names: map[string]string{"suite::errors": "lower"},
			Units: map[string]string{"widgets": "higher"},
		},
	}
	want.Storage = Storage{Backend: "sqlite3", Dir: "benchtrack-data", DSN: "/var/lib/benchtrack.db"}
	want.Retry = Retry{MaxAttempts: 4, IOTimeout: 5 * time.Second}
	want.Server.Addr = ":9000"
	if diff := cmp.Diff(want, c); diff != "" {
		t.Errorf("Load mismatch (-want +got):\n%s", diff)
	}

	dc := c.DetectorConfig(nil)
	if dc.Policy != benchdetect.ZScore || dc.NamePolarity["suite::errors"] != benchunit.LowerIsBetter || dc.UnitPolarity["widgets"] != benchunit.HigherIsBetter {
		t.Errorf("DetectorConfig = %+v", dc)
	}
	if so := c.StoreOptions(nil); so.MaxAttempts != 4 || so.IOTimeout != 5*time.Second {
		t.Errorf("StoreOptions = %+v", so)
	}
}

func TestLoadDefaults(t *testing.T) {
	c, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(Default(), c); diff != "" {
		t.Errorf("Load(\"\") mismatch (-want +got):\n%s", diff)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("default config is invalid: %v", err)
	}
	if c, err = Load(writeConfig(t, "")); err != nil || c.Group != "default" {
		t.Errorf("Load(empty file) = %+v, %v", c, err)
	}
}

func TestLoadErrors(t *testing.T) {
	for _, test := range []struct {
		content, want string
	}{
		{"detector:\n  policy: magic\n", "detector.policy"},
		{"detector:\n  polarity:\n    units:\n      ms: sideways\n", "detector.polarity.units"},
		{"detector:\n  window: -1\n", "must not be negative"},
		{"detector:\n  min_history: 1\n", "below the minimum"},
		{"detector:\n  window: 3\n  min_history: 4\n", "smaller than min history"},
		{"detector:\n  window: 1\n", "smaller than min history"},
		{"storage:\n  backend: tape\n", "not one of"},
		{"storage:\n  backend: gcs\n", "storage.bucket"},
		{"storage:\n  backend: mysql\n", "storage.dsn"},
		{"retry:\n  io_timeout: soon\n", "soon"},
		{"grup: typo\n", "grup"},
	} {
		_, err := Load(writeConfig(t, test.content))
		if err == nil || !strings.Contains(err.Error(), test.want) {
			t.Errorf("Load(%q) = %v, want error containing %q", test.content, err, test.want)
		}
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Errorf("Load(missing file) succeeded")
	}
}
