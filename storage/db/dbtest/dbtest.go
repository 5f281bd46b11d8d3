// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package dbtest provides test databases for the SQL snapshot
// backend.
package dbtest

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"flag"
	"fmt"
	"testing"

	_ "github.com/GoogleCloudPlatform/cloudsql-proxy/proxy/dialers/mysql"
	"github.com/google/go-cmp/cmp"
	"golang.org/x/benchtrack/storage/db"
	_ "golang.org/x/benchtrack/storage/db/sqlite3"
)

var cloud = flag.Bool("cloud", false, "connect to Cloud SQL database instead of in-memory SQLite")
var cloudsql = flag.String("cloudsql", "golang-org:us-central1:golang-org", "name of Cloud SQL instance to run tests on")

// createCloudDB creates a scratch database on the Cloud SQL instance
// and registers its removal with t.Cleanup.
func createCloudDB(t *testing.T) (dsn string) {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		t.Fatal(err)
	}
	name := "benchtrack-test-" + base64.RawURLEncoding.EncodeToString(buf)
	prefix := fmt.Sprintf("root:@cloudsql(%s)/", *cloudsql)

	admin, err := sql.Open("mysql", prefix)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := admin.Exec(fmt.Sprintf("CREATE DATABASE `%s`", name)); err != nil {
		admin.Close()
		t.Fatal(err)
	}
	t.Logf("Using database %q", name)
	t.Cleanup(func() {
		if _, err := admin.Exec(fmt.Sprintf("DROP DATABASE `%s`", name)); err != nil {
			t.Error(err)
		}
		admin.Close()
	})
	return prefix + name
}

// NewDB opens an empty snapshot database, either in-memory sqlite3
// or, with -cloud, a scratch Cloud SQL database. It is closed when
// the test ends.
func NewDB(t *testing.T) *db.DB {
	t.Helper()
	driverName, dataSourceName := "sqlite3", ":memory:"
	if *cloud {
		driverName = "mysql"
		dataSourceName = createCloudDB(t)
	}
	d, err := db.OpenSQL(driverName, dataSourceName)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { d.Close() })

	n, err := d.CountSnapshots()
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("new database already holds %d groups", n)
	}
	return d
}

// CheckHistory verifies that the history of group holds every version
// from 1 to the current one, and that its newest entry is the current
// snapshot. It returns the number of versions.
func CheckHistory(t *testing.T, d *db.DB, group string) int {
	t.Helper()
	ctx := context.Background()
	cur, err := d.Load(ctx, group)
	if err != nil {
		t.Fatalf("Load(%q): %v", group, err)
	}
	versions, err := d.History(ctx, group)
	if err != nil {
		t.Fatalf("History(%q): %v", group, err)
	}
	for i, v := range versions {
		if v != int64(i+1) {
			t.Fatalf("History(%q) = %v, want 1..%d without gaps", group, versions, cur.Version)
		}
	}
	if int64(len(versions)) != cur.Version {
		t.Fatalf("History(%q) has %d versions, current version is %d", group, len(versions), cur.Version)
	}
	last, err := d.LoadVersion(ctx, group, cur.Version)
	if err != nil {
		t.Fatalf("LoadVersion(%q, %d): %v", group, cur.Version, err)
	}
	if diff := cmp.Diff(cur, last); diff != "" {
		t.Errorf("newest history entry of %q differs from current snapshot (-current +history):\n%s", group, diff)
	}
	return len(versions)
}
