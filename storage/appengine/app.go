// Copyright 2016 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package appengine contains an AppEngine app serving benchtrack.
//
// Snapshots are kept in Cloud SQL. If GCS_BUCKET is set they are kept
// as objects in that bucket instead.
package appengine

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"

	_ "github.com/go-sql-driver/mysql"
	"golang.org/x/benchtrack/benchdetect"
	"golang.org/x/benchtrack/benchingest"
	"golang.org/x/benchtrack/benchquery"
	"golang.org/x/benchtrack/benchseries"
	"golang.org/x/benchtrack/storage/app"
	"golang.org/x/benchtrack/storage/db"
	"golang.org/x/benchtrack/storage/fs"
	"golang.org/x/benchtrack/storage/fs/gcs"
	"google.golang.org/appengine"
	aelog "google.golang.org/appengine/log"
)

// connectDB returns a DB initialized from the environment variables set in app.yaml. CLOUDSQL_CONNECTION_NAME, CLOUDSQL_USER, and CLOUDSQL_DATABASE must be set to point to the Cloud SQL instance. CLOUDSQL_PASSWORD can be set if needed.
func connectDB() (*db.DB, error) {
	var (
		connectionName = mustGetenv("CLOUDSQL_CONNECTION_NAME")
		user           = mustGetenv("CLOUDSQL_USER")
		password       = os.Getenv("CLOUDSQL_PASSWORD") // NOTE: password may be empty
		dbName         = mustGetenv("CLOUDSQL_DATABASE")
	)

	return db.OpenSQL("mysql", fmt.Sprintf("%s:%s@cloudsql(%s)/%s", user, password, connectionName, dbName))
}

func mustGetenv(k string) string {
	v := os.Getenv(k)
	if v == "" {
		log.Panicf("%s environment variable not set.", k)
	}
	return v
}

// detectorConfig reads BENCHTRACK_WINDOW, BENCHTRACK_MIN_HISTORY,
// BENCHTRACK_THRESHOLD and BENCHTRACK_POLICY. Unset variables select
// the defaults.
func detectorConfig(ctx context.Context) (*benchdetect.Config, error) {
	c := &benchdetect.Config{
		Warn: func(format string, args ...interface{}) { aelog.Warningf(ctx, format, args...) },
	}
	if v := os.Getenv("BENCHTRACK_WINDOW"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("BENCHTRACK_WINDOW: %v", err)
		}
		c.Window = n
	}
	if v := os.Getenv("BENCHTRACK_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("BENCHTRACK_THRESHOLD: %v", err)
		}
		c.Threshold = f
	}
	p, err := benchdetect.ParsePolicy(os.Getenv("BENCHTRACK_POLICY"))
	if err != nil {
		return nil, fmt.Errorf("BENCHTRACK_POLICY: %v", err)
	}
	c.Policy = p
	if v := os.Getenv("BENCHTRACK_MIN_HISTORY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("BENCHTRACK_MIN_HISTORY: %v", err)
		}
		c.MinHistory = n
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("detector settings: %v", err)
	}
	return c, nil
}

// backend opens the snapshot store. The returned function releases it.
func backend(ctx context.Context) (benchseries.Backend, func() error, error) {
	if bucket := os.Getenv("GCS_BUCKET"); bucket != "" {
		g, err := gcs.NewFS(ctx, bucket)
		if err != nil {
			return nil, nil, fmt.Errorf("gcs.NewFS: %v", err)
		}
		return fs.NewBackend(g), func() error { return nil }, nil
	}
	db, err := connectDB()
	if err != nil {
		return nil, nil, fmt.Errorf("connectDB: %v", err)
	}
	return db, db.Close, nil
}

// appHandler is the default handler, registered to serve "/".
// It creates a new App instance using the appengine Context and then
// dispatches the request to the App.
func appHandler(w http.ResponseWriter, r *http.Request) {
	ctx := appengine.NewContext(r)
	// GCS clients need to be constructed with an AppEngine
	// context, so we can't actually make the App until the
	// request comes in.
	b, closeBackend, err := backend(ctx)
	if err != nil {
		aelog.Errorf(ctx, "%v", err)
		http.Error(w, err.Error(), 500)
		return
	}
	defer closeBackend()

	det, err := detectorConfig(ctx)
	if err != nil {
		aelog.Errorf(ctx, "%v", err)
		http.Error(w, err.Error(), 500)
		return
	}
	st := benchseries.NewStore(b, nil)
	mux := http.NewServeMux()
	app := &app.App{
		Ingester:     &benchingest.Ingester{Store: st, Detector: det},
		Query:        benchquery.NewService(st, det),
		DefaultGroup: os.Getenv("BENCHTRACK_GROUP"),
	}
	app.RegisterOnMux(mux)
	mux.ServeHTTP(w, r)
}

func init() {
	http.HandleFunc("/", appHandler)
}
