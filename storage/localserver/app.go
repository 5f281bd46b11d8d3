// Copyright 2016 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Localserver runs a throwaway benchtrack server backed by an
// in-memory SQLite database, for development.
//
// Usage:
//
//	localserver [-addr address] [-dsn file.db] [-window n] [-threshold f]
package main

import (
	"flag"
	"net/http"

	log "github.com/sirupsen/logrus"
	"golang.org/x/benchtrack/benchdetect"
	"golang.org/x/benchtrack/benchingest"
	"golang.org/x/benchtrack/benchquery"
	"golang.org/x/benchtrack/benchseries"
	"golang.org/x/benchtrack/storage/app"
	"golang.org/x/benchtrack/storage/db"
	_ "golang.org/x/benchtrack/storage/db/sqlite3"
)

var (
	addr      = flag.String("addr", ":8080", "serve HTTP on `address`")
	dsn       = flag.String("dsn", ":memory:", "sqlite `dsn`")
	group     = flag.String("group", "default", "default group `key`")
	window    = flag.Int("window", 0, "baseline window `size` (0 for the default)")
	threshold = flag.Float64("threshold", 0, "relative change `threshold` (0 for the default)")
	debug     = flag.Bool("debug", false, "log at debug level")
)

func main() {
	flag.Parse()
	if *debug {
		log.SetLevel(log.DebugLevel)
	}

	db, err := db.OpenSQL("sqlite3", *dsn)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	det := &benchdetect.Config{
		Window:    *window,
		Threshold: *threshold,
		Warn:      log.Warnf,
	}
	st := benchseries.NewStore(db, nil)
	app := &app.App{
		Ingester:     &benchingest.Ingester{Store: st, Detector: det},
		Query:        benchquery.NewService(st, det),
		DefaultGroup: *group,
		Metrics:      app.NewMetrics(),
		Auth:         func(http.ResponseWriter, *http.Request) (string, error) { return "", nil },
	}
	app.RegisterOnMux(http.DefaultServeMux)

	log.Printf("Listening on %s", *addr)

	log.Fatal(http.ListenAndServe(*addr, nil))
}
