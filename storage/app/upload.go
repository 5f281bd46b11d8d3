// Copyright 2016 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package app

import (
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"
	"golang.org/x/benchtrack/benchingest"
	"golang.org/x/benchtrack/benchrun"
)

// maxUploadSize bounds the size of a Run payload.
const maxUploadSize = 32 << 20

// upload is the handler for the /upload endpoint. It ingests the JSON
// Run payload of a POST request into the group named by the "group"
// parameter and responds with the ingestion report.
func (a *App) upload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "/upload must be called as a POST request", http.StatusMethodNotAllowed)
		return
	}

	user := ""
	if a.Auth != nil {
		var err error
		user, err = a.Auth(w, r)
		if err == ErrResponseWritten {
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
	}

	group := a.group(r)
	if group == "" {
		e := new(benchrun.ValidationError)
		e.Add("group", "missing group parameter")
		a.httpError(w, r, e)
		return
	}

	body := http.MaxBytesReader(w, r.Body, maxUploadSize)
	rep, err := a.Ingester.IngestJSON(r.Context(), group, body)
	if err != nil {
		if rep != nil {
			err = fmt.Errorf("stored run %s but could not classify it: %w", rep.Commit, err)
		}
		a.httpError(w, r, err)
		return
	}
	if a.Metrics != nil {
		a.Metrics.observeReport(rep)
	}
	a.logReport(rep, user)
	writeJSON(w, http.StatusOK, rep)
}

func (a *App) logReport(rep *benchingest.Report, user string) {
	log := a.log().WithFields(logrus.Fields{"group": rep.Group, "sha": rep.Commit})
	if user != "" {
		log = log.WithField("user", user)
	}
	log.WithFields(logrus.Fields{
		"appended": len(rep.Append.Appended()),
		"points":   len(rep.Append.Points),
	}).Info("ingested run")
	for _, cl := range rep.Regressions() {
		log.WithFields(logrus.Fields{
			"name":      cl.Name,
			"baseline":  cl.BaselineValue,
			"value":     cl.NewValue,
			"deviation": cl.Deviation,
		}).Warn("regression detected")
	}
}
