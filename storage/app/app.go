// Copyright 2016 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package app implements the benchmark tracking server. Combine an
// App with an ingester and a query service to get an HTTP server.
package app

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"
	"golang.org/x/benchtrack/benchingest"
	"golang.org/x/benchtrack/benchquery"
	"golang.org/x/benchtrack/benchrun"
	"golang.org/x/benchtrack/benchseries"
)

// App manages the server logic. Construct an App instance using a
// literal with Ingester and Query objects and call RegisterOnMux to
// connect it with an HTTP server.
type App struct {
	Ingester *benchingest.Ingester
	Query    *benchquery.Service

	// DefaultGroup is used by requests that do not name a group.
	DefaultGroup string

	// Log receives request errors and ingestion events. If nil,
	// the logrus standard logger is used.
	Log logrus.FieldLogger

	// Metrics, if non-nil, is updated by every request and served
	// on /metrics.
	Metrics *Metrics

	// Auth obtains the username for the request.
	// If necessary, it can write its own response (e.g. a
	// redirect) and return ErrResponseWritten.
	Auth func(http.ResponseWriter, *http.Request) (string, error)
}

// ErrResponseWritten can be returned by App.Auth to abort the normal /upload handling.
var ErrResponseWritten = errors.New("response written")

// RegisterOnMux registers the app's URLs on mux.
func (a *App) RegisterOnMux(mux *http.ServeMux) {
	mux.HandleFunc("/upload", a.instrument("upload", a.upload))
	mux.HandleFunc("/series", a.instrument("series", a.series))
	mux.HandleFunc("/classification", a.instrument("classification", a.classification))
	mux.HandleFunc("/regressions", a.instrument("regressions", a.regressions))
	mux.HandleFunc("/summary", a.instrument("summary", a.summary))
	if a.Metrics != nil {
		mux.Handle("/metrics", a.Metrics.Handler())
	}
}

func (a *App) log() logrus.FieldLogger {
	if a.Log == nil {
		return logrus.StandardLogger()
	}
	return a.Log
}

// errorResponse is the JSON body of a failed request.
type errorResponse struct {
	Error      string               `json:"error"`
	Violations []benchrun.Violation `json:"violations,omitempty"`
}

// statusOf maps an error from the ingestion or query path to an HTTP
// status code.
func statusOf(err error) int {
	var (
		ve *benchrun.ValidationError
		nf *benchseries.NotFoundError
		ce *benchseries.ConflictError
		se *benchseries.StorageError
	)
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.As(err, &nf):
		return http.StatusNotFound
	case errors.As(err, &ce):
		return http.StatusConflict
	case errors.As(err, &se):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// httpError writes err as a JSON error response and logs server-side
// failures.
func (a *App) httpError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusOf(err)
	if code >= 500 || code == http.StatusConflict {
		a.log().WithFields(logrus.Fields{"path": r.URL.Path, "status": code}).Error(err)
	}
	resp := errorResponse{Error: err.Error()}
	var ve *benchrun.ValidationError
	if errors.As(err, &ve) {
		resp.Violations = ve.Violations
	}
	writeJSON(w, code, resp)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}
