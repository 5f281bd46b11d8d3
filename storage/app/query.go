// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package app

import (
	"net/http"
	"time"

	"golang.org/x/benchtrack/benchdetect"
	"golang.org/x/benchtrack/benchrun"
	"golang.org/x/benchtrack/benchseries"
)

// group returns the group named by r's "group" parameter, or the
// default group.
func (a *App) group(r *http.Request) string {
	if g := r.FormValue("group"); g != "" {
		return g
	}
	return a.DefaultGroup
}

// parseRange reads a range from the "since", "until", "from" and
// "to" parameters of r.
func parseRange(r *http.Request) (benchseries.Range, error) {
	rng := benchseries.Range{
		FromSHA: r.FormValue("from"),
		ToSHA:   r.FormValue("to"),
	}
	e := new(benchrun.ValidationError)
	parse := func(key string, dst *time.Time) {
		v := r.FormValue(key)
		if v == "" {
			return
		}
		t, err := benchrun.ParseTime(v)
		if err != nil {
			e.Add(key, "%v", err)
			return
		}
		*dst = t
	}
	parse("since", &rng.Since)
	parse("until", &rng.Until)
	return rng, e.Err()
}

// queryParams reads the group, and optionally the name and range, of
// a query request. It reports violations as a *ValidationError.
func (a *App) queryParams(r *http.Request, needName bool) (group, name string, rng benchseries.Range, err error) {
	rng, err = parseRange(r)
	e, _ := err.(*benchrun.ValidationError)
	if e == nil {
		e = new(benchrun.ValidationError)
	}
	group = a.group(r)
	if group == "" {
		e.Add("group", "missing group parameter")
	}
	name = r.FormValue("name")
	if needName && name == "" {
		e.Add("name", "missing name parameter")
	}
	return group, name, rng, e.Err()
}

// isGET reports whether r is a GET request, answering 405 if not.
func isGET(w http.ResponseWriter, r *http.Request) bool {
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		return true
	}
	w.Header().Set("Allow", "GET, HEAD")
	http.Error(w, r.URL.Path+" must be called as a GET request", http.StatusMethodNotAllowed)
	return false
}

// series is the handler for /series. It responds with the
// {commit_sha, timestamp, value, unit} tuples of one series.
func (a *App) series(w http.ResponseWriter, r *http.Request) {
	if !isGET(w, r) {
		return
	}
	group, name, rng, err := a.queryParams(r, true)
	if err != nil {
		a.httpError(w, r, err)
		return
	}
	pts, err := a.Query.GetSeries(r.Context(), group, name, rng)
	if err != nil {
		a.httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pts)
}

// classification is the handler for /classification. It responds with
// the classification of the latest measurement of one series.
func (a *App) classification(w http.ResponseWriter, r *http.Request) {
	if !isGET(w, r) {
		return
	}
	group, name, _, err := a.queryParams(r, true)
	if err != nil {
		a.httpError(w, r, err)
		return
	}
	cl, err := a.Query.GetLatestClassification(r.Context(), group, name)
	if err != nil {
		a.httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cl)
}

// regressions is the handler for /regressions. It responds with every
// regression in the requested range of a group.
func (a *App) regressions(w http.ResponseWriter, r *http.Request) {
	if !isGET(w, r) {
		return
	}
	group, _, rng, err := a.queryParams(r, false)
	if err != nil {
		a.httpError(w, r, err)
		return
	}
	regs, err := a.Query.GetAllRegressionsSince(r.Context(), group, rng)
	if err != nil {
		a.httpError(w, r, err)
		return
	}
	if regs == nil {
		regs = []benchdetect.Classification{}
	}
	writeJSON(w, http.StatusOK, regs)
}

// summary is the handler for /summary. It responds with the latest
// classification of every series in a group.
func (a *App) summary(w http.ResponseWriter, r *http.Request) {
	if !isGET(w, r) {
		return
	}
	group, _, _, err := a.queryParams(r, false)
	if err != nil {
		a.httpError(w, r, err)
		return
	}
	sum, err := a.Query.Summary(r.Context(), group)
	if err != nil {
		a.httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}
