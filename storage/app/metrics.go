// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package app

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/benchtrack/benchingest"
)

// DefaultMaxGroups is the default of Metrics.MaxGroups.
const DefaultMaxGroups = 100

// otherGroup labels the groups beyond Metrics.MaxGroups.
const otherGroup = "_other"

// Metrics holds the Prometheus collectors of an App.
type Metrics struct {
	// MaxGroups bounds the number of distinct group labels. Groups
	// first seen after the bound is reached are counted under
	// "_other". Zero means DefaultMaxGroups.
	MaxGroups int

	mu     sync.Mutex
	groups map[string]bool // groups with their own label

	registry *prometheus.Registry

	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	appended *prometheus.CounterVec
	skipped  *prometheus.CounterVec
	verdicts *prometheus.CounterVec
}

// NewMetrics returns Metrics registered on a fresh registry, which
// also carries the Go runtime and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "benchtrack",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by handler and status code",
		}, []string{"handler", "code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "benchtrack",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15), // from 1ms to ~16s
		}, []string{"handler"}),
		appended: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "benchtrack",
			Subsystem: "ingest",
			Name:      "points_appended_total",
			Help:      "Total number of benchmark points appended",
		}, []string{"group"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "benchtrack",
			Subsystem: "ingest",
			Name:      "points_skipped_total",
			Help:      "Total number of benchmark points skipped as already recorded",
		}, []string{"group"}),
		verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "benchtrack",
			Subsystem: "ingest",
			Name:      "classifications_total",
			Help:      "Total number of classifications of newly ingested points by status",
		}, []string{"group", "status"}),
	}
	m.registry.MustRegister(
		m.requests, m.latency, m.appended, m.skipped, m.verdicts,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry holding m's collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves m's registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// groupLabel returns the label value for group.
func (m *Metrics) groupLabel(group string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.groups[group] {
		return group
	}
	max := m.MaxGroups
	if max <= 0 {
		max = DefaultMaxGroups
	}
	if len(m.groups) >= max {
		return otherGroup
	}
	if m.groups == nil {
		m.groups = make(map[string]bool)
	}
	m.groups[group] = true
	return group
}

func (m *Metrics) observeReport(rep *benchingest.Report) {
	group := m.groupLabel(rep.Group)
	appended := len(rep.Append.Appended())
	m.appended.WithLabelValues(group).Add(float64(appended))
	m.skipped.WithLabelValues(group).Add(float64(len(rep.Append.Points) - appended))
	for _, cl := range rep.Classifications {
		m.verdicts.WithLabelValues(group, string(cl.Status)).Inc()
	}
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument wraps h to count requests and their latency.
func (a *App) instrument(handler string, h http.HandlerFunc) http.HandlerFunc {
	if a.Metrics == nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		h(rec, r)
		a.Metrics.requests.WithLabelValues(handler, strconv.Itoa(rec.code)).Inc()
		a.Metrics.latency.WithLabelValues(handler).Observe(time.Since(start).Seconds())
	}
}
