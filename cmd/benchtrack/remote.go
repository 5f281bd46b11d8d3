// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/benchtrack/benchdetect"
	"golang.org/x/benchtrack/benchquery"
	"golang.org/x/benchtrack/benchrun"
	"golang.org/x/benchtrack/benchseries"
	"golang.org/x/benchtrack/storage"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// A querier answers series and regression queries, either from the
// local store or from a server.
type querier interface {
	Series(ctx context.Context, group, name string, r benchseries.Range) ([]benchquery.SeriesPoint, error)
	Regressions(ctx context.Context, group string, r benchseries.Range) ([]benchdetect.Classification, error)
}

type localQuerier struct {
	q *benchquery.Service
}

func (l localQuerier) Series(ctx context.Context, group, name string, r benchseries.Range) ([]benchquery.SeriesPoint, error) {
	return l.q.GetSeries(ctx, group, name, r)
}

func (l localQuerier) Regressions(ctx context.Context, group string, r benchseries.Range) ([]benchdetect.Classification, error) {
	return l.q.GetAllRegressionsSince(ctx, group, r)
}

// remoteFlags are shared by the commands that can talk to a server.
type remoteFlags struct {
	server string
	token  string
	google bool
}

func (f *remoteFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.server, "server", os.Getenv("BENCHTRACK_SERVER"), "base `URL` of a benchtrack server")
	cmd.Flags().StringVar(&f.token, "token", os.Getenv("BENCHTRACK_TOKEN"), "bearer `token` sent to the server")
	cmd.Flags().BoolVar(&f.google, "google", false, "authenticate to the server with Google application default credentials")
}

func (f *remoteFlags) tokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	switch {
	case f.token != "" && f.google:
		return nil, fmt.Errorf("--token and --google are mutually exclusive")
	case f.token != "":
		return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: f.token, TokenType: "Bearer"}), nil
	case f.google:
		return google.DefaultTokenSource(ctx, "https://www.googleapis.com/auth/userinfo.email")
	}
	return nil, nil
}

func (f *remoteFlags) client(ctx context.Context) (*storage.Client, error) {
	ts, err := f.tokenSource(ctx)
	if err != nil {
		return nil, err
	}
	return storage.NewClient(ctx, f.server, ts), nil
}

// querier returns a server client if --server is set and a query
// service over the local store otherwise.
func (f *remoteFlags) querier(ctx context.Context) (querier, func() error, error) {
	if f.server != "" {
		c, err := f.client(ctx)
		if err != nil {
			return nil, nil, err
		}
		return c, func() error { return nil }, nil
	}
	st, closeStore, err := openStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	return localQuerier{benchquery.NewService(st, cfg.DetectorConfig(warnf))}, closeStore, nil
}

// rangeFlags select part of a series.
type rangeFlags struct {
	since, until string
	from, to     string
}

func (f *rangeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.since, "since", "", "only results at or after `time` (RFC 3339 or git date)")
	cmd.Flags().StringVar(&f.until, "until", "", "only results at or before `time`")
	cmd.Flags().StringVar(&f.from, "from", "", "only results at or after commit `sha`")
	cmd.Flags().StringVar(&f.to, "to", "", "only results at or before commit `sha`")
}

func (f *rangeFlags) parse() (benchseries.Range, error) {
	r := benchseries.Range{FromSHA: f.from, ToSHA: f.to}
	for _, p := range []struct {
		flag string
		in   string
		out  *time.Time
	}{{"since", f.since, &r.Since}, {"until", f.until, &r.Until}} {
		if p.in == "" {
			continue
		}
		t, err := benchrun.ParseTime(p.in)
		if err != nil {
			return r, fmt.Errorf("--%s: %w", p.flag, err)
		}
		*p.out = t
	}
	return r, nil
}
