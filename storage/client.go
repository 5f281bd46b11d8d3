// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package storage contains a client for the benchmark tracking
// server.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/benchtrack/benchdetect"
	"golang.org/x/benchtrack/benchingest"
	"golang.org/x/benchtrack/benchquery"
	"golang.org/x/benchtrack/benchrun"
	"golang.org/x/benchtrack/benchseries"
	"golang.org/x/oauth2"
)

// A Client issues queries to a benchmark tracking server.
// It is safe to use from multiple goroutines simultaneously.
type Client struct {
	// BaseURL is the base URL of the storage server.
	BaseURL string
	// HTTPClient is the HTTP client for sending requests. If nil,
	// http.DefaultClient will be used.
	HTTPClient *http.Client
}

// NewClient returns a Client for the server at baseURL that
// authenticates its requests with tokens from ts. A nil ts sends
// unauthenticated requests.
func NewClient(ctx context.Context, baseURL string, ts oauth2.TokenSource) *Client {
	c := &Client{BaseURL: strings.TrimSuffix(baseURL, "/")}
	if ts != nil {
		c.HTTPClient = oauth2.NewClient(ctx, ts)
	}
	return c
}

// httpClient returns the http.Client to use for requests.
func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

// An Error is a failed request reported by the server.
type Error struct {
	StatusCode int
	Message    string
	Violations []benchrun.Violation
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "server returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	return b.String()
}

// do sends req and decodes a successful JSON response into dst.
func (c *Client) do(req *http.Request, dst interface{}) error {
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		e := &Error{StatusCode: resp.StatusCode}
		var er struct {
			Error      string               `json:"error"`
			Violations []benchrun.Violation `json:"violations"`
		}
		if json.Unmarshal(body, &er) == nil {
			e.Message, e.Violations = er.Error, er.Violations
		} else {
			e.Message = strings.TrimSpace(string(body))
		}
		return e
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}

func (c *Client) get(ctx context.Context, path string, v url.Values, dst interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path+"?"+v.Encode(), nil)
	if err != nil {
		return err
	}
	return c.do(req, dst)
}

// Upload sends run to the server for ingestion into group.
func (c *Client) Upload(ctx context.Context, group string, run *benchrun.Run) (*benchingest.Report, error) {
	var buf bytes.Buffer
	if err := benchrun.EncodeRun(&buf, run); err != nil {
		return nil, err
	}
	u := c.BaseURL + "/upload?" + url.Values{"group": {group}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	var rep benchingest.Report
	if err := c.do(req, &rep); err != nil {
		return nil, err
	}
	return &rep, nil
}

func rangeValues(v url.Values, r benchseries.Range) url.Values {
	if !r.Since.IsZero() {
		v.Set("since", r.Since.Format(time.RFC3339Nano))
	}
	if !r.Until.IsZero() {
		v.Set("until", r.Until.Format(time.RFC3339Nano))
	}
	if r.FromSHA != "" {
		v.Set("from", r.FromSHA)
	}
	if r.ToSHA != "" {
		v.Set("to", r.ToSHA)
	}
	return v
}

// Series returns the measurements of name in group selected by r.
func (c *Client) Series(ctx context.Context, group, name string, r benchseries.Range) ([]benchquery.SeriesPoint, error) {
	var pts []benchquery.SeriesPoint
	err := c.get(ctx, "/series", rangeValues(url.Values{"group": {group}, "name": {name}}, r), &pts)
	return pts, err
}

// LatestClassification returns the classification of the latest
// measurement of name in group.
func (c *Client) LatestClassification(ctx context.Context, group, name string) (*benchdetect.Classification, error) {
	var cl benchdetect.Classification
	if err := c.get(ctx, "/classification", url.Values{"group": {group}, "name": {name}}, &cl); err != nil {
		return nil, err
	}
	return &cl, nil
}

// Regressions returns the regressions in group within r.
func (c *Client) Regressions(ctx context.Context, group string, r benchseries.Range) ([]benchdetect.Classification, error) {
	var regs []benchdetect.Classification
	err := c.get(ctx, "/regressions", rangeValues(url.Values{"group": {group}}, r), &regs)
	return regs, err
}

// Summary returns the latest classification of every series in group.
func (c *Client) Summary(ctx context.Context, group string) ([]benchdetect.Classification, error) {
	var sum []benchdetect.Classification
	err := c.get(ctx, "/summary", url.Values{"group": {group}}, &sum)
	return sum, err
}
