// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/collectors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/benchtrack/benchingest"
	"golang.org/x/benchtrack/benchquery"
	"golang.org/x/benchtrack/storage/app"
	"golang.org/x/net/netutil"
)

var (
	serveAddr  string
	serveToken string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	Long: `Serve exposes ingestion and queries over HTTP:

	POST /upload          record a Run payload
	GET  /series          one benchmark's history
	GET  /classification  latest classification of one benchmark
	GET  /regressions     regressions in a range
	GET  /summary         latest classification of every benchmark
	GET  /metrics         Prometheus metrics

If --token is set, /upload requires it as a bearer token.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "serve HTTP on `address` (default from configuration)")
	serveCmd.Flags().StringVar(&serveToken, "token", os.Getenv("BENCHTRACK_TOKEN"), "bearer `token` required for uploads")
}

// bearerAuth returns an App.Auth function accepting only token.
func bearerAuth(token string) func(http.ResponseWriter, *http.Request) (string, error) {
	return func(w http.ResponseWriter, r *http.Request) (string, error) {
		got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			w.Header().Set("WWW-Authenticate", `Bearer realm="benchtrack"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return "", app.ErrResponseWritten
		}
		return "token", nil
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	det := cfg.DetectorConfig(warnf)
	a := &app.App{
		Ingester:     &benchingest.Ingester{Store: st, Detector: det},
		Query:        benchquery.NewService(st, det),
		DefaultGroup: cfg.Group,
		Log:          log.StandardLogger(),
		Metrics:      app.NewMetrics(),
	}
	a.Metrics.Registry().MustRegister(collectors.NewBuildInfoCollector())
	if serveToken != "" {
		a.Auth = bearerAuth(serveToken)
	}
	mux := http.NewServeMux()
	a.RegisterOnMux(mux)

	addr := serveAddr
	if addr == "" {
		addr = cfg.Server.Addr
	}
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	if cfg.Server.MaxConns > 0 {
		l = netutil.LimitListener(l, cfg.Server.MaxConns)
	}
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(l) }()
	log.WithFields(log.Fields{
		"addr":      l.Addr().String(),
		"backend":   cfg.Storage.Backend,
		"max_conns": cfg.Server.MaxConns,
	}).Info("listening")

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
