// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	log "github.com/sirupsen/logrus"
	"golang.org/x/benchtrack/benchseries"
	"golang.org/x/benchtrack/internal/config"
	"golang.org/x/benchtrack/storage/db"
	_ "golang.org/x/benchtrack/storage/db/sqlite3"
	"golang.org/x/benchtrack/storage/fs"
	"golang.org/x/benchtrack/storage/fs/gcs"
	"google.golang.org/api/option"
)

// openBackend opens the backing store selected by s. The returned
// function releases it.
func openBackend(ctx context.Context, s config.Storage) (benchseries.Backend, func() error, error) {
	nop := func() error { return nil }
	logger := log.WithField("backend", s.Backend)
	switch s.Backend {
	case "mem":
		logger.Warn("using in-memory storage; nothing will be persisted")
		return new(benchseries.MemBackend), nop, nil
	case "dir":
		d, err := fs.NewDirFS(s.Dir)
		if err != nil {
			return nil, nil, err
		}
		logger.WithField("dir", s.Dir).Debug("opened directory store")
		return fs.NewBackend(d), nop, nil
	case "sqlite3", "mysql":
		d, err := db.OpenSQL(s.Backend, s.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open database: %w", err)
		}
		logger.Debug("opened database")
		return d, d.Close, nil
	case "gcs":
		var opts []option.ClientOption
		if s.CredentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(s.CredentialsFile))
		}
		g, err := gcs.NewFS(ctx, s.Bucket, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("gcs.NewFS: %w", err)
		}
		logger.WithField("bucket", s.Bucket).Debug("opened bucket")
		return fs.NewBackend(g), nop, nil
	}
	return nil, nil, fmt.Errorf("unknown storage backend %q", s.Backend)
}

// openStore opens the configured series store.
func openStore(ctx context.Context) (*benchseries.Store, func() error, error) {
	b, closer, err := openBackend(ctx, cfg.Storage)
	if err != nil {
		return nil, nil, err
	}
	return benchseries.NewStore(b, cfg.StoreOptions(warnf)), closer, nil
}
