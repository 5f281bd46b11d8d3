// Copyright 2016 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package db stores benchmark series snapshots in a SQL database.
// It implements benchseries.Backend.
package db

import (
	"bytes"
	"context"
	"database/sql"
	"sort"
	"strings"
	"text/template"

	"github.com/pkg/errors"
	"golang.org/x/benchtrack/benchseries"
)

// DB is a SQL-backed benchseries.Backend. Every saved snapshot is
// also appended to a history table. It's safe for concurrent use by
// multiple goroutines and by multiple processes sharing a database.
type DB struct {
	sql *sql.DB // underlying database connection
	// prepared statements
	loadSnapshot   *sql.Stmt
	insertSnapshot *sql.Stmt
	updateSnapshot *sql.Stmt
	insertHistory  *sql.Stmt
}

var (
	_ benchseries.Backend = (*DB)(nil)
	_ benchseries.Lister  = (*DB)(nil)
)

// OpenSQL creates a DB backed by a SQL database. The parameters are
// the same as the parameters for sql.Open. Only mysql and sqlite3 are
// explicitly supported; other database engines will receive MySQL
// query syntax which may or may not be compatible.
func OpenSQL(driverName, dataSourceName string) (*DB, error) {
	db, err := sql.Open(driverName, dataSourceName)
	if err != nil {
		return nil, err
	}
	if hook := openHooks[driverName]; hook != nil {
		if err := hook(db); err != nil {
			db.Close()
			return nil, err
		}
	}
	d := &DB{sql: db}
	if err := d.createTables(driverName); err != nil {
		db.Close()
		return nil, err
	}
	if err := d.prepareStatements(); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

var openHooks = make(map[string]func(*sql.DB) error)

// RegisterOpenHook registers a hook to be called after opening a connection to driverName.
// This is used by the sqlite3 package to register a ConnectHook.
// It must be called from an init function.
func RegisterOpenHook(driverName string, hook func(*sql.DB) error) {
	openHooks[driverName] = hook
}

// createTmpl is the template used to prepare the CREATE statements
// for the database. It is evaluated with . as a map containing one
// entry whose key is the driver name.
var createTmpl = template.Must(template.New("create").Parse(`
CREATE TABLE IF NOT EXISTS Snapshots (
	GroupKey VARCHAR(255) NOT NULL PRIMARY KEY,
	Version BIGINT NOT NULL,
	Content {{if .sqlite3}}BLOB{{else}}LONGBLOB{{end}}
);
CREATE TABLE IF NOT EXISTS SnapshotHistory (
	GroupKey VARCHAR(255) NOT NULL,
	Version BIGINT NOT NULL,
	Content {{if .sqlite3}}BLOB{{else}}LONGBLOB{{end}},
	PRIMARY KEY (GroupKey, Version),
	FOREIGN KEY (GroupKey) REFERENCES Snapshots(GroupKey) ON UPDATE CASCADE ON DELETE CASCADE
);
`))

// createTables creates any missing tables on the connection in
// db.sql. driverName is the same driver name passed to sql.Open and
// is used to select the correct syntax.
func (db *DB) createTables(driverName string) error {
	var buf bytes.Buffer
	if err := createTmpl.Execute(&buf, map[string]bool{driverName: true}); err != nil {
		return err
	}
	for _, q := range strings.Split(buf.String(), ";") {
		if strings.TrimSpace(q) == "" {
			continue
		}
		if _, err := db.sql.Exec(q); err != nil {
			return errors.Wrap(err, "create table")
		}
	}
	return nil
}

// prepareStatements calls db.sql.Prepare on reusable SQL statements.
func (db *DB) prepareStatements() error {
	for _, s := range []struct {
		stmt  **sql.Stmt
		query string
	}{
		{&db.loadSnapshot, "SELECT Version, Content FROM Snapshots WHERE GroupKey = ?"},
		{&db.insertSnapshot, "INSERT INTO Snapshots(GroupKey, Version, Content) VALUES (?, 1, ?)"},
		{&db.updateSnapshot, "UPDATE Snapshots SET Version = ?, Content = ? WHERE GroupKey = ? AND Version = ?"},
		{&db.insertHistory, "INSERT INTO SnapshotHistory(GroupKey, Version, Content) VALUES (?, ?, ?)"},
	} {
		stmt, err := db.sql.Prepare(s.query)
		if err != nil {
			return errors.Wrapf(err, "prepare %q", s.query)
		}
		*s.stmt = stmt
	}
	return nil
}

// Load returns the current snapshot of groupKey.
func (db *DB) Load(ctx context.Context, groupKey string) (*benchseries.Snapshot, error) {
	var (
		version int64
		content []byte
	)
	err := db.loadSnapshot.QueryRowContext(ctx, groupKey).Scan(&version, &content)
	if err == sql.ErrNoRows {
		return nil, benchseries.ErrNotExist
	}
	if err != nil {
		return nil, errors.Wrapf(err, "loading group %q", groupKey)
	}
	s, err := benchseries.UnmarshalSnapshot(content)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding group %q", groupKey)
	}
	s.Version = version
	return s, nil
}

// Save stores s as version expectedVersion+1 of groupKey, provided
// the stored version is still expectedVersion.
func (db *DB) Save(ctx context.Context, groupKey string, s *benchseries.Snapshot, expectedVersion int64) (version int64, err error) {
	content, err := benchseries.MarshalSnapshot(s)
	if err != nil {
		return 0, err
	}
	version = expectedVersion + 1

	tx, err := db.sql.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "begin")
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		} else if cerr := tx.Commit(); cerr != nil {
			version, err = 0, errors.Wrap(cerr, "commit")
		}
	}()

	if expectedVersion == 0 {
		if _, err := tx.StmtContext(ctx, db.insertSnapshot).ExecContext(ctx, groupKey, content); err != nil {
			// A concurrent creator wins with a duplicate key
			// error, whose form depends on the driver. Tell
			// it apart from other failures by looking.
			tx.Rollback()
			if _, lerr := db.Load(ctx, groupKey); lerr == nil {
				return 0, benchseries.ErrConflict
			}
			return 0, errors.Wrapf(err, "creating group %q", groupKey)
		}
	} else {
		res, err := tx.StmtContext(ctx, db.updateSnapshot).ExecContext(ctx, version, content, groupKey, expectedVersion)
		if err != nil {
			return 0, errors.Wrapf(err, "updating group %q", groupKey)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, errors.Wrap(err, "rows affected")
		}
		if n == 0 {
			return 0, benchseries.ErrConflict
		}
	}
	if _, err := tx.StmtContext(ctx, db.insertHistory).ExecContext(ctx, groupKey, version, content); err != nil {
		return 0, errors.Wrapf(err, "recording history of group %q", groupKey)
	}
	return version, nil
}

// Groups returns the sorted group keys stored in db.
func (db *DB) Groups(ctx context.Context) ([]string, error) {
	rows, err := db.sql.QueryContext(ctx, "SELECT GroupKey FROM Snapshots")
	if err != nil {
		return nil, errors.Wrap(err, "listing groups")
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}

// History returns the versions of groupKey that were ever saved,
// oldest first.
func (db *DB) History(ctx context.Context, groupKey string) ([]int64, error) {
	rows, err := db.sql.QueryContext(ctx, "SELECT Version FROM SnapshotHistory WHERE GroupKey = ? ORDER BY Version", groupKey)
	if err != nil {
		return nil, errors.Wrapf(err, "history of group %q", groupKey)
	}
	defer rows.Close()
	var versions []int64
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// LoadVersion returns the snapshot of groupKey as it was saved at
// version.
func (db *DB) LoadVersion(ctx context.Context, groupKey string, version int64) (*benchseries.Snapshot, error) {
	var content []byte
	err := db.sql.QueryRowContext(ctx, "SELECT Content FROM SnapshotHistory WHERE GroupKey = ? AND Version = ?", groupKey, version).Scan(&content)
	if err == sql.ErrNoRows {
		return nil, benchseries.ErrNotExist
	}
	if err != nil {
		return nil, errors.Wrapf(err, "loading group %q version %d", groupKey, version)
	}
	s, err := benchseries.UnmarshalSnapshot(content)
	if err != nil {
		return nil, err
	}
	s.Version = version
	return s, nil
}

// CountSnapshots returns the number of groups stored in db.
func (db *DB) CountSnapshots() (int, error) {
	var n int
	err := db.sql.QueryRow("SELECT COUNT(*) FROM Snapshots").Scan(&n)
	return n, err
}

// Close closes the database connections, releasing any open resources.
func (db *DB) Close() error {
	for _, stmt := range []*sql.Stmt{db.loadSnapshot, db.insertSnapshot, db.updateSnapshot, db.insertHistory} {
		if stmt == nil {
			continue
		}
		if err := stmt.Close(); err != nil {
			return err
		}
	}
	return db.sql.Close()
}
