// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fs

import (
	"context"
	"errors"
	"net/url"
	"sort"
	"strings"

	pkgerrors "github.com/pkg/errors"
	"golang.org/x/benchtrack/benchseries"
)

const (
	groupDir = "groups/"
	groupExt = ".json"
)

// Backend stores each group's snapshot as one file in an FS, using
// the file generation as the snapshot version.
type Backend struct {
	FS FS
}

var (
	_ benchseries.Backend = (*Backend)(nil)
	_ benchseries.Lister  = (*Backend)(nil)
)

// NewBackend returns a Backend storing snapshots in fs.
func NewBackend(fs FS) *Backend {
	return &Backend{FS: fs}
}

// FileName returns the name of the file holding groupKey's snapshot.
func FileName(groupKey string) string {
	return groupDir + url.PathEscape(groupKey) + groupExt
}

func (b *Backend) Load(ctx context.Context, groupKey string) (*benchseries.Snapshot, error) {
	name := FileName(groupKey)
	data, gen, err := b.FS.ReadFile(ctx, name)
	if errors.Is(err, ErrNotExist) {
		return nil, benchseries.ErrNotExist
	}
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "reading %s", name)
	}
	s, err := benchseries.UnmarshalSnapshot(data)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "decoding %s", name)
	}
	s.Version = gen
	return s, nil
}

func (b *Backend) Save(ctx context.Context, groupKey string, s *benchseries.Snapshot, expectedVersion int64) (int64, error) {
	data, err := benchseries.MarshalSnapshot(s)
	if err != nil {
		return 0, err
	}
	name := FileName(groupKey)
	gen, err := b.FS.WriteFile(ctx, name, data, expectedVersion)
	if errors.Is(err, ErrPrecondition) {
		return 0, benchseries.ErrConflict
	}
	if err != nil {
		return 0, pkgerrors.Wrapf(err, "writing %s", name)
	}
	return gen, nil
}

func (b *Backend) Groups(ctx context.Context) ([]string, error) {
	names, err := b.FS.List(ctx, groupDir)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "listing groups")
	}
	var keys []string
	for _, name := range names {
		esc := strings.TrimSuffix(strings.TrimPrefix(name, groupDir), groupExt)
		if strings.Contains(esc, "/") || !strings.HasSuffix(name, groupExt) {
			continue
		}
		key, err := url.PathUnescape(esc)
		if err != nil {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}
