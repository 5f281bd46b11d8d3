// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package benchseries

import (
	"context"
	"sort"
	"sync"
)

// A Backend persists one Snapshot per group key.
//
// Implementations must be safe for concurrent use and must make Save
// atomic: a concurrent Load observes either the previous or the new
// snapshot, never a mix. Load must return a Snapshot the caller may
// modify freely.
type Backend interface {
	// Load returns the current snapshot of groupKey with its
	// Version set, or an error wrapping ErrNotExist.
	Load(ctx context.Context, groupKey string) (*Snapshot, error)

	// Save stores s as the new snapshot of groupKey if the stored
	// version is still expectedVersion (0 meaning "absent"), and
	// returns the new version. Otherwise it returns an error
	// wrapping ErrConflict and stores nothing.
	Save(ctx context.Context, groupKey string, s *Snapshot, expectedVersion int64) (int64, error)
}

// A Lister is a Backend that can enumerate its group keys.
type Lister interface {
	Groups(ctx context.Context) ([]string, error)
}

// MemBackend is an in-memory Backend. The zero value is ready to use.
// Snapshots are kept encoded, so every Load returns an independent
// copy.
type MemBackend struct {
	mu   sync.Mutex
	docs map[string]memDoc
}

type memDoc struct {
	data    []byte
	version int64
}

var _ Backend = (*MemBackend)(nil)
var _ Lister = (*MemBackend)(nil)

func (m *MemBackend) Load(ctx context.Context, groupKey string) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	doc, ok := m.docs[groupKey]
	m.mu.Unlock()
	if !ok {
		return nil, ErrNotExist
	}
	s, err := UnmarshalSnapshot(doc.data)
	if err != nil {
		return nil, err
	}
	s.Version = doc.version
	return s, nil
}

func (m *MemBackend) Save(ctx context.Context, groupKey string, s *Snapshot, expectedVersion int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	data, err := MarshalSnapshot(s)
	if err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.docs == nil {
		m.docs = make(map[string]memDoc)
	}
	if m.docs[groupKey].version != expectedVersion {
		return 0, ErrConflict
	}
	v := expectedVersion + 1
	m.docs[groupKey] = memDoc{data, v}
	return v, nil
}

func (m *MemBackend) Groups(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.docs))
	for k := range m.docs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}
