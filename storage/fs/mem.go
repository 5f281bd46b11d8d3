// Copyright 2016 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fs

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemFS is an in-memory filesystem implementing the FS interface.
type MemFS struct {
	mu      sync.Mutex
	content map[string]*memFile
}

type memFile struct {
	data []byte
	gen  int64
}

// NewMemFS constructs a new, empty MemFS.
func NewMemFS() *MemFS {
	return &MemFS{
		content: make(map[string]*memFile),
	}
}

func (fs *MemFS) ReadFile(ctx context.Context, name string) ([]byte, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	f := fs.content[name]
	if f == nil {
		return nil, 0, ErrNotExist
	}
	return append([]byte(nil), f.data...), f.gen, nil
}

func (fs *MemFS) WriteFile(ctx context.Context, name string, data []byte, gen int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	var cur int64
	if f := fs.content[name]; f != nil {
		cur = f.gen
	}
	if cur != gen {
		return 0, ErrPrecondition
	}
	fs.content[name] = &memFile{append([]byte(nil), data...), cur + 1}
	return cur + 1, nil
}

func (fs *MemFS) List(ctx context.Context, prefix string) ([]string, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	var names []string
	for name := range fs.content {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Files returns the names of the files written to fs.
func (fs *MemFS) Files() []string {
	names, _ := fs.List(context.Background(), "")
	return names
}
