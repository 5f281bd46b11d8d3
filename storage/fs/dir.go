// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fs

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	iofs "io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// DirFS is an FS rooted at a local directory. Several processes may
// share a directory: writes are serialized by a lock file next to
// the target and land with an atomic rename.
//
// Each file begins with a "generation: N" line followed by the
// contents.
type DirFS struct {
	root string

	// StaleLock is the age after which a leftover lock file is
	// assumed to belong to a crashed writer and is removed.
	StaleLock time.Duration
}

// NewDirFS returns a DirFS rooted at dir, creating dir if needed.
func NewDirFS(dir string) (*DirFS, error) {
	if err := os.MkdirAll(dir, 0o777); err != nil {
		return nil, err
	}
	return &DirFS{root: dir, StaleLock: time.Minute}, nil
}

const (
	genPrefix  = "generation: "
	lockSuffix = ".lock"
	tmpSuffix  = ".tmp"
)

func (d *DirFS) path(name string) (string, error) {
	if !iofs.ValidPath(name) || strings.HasSuffix(name, lockSuffix) || strings.HasSuffix(name, tmpSuffix) {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	return filepath.Join(d.root, filepath.FromSlash(name)), nil
}

func (d *DirFS) ReadFile(ctx context.Context, name string) ([]byte, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	p, err := d.path(name)
	if err != nil {
		return nil, 0, err
	}
	return readGen(p)
}

func readGen(path string) ([]byte, int64, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, 0, ErrNotExist
	}
	if err != nil {
		return nil, 0, err
	}
	line, rest, ok := bytes.Cut(raw, []byte("\n"))
	var gen int64
	if !ok || !bytes.HasPrefix(line, []byte(genPrefix)) {
		return nil, 0, fmt.Errorf("%s: missing generation header", path)
	}
	if _, err := fmt.Sscan(string(line[len(genPrefix):]), &gen); err != nil || gen <= 0 {
		return nil, 0, fmt.Errorf("%s: bad generation header %q", path, line)
	}
	return rest, gen, nil
}

func (d *DirFS) WriteFile(ctx context.Context, name string, data []byte, gen int64) (int64, error) {
	p, err := d.path(name)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o777); err != nil {
		return 0, err
	}
	unlock, err := d.lock(ctx, p+lockSuffix)
	if err != nil {
		return 0, err
	}
	defer unlock()

	_, cur, err := readGen(p)
	if err == ErrNotExist {
		cur, err = 0, nil
	}
	if err != nil {
		return 0, err
	}
	if cur != gen {
		return 0, ErrPrecondition
	}

	tmp := p + tmpSuffix
	f, err := os.Create(tmp)
	if err != nil {
		return 0, err
	}
	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "%s%d\n", genPrefix, cur+1)
	w.Write(data)
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return 0, err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return 0, err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return 0, err
	}
	if err := os.Rename(tmp, p); err != nil {
		os.Remove(tmp)
		return 0, err
	}
	return cur + 1, nil
}

// lock creates path exclusively, waiting while another writer holds
// it, and returns a function that removes it.
func (d *DirFS) lock(ctx context.Context, path string) (func(), error) {
	for {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o666)
		if err == nil {
			f.Close()
			return func() { os.Remove(path) }, nil
		}
		if !os.IsExist(err) {
			return nil, err
		}
		if d.breakStale(path) {
			continue
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(5 * time.Millisecond):
		}
	}
}

// breakStale removes the lock at path if it is older than StaleLock
// and reports whether it did. The lock is first renamed aside so that
// of several writers racing to break it only one succeeds, and a lock
// that turns out to be fresh after the rename is put back.
func (d *DirFS) breakStale(path string) bool {
	if d.StaleLock <= 0 {
		return false
	}
	fi, err := os.Stat(path)
	if err != nil || time.Since(fi.ModTime()) <= d.StaleLock {
		return false
	}
	aside := fmt.Sprintf("%s.%d.%d%s", path, os.Getpid(), time.Now().UnixNano(), lockSuffix)
	if err := os.Rename(path, aside); err != nil {
		// Someone else broke or released it.
		return false
	}
	defer os.Remove(aside)
	if fi, err := os.Stat(aside); err == nil && time.Since(fi.ModTime()) <= d.StaleLock {
		// A new holder took the lock after our first look.
		// Restore it unless yet another writer already has.
		os.Link(aside, path)
		return false
	}
	return true
}

func (d *DirFS) List(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	err := filepath.WalkDir(d.root, func(path string, e iofs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if e.IsDir() || strings.HasSuffix(path, lockSuffix) || strings.HasSuffix(path, tmpSuffix) {
			return nil
		}
		rel, err := filepath.Rel(d.root, path)
		if err != nil {
			return err
		}
		if name := filepath.ToSlash(rel); strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}
