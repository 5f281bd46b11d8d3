// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/benchtrack/benchrun"
	"golang.org/x/benchtrack/benchseries"
)

func testFS(t *testing.T, fs FS) {
	ctx := context.Background()

	if _, _, err := fs.ReadFile(ctx, "a/b"); !errors.Is(err, ErrNotExist) {
		t.Fatalf("ReadFile(missing) = %v, want ErrNotExist", err)
	}
	if _, err := fs.WriteFile(ctx, "a/b", []byte("x"), 3); !errors.Is(err, ErrPrecondition) {
		t.Fatalf("WriteFile(missing, gen 3) = %v, want ErrPrecondition", err)
	}
	g1, err := fs.WriteFile(ctx, "a/b", []byte("first\n"), 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fs.WriteFile(ctx, "a/b", []byte("lost"), 0); !errors.Is(err, ErrPrecondition) {
		t.Errorf("second create = %v, want ErrPrecondition", err)
	}
	g2, err := fs.WriteFile(ctx, "a/b", []byte("second\n"), g1)
	if err != nil {
		t.Fatal(err)
	}
	if g2 == g1 {
		t.Errorf("generation did not change on write")
	}
	data, gen, err := fs.ReadFile(ctx, "a/b")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "second\n" || gen != g2 {
		t.Errorf("ReadFile = %q, %d, want %q, %d", data, gen, "second\n", g2)
	}
	if _, err := fs.WriteFile(ctx, "a/b", []byte("stale"), g1); !errors.Is(err, ErrPrecondition) {
		t.Errorf("stale write = %v, want ErrPrecondition", err)
	}
	if _, err := fs.WriteFile(ctx, "c", nil, 0); err != nil {
		t.Fatal(err)
	}
	names, err := fs.List(ctx, "a/")
	if err != nil {
		t.Fatal(err)
	}
	if !cmp.Equal(names, []string{"a/b"}) {
		t.Errorf("List(a/) = %v, want [a/b]", names)
	}
	names, _ = fs.List(ctx, "")
	if !cmp.Equal(names, []string{"a/b", "c"}) {
		t.Errorf("List() = %v, want [a/b c]", names)
	}
}

func TestMemFS(t *testing.T) {
	testFS(t, NewMemFS())
}

func TestDirFS(t *testing.T) {
	d, err := NewDirFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	testFS(t, d)
}

func TestDirFSConcurrentWriters(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	// Separate DirFS values over one directory stand in for
	// separate processes.
	var writers []*DirFS
	for i := 0; i < 4; i++ {
		d, err := NewDirFS(dir)
		if err != nil {
			t.Fatal(err)
		}
		writers = append(writers, d)
	}
	const perWriter = 10
	var wg sync.WaitGroup
	for _, d := range writers {
		wg.Add(1)
		go func(d *DirFS) {
			defer wg.Done()
			for n := 0; n < perWriter; {
				data, gen, err := d.ReadFile(ctx, "counter")
				if err != nil && !errors.Is(err, ErrNotExist) {
					t.Error(err)
					return
				}
				if _, err := d.WriteFile(ctx, "counter", append(data, 'x'), gen); err == nil {
					n++
				} else if !errors.Is(err, ErrPrecondition) {
					t.Error(err)
					return
				}
			}
		}(d)
	}
	wg.Wait()
	data, gen, err := writers[0].ReadFile(ctx, "counter")
	if err != nil {
		t.Fatal(err)
	}
	if want := len(writers) * perWriter; len(data) != want || gen != int64(want) {
		t.Errorf("after concurrent writes: %d bytes, generation %d, want %d", len(data), gen, want)
	}
}

func TestDirFSStaleLock(t *testing.T) {
	dir := t.TempDir()
	d, err := NewDirFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	lock := filepath.Join(dir, "f"+lockSuffix)
	if err := os.WriteFile(lock, nil, 0o666); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-time.Hour)
	if err := os.Chtimes(lock, old, old); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := d.WriteFile(ctx, "f", []byte("x"), 0); err != nil {
		t.Fatalf("WriteFile with stale lock: %v", err)
	}
}

func TestDirFSBreakStaleOnce(t *testing.T) {
	dir := t.TempDir()
	d, err := NewDirFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	lock := filepath.Join(dir, "f"+lockSuffix)

	// A fresh lock is left alone.
	if err := os.WriteFile(lock, nil, 0o666); err != nil {
		t.Fatal(err)
	}
	if d.breakStale(lock) {
		t.Errorf("breakStale broke a fresh lock")
	}
	if _, err := os.Stat(lock); err != nil {
		t.Fatalf("fresh lock gone: %v", err)
	}

	// Of several writers finding the same stale lock, only one
	// breaks it and nothing is left behind.
	old := time.Now().Add(-time.Hour)
	if err := os.Chtimes(lock, old, old); err != nil {
		t.Fatal(err)
	}
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		broken int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if d.breakStale(lock) {
				mu.Lock()
				broken++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if broken != 1 {
		t.Errorf("stale lock broken %d times, want 1", broken)
	}
	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range ents {
		t.Errorf("leftover file %s", e.Name())
	}
}

func TestDirFSHeldLock(t *testing.T) {
	dir := t.TempDir()
	d, err := NewDirFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "f"+lockSuffix), nil, 0o666); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := d.WriteFile(ctx, "f", []byte("x"), 0); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("WriteFile with held lock = %v, want DeadlineExceeded", err)
	}
}

func TestDirFSRejectsBadNames(t *testing.T) {
	d, err := NewDirFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"../escape", "/abs", "x.lock", "x.tmp", ""} {
		if _, err := d.WriteFile(context.Background(), name, nil, 0); err == nil || !strings.Contains(err.Error(), "invalid file name") {
			t.Errorf("WriteFile(%q) = %v, want invalid file name", name, err)
		}
	}
}

func TestBackend(t *testing.T) {
	ctx := context.Background()
	mem := NewMemFS()
	st := benchseries.NewStore(NewBackend(mem), nil)
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, sha := range []string{"a", "b"} {
		c := benchrun.Commit{SHA: sha, Timestamp: ts.Add(time.Duration(i) * time.Hour)}
		pts := []benchrun.Point{{Name: "BenchmarkX", Value: float64(10 + i), Unit: "nsec"}}
		if _, err := st.Append(ctx, "org/repo", c, "go", pts); err != nil {
			t.Fatal(err)
		}
	}
	if got, want := mem.Files(), []string{"groups/org%2Frepo.json"}; !cmp.Equal(got, want) {
		t.Errorf("files = %v, want %v", got, want)
	}
	s, err := st.Read(ctx, "org/repo", "BenchmarkX", benchseries.Range{})
	if err != nil {
		t.Fatal(err)
	}
	if got := s.Values(); !cmp.Equal(got, []float64{10, 11}) {
		t.Errorf("values = %v, want [10 11]", got)
	}
	groups, err := st.Groups(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !cmp.Equal(groups, []string{"org/repo"}) {
		t.Errorf("Groups() = %v, want [org/repo]", groups)
	}

	b := NewBackend(mem)
	snap, err := b.Load(ctx, "org/repo")
	if err != nil {
		t.Fatal(err)
	}
	if snap.Version != 2 {
		t.Errorf("Version = %d, want 2", snap.Version)
	}
	if _, err := b.Save(ctx, "org/repo", snap, 1); !errors.Is(err, benchseries.ErrConflict) {
		t.Errorf("stale Save = %v, want ErrConflict", err)
	}
	if _, err := b.Load(ctx, "missing"); !errors.Is(err, benchseries.ErrNotExist) {
		t.Errorf("Load(missing) = %v, want ErrNotExist", err)
	}
}
