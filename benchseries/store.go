// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package benchseries

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/benchtrack/benchrun"
)

// Options configures a Store. The zero value of each field selects
// its default.
type Options struct {
	// MaxAttempts bounds how many times Append tries to save a
	// group after losing a compare-and-swap race. Default 8.
	MaxAttempts int

	// InitialInterval is the first backoff delay between
	// attempts. It grows exponentially. Default 20ms.
	InitialInterval time.Duration

	// MaxElapsedTime bounds the total time Append spends
	// retrying. Default 30s.
	MaxElapsedTime time.Duration

	// IOTimeout bounds each individual Load or Save. A Save that
	// times out is retried like a conflict; duplicate-commit
	// detection makes the retry safe even if the timed-out save
	// landed. Zero means no per-call timeout.
	IOTimeout time.Duration

	// Warn, if non-nil, is called for conditions that do not fail
	// an operation but should be reported.
	Warn func(format string, args ...interface{})

	// Now returns the current time. Default time.Now.
	Now func() time.Time
}

func (o *Options) withDefaults() Options {
	var out Options
	if o != nil {
		out = *o
	}
	if out.MaxAttempts <= 0 {
		out.MaxAttempts = 8
	}
	if out.InitialInterval <= 0 {
		out.InitialInterval = 20 * time.Millisecond
	}
	if out.MaxElapsedTime <= 0 {
		out.MaxElapsedTime = 30 * time.Second
	}
	if out.Warn == nil {
		out.Warn = func(string, ...interface{}) {}
	}
	if out.Now == nil {
		out.Now = time.Now
	}
	return out
}

// A Reader is the read-only view of a Store.
type Reader interface {
	Read(ctx context.Context, groupKey, name string, r Range) (*Series, error)
	ListNames(ctx context.Context, groupKey string) ([]string, error)
	Snapshot(ctx context.Context, groupKey string) (*Snapshot, error)
}

// A Store is an append-only, idempotent history of benchmark series
// on top of a Backend. It is safe for concurrent use by multiple
// goroutines, and several processes may share one Backend.
//
// Appends to one group key are serialized in-process and guarded by
// the Backend's compare-and-swap across processes. Reads never wait
// for appends; they see the last saved snapshot.
type Store struct {
	backend Backend
	opts    Options
	locks   *lockManager
}

var _ Reader = (*Store)(nil)

// NewStore returns a Store persisting to b. opts may be nil.
func NewStore(b Backend, opts *Options) *Store {
	return &Store{
		backend: b,
		opts:    opts.withDefaults(),
		locks:   newLockManager(),
	}
}

// A PointResult reports what Append did with one point.
type PointResult struct {
	Name     string `json:"name"`
	Appended bool   `json:"appended"` // false if the commit was already recorded
}

// An AppendResult reports the outcome of Append.
type AppendResult struct {
	GroupKey string        `json:"group"`
	Version  int64         `json:"version"`
	Points   []PointResult `json:"points"`
}

// Appended returns the names of the points that were newly recorded.
func (r *AppendResult) Appended() []string {
	var names []string
	for _, p := range r.Points {
		if p.Appended {
			names = append(names, p.Name)
		}
	}
	return names
}

// Append records points measured by tool at commit in groupKey's
// series, creating series as needed.
//
// A point whose series already holds an entry for commit.SHA is
// skipped, so re-ingesting the same run is a no-op. Append is
// all-or-nothing: if any point is invalid, names repeat, or a point's
// unit differs from its existing series, Append returns a
// *benchrun.ValidationError and stores nothing.
//
// Lost compare-and-swap races are retried with exponential backoff;
// if every attempt loses, Append returns a *ConflictError. Backend
// failures are returned as a *StorageError.
func (st *Store) Append(ctx context.Context, groupKey string, commit benchrun.Commit, tool string, points []benchrun.Point) (*AppendResult, error) {
	run := benchrun.Run{Commit: commit, Tool: tool, Benches: points}
	err := run.Validate()
	if msg := checkGroupKey(groupKey); msg != "" {
		ve, _ := err.(*benchrun.ValidationError)
		if ve == nil {
			ve = new(benchrun.ValidationError)
		}
		ve.Add("group", "%s", msg)
		err = ve
	}
	if err != nil {
		return nil, err
	}

	unlock := st.locks.lock(groupKey)
	defer unlock()

	var (
		res      *AppendResult
		attempts int
		lastErr  error

		// uncertain holds the points an earlier attempt tried to
		// save when the save timed out. It may have landed.
		uncertain = make(map[string]bool)
	)
	op := func() error {
		attempts++
		cur, err := st.load(ctx, groupKey)
		if errors.Is(err, ErrNotExist) {
			cur, err = NewSnapshot(groupKey), nil
		}
		if err != nil {
			lastErr = err
			if st.retryable(ctx, err) {
				return err
			}
			return backoff.Permanent(&StorageError{"load", groupKey, err})
		}
		next, r, err := st.apply(cur, commit, tool, points)
		if err != nil {
			return backoff.Permanent(err)
		}
		res = r
		inserted := len(r.Appended())
		for i, p := range r.Points {
			if !p.Appended && uncertain[p.Name] {
				// Our own timed-out save landed.
				r.Points[i].Appended = true
			}
		}
		if inserted == 0 {
			// Everything was already recorded.
			r.Version = cur.Version
			return nil
		}
		v, err := st.save(ctx, groupKey, next, cur.Version)
		if err != nil {
			lastErr = err
			if st.retryable(ctx, err) {
				if !errors.Is(err, ErrConflict) {
					for _, name := range r.Appended() {
						uncertain[name] = true
					}
				}
				return err
			}
			return backoff.Permanent(&StorageError{"save", groupKey, err})
		}
		r.Version = v
		return nil
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = st.opts.InitialInterval
	eb.MaxElapsedTime = st.opts.MaxElapsedTime
	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(st.opts.MaxAttempts-1)), ctx)
	notify := func(err error, d time.Duration) {
		st.opts.Warn("group %q: attempt %d failed (%v), retrying in %v", groupKey, attempts, err, d)
	}

	if err := backoff.RetryNotify(op, b, notify); err != nil {
		var ve *benchrun.ValidationError
		var se *StorageError
		switch {
		case errors.As(err, &ve), errors.As(err, &se):
			return nil, err
		case ctx.Err() != nil:
			return nil, &StorageError{"append", groupKey, ctx.Err()}
		}
		if lastErr == nil {
			lastErr = err
		}
		if !errors.Is(lastErr, ErrConflict) {
			// Every attempt timed out.
			return nil, &StorageError{"append", groupKey, lastErr}
		}
		return nil, &ConflictError{GroupKey: groupKey, Attempts: attempts, Err: lastErr}
	}
	return res, nil
}

// MaxGroupKeyLen is the longest group key Append accepts.
const MaxGroupKeyLen = 255

// checkGroupKey describes what is wrong with key, or returns "".
func checkGroupKey(key string) string {
	switch {
	case key == "":
		return "missing"
	case len(key) > MaxGroupKeyLen:
		return fmt.Sprintf("longer than %d bytes", MaxGroupKeyLen)
	case !utf8.ValidString(key):
		return "not valid UTF-8"
	}
	for _, r := range key {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return fmt.Sprintf("contains %q", r)
		}
	}
	return ""
}

// apply returns a copy of cur with points added, or a
// *benchrun.ValidationError if a point's unit disagrees with its
// series.
func (st *Store) apply(cur *Snapshot, commit benchrun.Commit, tool string, points []benchrun.Point) (*Snapshot, *AppendResult, error) {
	ve := new(benchrun.ValidationError)
	for i, p := range points {
		if ser := cur.Series[p.Name]; ser != nil && ser.Unit != p.Unit {
			ve.Add(fmt.Sprintf("benches[%d].unit", i), "unit %q of %q differs from its series unit %q", p.Unit, p.Name, ser.Unit)
		}
	}
	if err := ve.Err(); err != nil {
		return nil, nil, err
	}

	next := cur.Clone()
	res := &AppendResult{GroupKey: cur.Group}
	for _, p := range points {
		ser := next.Series[p.Name]
		if ser == nil {
			ser = &Series{Name: p.Name, Unit: p.Unit}
			next.Series[p.Name] = ser
		}
		if i := ser.Index(commit.SHA); i >= 0 {
			if old := ser.Entries[i]; old.Value != p.Value {
				st.opts.Warn("group %q: %s at %s already recorded as %v; ignoring %v", cur.Group, p.Name, commit.SHA, old.Value, p.Value)
			}
			res.Points = append(res.Points, PointResult{p.Name, false})
			continue
		}
		ser.insert(Entry{Commit: commit, Tool: tool, Point: p})
		res.Points = append(res.Points, PointResult{p.Name, true})
	}
	next.Updated = st.opts.Now().UTC()
	return next, res, nil
}

// retryable reports whether a failed load or save should be tried
// again: a lost race, or a per-call timeout while ctx is still live.
func (st *Store) retryable(ctx context.Context, err error) bool {
	if errors.Is(err, ErrConflict) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil
}

func (st *Store) ioContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if st.opts.IOTimeout > 0 {
		return context.WithTimeout(ctx, st.opts.IOTimeout)
	}
	return context.WithCancel(ctx)
}

func (st *Store) load(ctx context.Context, groupKey string) (*Snapshot, error) {
	ctx, cancel := st.ioContext(ctx)
	defer cancel()
	return st.backend.Load(ctx, groupKey)
}

func (st *Store) save(ctx context.Context, groupKey string, s *Snapshot, expected int64) (int64, error) {
	ctx, cancel := st.ioContext(ctx)
	defer cancel()
	return st.backend.Save(ctx, groupKey, s, expected)
}

// Snapshot returns the current state of groupKey. It returns a
// *NotFoundError if nothing was ever appended to the group.
func (st *Store) Snapshot(ctx context.Context, groupKey string) (*Snapshot, error) {
	s, err := st.load(ctx, groupKey)
	if errors.Is(err, ErrNotExist) {
		return nil, &NotFoundError{GroupKey: groupKey}
	}
	if err != nil {
		return nil, &StorageError{"load", groupKey, err}
	}
	return s, nil
}

// Read returns the entries of series name in groupKey that r
// selects, in order. It returns a *NotFoundError if the group, the
// series, or a commit named by r does not exist.
func (st *Store) Read(ctx context.Context, groupKey, name string, r Range) (*Series, error) {
	s, err := st.Snapshot(ctx, groupKey)
	if err != nil {
		return nil, err
	}
	return s.Select(name, r)
}

// ListNames returns the sorted benchmark names recorded in groupKey.
func (st *Store) ListNames(ctx context.Context, groupKey string) ([]string, error) {
	s, err := st.Snapshot(ctx, groupKey)
	if err != nil {
		return nil, err
	}
	return s.Names(), nil
}

// Groups returns the group keys known to the backend, if it
// implements Lister.
func (st *Store) Groups(ctx context.Context) ([]string, error) {
	l, ok := st.backend.(Lister)
	if !ok {
		return nil, fmt.Errorf("backend %T cannot list groups", st.backend)
	}
	groups, err := l.Groups(ctx)
	if err != nil {
		return nil, &StorageError{"list", "", err}
	}
	return groups, nil
}
