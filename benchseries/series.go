// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package benchseries stores the history of benchmark measurements.
//
// A Series is the ordered history of one benchmark across commits. A
// Snapshot holds every Series of one group key (typically a project)
// and is the unit of persistence: a Backend loads and saves whole
// Snapshots under optimistic concurrency control. Store layers
// idempotent, all-or-nothing appends on top of a Backend.
package benchseries

import (
	"sort"
	"time"

	"golang.org/x/benchtrack/benchrun"
)

// An Entry is one stored measurement: the point, and the commit and
// tool that produced it.
type Entry struct {
	Commit benchrun.Commit `json:"commit"`
	Tool   string          `json:"tool,omitempty"`
	benchrun.Point
}

// A Series is the history of one benchmark name, ordered by commit
// timestamp. Entries with equal timestamps keep the order in which
// they were appended. No two entries share a commit SHA.
type Series struct {
	Name    string  `json:"name"`
	Unit    string  `json:"unit"`
	Entries []Entry `json:"entries"`
}

// Len returns the number of entries in s.
func (s *Series) Len() int {
	return len(s.Entries)
}

// Index returns the position of the entry for commit sha, or -1.
func (s *Series) Index(sha string) int {
	for i := range s.Entries {
		if s.Entries[i].Commit.SHA == sha {
			return i
		}
	}
	return -1
}

// Values returns the measured values of s in order.
func (s *Series) Values() []float64 {
	vs := make([]float64, len(s.Entries))
	for i, e := range s.Entries {
		vs[i] = e.Value
	}
	return vs
}

// Last returns the most recent entry of s. It panics if s is empty.
func (s *Series) Last() Entry {
	return s.Entries[len(s.Entries)-1]
}

// insert adds e after every entry whose timestamp is not after e's.
func (s *Series) insert(e Entry) {
	ts := e.Commit.Timestamp
	i := sort.Search(len(s.Entries), func(i int) bool {
		return s.Entries[i].Commit.Timestamp.After(ts)
	})
	s.Entries = append(s.Entries, Entry{})
	copy(s.Entries[i+1:], s.Entries[i:])
	s.Entries[i] = e
}

// between returns a copy of s holding only the entries whose
// timestamps lie in [lo, hi]. A zero bound is unbounded.
func (s *Series) between(lo, hi time.Time) *Series {
	out := &Series{Name: s.Name, Unit: s.Unit}
	for _, e := range s.Entries {
		ts := e.Commit.Timestamp
		if !lo.IsZero() && ts.Before(lo) {
			continue
		}
		if !hi.IsZero() && ts.After(hi) {
			continue
		}
		out.Entries = append(out.Entries, e)
	}
	return out
}

func (s *Series) clone() *Series {
	return &Series{
		Name:    s.Name,
		Unit:    s.Unit,
		Entries: append([]Entry(nil), s.Entries...),
	}
}

// A Range selects part of a series. Every bound is inclusive and a
// zero bound is unbounded. FromSHA and ToSHA are resolved to their
// commit timestamps within the group.
type Range struct {
	Since, Until   time.Time
	FromSHA, ToSHA string
}

// IsZero reports whether r selects everything.
func (r Range) IsZero() bool {
	return r.Since.IsZero() && r.Until.IsZero() && r.FromSHA == "" && r.ToSHA == ""
}

// A Snapshot is the complete stored state of one group key.
type Snapshot struct {
	// Schema is the version of the persisted document layout.
	Schema int `json:"schema"`

	Group  string             `json:"group"`
	Series map[string]*Series `json:"series"`

	// Updated is the time of the last successful append.
	Updated time.Time `json:"updated,omitempty"`

	// Version is the backend's version token for this snapshot.
	// It is 0 for a group that has never been saved. Version is
	// not part of the document.
	Version int64 `json:"-"`
}

// NewSnapshot returns an empty snapshot for group.
func NewSnapshot(group string) *Snapshot {
	return &Snapshot{
		Schema: SchemaVersion,
		Group:  group,
		Series: make(map[string]*Series),
	}
}

// Names returns the sorted benchmark names in s.
func (s *Snapshot) Names() []string {
	names := make([]string, 0, len(s.Series))
	for n := range s.Series {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Clone returns a copy of s whose series can be modified without
// affecting s. Entries themselves are shared; they are never modified
// in place.
func (s *Snapshot) Clone() *Snapshot {
	c := *s
	c.Series = make(map[string]*Series, len(s.Series))
	for n, ser := range s.Series {
		c.Series[n] = ser.clone()
	}
	return &c
}

// CommitTime returns the timestamp of commit sha in any series of s.
func (s *Snapshot) CommitTime(sha string) (time.Time, bool) {
	for _, ser := range s.Series {
		if i := ser.Index(sha); i >= 0 {
			return ser.Entries[i].Commit.Timestamp, true
		}
	}
	return time.Time{}, false
}

// Bounds resolves r against s and returns the timestamp interval it
// selects. It returns a *NotFoundError if r names an unknown commit.
func (s *Snapshot) Bounds(r Range) (lo, hi time.Time, err error) {
	lo, hi = r.Since, r.Until
	if r.FromSHA != "" {
		t, ok := s.CommitTime(r.FromSHA)
		if !ok {
			return lo, hi, &NotFoundError{GroupKey: s.Group, SHA: r.FromSHA}
		}
		if lo.IsZero() || t.After(lo) {
			lo = t
		}
	}
	if r.ToSHA != "" {
		t, ok := s.CommitTime(r.ToSHA)
		if !ok {
			return lo, hi, &NotFoundError{GroupKey: s.Group, SHA: r.ToSHA}
		}
		if hi.IsZero() || t.Before(hi) {
			hi = t
		}
	}
	return lo, hi, nil
}

// Select returns the part of series name that r selects.
func (s *Snapshot) Select(name string, r Range) (*Series, error) {
	ser := s.Series[name]
	if ser == nil {
		return nil, &NotFoundError{GroupKey: s.Group, Name: name}
	}
	if r.IsZero() {
		return ser.clone(), nil
	}
	lo, hi, err := s.Bounds(r)
	if err != nil {
		return nil, err
	}
	return ser.between(lo, hi), nil
}
