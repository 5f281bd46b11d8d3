// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package benchrun

import (
	"fmt"
	"math"
	"strings"
)

// A Violation is a single failed check on a Run or Point.
type Violation struct {
	// Field locates the offending value, e.g. "commit.sha" or
	// "benches[2].value".
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v Violation) String() string {
	return v.Field + ": " + v.Message
}

// A ValidationError reports malformed input. It lists every violation
// found, not only the first, so a caller can fix its payload in one
// round trip.
type ValidationError struct {
	Violations []Violation `json:"violations"`
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString("invalid run: ")
	for i, v := range e.Violations {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(v.String())
	}
	return b.String()
}

// Add appends a violation for field.
func (e *ValidationError) Add(field, format string, args ...interface{}) {
	e.Violations = append(e.Violations, Violation{field, fmt.Sprintf(format, args...)})
}

// Err returns e if it holds any violations and nil otherwise.
func (e *ValidationError) Err() error {
	if len(e.Violations) == 0 {
		return nil
	}
	return e
}

// validate records violations of c under prefix.
func (c Commit) validate(e *ValidationError, prefix string) {
	if c.SHA == "" {
		e.Add(prefix+".sha", "missing")
	}
	if c.Timestamp.IsZero() {
		e.Add(prefix+".timestamp", "missing")
	}
}

// Validate returns a *ValidationError if p is not valid.
func (p Point) Validate() error {
	e := new(ValidationError)
	p.validate(e, "bench")
	return e.Err()
}

func (p Point) validate(e *ValidationError, prefix string) {
	if p.Name == "" {
		e.Add(prefix+".name", "missing")
	}
	if p.Unit == "" {
		e.Add(prefix+".unit", "missing")
	}
	switch {
	case math.IsNaN(p.Value) || math.IsInf(p.Value, 0):
		e.Add(prefix+".value", "not finite: %v", p.Value)
	case p.Value < 0:
		e.Add(prefix+".value", "negative: %v", p.Value)
	}
}

// Validate returns a *ValidationError listing every problem with r:
// an invalid commit, invalid points, or repeated benchmark names.
func (r *Run) Validate() error {
	e := new(ValidationError)
	r.Commit.validate(e, "commit")
	if len(r.Benches) == 0 {
		e.Add("benches", "empty")
	}
	seen := make(map[string]int, len(r.Benches))
	for i, p := range r.Benches {
		prefix := fmt.Sprintf("benches[%d]", i)
		p.validate(e, prefix)
		if p.Name == "" {
			continue
		}
		if j, ok := seen[p.Name]; ok {
			e.Add(prefix+".name", "duplicate %q (first at benches[%d])", p.Name, j)
			continue
		}
		seen[p.Name] = i
	}
	return e.Err()
}
