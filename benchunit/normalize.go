// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package benchunit

import (
	"strings"
	"sync"
)

// aliases maps alternative spellings of common unit tokens to the
// spelling Normalize produces. Keys are lower case.
var aliases = map[string]string{
	"µs":           "usec",
	"μs":           "usec",
	"us":           "usec",
	"microseconds": "usec",
	"ms":           "msec",
	"milliseconds": "msec",
	"ns":           "nsec",
	"nanoseconds":  "nsec",
	"s":            "sec",
	"secs":         "sec",
	"second":       "sec",
	"seconds":      "sec",
	"iters":        "iter",
	"iteration":    "iter",
	"iterations":   "iter",
}

var normCache sync.Map // unit string -> normalized string

// Normalize returns the canonical spelling of unit: surrounding and
// repeated whitespace removed, whitespace around '/' and '*' dropped,
// lower case, and common aliases such as "µs" or "seconds" rewritten
// to a single spelling ("usec", "sec").
//
// Two units that Normalize maps to the same string are the same unit
// for the purpose of series unit stability.
func Normalize(unit string) string {
	if n, ok := normCache.Load(unit); ok {
		return n.(string)
	}
	n := normalizeUncached(unit)
	normCache.Store(unit, n)
	return n
}

func normalizeUncached(unit string) string {
	unit = strings.ToLower(strings.Join(strings.Fields(unit), " "))

	// Drop spaces that only pad an operator.
	var b strings.Builder
	for i, r := range unit {
		if r == ' ' {
			prev, next := unit[i-1], unit[i+1]
			if prev == '/' || prev == '*' || next == '/' || next == '*' {
				continue
			}
		}
		b.WriteRune(r)
	}
	unit = b.String()

	type edit struct {
		pos, len int
		replace  string
	}
	var edits []edit
	p := newParser(unit)
	for p.next() {
		if a, ok := aliases[p.tok]; ok && a != p.tok {
			edits = append(edits, edit{p.pos, len(p.tok), a})
		}
	}
	// Apply edits back to front so earlier offsets stay valid.
	for i := len(edits) - 1; i >= 0; i-- {
		e := edits[i]
		unit = unit[:e.pos] + e.replace + unit[e.pos+e.len:]
	}
	return unit
}
