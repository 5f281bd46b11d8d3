// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package benchunit

import "fmt"

// A Polarity says whether larger values of a metric are an
// improvement or a regression.
type Polarity int

const (
	// Unknown means the polarity could not be determined.
	Unknown Polarity = 0
	// HigherIsBetter is the polarity of throughput metrics such
	// as "iter/sec".
	HigherIsBetter Polarity = 1
	// LowerIsBetter is the polarity of latency and cost metrics
	// such as "msec" or "B/op".
	LowerIsBetter Polarity = -1
)

func (p Polarity) String() string {
	switch p {
	case Unknown:
		return "unknown"
	case HigherIsBetter:
		return "higher"
	case LowerIsBetter:
		return "lower"
	}
	return fmt.Sprintf("Polarity(%d)", int(p))
}

// ParsePolarity parses "higher" or "lower" (the values of the
// "better" unit metadata key in the Go benchmark format).
func ParsePolarity(s string) (Polarity, error) {
	switch s {
	case "higher", "higher-is-better":
		return HigherIsBetter, nil
	case "lower", "lower-is-better":
		return LowerIsBetter, nil
	}
	return Unknown, fmt.Errorf("unknown polarity %q (want higher or lower)", s)
}

// MarshalText implements encoding.TextMarshaler.
func (p Polarity) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Polarity) UnmarshalText(b []byte) error {
	if string(b) == "unknown" || len(b) == 0 {
		*p = Unknown
		return nil
	}
	v, err := ParsePolarity(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

var timeTokens = map[string]bool{
	"nsec": true, "usec": true, "msec": true, "sec": true,
	"min": true, "h": true, "hr": true, "hour": true,
}

// costTokens are numerator tokens measuring a resource consumed.
var costTokens = map[string]bool{
	"b": true, "kb": true, "mb": true, "gb": true, "bytes": true,
	"allocs": true, "cycles": true, "instructions": true,
}

// rateTokens are units that are rates on their own.
var rateTokens = map[string]bool{
	"rps": true, "qps": true, "ops": true, "hz": true, "fps": true, "tps": true,
}

// Better returns the polarity of unit, which should already be
// normalized. A duration ("msec", "sec/op") or a resource cost
// ("B/op", "allocs/op") is lower-is-better; a rate over time
// ("iter/sec", "MB/s") is higher-is-better. Better returns Unknown
// for anything else.
func Better(unit string) Polarity {
	num, den := tokens(unit)
	timeIn := func(toks []string) bool {
		for _, t := range toks {
			if timeTokens[t] {
				return true
			}
		}
		return false
	}
	switch {
	case len(num) == 0:
		return Unknown
	case timeIn(num) && !timeIn(den):
		return LowerIsBetter
	case timeIn(den) && !timeIn(num):
		return HigherIsBetter
	}
	if len(den) == 0 && len(num) == 1 && rateTokens[num[0]] {
		return HigherIsBetter
	}
	for _, t := range num {
		if costTokens[t] {
			return LowerIsBetter
		}
	}
	return Unknown
}
