// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package benchunit

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// A Class specifies what class of unit prefixes are in use.
type Class int

const (
	// Decimal values are scaled by powers of 1000 with SI
	// prefixes such as "k" and "M".
	Decimal Class = iota
	// Binary values are scaled by powers of 1024 with IEC
	// prefixes such as "Ki" and "Mi".
	Binary
)

func (c Class) String() string {
	switch c {
	case Decimal:
		return "Decimal"
	case Binary:
		return "Binary"
	}
	return fmt.Sprintf("Class(%d)", int(c))
}

// ClassOf returns Binary if unit measures bytes in its numerator and
// Decimal otherwise.
func ClassOf(unit string) Class {
	p := newParser(strings.ToLower(unit))
	for p.next() {
		if (p.tok == "b" || p.tok == "bytes") && !p.denom {
			return Binary
		}
	}
	return Decimal
}

// baseUnits maps normalized tokens that carry their own scale to
// the base unit and its factor.
var baseUnits = map[string]struct {
	base   string
	factor float64
}{
	"nsec": {"sec", 1e-9},
	"usec": {"sec", 1e-6},
	"msec": {"sec", 1e-3},
	"kb":   {"b", 1e3},
	"mb":   {"b", 1e6},
	"gb":   {"b", 1e9},
}

// Tidy rewrites val and its normalized unit into base units, so that
// 1500 "nsec/op" becomes 1.5e-6 "sec/op". Prefixes added by Scale
// then read naturally ("1.500µ") instead of compounding with the
// unit's own prefix.
func Tidy(val float64, unit string) (float64, string) {
	type edit struct {
		pos, len int
		replace  string
	}
	var edits []edit
	p := newParser(unit)
	for p.next() {
		b, ok := baseUnits[p.tok]
		if !ok {
			continue
		}
		if p.denom {
			val /= b.factor
		} else {
			val *= b.factor
		}
		edits = append(edits, edit{p.pos, len(p.tok), b.base})
	}
	for i := len(edits) - 1; i >= 0; i-- {
		e := edits[i]
		unit = unit[:e.pos] + e.replace + unit[e.pos+e.len:]
	}
	return val, unit
}

// A Scaler represents a scaling factor for a number and
// its scientific representation.
type Scaler struct {
	Prec   int     // Digits after the decimal point
	Factor float64 // Unscaled value of 1 Prefix (e.g., 1 k => 1000)
	Prefix string  // Unit prefix ("k", "M", "Ki", etc)
}

// Format formats val and appends the unit prefix. For example, a
// Decimal Scaler for 123456789 returns "123.5M".
//
// Values with units should go through Tidy first, or the prefix may
// compound with the unit's own ("123.5M nsec").
func (s Scaler) Format(val float64) string {
	buf := make([]byte, 0, 20)
	buf = strconv.AppendFloat(buf, val/s.Factor, 'f', s.Prec, 64)
	buf = append(buf, s.Prefix...)
	return string(buf)
}

// NoOpScaler formats numbers with the fewest digits that capture the
// exact value and no prefix.
var NoOpScaler = Scaler{-1, 1, ""}

type factor struct {
	factor float64
	prefix string
	// Thresholds for 100.0, 10.00, 1.000.
	t100, t10, t1 float64
}

var siFactors = mkSIFactors()
var iecFactors = mkIECFactors()
var sigfigs, sigfigsBase = mkSigfigs()

func mkSIFactors() []factor {
	// Thresholds come from parsing printed values so that they
	// round exactly the way Format does.
	var factors []factor
	exp := 12
	for _, p := range []string{"T", "G", "M", "k", "", "m", "µ", "n"} {
		t100, _ := strconv.ParseFloat(fmt.Sprintf("99.995e%d", exp), 64)
		t10, _ := strconv.ParseFloat(fmt.Sprintf("9.9995e%d", exp), 64)
		t1, _ := strconv.ParseFloat(fmt.Sprintf(".99995e%d", exp), 64)
		factors = append(factors, factor{math.Pow(10, float64(exp)), p, t100, t10, t1})
		exp -= 3
	}
	return factors
}

func mkIECFactors() []factor {
	// No fractional binary prefixes. Values in [1000, 1024) of
	// one factor print with the next smaller one.
	var factors []factor
	exp := 40
	for _, p := range []string{"Ti", "Gi", "Mi", "Ki", ""} {
		t100, _ := strconv.ParseFloat(fmt.Sprintf("0x1.8ffae147ae148p%d", 6+exp), 64) // 99.995
		t10, _ := strconv.ParseFloat(fmt.Sprintf("0x1.3ffbe76c8b439p%d", 3+exp), 64)  // 9.9995
		t1, _ := strconv.ParseFloat(fmt.Sprintf("0x1.fff972474538fp%d", -1+exp), 64)  // .99995
		factors = append(factors, factor{math.Pow(2, float64(exp)), p, t100, t10, t1})
		exp -= 10
	}
	return factors
}

func mkSigfigs() ([]float64, int) {
	var sigfigs []float64
	for exp := -1; exp > -9; exp-- {
		thresh, _ := strconv.ParseFloat(fmt.Sprintf("9.9995e%d", exp), 64)
		sigfigs = append(sigfigs, thresh)
	}
	// sigfigs[0] is the threshold for 3 digits after the decimal.
	return sigfigs, 3
}

// Scale formats val using at least three significant digits,
// appending an SI or binary prefix.
func Scale(val float64, cls Class) string {
	return CommonScale([]float64{val}, cls).Format(val)
}

// CommonScale returns a Scaler that shows at least three significant
// digits for every value in vals, so that a column of values lines
// up under one prefix.
func CommonScale(vals []float64, cls Class) Scaler {
	// The non-zero value closest to zero decides.
	var min float64
	for _, v := range vals {
		v = math.Abs(v)
		if v != 0 && !math.IsInf(v, 0) && !math.IsNaN(v) && (min == 0 || v < min) {
			min = v
		}
	}
	if min == 0 {
		return Scaler{3, 1, ""}
	}

	var factors []factor
	switch cls {
	default:
		panic(fmt.Sprintf("bad Class %v", cls))
	case Decimal:
		factors = siFactors
	case Binary:
		factors = iecFactors
	}

	for _, factor := range factors {
		switch {
		case min >= factor.t100:
			return Scaler{1, factor.factor, factor.prefix}
		case min >= factor.t10:
			return Scaler{2, factor.factor, factor.prefix}
		case min >= factor.t1:
			return Scaler{3, factor.factor, factor.prefix}
		}
	}

	// Below the smallest factor: keep its prefix and add digits.
	factor := factors[len(factors)-1]
	val := min / factor.factor
	for i, thresh := range sigfigs {
		if val >= thresh || i == len(sigfigs)-1 {
			return Scaler{i + sigfigsBase, factor.factor, factor.prefix}
		}
	}

	panic("not reachable")
}

// FormatValues tidies vals, all measured in unit, and formats them
// under one common scale. It returns the formatted values and the
// tidied unit.
func FormatValues(vals []float64, unit string) ([]string, string) {
	tidy := make([]float64, len(vals))
	var u string
	for i, v := range vals {
		tidy[i], u = Tidy(v, unit)
	}
	if len(vals) == 0 {
		_, u = Tidy(0, unit)
	}
	s := CommonScale(tidy, ClassOf(u))
	out := make([]string, len(tidy))
	for i, v := range tidy {
		out[i] = s.Format(v)
	}
	return out, u
}
