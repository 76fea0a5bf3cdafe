// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package codec

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Scaling is a linear transform from decoded integers to engineering units:
//
//	value = raw*Factor - Offset
type Scaling struct {
	Factor float64
	Offset float64
}

// CalcScaling computes the scaling mapping the signed span of a width-bit
// field onto [rmin, rmax]: the most negative code maps to rmin and the most
// positive code maps to rmax.
//
// rmin and rmax should be the range granted by the board, not the
// requested one.
func CalcScaling(rmin, rmax float64, width int) (Scaling, error) {
	switch {
	case width <= 0 || width > 32:
		return Scaling{}, fmt.Errorf("%w: bit width %d out of [1, 32]", ErrConfig, width)
	case math.IsNaN(rmin) || math.IsNaN(rmax) || math.IsInf(rmin, 0) || math.IsInf(rmax, 0):
		return Scaling{}, fmt.Errorf("%w: non-finite range [%v, %v]", ErrConfig, rmin, rmax)
	case rmax <= rmin:
		return Scaling{}, fmt.Errorf("%w: empty range [%v, %v]", ErrConfig, rmin, rmax)
	}

	var (
		span   = math.Ldexp(1, width) - 1
		half   = math.Ldexp(1, width-1)
		factor = (rmax - rmin) / span
	)
	return Scaling{
		Factor: factor,
		Offset: -(rmin + half*factor),
	}, nil
}

// Apply converts a decoded integer to engineering units.
func (s Scaling) Apply(raw int32) float64 {
	return float64(raw)*s.Factor - s.Offset
}

// Inverse returns the code of lay closest to v, clamped to the layout range.
func (s Scaling) Inverse(v float64, lay Layout) int32 {
	if s.Factor == 0 {
		return 0
	}
	x := math.Round((v + s.Offset) / s.Factor)
	switch {
	case x < float64(lay.Min()):
		return lay.Min()
	case x > float64(lay.Max()):
		return lay.Max()
	}
	return int32(x)
}

// Range is a measurement range, as granted by the board configuration.
type Range struct {
	Min  float64
	Max  float64
	Unit string
}

// String formats the range the way the driver reports it, e.g.
// "0.000000..200.000000 Ohm".
func (rng Range) String() string {
	s := strconv.FormatFloat(rng.Min, 'f', 6, 64) + ".." + strconv.FormatFloat(rng.Max, 'f', 6, 64)
	if rng.Unit != "" {
		s += " " + rng.Unit
	}
	return s
}

// Validate checks the range is finite and not empty.
func (rng Range) Validate() error {
	_, err := CalcScaling(rng.Min, rng.Max, 32)
	return err
}

// ParseRange parses a range of the form "min..max [unit]".
// A single value "v [unit]" denotes the symmetric range [-v, v].
func ParseRange(s string) (Range, error) {
	var (
		rng  Range
		str  = strings.TrimSpace(s)
		vals = str
	)
	if i := strings.IndexAny(str, " \t"); i >= 0 {
		vals = str[:i]
		rng.Unit = strings.TrimSpace(str[i+1:])
	}

	var err error
	switch i := strings.Index(vals, ".."); {
	case i >= 0:
		rng.Min, err = strconv.ParseFloat(vals[:i], 64)
		if err != nil {
			return rng, fmt.Errorf("codec: could not parse range minimum of %q: %w", s, err)
		}
		rng.Max, err = strconv.ParseFloat(vals[i+2:], 64)
		if err != nil {
			return rng, fmt.Errorf("codec: could not parse range maximum of %q: %w", s, err)
		}
	default:
		v, err := strconv.ParseFloat(vals, 64)
		if err != nil {
			return rng, fmt.Errorf("codec: could not parse range %q: %w", s, err)
		}
		rng.Min, rng.Max = -math.Abs(v), math.Abs(v)
	}

	err = rng.Validate()
	if err != nil {
		return rng, fmt.Errorf("codec: invalid range %q: %w", s, err)
	}
	return rng, nil
}
