// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package codec

import (
	"errors"
	"math"
	"testing"
)

func TestLayoutDecode(t *testing.T) {
	for _, tc := range []struct {
		name string
		lay  Layout
		raw  uint32
		want int32
	}{
		{"24-bit-negative", Raw24, 0x00ff0000, -65536},
		{"24-bit-positive", Raw24, 0x00010000, +65536},
		{"24-bit-min", Raw24, 0x00800000, -1 << 23},
		{"24-bit-max", Raw24, 0x007fffff, 1<<23 - 1},
		{"24-bit-minus-one", Raw24, 0x00ffffff, -1},
		{"24-bit-ignore-pad", Raw24, 0xab000001, 1},
		{"32-bit", Raw32, 0xffffffff, -1},
		{"32-bit-min", Raw32, 0x80000000, math.MinInt32},
		{"16-bit-low", Raw16, 0x1234ffff, -1},
		{"16-bit-high", Layout{Width: 16, Shift: 0}, 0x7fff0000, 0x7fff},
		{"1-bit", Layout{Width: 1, Shift: 31}, 0x1, -1},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.lay.Validate(); err != nil {
				t.Fatalf("invalid layout: %+v", err)
			}
			got := tc.lay.Decode(tc.raw)
			if got != tc.want {
				t.Fatalf("invalid decoded value: got=%d, want=%d", got, tc.want)
			}
			back := tc.lay.Decode(tc.lay.Encode(got))
			if back != got {
				t.Fatalf("invalid encode: got=%d, want=%d", back, got)
			}
		})
	}
}

func TestLayoutValidate(t *testing.T) {
	for _, lay := range []Layout{
		{Width: 0, Shift: 0},
		{Width: -1, Shift: 0},
		{Width: 33, Shift: 0},
		{Width: 24, Shift: -1},
		{Width: 24, Shift: 9},
	} {
		err := lay.Validate()
		if !errors.Is(err, ErrConfig) {
			t.Fatalf("layout %+v: expected a config error, got=%+v", lay, err)
		}
	}
}

func TestLayoutFits(t *testing.T) {
	for _, tc := range []struct {
		lay   Layout
		width int
		ok    bool
	}{
		{Raw32, 4, true},
		{Raw32, 3, false},
		{Raw24, 4, true},
		{Raw24, 3, true},
		{Raw24, 2, false},
		{Raw16, 2, true},
		{Raw16, 1, false},
		{Layout{Width: 8, Shift: 24}, 1, true},
	} {
		err := tc.lay.Fits(tc.width)
		switch {
		case tc.ok && err != nil:
			t.Fatalf("layout %+v, width=%d: unexpected error: %+v", tc.lay, tc.width, err)
		case !tc.ok && !errors.Is(err, ErrConfig):
			t.Fatalf("layout %+v, width=%d: expected a config error, got=%+v", tc.lay, tc.width, err)
		}
	}
}

func TestCalcScaling(t *testing.T) {
	const tol = 1e-6

	scale, err := CalcScaling(0, 200, 24)
	if err != nil {
		t.Fatalf("could not compute scaling: %+v", err)
	}

	var (
		lay = Raw24
		max = scale.Apply(lay.Max())
		min = scale.Apply(lay.Min())
	)
	if max > 200+tol {
		t.Fatalf("max code maps above range: got=%v", max)
	}
	if math.Abs(max-200) > tol {
		t.Fatalf("invalid max value: got=%v, want=%v", max, 200.0)
	}
	if math.Abs(min-0) > tol {
		t.Fatalf("invalid min value: got=%v, want=%v", min, 0.0)
	}

	if got, want := scale.Inverse(200, lay), lay.Max(); got != want {
		t.Fatalf("invalid inverse(max): got=%d, want=%d", got, want)
	}
	if got, want := scale.Inverse(-5, lay), lay.Min(); got != want {
		t.Fatalf("invalid clamped inverse: got=%d, want=%d", got, want)
	}

	for _, tc := range []struct {
		rmin, rmax float64
		width      int
	}{
		{0, 200, 0},
		{0, 200, 33},
		{200, 200, 24},
		{200, 0, 24},
		{math.NaN(), 1, 24},
		{0, math.Inf(+1), 24},
	} {
		_, err := CalcScaling(tc.rmin, tc.rmax, tc.width)
		if !errors.Is(err, ErrConfig) {
			t.Fatalf("scaling(%v, %v, %d): expected a config error, got=%+v",
				tc.rmin, tc.rmax, tc.width, err,
			)
		}
	}
}

func TestCodec(t *testing.T) {
	c, err := New(Range{Min: -10, Max: 10, Unit: "V"}, Raw24)
	if err != nil {
		t.Fatalf("could not create codec: %+v", err)
	}

	for _, v := range []float64{-10, -2.5, 0, 1.25, 10} {
		raw, got := c.Decode(c.Encode(v))
		if math.Abs(got-v) > c.Scaling.Factor {
			t.Fatalf("invalid round trip for %v: got=%v (raw=%d)", v, got, raw)
		}
	}

	_, err = New(Range{Min: 0, Max: 1}, Layout{Width: 24, Shift: 16})
	if !errors.Is(err, ErrConfig) {
		t.Fatalf("expected a config error, got=%+v", err)
	}

	_, err = New(Range{Min: 1, Max: 0}, Raw24)
	if !errors.Is(err, ErrConfig) {
		t.Fatalf("expected a config error, got=%+v", err)
	}
}

func TestParseRange(t *testing.T) {
	for _, tc := range []struct {
		str  string
		want Range
		err  bool
	}{
		{str: "0.000000..200.000000 Ohm", want: Range{Min: 0, Max: 200, Unit: "Ohm"}},
		{str: "-10..10 V", want: Range{Min: -10, Max: 10, Unit: "V"}},
		{str: " -200..850  Ohm ", want: Range{Min: -200, Max: 850, Unit: "Ohm"}},
		{str: "10 V", want: Range{Min: -10, Max: 10, Unit: "V"}},
		{str: "0.5..1.5", want: Range{Min: 0.5, Max: 1.5}},
		{str: "", err: true},
		{str: "a..b V", err: true},
		{str: "0..x V", err: true},
		{str: "10..0 V", err: true},
		{str: "0 V", err: true},
	} {
		t.Run(tc.str, func(t *testing.T) {
			got, err := ParseRange(tc.str)
			switch {
			case tc.err && err == nil:
				t.Fatalf("expected an error")
			case tc.err:
				return
			case err != nil:
				t.Fatalf("could not parse range: %+v", err)
			}
			if got != tc.want {
				t.Fatalf("invalid range: got=%+v, want=%+v", got, tc.want)
			}

			rt, err := ParseRange(got.String())
			if err != nil {
				t.Fatalf("could not parse formatted range %q: %+v", got.String(), err)
			}
			if rt != got {
				t.Fatalf("invalid round trip: got=%+v, want=%+v", rt, got)
			}
		})
	}
}
