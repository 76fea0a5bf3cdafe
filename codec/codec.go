// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package codec decodes raw TRION sample words into engineering units.
//
// A raw word is 32 bits wide. It holds a signed integer of Layout.Width bits,
// with Layout.Shift unused bits above it. Decoding moves the field to the
// top of the word and sign-extends it with an arithmetic right shift.
// The decoded integer is then mapped linearly onto the range granted by
// the board configuration.
package codec // import "github.com/go-lpc/trion/codec"

import (
	"errors"
	"fmt"
	"math"
)

// ErrConfig is returned for invalid layouts, ranges and scalings.
var ErrConfig = errors.New("codec: invalid configuration")

// Layout describes where a signed field sits inside a 32-bit raw word.
type Layout struct {
	Width int // number of data bits
	Shift int // number of unused bits above the data field
}

var (
	Raw32 = Layout{Width: 32, Shift: 0}  // full 32-bit samples
	Raw24 = Layout{Width: 24, Shift: 8}  // 24-bit samples, little-endian in a 32-bit word
	Raw16 = Layout{Width: 16, Shift: 16} // 16-bit samples in the low half-word
)

// Validate checks the layout fits in a 32-bit word.
func (lay Layout) Validate() error {
	switch {
	case lay.Width <= 0 || lay.Width > 32:
		return fmt.Errorf("%w: bit width %d out of [1, 32]", ErrConfig, lay.Width)
	case lay.Shift < 0:
		return fmt.Errorf("%w: negative bit shift %d", ErrConfig, lay.Shift)
	case lay.Width+lay.Shift > 32:
		return fmt.Errorf("%w: bit width %d + shift %d overflows 32-bit word",
			ErrConfig, lay.Width, lay.Shift,
		)
	}
	return nil
}

// Fits checks the data field is held by the first n bytes of a
// little-endian raw word.
func (lay Layout) Fits(n int) error {
	if 8*n < 32-lay.Shift {
		return fmt.Errorf("%w: %d-byte samples can not hold %d-bit field with shift %d",
			ErrConfig, n, lay.Width, lay.Shift,
		)
	}
	return nil
}

// Decode extracts the sign-extended data field from raw.
func (lay Layout) Decode(raw uint32) int32 {
	return int32(raw<<uint(lay.Shift)) >> uint(32-lay.Width)
}

// Encode packs v into a raw word, the inverse of Decode.
// Bits of v that do not fit in the field are dropped.
func (lay Layout) Encode(v int32) uint32 {
	mask := uint32(math.MaxUint32) >> uint(32-lay.Width)
	return (uint32(v) & mask) << uint(32-lay.Width-lay.Shift)
}

// Min returns the most negative value the layout can hold.
func (lay Layout) Min() int32 {
	return int32(-(int64(1) << uint(lay.Width-1)))
}

// Max returns the most positive value the layout can hold.
func (lay Layout) Max() int32 {
	return int32(int64(1)<<uint(lay.Width-1) - 1)
}

// Codec decodes and scales raw words.
type Codec struct {
	Layout  Layout
	Scaling Scaling
}

// New returns a codec mapping the full digital span of lay onto rng.
func New(rng Range, lay Layout) (Codec, error) {
	err := lay.Validate()
	if err != nil {
		return Codec{}, err
	}

	scale, err := CalcScaling(rng.Min, rng.Max, lay.Width)
	if err != nil {
		return Codec{}, err
	}

	return Codec{Layout: lay, Scaling: scale}, nil
}

// Decode returns the decoded integer and its value in engineering units.
func (c Codec) Decode(raw uint32) (int32, float64) {
	v := c.Layout.Decode(raw)
	return v, c.Scaling.Apply(v)
}

// Encode returns the raw word closest to the engineering value v.
func (c Codec) Encode(v float64) uint32 {
	return c.Layout.Encode(c.Scaling.Inverse(v, c.Layout))
}
