// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ring reads fixed-width samples out of a producer-owned circular
// buffer.
//
// The buffer geometry is described by a Descriptor, obtained once from the
// producer after the acquisition started. Positions are absolute addresses,
// as reported by the producer. The producer is authoritative about the
// geometry: a Descriptor is only checked for self-consistency, never
// against the memory actually backing it.
package ring // import "github.com/go-lpc/trion/ring"

import (
	"errors"
	"fmt"
	"io"
)

// ErrConfig is returned when a reader is set up with an invalid geometry.
var ErrConfig = errors.New("ring: invalid configuration")

// Descriptor describes the bounds of a circular buffer.
type Descriptor struct {
	Start int64 // first valid address
	End   int64 // one past the last valid address
	Size  int64 // amount subtracted from a position that reached End
}

// Validate checks the descriptor is usable.
// Size is expected to be End-Start but this is not enforced.
func (desc Descriptor) Validate() error {
	switch {
	case desc.End <= desc.Start:
		return fmt.Errorf("%w: end=0x%x <= start=0x%x", ErrConfig, desc.End, desc.Start)
	case desc.Size <= 0:
		return fmt.Errorf("%w: buffer size %d", ErrConfig, desc.Size)
	}
	return nil
}

// Wrap brings back a position that reached the end of the buffer.
func (desc Descriptor) Wrap(cur Cursor) Cursor {
	if cur.Pos >= desc.End {
		cur.Pos -= desc.Size
	}
	return cur
}

// Cursor is the read position into a circular buffer.
type Cursor struct {
	Pos int64
}

// Sample is a decoded sample.
type Sample struct {
	Pos   int64   // address the raw word was read from
	Word  uint32  // raw word, as read from the buffer
	Raw   int32   // decoded integer
	Value float64 // value in engineering units
}

// Decoder converts a raw word into an integer and an engineering value.
type Decoder interface {
	Decode(raw uint32) (int32, float64)
}

// Reader decodes batches of samples from a circular buffer.
//
// A Reader holds no read position: callers pass the cursor in and get the
// advanced cursor back. At most one Reader should be used per acquisition.
type Reader struct {
	view  io.ReaderAt
	desc  Descriptor
	width int
	dec   Decoder
	buf   []byte
}

// NewReader returns a reader of width-byte little-endian samples.
// view is addressed with the absolute positions of desc (see Region).
func NewReader(view io.ReaderAt, desc Descriptor, width int, dec Decoder) (*Reader, error) {
	err := desc.Validate()
	if err != nil {
		return nil, err
	}

	switch {
	case width <= 0 || width > 4:
		return nil, fmt.Errorf("%w: sample width %d out of [1, 4] bytes", ErrConfig, width)
	case view == nil:
		return nil, fmt.Errorf("%w: nil buffer view", ErrConfig)
	case dec == nil:
		return nil, fmt.Errorf("%w: nil sample decoder", ErrConfig)
	}

	return &Reader{
		view:  view,
		desc:  desc,
		width: width,
		dec:   dec,
		buf:   make([]byte, 4),
	}, nil
}

// Descriptor returns the buffer geometry.
func (r *Reader) Descriptor() Descriptor { return r.desc }

// Width returns the sample width in bytes.
func (r *Reader) Width() int { return r.width }

// Decode reads n samples starting at cur, appends them to dst and returns
// the extended slice with the cursor following the last sample read.
//
// The wrap-around check is applied before each sample, so a batch may wrap
// any number of times.
// The n decoded slots must then be released to the producer.
func (r *Reader) Decode(dst []Sample, cur Cursor, n int) ([]Sample, Cursor, error) {
	if n < 0 {
		return dst, cur, fmt.Errorf("ring: invalid number of samples %d", n)
	}

	var (
		w   = int64(r.width)
		buf = r.buf[:r.width]
	)
	for i := 0; i < n; i++ {
		cur = r.desc.Wrap(cur)

		_, err := r.view.ReadAt(buf, cur.Pos)
		if err != nil {
			return dst, cur, fmt.Errorf("ring: could not read sample %d/%d at 0x%x: %w", i, n, cur.Pos, err)
		}

		var raw uint32
		for j := len(buf) - 1; j >= 0; j-- {
			raw = raw<<8 | uint32(buf[j])
		}

		v, val := r.dec.Decode(raw)
		dst = append(dst, Sample{Pos: cur.Pos, Word: raw, Raw: v, Value: val})

		cur.Pos += w
	}

	return dst, cur, nil
}
