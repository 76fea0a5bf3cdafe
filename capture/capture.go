// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package capture records raw TRION samples to a file and replays them.
//
// A capture file is made of a 64-byte header, the raw sample words in
// little-endian order and a 16-byte trailer:
//
//	header:  magic "TRIONRAW" | version u32 | sample width u32
//	         | bit width u32 | bit shift u32 | range min f64 | range max f64
//	         | unit [16]byte | sample rate f64
//	payload: n * sample width bytes
//	trailer: n u64 | CRC-16/CCITT-FALSE of payload u16 | 6 bytes padding
//
// All integers and floats are little-endian.
package capture // import "github.com/go-lpc/trion/capture"

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/go-lpc/trion/codec"
)

const (
	Version = 1

	hdrSize  = 64
	tlrSize  = 16
	unitSize = 16
)

var (
	magic = [8]byte{'T', 'R', 'I', 'O', 'N', 'R', 'A', 'W'}

	errMagic = errors.New("capture: invalid magic")
	errCRC   = errors.New("capture: CRC mismatch")
)

// Header describes the samples of a capture file.
type Header struct {
	Width  int          // sample width in bytes
	Layout codec.Layout // position of the data field in a sample
	Range  codec.Range  // range granted by the board
	Rate   float64      // sample rate in Hz
}

// Validate checks the header describes decodable samples.
func (hdr Header) Validate() error {
	switch {
	case hdr.Width <= 0 || hdr.Width > 4:
		return fmt.Errorf("capture: invalid sample width %d", hdr.Width)
	case len(hdr.Range.Unit) > unitSize:
		return fmt.Errorf("capture: unit %q too long", hdr.Range.Unit)
	case hdr.Rate < 0 || math.IsNaN(hdr.Rate) || math.IsInf(hdr.Rate, 0):
		return fmt.Errorf("capture: invalid sample rate %v", hdr.Rate)
	}

	_, err := codec.New(hdr.Range, hdr.Layout)
	if err != nil {
		return fmt.Errorf("capture: invalid header: %w", err)
	}

	err = hdr.Layout.Fits(hdr.Width)
	if err != nil {
		return fmt.Errorf("capture: invalid header: %w", err)
	}
	return nil
}

func (hdr Header) marshal() []byte {
	var (
		buf = make([]byte, hdrSize)
		le  = binary.LittleEndian
	)
	copy(buf[0:8], magic[:])
	le.PutUint32(buf[8:], Version)
	le.PutUint32(buf[12:], uint32(hdr.Width))
	le.PutUint32(buf[16:], uint32(hdr.Layout.Width))
	le.PutUint32(buf[20:], uint32(hdr.Layout.Shift))
	le.PutUint64(buf[24:], math.Float64bits(hdr.Range.Min))
	le.PutUint64(buf[32:], math.Float64bits(hdr.Range.Max))
	copy(buf[40:40+unitSize], hdr.Range.Unit)
	le.PutUint64(buf[56:], math.Float64bits(hdr.Rate))
	return buf
}

func (hdr *Header) unmarshal(buf []byte) error {
	if len(buf) < hdrSize {
		return fmt.Errorf("capture: header too short (%d bytes)", len(buf))
	}
	if !bytes.Equal(buf[0:8], magic[:]) {
		return fmt.Errorf("%w (got=%q)", errMagic, buf[0:8])
	}

	le := binary.LittleEndian
	if v := le.Uint32(buf[8:]); v != Version {
		return fmt.Errorf("capture: unsupported version %d", v)
	}

	hdr.Width = int(le.Uint32(buf[12:]))
	hdr.Layout.Width = int(int32(le.Uint32(buf[16:])))
	hdr.Layout.Shift = int(int32(le.Uint32(buf[20:])))
	hdr.Range.Min = math.Float64frombits(le.Uint64(buf[24:]))
	hdr.Range.Max = math.Float64frombits(le.Uint64(buf[32:]))
	hdr.Range.Unit = string(bytes.TrimRight(buf[40:40+unitSize], "\x00"))
	hdr.Rate = math.Float64frombits(le.Uint64(buf[56:]))

	return hdr.Validate()
}
