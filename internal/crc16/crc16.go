// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package crc16 implements 16-bit cyclic redundancy checks as hash.Hash
// values.
package crc16 // import "github.com/go-lpc/trion/internal/crc16"

import (
	"hash"

	"github.com/snksoft/crc"
)

// CCITT is the table of the CRC-16/CCITT-FALSE checksum.
var CCITT = crc.NewTable(crc.CCITT)

// Hash computes a 16-bit CRC.
type Hash struct {
	tbl *crc.Table
	crc uint64
}

// New returns a hash computing the CRC described by tbl.
// A nil table selects CCITT.
func New(tbl *crc.Table) *Hash {
	if tbl == nil {
		tbl = CCITT
	}
	h := &Hash{tbl: tbl}
	h.Reset()
	return h
}

func (h *Hash) Reset()         { h.crc = h.tbl.InitCrc() }
func (h *Hash) Size() int      { return 2 }
func (h *Hash) BlockSize() int { return 1 }

func (h *Hash) Write(p []byte) (int, error) {
	h.crc = h.tbl.UpdateCrc(h.crc, p)
	return len(p), nil
}

// Sum16 returns the current checksum.
func (h *Hash) Sum16() uint16 { return h.tbl.CRC16(h.crc) }

// Sum appends the big-endian checksum to b.
func (h *Hash) Sum(b []byte) []byte {
	v := h.Sum16()
	return append(b, byte(v>>8), byte(v))
}

var _ hash.Hash = (*Hash)(nil)
