// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ring

import (
	"fmt"
	"io"
)

// Region exposes a memory area at an absolute base address.
//
// Reads are checked against [Base, Base+Len) before being forwarded to the
// underlying io.ReaderAt at offset addr-Base.
type Region struct {
	Base int64
	Len  int64
	Mem  io.ReaderAt
}

// NewRegion returns a region of size bytes starting at base.
func NewRegion(base, size int64, mem io.ReaderAt) *Region {
	return &Region{Base: base, Len: size, Mem: mem}
}

// ReadAt implements io.ReaderAt using absolute addresses.
func (reg *Region) ReadAt(p []byte, addr int64) (int, error) {
	if addr < reg.Base || addr+int64(len(p)) > reg.Base+reg.Len {
		return 0, fmt.Errorf(
			"ring: read [0x%x, 0x%x) outside region [0x%x, 0x%x)",
			addr, addr+int64(len(p)), reg.Base, reg.Base+reg.Len,
		)
	}
	return reg.Mem.ReadAt(p, addr-reg.Base)
}

var _ io.ReaderAt = (*Region)(nil)
