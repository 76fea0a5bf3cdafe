// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package capture

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/go-lpc/trion/acq"
	"github.com/go-lpc/trion/internal/crc16"
	"github.com/go-lpc/trion/internal/mmap"
	"github.com/go-lpc/trion/ring"
)

// File is a memory-mapped capture file.
//
// File implements acq.Board: the payload is exposed as a circular buffer
// that never wraps, and is made available block by block.
// Available returns io.EOF once every sample has been freed, or once the
// whole payload is available and the reader stopped freeing samples.
type File struct {
	h   *mmap.Handle
	hdr Header

	n     int64 // number of samples
	block int64

	avail int64 // samples made available so far
	freed int64
	last  int64 // samples freed at the previous Available call
}

// Open memory-maps the named capture file and validates its content.
// Samples are replayed block samples at a time.
func Open(fname string, block int) (*File, error) {
	if block <= 0 {
		return nil, fmt.Errorf("capture: invalid block size %d", block)
	}

	h, err := mmap.Open(fname)
	if err != nil {
		return nil, fmt.Errorf("capture: could not open capture file: %w", err)
	}

	f, err := newFile(h, int64(block))
	if err != nil {
		_ = h.Close()
		return nil, fmt.Errorf("capture: invalid capture file %q: %w", fname, err)
	}

	return f, nil
}

func newFile(h *mmap.Handle, block int64) (*File, error) {
	size := int64(h.Len())
	if size < hdrSize+tlrSize {
		return nil, fmt.Errorf("capture: file too short (%d bytes)", size)
	}

	buf := make([]byte, hdrSize)
	_, err := h.ReadAt(buf, 0)
	if err != nil {
		return nil, fmt.Errorf("capture: could not read header: %w", err)
	}

	f := &File{h: h, block: block}
	err = f.hdr.unmarshal(buf)
	if err != nil {
		return nil, err
	}

	tlr := make([]byte, tlrSize)
	_, err = h.ReadAt(tlr, size-tlrSize)
	if err != nil {
		return nil, fmt.Errorf("capture: could not read trailer: %w", err)
	}

	var (
		n     = int64(binary.LittleEndian.Uint64(tlr[0:]))
		sum   = binary.LittleEndian.Uint16(tlr[8:])
		width = int64(f.hdr.Width)
		plen  = size - hdrSize - tlrSize
	)
	if plen%width != 0 || n != plen/width {
		return nil, fmt.Errorf(
			"capture: payload size mismatch (samples=%d, width=%d, payload=%d bytes)",
			n, width, plen,
		)
	}
	f.n = n

	crc := crc16.New(nil)
	_, err = io.Copy(crc, io.NewSectionReader(h, hdrSize, plen))
	if err != nil {
		return nil, fmt.Errorf("capture: could not read payload: %w", err)
	}
	if got := crc.Sum16(); got != sum {
		return nil, fmt.Errorf("%w (got=0x%04x, want=0x%04x)", errCRC, got, sum)
	}

	return f, nil
}

// Header returns the capture header.
func (f *File) Header() Header { return f.hdr }

// N returns the number of samples in the capture.
func (f *File) N() int64 { return f.n }

// Start rewinds the replay.
func (f *File) Start() error {
	f.avail = 0
	f.freed = 0
	f.last = 0
	return nil
}

// Stop implements acq.Board.
func (f *File) Stop() error { return nil }

// Close unmaps the capture file.
func (f *File) Close() error {
	return f.h.Close()
}

// Available implements acq.Source.
func (f *File) Available() (int, error) {
	switch {
	case f.freed == f.n:
		return 0, io.EOF
	case f.avail == f.n && f.freed == f.last:
		return 0, io.EOF
	}
	f.last = f.freed

	if f.avail-f.freed < f.block {
		f.avail += f.block
		if f.avail > f.n {
			f.avail = f.n
		}
	}
	return int(f.avail - f.freed), nil
}

// ReadPos implements acq.Source.
func (f *File) ReadPos() (int64, error) {
	return hdrSize + f.freed*int64(f.hdr.Width), nil
}

// Bounds implements acq.Source.
// Addresses are offsets into the capture file.
func (f *File) Bounds() (ring.Descriptor, error) {
	if f.n == 0 {
		return ring.Descriptor{}, errEmpty
	}
	size := f.n * int64(f.hdr.Width)
	return ring.Descriptor{
		Start: hdrSize,
		End:   hdrSize + size,
		Size:  size,
	}, nil
}

// Free implements acq.Source.
func (f *File) Free(n int) error {
	if n < 0 || int64(n) > f.avail-f.freed {
		return fmt.Errorf("capture: invalid number of samples to free %d (available=%d)",
			n, f.avail-f.freed,
		)
	}
	f.freed += int64(n)
	return nil
}

// View implements acq.Source.
func (f *File) View() io.ReaderAt {
	return ring.NewRegion(0, int64(f.h.Len()), f.h)
}

var (
	errEmpty = errors.New("capture: empty capture")

	_ acq.Board = (*File)(nil)
)
