// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mmap provides bounds-checked access to memory-mapped regions.
package mmap // import "github.com/go-lpc/trion/internal/mmap"

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"

	"golang.org/x/sys/unix"
)

var (
	errClosed   = errors.New("mmap: closed")
	errReadOnly = errors.New("mmap: read-only mapping")
)

// Handle is a view over a memory mapping.
// All accesses are checked against the mapping's length.
type Handle struct {
	data []byte
	ro   bool
	heap bool // data was not obtained from mmap(2)
}

// HandleFrom wraps a plain byte slice.
// Closing such a handle only releases the reference to data.
func HandleFrom(data []byte) *Handle {
	return &Handle{data: data, heap: true}
}

// Open maps the named file read-only into memory.
func Open(fname string) (*Handle, error) {
	f, err := os.Open(fname)
	if err != nil {
		return nil, fmt.Errorf("mmap: could not open %q: %w", fname, err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("mmap: could not stat %q: %w", fname, err)
	}

	size := fi.Size()
	switch {
	case size == 0:
		return nil, fmt.Errorf("mmap: %q is empty", fname)
	case size < 0 || int64(int(size)) != size:
		return nil, fmt.Errorf("mmap: %q has an invalid size (%d)", fname, size)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap: could not map %q: %w", fname, err)
	}

	h := &Handle{data: data, ro: true}
	runtime.SetFinalizer(h, (*Handle).Close)
	return h, nil
}

// Anon creates a private, zero-filled, anonymous read-write mapping of
// size bytes.
func Anon(size int) (*Handle, error) {
	if size <= 0 {
		return nil, fmt.Errorf("mmap: invalid anonymous mapping size %d", size)
	}
	data, err := unix.Mmap(
		-1, 0, size,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_ANON|unix.MAP_PRIVATE,
	)
	if err != nil {
		return nil, fmt.Errorf("mmap: could not create anonymous mapping (size=%d): %w", size, err)
	}

	h := &Handle{data: data}
	runtime.SetFinalizer(h, (*Handle).Close)
	return h, nil
}

// Close closes the mmap handle.
func (h *Handle) Close() error {
	if h == nil {
		return os.ErrInvalid
	}

	if h.data == nil {
		return nil
	}
	data := h.data
	h.data = nil
	runtime.SetFinalizer(h, nil)

	if h.heap {
		return nil
	}
	return unix.Munmap(data)
}

// Len returns the length of the underlying memory mapping.
func (h *Handle) Len() int {
	return len(h.data)
}

// At returns the byte at index i.
func (h *Handle) At(i int) byte {
	return h.data[i]
}

// ReadAt implements the io.ReaderAt interface.
func (h *Handle) ReadAt(p []byte, off int64) (int, error) {
	if h == nil {
		return 0, os.ErrInvalid
	}

	if h.data == nil {
		return 0, errClosed
	}
	if off < 0 || int64(len(h.data)) < off {
		return 0, fmt.Errorf("mmap: invalid ReadAt offset %d", off)
	}
	n := copy(p, h.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt implements the io.WriterAt interface.
func (h *Handle) WriteAt(p []byte, off int64) (int, error) {
	if h == nil {
		return 0, os.ErrInvalid
	}

	if h.data == nil {
		return 0, errClosed
	}
	if h.ro {
		return 0, errReadOnly
	}
	if off < 0 || int64(len(h.data)) < off {
		return 0, fmt.Errorf("mmap: invalid WriteAt offset %d", off)
	}
	n := copy(h.data[off:], p)
	if n < len(p) {
		return n, io.ErrShortWrite
	}
	return n, nil
}

var (
	_ io.ReaderAt = (*Handle)(nil)
	_ io.WriterAt = (*Handle)(nil)
	_ io.Closer   = (*Handle)(nil)
)
