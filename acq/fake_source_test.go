// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package acq

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/go-lpc/trion/ring"
)

// fakeSource is a scripted producer.
// Before each Available call, it produces the next number of samples of
// its script. It reports io.EOF once the script is exhausted.
type fakeSource struct {
	desc ring.Descriptor
	mem  []byte

	script []int
	ovf    int // Available call reporting an overflow (1-based; 0: never)
	calls  int

	head        int64 // address of the oldest unread sample
	outstanding int
	freed       []int

	started bool
	stopped bool
	errStop error
}

// newFakeSource creates a circular buffer of n 32-bit words at base,
// where word i holds i.
func newFakeSource(base int64, n int, head int, script ...int) *fakeSource {
	mem := make([]byte, 4*n)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint32(mem[4*i:], uint32(i))
	}
	return &fakeSource{
		desc: ring.Descriptor{
			Start: base,
			End:   base + int64(len(mem)),
			Size:  int64(len(mem)),
		},
		mem:    mem,
		script: script,
		head:   base + int64(4*head),
	}
}

func (src *fakeSource) Available() (int, error) {
	src.calls++
	if src.ovf > 0 && src.calls == src.ovf {
		return 0, ErrOverflow
	}
	if len(src.script) == 0 {
		return 0, io.EOF
	}
	src.outstanding += src.script[0]
	src.script = src.script[1:]
	return src.outstanding, nil
}

func (src *fakeSource) ReadPos() (int64, error) { return src.head, nil }

func (src *fakeSource) Bounds() (ring.Descriptor, error) { return src.desc, nil }

func (src *fakeSource) Free(n int) error {
	if n > src.outstanding {
		return fmt.Errorf("fake: free %d > outstanding %d", n, src.outstanding)
	}
	src.outstanding -= n
	src.freed = append(src.freed, n)
	src.head += int64(4 * n)
	for src.head >= src.desc.End {
		src.head -= src.desc.Size
	}
	return nil
}

func (src *fakeSource) View() io.ReaderAt {
	return ring.NewRegion(src.desc.Start, src.desc.Size, bytes.NewReader(src.mem))
}

func (src *fakeSource) Start() error { src.started = true; return nil }
func (src *fakeSource) Stop() error  { src.stopped = true; return src.errStop }
func (src *fakeSource) Close() error { return nil }

var _ Board = (*fakeSource)(nil)
