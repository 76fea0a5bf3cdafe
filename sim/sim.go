// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sim simulates a TRION board in demo mode.
//
// A simulated board owns a circular buffer of 32-bit samples, filled with a
// synthetic signal at the configured sample rate while the acquisition runs.
// It implements acq.Board.
package sim // import "github.com/go-lpc/trion/sim"

import (
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/go-lpc/trion/acq"
	"github.com/go-lpc/trion/codec"
	"github.com/go-lpc/trion/internal/mmap"
	"github.com/go-lpc/trion/ring"
)

const width = 4 // bytes per sample

var (
	errRunning    = errors.New("sim: acquisition already running")
	errNotRunning = errors.New("sim: acquisition not running")
)

type memory interface {
	io.ReaderAt
	io.WriterAt
	io.Closer
}

// Board is a simulated TRION board.
type Board struct {
	mu  sync.Mutex
	mem memory
	cfg config

	codec codec.Codec // encodes the synthetic signal
	rng   codec.Range // granted range
	buf   []byte

	running  bool
	t0       time.Time
	produced int64
	freed    int64
	overflow bool
}

// NewBoard creates a simulated board.
func NewBoard(opts ...Option) (*Board, error) {
	cfg := newConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	switch {
	case cfg.blockSize <= 0 || cfg.blockCount <= 0:
		return nil, fmt.Errorf("sim: invalid buffer geometry (block-size=%d, block-count=%d)",
			cfg.blockSize, cfg.blockCount,
		)
	case cfg.rate <= 0:
		return nil, fmt.Errorf("sim: invalid sample rate %v", cfg.rate)
	case cfg.base < 0:
		return nil, fmt.Errorf("sim: invalid base address 0x%x", cfg.base)
	}

	err := cfg.layout.Validate()
	if err != nil {
		return nil, fmt.Errorf("sim: invalid sample layout: %w", err)
	}

	size := cfg.blockSize * cfg.blockCount * width
	var mem memory
	mem, err = mmap.Anon(size)
	if err != nil {
		mem = mmap.HandleFrom(make([]byte, size))
	}

	brd := &Board{
		mem: mem,
		cfg: cfg,
		buf: make([]byte, width),
	}

	_, err = brd.SetRange(cfg.rng)
	if err != nil {
		_ = mem.Close()
		return nil, err
	}

	return brd, nil
}

// Capacity returns the number of samples the circular buffer can hold.
func (brd *Board) Capacity() int {
	return brd.cfg.blockSize * brd.cfg.blockCount
}

// Layout returns the layout of the raw samples.
func (brd *Board) Layout() codec.Layout {
	return brd.cfg.layout
}

// SampleRate returns the sample rate in Hz.
func (brd *Board) SampleRate() float64 {
	brd.mu.Lock()
	defer brd.mu.Unlock()
	return brd.cfg.rate
}

// SetSampleRate sets the sample rate in Hz.
// It can not be changed while the acquisition is running.
func (brd *Board) SetSampleRate(hz float64) error {
	brd.mu.Lock()
	defer brd.mu.Unlock()

	switch {
	case brd.running:
		return errRunning
	case hz <= 0 || math.IsNaN(hz) || math.IsInf(hz, 0):
		return fmt.Errorf("sim: invalid sample rate %v", hz)
	}
	brd.cfg.rate = hz
	return nil
}

// presets are the full-scale values supported by the simulated board.
var presets = []float64{
	0.01, 0.02, 0.05,
	0.1, 0.2, 0.5,
	1, 2, 5,
	10, 20, 50,
	100, 200, 500,
	1000, 2000, 5000,
	10000,
}

// SetRange requests a measurement range and returns the range granted by
// the board: the smallest supported full-scale covering the request,
// unipolar when the request has no negative part.
func (brd *Board) SetRange(req codec.Range) (codec.Range, error) {
	err := req.Validate()
	if err != nil {
		return codec.Range{}, fmt.Errorf("sim: invalid range request %q: %w", req, err)
	}

	fs := math.Max(math.Abs(req.Min), math.Abs(req.Max))
	i := 0
	for i < len(presets) && presets[i] < fs {
		i++
	}
	if i == len(presets) {
		return codec.Range{}, fmt.Errorf("sim: range %q exceeds board capabilities", req)
	}

	rng := codec.Range{Min: -presets[i], Max: presets[i], Unit: req.Unit}
	if req.Min >= 0 {
		rng.Min = 0
	}

	c, err := codec.New(rng, brd.cfg.layout)
	if err != nil {
		return codec.Range{}, fmt.Errorf("sim: could not create sample codec: %w", err)
	}

	brd.mu.Lock()
	defer brd.mu.Unlock()
	if brd.running {
		return codec.Range{}, errRunning
	}
	brd.rng = rng
	brd.codec = c
	return rng, nil
}

// Range returns the granted range, formatted as the driver reports it.
func (brd *Board) Range() string {
	brd.mu.Lock()
	defer brd.mu.Unlock()
	return brd.rng.String()
}

// Start starts the acquisition, resetting the circular buffer.
func (brd *Board) Start() error {
	brd.mu.Lock()
	defer brd.mu.Unlock()

	if brd.running {
		return errRunning
	}
	brd.running = true
	brd.t0 = brd.cfg.now()
	brd.produced = 0
	brd.freed = 0
	brd.overflow = false
	return nil
}

// Stop stops the acquisition.
func (brd *Board) Stop() error {
	brd.mu.Lock()
	defer brd.mu.Unlock()

	if !brd.running {
		return errNotRunning
	}
	brd.running = false
	return nil
}

// Close releases the board memory.
func (brd *Board) Close() error {
	brd.mu.Lock()
	defer brd.mu.Unlock()

	brd.running = false
	return brd.mem.Close()
}

// Produce writes n samples of the synthetic signal into the circular
// buffer, as if they had been acquired.
func (brd *Board) Produce(n int) error {
	brd.mu.Lock()
	defer brd.mu.Unlock()
	return brd.produce(int64(n))
}

func (brd *Board) produce(n int64) error {
	var (
		capa = int64(brd.Capacity())
		rate = brd.cfg.rate
	)
	for i := int64(0); i < n; i++ {
		var (
			t   = float64(brd.produced) / rate
			raw = brd.codec.Encode(brd.cfg.signal(t, brd.rng))
			off = (brd.produced % capa) * width
		)
		brd.buf[0] = byte(raw)
		brd.buf[1] = byte(raw >> 8)
		brd.buf[2] = byte(raw >> 16)
		brd.buf[3] = byte(raw >> 24)
		_, err := brd.mem.WriteAt(brd.buf, off)
		if err != nil {
			return fmt.Errorf("sim: could not write sample %d: %w", brd.produced, err)
		}
		brd.produced++
		if brd.produced-brd.freed > capa {
			brd.overflow = true
		}
	}
	return nil
}

// Outstanding returns the number of produced samples not yet freed.
func (brd *Board) Outstanding() int {
	brd.mu.Lock()
	defer brd.mu.Unlock()
	return int(brd.produced - brd.freed)
}

// Available implements acq.Source.
// While running, it first produces the samples acquired since the last call.
func (brd *Board) Available() (int, error) {
	brd.mu.Lock()
	defer brd.mu.Unlock()

	if brd.running {
		var (
			dt   = brd.cfg.now().Sub(brd.t0).Seconds()
			want = int64(dt * brd.cfg.rate)
		)
		if n := want - brd.produced; n > 0 {
			// samples past the first overflowing one are never written.
			lim := int64(brd.Capacity()) + 1 - (brd.produced - brd.freed)
			if n > lim {
				n = lim
			}
			err := brd.produce(n)
			if err != nil {
				return 0, err
			}
			if brd.produced < want {
				brd.produced = want
				brd.overflow = true
			}
		}
	}

	if brd.overflow {
		return 0, acq.ErrOverflow
	}
	return int(brd.produced - brd.freed), nil
}

// ReadPos implements acq.Source.
func (brd *Board) ReadPos() (int64, error) {
	brd.mu.Lock()
	defer brd.mu.Unlock()
	return brd.cfg.base + (brd.freed%int64(brd.Capacity()))*width, nil
}

// Bounds implements acq.Source.
func (brd *Board) Bounds() (ring.Descriptor, error) {
	size := int64(brd.Capacity() * width)
	return ring.Descriptor{
		Start: brd.cfg.base,
		End:   brd.cfg.base + size,
		Size:  size,
	}, nil
}

// Free implements acq.Source.
func (brd *Board) Free(n int) error {
	brd.mu.Lock()
	defer brd.mu.Unlock()

	if n < 0 || int64(n) > brd.produced-brd.freed {
		return fmt.Errorf("sim: invalid number of samples to free %d (outstanding=%d)",
			n, brd.produced-brd.freed,
		)
	}
	brd.freed += int64(n)
	return nil
}

// View implements acq.Source.
func (brd *Board) View() io.ReaderAt {
	return ring.NewRegion(brd.cfg.base, int64(brd.Capacity()*width), brd.mem)
}

var _ acq.Board = (*Board)(nil)
