// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sim

import (
	"math"
	"time"

	"github.com/go-lpc/trion/codec"
)

// Signal returns the simulated value at time t (in seconds), for a board
// configured with the range rng.
type Signal func(t float64, rng codec.Range) float64

// Sine is a 1 Hz sine spanning 90% of the range.
func Sine(t float64, rng codec.Range) float64 {
	var (
		mid = 0.5 * (rng.Min + rng.Max)
		amp = 0.45 * (rng.Max - rng.Min)
	)
	return mid + amp*math.Sin(2*math.Pi*t)
}

type config struct {
	base       int64 // address of the circular buffer
	blockSize  int
	blockCount int
	rate       float64
	layout     codec.Layout
	rng        codec.Range
	signal     Signal
	now        func() time.Time
}

func newConfig() config {
	return config{
		base:       0x1000_0000,
		blockSize:  100,
		blockCount: 200,
		rate:       1000,
		layout:     codec.Raw24,
		rng:        codec.Range{Min: -10, Max: 10, Unit: "V"},
		signal:     Sine,
		now:        time.Now,
	}
}

// Option configures a simulated board.
type Option func(cfg *config)

// WithBase sets the address of the circular buffer.
func WithBase(addr int64) Option {
	return func(cfg *config) {
		cfg.base = addr
	}
}

// WithBlocks sets the circular buffer size to size*count samples.
func WithBlocks(size, count int) Option {
	return func(cfg *config) {
		cfg.blockSize = size
		cfg.blockCount = count
	}
}

// WithSampleRate sets the sample rate in Hz.
func WithSampleRate(hz float64) Option {
	return func(cfg *config) {
		cfg.rate = hz
	}
}

// WithLayout sets the layout of the raw samples.
func WithLayout(lay codec.Layout) Option {
	return func(cfg *config) {
		cfg.layout = lay
	}
}

// WithRange sets the initially requested measurement range.
func WithRange(rng codec.Range) Option {
	return func(cfg *config) {
		cfg.rng = rng
	}
}

// WithSignal sets the simulated signal.
func WithSignal(sig Signal) Option {
	return func(cfg *config) {
		cfg.signal = sig
	}
}

// WithClock sets the clock driving the acquisition.
func WithClock(now func() time.Time) Option {
	return func(cfg *config) {
		cfg.now = now
	}
}
