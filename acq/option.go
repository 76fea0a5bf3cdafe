// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package acq

import (
	"log"
	"time"
)

type config struct {
	width    int           // sample width in bytes
	poll     time.Duration // delay between polls of an idle board
	backoff  time.Duration // max adaptive delay; zero for a fixed delay
	adcDelay int           // number of samples of ADC pipeline delay
	msg      *log.Logger
}

func newConfig() config {
	return config{
		width: 4,
		poll:  100 * time.Millisecond,
	}
}

// Option configures a Session.
type Option func(cfg *config)

// WithSampleWidth sets the width in bytes of a sample in the circular
// buffer (default: 4).
func WithSampleWidth(n int) Option {
	return func(cfg *config) {
		cfg.width = n
	}
}

// WithPoll sets the delay before polling again a board that had no new
// samples (default: 100ms).
func WithPoll(d time.Duration) Option {
	return func(cfg *config) {
		cfg.poll = d
	}
}

// WithBackoff makes the idle delay adaptive: starting from the poll delay,
// it grows exponentially up to max while the board stays idle, and is
// reset as soon as samples are available.
func WithBackoff(max time.Duration) Option {
	return func(cfg *config) {
		cfg.backoff = max
	}
}

// WithADCDelay compensates for the ADC pipeline delay of some boards:
// the n samples at the read position are never decoded nor released, so
// the first n samples of the acquisition are skipped and n samples of lag
// stay in the buffer.
func WithADCDelay(n int) Option {
	return func(cfg *config) {
		cfg.adcDelay = n
	}
}

// WithLogger sets the logger used to report the acquisition progress.
func WithLogger(msg *log.Logger) Option {
	return func(cfg *config) {
		cfg.msg = msg
	}
}
