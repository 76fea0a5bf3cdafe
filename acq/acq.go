// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package acq drives the acquisition loop of a TRION board: it polls the
// board for newly available samples, decodes them out of the board's
// circular buffer and releases the consumed slots.
package acq // import "github.com/go-lpc/trion/acq"

import (
	"errors"
	"io"

	"github.com/go-lpc/trion/ring"
)

// ErrOverflow is reported by a Source when its circular buffer has been
// overwritten before the samples could be read out.
// It terminates the acquisition loop.
var ErrOverflow = errors.New("acq: buffer overwrite")

// Source is the producer side of an acquisition: the board driver.
type Source interface {
	// Available returns the number of samples ready to be read.
	// It returns ErrOverflow when the circular buffer overflowed and
	// io.EOF when no more samples will ever be produced.
	Available() (int, error)

	// ReadPos returns the absolute address of the oldest unread sample.
	ReadPos() (int64, error)

	// Bounds returns the circular buffer geometry.
	Bounds() (ring.Descriptor, error)

	// Free releases n samples back to the producer.
	Free(n int) error

	// View returns the circular buffer memory, addressed with the
	// absolute positions of Bounds.
	View() io.ReaderAt
}

// Board is a Source whose acquisition can be started and stopped.
type Board interface {
	Source

	Start() error
	Stop() error
	Close() error
}

// Sink consumes batches of decoded samples.
// The batch is only valid during the call.
type Sink interface {
	Consume(batch []ring.Sample) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(batch []ring.Sample) error

func (f SinkFunc) Consume(batch []ring.Sample) error { return f(batch) }

// Discard is a Sink that drops all samples.
var Discard Sink = SinkFunc(func([]ring.Sample) error { return nil })
