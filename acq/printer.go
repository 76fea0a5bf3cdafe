// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package acq

import (
	"fmt"
	"io"

	"github.com/go-lpc/trion/ring"
)

// Printer is a Sink printing one sample out of every N.
type Printer struct {
	w     io.Writer
	every int64
	unit  string
	n     int64
}

// NewPrinter returns a printer writing one sample out of every to w,
// with values in the given unit.
func NewPrinter(w io.Writer, every int, unit string) *Printer {
	if every <= 0 {
		every = 1
	}
	return &Printer{w: w, every: int64(every), unit: unit}
}

func (p *Printer) Consume(batch []ring.Sample) error {
	for _, smp := range batch {
		if p.n%p.every == 0 {
			_, err := fmt.Fprintf(p.w, "Raw: %8.8x   Scaled: %4.3f[%s]\n", uint32(smp.Raw), smp.Value, p.unit)
			if err != nil {
				return fmt.Errorf("acq: could not print sample: %w", err)
			}
		}
		p.n++
	}
	return nil
}

var _ Sink = (*Printer)(nil)
