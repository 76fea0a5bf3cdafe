// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"

	"github.com/go-lpc/trion/codec"
	"github.com/go-lpc/trion/ring"
	"go-hep.org/x/hep/hbook"
)

// histSink histograms the scaled values of the acquired samples.
type histSink struct {
	h *hbook.H1D
}

func newHistSink(rng codec.Range, nbins int) *histSink {
	h := hbook.NewH1D(nbins, rng.Min, rng.Max)
	h.Annotation()["name"] = "values"
	h.Annotation()["title"] = "scaled values [" + rng.Unit + "]"
	return &histSink{h: h}
}

func (hs *histSink) Consume(batch []ring.Sample) error {
	for _, smp := range batch {
		hs.h.Fill(smp.Value, 1)
	}
	return nil
}

// save writes the histogram to the named file, in YODA format.
func (hs *histSink) save(fname string) error {
	raw, err := hs.h.MarshalYODA()
	if err != nil {
		return fmt.Errorf("could not marshal histogram: %w", err)
	}

	err = os.WriteFile(fname, raw, 0644)
	if err != nil {
		return fmt.Errorf("could not write histogram file: %w", err)
	}
	return nil
}
