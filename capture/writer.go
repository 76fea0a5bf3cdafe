// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package capture

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/go-lpc/trion/internal/crc16"
	"github.com/go-lpc/trion/ring"
)

// Writer writes raw samples to a capture file.
type Writer struct {
	w   *bufio.Writer
	hdr Header
	buf []byte
	n   uint64
	crc *crc16.Hash
	err error
}

// NewWriter writes the capture header to w and returns a writer for the
// samples described by hdr.
// The trailer is written by Close.
func NewWriter(w io.Writer, hdr Header) (*Writer, error) {
	err := hdr.Validate()
	if err != nil {
		return nil, err
	}

	cw := &Writer{
		w:   bufio.NewWriter(w),
		hdr: hdr,
		buf: make([]byte, 4),
		crc: crc16.New(nil),
	}

	_, err = cw.w.Write(hdr.marshal())
	if err != nil {
		return nil, fmt.Errorf("capture: could not write header: %w", err)
	}

	return cw, nil
}

// Header returns the capture header.
func (w *Writer) Header() Header { return w.hdr }

// N returns the number of samples written so far.
func (w *Writer) N() int64 { return int64(w.n) }

// WriteRaw writes raw sample words.
// Words are truncated to the sample width.
func (w *Writer) WriteRaw(raws ...uint32) error {
	for _, raw := range raws {
		if w.err != nil {
			return w.err
		}
		binary.LittleEndian.PutUint32(w.buf, raw)
		p := w.buf[:w.hdr.Width]
		_, w.err = w.w.Write(p)
		if w.err != nil {
			w.err = fmt.Errorf("capture: could not write sample %d: %w", w.n, w.err)
			return w.err
		}
		_, _ = w.crc.Write(p)
		w.n++
	}
	return nil
}

// Consume implements acq.Sink.
// Samples are recorded as the raw words read from the board, padding bits
// included.
func (w *Writer) Consume(batch []ring.Sample) error {
	for _, smp := range batch {
		err := w.WriteRaw(smp.Word)
		if err != nil {
			return err
		}
	}
	return nil
}

// Close writes the trailer and flushes the capture file.
// It does not close the underlying writer.
func (w *Writer) Close() error {
	if w.err != nil {
		return w.err
	}

	tlr := make([]byte, tlrSize)
	binary.LittleEndian.PutUint64(tlr[0:], w.n)
	binary.LittleEndian.PutUint16(tlr[8:], w.crc.Sum16())

	_, err := w.w.Write(tlr)
	if err != nil {
		return fmt.Errorf("capture: could not write trailer: %w", err)
	}

	err = w.w.Flush()
	if err != nil {
		return fmt.Errorf("capture: could not flush capture file: %w", err)
	}

	w.err = fmt.Errorf("capture: writer closed")
	return nil
}
