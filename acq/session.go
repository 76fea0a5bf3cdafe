// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package acq

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/go-lpc/trion/codec"
	"github.com/go-lpc/trion/ring"
)

// Stats summarizes the activity of a Session.
type Stats struct {
	Samples int64 // number of decoded samples
	Batches int64 // number of non-empty polls
	Idle    int64 // number of empty polls
	Last    ring.Sample
}

// Session reads out one acquisition of a Source.
//
// A Session is not safe for concurrent use: there must be a single
// reader per acquisition.
type Session struct {
	cfg   config
	msg   *log.Logger
	src   Source
	codec codec.Codec
	rdr   *ring.Reader

	buf   []ring.Sample
	stats Stats
}

// NewSession prepares the read-out of src.
// The acquisition must already be started: the circular buffer bounds are
// queried once, here.
// Samples are decoded with lay and scaled onto rng, the range granted by
// the board.
func NewSession(src Source, lay codec.Layout, rng codec.Range, opts ...Option) (*Session, error) {
	cfg := newConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	switch {
	case cfg.adcDelay < 0:
		return nil, fmt.Errorf("acq: invalid ADC delay %d", cfg.adcDelay)
	case cfg.poll < 0:
		return nil, fmt.Errorf("acq: invalid poll delay %v", cfg.poll)
	}

	msg := cfg.msg
	if msg == nil {
		msg = log.New(os.Stdout, "acq: ", 0)
	}

	c, err := codec.New(rng, lay)
	if err != nil {
		return nil, fmt.Errorf("acq: could not create sample codec: %w", err)
	}

	err = lay.Fits(cfg.width)
	if err != nil {
		return nil, fmt.Errorf("acq: invalid sample width: %w", err)
	}

	desc, err := src.Bounds()
	if err != nil {
		return nil, fmt.Errorf("acq: could not retrieve circular buffer bounds: %w", err)
	}

	rdr, err := ring.NewReader(src.View(), desc, cfg.width, c)
	if err != nil {
		return nil, fmt.Errorf("acq: could not create circular buffer reader: %w", err)
	}

	return &Session{
		cfg:   cfg,
		msg:   msg,
		src:   src,
		codec: c,
		rdr:   rdr,
	}, nil
}

// Codec returns the codec used to decode samples.
func (s *Session) Codec() codec.Codec { return s.codec }

// Stats returns the activity of the session so far.
func (s *Session) Stats() Stats { return s.stats }

// Run polls the source until ctx is canceled, the source overflows or
// the source is exhausted.
//
// Each batch of available samples is decoded, handed to sink and then
// released to the source.
// Run returns nil when ctx is canceled or the source is exhausted, and
// ErrOverflow when the source overflowed.
// Any other error ends the acquisition.
func (s *Session) Run(ctx context.Context, sink Sink) error {
	idle := s.idler()
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		n, err := s.poll(sink)
		switch {
		case errors.Is(err, ErrOverflow):
			s.msg.Printf("measurement buffer overflow - stopping acquisition")
			return err
		case errors.Is(err, io.EOF):
			return nil
		case err != nil:
			return err
		}

		if n > 0 {
			idle.Reset()
			continue
		}

		s.stats.Idle++
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(idle.NextBackOff()):
		}
	}
}

// poll reads out one batch and returns its size.
func (s *Session) poll(sink Sink) (int, error) {
	n, err := s.src.Available()
	if err != nil {
		if errors.Is(err, ErrOverflow) || errors.Is(err, io.EOF) {
			return 0, err
		}
		return 0, fmt.Errorf("acq: could not get number of available samples: %w", err)
	}

	n -= s.cfg.adcDelay
	if n <= 0 {
		return 0, nil
	}

	pos, err := s.src.ReadPos()
	if err != nil {
		return 0, fmt.Errorf("acq: could not get read position: %w", err)
	}
	cur := ring.Cursor{Pos: pos + int64(s.cfg.adcDelay*s.cfg.width)}

	s.buf, _, err = s.rdr.Decode(s.buf[:0], cur, n)
	if err != nil {
		// a read error is terminal: release the batch so the producer
		// is left in a consistent state.
		if errFree := s.src.Free(n); errFree != nil {
			s.msg.Printf("could not free %d samples: %+v", n, errFree)
		}
		return 0, fmt.Errorf("acq: could not decode %d samples at 0x%x: %w", n, cur.Pos, err)
	}

	errSink := sink.Consume(s.buf)

	err = s.src.Free(n)
	if err != nil {
		return 0, fmt.Errorf("acq: could not free %d samples: %w", n, err)
	}

	s.stats.Samples += int64(n)
	s.stats.Batches++
	s.stats.Last = s.buf[len(s.buf)-1]

	if errSink != nil {
		return n, fmt.Errorf("acq: could not consume %d samples: %w", n, errSink)
	}
	return n, nil
}

func (s *Session) idler() backoff.BackOff {
	if s.cfg.poll == 0 || s.cfg.backoff <= s.cfg.poll {
		return backoff.NewConstantBackOff(s.cfg.poll)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.cfg.poll
	bo.RandomizationFactor = 0
	bo.MaxInterval = s.cfg.backoff
	bo.MaxElapsedTime = 0 // never give up.
	bo.Reset()
	return bo
}

// Acquire starts brd, reads it out until ctx is canceled or the board
// overflows, and stops it.
func Acquire(ctx context.Context, brd Board, lay codec.Layout, rng codec.Range, sink Sink, opts ...Option) (Stats, error) {
	err := brd.Start()
	if err != nil {
		return Stats{}, fmt.Errorf("acq: could not start acquisition: %w", err)
	}

	var stats Stats
	err = func() error {
		sess, err := NewSession(brd, lay, rng, opts...)
		if err != nil {
			return err
		}
		defer func() {
			stats = sess.Stats()
		}()
		return sess.Run(ctx, sink)
	}()

	errStop := brd.Stop()
	switch {
	case err != nil:
		return stats, err
	case errStop != nil:
		return stats, fmt.Errorf("acq: could not stop acquisition: %w", errStop)
	}
	return stats, nil
}
