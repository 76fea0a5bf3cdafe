// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sim

import (
	"context"
	"errors"
	"io"
	"log"
	"math"
	"testing"
	"time"

	"github.com/go-lpc/trion/acq"
	"github.com/go-lpc/trion/codec"
	"github.com/go-lpc/trion/ring"
)

// stepClock returns a clock advancing by dt at each call.
func stepClock(dt time.Duration) func() time.Time {
	var (
		t0   = time.Unix(1600000000, 0)
		tick int64
	)
	return func() time.Time {
		tick++
		return t0.Add(time.Duration(tick) * dt)
	}
}

func TestBoardSession(t *testing.T) {
	const (
		rate = 1000.0
		want = 500
	)

	brd, err := NewBoard(
		WithBlocks(10, 10),
		WithSampleRate(rate),
		WithRange(codec.Range{Min: 0, Max: 180, Unit: "Ohm"}),
		WithClock(stepClock(30*time.Millisecond)),
	)
	if err != nil {
		t.Fatalf("could not create board: %+v", err)
	}
	defer brd.Close()

	rng, err := codec.ParseRange(brd.Range())
	if err != nil {
		t.Fatalf("could not parse adjusted range %q: %+v", brd.Range(), err)
	}
	if got, want := rng, (codec.Range{Min: 0, Max: 200, Unit: "Ohm"}); got != want {
		t.Fatalf("invalid adjusted range: got=%+v, want=%+v", got, want)
	}

	err = brd.Start()
	if err != nil {
		t.Fatalf("could not start acquisition: %+v", err)
	}

	sess, err := acq.NewSession(
		brd, brd.Layout(), rng,
		acq.WithPoll(0),
		acq.WithLogger(log.New(io.Discard, "", 0)),
	)
	if err != nil {
		t.Fatalf("could not create session: %+v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		n   = 0
		tol = 2 * sess.Codec().Scaling.Factor
	)
	err = sess.Run(ctx, acq.SinkFunc(func(batch []ring.Sample) error {
		desc, _ := brd.Bounds()
		for _, smp := range batch {
			if smp.Pos < desc.Start || smp.Pos >= desc.End {
				t.Errorf("sample %d read outside buffer: 0x%x", n, smp.Pos)
			}
			want := Sine(float64(n)/rate, rng)
			if math.Abs(smp.Value-want) > tol {
				t.Errorf("sample %d: got=%v, want=%v", n, smp.Value, want)
			}
			n++
		}
		if n >= want {
			cancel()
		}
		return nil
	}))
	if err != nil {
		t.Fatalf("could not run session: %+v", err)
	}

	if n < want {
		t.Fatalf("not enough samples: got=%d, want>=%d", n, want)
	}
	if got, want := brd.Outstanding(), 0; got != want {
		t.Fatalf("invalid outstanding samples: got=%d, want=%d", got, want)
	}
	if got, want := sess.Stats().Samples, int64(n); got != want {
		t.Fatalf("invalid stats: got=%d, want=%d", got, want)
	}

	err = brd.Stop()
	if err != nil {
		t.Fatalf("could not stop acquisition: %+v", err)
	}
}

func TestBoardOverflow(t *testing.T) {
	brd, err := NewBoard(WithBlocks(10, 1), WithClock(stepClock(0)))
	if err != nil {
		t.Fatalf("could not create board: %+v", err)
	}
	defer brd.Close()

	err = brd.Start()
	if err != nil {
		t.Fatalf("could not start acquisition: %+v", err)
	}

	err = brd.Produce(10)
	if err != nil {
		t.Fatalf("could not produce: %+v", err)
	}
	n, err := brd.Available()
	if err != nil {
		t.Fatalf("full buffer is not an overflow: %+v", err)
	}
	if got, want := n, 10; got != want {
		t.Fatalf("invalid available samples: got=%d, want=%d", got, want)
	}

	err = brd.Produce(1)
	if err != nil {
		t.Fatalf("could not produce: %+v", err)
	}

	sess, err := acq.NewSession(
		brd, brd.Layout(), codec.Range{Min: -10, Max: 10},
		acq.WithLogger(log.New(io.Discard, "", 0)),
	)
	if err != nil {
		t.Fatalf("could not create session: %+v", err)
	}

	err = sess.Run(context.Background(), acq.Discard)
	if !errors.Is(err, acq.ErrOverflow) {
		t.Fatalf("expected an overflow, got=%+v", err)
	}

	// restarting the acquisition clears the overflow.
	_ = brd.Stop()
	err = brd.Start()
	if err != nil {
		t.Fatalf("could not restart acquisition: %+v", err)
	}
	n, err = brd.Available()
	if err != nil || n != 0 {
		t.Fatalf("invalid state after restart: n=%d, err=%+v", n, err)
	}
}

type countingMem struct {
	memory
	writes int
}

func (mem *countingMem) WriteAt(p []byte, off int64) (int, error) {
	mem.writes++
	return mem.memory.WriteAt(p, off)
}

func TestBoardLongPause(t *testing.T) {
	brd, err := NewBoard(WithBlocks(10, 1), WithSampleRate(1000), WithClock(stepClock(time.Hour)))
	if err != nil {
		t.Fatalf("could not create board: %+v", err)
	}
	defer brd.Close()

	mem := &countingMem{memory: brd.mem}
	brd.mem = mem

	err = brd.Start()
	if err != nil {
		t.Fatalf("could not start acquisition: %+v", err)
	}

	_, err = brd.Available()
	if !errors.Is(err, acq.ErrOverflow) {
		t.Fatalf("expected an overflow, got=%+v", err)
	}
	if got, want := mem.writes, brd.Capacity()+1; got != want {
		t.Fatalf("invalid number of written samples: got=%d, want=%d", got, want)
	}
	if got, want := brd.Outstanding(), 3600*1000; got != want {
		t.Fatalf("invalid outstanding samples: got=%d, want=%d", got, want)
	}
}

func TestBoardReadPos(t *testing.T) {
	const base = 0x2000
	brd, err := NewBoard(WithBase(base), WithBlocks(5, 2))
	if err != nil {
		t.Fatalf("could not create board: %+v", err)
	}
	defer brd.Close()

	desc, err := brd.Bounds()
	if err != nil {
		t.Fatalf("could not get bounds: %+v", err)
	}
	if got, want := desc, (ring.Descriptor{Start: base, End: base + 40, Size: 40}); got != want {
		t.Fatalf("invalid bounds: got=%+v, want=%+v", got, want)
	}

	for _, step := range []struct {
		produce int
		free    int
		pos     int64
	}{
		{produce: 8, free: 8, pos: base + 8*4},
		{produce: 5, free: 4, pos: base + 2*4},
		{produce: 0, free: 1, pos: base + 3*4},
	} {
		err = brd.Produce(step.produce)
		if err != nil {
			t.Fatalf("could not produce: %+v", err)
		}
		err = brd.Free(step.free)
		if err != nil {
			t.Fatalf("could not free: %+v", err)
		}
		pos, err := brd.ReadPos()
		if err != nil {
			t.Fatalf("could not get read position: %+v", err)
		}
		if pos != step.pos {
			t.Fatalf("invalid read position: got=0x%x, want=0x%x", pos, step.pos)
		}
	}

	if got, want := brd.Outstanding(), 0; got != want {
		t.Fatalf("invalid outstanding samples: got=%d, want=%d", got, want)
	}

	for _, n := range []int{-1, 1} {
		err = brd.Free(n)
		if err == nil {
			t.Fatalf("free(%d): expected an error", n)
		}
	}
}

func TestBoardSetRange(t *testing.T) {
	brd, err := NewBoard()
	if err != nil {
		t.Fatalf("could not create board: %+v", err)
	}
	defer brd.Close()

	if got, want := brd.Range(), "-10.000000..10.000000 V"; got != want {
		t.Fatalf("invalid default range: got=%q, want=%q", got, want)
	}

	for _, tc := range []struct {
		req  codec.Range
		want codec.Range
		err  bool
	}{
		{req: codec.Range{Min: 0, Max: 200, Unit: "Ohm"}, want: codec.Range{Min: 0, Max: 200, Unit: "Ohm"}},
		{req: codec.Range{Min: -3, Max: 4, Unit: "V"}, want: codec.Range{Min: -5, Max: 5, Unit: "V"}},
		{req: codec.Range{Min: 0.001, Max: 0.015, Unit: "V"}, want: codec.Range{Min: 0, Max: 0.02, Unit: "V"}},
		{req: codec.Range{Min: -850, Max: 200, Unit: "Ohm"}, want: codec.Range{Min: -1000, Max: 1000, Unit: "Ohm"}},
		{req: codec.Range{Min: -1e6, Max: 1e6}, err: true},
		{req: codec.Range{Min: 1, Max: 0}, err: true},
	} {
		t.Run(tc.req.String(), func(t *testing.T) {
			got, err := brd.SetRange(tc.req)
			switch {
			case tc.err && err == nil:
				t.Fatalf("expected an error")
			case tc.err:
				return
			case err != nil:
				t.Fatalf("could not set range: %+v", err)
			}
			if got != tc.want {
				t.Fatalf("invalid granted range: got=%+v, want=%+v", got, tc.want)
			}
			back, err := codec.ParseRange(brd.Range())
			if err != nil {
				t.Fatalf("could not parse range: %+v", err)
			}
			if back != tc.want {
				t.Fatalf("invalid read-back range: got=%+v, want=%+v", back, tc.want)
			}
		})
	}
}

func TestBoardRunning(t *testing.T) {
	brd, err := NewBoard()
	if err != nil {
		t.Fatalf("could not create board: %+v", err)
	}
	defer brd.Close()

	err = brd.Stop()
	if !errors.Is(err, errNotRunning) {
		t.Fatalf("expected a not-running error, got=%+v", err)
	}

	err = brd.SetSampleRate(-1)
	if err == nil {
		t.Fatalf("expected an invalid sample rate error")
	}
	err = brd.SetSampleRate(500)
	if err != nil {
		t.Fatalf("could not set sample rate: %+v", err)
	}
	if got, want := brd.SampleRate(), 500.0; got != want {
		t.Fatalf("invalid sample rate: got=%v, want=%v", got, want)
	}

	err = brd.Start()
	if err != nil {
		t.Fatalf("could not start: %+v", err)
	}

	err = brd.Start()
	if !errors.Is(err, errRunning) {
		t.Fatalf("expected a running error, got=%+v", err)
	}
	err = brd.SetSampleRate(100)
	if !errors.Is(err, errRunning) {
		t.Fatalf("expected a running error, got=%+v", err)
	}
	_, err = brd.SetRange(codec.Range{Min: 0, Max: 1})
	if !errors.Is(err, errRunning) {
		t.Fatalf("expected a running error, got=%+v", err)
	}

	err = brd.Close()
	if err != nil {
		t.Fatalf("could not close board: %+v", err)
	}
}

func TestNewBoard(t *testing.T) {
	for _, tc := range []struct {
		name string
		opt  Option
	}{
		{"no-blocks", WithBlocks(0, 10)},
		{"no-rate", WithSampleRate(0)},
		{"bad-layout", WithLayout(codec.Layout{Width: 24, Shift: 12})},
		{"bad-base", WithBase(-1)},
		{"bad-range", WithRange(codec.Range{Min: 2, Max: 1})},
	} {
		t.Run(tc.name, func(t *testing.T) {
			brd, err := NewBoard(tc.opt)
			if err == nil {
				_ = brd.Close()
				t.Fatalf("expected an error")
			}
		})
	}
}
