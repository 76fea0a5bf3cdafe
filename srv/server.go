// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package srv exposes a TRION acquisition as a TDAQ process.
//
// The /adc output publishes one frame per batch of samples: the number of
// samples (u32) followed, for each sample, by its raw value (i32) and its
// scaled value (f64), encoded with the TDAQ codec.
package srv // import "github.com/go-lpc/trion/srv"

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/go-daq/tdaq"
	"github.com/go-lpc/trion/acq"
	"github.com/go-lpc/trion/codec"
	"github.com/go-lpc/trion/internal/config"
	"github.com/go-lpc/trion/ring"
	"github.com/go-lpc/trion/sim"
)

var errNoBoard = errors.New("srv: board not initialized")

// Server runs the acquisition of a simulated TRION board under the
// control of a TDAQ run-control.
type Server struct {
	name string
	msg  *log.Logger // acquisition loop logger
	opts []sim.Option

	mu   sync.Mutex
	cfg  config.Config
	brd  *sim.Board
	rng  codec.Range // granted range
	sess *acq.Session
	data chan []byte

	n     int64 // samples published during the current run
	drops int64 // batches dropped during the current run
}

// New creates a new server for the given configuration.
// Options are forwarded to the simulated board.
func New(name string, cfg config.Config, opts ...sim.Option) *Server {
	return &Server{
		name: name,
		msg:  log.New(os.Stdout, name+": ", 0),
		opts: opts,
		cfg:  cfg,
	}
}

// Config returns the current configuration.
func (srv *Server) Config() config.Config {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	return srv.cfg
}

// OnConfig updates the requested range and sample rate.
// An empty request keeps the current configuration.
// Otherwise, the request holds the range (str) and the sample rate (f64).
func (srv *Server) OnConfig(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /config command...")
	if len(req.Body) == 0 {
		return nil
	}

	dec := tdaq.NewDecoder(bytes.NewReader(req.Body))
	var (
		rng  = dec.ReadStr()
		rate = dec.ReadF64()
	)
	if err := dec.Err(); err != nil {
		ctx.Msg.Errorf("could not decode /config request: %+v", err)
		return fmt.Errorf("srv: could not decode /config request: %w", err)
	}

	srv.mu.Lock()
	defer srv.mu.Unlock()

	cfg := srv.cfg
	cfg.Range = rng
	cfg.Sim.Rate = rate
	err := cfg.Validate()
	if err != nil {
		ctx.Msg.Errorf("invalid configuration: %+v", err)
		return fmt.Errorf("srv: invalid configuration: %w", err)
	}
	srv.cfg = cfg
	ctx.Msg.Infof("configuration: range=%q, rate=%v Hz", cfg.Range, cfg.Sim.Rate)

	return nil
}

// OnInit creates the board and applies the configuration.
func (srv *Server) OnInit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /init command...")

	srv.mu.Lock()
	defer srv.mu.Unlock()

	err := srv.closeBoard()
	if err != nil {
		ctx.Msg.Errorf("could not close previous board: %+v", err)
	}

	opts := append(srv.cfg.SimOptions(), srv.opts...)
	brd, err := sim.NewBoard(opts...)
	if err != nil {
		ctx.Msg.Errorf("could not create board %d: %+v", srv.cfg.Board, err)
		return fmt.Errorf("srv: could not create board %d: %w", srv.cfg.Board, err)
	}

	// the board reports the range it granted, which may be wider than the
	// requested one.
	rng, err := codec.ParseRange(brd.Range())
	if err != nil {
		_ = brd.Close()
		return fmt.Errorf("srv: could not parse range of board %d: %w", srv.cfg.Board, err)
	}
	ctx.Msg.Infof("board %d, channel %d: range=%q (requested %q)",
		srv.cfg.Board, srv.cfg.Channel, brd.Range(), srv.cfg.Range,
	)

	srv.brd = brd
	srv.rng = rng
	srv.data = make(chan []byte, 1024)
	srv.n = 0
	srv.drops = 0
	return nil
}

// OnReset releases the board.
func (srv *Server) OnReset(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /reset command...")

	srv.mu.Lock()
	defer srv.mu.Unlock()

	err := srv.closeBoard()
	if err != nil {
		return fmt.Errorf("srv: could not reset board: %w", err)
	}
	return nil
}

// OnStart starts the acquisition.
func (srv *Server) OnStart(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /start command...")

	srv.mu.Lock()
	defer srv.mu.Unlock()

	if srv.brd == nil {
		return errNoBoard
	}

	err := srv.brd.Start()
	if err != nil {
		return fmt.Errorf("srv: could not start acquisition: %w", err)
	}

	opts := append(srv.cfg.AcqOptions(), acq.WithLogger(srv.msg))
	sess, err := acq.NewSession(srv.brd, srv.brd.Layout(), srv.rng, opts...)
	if err != nil {
		_ = srv.brd.Stop()
		return fmt.Errorf("srv: could not create acquisition session: %w", err)
	}

	srv.sess = sess
	srv.n = 0
	srv.drops = 0
	return nil
}

// OnStop stops the acquisition.
func (srv *Server) OnStop(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	ctx.Msg.Debugf("received /stop command... -> n=%d (dropped batches: %d)", srv.n, srv.drops)
	if srv.brd == nil {
		return errNoBoard
	}

	err := srv.brd.Stop()
	if err != nil {
		return fmt.Errorf("srv: could not stop acquisition: %w", err)
	}
	return nil
}

// OnQuit releases the board.
func (srv *Server) OnQuit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /quit command...")

	srv.mu.Lock()
	defer srv.mu.Unlock()

	return srv.closeBoard()
}

func (srv *Server) closeBoard() error {
	if srv.brd == nil {
		return nil
	}
	err := srv.brd.Close()
	srv.brd = nil
	srv.sess = nil
	return err
}

// ADC publishes batches of samples on the /adc output.
func (srv *Server) ADC(ctx tdaq.Context, dst *tdaq.Frame) error {
	srv.mu.Lock()
	data := srv.data
	srv.mu.Unlock()

	select {
	case <-ctx.Ctx.Done():
		dst.Body = nil
		return nil
	case buf := <-data:
		dst.Body = buf
	}
	return nil
}

// Run reads out the board until the run is stopped.
func (srv *Server) Run(ctx tdaq.Context) error {
	srv.mu.Lock()
	var (
		sess = srv.sess
		data = srv.data
	)
	srv.mu.Unlock()

	if sess == nil {
		return errNoBoard
	}

	err := sess.Run(ctx.Ctx, acq.SinkFunc(func(batch []ring.Sample) error {
		buf, err := EncodeBatch(batch)
		if err != nil {
			return err
		}
		srv.mu.Lock()
		defer srv.mu.Unlock()
		select {
		case data <- buf:
			srv.n += int64(len(batch))
		default:
			srv.drops++
		}
		return nil
	}))
	if err != nil {
		ctx.Msg.Errorf("acquisition failed: %+v", err)
		return fmt.Errorf("srv: acquisition failed: %w", err)
	}

	return nil
}

// EncodeBatch encodes a batch of samples into an /adc frame body.
func EncodeBatch(batch []ring.Sample) ([]byte, error) {
	buf := new(bytes.Buffer)
	enc := tdaq.NewEncoder(buf)
	enc.WriteU32(uint32(len(batch)))
	for _, smp := range batch {
		enc.WriteI32(smp.Raw)
		enc.WriteF64(smp.Value)
	}
	if err := enc.Err(); err != nil {
		return nil, fmt.Errorf("srv: could not encode batch: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeBatch decodes an /adc frame body.
// Sample positions are not transmitted.
func DecodeBatch(p []byte) ([]ring.Sample, error) {
	dec := tdaq.NewDecoder(bytes.NewReader(p))
	n := int(dec.ReadU32())
	if err := dec.Err(); err != nil {
		return nil, fmt.Errorf("srv: could not decode batch size: %w", err)
	}
	if lim := len(p) / 12; n > lim {
		return nil, fmt.Errorf("srv: invalid batch size %d (frame=%d bytes)", n, len(p))
	}

	batch := make([]ring.Sample, n)
	for i := range batch {
		batch[i].Raw = dec.ReadI32()
		batch[i].Value = dec.ReadF64()
	}
	if err := dec.Err(); err != nil {
		return nil, fmt.Errorf("srv: could not decode batch: %w", err)
	}
	return batch, nil
}
