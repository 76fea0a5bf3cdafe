// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command trion-acq acquires samples from a TRION board in stand-alone mode.
//
// Usage: trion-acq [options] [board-id] [channel]
//
// Samples are read out of a simulated board, or replayed from a capture
// file, and printed to stdout until the board overflows, the replay is
// exhausted or the command is interrupted.
package main // import "github.com/go-lpc/trion/cmd/trion-acq"

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/go-lpc/trion/acq"
	"github.com/go-lpc/trion/capture"
	"github.com/go-lpc/trion/codec"
	"github.com/go-lpc/trion/internal/config"
	"github.com/go-lpc/trion/ring"
	"github.com/go-lpc/trion/sim"
	"github.com/sbinet/pmon"
	"golang.org/x/sync/errgroup"
)

func main() {
	var (
		cfgName = flag.String("cfg", "", "path to YAML configuration file")
		doSim   = flag.Bool("sim", true, "acquire from a simulated board")
		replay  = flag.String("replay", "", "replay samples from capture file")
		oname   = flag.String("o", "", "write raw samples to capture file")
		hname   = flag.String("hist", "", "write histogram of scaled values to YODA file")
		every   = flag.Int("every", 0, "print every n-th sample (default from configuration)")
		nmax    = flag.Int64("n", 0, "stop after n samples (0: no limit)")
		doMon   = flag.Bool("pmon", false, "enable pmon monitoring")
		doFreq  = flag.Duration("freq", 1*time.Second, "pmon frequency")
	)

	log.SetPrefix("trion-acq: ")
	log.SetFlags(0)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `trion-acq acquires samples from a TRION board.

Usage: trion-acq [options] [board-id] [channel]

ex:
 $> trion-acq -every=100 0 0
 $> trion-acq -cfg=trion.yml -o=run.raw 1 3
 $> trion-acq -replay=run.raw -hist=run.yoda

options:
`)
		flag.PrintDefaults()
	}

	flag.Parse()

	cfg, err := config.Load(*cfgName)
	if err != nil {
		log.Fatalf("could not load configuration: %+v", err)
	}

	err = parseArgs(&cfg, flag.Args())
	if err != nil {
		flag.Usage()
		log.Fatalf("invalid arguments: %+v", err)
	}

	if *every > 0 {
		cfg.Every = *every
	}

	opts := options{
		cfg:    cfg,
		sim:    *doSim,
		replay: *replay,
		oname:  *oname,
		hname:  *hname,
		max:    *nmax,
		pmon:   *doMon,
		freq:   *doFreq,
	}

	_, err = run(context.Background(), os.Stdout, opts, make(chan os.Signal, 1))
	if err != nil {
		log.Fatalf("could not run acquisition: %+v", err)
	}
}

func parseArgs(cfg *config.Config, args []string) error {
	if len(args) > 2 {
		return fmt.Errorf("too many arguments (%d)", len(args))
	}

	dst := []*int{&cfg.Board, &cfg.Channel}
	for i, arg := range args {
		v, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("could not parse argument %q: %w", arg, err)
		}
		*dst[i] = v
	}

	return cfg.Validate()
}

type options struct {
	cfg     config.Config
	sim     bool
	replay  string // capture file to replay
	oname   string // capture file to write
	hname   string // histogram file to write
	max     int64  // maximum number of samples
	pmon    bool
	freq    time.Duration
	simOpts []sim.Option
}

func run(ctx context.Context, w io.Writer, opts options, stop chan os.Signal) (acq.Stats, error) {
	signal.Notify(stop, os.Interrupt)
	defer signal.Stop(stop)

	brd, hdr, err := openBoard(opts)
	if err != nil {
		return acq.Stats{}, err
	}
	defer brd.Close()

	log.Printf("board %d, channel %d: range=%q, rate=%v Hz",
		opts.cfg.Board, opts.cfg.Channel, hdr.Range.String(), hdr.Rate,
	)

	if opts.pmon {
		p, err := pmon.Monitor(os.Getpid())
		if err != nil {
			return acq.Stats{}, fmt.Errorf("could not start monitoring: %w", err)
		}
		f, err := os.Create("trion-acq-pmon.log")
		if err != nil {
			return acq.Stats{}, fmt.Errorf("could not create pmon log file: %w", err)
		}
		defer f.Close()
		p.W = f
		p.Freq = opts.freq

		go func() {
			err := p.Run()
			if err != nil {
				log.Printf("could not start monitoring: %+v", err)
			}
		}()

		defer func() {
			err := p.Kill()
			if err != nil {
				log.Printf("could not stop monitoring: %+v", err)
			}
		}()
	}

	var (
		sinks = []acq.Sink{acq.NewPrinter(w, opts.cfg.Every, hdr.Range.Unit)}
		raw   *capture.Writer
	)
	if opts.oname != "" {
		f, err := os.Create(opts.oname)
		if err != nil {
			return acq.Stats{}, fmt.Errorf("could not create capture file: %w", err)
		}
		defer f.Close()

		raw, err = capture.NewWriter(f, hdr)
		if err != nil {
			return acq.Stats{}, fmt.Errorf("could not create capture writer: %w", err)
		}
		sinks = append(sinks, raw)
	}

	var hist *histSink
	if opts.hname != "" {
		hist = newHistSink(hdr.Range, 100)
		sinks = append(sinks, hist)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var n int64
	sink := acq.SinkFunc(func(batch []ring.Sample) error {
		for _, sink := range sinks {
			err := sink.Consume(batch)
			if err != nil {
				return err
			}
		}
		n += int64(len(batch))
		if opts.max > 0 && n >= opts.max {
			cancel()
		}
		return nil
	})

	aopts := append(opts.cfg.AcqOptions(), acq.WithSampleWidth(hdr.Width))
	if opts.replay != "" {
		// captured samples were recorded past the ADC delay.
		aopts = append(aopts, acq.WithADCDelay(0))
	}

	var (
		grp, gctx = errgroup.WithContext(ctx)
		stats     acq.Stats
	)
	grp.Go(func() error {
		defer cancel()

		var err error
		stats, err = acq.Acquire(gctx, brd, hdr.Layout, hdr.Range, sink, aopts...)
		switch {
		case errors.Is(err, acq.ErrOverflow):
			log.Printf("acquisition stopped: %+v", err)
			return nil
		case err != nil:
			return fmt.Errorf("could not acquire samples: %w", err)
		}
		return nil
	})

	grp.Go(func() error {
		select {
		case <-stop:
			log.Printf("interrupted, stopping acquisition...")
			cancel()
		case <-gctx.Done():
		}
		return nil
	})

	err = grp.Wait()
	if err != nil {
		return stats, err
	}

	if raw != nil {
		err = raw.Close()
		if err != nil {
			return stats, fmt.Errorf("could not close capture file: %w", err)
		}
		log.Printf("wrote %d samples to %q", raw.N(), opts.oname)
	}

	if hist != nil {
		err = hist.save(opts.hname)
		if err != nil {
			return stats, err
		}
	}

	log.Printf("acquired %d samples in %d batches (idle polls: %d)",
		stats.Samples, stats.Batches, stats.Idle,
	)

	return stats, nil
}

// openBoard opens the board described by opts and returns the header
// describing its samples.
func openBoard(opts options) (acq.Board, capture.Header, error) {
	switch {
	case opts.replay != "":
		f, err := capture.Open(opts.replay, opts.cfg.Acq.Block)
		if err != nil {
			return nil, capture.Header{}, fmt.Errorf("could not open replay file: %w", err)
		}
		return f, f.Header(), nil

	case opts.sim:
		brd, err := sim.NewBoard(append(opts.cfg.SimOptions(), opts.simOpts...)...)
		if err != nil {
			return nil, capture.Header{}, fmt.Errorf("could not create simulated board: %w", err)
		}

		// the board reports the range it granted, which may be wider
		// than the requested one.
		rng, err := codec.ParseRange(brd.Range())
		if err != nil {
			_ = brd.Close()
			return nil, capture.Header{}, fmt.Errorf("could not parse board range: %w", err)
		}

		return brd, capture.Header{
			Width:  4,
			Layout: brd.Layout(),
			Range:  rng,
			Rate:   brd.SampleRate(),
		}, nil
	}

	return nil, capture.Header{}, fmt.Errorf("no board available: use -sim or -replay")
}
