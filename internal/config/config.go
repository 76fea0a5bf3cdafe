// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config loads the configuration of the TRION commands.
package config // import "github.com/go-lpc/trion/internal/config"

import (
	"fmt"
	"time"

	"github.com/go-lpc/trion/acq"
	"github.com/go-lpc/trion/codec"
	"github.com/go-lpc/trion/sim"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
)

// Config is the configuration of an acquisition.
type Config struct {
	Board   int    `koanf:"board"`
	Channel int    `koanf:"channel"`
	Range   string `koanf:"range"` // requested range, e.g. "-10..10 V"

	Layout LayoutConf `koanf:"layout"`
	Sim    SimConf    `koanf:"sim"`
	Acq    AcqConf    `koanf:"acq"`

	Every int `koanf:"every"` // print every n-th sample
}

// LayoutConf describes the position of the data field in a raw sample.
type LayoutConf struct {
	Width int `koanf:"width"`
	Shift int `koanf:"shift"`
}

// SimConf configures the simulated board.
type SimConf struct {
	Rate       float64 `koanf:"rate"`
	BlockSize  int     `koanf:"block_size"`
	BlockCount int     `koanf:"block_count"`
}

// AcqConf configures the acquisition loop.
type AcqConf struct {
	Poll     time.Duration `koanf:"poll"`
	Backoff  time.Duration `koanf:"backoff"`
	ADCDelay int           `koanf:"adc_delay"`
	Block    int           `koanf:"replay_block"` // samples per poll when replaying
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Board:   0,
		Channel: 0,
		Range:   "-10..10 V",
		Layout: LayoutConf{
			Width: codec.Raw24.Width,
			Shift: codec.Raw24.Shift,
		},
		Sim: SimConf{
			Rate:       1000,
			BlockSize:  100,
			BlockCount: 200,
		},
		Acq: AcqConf{
			Poll:    100 * time.Millisecond,
			Backoff: time.Second,
			Block:   100,
		},
		Every: 1,
	}
}

// Load loads the configuration from the named YAML file, on top of the
// default configuration.
// An empty file name returns the default configuration.
func Load(fname string) (Config, error) {
	k := koanf.New(".")

	err := k.Load(structs.Provider(Default(), "koanf"), nil)
	if err != nil {
		return Config{}, fmt.Errorf("config: could not load defaults: %w", err)
	}

	if fname != "" {
		err = k.Load(file.Provider(fname), yaml.Parser())
		if err != nil {
			return Config{}, fmt.Errorf("config: could not load %q: %w", fname, err)
		}
	}

	var cfg Config
	err = k.Unmarshal("", &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("config: could not decode configuration: %w", err)
	}

	err = cfg.Validate()
	if err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks the configuration is consistent.
func (cfg Config) Validate() error {
	switch {
	case cfg.Board < 0:
		return fmt.Errorf("config: invalid board id %d", cfg.Board)
	case cfg.Channel < 0:
		return fmt.Errorf("config: invalid channel %d", cfg.Channel)
	case cfg.Every <= 0:
		return fmt.Errorf("config: invalid print decimation %d", cfg.Every)
	case cfg.Sim.Rate <= 0:
		return fmt.Errorf("config: invalid sample rate %v", cfg.Sim.Rate)
	case cfg.Sim.BlockSize <= 0 || cfg.Sim.BlockCount <= 0:
		return fmt.Errorf("config: invalid buffer geometry (block-size=%d, block-count=%d)",
			cfg.Sim.BlockSize, cfg.Sim.BlockCount,
		)
	case cfg.Acq.Poll < 0 || cfg.Acq.Backoff < 0:
		return fmt.Errorf("config: invalid polling delays (poll=%v, backoff=%v)",
			cfg.Acq.Poll, cfg.Acq.Backoff,
		)
	case cfg.Acq.ADCDelay < 0:
		return fmt.Errorf("config: invalid ADC delay %d", cfg.Acq.ADCDelay)
	case cfg.Acq.Block <= 0:
		return fmt.Errorf("config: invalid replay block size %d", cfg.Acq.Block)
	}

	err := cfg.SampleLayout().Validate()
	if err != nil {
		return fmt.Errorf("config: invalid sample layout: %w", err)
	}

	_, err = codec.ParseRange(cfg.Range)
	if err != nil {
		return fmt.Errorf("config: invalid range: %w", err)
	}

	return nil
}

// SampleLayout returns the configured sample layout.
func (cfg Config) SampleLayout() codec.Layout {
	return codec.Layout{Width: cfg.Layout.Width, Shift: cfg.Layout.Shift}
}

// RequestedRange returns the configured range request.
func (cfg Config) RequestedRange() (codec.Range, error) {
	return codec.ParseRange(cfg.Range)
}

// SimOptions returns the options of the simulated board.
func (cfg Config) SimOptions() []sim.Option {
	opts := []sim.Option{
		sim.WithBlocks(cfg.Sim.BlockSize, cfg.Sim.BlockCount),
		sim.WithSampleRate(cfg.Sim.Rate),
		sim.WithLayout(cfg.SampleLayout()),
	}
	if rng, err := cfg.RequestedRange(); err == nil {
		opts = append(opts, sim.WithRange(rng))
	}
	return opts
}

// AcqOptions returns the options of the acquisition loop.
func (cfg Config) AcqOptions() []acq.Option {
	return []acq.Option{
		acq.WithPoll(cfg.Acq.Poll),
		acq.WithBackoff(cfg.Acq.Backoff),
		acq.WithADCDelay(cfg.Acq.ADCDelay),
	}
}
