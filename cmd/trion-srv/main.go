// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command trion-srv starts a TDAQ server reading out a TRION board.
//
// The configuration file is read from the TRION_CONFIG environment
// variable, when set.
package main // import "github.com/go-lpc/trion/cmd/trion-srv"

import (
	"context"
	"log"
	"os"

	"github.com/go-daq/tdaq"
	"github.com/go-daq/tdaq/flags"
	"github.com/go-lpc/trion/internal/config"
	"github.com/go-lpc/trion/srv"
)

func main() {
	cmd := flags.New()

	cfg, err := config.Load(os.Getenv("TRION_CONFIG"))
	if err != nil {
		log.Panicf("could not load configuration: %+v", err)
	}

	dev := srv.New(cmd.Name, cfg)

	proc := tdaq.New(cmd, os.Stdout)
	proc.CmdHandle("/config", dev.OnConfig)
	proc.CmdHandle("/init", dev.OnInit)
	proc.CmdHandle("/reset", dev.OnReset)
	proc.CmdHandle("/start", dev.OnStart)
	proc.CmdHandle("/stop", dev.OnStop)
	proc.CmdHandle("/quit", dev.OnQuit)

	proc.OutputHandle("/adc", dev.ADC)

	proc.RunHandle(dev.Run)

	err = proc.Run(context.Background())
	if err != nil {
		log.Panicf("error: %+v", err)
	}
}
