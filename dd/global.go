// Copyright 2015 Dorival Pedroso and Raul Durand. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dd

import (
	"github.com/cpmech/gosl/mpi"

	"github.com/lizhen2105/gromacs/inp"
)

// Global holds process-wide state for one DD run: multiprocessing data,
// the parsed configuration and the scratch workspaces used by collective
// stop/panic agreement. Grounded on mallano-gofem's fem.global struct.
type Global struct {
	Rank     int // my rank in the PP communicator
	Nproc    int // number of PP ranks
	Root     bool // am I PP rank 0?
	Distr    bool // more than one PP rank?
	Verbose  bool // root && user asked for messages
	WspcStop []int // [Nproc] stop-agreement workspace
	WspcInum []int // [Nproc] reduction scratch

	Cfg *inp.Config // parsed DD configuration

	NpmeRanks int // number of dedicated PME ranks (0 => no separate PME)
}

// NewGlobal initialises multiprocessing data and reads the configuration.
// Mirrors fem.Start.
func NewGlobal(cfgpath string, verbose bool) (g *Global) {
	g = new(Global)
	g.Rank = 0
	g.Nproc = 1
	g.Root = true
	g.Distr = false
	if mpi.IsOn() {
		g.Rank = mpi.Rank()
		g.Nproc = mpi.Size()
		g.Root = g.Rank == 0
		g.Distr = g.Nproc > 1
	}
	g.Verbose = verbose && g.Root
	if g.Distr {
		g.WspcStop = make([]int, g.Nproc)
		g.WspcInum = make([]int, g.Nproc)
	}
	g.Cfg = inp.ReadConfig(cfgpath)
	if err := inp.InitLogFile(g.Cfg.DirOut, g.Cfg.FnameKey); err != nil {
		PanicOrNot(g, true, "cannot initialise log file: %v", err)
	}
	return
}

// End flushes the log file. Mirrors fem.End.
func (g *Global) End() {
	inp.FlushLog()
}
