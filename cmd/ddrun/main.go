// Copyright 2015 Dorival Pedroso and Raul Durand. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"flag"

	"github.com/cpmech/gosl/mpi"
	"github.com/cpmech/gosl/utl"

	"github.com/lizhen2105/gromacs/dd"
)

func main() {

	// catch errors
	utl.Tsilent = false
	defer func() {
		if mpi.Rank() == 0 {
			if err := recover(); err != nil {
				utl.PfRed("ERROR: %v\n", err)
			}
		}
		mpi.Stop(false)
	}()
	mpi.Start(false)

	// message
	utl.PfWhite("\ndd -- spatial domain decomposition engine\n\n")
	utl.Pf("Copyright 2026. All rights reserved.\n")
	utl.Pf("Use of this source code is governed by a BSD-style\n")
	utl.Pf("license that can be found in the LICENSE file.\n\n")

	// configuration filenamepath
	flag.Parse()
	var cfgpath string
	if len(flag.Args()) > 0 {
		cfgpath = flag.Arg(0)
	} else {
		utl.Panic("Please, provide a configuration filename. Ex.: water.dd\n")
	}

	// other options
	verbose := true
	nsteps := 1
	if len(flag.Args()) > 1 {
		verbose = utl.Atob(flag.Arg(1))
	}
	if len(flag.Args()) > 2 {
		nsteps = utl.Atoi(flag.Arg(2))
	}

	// start global variables and log
	g := dd.NewGlobal(cfgpath, verbose)
	defer g.End()

	rank, nproc := 0, 1
	if mpi.IsOn() {
		rank, nproc = mpi.Rank(), mpi.Size()
	}

	eng, err := dd.Init(g.Cfg, nproc, rank)
	if dd.Stop(g, err, "engine initialisation") {
		utl.Panic("dd: initialisation failed\n")
		return
	}

	if g.Verbose {
		utl.Pf("topology: %d PP ranks, %d active dimensions, cutoff=%.4f\n",
			nproc, eng.Topo.Ndim, eng.Cutoff())
	}

	run(g, eng, nsteps)
}

// run drives a minimal partition/halo step loop: force evaluation, PME
// and neighbor search are out of scope (spec.md §1 Non-goals), so each
// step here only exercises the decomposition machinery itself -- one
// Engine.Partition call (DLB update, redistributor, halo builder) per
// step. State collection is not run by this loop.
func run(g *dd.Global, eng *dd.Engine, nsteps int) {
	var home []dd.PendingCG
	var oldBounds [3][2]float64
	var loads [3][]float64
	isRowRoot := [3]bool{true, true, true}

	for step := 0; step < nsteps; step++ {
		out, shouldSort, err := eng.Partition(home, oldBounds, step, loads, isRowRoot, false)
		if dd.Stop(g, err, "partition") {
			utl.Panic("dd: partition failed at step %d\n", step)
			return
		}
		home = out

		if shouldSort && g.Verbose {
			utl.Pf("step %d: sort interval reached\n", step)
		}
	}

	if g.Verbose {
		utl.Pf("completed %d partition steps, ddp_count=%d\n", nsteps, eng.DdpCount())
	}
}
