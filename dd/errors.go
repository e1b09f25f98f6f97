// Copyright 2015 Dorival Pedroso and Raul Durand. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dd

import (
	"github.com/cpmech/gosl/mpi"
	"github.com/cpmech/gosl/utl"
)

// ConfigError is raised during init for incompatible grid/box/PBC/SLB
// configuration (spec.md §7).
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return "configuration error: " + e.Msg }

// GeometricError is raised per-step when a charge group moves farther
// than cellsize_min from its old cell, a DLB boundary shifts more than
// half a cell, a cell ends up below its minimum size, or the box is too
// small for the requested grid and cutoff (spec.md §7).
type GeometricError struct {
	Msg        string
	Step       int
	CGGlobal   int
	OldCOG     Vec3
	NewCOG     Vec3
	OldBounds  [2]float64
	NewBounds  [2]float64
	Axis       byte
}

func (e *GeometricError) Error() string {
	return utl.Sf("geometric error at step %d (axis %c, cg %d): %s; old cog=%v new cog=%v old bounds=%v new bounds=%v",
		e.Step, e.Axis, e.CGGlobal, e.Msg, e.OldCOG, e.NewCOG, e.OldBounds, e.NewBounds)
}

// ConsistencyError is raised when an internal invariant is violated:
// master/local charge-group disagreement, ddp_count mismatch, atom
// counts that don't balance (spec.md §7).
type ConsistencyError struct {
	Msg string
}

func (e *ConsistencyError) Error() string { return "internal inconsistency: " + e.Msg }

// Stop decides whether a serial or distributed run must halt. In a
// distributed run every PP rank must agree via a collective reduction
// before any of them actually aborts, so that an error local to one rank
// never leaves the others blocked forever inside some other collective.
// Grounded on mallano-gofem's fem.Stop.
func Stop(g *Global, err error, msg string) bool {
	if !g.Distr {
		if err != nil {
			utl.PfMag("dd: run failed on %s with %v\n", msg, err)
			return true
		}
		return false
	}
	for i := 0; i < g.Nproc; i++ {
		g.WspcStop[i] = 0
	}
	if err != nil {
		utl.PfMag("dd: rank %d failed on %s with %v\n", g.Rank, msg, err)
		g.WspcStop[g.Rank] = 1
	}
	mpi.IntAllReduceMax(g.WspcStop, g.WspcInum)
	for i := 0; i < g.Nproc; i++ {
		if g.WspcInum[i] > 0 {
			return true
		}
	}
	return false
}

// PanicOrNot panics if any PP rank wants to panic, after a collective
// agreement in distributed runs. Grounded on fem.PanicOrNot.
func PanicOrNot(g *Global, dopanic bool, msg string, prm ...interface{}) {
	if !g.Distr {
		if dopanic {
			panic(utl.Sf(msg, prm...))
		}
		return
	}
	for i := 0; i < g.Nproc; i++ {
		g.WspcStop[i] = 0
	}
	if dopanic {
		g.WspcStop[g.Rank] = 1
	}
	mpi.IntAllReduceMax(g.WspcStop, g.WspcInum)
	for i := 0; i < g.Nproc; i++ {
		if g.WspcInum[i] > 0 {
			panic(utl.Sf(msg, prm...))
		}
	}
}
