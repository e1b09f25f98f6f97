// Copyright 2015 Dorival Pedroso and Raul Durand. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dd

import (
	"math/rand"

	"github.com/cpmech/gosl/fun"
)

// CellLoad is the per-cell load vector gathered along a row
// communicator: up to 9 floats per spec.md §4.9 (force cycles, maxima,
// PME cycles, staggering bounds, flag word).
type CellLoad struct {
	ForceCycles float64
	MaxCycles   float64
	PmeCycles   float64
	BoundMin    float64
	BoundMax    float64
	Flags       float64
}

// StepStats accumulates DDMASTER-level statistics across one balancing
// interval (spec.md §4.9).
type StepStats struct {
	LoadMax float64
	LoadSum float64
	LoadPme float64
	LoadMdf float64
	Limited [3]int // per-dimension "limited" counters
}

// LoadMonitor gathers row-local load vectors and reduces them into
// per-dimension load records, once per balancing interval. Grounded on
// spec.md §4.9 / original_source/src/mdlib/domdec.c's row-communicator
// cycle-count gather.
type LoadMonitor struct {
	topo *Topology
	comm *Comm

	// UseFlop selects the optional flop-based metric (GMX_DLB_FLOP) in
	// place of measured cycle counts; JitterPct models the up-to ±5% *
	// (val-1) jitter spec.md §4.9 allows for testing balancing
	// robustness. applyJitter draws the jitter from math/rand; jitterFn
	// is not set or read anywhere.
	UseFlop   bool
	JitterPct float64
	jitterFn  fun.Func

	Stats StepStats
}

// NewLoadMonitor binds a load monitor to its topology/comm and the
// GMX_DLB_FLOP environment setting.
func NewLoadMonitor(topo *Topology, comm *Comm, env Environment) *LoadMonitor {
	m := &LoadMonitor{topo: topo, comm: comm}
	if env.DlbFlop >= 1 {
		m.UseFlop = true
	}
	if env.DlbFlop > 1 {
		m.JitterPct = float64(env.DlbFlop-1) * 0.05
	}
	return m
}

// GatherRow reduces this rank's measured (or flop-estimated) cell load
// along dimension d's row communicator, returning the per-cell vector on
// the row root (nil elsewhere). Comm has no sub-communicator concept, so
// every rank publishes its vector world-wide via AllGatherFloats and the
// row root picks out just its row's slice via Topology.RowRanks.
func (m *LoadMonitor) GatherRow(d int, local CellLoad, isRowRoot bool, ncInRow int) []float64 {
	if m.UseFlop {
		local = m.applyJitter(local)
	}
	raw := []float64{local.ForceCycles, local.MaxCycles, local.PmeCycles, local.BoundMin, local.BoundMax, local.Flags}
	if m.comm == nil {
		if isRowRoot {
			return raw
		}
		return nil
	}

	counts := make([]int, m.comm.Size())
	for i := range counts {
		counts[i] = len(raw)
	}
	world := m.comm.AllGatherFloats(raw, counts)

	if !isRowRoot {
		return nil
	}
	rowRanks := m.topo.RowRanks(d)
	gathered := make([]float64, 0, len(rowRanks)*len(raw))
	for _, r := range rowRanks {
		gathered = append(gathered, world[r*len(raw):(r+1)*len(raw)]...)
	}
	return gathered
}

// applyJitter adds up to +/- JitterPct of the measured value, modeling
// the flop-based metric's synthetic imbalance for balancing-robustness
// testing (spec.md §4.9).
func (m *LoadMonitor) applyJitter(c CellLoad) CellLoad {
	if m.JitterPct <= 0 {
		return c
	}
	j := 1 + (rand.Float64()*2-1)*m.JitterPct
	c.ForceCycles *= j
	c.PmeCycles *= j
	return c
}

// AccumulateStats folds one balancing interval's reduced loads into the
// DDMASTER-level step statistics.
func (m *LoadMonitor) AccumulateStats(loadMax, loadSum, loadPme, loadMdf float64, limitedPerDim [3]bool) {
	m.Stats.LoadMax += loadMax
	m.Stats.LoadSum += loadSum
	m.Stats.LoadPme += loadPme
	m.Stats.LoadMdf += loadMdf
	for d, lim := range limitedPerDim {
		if lim {
			m.Stats.Limited[d]++
		}
	}
}
