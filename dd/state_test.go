// Copyright 2015 Dorival Pedroso and Raul Durand. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dd

import "testing"

func TestCollectVecSingleRankCopiesOwnCGs(tst *testing.T) {
	box := TestCubicBox(10)
	topo, err := BuildTopology(box, 1, 0, [3]int{1, 1, 1}, 0, false)
	if err != nil {
		tst.Fatalf("BuildTopology failed: %v", err)
	}
	s := &StateExchanger{topo: topo}
	// pre-seed the master CG map so collectVec skips the (comm-dependent)
	// collectCG rebuild entirely -- this rank owns the single CG (global
	// index 0, two atoms).
	s.master = &masterCGMap{ncg: []int{1}, nat: []int{2}, index: []int{0, 1}, cg: []int{0}}
	s.bMasterHasAllCG = true

	cgAtomCount := func(int) int { return 2 }
	lv := []Vec3{{1, 2, 3}, {4, 5, 6}}
	v := make([]Vec3, 2)

	s.collectVec(1, 2, []int{0}, lv, cgAtomCount, v)
	if v[0] != lv[0] || v[1] != lv[1] {
		tst.Errorf("expected v to equal lv for a single-rank master, got %v", v)
	}
}

func TestDistributeVecSingleRankRestoresOwnCGs(tst *testing.T) {
	box := TestCubicBox(10)
	topo, err := BuildTopology(box, 1, 0, [3]int{1, 1, 1}, 0, false)
	if err != nil {
		tst.Fatalf("BuildTopology failed: %v", err)
	}
	s := &StateExchanger{topo: topo}
	s.master = &masterCGMap{ncg: []int{1}, nat: []int{2}, index: []int{0, 1}, cg: []int{0}}
	s.bMasterHasAllCG = true

	cgAtomCount := func(int) int { return 2 }
	global := []Vec3{{1, 2, 3}, {4, 5, 6}}
	lv := make([]Vec3, 2)

	s.distributeVec(1, 2, []int{0}, global, cgAtomCount, lv)
	if lv[0] != global[0] || lv[1] != global[1] {
		tst.Errorf("expected lv to equal the global vector for a single-rank master, got %v", lv)
	}
}

func TestDistributeStateRoundTripsScalarsAndVectors(tst *testing.T) {
	box := TestCubicBox(10)
	topo, err := BuildTopology(box, 1, 0, [3]int{1, 1, 1}, 0, false)
	if err != nil {
		tst.Fatalf("BuildTopology failed: %v", err)
	}
	s := NewStateExchanger(topo, nil)
	s.master = &masterCGMap{ncg: []int{1}, nat: []int{2}, index: []int{0, 1}, cg: []int{0}}
	s.bMasterHasAllCG = true

	cgAtomCount := func(int) int { return 2 }
	global := &GlobalState{Box: box, Lambda: 0.5, X: []Vec3{{1, 2, 3}, {4, 5, 6}}}
	local := &LocalState{X: make([]Vec3, 2), CgGl: []int{0}}
	var outBox Box
	var lambda float64

	s.DistributeState(global, local, 1, 2, cgAtomCount, 0, &outBox, &lambda)

	if lambda != 0.5 {
		tst.Errorf("expected lambda 0.5, got %v", lambda)
	}
	if outBox != box {
		tst.Errorf("expected box to round-trip, got %v", outBox)
	}
	if local.X[0] != global.X[0] || local.X[1] != global.X[1] {
		tst.Errorf("expected local.X to be scattered back from global.X, got %v", local.X)
	}
	if s.bMasterHasAllCG {
		tst.Errorf("expected DistributeState to invalidate the master CG map")
	}
}

func TestVecsToFlatRoundTrip(tst *testing.T) {
	v := []Vec3{{1, 2, 3}, {4, 5, 6}, {-1, -2, -3}}
	flat := vecsToFlat(v)
	back := flatToVecs(flat)
	if len(back) != len(v) {
		tst.Fatalf("length mismatch: got %d want %d", len(back), len(v))
	}
	for i := range v {
		if back[i] != v[i] {
			tst.Errorf("at %d: got %v want %v", i, back[i], v[i])
		}
	}
}

func TestGlobalCGAtomBaseSumsPriorCounts(tst *testing.T) {
	sizes := []int{2, 3, 1}
	cgAtomCount := func(g int) int { return sizes[g] }
	if got := globalCGAtomBase(2, cgAtomCount); got != 5 {
		tst.Errorf("expected base 5 for the third CG (2+3), got %d", got)
	}
	if got := globalCGAtomBase(0, cgAtomCount); got != 0 {
		tst.Errorf("expected base 0 for the first CG, got %d", got)
	}
}

func TestInvalidateMasterCGClearsFlag(tst *testing.T) {
	s := &StateExchanger{bMasterHasAllCG: true}
	s.InvalidateMasterCG()
	if s.bMasterHasAllCG {
		tst.Errorf("expected bMasterHasAllCG to be cleared")
	}
}
