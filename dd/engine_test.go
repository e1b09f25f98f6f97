// Copyright 2015 Dorival Pedroso and Raul Durand. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dd

import (
	"testing"

	"github.com/lizhen2105/gromacs/inp"
)

func testConfig() *inp.Config {
	cfg := &inp.Config{
		Box:         inp.BoxData{Row: [3][3]float64{{10, 0, 0}, {0, 10, 0}, {0, 0, 10}}},
		Grid:        inp.GridData{Nx: 2, Ny: 2, Nz: 2},
		NpmeHint:    0,
		Cutoff:      1.0,
		CutoffMBody: 1.0,
		CellSizeLim: 0,
		DlbMode:     "no",
	}
	return cfg
}

func TestEngineInitBuildsTopologyAndBounds(tst *testing.T) {
	cfg := testConfig()
	eng, err := Init(cfg, 8, 0)
	if err != nil {
		tst.Fatalf("Init failed: %v", err)
	}
	if eng.Topo.Nnodes != 8 {
		tst.Errorf("expected 8 PP ranks, got %d", eng.Topo.Nnodes)
	}
	if eng.Cutoff() != 1.0 {
		tst.Errorf("expected cutoff 1.0, got %g", eng.Cutoff())
	}
	for _, d := range eng.Topo.Dim {
		AssertMonotoneCellF(tst, "cell_f", eng.bounds[d].CellF)
	}
}

func TestEnginePartitionAdvancesDdpCount(tst *testing.T) {
	box := TestCubicBox(10)
	topo, err := BuildTopology(box, 1, 0, [3]int{1, 1, 1}, 0, false)
	if err != nil {
		tst.Fatalf("BuildTopology failed: %v", err)
	}
	geom := NewGeometry(box)
	eng := &Engine{
		Topo:  topo,
		Geom:  geom,
		state: NewStateExchanger(topo, nil),
		redist: NewRedistributor(topo, geom, nil, [3]float64{}, HasVelocities),
	}

	var oldBounds [3][2]float64
	var loads [3][]float64
	isRoot := [3]bool{true, true, true}
	_, _, err = eng.Partition(nil, oldBounds, 0, loads, isRoot, false)
	if err != nil {
		tst.Fatalf("Partition failed: %v", err)
	}
	if eng.DdpCount() != 1 {
		tst.Errorf("expected ddp_count 1 after one partition, got %d", eng.DdpCount())
	}
}

func TestCheckCheckpointConsistencyDetectsMismatch(tst *testing.T) {
	if err := CheckCheckpointConsistency(3, 3); err != nil {
		tst.Errorf("matching ddp_count should not error: %v", err)
	}
	if err := CheckCheckpointConsistency(3, 4); err == nil {
		tst.Errorf("mismatched ddp_count should error")
	}
}
