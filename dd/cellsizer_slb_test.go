// Copyright 2015 Dorival Pedroso and Raul Durand. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dd

import "testing"

func TestStaticCellSizerUniform(tst *testing.T) {
	box := TestCubicBox(10)
	topo, err := BuildTopology(box, 8, 0, [3]int{2, 2, 2}, 0, false)
	if err != nil {
		tst.Fatalf("BuildTopology failed: %v", err)
	}
	geom := NewGeometry(box)
	sizer := NewStaticCellSizer(topo, geom)

	bounds, err := sizer.Apply(2.0, 2.0, 0, [3][]float64{})
	if err != nil {
		tst.Fatalf("Apply failed: %v", err)
	}
	for _, d := range topo.Dim {
		AssertMonotoneCellF(tst, "cell_f", bounds[d].CellF)
		if bounds[d].Npulse < 1 {
			tst.Errorf("dimension %d: expected at least one pulse, got %d", d, bounds[d].Npulse)
		}
	}
}

func TestStaticCellSizerUserFractions(tst *testing.T) {
	box := TestCubicBox(10)
	topo, err := BuildTopology(box, 2, 0, [3]int{2, 1, 1}, 0, false)
	if err != nil {
		tst.Fatalf("BuildTopology failed: %v", err)
	}
	geom := NewGeometry(box)
	sizer := NewStaticCellSizer(topo, geom)

	fracs := [3][]float64{{0.3, 0.7}, nil, nil}
	bounds, err := sizer.Apply(1.0, 1.0, 0, fracs)
	if err != nil {
		tst.Fatalf("Apply failed: %v", err)
	}
	if got := bounds[0].CellF[1]; got < 0.29 || got > 0.31 {
		tst.Errorf("expected first boundary near 0.3, got %g", got)
	}
}

func TestStaticCellSizerRejectsOversizedCutoff(tst *testing.T) {
	box := TestCubicBox(10)
	topo, err := BuildTopology(box, 5, 0, [3]int{5, 1, 1}, 0, false)
	if err != nil {
		tst.Fatalf("BuildTopology failed: %v", err)
	}
	geom := NewGeometry(box)
	sizer := NewStaticCellSizer(topo, geom)
	if _, err := sizer.Apply(9.0, 9.0, 0, [3][]float64{}); err == nil {
		tst.Errorf("expected a config error when cutoff forces a cell to talk to itself")
	}
}
