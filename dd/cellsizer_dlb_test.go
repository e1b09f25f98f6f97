// Copyright 2015 Dorival Pedroso and Raul Durand. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dd

import "testing"

func TestDlbControllerUniformStepKeepsEqualSizes(tst *testing.T) {
	box := TestCubicBox(10)
	topo, err := BuildTopology(box, 4, 0, [3]int{4, 1, 1}, 0, false)
	if err != nil {
		tst.Fatalf("BuildTopology failed: %v", err)
	}
	geom := NewGeometry(box)
	ctrl := NewDlbController(topo, geom, nil)
	st := NewDlbDimState(4, 0.05, true)
	ctrl.SetDimState(0, st)

	loads := [3][]float64{make([]float64, 4), nil, nil}
	isRoot := [3]bool{true, true, true}
	if err := ctrl.Update(loads, isRoot, false, 1.0, 1.0, [3]int{1, 1, 1}); err != nil {
		tst.Fatalf("Update failed: %v", err)
	}
	AssertMonotoneCellF(tst, "cell_f", st.CellF)
	for i := 1; i < 4; i++ {
		size := st.CellF[i] - st.CellF[i-1]
		if size < 0.24 || size > 0.26 {
			tst.Errorf("uniform DLB step should keep near-equal cells, got size %g at %d", size, i)
		}
	}
}

func TestDlbControllerRebalancesTowardsHeavyCell(tst *testing.T) {
	box := TestCubicBox(10)
	topo, err := BuildTopology(box, 4, 0, [3]int{4, 1, 1}, 0, false)
	if err != nil {
		tst.Fatalf("BuildTopology failed: %v", err)
	}
	geom := NewGeometry(box)
	ctrl := NewDlbController(topo, geom, nil)
	st := NewDlbDimState(4, 0.05, false)
	for i := range st.CellSize {
		st.CellSize[i] = 0.25
	}
	ctrl.SetDimState(0, st)

	// cell 0 is overloaded: it should shrink relative to its neighbors.
	loads := [3][]float64{{10, 1, 1, 1}, nil, nil}
	isRoot := [3]bool{true, true, true}
	if err := ctrl.Update(loads, isRoot, false, 1.0, 1.0, [3]int{1, 1, 1}); err != nil {
		tst.Fatalf("Update failed: %v", err)
	}
	newSize0 := st.CellF[1] - st.CellF[0]
	if newSize0 >= 0.25 {
		tst.Errorf("overloaded cell should shrink, was 0.25, now %g", newSize0)
	}
}

func TestCheckGridJumpCatchesLargeShift(tst *testing.T) {
	st := NewDlbDimState(2, 0.05, true)
	copy(st.OldCellF, []float64{0, 0.5, 1})
	st.CellF[1] = 0.9
	if err := checkGridJump(st); err == nil {
		tst.Errorf("expected a grid-jump error for a boundary shift larger than half a cell")
	}
}
