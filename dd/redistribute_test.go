// Copyright 2015 Dorival Pedroso and Raul Durand. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dd

import "testing"

func TestMoveCodeStays(tst *testing.T) {
	box := TestCubicBox(10)
	topo, err := BuildTopology(box, 8, 0, [3]int{2, 2, 2}, 0, false)
	if err != nil {
		tst.Fatalf("BuildTopology failed: %v", err)
	}
	r := &Redistributor{topo: topo}
	if mc := r.moveCode([3]int{0, 0, 0}); mc != -1 {
		tst.Errorf("zero displacement should stay, got move code %d", mc)
	}
}

func TestMoveCodePicksFirstActiveDimension(tst *testing.T) {
	box := TestCubicBox(10)
	topo, err := BuildTopology(box, 8, 0, [3]int{2, 2, 2}, 0, false)
	if err != nil {
		tst.Fatalf("BuildTopology failed: %v", err)
	}
	r := &Redistributor{topo: topo}
	mc := r.moveCode([3]int{0, 1, -1})
	di := mc / 2
	if topo.Dim[di] != 1 {
		tst.Errorf("expected first active dimension with nonzero displacement (dim 1), got dim %d", topo.Dim[di])
	}
}

func TestCellDisplacementFlagsOutOfRangeMove(tst *testing.T) {
	box := TestCubicBox(10)
	topo, err := BuildTopology(box, 4, 0, [3]int{4, 1, 1}, 0, false)
	if err != nil {
		tst.Fatalf("BuildTopology failed: %v", err)
	}
	geom := NewGeometry(box)
	r := &Redistributor{topo: topo, geom: geom, limitd: [3]float64{0.1, 0, 0}}

	old0 := [3]float64{1.0, 0, 0}
	old1 := [3]float64{2.0, 0, 0}
	_, err = r.cellDisplacement(Vec3{0.5, 0, 0} /* more than one cell below the old lower bound */, old0, old1, 7, 3)
	if err == nil {
		tst.Errorf("expected a geometric error for a CG that jumped more than one cell")
	}
	var gerr *GeometricError
	if ge, ok := err.(*GeometricError); ok {
		gerr = ge
	}
	if gerr == nil {
		tst.Fatalf("expected *GeometricError, got %T", err)
	}
	if gerr.Step != 7 || gerr.CGGlobal != 3 {
		tst.Errorf("error should carry step/cg context: got step=%d cg=%d", gerr.Step, gerr.CGGlobal)
	}
}

func TestCellDisplacementAllowsOneCellHop(tst *testing.T) {
	box := TestCubicBox(10)
	topo, err := BuildTopology(box, 4, 0, [3]int{4, 1, 1}, 0, false)
	if err != nil {
		tst.Fatalf("BuildTopology failed: %v", err)
	}
	geom := NewGeometry(box)
	r := &Redistributor{topo: topo, geom: geom, limitd: [3]float64{0.1, 0, 0}}

	old0 := [3]float64{1.0, 0, 0}
	old1 := [3]float64{2.0, 0, 0}
	dev, err := r.cellDisplacement(Vec3{0.85, 0, 0}, old0, old1, 0, 0)
	if err != nil {
		tst.Fatalf("one-cell hop should not error: %v", err)
	}
	if dev[0] != -1 {
		tst.Errorf("expected dev[0]=-1, got %d", dev[0])
	}
}

func TestMoveCodeFromSkipsShallowerDimensions(tst *testing.T) {
	box := TestCubicBox(10)
	topo, err := BuildTopology(box, 8, 0, [3]int{2, 2, 2}, 0, false)
	if err != nil {
		tst.Fatalf("BuildTopology failed: %v", err)
	}
	r := &Redistributor{topo: topo}

	// a CG displaced in both dimension 0 and dimension 1: moveCode (from
	// 0) picks dimension 0, but the re-examination step after a dimension
	// 0 hop must only look at dimensions 1 and 2.
	dev := [3]int{1, -1, 0}
	if mc := r.moveCode(dev); mc/2 != 0 {
		tst.Fatalf("expected moveCode to pick dimension 0 first, got di=%d", mc/2)
	}
	mc2 := r.moveCodeFrom(dev, 1)
	if mc2 < 0 {
		tst.Fatalf("expected moveCodeFrom(dev, 1) to still find the dimension-1 displacement")
	}
	if topo.Dim[mc2/2] != 1 {
		tst.Errorf("expected moveCodeFrom to land on dimension 1, got dim %d", topo.Dim[mc2/2])
	}

	// once dimension 1 is also settled, nothing deeper remains displaced.
	if mc3 := r.moveCodeFrom(dev, 2); mc3 != -1 {
		tst.Errorf("expected no further moves past dimension 1, got move code %d", mc3)
	}
}

func TestPackMoveFlagsRoundTrip(tst *testing.T) {
	f := packMoveFlags(37, [3]bool{true, false, true}, [3]bool{false, true, false})
	if f.AtomCount() != 37 {
		tst.Errorf("atom count round trip failed: got %d", f.AtomCount())
	}
	if !f.Forward(0) || f.Forward(1) || !f.Forward(2) {
		tst.Errorf("forward flags round trip failed")
	}
	if f.Backward(0) || !f.Backward(1) || f.Backward(2) {
		tst.Errorf("backward flags round trip failed")
	}
}
