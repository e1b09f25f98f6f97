// Copyright 2015 Dorival Pedroso and Raul Durand. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dd

import "testing"

func TestDistributeAssignsEveryCGExactlyOnce(tst *testing.T) {
	box := TestCubicBox(10)
	topo, err := BuildTopology(box, 8, 0, [3]int{2, 2, 2}, 0, false)
	if err != nil {
		tst.Fatalf("BuildTopology failed: %v", err)
	}
	geom := NewGeometry(box)
	sizer := NewStaticCellSizer(topo, geom)
	bounds, err := sizer.Apply(1.0, 1.0, 0, [3][]float64{})
	if err != nil {
		tst.Fatalf("Apply failed: %v", err)
	}

	distrib := NewDistributor(topo, geom, bounds)
	cgs := TestChargeGroups(200, box, 42)
	md, wrapped := distrib.Distribute(cgs)

	AssertPartition(tst, len(cgs), md.Indices)
	if len(wrapped) != len(cgs) {
		tst.Errorf("expected every CG to have a wrapped COG entry, got %d of %d", len(wrapped), len(cgs))
	}
	total := 0
	for r := range md.Ncg {
		total += md.Ncg[r]
	}
	if total != len(cgs) {
		tst.Errorf("ncg sums to %d, want %d", total, len(cgs))
	}
}

func TestWrapIntoBoxKeepsCogInsideBox(tst *testing.T) {
	box := TestCubicBox(10)
	geom := NewGeometry(box)
	topo := &Topology{Dim: []int{0, 1, 2}, Nc: [3]int{1, 1, 1}, box: box}
	d := &Distributor{topo: topo, geom: geom}

	wrapped, _ := d.wrapIntoBox(Vec3{-1, 15, 5})
	for i := 0; i < 3; i++ {
		if wrapped[i] < 0 || wrapped[i] >= 10 {
			tst.Errorf("axis %d not wrapped into box: %g", i, wrapped[i])
		}
	}
}

func TestBinarySearchCell(tst *testing.T) {
	cellF := []float64{0, 0.25, 0.5, 0.75, 1.0}
	cases := []struct {
		f    float64
		want int
	}{
		{0.0, 0}, {0.1, 0}, {0.25, 1}, {0.4, 1}, {0.75, 3}, {0.99, 3},
	}
	for _, c := range cases {
		if got := binarySearchCell(cellF, c.f); got != c.want {
			tst.Errorf("binarySearchCell(%g) = %d, want %d", c.f, got, c.want)
		}
	}
}
