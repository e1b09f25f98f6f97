// Copyright 2015 Dorival Pedroso and Raul Durand. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dd

import (
	"math/rand"
	"testing"

	"github.com/cpmech/gosl/chk"
)

// NewTestTopology builds a comm-free Topology for a single simulated
// rank, for use in package tests that exercise pure geometry/bookkeeping
// logic without standing up real MPI ranks (spec.md §8 "Testable
// Properties" are largely single-rank-observable). Mirrors the way
// mallano-gofem/fem/testing.go builds a throwaway *Domain directly
// instead of driving it through fem.Start/fem.Run.
func NewTestTopology(nc [3]int, npme, rank int, axisOrderZYX bool) *Topology {
	t, err := BuildTopology(TestCubicBox(10), nc[0]*nc[1]*nc[2]+npme, npme, nc, rank, axisOrderZYX)
	if err != nil {
		panic(err)
	}
	return t
}

// TestCubicBox returns an orthorhombic box of side L, the common case
// exercised by the Testable Properties of spec.md §8.
func TestCubicBox(L float64) Box {
	return Box{{L, 0, 0}, {0, L, 0}, {0, 0, L}}
}

// TestTriclinicBox returns a triclinic box with the skew pattern used by
// spec.md §8's "dodecahedral" and "truncated octahedron" scenarios:
// non-zero yx and zx/zy couplings, grounded on
// original_source/src/mdlib/domdec.c's expectations about box[1][0],
// box[2][0], box[2][1].
func TestTriclinicBox(L, yx, zx, zy float64) Box {
	return Box{{L, 0, 0}, {yx, L, 0}, {zx, zy, L}}
}

// TestChargeGroups deterministically scatters n single-atom charge
// groups uniformly at random inside box, seeded so repeated test runs
// see identical input (spec.md's testable properties must be
// reproducible across runs).
func TestChargeGroups(n int, box Box, seed int64) []GlobalCG {
	rnd := rand.New(rand.NewSource(seed))
	L := box.Lengths()
	cgs := make([]GlobalCG, n)
	for i := 0; i < n; i++ {
		p := Vec3{rnd.Float64() * L[0], rnd.Float64() * L[1], rnd.Float64() * L[2]}
		cgs[i] = GlobalCG{GlobalIndex: i, AtomCount: 1, Positions: []Vec3{p}}
	}
	return cgs
}

// AssertMonotoneCellF fails tst unless f is non-decreasing, f[0]==0 and
// f[len(f)-1]==1, the shape invariant every CellBounds/DlbDimState.CellF
// must hold (spec.md §4.2/§4.4).
func AssertMonotoneCellF(tst *testing.T, label string, f []float64) {
	if len(f) == 0 {
		tst.Errorf("%s: empty cell_f", label)
		return
	}
	chk.Scalar(tst, label+"[0]", 1e-15, f[0], 0)
	chk.Scalar(tst, label+"[last]", 1e-15, f[len(f)-1], 1)
	for i := 1; i < len(f); i++ {
		if f[i] < f[i-1] {
			tst.Errorf("%s: not monotone at index %d: %g < %g", label, i, f[i], f[i-1])
		}
	}
}

// AssertPartition fails tst unless every index in [0,n) appears in
// exactly one rank's assignment -- the Initial Distributor's and
// Redistributor's core ownership-uniqueness invariant (spec.md §8).
func AssertPartition(tst *testing.T, n int, perRank [][]int) {
	seen := make([]int, n)
	for _, owned := range perRank {
		for _, g := range owned {
			if g < 0 || g >= n {
				tst.Errorf("index %d out of range [0,%d)", g, n)
				continue
			}
			seen[g]++
		}
	}
	for g, count := range seen {
		if count != 1 {
			tst.Errorf("global index %d owned by %d ranks, want exactly 1", g, count)
		}
	}
}
