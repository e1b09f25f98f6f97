// Copyright 2015 Dorival Pedroso and Raul Durand. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// package dd implements the spatial domain decomposition (DD) engine:
// grid topology, cell sizing (static and dynamic), triclinic geometry,
// charge-group redistribution, halo exchange and periodic sorting.
package dd

import "math"

const (
	// CellMargin is the tolerance applied when checking that a charge
	// group's centre of geometry lies within its owning cell.
	CellMargin = 1.00001

	// CellMargin2 is the tighter margin applied to the last cell in a
	// dimension when enforcing the minimum cell size (spec.md §4.4 step 4).
	CellMargin2 = 1.0001

	// RelaxDLB is the relaxation factor applied to the DLB proposal step.
	RelaxDLB = 0.5

	// ChangeMaxDLB is the maximum fractional change of a cell's proposed
	// size in a single DLB step.
	ChangeMaxDLB = 0.05

	// PressureMargin scales inter-dimension limits when the box is dynamic
	// (NPT-like pressure coupling), per spec.md §4.4 step 6.
	PressureMargin = 1.02
)

// Role orders the fixed partition of a rank's local atom array.
type Role int

const (
	RoleHome Role = iota
	RoleZone
	RoleVSite
	RoleCon
	nRoles
)

func (r Role) String() string {
	switch r {
	case RoleHome:
		return "HOME"
	case RoleZone:
		return "ZONE"
	case RoleVSite:
		return "VSITE"
	case RoleCon:
		return "CON"
	}
	return "?"
}

// Vec3 is a plain 3-component vector; kept as a named array (not a slice)
// so charge-group and atom coordinate storage stays contiguous and
// allocation-free in the steady state, matching the flat-buffer style
// spec.md §9 calls for ("use indices, not ownership pointers").
type Vec3 [3]float64

// Add returns a+b
func (a Vec3) Add(b Vec3) Vec3 { return Vec3{a[0] + b[0], a[1] + b[1], a[2] + b[2]} }

// Sub returns a-b
func (a Vec3) Sub(b Vec3) Vec3 { return Vec3{a[0] - b[0], a[1] - b[1], a[2] - b[2]} }

// Scale returns a scaled by s
func (a Vec3) Scale(s float64) Vec3 { return Vec3{a[0] * s, a[1] * s, a[2] * s} }

// Dot returns the scalar product a.b.
func (a Vec3) Dot(b Vec3) float64 { return a[0]*b[0] + a[1]*b[1] + a[2]*b[2] }

// Norm returns the Euclidean length of a.
func (a Vec3) Norm() float64 { return math.Sqrt(a.Dot(a)) }

// ChargeGroup describes one indivisible cluster of atoms sharing a COG.
type ChargeGroup struct {
	GlobalIndex int     // stable global CG index across the run
	AtomFirst   int     // local index of first member atom (HOME range)
	AtomCount   int     // number of member atoms, 1..k
	COG         Vec3    // centre of geometry, real (box-length) coordinates
	Cell        [3]int  // owning cell coordinate, one entry per active dim
}

// GlobalAtomEntry is the global→local lookup table entry for an atom.
type GlobalAtomEntry struct {
	Cell  int // rank-local cell index, or -1 if not present locally
	Local int // local atom index, meaningless when Cell == -1
}

// OverAlloc returns a geometrically-overshot allocation size so that
// repeated small growths of communication buffers amortise to O(1),
// matching GROMACS's over_alloc_dd: n*1.19+100, floored sanely for n==0.
func OverAlloc(n int) int {
	if n <= 0 {
		return 0
	}
	grown := int(float64(n)*1.19) + 100
	if grown < n {
		grown = n
	}
	return grown
}
