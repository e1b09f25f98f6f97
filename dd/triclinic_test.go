// Copyright 2015 Dorival Pedroso and Raul Durand. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dd

import (
	"testing"

	"github.com/cpmech/gosl/chk"
)

func TestSkewFactorOrthorhombicIsOne(tst *testing.T) {
	g := NewGeometry(TestCubicBox(10))
	for d := 0; d < 3; d++ {
		chk.Scalar(tst, "skew_fac", 1e-12, g.SkewFactor(d), 1)
	}
}

func TestSkewFactorTriclinicLessThanOne(tst *testing.T) {
	g := NewGeometry(TestTriclinicBox(10, 3, 2, 1))
	if g.SkewFactor(0) >= 1 {
		tst.Errorf("expected skew_fac[0] < 1 for a skewed box, got %g", g.SkewFactor(0))
	}
}

func TestWrapPBCBringsPointInsideBox(tst *testing.T) {
	g := NewGeometry(TestCubicBox(10))
	p := Vec3{-1, 5, 12}
	for d := 0; d < 3; d++ {
		wp, _ := g.WrapPBC(p, d)
		p = wp
	}
	if p[0] < 0 || p[0] >= 10 {
		tst.Errorf("x not wrapped into [0,10): %g", p[0])
	}
	if p[2] < 0 || p[2] >= 10 {
		tst.Errorf("z not wrapped into [0,10): %g", p[2])
	}
}

func TestMakeTricCorrMatrixZeroForOrthorhombic(tst *testing.T) {
	g := NewGeometry(TestCubicBox(10))
	chk.Scalar(tst, "tcm[1][0]", 1e-15, g.tcm[1][0], 0)
	chk.Scalar(tst, "tcm[2][0]", 1e-15, g.tcm[2][0], 0)
	chk.Scalar(tst, "tcm[2][1]", 1e-15, g.tcm[2][1], 0)
}
