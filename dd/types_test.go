// Copyright 2015 Dorival Pedroso and Raul Durand. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dd

import "testing"

func TestVec3Arithmetic(tst *testing.T) {
	a := Vec3{1, 2, 3}
	b := Vec3{4, 5, 6}
	if got := a.Add(b); got != (Vec3{5, 7, 9}) {
		tst.Errorf("Add: got %v", got)
	}
	if got := b.Sub(a); got != (Vec3{3, 3, 3}) {
		tst.Errorf("Sub: got %v", got)
	}
	if got := a.Scale(2); got != (Vec3{2, 4, 6}) {
		tst.Errorf("Scale: got %v", got)
	}
}

func TestRoleString(tst *testing.T) {
	cases := []struct {
		r    Role
		want string
	}{{RoleHome, "HOME"}, {RoleZone, "ZONE"}, {RoleVSite, "VSITE"}, {RoleCon, "CON"}, {nRoles, "?"}}
	for _, c := range cases {
		if got := c.r.String(); got != c.want {
			tst.Errorf("Role(%d).String() = %q, want %q", c.r, got, c.want)
		}
	}
}

func TestOverAllocGrowsGeometrically(tst *testing.T) {
	if got := OverAlloc(0); got != 0 {
		tst.Errorf("OverAlloc(0) = %d, want 0", got)
	}
	if got := OverAlloc(1000); got <= 1000 {
		tst.Errorf("OverAlloc(1000) = %d, expected strictly greater than 1000", got)
	}
	// over_alloc_dd: n*1.19+100
	if got := OverAlloc(100); got != 219 {
		tst.Errorf("OverAlloc(100) = %d, want 219", got)
	}
}
