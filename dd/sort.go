// Copyright 2015 Dorival Pedroso and Raul Durand. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dd

import "sort"

// SortableCG is the minimal view the Sorter needs of a home charge
// group: its neighbor-search cell (primary key) and global index
// (tie-break), per spec.md §4.8.
type SortableCG struct {
	NSCell      int
	GlobalIndex int
	LocalIndex  int // index into the rank's position/velocity/etc. arrays
}

// Sorter reorders HOME charge groups by NS cell, then global index, and
// applies the resulting permutation to every per-CG vector buffer.
// Grounded on spec.md §4.8; stdlib sort is used because nothing in the
// retrieved pack wires a third-party sorting library (see DESIGN.md).
type Sorter struct{}

// Sort returns the sorted order as a permutation with order[newIdx] =
// oldIdx (cgs itself is not modified), so callers can permute
// positions/velocities/auxiliary
// vectors and rebuild cgindex. When nsGridChanged is false, CGs are
// split into "stayed in the same NS cell" (already sorted, kept as-is)
// and "moved" (sorted), then the two runs are merged; otherwise the
// whole home set is sorted from scratch.
func (Sorter) Sort(cgs []SortableCG, prevNSCell []int, nsGridChanged bool) (order []int) {
	n := len(cgs)
	order = make([]int, n)
	for i := range order {
		order[i] = i
	}

	if nsGridChanged || prevNSCell == nil {
		sort.Slice(order, func(a, b int) bool { return less(cgs[order[a]], cgs[order[b]]) })
		return order
	}

	var stayed, moved []int
	for i, cg := range cgs {
		if i < len(prevNSCell) && prevNSCell[i] == cg.NSCell {
			stayed = append(stayed, i)
		} else {
			moved = append(moved, i)
		}
	}
	sort.Slice(moved, func(a, b int) bool { return less(cgs[moved[a]], cgs[moved[b]]) })

	merged := make([]int, 0, n)
	si, mi := 0, 0
	for si < len(stayed) && mi < len(moved) {
		if less(cgs[stayed[si]], cgs[moved[mi]]) {
			merged = append(merged, stayed[si])
			si++
		} else {
			merged = append(merged, moved[mi])
			mi++
		}
	}
	merged = append(merged, stayed[si:]...)
	merged = append(merged, moved[mi:]...)
	return merged
}

func less(a, b SortableCG) bool {
	if a.NSCell != b.NSCell {
		return a.NSCell < b.NSCell
	}
	return a.GlobalIndex < b.GlobalIndex
}

// ApplyPermutation reorders a []Vec3 buffer (positions, velocities, or
// any other per-CG-ordered auxiliary vector) according to order, where
// order[newIdx] = oldIdx.
func ApplyPermutation(buf []Vec3, order []int) []Vec3 {
	out := make([]Vec3, len(buf))
	for newIdx, oldIdx := range order {
		out[newIdx] = buf[oldIdx]
	}
	return out
}

// ApplyPermutationInt is ApplyPermutation for integer index tables
// (e.g. the global-index lookup table).
func ApplyPermutationInt(buf []int, order []int) []int {
	out := make([]int, len(buf))
	for newIdx, oldIdx := range order {
		out[newIdx] = buf[oldIdx]
	}
	return out
}

// RebuildCgIndex rebuilds cgindex[] from per-CG atom counts, in the
// post-sort order.
func RebuildCgIndex(sizes []int) []int {
	return BuildCgIndex(sizes)
}
