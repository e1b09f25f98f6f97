// Copyright 2015 Dorival Pedroso and Raul Durand. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dd

import (
	"sort"

	"github.com/cpmech/gosl/la"
)

// GlobalCG is the master's view of one charge group before distribution.
type GlobalCG struct {
	GlobalIndex int
	AtomCount   int
	Positions   []Vec3 // member atom positions, in global coordinate order
}

// MasterDistribution is the master rank's (ncg, nat, global_indices[])
// scatter payload per rank, spec.md §4.5.
type MasterDistribution struct {
	Ncg     []int   // per rank
	Nat     []int   // per rank
	Indices [][]int // per rank: global CG indices assigned to that rank
}

// Distributor implements the master-driven Initial Distributor of
// spec.md §4.5, grounded on original_source/src/mdlib/domdec.c's
// distribute_cg.
type Distributor struct {
	topo   *Topology
	geom   *Geometry
	bounds [3]CellBounds
}

// NewDistributor binds a distributor to a topology, geometry and the
// static cell boundaries computed by the Cell Sizer.
func NewDistributor(topo *Topology, geom *Geometry, bounds [3]CellBounds) *Distributor {
	return &Distributor{topo: topo, geom: geom, bounds: bounds}
}

// Distribute reads the global CG list on the master, computes each CG's
// COG, wraps it (and its member atoms) into the box, bins it by linear
// search over the per-dimension boundaries, and returns the scatter
// payload. Only the master rank has a complete `cgs` to call this with;
// DistributeGlobal is the entry point every rank should use instead, so
// non-master ranks receive the master's answer rather than needing a
// copy of the global CG list to recompute it themselves.
func (d *Distributor) Distribute(cgs []GlobalCG) (md *MasterDistribution, wrapped map[int][]Vec3) {
	nranks := d.topo.Nnodes
	md = &MasterDistribution{
		Ncg:     make([]int, nranks),
		Nat:     make([]int, nranks),
		Indices: make([][]int, nranks),
	}
	wrapped = make(map[int][]Vec3, len(cgs))

	for _, cg := range cgs {
		cog := computeCOG(cg.Positions)
		wcog, shifts := d.wrapIntoBox(cog)
		watoms := make([]Vec3, len(cg.Positions))
		for i, p := range cg.Positions {
			wp := p
			for d2 := 0; d2 < 3; d2++ {
				wp = wp.Add(shifts[d2])
			}
			watoms[i] = wp
		}
		wrapped[cg.GlobalIndex] = watoms

		owner := d.bin(wcog)
		md.Ncg[owner]++
		md.Nat[owner] += cg.AtomCount
		md.Indices[owner] = append(md.Indices[owner], cg.GlobalIndex)
	}
	for r := range md.Indices {
		sort.Ints(md.Indices[r])
	}
	return md, wrapped
}

// DistributeGlobal runs Distribute once, on the master only, then
// broadcasts the resulting per-rank assignment and wrapped positions to
// every rank over comm, so the master ships each rank its share instead
// of every rank recomputing the full global distribution redundantly
// (spec.md §4.5). cgs is ignored on non-master ranks; pass nil there.
func (d *Distributor) DistributeGlobal(cgs []GlobalCG, comm *Comm) (md *MasterDistribution, wrapped map[int][]Vec3) {
	if comm == nil || d.topo.isMaster() {
		md, wrapped = d.Distribute(cgs)
	}
	if comm == nil {
		return md, wrapped
	}

	nranks := d.topo.Nnodes
	ncg := make([]int, nranks)
	nat := make([]int, nranks)
	if md != nil {
		copy(ncg, md.Ncg)
		copy(nat, md.Nat)
	}
	ncg = comm.BroadcastInts(0, ncg)
	nat = comm.BroadcastInts(0, nat)

	total := 0
	for _, n := range ncg {
		total += n
	}
	flatIdx := make([]int, total)
	flatAtomCounts := make([]int, total)
	if md != nil {
		pos := 0
		for r := 0; r < nranks; r++ {
			for _, g := range md.Indices[r] {
				flatIdx[pos] = g
				flatAtomCounts[pos] = len(wrapped[g])
				pos++
			}
		}
	}
	flatIdx = comm.BroadcastInts(0, flatIdx)
	flatAtomCounts = comm.BroadcastInts(0, flatAtomCounts)

	totalAtoms := 0
	for _, n := range flatAtomCounts {
		totalAtoms += n
	}
	flatPos := make([]float64, totalAtoms*3)
	if md != nil {
		pos := 0
		for r := 0; r < nranks; r++ {
			for _, g := range md.Indices[r] {
				for _, p := range wrapped[g] {
					flatPos[pos], flatPos[pos+1], flatPos[pos+2] = p[0], p[1], p[2]
					pos += 3
				}
			}
		}
	}
	flatPos = comm.Broadcast(0, flatPos)

	md = &MasterDistribution{Ncg: ncg, Nat: nat, Indices: make([][]int, nranks)}
	wrapped = make(map[int][]Vec3, total)
	idx, apos := 0, 0
	for r := 0; r < nranks; r++ {
		md.Indices[r] = append([]int(nil), flatIdx[idx:idx+ncg[r]]...)
		for i := 0; i < ncg[r]; i++ {
			g := flatIdx[idx]
			n := flatAtomCounts[idx]
			pts := make([]Vec3, n)
			for k := 0; k < n; k++ {
				pts[k] = Vec3{flatPos[apos], flatPos[apos+1], flatPos[apos+2]}
				apos += 3
			}
			wrapped[g] = pts
			idx++
		}
	}
	return md, wrapped
}

// computeCOG returns the arithmetic mean position of a CG's member atoms.
func computeCOG(pos []Vec3) Vec3 {
	if len(pos) == 0 {
		return Vec3{}
	}
	sum := make([]float64, 3)
	for _, p := range pos {
		sum[0] += p[0]
		sum[1] += p[1]
		sum[2] += p[2]
	}
	inv := 1.0 / float64(len(pos))
	la.VecScale(sum, 0, inv, sum)
	return Vec3{sum[0], sum[1], sum[2]}
}

// wrapIntoBox applies the triclinic projection + PBC wrap of spec.md
// §4.3 to every active dimension, returning the wrapped COG and the
// per-dimension shift that was applied (so member atoms can be shifted
// identically).
func (d *Distributor) wrapIntoBox(cog Vec3) (wrapped Vec3, shifts [3]Vec3) {
	wrapped = cog
	for _, dim := range d.topo.Dim {
		w, s := d.geom.WrapPBC(wrapped, dim)
		wrapped = w
		shifts[dim] = s
	}
	return
}

// bin performs the linear search over per-dimension boundaries described
// in spec.md §4.5, returning the owning rank's DD index.
func (d *Distributor) bin(cog Vec3) int {
	var ci [3]int
	for dimIdx, dim := range d.topo.Dim {
		f := d.geom.Project(cog, dim) / d.topo.box.Lengths()[dim]
		cellF := d.bounds[dim].CellF
		ci[dim] = binarySearchCell(cellF, f)
		_ = dimIdx
	}
	return DDIndex(ci, d.topo.Nc)
}

// binarySearchCell finds i such that cellF[i] <= f < cellF[i+1].
func binarySearchCell(cellF []float64, f float64) int {
	nc := len(cellF) - 1
	i := sort.SearchFloat64s(cellF, f)
	if i > 0 && (i == len(cellF) || cellF[i] > f) {
		i--
	}
	if i >= nc {
		i = nc - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}

// BuildCgIndex computes cgindex[] (cumulative atom offsets per local CG)
// from a rank's received global CG sizes, once it has its assignment.
func BuildCgIndex(sizes []int) []int {
	idx := make([]int, len(sizes)+1)
	for i, sz := range sizes {
		idx[i+1] = idx[i] + sz
	}
	return idx
}
