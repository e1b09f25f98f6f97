// Copyright 2015 Dorival Pedroso and Raul Durand. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dd

// MoveFlags packs the (global_cg_index, size_and_flags) header of
// spec.md §4.6 step 4: low 16 bits are the CG atom count, bits
// [16+2d, 16+2d+1] are the forward/backward flag per dimension.
type MoveFlags uint32

const atomCountMask = 0xFFFF

func packMoveFlags(atomCount int, fwd, bwd [3]bool) MoveFlags {
	f := MoveFlags(atomCount & atomCountMask)
	for d := 0; d < 3; d++ {
		if fwd[d] {
			f |= 1 << uint(16+2*d)
		}
		if bwd[d] {
			f |= 1 << uint(16+2*d+1)
		}
	}
	return f
}

func (f MoveFlags) AtomCount() int { return int(f) & atomCountMask }
func (f MoveFlags) Forward(d int) bool { return f&(1<<uint(16+2*d)) != 0 }
func (f MoveFlags) Backward(d int) bool { return f&(1<<uint(16+2*d+1)) != 0 }

// OptVectorFlags selects which optional per-atom vectors accompany a
// moving charge group (spec.md §9: "pack a single flags word at
// partition time").
type OptVectorFlags uint8

const (
	HasVelocities OptVectorFlags = 1 << iota
	HasSDHistory
	HasCGPressure
)

// PendingCG is one charge group queued for a redistribution send.
type PendingCG struct {
	Global    int
	AtomCount int
	COG       Vec3
	Positions []Vec3
	Velocities []Vec3
	SDHist     []Vec3
	CGP        []Vec3
}

// Redistributor implements the per-step charge-group movement of
// spec.md §4.6, grounded on original_source/src/mdlib/domdec.c's
// dd_redistribute_cg.
type Redistributor struct {
	topo   *Topology
	geom   *Geometry
	comm   *Comm
	limitd [3]float64 // per-dimension margin shrinking the old cell bounds
	vflags OptVectorFlags
}

// NewRedistributor binds a redistributor to its topology/geometry/comm.
func NewRedistributor(topo *Topology, geom *Geometry, comm *Comm, limitd [3]float64, vflags OptVectorFlags) *Redistributor {
	return &Redistributor{topo: topo, geom: geom, comm: comm, limitd: limitd, vflags: vflags}
}

// moveCode computes mc per spec.md §4.6 step 3: -1 stays; otherwise the
// first active dimension with dev != 0, encoding direction, collapsing
// forward/backward into one bucket when nc[dim]==2 (symmetric comm).
func (r *Redistributor) moveCode(dev [3]int) int {
	return r.moveCodeFrom(dev, 0)
}

// moveCodeFrom is moveCode restricted to dimensions [startDi, ndim): the
// re-examination step of spec.md §4.6 step 5 must only consider
// dimensions deeper than the one a CG was just exchanged along, since
// shallower dimensions were already settled this pass.
func (r *Redistributor) moveCodeFrom(dev [3]int, startDi int) int {
	for di := startDi; di < len(r.topo.Dim); di++ {
		dim := r.topo.Dim[di]
		if dev[dim] == 0 {
			continue
		}
		if r.topo.Nc[dim] == 2 {
			return 2 * di
		}
		if dev[dim] > 0 {
			return 2 * di
		}
		return 2*di + 1
	}
	return -1
}

// cellDisplacement computes dev[d] in {-1,0,+1} for a CG whose COG has
// moved relative to its old cell bounds, shrunk by limitd[d] (spec.md
// §4.6 step 1). old0/old1 are the rank's old per-dimension cell bounds
// in real (unwrapped) projected coordinates.
func (r *Redistributor) cellDisplacement(cogOld Vec3, old0, old1 [3]float64, step, cgGlobal int) (dev [3]int, err error) {
	for _, dim := range r.topo.Dim {
		p := r.geom.Project(cogOld, dim) + r.geom.TricShift(cogOld, dim)
		lo := old0[dim] - r.limitd[dim]
		hi := old1[dim] + r.limitd[dim]
		switch {
		case p < lo:
			dev[dim] = -1
			if p < old0[dim]-2*r.limitd[dim] {
				return dev, &GeometricError{
					Msg: "charge group moved farther than one cell from its old cell",
					Step: step, CGGlobal: cgGlobal,
					OldBounds: [2]float64{old0[dim], old1[dim]},
					Axis: axisLetter(dim),
				}
			}
		case p > hi:
			dev[dim] = 1
			if p > old1[dim]+2*r.limitd[dim] {
				return dev, &GeometricError{
					Msg: "charge group moved farther than one cell from its old cell",
					Step: step, CGGlobal: cgGlobal,
					OldBounds: [2]float64{old0[dim], old1[dim]},
					Axis: axisLetter(dim),
				}
			}
		}
	}
	return dev, nil
}

// RedistributeResult summarises the outcome of one redistribution pass.
type RedistributeResult struct {
	Sent     [6]int // CGs sent forward (even) + backward (odd) per dim-direction, indexed by 2*di+dir
	Received [6]int
	HomeDelta int
}

// Redistribute performs spec.md §4.6's full algorithm for the local
// HOME set: recomputes displacement, classifies a move code, packs
// per-destination buffers, exchanges with neighbors dimension by
// dimension (re-examining flags for deeper dimensions on receipt), and
// returns the new HOME set.
//
// `out` is a new slice: the CGs that stayed, in their original relative
// order, followed by the CGs received from neighbors. The `home` slice
// itself is not compacted; departing CGs have their Positions shifted in
// place when they are wrapped across the periodic boundary.
func (r *Redistributor) Redistribute(home []PendingCG, oldBounds [3][2]float64, step int) (out []PendingCG, res RedistributeResult, err error) {
	kept := make([]PendingCG, 0, len(home))
	type outgoing struct {
		dim, dir int
		cg       PendingCG
		fwd, bwd [3]bool // the CG's full dev-derived flags, not just the dim/dir it is hopping on now
	}
	var toSend []outgoing

	old0, old1 := [3]float64{}, [3]float64{}
	for d := 0; d < 3; d++ {
		old0[d], old1[d] = oldBounds[d][0], oldBounds[d][1]
	}

	devFlags := func(dev [3]int) (fwd, bwd [3]bool) {
		for d := 0; d < 3; d++ {
			fwd[d] = dev[d] > 0
			bwd[d] = dev[d] < 0
		}
		return
	}

	for _, cg := range home {
		dev, derr := r.cellDisplacement(cg.COG, old0, old1, step, cg.Global)
		if derr != nil {
			return nil, res, derr
		}
		mc := r.moveCode(dev)
		if mc < 0 {
			kept = append(kept, cg)
			continue
		}
		di := mc / 2
		dir := mc % 2
		dim := r.topo.Dim[di]
		wcog, shift := r.geom.WrapPBC(cg.COG, dim)
		cg.COG = wcog
		for i := range cg.Positions {
			cg.Positions[i] = cg.Positions[i].Add(shift)
		}
		fwd, bwd := devFlags(dev)
		toSend = append(toSend, outgoing{dim: di, dir: dir, cg: cg, fwd: fwd, bwd: bwd})
		res.Sent[2*di+dir]++
	}

	out = kept
	for di, dim := range r.topo.Dim {
		var fwdItems, bwdItems []sendItem
		for _, o := range toSend {
			if o.dim != di {
				continue
			}
			item := sendItem{cg: o.cg, fwd: o.fwd, bwd: o.bwd}
			if o.dir == 0 {
				fwdItems = append(fwdItems, item)
			} else {
				bwdItems = append(bwdItems, item)
			}
		}
		recvFwd, recvBwd := r.exchangeDim(dim, fwdItems, bwdItems)
		res.Received[2*di] += len(recvFwd)
		res.Received[2*di+1] += len(recvBwd)

		// re-examine flags for remaining (deeper) dimensions: a CG that
		// just arrived from a neighbor may still sit outside this rank's
		// bounds in a later dimension and need a second hop there
		// (spec.md §4.6 step 5). Re-run cellDisplacement/moveCode
		// against only the dimensions deeper than di; a CG that needs to
		// move again is queued onto that deeper dimension's toSend
		// instead of being appended to `out` directly.
		for _, cg := range append(recvFwd, recvBwd...) {
			dev, derr := r.cellDisplacement(cg.COG, old0, old1, step, cg.Global)
			if derr != nil {
				return nil, res, derr
			}
			mc2 := r.moveCodeFrom(dev, di+1)
			if mc2 < 0 {
				out = append(out, cg)
				continue
			}
			di2 := mc2 / 2
			dir2 := mc2 % 2
			dim2 := r.topo.Dim[di2]
			wcog, shift := r.geom.WrapPBC(cg.COG, dim2)
			cg.COG = wcog
			for i := range cg.Positions {
				cg.Positions[i] = cg.Positions[i].Add(shift)
			}
			fwd, bwd := devFlags(dev)
			toSend = append(toSend, outgoing{dim: di2, dir: dir2, cg: cg, fwd: fwd, bwd: bwd})
			res.Sent[2*di2+dir2]++
		}
	}

	res.HomeDelta = len(out) - len(home)
	return out, res, nil
}

// sendItem pairs a queued CG with the dev-derived forward/backward flags
// packMoveFlags ships alongside it (spec.md §4.6 step 4).
type sendItem struct {
	cg       PendingCG
	fwd, bwd [3]bool
}

// exchangeDim performs the neighbor exchange of spec.md §4.6 step 5 for
// a single dimension: CGs queued to move forward are read back by this
// rank's backward neighbor (whose forward neighbor this rank is), and
// CGs queued to move backward are read back by this rank's forward
// neighbor -- the same "publish to my slot, read my neighbor's slot"
// convention dd/halo.go's exchangeCounts/exchangeCOGs use, specialised
// to two independent channels (one per direction) instead of one.
func (r *Redistributor) exchangeDim(dim int, fwdItems, bwdItems []sendItem) (recvFwd, recvBwd []PendingCG) {
	if r.comm == nil {
		return nil, nil
	}
	di := indexOfDim(r.topo, dim)
	neigh := r.topo.Neighbor[di]

	recvFwd = r.exchangeCGs(fwdItems, neigh.Backward)
	if r.topo.Nc[dim] != 2 {
		recvBwd = r.exchangeCGs(bwdItems, neigh.Forward)
	}
	return
}

// exchangeCGs marshals queued CGs (with their real dev-derived move
// flags) into flat int/float buffers and exchanges them with the rank
// named by from, via Comm's variable-length ExchangeInts/ExchangeFloats
// (dd/comm.go) -- the same primitives dd/halo.go's pulse exchange uses.
func (r *Redistributor) exchangeCGs(send []sendItem, from int) []PendingCG {
	if r.comm == nil {
		return nil
	}
	sendHeader := make([]int, len(send)*2)
	sendPos := make([]float64, 0, len(send)*3)
	for i, it := range send {
		sendHeader[2*i] = it.cg.Global
		sendHeader[2*i+1] = int(packMoveFlags(it.cg.AtomCount, it.fwd, it.bwd))
		sendPos = append(sendPos, it.cg.COG[0], it.cg.COG[1], it.cg.COG[2])
	}

	recvHeader := r.comm.ExchangeInts(sendHeader, from)
	posLens := r.comm.PayloadLens(len(sendPos))
	recvPos := r.comm.ExchangeFloats(sendPos, posLens, from)

	recvCount := len(recvHeader) / 2
	out := make([]PendingCG, recvCount)
	for i := 0; i < recvCount; i++ {
		out[i] = PendingCG{
			Global:    recvHeader[2*i],
			AtomCount: MoveFlags(recvHeader[2*i+1]).AtomCount(),
			COG:       Vec3{recvPos[3*i], recvPos[3*i+1], recvPos[3*i+2]},
		}
	}
	return out
}

func indexOfDim(t *Topology, dim int) int {
	for i, d := range t.Dim {
		if d == dim {
			return i
		}
	}
	return -1
}

// reallocCommInd always reallocates the communication index buffers to
// match the current pulse counts after any cell-size update, DLB or
// not. This removes the original's conditional skip of
// realloc_comm_ind when DLB is enabled and bMaster is false
// (spec.md §9 Open Question 2 / SPEC_FULL.md §D REDESIGN).
func (r *Redistributor) reallocCommInd(np [3]int) [3][]int {
	var ind [3][]int
	for di := range r.topo.Dim {
		ind[di] = make([]int, OverAlloc(np[di]+1))
	}
	return ind
}
