// Copyright 2015 Dorival Pedroso and Raul Durand. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dd

// GlobalState holds full-system vectors assembled on the master rank by
// State Gather/Scatter (spec.md §4.10).
type GlobalState struct {
	Box      Box
	Lambda   float64
	X        []Vec3 // positions, indexed by global atom id
	V        []Vec3 // velocities, present iff HasVelocities
	SDHist   []Vec3 // stochastic-dynamics history, present iff HasSDHistory
	CGP      []Vec3 // conjugate-gradient state, present iff HasCGPressure
	DdpCount int    // monotone partitioning counter, for checkpoint consistency
}

// LocalState holds one rank's local per-atom vectors plus its ownership
// map of global charge groups.
type LocalState struct {
	X      []Vec3
	V      []Vec3
	SDHist []Vec3
	CGP    []Vec3

	CgGl     []int // this rank's owned global CG indices (persisted at checkpoint)
	DdpCount int
}

// masterCGMap mirrors original_source/src/mdlib/domdec.c's
// gmx_domdec_master_t: per-rank CG counts/offsets built once via
// dd_collect_cg, cached until the next redistribution invalidates it
// (bMasterHasAllCG).
type masterCGMap struct {
	ncg   []int
	nat   []int
	index []int
	cg    []int
}

// StateExchanger implements spec.md §4.10: dd_collect_state brings all
// CG vectors to the master by gather-v over the PP communicator;
// dd_distribute_state broadcasts scalar state and scatters per-rank
// vectors. Grounded on original_source/src/mdlib/domdec.c's
// dd_collect_vec / dd_collect_state / dd_distribute_state.
type StateExchanger struct {
	topo *Topology
	comm *Comm

	bMasterHasAllCG bool
	master          *masterCGMap
}

// NewStateExchanger binds a state exchanger to its topology/comm.
func NewStateExchanger(topo *Topology, comm *Comm) *StateExchanger {
	return &StateExchanger{topo: topo, comm: comm}
}

// InvalidateMasterCG marks the master's CG map stale; called after
// every redistribution (spec.md §4.5 "until the first redistribution").
func (s *StateExchanger) InvalidateMasterCG() { s.bMasterHasAllCG = false }

// collectCG rebuilds the master's per-rank CG count/offset map on
// demand, mirroring dd_collect_cg. Built on Comm.AllGatherInts: the
// fixed-width (ncg, nat) pair and the variable-width cgGl list are each
// their own collective call, with AllGatherInts deriving cgGl's per-rank
// counts from its contributed lengths rather than needing a separate
// rcounts/disps pair the caller computes by hand.
func (s *StateExchanger) collectCG(ncgHome, natHome int, cgGl []int) {
	if s.bMasterHasAllCG {
		return
	}
	nranks := s.topo.Nnodes
	m := &masterCGMap{ncg: make([]int, nranks), nat: make([]int, nranks), index: make([]int, nranks+1)}

	local := []int{ncgHome, natHome}
	gathered := make([]int, nranks*2)
	if s.comm != nil {
		gathered, _ = s.comm.AllGatherInts(local)
	}
	for i := 0; i < nranks; i++ {
		m.ncg[i] = gathered[2*i]
		m.nat[i] = gathered[2*i+1]
		m.index[i+1] = m.index[i] + m.ncg[i]
	}
	m.cg = make([]int, m.index[nranks])
	if s.comm != nil {
		gatheredCg, _ := s.comm.AllGatherInts(cgGl)
		copy(m.cg, gatheredCg)
	}
	s.master = m
	s.bMasterHasAllCG = true
}

// collectVec is dd_collect_vec: gathers one local vector `lv` (HOME
// atoms, rank-local order) into the global vector `v` (global atom
// order), via the master's CG map for the index translation. Built on
// Comm.AllGatherFloats, which orders the result by rank structurally
// (each rank writes only its own region of a zero-elsewhere buffer
// before the reduction) rather than by a send-side tag, so spec.md §9's
// Open Question 1 about tag collisions does not arise here — see
// DESIGN.md for that decision.
func (s *StateExchanger) collectVec(ncgHome, natHome int, cgGl []int, lv []Vec3, cgAtomCount func(globalCG int) int, v []Vec3) {
	s.collectCG(ncgHome, natHome, cgGl)
	m := s.master

	flat := vecsToFlat(lv)
	gathered := flat
	if s.comm != nil {
		gathered = s.comm.AllGatherFloats(flat, natCounts3(m.nat))
	}
	if !s.topo.isMaster() {
		return
	}

	recv := flatToVecs(gathered)
	vecOffset := 0
	for n := 0; n < s.topo.Nnodes; n++ {
		cursor := 0
		writeFromIndex(m, n, recv[vecOffset:vecOffset+m.nat[n]], cgAtomCount, v, &cursor)
		vecOffset += m.nat[n]
	}
}

// distributeVec is the mirror of collectVec for dd_distribute_state:
// the master reads the global array `v` out into a flat, rank-ordered
// buffer via the same CG index map collectVec used to write it, then
// Comm.Broadcast ships the whole buffer to every rank, which slices out
// its own region into `lv`.
func (s *StateExchanger) distributeVec(ncgHome, natHome int, cgGl []int, v []Vec3, cgAtomCount func(globalCG int) int, lv []Vec3) {
	s.collectCG(ncgHome, natHome, cgGl)
	m := s.master

	total := 0
	for _, n := range m.nat {
		total += n * 3
	}
	flat := make([]float64, total)
	if s.topo.isMaster() {
		cursor := 0
		for n := 0; n < s.topo.Nnodes; n++ {
			readIntoFlat(m, n, v, cgAtomCount, flat, &cursor)
		}
	}
	bcast := flat
	if s.comm != nil {
		bcast = s.comm.Broadcast(0, flat)
	}

	myOffset := 0
	for n := 0; n < s.topo.Rank; n++ {
		myOffset += m.nat[n]
	}
	mine := bcast[myOffset*3 : (myOffset+m.nat[s.topo.Rank])*3]
	copy(lv, flatToVecs(mine))
}

// natCounts3 scales a per-rank atom-count table by 3, for AllGatherFloats'
// vec3-as-three-floats payload convention.
func natCounts3(nat []int) []int {
	counts := make([]int, len(nat))
	for i, n := range nat {
		counts[i] = n * 3
	}
	return counts
}

// writeFromIndex copies the atoms of the CGs owned by rank `owner`
// (per the master's cached index map) from a flat source buffer `src`
// (in that rank's local order) into the global array `v`.
func writeFromIndex(m *masterCGMap, owner int, src []Vec3, cgAtomCount func(int) int, v []Vec3, cursor *int) {
	for i := m.index[owner]; i < m.index[owner+1]; i++ {
		globalCG := m.cg[i]
		n := cgAtomCount(globalCG)
		base := globalCGAtomBase(globalCG, cgAtomCount)
		for k := 0; k < n; k++ {
			v[base+k] = src[*cursor]
			*cursor = *cursor + 1
		}
	}
}

// readIntoFlat copies the atoms of the CGs owned by rank `owner` from
// the global array `v` into a flat destination buffer, in that rank's
// local order -- the mirror image of writeFromIndex, used by
// distributeVec to assemble the master's pre-broadcast buffer.
func readIntoFlat(m *masterCGMap, owner int, v []Vec3, cgAtomCount func(int) int, dst []float64, cursor *int) {
	for i := m.index[owner]; i < m.index[owner+1]; i++ {
		globalCG := m.cg[i]
		n := cgAtomCount(globalCG)
		base := globalCGAtomBase(globalCG, cgAtomCount)
		for k := 0; k < n; k++ {
			p := v[base+k]
			dst[*cursor], dst[*cursor+1], dst[*cursor+2] = p[0], p[1], p[2]
			*cursor += 3
		}
	}
}

// globalCGAtomBase is a placeholder for the collaborator-provided
// global atom offset table (spec.md §6: "global→local tables" are
// maintained by the engine, but the global CG→atom-range table mapping
// is a property of the topology's CG layout known at distribution time).
func globalCGAtomBase(globalCG int, cgAtomCount func(int) int) int {
	base := 0
	for g := 0; g < globalCG; g++ {
		base += cgAtomCount(g)
	}
	return base
}

// CollectState assembles positions and optional velocity / SD-history /
// CG-pressure vectors on the master (spec.md §4.10).
func (s *StateExchanger) CollectState(local *LocalState, ncgHome, natHome int, cgGl []int, cgAtomCount func(int) int, flags OptVectorFlags, global *GlobalState) {
	if s.topo.isMaster() {
		global.Box = Box{}
		global.DdpCount = local.DdpCount
	}
	s.collectVec(ncgHome, natHome, cgGl, local.X, cgAtomCount, global.X)
	if flags&HasVelocities != 0 {
		s.collectVec(ncgHome, natHome, cgGl, local.V, cgAtomCount, global.V)
	}
	if flags&HasSDHistory != 0 {
		s.collectVec(ncgHome, natHome, cgGl, local.SDHist, cgAtomCount, global.SDHist)
	}
	if flags&HasCGPressure != 0 {
		s.collectVec(ncgHome, natHome, cgGl, local.CGP, cgAtomCount, global.CGP)
	}
}

// DistributeState broadcasts the scalar box/lambda state and scatters
// per-rank vectors back out from the master (spec.md §4.10): every
// vector CollectState gathered onto the master is shipped back out via
// distributeVec, symmetric with how it was brought in.
func (s *StateExchanger) DistributeState(global *GlobalState, local *LocalState, ncgHome, natHome int, cgAtomCount func(int) int, flags OptVectorFlags, box *Box, lambda *float64) {
	flat := make([]float64, 10)
	if s.topo.isMaster() {
		flat[0] = global.Lambda
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				flat[1+3*i+j] = global.Box[i][j]
			}
		}
	}
	if s.comm != nil {
		flat = s.comm.Broadcast(0, flat)
	}
	*lambda = flat[0]
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			box[i][j] = flat[1+3*i+j]
		}
	}

	s.distributeVec(ncgHome, natHome, local.CgGl, global.X, cgAtomCount, local.X)
	if flags&HasVelocities != 0 {
		s.distributeVec(ncgHome, natHome, local.CgGl, global.V, cgAtomCount, local.V)
	}
	if flags&HasSDHistory != 0 {
		s.distributeVec(ncgHome, natHome, local.CgGl, global.SDHist, cgAtomCount, local.SDHist)
	}
	if flags&HasCGPressure != 0 {
		s.distributeVec(ncgHome, natHome, local.CgGl, global.CGP, cgAtomCount, local.CGP)
	}
	s.InvalidateMasterCG()
}

func (t *Topology) isMaster() bool { return t.Rank == 0 }

func vecsToFlat(v []Vec3) []float64 {
	out := make([]float64, len(v)*3)
	for i, p := range v {
		out[3*i], out[3*i+1], out[3*i+2] = p[0], p[1], p[2]
	}
	return out
}

func flatToVecs(f []float64) []Vec3 {
	out := make([]Vec3, len(f)/3)
	for i := range out {
		out[i] = Vec3{f[3*i], f[3*i+1], f[3*i+2]}
	}
	return out
}
