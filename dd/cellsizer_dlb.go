// Copyright 2015 Dorival Pedroso and Raul Durand. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dd

import (
	"math"
)

// DlbDimState is the per-active-dimension DLB state of spec.md §3,
// held only on the row root of that dimension.
type DlbDimState struct {
	CellF       []float64 // len nc[d]+1, current fractional boundaries
	OldCellF    []float64 // previous step's boundaries, for staggering limits
	CellSize    []float64 // len nc[d], per-cell proposed/optimal size
	BCellMin    []bool    // len nc[d], cells pinned at minimum
	CellFMax0   []float64 // len nc[d], published for the next dimension
	CellFMin1   []float64 // len nc[d], published for the next dimension
	BoundMin    []float64 // staggering lower bound per boundary
	BoundMax    []float64 // staggering upper bound per boundary
	Uniform     bool
	MinSizeF    float64 // cellsize_limit/L_d*MARGIN/skew_fac[d], fractional minimum
}

// NewDlbDimState allocates a dimension's DLB state at nc uniform cells.
func NewDlbDimState(nc int, minSizeF float64, uniform bool) *DlbDimState {
	s := &DlbDimState{
		CellF:     make([]float64, nc+1),
		OldCellF:  make([]float64, nc+1),
		CellSize:  make([]float64, nc),
		BCellMin:  make([]bool, nc),
		CellFMax0: make([]float64, nc),
		CellFMin1: make([]float64, nc),
		BoundMin:  make([]float64, nc+1),
		BoundMax:  make([]float64, nc+1),
		Uniform:   uniform,
		MinSizeF:  minSizeF,
	}
	for i := 0; i <= nc; i++ {
		s.CellF[i] = float64(i) / float64(nc)
	}
	copy(s.OldCellF, s.CellF)
	return s
}

// DlbController executes the dynamic load-balancing boundary update of
// spec.md §4.4, on the row root of each active dimension, in outer to
// inner order.
type DlbController struct {
	topo  *Topology
	geom  *Geometry
	comm  *Comm
	state [3]*DlbDimState

	PmeMaxShift float64 // published alongside dimension 0's cell_f
}

// NewDlbController binds a controller to a topology/geometry/communicator.
func NewDlbController(topo *Topology, geom *Geometry, comm *Comm) *DlbController {
	return &DlbController{topo: topo, geom: geom, comm: comm}
}

// SetDimState installs the DLB state object for dimension d (row root only).
func (c *DlbController) SetDimState(d int, s *DlbDimState) { c.state[d] = s }

// Update runs one DLB step for every active dimension in outer to inner
// order, per spec.md §4.4. `load[di][i]` is the per-cell imbalance input
// from the Load Monitor and `isRoot[di]` reports whether this rank is the
// row root, both indexed by active-dimension index di (as is `np`);
// `dynBox` scales inter-dimension limits by PressureMargin when true.
func (c *DlbController) Update(load [3][]float64, isRoot [3]bool, dynBox bool, cutoffMBody, cutoff float64, np [3]int) error {
	L := c.topo.box.Lengths()
	for di, d := range c.topo.Dim {
		st := c.state[d]
		if st == nil {
			continue
		}
		nc := c.topo.Nc[d]

		if !isRoot[di] {
			c.broadcastRow(d, nc, st, false)
			continue
		}

		// 1. snapshot
		copy(st.OldCellF, st.CellF)

		// 2. proposal
		if st.Uniform {
			for i := range st.CellSize {
				st.CellSize[i] = 1.0 / float64(nc)
			}
		} else {
			avg := average(load[di])
			for i := range st.CellSize {
				imbalance := 0.0
				if avg > 0 {
					imbalance = (load[di][i] - avg) / avg
				}
				proposed := st.CellSize[i] * (1 - RelaxDLB*imbalance)
				st.CellSize[i] = clampChange(st.CellSize[i], proposed, ChangeMaxDLB)
			}
		}

		// 3. minimum-size enforcement, iterated until stable
		for i := range st.BCellMin {
			st.BCellMin[i] = false
		}
		for iter := 0; iter < nc+1; iter++ {
			stable := c.enforceMinimum(st, nc)
			if stable {
				break
			}
		}

		// 4. endpoints
		acc := 0.0
		st.CellF[0] = 0
		for i := 0; i < nc; i++ {
			acc += st.CellSize[i]
			st.CellF[i+1] = acc
		}
		st.CellF[nc] = 1.0 // absorb rounding into the last cell
		lastSize := st.CellF[nc] - st.CellF[nc-1]
		if lastSize < st.MinSizeF/CellMargin2 {
			return &GeometricError{Msg: "last cell fell below minimum size after rescaling", Axis: axisLetter(d)}
		}

		// 5. staggering constraints (d>0, non-uniform): neither boundary
		// may move past the halfway point of the two cells it bounds.
		if di > 0 && !st.Uniform {
			c.enforceStaggering(st, nc)
		}

		// 6. inter-dimension limits (d>0)
		if di > 0 {
			distMinF := math.Max(cutoffMBody, cutoff/float64(np[di])) / L[d]
			if dynBox {
				distMinF *= PressureMargin
			}
			prev := c.state[c.topo.Dim[di-1]]
			c.enforceInterDim(st, prev, distMinF)
		}

		// 7. publish: append CellFMax0, CellFMin1, (d==0) pme_maxshift
		for i := 0; i < nc; i++ {
			st.CellFMax0[i] = st.CellF[i+1]
			st.CellFMin1[i] = st.CellF[i]
		}
		if di == 0 {
			c.PmeMaxShift = pmeMaxShift(st, nc)
		}
		c.broadcastRow(d, nc, st, true)

		if err := checkGridJump(st); err != nil {
			return err
		}
	}
	return nil
}

// broadcastRow ships the row root's freshly computed st.CellF to every
// other rank sharing this dimension's row, overwriting their (otherwise
// stale) local copy. Comm has no sub-communicator concept, so every rank
// in the world publishes a zero-elsewhere buffer via AllGatherFloats (the
// same technique LoadMonitor.GatherRow uses) and every rank then reads
// back the row root's slot via Topology.RowRanks(d)[0] -- a row-scoped
// broadcast built on a world-wide collective, not the gosl/mpi row
// sub-communicator the original dd_distribute_dlb assumes.
func (c *DlbController) broadcastRow(d, nc int, st *DlbDimState, isRoot bool) {
	if c.comm == nil {
		return
	}
	counts := make([]int, c.comm.Size())
	for i := range counts {
		counts[i] = nc + 1
	}
	buf := make([]float64, nc+1)
	if isRoot {
		copy(buf, st.CellF)
	}
	world := c.comm.AllGatherFloats(buf, counts)

	rowRoot := c.topo.RowRanks(d)[0]
	copy(st.CellF, world[rowRoot*(nc+1):rowRoot*(nc+1)+nc+1])
}

// enforceMinimum performs one pass of spec.md §4.4 step 3: rescale free
// (unpinned) cell sizes so they sum to 1 minus the pinned cells' minimum
// mass, then pin any cell that falls below its fractional minimum.
// Returns true once no new cell was pinned this pass (stable).
func (c *DlbController) enforceMinimum(st *DlbDimState, nc int) (stable bool) {
	free := 0.0
	pinnedMass := 0.0
	for i := 0; i < nc; i++ {
		if st.BCellMin[i] {
			pinnedMass += st.MinSizeF
		} else {
			free += st.CellSize[i]
		}
	}
	target := 1.0 - pinnedMass
	if free <= 0 {
		return true
	}
	scale := target / free
	newlyPinned := false
	for i := 0; i < nc; i++ {
		if st.BCellMin[i] {
			st.CellSize[i] = st.MinSizeF
			continue
		}
		st.CellSize[i] *= scale
		if st.CellSize[i] < st.MinSizeF {
			st.CellSize[i] = st.MinSizeF
			st.BCellMin[i] = true
			newlyPinned = true
		}
	}
	return !newlyPinned
}

// enforceStaggering implements spec.md §4.4 step 5 in two passes,
// propagating adjustments outward while respecting minimum size.
func (c *DlbController) enforceStaggering(st *DlbDimState, nc int) {
	for pass := 0; pass < 2; pass++ {
		for i := 1; i < nc; i++ {
			halfwayLo := (st.OldCellF[i-1] + st.OldCellF[i]) / 2
			halfwayHi := (st.OldCellF[i] + st.OldCellF[i+1]) / 2
			lo := st.CellF[i-1] + st.MinSizeF
			hi := st.CellF[i+1] - st.MinSizeF
			bound := st.CellF[i]
			if pass == 0 {
				if bound > halfwayHi {
					bound = halfwayHi
				}
			} else {
				if bound < halfwayLo {
					bound = halfwayLo
				}
			}
			if bound < lo {
				bound = lo
			}
			if bound > hi {
				bound = hi
			}
			st.CellF[i] = bound
		}
	}
}

// enforceInterDim implements spec.md §4.4 step 6: each boundary in
// dimension d must stay within [prev.CellFMax0[i-1]+distMinF,
// prev.CellFMin1[i]-distMinF]; a boundary violating both limits is
// set to their midpoint. No bLimited flag is recorded here: the Load
// Monitor's per-dimension "limited" counters (loadmonitor.go) are fed
// by the flags its caller passes to AccumulateStats.
func (c *DlbController) enforceInterDim(st, prev *DlbDimState, distMinF float64) {
	if prev == nil {
		return
	}
	n := len(st.CellF)
	pn := len(prev.CellFMax0)
	for i := 1; i < n-1; i++ {
		loIdx := i - 1
		if loIdx >= pn {
			loIdx = pn - 1
		}
		hiIdx := i
		if hiIdx >= pn {
			hiIdx = pn - 1
		}
		lo := prev.CellFMax0[loIdx] + distMinF
		hi := prev.CellFMin1[hiIdx] - distMinF
		violatedLo := st.CellF[i] < lo
		violatedHi := st.CellF[i] > hi
		switch {
		case violatedLo && violatedHi:
			st.CellF[i] = (lo + hi) / 2
		case violatedLo:
			st.CellF[i] = lo
		case violatedHi:
			st.CellF[i] = hi
		}
	}
}

// checkGridJump is the fatal "grid shifted too much" check of spec.md
// §4.4 / §7: a boundary shift greater than half a cell between two
// successive redistributions is fatal.
func checkGridJump(st *DlbDimState) error {
	n := len(st.CellF)
	for i := 1; i < n-1; i++ {
		oldSize := st.OldCellF[i] - st.OldCellF[i-1]
		if oldSize <= 0 {
			continue
		}
		shift := math.Abs(st.CellF[i] - st.OldCellF[i])
		if shift > 0.5*oldSize {
			return &GeometricError{Msg: "DLB boundary shifted more than half a cell between successive redistributions"}
		}
	}
	return nil
}

func average(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}

func clampChange(old, proposed, maxFrac float64) float64 {
	if old == 0 {
		return proposed
	}
	lo := old * (1 - maxFrac)
	hi := old * (1 + maxFrac)
	if proposed < lo {
		return lo
	}
	if proposed > hi {
		return hi
	}
	return proposed
}

func axisLetter(d int) byte {
	return "xyz"[d]
}

// pmeMaxShift returns the largest absolute deviation of any dimension-0
// boundary from its uniform position i/nc, in fractional box units,
// computed at publish time for d==0 per spec.md §4.4 step 7.
func pmeMaxShift(st *DlbDimState, nc int) float64 {
	maxShift := 0.0
	for i := 0; i < nc; i++ {
		shift := math.Abs(st.CellF[i+1] - float64(i+1)/float64(nc))
		if shift > maxShift {
			maxShift = shift
		}
	}
	return maxShift
}
