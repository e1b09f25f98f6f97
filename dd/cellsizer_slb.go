// Copyright 2015 Dorival Pedroso and Raul Durand. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dd

// CellBounds holds one dimension's cell boundaries in fractional [0,1]
// box coordinates, cell_f[0..nc[d]], plus the pulse count selected for
// that dimension (spec.md §4.2).
type CellBounds struct {
	CellF   []float64 // len nc[d]+1, monotone, CellF[0]=0, CellF[nc[d]]=1
	Npulse  int       // communication pulses selected for this dimension
}

// StaticCellSizer computes the uniform or user-fraction cell boundaries
// of spec.md §4.2 for each active dimension.
type StaticCellSizer struct {
	topo *Topology
	geom *Geometry
}

// NewStaticCellSizer builds a sizer bound to a topology and its geometry.
func NewStaticCellSizer(topo *Topology, geom *Geometry) *StaticCellSizer {
	return &StaticCellSizer{topo: topo, geom: geom}
}

// Apply computes CellBounds for every active dimension. fracs[d], when
// non-empty, gives user-specified normalized fractions for that
// dimension; an empty slice means uniform spacing.
func (s *StaticCellSizer) Apply(cutoff, cutoffMBody, cellSizeLimit float64, fracs [3][]float64) (bounds [3]CellBounds, err error) {
	L := s.topo.box.Lengths()
	for _, d := range s.topo.Dim {
		nc := s.topo.Nc[d]
		cellF := make([]float64, nc+1)
		if len(fracs[d]) == 0 {
			for i := 0; i <= nc; i++ {
				cellF[i] = float64(i) / float64(nc)
			}
		} else {
			if len(fracs[d]) != nc {
				return bounds, &ConfigError{Msg: "malformed SLB size string: fraction count does not match grid extent"}
			}
			sum := 0.0
			for _, f := range fracs[d] {
				sum += f
			}
			if sum <= 0 {
				return bounds, &ConfigError{Msg: "malformed SLB size string: fractions sum to zero"}
			}
			acc := 0.0
			for i := 0; i < nc; i++ {
				acc += fracs[d][i] / sum
				cellF[i+1] = acc
			}
			cellF[nc] = 1.0
		}

		minCellSizeReal := (cellF[1] - cellF[0]) * L[d] * s.geom.SkewFactor(d)
		for i := 1; i < nc; i++ {
			sz := (cellF[i+1] - cellF[i]) * L[d] * s.geom.SkewFactor(d)
			if sz < minCellSizeReal {
				minCellSizeReal = sz
			}
		}
		if minCellSizeReal < cellSizeLimit {
			return bounds, &ConfigError{Msg: "requested grid produces a cell smaller than the cutoff-derived minimum"}
		}

		np := selectPulseCount(minCellSizeReal, cutoff, nc)
		if np >= nc {
			return bounds, &ConfigError{Msg: "a cell would have to talk to itself through the periodic boundary: reduce grid extent or cutoff"}
		}
		bounds[d] = CellBounds{CellF: cellF, Npulse: np}
	}
	return bounds, nil
}

// selectPulseCount returns the smallest integer np with np*cellsize >=
// cutoff (spec.md §4.2).
func selectPulseCount(cellsize, cutoff float64, nc int) int {
	if cellsize <= 0 {
		return nc
	}
	np := 1
	for float64(np)*cellsize < cutoff {
		np++
	}
	return np
}
