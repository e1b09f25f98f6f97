// Copyright 2015 Dorival Pedroso and Raul Durand. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dd

import (
	"github.com/cpmech/gosl/mpi"
)

// Comm is the single point of contact with github.com/cpmech/gosl/mpi.
// The teacher only ever calls two collective entry points directly --
// fem/solver.go's mpi.AllReduceSum(d.Fb, d.Wb) and
// fem/errorhandler.go's mpi.IntAllReduceMax(global.WspcStop,
// global.WspcInum), alongside mpi.IsOn/mpi.Rank/mpi.Size -- and nowhere
// in the retrieval pack is there a point-to-point send/receive, a
// sub-communicator, or a gather/scatter call on gosl/mpi. Every
// rank-to-rank exchange this package needs (paired neighbor exchange,
// gather onto the master, scatter from the master, row-scoped
// broadcast) is therefore built out of those same two reductions over a
// rank-indexed, zero-elsewhere buffer, rather than inventing API
// surface the teacher never shows.
type Comm struct {
	rank   int
	nranks int
}

// NewComm reads this process's rank and world size.
func NewComm() *Comm {
	c := &Comm{nranks: 1}
	if mpi.IsOn() {
		c.rank = mpi.Rank()
		c.nranks = mpi.Size()
	}
	return c
}

// Rank returns this rank's PP index.
func (c *Comm) Rank() int { return c.rank }

// Size returns the total number of PP ranks.
func (c *Comm) Size() int { return c.nranks }

// allReduceSum sums send into recv across every PP rank, grounded on
// fem/solver.go's mpi.AllReduceSum(d.Fb, d.Wb).
func (c *Comm) allReduceSum(send []float64) []float64 {
	recv := make([]float64, len(send))
	if mpi.IsOn() {
		mpi.AllReduceSum(send, recv)
		return recv
	}
	copy(recv, send)
	return recv
}

// intAllReduceMax reduces elementwise by max across every PP rank,
// grounded on fem/errorhandler.go's
// mpi.IntAllReduceMax(global.WspcStop, global.WspcInum).
func (c *Comm) intAllReduceMax(send []int) []int {
	recv := make([]int, len(send))
	if mpi.IsOn() {
		mpi.IntAllReduceMax(send, recv)
		return recv
	}
	copy(recv, send)
	return recv
}

// AllGatherInts concatenates every rank's int slice, ordered by rank.
// Every value contributed must be non-negative: each rank writes only
// its own region of a zero-elsewhere world buffer, so an elementwise
// max-reduction reconstructs the full concatenation exactly as a gather
// would, using only the max-reduce primitive the teacher attests.
func (c *Comm) AllGatherInts(local []int) (gathered []int, counts []int) {
	lens := make([]int, c.nranks)
	lens[c.rank] = len(local)
	counts = c.intAllReduceMax(lens)

	offsets := make([]int, c.nranks)
	total := 0
	for i, n := range counts {
		offsets[i] = total
		total += n
	}
	buf := make([]int, total)
	copy(buf[offsets[c.rank]:offsets[c.rank]+len(local)], local)
	return c.intAllReduceMax(buf), counts
}

// AllGatherFloats is AllGatherInts' float64 analogue, summed instead of
// maxed since float payloads (positions, cell boundaries) may be
// negative; `counts` must already agree on every rank (typically the
// counts returned alongside a companion AllGatherInts call).
func (c *Comm) AllGatherFloats(local []float64, counts []int) []float64 {
	offsets := make([]int, len(counts))
	total := 0
	for i, n := range counts {
		offsets[i] = total
		total += n
	}
	buf := make([]float64, total)
	copy(buf[offsets[c.rank]:offsets[c.rank]+len(local)], local)
	return c.allReduceSum(buf)
}

// Broadcast publishes root's vals identically to every rank: root
// contributes its buffer and every other rank contributes all zeros, so
// allReduceSum reconstructs root's buffer everywhere.
func (c *Comm) Broadcast(root int, vals []float64) []float64 {
	buf := make([]float64, len(vals))
	if c.rank == root {
		copy(buf, vals)
	}
	return c.allReduceSum(buf)
}

// ExchangeInts gathers every rank's fixed-width int payload (by rank)
// and returns the one rank `from` contributed: the paired-exchange
// primitive of spec.md §5.1, built on AllGatherInts.
func (c *Comm) ExchangeInts(local []int, from int) []int {
	gathered, counts := c.AllGatherInts(local)
	offset := 0
	for i := 0; i < from; i++ {
		offset += counts[i]
	}
	return gathered[offset : offset+counts[from]]
}

// ExchangeFloats is ExchangeInts' float64 analogue: `counts` must
// already be known identically on every rank (typically from a prior
// ExchangeInts call carrying message lengths).
func (c *Comm) ExchangeFloats(local []float64, counts []int, from int) []float64 {
	gathered := c.AllGatherFloats(local, counts)
	offset := 0
	for i := 0; i < from; i++ {
		offset += counts[i]
	}
	return gathered[offset : offset+counts[from]]
}

// PayloadLens publishes every rank's variable-length payload size,
// ordered by rank: each rank contributes a single-element AllGatherInts
// call, so the returned concatenation is already exactly the `counts`
// array AllGatherFloats/ExchangeFloats expect.
func (c *Comm) PayloadLens(localLen int) []int {
	lens, _ := c.AllGatherInts([]int{localLen})
	return lens
}

// BroadcastInts is Broadcast's int analogue, for non-negative payloads
// (counts, global indices): root contributes its buffer and every other
// rank contributes zeros, so intAllReduceMax reconstructs root's buffer
// everywhere.
func (c *Comm) BroadcastInts(root int, vals []int) []int {
	buf := make([]int, len(vals))
	if c.rank == root {
		copy(buf, vals)
	}
	return c.intAllReduceMax(buf)
}
