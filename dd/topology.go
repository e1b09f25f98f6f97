// Copyright 2015 Dorival Pedroso and Raul Durand. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dd

import (
	"fmt"
	"math"
)

// PmeSplitMode tags which of the three PP/PME rank layouts (spec.md
// §4.1) this topology uses. Modeled as a small tagged union per
// spec.md §9 ("Dynamic dispatch... is a 3-variant tagged union").
type PmeSplitMode int

const (
	PmeLast PmeSplitMode = iota // PP ranks first, PME ranks last
	PmeInterleaved
	PmeCartesian
)

// Neighbor gives the forward/backward partner rank in one dimension.
type Neighbor struct {
	Forward  int
	Backward int
}

// Topology is the immutable-after-init grid/rank mapping of spec.md §4.1
// and the Grid of spec.md §3.
type Topology struct {
	Nc       [3]int      // grid extents, nc[d] >= 1
	Dim      []int       // active dimension indices, dim[0..ndim)
	Ndim     int         // number of active dimensions
	Rank     int         // this rank's PP index
	Ci       [3]int      // this rank's grid coordinate
	Neighbor [3]Neighbor // neighbor[d] for d in [0,Ndim)

	Nnodes   int          // total PP ranks
	Npme     int          // dedicated PME ranks
	SplitMode PmeSplitMode
	PmeAxis  int // axis used for Cartesian PP+PME split, meaningful only if SplitMode==PmeCartesian

	box Box
}

// RowRanks returns, in increasing coordinate order, the global PP ranks
// sharing this rank's coordinate in every dimension other than d --
// dimension d's row communicator membership, now expressed as a plain
// rank list since Comm has no sub-communicator concept (spec.md §4.9 /
// §4.4 use this to scope the Load Monitor gather and the DLB boundary
// broadcast to one row).
func (t *Topology) RowRanks(d int) []int {
	ranks := make([]int, t.Nc[d])
	ci := t.Ci
	for i := 0; i < t.Nc[d]; i++ {
		ci[d] = i
		ranks[i] = DDIndex(ci, t.Nc)
	}
	return ranks
}

// DDIndex returns the x-major linear index ((ci.x*ny)+ci.y)*nz + ci.z,
// chosen so that PME's x-slab decomposition is contiguous (spec.md §3).
func DDIndex(ci [3]int, nc [3]int) int {
	return (ci[0]*nc[1]+ci[1])*nc[2] + ci[2]
}

// CiFromIndex is the inverse of DDIndex.
func CiFromIndex(idx int, nc [3]int) (ci [3]int) {
	ci[2] = idx % nc[2]
	idx /= nc[2]
	ci[1] = idx % nc[1]
	ci[0] = idx / nc[1]
	return
}

// BuildTopology constructs the PP communicator mapping, given the total
// rank count N, PME rank count P, and desired grid nc (a zero grid
// triggers OptimizeGrid). Grounded on spec.md §4.1 / domdec.c's
// dd_choose_grid + dd_init_pp_decomposition.
func BuildTopology(box Box, N, P int, nc [3]int, rank int, axisOrderZYX bool) (t *Topology, err error) {
	if nc[0] == 0 && nc[1] == 0 && nc[2] == 0 {
		nc, err = OptimizeGrid(box, N-P)
		if err != nil {
			return nil, err
		}
	}
	if err = validateGrid(box, nc); err != nil {
		return nil, err
	}

	t = &Topology{Nc: nc, Nnodes: N - P, Npme: P, box: box}
	for d := 0; d < 3; d++ {
		if nc[d] > 1 {
			t.Dim = append(t.Dim, d)
		}
	}
	if axisOrderZYX {
		reverseInts(t.Dim)
	}
	t.Ndim = len(t.Dim)

	t.Rank = rank
	t.Ci = CiFromIndex(rank, nc)

	for di, d := range t.Dim {
		fwd := t.Ci
		fwd[d] = (fwd[d] + 1) % nc[d]
		bwd := t.Ci
		bwd[d] = (bwd[d] - 1 + nc[d]) % nc[d]
		t.Neighbor[di] = Neighbor{Forward: DDIndex(fwd, nc), Backward: DDIndex(bwd, nc)}
	}

	t.SplitMode, t.PmeAxis = choosePmeSplit(N, P, nc)
	return t, nil
}

// validateGrid rejects grids incompatible with the box's triclinic
// structure: a non-zero off-diagonal box element in direction j forbids
// nc[j] > 1 while nc[d] == 1 for the dimension d it depends on
// (spec.md §4.1).
func validateGrid(box Box, nc [3]int) error {
	if nc[0] <= 0 || nc[1] <= 0 || nc[2] <= 0 {
		return &ConfigError{Msg: "grid extents must be positive"}
	}
	if box[1][0] != 0 && nc[1] > 1 && nc[0] == 1 {
		return &ConfigError{Msg: "triclinic yx coupling forbids ny>1 with nx==1"}
	}
	if box[2][0] != 0 && nc[2] > 1 && nc[0] == 1 {
		return &ConfigError{Msg: "triclinic zx coupling forbids nz>1 with nx==1"}
	}
	if box[2][1] != 0 && nc[2] > 1 && nc[1] == 1 {
		return &ConfigError{Msg: "triclinic zy coupling forbids nz>1 with ny==1"}
	}
	return nil
}

// OptimizeGrid factorizes nranks into primes and searches all
// assignments (nx,ny,nz), scoring by the communication-volume model of
// spec.md §4.1.
func OptimizeGrid(box Box, nranks int) (best [3]int, err error) {
	if nranks <= 0 {
		return best, &ConfigError{Msg: "optimize grid requires a positive PP rank count"}
	}
	factors := primeFactors(nranks)
	bestScore := math.Inf(1)
	found := false

	tryAssignment := func(nx, ny, nz int) {
		if nx*ny*nz != nranks {
			return
		}
		if validateGrid(box, [3]int{nx, ny, nz}) != nil {
			return
		}
		score := commVolumeScore(box, nx, ny, nz)
		if score < bestScore {
			bestScore = score
			best = [3]int{nx, ny, nz}
			found = true
		}
	}

	divisors := allDivisors(factors)
	for _, nx := range divisors {
		if nranks%nx != 0 {
			continue
		}
		rest := nranks / nx
		for _, ny := range allDivisors(primeFactors(rest)) {
			if rest%ny != 0 {
				continue
			}
			nz := rest / ny
			tryAssignment(nx, ny, nz)
		}
	}
	if !found {
		return best, &ConfigError{Msg: "no feasible decomposition grid found for the given rank count and box"}
	}
	return best, nil
}

// commVolumeScore implements V = sum(w_i) + sum(w_i*w_j)*pi/4 +
// w_x*w_y*w_z*pi/6, plus a pbc_dx overhead (spec.md §4.1). The score
// has no PME-imbalance term; the PME rank count does not enter it.
func commVolumeScore(box Box, nx, ny, nz int) float64 {
	L := box.Lengths()
	w := [3]float64{1 / (L[0] * float64(nx)), 1 / (L[1] * float64(ny)), 1 / (L[2] * float64(nz))}
	v := w[0] + w[1] + w[2]
	v += (w[0]*w[1] + w[0]*w[2] + w[1]*w[2]) * math.Pi / 4
	v += w[0] * w[1] * w[2] * math.Pi / 6
	if box.IsTriclinic() {
		v += 0.2
	} else {
		v += 0.1
	}
	return v
}

// choosePmeSplit implements the three PP/PME split modes of spec.md §4.1.
func choosePmeSplit(N, P int, nc [3]int) (PmeSplitMode, int) {
	if P == 0 {
		return PmeLast, -1
	}
	for _, axis := range []int{1, 2} {
		if (P*nc[axis])%N == 0 {
			// y is taken whenever it qualifies, z otherwise; the
			// resulting PME slab thicknesses are not compared
			if axis == 1 {
				return PmeCartesian, 1
			}
			return PmeCartesian, 2
		}
	}
	return PmeInterleaved, -1
}

// PmeRankFor returns pme(i) = (i*P + P/2)/N for the interleaved split.
func PmeRankFor(i, P, N int) int {
	return (i*P + P/2) / N
}

// GuessNpme implements spec.md §4.1's "Guessing P when unspecified":
// compute ratio = estimated_pme_load/total_load; pick the smallest
// P <= N/3 satisfying the divisibility and ratio constraints, relaxing
// divisibility on failure, and rejecting grids whose remaining PP count
// has an unacceptably large prime factor.
func GuessNpme(N int, nkx, nky int, estimatedPmeLoad, totalLoad float64) (P int, err error) {
	ratio := estimatedPmeLoad / totalLoad
	limit := N / 3

	strict := func(p int) bool {
		return p > 0 && nkx%p == 0 && nky%p == 0 && N%p == 0 && float64(p)/float64(N) > 0.95*ratio
	}
	for p := 1; p <= limit; p++ {
		if strict(p) {
			P = p
			break
		}
	}
	if P == 0 {
		relaxed := func(p int) bool {
			return p > 0 && N%p == 0 && float64(p)/float64(N) > 0.95*ratio
		}
		for p := 1; p <= limit; p++ {
			if relaxed(p) {
				P = p
				break
			}
		}
	}
	if P == 0 {
		P = 0 // no separate PME ranks; everything runs on PP ranks
	}
	if err := rejectLargePrimeFactor(N - P); err != nil {
		return 0, err
	}
	return P, nil
}

// rejectLargePrimeFactor rejects a PP rank count whose largest prime
// factor exceeds 3 + floor(n^(1/3)) (spec.md §4.1).
func rejectLargePrimeFactor(n int) error {
	if n <= 0 {
		return &ConfigError{Msg: "PP rank count must be positive"}
	}
	maxAllowed := 3 + int(math.Cbrt(float64(n)))
	largest := 1
	for _, f := range primeFactors(n) {
		if f > largest {
			largest = f
		}
	}
	if largest > maxAllowed {
		return &ConfigError{Msg: fmt.Sprintf("PP rank count %d has a prime factor %d exceeding 3+floor(n^(1/3))=%d", n, largest, maxAllowed)}
	}
	return nil
}

// primeFactors returns the prime factorization of n, with repeats.
func primeFactors(n int) []int {
	var fs []int
	for n%2 == 0 {
		fs = append(fs, 2)
		n /= 2
	}
	for p := 3; p*p <= n; p += 2 {
		for n%p == 0 {
			fs = append(fs, p)
			n /= p
		}
	}
	if n > 1 {
		fs = append(fs, n)
	}
	return fs
}

// allDivisors returns every divisor implied by a prime factorization.
func allDivisors(factors []int) []int {
	divs := []int{1}
	for _, f := range factors {
		n := len(divs)
		for i := 0; i < n; i++ {
			divs = append(divs, divs[i]*f)
		}
	}
	seen := make(map[int]bool)
	var uniq []int
	for _, d := range divs {
		if !seen[d] {
			seen[d] = true
			uniq = append(uniq, d)
		}
	}
	return uniq
}

func reverseInts(s []int) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
