// Package xmath provides the small numerical primitives the inference core
// shares across CRPs, distributions, and relations: log-domain summation,
// log-spaced grids, and weighted sampling.
package xmath

import (
	"math"
	"sort"
)

// LogSumExp returns log(sum(exp(xs))), computed so that no individual term
// overflows or underflows. An empty slice yields negative infinity.
func LogSumExp(xs []float64) float64 {
	if len(xs) == 0 {
		return math.Inf(-1)
	}
	max := math.Inf(-1)
	for _, x := range xs {
		if x > max {
			max = x
		}
	}
	if math.IsInf(max, -1) {
		return math.Inf(-1)
	}
	sum := 0.0
	for _, x := range xs {
		sum += math.Exp(x - max)
	}
	return max + math.Log(sum)
}

// LogLinspace returns n points log-uniformly spaced over [lo, hi], lo>0.
func LogLinspace(lo, hi float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []float64{lo}
	}
	logLo, logHi := math.Log(lo), math.Log(hi)
	step := (logHi - logLo) / float64(n-1)
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = math.Exp(logLo + step*float64(i))
	}
	return out
}

// WeightedChoice samples an index in [0, len(weights)) proportional to the
// (non-log, non-negative) weights using u, a uniform [0,1) draw.
func WeightedChoice(weights []float64, u float64) int {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	target := u * total
	cum := 0.0
	for i, w := range weights {
		cum += w
		if target < cum {
			return i
		}
	}
	return len(weights) - 1
}

// LogWeightedChoice samples an index in [0, len(logWeights)) proportional to
// exp(logWeights[i]) without leaving log space, using u, a uniform [0,1)
// draw. Panics if every weight is -Inf or NaN (the caller's contract is to
// never present a degenerate distribution here).
func LogWeightedChoice(logWeights []float64, u float64) int {
	norm := LogSumExp(logWeights)
	if math.IsInf(norm, -1) || math.IsNaN(norm) {
		panic("xmath: LogWeightedChoice called with a fully-degenerate weight vector")
	}
	target := math.Log(u)
	cum := math.Inf(-1)
	for i, lw := range logWeights {
		cum = LogSumExp([]float64{cum, lw - norm})
		if target < cum {
			return i
		}
	}
	return len(logWeights) - 1
}

// CartesianProduct returns every combination obtained by picking one index
// from each of the given dimension sizes, in lexicographic order of the
// index tuples. An empty `sizes` yields a single empty combination; a zero
// size at any position yields no combinations.
func CartesianProduct(sizes []int) [][]int {
	for _, s := range sizes {
		if s == 0 {
			return nil
		}
	}
	if len(sizes) == 0 {
		return [][]int{{}}
	}
	total := 1
	for _, s := range sizes {
		total *= s
	}
	out := make([][]int, 0, total)
	combo := make([]int, len(sizes))
	for {
		row := make([]int, len(combo))
		copy(row, combo)
		out = append(out, row)

		i := len(sizes) - 1
		for i >= 0 {
			combo[i]++
			if combo[i] < sizes[i] {
				break
			}
			combo[i] = 0
			i--
		}
		if i < 0 {
			break
		}
	}
	return out
}

// SortedKeys returns the keys of an int-keyed weight map in ascending order,
// used to make Gibbs table enumeration deterministic given a fixed PRNG
// stream (the map iteration order of Go is not).
func SortedKeys(m map[int]float64) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
