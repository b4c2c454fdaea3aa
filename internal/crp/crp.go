// Package crp implements the Chinese Restaurant Process partition used
// throughout the inference core: a prior over partitions of customers into
// tables, governed by a concentration parameter alpha.
//
// A CRP is not safe for concurrent use. The inference core is single-
// threaded cooperative (SPEC_FULL.md §5); every mutation here is a plain
// read-then-write with no internal locking.
package crp

import (
	"fmt"
	"math"

	"github.com/pclean-go/pclean/internal/prng"
	"github.com/pclean-go/pclean/internal/xmath"
)

// CRP holds the customer/table bookkeeping for one partition.
//
// Invariant: the multiset of assignments.values() equals, per table, the
// size of tables[table]; N equals the sum of table sizes. Empty tables are
// deleted eagerly.
type CRP struct {
	Alpha       float64
	n           int
	tables      map[int]map[int]struct{}
	assignments map[int]int
}

// New returns an empty CRP with the given concentration.
func New(alpha float64) *CRP {
	if alpha <= 0 {
		panic(fmt.Sprintf("crp: alpha must be positive, got %v", alpha))
	}
	return &CRP{
		Alpha:       alpha,
		tables:      make(map[int]map[int]struct{}),
		assignments: make(map[int]int),
	}
}

// N returns the current customer count.
func (c *CRP) N() int { return c.n }

// NumTables returns the current occupied-table count.
func (c *CRP) NumTables() int { return len(c.tables) }

// Assignment returns the table item currently sits at, and whether item is
// incorporated at all.
func (c *CRP) Assignment(item int) (int, bool) {
	t, ok := c.assignments[item]
	return t, ok
}

// Items returns the members of a table. Returns nil for an unoccupied
// table (including one that was never occupied or has just been deleted).
func (c *CRP) Items(table int) []int {
	members, ok := c.tables[table]
	if !ok {
		return nil
	}
	out := make([]int, 0, len(members))
	for item := range members {
		out = append(out, item)
	}
	return out
}

// Tables returns the occupied table ids, in ascending order.
func (c *CRP) Tables() []int {
	ids := make([]int, 0, len(c.tables))
	for t := range c.tables {
		ids = append(ids, t)
	}
	sortInts(ids)
	return ids
}

func sortInts(xs []int) {
	for i := 1; i < len(xs); i++ {
		for j := i; j > 0 && xs[j-1] > xs[j]; j-- {
			xs[j-1], xs[j] = xs[j], xs[j-1]
		}
	}
}

func (c *CRP) maxTable() int {
	max := -1
	for t := range c.tables {
		if t > max {
			max = t
		}
	}
	return max
}

// Incorporate adds item to table, creating the table if needed.
// Contract violation (fatal): item is already incorporated somewhere.
func (c *CRP) Incorporate(item, table int) {
	if _, ok := c.assignments[item]; ok {
		panic(fmt.Sprintf("crp: item %d already incorporated at table %d", item, c.assignments[item]))
	}
	if c.tables[table] == nil {
		c.tables[table] = make(map[int]struct{})
	}
	c.tables[table][item] = struct{}{}
	c.assignments[item] = table
	c.n++
}

// Unincorporate removes item from its table, deleting the table if it
// becomes empty.
// Contract violation (fatal): item is not currently incorporated.
func (c *CRP) Unincorporate(item int) {
	table, ok := c.assignments[item]
	if !ok {
		panic(fmt.Sprintf("crp: unincorporate of unknown item %d", item))
	}
	delete(c.tables[table], item)
	delete(c.assignments, item)
	c.n--
	if len(c.tables[table]) == 0 {
		delete(c.tables, table)
	}
}

// TablesWeights returns, for every occupied table, its customer count, plus
// one additional entry for a fresh table (id = max(tables)+1) weighted by
// alpha.
func (c *CRP) TablesWeights() map[int]float64 {
	out := make(map[int]float64, len(c.tables)+1)
	for t, members := range c.tables {
		out[t] = float64(len(members))
	}
	out[c.maxTable()+1] = c.Alpha
	return out
}

// TablesWeightsGibbs returns the weights for reassigning the single
// customer currently sitting at `item`'s table: that table's count is
// decremented by one, and if it would become empty, it is dropped and
// replaced by a single alpha-weighted fresh table at the post-removal
// max(tables)+1 (which differs from the non-Gibbs fresh id exactly when
// the vanishing table held the current max id).
func (c *CRP) TablesWeightsGibbs(item int) map[int]float64 {
	table, ok := c.assignments[item]
	if !ok {
		panic(fmt.Sprintf("crp: tables_weights_gibbs of unincorporated item %d", item))
	}
	out := make(map[int]float64, len(c.tables)+1)
	maxSurviving := -1
	for t, members := range c.tables {
		count := len(members)
		if t == table {
			count--
		}
		if count > 0 {
			out[t] = float64(count)
			if t > maxSurviving {
				maxSurviving = t
			}
		}
	}
	out[maxSurviving+1] = c.Alpha
	return out
}

// Sample draws a table id proportional to TablesWeights.
func (c *CRP) Sample(s *prng.Stream) int {
	return sampleFromWeights(c.TablesWeights(), s.Float64())
}

func sampleFromWeights(weights map[int]float64, u float64) int {
	keys := xmath.SortedKeys(weights)
	ws := make([]float64, len(keys))
	for i, k := range keys {
		ws[i] = weights[k]
	}
	return keys[xmath.WeightedChoice(ws, u)]
}

// Logp returns the log predictive probability of a new customer joining
// `table`. If table is not currently occupied, this is LogpNewTable().
func (c *CRP) Logp(table int) float64 {
	if members, ok := c.tables[table]; ok && len(members) > 0 {
		return math.Log(float64(len(members))) - math.Log(float64(c.n)+c.Alpha)
	}
	return c.LogpNewTable()
}

// LogpNewTable returns the log predictive probability of starting a fresh
// table.
func (c *CRP) LogpNewTable() float64 {
	return math.Log(c.Alpha) - math.Log(float64(c.n)+c.Alpha)
}

// LogpScore returns the exchangeable CRP joint log-likelihood:
//
//	K*log(alpha) + sum(lgamma(n_k)) + lgamma(alpha) - lgamma(N+alpha)
func (c *CRP) LogpScore() float64 {
	k := float64(len(c.tables))
	score := k * math.Log(c.Alpha)
	for _, members := range c.tables {
		lg, _ := math.Lgamma(float64(len(members)))
		score += lg
	}
	lgAlpha, _ := math.Lgamma(c.Alpha)
	lgNAlpha, _ := math.Lgamma(float64(c.n) + c.Alpha)
	score += lgAlpha - lgNAlpha
	if math.IsNaN(score) {
		panic("crp: logp_score produced NaN")
	}
	return score
}

// TransitionAlpha grid-samples alpha log-uniformly over [1/N, N+1] at 20
// points, weighting each candidate by the resulting LogpScore.
func (c *CRP) TransitionAlpha(s *prng.Stream) {
	if c.n == 0 {
		return
	}
	grid := xmath.LogLinspace(1.0/float64(c.n), float64(c.n)+1, 20)
	logWeights := make([]float64, len(grid))
	orig := c.Alpha
	for i, a := range grid {
		c.Alpha = a
		logWeights[i] = c.LogpScore()
	}
	c.Alpha = orig
	idx := xmath.LogWeightedChoice(logWeights, s.Float64())
	c.Alpha = grid[idx]
}
