// Package relation implements CleanRelation and NoisyRelation (SPEC_FULL.md
// §4.4-§4.5): the mapping from entity tuples to values, bucketed into
// cluster-conditional distributions indexed by the per-domain CRP partition.
package relation

import (
	"github.com/pclean-go/pclean/internal/crp"
	"github.com/pclean-go/pclean/internal/prng"
)

// Domain is a named entity set clustered by a CRP (§3). Domains are shared
// across every relation that references them within one IRM; membership is
// refcounted so an item is dropped from the CRP only once no relation has a
// tuple mentioning it anymore.
type Domain struct {
	Name     string
	CRP      *crp.CRP
	refcount map[int]int
}

// NewDomain returns an empty domain with the given CRP concentration.
func NewDomain(name string, alpha float64) *Domain {
	return &Domain{Name: name, CRP: crp.New(alpha), refcount: make(map[int]int)}
}

// ClusterOf returns item's current table, and whether item has been
// absorbed into the domain at all.
func (d *Domain) ClusterOf(item int) (int, bool) { return d.CRP.Assignment(item) }

// Has reports whether item is currently a member of the domain.
func (d *Domain) Has(item int) bool {
	_, ok := d.CRP.Assignment(item)
	return ok
}

// Retain records one more relation-tuple reference to item, absorbing it
// into the domain CRP (sampling a fresh table) on its first reference.
// Returns item's (possibly newly assigned) table.
func (d *Domain) Retain(item int, s *prng.Stream) int {
	if t, ok := d.CRP.Assignment(item); ok {
		d.refcount[item]++
		return t
	}
	t := d.CRP.Sample(s)
	d.CRP.Incorporate(item, t)
	d.refcount[item] = 1
	return t
}

// PrepareMemberAt ensures item is a member of the domain at exactly table,
// without attributing a reference to this call itself (refcount starts at
// 0). Used to lock in a specific cluster table a prior Gibbs-weight probe
// already recorded for a candidate entity, before the relation Incorporate
// calls that supply the real reference count run their ordinary Retain
// path (which, finding the item already present, just bumps the refcount
// rather than resampling a fresh table) — see GenDB's reference
// reassignment (§4.9). No-op if item is already a member.
func (d *Domain) PrepareMemberAt(item, table int) {
	if d.Has(item) {
		return
	}
	d.CRP.Incorporate(item, table)
	d.refcount[item] = 0
}

// Release drops one relation-tuple reference to item, removing it from the
// domain CRP once no reference remains.
func (d *Domain) Release(item int) {
	d.refcount[item]--
	if d.refcount[item] <= 0 {
		delete(d.refcount, item)
		d.CRP.Unincorporate(item)
	}
}

// Empty reports whether the domain currently has no referenced items, i.e.
// it is safe to garbage-collect (§5).
func (d *Domain) Empty() bool { return d.CRP.N() == 0 }

// Items returns every entity currently a member of the domain, across all
// tables. Used by the Gibbs driver to enumerate entity->cluster transitions
// per sweep.
func (d *Domain) Items() []int {
	var items []int
	for _, t := range d.CRP.Tables() {
		items = append(items, d.CRP.Items(t)...)
	}
	return items
}

func freshTableID(c *crp.CRP) int {
	max := -1
	for _, t := range c.Tables() {
		if t > max {
			max = t
		}
	}
	return max + 1
}

// Clone returns a structurally identical copy of d: same alpha, same items,
// same table ids, same refcounts. Used when a relation moves from one IRM
// to another and the destination has no domain under this name yet, so the
// relation's view of its own cluster keys is unaffected by the move
// (§4.8's relation-movement "shared-resource policy").
func (d *Domain) Clone() *Domain {
	nd := NewDomain(d.Name, d.CRP.Alpha)
	for _, t := range d.CRP.Tables() {
		for _, item := range d.CRP.Items(t) {
			nd.CRP.Incorporate(item, t)
			nd.refcount[item] = d.refcount[item]
		}
	}
	return nd
}

// AdoptFrom absorbs every item of other that d does not already have,
// preserving other's co-clustering (items sharing a table in other share a
// freshly allocated table in d) without disturbing items d already holds.
// Used when a relation moves into an IRM whose destination domain of this
// name is already populated by another relation (§4.8).
func (d *Domain) AdoptFrom(other *Domain) {
	remap := make(map[int]int)
	for _, t := range other.CRP.Tables() {
		for _, item := range other.CRP.Items(t) {
			if d.Has(item) {
				continue
			}
			nt, ok := remap[t]
			if !ok {
				nt = freshTableID(d.CRP)
				remap[t] = nt
			}
			d.CRP.Incorporate(item, nt)
			d.refcount[item] = other.refcount[item]
		}
	}
}
