// Package rosetta implements the dense index-translation arrays produced
// whenever a container is compressed or filtered (spec.md §3.2, §4.4).
// Grounded on fem/domain.go's Vid2node/Cid2elem dense remapping arrays,
// which serve the exact same "old index -> new index, or dropped" role
// for degrees of freedom and elements.
package rosetta

import "github.com/xhub/rhpgo/ridx"

// Rosetta maps old variable/equation indices in an upstream container to
// their new indices in a downstream one. A dropped entity maps to IdxNA.
type Rosetta struct {
	VarMap []ridx.Idx
	EquMap []ridx.Idx
}

// New allocates a Rosetta for totalN variables and totalM equations, with
// every slot set to IdxNA until filled in.
func New(totalN, totalM int) *Rosetta {
	r := &Rosetta{
		VarMap: make([]ridx.Idx, totalN),
		EquMap: make([]ridx.Idx, totalM),
	}
	for i := range r.VarMap {
		r.VarMap[i] = ridx.IdxNA
	}
	for i := range r.EquMap {
		r.EquMap[i] = ridx.IdxNA
	}
	return r
}

// Map/MapEqu implement expr.VarMapper-compatible lookups (the method
// name "Map" matches expr.VarMapper so *Rosetta can stand in directly for
// variable renumbering; equation renumbering has no analogous interface
// since equation indices never appear inside expr trees).
func (r *Rosetta) Map(vi ridx.Idx) ridx.Idx {
	if !vi.Valid() || vi.Int() >= len(r.VarMap) {
		return ridx.IdxNA
	}
	return r.VarMap[vi.Int()]
}

func (r *Rosetta) MapEqu(ei ridx.Idx) ridx.Idx {
	if !ei.Valid() || ei.Int() >= len(r.EquMap) {
		return ridx.IdxNA
	}
	return r.EquMap[ei.Int()]
}

// FromPermutation builds a Rosetta straight from the kind of permutation
// slice ctr.Fops.VarsPermutation/an equation analogue returns: perm[i] is
// the new index for old index i, or IdxNA if dropped.
func FromPermutation(varPerm, equPerm []ridx.Idx) *Rosetta {
	return &Rosetta{VarMap: append([]ridx.Idx(nil), varPerm...), EquMap: append([]ridx.Idx(nil), equPerm...)}
}

// Compose builds the flat rosetta mapping an entity all the way from a
// grandparent container (mapped by `first`) through an intermediate one
// (mapped by `second`) to the final downstream container, so that a model
// chain of any depth can always be queried with a single lookup instead of
// walking every intermediate link (spec.md §4.4 "ComputeAllRosettas").
func Compose(first, second *Rosetta) *Rosetta {
	out := New(len(first.VarMap), len(first.EquMap))
	for i, mid := range first.VarMap {
		if !mid.Valid() {
			continue
		}
		out.VarMap[i] = second.Map(mid)
	}
	for i, mid := range first.EquMap {
		if !mid.Valid() {
			continue
		}
		out.EquMap[i] = second.MapEqu(mid)
	}
	return out
}

// ComputeAllRosettas flattens a chain of per-hop rosettas (upstream-most
// first) into one rosetta per hop expressed against the original, topmost
// container, implementing the composition law of spec.md invariant 4:
// composing hop 0..k must equal the direct rosetta from the root to hop k.
func ComputeAllRosettas(hops []*Rosetta) []*Rosetta {
	if len(hops) == 0 {
		return nil
	}
	out := make([]*Rosetta, len(hops))
	out[0] = hops[0]
	for i := 1; i < len(hops); i++ {
		out[i] = Compose(out[i-1], hops[i])
	}
	return out
}
