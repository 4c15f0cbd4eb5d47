package ctr

import (
	"github.com/xhub/rhpgo/ridx"
	"github.com/xhub/rhpgo/rosetta"
)

// CompressVars builds a rosetta mapping every currently-active variable to
// a dense new index (in the order Fops.VarsPermutation assigns), dropping
// everything Fops rejects. It does not mutate the container; the caller
// applies the resulting rosetta to build the downstream container (spec.md
// §4.3 "compress_vars").
func (c *Container) CompressVars(f Fops) *rosetta.Rosetta {
	perm := f.VarsPermutation(len(c.vars))
	r := rosetta.New(len(c.vars), len(c.equs))
	copy(r.VarMap, perm)
	return r
}

// CompressEqus builds a rosetta mapping every equation Fops keeps to a
// dense new index, preserving relative order among kept equations
// (spec.md §4.3 "compress_equs").
func (c *Container) CompressEqus(f Fops) *rosetta.Rosetta {
	r := rosetta.New(len(c.vars), len(c.equs))
	next := 0
	for i := 0; i < len(c.equs); i++ {
		ei := ridx.FromInt(i)
		if f.KeepEqu(ei) {
			r.EquMap[i] = ridx.FromInt(next)
			next++
		}
	}
	return r
}

// Apply builds a fresh, densely-indexed container by running every
// surviving variable and equation of c through f and the given rosetta,
// rewriting each kept equation's body under the variable renumbering.
// This is the actual container-rebuilding half of compression; CompressVars/
// CompressEqus only compute the index maps.
func (c *Container) Apply(f Fops, r *rosetta.Rosetta) *Container {
	out := NewContainer()
	out.Pool = c.Pool

	n, m := f.GetSizes(len(c.vars), len(c.equs))
	out.Resize(n, m)

	for i := 0; i < len(c.vars); i++ {
		vi := ridx.FromInt(i)
		nv := r.Map(vi)
		if !nv.Valid() {
			continue
		}
		v := c.vars[i]
		v.Index = nv
		out.vars[nv.Int()] = v
		vm := c.varMeta[i]
		vm.Dual = r.MapEqu(vm.Dual)
		out.varMeta[nv.Int()] = vm
	}

	for i := 0; i < len(c.equs); i++ {
		ei := ridx.FromInt(i)
		ne := r.MapEqu(ei)
		if !ne.Valid() {
			continue
		}
		eq := c.equs[i]
		eq.Index = ne
		eq.Body = eq.Body.Dup(r)
		out.equs[ne.Int()] = eq
		em := c.equMeta[i]
		em.Dual = r.Map(em.Dual)
		out.equMeta[ne.Int()] = em
		out.reindexEquation(ne)
	}

	return out
}
