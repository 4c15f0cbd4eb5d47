// Package fops implements two of the pluggable filter-operator variants of
// spec.md §3.5/§4.3 (C3): explicit subset and EMPDAG subdag, each as an
// implementation of ctr.Fops; the identity and active-only variants live
// in ctr itself. Declared in its
// own package (rather than inside ctr) because the SubDag variant needs
// empdag types; ctr.Fops is declared in ctr itself precisely to let this
// package import both without a cycle. Grounded on fem/domain.go's
// add_element_to_subsets and ele/factory.go's registry-of-variants shape.
package fops

import (
	"sort"

	"github.com/xhub/rhpgo/ctr"
	"github.com/xhub/rhpgo/empdag"
	"github.com/xhub/rhpgo/expr"
	"github.com/xhub/rhpgo/ridx"
)

// Subset keeps exactly the variables/equations named explicitly.
type Subset struct {
	Vars map[ridx.Idx]bool
	Equs map[ridx.Idx]bool
}

// NewSubset builds a Subset from slices of kept indices.
func NewSubset(vars, equs []ridx.Idx) *Subset {
	s := &Subset{Vars: make(map[ridx.Idx]bool), Equs: make(map[ridx.Idx]bool)}
	for _, v := range vars {
		s.Vars[v] = true
	}
	for _, e := range equs {
		s.Equs[e] = true
	}
	return s
}

func (s *Subset) GetSizes(totalN, totalM int) (int, int) { return len(s.Vars), len(s.Equs) }
func (s *Subset) KeepVar(vi ridx.Idx) bool               { return s.Vars[vi] }
func (s *Subset) KeepEqu(ei ridx.Idx) bool               { return s.Equs[ei] }

func (s *Subset) VarsPermutation(totalN int) []ridx.Idx {
	out := make([]ridx.Idx, totalN)
	next := 0
	for i := 0; i < totalN; i++ {
		vi := ridx.FromInt(i)
		if s.KeepVar(vi) {
			out[i] = ridx.FromInt(next)
			next++
		} else {
			out[i] = ridx.IdxNA
		}
	}
	return out
}

func (s *Subset) TransformLequ(l *expr.Lequ, m expr.VarMapper) *expr.Lequ {
	return l.ApplyRosetta(m)
}

func (s *Subset) TransformNLTree(n *expr.Node, m expr.VarMapper) *expr.Node {
	if n == nil {
		return nil
	}
	return n.ApplyRosetta(m)
}

// SubDag keeps every variable/equation whose owning MP id appears in the
// dfs enumeration of the EMPDAG subgraph rooted at Root (spec.md §4.3's
// "SubDag(uid)"). VarsPermutation groups variables belonging to the same
// MP contiguously, MPs in ascending id order, per §4.3's "for FOOC
// sub-dag, a permutation that groups variables belonging to the same MP
// contiguously".
type SubDag struct {
	Dag  *empdag.EmpDag
	Root empdag.Uid
	C    *ctr.Container

	mpSet map[ridx.Idx]bool
	order []ridx.Idx // reachable MP ids, ascending (as EmpDag.SubDag returns them)
}

// NewSubDag precomputes the set and order of MPs reachable from root.
func NewSubDag(dag *empdag.EmpDag, root empdag.Uid, c *ctr.Container) *SubDag {
	ids := dag.SubDag(root)
	set := make(map[ridx.Idx]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return &SubDag{Dag: dag, Root: root, C: c, mpSet: set, order: ids}
}

func (s *SubDag) varMpId(vi ridx.Idx) ridx.Idx { return s.C.VarMetaOf(vi).MpId }
func (s *SubDag) equMpId(ei ridx.Idx) ridx.Idx { return s.C.EquMetaOf(ei).MpId }

func (s *SubDag) KeepVar(vi ridx.Idx) bool { return s.mpSet[s.varMpId(vi)] }
func (s *SubDag) KeepEqu(ei ridx.Idx) bool { return s.mpSet[s.equMpId(ei)] }

func (s *SubDag) GetSizes(totalN, totalM int) (int, int) {
	n, m := 0, 0
	for i := 0; i < totalN; i++ {
		if s.KeepVar(ridx.FromInt(i)) {
			n++
		}
	}
	for i := 0; i < totalM; i++ {
		if s.KeepEqu(ridx.FromInt(i)) {
			m++
		}
	}
	return n, m
}

// VarsPermutation groups kept variables by MP, MPs in ascending id order,
// and within an MP in original-index order.
func (s *SubDag) VarsPermutation(totalN int) []ridx.Idx {
	mpRank := make(map[ridx.Idx]int, len(s.order))
	for rank, mpid := range s.order {
		mpRank[mpid] = rank
	}

	type entry struct {
		orig ridx.Idx
		rank int
	}
	var kept []entry
	for i := 0; i < totalN; i++ {
		vi := ridx.FromInt(i)
		mpid := s.varMpId(vi)
		if !s.mpSet[mpid] {
			continue
		}
		kept = append(kept, entry{orig: vi, rank: mpRank[mpid]})
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].rank < kept[j].rank })

	out := make([]ridx.Idx, totalN)
	for i := range out {
		out[i] = ridx.IdxNA
	}
	for newIdx, e := range kept {
		out[e.orig.Int()] = ridx.FromInt(newIdx)
	}
	return out
}

func (s *SubDag) TransformLequ(l *expr.Lequ, m expr.VarMapper) *expr.Lequ {
	return l.ApplyRosetta(m)
}

func (s *SubDag) TransformNLTree(n *expr.Node, m expr.VarMapper) *expr.Node {
	if n == nil {
		return nil
	}
	return n.ApplyRosetta(m)
}
