package ctr

import (
	"github.com/xhub/rhpgo/expr"
	"github.com/xhub/rhpgo/ridx"
)

// Fops is the filter-operator seam a container consults whenever it needs
// to know which variables/equations are "in scope" for some operation —
// compression, FOOC's work-identification pass, solver export (spec.md
// §3.5). Declared here, in the leaf package, rather than in a separate
// fops package, so that package fops can import ctr and implement this
// interface without ctr importing fops back.
type Fops interface {
	// GetSizes returns the number of variables/equations this operator
	// keeps out of totalN/totalM.
	GetSizes(totalN, totalM int) (n, m int)

	// KeepVar/KeepEqu report whether vi/ei survives this operator.
	KeepVar(vi ridx.Idx) bool
	KeepEqu(ei ridx.Idx) bool

	// VarsPermutation returns the new-index assignment for every kept
	// variable, in the order this operator wants them emitted (e.g.
	// grouped by owning MP for a SubDag operator).
	VarsPermutation(totalN int) []ridx.Idx

	// TransformLequ/TransformNLTree rewrite a body's pieces under this
	// operator's variable renumbering, dropping terms/subtrees that
	// reference a filtered-out variable.
	TransformLequ(l *expr.Lequ, m expr.VarMapper) *expr.Lequ
	TransformNLTree(n *expr.Node, m expr.VarMapper) *expr.Node
}

// identityVarMapper is the trivial Fops.VarsPermutation-free mapper used
// when no variable is renumbered.
type identityVarMapper struct{}

func (identityVarMapper) Map(vi ridx.Idx) ridx.Idx { return vi }

// IdentityFops keeps every variable and equation, renumbering nothing.
// Grounded on ele/factory.go's pattern of a trivial default registration
// alongside the real variants.
type IdentityFops struct{}

func (IdentityFops) GetSizes(totalN, totalM int) (int, int) { return totalN, totalM }
func (IdentityFops) KeepVar(ridx.Idx) bool                  { return true }
func (IdentityFops) KeepEqu(ridx.Idx) bool                  { return true }

func (IdentityFops) VarsPermutation(totalN int) []ridx.Idx {
	out := make([]ridx.Idx, totalN)
	for i := range out {
		out[i] = ridx.FromInt(i)
	}
	return out
}

func (IdentityFops) TransformLequ(l *expr.Lequ, m expr.VarMapper) *expr.Lequ {
	return l.ApplyRosetta(m)
}

func (IdentityFops) TransformNLTree(n *expr.Node, m expr.VarMapper) *expr.Node {
	if n == nil {
		return nil
	}
	return n.ApplyRosetta(m)
}

// EmptyFops keeps nothing: the operator a destination model carries before
// it has been populated (spec.md §4.3).
type EmptyFops struct{}

func (EmptyFops) GetSizes(totalN, totalM int) (int, int) { return 0, 0 }
func (EmptyFops) KeepVar(ridx.Idx) bool                  { return false }
func (EmptyFops) KeepEqu(ridx.Idx) bool                  { return false }

func (EmptyFops) VarsPermutation(totalN int) []ridx.Idx {
	out := make([]ridx.Idx, totalN)
	for i := range out {
		out[i] = ridx.IdxNA
	}
	return out
}

func (EmptyFops) TransformLequ(l *expr.Lequ, m expr.VarMapper) *expr.Lequ {
	return expr.NewLequ()
}

func (EmptyFops) TransformNLTree(n *expr.Node, m expr.VarMapper) *expr.Node {
	return nil
}

// ActiveFops keeps exactly the entities the container currently marks
// active, i.e. those without PptyIsDeleted/EquPptyIsDeleted set. It is the
// default operator for compression (spec.md §4.3).
type ActiveFops struct {
	C *Container
}

func (a ActiveFops) GetSizes(totalN, totalM int) (int, int) { return a.C.N(), a.C.M() }
func (a ActiveFops) KeepVar(vi ridx.Idx) bool               { return a.C.VarActive(vi) }
func (a ActiveFops) KeepEqu(ei ridx.Idx) bool               { return a.C.EquActive(ei) }

func (a ActiveFops) VarsPermutation(totalN int) []ridx.Idx {
	out := make([]ridx.Idx, totalN)
	next := 0
	for i := 0; i < totalN; i++ {
		vi := ridx.FromInt(i)
		if a.KeepVar(vi) {
			out[i] = ridx.FromInt(next)
			next++
		} else {
			out[i] = ridx.IdxNA
		}
	}
	return out
}

func (a ActiveFops) TransformLequ(l *expr.Lequ, m expr.VarMapper) *expr.Lequ {
	return l.ApplyRosetta(m)
}

func (a ActiveFops) TransformNLTree(n *expr.Node, m expr.VarMapper) *expr.Node {
	if n == nil {
		return nil
	}
	return n.ApplyRosetta(m)
}
