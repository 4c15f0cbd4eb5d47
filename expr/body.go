package expr

import "github.com/xhub/rhpgo/rhperr"

// Body is the symbolic content of an equation: body(x) = c + Σ coeff·x +
// tree(x), minus the constant c itself (owned by the equation, not the
// body, since c has cone-inclusion-specific sign semantics — spec.md §3.4).
type Body struct {
	Lin  *Lequ
	Tree *Node // nil means "no nonlinear part"
}

// NewBody returns an empty body (zero function): empty linear part, nil
// tree. This is exactly what differentiating a constant produces (§8
// Boundary behaviors).
func NewBody() *Body {
	return &Body{Lin: NewLequ()}
}

// IsZero reports whether the body is the zero function.
func (b *Body) IsZero() bool {
	return b == nil || (b.Lin == nil || b.Lin.Len() == 0) && b.Tree == nil
}

// SetTree installs tree as the body's nonlinear part. Per §4.1's
// precondition ("a root pointing to a non-null node is always rejected"),
// callers must clear the slot first by passing a body whose Tree is
// currently nil.
func (b *Body) SetTree(tree *Node) error {
	if b.Tree != nil {
		return rhperr.New(rhperr.InvalidArgument, "expr.Body.SetTree",
			"tree slot already holds a node; clear it first")
	}
	b.Tree = tree
	return nil
}

// ClearTree empties the nonlinear-part slot so SetTree may be called again.
func (b *Body) ClearTree() { b.Tree = nil }

// Dup returns an independent deep copy of b, remapping through m.
func (b *Body) Dup(m VarMapper) *Body {
	nb := &Body{}
	if b.Lin != nil {
		nb.Lin = b.Lin.ApplyRosetta(m)
	} else {
		nb.Lin = NewLequ()
	}
	if b.Tree != nil {
		nb.Tree = b.Tree.ApplyRosetta(m)
	}
	return nb
}

// Add fuses other into b in place: linear parts merge-add, trees combine
// under a new ADD node (or simple assignment if one side is empty).
func (b *Body) Add(other *Body) {
	if other == nil {
		return
	}
	if b.Lin == nil {
		b.Lin = NewLequ()
	}
	if other.Lin != nil {
		b.Lin.MergeAdd(other.Lin)
	}
	b.Tree = addTrees(b.Tree, other.Tree)
}

// Sub fuses -other into b in place.
func (b *Body) Sub(other *Body) {
	if other == nil {
		return
	}
	if b.Lin == nil {
		b.Lin = NewLequ()
	}
	if other.Lin != nil {
		b.Lin.MergeSub(other.Lin)
	}
	b.Tree = addTrees(b.Tree, negTree(other.Tree))
}

func negTree(t *Node) *Node {
	if t == nil {
		return nil
	}
	return Umin(t)
}

func addTrees(a, b *Node) *Node {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case a.Op == OpAdd:
		_ = a.AddNode(b)
		return a
	default:
		sum := Arithm(OpAdd, 2)
		mustAddChild(sum, a)
		mustAddChild(sum, b)
		sum.Value = 2
		return sum
	}
}
