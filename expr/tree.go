package expr

import (
	"fmt"

	"github.com/cpmech/gosl/chk"

	"github.com/xhub/rhpgo/ridx"
)

// Op is the tag of an expression-tree node (spec.md §3.5).
type Op uint8

const (
	OpAdd Op = iota
	OpSub
	OpMul
	OpDiv
	OpUmin
	OpCst
	OpVar
	OpCall1
	OpCall2
	OpCalln
)

func (op Op) String() string {
	names := [...]string{"ADD", "SUB", "MUL", "DIV", "UMIN", "CST", "VAR", "CALL1", "CALL2", "CALLN"}
	if int(op) < len(names) {
		return names[op]
	}
	return "UNKNOWN"
}

// VarMapper rewrites a variable index, e.g. a rosetta composed across an
// upstream chain (spec.md §4.4) or a Fops variable permutation (§4.3). An
// invalid returned index means "this variable was dropped".
type VarMapper interface {
	Map(vi ridx.Idx) ridx.Idx
}

// identityMapper is the trivial VarMapper used by Dup when no remapping is
// requested.
type identityMapper struct{}

func (identityMapper) Map(vi ridx.Idx) ridx.Idx { return vi }

// Node is one node of an expression tree. Value is reinterpreted per Op:
// variable index for VAR, constant-pool index for CST, call opcode for
// CALL1/CALL2/CALLN, arity for ADD/SUB/MUL/DIV/UMIN (spec.md §3.5).
type Node struct {
	Op       Op
	Value    int
	Children []*Node

	// varsCache caches which variables appear in the subtree rooted here,
	// the "internal variable list" of §3.5. Computed lazily by Vars().
	varsCache []ridx.Idx
	varsValid bool
}

// Arithm allocates a fixed-arity ADD/SUB/MUL/DIV/UMIN node with k child
// slots. Children are filled in by the caller via AddChild.
func Arithm(op Op, k int) *Node {
	if op == OpCst || op == OpVar || op == OpCall1 || op == OpCall2 || op == OpCalln {
		chk.Panic("expr.Arithm: op %v is not an arithmetic op", op)
	}
	return &Node{Op: op, Value: k, Children: make([]*Node, 0, k)}
}

// Call allocates a CALL1/CALL2/CALLN node for the given function opcode
// and arity. Arity 0 is rejected: a zero-argument "function" is not an
// expression-tree concept, it is a constant and should be built with Cst.
func Call(opcode, arity int) (*Node, error) {
	if arity <= 0 {
		return nil, fmt.Errorf("expr.Call: arity must be > 0, got %d", arity)
	}
	op := OpCalln
	switch arity {
	case 1:
		op = OpCall1
	case 2:
		op = OpCall2
	}
	return &Node{Op: op, Value: opcode, Children: make([]*Node, 0, arity)}, nil
}

// Cst builds a leaf referencing pool index poolIdx.
func Cst(poolIdx int) *Node {
	return &Node{Op: OpCst, Value: poolIdx}
}

// CstValue interns v in pool and returns a CST leaf for it; the common
// case where the caller has a literal float rather than an existing pool
// index.
func CstValue(pool *ConstPool, v float64) *Node {
	return Cst(pool.Intern(v))
}

// Var builds a leaf for variable vi. A coefficient != 1 is materialized as
// a MUL(CST, VAR) subtree rather than stored on the VAR node itself, per
// §4.1's construction contract.
func Var(vi ridx.Idx, coeff float64, pool *ConstPool) *Node {
	leaf := &Node{Op: OpVar, Value: vi.Int()}
	if coeff == 1 {
		return leaf
	}
	mul := Arithm(OpMul, 2)
	mustAddChild(mul, CstValue(pool, coeff))
	mustAddChild(mul, leaf)
	return mul
}

// Umin negates child, returning a new UMIN node wrapping it.
func Umin(child *Node) *Node {
	n := Arithm(OpUmin, 1)
	mustAddChild(n, child)
	return n
}

// AddChild appends child to an ADD/SUB/MUL/DIV/UMIN/CALL* node's children,
// as long as it has not exceeded the capacity declared at construction.
// "Capacity" is enforced, not just documented, matching the source's fixed
// children_max for fixed-arity nodes.
func (n *Node) AddChild(child *Node) error {
	if len(n.Children) == cap(n.Children) {
		return fmt.Errorf("expr.Node.AddChild: node %v already has %d children (capacity reached)", n.Op, cap(n.Children))
	}
	n.Children = append(n.Children, child)
	n.varsValid = false
	return nil
}

func mustAddChild(n, child *Node) {
	if err := n.AddChild(child); err != nil {
		chk.Panic("%v", err)
	}
}

// ReserveAddNode grows an ADD node's spare capacity by extra slots so that
// a subsequent run of AddNode calls (fusing in another expression's terms)
// does not need to reallocate mid-fuse. Only meaningful for ADD nodes;
// calling it on anything else is a no-op.
func (n *Node) ReserveAddNode(extra int) {
	if n.Op != OpAdd || extra <= 0 {
		return
	}
	grown := make([]*Node, len(n.Children), len(n.Children)+extra)
	copy(grown, n.Children)
	n.Children = grown
}

// AddNode extends an existing ADD node with one more term, growing
// capacity on demand (Go's append does this automatically; ReserveAddNode
// exists purely to avoid repeated reallocation for callers that know the
// final count up front).
func (n *Node) AddNode(child *Node) error {
	if n.Op != OpAdd {
		return fmt.Errorf("expr.Node.AddNode: node is %v, not ADD", n.Op)
	}
	n.Children = append(n.Children, child)
	n.Value = len(n.Children)
	n.varsValid = false
	return nil
}

// Vars returns the set of variable indices referenced anywhere in the
// subtree rooted at n, computed once and cached (§3.5's "internal variable
// list").
func (n *Node) Vars() []ridx.Idx {
	if n == nil {
		return nil
	}
	if n.varsValid {
		return n.varsCache
	}
	seen := make(map[ridx.Idx]bool)
	var order []ridx.Idx
	var walk func(*Node)
	walk = func(x *Node) {
		if x == nil {
			return
		}
		if x.Op == OpVar {
			vi := ridx.FromInt(x.Value)
			if !seen[vi] {
				seen[vi] = true
				order = append(order, vi)
			}
			return
		}
		for _, c := range x.Children {
			walk(c)
		}
	}
	walk(n)
	n.varsCache = order
	n.varsValid = true
	return n.varsCache
}

// HasVar reports whether vi appears anywhere in the subtree.
func (n *Node) HasVar(vi ridx.Idx) bool {
	for _, v := range n.Vars() {
		if v == vi {
			return true
		}
	}
	return false
}

// Dup returns an independent deep copy, remapping VAR leaves through m (use
// identityMapper{} for a plain copy). A leaf whose mapped index is invalid
// drops the term it belongs to per the same rules as ApplyRosetta.
func (n *Node) Dup(m VarMapper) *Node {
	out, _ := n.applyRosetta(m)
	return out
}

// ApplyRosetta rewrites every VAR leaf of the tree via m and drops nodes
// whose variable is dropped (spec.md §4.1). Returns nil if the whole tree
// collapsed (e.g. a lone dropped VAR leaf, or a MUL where one dropped
// factor kills the product).
func (n *Node) ApplyRosetta(m VarMapper) *Node {
	out, _ := n.applyRosetta(m)
	return out
}

// applyRosetta is the shared recursive implementation; the returned bool
// is true when the subtree fully evaporated (and out is nil).
func (n *Node) applyRosetta(m VarMapper) (out *Node, dropped bool) {
	if n == nil {
		return nil, true
	}
	switch n.Op {
	case OpCst:
		return &Node{Op: OpCst, Value: n.Value}, false
	case OpVar:
		nv := m.Map(ridx.FromInt(n.Value))
		if !nv.Valid() {
			return nil, true
		}
		return &Node{Op: OpVar, Value: nv.Int()}, false
	case OpAdd, OpSub:
		var kept []*Node
		keptFirst := false
		for i, c := range n.Children {
			nc, d := c.applyRosetta(m)
			if !d {
				kept = append(kept, nc)
				if i == 0 {
					keptFirst = true
				}
			}
		}
		if len(kept) == 0 {
			return nil, true
		}
		if n.Op == OpSub && len(kept) == 1 {
			// only one side survived a binary SUB: a surviving minuend
			// stands on its own, a surviving subtrahend keeps its minus sign.
			if keptFirst {
				return kept[0], false
			}
			return Umin(kept[0]), false
		}
		r := &Node{Op: n.Op, Value: len(kept), Children: kept}
		return r, false
	case OpMul, OpDiv, OpCalln, OpCall1, OpCall2:
		kept := make([]*Node, len(n.Children))
		for i, c := range n.Children {
			nc, d := c.applyRosetta(m)
			if d {
				// a dropped factor/argument kills the whole node: the
				// product/function of an undefined variable is undefined.
				return nil, true
			}
			kept[i] = nc
		}
		return &Node{Op: n.Op, Value: n.Value, Children: kept}, false
	case OpUmin:
		nc, d := n.Children[0].applyRosetta(m)
		if d {
			return nil, true
		}
		return &Node{Op: OpUmin, Value: n.Value, Children: []*Node{nc}}, false
	default:
		chk.Panic("expr.applyRosetta: unhandled op %v", n.Op)
		return nil, true
	}
}
