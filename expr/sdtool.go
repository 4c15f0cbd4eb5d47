package expr

import (
	"github.com/xhub/rhpgo/rhperr"
	"github.com/xhub/rhpgo/ridx"
)

// Call1Opcode/Call2Opcode enumerate the unary/binary functions the
// differentiation whitelist knows about. Grounded on original_source's
// fooc.c whitelist (no teacher/pack repo implements symbolic
// differentiation); see DESIGN.md.
type Call1Opcode int

const (
	FnSin Call1Opcode = iota
	FnCos
	FnExp
	FnLog
	FnSqrt
	FnAbs // smooth=false
)

type Call2Opcode int

const (
	FnPow Call2Opcode = iota
	FnMin             // smooth=false
	FnMax             // smooth=false
)

type call1Rule struct {
	name   string
	smooth bool
	deriv  func(pool *ConstPool, arg, argDeriv *Node) *Node
}

type call2Rule struct {
	name   string
	smooth bool
	deriv  func(pool *ConstPool, a, b, da, db *Node) *Node
}

var call1Whitelist = map[int]call1Rule{
	int(FnSin): {"sin", true, func(pool *ConstPool, arg, argDeriv *Node) *Node {
		cos, _ := Call(int(FnCos), 1)
		mustAddChild(cos, arg)
		return mulNode(pool, cos, argDeriv)
	}},
	int(FnCos): {"cos", true, func(pool *ConstPool, arg, argDeriv *Node) *Node {
		sin, _ := Call(int(FnSin), 1)
		mustAddChild(sin, arg)
		return mulNode(pool, Umin(sin), argDeriv)
	}},
	int(FnExp): {"exp", true, func(pool *ConstPool, arg, argDeriv *Node) *Node {
		exp, _ := Call(int(FnExp), 1)
		mustAddChild(exp, arg)
		return mulNode(pool, exp, argDeriv)
	}},
	int(FnLog): {"log", true, func(pool *ConstPool, arg, argDeriv *Node) *Node {
		return divNode(argDeriv, arg)
	}},
	int(FnSqrt): {"sqrt", true, func(pool *ConstPool, arg, argDeriv *Node) *Node {
		sqrt, _ := Call(int(FnSqrt), 1)
		mustAddChild(sqrt, arg)
		two := divNode(argDeriv, mulNode(pool, CstValue(pool, 2), sqrt))
		return two
	}},
	int(FnAbs): {"abs", false, func(pool *ConstPool, arg, argDeriv *Node) *Node {
		// subgradient convention: sign(arg)*argDeriv, with sign(arg) built
		// as arg/abs(arg), which is 0/0 (NaN) at arg = 0.
		abs, _ := Call(int(FnAbs), 1)
		mustAddChild(abs, cloneLeafOrTree(arg))
		sign := divNode(arg, abs)
		return mulNode(pool, sign, argDeriv)
	}},
}

var call2Whitelist = map[int]call2Rule{
	int(FnPow): {"pow", true, func(pool *ConstPool, a, b, da, db *Node) *Node {
		// d(a^b) = b*a^(b-1)*da; a non-constant exponent is rejected by the
		// OpCall2 handler before this rule runs (the constant-exponent case
		// is the only one original_source's whitelist differentiates).
		bMinus1 := Arithm(OpSub, 2)
		mustAddChild(bMinus1, cloneLeafOrTree(b))
		mustAddChild(bMinus1, CstValue(pool, 1))
		pow, _ := Call(int(FnPow), 2)
		mustAddChild(pow, cloneLeafOrTree(a))
		mustAddChild(pow, bMinus1)
		return mulNode(pool, mulNode(pool, cloneLeafOrTree(b), pow), da)
	}},
	int(FnMin): {"min", false, oneSidedDeriv},
	int(FnMax): {"max", false, oneSidedDeriv},
}

// oneSidedDeriv is the min/max subgradient convention: only one argument
// may depend on the differentiation variable (the handler rejects the
// two-sided case before calling this), so the derivative is simply that
// side's.
func oneSidedDeriv(pool *ConstPool, a, b, da, db *Node) *Node {
	if da != nil {
		return da
	}
	return db
}

func mulNode(pool *ConstPool, a, b *Node) *Node {
	m := Arithm(OpMul, 2)
	mustAddChild(m, a)
	mustAddChild(m, b)
	return m
}

func divNode(a, b *Node) *Node {
	d := Arithm(OpDiv, 2)
	mustAddChild(d, a)
	mustAddChild(d, b)
	return d
}

func cloneLeafOrTree(n *Node) *Node {
	return n.Dup(identityMapper{})
}

// SDTool is built from an equation body and produces, on query Diff(vi), a
// fresh body that is ∂body/∂vi (spec.md §4.1's "sd_tool"). It is a
// scoped, per-equation resource: allocate it, take the derivatives you
// need, then let it go (§5's "symbolic-differentiation tool ... released
// immediately after the last derivative" — in Go this is simply letting
// the value become unreachable, no explicit Free needed).
type SDTool struct {
	body      *Body
	pool      *ConstPool
	nonSmooth bool // set if any CALL1/CALL2 op used is whitelisted-but-nonsmooth
}

// NewSDTool builds a tool over body using the given constant pool (shared
// with the owning container, per §4.1's "sharing the pool... is
// mandatory").
func NewSDTool(body *Body, pool *ConstPool) *SDTool {
	return &SDTool{body: body, pool: pool}
}

// NonSmooth reports whether any derivative computed so far touched a
// whitelisted-but-nonsmooth function (ABS, MIN, MAX); callers use this to
// decide whether to upgrade the owning model's type to dnlp (§4.1, §4.7
// failure mode).
func (t *SDTool) NonSmooth() bool { return t.nonSmooth }

// Diff returns ∂body/∂vi as a fresh Body. Returns rhperr.NotImplemented if
// the body references a CALL* opcode outside the whitelist.
func (t *SDTool) Diff(vi ridx.Idx) (*Body, error) {
	out := NewBody()
	if t.body.Lin != nil {
		if c, ok := t.body.Lin.Find(vi); ok && c != 0 {
			out.Tree = CstValue(t.pool, c)
		}
	}
	if t.body.Tree != nil {
		dtree, err := t.diffNode(t.body.Tree, vi)
		if err != nil {
			return nil, err
		}
		out.Tree = addTrees(out.Tree, dtree)
	}
	if out.Tree != nil {
		out.Tree = simplifyConstZero(t.pool, out.Tree)
	}
	return out, nil
}

// diffNode is the recursive core. It returns nil for "derivative is
// identically zero", which lets addTrees skip it (producing the null tree
// §8 expects for a constant's derivative).
func (t *SDTool) diffNode(n *Node, vi ridx.Idx) (*Node, error) {
	if n == nil {
		return nil, nil
	}
	switch n.Op {
	case OpCst:
		return nil, nil
	case OpVar:
		if ridx.FromInt(n.Value) == vi {
			return CstValue(t.pool, 1), nil
		}
		return nil, nil
	case OpUmin:
		d, err := t.diffNode(n.Children[0], vi)
		if err != nil || d == nil {
			return nil, err
		}
		return Umin(d), nil
	case OpAdd, OpSub:
		var parts []*Node
		for i, c := range n.Children {
			d, err := t.diffNode(c, vi)
			if err != nil {
				return nil, err
			}
			if d == nil {
				continue
			}
			if n.Op == OpSub && i == 1 {
				d = Umin(d)
			}
			parts = append(parts, d)
		}
		var sum *Node
		for _, p := range parts {
			sum = addTrees(sum, p)
		}
		return sum, nil
	case OpMul:
		if len(n.Children) != 2 {
			return nil, rhperr.New(rhperr.NotImplemented, "expr.SDTool.Diff",
				"n-ary MUL (arity %d) is not in the differentiation whitelist", len(n.Children))
		}
		a, b := n.Children[0], n.Children[1]
		da, err := t.diffNode(a, vi)
		if err != nil {
			return nil, err
		}
		db, err := t.diffNode(b, vi)
		if err != nil {
			return nil, err
		}
		var sum *Node
		if da != nil {
			sum = addTrees(sum, mulNode(t.pool, da, cloneLeafOrTree(b)))
		}
		if db != nil {
			sum = addTrees(sum, mulNode(t.pool, cloneLeafOrTree(a), db))
		}
		return sum, nil
	case OpDiv:
		a, b := n.Children[0], n.Children[1]
		da, err := t.diffNode(a, vi)
		if err != nil {
			return nil, err
		}
		db, err := t.diffNode(b, vi)
		if err != nil {
			return nil, err
		}
		if da == nil && db == nil {
			return nil, nil
		}
		var num *Node
		switch {
		case db == nil:
			num = da
		case da == nil:
			num = Umin(mulNode(t.pool, cloneLeafOrTree(a), db))
		default:
			num = addTrees(mulNode(t.pool, da, cloneLeafOrTree(b)), Umin(mulNode(t.pool, cloneLeafOrTree(a), db)))
		}
		bsq := mulNode(t.pool, cloneLeafOrTree(b), cloneLeafOrTree(b))
		return divNode(num, bsq), nil
	case OpCall1:
		rule, ok := call1Whitelist[n.Value]
		if !ok {
			return nil, rhperr.New(rhperr.NotImplemented, "expr.SDTool.Diff",
				"call1 opcode %d is not in the differentiation whitelist", n.Value)
		}
		if !rule.smooth {
			t.nonSmooth = true
		}
		arg := n.Children[0]
		d, err := t.diffNode(arg, vi)
		if err != nil || d == nil {
			return nil, err
		}
		return rule.deriv(t.pool, cloneLeafOrTree(arg), d), nil
	case OpCall2:
		rule, ok := call2Whitelist[n.Value]
		if !ok {
			return nil, rhperr.New(rhperr.NotImplemented, "expr.SDTool.Diff",
				"call2 opcode %d is not in the differentiation whitelist", n.Value)
		}
		if !rule.smooth {
			t.nonSmooth = true
		}
		a, b := n.Children[0], n.Children[1]
		da, err := t.diffNode(a, vi)
		if err != nil {
			return nil, err
		}
		db, err := t.diffNode(b, vi)
		if err != nil {
			return nil, err
		}
		if da == nil && db == nil {
			return nil, nil
		}
		switch Call2Opcode(n.Value) {
		case FnPow:
			if db != nil {
				return nil, rhperr.New(rhperr.NotImplemented, "expr.SDTool.Diff",
					"pow with a non-constant exponent is not in the differentiation whitelist")
			}
		case FnMin, FnMax:
			if da != nil && db != nil {
				return nil, rhperr.New(rhperr.NotImplemented, "expr.SDTool.Diff",
					"%s where both arguments depend on the variable has no single subgradient", rule.name)
			}
		}
		return rule.deriv(t.pool, cloneLeafOrTree(a), cloneLeafOrTree(b), da, db), nil
	case OpCalln:
		return nil, rhperr.New(rhperr.NotImplemented, "expr.SDTool.Diff",
			"CALLN opcode %d has no general differentiation rule", n.Value)
	default:
		return nil, rhperr.New(rhperr.InvalidValue, "expr.SDTool.Diff", "unknown op %v", n.Op)
	}
}

// simplifyConstZero collapses a CST(0) leaf that addTrees may have
// produced as a lone term into a nil tree, so callers see the canonical
// "zero function" (nil tree, empty linear part) rather than an explicit
// zero constant node.
func simplifyConstZero(pool *ConstPool, n *Node) *Node {
	if n != nil && n.Op == OpCst && pool.Get(n.Value) == 0 {
		return nil
	}
	return n
}
