package solverapi

import (
	"math"

	"github.com/xhub/rhpgo/ctr"
	"github.com/xhub/rhpgo/expr"
	"github.com/xhub/rhpgo/rhperr"
	"github.com/xhub/rhpgo/ridx"
)

// EvalEquation computes body(x) = cst + Σcoeff·x + tree(x) at the driver's
// iterate x. This lives on the driver side of the §6.2 boundary on
// purpose: the engine core never evaluates numerically (spec.md §2
// Non-goals), but a driver must, through exactly this callback.
func EvalEquation(c *ctr.Container, ei ridx.Idx, x []float64) (float64, error) {
	eq := c.Equ(ei)
	v := eq.Cst
	if eq.Body.Lin != nil {
		eq.Body.Lin.Iterate(func(vi ridx.Idx, coeff float64) {
			v += coeff * x[vi.Int()]
		})
	}
	if eq.Body.Tree != nil {
		tv, err := evalNode(c.Pool, eq.Body.Tree, x)
		if err != nil {
			return 0, err
		}
		v += tv
	}
	return v, nil
}

func evalNode(pool *expr.ConstPool, n *expr.Node, x []float64) (float64, error) {
	switch n.Op {
	case expr.OpCst:
		return pool.Get(n.Value), nil
	case expr.OpVar:
		return x[n.Value], nil
	case expr.OpUmin:
		v, err := evalNode(pool, n.Children[0], x)
		return -v, err
	case expr.OpAdd:
		sum := 0.0
		for _, c := range n.Children {
			v, err := evalNode(pool, c, x)
			if err != nil {
				return 0, err
			}
			sum += v
		}
		return sum, nil
	case expr.OpSub:
		v, err := evalNode(pool, n.Children[0], x)
		if err != nil {
			return 0, err
		}
		for _, c := range n.Children[1:] {
			w, err := evalNode(pool, c, x)
			if err != nil {
				return 0, err
			}
			v -= w
		}
		return v, nil
	case expr.OpMul:
		prod := 1.0
		for _, c := range n.Children {
			v, err := evalNode(pool, c, x)
			if err != nil {
				return 0, err
			}
			prod *= v
		}
		return prod, nil
	case expr.OpDiv:
		a, err := evalNode(pool, n.Children[0], x)
		if err != nil {
			return 0, err
		}
		b, err := evalNode(pool, n.Children[1], x)
		if err != nil {
			return 0, err
		}
		return a / b, nil
	case expr.OpCall1:
		a, err := evalNode(pool, n.Children[0], x)
		if err != nil {
			return 0, err
		}
		switch expr.Call1Opcode(n.Value) {
		case expr.FnSin:
			return math.Sin(a), nil
		case expr.FnCos:
			return math.Cos(a), nil
		case expr.FnExp:
			return math.Exp(a), nil
		case expr.FnLog:
			return math.Log(a), nil
		case expr.FnSqrt:
			return math.Sqrt(a), nil
		case expr.FnAbs:
			return math.Abs(a), nil
		}
		return 0, rhperr.New(rhperr.NotImplemented, "solverapi.evalNode", "call1 opcode %d", n.Value)
	case expr.OpCall2:
		a, err := evalNode(pool, n.Children[0], x)
		if err != nil {
			return 0, err
		}
		b, err := evalNode(pool, n.Children[1], x)
		if err != nil {
			return 0, err
		}
		switch expr.Call2Opcode(n.Value) {
		case expr.FnPow:
			return math.Pow(a, b), nil
		case expr.FnMin:
			return math.Min(a, b), nil
		case expr.FnMax:
			return math.Max(a, b), nil
		}
		return 0, rhperr.New(rhperr.NotImplemented, "solverapi.evalNode", "call2 opcode %d", n.Value)
	default:
		return 0, rhperr.New(rhperr.NotImplemented, "solverapi.evalNode", "op %v", n.Op)
	}
}
