package solverapi

import (
	"testing"

	"github.com/cpmech/gosl/chk"

	"github.com/xhub/rhpgo/cone"
	"github.com/xhub/rhpgo/ctr"
	"github.com/xhub/rhpgo/expr"
	"github.com/xhub/rhpgo/ridx"
)

// mcp1d builds the one-dimensional MCP 2x + 3 ⟂ x (x free): the FOOC
// output of Scenario A (spec.md §8).
func mcp1d(t *testing.T) *ctr.Container {
	c := ctr.NewContainer()
	c.Resize(1, 1)
	eq := ctr.NewEquation(ridx.FromInt(0))
	eq.Object = ctr.Mapping
	eq.Cst = 3
	eq.Body.Lin.Push(ridx.FromInt(0), 2)
	c.AddEquation(eq)
	if err := c.SetVarPerp(ridx.FromInt(0), ridx.FromInt(0)); err != nil {
		t.Fatal(err)
	}
	return c
}

func TestMockDriverScenarioA(t *testing.T) {
	c := mcp1d(t)
	drv := &MockDriver{}
	sol, err := drv.Solve(NewProblem(c, nil))
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	chk.Float64(t, "x", 1e-8, sol.X[0], -1.5)

	ApplySolution(c, sol)
	chk.Float64(t, "level", 1e-8, c.Var(ridx.FromInt(0)).Level, -1.5)
	if c.Var(ridx.FromInt(0)).Basis != ctr.BasisBasic {
		t.Fatalf("expected an interior solution to be basic")
	}
}

// TestMockDriverScenarioB solves the two-row KKT of min (x-2)^2 s.t.
// x - 1 >= 0, x >= 0: rows 2(x-2) - λ ⟂ x and x - 1 ⟂ λ (spec.md §8).
func TestMockDriverScenarioB(t *testing.T) {
	c := ctr.NewContainer()
	c.Resize(2, 2)
	xv, lv := ridx.FromInt(0), ridx.FromInt(1)
	c.Var(xv).Lb = 0
	c.Var(lv).Lb = 0
	c.Var(lv).Cone = cone.RPlus

	stat := ctr.NewEquation(ridx.FromInt(0))
	stat.Object = ctr.Mapping
	stat.Cst = -4
	stat.Body.Lin.Push(xv, 2)
	stat.Body.Lin.Push(lv, -1)
	c.AddEquation(stat)

	cons := ctr.NewEquation(ridx.FromInt(1))
	cons.Object = ctr.Mapping
	cons.Cst = -1
	cons.Body.Lin.Push(xv, 1)
	c.AddEquation(cons)

	if err := c.SetVarPerp(xv, ridx.FromInt(0)); err != nil {
		t.Fatal(err)
	}
	if err := c.SetVarPerp(lv, ridx.FromInt(1)); err != nil {
		t.Fatal(err)
	}

	drv := &MockDriver{}
	sol, err := drv.Solve(NewProblem(c, nil))
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	chk.Float64(t, "x", 1e-6, sol.X[0], 2)
	chk.Float64(t, "lambda", 1e-6, sol.X[1], 0)
}

func TestEvalEquationNonlinear(t *testing.T) {
	c := ctr.NewContainer()
	c.Resize(1, 1)
	eq := ctr.NewEquation(ridx.FromInt(0))
	eq.Object = ctr.Mapping
	sq := expr.Arithm(expr.OpMul, 2)
	if err := sq.AddChild(expr.Var(ridx.FromInt(0), 1, c.Pool)); err != nil {
		t.Fatal(err)
	}
	if err := sq.AddChild(expr.Var(ridx.FromInt(0), 1, c.Pool)); err != nil {
		t.Fatal(err)
	}
	if err := eq.Body.SetTree(sq); err != nil {
		t.Fatal(err)
	}
	eq.Body.Lin.Push(ridx.FromInt(0), 3)
	eq.Cst = 5
	c.AddEquation(eq)

	v, err := EvalEquation(c, ridx.FromInt(0), []float64{2})
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	chk.Float64(t, "x^2+3x+5 at x=2", 1e-14, v, 15)
}

func TestJacStructureCSC(t *testing.T) {
	c := ctr.NewContainer()
	c.Resize(3, 1)
	eq := ctr.NewEquation(ridx.FromInt(0))
	eq.Body.Lin.Push(ridx.FromInt(0), 1)
	eq.Body.Lin.Push(ridx.FromInt(1), -2)
	sin, err := expr.Call(int(expr.FnSin), 1)
	if err != nil {
		t.Fatal(err)
	}
	if err := sin.AddChild(expr.Var(ridx.FromInt(2), 1, c.Pool)); err != nil {
		t.Fatal(err)
	}
	if err := eq.Body.SetTree(sin); err != nil {
		t.Fatal(err)
	}
	c.AddEquation(eq)

	js := BuildJacStructure(c)
	if len(js.P) != 4 || js.Nnz() != 3 {
		t.Fatalf("unexpected CSC shape: p=%v nnz=%d", js.P, js.Nnz())
	}
	for j := 0; j < 3; j++ {
		if js.P[j+1]-js.P[j] != 1 {
			t.Fatalf("expected one cell per column, got p=%v", js.P)
		}
		if js.I[js.P[j]] != ridx.FromInt(0) {
			t.Fatalf("expected every cell to point at equation 0")
		}
	}
	wantNL := []bool{false, false, true}
	for j, w := range wantNL {
		if js.Cells[js.P[j]].IsNL != w {
			t.Fatalf("column %d: IsNL=%v, want %v", j, js.Cells[js.P[j]].IsNL, w)
		}
	}

	tri := SeedTriplet(c, js)
	if tri.Len() != 2 {
		t.Fatalf("expected 2 linear seed entries, got %d", tri.Len())
	}
}

func TestMockDriverRejectsNonSquare(t *testing.T) {
	c := ctr.NewContainer()
	c.Resize(2, 1)
	drv := &MockDriver{}
	if _, err := drv.Solve(NewProblem(c, nil)); err == nil {
		t.Fatalf("expected non-square MCP to be rejected")
	}
}
