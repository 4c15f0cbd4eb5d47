package orchestrator

import (
	"testing"

	"github.com/cpmech/gosl/chk"

	"github.com/xhub/rhpgo/cone"
	"github.com/xhub/rhpgo/ctr"
	"github.com/xhub/rhpgo/empdag"
	"github.com/xhub/rhpgo/expr"
	"github.com/xhub/rhpgo/model"
	"github.com/xhub/rhpgo/option"
	"github.com/xhub/rhpgo/ridx"
	"github.com/xhub/rhpgo/solverapi"
)

// squareTree returns v*v as an expression tree.
func squareTree(t *testing.T, pool *expr.ConstPool, vi ridx.Idx) *expr.Node {
	sq := expr.Arithm(expr.OpMul, 2)
	if err := sq.AddChild(expr.Var(vi, 1, pool)); err != nil {
		t.Fatal(err)
	}
	if err := sq.AddChild(expr.Var(vi, 1, pool)); err != nil {
		t.Fatal(err)
	}
	return sq
}

// diffSquareTree returns (a-b)^2 as an expression tree.
func diffSquareTree(t *testing.T, pool *expr.ConstPool, a, b ridx.Idx, bCoeff float64) *expr.Node {
	mk := func() *expr.Node {
		s := expr.Arithm(expr.OpSub, 2)
		if err := s.AddChild(expr.Var(a, 1, pool)); err != nil {
			t.Fatal(err)
		}
		if err := s.AddChild(expr.Var(b, bCoeff, pool)); err != nil {
			t.Fatal(err)
		}
		return s
	}
	sq := expr.Arithm(expr.OpMul, 2)
	if err := sq.AddChild(mk()); err != nil {
		t.Fatal(err)
	}
	if err := sq.AddChild(mk()); err != nil {
		t.Fatal(err)
	}
	return sq
}

// scenarioA builds min x^2 + 3x + 5 over one free variable (spec.md §8).
func scenarioA(t *testing.T) *model.Model {
	m := model.New("scenA", model.BackendRHP)
	m.Prob = model.ProbOpt
	m.Ctr.Resize(1, 1)

	obj := ctr.NewEquation(ridx.FromInt(0))
	obj.Object = ctr.Mapping
	obj.Cst = 5
	obj.Body.Lin.Push(ridx.FromInt(0), 3)
	if err := obj.Body.SetTree(squareTree(t, m.Ctr.Pool, ridx.FromInt(0))); err != nil {
		t.Fatal(err)
	}
	m.Ctr.AddEquation(obj)

	u := m.EmpDag.AddMP(empdag.Min, "mp")
	mp := m.EmpDag.MP(u)
	mp.Type = empdag.Opt
	mp.ObjEqu = ridx.FromInt(0)
	mp.Vars = []ridx.Idx{ridx.FromInt(0)}
	mp.Equs = []ridx.Idx{ridx.FromInt(0)}
	m.EmpDag.RootsAdd(u)
	if err := m.EmpDag.Finalize(); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	return m
}

func TestIdentityPathReturnsSource(t *testing.T) {
	m := scenarioA(t)
	got, info, err := Transform(m, option.Defaults())
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	if got != m {
		t.Fatalf("expected the identity path to return the source model itself")
	}
	if info != nil {
		t.Fatalf("expected no McpInfo on the identity path")
	}
}

func TestScenarioAEndToEnd(t *testing.T) {
	m := scenarioA(t)
	opts := option.Defaults()
	if err := opts.SetChoice(option.SolveSingleOptAs, option.SingleOptMcp); err != nil {
		t.Fatal(err)
	}

	target, info, err := Transform(m, opts)
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	if target == m {
		t.Fatalf("expected a fresh MCP model, not the source")
	}
	if target.Upstream() != m {
		t.Fatalf("expected target linked upstream to the source")
	}
	if target.Prob != model.ProbMcp || info.McpSize != 1 {
		t.Fatalf("unexpected target: prob=%v info=%+v", target.Prob, info)
	}

	drv := &solverapi.MockDriver{}
	sol, err := drv.Solve(solverapi.NewProblem(target.Ctr, nil))
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	chk.Float64(t, "x", 1e-8, sol.X[0], -1.5)

	// Solution reporting back to the source model (round-trip law).
	solverapi.ApplySolution(target.Ctr, sol)
	model.SolReport(m, target, info.Rosetta)
	chk.Float64(t, "reported level", 1e-8, m.Ctr.Var(ridx.FromInt(0)).Level, -1.5)
}

// TestScenarioBEndToEnd: min (x-2)^2 s.t. x - 1 in R+, x >= 0 (spec.md §8).
func TestScenarioBEndToEnd(t *testing.T) {
	m := model.New("scenB", model.BackendRHP)
	m.Prob = model.ProbOpt
	m.Ctr.Resize(1, 2)
	xv := ridx.FromInt(0)
	m.Ctr.Var(xv).Lb = 0

	obj := ctr.NewEquation(ridx.FromInt(0))
	obj.Object = ctr.Mapping
	obj.Cst = 4
	obj.Body.Lin.Push(xv, -4)
	if err := obj.Body.SetTree(squareTree(t, m.Ctr.Pool, xv)); err != nil {
		t.Fatal(err)
	}
	m.Ctr.AddEquation(obj)

	g := ctr.NewEquation(ridx.FromInt(1))
	g.Object = ctr.ConeInclusion
	g.Cone = cone.RPlus
	g.Cst = -1
	g.Body.Lin.Push(xv, 1)
	m.Ctr.AddEquation(g)

	u := m.EmpDag.AddMP(empdag.Min, "mp")
	mp := m.EmpDag.MP(u)
	mp.Type = empdag.Opt
	mp.ObjEqu = ridx.FromInt(0)
	mp.Vars = []ridx.Idx{xv}
	mp.Equs = []ridx.Idx{ridx.FromInt(0), ridx.FromInt(1)}
	m.EmpDag.RootsAdd(u)
	if err := m.EmpDag.Finalize(); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	opts := option.Defaults()
	if err := opts.SetChoice(option.SolveSingleOptAs, option.SingleOptMcp); err != nil {
		t.Fatal(err)
	}
	if err := opts.SetBool(option.ExpensiveChecks, true); err != nil {
		t.Fatal(err)
	}

	target, info, err := Transform(m, opts)
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	if info.NConstraints != 1 || info.McpSize != 2 {
		t.Fatalf("unexpected sizing: %+v", info)
	}

	drv := &solverapi.MockDriver{}
	sol, err := drv.Solve(solverapi.NewProblem(target.Ctr, nil))
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	chk.Float64(t, "x", 1e-6, sol.X[0], 2)
	chk.Float64(t, "lambda", 1e-6, sol.X[1], 0)
}

// TestScenarioDNashEquilibrium: two min problems coupled through each
// other's variable, wrapped under a Nash root (spec.md §8 Scenario D).
func TestScenarioDNashEquilibrium(t *testing.T) {
	m := model.New("scenD", model.BackendRHP)
	m.Prob = model.ProbEmp
	m.Ctr.Resize(2, 2)
	xv, yv := ridx.FromInt(0), ridx.FromInt(1)
	m.Ctr.Var(xv).Lb, m.Ctr.Var(xv).Ub = 0, 10
	m.Ctr.Var(yv).Lb, m.Ctr.Var(yv).Ub = 0, 10

	obj1 := ctr.NewEquation(ridx.FromInt(0))
	obj1.Object = ctr.Mapping
	if err := obj1.Body.SetTree(diffSquareTree(t, m.Ctr.Pool, xv, yv, 1)); err != nil {
		t.Fatal(err)
	}
	m.Ctr.AddEquation(obj1)

	obj2 := ctr.NewEquation(ridx.FromInt(1))
	obj2.Object = ctr.Mapping
	if err := obj2.Body.SetTree(diffSquareTree(t, m.Ctr.Pool, yv, xv, 2)); err != nil {
		t.Fatal(err)
	}
	m.Ctr.AddEquation(obj2)

	u1 := m.EmpDag.AddMP(empdag.Min, "player1")
	mp1 := m.EmpDag.MP(u1)
	mp1.Type = empdag.Opt
	mp1.ObjEqu = ridx.FromInt(0)
	mp1.Vars = []ridx.Idx{xv}
	mp1.Equs = []ridx.Idx{ridx.FromInt(0)}

	u2 := m.EmpDag.AddMP(empdag.Min, "player2")
	mp2 := m.EmpDag.MP(u2)
	mp2.Type = empdag.Opt
	mp2.ObjEqu = ridx.FromInt(1)
	mp2.Vars = []ridx.Idx{yv}
	mp2.Equs = []ridx.Idx{ridx.FromInt(1)}

	nash := m.EmpDag.AddNash("equilibrium")
	if err := m.EmpDag.NashAddMP(nash, u1); err != nil {
		t.Fatal(err)
	}
	if err := m.EmpDag.NashAddMP(nash, u2); err != nil {
		t.Fatal(err)
	}
	m.EmpDag.RootsAdd(nash)
	if err := m.EmpDag.Finalize(); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if m.EmpDag.Type != empdag.Mopec {
		t.Fatalf("expected a Nash-rooted DAG to infer Mopec, got %v", m.EmpDag.Type)
	}

	target, info, err := Transform(m, option.Defaults())
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	if info.NPrimalVars != 2 || info.NConstraints != 0 {
		t.Fatalf("expected 2 primals and no multipliers, got %+v", info)
	}

	drv := &solverapi.MockDriver{}
	sol, err := drv.Solve(solverapi.NewProblem(target.Ctr, nil))
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	// The MCP has equilibria at (0,0) and (10,10); assert the residual
	// rather than a particular point.
	for i := 0; i < 2; i++ {
		ei := ridx.FromInt(i)
		f, err := solverapi.EvalEquation(target.Ctr, ei, sol.X)
		if err != nil {
			t.Fatalf("eval: %v", err)
		}
		x := sol.X[i]
		if x > 1e-6 && x < 10-1e-6 {
			chk.Float64(t, "interior residual", 1e-6, f, 0)
		}
	}
}

// TestScenarioEBilevelToMpec: upper min (u-3)^2 controlling lower
// min (v-u)^2 with v >= 0 (spec.md §8 Scenario E).
func TestScenarioEBilevelToMpec(t *testing.T) {
	m := model.New("scenE", model.BackendRHP)
	m.Prob = model.ProbEmp
	m.Ctr.Resize(2, 2)
	uv, vv := ridx.FromInt(0), ridx.FromInt(1)
	m.Ctr.Var(vv).Lb = 0

	upperObj := ctr.NewEquation(ridx.FromInt(0))
	upperObj.Object = ctr.Mapping
	upperObj.Cst = 9
	upperObj.Body.Lin.Push(uv, -6)
	if err := upperObj.Body.SetTree(squareTree(t, m.Ctr.Pool, uv)); err != nil {
		t.Fatal(err)
	}
	m.Ctr.AddEquation(upperObj)

	lowerObj := ctr.NewEquation(ridx.FromInt(1))
	lowerObj.Object = ctr.Mapping
	if err := lowerObj.Body.SetTree(diffSquareTree(t, m.Ctr.Pool, vv, uv, 1)); err != nil {
		t.Fatal(err)
	}
	m.Ctr.AddEquation(lowerObj)

	up := m.EmpDag.AddMP(empdag.Min, "upper")
	upper := m.EmpDag.MP(up)
	upper.Type = empdag.Opt
	upper.ObjEqu = ridx.FromInt(0)
	upper.Vars = []ridx.Idx{uv}
	upper.Equs = []ridx.Idx{ridx.FromInt(0)}

	lo := m.EmpDag.AddMP(empdag.Min, "lower")
	lower := m.EmpDag.MP(lo)
	lower.Type = empdag.Opt
	lower.ObjEqu = ridx.FromInt(1)
	lower.Vars = []ridx.Idx{vv}
	lower.Equs = []ridx.Idx{ridx.FromInt(1)}

	if err := m.EmpDag.MPCTRLMp(up, lo); err != nil {
		t.Fatal(err)
	}
	m.EmpDag.RootsAdd(up)
	if err := m.EmpDag.Finalize(); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if m.EmpDag.Type != empdag.Bilevel {
		t.Fatalf("expected Bilevel, got %v", m.EmpDag.Type)
	}

	target, info, err := Transform(m, option.Defaults())
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	if target.Prob != model.ProbMpec {
		t.Fatalf("expected an MPEC target, got %v", target.Prob)
	}

	// Lower KKT: one stationarity row perp the lower variable.
	newV := info.Rosetta.Map(vv)
	if !newV.Valid() {
		t.Fatalf("lower variable not carried into the target")
	}
	dual, err := target.Ctr.GetVarPerp(newV)
	if err != nil || !dual.Valid() {
		t.Fatalf("expected the lower variable perp-paired, got %v, %v", dual, err)
	}

	// Upper objective preserved, remapped.
	newU := info.Rosetta.Map(uv)
	if !newU.Valid() {
		t.Fatalf("upper variable not carried into the target")
	}
	objEi := info.Rosetta.MapEqu(ridx.FromInt(0))
	if !objEi.Valid() {
		t.Fatalf("upper objective not carried into the target")
	}
	if target.Ctr.EquMetaOf(objEi).Role != ctr.RoleObjective {
		t.Fatalf("expected the preserved upper objective tagged RoleObjective")
	}
	tmp := target.EmpDag.MPs[0]
	if tmp.ObjEqu != objEi {
		t.Fatalf("expected the target MP to reference the remapped objequ")
	}
}

func TestMultilevelNotImplemented(t *testing.T) {
	m := model.New("multi", model.BackendRHP)
	m.Prob = model.ProbEmp
	m.Ctr.Resize(3, 0)

	a := m.EmpDag.AddMP(empdag.Min, "a")
	b := m.EmpDag.AddMP(empdag.Min, "b")
	c := m.EmpDag.AddMP(empdag.Min, "c")
	for i, u := range []empdag.Uid{a, b, c} {
		mp := m.EmpDag.MP(u)
		mp.Type = empdag.Opt
		mp.ObjVar = ridx.FromInt(i)
		mp.Vars = []ridx.Idx{ridx.FromInt(i)}
	}
	if err := m.EmpDag.MPCTRLMp(a, b); err != nil {
		t.Fatal(err)
	}
	if err := m.EmpDag.MPCTRLMp(b, c); err != nil {
		t.Fatal(err)
	}
	m.EmpDag.RootsAdd(a)
	if err := m.EmpDag.Finalize(); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if m.EmpDag.Type != empdag.Multilevel {
		t.Fatalf("expected Multilevel, got %v", m.EmpDag.Type)
	}
	if _, _, err := Transform(m, option.Defaults()); err == nil {
		t.Fatalf("expected NotImplemented for a multilevel DAG")
	}
}

func TestCcfWithoutRegisteredVariantFails(t *testing.T) {
	m := model.New("ccf", model.BackendRHP)
	m.Prob = model.ProbEmp
	u := m.EmpDag.AddMP(empdag.NoSense, "ccfmp")
	m.EmpDag.MP(u).Type = empdag.Ccflib
	m.EmpDag.RootsAdd(u)
	if err := m.EmpDag.Finalize(); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if _, _, err := Transform(m, option.Defaults()); err == nil {
		t.Fatalf("expected NotImplemented when no CCF reformulator is registered")
	}
}

// TestScenarioCSingleVi: y in [0,10] with VI function y - 4 ⟂ y
// (spec.md §8 Scenario C).
func TestScenarioCSingleVi(t *testing.T) {
	m := model.New("scenC", model.BackendRHP)
	m.Prob = model.ProbVi
	m.Ctr.Resize(1, 1)
	yv := ridx.FromInt(0)
	m.Ctr.Var(yv).Lb, m.Ctr.Var(yv).Ub = 0, 10

	f := ctr.NewEquation(ridx.FromInt(0))
	f.Object = ctr.Mapping
	f.Cst = -4
	f.Body.Lin.Push(yv, 1)
	m.Ctr.AddEquation(f)
	if err := m.Ctr.SetVarPerp(yv, ridx.FromInt(0)); err != nil {
		t.Fatal(err)
	}

	u := m.EmpDag.AddMP(empdag.NoSense, "vi")
	mp := m.EmpDag.MP(u)
	mp.Type = empdag.Vi
	mp.Vars = []ridx.Idx{yv}
	mp.Equs = []ridx.Idx{ridx.FromInt(0)}
	m.EmpDag.RootsAdd(u)
	if err := m.EmpDag.Finalize(); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if m.EmpDag.Type != empdag.SingleVi {
		t.Fatalf("expected SingleVi, got %v", m.EmpDag.Type)
	}

	target, info, err := Transform(m, option.Defaults())
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	if info.NVIFuncs != 1 || info.McpSize != 1 {
		t.Fatalf("unexpected sizing: %+v", info)
	}

	drv := &solverapi.MockDriver{}
	sol, err := drv.Solve(solverapi.NewProblem(target.Ctr, nil))
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	chk.Float64(t, "y", 1e-6, sol.X[0], 4)
}
