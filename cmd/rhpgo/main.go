// Command rhpgo is a small demonstration driver for the reformulation
// engine: it builds a one-variable constrained minimization in memory,
// reformulates it into an MCP via the first-order optimality pass, solves
// it with the mock driver, and reports the solution back onto the source
// model.
package main

import (
	"flag"

	"github.com/cpmech/gosl/chk"
	"github.com/cpmech/gosl/io"

	"github.com/xhub/rhpgo/cone"
	"github.com/xhub/rhpgo/ctr"
	"github.com/xhub/rhpgo/empdag"
	"github.com/xhub/rhpgo/expr"
	"github.com/xhub/rhpgo/model"
	"github.com/xhub/rhpgo/option"
	"github.com/xhub/rhpgo/orchestrator"
	"github.com/xhub/rhpgo/ridx"
	"github.com/xhub/rhpgo/solverapi"
)

func main() {

	// flags
	verbose := flag.Bool("verbose", true, "print model and solution details")
	expensive := flag.Bool("expensive-checks", false, "run the O(nnz) cross-reference audit after the transformation")
	flag.Parse()

	// catch errors
	defer func() {
		if err := recover(); err != nil {
			chk.Verbose = true
			for i := 8; i > 3; i-- {
				chk.CallerInfo(i)
			}
			io.PfRed("ERROR: %v\n", err)
		}
	}()

	// message
	if *verbose {
		io.PfWhite("\nrhpgo -- mathematical programming reformulation engine\n\n")
	}

	// source model: min (x-2)^2  s.t.  x - 1 >= 0,  x >= 0
	m := model.New("demo", model.BackendRHP)
	m.Prob = model.ProbOpt
	m.Ctr.Resize(1, 2)
	xv := ridx.FromInt(0)
	m.Ctr.Var(xv).Lb = 0

	obj := ctr.NewEquation(ridx.FromInt(0))
	obj.Object = ctr.Mapping
	obj.Cst = 4
	obj.Body.Lin.Push(xv, -4)
	sq := expr.Arithm(expr.OpMul, 2)
	addChild(sq, expr.Var(xv, 1, m.Ctr.Pool))
	addChild(sq, expr.Var(xv, 1, m.Ctr.Pool))
	if err := obj.Body.SetTree(sq); err != nil {
		chk.Panic("cannot set objective tree: %v", err)
	}
	m.Ctr.AddEquation(obj)

	g := ctr.NewEquation(ridx.FromInt(1))
	g.Object = ctr.ConeInclusion
	g.Cone = cone.RPlus
	g.Cst = -1
	g.Body.Lin.Push(xv, 1)
	m.Ctr.AddEquation(g)

	u := m.EmpDag.AddMP(empdag.Min, "demo_mp")
	mp := m.EmpDag.MP(u)
	mp.Type = empdag.Opt
	mp.ObjEqu = ridx.FromInt(0)
	mp.Vars = []ridx.Idx{xv}
	mp.Equs = []ridx.Idx{ridx.FromInt(0), ridx.FromInt(1)}
	m.EmpDag.RootsAdd(u)
	if err := m.EmpDag.Finalize(); err != nil {
		chk.Panic("finalize failed: %v", err)
	}

	// options
	opts := option.Defaults()
	if err := opts.SetChoice(option.SolveSingleOptAs, option.SingleOptMcp); err != nil {
		chk.Panic("%v", err)
	}
	if err := opts.SetBool(option.ExpensiveChecks, *expensive); err != nil {
		chk.Panic("%v", err)
	}

	// reformulate
	target, info, err := orchestrator.Transform(m, opts)
	if err != nil {
		chk.Panic("transformation failed: %v", err)
	}
	if *verbose {
		io.Pf("source EMPDAG type: %v\n", m.EmpDag.Type)
		io.Pf("MCP size: %d (primal=%d, constraints=%d)\n", info.McpSize, info.NPrimalVars, info.NConstraints)
	}

	// solve
	drv := &solverapi.MockDriver{}
	subopt, _ := opts.Int(option.SubSolverOpt)
	drv.SetOptionFile(subopt)
	sol, err := drv.Solve(solverapi.NewProblem(target.Ctr, nil))
	if err != nil {
		chk.Panic("solve failed: %v", err)
	}

	// report back onto the source model
	solverapi.ApplySolution(target.Ctr, sol)
	model.SolReport(m, target, info.Rosetta)

	if *verbose {
		io.Pfgreen("x = %g  (expected 2)\n", m.Ctr.Var(xv).Level)
		io.Pf("multiplier of x-1>=0: %g  (expected 0)\n", target.Ctr.Var(ridx.FromInt(1)).Level)
	}
}

func addChild(n, child *expr.Node) {
	if err := n.AddChild(child); err != nil {
		chk.Panic("%v", err)
	}
}
