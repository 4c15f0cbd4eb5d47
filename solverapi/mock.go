package solverapi

import (
	"math"

	"github.com/xhub/rhpgo/ctr"
	"github.com/xhub/rhpgo/rhperr"
	"github.com/xhub/rhpgo/ridx"
)

// MockDriver is a test double implementing Driver with a damped projected
// fixed-point iteration x <- mid(lb, x - α·F(x), ub). It exists so the
// end-to-end scenarios can run without a real complementarity solver; it
// makes no claim of robustness beyond the small square MCPs the tests
// build. The same role msolid/driver.go plays for constitutive models: a
// harness, not a solver.
type MockDriver struct {
	Alpha   float64 // damping step, default 0.05
	MaxIter int     // default 50000
	Tol     float64 // natural-residual tolerance, default 1e-10

	optFile int
}

// SetOptionFile records the option-file id; the mock has no option file to
// read, but the pass-through must exist so SubSolverOpt routing is
// exercisable (SPEC_FULL.md §4).
func (d *MockDriver) SetOptionFile(n int) { d.optFile = n }

// OptionFile returns the last id routed via SetOptionFile.
func (d *MockDriver) OptionFile() int { return d.optFile }

func (d *MockDriver) params() (alpha, tol float64, maxIter int) {
	alpha, tol, maxIter = d.Alpha, d.Tol, d.MaxIter
	if alpha == 0 {
		alpha = 0.05
	}
	if tol == 0 {
		tol = 1e-10
	}
	if maxIter == 0 {
		maxIter = 50000
	}
	return
}

// Solve runs the projected iteration until the natural residual
// r_i = x_i - mid(lb_i, x_i - F_i(x), ub_i) is below tolerance.
func (d *MockDriver) Solve(p *Problem) (*Solution, error) {
	c := p.C
	if c.N() != c.M() {
		return nil, rhperr.New(rhperr.InvalidModel, "solverapi.MockDriver.Solve", "MCP is not square: n=%d m=%d", c.N(), c.M())
	}
	alpha, tol, maxIter := d.params()

	n := c.TotalN()
	x := make([]float64, n)
	lb := make([]float64, n)
	ub := make([]float64, n)
	for i := 0; i < n; i++ {
		v := c.Var(ridx.FromInt(i))
		lb[i], ub[i] = v.Lb, v.Ub
		x[i] = mid(lb[i], v.Level, ub[i])
	}

	fval := make([]float64, c.TotalM())
	for iter := 0; iter < maxIter; iter++ {
		res := 0.0
		for i := 0; i < n; i++ {
			vi := ridx.FromInt(i)
			ei, err := c.GetVarPerp(vi)
			if err != nil {
				return nil, err
			}
			if !ei.Valid() {
				return nil, rhperr.New(rhperr.InvalidModel, "solverapi.MockDriver.Solve", "variable %v has no perp-paired equation", vi)
			}
			f, err := EvalEquation(c, ei, x)
			if err != nil {
				return nil, err
			}
			fval[ei.Int()] = f
			next := mid(lb[i], x[i]-alpha*f, ub[i])
			res = math.Max(res, math.Abs(x[i]-mid(lb[i], x[i]-f, ub[i])))
			x[i] = next
		}
		if res <= tol {
			break
		}
	}

	basis := make([]ctr.BasisStatus, n)
	for i := 0; i < n; i++ {
		switch {
		case lb[i] == ub[i]:
			basis[i] = ctr.BasisFixed
		case x[i] <= lb[i]:
			basis[i] = ctr.BasisLower
		case x[i] >= ub[i]:
			basis[i] = ctr.BasisUpper
		default:
			basis[i] = ctr.BasisBasic
		}
	}

	for _, ei := range p.Func2Eval {
		f, err := EvalEquation(c, ei, x)
		if err != nil {
			return nil, err
		}
		if ei.Int() < len(fval) {
			fval[ei.Int()] = f
		}
	}

	return &Solution{X: x, F: fval, Basis: basis}, nil
}

func mid(lo, v, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}
