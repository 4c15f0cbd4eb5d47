// Package solverapi defines the contract between a finalized MCP model and
// a numerical solver driver (spec.md §6.2). The engine side builds the
// sparse Jacobian structure and hands out per-cell equation references;
// the driver side evaluates bodies at its own iterates and writes back
// x, F and a basis vector. Drivers themselves (PATH, GAMS subsolvers) are
// external collaborators; the MockDriver here is a test double only.
// Grounded on msolid/driver.go's driver harness (exercise a model through
// its public contract in isolation) and fem/domain.go's la.Triplet-based
// Jacobian bookkeeping.
package solverapi

import (
	"github.com/xhub/rhpgo/ctr"
	"github.com/xhub/rhpgo/ridx"
)

// Problem is the solver-facing view of a finalized MCP model: the
// container with bounds/starting values, the column-compressed Jacobian
// structure, and the list of extra equations the driver must evaluate for
// reporting (spec.md §4.7 step 9's func2eval).
type Problem struct {
	C         *ctr.Container
	Jac       *JacStructure
	Func2Eval []ridx.Idx
}

// NewProblem builds the solver-facing view of c.
func NewProblem(c *ctr.Container, func2eval []ridx.Idx) *Problem {
	return &Problem{C: c, Jac: BuildJacStructure(c), Func2Eval: func2eval}
}

// Solution is what a driver writes back: the final iterate, the function
// values at it, and an integer basis vector (spec.md §6.2).
type Solution struct {
	X     []float64
	F     []float64
	Basis []ctr.BasisStatus
}

// Driver is the solver-driver interface. SetOptionFile routes the
// subsolveropt / solver_option_file_number ids (spec.md §6.3) to the
// driver's native option mechanism.
type Driver interface {
	SetOptionFile(n int)
	Solve(p *Problem) (*Solution, error)
}

// ApplySolution writes a driver's solution back into the container: the
// iterate into variable levels, function values into equation values, and
// each equation's multiplier from its perp-paired variable's level (the
// defining property of the MCP pairing). The engine-side half of §6.2's
// "whence the engine reconstructs equation values and multipliers".
func ApplySolution(c *ctr.Container, sol *Solution) {
	for i := 0; i < c.TotalN() && i < len(sol.X); i++ {
		vi := ridx.FromInt(i)
		v := c.Var(vi)
		v.Level = sol.X[i]
		if i < len(sol.Basis) {
			v.Basis = sol.Basis[i]
		}
	}
	for i := 0; i < c.TotalM() && i < len(sol.F); i++ {
		ei := ridx.FromInt(i)
		eq := c.Equ(ei)
		eq.Value = sol.F[i]
		dual := c.EquMetaOf(ei).Dual
		if dual.Valid() && dual.Int() < len(sol.X) {
			eq.Mult = sol.X[dual.Int()]
		}
	}
}
