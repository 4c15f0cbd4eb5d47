package solverapi

import (
	"github.com/cpmech/gosl/la"

	"github.com/xhub/rhpgo/ctr"
	"github.com/xhub/rhpgo/ridx"
)

// JacCell identifies, for one structural nonzero, the equation whose
// Jacobian entry the cell represents and whether the dependence is
// nonlinear (so a presolve can split linear from NL rows, spec.md §6.2).
type JacCell struct {
	Ei   ridx.Idx
	IsNL bool
}

// JacStructure is the column-compressed sparse Jacobian pattern handed to
// the driver: P has length n+1, I and Cells have length nnz, and column j's
// cells live in I[P[j]:P[j+1]] (spec.md §6.2's "(p, i)" contract with a
// per-cell equation reference alongside).
type JacStructure struct {
	P     []int
	I     []ridx.Idx
	Cells []JacCell
}

// Nnz returns the number of structural nonzeros.
func (j *JacStructure) Nnz() int { return len(j.I) }

// BuildJacStructure walks the container's column view (one pass per
// variable, the same order fem/domain.go fills Kb) and emits the CSC
// arrays.
func BuildJacStructure(c *ctr.Container) *JacStructure {
	n := c.TotalN()
	js := &JacStructure{P: make([]int, n+1)}
	for j := 0; j < n; j++ {
		js.P[j] = len(js.I)
		for _, cell := range c.EquIterEqus(ridx.FromInt(j)) {
			js.I = append(js.I, cell.Ei)
			js.Cells = append(js.Cells, JacCell{Ei: cell.Ei, IsNL: cell.IsNL})
		}
	}
	js.P[n] = len(js.I)
	return js
}

// SeedTriplet fills a la.Triplet with the constant (linear-part) Jacobian
// entries, the working scratch a driver starts from before overwriting NL
// cells at each iterate. Sized exactly to the structural nonzero count so
// the driver can Put without reallocation, mirroring domain.go's
// Kb.Init(Nyb, Nyb, NnzKb).
func SeedTriplet(c *ctr.Container, js *JacStructure) *la.Triplet {
	tri := new(la.Triplet)
	tri.Init(c.TotalM(), c.TotalN(), maxInt(js.Nnz(), 1))
	for j := 0; j < c.TotalN(); j++ {
		vi := ridx.FromInt(j)
		for _, cell := range c.EquIterEqus(vi) {
			if cell.IsNL {
				continue
			}
			coeff, ok := c.Equ(cell.Ei).Body.Lin.Find(vi)
			if !ok {
				continue
			}
			tri.Put(cell.Ei.Int(), j, coeff)
		}
	}
	return tri
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
