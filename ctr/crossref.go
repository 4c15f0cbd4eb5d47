package ctr

import (
	"github.com/xhub/rhpgo/rhperr"
	"github.com/xhub/rhpgo/ridx"
)

// VarCell pairs an equation with whether vi enters it nonlinearly, as
// returned by EquIterEqus (spec.md §4.2's "equ_iter_equs(vi): lazy
// sequence of (other_idx, jacval, nlflag)" — jacval is omitted here since
// the core never evaluates numerically; see Equation's Eval doc comment).
type VarCell struct {
	Ei   ridx.Idx
	IsNL bool
}

// EquIterEqus returns, for variable vi, every equation it appears in
// (linearly or nonlinearly), skipping equations that are no longer active.
func (c *Container) EquIterEqus(vi ridx.Idx) []VarCell {
	if !vi.Valid() || vi.Int() >= len(c.column) {
		return nil
	}
	cells := c.column[vi.Int()]
	out := make([]VarCell, 0, len(cells))
	for _, cell := range cells {
		if c.EquActive(cell.Ei) {
			out = append(out, VarCell{Ei: cell.Ei, IsNL: cell.IsNL})
		}
	}
	return out
}

// EquIterVars returns every variable equation ei depends on, linearly or
// nonlinearly, deduplicated (a variable appearing both in the linear part
// and as a nonlinear leaf is reported once, matching the §4.2 insertion
// algorithm's "not already present" rule).
func (c *Container) EquIterVars(ei ridx.Idx) []VarCell {
	if !ei.Valid() || ei.Int() >= len(c.equs) {
		return nil
	}
	eq := &c.equs[ei.Int()]
	seen := make(map[ridx.Idx]bool)
	var out []VarCell
	if eq.Body.Lin != nil {
		eq.Body.Lin.Iterate(func(vi ridx.Idx, _ float64) {
			if !seen[vi] {
				seen[vi] = true
				out = append(out, VarCell{Ei: vi, IsNL: false})
			}
		})
	}
	if eq.Body.Tree != nil {
		for _, vi := range eq.Body.Tree.Vars() {
			if !seen[vi] {
				seen[vi] = true
				out = append(out, VarCell{Ei: vi, IsNL: true})
			}
		}
	}
	return out
}

// AuditCrossReference walks every active equation's body and confirms the
// column view agrees with it: each variable the body references must have
// a matching Cell in that variable's column list with the right IsNL flag,
// and vice versa. This is the §4 supplemental "expensive_checks" O(nnz)
// audit, meant to run only when that option is enabled.
func (c *Container) AuditCrossReference() error {
	for i := 0; i < len(c.equs); i++ {
		ei := ridx.FromInt(i)
		if !c.EquActive(ei) {
			continue
		}
		for _, vc := range c.EquIterVars(ei) {
			if !c.columnHas(vc.Ei, ei, vc.IsNL) {
				return auditErr(ei, vc.Ei)
			}
		}
	}
	for i := 0; i < len(c.column); i++ {
		vi := ridx.FromInt(i)
		if !c.VarActive(vi) {
			continue
		}
		for _, cell := range c.column[i] {
			if !c.EquActive(cell.Ei) {
				continue
			}
			found := false
			for _, vc := range c.EquIterVars(cell.Ei) {
				if vc.Ei == vi {
					found = true
					break
				}
			}
			if !found {
				return auditErr(cell.Ei, vi)
			}
		}
	}
	return nil
}

func auditErr(ei, vi ridx.Idx) error {
	return rhperr.New(rhperr.UnExpectedData, "ctr.AuditCrossReference", "equation %v and variable %v cross-reference mismatch", ei, vi)
}

func (c *Container) columnHas(vi, ei ridx.Idx, isNL bool) bool {
	if vi.Int() >= len(c.column) {
		return false
	}
	for _, cell := range c.column[vi.Int()] {
		if cell.Ei == ei && cell.IsNL == isNL {
			return true
		}
	}
	return false
}
