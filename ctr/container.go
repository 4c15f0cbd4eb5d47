package ctr

import (
	"math"

	"github.com/cpmech/gosl/chk"

	"github.com/xhub/rhpgo/cone"
	"github.com/xhub/rhpgo/expr"
	"github.com/xhub/rhpgo/rhperr"
	"github.com/xhub/rhpgo/ridx"
)

// Container owns vars[0..totalN), equs[0..totalM), presence arrays, and the
// per-variable column-view cross-reference (spec.md §4.2). Grounded on
// fem/domain.go's Domain, which plays the same role for DOFs/elements.
type Container struct {
	Pool *expr.ConstPool

	vars      []Variable
	varMeta   []VarMeta
	varActive []bool

	equs      []Equation
	equMeta   []EquMeta
	equActive []bool

	column [][]Cell // column[vi] = membership cells

	n, m int // active counts
}

// NewContainer returns an empty container with its own constant pool.
func NewContainer() *Container {
	return &Container{Pool: expr.NewConstPool()}
}

// TotalN/TotalM are the allocated slot counts (including removed entries).
func (c *Container) TotalN() int { return len(c.vars) }
func (c *Container) TotalM() int { return len(c.equs) }

// N/M are the active entity counts.
func (c *Container) N() int { return c.n }
func (c *Container) M() int { return c.m }

// Resize grows capacities so that n variables and m equations are
// available, allocating active entries for any newly created slots: free
// variables (infinite bounds, Reals cone) and empty equations (spec.md §4.2's "resize(n, m): grow capacities"). Resize failures
// are fatal per §4.2's "Failure semantics"; the Go translation of "fatal"
// is a panic, since a failed append in a GC'd runtime is already a fatal
// condition (OOM) the caller cannot meaningfully recover from.
func (c *Container) Resize(n, m int) {
	for len(c.vars) < n {
		idx := ridx.FromInt(len(c.vars))
		c.vars = append(c.vars, Variable{Index: idx, Lb: math.Inf(-1), Ub: math.Inf(1), Cone: cone.Reals})
		c.varMeta = append(c.varMeta, VarMeta{MpId: ridx.IdxNA, Dual: ridx.IdxNA})
		c.varActive = append(c.varActive, true)
		c.column = append(c.column, nil)
		c.n++
	}
	for len(c.equs) < m {
		idx := ridx.FromInt(len(c.equs))
		c.equs = append(c.equs, Equation{Index: idx, Body: expr.NewBody()})
		c.equMeta = append(c.equMeta, EquMeta{MpId: ridx.IdxNA, Dual: ridx.IdxNA})
		c.equActive = append(c.equActive, true)
		c.m++
	}
}

// AddVariable appends a new variable, growing capacity as needed, and
// returns its index.
func (c *Container) AddVariable(v Variable) ridx.Idx {
	idx := ridx.FromInt(len(c.vars))
	v.Index = idx
	c.vars = append(c.vars, v)
	c.varMeta = append(c.varMeta, VarMeta{MpId: ridx.IdxNA, Dual: ridx.IdxNA})
	c.varActive = append(c.varActive, true)
	c.column = append(c.column, nil)
	c.n++
	return idx
}

// Var/Equ return pointers to the entity at idx for in-place mutation.
// Calling with an index outside [0, total) is a precondition violation
// (the error-returning getters are GetEquType/GetVarPerp and friends).
func (c *Container) Var(vi ridx.Idx) *Variable {
	if !vi.Valid() || vi.Int() >= len(c.vars) {
		chk.Panic("ctr.Var: vi=%v out of range [0,%d)", vi, len(c.vars))
	}
	return &c.vars[vi.Int()]
}

func (c *Container) Equ(ei ridx.Idx) *Equation {
	if !ei.Valid() || ei.Int() >= len(c.equs) {
		chk.Panic("ctr.Equ: ei=%v out of range [0,%d)", ei, len(c.equs))
	}
	return &c.equs[ei.Int()]
}

func (c *Container) VarMetaOf(vi ridx.Idx) *VarMeta {
	if !vi.Valid() || vi.Int() >= len(c.varMeta) {
		chk.Panic("ctr.VarMetaOf: vi=%v out of range [0,%d)", vi, len(c.varMeta))
	}
	return &c.varMeta[vi.Int()]
}

func (c *Container) EquMetaOf(ei ridx.Idx) *EquMeta {
	if !ei.Valid() || ei.Int() >= len(c.equMeta) {
		chk.Panic("ctr.EquMetaOf: ei=%v out of range [0,%d)", ei, len(c.equMeta))
	}
	return &c.equMeta[ei.Int()]
}

// VarActive/EquActive report presence (§4.3's "Active" Fops uses these).
func (c *Container) VarActive(vi ridx.Idx) bool {
	return vi.Valid() && vi.Int() < len(c.varActive) && c.varActive[vi.Int()] && c.varMeta[vi.Int()].Ppty&PptyIsDeleted == 0
}
func (c *Container) EquActive(ei ridx.Idx) bool {
	return ei.Valid() && ei.Int() < len(c.equActive) && c.equActive[ei.Int()] && c.equMeta[ei.Int()].Ppty&EquPptyIsDeleted == 0
}

// GetEquType/SetEquType read/write an equation's (Object, Cone) pair, with
// the §4.2 precondition ei ∈ [0, total_m).
func (c *Container) GetEquType(ei ridx.Idx) (EquObject, cone.Tag, error) {
	if !ei.Valid() || ei.Int() >= len(c.equs) {
		return 0, 0, rhperr.New(rhperr.IndexOutOfRange, "ctr.GetEquType", "ei=%v out of range [0,%d)", ei, len(c.equs))
	}
	e := &c.equs[ei.Int()]
	return e.Object, e.Cone, nil
}

func (c *Container) SetEquType(ei ridx.Idx, object EquObject, tag cone.Tag) error {
	if !ei.Valid() || ei.Int() >= len(c.equs) {
		return rhperr.New(rhperr.IndexOutOfRange, "ctr.SetEquType", "ei=%v out of range [0,%d)", ei, len(c.equs))
	}
	e := &c.equs[ei.Int()]
	e.Object = object
	e.Cone = tag
	return nil
}

// GetVarPerp/SetVarPerp read/write the (variable, equation) perp pairing,
// keeping VarMeta.Dual and EquMeta.Dual symmetric (§4.2).
func (c *Container) GetVarPerp(vi ridx.Idx) (ridx.Idx, error) {
	if !vi.Valid() || vi.Int() >= len(c.varMeta) {
		return ridx.IdxInvalid, rhperr.New(rhperr.IndexOutOfRange, "ctr.GetVarPerp", "vi=%v out of range", vi)
	}
	return c.varMeta[vi.Int()].Dual, nil
}

func (c *Container) SetVarPerp(vi, ei ridx.Idx) error {
	if !vi.Valid() || vi.Int() >= len(c.varMeta) {
		return rhperr.New(rhperr.IndexOutOfRange, "ctr.SetVarPerp", "vi=%v out of range", vi)
	}
	if !ei.Valid() || ei.Int() >= len(c.equMeta) {
		return rhperr.New(rhperr.IndexOutOfRange, "ctr.SetVarPerp", "ei=%v out of range", ei)
	}
	vm := &c.varMeta[vi.Int()]
	em := &c.equMeta[ei.Int()]
	if vm.Dual.Valid() && vm.Dual != ei {
		return rhperr.New(rhperr.UnExpectedData, "ctr.SetVarPerp", "variable %v already paired with equation %v", vi, vm.Dual)
	}
	if em.Dual.Valid() && em.Dual != vi {
		return rhperr.New(rhperr.UnExpectedData, "ctr.SetVarPerp", "equation %v already paired with variable %v", ei, em.Dual)
	}
	vm.Dual = ei
	em.Dual = vi
	return nil
}

// AddEquation installs eq at its Index slot (growing capacity if needed)
// and updates the cross-reference column view per §4.2's "Algorithm —
// adding an equation to the model":
//  1. allocate/assign ei (the caller supplies eq.Index == IdxNA to request
//     a fresh slot, or a valid existing slot to overwrite in place)
//  2. for each linear term (vi, c), append a membership cell to vi's
//     column list
//  3. for each VAR leaf in the tree not already present in the column
//     list for ei, append a cell with IsNL=true
func (c *Container) AddEquation(eq *Equation) ridx.Idx {
	var ei ridx.Idx
	if eq.Index.Valid() && eq.Index.Int() < len(c.equs) {
		ei = eq.Index
		c.equs[ei.Int()] = *eq
	} else {
		ei = ridx.FromInt(len(c.equs))
		eq.Index = ei
		c.equs = append(c.equs, *eq)
		c.equMeta = append(c.equMeta, EquMeta{MpId: ridx.IdxNA, Dual: ridx.IdxNA})
		c.equActive = append(c.equActive, true)
		c.m++
	}
	c.reindexEquation(ei)
	return ei
}

// reindexEquation appends one column-view cell per variable this
// equation's body references; it is called by AddEquation. It does not
// remove cells left by an earlier indexing of the same equation.
func (c *Container) reindexEquation(ei ridx.Idx) {
	eq := &c.equs[ei.Int()]
	present := make(map[ridx.Idx]bool)
	if eq.Body.Lin != nil {
		eq.Body.Lin.Iterate(func(vi ridx.Idx, _ float64) {
			c.appendCell(vi, ei, false)
			present[vi] = true
		})
	}
	if eq.Body.Tree != nil {
		for _, vi := range eq.Body.Tree.Vars() {
			if !present[vi] {
				c.appendCell(vi, ei, true)
				present[vi] = true
			}
		}
	}
}

func (c *Container) appendCell(vi, ei ridx.Idx, isNL bool) {
	for len(c.column) <= vi.Int() {
		c.column = append(c.column, nil)
	}
	c.column[vi.Int()] = append(c.column[vi.Int()], Cell{Ei: ei, IsNL: isNL})
}

// RemoveObjectiveEquation deletes the equation at ei (marking it inactive)
// and, if dropped is true, ALSO marks it so that GMO export (an external
// collaborator) knows the equation has no replacement in the target model
// — made an explicit argument rather than the source's implicit
// rosetta_equs[objequ]==IdxNA sentinel convention (§9 REDESIGN note;
// DESIGN.md Open Question).
func (c *Container) RemoveObjectiveEquation(ei ridx.Idx, dropped bool) error {
	if !ei.Valid() || ei.Int() >= len(c.equs) {
		return rhperr.New(rhperr.IndexOutOfRange, "ctr.RemoveObjectiveEquation", "ei=%v out of range", ei)
	}
	c.equMeta[ei.Int()].Ppty |= EquPptyIsDeleted
	c.equActive[ei.Int()] = !dropped && c.equActive[ei.Int()]
	c.m--
	return nil
}
