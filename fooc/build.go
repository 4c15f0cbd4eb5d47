package fooc

import (
	"github.com/cpmech/gosl/chk"

	"github.com/xhub/rhpgo/cone"
	"github.com/xhub/rhpgo/ctr"
	"github.com/xhub/rhpgo/empdag"
	"github.com/xhub/rhpgo/expr"
	"github.com/xhub/rhpgo/rhperr"
	"github.com/xhub/rhpgo/ridx"
	"github.com/xhub/rhpgo/rosetta"
)

// constraintWork is one ConeInclusion equation queued for multiplier
// allocation and normal-cone assembly.
type constraintWork struct {
	mp        *empdag.MP
	ei        ridx.Idx // source equation index
	nonlinear bool
}

// vifuncRow is one equation that becomes an F-row verbatim: either a real
// VI-function equation (srcEi valid) or a materialized zero function for a
// primal variable flagged PerpToZeroFunctionVi with no equation of its own
// (srcEi == ridx.IdxNA).
type vifuncRow struct {
	mp    *empdag.MP
	srcEi ridx.Idx
	newVi ridx.Idx
}

// Build runs the first-order optimality condition construction (spec.md
// §4.7) over the MPs named by mps, producing a fresh MCP container that is
// square unless auxiliary variables are carried along (each adds a column
// with no row of its own).
// The returned bool reports whether any differentiated function was
// whitelisted-but-nonsmooth (ABS/MIN/MAX), the signal callers use to
// upgrade the owning model's problem type to dnlp (§4.7 failure mode).
// This is the single-source simplification documented in DESIGN.md: mps'
// variables and equations are read directly from src, with no composed
// rosetta across a deeper upstream chain (the orchestrator is responsible
// for handing Build a container that already reflects the selected
// sub-dag, e.g. via fops.SubDag + ctr.Container.Apply).
func Build(src *ctr.Container, mps []*empdag.MP) (*ctr.Container, *McpInfo, bool, error) {
	info := &McpInfo{}

	primaryOrder, mpOfVar, err := collectPrimalVars(src, mps)
	if err != nil {
		return nil, nil, false, err
	}
	n := len(primaryOrder)
	info.NFoocVars = n

	oldToNewVar := make(varRemap, n)
	for i, vi := range primaryOrder {
		oldToNewVar[vi] = ridx.FromInt(i)
	}

	if err := checkObjectives(mps); err != nil {
		return nil, nil, false, err
	}
	for _, mp := range mps {
		if mp.Type == empdag.Opt && mp.ObjEqu.Valid() {
			info.Func2Eval = append(info.Func2Eval, mp.ObjEqu)
		}
	}

	vifuncs, nlCons, linCons, err := classifyEquations(src, mps, oldToNewVar)
	if err != nil {
		return nil, nil, false, err
	}
	vifuncs = append(vifuncs, zeroVIFunctionRows(src, primaryOrder, mpOfVar, vifuncs)...)
	info.NVIFuncs = len(vifuncs)
	for _, vf := range vifuncs {
		if !vf.srcEi.Valid() {
			info.NVIZeroFuncs++
		}
	}

	// Auxiliary variables: columns that a selected MP's objective or
	// constraint bodies reference but that aren't owned by any selected
	// MP (spec.md §4.7 step 1: "auxiliary variables receive IdxInvalid"
	// for the row that would otherwise pair with them). A bilevel lower
	// level's objective referencing the upper level's decision variable
	// is the motivating case: it must survive as a free column with no
	// stationarity row of its own, not be silently dropped by Dup/remap.
	aux := auxVarRefs(src, mps, oldToNewVar, vifuncs, nlCons, linCons)
	for i, vi := range aux {
		oldToNewVar[vi] = ridx.FromInt(n + i)
	}
	info.NAuxVars = len(aux)
	info.NPrimalVars = n + len(aux)

	info.NNlCons = len(nlCons)
	info.NLinCons = len(linCons)
	info.NConstraints = len(nlCons) + len(linCons)
	info.McpSize = info.NFoocVars + info.NConstraints
	if info.NLinCons+info.NFoocVars > info.McpSize {
		return nil, nil, false, rhperr.New(rhperr.Inconsistency, "fooc.Build",
			"n_lincons(%d) + n_foocvars(%d) exceeds mcp_size(%d)", info.NLinCons, info.NFoocVars, info.McpSize)
	}

	target := ctr.NewContainer()
	target.Pool = src.Pool
	target.Resize(info.NPrimalVars+info.NConstraints, info.McpSize)

	copyPrimalVars(target, src, primaryOrder, mpOfVar)
	copyAuxVars(target, src, aux, n)

	allCons := make([]constraintWork, 0, len(nlCons)+len(linCons))
	allCons = append(allCons, nlCons...)
	allCons = append(allCons, linCons...)
	muVar := allocateMultipliers(target, src, allCons, n+len(aux))

	rows := make([]*expr.Body, n)
	for i := range rows {
		rows[i] = expr.NewBody()
	}

	nonSmoothObj, err := stationarity(src, mps, oldToNewVar, rows, n)
	if err != nil {
		return nil, nil, false, err
	}
	nonSmoothCone, err := normalCone(src, allCons, muVar, oldToNewVar, rows, n)
	if err != nil {
		return nil, nil, false, err
	}
	nonSmooth := nonSmoothObj || nonSmoothCone

	addVifuncBodies(src, vifuncs, oldToNewVar, rows)

	if err := materializeFRows(target, rows, primaryOrder, oldToNewVar, mpOfVar, vifuncs); err != nil {
		return nil, nil, false, err
	}
	if err := materializeConstraintRows(target, src, allCons, muVar, oldToNewVar, n); err != nil {
		return nil, nil, false, err
	}

	wantN := info.NPrimalVars + info.NConstraints
	if target.N() != wantN || target.M() != info.McpSize {
		return nil, nil, false, rhperr.New(rhperr.Inconsistency, "fooc.Build",
			"target is not the expected shape: n=%d, m=%d, want n=%d m=%d", target.N(), target.M(), wantN, info.McpSize)
	}
	if err := target.AuditCrossReference(); err != nil {
		return nil, nil, false, err
	}

	info.Rosetta = buildRosetta(src, oldToNewVar, vifuncs, allCons, n)

	return target, info, nonSmooth, nil
}

// auxVarRefs scans every selected MP's objective and constraint bodies for
// variable references that collectPrimalVars did not capture (vars owned by
// an MP outside the selected set) and returns them in first-seen order.
// known is mutated with a placeholder for every variable found so repeated
// references are only reported once; the caller overwrites those entries
// with real target indices afterward.
func auxVarRefs(src *ctr.Container, mps []*empdag.MP, known varRemap, vifuncs []vifuncRow, nlCons, linCons []constraintWork) []ridx.Idx {
	var aux []ridx.Idx
	collect := func(body *expr.Body) {
		if body == nil {
			return
		}
		note := func(vi ridx.Idx) {
			if !vi.Valid() || !src.VarActive(vi) {
				return
			}
			if _, seen := known[vi]; seen {
				return
			}
			known[vi] = ridx.IdxNA
			aux = append(aux, vi)
		}
		if body.Lin != nil {
			body.Lin.Iterate(func(vi ridx.Idx, _ float64) { note(vi) })
		}
		if body.Tree != nil {
			for _, vi := range body.Tree.Vars() {
				note(vi)
			}
		}
	}
	for _, mp := range mps {
		if mp.Type == empdag.Opt && mp.ObjEqu.Valid() {
			collect(src.Equ(mp.ObjEqu).Body)
		}
	}
	for _, vf := range vifuncs {
		if vf.srcEi.Valid() {
			collect(src.Equ(vf.srcEi).Body)
		}
	}
	for _, cw := range nlCons {
		collect(src.Equ(cw.ei).Body)
	}
	for _, cw := range linCons {
		collect(src.Equ(cw.ei).Body)
	}
	return aux
}

func copyAuxVars(target, src *ctr.Container, aux []ridx.Idx, n int) {
	for i, vi := range aux {
		newVi := ridx.FromInt(n + i)
		sv := src.Var(vi)
		tv := target.Var(newVi)
		tv.Lb, tv.Ub = sv.Lb, sv.Ub
		tv.Level, tv.Mult, tv.Basis = sv.Level, sv.Mult, sv.Basis
		tv.VType, tv.Cone, tv.ConePayload = sv.VType, sv.Cone, sv.ConePayload
		tm := target.VarMetaOf(newVi)
		tm.MpId = src.VarMetaOf(vi).MpId
		tm.Type = ctr.MetaUndefined
	}
}

// buildRosetta records the old-index -> new-index correspondence Build
// actually used, so a caller stitching more of the source container onto
// the result (the orchestrator's bilevel-to-MPEC path) can remap anything
// it still needs through a single lookup instead of recomputing it.
func buildRosetta(src *ctr.Container, remap varRemap, vifuncs []vifuncRow, allCons []constraintWork, n int) *rosetta.Rosetta {
	r := rosetta.New(src.TotalN(), src.TotalM())
	for old, nw := range remap {
		r.VarMap[old.Int()] = nw
	}
	for _, vf := range vifuncs {
		if vf.srcEi.Valid() {
			r.EquMap[vf.srcEi.Int()] = vf.newVi
		}
	}
	for k, cw := range allCons {
		r.EquMap[cw.ei.Int()] = ridx.FromInt(n + k)
	}
	return r
}

// collectPrimalVars walks every selected MP's Vars in MP order, preserving
// first-seen insertion order, and records which MP owns each variable.
func collectPrimalVars(src *ctr.Container, mps []*empdag.MP) ([]ridx.Idx, map[ridx.Idx]*empdag.MP, error) {
	var order []ridx.Idx
	owner := make(map[ridx.Idx]*empdag.MP)
	for _, mp := range mps {
		if mp.Type == empdag.Ccflib {
			return nil, nil, rhperr.New(rhperr.NotImplemented, "fooc.Build",
				"MP %q is a CCF/OVF library problem; it must be reformulated before FOOC runs", mp.Name)
		}
		for _, vi := range mp.Vars {
			if !src.VarActive(vi) {
				continue
			}
			if _, seen := owner[vi]; seen {
				continue
			}
			owner[vi] = mp
			order = append(order, vi)
		}
	}
	return order, owner, nil
}

// checkObjectives enforces spec.md §4.7 step 2's "exactly one of
// objvar/objequ" for every Opt MP in scope.
func checkObjectives(mps []*empdag.MP) error {
	for _, mp := range mps {
		if mp.Type != empdag.Opt {
			continue
		}
		hasVar, hasEqu := mp.ObjVar.Valid(), mp.ObjEqu.Valid()
		if hasVar == hasEqu {
			return rhperr.New(rhperr.InvalidModel, "fooc.Build",
				"Opt MP %q must have exactly one of objvar/objequ", mp.Name)
		}
	}
	return nil
}

// classifyEquations walks every selected MP's equations, separating them
// into VI-function rows (copied verbatim), nonlinear ConeInclusion
// constraints, and linear ConeInclusion constraints. The owning MP's
// objective equation is skipped (handled by stationarity instead).
func classifyEquations(src *ctr.Container, mps []*empdag.MP, remap varRemap) ([]vifuncRow, []constraintWork, []constraintWork, error) {
	var vifuncs []vifuncRow
	var nlCons, linCons []constraintWork
	for _, mp := range mps {
		for _, ei := range mp.Equs {
			if !src.EquActive(ei) {
				continue
			}
			if mp.Type == empdag.Opt && ei == mp.ObjEqu {
				continue
			}
			object, _, err := src.GetEquType(ei)
			if err != nil {
				return nil, nil, nil, err
			}
			switch {
			case mp.Type == empdag.Vi && object == ctr.Mapping:
				dual := src.EquMetaOf(ei).Dual
				newVi, ok := remap[dual]
				if !ok {
					return nil, nil, nil, rhperr.New(rhperr.Inconsistency, "fooc.Build",
						"VI-function equation %v is paired with variable %v outside the selected primal set", ei, dual)
				}
				vifuncs = append(vifuncs, vifuncRow{mp: mp, srcEi: ei, newVi: newVi})
			case object == ctr.ConeInclusion:
				eq := src.Equ(ei)
				cw := constraintWork{mp: mp, ei: ei, nonlinear: eq.Body.Tree != nil}
				if cw.nonlinear {
					nlCons = append(nlCons, cw)
				} else {
					linCons = append(linCons, cw)
				}
			default:
				return nil, nil, nil, rhperr.New(rhperr.NotImplemented, "fooc.Build",
					"equation %v (object=%v) in MP %q has no FOOC handling", ei, object, mp.Name)
			}
		}
	}
	return vifuncs, nlCons, linCons, nil
}

// zeroVIFunctionRows materializes an empty F-row for every primal variable
// flagged PptyPerpToZeroFunctionVi that did not already get a vifunc row
// from classifyEquations (spec.md §4.7 step 6).
func zeroVIFunctionRows(src *ctr.Container, order []ridx.Idx, owner map[ridx.Idx]*empdag.MP, existing []vifuncRow) []vifuncRow {
	has := make(map[ridx.Idx]bool, len(existing))
	for _, vf := range existing {
		has[vf.newVi] = true
	}
	var out []vifuncRow
	for i, vi := range order {
		newVi := ridx.FromInt(i)
		if has[newVi] {
			continue
		}
		vm := src.VarMetaOf(vi)
		if vm.Ppty&ctr.PptyPerpToZeroFunctionVi != 0 {
			out = append(out, vifuncRow{mp: owner[vi], srcEi: ridx.IdxNA, newVi: newVi})
		}
	}
	return out
}

func copyPrimalVars(target, src *ctr.Container, order []ridx.Idx, owner map[ridx.Idx]*empdag.MP) {
	for i, vi := range order {
		newVi := ridx.FromInt(i)
		sv := src.Var(vi)
		tv := target.Var(newVi)
		tv.Lb, tv.Ub = sv.Lb, sv.Ub
		tv.Level, tv.Mult, tv.Basis = sv.Level, sv.Mult, sv.Basis
		tv.VType, tv.Cone, tv.ConePayload = sv.VType, sv.Cone, sv.ConePayload
		tm := target.VarMetaOf(newVi)
		tm.MpId = owner[vi].Id
		tm.Type = ctr.MetaPrimal
	}
}

// allocateMultipliers assigns one dual variable per constraint, indices
// [n, n+len(cons)), in the nonlinear-then-linear order allCons is already
// sorted into (spec.md §4.7 step 4's variable-range layout).
func allocateMultipliers(target, src *ctr.Container, allCons []constraintWork, n int) map[ridx.Idx]ridx.Idx {
	muVar := make(map[ridx.Idx]ridx.Idx, len(allCons))
	for k, cw := range allCons {
		muIdx := ridx.FromInt(n + k)
		muVar[cw.ei] = muIdx
		_, tag, _ := src.GetEquType(cw.ei)
		lb, ub := cone.Bounds(tag)
		v := target.Var(muIdx)
		v.Lb, v.Ub = lb, ub
		srcEq := src.Equ(cw.ei)
		if srcEq.Mult != 0 {
			v.Level = srcEq.Mult
		} else {
			v.Level = cone.SeedStart(tag)
		}
		v.Cone = tag
		vm := target.VarMetaOf(muIdx)
		vm.MpId = cw.mp.Id
		vm.Type = ctr.MetaDual
	}
	return muVar
}

// stationarity builds, in place, every F-row's contribution coming from the
// objective (spec.md §4.7 step 7): ∂objective/∂vi, signed by the MP's
// sense, or a direct ±1 coefficient for the objvar case. The returned bool
// reports whether any differentiated function was nonsmooth.
func stationarity(src *ctr.Container, mps []*empdag.MP, remap varRemap, rows []*expr.Body, n int) (bool, error) {
	nonSmooth := false
	for _, mp := range mps {
		if mp.Type != empdag.Opt {
			continue
		}
		sign, err := senseSign(mp.Sense)
		if err != nil {
			return false, err
		}
		if mp.ObjVar.Valid() {
			newVi, ok := remap[mp.ObjVar]
			if !ok || newVi.Int() >= n {
				continue
			}
			rows[newVi.Int()].Lin.Push(newVi, sign)
			continue
		}
		objBody := src.Equ(mp.ObjEqu).Body
		sdtool := expr.NewSDTool(objBody, src.Pool)
		for _, vi := range mp.Vars {
			if !src.VarActive(vi) {
				continue
			}
			newVi, ok := remap[vi]
			if !ok || newVi.Int() >= n {
				continue
			}
			d, err := sdtool.Diff(vi)
			if err != nil {
				return false, err
			}
			remapped := d.Dup(remap)
			if sign < 0 {
				rows[newVi.Int()].Sub(remapped)
			} else {
				rows[newVi.Int()].Add(remapped)
			}
		}
		nonSmooth = nonSmooth || sdtool.NonSmooth()
	}
	return nonSmooth, nil
}

func senseSign(s empdag.Sense) (float64, error) {
	switch s {
	case empdag.Min:
		return 1, nil
	case empdag.Max:
		return -1, nil
	default:
		return 0, rhperr.New(rhperr.InvalidValue, "fooc.Build",
			"objective sense %v has no FOOC sign convention (only Min/Max are supported)", s)
	}
}

// normalCone adds, in place, every constraint's contribution to the primal
// stationarity rows it touches (spec.md §4.7 step 8): a linear term
// -coeff·μ for each linear-part variable, and -∂tree/∂vi·μ, fused into the
// row's tree, for each nonlinear tree variable, so a variable in both parts
// receives -∂body/∂vi·μ in total. Variables remapped at or
// beyond n are auxiliary (no stationarity row of their own, §4.7 step 1)
// and contribute nothing. The returned bool reports whether any
// differentiated function was nonsmooth.
func normalCone(src *ctr.Container, allCons []constraintWork, muVar map[ridx.Idx]ridx.Idx, remap varRemap, rows []*expr.Body, n int) (bool, error) {
	nonSmooth := false
	for _, cw := range allCons {
		eq := src.Equ(cw.ei)
		mu := muVar[cw.ei]
		if eq.Body.Lin != nil {
			eq.Body.Lin.Iterate(func(vi ridx.Idx, coeff float64) {
				newVi, ok := remap[vi]
				if !ok || newVi.Int() >= n {
					return
				}
				rows[newVi.Int()].Lin.Push(mu, -coeff)
			})
		}
		if eq.Body.Tree == nil {
			continue
		}
		// the linear part was handled above; differentiate the tree alone
		sdtool := expr.NewSDTool(&expr.Body{Lin: expr.NewLequ(), Tree: eq.Body.Tree}, src.Pool)
		for _, vi := range eq.Body.Tree.Vars() {
			newVi, ok := remap[vi]
			if !ok || newVi.Int() >= n {
				continue
			}
			d, err := sdtool.Diff(vi)
			if err != nil {
				return false, err
			}
			dnode := d.Dup(remap).ToNode(src.Pool)
			if dnode == nil {
				continue
			}
			muNode := expr.Var(mu, 1, src.Pool)
			contribution := expr.Umin(expr.Arithm(expr.OpMul, 2))
			mul := contribution.Children[0]
			if err := mul.AddChild(dnode); err != nil {
				return false, err
			}
			if err := mul.AddChild(muNode); err != nil {
				return false, err
			}
			rows[newVi.Int()].Add(&expr.Body{Lin: expr.NewLequ(), Tree: contribution})
		}
		nonSmooth = nonSmooth || sdtool.NonSmooth()
	}
	return nonSmooth, nil
}

// addVifuncBodies merges each VI-function equation's body into the F-row
// belonging to its dual variable (spec.md §4.7 steps 5/6: a VI-function row
// is the source equation's body plus whatever normal-cone contributions
// land on the same row). Zero-function rows (srcEi invalid) contribute
// nothing, leaving the row exactly as normalCone left it.
func addVifuncBodies(src *ctr.Container, vifuncs []vifuncRow, remap varRemap, rows []*expr.Body) {
	for _, vf := range vifuncs {
		if !vf.srcEi.Valid() {
			continue
		}
		body := src.Equ(vf.srcEi).Body.Dup(remap)
		rows[vf.newVi.Int()].Add(body)
	}
}

func materializeFRows(target *ctr.Container, rows []*expr.Body, order []ridx.Idx, remap varRemap, owner map[ridx.Idx]*empdag.MP, vifuncs []vifuncRow) error {
	chk.IntAssert(len(rows), len(order))
	roles := make(map[ridx.Idx]ctr.EquRole, len(vifuncs))
	for _, vf := range vifuncs {
		roles[vf.newVi] = ctr.RoleViFunction
	}
	for i, vi := range order {
		newVi := ridx.FromInt(i)
		eq := ctr.NewEquation(newVi)
		eq.Body = rows[i]
		eq.Object = ctr.Mapping
		target.AddEquation(eq)
		target.EquMetaOf(newVi).MpId = owner[vi].Id
		if role, ok := roles[newVi]; ok {
			target.EquMetaOf(newVi).Role = role
		} else {
			target.EquMetaOf(newVi).Role = ctr.RoleIsMap
		}
		if err := target.SetVarPerp(newVi, newVi); err != nil {
			return err
		}
	}
	return nil
}

func materializeConstraintRows(target, src *ctr.Container, allCons []constraintWork, muVar map[ridx.Idx]ridx.Idx, remap varRemap, n int) error {
	for k, cw := range allCons {
		ei := ridx.FromInt(n + k)
		mu := muVar[cw.ei]
		srcEq := src.Equ(cw.ei)
		eq := ctr.NewEquation(ei)
		eq.Body = srcEq.Body.Dup(remap)
		eq.Object = ctr.Mapping
		eq.Cst = srcEq.Cst
		target.AddEquation(eq)
		target.EquMetaOf(ei).MpId = cw.mp.Id
		target.EquMetaOf(ei).Role = ctr.RoleConstraint
		if err := target.SetVarPerp(mu, ei); err != nil {
			return err
		}
	}
	return nil
}
