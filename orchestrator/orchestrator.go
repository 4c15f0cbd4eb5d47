// Package orchestrator implements the transformation dispatch of spec.md
// §4.8 (C8): read the source EMPDAG's inferred type, run the CCF/OVF
// reformulation pass when one is needed, then drive the FOOC builder and
// assemble the solver-facing model. Grounded on fem/fem.go's Run loop
// (dispatch-by-registry over stages, error propagation back to the single
// entry point) and the mdl/* per-kind registries (CCF variant selection).
package orchestrator

import (
	"time"

	"github.com/cpmech/gosl/io"

	"github.com/xhub/rhpgo/cone"
	"github.com/xhub/rhpgo/ctr"
	"github.com/xhub/rhpgo/empdag"
	"github.com/xhub/rhpgo/fooc"
	"github.com/xhub/rhpgo/model"
	"github.com/xhub/rhpgo/option"
	"github.com/xhub/rhpgo/rhperr"
	"github.com/xhub/rhpgo/ridx"
)

// Transform rewrites src into a solver-consumable model per the §4.8
// dispatch table. For the identity path the returned model IS src (the
// round-trip law of §8); every other path returns a fresh model linked
// upstream to src. The returned McpInfo is nil on the identity path.
func Transform(src *model.Model, opts *option.Table) (*model.Model, *fooc.McpInfo, error) {
	if err := src.Check(); err != nil {
		return nil, nil, err
	}

	if src.EmpDag.HasCCF() {
		if err := runCCFPass(src, opts); err != nil {
			return nil, nil, err
		}
		if err := src.EmpDag.Finalize(); err != nil {
			return nil, nil, err
		}
	}

	switch src.EmpDag.Type {
	case empdag.Empty, empdag.TypeOpt:
		return src, nil, nil
	case empdag.SingleOpt:
		as, err := opts.Choice(option.SolveSingleOptAs, option.SingleOptKeep, option.SingleOptMcp)
		if err != nil {
			return nil, nil, err
		}
		if as == option.SingleOptKeep {
			return src, nil, nil
		}
		return foocWhole(src, opts)
	case empdag.SingleVi, empdag.TypeVi, empdag.Mopec:
		return foocWhole(src, opts)
	case empdag.Bilevel, empdag.Mpec:
		return bilevelToMpec(src, opts)
	default:
		return nil, nil, rhperr.New(rhperr.NotImplemented, "orchestrator.Transform",
			"no reformulation path for EMPDAG type %v", src.EmpDag.Type).WithModel(src.Name)
	}
}

// runCCFPass selects the CCF/OVF reformulation variant from the option
// table and runs it over src; the registry-based indirection means a
// variant that was never registered surfaces as NotImplemented rather
// than a silent skip.
func runCCFPass(src *model.Model, opts *option.Table) error {
	name, err := opts.Choice(option.CCFVariant, "fenchel", "conjugate", "equilibrium")
	if err != nil {
		return err
	}
	var v cone.CCFVariant
	switch name {
	case "fenchel":
		v = cone.Fenchel
	case "conjugate":
		v = cone.Conjugate
	case "equilibrium":
		v = cone.Equilibrium
	}
	r, err := cone.Get(v)
	if err != nil {
		return err
	}
	return r.Reformulate(src)
}

// foocWhole runs FOOC over every MP of the DAG, producing an MCP model
// linked upstream to src.
func foocWhole(src *model.Model, opts *option.Table) (*model.Model, *fooc.McpInfo, error) {
	start := time.Now()
	target := model.New(src.Name+"_mcp", model.BackendRHP)
	model.LinkModels(src, target)

	tc, info, nonSmooth, err := fooc.Build(src.Ctr, src.EmpDag.MPs)
	if err != nil {
		return nil, nil, err
	}
	target.Ctr = tc
	target.Prob = model.ProbMcp
	target.RosettaUp = info.Rosetta
	if nonSmooth {
		src.Prob = model.ProbDnlp
	}
	target.Timings.FoocNanos += time.Since(start).Nanoseconds()

	if err := finishTransform(target, info, opts); err != nil {
		return nil, nil, err
	}
	return target, info, nil
}

// bilevelToMpec implements the §4.8 Bilevel/Mpec row: FOOC on the sub-dag
// rooted at the unique lower-level MP, then the upper MP's objective and
// constraints appended on top of the resulting MCP, remapped through the
// rosetta the FOOC pass produced.
func bilevelToMpec(src *model.Model, opts *option.Table) (*model.Model, *fooc.McpInfo, error) {
	root, ok := src.EmpDag.Root()
	if !ok || !root.IsMP() {
		return nil, nil, rhperr.New(rhperr.EMPIncorrectInput, "orchestrator.Transform",
			"bilevel reformulation requires a single MP root").WithModel(src.Name)
	}
	upper := src.EmpDag.MP(root)

	lowerUid, err := uniqueLowerChild(upper)
	if err != nil {
		return nil, nil, err
	}
	lowerIds := src.EmpDag.SubDag(lowerUid)
	lowerMPs := make([]*empdag.MP, len(lowerIds))
	for i, id := range lowerIds {
		lowerMPs[i] = src.EmpDag.MPs[id.Int()]
	}

	start := time.Now()
	target := model.New(src.Name+"_mpec", model.BackendRHP)
	model.LinkModels(src, target)

	tc, info, nonSmooth, err := fooc.Build(src.Ctr, lowerMPs)
	if err != nil {
		return nil, nil, err
	}
	if nonSmooth {
		src.Prob = model.ProbDnlp
	}

	newObjEqu, newObjVar, upperVars, upperEqus, err := appendUpperMP(tc, src.Ctr, upper, info)
	if err != nil {
		return nil, nil, err
	}

	target.Ctr = tc
	target.Prob = model.ProbMpec
	target.RosettaUp = info.Rosetta
	u := target.EmpDag.AddMP(upper.Sense, upper.Name)
	tmp := target.EmpDag.MP(u)
	tmp.Type = empdag.Opt
	tmp.ObjEqu = newObjEqu
	tmp.ObjVar = newObjVar
	tmp.Vars = upperVars
	tmp.Equs = upperEqus
	target.EmpDag.RootsAdd(u)
	if err := target.EmpDag.Finalize(); err != nil {
		return nil, nil, err
	}
	target.Timings.FoocNanos += time.Since(start).Nanoseconds()

	if err := finishTransform(target, info, opts); err != nil {
		return nil, nil, err
	}
	return target, info, nil
}

// uniqueLowerChild returns the single lower-level MP the upper MP
// controls; anything else is outside the Bilevel/Mpec path.
func uniqueLowerChild(upper *empdag.MP) (empdag.Uid, error) {
	var children []empdag.Uid
	for _, c := range upper.Carcs {
		children = append(children, c.Child)
	}
	for _, v := range upper.Varcs {
		children = append(children, empdag.MakeUid(empdag.KindMP, v.Child))
	}
	if len(children) != 1 {
		return 0, rhperr.New(rhperr.NotImplemented, "orchestrator.Transform",
			"bilevel reformulation requires exactly one lower-level problem, MP %q has %d", upper.Name, len(children))
	}
	if !children[0].IsMP() {
		return 0, rhperr.New(rhperr.NotImplemented, "orchestrator.Transform",
			"lower level of MP %q is a Nash node; only a single lower MP is supported", upper.Name)
	}
	return children[0], nil
}

// appendUpperMP copies the upper MP's variables (those the lower FOOC did
// not already pull in as auxiliaries), its constraints, and its objective
// into the FOOC container, extending info.Rosetta as it goes so solution
// reporting keeps working across the stitched model.
func appendUpperMP(tc, sc *ctr.Container, upper *empdag.MP, info *fooc.McpInfo) (objEqu, objVar ridx.Idx, vars, equs []ridx.Idx, err error) {
	objEqu, objVar = ridx.IdxNA, ridx.IdxNA

	for _, vi := range upper.Vars {
		if !sc.VarActive(vi) {
			continue
		}
		newVi := info.Rosetta.Map(vi)
		if !newVi.Valid() {
			sv := *sc.Var(vi)
			newVi = tc.AddVariable(sv)
			info.Rosetta.VarMap[vi.Int()] = newVi
		}
		vm := tc.VarMetaOf(newVi)
		vm.MpId = upper.Id
		vm.Type = ctr.MetaPrimal
		vars = append(vars, newVi)
	}

	for _, ei := range upper.Equs {
		if !sc.EquActive(ei) || ei == upper.ObjEqu {
			continue
		}
		srcEq := sc.Equ(ei)
		eq := ctr.NewEquation(ridx.IdxNA)
		eq.Object = srcEq.Object
		eq.Cone = srcEq.Cone
		eq.Cst = srcEq.Cst
		eq.Body = srcEq.Body.Dup(info.Rosetta)
		newEi := tc.AddEquation(eq)
		em := tc.EquMetaOf(newEi)
		em.MpId = upper.Id
		em.Role = ctr.RoleConstraint
		info.Rosetta.EquMap[ei.Int()] = newEi
		equs = append(equs, newEi)
	}

	switch {
	case upper.ObjEqu.Valid():
		srcEq := sc.Equ(upper.ObjEqu)
		eq := ctr.NewEquation(ridx.IdxNA)
		eq.Object = ctr.Mapping
		eq.Cst = srcEq.Cst
		eq.Body = srcEq.Body.Dup(info.Rosetta)
		objEqu = tc.AddEquation(eq)
		em := tc.EquMetaOf(objEqu)
		em.MpId = upper.Id
		em.Role = ctr.RoleObjective
		info.Rosetta.EquMap[upper.ObjEqu.Int()] = objEqu
		equs = append(equs, objEqu)
	case upper.ObjVar.Valid():
		objVar = info.Rosetta.Map(upper.ObjVar)
		if !objVar.Valid() {
			return ridx.IdxNA, ridx.IdxNA, nil, nil, rhperr.New(rhperr.Inconsistency, "orchestrator.Transform",
				"upper objvar %v was not carried into the target", upper.ObjVar)
		}
		tc.VarMetaOf(objVar).Type = ctr.MetaObjective
	default:
		return ridx.IdxNA, ridx.IdxNA, nil, nil, rhperr.New(rhperr.InvalidModel, "orchestrator.Transform",
			"upper MP %q has neither objvar nor objequ", upper.Name)
	}

	return objEqu, objVar, vars, equs, nil
}

// finishTransform runs the post-transform hygiene shared by every
// non-identity path: the optional O(nnz) cross-reference audit and the
// display_timings report.
func finishTransform(target *model.Model, info *fooc.McpInfo, opts *option.Table) error {
	if on, _ := opts.Bool(option.ExpensiveChecks); on {
		if err := target.Ctr.AuditCrossReference(); err != nil {
			return err
		}
	}
	if on, _ := opts.Bool(option.DisplayTimings); on {
		sink := opts.ConsoleSink()
		sink(option.LogInfo, io.Sf("%s: fooc %v  (mcp_size=%d, primal=%d, cons=%d)\n",
			target.Name, time.Duration(target.Timings.FoocNanos), info.McpSize, info.NPrimalVars, info.NConstraints))
	}
	return nil
}
