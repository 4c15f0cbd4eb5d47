package empdag

import (
	"github.com/xhub/rhpgo/rhperr"
	"github.com/xhub/rhpgo/ridx"
)

// Finalize runs the §4.5.3 lifecycle: finalize every MP, resolve uid_root
// if necessary, run Check, then infer Type. uid_root is always tagged
// *before* InferType runs — the teacher's original ordering tagged the
// root only as a side effect of diagnostics, which meant a single-root
// EMPDAG could still infer Unset/Complex if check ran before tagging; this
// implementation fixes that ordering bug (DESIGN.md Open Question).
func (d *EmpDag) Finalize() error {
	for _, mp := range d.MPs {
		mp.Status |= MPFinalized
	}

	if len(d.roots) == 0 && len(d.MPs)+len(d.Nashes) > 0 {
		rootless := d.findRootless()
		switch len(rootless) {
		case 1:
			d.SetRoot(rootless[0])
			d.roots = append(d.roots, rootless[0])
		case 0:
			return rhperr.New(rhperr.EMPIncorrectInput, "empdag.Finalize", "no root and no rootless node to infer one from")
		default:
			return rhperr.New(rhperr.EMPIncorrectInput, "empdag.Finalize", "ambiguous roots: %d rootless nodes found", len(rootless))
		}
	} else if len(d.roots) == 1 && !d.hasRoot {
		d.SetRoot(d.roots[0])
	}

	if err := d.Check(); err != nil {
		return err
	}

	d.Type = d.inferType()
	d.finalized = true
	return nil
}

// findRootless returns every MP/Nash node with zero reverse arcs.
func (d *EmpDag) findRootless() []Uid {
	var out []Uid
	for i, mp := range d.MPs {
		if len(mp.Rarcs) == 0 {
			out = append(out, MakeUid(KindMP, ridx.FromInt(i)))
		}
	}
	for i, n := range d.Nashes {
		if len(n.Rarcs) == 0 {
			out = append(out, MakeUid(KindNash, ridx.FromInt(i)))
		}
	}
	return out
}

// Check runs the §4.5.3 structural audit: every active MP has metadata
// (enforced by ctr.CheckMetadata, not here — this is purely structural),
// every node is reachable from roots, every Nash has >=1 child. It
// collects every violation and returns the first, per §7's diagnostics
// policy.
func (d *EmpDag) Check() error {
	var mc rhperr.MultiCheck

	if len(d.MPs) == 0 && len(d.Nashes) == 0 {
		return nil
	}

	if len(d.roots) == 0 {
		mc.Add(rhperr.New(rhperr.EMPIncorrectInput, "empdag.Check", "no roots declared"))
		return mc.First()
	}

	reachable := make(map[Uid]bool)
	var walk func(Uid)
	walk = func(u Uid) {
		if reachable[u] {
			return
		}
		reachable[u] = true
		switch u.Kind() {
		case KindMP:
			mp := d.MP(u)
			for _, c := range mp.Carcs {
				walk(c.Child)
			}
			for _, v := range mp.Varcs {
				walk(MakeUid(KindMP, v.Child))
			}
		case KindNash:
			n := d.Nash(u)
			for _, c := range n.Arcs {
				walk(MakeUid(KindMP, c))
			}
		}
	}
	for _, r := range d.roots {
		walk(r)
	}

	for i, mp := range d.MPs {
		u := MakeUid(KindMP, ridx.FromInt(i))
		if !reachable[u] {
			mc.Add(rhperr.New(rhperr.EMPIncorrectInput, "empdag.Check", "MP %q unreachable from any root", mp.Name))
		}
	}
	for i, n := range d.Nashes {
		u := MakeUid(KindNash, ridx.FromInt(i))
		if !reachable[u] {
			mc.Add(rhperr.New(rhperr.EMPIncorrectInput, "empdag.Check", "Nash %q unreachable from any root", n.Name))
		}
		if len(n.Arcs) == 0 {
			mc.Add(rhperr.New(rhperr.EMPIncorrectInput, "empdag.Check", "Nash %q has no child MP", n.Name))
		}
	}

	return mc.First()
}

// inferType implements the §4.5.3 decision table: emptiness first, then
// CCF nesting, multilevel nesting, the lower-level-problem shapes
// (Epec/Mpec, Complex for several roots, else Bilevel), and finally the
// shapes with no lower level, classified by root kind and MP count, with
// TypeOpt as the fallback.
func (d *EmpDag) inferType() Type {
	if len(d.MPs) == 0 && len(d.Nashes) == 0 {
		return Empty
	}

	d.Features = d.computeFeatures()
	f := d.Features

	rootIsNash := d.uidRoot.IsNash()
	singleMP := len(d.MPs) == 1 && len(d.Nashes) == 0
	hasLower := f.HasVFArcs || f.HasCtrlEdges

	switch {
	case f.HasCcf:
		return NestedCcf
	case f.HasMultiLevel && rootIsNash:
		return MultilevelMopec
	case f.HasMultiLevel:
		return Multilevel
	case hasLower && rootIsNash:
		return Epec
	case hasLower && f.HasEquilOrVi:
		return Mpec
	case hasLower && f.MultipleRoots:
		return Complex
	case hasLower:
		return Bilevel
	case f.HasEquilOrVi && rootIsNash:
		return Mopec
	case f.HasEquilOrVi && singleMP:
		return SingleVi
	case f.HasEquilOrVi:
		return TypeVi
	case rootIsNash:
		return Mopec
	case singleMP:
		return SingleOpt
	default:
		return TypeOpt
	}
}

func (d *EmpDag) computeFeatures() Features {
	f := Features{RootIsNash: d.uidRoot.IsNash(), MultipleRoots: len(d.roots) > 1}
	for _, mp := range d.MPs {
		if len(mp.Varcs) > 0 {
			f.HasVFArcs = true
			for _, v := range mp.Varcs {
				child := d.MP(MakeUid(KindMP, v.Child))
				if len(child.Varcs) > 0 || len(child.Carcs) > 0 {
					f.HasMultiLevel = true
				}
			}
		}
		for _, c := range mp.Carcs {
			f.HasCtrlEdges = true
			if c.Child.IsMP() {
				child := d.MP(c.Child)
				if len(child.Varcs) > 0 || len(child.Carcs) > 0 {
					f.HasMultiLevel = true
				}
			}
		}
		if mp.Type == Vi {
			f.HasEquilOrVi = true
		}
		if mp.Type == Ccflib {
			f.HasCcf = true
		}
	}
	return f
}

// HasCCF reports whether any MP is a CCF/OVF library problem; the
// orchestrator consults this to decide whether a CCF reformulation pass
// must run before FOOC (spec.md §4.8).
func (d *EmpDag) HasCCF() bool {
	for _, mp := range d.MPs {
		if mp.Type == Ccflib {
			return true
		}
	}
	return false
}
