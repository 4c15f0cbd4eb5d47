package model

import (
	"math"

	"github.com/cpmech/gosl/io"

	"github.com/xhub/rhpgo/ctr"
	"github.com/xhub/rhpgo/ridx"
	"github.com/xhub/rhpgo/rosetta"
)

// Verbose enables the solution-report summary line, mirroring chk.Verbose's
// package-level toggle in the teacher tree.
var Verbose bool

// SolReport walks parent's variables/equations and, for each, copies the
// corresponding value/multiplier/basis from child using r (the rosetta
// mapping parent indices to child indices), per §4.6's solreport contract.
// A parent entity with no valid rosetta entry has no replacement in the
// child and gets its value/multiplier set to NaN and basis reset to
// Unset, rather than silently keeping a stale value from a prior solve.
func SolReport(parent, child *Model, r *rosetta.Rosetta) {
	nvars, nequs, dropped := 0, 0, 0

	for i := 0; i < parent.Ctr.TotalN(); i++ {
		pv := ridx.FromInt(i)
		cv := r.Map(pv)
		dst := parent.Ctr.Var(pv)
		if !cv.Valid() {
			dst.Level = math.NaN()
			dst.Mult = math.NaN()
			dst.Basis = ctr.BasisUnset
			dropped++
			continue
		}
		src := child.Ctr.Var(cv)
		dst.Level = src.Level
		dst.Mult = src.Mult
		dst.Basis = src.Basis
		nvars++
	}

	for i := 0; i < parent.Ctr.TotalM(); i++ {
		pe := ridx.FromInt(i)
		ce := r.MapEqu(pe)
		dst := parent.Ctr.Equ(pe)
		if !ce.Valid() {
			dst.Value = math.NaN()
			dst.Mult = math.NaN()
			dst.Basis = ctr.BasisUnset
			dropped++
			continue
		}
		src := child.Ctr.Equ(ce)
		dst.Value = src.Value
		dst.Mult = src.Mult
		dst.Basis = src.Basis
		nequs++
	}

	if Verbose {
		io.Pf("solreport %s <- %s: %d vars, %d equs copied, %d entities NaN-filled\n",
			parent.Name, child.Name, nvars, nequs, dropped)
	}
}
