// Package model implements the model shell and upstream linkage of
// spec.md §3.9/§4.6 (C6): a model owns one container, one EMPDAG, a
// backend tag, and a reference-counted pointer to the upstream model it
// was transformed from. Grounded on fem/fem.go's FEM struct (owns a
// Domain + solver state, borrows/releases nothing itself but mirrors the
// "one shell per stage, linked to the previous stage" shape) and
// fem/domain.go's Domain.Free lifecycle.
package model

import (
	"github.com/cpmech/gosl/io"

	"github.com/xhub/rhpgo/ctr"
	"github.com/xhub/rhpgo/empdag"
	"github.com/xhub/rhpgo/rhperr"
	"github.com/xhub/rhpgo/ridx"
	"github.com/xhub/rhpgo/rosetta"
)

// Backend is the model's originating front-end (spec.md §3.9).
type Backend uint8

const (
	BackendRHP Backend = iota
	BackendGAMS
	BackendAMPL
	BackendJulia
)

// Status is the model-level status bitset (spec.md §3.9).
type Status uint32

const (
	MetaChecked Status = 1 << iota
	Checked
	Finalized
)

// ProbType is the overall problem-type tag a model carries (distinct from
// empdag.Type: this is the solver-facing classification after FOOC may
// have run, e.g. "mcp" or "mpec").
type ProbType uint8

const (
	ProbUndef ProbType = iota
	ProbOpt
	ProbVi
	ProbMcp
	ProbEmp
	ProbMopec
	ProbBilevel
	ProbMpec
	ProbCns
	ProbDnlp // set when a non-smooth function upgrades an otherwise-smooth model (§4.7 failure mode)
)

// Timings is shared, by pointer, between a model and everything it links
// to downstream (spec.md §4.6's link_models "shares the Timings struct").
type Timings struct {
	BuildNanos int64
	FoocNanos  int64
	SolveNanos int64
}

// Model is one model shell (spec.md §3.9).
type Model struct {
	Name    string
	Backend Backend
	Status  Status
	Prob    ProbType

	Ctr    *ctr.Container
	EmpDag *empdag.EmpDag

	upstream *Model
	refs     int

	// RosettaUp maps the upstream model's indices to this model's,
	// written once when the transformation that produced this model
	// compresses its source (spec.md §3.10); nil when no compression
	// occurred on this hop.
	RosettaUp *rosetta.Rosetta

	Timings *Timings
}

// New returns a fresh, unlinked model shell.
func New(name string, backend Backend) *Model {
	return &Model{
		Name:    name,
		Backend: backend,
		Ctr:     ctr.NewContainer(),
		EmpDag:  empdag.New(),
		Timings: &Timings{},
	}
}

// LinkModels sets dst's upstream pointer to src (borrowing it) and shares
// src's Timings struct, per §4.6's link_models contract. ctr_up linkage
// (an ancestor's container reachable for rosetta composition) is carried
// via the Model.Upstream().Ctr accessor rather than a separate field,
// since Go has no raw pointer aliasing concern stopping the container
// from being reached through the model pointer directly.
func LinkModels(src, dst *Model) {
	dst.upstream = src.borrow()
	dst.Timings = src.Timings
}

func (m *Model) borrow() *Model {
	m.refs++
	return m
}

// Release decrements the refcount; on reaching 0 the model is considered
// destroyed (Go's GC reclaims it once unreferenced — Release exists to
// make the lifecycle explicit and symmetric with borrow, matching the
// teacher's own borrow/release pairing even though nothing needs to run
// at zero).
func (m *Model) Release() {
	if m == nil {
		return
	}
	m.refs--
}

// Upstream returns the model this one was transformed from, or nil for a
// source model.
func (m *Model) Upstream() *Model { return m.upstream }

// AllRosettas walks m's upstream chain to the root source model and
// returns, per depth, the composed rosetta from the root model's indices
// to that depth's (spec.md §4.4's compute_all_rosettas). A hop with no
// RosettaUp (no compression occurred there) contributes an identity map
// sized to its parent's container.
func AllRosettas(m *Model) []*rosetta.Rosetta {
	var chain []*Model
	for cur := m; cur != nil; cur = cur.upstream {
		chain = append(chain, cur)
	}
	// chain is leaf-first; hops run root-first.
	var hops []*rosetta.Rosetta
	for i := len(chain) - 2; i >= 0; i-- {
		child := chain[i]
		if child.RosettaUp != nil {
			hops = append(hops, child.RosettaUp)
			continue
		}
		parent := chain[i+1]
		id := rosetta.New(parent.Ctr.TotalN(), parent.Ctr.TotalM())
		for j := range id.VarMap {
			id.VarMap[j] = ridx.FromInt(j)
		}
		for j := range id.EquMap {
			id.EquMap[j] = ridx.FromInt(j)
		}
		hops = append(hops, id)
	}
	return rosetta.ComputeAllRosettas(hops)
}

// Check runs §4.6's check(mdl): ensures finalization, validates the
// problem-type/objective triple, and sets Checked on success. It is a
// no-op if Checked is already set.
func (m *Model) Check() error {
	if m.Status&Checked != 0 {
		return nil
	}
	if !m.EmpDag.IsFinalized() {
		if err := m.EmpDag.Finalize(); err != nil {
			return err
		}
	}
	switch m.Prob {
	case ProbOpt:
		// "the EMPDAG is empty" (§4.6) means the simple single-problem
		// case: no explicit EMP structure beyond the one MP it implies.
		// A full multi-MP EMP model's objective triple is enforced per-MP
		// by CheckMetadata/FOOC instead.
		if m.EmpDag.Type == empdag.Empty || m.EmpDag.Type == empdag.SingleOpt {
			if len(m.EmpDag.MPs) != 1 {
				return rhperr.New(rhperr.InvalidModel, "model.Check", "Opt model requires exactly one MP when the EMPDAG is empty")
			}
			mp := m.EmpDag.MPs[0]
			hasObjVar := mp.ObjVar.Valid()
			hasObjEqu := mp.ObjEqu.Valid()
			if hasObjVar == hasObjEqu {
				return rhperr.New(rhperr.InvalidModel, "model.Check", "Opt MP must have exactly one of objvar/objequ")
			}
		}
	case ProbCns, ProbVi, ProbMcp:
		for _, mp := range m.EmpDag.MPs {
			if mp.ObjVar.Valid() || mp.ObjEqu.Valid() {
				return rhperr.New(rhperr.InvalidModel, "model.Check", "CNS/VI/MCP models must not declare an objective")
			}
		}
	}
	m.Status |= Checked
	return nil
}

// CheckMetadata runs after finalize for any type carrying metadata (Opt
// variants, MCP, MPEC, VI, EMP-but-not-simple-opt), delegating the
// per-entity invariants to ctr.CheckMetadata and adding the MCP squareness
// property on top.
func (m *Model) CheckMetadata() error {
	if err := m.Ctr.CheckMetadata(); err != nil {
		return err
	}
	if m.Prob == ProbMcp {
		if m.Ctr.N() != m.Ctr.M() {
			return rhperr.New(rhperr.ModelIncompleteMetadata, "model.CheckMetadata", "MCP model must be square: n=%d, m=%d", m.Ctr.N(), m.Ctr.M())
		}
	}
	m.Status |= MetaChecked
	return nil
}

// ResolveMP follows m's forwarding chain (MP.NextId, set when an MP was
// replaced by a transformed one) to its final replacement, refusing to
// loop forever on a malformed cycle by bounding the walk at len(mps)+1
// hops (DESIGN.md Open Question: the source's implicit infinite loop
// becomes an explicit RuntimeError here).
func (m *Model) ResolveMP(start ridx.Idx) (ridx.Idx, error) {
	maxHops := len(m.EmpDag.MPs) + 1
	cur := start
	for hop := 0; hop < maxHops; hop++ {
		mp := m.EmpDag.MPs[cur.Int()]
		if !mp.NextId.Valid() {
			if Verbose && hop > 0 {
				io.Pf("model %s: MP %v forwarded to %v (%d hops)\n", m.Name, start, cur, hop)
			}
			return cur, nil
		}
		cur = mp.NextId
	}
	return ridx.IdxInvalid, rhperr.New(rhperr.RuntimeError, "model.ResolveMP", "next_id forwarding chain exceeded %d hops starting from MP %v", maxHops, start)
}
