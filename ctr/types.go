// Package ctr implements the algebraic container (spec.md §3.3–§3.6,
// §4.2): the holder of variables, equations, and the cross-reference
// matrix between them. Grounded on fem/domain.go's Domain (dense
// Vid2node/Cid2elem index maps, per-stage resizing, subset bookkeeping)
// and ele/solution.go's flat solution-state arrays.
package ctr

import (
	"math"

	"github.com/xhub/rhpgo/cone"
	"github.com/xhub/rhpgo/expr"
	"github.com/xhub/rhpgo/ridx"
)

// BasisStatus is a variable or equation's basis state (spec.md §3.3/§3.4).
type BasisStatus uint8

const (
	BasisUnset BasisStatus = iota
	BasisLower
	BasisUpper
	BasisBasic
	BasisSuperbasic
	BasisFixed
)

// VarType is a variable's declared kind (spec.md §3.3).
type VarType uint8

const (
	Continuous VarType = iota
	Binary
	Integer
	SemiContinuous
	SemiInteger
	SOS1
	SOS2
	Indicator
	Conic // a "conic marker": Cone/ConePayload below are meaningful
)

// VarMetaType classifies a variable's role for metadata checking (§3.6).
type VarMetaType uint8

const (
	MetaUndefined VarMetaType = iota
	MetaPrimal
	MetaDual
	MetaObjective
	MetaDefiningMap
)

// VarPpty is the per-variable property bitset (§3.6).
type VarPpty uint32

const (
	PptyIsDeleted VarPpty = 1 << iota
	PptyIsExplicitlyDefined
	PptyIsObjMin
	PptyIsObjMax
	PptyPerpToViFunction
	PptyPerpToZeroFunctionVi
)

// EquObject is an equation's semantic object (§3.4).
type EquObject uint8

const (
	ConeInclusion EquObject = iota
	Mapping
	BooleanRelation
)

func (o EquObject) String() string {
	switch o {
	case ConeInclusion:
		return "ConeInclusion"
	case Mapping:
		return "Mapping"
	case BooleanRelation:
		return "BooleanRelation"
	default:
		return "Unknown"
	}
}

// EquRole classifies an equation's role for metadata checking (§3.6).
type EquRole uint8

const (
	RoleUndefined EquRole = iota
	RoleConstraint
	RoleViFunction
	RoleObjective
	RoleIsMap
)

// EquPpty is the per-equation property bitset (§3.6); kept separate from
// VarPpty even though the bit values overlap, since the two bitsets are
// never compared to each other.
type EquPpty uint32

const (
	EquPptyIsDeleted EquPpty = 1 << iota
)

// Variable is one entry of the container's variable array (§3.3).
type Variable struct {
	Index       ridx.Idx
	Lb, Ub      float64
	Level       float64
	Mult        float64
	Basis       BasisStatus
	VType       VarType
	Cone        cone.Tag
	ConePayload cone.Payload
}

// Fixed reports whether lb == ub, in which case §3.3 requires the
// variable be treated as fixed with Level == that value.
func (v *Variable) Fixed() bool { return v.Lb == v.Ub }

// ValidBounds reports the §3.3 invariant lb <= ub.
func (v *Variable) ValidBounds() bool { return v.Lb <= v.Ub }

// VarMeta is the metadata record for a variable (§3.6).
type VarMeta struct {
	MpId ridx.Idx
	Type VarMetaType
	Ppty VarPpty
	Dual ridx.Idx // paired equation index, or IdxNA
}

// BasicType extracts a small enum from the mutually-exclusive subset of
// Ppty bits (§3.6 "a basic type extractor").
func (m *VarMeta) BasicType() VarPpty {
	for _, b := range []VarPpty{PptyIsObjMin, PptyIsObjMax, PptyPerpToViFunction, PptyPerpToZeroFunctionVi} {
		if m.Ppty&b != 0 {
			return b
		}
	}
	return 0
}

// Equation is one entry of the container's equation array (§3.4).
type Equation struct {
	Index  ridx.Idx
	Object EquObject
	Cone   cone.Tag
	Cst    float64 // p.cst: negated RHS under the ConeInclusion sign convention
	Value  float64
	Mult   float64
	Basis  BasisStatus
	Body   *expr.Body
}

// NewEquation returns an equation with an empty body, ready for Push/SetTree.
func NewEquation(idx ridx.Idx) *Equation {
	return &Equation{Index: idx, Body: expr.NewBody()}
}

// Eval evaluates c + Σcoeff·x + tree(x) is NOT implemented here: the core
// never evaluates numerically (spec.md §2 Non-goals: "does not perform
// numerical optimization itself"). Only the solver driver, via its own
// callback machinery (solverapi), evaluates bodies at a point.

// EquMeta is the metadata record for an equation (§3.6).
type EquMeta struct {
	MpId ridx.Idx
	Role EquRole
	Ppty EquPpty
	Dual ridx.Idx // paired variable index, or IdxNA
}

// Cell is one membership entry in a variable's column view: it appears in
// equation Ei, linearly (IsNL==false, with the coefficient available via
// the equation's own Lequ) or nonlinearly (IsNL==true).
type Cell struct {
	Ei   ridx.Idx
	IsNL bool
}

// specialInfinity mirrors expr.normalizeSpecial's sentinel-to-IEEE mapping
// for bounds arriving from a front-end (kept local since ctr doesn't need
// the rest of expr's pool machinery for this).
func specialInfinity(v float64) float64 {
	const plus = 1e300
	const minus = -1e300
	switch v {
	case plus:
		return math.Inf(1)
	case minus:
		return math.Inf(-1)
	default:
		return v
	}
}
