package empdag

import "github.com/xhub/rhpgo/ridx"

// Sense is an MP's optimization sense (spec.md §3.7).
type Sense uint8

const (
	NoSense Sense = iota
	Min
	Max
	Feas
	DualSense
)

// MPType is an MP's kind (spec.md §3.7).
type MPType uint8

const (
	Undef MPType = iota
	Opt
	Vi
	Ccflib
)

// MPStatus is the per-MP status bitset (spec.md §3.7).
type MPStatus uint32

const (
	MPFinalized MPStatus = 1 << iota
)

// VFPayloadKind is the tag of a value-function arc's payload (spec.md
// §3.8).
type VFPayloadKind uint8

const (
	VFUnset VFPayloadKind = iota
	VFBasic
	VFMultipleBasic
	VFLequ
	VFMultipleLequ
	VFEqu
	VFMultipleEqu
)

// VFPayload describes how a child MP's objective value enters the parent
// along a value-function arc. A Basic payload references exactly one
// equation in the parent MP where the child's objective substitutes.
type VFPayload struct {
	Kind VFPayloadKind
	Equ  ridx.Idx   // meaningful for Basic/Equ
	Equs []ridx.Idx // meaningful for MultipleBasic/MultipleLequ/MultipleEqu
}

// Carc is a control edge out of an MP. The child may be an MP or a Nash
// node, so the target is a full Uid rather than a bare id.
type Carc struct {
	Child Uid
}

// Varc is a value-function edge out of an MP, targeting a child MP with a
// payload describing how its objective substitutes into the parent.
type Varc struct {
	Child   ridx.Idx
	Payload VFPayload
}

// MP is one Mathematical Program node (spec.md §3.7).
type MP struct {
	Id       ridx.Idx
	Name     string
	Type     MPType
	Sense    Sense
	Probtype string

	Vars []ridx.Idx
	Equs []ridx.Idx

	// Opt-only:
	ObjEqu ridx.Idx
	ObjVar ridx.Idx

	// Vi-only:
	NumCons  int
	NumZeros int

	Status MPStatus
	NextId ridx.Idx // forwarding chain when this MP was replaced (§4.6)

	Carcs []Carc
	Varcs []Varc
	Rarcs []Uid // reverse arcs: uids of parents (MP or Nash)
}

func newMP(id ridx.Idx, name string) *MP {
	return &MP{Id: id, Name: name, ObjEqu: ridx.IdxNA, ObjVar: ridx.IdxNA, NextId: ridx.IdxNA}
}

// Finalized reports the MPFinalized status bit.
func (m *MP) Finalized() bool { return m.Status&MPFinalized != 0 }

// Nash is a Nash-equilibrium node: a set of child MPs, each playing a best
// response to the others (spec.md §3.8).
type Nash struct {
	Id    ridx.Idx
	Name  string
	Arcs  []ridx.Idx // children MPs, control semantics
	Rarcs []Uid
}

func newNash(id ridx.Idx, name string) *Nash {
	return &Nash{Id: id, Name: name}
}
