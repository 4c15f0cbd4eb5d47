// Package empdag implements the Extended Mathematical Programming DAG
// (spec.md §3.2, §3.7, §3.8, §4.5): nodes are Mathematical Programs or
// Nash equilibria, arcs are control or value-function edges. Grounded on
// ele/factory.go's name-keyed registries (for name/id lookup) and
// fem/fem.go's stage-sequencing state machine (for the finalize/check
// lifecycle: structural-only until finalize, terminal label until the
// next mutation invalidates it).
package empdag

import "github.com/xhub/rhpgo/ridx"

// Kind distinguishes an MP node from a Nash node within a DAG uid.
type Kind uint8

const (
	KindMP Kind = iota
	KindNash
)

// Uid is a single composite tag encoding both Kind and the node's id
// within its kind's array, plus an auxiliary bit VF arcs use to
// distinguish "edge into the VF payload itself" from "edge into the
// child MP" (spec.md §3.2). Bit layout: bit31=kind, bit30=aux, bits0-29=id.
type Uid uint32

const (
	kindBit = 1 << 31
	auxBit  = 1 << 30
	idMask  = auxBit - 1
)

// MakeUid builds a Uid from a kind and id.
func MakeUid(k Kind, id ridx.Idx) Uid {
	u := Uid(id.Int()) & idMask
	if k == KindNash {
		u |= kindBit
	}
	return u
}

// WithAux returns u with the auxiliary "edge into VF payload" bit set.
func (u Uid) WithAux() Uid { return u | auxBit }

// HasAux reports whether the auxiliary bit is set.
func (u Uid) HasAux() bool { return u&auxBit != 0 }

// Kind reports whether u names an MP or a Nash node.
func (u Uid) Kind() Kind {
	if u&kindBit != 0 {
		return KindNash
	}
	return KindMP
}

// Id extracts the id within the node's kind array.
func (u Uid) Id() ridx.Idx { return ridx.FromInt(int(u & idMask)) }

// IsMP/IsNash are the "one predicate tests the kind" helpers named by
// spec.md §3.2.
func (u Uid) IsMP() bool   { return u.Kind() == KindMP }
func (u Uid) IsNash() bool { return u.Kind() == KindNash }
