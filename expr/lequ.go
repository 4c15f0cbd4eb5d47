package expr

import "github.com/xhub/rhpgo/ridx"

// Term is one (variable, coefficient) entry of a linear part.
type Term struct {
	Vi    ridx.Idx
	Coeff float64
}

// Lequ is the linear part of an equation body: an ordered sequence of
// (vi, coefficient) pairs with coefficient != 0 after canonicalization and
// no duplicate vi (spec.md §3.4/§4.1). It is the Go analogue of the
// teacher's dense per-element stiffness row before assembly, except it
// stays sparse and keyed by variable index rather than local DOF position.
type Lequ struct {
	terms []Term
	index map[ridx.Idx]int // vi -> position in terms
}

// NewLequ returns an empty linear part.
func NewLequ() *Lequ {
	return &Lequ{index: make(map[ridx.Idx]int)}
}

// Push adds coeff to the term for vi (creating it if absent). A term whose
// coefficient becomes exactly zero is removed, preserving the "coefficient
// != 0" invariant.
func (l *Lequ) Push(vi ridx.Idx, coeff float64) {
	if pos, ok := l.index[vi]; ok {
		l.terms[pos].Coeff += coeff
		if l.terms[pos].Coeff == 0 {
			l.removeAt(pos)
		}
		return
	}
	if coeff == 0 {
		return
	}
	l.index[vi] = len(l.terms)
	l.terms = append(l.terms, Term{Vi: vi, Coeff: coeff})
}

// removeAt deletes the term at position pos, keeping l.index consistent
// with the resulting shift of every term after pos.
func (l *Lequ) removeAt(pos int) {
	removed := l.terms[pos].Vi
	l.terms = append(l.terms[:pos], l.terms[pos+1:]...)
	delete(l.index, removed)
	for i := pos; i < len(l.terms); i++ {
		l.index[l.terms[i].Vi] = i
	}
}

// Find returns the coefficient of vi and whether it is present.
func (l *Lequ) Find(vi ridx.Idx) (float64, bool) {
	pos, ok := l.index[vi]
	if !ok {
		return 0, false
	}
	return l.terms[pos].Coeff, true
}

// MergeAdd adds every term of other into l (fused add, per C1's "fused
// add/sub of expressions").
func (l *Lequ) MergeAdd(other *Lequ) {
	if other == nil {
		return
	}
	for _, t := range other.terms {
		l.Push(t.Vi, t.Coeff)
	}
}

// MergeSub subtracts every term of other from l.
func (l *Lequ) MergeSub(other *Lequ) {
	if other == nil {
		return
	}
	for _, t := range other.terms {
		l.Push(t.Vi, -t.Coeff)
	}
}

// Scale multiplies every coefficient by s. A zero scale empties the part.
func (l *Lequ) Scale(s float64) {
	if s == 0 {
		l.terms = l.terms[:0]
		l.index = make(map[ridx.Idx]int)
		return
	}
	for i := range l.terms {
		l.terms[i].Coeff *= s
	}
}

// Len returns the number of nonzero terms.
func (l *Lequ) Len() int { return len(l.terms) }

// Iterate calls fn for every (vi, coeff) term, in insertion order. Safe to
// call repeatedly (restartable, per C2's "lazy sequences (finite,
// restartable)" contract even though this implementation is eager).
func (l *Lequ) Iterate(fn func(vi ridx.Idx, coeff float64)) {
	for _, t := range l.terms {
		fn(t.Vi, t.Coeff)
	}
}

// Dup returns an independent deep copy.
func (l *Lequ) Dup() *Lequ {
	d := NewLequ()
	for _, t := range l.terms {
		d.Push(t.Vi, t.Coeff)
	}
	return d
}

// ApplyRosetta rewrites every vi through m, dropping terms whose variable
// maps to an invalid index (the rosetta's "dropped" sentinel).
func (l *Lequ) ApplyRosetta(m VarMapper) *Lequ {
	d := NewLequ()
	for _, t := range l.terms {
		nv := m.Map(t.Vi)
		if !nv.Valid() {
			continue
		}
		d.Push(nv, t.Coeff)
	}
	return d
}
