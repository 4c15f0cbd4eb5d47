// Package ridx defines the index sentinels shared by every entity kind in
// the engine: variables (vi), equations (ei), MP ids, Nash ids and DAG uids
// (spec.md §3.1). Keeping the sentinels in one tiny package, rather than
// duplicated per package as the teacher duplicates chk.INT_NOT_FOUND-style
// sentinels, avoids the classic "which IdxInvalid did you mean" bug when
// vi and ei get passed around together.
package ridx

// Idx is a non-negative integer index into a dense entity array, or one of
// the reserved sentinels below.
type Idx int32

const (
	// IdxNA marks an explicit "not applicable" (e.g. a dropped rosetta
	// entry, or a variable with no dual equation).
	IdxNA Idx = -1

	// IdxInvalid marks a programming error: an index that was never
	// assigned or was read before initialization.
	IdxInvalid Idx = -2

	// IdxNotFound marks the result of a failed lookup (name, etc.).
	IdxNotFound Idx = -3

	// IdxMaxValid is the exclusive upper bound of valid indices: valid
	// indices live in [0, IdxMaxValid), anything at or above it is invalid,
	// and anything < 0 is one of the sentinels above.
	IdxMaxValid Idx = 1<<31 - 1
)

// Valid reports whether idx is usable as a dense-array index, i.e. not one
// of the negative sentinels and below IdxMaxValid.
func (idx Idx) Valid() bool {
	return idx >= 0 && idx < IdxMaxValid
}

// Int returns the index as a plain int, for slice indexing. Callers must
// have checked Valid() first; this does not re-check.
func (idx Idx) Int() int { return int(idx) }

// FromInt converts a plain int (e.g. a loop counter) into an Idx.
func FromInt(i int) Idx { return Idx(i) }
