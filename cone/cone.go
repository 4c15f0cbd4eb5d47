// Package cone defines the cone tags usable as a variable's domain or as
// an equation's ConeInclusion target (spec.md §3.3/§3.4), plus the
// CCF/OVF reformulation-variant registry consulted by the orchestrator
// before FOOC (spec.md §4.8, SPEC_FULL.md §4). Grounded on the teacher's
// msolid/mdl per-kind dispatch: a constitutive model is selected by name
// and carries a small parameter payload, exactly like a cone tag with an
// optional POWER exponent.
package cone

import "math"

// Tag identifies a cone (spec.md §3.3).
type Tag uint8

const (
	RPlus  Tag = iota // ℝ₊
	RMinus            // ℝ₋
	Zero              // {0}
	Reals             // ℝ
	Polyhedral
	SOC
	RSOC
	EXP
	DualEXP
	POWER
	DualPOWER
)

func (t Tag) String() string {
	names := [...]string{"RPlus", "RMinus", "Zero", "Reals", "Polyhedral", "SOC", "RSOC", "EXP", "DualEXP", "POWER", "DualPOWER"}
	if int(t) < len(names) {
		return names[t]
	}
	return "Unknown"
}

// Payload carries the extra parameter a cone tag sometimes needs, e.g. the
// exponent of a POWER/DualPOWER cone.
type Payload struct {
	Exponent float64
}

// Bounds returns the scalar lower/upper bound a *dual* variable paired via
// cone inclusion `body(x) ∈ cone` (the convention fooc uses) must satisfy (spec.md §4.7 step 5): the
// bound on the multiplier, not on the primal body itself. Cones without a
// simple box-bound dual (SOC and friends) return ±Inf and rely on the
// caller to add the real conic constraint elsewhere; that machinery is
// outside FOOC's box-multiplier fast path.
func Bounds(tag Tag) (lb, ub float64) {
	switch tag {
	case RPlus:
		return 0, math.Inf(1)
	case RMinus:
		return math.Inf(-1), 0
	case Zero:
		return math.Inf(-1), math.Inf(1) // free, but with zero-residual equation
	case Reals:
		return math.Inf(-1), math.Inf(1)
	default:
		return math.Inf(-1), math.Inf(1)
	}
}

// SeedStart returns the multiplier starting value original_source's fooc.c
// seeds when the source equation carried no useful multiplier value: +1 for
// ℝ₊, -1 for ℝ₋, 0 for {0} (SPEC_FULL.md §4 supplemental feature).
func SeedStart(tag Tag) float64 {
	switch tag {
	case RPlus:
		return 1
	case RMinus:
		return -1
	default:
		return 0
	}
}
