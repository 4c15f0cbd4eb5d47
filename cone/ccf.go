package cone

import (
	"github.com/cpmech/gosl/chk"

	"github.com/xhub/rhpgo/rhperr"
)

// CCFVariant selects which OVF/CCF reformulation the orchestrator runs
// before FOOC when the source EMPDAG carries CCF-tagged MPs (spec.md
// §4.8; original_source ccflib_fenchel.c + ccflib_reformulations.h).
type CCFVariant int

const (
	Fenchel CCFVariant = iota
	Conjugate
	Equilibrium
)

func (v CCFVariant) String() string {
	switch v {
	case Fenchel:
		return "Fenchel"
	case Conjugate:
		return "Conjugate"
	case Equilibrium:
		return "Equilibrium"
	default:
		return "Unknown"
	}
}

// Reformulator rewrites a CCF-tagged MP's representation. Implementations
// live outside this package (they need empdag/ctr types); this interface
// is the seam the registry dispatches through, mirroring the teacher's
// name-keyed material-model registries (ele/factory.go, mdl/*).
type Reformulator interface {
	Reformulate(ctx any) error
}

var registry = make(map[CCFVariant]Reformulator)

// Register installs a Reformulator for variant v. Panics on duplicate
// registration, matching ele/factory.go's SetInfoFunc/SetAllocator idiom
// (a second registration under the same key is always a programming
// error, never a runtime condition to recover from).
func Register(v CCFVariant, r Reformulator) {
	if _, ok := registry[v]; ok {
		chk.Panic("cone: CCF variant %v already registered", v)
	}
	registry[v] = r
}

// Get returns the registered Reformulator for v, or NotImplemented if none
// was registered.
func Get(v CCFVariant) (Reformulator, error) {
	r, ok := registry[v]
	if !ok {
		return nil, rhperr.New(rhperr.NotImplemented, "cone.Get", "no CCF reformulator registered for variant %v", v)
	}
	return r, nil
}
