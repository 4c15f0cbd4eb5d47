package empdag

import (
	"sort"
	"strings"

	"github.com/cpmech/gosl/chk"

	"github.com/xhub/rhpgo/rhperr"
	"github.com/xhub/rhpgo/ridx"
)

// Type is the EMPDAG's inferred structural classification (spec.md §3.8).
type Type uint8

const (
	Unset Type = iota
	Empty
	SingleOpt
	SingleVi
	TypeOpt
	TypeVi
	Mopec
	Bilevel
	Multilevel
	MultilevelMopec
	Mpec
	Epec
	NestedCcf
	Complex
)

func (t Type) String() string {
	names := [...]string{"Unset", "Empty", "Single_Opt", "Single_Vi", "Opt", "Vi", "Mopec",
		"Bilevel", "Multilevel", "MultilevelMopec", "Mpec", "Epec", "NestedCcf", "Complex"}
	if int(t) < len(names) {
		return names[t]
	}
	return "Unknown"
}

// Features summarizes the arc/root mix the type inference decides on
// (spec.md §3.8's "features struct of bitsets").
type Features struct {
	HasVFArcs     bool
	HasCtrlEdges  bool // any MP has a control edge out (a lower-level problem)
	HasMultiLevel bool // a VF/control chain nested 2+ deep
	HasEquilOrVi  bool // any root/child is a Vi-type MP
	HasCcf        bool // any MP is a CCF/OVF library problem
	RootIsNash    bool
	MultipleRoots bool
}

// EmpDag is one Extended Mathematical Programming DAG (spec.md §3.8).
type EmpDag struct {
	MPs    []*MP
	Nashes []*Nash

	byName map[string]Uid // case-insensitive

	roots   []Uid
	uidRoot Uid
	hasRoot bool

	Type      Type
	Features  Features
	finalized bool
}

// IsFinalized reports whether the EMPDAG's finalized bit is currently set
// (cleared by every mutation, set by a successful Finalize).
func (d *EmpDag) IsFinalized() bool { return d.finalized }

// New returns an empty EMPDAG.
func New() *EmpDag {
	return &EmpDag{byName: make(map[string]Uid), uidRoot: Uid(0)}
}

// --- Mutation API (spec.md §4.5.1) ---

// AddMP creates a new MP with the given sense and optional name, returning
// its uid. Every mutation drops the finalized bit.
func (d *EmpDag) AddMP(sense Sense, name string) Uid {
	id := ridx.FromInt(len(d.MPs))
	mp := newMP(id, name)
	mp.Sense = sense
	d.MPs = append(d.MPs, mp)
	u := MakeUid(KindMP, id)
	d.registerName(name, u)
	d.finalized = false
	return u
}

// AddNash creates a new Nash node, returning its uid.
func (d *EmpDag) AddNash(name string) Uid {
	id := ridx.FromInt(len(d.Nashes))
	n := newNash(id, name)
	d.Nashes = append(d.Nashes, n)
	u := MakeUid(KindNash, id)
	d.registerName(name, u)
	d.finalized = false
	return u
}

func (d *EmpDag) registerName(name string, u Uid) {
	if name == "" {
		return
	}
	d.byName[strings.ToLower(name)] = u
}

// MP/Nash look up a node by uid. Passing a uid of the wrong kind is a
// precondition violation; callers are expected to have dispatched on
// u.Kind() first.
func (d *EmpDag) MP(u Uid) *MP {
	if !u.IsMP() {
		chk.Panic("empdag.MP: uid %v names a Nash node, not an MP", u)
	}
	return d.MPs[u.Id().Int()]
}

func (d *EmpDag) Nash(u Uid) *Nash {
	if !u.IsNash() {
		chk.Panic("empdag.Nash: uid %v names an MP, not a Nash node", u)
	}
	return d.Nashes[u.Id().Int()]
}

// ByName resolves a node by case-insensitive name (spec.md §4.5.2 +
// SPEC_FULL.md §4 supplemental feature).
func (d *EmpDag) ByName(name string) (Uid, error) {
	u, ok := d.byName[strings.ToLower(name)]
	if !ok {
		return 0, rhperr.New(rhperr.NotFound, "empdag.ByName", "no node named %q", name)
	}
	return u, nil
}

// MPCTRLMp adds a control edge from parent MP to child MP.
func (d *EmpDag) MPCTRLMp(parent, child Uid) error {
	if err := d.wouldCycle(parent, child); err != nil {
		return err
	}
	p := d.MP(parent)
	p.Carcs = append(p.Carcs, Carc{Child: child})
	d.addRarc(child, parent)
	d.finalized = false
	return nil
}

// MPCTRLNash adds a control edge from parent MP to child Nash.
func (d *EmpDag) MPCTRLNash(parent Uid, childNash Uid) error {
	if err := d.wouldCycle(parent, childNash); err != nil {
		return err
	}
	p := d.MP(parent)
	p.Carcs = append(p.Carcs, Carc{Child: childNash})
	d.addRarc(childNash, parent)
	d.finalized = false
	return nil
}

// MPVFMp adds a value-function edge from parent MP to child MP with the
// given payload.
func (d *EmpDag) MPVFMp(parent, child Uid, payload VFPayload) error {
	if err := d.wouldCycle(parent, child); err != nil {
		return err
	}
	p := d.MP(parent)
	p.Varcs = append(p.Varcs, Varc{Child: child.Id(), Payload: payload})
	d.addRarc(child, parent)
	d.finalized = false
	return nil
}

// NashAddMP adds MP child as a player of Nash parent.
func (d *EmpDag) NashAddMP(parent Uid, child Uid) error {
	if err := d.wouldCycle(parent, child); err != nil {
		return err
	}
	n := d.Nash(parent)
	n.Arcs = append(n.Arcs, child.Id())
	d.addRarc(child, parent)
	d.finalized = false
	return nil
}

func (d *EmpDag) addRarc(child, parent Uid) {
	switch child.Kind() {
	case KindMP:
		m := d.MP(child)
		m.Rarcs = append(m.Rarcs, parent)
	case KindNash:
		n := d.Nash(child)
		n.Rarcs = append(n.Rarcs, parent)
	}
}

// RootsAdd adds u to the set of roots.
func (d *EmpDag) RootsAdd(u Uid) {
	d.roots = append(d.roots, u)
	d.finalized = false
}

// SetRoot tags u as *the* root (uid_root), used when finalize needs to
// disambiguate among several structurally rootless nodes.
func (d *EmpDag) SetRoot(u Uid) {
	d.uidRoot = u
	d.hasRoot = true
	d.finalized = false
}

// Delete removes the last-added node, provided it has no parents and no
// children (spec.md §4.5.1's "allowed only for the last-added node with no
// parents and no children").
func (d *EmpDag) Delete(u Uid) error {
	switch u.Kind() {
	case KindMP:
		last := len(d.MPs) - 1
		if u.Id().Int() != last {
			return rhperr.New(rhperr.OperationNotAllowed, "empdag.Delete", "only the last-added MP may be deleted")
		}
		mp := d.MPs[last]
		if len(mp.Rarcs) != 0 || len(mp.Carcs) != 0 || len(mp.Varcs) != 0 {
			return rhperr.New(rhperr.OperationNotAllowed, "empdag.Delete", "MP %d still has parents or children", last)
		}
		d.MPs = d.MPs[:last]
	case KindNash:
		last := len(d.Nashes) - 1
		if u.Id().Int() != last {
			return rhperr.New(rhperr.OperationNotAllowed, "empdag.Delete", "only the last-added Nash may be deleted")
		}
		n := d.Nashes[last]
		if len(n.Rarcs) != 0 || len(n.Arcs) != 0 {
			return rhperr.New(rhperr.OperationNotAllowed, "empdag.Delete", "Nash %d still has parents or children", last)
		}
		d.Nashes = d.Nashes[:last]
	}
	d.finalized = false
	return nil
}

// --- Query API (spec.md §4.5.2) ---

// Root returns uid_root and whether one has been tagged (either explicitly
// via SetRoot or inferred during Finalize).
func (d *EmpDag) Root() (Uid, bool) { return d.uidRoot, d.hasRoot }

// Roots returns the declared root set.
func (d *EmpDag) Roots() []Uid { return d.roots }

// SubDag returns a sorted list of MP ids reachable from root via forward
// (Carc/Varc/Nash-Arc) edges, including root itself if it is an MP.
func (d *EmpDag) SubDag(root Uid) []ridx.Idx {
	seen := make(map[Uid]bool)
	var mps []ridx.Idx
	var walk func(Uid)
	walk = func(u Uid) {
		if seen[u] {
			return
		}
		seen[u] = true
		switch u.Kind() {
		case KindMP:
			mps = append(mps, u.Id())
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
	walk(root)
	sort.Slice(mps, func(i, j int) bool { return mps[i].Int() < mps[j].Int() })
	return mps
}

// wouldCycle reports whether adding an edge parent->child would create a
// cycle, by checking whether parent is reachable from child.
func (d *EmpDag) wouldCycle(parent, child Uid) error {
	seen := make(map[Uid]bool)
	var walk func(Uid) bool
	walk = func(u Uid) bool {
		if u == parent {
			return true
		}
		if seen[u] {
			return false
		}
		seen[u] = true
		switch u.Kind() {
		case KindMP:
			mp := d.MP(u)
			for _, c := range mp.Carcs {
				if walk(c.Child) {
					return true
				}
			}
			for _, v := range mp.Varcs {
				if walk(MakeUid(KindMP, v.Child)) {
					return true
				}
			}
		case KindNash:
			n := d.Nash(u)
			for _, c := range n.Arcs {
				if walk(MakeUid(KindMP, c)) {
					return true
				}
			}
		}
		return false
	}
	if walk(child) {
		return rhperr.New(rhperr.UnExpectedData, "empdag.wouldCycle", "edge %v -> %v would create a cycle", parent, child)
	}
	return nil
}
