package empdag

import "github.com/xhub/rhpgo/rhperr"

// WrapInNash implements the §4.5.4 "single MP to Nash" transform: wraps a
// single-MP DAG in a new Nash parent with that MP as its only child,
// returning the Nash's uid. The caller is responsible for updating the
// owning model's type tag to "emp" (that is a model-level concern, not an
// EMPDAG one).
func (d *EmpDag) WrapInNash(mp Uid, name string) (Uid, error) {
	if !mp.IsMP() {
		return 0, rhperr.New(rhperr.InvalidArgument, "empdag.WrapInNash", "target must be an MP uid")
	}
	if len(d.MPs) != 1 || len(d.Nashes) != 0 {
		return 0, rhperr.New(rhperr.OperationNotAllowed, "empdag.WrapInNash", "only a single-MP DAG may be wrapped")
	}
	n := d.AddNash(name)
	if err := d.NashAddMP(n, mp); err != nil {
		return 0, err
	}
	d.roots = []Uid{n}
	d.hasRoot = false
	d.finalized = false
	return n, nil
}
