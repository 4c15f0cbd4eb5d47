package fooc

import "github.com/xhub/rhpgo/ridx"

// varRemap is the VarMapper the builder uses everywhere it needs to
// translate a source variable index into its target-container index
// (spec.md §4.4's "deep-copy through the composed rosetta for
// variables"). A source variable with no entry was not selected by the
// active Fops and is correctly dropped by expr's ApplyRosetta machinery.
type varRemap map[ridx.Idx]ridx.Idx

func (r varRemap) Map(vi ridx.Idx) ridx.Idx {
	if nv, ok := r[vi]; ok {
		return nv
	}
	return ridx.IdxNA
}
