package ctr

import (
	"testing"

	"github.com/xhub/rhpgo/cone"
	"github.com/xhub/rhpgo/expr"
	"github.com/xhub/rhpgo/ridx"
)

func TestResizeGrowsAndIsIdempotent(t *testing.T) {
	c := NewContainer()
	c.Resize(3, 2)
	if c.N() != 3 || c.M() != 2 {
		t.Fatalf("got N=%d M=%d, want 3,2", c.N(), c.M())
	}
	c.Resize(2, 1) // shrink request must be a no-op
	if c.N() != 3 || c.M() != 2 {
		t.Fatalf("Resize must never shrink, got N=%d M=%d", c.N(), c.M())
	}
}

func TestSetGetEquType(t *testing.T) {
	c := NewContainer()
	c.Resize(0, 1)
	ei := ridx.FromInt(0)
	if err := c.SetEquType(ei, ConeInclusion, cone.RPlus); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	obj, tag, err := c.GetEquType(ei)
	if err != nil || obj != ConeInclusion || tag != cone.RPlus {
		t.Fatalf("got (%v,%v,%v), want (ConeInclusion,RPlus,nil)", obj, tag, err)
	}
}

func TestGetEquTypeOutOfRange(t *testing.T) {
	c := NewContainer()
	if _, _, err := c.GetEquType(ridx.FromInt(0)); err == nil {
		t.Fatalf("expected error for out-of-range equation")
	}
}

func TestSetVarPerpSymmetric(t *testing.T) {
	c := NewContainer()
	c.Resize(1, 1)
	vi, ei := ridx.FromInt(0), ridx.FromInt(0)
	if err := c.SetVarPerp(vi, ei); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := c.GetVarPerp(vi)
	if err != nil || got != ei {
		t.Fatalf("got (%v,%v), want (%v,nil)", got, err, ei)
	}
	if c.equMeta[0].Dual != vi {
		t.Fatalf("expected equation's Dual to mirror the variable pairing")
	}
}

func TestSetVarPerpRefusesConflict(t *testing.T) {
	c := NewContainer()
	c.Resize(2, 2)
	if err := c.SetVarPerp(ridx.FromInt(0), ridx.FromInt(0)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := c.SetVarPerp(ridx.FromInt(0), ridx.FromInt(1)); err == nil {
		t.Fatalf("expected conflicting re-pairing to be refused")
	}
}

func TestAddEquationBuildsColumnView(t *testing.T) {
	c := NewContainer()
	c.Resize(2, 0)

	eq := NewEquation(ridx.IdxNA)
	eq.Body.Lin.Push(ridx.FromInt(0), 2.0)
	tree := expr.Var(ridx.FromInt(1), 1.0, c.Pool)
	if err := eq.Body.SetTree(tree); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ei := c.AddEquation(eq)

	cellsFor0 := c.EquIterEqus(ridx.FromInt(0))
	if len(cellsFor0) != 1 || cellsFor0[0].Ei != ei || cellsFor0[0].IsNL {
		t.Fatalf("expected variable 0 to have one linear cell for %v, got %+v", ei, cellsFor0)
	}
	cellsFor1 := c.EquIterEqus(ridx.FromInt(1))
	if len(cellsFor1) != 1 || !cellsFor1[0].IsNL {
		t.Fatalf("expected variable 1 to have one nonlinear cell, got %+v", cellsFor1)
	}

	vars := c.EquIterVars(ei)
	if len(vars) != 2 {
		t.Fatalf("expected 2 distinct variables referenced, got %d", len(vars))
	}
}

func TestAddEquationDedupesLinearAndNLSameVar(t *testing.T) {
	c := NewContainer()
	c.Resize(1, 0)

	eq := NewEquation(ridx.IdxNA)
	eq.Body.Lin.Push(ridx.FromInt(0), 3.0)
	tree := expr.Var(ridx.FromInt(0), 1.0, c.Pool)
	if err := eq.Body.SetTree(tree); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ei := c.AddEquation(eq)

	cells := c.EquIterEqus(ridx.FromInt(0))
	if len(cells) != 1 {
		t.Fatalf("expected a variable referenced both linearly and nonlinearly to contribute exactly one cell, got %d", len(cells))
	}
	if cells[0].IsNL {
		t.Fatalf("linear membership must win when a variable is already present, got IsNL=true for %v", ei)
	}
}

func TestAuditCrossReferenceClean(t *testing.T) {
	c := NewContainer()
	c.Resize(2, 0)
	eq := NewEquation(ridx.IdxNA)
	eq.Body.Lin.Push(ridx.FromInt(0), 1.0)
	eq.Body.Lin.Push(ridx.FromInt(1), -1.0)
	c.AddEquation(eq)

	if err := c.AuditCrossReference(); err != nil {
		t.Fatalf("unexpected audit failure: %v", err)
	}
}

func TestAuditCrossReferenceCatchesDrift(t *testing.T) {
	c := NewContainer()
	c.Resize(2, 0)
	eq := NewEquation(ridx.IdxNA)
	eq.Body.Lin.Push(ridx.FromInt(0), 1.0)
	ei := c.AddEquation(eq)

	// simulate drift: mutate the body in place without reindexing.
	c.equs[ei.Int()].Body.Lin.Push(ridx.FromInt(1), 1.0)

	if err := c.AuditCrossReference(); err == nil {
		t.Fatalf("expected audit to catch the unreindexed column view")
	}
}

func TestCheckMetadataCollectsAllViolations(t *testing.T) {
	c := NewContainer()
	c.Resize(2, 1)
	if err := c.CheckMetadata(); err == nil {
		t.Fatalf("expected metadata violation for variables/equations with no owning MP")
	}
}

func TestCheckMetadataPassesWhenTagged(t *testing.T) {
	c := NewContainer()
	c.Resize(1, 1)
	c.varMeta[0].MpId = ridx.FromInt(0)
	c.equMeta[0].MpId = ridx.FromInt(0)
	if err := c.CheckMetadata(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCompressVarsDropsInactive(t *testing.T) {
	c := NewContainer()
	c.Resize(3, 0)
	c.varMeta[1].Ppty |= PptyIsDeleted
	c.varActive[1] = false
	c.n--

	f := ActiveFops{C: c}
	r := c.CompressVars(f)
	if r.Map(ridx.FromInt(0)) != ridx.FromInt(0) {
		t.Fatalf("expected variable 0 to stay at 0")
	}
	if r.Map(ridx.FromInt(1)).Valid() {
		t.Fatalf("expected deleted variable 1 to drop")
	}
	if r.Map(ridx.FromInt(2)) != ridx.FromInt(1) {
		t.Fatalf("expected variable 2 to renumber to 1, got %v", r.Map(ridx.FromInt(2)))
	}
}

func TestEmptyFopsKeepsNothing(t *testing.T) {
	c := NewContainer()
	c.Resize(3, 2)
	f := EmptyFops{}
	n, m := f.GetSizes(c.TotalN(), c.TotalM())
	if n != 0 || m != 0 {
		t.Fatalf("expected empty sizes, got n=%d m=%d", n, m)
	}
	r := c.CompressVars(f)
	for i := 0; i < 3; i++ {
		if r.Map(ridx.FromInt(i)).Valid() {
			t.Fatalf("expected every variable dropped by the empty operator")
		}
	}
	out := c.Apply(f, r)
	if out.N() != 0 || out.M() != 0 {
		t.Fatalf("expected an empty target container, got n=%d m=%d", out.N(), out.M())
	}
}

func TestCheckMetadataAsymmetricPairing(t *testing.T) {
	c := NewContainer()
	c.Resize(2, 1)
	for i := 0; i < 2; i++ {
		c.varMeta[i].MpId = ridx.FromInt(0)
	}
	c.equMeta[0].MpId = ridx.FromInt(0)

	// break symmetry by hand: variable 0 claims equation 0, but equation 0
	// claims variable 1.
	c.varMeta[0].Dual = ridx.FromInt(0)
	c.varMeta[0].Type = MetaDual
	c.equMeta[0].Dual = ridx.FromInt(1)
	c.equMeta[0].Role = RoleConstraint

	if err := c.CheckMetadata(); err == nil {
		t.Fatalf("expected asymmetric pairing to be reported")
	}
}

func TestCheckMetadataObjectiveHasNoDual(t *testing.T) {
	c := NewContainer()
	c.Resize(1, 1)
	c.varMeta[0].MpId = ridx.FromInt(0)
	c.equMeta[0].MpId = ridx.FromInt(0)
	if err := c.SetVarPerp(ridx.FromInt(0), ridx.FromInt(0)); err != nil {
		t.Fatal(err)
	}
	c.varMeta[0].Type = MetaObjective
	if err := c.CheckMetadata(); err == nil {
		t.Fatalf("expected an objective variable with a dual to be reported")
	}
}

func TestCheckMetadataDualityPasses(t *testing.T) {
	c := NewContainer()
	c.Resize(2, 2)
	for i := 0; i < 2; i++ {
		c.varMeta[i].MpId = ridx.FromInt(0)
		c.equMeta[i].MpId = ridx.FromInt(0)
	}
	if err := c.SetVarPerp(ridx.FromInt(0), ridx.FromInt(0)); err != nil {
		t.Fatal(err)
	}
	if err := c.SetVarPerp(ridx.FromInt(1), ridx.FromInt(1)); err != nil {
		t.Fatal(err)
	}
	c.varMeta[0].Type = MetaPrimal
	c.equMeta[0].Role = RoleViFunction
	c.varMeta[1].Type = MetaDual
	c.equMeta[1].Role = RoleConstraint
	if err := c.CheckMetadata(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
