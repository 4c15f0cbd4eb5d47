package empdag

import (
	"testing"

	"github.com/xhub/rhpgo/ridx"
)

func TestAddMPAndByName(t *testing.T) {
	d := New()
	u := d.AddMP(Min, "mp1")
	got, err := d.ByName("MP1")
	if err != nil || got != u {
		t.Fatalf("expected case-insensitive lookup to find mp1, got %v, %v", got, err)
	}
}

func TestSingleMPFinalizesToSingleOpt(t *testing.T) {
	d := New()
	mp := d.AddMP(Min, "mp1")
	d.MP(mp).Type = Opt
	d.RootsAdd(mp)

	if err := d.Finalize(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Type != SingleOpt {
		t.Fatalf("expected SingleOpt, got %v", d.Type)
	}
}

func TestEmptyDagFinalizesToEmpty(t *testing.T) {
	d := New()
	if err := d.Finalize(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Type != Empty {
		t.Fatalf("expected Empty, got %v", d.Type)
	}
}

func TestNoRootsWithMPsFailsFinalize(t *testing.T) {
	d := New()
	mp1 := d.AddMP(Min, "mp1")
	mp2 := d.AddMP(Min, "mp2")
	// mp1 -> mp2 is accepted; the reverse edge would close a cycle
	if err := d.MPCTRLMp(mp1, mp2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := d.MPCTRLMp(mp2, mp1); err == nil {
		t.Fatalf("expected the second edge to be rejected as a cycle")
	}
	// mp1 has no rarc and neither will mp3: two rootless MPs and no declared
	// root make the root ambiguous
	mp3 := d.AddMP(Min, "mp3")
	_ = mp3
	if err := d.Finalize(); err == nil {
		t.Fatalf("expected EMPIncorrectInput when roots cannot be inferred unambiguously")
	}
}

func TestCycleRejected(t *testing.T) {
	d := New()
	mp1 := d.AddMP(Min, "mp1")
	mp2 := d.AddMP(Min, "mp2")
	if err := d.MPCTRLMp(mp1, mp2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := d.MPCTRLMp(mp2, mp1); err == nil {
		t.Fatalf("expected cycle to be rejected")
	}
}

func TestNashRequiresChildMP(t *testing.T) {
	d := New()
	n := d.AddNash("nash1")
	d.RootsAdd(n)
	if err := d.Finalize(); err == nil {
		t.Fatalf("expected finalize to fail: Nash with no child MP")
	}
}

func TestInvariant2RootOrRarc(t *testing.T) {
	d := New()
	mp1 := d.AddMP(Min, "mp1")
	mp2 := d.AddMP(Min, "mp2")
	if err := d.MPCTRLMp(mp1, mp2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	d.RootsAdd(mp1)
	if err := d.Finalize(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, mp := range d.MPs {
		u := MakeUid(KindMP, ridx.FromInt(i))
		isRoot := false
		for _, r := range d.roots {
			if r == u {
				isRoot = true
			}
		}
		if !isRoot && len(mp.Rarcs) == 0 {
			t.Fatalf("invariant 2 violated: MP %d is neither a root nor has a reverse arc", i)
		}
	}
}

func TestDoubleFinalizeNoOp(t *testing.T) {
	d := New()
	mp := d.AddMP(Min, "mp1")
	d.MP(mp).Type = Opt
	d.RootsAdd(mp)
	if err := d.Finalize(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	firstType := d.Type
	if err := d.Finalize(); err != nil {
		t.Fatalf("unexpected error on second finalize: %v", err)
	}
	if d.Type != firstType {
		t.Fatalf("double-finalize changed the inferred type: %v -> %v", firstType, d.Type)
	}
}

func TestTagBeforeInferOrdering(t *testing.T) {
	d := New()
	mp := d.AddMP(Min, "onlymp")
	d.MP(mp).Type = Opt
	// no RootsAdd call: Finalize must still succeed by inferring the
	// single rootless node as uid_root *before* calling inferType, so
	// that SingleOpt (not Complex/Unset) is the result.
	if err := d.Finalize(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Type != SingleOpt {
		t.Fatalf("expected SingleOpt once the lone node is tagged root, got %v", d.Type)
	}
}

func TestWrapInNash(t *testing.T) {
	d := New()
	mp := d.AddMP(Min, "mp1")
	d.MP(mp).Type = Opt
	n, err := d.WrapInNash(mp, "wrapper")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !n.IsNash() {
		t.Fatalf("expected a Nash uid back")
	}
	if err := d.Finalize(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSubDagEnumeration(t *testing.T) {
	d := New()
	mp1 := d.AddMP(Min, "mp1")
	mp2 := d.AddMP(Min, "mp2")
	mp3 := d.AddMP(Min, "mp3")
	if err := d.MPCTRLMp(mp1, mp2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := d.MPCTRLMp(mp2, mp3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ids := d.SubDag(mp1)
	if len(ids) != 3 {
		t.Fatalf("expected subdag rooted at mp1 to contain all 3 MPs, got %d", len(ids))
	}
}

func TestCtrlEdgeToNashWalksChildren(t *testing.T) {
	d := New()
	upper := d.AddMP(Min, "upper")
	d.MP(upper).Type = Opt
	nash := d.AddNash("eq")
	p1 := d.AddMP(Min, "p1")
	d.MP(p1).Type = Opt
	p2 := d.AddMP(Min, "p2")
	d.MP(p2).Type = Opt
	if err := d.MPCTRLNash(upper, nash); err != nil {
		t.Fatal(err)
	}
	if err := d.NashAddMP(nash, p1); err != nil {
		t.Fatal(err)
	}
	if err := d.NashAddMP(nash, p2); err != nil {
		t.Fatal(err)
	}
	d.RootsAdd(upper)
	if err := d.Finalize(); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	ids := d.SubDag(upper)
	if len(ids) != 3 {
		t.Fatalf("expected the subdag to reach all 3 MPs through the Nash node, got %d", len(ids))
	}
}

func TestBilevelInference(t *testing.T) {
	d := New()
	up := d.AddMP(Min, "up")
	d.MP(up).Type = Opt
	lo := d.AddMP(Min, "lo")
	d.MP(lo).Type = Opt
	if err := d.MPCTRLMp(up, lo); err != nil {
		t.Fatal(err)
	}
	d.RootsAdd(up)
	if err := d.Finalize(); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if d.Type != Bilevel {
		t.Fatalf("expected Bilevel, got %v", d.Type)
	}
}

func TestMpecInference(t *testing.T) {
	d := New()
	up := d.AddMP(Min, "up")
	d.MP(up).Type = Opt
	lo := d.AddMP(NoSense, "lo")
	d.MP(lo).Type = Vi
	if err := d.MPCTRLMp(up, lo); err != nil {
		t.Fatal(err)
	}
	d.RootsAdd(up)
	if err := d.Finalize(); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if d.Type != Mpec {
		t.Fatalf("expected Mpec, got %v", d.Type)
	}
}
