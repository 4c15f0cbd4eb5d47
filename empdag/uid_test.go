package empdag

import (
	"testing"

	"github.com/xhub/rhpgo/ridx"
)

func TestUidRoundTrip(t *testing.T) {
	u := MakeUid(KindNash, ridx.FromInt(7))
	if !u.IsNash() || u.Id() != ridx.FromInt(7) {
		t.Fatalf("expected Nash/7, got kind=%v id=%v", u.Kind(), u.Id())
	}
	u2 := u.WithAux()
	if !u2.HasAux() || u2.Id() != ridx.FromInt(7) {
		t.Fatalf("WithAux must preserve id, got %v", u2.Id())
	}
}

func TestUidMPDefaultsNoAux(t *testing.T) {
	u := MakeUid(KindMP, ridx.FromInt(3))
	if !u.IsMP() || u.HasAux() {
		t.Fatalf("expected plain MP uid with no aux bit")
	}
}
