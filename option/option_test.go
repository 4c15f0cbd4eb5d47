package option

import "testing"

func TestDefaults(t *testing.T) {
	tab := Defaults()

	rtol, err := tab.Float(Rtol)
	if err != nil || rtol != 1e-8 {
		t.Fatalf("rtol default: got %v, %v", rtol, err)
	}
	iter, err := tab.Int(IterLimit)
	if err != nil || iter != -1 {
		t.Fatalf("iterlimit default: got %v, %v", iter, err)
	}
	keep, err := tab.Bool(KeepFiles)
	if err != nil || keep {
		t.Fatalf("keep_files default: got %v, %v", keep, err)
	}
	choice, err := tab.Choice(SolveSingleOptAs, SingleOptKeep, SingleOptMcp)
	if err != nil || choice != SingleOptKeep {
		t.Fatalf("solve_single_opt_as default: got %q, %v", choice, err)
	}
}

func TestUnknownKeyIsNotFound(t *testing.T) {
	tab := Defaults()
	if _, err := tab.Float("no_such_option"); err == nil {
		t.Fatalf("expected NotFound for an unrecognized key")
	}
	if err := tab.SetFloat("no_such_option", 1); err == nil {
		t.Fatalf("expected SetFloat to reject an unrecognized key")
	}
}

func TestSetAndReadBack(t *testing.T) {
	tab := Defaults()
	if err := tab.SetBool(ExpensiveChecks, true); err != nil {
		t.Fatal(err)
	}
	on, err := tab.Bool(ExpensiveChecks)
	if err != nil || !on {
		t.Fatalf("expected expensive_checks on after SetBool, got %v, %v", on, err)
	}

	if err := tab.SetChoice(SolveSingleOptAs, "MCP"); err != nil {
		t.Fatal(err)
	}
	choice, err := tab.Choice(SolveSingleOptAs, SingleOptKeep, SingleOptMcp)
	if err != nil || choice != SingleOptMcp {
		t.Fatalf("expected choice folded to %q, got %q, %v", SingleOptMcp, choice, err)
	}
}

func TestChoiceValidatesAllowedSet(t *testing.T) {
	tab := Defaults()
	if err := tab.SetChoice(SolveSingleOptAs, "bogus"); err != nil {
		t.Fatal(err)
	}
	if _, err := tab.Choice(SolveSingleOptAs, SingleOptKeep, SingleOptMcp); err == nil {
		t.Fatalf("expected InvalidValue for a choice outside the allowed set")
	}
}
