// Package option implements the named-key configuration map of spec.md
// §6.3. Options are stored as utl.P parameter records in a utl.Params
// list: numeric values in P.V, choice/string values in P.Extra.
// Grounded on inp/func.go's FuncsData.Get (name lookup with a wrapped
// error) and mdl/solid/elasticity.go's "switch p.N over utl.Params" idiom.
package option

import (
	"strings"

	"github.com/cpmech/gosl/io"
	"github.com/cpmech/gosl/utl"

	"github.com/xhub/rhpgo/rhperr"
)

// Recognized option keys (spec.md §6.3).
const (
	Atol             = "atol"
	Rtol             = "rtol"
	IterLimit        = "iterlimit"
	KeepFiles        = "keep_files"
	SolverOptFileNum = "solver_option_file_number"
	DisplayEmpDag    = "display_empdag"
	DisplayOvfDag    = "display_ovfdag"
	DisplayTimings   = "display_timings"
	DumpScalarModel  = "dump_scalar_model"
	ExpensiveChecks  = "expensive_checks"
	Output           = "output"
	SubSolverOpt     = "subsolveropt"
	TimeLimit        = "time_limit"
	SolveSingleOptAs = "solve_single_opt_as"
	CCFVariant       = "ccf_variant"
)

// Choices for SolveSingleOptAs.
const (
	SingleOptKeep = "opt"
	SingleOptMcp  = "mcp"
)

// Table is a small named-key option map backed by utl.Params.
type Table struct {
	prms utl.Params
}

// Defaults returns a Table carrying every recognized option at its §6.3
// default value.
func Defaults() *Table {
	return &Table{prms: utl.Params{
		&utl.P{N: Atol, V: 0},
		&utl.P{N: Rtol, V: 1e-8},
		&utl.P{N: IterLimit, V: -1},
		&utl.P{N: KeepFiles, V: 0},
		&utl.P{N: SolverOptFileNum, V: 1},
		&utl.P{N: DisplayEmpDag, V: 0},
		&utl.P{N: DisplayOvfDag, V: 0},
		&utl.P{N: DisplayTimings, V: 0},
		&utl.P{N: DumpScalarModel, V: 0},
		&utl.P{N: ExpensiveChecks, V: 0},
		&utl.P{N: Output, V: 1},
		&utl.P{N: SubSolverOpt, V: 0},
		&utl.P{N: TimeLimit, V: 0},
		&utl.P{N: SolveSingleOptAs, Extra: SingleOptKeep},
		&utl.P{N: CCFVariant, Extra: "fenchel"},
	}}
}

func (t *Table) find(key string) *utl.P {
	for _, p := range t.prms {
		if p.N == key {
			return p
		}
	}
	return nil
}

// Float returns the float value of key.
func (t *Table) Float(key string) (float64, error) {
	p := t.find(key)
	if p == nil {
		return 0, rhperr.New(rhperr.NotFound, "option.Float", "no option named %q", key)
	}
	return p.V, nil
}

// Int returns the integer value of key.
func (t *Table) Int(key string) (int, error) {
	p := t.find(key)
	if p == nil {
		return 0, rhperr.New(rhperr.NotFound, "option.Int", "no option named %q", key)
	}
	return int(p.V), nil
}

// Bool returns the boolean value of key (stored as 0/1 in P.V).
func (t *Table) Bool(key string) (bool, error) {
	p := t.find(key)
	if p == nil {
		return false, rhperr.New(rhperr.NotFound, "option.Bool", "no option named %q", key)
	}
	return p.V != 0, nil
}

// Choice returns the string choice of key, validated against allowed.
func (t *Table) Choice(key string, allowed ...string) (string, error) {
	p := t.find(key)
	if p == nil {
		return "", rhperr.New(rhperr.NotFound, "option.Choice", "no option named %q", key)
	}
	v := strings.ToLower(p.Extra)
	if len(allowed) > 0 && utl.StrIndexSmall(allowed, v) < 0 {
		return "", rhperr.New(rhperr.InvalidValue, "option.Choice", "option %q has value %q, want one of %v", key, v, allowed)
	}
	return v, nil
}

// SetFloat/SetInt/SetBool/SetChoice overwrite a recognized option's value.
// Setting an unrecognized key is an error: the key set is closed (§6.3).
func (t *Table) SetFloat(key string, v float64) error {
	p := t.find(key)
	if p == nil {
		return rhperr.New(rhperr.NotFound, "option.SetFloat", "no option named %q", key)
	}
	p.V = v
	return nil
}

func (t *Table) SetInt(key string, v int) error { return t.SetFloat(key, float64(v)) }

func (t *Table) SetBool(key string, v bool) error {
	if v {
		return t.SetFloat(key, 1)
	}
	return t.SetFloat(key, 0)
}

func (t *Table) SetChoice(key, v string) error {
	p := t.find(key)
	if p == nil {
		return rhperr.New(rhperr.NotFound, "option.SetChoice", "no option named %q", key)
	}
	p.Extra = strings.ToLower(v)
	return nil
}

// LogMode encodes a message's verbosity and destination (spec.md §6.4).
type LogMode int

const (
	LogError LogMode = iota
	LogInfo
	LogDebug
)

// Sink is the logging function every operation that wants to talk to the
// user receives explicitly; there is no global logger (spec.md §5, §6.4).
type Sink func(mode LogMode, msg string)

// ConsoleSink returns a Sink gated by the table's "output" verbosity,
// printing through gosl/io like every teacher package does: errors in red,
// info plainly, debug only at the highest level.
func (t *Table) ConsoleSink() Sink {
	level, _ := t.Int(Output)
	return func(mode LogMode, msg string) {
		switch {
		case mode == LogError:
			io.PfRed("%s", msg)
		case mode == LogInfo && level >= 1:
			io.Pf("%s", msg)
		case mode == LogDebug && level >= 2:
			io.Pfgrey("%s", msg)
		}
	}
}
