// Package fooc implements the first-order optimality condition builder
// (spec.md §4.7, C7): the heart of the system, turning a source model's
// Opt/Vi/Mopec structure into an MCP (square unless auxiliary variables are
// carried along) by symbolic differentiation and normal-cone assembly. Grounded on fem/domain.go's SetStage assembly loop
// (walk elements, add contributions to a global matrix/vector) and
// ele/element.go's AddToKb/AddToRhs (the same "local contribution added
// into a global row, some rows shared across elements" shape FOOC's
// stationarity rows have across constraints).
package fooc

import (
	"github.com/xhub/rhpgo/ridx"
	"github.com/xhub/rhpgo/rosetta"
)

// McpInfo is the FOOC builder's output statistics (spec.md §3.11), kept
// around for post-processing and for the test suite's invariant checks.
type McpInfo struct {
	McpSize      int
	NPrimalVars  int
	NConstraints int
	NLinCons     int
	NNlCons      int
	NVIFuncs     int
	NVIZeroFuncs int
	NFoocVars    int
	NAuxVars     int

	// Rosetta is the source-container -> target-container index map Build
	// actually used, sized to the source's totals. A caller stitching more
	// of the source onto the FOOC result (the orchestrator's bilevel path,
	// appending the upper MP's preserved objective) remaps through this
	// rather than recomputing the correspondence itself. Entries for a
	// variable/equation Build never placed are IdxNA.
	Rosetta *rosetta.Rosetta

	// Func2Eval lists the objective equations (source-container indices)
	// that were differentiated away rather than copied; the solve layer
	// evaluates them at the reported solution so objective values survive
	// into reporting (spec.md §4.7 step 9).
	Func2Eval []ridx.Idx
}
