package registry

import (
	"fmt"
	"math"

	talib "github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/stat"

	"github.com/aristath/epochscript/internal/domain"
)

// DemoExecutor is a minimal, real (non-stubbed) implementation of the
// external IDataFlowOrchestrator collaborator (spec §6), sufficient to
// compute number literals, arithmetic, lag_number and the three demo
// indicators registered in builtin.go. It exists so the
// pipeline can be exercised end-to-end in tests without depending on a real
// proprietary transform library; production deployments supply their own
// IDataFlowOrchestrator.
//
// DemoExecutor deliberately does not attempt full generality: it executes
// nodes in program order (already topologically sorted), evaluates each node
// of a type it models against already-computed upstream columns, and appends
// one output column for it. Every other node type (casts, comparisons,
// logical and boolean-select nodes, sources, sinks) adds no column. Columns
// are keyed "<node id>.<handle>".
type DemoExecutor struct {
	Program *domain.CompiledProgram
}

// NewDemoExecutor builds an executor bound to a compiled program.
func NewDemoExecutor(program *domain.CompiledProgram) *DemoExecutor {
	return &DemoExecutor{Program: program}
}

// Execute runs the program over one table's columns and returns the
// augmented table with one additional column per node of a modeled type.
func (e *DemoExecutor) Execute(in *domain.Table) (*domain.Table, error) {
	out := domain.NewTable(in.Timestamps)
	for _, name := range in.ColumnNames() {
		out.AddColumn(in.Column(name))
	}

	n := in.NumRows()
	for _, node := range e.Program.Nodes {
		if err := executeNode(node, out, n); err != nil {
			return nil, fmt.Errorf("registry: node %q (%s): %w", node.Id, node.Type, err)
		}
	}
	return out, nil
}

func colKey(nodeId, handle string) string { return nodeId + "." + handle }

func resolveSeries(out *domain.Table, n int, v domain.InputValue) []float64 {
	if v.IsConstant {
		s := make([]float64, n)
		for i := range s {
			s[i] = v.Const.Num
		}
		return s
	}
	if c := out.Column(colKey(v.Ref.NodeId, v.Ref.Handle)); c != nil && c.Numbers != nil {
		return c.Numbers
	}
	if c := out.Column(v.Ref.NodeId); c != nil && c.Numbers != nil {
		return c.Numbers
	}
	return make([]float64, n)
}

func firstInput(node *domain.AlgorithmNode, out *domain.Table, n int, ids ...string) []float64 {
	for _, id := range ids {
		if vals, ok := node.Inputs[id]; ok && len(vals) > 0 {
			return resolveSeries(out, n, vals[0])
		}
	}
	return make([]float64, n)
}

func optionNum(node *domain.AlgorithmNode, id string, fallback float64) float64 {
	if ov, ok := node.Options[id]; ok {
		return ov.Num
	}
	return fallback
}

func executeNode(node *domain.AlgorithmNode, out *domain.Table, n int) error {
	switch node.Type {
	case "number":
		out.AddColumn(&domain.Column{Name: colKey(node.Id, "result"), Numbers: constSeries(n, node.Options["value"].Num)})
	case "add", "sub", "mul", "div", "modulo", "power_op":
		a := firstInput(node, out, n, "SLOT0")
		b := firstInput(node, out, n, "SLOT1")
		res := make([]float64, n)
		for i := 0; i < n; i++ {
			res[i] = binaryOp(node.Type, a[i], b[i])
		}
		out.AddColumn(&domain.Column{Name: colKey(node.Id, "result"), Numbers: res})
	case "ema":
		period := int(optionNum(node, "period", 14))
		src := firstInput(node, out, n, "SLOT")
		res := talib.Ema(src, period)
		out.AddColumn(&domain.Column{Name: colKey(node.Id, "result"), Numbers: res})
	case "sma":
		period := int(optionNum(node, "period", 14))
		src := firstInput(node, out, n, "SLOT")
		res := talib.Sma(src, period)
		out.AddColumn(&domain.Column{Name: colKey(node.Id, "result"), Numbers: res})
	case "rsi":
		period := int(optionNum(node, "period", 14))
		src := firstInput(node, out, n, "SLOT")
		res := talib.Rsi(src, period)
		out.AddColumn(&domain.Column{Name: colKey(node.Id, "result"), Numbers: res})
	case "lag_number":
		period := int(optionNum(node, "period", 1))
		src := firstInput(node, out, n, "SLOT")
		out.AddColumn(&domain.Column{Name: colKey(node.Id, "result"), Numbers: lagSeries(src, period)})
	default:
		// Nodes this demo executor does not model numerically (string/bool
		// casts, boolean-select, market_data_source, sinks, ...) are left
		// to a real transform library; we still must not fail the run.
	}
	return nil
}

func binaryOp(op string, a, b float64) float64 {
	switch op {
	case "add":
		return a + b
	case "sub":
		return a - b
	case "mul":
		return a * b
	case "div":
		if b == 0 {
			return math.NaN()
		}
		return a / b
	case "modulo":
		if b == 0 {
			return math.NaN()
		}
		return math.Mod(a, b)
	case "power_op":
		return math.Pow(a, b)
	default:
		return math.NaN()
	}
}

func constSeries(n int, v float64) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = v
	}
	return s
}

func lagSeries(src []float64, period int) []float64 {
	out := make([]float64, len(src))
	for i := range out {
		j := i - period
		if j < 0 || j >= len(src) {
			out[i] = math.NaN()
			continue
		}
		out[i] = src[j]
	}
	return out
}

// RollingMean exposes a gonum-backed rolling mean for demo indicators that
// want a plain moving average without pulling in talib. The resampler does
// not use it; its vwap-like mean aggregation calls stat.Mean directly.
func RollingMean(series []float64, window int) []float64 {
	out := make([]float64, len(series))
	for i := range series {
		lo := i - window + 1
		if lo < 0 {
			lo = 0
		}
		out[i] = stat.Mean(series[lo:i+1], nil)
	}
	return out
}
