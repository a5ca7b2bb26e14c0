package nodebuilder

import (
	"testing"

	"github.com/aristath/epochscript/internal/compiler/context"
	"github.com/aristath/epochscript/internal/compiler/parser"
	"github.com/aristath/epochscript/internal/domain"
	"github.com/aristath/epochscript/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func build(t *testing.T, source string) *context.CompilationContext {
	t.Helper()
	mod, err := parser.Parse(source)
	require.NoError(t, err)
	ctx := context.New(registry.Global)
	require.NoError(t, New(ctx).BuildModule(mod))
	return ctx
}

func TestSingleAssignmentBindsSoleOutputHandle(t *testing.T) {
	ctx := build(t, "x = sma(period=10)(1)\ny = x + 1\n")
	binding, ok := ctx.Lookup("x")
	require.True(t, ok)
	assert.Equal(t, "result", binding.Handle)

	yBinding, ok := ctx.Lookup("y")
	require.True(t, ok)
	node, ok := ctx.Program.Get(yBinding.NodeId)
	require.True(t, ok)
	assert.Equal(t, "add", node.Type)
}

func TestTupleAssignmentBindsEachOutputInOrder(t *testing.T) {
	ctx := build(t, "o, h, l, c, v = market_data_source()\n")
	for i, name := range []string{"o", "h", "l", "c", "v"} {
		b, ok := ctx.Lookup(name)
		require.True(t, ok, name)
		ref, err := ctx.ResolveBinding(b)
		require.NoError(t, err)
		expected := []string{"o", "h", "l", "c", "v"}[i]
		assert.Equal(t, expected, ref.Handle)
	}
}

func TestTupleAssignmentArityMismatchErrors(t *testing.T) {
	mod, err := parser.Parse("o, h = market_data_source()\n")
	require.NoError(t, err)
	ctx := context.New(registry.Global)
	err = New(ctx).BuildModule(mod)
	assert.Error(t, err)
}

func TestSinkStatementCompiles(t *testing.T) {
	ctx := build(t, "trade_signal_executor(1 < 2)\n")
	assert.Equal(t, 1, ctx.Program.ExecutorCount)
}

func TestBareExpressionOfProducerIsRejected(t *testing.T) {
	mod, err := parser.Parse("sma(period=10)(1)\n")
	require.NoError(t, err)
	ctx := context.New(registry.Global)
	err = New(ctx).BuildModule(mod)
	assert.Error(t, err)
}

func TestReassignmentOverwritesBinding(t *testing.T) {
	ctx := build(t, "x = 1\nx = 2\ny = x + 1\n")
	binding, ok := ctx.Lookup("x")
	require.True(t, ok)
	node, ok := ctx.Program.Get(binding.NodeId)
	require.True(t, ok)
	assert.Equal(t, float64(2), node.Options["value"].Num)
	_ = domain.Decimal
}
