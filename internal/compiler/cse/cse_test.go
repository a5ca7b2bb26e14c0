package cse

import (
	"testing"

	"github.com/aristath/epochscript/internal/compiler/context"
	"github.com/aristath/epochscript/internal/compiler/nodebuilder"
	"github.com/aristath/epochscript/internal/compiler/parser"
	"github.com/aristath/epochscript/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildProgram(t *testing.T, source string) *context.CompilationContext {
	t.Helper()
	mod, err := parser.Parse(source)
	require.NoError(t, err)
	ctx := context.New(registry.Global)
	require.NoError(t, nodebuilder.New(ctx).BuildModule(mod))
	return ctx
}

func TestIdenticalSubexpressionsMerge(t *testing.T) {
	ctx := buildProgram(t, "a = 1 + 2\nb = 1 + 2\ntrade_signal_executor(a < b)\n")
	before := len(ctx.Program.Nodes)
	Run(ctx)
	after := len(ctx.Program.Nodes)
	assert.Less(t, after, before)
	require.NoError(t, ctx.Program.VerifyTopologicalOrder())
}

func TestDistinctOptionsDoNotMerge(t *testing.T) {
	ctx := buildProgram(t, "a = sma(period=10)(1)\nb = sma(period=20)(2)\ntrade_signal_executor(a < b)\n")
	before := len(ctx.Program.Nodes)
	Run(ctx)
	after := len(ctx.Program.Nodes)
	assert.Equal(t, before, after)
}

func TestExecutorSinksNeverMerge(t *testing.T) {
	ctx := buildProgram(t, "a = 1 < 2\ntrade_signal_executor(a)\ntrade_signal_executor(a)\n")
	var before int
	for _, n := range ctx.Program.Nodes {
		if n.Type == "trade_signal_executor" {
			before++
		}
	}
	require.Equal(t, 2, before, "test setup should produce two identical executor sinks")

	Run(ctx)

	var after int
	for _, n := range ctx.Program.Nodes {
		if n.Type == "trade_signal_executor" {
			after++
		}
	}
	assert.Equal(t, 2, after, "executor sinks have ordering-sensitive side effects and must never be deduplicated")
	require.NoError(t, ctx.Program.VerifyTopologicalOrder())
}

func TestScalarLiteralsMergeAcrossTimeframes(t *testing.T) {
	ctx := buildProgram(t, "a = 1\nb = 1\ntrade_signal_executor(a < b + 1)\n")
	node, ok := ctx.Program.Get("number_0")
	require.True(t, ok)
	node.Timeframe = "1h"
	other, ok := ctx.Program.Get("number_1")
	require.True(t, ok)
	other.Timeframe = "1d"

	Run(ctx)
	_, stillThere := ctx.Program.Get("number_1")
	assert.False(t, stillThere, "differently-timeframed identical literals should still merge")
}
