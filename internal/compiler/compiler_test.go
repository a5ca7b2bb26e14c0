package compiler

import (
	"testing"

	"github.com/aristath/epochscript/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileSimpleStrategy(t *testing.T) {
	source := `
close = market_data_source().c
fast = ema(period=10)(close)
slow = ema(period=30)(close)
signal = fast > slow
trade_signal_executor(signal)
`
	program, err := Compile(source, registry.Global)
	require.NoError(t, err)
	require.NoError(t, program.VerifyTopologicalOrder())
	assert.Equal(t, 1, program.ExecutorCount)

	_, ok := program.Get("gt_0")
	assert.True(t, ok)
}

func TestCompileDeduplicatesRepeatedSubexpressions(t *testing.T) {
	source := `
a = 1 + 2
b = 1 + 2
trade_signal_executor(a < b)
`
	program, err := Compile(source, registry.Global)
	require.NoError(t, err)
	_, hasDup := program.Get("add_1")
	assert.False(t, hasDup, "the second '1 + 2' should have been merged into the first")
}

func TestCompileRejectsMissingExecutor(t *testing.T) {
	_, err := Compile("x = 1 + 2\n", registry.Global)
	assert.Error(t, err)
}

func TestCompileInsertsCastForBooleanArithmetic(t *testing.T) {
	source := `
flag = true
n = flag + 1
trade_signal_executor(n > 0)
`
	program, err := Compile(source, registry.Global)
	require.NoError(t, err)
	_, hasCast := program.Get("static_cast_to_number_0")
	assert.True(t, hasCast)
}

func TestCompileRejectsUndefinedVariable(t *testing.T) {
	_, err := Compile("trade_signal_executor(missing_var)\n", registry.Global)
	assert.Error(t, err)
}

func TestCompileParseErrorPropagates(t *testing.T) {
	_, err := Compile("import os\n", registry.Global)
	assert.Error(t, err)
}
