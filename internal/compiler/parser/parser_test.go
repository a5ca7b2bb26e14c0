package parser

import (
	"testing"

	"github.com/aristath/epochscript/internal/compiler/ast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSimpleAssignment(t *testing.T) {
	mod, err := Parse("x = 1 + 2\n")
	require.NoError(t, err)
	require.Len(t, mod.Statements, 1)

	assign, ok := mod.Statements[0].(*ast.Assign)
	require.True(t, ok)
	assert.Equal(t, []string{"x"}, assign.Targets)

	bin, ok := assign.Value.(*ast.BinOp)
	require.True(t, ok)
	assert.Equal(t, "+", bin.Op)
}

func TestParseTupleAssignment(t *testing.T) {
	mod, err := Parse("o, h = bar()\n")
	require.NoError(t, err)
	assign := mod.Statements[0].(*ast.Assign)
	assert.Equal(t, []string{"o", "h"}, assign.Targets)
	_, ok := assign.Value.(*ast.Call)
	assert.True(t, ok)
}

func TestParseTernary(t *testing.T) {
	mod, err := Parse("y = 1 if flag else 0\n")
	require.NoError(t, err)
	assign := mod.Statements[0].(*ast.Assign)
	ifexp, ok := assign.Value.(*ast.IfExp)
	require.True(t, ok)
	assert.IsType(t, &ast.NumberLit{}, ifexp.Body)
	assert.IsType(t, &ast.Ident{}, ifexp.Test)
	assert.IsType(t, &ast.NumberLit{}, ifexp.OrElse)
}

func TestParseChainedCallsAndSubscript(t *testing.T) {
	mod, err := Parse("signal = sma(period=10)(close)[1]\n")
	require.NoError(t, err)
	assign := mod.Statements[0].(*ast.Assign)
	sub, ok := assign.Value.(*ast.Subscript)
	require.True(t, ok)
	outer, ok := sub.Value.(*ast.Call)
	require.True(t, ok)
	require.Len(t, outer.Args, 1)
	inner, ok := outer.Func.(*ast.Call)
	require.True(t, ok)
	require.Len(t, inner.Kwargs, 1)
	assert.Equal(t, "period", inner.Kwargs[0].Name)
	ident, ok := inner.Func.(*ast.Ident)
	require.True(t, ok)
	assert.Equal(t, "sma", ident.Name)
}

func TestParseBooleanChainFlattened(t *testing.T) {
	mod, err := Parse("z = a and b and c\n")
	require.NoError(t, err)
	assign := mod.Statements[0].(*ast.Assign)
	boolOp, ok := assign.Value.(*ast.BoolOp)
	require.True(t, ok)
	assert.Equal(t, "and", boolOp.Op)
	assert.Len(t, boolOp.Values, 3)
}

func TestParseRejectsChainedComparison(t *testing.T) {
	_, err := Parse("x = 1 < 2 < 3\n")
	require.Error(t, err)
}

func TestParseRejectsImport(t *testing.T) {
	_, err := Parse("import os\n")
	require.Error(t, err)
}

func TestParseRejectsDef(t *testing.T) {
	_, err := Parse("def f():\n    pass\n")
	require.Error(t, err)
}

func TestNormalizeHealsBackticksAndMismatchedQuotes(t *testing.T) {
	assert.Equal(t, `x = "abc"`, Normalize("x = `abc`"))
	assert.Equal(t, `x = "abc")`, Normalize(`x = "abc')`))
}

func TestParseDictAndListLiterals(t *testing.T) {
	mod, err := Parse(`x = {"a": 1, "b": 2}` + "\n")
	require.NoError(t, err)
	assign := mod.Statements[0].(*ast.Assign)
	dict, ok := assign.Value.(*ast.DictLit)
	require.True(t, ok)
	assert.Len(t, dict.Entries, 2)

	mod2, err := Parse("y = [1, 2, 3]\n")
	require.NoError(t, err)
	assign2 := mod2.Statements[0].(*ast.Assign)
	list, ok := assign2.Value.(*ast.ListLit)
	require.True(t, ok)
	assert.Len(t, list.Elements, 3)
}

func TestParseSinkStatement(t *testing.T) {
	mod, err := Parse("trade_signal_executor(flag)\n")
	require.NoError(t, err)
	_, ok := mod.Statements[0].(*ast.ExprStmt)
	assert.True(t, ok)
}
