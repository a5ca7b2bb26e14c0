package exprcompiler

import (
	"testing"

	"github.com/aristath/epochscript/internal/compiler/ast"
	"github.com/aristath/epochscript/internal/compiler/context"
	"github.com/aristath/epochscript/internal/compiler/parser"
	"github.com/aristath/epochscript/internal/domain"
	"github.com/aristath/epochscript/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// parseExpr parses a one-statement, bare-expression script and returns its
// expression tree.
func parseExpr(t *testing.T, source string) ast.Expr {
	t.Helper()
	mod, err := parser.Parse(source + "\n")
	require.NoError(t, err)
	require.Len(t, mod.Statements, 1)
	stmt, ok := mod.Statements[0].(*ast.ExprStmt)
	require.True(t, ok, "expected a bare expression statement")
	return stmt.Value
}

func compileOne(t *testing.T, source string) (*context.CompilationContext, context.Value) {
	t.Helper()
	ctx := context.New(registry.Global)
	c := New(ctx)
	v, err := c.CompileExpr(parseExpr(t, source))
	require.NoError(t, err)
	return ctx, v
}

func TestArithmeticProducesNumberChain(t *testing.T) {
	ctx, v := compileOne(t, "1 + 2 * 3")
	assert.Equal(t, domain.Number, v.Type)
	assert.Equal(t, "result", v.Handle)
	// add, mul, and three number-literal nodes: 5 nodes total.
	assert.Len(t, ctx.Program.Nodes, 5)
	require.NoError(t, ctx.Program.VerifyTopologicalOrder())
}

func TestComparisonProducesBoolean(t *testing.T) {
	_, v := compileOne(t, "1 < 2")
	assert.Equal(t, domain.Boolean, v.Type)
}

func TestLogicalChainFoldsRightAssociatively(t *testing.T) {
	ctx, v := compileOne(t, "true and true and false")
	assert.Equal(t, domain.Boolean, v.Type)
	outer, ok := ctx.Program.Get(v.NodeId)
	require.True(t, ok)
	assert.Equal(t, "logical_and", outer.Type)

	var andCount int
	for _, n := range ctx.Program.Nodes {
		if n.Type == "logical_and" {
			andCount++
		}
	}
	assert.Equal(t, 2, andCount, "three values should fold into exactly two logical_and nodes")

	// Right-associated: and(a, and(b, c)) — the outer node's SLOT1 must be
	// the *other* logical_and node, not a bare value, and that inner node
	// must be appended (topologically) before the outer one.
	inner, ok := ctx.Program.Get(outer.Inputs["SLOT1"][0].Ref.NodeId)
	require.True(t, ok, "outer node's SLOT1 must reference the inner logical_and node")
	assert.Equal(t, "logical_and", inner.Type)
	assert.NotEqual(t, outer.Id, inner.Id)

	require.NoError(t, ctx.Program.VerifyTopologicalOrder())
}

func TestTernaryMatchingBranchTypes(t *testing.T) {
	ctx, v := compileOne(t, "1 if true else 0")
	assert.Equal(t, domain.Number, v.Type)
	node, ok := ctx.Program.Get(v.NodeId)
	require.True(t, ok)
	assert.Equal(t, "boolean_select_number", node.Type)
}

func TestTernaryMismatchedBranchTypesErrors(t *testing.T) {
	ctx := context.New(registry.Global)
	c := New(ctx)
	_, err := c.CompileExpr(parseExpr(t, `1 if true else "x"`))
	assert.Error(t, err)
}

func TestSubscriptLowersToLag(t *testing.T) {
	ctx, v := compileOne(t, "(1 + 2)[2]")
	assert.Equal(t, domain.Number, v.Type)
	node, ok := ctx.Program.Get(v.NodeId)
	require.True(t, ok)
	assert.Equal(t, "lag_number", node.Type)
	assert.Equal(t, float64(2), node.Options["period"].Num)
}

func TestSubscriptRejectsNonIntegerIndex(t *testing.T) {
	ctx := context.New(registry.Global)
	c := New(ctx)
	_, err := c.CompileExpr(parseExpr(t, "(1)[1.5]"))
	assert.Error(t, err)
}

func TestInlineCallWithOptionsAndInput(t *testing.T) {
	ctx, v := compileOne(t, "sma(period=10)(1 + 2)")
	assert.Equal(t, domain.Number, v.Type)
	node, ok := ctx.Program.Get(v.NodeId)
	require.True(t, ok)
	assert.Equal(t, "sma", node.Type)
	assert.Equal(t, float64(10), node.Options["period"].Num)
	assert.Len(t, node.Inputs["SLOT"], 1)
}

func TestUnknownComponentErrors(t *testing.T) {
	ctx := context.New(registry.Global)
	c := New(ctx)
	_, err := c.CompileExpr(parseExpr(t, "not_a_real_component()"))
	assert.Error(t, err)
}

func TestTooManyPositionalArgumentsErrors(t *testing.T) {
	ctx := context.New(registry.Global)
	c := New(ctx)
	_, err := c.CompileExpr(parseExpr(t, "sma(period=10)(1, 2, 3)"))
	assert.Error(t, err)
}

func TestUnaryMinusLowersToMulByNegativeOne(t *testing.T) {
	ctx, v := compileOne(t, "-5")
	assert.Equal(t, domain.Number, v.Type)
	node, ok := ctx.Program.Get(v.NodeId)
	require.True(t, ok)
	assert.Equal(t, "mul", node.Type)

	negOneRef := node.Inputs["SLOT0"][0].Ref
	negOneNode, ok := ctx.Program.Get(negOneRef.NodeId)
	require.True(t, ok)
	assert.Equal(t, "number", negOneNode.Type)
	assert.Equal(t, float64(-1), negOneNode.Options["value"].Num)
}

func TestBareBooleanKeywordsMaterialize(t *testing.T) {
	_, v := compileOne(t, "true")
	assert.Equal(t, domain.Boolean, v.Type)
}
