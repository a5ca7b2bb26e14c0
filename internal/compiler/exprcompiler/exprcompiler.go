// Package exprcompiler lowers one restricted-language expression (spec
// §4.1 AST) into algorithm nodes appended to a CompilationContext's program,
// returning a typed reference to the expression's result (spec §4.2). Every
// sub-expression, including bare literals, materializes as a node: there is
// no separate constant-folding path, matching the "scalar-literal nodes"
// invariant in spec §3.
package exprcompiler

import (
	"strconv"

	"github.com/aristath/epochscript/internal/compiler/ast"
	"github.com/aristath/epochscript/internal/compiler/cerr"
	"github.com/aristath/epochscript/internal/compiler/constructorparser"
	"github.com/aristath/epochscript/internal/compiler/context"
	"github.com/aristath/epochscript/internal/compiler/typechecker"
	"github.com/aristath/epochscript/internal/domain"
	"github.com/aristath/epochscript/internal/registry"
)

var binOpTransform = map[string]string{
	"+": "add", "-": "sub", "*": "mul", "/": "div", "%": "modulo", "**": "power_op",
}

var compareTransform = map[string]string{
	"<": "lt", ">": "gt", "<=": "le", ">=": "ge", "==": "eq", "!=": "ne",
}

var boolOpTransform = map[string]string{"and": "logical_and", "or": "logical_or"}

// Compiler lowers expressions against one CompilationContext.
type Compiler struct {
	Ctx *context.CompilationContext
}

// New builds an expression compiler bound to ctx.
func New(ctx *context.CompilationContext) *Compiler {
	return &Compiler{Ctx: ctx}
}

// CompileExpr lowers one expression into a typed Value.
func (c *Compiler) CompileExpr(e ast.Expr) (context.Value, error) {
	switch n := e.(type) {
	case *ast.NumberLit:
		return c.materializeScalar("number", domain.Decimal, "value", domain.OptionValue{Kind: domain.OptionNumber, Num: n.Value})
	case *ast.BoolLit:
		id := "bool_false"
		if n.Value {
			id = "bool_true"
		}
		return c.materializeNoOption(id, domain.Boolean)
	case *ast.StringLit:
		return c.materializeScalar("text", domain.String, "value", domain.OptionValue{Kind: domain.OptionString, Str: n.Value})
	case *ast.NullLit:
		return c.compileNull(n)
	case *ast.Ident:
		return c.compileIdent(n)
	case *ast.Attribute:
		return c.compileAttribute(n)
	case *ast.Call:
		nodeId, err := c.CompileCall(n)
		if err != nil {
			return context.Value{}, err
		}
		return c.resolveSole(nodeId, n.Position())
	case *ast.BinOp:
		return c.compileBinOp(n)
	case *ast.Compare:
		return c.compileCompare(n)
	case *ast.BoolOp:
		return c.compileBoolOp(n)
	case *ast.UnaryOp:
		return c.compileUnaryOp(n)
	case *ast.IfExp:
		return c.compileIfExp(n)
	case *ast.Subscript:
		return c.compileSubscript(n)
	default:
		return context.Value{}, cerr.New(cerr.KindSyntax, e.Position().Line, e.Position().Col, "expression form not valid in this context")
	}
}

func (c *Compiler) resolveSole(nodeId string, pos ast.Pos) (context.Value, error) {
	ref, err := c.Ctx.ResolveBinding(context.Binding{NodeId: nodeId})
	if err != nil {
		return context.Value{}, cerr.New(cerr.KindBinding, pos.Line, pos.Col, "%s", err.Error())
	}
	t, err := c.Ctx.OutputType(ref.NodeId, ref.Handle)
	if err != nil {
		return context.Value{}, cerr.New(cerr.KindBinding, pos.Line, pos.Col, "%s", err.Error())
	}
	return context.Value{NodeId: ref.NodeId, Handle: ref.Handle, Type: t}, nil
}

func (c *Compiler) materializeNoOption(transformType string, t domain.DataType) (context.Value, error) {
	id := c.Ctx.UniqueNodeId(transformType)
	node := domain.NewAlgorithmNode(id, transformType)
	c.Ctx.Append(node)
	return context.Value{NodeId: id, Handle: "result", Type: t}, nil
}

func (c *Compiler) materializeScalar(transformType string, t domain.DataType, optId string, val domain.OptionValue) (context.Value, error) {
	id := c.Ctx.UniqueNodeId(transformType)
	node := domain.NewAlgorithmNode(id, transformType)
	node.Options[optId] = val
	c.Ctx.Append(node)
	return context.Value{NodeId: id, Handle: "result", Type: t}, nil
}

// compileNull materializes the typed-null literal that matches n.TypeHint,
// defaulting to null_number when no hint is available (spec §4.2 "Literal
// materialization").
func (c *Compiler) compileNull(n *ast.NullLit) (context.Value, error) {
	hint := n.TypeHint
	transformType, t := "null_number", domain.Number
	switch hint {
	case "Boolean":
		transformType, t = "null_boolean", domain.Boolean
	case "String":
		transformType, t = "null_string", domain.String
	case "Timestamp":
		transformType, t = "null_timestamp", domain.Timestamp
	}
	return c.materializeNoOption(transformType, t)
}

// compileIdent resolves a bare identifier (spec §4.2 "Bare identifier
// resolution"): the lowercase keywords true/false materialize boolean
// literals, anything else must already be bound by a prior assignment.
func (c *Compiler) compileIdent(n *ast.Ident) (context.Value, error) {
	switch n.Name {
	case "true":
		return c.materializeNoOption("bool_true", domain.Boolean)
	case "false":
		return c.materializeNoOption("bool_false", domain.Boolean)
	}
	b, ok := c.Ctx.Lookup(n.Name)
	if !ok {
		return context.Value{}, cerr.New(cerr.KindBinding, n.Line, n.Col, "undefined variable %q", n.Name)
	}
	ref, err := c.Ctx.ResolveBinding(b)
	if err != nil {
		return context.Value{}, cerr.New(cerr.KindBinding, n.Line, n.Col, "%s", err.Error())
	}
	t, err := c.Ctx.OutputType(ref.NodeId, ref.Handle)
	if err != nil {
		return context.Value{}, cerr.New(cerr.KindBinding, n.Line, n.Col, "%s", err.Error())
	}
	return context.Value{NodeId: ref.NodeId, Handle: ref.Handle, Type: t}, nil
}

// compileNodeRef resolves the expression naming a node (as opposed to one
// output handle of it) for use as the base of an Attribute access.
func (c *Compiler) compileNodeRef(e ast.Expr) (string, error) {
	switch n := e.(type) {
	case *ast.Ident:
		b, ok := c.Ctx.Lookup(n.Name)
		if !ok {
			return "", cerr.New(cerr.KindBinding, n.Line, n.Col, "undefined variable %q", n.Name)
		}
		return b.NodeId, nil
	case *ast.Call:
		return c.CompileCall(n)
	default:
		pos := e.Position()
		return "", cerr.New(cerr.KindSyntax, pos.Line, pos.Col, "attribute access requires a variable or call on its left side")
	}
}

func (c *Compiler) compileAttribute(n *ast.Attribute) (context.Value, error) {
	nodeId, err := c.compileNodeRef(n.Base)
	if err != nil {
		return context.Value{}, err
	}
	t, err := c.Ctx.OutputType(nodeId, n.Name)
	if err != nil {
		return context.Value{}, cerr.New(cerr.KindBinding, n.Line, n.Col, "%s", err.Error())
	}
	return context.Value{NodeId: nodeId, Handle: n.Name, Type: t}, nil
}

// flattenCallChain unwraps `f(opts)(inputs)`-style nesting (spec §4.2
// "Inline constructor calls") down to the leaf component identifier and the
// ordered list of call layers, outermost last becomes innermost first.
func flattenCallChain(e ast.Expr) (string, []*ast.Call, bool) {
	var stack []*ast.Call
	cur := e
	for {
		call, ok := cur.(*ast.Call)
		if !ok {
			break
		}
		stack = append(stack, call)
		cur = call.Func
	}
	ident, ok := cur.(*ast.Ident)
	if !ok {
		return "", nil, false
	}
	layers := make([]*ast.Call, len(stack))
	for i, call := range stack {
		layers[len(stack)-1-i] = call
	}
	return ident.Name, layers, true
}

// CompileCall lowers one (possibly chained) constructor call into a new
// node, wiring options from every layer's kwargs and positional inputs from
// every layer's args, in layer order. It does not fill option defaults or
// check required/min/max — that is internal/compiler/optionvalidator's job,
// run as a whole-program pass once every node exists.
func (c *Compiler) CompileCall(call *ast.Call) (string, error) {
	name, layers, ok := flattenCallChain(call)
	if !ok {
		pos := call.Position()
		return "", cerr.New(cerr.KindSyntax, pos.Line, pos.Col, "call target must be a component name")
	}
	meta, ok := c.Ctx.Registry.Lookup(name)
	if !ok {
		pos := call.Position()
		return "", &cerr.CompileError{Kind: cerr.KindUnknownComponent, Component: name, Line: pos.Line, Col: pos.Col,
			Message: "unknown component " + strconvQuote(name)}
	}

	id := c.Ctx.UniqueNodeId(name)
	node := domain.NewAlgorithmNode(id, name)

	var positional []ast.Expr
	for _, layer := range layers {
		for _, kw := range layer.Kwargs {
			if kw.Name == "timeframe" || kw.Name == "session" {
				lit, ok := kw.Value.(*ast.StringLit)
				if !ok {
					return "", &cerr.CompileError{Kind: cerr.KindOption, NodeId: id, Component: name, Field: kw.Name,
						Line: kw.Value.Position().Line, Col: kw.Value.Position().Col,
						Message: "option " + kw.Name + " must be a string literal"}
				}
				node.Options[kw.Name] = domain.OptionValue{Kind: domain.OptionString, Str: lit.Value}
				continue
			}
			optMeta, ok := meta.OptionMeta(kw.Name)
			if !ok {
				return "", &cerr.CompileError{Kind: cerr.KindOption, NodeId: id, Component: name, Field: kw.Name,
					Line: kw.Value.Position().Line, Col: kw.Value.Position().Col,
					Message: "unknown option " + strconvQuote(kw.Name)}
			}
			val, err := c.evalOption(id, name, optMeta, kw.Value)
			if err != nil {
				return "", err
			}
			node.Options[kw.Name] = val
		}
		positional = append(positional, layer.Args...)
	}

	if len(positional) > len(meta.Inputs) {
		pos := call.Position()
		return "", cerr.FormatArgumentError(id, name, len(positional), len(meta.Inputs), pos.Line, pos.Col)
	}
	for i, argExpr := range positional {
		handle := meta.Inputs[i]
		v, err := c.CompileExpr(argExpr)
		if err != nil {
			return "", err
		}
		pos := argExpr.Position()
		coerced, err := typechecker.Coerce(c.Ctx, v, handle.Type, id, name, pos.Line, pos.Col)
		if err != nil {
			return "", err
		}
		node.SetInput(handle.Id, coerced.Ref())
	}

	c.Ctx.Append(node)
	return id, nil
}

func (c *Compiler) evalOption(nodeId, component string, optMeta registry.Option, expr ast.Expr) (domain.OptionValue, error) {
	pos := expr.Position()
	if optMeta.Structured {
		call, ok := expr.(*ast.Call)
		if !ok {
			return domain.OptionValue{}, &cerr.CompileError{Kind: cerr.KindOption, NodeId: nodeId, Component: component, Field: optMeta.Id,
				Line: pos.Line, Col: pos.Col, Message: optMeta.StructuredKind + "(...) constructor call required"}
		}
		parsed, err := constructorparser.Parse(optMeta.StructuredKind, call)
		if err != nil {
			return domain.OptionValue{}, err
		}
		return domain.OptionValue{Kind: domain.OptionStructured, Structured: parsed}, nil
	}
	switch v := expr.(type) {
	case *ast.NumberLit:
		return domain.OptionValue{Kind: domain.OptionNumber, Num: v.Value}, nil
	case *ast.BoolLit:
		return domain.OptionValue{Kind: domain.OptionBool, Bool: v.Value}, nil
	case *ast.StringLit:
		if optMeta.SelectValues != nil && !contains(optMeta.SelectValues, v.Value) {
			return domain.OptionValue{}, &cerr.CompileError{Kind: cerr.KindOption, NodeId: nodeId, Component: component, Field: optMeta.Id,
				Line: pos.Line, Col: pos.Col, Message: strconvQuote(v.Value) + " is not one of the allowed values for this option"}
		}
		return domain.OptionValue{Kind: domain.OptionString, Str: v.Value}, nil
	default:
		return domain.OptionValue{}, &cerr.CompileError{Kind: cerr.KindOption, NodeId: nodeId, Component: component, Field: optMeta.Id,
			Line: pos.Line, Col: pos.Col, Message: "option value must be a literal constant"}
	}
}

func contains(values []string, s string) bool {
	for _, v := range values {
		if v == s {
			return true
		}
	}
	return false
}

func strconvQuote(s string) string { return strconv.Quote(s) }

func (c *Compiler) compileBinOp(n *ast.BinOp) (context.Value, error) {
	transformType := binOpTransform[n.Op]
	id := c.Ctx.UniqueNodeId(transformType) // reserved before compiling children (spec §4.2 "Topological placement")
	left, err := c.CompileExpr(n.Left)
	if err != nil {
		return context.Value{}, err
	}
	right, err := c.CompileExpr(n.Right)
	if err != nil {
		return context.Value{}, err
	}
	node := domain.NewAlgorithmNode(id, transformType)
	left, err = typechecker.Coerce(c.Ctx, left, domain.Number, id, transformType, n.Line, n.Col)
	if err != nil {
		return context.Value{}, err
	}
	right, err = typechecker.Coerce(c.Ctx, right, domain.Number, id, transformType, n.Line, n.Col)
	if err != nil {
		return context.Value{}, err
	}
	node.SetInput("SLOT0", left.Ref())
	node.SetInput("SLOT1", right.Ref())
	c.Ctx.Append(node)
	return context.Value{NodeId: id, Handle: "result", Type: domain.Number}, nil
}

func (c *Compiler) compileCompare(n *ast.Compare) (context.Value, error) {
	transformType := compareTransform[n.Op]
	id := c.Ctx.UniqueNodeId(transformType)
	left, err := c.CompileExpr(n.Left)
	if err != nil {
		return context.Value{}, err
	}
	right, err := c.CompileExpr(n.Right)
	if err != nil {
		return context.Value{}, err
	}
	if !domain.Compatible(left.Type, right.Type) {
		return context.Value{}, cerr.FormatTypeError(id, transformType, "", string(left.Type), string(right.Type), n.Line, n.Col)
	}
	node := domain.NewAlgorithmNode(id, transformType)
	node.SetInput("SLOT0", left.Ref())
	node.SetInput("SLOT1", right.Ref())
	c.Ctx.Append(node)
	return context.Value{NodeId: id, Handle: "result", Type: domain.Boolean}, nil
}

// compileBoolOp lowers a flattened n-ary and/or chain into a right-associated
// sequence of binary logical_and/logical_or nodes, since the registered
// transforms are binary (spec §4.2 "Lowered to a right-associated chain";
// original_source's VisitBoolOp nests logical_and_0(a, logical_and_1(b, c))).
// Node ids are reserved left-to-right, matching compileBinOp's "topological
// placement" convention, but the fold itself builds from the rightmost pair
// outward so children are always appended before the parent that wires them.
func (c *Compiler) compileBoolOp(n *ast.BoolOp) (context.Value, error) {
	transformType := boolOpTransform[n.Op]

	ids := make([]string, len(n.Values)-1)
	for i := range ids {
		ids[i] = c.Ctx.UniqueNodeId(transformType)
	}

	values := make([]context.Value, len(n.Values))
	for i, valueExpr := range n.Values {
		v, err := c.CompileExpr(valueExpr)
		if err != nil {
			return context.Value{}, err
		}
		coerceId := ids[len(ids)-1]
		if i < len(ids) {
			coerceId = ids[i]
		}
		v, err = typechecker.Coerce(c.Ctx, v, domain.Boolean, coerceId, transformType, n.Line, n.Col)
		if err != nil {
			return context.Value{}, err
		}
		values[i] = v
	}

	acc := values[len(values)-1]
	for i := len(ids) - 1; i >= 0; i-- {
		node := domain.NewAlgorithmNode(ids[i], transformType)
		node.SetInput("SLOT0", values[i].Ref())
		node.SetInput("SLOT1", acc.Ref())
		c.Ctx.Append(node)
		acc = context.Value{NodeId: ids[i], Handle: "result", Type: domain.Boolean}
	}
	return acc, nil
}

func (c *Compiler) compileUnaryOp(n *ast.UnaryOp) (context.Value, error) {
	if n.Op == "+" {
		// Unary plus is a no-op; the operand's own node stands in for it.
		return c.CompileExpr(n.Operand)
	}
	if n.Op == "not" {
		id := c.Ctx.UniqueNodeId("logical_not")
		operand, err := c.CompileExpr(n.Operand)
		if err != nil {
			return context.Value{}, err
		}
		operand, err = typechecker.Coerce(c.Ctx, operand, domain.Boolean, id, "logical_not", n.Line, n.Col)
		if err != nil {
			return context.Value{}, err
		}
		node := domain.NewAlgorithmNode(id, "logical_not")
		node.SetInput("SLOT", operand.Ref())
		c.Ctx.Append(node)
		return context.Value{NodeId: id, Handle: "result", Type: domain.Boolean}, nil
	}

	// Unary minus materializes as mul(-1, x), not a dedicated negate
	// transform (spec §4.2; original_source's VisitUnaryOp wires a
	// MaterializeNumber(-1) literal into a mul node).
	id := c.Ctx.UniqueNodeId("mul")
	negOne, err := c.materializeScalar("number", domain.Decimal, "value", domain.OptionValue{Kind: domain.OptionNumber, Num: -1})
	if err != nil {
		return context.Value{}, err
	}
	operand, err := c.CompileExpr(n.Operand)
	if err != nil {
		return context.Value{}, err
	}
	negOne, err = typechecker.Coerce(c.Ctx, negOne, domain.Number, id, "mul", n.Line, n.Col)
	if err != nil {
		return context.Value{}, err
	}
	operand, err = typechecker.Coerce(c.Ctx, operand, domain.Number, id, "mul", n.Line, n.Col)
	if err != nil {
		return context.Value{}, err
	}
	node := domain.NewAlgorithmNode(id, "mul")
	node.SetInput("SLOT0", negOne.Ref())
	node.SetInput("SLOT1", operand.Ref())
	c.Ctx.Append(node)
	return context.Value{NodeId: id, Handle: "result", Type: domain.Number}, nil
}

// compileIfExp lowers the ternary into the boolean_select_<type> node chosen
// from the branches' type, and types the result by that node's declared
// output (spec §4.4's select-node rule; typechecker.ValidateSelectNodes
// re-checks the branch types in whole-program form).
func (c *Compiler) compileIfExp(n *ast.IfExp) (context.Value, error) {
	id := c.Ctx.UniqueNodeId("boolean_select")
	cond, err := c.CompileExpr(n.Test)
	if err != nil {
		return context.Value{}, err
	}
	cond, err = typechecker.Coerce(c.Ctx, cond, domain.Boolean, id, "boolean_select", n.Line, n.Col)
	if err != nil {
		return context.Value{}, err
	}
	body, err := c.CompileExpr(n.Body)
	if err != nil {
		return context.Value{}, err
	}
	orelse, err := c.CompileExpr(n.OrElse)
	if err != nil {
		return context.Value{}, err
	}
	if !domain.Compatible(body.Type, orelse.Type) {
		return context.Value{}, cerr.FormatTypeError(id, "boolean_select", "true/false", string(body.Type), string(orelse.Type), n.Line, n.Col)
	}
	transformType := "boolean_select_" + selectSuffix(body.Type)
	node := domain.NewAlgorithmNode(id, transformType)
	node.SetInput("condition", cond.Ref())
	node.SetInput("true", body.Ref())
	node.SetInput("false", orelse.Ref())
	c.Ctx.Append(node)
	resultType, err := c.Ctx.OutputType(id, "result")
	if err != nil {
		return context.Value{}, cerr.New(cerr.KindBinding, n.Line, n.Col, "%s", err.Error())
	}
	return context.Value{NodeId: id, Handle: "result", Type: resultType}, nil
}

func selectSuffix(t domain.DataType) string {
	switch {
	case t == domain.Boolean:
		return "boolean"
	case t == domain.String:
		return "string"
	case t == domain.Timestamp:
		return "timestamp"
	default:
		return "number"
	}
}

// compileSubscript lowers `value[index]` into a lag_<type> node; index must
// reduce to a (possibly unary-negated) integer literal, and zero is rejected
// as a lag period (spec §4.2 "Subscript as lag"; original_source's lag-node
// construction, "Lag period must be a non-zero integer").
func (c *Compiler) compileSubscript(n *ast.Subscript) (context.Value, error) {
	period, ok := subscriptIndexLiteral(n.Index)
	if !ok {
		pos := n.Index.Position()
		return context.Value{}, cerr.New(cerr.KindSyntax, pos.Line, pos.Col, "subscript index must be an integer literal (used as a lag period)")
	}
	if period == 0 {
		pos := n.Index.Position()
		return context.Value{}, cerr.New(cerr.KindOption, pos.Line, pos.Col, "lag period must be a non-zero integer")
	}
	base, err := c.CompileExpr(n.Value)
	if err != nil {
		return context.Value{}, err
	}
	transformType := "lag_" + lagSuffix(base.Type)
	id := c.Ctx.UniqueNodeId(transformType)
	node := domain.NewAlgorithmNode(id, transformType)
	node.Options["period"] = domain.OptionValue{Kind: domain.OptionNumber, Num: float64(period)}
	node.SetInput("SLOT", base.Ref())
	c.Ctx.Append(node)
	return context.Value{NodeId: id, Handle: "result", Type: base.Type}, nil
}

// subscriptIndexLiteral accepts a bare integer literal or a unary-negated
// one (`x[-1]` parses as UnaryOp(-, NumberLit)) and returns its integer
// value.
func subscriptIndexLiteral(e ast.Expr) (int, bool) {
	switch idx := e.(type) {
	case *ast.NumberLit:
		if !idx.IsInt {
			return 0, false
		}
		return int(idx.Value), true
	case *ast.UnaryOp:
		if idx.Op != "-" {
			return 0, false
		}
		lit, ok := idx.Operand.(*ast.NumberLit)
		if !ok || !lit.IsInt {
			return 0, false
		}
		return -int(lit.Value), true
	default:
		return 0, false
	}
}

func lagSuffix(t domain.DataType) string {
	switch t {
	case domain.Boolean:
		return "boolean"
	case domain.String:
		return "string"
	case domain.Timestamp:
		return "timestamp"
	default:
		return "number"
	}
}
