// Package nodebuilder turns one parsed statement (spec §4.1 ast.Stmt) into
// graph nodes and variable bindings (spec §4.3): single-name assignment
// binds one output handle, tuple assignment binds every output of a
// multi-output component in declaration order, and a bare expression
// statement is a sink-node call that produces no binding at all.
package nodebuilder

import (
	"github.com/aristath/epochscript/internal/compiler/ast"
	"github.com/aristath/epochscript/internal/compiler/cerr"
	"github.com/aristath/epochscript/internal/compiler/context"
	"github.com/aristath/epochscript/internal/compiler/exprcompiler"
)

// Builder constructs nodes for a module's statements against one
// CompilationContext, delegating expression lowering to an exprcompiler.
type Builder struct {
	Ctx  *context.CompilationContext
	expr *exprcompiler.Compiler
}

// New builds a node builder bound to ctx.
func New(ctx *context.CompilationContext) *Builder {
	return &Builder{Ctx: ctx, expr: exprcompiler.New(ctx)}
}

// BuildModule processes every statement of mod in order.
func (b *Builder) BuildModule(mod *ast.Module) error {
	for _, stmt := range mod.Statements {
		if err := b.buildStatement(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) buildStatement(stmt ast.Stmt) error {
	switch s := stmt.(type) {
	case *ast.Assign:
		return b.buildAssign(s)
	case *ast.ExprStmt:
		return b.buildSink(s)
	default:
		pos := stmt.Position()
		return cerr.New(cerr.KindSyntax, pos.Line, pos.Col, "unsupported statement form")
	}
}

// buildAssign handles both single-name and tuple assignment (spec §4.3).
func (b *Builder) buildAssign(s *ast.Assign) error {
	if len(s.Targets) == 1 {
		v, err := b.expr.CompileExpr(s.Value)
		if err != nil {
			return err
		}
		b.Ctx.Bind(s.Targets[0], context.Binding{NodeId: v.NodeId, Handle: v.Handle})
		return nil
	}
	return b.buildTupleAssign(s)
}

// buildTupleAssign requires s.Value to be a call producing one node whose
// declared outputs are bound to s.Targets in declaration order (spec §4.3
// "Tuple assignment"). Any other expression shape on the right-hand side is
// rejected: a tuple target can only ever name one multi-output component's
// handles, not an arbitrary tuple of independent expressions.
func (b *Builder) buildTupleAssign(s *ast.Assign) error {
	call, ok := s.Value.(*ast.Call)
	if !ok {
		pos := s.Value.Position()
		return cerr.New(cerr.KindSyntax, pos.Line, pos.Col,
			"tuple assignment requires a single component call on the right-hand side")
	}
	nodeId, err := b.expr.CompileCall(call)
	if err != nil {
		return err
	}
	node, ok := b.Ctx.Program.Get(nodeId)
	if !ok {
		return cerr.New(cerr.KindBinding, s.Line, s.Col, "internal error: node %q vanished after compilation", nodeId)
	}
	meta, ok := b.Ctx.Registry.Lookup(node.Type)
	if !ok {
		return cerr.New(cerr.KindBinding, s.Line, s.Col, "internal error: transform %q not registered", node.Type)
	}
	if len(meta.Outputs) != len(s.Targets) {
		return &cerr.CompileError{
			Kind: cerr.KindArity, NodeId: nodeId, Component: node.Type, Line: s.Line, Col: s.Col,
			Message: "tuple assignment target count does not match the component's output count",
		}
	}
	for i, name := range s.Targets {
		b.Ctx.Bind(name, context.Binding{NodeId: nodeId, Handle: meta.Outputs[i].Id})
	}
	return nil
}

// buildSink handles a bare expression statement: it must be a call to a
// sink component (zero outputs), such as the trade-signal executor (spec
// §4.3 "Sink node statement").
func (b *Builder) buildSink(s *ast.ExprStmt) error {
	call, ok := s.Value.(*ast.Call)
	if !ok {
		pos := s.Value.Position()
		return cerr.New(cerr.KindSyntax, pos.Line, pos.Col, "a bare expression statement must be a sink component call")
	}
	nodeId, err := b.expr.CompileCall(call)
	if err != nil {
		return err
	}
	node, _ := b.Ctx.Program.Get(nodeId)
	meta, _ := b.Ctx.Registry.Lookup(node.Type)
	if meta.IsProducer() {
		pos := s.Value.Position()
		return cerr.New(cerr.KindSyntax, pos.Line, pos.Col,
			"component %q produces output and must be assigned to a name, not used as a bare statement", node.Type)
	}
	return nil
}
