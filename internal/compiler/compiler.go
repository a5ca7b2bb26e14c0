// Package compiler orchestrates the full pipeline from script source to a
// compiled, topologically-sorted, CSE-optimized program (spec §4): parse,
// build nodes, resolve types, validate options, eliminate common
// subexpressions.
package compiler

import (
	"fmt"

	"github.com/aristath/epochscript/internal/compiler/context"
	"github.com/aristath/epochscript/internal/compiler/cse"
	"github.com/aristath/epochscript/internal/compiler/nodebuilder"
	"github.com/aristath/epochscript/internal/compiler/optionvalidator"
	"github.com/aristath/epochscript/internal/compiler/parser"
	"github.com/aristath/epochscript/internal/compiler/typechecker"
	"github.com/aristath/epochscript/internal/domain"
	"github.com/aristath/epochscript/internal/registry"
)

// Compile runs every compiler stage over source and returns the finished
// program, or the first error encountered: a *parser.ParseError from
// parsing, in most cases a *cerr.CompileError from the later stages, and a
// plain error when the program has no trade_signal_executor sink or breaks
// topological order.
func Compile(source string, reg *registry.Registry) (*domain.CompiledProgram, error) {
	mod, err := parser.Parse(source)
	if err != nil {
		return nil, err
	}

	ctx := context.New(reg)
	builder := nodebuilder.New(ctx)
	if err := builder.BuildModule(mod); err != nil {
		return nil, err
	}

	if err := typechecker.ResolveAnyOutputs(ctx); err != nil {
		return nil, err
	}
	if err := typechecker.ValidateSelectNodes(ctx); err != nil {
		return nil, err
	}
	if err := optionvalidator.Validate(ctx); err != nil {
		return nil, err
	}

	cse.Run(ctx)

	if err := ctx.Program.VerifyTopologicalOrder(); err != nil {
		return nil, fmt.Errorf("compiler: internal invariant violated: %w", err)
	}
	if ctx.Program.ExecutorCount == 0 {
		return nil, fmt.Errorf("compiler: program has no trade_signal_executor sink")
	}
	return ctx.Program, nil
}
