// Package optionvalidator runs once the whole program is wired: it fills in
// default option values, rejects missing required options, clamps numeric
// options to their declared min/max/step, and resolves the two special
// parameters every transform implicitly accepts, timeframe and session
// (spec §4.5, §4.6).
package optionvalidator

import (
	"math"
	"strconv"

	"github.com/aristath/epochscript/internal/compiler/cerr"
	"github.com/aristath/epochscript/internal/compiler/context"
	"github.com/aristath/epochscript/internal/domain"
	"github.com/aristath/epochscript/internal/registry"
)

// Validate walks every node in ctx.Program and applies defaulting, required
// checks, min/max/step clamping and select-value membership. Structured
// options are left untouched: constructorparser already validated their
// internal shape.
func Validate(ctx *context.CompilationContext) error {
	for _, node := range ctx.Program.Nodes {
		meta, ok := ctx.Registry.Lookup(node.Type)
		if !ok {
			return cerr.New(cerr.KindUnknownComponent, 0, 0, "node %q references unregistered transform %q", node.Id, node.Type)
		}
		for _, optMeta := range meta.Options {
			val, set := node.Options[optMeta.Id]
			if !set {
				if optMeta.HasDefault {
					node.Options[optMeta.Id] = optMeta.Default
					continue
				}
				if optMeta.IsRequired {
					return &cerr.CompileError{
						Kind: cerr.KindOption, NodeId: node.Id, Component: node.Type, Field: optMeta.Id,
						Message: "missing required option " + optMeta.Id,
					}
				}
				continue
			}
			if optMeta.Structured || val.Kind != domain.OptionNumber {
				continue
			}
			clamped, err := clampNumeric(node.Id, node.Type, optMeta, val.Num)
			if err != nil {
				return err
			}
			node.Options[optMeta.Id] = domain.OptionValue{Kind: domain.OptionNumber, Num: clamped}
		}
	}
	return ApplySpecialParameters(ctx)
}

func clampNumeric(nodeId, component string, optMeta registry.Option, v float64) (float64, error) {
	if optMeta.HasMin && v < optMeta.Min {
		return 0, &cerr.CompileError{
			Kind: cerr.KindOption, NodeId: nodeId, Component: component, Field: optMeta.Id,
			Expected: "at least " + floatStr(optMeta.Min), Actual: floatStr(v),
			Message: "option " + optMeta.Id + " below minimum",
		}
	}
	if optMeta.HasMax && v > optMeta.Max {
		return 0, &cerr.CompileError{
			Kind: cerr.KindOption, NodeId: nodeId, Component: component, Field: optMeta.Id,
			Expected: "at most " + floatStr(optMeta.Max), Actual: floatStr(v),
			Message: "option " + optMeta.Id + " above maximum",
		}
	}
	if optMeta.HasStepSize && optMeta.StepSize > 0 {
		steps := math.Round(v / optMeta.StepSize)
		v = steps * optMeta.StepSize
	}
	return v, nil
}

func floatStr(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
