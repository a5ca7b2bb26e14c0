// Package cse implements the common-subexpression-elimination pass (spec
// §4.8): nodes that are structurally identical collapse to one, with
// references to the removed duplicate rewritten to the surviving node. Pure
// scalar-literal nodes (number, bool_true, bool_false, text, the typed
// nulls) are treated as timeframe/session-agnostic when computing their
// canonical key, since the same literal value means the same thing
// regardless of which timeframe/session context produced it.
package cse

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/aristath/epochscript/internal/compiler/context"
	"github.com/aristath/epochscript/internal/domain"
)

// Run repeatedly merges structurally-identical nodes until a pass produces
// no further merge (spec §4.8 "fixed-point iteration").
func Run(ctx *context.CompilationContext) {
	for onePass(ctx) {
	}
}

// onePass performs one left-to-right scan, merging every node whose
// canonical key matches an earlier node's, and returns whether anything was
// merged.
func onePass(ctx *context.CompilationContext) bool {
	program := ctx.Program
	seen := make(map[string]string, len(program.Nodes)) // canonical key -> surviving node id
	replacement := make(map[string]string)               // removed node id -> surviving node id

	kept := make([]*domain.AlgorithmNode, 0, len(program.Nodes))
	changed := false

	for _, node := range program.Nodes {
		rewriteReferences(node, replacement)

		// Executor sinks are never deduplicated: they have ordering-sensitive
		// side effects, so two structurally-identical sinks must both survive
		// (spec §4.8 "Executor sinks are never deduplicated").
		if node.Type == domain.ExecutorTransformType {
			kept = append(kept, node)
			continue
		}

		key := canonicalKey(node)
		if survivorId, dup := seen[key]; dup {
			replacement[node.Id] = survivorId
			changed = true
			continue
		}
		seen[key] = node.Id
		kept = append(kept, node)
	}

	if !changed {
		return false
	}
	program.Nodes = kept
	program.Rebuild()
	return true
}

// rewriteReferences redirects any input of node that points at an
// already-removed duplicate to that duplicate's surviving node.
func rewriteReferences(node *domain.AlgorithmNode, replacement map[string]string) {
	for _, inputId := range node.InputOrder {
		values := node.Inputs[inputId]
		for i, v := range values {
			if v.IsConstant {
				continue
			}
			if survivor, ok := replacement[v.Ref.NodeId]; ok {
				values[i].Ref.NodeId = survivor
			}
		}
	}
}

// canonicalKey builds a structural identity string for node: its transform
// type, its options (sorted by key), and its wired inputs in declared
// order. Timeframe/session are folded in unless the node is a pure scalar
// literal (spec §4.8 "literal-scalar exception").
func canonicalKey(node *domain.AlgorithmNode) string {
	var b strings.Builder
	b.WriteString(node.Type)
	b.WriteByte('|')

	optKeys := make([]string, 0, len(node.Options))
	for k := range node.Options {
		optKeys = append(optKeys, k)
	}
	sort.Strings(optKeys)
	for _, k := range optKeys {
		fmt.Fprintf(&b, "%s=%s;", k, formatOptionValue(node.Options[k]))
	}
	b.WriteByte('|')

	for _, inputId := range node.InputOrder {
		b.WriteString(inputId)
		b.WriteByte(':')
		for _, v := range node.Inputs[inputId] {
			b.WriteString(formatInputValue(v))
			b.WriteByte(',')
		}
		b.WriteByte(';')
	}

	if !node.IsScalarLiteral() {
		b.WriteByte('|')
		b.WriteString(string(node.Timeframe))
		b.WriteByte(':')
		b.WriteString(node.Session)
	}
	return b.String()
}

func formatOptionValue(v domain.OptionValue) string {
	switch v.Kind {
	case domain.OptionNumber:
		return "n" + strconv.FormatFloat(v.Num, 'g', -1, 64)
	case domain.OptionBool:
		return "b" + strconv.FormatBool(v.Bool)
	case domain.OptionString:
		return "s" + v.Str
	default:
		return fmt.Sprintf("x%v", v.Structured)
	}
}

func formatInputValue(v domain.InputValue) string {
	if v.IsConstant {
		return "c:" + string(v.Const.Type) + ":" + strconv.FormatFloat(v.Const.Num, 'g', -1, 64) + ":" + v.Const.Str
	}
	return "r:" + v.Ref.NodeId + "." + v.Ref.Handle
}
