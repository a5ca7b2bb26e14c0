// Package cerr defines the single structured compile-error type used across
// every compiler stage (spec §7 "Error handling design"). The compiler
// never maps its failure modes to a family of Go error types: every
// abnormal stop is one *CompileError carrying enough structure for a CLI
// or IDE to render a useful diagnostic.
package cerr

import "fmt"

// Kind classifies the failure without changing the error's shape.
type Kind string

const (
	KindSyntax           Kind = "syntax"
	KindBinding          Kind = "binding"
	KindUnknownComponent Kind = "unknown_component"
	KindOption           Kind = "option"
	KindArity            Kind = "arity"
	KindType             Kind = "type"
	KindSlot             Kind = "slot"
)

// CompileError is the single structured diagnostic type for all compiler
// stages. Line/Col are 0 when no source location applies (e.g. an error
// raised purely from graph-level validation after parsing).
type CompileError struct {
	Kind        Kind
	NodeId      string
	Component   string
	Field       string
	Expected    string
	Actual      string
	Line, Col   int
	Message     string
	Suggestion  string
}

func (e *CompileError) Error() string {
	loc := ""
	if e.Line > 0 {
		loc = fmt.Sprintf(" at %d:%d", e.Line, e.Col)
	}
	msg := fmt.Sprintf("[%s]%s %s", e.Kind, loc, e.Message)
	if e.NodeId != "" {
		msg += fmt.Sprintf(" (node %q, component %q)", e.NodeId, e.Component)
	}
	if e.Field != "" {
		msg += fmt.Sprintf(" field %q", e.Field)
	}
	if e.Expected != "" || e.Actual != "" {
		msg += fmt.Sprintf(" expected %s, got %s", e.Expected, e.Actual)
	}
	if e.Suggestion != "" {
		msg += ". " + e.Suggestion
	}
	return msg
}

// New builds a CompileError with just kind, message and location.
func New(kind Kind, line, col int, format string, args ...any) *CompileError {
	return &CompileError{Kind: kind, Line: line, Col: col, Message: fmt.Sprintf(format, args...)}
}

// FormatArgumentError builds an arity/argument-count diagnostic, split out
// from type errors the way original_source's
// compiler/error_formatting/argument_error.cpp does (see SPEC_FULL.md §C).
func FormatArgumentError(nodeId, component string, got, want int, line, col int) *CompileError {
	suggestion := ""
	if got > want && want > 0 {
		suggestion = fmt.Sprintf("Use 'SLOT%d' to name the extra argument explicitly if it belongs to a variadic input.", want)
	}
	return &CompileError{
		Kind: KindArity, NodeId: nodeId, Component: component,
		Expected: fmt.Sprintf("%d positional argument(s)", want),
		Actual:   fmt.Sprintf("%d", got),
		Line:     line, Col: col,
		Message:    fmt.Sprintf("%q takes %d positional argument(s), got %d", component, want, got),
		Suggestion: suggestion,
	}
}

// FormatTypeError builds a type-incompatibility diagnostic, split out from
// argument errors the way original_source's
// compiler/error_formatting/type_error.cpp does.
func FormatTypeError(nodeId, component, field string, expected, actual string, line, col int) *CompileError {
	return &CompileError{
		Kind: KindType, NodeId: nodeId, Component: component, Field: field,
		Expected: expected, Actual: actual, Line: line, Col: col,
		Message: fmt.Sprintf("input %q of %q expects %s, got %s", field, component, expected, actual),
	}
}
