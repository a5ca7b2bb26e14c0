// Package constructorparser parses the five structured option constructors
// -- Time, EventMarkerSchema, SqlStatement, TableReportSchema,
// CardColumnSchema -- from their constructor-call AST form into concrete Go
// structs (spec §4.7). A structured option's value in script source always
// looks like an ordinary call, e.g. `Time(hour=9, minute=30)`; this package
// is what tells those kwargs apart from the inline-transform calls the
// expression compiler handles.
package constructorparser

import (
	"fmt"

	"github.com/aristath/epochscript/internal/compiler/ast"
	"github.com/aristath/epochscript/internal/compiler/cerr"
)

// Time is a wall-clock time-of-day, used for session/schedule options.
type Time struct {
	Hour, Minute, Second int
}

// EventMarkerSchema describes one calendar/news-event marker feed option.
type EventMarkerSchema struct {
	Category string
	Label    string
	LeadTime int // seconds before the event the marker activates
}

// SqlStatement is a parameterized SQL template; SLOT-style tokens inside
// Query are resolved against wired node inputs at execution time, the same
// rewriting rule the registry applies to input ids (spec §3).
type SqlStatement struct {
	Query string
}

// CardColumnSchema describes one column of a TableReportSchema/dashboard
// card.
type CardColumnSchema struct {
	Name   string
	Header string
	Format string
}

// TableReportSchema describes a tabular report option: a title and ordered
// columns.
type TableReportSchema struct {
	Title   string
	Columns []CardColumnSchema
}

// Parse dispatches on kind (one of "Time", "EventMarkerSchema",
// "SqlStatement", "TableReportSchema", "CardColumnSchema") and parses call's
// kwargs into the matching struct, returned as `any`.
func Parse(kind string, call *ast.Call) (any, error) {
	if len(call.Args) > 0 {
		return nil, &cerr.CompileError{Kind: cerr.KindOption, Message: fmt.Sprintf("%s(...) takes only keyword arguments", kind)}
	}
	kw := kwargMap(call)
	switch kind {
	case "Time":
		return parseTime(kw)
	case "EventMarkerSchema":
		return parseEventMarkerSchema(kw)
	case "SqlStatement":
		return parseSqlStatement(kw)
	case "TableReportSchema":
		return parseTableReportSchema(kw)
	case "CardColumnSchema":
		return parseCardColumnSchema(kw)
	default:
		return nil, &cerr.CompileError{Kind: cerr.KindOption, Message: fmt.Sprintf("unknown structured option constructor %q", kind)}
	}
}

func kwargMap(call *ast.Call) map[string]ast.Expr {
	m := make(map[string]ast.Expr, len(call.Kwargs))
	for _, kw := range call.Kwargs {
		m[kw.Name] = kw.Value
	}
	return m
}

func intField(kw map[string]ast.Expr, name string, fallback int) (int, error) {
	e, ok := kw[name]
	if !ok {
		return fallback, nil
	}
	n, ok := e.(*ast.NumberLit)
	if !ok {
		return 0, &cerr.CompileError{Kind: cerr.KindOption, Field: name, Message: fmt.Sprintf("%q must be a numeric literal", name)}
	}
	return int(n.Value), nil
}

func stringField(kw map[string]ast.Expr, name string, fallback string) (string, error) {
	e, ok := kw[name]
	if !ok {
		return fallback, nil
	}
	s, ok := e.(*ast.StringLit)
	if !ok {
		return "", &cerr.CompileError{Kind: cerr.KindOption, Field: name, Message: fmt.Sprintf("%q must be a string literal", name)}
	}
	return s.Value, nil
}

func parseTime(kw map[string]ast.Expr) (Time, error) {
	h, err := intField(kw, "hour", 0)
	if err != nil {
		return Time{}, err
	}
	m, err := intField(kw, "minute", 0)
	if err != nil {
		return Time{}, err
	}
	s, err := intField(kw, "second", 0)
	if err != nil {
		return Time{}, err
	}
	if h < 0 || h > 23 || m < 0 || m > 59 || s < 0 || s > 59 {
		return Time{}, &cerr.CompileError{Kind: cerr.KindOption, Message: "Time fields out of range"}
	}
	return Time{Hour: h, Minute: m, Second: s}, nil
}

func parseEventMarkerSchema(kw map[string]ast.Expr) (EventMarkerSchema, error) {
	cat, err := stringField(kw, "category", "")
	if err != nil {
		return EventMarkerSchema{}, err
	}
	label, err := stringField(kw, "label", "")
	if err != nil {
		return EventMarkerSchema{}, err
	}
	lead, err := intField(kw, "lead_time", 0)
	if err != nil {
		return EventMarkerSchema{}, err
	}
	return EventMarkerSchema{Category: cat, Label: label, LeadTime: lead}, nil
}

func parseSqlStatement(kw map[string]ast.Expr) (SqlStatement, error) {
	query, err := stringField(kw, "query", "")
	if err != nil {
		return SqlStatement{}, err
	}
	if query == "" {
		return SqlStatement{}, &cerr.CompileError{Kind: cerr.KindOption, Field: "query", Message: "SqlStatement requires a non-empty query"}
	}
	return SqlStatement{Query: query}, nil
}

func parseCardColumnSchema(kw map[string]ast.Expr) (CardColumnSchema, error) {
	name, err := stringField(kw, "name", "")
	if err != nil {
		return CardColumnSchema{}, err
	}
	header, err := stringField(kw, "header", name)
	if err != nil {
		return CardColumnSchema{}, err
	}
	format, err := stringField(kw, "format", "")
	if err != nil {
		return CardColumnSchema{}, err
	}
	if name == "" {
		return CardColumnSchema{}, &cerr.CompileError{Kind: cerr.KindOption, Field: "name", Message: "CardColumnSchema requires a name"}
	}
	return CardColumnSchema{Name: name, Header: header, Format: format}, nil
}

func parseTableReportSchema(kw map[string]ast.Expr) (TableReportSchema, error) {
	title, err := stringField(kw, "title", "")
	if err != nil {
		return TableReportSchema{}, err
	}
	colsExpr, ok := kw["columns"]
	if !ok {
		return TableReportSchema{}, &cerr.CompileError{Kind: cerr.KindOption, Field: "columns", Message: "TableReportSchema requires a columns list"}
	}
	list, ok := colsExpr.(*ast.ListLit)
	if !ok {
		return TableReportSchema{}, &cerr.CompileError{Kind: cerr.KindOption, Field: "columns", Message: "columns must be a list of CardColumnSchema(...) calls"}
	}
	cols := make([]CardColumnSchema, 0, len(list.Elements))
	for _, el := range list.Elements {
		call, ok := el.(*ast.Call)
		if !ok {
			return TableReportSchema{}, &cerr.CompileError{Kind: cerr.KindOption, Field: "columns", Message: "each column must be a CardColumnSchema(...) call"}
		}
		col, err := parseCardColumnSchema(kwargMap(call))
		if err != nil {
			return TableReportSchema{}, err
		}
		cols = append(cols, col)
	}
	return TableReportSchema{Title: title, Columns: cols}, nil
}
