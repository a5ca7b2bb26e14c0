// Package ast defines the restricted expression-language AST produced by
// internal/compiler/parser (spec §4.1). Every node records 1-based line and
// column for diagnostics.
package ast

// Pos is embedded by every node to carry source location.
type Pos struct {
	Line int
	Col  int
}

func (p Pos) Position() Pos { return p }

// Node is implemented by every AST node.
type Node interface {
	Position() Pos
}

// Expr is implemented by every expression node.
type Expr interface {
	Node
	exprNode()
}

// Stmt is implemented by every statement node.
type Stmt interface {
	Node
	stmtNode()
}

// Module is the root of a parsed script: a sequence of statements.
type Module struct {
	Pos
	Statements []Stmt
}

// Assign binds one name, or a tuple of names, to the value of an
// expression. Tuple targets are only legal when Value is a constructor Call
// (spec §4.3 "Tuple assignment").
type Assign struct {
	Pos
	Targets []string // len==1 for single-name assignment, >1 for tuple assignment
	Value   Expr
}

func (a *Assign) stmtNode() {}

// ExprStmt is a bare expression used at statement level, i.e. a sink-node
// call producing no binding (spec §4.3 "Sink node statement").
type ExprStmt struct {
	Pos
	Value Expr
}

func (e *ExprStmt) stmtNode() {}

// Ident is a bare identifier reference: a variable name or the lowercase
// keywords true/false.
type Ident struct {
	Pos
	Name string
}

func (i *Ident) exprNode() {}

// NumberLit is an integer or decimal constant. Per spec §4.4 "Literal
// type", all numeric literals have compiled type Decimal regardless of
// whether IsInt is set; IsInt is consulted where only an integer is
// accepted, such as a lag subscript index.
type NumberLit struct {
	Pos
	Value float64
	IsInt bool
}

func (n *NumberLit) exprNode() {}

// BoolLit is a literal `True`/`False` (or lowercase `true`/`false`, handled
// by the parser as Ident and resolved to BoolLit-equivalent nodes by the
// expression compiler — see exprcompiler "Bare identifier resolution").
type BoolLit struct {
	Pos
	Value bool
}

func (b *BoolLit) exprNode() {}

// StringLit is a quoted string literal, already escape-decoded.
type StringLit struct {
	Pos
	Value string
}

func (s *StringLit) exprNode() {}

// NullLit is the `None` / `null` literal. TypeHint, when non-empty, picks
// the specialized null_<type> node; the parser leaves it empty and no
// compiler stage sets it, so every null literal compiles to null_number
// (spec §4.2 "Literal materialization").
type NullLit struct {
	Pos
	TypeHint string
}

func (n *NullLit) exprNode() {}

// Attribute is `Base.Name` — attribute/handle access.
type Attribute struct {
	Pos
	Base Expr
	Name string
}

func (a *Attribute) exprNode() {}

// KeywordArg is one `name=value` argument in a call.
type KeywordArg struct {
	Name  string
	Value Expr
}

// Call is `Func(args..., kw=...)`. Chained-call forms `f(opts)(inputs)`
// (spec §4.2 "Inline constructor calls") are represented by nesting: the
// second call's Func is itself a *Call whose Func is the identifier/attr
// being called. A "call link" count of the expression is the depth of this
// Call-of-Call nesting.
type Call struct {
	Pos
	Func   Expr
	Args   []Expr
	Kwargs []KeywordArg
}

func (c *Call) exprNode() {}

// BinOp is a single binary arithmetic operator application.
// Op is one of: + - * / % **
type BinOp struct {
	Pos
	Op          string
	Left, Right Expr
}

func (b *BinOp) exprNode() {}

// Compare is a single pairwise comparison. Chained comparisons (arity > 2)
// are rejected by the parser before a Compare node is ever produced.
// Op is one of: < > <= >= == !=
type Compare struct {
	Pos
	Op          string
	Left, Right Expr
}

func (c *Compare) exprNode() {}

// BoolOp is a flattened n-ary `and`/`or` chain (spec §4.1 "Boolean
// operations are flattened"): `a and b and c` is one node with three
// Values, not a nested pair.
// Op is "and" or "or".
type BoolOp struct {
	Pos
	Op     string
	Values []Expr
}

func (b *BoolOp) exprNode() {}

// UnaryOp is `+x`, `-x`, or `not x`.
// Op is one of: + - not
type UnaryOp struct {
	Pos
	Op      string
	Operand Expr
}

func (u *UnaryOp) exprNode() {}

// IfExp is the ternary `Body if Test else OrElse`.
type IfExp struct {
	Pos
	Body, Test, OrElse Expr
}

func (i *IfExp) exprNode() {}

// Subscript is `Value[Index]`, used exclusively as the lag operator
// (spec §4.2 "Subscript as lag"); Index must reduce to an integer literal,
// checked by the expression compiler, not the parser.
type Subscript struct {
	Pos
	Value Expr
	Index Expr
}

func (s *Subscript) exprNode() {}

// ListLit is a `[a, b, c]` list literal.
type ListLit struct {
	Pos
	Elements []Expr
}

func (l *ListLit) exprNode() {}

// DictEntry is one `key: value` pair in a dict literal.
type DictEntry struct {
	Key   Expr
	Value Expr
}

// DictLit is a `{k: v, ...}` dict literal.
type DictLit struct {
	Pos
	Entries []DictEntry
}

func (d *DictLit) exprNode() {}
