// Package parser converts normalized script text into the restricted AST
// defined in internal/compiler/ast (spec §4.1). It accepts assignments,
// constructor/feed-step calls, arithmetic, comparisons, logical operators,
// ternaries, subscript-as-lag, list/dict literals, and parenthesized
// expressions; it rejects imports, def/class, control-flow statements, and
// chained comparisons of arity > 2.
package parser

import (
	"github.com/aristath/epochscript/internal/compiler/ast"
)

// Parser is a single-use recursive-descent parser over one token stream.
type Parser struct {
	lex  *lexer
	cur  token
	peek token
}

// Parse normalizes and tokenizes source, then parses it into a Module.
// The only error type ever returned is *ParseError (spec §4.1 "Failure
// mode").
func Parse(source string) (*ast.Module, error) {
	normalized := Normalize(source)
	p := &Parser{lex: newLexer(normalized)}
	if err := p.primeTokens(); err != nil {
		return nil, err
	}
	return p.parseModule()
}

func (p *Parser) primeTokens() error {
	t0, err := p.lex.next()
	if err != nil {
		return err
	}
	t1, err := p.lex.next()
	if err != nil {
		return err
	}
	p.cur, p.peek = t0, t1
	return nil
}

func (p *Parser) advance() error {
	p.cur = p.peek
	t, err := p.lex.next()
	if err != nil {
		return err
	}
	p.peek = t
	return nil
}

func (p *Parser) atOp(text string) bool  { return p.cur.Kind == tkOp && p.cur.Text == text }
func (p *Parser) atKeyword(kw string) bool { return p.cur.Kind == tkKeyword && p.cur.Text == kw }

func (p *Parser) expectOp(text string) error {
	if !p.atOp(text) {
		return newError(p.cur.Line, p.cur.Col, "expected %q, found %q", text, p.tokenDesc())
	}
	return p.advance()
}

func (p *Parser) tokenDesc() string {
	switch p.cur.Kind {
	case tkEOF:
		return "<eof>"
	case tkNewline:
		return "<newline>"
	case tkNumber:
		return p.cur.Text
	default:
		return p.cur.Text
	}
}

func (p *Parser) skipNewlines() error {
	for p.cur.Kind == tkNewline {
		if err := p.advance(); err != nil {
			return err
		}
	}
	return nil
}

func (p *Parser) parseModule() (*ast.Module, error) {
	mod := &ast.Module{Pos: ast.Pos{Line: 1, Col: 1}}
	if err := p.skipNewlines(); err != nil {
		return nil, err
	}
	for p.cur.Kind != tkEOF {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		mod.Statements = append(mod.Statements, stmt)
		if err := p.skipNewlines(); err != nil {
			return nil, err
		}
	}
	return mod, nil
}

func (p *Parser) parseStatement() (ast.Stmt, error) {
	line, col := p.cur.Line, p.cur.Col

	if p.rejectedKeywordAhead() {
		return nil, newError(line, col, "unsupported construct %q: only assignments and expressions are accepted", p.cur.Text)
	}

	if names, ok, err := p.tryParseAssignTargets(); err != nil {
		return nil, err
	} else if ok {
		value, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &ast.Assign{Pos: ast.Pos{Line: line, Col: col}, Targets: names, Value: value}, nil
	}

	value, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return &ast.ExprStmt{Pos: ast.Pos{Line: line, Col: col}, Value: value}, nil
}

// rejectedKeywordAhead reports whether the current token begins a construct
// explicitly out of scope for the restricted language (spec §4.1
// "Rejected at parse").
func (p *Parser) rejectedKeywordAhead() bool {
	if p.cur.Kind != tkIdent {
		return false
	}
	switch p.cur.Text {
	case "import", "from", "def", "class", "for", "while", "with", "return", "yield", "lambda", "try", "except", "raise", "global", "nonlocal", "async", "await":
		return true
	}
	// A bare top-level 'if' (not part of a ternary) is control-flow and
	// rejected; ternaries only ever start an expression, never a
	// statement, in this grammar.
	return false
}

// tryParseAssignTargets attempts to consume a single name or a
// comma-separated tuple of names followed by '='. On failure to match this
// shape it leaves the parser position logically unchanged from the caller's
// perspective is not literally true (we've advanced tokens internally via
// lookahead buffering) — so this function only ever succeeds or reports
// false without partial consumption, achieved by checking with bounded
// lookahead before committing via backtrack-free scanning: a name list
// followed by '=' is LL(2)-detectable using the two-token lookahead buffer
// only when there's a single name; for tuples we scan definitively before
// mutating parser state by snapshotting the lexer.
func (p *Parser) tryParseAssignTargets() ([]string, bool, error) {
	if p.cur.Kind != tkIdent {
		return nil, false, nil
	}
	// Single name assignment: IDENT '=' (and next token is not '==').
	if p.peek.Kind == tkOp && p.peek.Text == "=" {
		name := p.cur.Text
		if err := p.advance(); err != nil { // consume IDENT
			return nil, false, err
		}
		if err := p.advance(); err != nil { // consume '='
			return nil, false, err
		}
		return []string{name}, true, nil
	}

	// Tuple assignment: snapshot lexer state and speculatively scan
	// `IDENT (',' IDENT)* '='`.
	if p.peek.Kind != tkOp || p.peek.Text != "," {
		return nil, false, nil
	}
	snapshotLexer := *p.lex
	snapshotCur, snapshotPeek := p.cur, p.peek

	var names []string
	ok := true
	for {
		if p.cur.Kind != tkIdent {
			ok = false
			break
		}
		names = append(names, p.cur.Text)
		if err := p.advance(); err != nil {
			return nil, false, err
		}
		if p.atOp(",") {
			if err := p.advance(); err != nil {
				return nil, false, err
			}
			continue
		}
		break
	}
	if ok && p.atOp("=") {
		if err := p.advance(); err != nil {
			return nil, false, err
		}
		return names, true, nil
	}

	// Not a tuple-assignment after all: restore and let the caller parse
	// an ordinary expression statement instead.
	*p.lex = snapshotLexer
	p.cur, p.peek = snapshotCur, snapshotPeek
	return nil, false, nil
}

// ---- expression parsing, precedence climbing -----------------------------

func (p *Parser) parseExpr() (ast.Expr, error) {
	return p.parseTernary()
}

func (p *Parser) parseTernary() (ast.Expr, error) {
	body, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.atKeyword("if") {
		line, col := p.cur.Line, p.cur.Col
		if err := p.advance(); err != nil {
			return nil, err
		}
		cond, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if !p.atKeyword("else") {
			return nil, newError(p.cur.Line, p.cur.Col, "expected 'else' in ternary expression")
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		orelse, err := p.parseTernary()
		if err != nil {
			return nil, err
		}
		return &ast.IfExp{Pos: ast.Pos{Line: line, Col: col}, Body: body, Test: cond, OrElse: orelse}, nil
	}
	return body, nil
}

func (p *Parser) parseOr() (ast.Expr, error) {
	first, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	values := []ast.Expr{first}
	line, col := first.Position().Line, first.Position().Col
	for p.atKeyword("or") || p.atOp("|") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		v, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	if len(values) == 1 {
		return values[0], nil
	}
	return &ast.BoolOp{Pos: ast.Pos{Line: line, Col: col}, Op: "or", Values: values}, nil
}

func (p *Parser) parseAnd() (ast.Expr, error) {
	first, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	values := []ast.Expr{first}
	line, col := first.Position().Line, first.Position().Col
	for p.atKeyword("and") || p.atOp("&") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		v, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	if len(values) == 1 {
		return values[0], nil
	}
	return &ast.BoolOp{Pos: ast.Pos{Line: line, Col: col}, Op: "and", Values: values}, nil
}

func (p *Parser) parseNot() (ast.Expr, error) {
	if p.atKeyword("not") {
		line, col := p.cur.Line, p.cur.Col
		if err := p.advance(); err != nil {
			return nil, err
		}
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryOp{Pos: ast.Pos{Line: line, Col: col}, Op: "not", Operand: operand}, nil
	}
	return p.parseComparison()
}

var compareOps = map[string]bool{
	"<": true, ">": true, "<=": true, ">=": true, "==": true, "!=": true,
}

func (p *Parser) parseComparison() (ast.Expr, error) {
	left, err := p.parseArith()
	if err != nil {
		return nil, err
	}
	if p.cur.Kind == tkOp && compareOps[p.cur.Text] {
		op := p.cur.Text
		line, col := p.cur.Line, p.cur.Col
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseArith()
		if err != nil {
			return nil, err
		}
		// Reject chained comparisons of arity > 2 (spec §4.1).
		if p.cur.Kind == tkOp && compareOps[p.cur.Text] {
			return nil, newError(p.cur.Line, p.cur.Col, "chained comparisons are not supported; split into separate comparisons joined by 'and'")
		}
		return &ast.Compare{Pos: ast.Pos{Line: line, Col: col}, Op: op, Left: left, Right: right}, nil
	}
	return left, nil
}

func (p *Parser) parseArith() (ast.Expr, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.cur.Kind == tkOp && (p.cur.Text == "+" || p.cur.Text == "-") {
		op := p.cur.Text
		line, col := p.cur.Line, p.cur.Col
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = &ast.BinOp{Pos: ast.Pos{Line: line, Col: col}, Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseTerm() (ast.Expr, error) {
	left, err := p.parseFactor()
	if err != nil {
		return nil, err
	}
	for p.cur.Kind == tkOp && (p.cur.Text == "*" || p.cur.Text == "/" || p.cur.Text == "%") {
		op := p.cur.Text
		line, col := p.cur.Line, p.cur.Col
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		left = &ast.BinOp{Pos: ast.Pos{Line: line, Col: col}, Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseFactor() (ast.Expr, error) {
	if p.cur.Kind == tkOp && (p.cur.Text == "+" || p.cur.Text == "-") {
		op := p.cur.Text
		line, col := p.cur.Line, p.cur.Col
		if err := p.advance(); err != nil {
			return nil, err
		}
		operand, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryOp{Pos: ast.Pos{Line: line, Col: col}, Op: op, Operand: operand}, nil
	}
	return p.parsePower()
}

func (p *Parser) parsePower() (ast.Expr, error) {
	left, err := p.parsePostfix()
	if err != nil {
		return nil, err
	}
	if p.atOp("**") {
		line, col := p.cur.Line, p.cur.Col
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseFactor() // right-associative
		if err != nil {
			return nil, err
		}
		return &ast.BinOp{Pos: ast.Pos{Line: line, Col: col}, Op: "**", Left: left, Right: right}, nil
	}
	return left, nil
}

func (p *Parser) parsePostfix() (ast.Expr, error) {
	expr, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.atOp("."):
			line, col := p.cur.Line, p.cur.Col
			if err := p.advance(); err != nil {
				return nil, err
			}
			if p.cur.Kind != tkIdent {
				return nil, newError(p.cur.Line, p.cur.Col, "expected attribute name after '.'")
			}
			name := p.cur.Text
			if err := p.advance(); err != nil {
				return nil, err
			}
			expr = &ast.Attribute{Pos: ast.Pos{Line: line, Col: col}, Base: expr, Name: name}
		case p.atOp("("):
			call, err := p.parseCallTrailer(expr)
			if err != nil {
				return nil, err
			}
			expr = call
		case p.atOp("["):
			line, col := p.cur.Line, p.cur.Col
			if err := p.advance(); err != nil {
				return nil, err
			}
			idx, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if err := p.expectOp("]"); err != nil {
				return nil, err
			}
			expr = &ast.Subscript{Pos: ast.Pos{Line: line, Col: col}, Value: expr, Index: idx}
		default:
			return expr, nil
		}
	}
}

func (p *Parser) parseCallTrailer(fn ast.Expr) (ast.Expr, error) {
	line, col := p.cur.Line, p.cur.Col
	if err := p.advance(); err != nil { // consume '('
		return nil, err
	}
	call := &ast.Call{Pos: ast.Pos{Line: line, Col: col}, Func: fn}
	for !p.atOp(")") {
		if p.cur.Kind == tkIdent && p.peek.Kind == tkOp && p.peek.Text == "=" {
			name := p.cur.Text
			if err := p.advance(); err != nil {
				return nil, err
			}
			if err := p.advance(); err != nil { // consume '='
				return nil, err
			}
			v, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			call.Kwargs = append(call.Kwargs, ast.KeywordArg{Name: name, Value: v})
		} else {
			v, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			call.Args = append(call.Args, v)
		}
		if p.atOp(",") {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	if err := p.expectOp(")"); err != nil {
		return nil, err
	}
	return call, nil
}

func (p *Parser) parseAtom() (ast.Expr, error) {
	line, col := p.cur.Line, p.cur.Col
	switch {
	case p.cur.Kind == tkNumber:
		v := p.cur.Num
		isInt := !containsAny(p.cur.Text, ".eE")
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.NumberLit{Pos: ast.Pos{Line: line, Col: col}, Value: v, IsInt: isInt}, nil
	case p.cur.Kind == tkString:
		v := p.cur.Text
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.StringLit{Pos: ast.Pos{Line: line, Col: col}, Value: v}, nil
	case p.cur.Kind == tkIdent:
		name := p.cur.Text
		if err := p.advance(); err != nil {
			return nil, err
		}
		switch name {
		case "True":
			return &ast.BoolLit{Pos: ast.Pos{Line: line, Col: col}, Value: true}, nil
		case "False":
			return &ast.BoolLit{Pos: ast.Pos{Line: line, Col: col}, Value: false}, nil
		case "None", "null":
			return &ast.NullLit{Pos: ast.Pos{Line: line, Col: col}}, nil
		default:
			return &ast.Ident{Pos: ast.Pos{Line: line, Col: col}, Name: name}, nil
		}
	case p.atOp("("):
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expectOp(")"); err != nil {
			return nil, err
		}
		return inner, nil
	case p.atOp("["):
		return p.parseListLit()
	case p.atOp("{"):
		return p.parseDictLit()
	default:
		return nil, newError(line, col, "unexpected token %q", p.tokenDesc())
	}
}

func (p *Parser) parseListLit() (ast.Expr, error) {
	line, col := p.cur.Line, p.cur.Col
	if err := p.advance(); err != nil { // '['
		return nil, err
	}
	lit := &ast.ListLit{Pos: ast.Pos{Line: line, Col: col}}
	for !p.atOp("]") {
		v, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		lit.Elements = append(lit.Elements, v)
		if p.atOp(",") {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	if err := p.expectOp("]"); err != nil {
		return nil, err
	}
	return lit, nil
}

func (p *Parser) parseDictLit() (ast.Expr, error) {
	line, col := p.cur.Line, p.cur.Col
	if err := p.advance(); err != nil { // '{'
		return nil, err
	}
	lit := &ast.DictLit{Pos: ast.Pos{Line: line, Col: col}}
	for !p.atOp("}") {
		k, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expectOp(":"); err != nil {
			return nil, err
		}
		v, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		lit.Entries = append(lit.Entries, ast.DictEntry{Key: k, Value: v})
		if p.atOp(",") {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	if err := p.expectOp("}"); err != nil {
		return nil, err
	}
	return lit, nil
}

func containsAny(s, chars string) bool {
	for _, c := range chars {
		for _, sc := range s {
			if sc == c {
				return true
			}
		}
	}
	return false
}
