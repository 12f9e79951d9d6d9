package parse

import (
	"fmt"
	"strconv"

	"lamvm/pkg/ast"
	coreerr "lamvm/pkg/errors"
)

// Parser recursive-descends over the token stream produced by a Lexer:
// curToken/peekToken two-token lookahead, nextToken, expect, and an
// accumulated Errors() list, but without a precedence table — the language
// has no infix operators, only prefix application, so a plain recursive
// descent suffices in place of a Pratt parser.
type Parser struct {
	l         *Lexer
	curToken  Token
	peekToken Token
	prevLine  int
	errs      []coreerr.CoreError
}

// NewParser creates a Parser over l and primes the two-token lookahead.
func NewParser(l *Lexer) *Parser {
	p := &Parser{l: l}
	p.nextToken()
	p.nextToken()
	return p
}

// Errors returns every syntax error accumulated during parsing.
func (p *Parser) Errors() []coreerr.CoreError { return p.errs }

func (p *Parser) nextToken() {
	p.prevLine = p.curToken.Line
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

// sameLineAsPrev reports whether curToken sits on the same source line as
// the token just consumed. An application chain (parseApply) only keeps
// collecting arguments within one line: the block grammar needs no
// statement separator precisely because a val's value expression stops at
// a line break, the same way the next val statement's leading VAL token
// would stop it — without this, a value like `val y = 3` immediately
// followed on the next line by a tail expression `+ x y` would swallow that
// tail as more arguments to 3 instead of leaving it for the caller.
func (p *Parser) sameLineAsPrev() bool { return p.curToken.Line == p.prevLine }

func (p *Parser) pos() coreerr.Position {
	return coreerr.Position{Line: p.curToken.Line, Column: p.curToken.Column}
}

func (p *Parser) errorf(format string, args ...interface{}) {
	p.errs = append(p.errs, &coreerr.SyntaxError{Position: p.pos(), Msg: fmt.Sprintf(format, args...)})
}

func (p *Parser) curIs(t TokenType) bool  { return p.curToken.Type == t }
func (p *Parser) peekIs(t TokenType) bool { return p.peekToken.Type == t }

func (p *Parser) expect(t TokenType) bool {
	if p.peekIs(t) {
		p.nextToken()
		return true
	}
	p.errorf("expected %s, got %s %q", t, p.peekToken.Type, p.peekToken.Lit)
	return false
}

// ParseProgram parses a whole source file: the implicit top-level block
// (spec.md §8's "val a = 4\nval b = 7\nadd a b" examples, with no
// surrounding braces required).
func ParseProgram(src string) (ast.Expr, []coreerr.CoreError) {
	p := NewParser(NewLexer(src))
	expr := p.parseBlock()
	if !p.curIs(EOF) {
		p.errorf("unexpected trailing token %s %q", p.curToken.Type, p.curToken.Lit)
	}
	return expr, p.errs
}

// parseBlock parses a sequence of `val` statements followed by exactly one
// tail expression, matching the body of both the top-level program and any
// `{ ... }` block. Every `val` statement unambiguously starts with the VAL
// keyword, so no statement separator is needed.
func (p *Parser) parseBlock() ast.Expr {
	if p.curIs(VAL) {
		return p.parseValStatement()
	}
	return p.parseExpr()
}

// parseValStatement parses `val name = value` or the named-lambda sugar
// `val name (p1 p2 ...) = body`, then continues parsing the rest of the
// enclosing block as the Let's Body.
func (p *Parser) parseValStatement() ast.Expr {
	startPos := p.pos()
	if !p.expect(IDENT) {
		return p.recoverExpr()
	}
	name := p.curToken.Lit

	var value ast.Expr
	if p.peekIs(LPAREN) {
		p.nextToken()
		params := p.parseParamList()
		if !p.expect(EQ) {
			return p.recoverExpr()
		}
		p.nextToken()
		body := p.parseExpr()
		value = ast.NewLambda(startPos, name, params, body)
	} else {
		if !p.expect(EQ) {
			return p.recoverExpr()
		}
		p.nextToken()
		value = p.parseExpr()
	}

	body := p.parseBlock()
	return ast.NewLet(startPos, name, value, body)
}

func (p *Parser) recoverExpr() ast.Expr {
	return &ast.Number{Value: 0}
}

// parseParamList parses a space-separated identifier list inside parens
// that the caller has already confirmed is at LPAREN; curToken is LPAREN
// on entry, RPAREN on exit.
func (p *Parser) parseParamList() []string {
	var params []string
	for !p.peekIs(RPAREN) && !p.peekIs(EOF) {
		if !p.expect(IDENT) {
			break
		}
		params = append(params, p.curToken.Lit)
	}
	p.expect(RPAREN)
	return params
}

// parseExpr parses a match expression or an application chain — whichever
// the lookahead commits to. A leading lambda literal is handled inside
// parsePrimary (via parseParenExprOrLambda), so it works identically at
// expression position and as a bare call argument.
func (p *Parser) parseExpr() ast.Expr {
	if p.curIs(MATCH) {
		return p.parseMatch()
	}
	return p.parseApply()
}

// parseParenExprOrLambda disambiguates a `(` at curToken: it is either a
// lambda header `(p1 p2 ...) = body` or a grouped expression `(expr)`. It
// speculatively parses the identifier-list-then-`=` shape, backtracking via
// the Lexer's SaveState/RestoreState to a plain grouped expression on
// mismatch, since a bare parenthesized identifier list is otherwise
// indistinguishable from a grouped single-variable expression until the
// token right after the close paren is seen.
func (p *Parser) parseParenExprOrLambda() ast.Expr {
	startPos := p.pos()
	savedLexer := p.l.SaveState()
	savedCur, savedPeek := p.curToken, p.peekToken
	savedErrs := len(p.errs)

	ok := true
	var params []string
	for !p.peekIs(RPAREN) {
		if !p.peekIs(IDENT) {
			ok = false
			break
		}
		p.nextToken()
		params = append(params, p.curToken.Lit)
	}
	if ok && p.peekIs(RPAREN) {
		p.nextToken() // consume RPAREN
		if p.peekIs(EQ) {
			p.nextToken() // consume EQ
			p.nextToken() // advance to body's first token
			body := p.parseExpr()
			return ast.NewLambda(startPos, "", params, body)
		}
	}

	p.l.RestoreState(savedLexer)
	p.curToken, p.peekToken = savedCur, savedPeek
	p.errs = p.errs[:savedErrs]
	return p.parseGrouped()
}

// parseApply parses a left-associative juxtaposition chain `head arg1 arg2
// ...` (spec.md's application syntax; primitive operators like `+`/`-`
// are ordinary identifiers applied the same way — see pkg/normalize's
// primArity). Stops as soon as the next token can't start a primary.
func (p *Parser) parseApply() ast.Expr {
	head := p.parsePrimary()
	var args []ast.Expr
	for p.sameLineAsPrev() && p.startsPrimary(p.curToken.Type) {
		args = append(args, p.parsePrimary())
	}
	if len(args) == 0 {
		return head
	}
	return ast.NewApply(head.Pos(), head, args)
}

func (p *Parser) startsPrimary(t TokenType) bool {
	switch t {
	case IDENT, NUMBER, STRING, COLON, LPAREN, LBRACE, MODULE, WILD:
		return true
	default:
		return false
	}
}

// parsePrimary parses one atomic/grouped term, including any trailing
// `.field` module-lookup suffixes, and advances curToken past it.
func (p *Parser) parsePrimary() ast.Expr {
	var e ast.Expr
	switch p.curToken.Type {
	case NUMBER:
		e = p.parseNumber()
	case STRING:
		e = ast.NewStringLit(p.pos(), p.curToken.Lit)
		p.nextToken()
	case COLON:
		e = p.parseSymbol()
	case LPAREN:
		e = p.parseParenExprOrLambda()
	case LBRACE:
		e = p.parseBraceBlock()
	case MODULE:
		e = p.parseModule()
	case WILD, IDENT:
		e = ast.NewVar(p.pos(), p.curToken.Lit)
		p.nextToken()
	default:
		p.errorf("unexpected token %s %q", p.curToken.Type, p.curToken.Lit)
		e = p.recoverExpr()
		p.nextToken()
	}
	for p.curIs(DOT) {
		pos := p.pos()
		if !p.expect(IDENT) {
			break
		}
		name := p.curToken.Lit
		p.nextToken()
		e = ast.NewModuleLookup(pos, e, name)
	}
	return e
}

func (p *Parser) parseNumber() ast.Expr {
	pos := p.pos()
	n, err := strconv.ParseInt(p.curToken.Lit, 10, 64)
	if err != nil {
		p.errorf("invalid number literal %q", p.curToken.Lit)
	}
	p.nextToken()
	return ast.NewNumber(pos, n)
}

// parseSymbol parses `:tag` or the tagged-compound form `:tag(a1, a2, ...)`.
func (p *Parser) parseSymbol() ast.Expr {
	pos := p.pos()
	if !p.expect(IDENT) {
		p.nextToken()
		return p.recoverExpr()
	}
	tag := p.curToken.Lit
	if !p.peekIs(LPAREN) {
		p.nextToken()
		return ast.NewPlainSymbol(pos, tag)
	}
	p.nextToken() // curToken = LPAREN
	p.nextToken() // curToken = first arg, or RPAREN if empty
	var args []ast.Expr
	for !p.curIs(RPAREN) && !p.curIs(EOF) {
		args = append(args, p.parseExpr())
		if p.curIs(COMMA) {
			p.nextToken()
		}
	}
	if !p.curIs(RPAREN) {
		p.errorf("expected ) to close compound symbol, got %s %q", p.curToken.Type, p.curToken.Lit)
	} else {
		p.nextToken()
	}
	return ast.NewCompoundSymbol(pos, tag, args)
}

// parseGrouped parses a parenthesized expression `(expr)`, called once
// parseParenExprOrLambda has ruled out this paren opening a lambda header.
func (p *Parser) parseGrouped() ast.Expr {
	p.nextToken() // consume LPAREN
	e := p.parseExpr()
	if !p.curIs(RPAREN) {
		p.errorf("expected ) to close grouped expression, got %s %q", p.curToken.Type, p.curToken.Lit)
	} else {
		p.nextToken()
	}
	return e
}

// parseBraceBlock parses `{ block }`, used as a lambda/match-branch body.
func (p *Parser) parseBraceBlock() ast.Expr {
	p.nextToken() // consume LBRACE
	e := p.parseBlock()
	if !p.curIs(RBRACE) {
		p.errorf("expected } to close block, got %s %q", p.curToken.Type, p.curToken.Lit)
	} else {
		p.nextToken()
	}
	return e
}

// parseModule parses `module { name = expr, name = expr, ... }`.
func (p *Parser) parseModule() ast.Expr {
	pos := p.pos()
	if !p.expect(LBRACE) {
		return p.recoverExpr()
	}
	p.nextToken() // curToken = first field name, or RBRACE if empty
	var fields []ast.ModuleField
	for !p.curIs(RBRACE) && !p.curIs(EOF) {
		if !p.curIs(IDENT) {
			p.errorf("expected module field name, got %s %q", p.curToken.Type, p.curToken.Lit)
			break
		}
		name := p.curToken.Lit
		if !p.expect(EQ) {
			break
		}
		p.nextToken()
		value := p.parseExpr()
		fields = append(fields, ast.ModuleField{Name: name, Value: value})
		if p.curIs(COMMA) {
			p.nextToken()
		}
	}
	if !p.curIs(RBRACE) {
		p.errorf("expected } to close module, got %s %q", p.curToken.Type, p.curToken.Lit)
	} else {
		p.nextToken()
	}
	return ast.NewModule(pos, fields)
}

// parseMatch parses `match subject { pattern -> expr, pattern -> expr }`.
// subject is a single primary, not a full application chain: `{` already
// introduces the branch list, so `match f x { ... }` would be ambiguous
// between "apply f to x and to the brace block" and "match (f x)" — write
// `match (f x) { ... }` to match an application's result.
func (p *Parser) parseMatch() ast.Expr {
	pos := p.pos()
	p.nextToken() // consume MATCH
	subject := p.parsePrimary()
	if !p.curIs(LBRACE) {
		p.errorf("expected { to start match branches, got %s %q", p.curToken.Type, p.curToken.Lit)
		return p.recoverExpr()
	}
	p.nextToken() // consume LBRACE
	var branches []ast.MatchBranch
	for !p.curIs(RBRACE) && !p.curIs(EOF) {
		pat := p.parsePattern()
		if !p.curIs(ARROW) {
			p.errorf("expected -> after pattern, got %s %q", p.curToken.Type, p.curToken.Lit)
			break
		}
		p.nextToken() // consume ARROW
		body := p.parseExpr()
		branches = append(branches, ast.MatchBranch{Pattern: pat, Body: body})
		if p.curIs(COMMA) {
			p.nextToken()
		}
	}
	if !p.curIs(RBRACE) {
		p.errorf("expected } to close match, got %s %q", p.curToken.Type, p.curToken.Lit)
	} else {
		p.nextToken()
	}
	return ast.NewMatch(pos, subject, branches)
}

// parsePattern parses one match pattern (spec §4.2.3): a number literal, a
// plain or compound tagged-symbol pattern, a capturing variable, or `_`.
func (p *Parser) parsePattern() ast.Pattern {
	switch p.curToken.Type {
	case NUMBER:
		n, _ := strconv.ParseInt(p.curToken.Lit, 10, 64)
		p.nextToken()
		return ast.PatNumber{Value: n}
	case WILD:
		p.nextToken()
		return ast.PatWildcard{}
	case COLON:
		p.nextToken() // consume COLON
		if !p.curIs(IDENT) {
			p.errorf("expected symbol name after :, got %s %q", p.curToken.Type, p.curToken.Lit)
			return ast.PatWildcard{}
		}
		tag := p.curToken.Lit
		p.nextToken()
		if !p.curIs(LPAREN) {
			return ast.PatSymbol{Tag: tag}
		}
		p.nextToken() // consume LPAREN
		var args []ast.Pattern
		for !p.curIs(RPAREN) && !p.curIs(EOF) {
			args = append(args, p.parsePattern())
			if p.curIs(COMMA) {
				p.nextToken()
			}
		}
		if !p.curIs(RPAREN) {
			p.errorf("expected ) to close compound pattern, got %s %q", p.curToken.Type, p.curToken.Lit)
		} else {
			p.nextToken()
		}
		return ast.PatSymbol{Tag: tag, Args: args}
	case IDENT:
		name := p.curToken.Lit
		p.nextToken()
		return ast.PatVar{Name: name}
	default:
		p.errorf("unexpected token %s %q in pattern", p.curToken.Type, p.curToken.Lit)
		p.nextToken()
		return ast.PatWildcard{}
	}
}
