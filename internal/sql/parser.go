package sql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/paveg/teide/internal/errors"
	"github.com/paveg/teide/internal/expr"
)

// Precedence levels for expression parsing, loosest first.
const (
	_ int = iota
	LOWEST
	DISJUNCTION // OR
	CONJUNCTION // AND
	NEGATION    // NOT x
	COMPARISON  // = != < <= > >= IS
	SUMPREC     // + -
	PRODUCT     // * / %
	PREFIX      // -x
)

var precedences = map[TokenType]int{
	OR:    DISJUNCTION,
	AND:   CONJUNCTION,
	EQ:    COMPARISON,
	NE:    COMPARISON,
	LT:    COMPARISON,
	LE:    COMPARISON,
	GT:    COMPARISON,
	GE:    COMPARISON,
	IS:    COMPARISON,
	PLUS:  SUMPREC,
	MINUS: SUMPREC,
	MULT:  PRODUCT,
	DIV:   PRODUCT,
	MOD:   PRODUCT,
}

var binaryOps = map[TokenType]expr.BinaryOp{
	EQ:    expr.OpEq,
	NE:    expr.OpNe,
	LT:    expr.OpLt,
	LE:    expr.OpLe,
	GT:    expr.OpGt,
	GE:    expr.OpGe,
	PLUS:  expr.OpAdd,
	MINUS: expr.OpSub,
	MULT:  expr.OpMul,
	DIV:   expr.OpDiv,
	MOD:   expr.OpMod,
	AND:   expr.OpAnd,
	OR:    expr.OpOr,
}

// Parser parses SQL tokens into a SelectStatement.
type Parser struct {
	lexer *Lexer

	curToken  Token
	peekToken Token

	errors []string
}

// NewParser creates a new parser instance.
func NewParser(lexer *Lexer) *Parser {
	p := &Parser{lexer: lexer}
	// Read two tokens, so curToken and peekToken are both set.
	p.nextToken()
	p.nextToken()
	return p
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.lexer.NextToken()
}

// Errors returns the parse errors collected so far.
func (p *Parser) Errors() []string {
	return p.errors
}

// Parse parses a single SELECT statement, optionally terminated by a
// semicolon.
func Parse(input string) (*SelectStatement, error) {
	p := NewParser(NewLexer(input))
	stmt := p.ParseStatement()
	if len(p.errors) > 0 {
		return nil, errors.NewInvalidArgumentError("ParseSQL", strings.Join(p.errors, "; "))
	}
	return stmt, nil
}

// ParseStatement parses the token stream. On failure it returns nil and
// records the reason in Errors.
func (p *Parser) ParseStatement() *SelectStatement {
	if !p.curTokenIs(SELECT) {
		p.unexpected(p.curToken, "SELECT")
		return nil
	}
	stmt := &SelectStatement{}
	ok := p.parseSelectList(stmt) &&
		p.parseFrom(stmt) &&
		p.parseWhere(stmt) &&
		p.parseGroupBy(stmt) &&
		p.parseHaving(stmt) &&
		p.parseOrderBy(stmt) &&
		p.parseLimit(stmt) &&
		p.parseEnd()
	if !ok {
		return nil
	}
	return stmt
}

func (p *Parser) parseSelectList(stmt *SelectStatement) bool {
	for {
		p.nextToken()
		item, ok := p.parseSelectItem()
		if !ok {
			return false
		}
		stmt.SelectList = append(stmt.SelectList, item)
		if !p.peekTokenIs(COMMA) {
			return true
		}
		p.nextToken()
	}
}

func (p *Parser) parseSelectItem() (SelectItem, bool) {
	if p.curTokenIs(MULT) {
		return SelectItem{IsWildcard: true}, true
	}

	e, ok := p.parseExpression(LOWEST)
	if !ok {
		return SelectItem{}, false
	}
	item := SelectItem{Expression: e}

	switch {
	case p.peekTokenIs(AS):
		p.nextToken()
		if !p.expectPeek(IDENT) {
			return SelectItem{}, false
		}
		item.Alias = p.curToken.Literal
	case p.peekTokenIs(IDENT):
		// Implicit alias (without AS keyword)
		p.nextToken()
		item.Alias = p.curToken.Literal
	}
	return item, true
}

func (p *Parser) parseFrom(stmt *SelectStatement) bool {
	if !p.expectPeek(FROM) {
		return false
	}
	p.nextToken()
	switch p.curToken.Type {
	case STRING:
		stmt.From.Path = p.curToken.Literal
	case IDENT:
		stmt.From.Table = p.curToken.Literal
	default:
		p.unexpected(p.curToken, "a quoted path or table name")
		return false
	}
	if stmt.From.Path == "" && stmt.From.Table == "" {
		p.addError(p.curToken.Position, "empty source name")
		return false
	}
	return true
}

func (p *Parser) parseWhere(stmt *SelectStatement) bool {
	if !p.peekTokenIs(WHERE) {
		return true
	}
	p.nextToken()
	p.nextToken()
	e, ok := p.parseExpression(LOWEST)
	stmt.Where = e
	return ok
}

func (p *Parser) parseGroupBy(stmt *SelectStatement) bool {
	if !p.peekTokenIs(GROUP) {
		return true
	}
	p.nextToken()
	if !p.expectPeek(BY) {
		return false
	}
	for {
		p.nextToken()
		e, ok := p.parseExpression(LOWEST)
		if !ok {
			return false
		}
		stmt.GroupBy = append(stmt.GroupBy, e)
		if !p.peekTokenIs(COMMA) {
			return true
		}
		p.nextToken()
	}
}

func (p *Parser) parseHaving(stmt *SelectStatement) bool {
	if !p.peekTokenIs(HAVING) {
		return true
	}
	p.nextToken()
	p.nextToken()
	e, ok := p.parseExpression(LOWEST)
	stmt.Having = e
	return ok
}

func (p *Parser) parseOrderBy(stmt *SelectStatement) bool {
	if !p.peekTokenIs(ORDER) {
		return true
	}
	p.nextToken()
	if !p.expectPeek(BY) {
		return false
	}
	for {
		p.nextToken()
		e, ok := p.parseExpression(LOWEST)
		if !ok {
			return false
		}
		item := OrderItem{Expression: e}
		switch {
		case p.peekTokenIs(ASC):
			p.nextToken()
		case p.peekTokenIs(DESC):
			p.nextToken()
			item.Descending = true
		}
		stmt.OrderBy = append(stmt.OrderBy, item)
		if !p.peekTokenIs(COMMA) {
			return true
		}
		p.nextToken()
	}
}

func (p *Parser) parseLimit(stmt *SelectStatement) bool {
	if p.peekTokenIs(LIMIT) {
		p.nextToken()
		n, ok := p.parseCount("LIMIT")
		if !ok {
			return false
		}
		stmt.Limit = &n
	}
	if p.peekTokenIs(OFFSET) {
		p.nextToken()
		n, ok := p.parseCount("OFFSET")
		if !ok {
			return false
		}
		stmt.Offset = &n
	}
	return true
}

func (p *Parser) parseCount(clause string) (int64, bool) {
	if !p.expectPeek(INT) {
		return 0, false
	}
	n, err := strconv.ParseInt(p.curToken.Literal, 10, 64)
	if err != nil {
		p.addError(p.curToken.Position, fmt.Sprintf("could not parse %s value %s", clause, p.curToken.Literal))
		return 0, false
	}
	return n, true
}

func (p *Parser) parseEnd() bool {
	if p.peekTokenIs(SEMICOLON) {
		p.nextToken()
	}
	if !p.peekTokenIs(EOF) {
		p.unexpected(p.peekToken, "end of statement")
		return false
	}
	return true
}

// parseExpression parses expressions using a Pratt parser.
func (p *Parser) parseExpression(precedence int) (expr.Expr, bool) {
	left, ok := p.parsePrefix()
	if !ok {
		return nil, false
	}
	for precedence < p.peekPrecedence() {
		p.nextToken()
		if left, ok = p.parseInfix(left); !ok {
			return nil, false
		}
	}
	return left, true
}

func (p *Parser) parsePrefix() (expr.Expr, bool) {
	tok := p.curToken
	//nolint:exhaustive // only tokens that can start an expression
	switch tok.Type {
	case IDENT:
		if p.peekTokenIs(LPAREN) {
			return p.parseFunctionCall()
		}
		return expr.Col(tok.Literal), true
	case INT:
		v, err := strconv.ParseInt(tok.Literal, 10, 64)
		if err != nil {
			p.addError(tok.Position, fmt.Sprintf("could not parse %q as integer", tok.Literal))
			return nil, false
		}
		return expr.Lit(v), true
	case FLOAT:
		v, err := strconv.ParseFloat(tok.Literal, 64)
		if err != nil {
			p.addError(tok.Position, fmt.Sprintf("could not parse %q as float", tok.Literal))
			return nil, false
		}
		return expr.Lit(v), true
	case STRING:
		return expr.Lit(tok.Literal), true
	case TRUE, FALSE:
		return expr.Lit(tok.Type == TRUE), true
	case NULL:
		p.addError(tok.Position, "NULL literals are not supported, use IS NULL")
		return nil, false
	case MINUS:
		return p.parseNegation()
	case NOT:
		p.nextToken()
		operand, ok := p.parseExpression(NEGATION)
		if !ok {
			return nil, false
		}
		return operand.Not(), true
	case LPAREN:
		p.nextToken()
		e, ok := p.parseExpression(LOWEST)
		if !ok || !p.expectPeek(RPAREN) {
			return nil, false
		}
		return e, true
	case ILLEGAL:
		if strings.HasPrefix(tok.Literal, "'") || strings.HasPrefix(tok.Literal, `"`) {
			p.addError(tok.Position, "unterminated quoted text")
		} else {
			p.addError(tok.Position, fmt.Sprintf("illegal character %q", tok.Literal))
		}
		return nil, false
	}
	p.unexpected(tok, "an expression")
	return nil, false
}

// parseNegation folds a minus sign into a numeric literal and negates
// anything else.
func (p *Parser) parseNegation() (expr.Expr, bool) {
	p.nextToken()
	operand, ok := p.parseExpression(PREFIX)
	if !ok {
		return nil, false
	}
	if lit, isLit := operand.(*expr.LiteralExpr); isLit {
		switch lit.Type() {
		case expr.LitInt:
			return expr.Lit(-lit.Int()), true
		case expr.LitFloat:
			return expr.Lit(-lit.Float()), true
		}
	}
	return operand.Neg(), true
}

func (p *Parser) parseInfix(left expr.Expr) (expr.Expr, bool) {
	tok := p.curToken
	if tok.Type == IS {
		return p.parseIsNull(left)
	}
	op, ok := binaryOps[tok.Type]
	if !ok {
		p.unexpected(tok, "an operator")
		return nil, false
	}
	precedence := p.curPrecedence()
	p.nextToken()
	right, ok := p.parseExpression(precedence)
	if !ok {
		return nil, false
	}
	return expr.Binary(op, left, right), true
}

// parseIsNull handles the postfix forms "x IS NULL" and "x IS NOT NULL".
func (p *Parser) parseIsNull(left expr.Expr) (expr.Expr, bool) {
	negate := false
	if p.peekTokenIs(NOT) {
		p.nextToken()
		negate = true
	}
	if !p.expectPeek(NULL) {
		return nil, false
	}
	if negate {
		return left.IsNull().Not(), true
	}
	return left.IsNull(), true
}

// parseFunctionCall resolves aggregate and scalar functions by name.
// COUNT(*) counts the rows of each group.
func (p *Parser) parseFunctionCall() (expr.Expr, bool) {
	nameTok := p.curToken
	name := strings.ToLower(nameTok.Literal)
	p.nextToken() // consume name, cur is '('

	if name == "count" && p.peekTokenIs(MULT) {
		p.nextToken()
		if !p.expectPeek(RPAREN) {
			return nil, false
		}
		return expr.Aggregate(expr.AggCount, expr.Lit(int64(1))), true
	}

	args, ok := p.parseExpressionList()
	if !ok {
		return nil, false
	}
	if len(args) != 1 {
		p.addError(nameTok.Position, fmt.Sprintf("%s takes exactly one argument, got %d", strings.ToUpper(name), len(args)))
		return nil, false
	}

	if op, err := expr.ParseAggOp(name); err == nil {
		return expr.Aggregate(op, args[0]), true
	}
	switch name {
	case "abs", "sqrt", "log", "exp", "ceil", "floor":
		op, err := expr.ParseUnaryOp(name)
		if err != nil {
			p.addError(nameTok.Position, err.Error())
			return nil, false
		}
		return expr.Unary(op, args[0]), true
	}
	p.addError(nameTok.Position, fmt.Sprintf("unknown function %s", nameTok.Literal))
	return nil, false
}

// parseExpressionList parses a parenthesized, comma separated list. The
// current token is the opening parenthesis.
func (p *Parser) parseExpressionList() ([]expr.Expr, bool) {
	var args []expr.Expr
	if p.peekTokenIs(RPAREN) {
		p.nextToken()
		return args, true
	}
	for {
		p.nextToken()
		arg, ok := p.parseExpression(LOWEST)
		if !ok {
			return nil, false
		}
		args = append(args, arg)
		if !p.peekTokenIs(COMMA) {
			break
		}
		p.nextToken()
	}
	if !p.expectPeek(RPAREN) {
		return nil, false
	}
	return args, true
}

// Helper functions for token checking.
func (p *Parser) curTokenIs(t TokenType) bool {
	return p.curToken.Type == t
}

func (p *Parser) peekTokenIs(t TokenType) bool {
	return p.peekToken.Type == t
}

func (p *Parser) expectPeek(t TokenType) bool {
	if p.peekTokenIs(t) {
		p.nextToken()
		return true
	}
	p.unexpected(p.peekToken, t.String())
	return false
}

func (p *Parser) peekPrecedence() int {
	if prec, ok := precedences[p.peekToken.Type]; ok {
		return prec
	}
	return LOWEST
}

func (p *Parser) curPrecedence() int {
	if prec, ok := precedences[p.curToken.Type]; ok {
		return prec
	}
	return LOWEST
}

func (p *Parser) unexpected(tok Token, want string) {
	got := tok.Type.String()
	if tok.Literal != "" && tok.Type != EOF {
		got = fmt.Sprintf("%s %q", got, tok.Literal)
	}
	p.addError(tok.Position, fmt.Sprintf("expected %s, got %s", want, got))
}

func (p *Parser) addError(pos int, msg string) {
	p.errors = append(p.errors, fmt.Sprintf("position %d: %s", pos, msg))
}
