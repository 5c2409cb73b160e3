// Package parser builds the fan AST from a token stream
package parser

import (
	"strconv"

	"github.com/basjoofan/core/ast"
	"github.com/basjoofan/core/lexer"
	"github.com/basjoofan/core/template"
)

// Operator precedence, lowest first
const (
	LOWEST = iota + 1
	OR     // ||
	AND    // &&
	EQUALS // == !=
	COMPARE
	SUM     // + -
	PRODUCT // * / %
	PREFIX  // -x !x
	CALL    // f(x) xs[i] m.k name->
)

var precedences = map[lexer.TokenType]int{
	lexer.OR:       OR,
	lexer.AND:      AND,
	lexer.EQ:       EQUALS,
	lexer.NE:       EQUALS,
	lexer.LT:       COMPARE,
	lexer.GT:       COMPARE,
	lexer.LE:       COMPARE,
	lexer.GE:       COMPARE,
	lexer.PLUS:     SUM,
	lexer.MINUS:    SUM,
	lexer.STAR:     PRODUCT,
	lexer.SLASH:    PRODUCT,
	lexer.PERCENT:  PRODUCT,
	lexer.LPAREN:   CALL,
	lexer.LBRACKET: CALL,
	lexer.DOT:      CALL,
	lexer.ARROW:    CALL,
}

// Parser is the recursive-descent parser for fan scripts
type Parser struct {
	l         *lexer.Lexer
	curToken  lexer.Token
	peekToken lexer.Token
	err       *SyntaxError
}

// New creates a new Parser
func New(input string) *Parser {
	p := &Parser{
		l: lexer.New(input),
	}
	// Read two tokens to initialize curToken and peekToken
	p.nextToken()
	p.nextToken()
	return p
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
	if p.peekToken.Type == lexer.ILLEGAL {
		p.fail(p.peekToken, "")
	}
}

func (p *Parser) curTokenIs(t lexer.TokenType) bool {
	return p.curToken.Type == t
}

func (p *Parser) peekTokenIs(t lexer.TokenType) bool {
	return p.peekToken.Type == t
}

func (p *Parser) expectPeek(t lexer.TokenType) bool {
	if p.peekTokenIs(t) {
		p.nextToken()
		return true
	}
	p.fail(p.peekToken, t.String())
	return false
}

// fail records the first error; later ones are dropped
func (p *Parser) fail(tok lexer.Token, expected string) {
	if p.err != nil {
		return
	}
	p.err = &SyntaxError{
		Line:     tok.Line,
		Column:   tok.Column,
		Expected: expected,
		Found:    describe(tok),
	}
}

func describe(tok lexer.Token) string {
	switch tok.Type {
	case lexer.EOF:
		return "end of input"
	case lexer.ILLEGAL:
		if len(tok.Literal) == 1 {
			return "unexpected character " + strconv.Quote(tok.Literal)
		}
		return tok.Literal
	default:
		return strconv.Quote(tok.Literal)
	}
}

func (p *Parser) pos() ast.Position {
	return ast.Position{Line: p.curToken.Line, Column: p.curToken.Column}
}

func (p *Parser) curPrecedence() int {
	if prec, ok := precedences[p.curToken.Type]; ok {
		return prec
	}
	return LOWEST
}

func (p *Parser) peekPrecedence() int {
	if prec, ok := precedences[p.peekToken.Type]; ok {
		return prec
	}
	return LOWEST
}

// Parse parses the input and returns the AST.
// On failure no partial AST is returned.
func (p *Parser) Parse() (*ast.Program, error) {
	program := &ast.Program{}

	for !p.curTokenIs(lexer.EOF) && p.err == nil {
		stmt := p.parseStatement()
		if p.err != nil {
			break
		}
		if stmt != nil {
			program.Statements = append(program.Statements, stmt)
		}
		p.nextToken()
	}

	if p.err != nil {
		return nil, p.err
	}
	return program, nil
}

// ParseExpression parses input as a single expression. It is used for
// interpolation slot sources, which must consume their whole text.
func ParseExpression(input string) (ast.Expression, error) {
	p := New(input)
	if p.err != nil {
		return nil, p.err
	}
	expr := p.parseExpression(LOWEST)
	if p.err != nil {
		return nil, p.err
	}
	if !p.peekTokenIs(lexer.EOF) {
		p.fail(p.peekToken, "end of expression")
		return nil, p.err
	}
	return expr, nil
}

// ---------------------------------------------------------
// Statements
// ---------------------------------------------------------

func (p *Parser) parseStatement() ast.Statement {
	switch p.curToken.Type {
	case lexer.SEMICOLON:
		return nil
	case lexer.LET:
		return p.parseLetStatement()
	case lexer.RQ:
		return p.parseRequestDefinition()
	case lexer.TEST:
		return p.parseTestBlock()
	case lexer.FN:
		if p.peekTokenIs(lexer.IDENT) {
			return p.parseFunctionStatement()
		}
		return p.parseExpressionStatement()
	case lexer.RETURN:
		return p.parseReturnStatement()
	default:
		return p.parseExpressionStatement()
	}
}

func (p *Parser) parseLetStatement() *ast.LetStatement {
	stmt := &ast.LetStatement{Position: p.pos()}

	if !p.expectPeek(lexer.IDENT) {
		return nil
	}
	stmt.Name = p.curToken.Literal

	if !p.expectPeek(lexer.ASSIGN) {
		return nil
	}

	p.nextToken()
	stmt.Value = p.parseExpression(LOWEST)

	p.skipSemicolon()
	return stmt
}

func (p *Parser) parseRequestDefinition() *ast.RequestDefinition {
	stmt := &ast.RequestDefinition{Position: p.pos()}

	if !p.expectPeek(lexer.IDENT) {
		return nil
	}
	stmt.Name = p.curToken.Literal

	if !p.expectPeek(lexer.TEMPLATE) {
		return nil
	}
	stmt.Template = p.curToken.Literal

	if p.peekTokenIs(lexer.LBRACKET) {
		p.nextToken()
		stmt.Asserts = p.parseExpressionList(lexer.RBRACKET)
	}

	p.skipSemicolon()
	return stmt
}

func (p *Parser) parseTestBlock() *ast.TestBlock {
	stmt := &ast.TestBlock{Position: p.pos()}

	if !p.expectPeek(lexer.IDENT) {
		return nil
	}
	stmt.Name = p.curToken.Literal

	if !p.expectPeek(lexer.LBRACE) {
		return nil
	}
	stmt.Body = p.parseBlock()
	return stmt
}

func (p *Parser) parseFunctionStatement() *ast.FunctionStatement {
	stmt := &ast.FunctionStatement{Position: p.pos()}

	if !p.expectPeek(lexer.IDENT) {
		return nil
	}
	stmt.Name = p.curToken.Literal

	if !p.expectPeek(lexer.LPAREN) {
		return nil
	}
	stmt.Parameters = p.parseParameters()

	if !p.expectPeek(lexer.LBRACE) {
		return nil
	}
	stmt.Body = p.parseBlock()
	return stmt
}

func (p *Parser) parseReturnStatement() *ast.ReturnStatement {
	stmt := &ast.ReturnStatement{Position: p.pos()}

	if p.peekTokenIs(lexer.SEMICOLON) || p.peekTokenIs(lexer.RBRACE) {
		p.skipSemicolon()
		return stmt
	}

	p.nextToken()
	stmt.Value = p.parseExpression(LOWEST)
	p.skipSemicolon()
	return stmt
}

func (p *Parser) parseExpressionStatement() *ast.ExpressionStatement {
	stmt := &ast.ExpressionStatement{Position: p.pos()}
	stmt.Expression = p.parseExpression(LOWEST)
	p.skipSemicolon()
	return stmt
}

// skipSemicolon consumes an optional statement terminator
func (p *Parser) skipSemicolon() {
	if p.peekTokenIs(lexer.SEMICOLON) {
		p.nextToken()
	}
}

// parseBlock parses statements until the closing brace.
// curToken must be LBRACE on entry and is RBRACE on exit.
func (p *Parser) parseBlock() *ast.Block {
	block := &ast.Block{Position: p.pos()}

	p.nextToken()
	for !p.curTokenIs(lexer.RBRACE) && p.err == nil {
		if p.curTokenIs(lexer.EOF) {
			p.fail(p.curToken, "}")
			return nil
		}
		stmt := p.parseStatement()
		if p.err != nil {
			return nil
		}
		if stmt != nil {
			block.Statements = append(block.Statements, stmt)
		}
		p.nextToken()
	}
	return block
}

// ---------------------------------------------------------
// Expressions
// ---------------------------------------------------------

func (p *Parser) parseExpression(precedence int) ast.Expression {
	left := p.parsePrefix()
	if left == nil {
		return nil
	}

	for p.err == nil && !p.peekTokenIs(lexer.SEMICOLON) && precedence < p.peekPrecedence() {
		// A bracket on a new line begins a list literal statement,
		// not an index of the expression above it.
		if p.peekTokenIs(lexer.LBRACKET) && p.peekToken.Line > p.curToken.Line {
			break
		}
		p.nextToken()
		left = p.parseInfix(left)
		if left == nil {
			return nil
		}
	}
	return left
}

func (p *Parser) parsePrefix() ast.Expression {
	pos := p.pos()

	switch p.curToken.Type {
	case lexer.IDENT:
		return &ast.Identifier{Position: pos, Name: p.curToken.Literal}

	case lexer.INT:
		val, err := strconv.ParseInt(p.curToken.Literal, 10, 64)
		if err != nil {
			p.fail(p.curToken, "integer")
			return nil
		}
		return &ast.IntegerLiteral{Position: pos, Value: val}

	case lexer.FLOAT:
		val, err := strconv.ParseFloat(p.curToken.Literal, 64)
		if err != nil {
			p.fail(p.curToken, "number")
			return nil
		}
		return &ast.FloatLiteral{Position: pos, Value: val}

	case lexer.STRING:
		return p.parseStringLiteral()

	case lexer.TRUE:
		return &ast.BooleanLiteral{Position: pos, Value: true}

	case lexer.FALSE:
		return &ast.BooleanLiteral{Position: pos, Value: false}

	case lexer.NULL:
		return &ast.NullLiteral{Position: pos}

	case lexer.BANG, lexer.MINUS:
		expr := &ast.PrefixExpression{Position: pos, Operator: p.curToken.Literal}
		p.nextToken()
		expr.Right = p.parseExpression(PREFIX)
		return expr

	case lexer.LPAREN:
		p.nextToken()
		expr := p.parseExpression(LOWEST)
		if !p.expectPeek(lexer.RPAREN) {
			return nil
		}
		return expr

	case lexer.LBRACKET:
		return &ast.ListLiteral{Position: pos, Items: p.parseExpressionList(lexer.RBRACKET)}

	case lexer.LBRACE:
		return p.parseMapLiteral()

	case lexer.IF:
		return p.parseIfExpression()

	case lexer.FN:
		return p.parseFunctionLiteral()

	default:
		p.fail(p.curToken, "expression")
		return nil
	}
}

func (p *Parser) parseInfix(left ast.Expression) ast.Expression {
	switch p.curToken.Type {
	case lexer.LPAREN:
		return &ast.CallExpression{
			Position:  p.pos(),
			Function:  left,
			Arguments: p.parseExpressionList(lexer.RPAREN),
		}

	case lexer.LBRACKET:
		expr := &ast.IndexExpression{Position: p.pos(), Left: left}
		p.nextToken()
		expr.Index = p.parseExpression(LOWEST)
		if !p.expectPeek(lexer.RBRACKET) {
			return nil
		}
		return expr

	case lexer.DOT:
		expr := &ast.MemberExpression{Position: p.pos(), Left: left}
		if !p.expectPeek(lexer.IDENT) {
			return nil
		}
		expr.Member = p.curToken.Literal
		return expr

	case lexer.ARROW:
		ident, ok := left.(*ast.Identifier)
		if !ok {
			p.fail(p.curToken, "request name before ->")
			return nil
		}
		return &ast.ArrowInvocation{Position: ident.Position, Name: ident.Name}

	default:
		expr := &ast.InfixExpression{
			Position: p.pos(),
			Operator: p.curToken.Literal,
			Left:     left,
		}
		precedence := p.curPrecedence()
		p.nextToken()
		expr.Right = p.parseExpression(precedence)
		return expr
	}
}

// parseStringLiteral scans the string content for interpolation slots.
// Slot expressions are parsed here, so a malformed slot is a syntax
// error of the script, not a runtime failure.
func (p *Parser) parseStringLiteral() ast.Expression {
	pos := p.pos()
	content := p.curToken.Literal

	segments, err := template.Scan(content)
	if err != nil {
		p.fail(p.curToken, "string")
		return nil
	}

	var parts []ast.StringPart
	interpolated := false
	for _, seg := range segments {
		if !seg.Slot {
			parts = append(parts, ast.StringPart{Text: seg.Text})
			continue
		}
		expr, err := ParseExpression(seg.Text)
		if err != nil {
			p.fail(p.curToken, "expression in interpolation slot")
			return nil
		}
		parts = append(parts, ast.StringPart{Expr: expr})
		interpolated = true
	}

	if !interpolated {
		return &ast.StringLiteral{Position: pos, Value: content}
	}
	return &ast.InterpolatedString{Position: pos, Parts: parts}
}

func (p *Parser) parseMapLiteral() ast.Expression {
	m := &ast.MapLiteral{Position: p.pos()}

	for !p.peekTokenIs(lexer.RBRACE) {
		p.nextToken()
		if !p.curTokenIs(lexer.STRING) && !p.curTokenIs(lexer.IDENT) {
			p.fail(p.curToken, "map key")
			return nil
		}
		m.Keys = append(m.Keys, p.curToken.Literal)

		if !p.expectPeek(lexer.COLON) {
			return nil
		}
		p.nextToken()
		m.Values = append(m.Values, p.parseExpression(LOWEST))
		if p.err != nil {
			return nil
		}

		if !p.peekTokenIs(lexer.COMMA) {
			break
		}
		p.nextToken()
	}

	if !p.expectPeek(lexer.RBRACE) {
		return nil
	}
	return m
}

func (p *Parser) parseIfExpression() ast.Expression {
	expr := &ast.IfExpression{Position: p.pos()}

	if !p.expectPeek(lexer.LPAREN) {
		return nil
	}
	p.nextToken()
	expr.Condition = p.parseExpression(LOWEST)
	if !p.expectPeek(lexer.RPAREN) {
		return nil
	}

	if !p.expectPeek(lexer.LBRACE) {
		return nil
	}
	expr.Consequence = p.parseBlock()

	if p.peekTokenIs(lexer.ELSE) {
		p.nextToken()
		if !p.expectPeek(lexer.LBRACE) {
			return nil
		}
		expr.Alternative = p.parseBlock()
	}
	return expr
}

func (p *Parser) parseFunctionLiteral() ast.Expression {
	expr := &ast.FunctionLiteral{Position: p.pos()}

	if !p.expectPeek(lexer.LPAREN) {
		return nil
	}
	expr.Parameters = p.parseParameters()

	if !p.expectPeek(lexer.LBRACE) {
		return nil
	}
	expr.Body = p.parseBlock()
	return expr
}

// parseParameters parses a comma-separated identifier list.
// curToken must be LPAREN on entry and is RPAREN on exit.
func (p *Parser) parseParameters() []string {
	var params []string

	if p.peekTokenIs(lexer.RPAREN) {
		p.nextToken()
		return params
	}

	if !p.expectPeek(lexer.IDENT) {
		return nil
	}
	params = append(params, p.curToken.Literal)

	for p.peekTokenIs(lexer.COMMA) {
		p.nextToken()
		if !p.expectPeek(lexer.IDENT) {
			return nil
		}
		params = append(params, p.curToken.Literal)
	}

	if !p.expectPeek(lexer.RPAREN) {
		return nil
	}
	return params
}

// parseExpressionList parses expressions until the end token.
// curToken must be the opening delimiter on entry and is end on exit.
func (p *Parser) parseExpressionList(end lexer.TokenType) []ast.Expression {
	var list []ast.Expression

	if p.peekTokenIs(end) {
		p.nextToken()
		return list
	}

	p.nextToken()
	list = append(list, p.parseExpression(LOWEST))

	for p.peekTokenIs(lexer.COMMA) {
		p.nextToken()
		p.nextToken()
		list = append(list, p.parseExpression(LOWEST))
	}

	if !p.expectPeek(end) {
		return nil
	}
	return list
}

// ParseFile parses a fan script and returns the AST
func ParseFile(input string) (*ast.Program, error) {
	p := New(input)
	return p.Parse()
}
