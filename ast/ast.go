// Package ast defines the Abstract Syntax Tree for fan scripts
package ast

import (
	"fmt"
	"strings"
)

// Node is the base interface for all AST nodes
type Node interface {
	nodeType() string
	Pos() Position
	String() string
}

// Position represents a location in source code
type Position struct {
	Line   int
	Column int
}

// ---------------------------------------------------------
// Program (root node)
// ---------------------------------------------------------

// Program represents a complete fan script.
// It is built once by the parser and never mutated afterwards,
// so it can be shared read-only between workers.
type Program struct {
	Statements []Statement
}

func (p *Program) nodeType() string { return "Program" }
func (p *Program) Pos() Position {
	if len(p.Statements) > 0 {
		return p.Statements[0].Pos()
	}
	return Position{Line: 1, Column: 1}
}
func (p *Program) String() string {
	var sb strings.Builder
	for _, s := range p.Statements {
		sb.WriteString(s.String())
		sb.WriteString("\n")
	}
	return sb.String()
}

// Test returns the test block with the given name
func (p *Program) Test(name string) (*TestBlock, bool) {
	for _, s := range p.Statements {
		if t, ok := s.(*TestBlock); ok && t.Name == name {
			return t, true
		}
	}
	return nil, false
}

// Tests returns all test blocks in definition order
func (p *Program) Tests() []*TestBlock {
	var tests []*TestBlock
	for _, s := range p.Statements {
		if t, ok := s.(*TestBlock); ok {
			tests = append(tests, t)
		}
	}
	return tests
}

// ---------------------------------------------------------
// Statements
// ---------------------------------------------------------

// Statement is the interface for all statement types
type Statement interface {
	Node
	statementNode()
}

// LetStatement: let name = expr;
type LetStatement struct {
	Position Position
	Name     string
	Value    Expression
}

func (s *LetStatement) nodeType() string { return "LetStatement" }
func (s *LetStatement) Pos() Position    { return s.Position }
func (s *LetStatement) statementNode()   {}
func (s *LetStatement) String() string {
	return fmt.Sprintf("let %s = %s", s.Name, s.Value.String())
}

// RequestDefinition: rq name `template` [assert, ...]
// The template is the raw backtick span; its interpolation slots and
// HTTP message structure are resolved at send time. Immutable after parse.
type RequestDefinition struct {
	Position Position
	Name     string
	Template string
	Asserts  []Expression
}

func (s *RequestDefinition) nodeType() string { return "RequestDefinition" }
func (s *RequestDefinition) Pos() Position    { return s.Position }
func (s *RequestDefinition) statementNode()   {}
func (s *RequestDefinition) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "rq %s `%s`", s.Name, s.Template)
	if len(s.Asserts) > 0 {
		parts := make([]string, len(s.Asserts))
		for i, a := range s.Asserts {
			parts[i] = a.String()
		}
		fmt.Fprintf(&sb, "[%s]", strings.Join(parts, ", "))
	}
	return sb.String()
}

// TestBlock: test name { statements }
type TestBlock struct {
	Position Position
	Name     string
	Body     *Block
}

func (s *TestBlock) nodeType() string { return "TestBlock" }
func (s *TestBlock) Pos() Position    { return s.Position }
func (s *TestBlock) statementNode()   {}
func (s *TestBlock) String() string {
	return fmt.Sprintf("test %s %s", s.Name, s.Body.String())
}

// FunctionStatement: fn name(params) { ... }
type FunctionStatement struct {
	Position   Position
	Name       string
	Parameters []string
	Body       *Block
}

func (s *FunctionStatement) nodeType() string { return "FunctionStatement" }
func (s *FunctionStatement) Pos() Position    { return s.Position }
func (s *FunctionStatement) statementNode()   {}
func (s *FunctionStatement) String() string {
	return fmt.Sprintf("fn %s(%s) %s", s.Name, strings.Join(s.Parameters, ", "), s.Body.String())
}

// ReturnStatement: return expr;
type ReturnStatement struct {
	Position Position
	Value    Expression
}

func (s *ReturnStatement) nodeType() string { return "ReturnStatement" }
func (s *ReturnStatement) Pos() Position    { return s.Position }
func (s *ReturnStatement) statementNode()   {}
func (s *ReturnStatement) String() string {
	if s.Value == nil {
		return "return"
	}
	return fmt.Sprintf("return %s", s.Value.String())
}

// ExpressionStatement: a bare expression used as a statement
type ExpressionStatement struct {
	Position   Position
	Expression Expression
}

func (s *ExpressionStatement) nodeType() string { return "ExpressionStatement" }
func (s *ExpressionStatement) Pos() Position    { return s.Position }
func (s *ExpressionStatement) statementNode()   {}
func (s *ExpressionStatement) String() string   { return s.Expression.String() }

// Block: { statements } — its value is the last statement's value
type Block struct {
	Position   Position
	Statements []Statement
}

func (b *Block) nodeType() string { return "Block" }
func (b *Block) Pos() Position    { return b.Position }
func (b *Block) String() string {
	var sb strings.Builder
	sb.WriteString("{ ")
	for _, s := range b.Statements {
		sb.WriteString(s.String())
		sb.WriteString("; ")
	}
	sb.WriteString("}")
	return sb.String()
}

// ---------------------------------------------------------
// Expressions
// ---------------------------------------------------------

// Expression is the interface for all expression types
type Expression interface {
	Node
	exprNode()
}

// Identifier: host, getUser
type Identifier struct {
	Position Position
	Name     string
}

func (e *Identifier) nodeType() string { return "Identifier" }
func (e *Identifier) Pos() Position    { return e.Position }
func (e *Identifier) exprNode()        {}
func (e *Identifier) String() string   { return e.Name }

// IntegerLiteral: 123
type IntegerLiteral struct {
	Position Position
	Value    int64
}

func (e *IntegerLiteral) nodeType() string { return "IntegerLiteral" }
func (e *IntegerLiteral) Pos() Position    { return e.Position }
func (e *IntegerLiteral) exprNode()        {}
func (e *IntegerLiteral) String() string   { return fmt.Sprintf("%d", e.Value) }

// FloatLiteral: 45.6
type FloatLiteral struct {
	Position Position
	Value    float64
}

func (e *FloatLiteral) nodeType() string { return "FloatLiteral" }
func (e *FloatLiteral) Pos() Position    { return e.Position }
func (e *FloatLiteral) exprNode()        {}
func (e *FloatLiteral) String() string   { return fmt.Sprintf("%v", e.Value) }

// BooleanLiteral: true, false
type BooleanLiteral struct {
	Position Position
	Value    bool
}

func (e *BooleanLiteral) nodeType() string { return "BooleanLiteral" }
func (e *BooleanLiteral) Pos() Position    { return e.Position }
func (e *BooleanLiteral) exprNode()        {}
func (e *BooleanLiteral) String() string   { return fmt.Sprintf("%t", e.Value) }

// NullLiteral: null
type NullLiteral struct {
	Position Position
}

func (e *NullLiteral) nodeType() string { return "NullLiteral" }
func (e *NullLiteral) Pos() Position    { return e.Position }
func (e *NullLiteral) exprNode()        {}
func (e *NullLiteral) String() string   { return "null" }

// StringLiteral: "plain string" with no interpolation slots
type StringLiteral struct {
	Position Position
	Value    string
}

func (e *StringLiteral) nodeType() string { return "StringLiteral" }
func (e *StringLiteral) Pos() Position    { return e.Position }
func (e *StringLiteral) exprNode()        {}
func (e *StringLiteral) String() string   { return fmt.Sprintf("%q", e.Value) }

// InterpolatedString: "hello {name}" — literal parts and embedded expressions
type InterpolatedString struct {
	Position Position
	Parts    []StringPart
}

// StringPart is one piece of an interpolated string.
// Expr is nil for literal text.
type StringPart struct {
	Text string
	Expr Expression
}

func (e *InterpolatedString) nodeType() string { return "InterpolatedString" }
func (e *InterpolatedString) Pos() Position    { return e.Position }
func (e *InterpolatedString) exprNode()        {}
func (e *InterpolatedString) String() string {
	var sb strings.Builder
	sb.WriteString(`"`)
	for _, p := range e.Parts {
		if p.Expr != nil {
			fmt.Fprintf(&sb, "{%s}", p.Expr.String())
		} else {
			sb.WriteString(p.Text)
		}
	}
	sb.WriteString(`"`)
	return sb.String()
}

// ListLiteral: [1, 2, 3]
type ListLiteral struct {
	Position Position
	Items    []Expression
}

func (e *ListLiteral) nodeType() string { return "ListLiteral" }
func (e *ListLiteral) Pos() Position    { return e.Position }
func (e *ListLiteral) exprNode()        {}
func (e *ListLiteral) String() string {
	parts := make([]string, len(e.Items))
	for i, item := range e.Items {
		parts[i] = item.String()
	}
	return fmt.Sprintf("[%s]", strings.Join(parts, ", "))
}

// MapLiteral: {"a": 1, "b": 2}
type MapLiteral struct {
	Position Position
	Keys     []string
	Values   []Expression
}

func (e *MapLiteral) nodeType() string { return "MapLiteral" }
func (e *MapLiteral) Pos() Position    { return e.Position }
func (e *MapLiteral) exprNode()        {}
func (e *MapLiteral) String() string {
	parts := make([]string, len(e.Keys))
	for i, k := range e.Keys {
		parts[i] = fmt.Sprintf("%q: %s", k, e.Values[i].String())
	}
	return fmt.Sprintf("{%s}", strings.Join(parts, ", "))
}

// PrefixExpression: !ok, -x
type PrefixExpression struct {
	Position Position
	Operator string
	Right    Expression
}

func (e *PrefixExpression) nodeType() string { return "PrefixExpression" }
func (e *PrefixExpression) Pos() Position    { return e.Position }
func (e *PrefixExpression) exprNode()        {}
func (e *PrefixExpression) String() string {
	return fmt.Sprintf("(%s%s)", e.Operator, e.Right.String())
}

// InfixExpression: a + b, status == 200
type InfixExpression struct {
	Position Position
	Operator string
	Left     Expression
	Right    Expression
}

func (e *InfixExpression) nodeType() string { return "InfixExpression" }
func (e *InfixExpression) Pos() Position    { return e.Position }
func (e *InfixExpression) exprNode()        {}
func (e *InfixExpression) String() string {
	return fmt.Sprintf("%s %s %s", e.Left.String(), e.Operator, e.Right.String())
}

// IfExpression: if (cond) { ... } else { ... }
type IfExpression struct {
	Position    Position
	Condition   Expression
	Consequence *Block
	Alternative *Block
}

func (e *IfExpression) nodeType() string { return "IfExpression" }
func (e *IfExpression) Pos() Position    { return e.Position }
func (e *IfExpression) exprNode()        {}
func (e *IfExpression) String() string {
	s := fmt.Sprintf("if (%s) %s", e.Condition.String(), e.Consequence.String())
	if e.Alternative != nil {
		s += fmt.Sprintf(" else %s", e.Alternative.String())
	}
	return s
}

// FunctionLiteral: fn(params) { ... }
type FunctionLiteral struct {
	Position   Position
	Parameters []string
	Body       *Block
}

func (e *FunctionLiteral) nodeType() string { return "FunctionLiteral" }
func (e *FunctionLiteral) Pos() Position    { return e.Position }
func (e *FunctionLiteral) exprNode()        {}
func (e *FunctionLiteral) String() string {
	return fmt.Sprintf("fn(%s) %s", strings.Join(e.Parameters, ", "), e.Body.String())
}

// CallExpression: f(a, b)
type CallExpression struct {
	Position  Position
	Function  Expression
	Arguments []Expression
}

func (e *CallExpression) nodeType() string { return "CallExpression" }
func (e *CallExpression) Pos() Position    { return e.Position }
func (e *CallExpression) exprNode()        {}
func (e *CallExpression) String() string {
	args := make([]string, len(e.Arguments))
	for i, a := range e.Arguments {
		args[i] = a.String()
	}
	return fmt.Sprintf("%s(%s)", e.Function.String(), strings.Join(args, ", "))
}

// IndexExpression: xs[0], m["key"]
type IndexExpression struct {
	Position Position
	Left     Expression
	Index    Expression
}

func (e *IndexExpression) nodeType() string { return "IndexExpression" }
func (e *IndexExpression) Pos() Position    { return e.Position }
func (e *IndexExpression) exprNode()        {}
func (e *IndexExpression) String() string {
	return fmt.Sprintf("%s[%s]", e.Left.String(), e.Index.String())
}

// MemberExpression: response.status
type MemberExpression struct {
	Position Position
	Left     Expression
	Member   string
}

func (e *MemberExpression) nodeType() string { return "MemberExpression" }
func (e *MemberExpression) Pos() Position    { return e.Position }
func (e *MemberExpression) exprNode()        {}
func (e *MemberExpression) String() string {
	return fmt.Sprintf("%s.%s", e.Left.String(), e.Member)
}

// ArrowInvocation: name-> sends the named request and yields its response
type ArrowInvocation struct {
	Position Position
	Name     string
}

func (e *ArrowInvocation) nodeType() string { return "ArrowInvocation" }
func (e *ArrowInvocation) Pos() Position    { return e.Position }
func (e *ArrowInvocation) exprNode()        {}
func (e *ArrowInvocation) String() string   { return e.Name + "->" }
