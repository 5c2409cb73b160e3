package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basjoofan/core/ast"
)

func parse(t *testing.T, input string) *ast.Program {
	t.Helper()
	program, err := ParseFile(input)
	require.NoError(t, err)
	return program
}

func TestLetStatements(t *testing.T) {
	program := parse(t, `
		let host = "example.com";
		let port = 8080
		let ratio = 0.5;
		let ok = true;
		let nothing = null;
	`)
	require.Len(t, program.Statements, 5)

	names := []string{"host", "port", "ratio", "ok", "nothing"}
	for i, name := range names {
		stmt, ok := program.Statements[i].(*ast.LetStatement)
		require.True(t, ok, "statement %d", i)
		assert.Equal(t, name, stmt.Name)
	}

	value := program.Statements[1].(*ast.LetStatement).Value
	integer, ok := value.(*ast.IntegerLiteral)
	require.True(t, ok)
	assert.Equal(t, int64(8080), integer.Value)

	float := program.Statements[2].(*ast.LetStatement).Value.(*ast.FloatLiteral)
	assert.Equal(t, 0.5, float.Value)
}

func TestOperatorPrecedence(t *testing.T) {
	program := parse(t, "1 + 2 * 3 == 7 && !done")

	stmt := program.Statements[0].(*ast.ExpressionStatement)
	and, ok := stmt.Expression.(*ast.InfixExpression)
	require.True(t, ok)
	assert.Equal(t, "&&", and.Operator)

	eq := and.Left.(*ast.InfixExpression)
	assert.Equal(t, "==", eq.Operator)

	sum := eq.Left.(*ast.InfixExpression)
	assert.Equal(t, "+", sum.Operator)
	product := sum.Right.(*ast.InfixExpression)
	assert.Equal(t, "*", product.Operator)

	not := and.Right.(*ast.PrefixExpression)
	assert.Equal(t, "!", not.Operator)
}

func TestGroupingOverridesPrecedence(t *testing.T) {
	program := parse(t, "(1 + 2) * 3")
	stmt := program.Statements[0].(*ast.ExpressionStatement)
	product := stmt.Expression.(*ast.InfixExpression)
	assert.Equal(t, "*", product.Operator)
	sum := product.Left.(*ast.InfixExpression)
	assert.Equal(t, "+", sum.Operator)
}

func TestRequestDefinition(t *testing.T) {
	program := parse(t, "rq get `\nGET https://{host}/get\nAccept: application/json\n`[status == 200, length(body) > 0]")

	require.Len(t, program.Statements, 1)
	rq, ok := program.Statements[0].(*ast.RequestDefinition)
	require.True(t, ok)
	assert.Equal(t, "get", rq.Name)
	assert.Contains(t, rq.Template, "GET https://{host}/get")
	assert.Contains(t, rq.Template, "Accept: application/json")
	require.Len(t, rq.Asserts, 2)

	first := rq.Asserts[0].(*ast.InfixExpression)
	assert.Equal(t, "==", first.Operator)
	assert.Equal(t, "status", first.Left.(*ast.Identifier).Name)

	second := rq.Asserts[1].(*ast.InfixExpression)
	assert.Equal(t, ">", second.Operator)
	_, isCall := second.Left.(*ast.CallExpression)
	assert.True(t, isCall)
}

func TestRequestWithoutAsserts(t *testing.T) {
	program := parse(t, "rq ping `\nGET https://example.com/ping\n`")
	rq := program.Statements[0].(*ast.RequestDefinition)
	assert.Equal(t, "ping", rq.Name)
	assert.Empty(t, rq.Asserts)
}

func TestTestBlock(t *testing.T) {
	program := parse(t, `
		rq get `+"`\nGET https://example.com/get\n`"+`
		test smoke {
			get->
			response.status
		}
	`)
	require.Len(t, program.Statements, 2)

	block, ok := program.Test("smoke")
	require.True(t, ok)
	require.Len(t, block.Body.Statements, 2)

	arrow := block.Body.Statements[0].(*ast.ExpressionStatement).Expression.(*ast.ArrowInvocation)
	assert.Equal(t, "get", arrow.Name)

	member := block.Body.Statements[1].(*ast.ExpressionStatement).Expression.(*ast.MemberExpression)
	assert.Equal(t, "status", member.Member)
	assert.Equal(t, "response", member.Left.(*ast.Identifier).Name)

	_, ok = program.Test("missing")
	assert.False(t, ok)
	assert.Len(t, program.Tests(), 1)
}

func TestBracketOnNewLineStartsStatement(t *testing.T) {
	program := parse(t, "let xs = [1, 2]\nxs[1]\n[3, 4]")
	require.Len(t, program.Statements, 3)

	// Same line: index
	_, indexed := program.Statements[1].(*ast.ExpressionStatement).Expression.(*ast.IndexExpression)
	assert.True(t, indexed)

	// Next line: a fresh list literal, not an index of the line above
	_, literal := program.Statements[2].(*ast.ExpressionStatement).Expression.(*ast.ListLiteral)
	assert.True(t, literal)

	program = parse(t, "get->\n[response.status, 1]")
	require.Len(t, program.Statements, 2)
	_, arrow := program.Statements[0].(*ast.ExpressionStatement).Expression.(*ast.ArrowInvocation)
	assert.True(t, arrow)
	_, literal = program.Statements[1].(*ast.ExpressionStatement).Expression.(*ast.ListLiteral)
	assert.True(t, literal)
}

func TestArrowChainsIntoMember(t *testing.T) {
	program := parse(t, "get->.status")
	member := program.Statements[0].(*ast.ExpressionStatement).Expression.(*ast.MemberExpression)
	assert.Equal(t, "status", member.Member)
	arrow := member.Left.(*ast.ArrowInvocation)
	assert.Equal(t, "get", arrow.Name)
}

func TestFunctions(t *testing.T) {
	program := parse(t, `
		fn add(a, b) { return a + b; }
		let double = fn(x) { x * 2 };
		add(1, double(3))
	`)
	require.Len(t, program.Statements, 3)

	named := program.Statements[0].(*ast.FunctionStatement)
	assert.Equal(t, "add", named.Name)
	assert.Equal(t, []string{"a", "b"}, named.Parameters)
	ret := named.Body.Statements[0].(*ast.ReturnStatement)
	assert.NotNil(t, ret.Value)

	anon := program.Statements[1].(*ast.LetStatement).Value.(*ast.FunctionLiteral)
	assert.Equal(t, []string{"x"}, anon.Parameters)

	call := program.Statements[2].(*ast.ExpressionStatement).Expression.(*ast.CallExpression)
	require.Len(t, call.Arguments, 2)
	_, isNested := call.Arguments[1].(*ast.CallExpression)
	assert.True(t, isNested)
}

func TestIfElse(t *testing.T) {
	program := parse(t, "if (a < b) { a } else { b }")
	expr := program.Statements[0].(*ast.ExpressionStatement).Expression.(*ast.IfExpression)
	cond := expr.Condition.(*ast.InfixExpression)
	assert.Equal(t, "<", cond.Operator)
	require.NotNil(t, expr.Alternative)
	assert.Len(t, expr.Consequence.Statements, 1)

	program = parse(t, "if (ok) { 1 }")
	expr = program.Statements[0].(*ast.ExpressionStatement).Expression.(*ast.IfExpression)
	assert.Nil(t, expr.Alternative)
}

func TestListAndMapLiterals(t *testing.T) {
	program := parse(t, `let xs = [1, "two", [3]]; let m = {"a": 1, b: xs[0]}; let empty = {}`)

	list := program.Statements[0].(*ast.LetStatement).Value.(*ast.ListLiteral)
	require.Len(t, list.Items, 3)
	_, nested := list.Items[2].(*ast.ListLiteral)
	assert.True(t, nested)

	m := program.Statements[1].(*ast.LetStatement).Value.(*ast.MapLiteral)
	assert.Equal(t, []string{"a", "b"}, m.Keys)
	_, indexed := m.Values[1].(*ast.IndexExpression)
	assert.True(t, indexed)

	empty := program.Statements[2].(*ast.LetStatement).Value.(*ast.MapLiteral)
	assert.Empty(t, empty.Keys)
}

func TestInterpolatedString(t *testing.T) {
	program := parse(t, `let greeting = "hello {name}, you are {age + 1}"`)
	value := program.Statements[0].(*ast.LetStatement).Value
	interp, ok := value.(*ast.InterpolatedString)
	require.True(t, ok)
	require.Len(t, interp.Parts, 4)
	assert.Equal(t, "hello ", interp.Parts[0].Text)
	assert.Equal(t, "name", interp.Parts[1].Expr.(*ast.Identifier).Name)
	assert.Equal(t, ", you are ", interp.Parts[2].Text)
	_, isInfix := interp.Parts[3].Expr.(*ast.InfixExpression)
	assert.True(t, isInfix)
}

func TestStringWithoutSlotsStaysPlain(t *testing.T) {
	program := parse(t, `let body = "{\"a\": 1}"`)
	value := program.Statements[0].(*ast.LetStatement).Value
	lit, ok := value.(*ast.StringLiteral)
	require.True(t, ok)
	assert.Equal(t, `{"a": 1}`, lit.Value)
}

func TestParseExpression(t *testing.T) {
	expr, err := ParseExpression("status == 200")
	require.NoError(t, err)
	infix := expr.(*ast.InfixExpression)
	assert.Equal(t, "==", infix.Operator)

	_, err = ParseExpression("1 2")
	require.Error(t, err)
	var syn *SyntaxError
	require.ErrorAs(t, err, &syn)
	assert.Equal(t, "end of expression", syn.Expected)
}

func TestSyntaxErrors(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		line   int
		column int
	}{
		{name: "let without assign", input: "let x 5", line: 1, column: 7},
		{name: "missing operand", input: "1 +", line: 1, column: 4},
		{name: "unclosed block", input: "test t {\nlet a = 1", line: 2, column: 10},
		{name: "unterminated template", input: "rq r `GET http://x", line: 1, column: 6},
		{name: "rq without template", input: "rq r 42", line: 1, column: 6},
		{name: "arrow needs a name", input: "(1 + 2)->", line: 1, column: 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			program, err := ParseFile(tt.input)
			require.Error(t, err)
			assert.Nil(t, program, "no partial AST on failure")

			var syn *SyntaxError
			require.ErrorAs(t, err, &syn)
			assert.Equal(t, tt.line, syn.Line, "line in %v", err)
			assert.Equal(t, tt.column, syn.Column, "column in %v", err)
		})
	}
}

func TestErrorMessageShape(t *testing.T) {
	_, err := ParseFile("let = 5")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "syntax error at line 1:")
	assert.Contains(t, err.Error(), "expected")
}
