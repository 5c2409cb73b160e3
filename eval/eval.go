// Package eval provides the tree-walking evaluator for fan scripts
package eval

import (
	"context"
	"io"
	"os"

	"github.com/basjoofan/core/ast"
	"github.com/basjoofan/core/request"
)

// Sender is the HTTP client boundary. The evaluator only needs a
// collaborator that sends a fully-built request and returns a response
// or a classified failure.
type Sender interface {
	Do(ctx context.Context, req *request.Request) (*request.Response, error)
}

// Evaluator interprets the AST. It is not safe for concurrent use;
// the load scheduler gives every worker its own Evaluator.
type Evaluator struct {
	sender   Sender
	out      io.Writer
	maxDepth int
	depth    int
	records  []*Record
}

// Option is a functional option for Evaluator
type Option func(*Evaluator)

// WithSender sets the HTTP client collaborator
func WithSender(sender Sender) Option {
	return func(e *Evaluator) {
		e.sender = sender
	}
}

// WithOutput sets the writer used by print builtins
func WithOutput(w io.Writer) Option {
	return func(e *Evaluator) {
		e.out = w
	}
}

// WithMaxDepth sets the call-depth limit
func WithMaxDepth(depth int) Option {
	return func(e *Evaluator) {
		e.maxDepth = depth
	}
}

// NewEvaluator creates a new Evaluator
func NewEvaluator(opts ...Option) *Evaluator {
	e := &Evaluator{
		sender:   request.New(),
		out:      os.Stdout,
		maxDepth: 1024,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Eval executes the program's statements against scope and returns the
// last statement's value. Top-level let, rq and fn statements populate
// the scope; test blocks are registered for the scheduler and skipped.
func (e *Evaluator) Eval(ctx context.Context, program *ast.Program, s *Scope) (Value, error) {
	var result Value = &Null{}
	for _, stmt := range program.Statements {
		if _, ok := stmt.(*ast.TestBlock); ok {
			continue
		}
		value, err := e.eval(ctx, stmt, s)
		if err != nil {
			return nil, err
		}
		if ret, ok := value.(*returnValue); ok {
			return ret.value, nil
		}
		result = value
	}
	return result, nil
}

// EvalBlock executes a block against scope, unwrapping any return
func (e *Evaluator) EvalBlock(ctx context.Context, block *ast.Block, s *Scope) (Value, error) {
	value, err := e.evalBlock(ctx, block, s)
	if err != nil {
		return nil, err
	}
	if ret, ok := value.(*returnValue); ok {
		return ret.value, nil
	}
	return value, nil
}

// TakeRecords drains the request records collected since the last call
func (e *Evaluator) TakeRecords() []*Record {
	records := e.records
	e.records = nil
	return records
}

// ---------------------------------------------------------
// Dispatch
// ---------------------------------------------------------

func (e *Evaluator) eval(ctx context.Context, node ast.Node, s *Scope) (Value, *Error) {
	switch n := node.(type) {
	// Statements
	case *ast.LetStatement:
		value, err := e.eval(ctx, n.Value, s)
		if err != nil {
			return nil, err
		}
		s.Set(n.Name, value)
		return value, nil

	case *ast.RequestDefinition:
		s.Set(n.Name, &Request{Def: n})
		return &Null{}, nil

	case *ast.FunctionStatement:
		closure := &Closure{Parameters: n.Parameters, Body: n.Body, Env: s}
		s.Set(n.Name, closure)
		return &Null{}, nil

	case *ast.TestBlock:
		return &Null{}, nil

	case *ast.ReturnStatement:
		if n.Value == nil {
			return &returnValue{value: &Null{}}, nil
		}
		value, err := e.eval(ctx, n.Value, s)
		if err != nil {
			return nil, err
		}
		return &returnValue{value: value}, nil

	case *ast.ExpressionStatement:
		return e.eval(ctx, n.Expression, s)

	case *ast.Block:
		return e.evalBlock(ctx, n, s)

	// Expressions
	case *ast.Identifier:
		if value, ok := s.Get(n.Name); ok {
			return value, nil
		}
		return nil, errorf(UndefinedName, "undefined name: %s", n.Name)

	case *ast.IntegerLiteral:
		return &Integer{Value: n.Value}, nil

	case *ast.FloatLiteral:
		return &Float{Value: n.Value}, nil

	case *ast.BooleanLiteral:
		return &Boolean{Value: n.Value}, nil

	case *ast.NullLiteral:
		return &Null{}, nil

	case *ast.StringLiteral:
		return &String{Value: n.Value}, nil

	case *ast.InterpolatedString:
		return e.evalInterpolatedString(ctx, n, s)

	case *ast.ListLiteral:
		items := make([]Value, len(n.Items))
		for i, item := range n.Items {
			value, err := e.eval(ctx, item, s)
			if err != nil {
				return nil, err
			}
			items[i] = value
		}
		return &List{Items: items}, nil

	case *ast.MapLiteral:
		pairs := make(map[string]Value, len(n.Keys))
		for i, key := range n.Keys {
			value, err := e.eval(ctx, n.Values[i], s)
			if err != nil {
				return nil, err
			}
			pairs[key] = value
		}
		return &Map{Pairs: pairs}, nil

	case *ast.PrefixExpression:
		return e.evalPrefix(ctx, n, s)

	case *ast.InfixExpression:
		return e.evalInfix(ctx, n, s)

	case *ast.IfExpression:
		return e.evalIf(ctx, n, s)

	case *ast.FunctionLiteral:
		return &Closure{Parameters: n.Parameters, Body: n.Body, Env: s}, nil

	case *ast.CallExpression:
		return e.evalCall(ctx, n, s)

	case *ast.IndexExpression:
		return e.evalIndex(ctx, n, s)

	case *ast.MemberExpression:
		return e.evalMember(ctx, n, s)

	case *ast.ArrowInvocation:
		return e.evalArrow(ctx, n, s)

	default:
		return nil, errorf(TypeMismatch, "cannot evaluate %T", node)
	}
}

// evalBlock runs statements in the given scope without creating a new
// one; callers that need isolation pass a child scope.
func (e *Evaluator) evalBlock(ctx context.Context, block *ast.Block, s *Scope) (Value, *Error) {
	var result Value = &Null{}
	for _, stmt := range block.Statements {
		value, err := e.eval(ctx, stmt, s)
		if err != nil {
			return nil, err
		}
		if _, ok := value.(*returnValue); ok {
			return value, nil
		}
		result = value
	}
	return result, nil
}

func (e *Evaluator) evalInterpolatedString(ctx context.Context, n *ast.InterpolatedString, s *Scope) (Value, *Error) {
	var sb []byte
	for _, part := range n.Parts {
		if part.Expr == nil {
			sb = append(sb, part.Text...)
			continue
		}
		value, err := e.eval(ctx, part.Expr, s)
		if err != nil {
			return nil, err
		}
		sb = append(sb, value.String()...)
	}
	return &String{Value: string(sb)}, nil
}

func (e *Evaluator) evalPrefix(ctx context.Context, n *ast.PrefixExpression, s *Scope) (Value, *Error) {
	right, err := e.eval(ctx, n.Right, s)
	if err != nil {
		return nil, err
	}
	switch n.Operator {
	case "!":
		return &Boolean{Value: !truthy(right)}, nil
	case "-":
		switch v := right.(type) {
		case *Integer:
			return &Integer{Value: -v.Value}, nil
		case *Float:
			return &Float{Value: -v.Value}, nil
		}
		return nil, errorf(TypeMismatch, "cannot negate %s", right.Kind())
	}
	return nil, errorf(TypeMismatch, "unknown operator %s", n.Operator)
}

func (e *Evaluator) evalInfix(ctx context.Context, n *ast.InfixExpression, s *Scope) (Value, *Error) {
	left, err := e.eval(ctx, n.Left, s)
	if err != nil {
		return nil, err
	}

	// Logical operators short-circuit and yield an operand value
	switch n.Operator {
	case "&&":
		if !truthy(left) {
			return left, nil
		}
		return e.eval(ctx, n.Right, s)
	case "||":
		if truthy(left) {
			return left, nil
		}
		return e.eval(ctx, n.Right, s)
	}

	right, err := e.eval(ctx, n.Right, s)
	if err != nil {
		return nil, err
	}
	return binary(n.Operator, left, right)
}

// binary applies a non-logical infix operator to evaluated operands.
// It is shared with the assertion evaluator, which needs the operand
// values for its records.
func binary(operator string, left, right Value) (Value, *Error) {
	switch operator {
	case "==":
		return &Boolean{Value: equals(left, right)}, nil
	case "!=":
		return &Boolean{Value: !equals(left, right)}, nil
	}

	switch l := left.(type) {
	case *Integer:
		switch r := right.(type) {
		case *Integer:
			return integerBinary(operator, l.Value, r.Value)
		case *Float:
			return floatBinary(operator, float64(l.Value), r.Value)
		}
	case *Float:
		switch r := right.(type) {
		case *Integer:
			return floatBinary(operator, l.Value, float64(r.Value))
		case *Float:
			return floatBinary(operator, l.Value, r.Value)
		}
	case *String:
		if r, ok := right.(*String); ok {
			return stringBinary(operator, l.Value, r.Value)
		}
	}
	return nil, errorf(TypeMismatch, "cannot apply %s to %s and %s", operator, left.Kind(), right.Kind())
}

func integerBinary(operator string, left, right int64) (Value, *Error) {
	switch operator {
	case "+":
		return &Integer{Value: left + right}, nil
	case "-":
		return &Integer{Value: left - right}, nil
	case "*":
		return &Integer{Value: left * right}, nil
	case "/":
		if right == 0 {
			return nil, errorf(TypeMismatch, "division by zero")
		}
		return &Integer{Value: left / right}, nil
	case "%":
		if right == 0 {
			return nil, errorf(TypeMismatch, "division by zero")
		}
		return &Integer{Value: left % right}, nil
	case "<":
		return &Boolean{Value: left < right}, nil
	case ">":
		return &Boolean{Value: left > right}, nil
	case "<=":
		return &Boolean{Value: left <= right}, nil
	case ">=":
		return &Boolean{Value: left >= right}, nil
	}
	return nil, errorf(TypeMismatch, "cannot apply %s to integers", operator)
}

func floatBinary(operator string, left, right float64) (Value, *Error) {
	switch operator {
	case "+":
		return &Float{Value: left + right}, nil
	case "-":
		return &Float{Value: left - right}, nil
	case "*":
		return &Float{Value: left * right}, nil
	case "/":
		if right == 0 {
			return nil, errorf(TypeMismatch, "division by zero")
		}
		return &Float{Value: left / right}, nil
	case "<":
		return &Boolean{Value: left < right}, nil
	case ">":
		return &Boolean{Value: left > right}, nil
	case "<=":
		return &Boolean{Value: left <= right}, nil
	case ">=":
		return &Boolean{Value: left >= right}, nil
	}
	return nil, errorf(TypeMismatch, "cannot apply %s to floats", operator)
}

func stringBinary(operator string, left, right string) (Value, *Error) {
	switch operator {
	case "+":
		return &String{Value: left + right}, nil
	case "<":
		return &Boolean{Value: left < right}, nil
	case ">":
		return &Boolean{Value: left > right}, nil
	case "<=":
		return &Boolean{Value: left <= right}, nil
	case ">=":
		return &Boolean{Value: left >= right}, nil
	}
	return nil, errorf(TypeMismatch, "cannot apply %s to strings", operator)
}

func (e *Evaluator) evalIf(ctx context.Context, n *ast.IfExpression, s *Scope) (Value, *Error) {
	condition, err := e.eval(ctx, n.Condition, s)
	if err != nil {
		return nil, err
	}
	if truthy(condition) {
		return e.evalBlock(ctx, n.Consequence, s)
	}
	if n.Alternative != nil {
		return e.evalBlock(ctx, n.Alternative, s)
	}
	return &Null{}, nil
}

func (e *Evaluator) evalCall(ctx context.Context, n *ast.CallExpression, s *Scope) (Value, *Error) {
	// Builtins resolve only when the name is not bound in the scope,
	// so scripts may shadow them.
	if ident, ok := n.Function.(*ast.Identifier); ok {
		if _, bound := s.Get(ident.Name); !bound {
			if builtin, ok := builtins[ident.Name]; ok {
				args, err := e.evalArguments(ctx, n.Arguments, s)
				if err != nil {
					return nil, err
				}
				return builtin(e, ctx, s, args)
			}
		}
	}

	callee, err := e.eval(ctx, n.Function, s)
	if err != nil {
		return nil, err
	}
	closure, ok := callee.(*Closure)
	if !ok {
		return nil, errorf(TypeMismatch, "%s is not callable", callee.Kind())
	}

	args, err := e.evalArguments(ctx, n.Arguments, s)
	if err != nil {
		return nil, err
	}
	if len(args) != len(closure.Parameters) {
		return nil, errorf(TypeMismatch, "expected %d arguments, got %d", len(closure.Parameters), len(args))
	}

	e.depth++
	defer func() { e.depth-- }()
	if e.depth > e.maxDepth {
		return nil, errorf(ExecutionLimitExceeded, "call depth exceeds %d", e.maxDepth)
	}

	callScope := NewScope(closure.Env)
	for i, param := range closure.Parameters {
		callScope.Set(param, args[i])
	}

	value, cerr := e.evalBlock(ctx, closure.Body, callScope)
	if cerr != nil {
		return nil, cerr
	}
	if ret, ok := value.(*returnValue); ok {
		return ret.value, nil
	}
	return value, nil
}

func (e *Evaluator) evalArguments(ctx context.Context, exprs []ast.Expression, s *Scope) ([]Value, *Error) {
	args := make([]Value, len(exprs))
	for i, expr := range exprs {
		value, err := e.eval(ctx, expr, s)
		if err != nil {
			return nil, err
		}
		args[i] = value
	}
	return args, nil
}

func (e *Evaluator) evalIndex(ctx context.Context, n *ast.IndexExpression, s *Scope) (Value, *Error) {
	left, err := e.eval(ctx, n.Left, s)
	if err != nil {
		return nil, err
	}
	index, err := e.eval(ctx, n.Index, s)
	if err != nil {
		return nil, err
	}

	switch container := left.(type) {
	case *List:
		i, ok := index.(*Integer)
		if !ok {
			return nil, errorf(TypeMismatch, "list index must be integer, got %s", index.Kind())
		}
		if i.Value < 0 || i.Value >= int64(len(container.Items)) {
			return &Null{}, nil
		}
		return container.Items[i.Value], nil

	case *Map:
		key, ok := index.(*String)
		if !ok {
			return nil, errorf(TypeMismatch, "map key must be string, got %s", index.Kind())
		}
		if value, found := container.Pairs[key.Value]; found {
			return value, nil
		}
		return &Null{}, nil
	}
	return nil, errorf(TypeMismatch, "cannot index %s", left.Kind())
}

func (e *Evaluator) evalMember(ctx context.Context, n *ast.MemberExpression, s *Scope) (Value, *Error) {
	left, err := e.eval(ctx, n.Left, s)
	if err != nil {
		return nil, err
	}

	switch container := left.(type) {
	case *Map:
		if value, found := container.Pairs[n.Member]; found {
			return value, nil
		}
		return &Null{}, nil

	case *Response:
		return responseMember(container, n.Member)
	}
	return nil, errorf(TypeMismatch, "%s has no member %s", left.Kind(), n.Member)
}

// responseMember exposes the response to scripts: status, headers,
// body, duration (seconds), version and the decoded json body.
func responseMember(r *Response, member string) (Value, *Error) {
	switch member {
	case "status":
		return &Integer{Value: int64(r.Message.StatusCode)}, nil
	case "headers":
		return headerValue(r.Message.Header), nil
	case "body":
		return &String{Value: r.Message.String()}, nil
	case "duration":
		return &Float{Value: r.Message.Duration.Seconds()}, nil
	case "version":
		return &String{Value: r.Message.Version}, nil
	case "json":
		return r.JSON, nil
	}
	return &Null{}, nil
}

func headerValue(header map[string][]string) *Map {
	pairs := make(map[string]Value, len(header))
	for name, values := range header {
		items := make([]Value, len(values))
		for i, v := range values {
			items[i] = &String{Value: v}
		}
		pairs[name] = &List{Items: items}
	}
	return &Map{Pairs: pairs}
}
