package eval

import (
	"context"

	"github.com/google/uuid"

	"github.com/basjoofan/core/ast"
	"github.com/basjoofan/core/request"
)

// evalArrow performs the arrow invocation, the single side-effecting
// operation of the language: resolve the named request's template,
// send it, bind `response` in the current scope and score the attached
// assertions. A false assertion is recorded but does not abort
// evaluation; an assertion that fails to evaluate does.
func (e *Evaluator) evalArrow(ctx context.Context, n *ast.ArrowInvocation, s *Scope) (Value, *Error) {
	value, ok := s.Get(n.Name)
	if !ok {
		return nil, errorf(UndefinedName, "undefined name: %s", n.Name)
	}
	rq, ok := value.(*Request)
	if !ok {
		return nil, errorf(TypeMismatch, "%s is not a request", n.Name)
	}

	text, err := e.resolve(ctx, rq.Def.Template, s)
	if err != nil {
		return nil, err
	}
	message, merr := request.ReadMessage(text)
	if merr != nil {
		return nil, errorf(TemplateError, "request %s: %v", n.Name, merr)
	}

	record := &Record{
		ID:      uuid.NewString(),
		Name:    n.Name,
		Request: message,
	}

	resp, serr := e.sender.Do(ctx, message)
	if serr != nil {
		record.Error = serr.Error()
		e.records = append(e.records, record)
		return nil, errorf(NetworkFailure, "request %s: %v", n.Name, serr)
	}
	record.Response = resp
	record.Duration = resp.Duration

	var jsonValue Value = &Null{}
	if decoded, jerr := resp.JSON(); jerr == nil {
		jsonValue = fromJSON(decoded)
	}
	response := &Response{Message: resp, JSON: jsonValue}
	s.Set("response", response)

	// Assertions see the response fields directly
	asserts := NewScope(s)
	asserts.Set("status", &Integer{Value: int64(resp.StatusCode)})
	asserts.Set("headers", headerValue(resp.Header))
	asserts.Set("body", &String{Value: resp.String()})
	asserts.Set("json", jsonValue)

	for _, expr := range rq.Def.Asserts {
		scored, aerr := e.evalAssert(ctx, expr, asserts)
		if aerr != nil {
			record.Error = aerr.Error()
			e.records = append(e.records, record)
			return nil, aerr
		}
		record.Asserts = append(record.Asserts, scored)
	}

	e.records = append(e.records, record)
	return response, nil
}

// evalAssert scores one assertion expression. For a comparison the
// operand values are evaluated separately so the record can show them.
func (e *Evaluator) evalAssert(ctx context.Context, expr ast.Expression, s *Scope) (Assert, *Error) {
	scored := Assert{Expr: expr.String()}

	var result Value
	if infix, ok := expr.(*ast.InfixExpression); ok && infix.Operator != "&&" && infix.Operator != "||" {
		left, err := e.eval(ctx, infix.Left, s)
		if err != nil {
			return scored, err
		}
		right, err := e.eval(ctx, infix.Right, s)
		if err != nil {
			return scored, err
		}
		scored.Left = left.String()
		scored.Compare = infix.Operator
		scored.Right = right.String()
		result, err = binary(infix.Operator, left, right)
		if err != nil {
			return scored, err
		}
	} else {
		value, err := e.eval(ctx, expr, s)
		if err != nil {
			return scored, err
		}
		scored.Left = value.String()
		result = value
	}

	boolean, ok := result.(*Boolean)
	if !ok {
		return scored, errorf(AssertionTypeError, "assertion %s is %s, not boolean", scored.Expr, result.Kind())
	}
	scored.Result = boolean.Value
	return scored, nil
}
