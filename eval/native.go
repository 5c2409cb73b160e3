package eval

import (
	"context"
	"fmt"
	"strings"
)

// builtin is a native function callable from scripts
type builtin func(e *Evaluator, ctx context.Context, s *Scope, args []Value) (Value, *Error)

// Populated in init: builtinFormat reaches back into the evaluator,
// so a composite literal would form an initialization cycle.
var builtins map[string]builtin

func init() {
	builtins = map[string]builtin{
		"println": builtinPrintln,
		"print":   builtinPrint,
		"format":  builtinFormat,
		"length":  builtinLength,
		"append":  builtinAppend,
	}
}

func builtinPrintln(e *Evaluator, _ context.Context, _ *Scope, args []Value) (Value, *Error) {
	fmt.Fprintln(e.out, render(args))
	return &Null{}, nil
}

func builtinPrint(e *Evaluator, _ context.Context, _ *Scope, args []Value) (Value, *Error) {
	fmt.Fprint(e.out, render(args))
	return &Null{}, nil
}

func render(args []Value) string {
	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = arg.String()
	}
	return strings.Join(parts, " ")
}

// format interpolates {expr} slots in its argument against the current
// scope, for strings built at runtime rather than written literally.
func builtinFormat(e *Evaluator, ctx context.Context, s *Scope, args []Value) (Value, *Error) {
	if len(args) != 1 {
		return nil, errorf(TypeMismatch, "format expects 1 argument, got %d", len(args))
	}
	text, ok := args[0].(*String)
	if !ok {
		return nil, errorf(TypeMismatch, "format expects a string, got %s", args[0].Kind())
	}
	resolved, err := e.resolve(ctx, text.Value, s)
	if err != nil {
		return nil, err
	}
	return &String{Value: resolved}, nil
}

func builtinLength(_ *Evaluator, _ context.Context, _ *Scope, args []Value) (Value, *Error) {
	if len(args) != 1 {
		return nil, errorf(TypeMismatch, "length expects 1 argument, got %d", len(args))
	}
	switch v := args[0].(type) {
	case *String:
		return &Integer{Value: int64(len(v.Value))}, nil
	case *List:
		return &Integer{Value: int64(len(v.Items))}, nil
	case *Map:
		return &Integer{Value: int64(len(v.Pairs))}, nil
	}
	return nil, errorf(TypeMismatch, "length of %s", args[0].Kind())
}

func builtinAppend(_ *Evaluator, _ context.Context, _ *Scope, args []Value) (Value, *Error) {
	if len(args) < 1 {
		return nil, errorf(TypeMismatch, "append expects a list")
	}
	list, ok := args[0].(*List)
	if !ok {
		return nil, errorf(TypeMismatch, "append expects a list, got %s", args[0].Kind())
	}
	items := make([]Value, 0, len(list.Items)+len(args)-1)
	items = append(items, list.Items...)
	items = append(items, args[1:]...)
	return &List{Items: items}, nil
}
