package eval

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/basjoofan/core/ast"
	"github.com/basjoofan/core/request"
)

// Kind identifies a value variant. The set is closed: the evaluator
// dispatches exhaustively over it.
type Kind int

const (
	KindNull Kind = iota
	KindBoolean
	KindInteger
	KindFloat
	KindString
	KindList
	KindMap
	KindClosure
	KindRequest
	KindResponse
)

var kindNames = map[Kind]string{
	KindNull:     "null",
	KindBoolean:  "boolean",
	KindInteger:  "integer",
	KindFloat:    "float",
	KindString:   "string",
	KindList:     "list",
	KindMap:      "map",
	KindClosure:  "closure",
	KindRequest:  "request",
	KindResponse: "response",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Value is a runtime value of a fan script
type Value interface {
	Kind() Kind
	String() string
}

// Null is the absent value
type Null struct{}

func (v *Null) Kind() Kind     { return KindNull }
func (v *Null) String() string { return "null" }

// Boolean wraps true/false
type Boolean struct {
	Value bool
}

func (v *Boolean) Kind() Kind     { return KindBoolean }
func (v *Boolean) String() string { return strconv.FormatBool(v.Value) }

// Integer is a 64-bit signed integer
type Integer struct {
	Value int64
}

func (v *Integer) Kind() Kind     { return KindInteger }
func (v *Integer) String() string { return strconv.FormatInt(v.Value, 10) }

// Float is a 64-bit float
type Float struct {
	Value float64
}

func (v *Float) Kind() Kind     { return KindFloat }
func (v *Float) String() string { return strconv.FormatFloat(v.Value, 'f', -1, 64) }

// String is a text value
type String struct {
	Value string
}

func (v *String) Kind() Kind     { return KindString }
func (v *String) String() string { return v.Value }

// List is an ordered sequence of values
type List struct {
	Items []Value
}

func (v *List) Kind() Kind { return KindList }
func (v *List) String() string {
	parts := make([]string, len(v.Items))
	for i, item := range v.Items {
		parts[i] = item.String()
	}
	return fmt.Sprintf("[%s]", strings.Join(parts, ", "))
}

// Map is a string-keyed mapping; iteration order is not significant
type Map struct {
	Pairs map[string]Value
}

func (v *Map) Kind() Kind { return KindMap }
func (v *Map) String() string {
	keys := make([]string, 0, len(v.Pairs))
	for k := range v.Pairs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s: %s", k, v.Pairs[k].String())
	}
	return fmt.Sprintf("{%s}", strings.Join(parts, ", "))
}

// Closure is a function value capturing its defining scope
type Closure struct {
	Parameters []string
	Body       *ast.Block
	Env        *Scope
}

func (v *Closure) Kind() Kind { return KindClosure }
func (v *Closure) String() string {
	return fmt.Sprintf("fn(%s)", strings.Join(v.Parameters, ", "))
}

// Request wraps an immutable request definition
type Request struct {
	Def *ast.RequestDefinition
}

func (v *Request) Kind() Kind     { return KindRequest }
func (v *Request) String() string { return "rq " + v.Def.Name }

// Response wraps a received HTTP response. JSON holds the decoded body
// when the body is valid JSON, Null otherwise.
type Response struct {
	Message *request.Response
	JSON    Value
}

func (v *Response) Kind() Kind     { return KindResponse }
func (v *Response) String() string { return v.Message.String() }

// returnValue carries a return statement's value up the block stack.
// It never escapes the evaluator.
type returnValue struct {
	value Value
}

func (v *returnValue) Kind() Kind     { return v.value.Kind() }
func (v *returnValue) String() string { return v.value.String() }

// ---------------------------------------------------------
// Helpers
// ---------------------------------------------------------

// truthy: everything except false and null is true
func truthy(v Value) bool {
	switch t := v.(type) {
	case *Null:
		return false
	case *Boolean:
		return t.Value
	default:
		return true
	}
}

// equals compares values deeply across kinds
func equals(a, b Value) bool {
	switch left := a.(type) {
	case *Null:
		_, ok := b.(*Null)
		return ok
	case *Boolean:
		right, ok := b.(*Boolean)
		return ok && left.Value == right.Value
	case *Integer:
		switch right := b.(type) {
		case *Integer:
			return left.Value == right.Value
		case *Float:
			return float64(left.Value) == right.Value
		}
		return false
	case *Float:
		switch right := b.(type) {
		case *Integer:
			return left.Value == float64(right.Value)
		case *Float:
			return left.Value == right.Value
		}
		return false
	case *String:
		right, ok := b.(*String)
		return ok && left.Value == right.Value
	case *List:
		right, ok := b.(*List)
		if !ok || len(left.Items) != len(right.Items) {
			return false
		}
		for i := range left.Items {
			if !equals(left.Items[i], right.Items[i]) {
				return false
			}
		}
		return true
	case *Map:
		right, ok := b.(*Map)
		if !ok || len(left.Pairs) != len(right.Pairs) {
			return false
		}
		for k, v := range left.Pairs {
			other, found := right.Pairs[k]
			if !found || !equals(v, other) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

// fromJSON converts a decoded JSON document into a Value.
// Integral numbers come back as Integer so scripts can compare them
// against integer literals directly.
func fromJSON(v interface{}) Value {
	switch t := v.(type) {
	case nil:
		return &Null{}
	case bool:
		return &Boolean{Value: t}
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1<<53 {
			return &Integer{Value: int64(t)}
		}
		return &Float{Value: t}
	case string:
		return &String{Value: t}
	case []interface{}:
		items := make([]Value, len(t))
		for i, item := range t {
			items[i] = fromJSON(item)
		}
		return &List{Items: items}
	case map[string]interface{}:
		pairs := make(map[string]Value, len(t))
		for k, item := range t {
			pairs[k] = fromJSON(item)
		}
		return &Map{Pairs: pairs}
	default:
		return &Null{}
	}
}
