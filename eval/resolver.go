package eval

import (
	"context"
	"strings"

	"github.com/basjoofan/core/parser"
	"github.com/basjoofan/core/template"
)

// resolve substitutes every {expr} slot in text with the textual form
// of the expression evaluated against scope. Substitution is a single
// pass: produced text is never rescanned, so a value containing braces
// cannot inject further slots.
func (e *Evaluator) resolve(ctx context.Context, text string, s *Scope) (string, *Error) {
	segments, err := template.Scan(text)
	if err != nil {
		return "", errorf(TemplateError, "scan template: %v", err)
	}

	var sb strings.Builder
	for _, seg := range segments {
		if !seg.Slot {
			sb.WriteString(seg.Text)
			continue
		}
		expr, perr := parser.ParseExpression(seg.Text)
		if perr != nil {
			return "", errorf(TemplateError, "slot {%s}: %v", seg.Text, perr)
		}
		value, everr := e.eval(ctx, expr, s)
		if everr != nil {
			return "", errorf(TemplateError, "slot {%s}: %v", seg.Text, everr)
		}
		sb.WriteString(value.String())
	}
	return sb.String(), nil
}
