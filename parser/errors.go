package parser

import "fmt"

// SyntaxError reports a lex or parse failure with its source position.
// Parsing is all-or-nothing: the first error aborts and no AST is returned.
type SyntaxError struct {
	Line     int
	Column   int
	Expected string
	Found    string
}

func (e *SyntaxError) Error() string {
	if e.Expected == "" {
		return fmt.Sprintf("syntax error at line %d:%d: %s", e.Line, e.Column, e.Found)
	}
	return fmt.Sprintf("syntax error at line %d:%d: expected %s, found %s", e.Line, e.Column, e.Expected, e.Found)
}
