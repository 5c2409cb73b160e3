package eval

import (
	"fmt"
	"strings"
	"time"

	"github.com/basjoofan/core/request"
)

// Assert is the scored result of one assertion expression
type Assert struct {
	Expr    string // assertion source text
	Left    string // rendered left operand (or whole value)
	Compare string // comparison operator, empty for non-infix asserts
	Right   string // rendered right operand
	Result  bool
}

func (a Assert) String() string {
	if a.Compare == "" {
		return fmt.Sprintf("%s => %t", a.Expr, a.Result)
	}
	return fmt.Sprintf("%s => %s %s %s => %t", a.Expr, a.Left, a.Compare, a.Right, a.Result)
}

// Record captures one request send: the concrete request, the response
// (nil when the send failed), its duration and the scored assertions.
type Record struct {
	ID       string
	Name     string
	Request  *request.Request
	Response *request.Response
	Duration time.Duration
	Asserts  []Assert
	Error    string
}

// Passed reports whether the send succeeded and every assertion held
func (r *Record) Passed() bool {
	if r.Error != "" {
		return false
	}
	for _, a := range r.Asserts {
		if !a.Result {
			return false
		}
	}
	return true
}

func (r *Record) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "=== SEND  %s\n", r.Name)
	for _, a := range r.Asserts {
		sb.WriteString(a.String())
		sb.WriteString("\n")
	}
	if r.Error != "" {
		fmt.Fprintf(&sb, "--- FAIL  %s (%s)", r.Name, r.Error)
		return sb.String()
	}
	status := "PASS"
	if !r.Passed() {
		status = "FAIL"
	}
	fmt.Fprintf(&sb, "--- %s  %s (%v)", status, r.Name, r.Duration)
	return sb.String()
}
