// Package template splits raw text into literal pieces and {expr}
// interpolation slots. It is shared by request templates, interpolated
// string literals and the format builtin. Scanning is purely textual:
// slot expressions come back as source strings for the caller to parse
// and evaluate, and substituted text is never rescanned.
package template

import (
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// Segment is one scanned piece of a template.
// When Slot is true, Text holds the slot's expression source;
// otherwise Text is literal.
type Segment struct {
	Slot bool
	Text string
}

// ---------------------------------------------------------
// Grammar
// ---------------------------------------------------------

// A brace opens a slot only when the first non-blank character could
// begin an expression. That keeps literal JSON bodies intact: `{"a": 1}`
// and `{}` contain no slot.
var pieceLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Slot", Pattern: `\{[ \t]*[a-zA-Z0-9_(!-][^{}]*\}`},
	{Name: "Text", Pattern: `[^{]+`},
	{Name: "Brace", Pattern: `\{`},
})

// slotSource captures a slot token, stripping the braces and blanks
type slotSource string

// Capture implements participle's Capture interface
func (s *slotSource) Capture(values []string) error {
	v := values[0]
	*s = slotSource(strings.TrimSpace(v[1 : len(v)-1]))
	return nil
}

type piece struct {
	Slot *slotSource `parser:"  @Slot"`
	Text *string     `parser:"| @Text | @Brace"`
}

type pieces struct {
	List []*piece `parser:"@@*"`
}

// Global singleton scanner (avoid rebuilding the grammar)
var defaultScanner *participle.Parser[pieces]
var defaultScannerErr error

func init() {
	defaultScanner, defaultScannerErr = participle.Build[pieces](
		participle.Lexer(pieceLexer),
	)
}

// ---------------------------------------------------------
// Public API
// ---------------------------------------------------------

// Scan splits text into literal and slot segments. Adjacent literal
// segments are merged so callers see at most one literal between slots.
func Scan(text string) ([]Segment, error) {
	if defaultScannerErr != nil {
		return nil, defaultScannerErr
	}
	if text == "" {
		return nil, nil
	}
	parsed, err := defaultScanner.ParseString("", text)
	if err != nil {
		return nil, err
	}
	var segments []Segment
	for _, p := range parsed.List {
		if p.Slot != nil {
			segments = append(segments, Segment{Slot: true, Text: string(*p.Slot)})
			continue
		}
		if p.Text != nil {
			if n := len(segments); n > 0 && !segments[n-1].Slot {
				segments[n-1].Text += *p.Text
			} else {
				segments = append(segments, Segment{Text: *p.Text})
			}
		}
	}
	return segments, nil
}
