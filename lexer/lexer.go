// Package lexer provides tokenization for fan scripts
package lexer

import (
	"fmt"
	"strings"
	"unicode"
)

// TokenType represents the type of token
type TokenType int

const (
	// Special tokens
	EOF TokenType = iota
	ILLEGAL

	// Literals
	IDENT    // host, getUser
	INT      // 123
	FLOAT    // 45.6
	STRING   // "quoted string"
	TEMPLATE // `GET http://...` (raw, resolved later)

	// Keywords
	LET
	RQ
	TEST
	FN
	IF
	ELSE
	RETURN
	TRUE
	FALSE
	NULL

	// Operators
	ASSIGN  // =
	PLUS    // +
	MINUS   // -
	STAR    // *
	SLASH   // /
	PERCENT // %
	BANG    // !
	LT      // <
	GT      // >
	LE      // <=
	GE      // >=
	EQ      // ==
	NE      // !=
	AND     // &&
	OR      // ||
	ARROW   // ->

	// Delimiters
	COMMA     // ,
	SEMICOLON // ;
	COLON     // :
	DOT       // .
	LPAREN    // (
	RPAREN    // )
	LBRACE    // {
	RBRACE    // }
	LBRACKET  // [
	RBRACKET  // ]
)

var tokenNames = map[TokenType]string{
	EOF:       "EOF",
	ILLEGAL:   "ILLEGAL",
	IDENT:     "IDENT",
	INT:       "INT",
	FLOAT:     "FLOAT",
	STRING:    "STRING",
	TEMPLATE:  "TEMPLATE",
	LET:       "let",
	RQ:        "rq",
	TEST:      "test",
	FN:        "fn",
	IF:        "if",
	ELSE:      "else",
	RETURN:    "return",
	TRUE:      "true",
	FALSE:     "false",
	NULL:      "null",
	ASSIGN:    "=",
	PLUS:      "+",
	MINUS:     "-",
	STAR:      "*",
	SLASH:     "/",
	PERCENT:   "%",
	BANG:      "!",
	LT:        "<",
	GT:        ">",
	LE:        "<=",
	GE:        ">=",
	EQ:        "==",
	NE:        "!=",
	AND:       "&&",
	OR:        "||",
	ARROW:     "->",
	COMMA:     ",",
	SEMICOLON: ";",
	COLON:     ":",
	DOT:       ".",
	LPAREN:    "(",
	RPAREN:    ")",
	LBRACE:    "{",
	RBRACE:    "}",
	LBRACKET:  "[",
	RBRACKET:  "]",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TokenType(%d)", t)
}

// Token represents a lexical token
type Token struct {
	Type    TokenType
	Literal string
	Line    int
	Column  int
}

func (t Token) String() string {
	return fmt.Sprintf("Token{%s, %q, L%d:C%d}", t.Type, t.Literal, t.Line, t.Column)
}

// Lexer tokenizes fan source code
type Lexer struct {
	input   string
	pos     int  // current position
	readPos int  // next position
	ch      byte // current char
	line    int
	column  int
}

// New creates a new Lexer
func New(input string) *Lexer {
	l := &Lexer{
		input:  input,
		line:   1,
		column: 0,
	}
	l.readChar()
	return l
}

func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPos]
	}
	if l.ch == '\n' {
		l.line++
		l.column = 0
	} else {
		l.column++
	}
	l.pos = l.readPos
	l.readPos++
}

func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

// NextToken returns the next token
func (l *Lexer) NextToken() Token {
	l.skipWhitespace()

	// Skip line comments
	for l.ch == '/' && l.peekChar() == '/' {
		for l.ch != '\n' && l.ch != 0 {
			l.readChar()
		}
		l.skipWhitespace()
	}

	var tok Token
	tok.Line = l.line
	tok.Column = l.column

	switch l.ch {
	case 0:
		tok.Type = EOF
		tok.Literal = ""

	case '=':
		if l.peekChar() == '=' {
			l.readChar()
			tok.Type = EQ
			tok.Literal = "=="
		} else {
			tok.Type = ASSIGN
			tok.Literal = "="
		}
		l.readChar()

	case '!':
		if l.peekChar() == '=' {
			l.readChar()
			tok.Type = NE
			tok.Literal = "!="
		} else {
			tok.Type = BANG
			tok.Literal = "!"
		}
		l.readChar()

	case '<':
		if l.peekChar() == '=' {
			l.readChar()
			tok.Type = LE
			tok.Literal = "<="
		} else {
			tok.Type = LT
			tok.Literal = "<"
		}
		l.readChar()

	case '>':
		if l.peekChar() == '=' {
			l.readChar()
			tok.Type = GE
			tok.Literal = ">="
		} else {
			tok.Type = GT
			tok.Literal = ">"
		}
		l.readChar()

	case '&':
		if l.peekChar() == '&' {
			l.readChar()
			tok.Type = AND
			tok.Literal = "&&"
			l.readChar()
		} else {
			tok.Type = ILLEGAL
			tok.Literal = string(l.ch)
			l.readChar()
		}

	case '|':
		if l.peekChar() == '|' {
			l.readChar()
			tok.Type = OR
			tok.Literal = "||"
			l.readChar()
		} else {
			tok.Type = ILLEGAL
			tok.Literal = string(l.ch)
			l.readChar()
		}

	case '-':
		if l.peekChar() == '>' {
			l.readChar()
			tok.Type = ARROW
			tok.Literal = "->"
			l.readChar()
		} else {
			tok.Type = MINUS
			tok.Literal = "-"
			l.readChar()
		}

	case '+':
		tok.Type = PLUS
		tok.Literal = "+"
		l.readChar()

	case '*':
		tok.Type = STAR
		tok.Literal = "*"
		l.readChar()

	case '/':
		tok.Type = SLASH
		tok.Literal = "/"
		l.readChar()

	case '%':
		tok.Type = PERCENT
		tok.Literal = "%"
		l.readChar()

	case ',':
		tok.Type = COMMA
		tok.Literal = ","
		l.readChar()

	case ';':
		tok.Type = SEMICOLON
		tok.Literal = ";"
		l.readChar()

	case ':':
		tok.Type = COLON
		tok.Literal = ":"
		l.readChar()

	case '.':
		tok.Type = DOT
		tok.Literal = "."
		l.readChar()

	case '(':
		tok.Type = LPAREN
		tok.Literal = "("
		l.readChar()

	case ')':
		tok.Type = RPAREN
		tok.Literal = ")"
		l.readChar()

	case '{':
		tok.Type = LBRACE
		tok.Literal = "{"
		l.readChar()

	case '}':
		tok.Type = RBRACE
		tok.Literal = "}"
		l.readChar()

	case '[':
		tok.Type = LBRACKET
		tok.Literal = "["
		l.readChar()

	case ']':
		tok.Type = RBRACKET
		tok.Literal = "]"
		l.readChar()

	case '"':
		literal, ok := l.readString()
		if !ok {
			tok.Type = ILLEGAL
			tok.Literal = "unterminated string"
		} else {
			tok.Type = STRING
			tok.Literal = literal
		}

	case '`':
		literal, ok := l.readTemplate()
		if !ok {
			tok.Type = ILLEGAL
			tok.Literal = "unterminated template"
		} else {
			tok.Type = TEMPLATE
			tok.Literal = literal
		}

	default:
		if isDigit(l.ch) {
			tok.Literal = l.readNumber()
			if strings.Contains(tok.Literal, ".") {
				tok.Type = FLOAT
			} else {
				tok.Type = INT
			}
		} else if isIdentStart(l.ch) {
			tok.Literal = l.readIdentifier()
			tok.Type = lookupKeyword(tok.Literal)
		} else {
			tok.Type = ILLEGAL
			tok.Literal = string(l.ch)
			l.readChar()
		}
	}

	return tok
}

func (l *Lexer) skipWhitespace() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
		l.readChar()
	}
}

// readString reads a double-quoted string, processing escape sequences.
// Returns false if the closing quote is missing.
func (l *Lexer) readString() (string, bool) {
	var sb strings.Builder
	l.readChar() // skip opening quote
	for {
		if l.ch == 0 {
			return "", false
		}
		if l.ch == '"' {
			l.readChar() // skip closing quote
			return sb.String(), true
		}
		if l.ch == '\\' {
			l.readChar()
			switch l.ch {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			case '"':
				sb.WriteByte('"')
			case '\\':
				sb.WriteByte('\\')
			default:
				sb.WriteByte('\\')
				sb.WriteByte(l.ch)
			}
			l.readChar()
			continue
		}
		sb.WriteByte(l.ch)
		l.readChar()
	}
}

// readTemplate reads a backtick-delimited block as one opaque span.
// The content is not tokenized here; interpolation slots and the HTTP
// message structure are resolved later. Returns false when the closing
// backtick is missing.
func (l *Lexer) readTemplate() (string, bool) {
	l.readChar() // skip opening backtick
	start := l.pos
	for l.ch != '`' {
		if l.ch == 0 {
			return "", false
		}
		l.readChar()
	}
	content := l.input[start:l.pos]
	l.readChar() // skip closing backtick
	return content, true
}

func (l *Lexer) readNumber() string {
	start := l.pos
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar() // consume '.'
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	return l.input[start:l.pos]
}

func (l *Lexer) readIdentifier() string {
	start := l.pos
	for isIdentChar(l.ch) {
		l.readChar()
	}
	return l.input[start:l.pos]
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isIdentStart(ch byte) bool {
	return unicode.IsLetter(rune(ch)) || ch == '_'
}

func isIdentChar(ch byte) bool {
	return unicode.IsLetter(rune(ch)) || unicode.IsDigit(rune(ch)) || ch == '_'
}

var keywords = map[string]TokenType{
	"let":    LET,
	"rq":     RQ,
	"test":   TEST,
	"fn":     FN,
	"if":     IF,
	"else":   ELSE,
	"return": RETURN,
	"true":   TRUE,
	"false":  FALSE,
	"null":   NULL,
}

func lookupKeyword(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return IDENT
}

// Tokenize returns all tokens from input
func Tokenize(input string) []Token {
	l := New(input)
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == EOF {
			break
		}
	}
	return tokens
}
