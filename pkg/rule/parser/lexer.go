package parser

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	ruleErrors "mercator-hq/ruleengine/pkg/rule/errors"
)

// tokenKind identifies the lexical class of a token.
type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokInt
	tokFloat
	tokString
	tokTrue
	tokFalse
	tokAnd
	tokOr
	tokNot
	tokLParen
	tokRParen
	tokCmp
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of input"
	case tokIdent:
		return "field name"
	case tokInt, tokFloat:
		return "number"
	case tokString:
		return "string"
	case tokTrue, tokFalse:
		return "boolean"
	case tokAnd:
		return "AND"
	case tokOr:
		return "OR"
	case tokNot:
		return "NOT"
	case tokLParen:
		return "'('"
	case tokRParen:
		return "')'"
	case tokCmp:
		return "comparator"
	}
	return "token"
}

// token is a lexeme with its decoded payload.
type token struct {
	kind tokenKind
	pos  int    // byte offset of the first character
	text string // raw source text
	str  string // decoded string literal
	i    int64
	f    float64
}

// describe renders the token for error messages.
func (t token) describe() string {
	switch t.kind {
	case tokEOF:
		return "end of input"
	case tokString:
		return "string " + t.text
	}
	return fmt.Sprintf("'%s'", t.text)
}

// lexer produces tokens on demand so that the first error reported is the
// leftmost one, whether it is lexical or syntactic.
type lexer struct {
	input string
	pos   int
}

func newLexer(input string) *lexer {
	return &lexer{input: input}
}

// next scans the next token.
func (l *lexer) next() (token, *ruleErrors.ParseError) {
	l.skipSpace()
	if l.pos >= len(l.input) {
		return token{kind: tokEOF, pos: len(l.input)}, nil
	}

	start := l.pos
	c := l.input[l.pos]

	switch {
	case c == '(':
		l.pos++
		return token{kind: tokLParen, pos: start, text: "("}, nil
	case c == ')':
		l.pos++
		return token{kind: tokRParen, pos: start, text: ")"}, nil
	case c == '\'' || c == '"':
		return l.scanString()
	case isDigit(c) || (c == '-' && l.pos+1 < len(l.input) && isDigit(l.input[l.pos+1])):
		return l.scanNumber()
	case isIdentStart(c):
		return l.scanIdent(), nil
	case c == '>' || c == '<' || c == '=' || c == '!':
		return l.scanComparator()
	}

	text := l.unknownText()
	return token{}, ruleErrors.NewParseError(ruleErrors.KindUnknownToken, start, l.input,
		"unexpected character '%s'", text).WithSuggestion(unknownSuggestion(text))
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.input) {
		switch l.input[l.pos] {
		case ' ', '\t', '\n', '\r':
			l.pos++
		default:
			return
		}
	}
}

// unknownText returns the offending character, extended to the repeated
// form for & and | so the suggestion can address && and ||.
func (l *lexer) unknownText() string {
	c := l.input[l.pos]
	if (c == '&' || c == '|') && l.pos+1 < len(l.input) && l.input[l.pos+1] == c {
		return l.input[l.pos : l.pos+2]
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.pos:])
	return string(r)
}

func unknownSuggestion(text string) string {
	switch text {
	case "&", "&&", "|", "||":
		return ruleErrors.SuggestComparator(text)
	}
	return ""
}

func (l *lexer) scanComparator() (token, *ruleErrors.ParseError) {
	start := l.pos
	c := l.input[l.pos]
	var nextC byte
	if l.pos+1 < len(l.input) {
		nextC = l.input[l.pos+1]
	}

	var text string
	switch {
	case nextC == '=':
		text = string([]byte{c, '='})
	case c == '>' || c == '<':
		text = string(c)
	default:
		// A lone '=' or '!' is not a comparator
		bad := string(c)
		if c == '=' && (nextC == '>' || nextC == '<') {
			bad = string([]byte{c, nextC})
		}
		return token{}, ruleErrors.NewParseError(ruleErrors.KindUnknownToken, start, l.input,
			"unknown operator '%s'", bad).WithSuggestion(ruleErrors.SuggestComparator(bad))
	}

	l.pos += len(text)
	return token{kind: tokCmp, pos: start, text: text}, nil
}

func (l *lexer) scanIdent() token {
	start := l.pos
	for l.pos < len(l.input) && isIdentPart(l.input[l.pos]) {
		l.pos++
	}
	text := l.input[start:l.pos]

	kind := tokIdent
	switch strings.ToUpper(text) {
	case "AND":
		kind = tokAnd
	case "OR":
		kind = tokOr
	case "NOT":
		kind = tokNot
	case "TRUE":
		kind = tokTrue
	case "FALSE":
		kind = tokFalse
	}
	return token{kind: kind, pos: start, text: text}
}

// scanNumber scans -?digits[.digits][(e|E)[+-]digits]. A number running
// into letters (12abc) or a dangling '.' or exponent is an invalid literal.
func (l *lexer) scanNumber() (token, *ruleErrors.ParseError) {
	start := l.pos
	isFloat := false

	if l.input[l.pos] == '-' {
		l.pos++
	}
	l.digits()

	if l.pos < len(l.input) && l.input[l.pos] == '.' {
		isFloat = true
		l.pos++
		if l.digits() == 0 {
			return token{}, l.invalidNumber(start)
		}
	}

	if l.pos < len(l.input) && (l.input[l.pos] == 'e' || l.input[l.pos] == 'E') {
		isFloat = true
		l.pos++
		if l.pos < len(l.input) && (l.input[l.pos] == '+' || l.input[l.pos] == '-') {
			l.pos++
		}
		if l.digits() == 0 {
			return token{}, l.invalidNumber(start)
		}
	}

	if l.pos < len(l.input) && isIdentPart(l.input[l.pos]) {
		return token{}, l.invalidNumber(start)
	}

	text := l.input[start:l.pos]
	if isFloat {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return token{}, ruleErrors.NewParseError(ruleErrors.KindInvalidLiteral, start, l.input,
				"number %s is out of range", text)
		}
		return token{kind: tokFloat, pos: start, text: text, f: f}, nil
	}

	i, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return token{}, ruleErrors.NewParseError(ruleErrors.KindInvalidLiteral, start, l.input,
			"integer %s is out of range", text).WithSuggestion("Write it as a float, e.g. " + text + ".0")
	}
	return token{kind: tokInt, pos: start, text: text, i: i}, nil
}

func (l *lexer) digits() int {
	start := l.pos
	for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
		l.pos++
	}
	return l.pos - start
}

func (l *lexer) invalidNumber(start int) *ruleErrors.ParseError {
	end := l.pos
	for end < len(l.input) && (isIdentPart(l.input[end]) || l.input[end] == '+' || l.input[end] == '-') {
		end++
	}
	return ruleErrors.NewParseError(ruleErrors.KindInvalidLiteral, start, l.input,
		"malformed number '%s'", l.input[start:end])
}

// scanString scans a single or double quoted string. Supported escapes are
// \\, \', \", \n and \t.
func (l *lexer) scanString() (token, *ruleErrors.ParseError) {
	start := l.pos
	quote := l.input[l.pos]
	l.pos++

	var sb strings.Builder
	for l.pos < len(l.input) {
		c := l.input[l.pos]
		switch c {
		case quote:
			l.pos++
			str := sb.String()
			if !utf8.ValidString(str) {
				return token{}, ruleErrors.NewParseError(ruleErrors.KindInvalidLiteral, start, l.input,
					"string is not valid UTF-8")
			}
			return token{kind: tokString, pos: start, text: l.input[start:l.pos], str: str}, nil
		case '\\':
			if l.pos+1 >= len(l.input) {
				l.pos++
				continue
			}
			switch esc := l.input[l.pos+1]; esc {
			case '\\', '\'', '"':
				sb.WriteByte(esc)
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			default:
				return token{}, ruleErrors.NewParseError(ruleErrors.KindInvalidLiteral, l.pos, l.input,
					"unknown escape sequence '\\%c'", esc)
			}
			l.pos += 2
		default:
			sb.WriteByte(c)
			l.pos++
		}
	}

	return token{}, ruleErrors.NewParseError(ruleErrors.KindInvalidLiteral, start, l.input,
		"unterminated string").WithSuggestion(fmt.Sprintf("Close the string with %c", quote))
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c) || c == '.'
}
