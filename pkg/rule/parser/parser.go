package parser

import (
	"mercator-hq/ruleengine/pkg/rule/ast"
	"mercator-hq/ruleengine/pkg/rule/codec"
	ruleErrors "mercator-hq/ruleengine/pkg/rule/errors"
)

const (
	// DefaultMaxDepth bounds parenthesis/NOT nesting.
	DefaultMaxDepth = 128

	// MaxTreeDepth bounds the depth of the resulting tree, including flat
	// AND/OR chains, to what the codec can store.
	MaxTreeDepth = codec.MaxDepth

	// DefaultMaxLength bounds the rule text length in bytes.
	DefaultMaxLength = 64 * 1024
)

// Parser compiles rule text into predicate trees.
// A Parser holds configuration only and is safe for concurrent use.
type Parser struct {
	maxDepth  int // Maximum parenthesis/NOT nesting (default: 128)
	maxLength int // Maximum rule text length in bytes (default: 64KiB)
}

// NewParser creates a new parser with default limits.
func NewParser() *Parser {
	return &Parser{
		maxDepth:  DefaultMaxDepth,
		maxLength: DefaultMaxLength,
	}
}

// WithMaxDepth sets the maximum parenthesis/NOT nesting. Values < 1 disable
// the limit; the tree depth stays capped at MaxTreeDepth.
func (p *Parser) WithMaxDepth(depth int) *Parser {
	p.maxDepth = depth
	return p
}

// WithMaxLength sets the maximum rule text length. Values < 1 disable the limit.
func (p *Parser) WithMaxLength(length int) *Parser {
	p.maxLength = length
	return p
}

// MaxDepth returns the configured depth limit.
func (p *Parser) MaxDepth() int {
	return p.maxDepth
}

// Parse compiles rule text with the default limits.
func Parse(text string) (*ast.Node, error) {
	return NewParser().Parse(text)
}

// Parse compiles rule text into a tree. The grammar, from lowest to highest
// precedence:
//
//	expr      := andExpr ( OR andExpr )*
//	andExpr   := unary ( AND unary )*
//	unary     := NOT unary | primary
//	primary   := '(' expr ')' | field comparator literal
//
// AND and OR are left associative, so "a OR b OR c" yields OR(OR(a, b), c).
// On failure the returned error is a *errors.ParseError.
func (p *Parser) Parse(text string) (*ast.Node, error) {
	if p.maxLength > 0 && len(text) > p.maxLength {
		return nil, ruleErrors.NewParseError(ruleErrors.KindTooLong, p.maxLength, text,
			"rule is %d bytes, limit is %d", len(text), p.maxLength)
	}

	s := &state{
		parser: p,
		input:  text,
		lex:    newLexer(text),
	}
	if err := s.advance(); err != nil {
		return nil, err
	}

	root, err := s.parseExpr()
	if err != nil {
		return nil, err
	}

	switch s.tok.kind {
	case tokEOF:
		return root.node, nil
	case tokRParen:
		return nil, s.errorf(ruleErrors.KindUnmatchedParen, s.tok.pos, "unmatched ')'")
	default:
		pe := s.errorf(ruleErrors.KindUnexpectedToken, s.tok.pos, "expected AND, OR or end of rule, got %s", s.tok.describe())
		if s.tok.kind == tokIdent {
			pe.WithSuggestion(ruleErrors.SuggestKeyword(s.tok.text))
		}
		return nil, pe
	}
}

// subtree is a parsed node together with its depth, so depth limits are
// enforced while building instead of with a second pass.
type subtree struct {
	node  *ast.Node
	depth int
}

// state is the per-call parsing state.
type state struct {
	parser  *Parser
	input   string
	lex     *lexer
	tok     token
	nesting int // open parentheses and NOTs on the current path
	parens  int // open parentheses on the current path
}

func (s *state) advance() *ruleErrors.ParseError {
	tok, err := s.lex.next()
	if err != nil {
		return err
	}
	s.tok = tok
	return nil
}

func (s *state) errorf(kind ruleErrors.ParseErrorKind, pos int, format string, args ...any) *ruleErrors.ParseError {
	return ruleErrors.NewParseError(kind, pos, s.input, format, args...)
}

func (s *state) parseExpr() (subtree, *ruleErrors.ParseError) {
	left, err := s.parseAnd()
	if err != nil {
		return subtree{}, err
	}

	for s.tok.kind == tokOr {
		opPos := s.tok.pos
		if err := s.advance(); err != nil {
			return subtree{}, err
		}
		right, err := s.parseAnd()
		if err != nil {
			return subtree{}, err
		}
		if left, err = s.combine(ast.OpOr, opPos, left, right); err != nil {
			return subtree{}, err
		}
	}

	return left, nil
}

func (s *state) parseAnd() (subtree, *ruleErrors.ParseError) {
	left, err := s.parseUnary()
	if err != nil {
		return subtree{}, err
	}

	for s.tok.kind == tokAnd {
		opPos := s.tok.pos
		if err := s.advance(); err != nil {
			return subtree{}, err
		}
		right, err := s.parseUnary()
		if err != nil {
			return subtree{}, err
		}
		if left, err = s.combine(ast.OpAnd, opPos, left, right); err != nil {
			return subtree{}, err
		}
	}

	return left, nil
}

func (s *state) parseUnary() (subtree, *ruleErrors.ParseError) {
	if s.tok.kind != tokNot {
		return s.parsePrimary()
	}

	notPos := s.tok.pos
	if err := s.enter(notPos); err != nil {
		return subtree{}, err
	}
	defer s.leave()

	if err := s.advance(); err != nil {
		return subtree{}, err
	}
	child, err := s.parseUnary()
	if err != nil {
		return subtree{}, err
	}
	return s.combine(ast.OpNot, notPos, child)
}

func (s *state) parsePrimary() (subtree, *ruleErrors.ParseError) {
	switch s.tok.kind {
	case tokLParen:
		return s.parseGroup()
	case tokIdent:
		return s.parseCondition()
	case tokEOF, tokAnd, tokOr:
		return subtree{}, s.errorf(ruleErrors.KindMissingOperand, s.tok.pos, "expected a condition, got %s", s.tok.describe())
	case tokRParen:
		if s.parens == 0 {
			return subtree{}, s.errorf(ruleErrors.KindUnmatchedParen, s.tok.pos, "unmatched ')'")
		}
		return subtree{}, s.errorf(ruleErrors.KindMissingOperand, s.tok.pos, "expected a condition before ')'")
	}
	return subtree{}, s.errorf(ruleErrors.KindUnexpectedToken, s.tok.pos, "expected a field name, got %s", s.tok.describe())
}

func (s *state) parseGroup() (subtree, *ruleErrors.ParseError) {
	openPos := s.tok.pos
	if err := s.enter(openPos); err != nil {
		return subtree{}, err
	}
	s.parens++
	defer func() {
		s.parens--
		s.leave()
	}()

	if err := s.advance(); err != nil {
		return subtree{}, err
	}
	inner, err := s.parseExpr()
	if err != nil {
		return subtree{}, err
	}

	switch s.tok.kind {
	case tokRParen:
	case tokEOF:
		return subtree{}, s.errorf(ruleErrors.KindUnmatchedParen, openPos, "unclosed '('")
	default:
		pe := s.errorf(ruleErrors.KindUnexpectedToken, s.tok.pos, "expected AND, OR or ')', got %s", s.tok.describe())
		if s.tok.kind == tokIdent {
			pe.WithSuggestion(ruleErrors.SuggestKeyword(s.tok.text))
		}
		return subtree{}, pe
	}

	if err := s.advance(); err != nil {
		return subtree{}, err
	}
	return inner, nil
}

// parseCondition parses field comparator literal.
func (s *state) parseCondition() (subtree, *ruleErrors.ParseError) {
	field := s.tok
	if err := s.advance(); err != nil {
		return subtree{}, err
	}

	if s.tok.kind != tokCmp {
		pe := s.errorf(ruleErrors.KindUnexpectedToken, s.tok.pos, "expected a comparator after '%s', got %s", field.text, s.tok.describe())
		return subtree{}, pe.WithSuggestion(ruleErrors.SuggestComparator(""))
	}
	cmp := s.tok
	if err := s.advance(); err != nil {
		return subtree{}, err
	}

	var value ast.Value
	switch s.tok.kind {
	case tokInt:
		value = ast.IntValue(s.tok.i)
	case tokFloat:
		value = ast.FloatValue(s.tok.f)
	case tokString:
		value = ast.StringValue(s.tok.str)
	case tokTrue:
		value = ast.BoolValue(true)
	case tokFalse:
		value = ast.BoolValue(false)
	case tokEOF, tokAnd, tokOr, tokRParen:
		return subtree{}, s.errorf(ruleErrors.KindMissingOperand, s.tok.pos, "expected a literal after '%s', got %s", cmp.text, s.tok.describe())
	case tokIdent:
		pe := s.errorf(ruleErrors.KindUnexpectedToken, s.tok.pos, "expected a literal after '%s', got field name '%s'", cmp.text, s.tok.text)
		return subtree{}, pe.WithSuggestion("Quote string literals, e.g. '" + s.tok.text + "'")
	default:
		return subtree{}, s.errorf(ruleErrors.KindUnexpectedToken, s.tok.pos, "expected a literal after '%s', got %s", cmp.text, s.tok.describe())
	}

	node, err := ast.NewOperand(field.text, ast.Comparator(cmp.text), value)
	if err != nil {
		return subtree{}, s.errorf(ruleErrors.KindInvalidLiteral, s.tok.pos, "%v", err)
	}
	if err := s.advance(); err != nil {
		return subtree{}, err
	}
	return subtree{node: node, depth: 1}, nil
}

// combine builds an operator node, enforcing MaxTreeDepth.
func (s *state) combine(op ast.Op, pos int, children ...subtree) (subtree, *ruleErrors.ParseError) {
	depth := 0
	nodes := make([]*ast.Node, len(children))
	for i, c := range children {
		nodes[i] = c.node
		depth = max(depth, c.depth)
	}
	depth++

	if depth > MaxTreeDepth {
		return subtree{}, s.errorf(ruleErrors.KindTooDeep, pos,
			"rule tree is deeper than %d levels; split long AND/OR chains into separate rules", MaxTreeDepth)
	}

	node, err := ast.NewOperator(op, nodes...)
	if err != nil {
		return subtree{}, s.errorf(ruleErrors.KindMissingOperand, pos, "%v", err)
	}
	return subtree{node: node, depth: depth}, nil
}

// enter tracks recursion through '(' and NOT.
func (s *state) enter(pos int) *ruleErrors.ParseError {
	s.nesting++
	if limit := s.parser.maxDepth; limit > 0 && s.nesting > limit {
		return s.errorf(ruleErrors.KindTooDeep, pos, "rule is nested deeper than %d levels", limit)
	}
	return nil
}

func (s *state) leave() {
	s.nesting--
}
