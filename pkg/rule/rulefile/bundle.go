package rulefile

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"mercator-hq/ruleengine/pkg/rule/ast"
	ruleErrors "mercator-hq/ruleengine/pkg/rule/errors"
	"mercator-hq/ruleengine/pkg/rule/eval"
	"mercator-hq/ruleengine/pkg/rule/parser"
)

// Expected evaluation failures a test case can name.
const (
	ExpectMissingField = "missing_field"
	ExpectTypeMismatch = "type_mismatch"
)

// Bundle is a parsed rule file.
type Bundle struct {
	Source string
	Rules  []*Rule
	Tests  []*TestCase

	byName map[string]*Rule
}

// Rule returns the rule with the given name.
func (b *Bundle) Rule(name string) (*Rule, bool) {
	r, ok := b.byName[name]
	return r, ok
}

// Names returns the rule names in file order.
func (b *Bundle) Names() []string {
	names := make([]string, len(b.Rules))
	for i, r := range b.Rules {
		names[i] = r.Name
	}
	return names
}

// Rule is a named rule with its parsed tree.
type Rule struct {
	Name        string
	Description string
	Expression  string
	Enabled     bool
	Tree        *ast.Node
	Location    ruleErrors.Location
}

// TestCase evaluates one rule, or the conjunction of several, against a record.
type TestCase struct {
	Name        string
	Rules       []string // One name, or the names to combine
	Context     eval.Context
	Expect      bool
	ExpectError string // ExpectMissingField or ExpectTypeMismatch; Expect is ignored when set
	Location    ruleErrors.Location
}

// Loader reads bundles.
type Loader struct {
	parser      *parser.Parser
	maxFileSize int64
}

// NewLoader creates a loader with the default parser limits and a 10MB file limit.
func NewLoader() *Loader {
	return &Loader{
		parser:      parser.NewParser(),
		maxFileSize: 10 * 1024 * 1024,
	}
}

// WithParser sets the parser used for rule expressions.
func (l *Loader) WithParser(p *parser.Parser) *Loader {
	l.parser = p
	return l
}

// WithMaxFileSize sets the maximum bundle size in bytes.
func (l *Loader) WithMaxFileSize(size int64) *Loader {
	l.maxFileSize = size
	return l
}

// Parse loads a bundle from memory with the default loader.
func Parse(data []byte, source string) (*Bundle, error) {
	return NewLoader().LoadBytes(data, source)
}

// ParseFile loads a bundle file with the default loader.
func ParseFile(path string) (*Bundle, error) {
	return NewLoader().Load(path)
}

// Load reads and parses the bundle at path.
func (l *Loader) Load(path string) (*Bundle, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &ruleErrors.Error{
			Type:     ruleErrors.ErrorTypeIO,
			Message:  fmt.Sprintf("failed to access file: %v", err),
			Location: ruleErrors.Location{File: path},
			Cause:    err,
		}
	}
	if info.Size() > l.maxFileSize {
		return nil, &ruleErrors.Error{
			Type:     ruleErrors.ErrorTypeIO,
			Message:  fmt.Sprintf("file size %d exceeds maximum %d bytes", info.Size(), l.maxFileSize),
			Location: ruleErrors.Location{File: path},
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ruleErrors.Error{
			Type:     ruleErrors.ErrorTypeIO,
			Message:  fmt.Sprintf("failed to read file: %v", err),
			Location: ruleErrors.Location{File: path},
			Cause:    err,
		}
	}
	return l.LoadBytes(data, path)
}

// LoadBytes parses a bundle from memory. source names it in error locations.
// All problems are reported together in an *errors.ErrorList.
func (l *Loader) LoadBytes(data []byte, source string) (*Bundle, error) {
	if int64(len(data)) > l.maxFileSize {
		return nil, &ruleErrors.Error{
			Type:     ruleErrors.ErrorTypeIO,
			Message:  fmt.Sprintf("data size %d exceeds maximum %d bytes", len(data), l.maxFileSize),
			Location: ruleErrors.Location{File: source},
		}
	}

	var raw yamlBundle
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ruleErrors.Error{
			Type:       ruleErrors.ErrorTypeSyntax,
			Message:    fmt.Sprintf("YAML parsing failed: %v", err),
			Location:   ruleErrors.Location{File: source, Line: 1, Column: 1},
			Suggestion: "Check YAML syntax (indentation, colons, quotes)",
			Cause:      err,
		}
	}

	b := &builder{
		parser: l.parser,
		source: source,
		errs:   ruleErrors.NewErrorList(),
	}
	bundle := b.build(&raw)
	if err := b.errs.ToError(); err != nil {
		return nil, err
	}
	return bundle, nil
}

type builder struct {
	parser *parser.Parser
	source string
	errs   *ruleErrors.ErrorList
}

func (b *builder) loc(line, column int) ruleErrors.Location {
	return ruleErrors.Location{File: b.source, Line: line, Column: column}
}

func (b *builder) build(raw *yamlBundle) *Bundle {
	bundle := &Bundle{
		Source: b.source,
		Rules:  make([]*Rule, 0, len(raw.Rules)),
		Tests:  make([]*TestCase, 0, len(raw.Tests)),
		byName: make(map[string]*Rule, len(raw.Rules)),
	}

	if len(raw.Rules) == 0 {
		b.errs.Add(&ruleErrors.Error{
			Type:       ruleErrors.ErrorTypeStructural,
			Message:    "bundle defines no rules",
			Location:   b.loc(1, 1),
			Suggestion: "Add a 'rules' list with at least one rule",
		})
	}

	for i := range raw.Rules {
		if r := b.buildRule(&raw.Rules[i], i); r != nil {
			if prev, dup := bundle.byName[r.Name]; dup {
				b.errs.Add(&ruleErrors.Error{
					Type:     ruleErrors.ErrorTypeSemantic,
					Message:  fmt.Sprintf("duplicate rule name %q (first defined at line %d)", r.Name, prev.Location.Line),
					Location: r.Location,
				})
				continue
			}
			bundle.byName[r.Name] = r
			bundle.Rules = append(bundle.Rules, r)
		}
	}

	// Tests may reference rules that failed to build; those are reported once, above
	declared := make(map[string]bool, len(raw.Rules))
	defined := make([]string, 0, len(raw.Rules))
	for _, r := range raw.Rules {
		if r.Name != "" && !declared[r.Name] {
			declared[r.Name] = true
			defined = append(defined, r.Name)
		}
	}
	for i := range raw.Tests {
		if tc := b.buildTest(&raw.Tests[i], i, declared, defined); tc != nil {
			bundle.Tests = append(bundle.Tests, tc)
		}
	}
	return bundle
}

func (b *builder) buildRule(raw *yamlRule, index int) *Rule {
	loc := b.loc(raw.line, raw.column)
	ok := true

	if raw.Name == "" {
		b.errs.Add(&ruleErrors.Error{
			Type:       ruleErrors.ErrorTypeStructural,
			Message:    fmt.Sprintf("rule %d has no name", index+1),
			Location:   loc,
			Suggestion: "Add a 'name' field",
		})
		ok = false
	} else if !validName(raw.Name) {
		b.errs.Add(&ruleErrors.Error{
			Type:       ruleErrors.ErrorTypeStructural,
			Message:    fmt.Sprintf("invalid rule name %q", raw.Name),
			Location:   loc,
			Suggestion: "Use letters, digits, '-', '_' and '.', starting with a letter or digit",
		})
		ok = false
	}

	if raw.Expression == "" {
		b.errs.Add(&ruleErrors.Error{
			Type:       ruleErrors.ErrorTypeStructural,
			Message:    fmt.Sprintf("rule %q has no expression", raw.Name),
			Location:   loc,
			Suggestion: "Add an 'expression' field, e.g. \"age > 30 AND department == 'Sales'\"",
		})
		return nil
	}

	tree, err := b.parser.Parse(raw.Expression)
	if err != nil {
		if pe, isParse := err.(*ruleErrors.ParseError); isParse {
			b.errs.AddParseError(pe, b.loc(raw.exprLine, raw.exprColumn))
		} else {
			b.errs.AddError(ruleErrors.ErrorTypeSyntax, err.Error(), b.loc(raw.exprLine, raw.exprColumn))
		}
		return nil
	}
	if !ok {
		return nil
	}

	enabled := true
	if raw.Enabled != nil {
		enabled = *raw.Enabled
	}
	return &Rule{
		Name:        raw.Name,
		Description: raw.Description,
		Expression:  raw.Expression,
		Enabled:     enabled,
		Tree:        tree,
		Location:    loc,
	}
}

func (b *builder) buildTest(raw *yamlTest, index int, declared map[string]bool, defined []string) *TestCase {
	loc := b.loc(raw.line, raw.column)
	name := raw.Name
	if name == "" {
		name = fmt.Sprintf("test %d", index+1)
	}
	ok := true

	var refs []string
	switch {
	case raw.Rule != "" && len(raw.Combine) > 0:
		b.errs.Add(&ruleErrors.Error{
			Type:     ruleErrors.ErrorTypeStructural,
			Message:  fmt.Sprintf("%s: set either 'rule' or 'combine', not both", name),
			Location: loc,
		})
		ok = false
	case raw.Rule != "":
		refs = []string{raw.Rule}
	case len(raw.Combine) > 0:
		refs = raw.Combine
	default:
		b.errs.Add(&ruleErrors.Error{
			Type:       ruleErrors.ErrorTypeStructural,
			Message:    fmt.Sprintf("%s: no rule to evaluate", name),
			Location:   loc,
			Suggestion: "Add a 'rule' or 'combine' field",
		})
		ok = false
	}

	for _, ref := range refs {
		if !declared[ref] {
			b.errs.Add(&ruleErrors.Error{
				Type:       ruleErrors.ErrorTypeSemantic,
				Message:    fmt.Sprintf("%s: unknown rule %q", name, ref),
				Location:   loc,
				Suggestion: ruleErrors.SuggestRuleName(ref, defined),
			})
			ok = false
		}
	}

	switch raw.ExpectError {
	case "", ExpectMissingField, ExpectTypeMismatch:
	default:
		b.errs.Add(&ruleErrors.Error{
			Type:       ruleErrors.ErrorTypeStructural,
			Message:    fmt.Sprintf("%s: unknown expect_error %q", name, raw.ExpectError),
			Location:   loc,
			Suggestion: fmt.Sprintf("Use %q or %q", ExpectMissingField, ExpectTypeMismatch),
		})
		ok = false
	}
	if raw.Expect == nil && raw.ExpectError == "" {
		b.errs.Add(&ruleErrors.Error{
			Type:       ruleErrors.ErrorTypeStructural,
			Message:    fmt.Sprintf("%s: no expectation", name),
			Location:   loc,
			Suggestion: "Add 'expect: true|false' or 'expect_error'",
		})
		ok = false
	}

	ctx, err := contextFromNode(&raw.Context)
	if err != nil {
		line, column := raw.line, raw.column
		if raw.Context.Line > 0 {
			line, column = raw.Context.Line, raw.Context.Column
		}
		b.errs.Add(&ruleErrors.Error{
			Type:     ruleErrors.ErrorTypeStructural,
			Message:  fmt.Sprintf("%s: invalid context: %v", name, err),
			Location: b.loc(line, column),
			Cause:    err,
		})
		ok = false
	}

	if !ok {
		return nil
	}
	tc := &TestCase{
		Name:        name,
		Rules:       refs,
		Context:     ctx,
		ExpectError: raw.ExpectError,
		Location:    loc,
	}
	if raw.Expect != nil {
		tc.Expect = *raw.Expect
	}
	return tc
}

// contextFromNode converts a flat YAML mapping of scalars into a Context,
// keeping the int/float distinction the YAML tags carry.
func contextFromNode(node *yaml.Node) (eval.Context, error) {
	if node.Kind == 0 {
		return eval.Context{}, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("context must be a mapping of field names to values")
	}

	ctx := make(eval.Context, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		if _, dup := ctx[key.Value]; dup {
			return nil, fmt.Errorf("duplicate field %q", key.Value)
		}
		if val.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("field %q: only scalar values are supported (line %d)", key.Value, val.Line)
		}

		v, err := scalarValue(val)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w (line %d)", key.Value, err, val.Line)
		}
		ctx[key.Value] = v
	}
	return ctx, nil
}

func scalarValue(node *yaml.Node) (ast.Value, error) {
	switch node.ShortTag() {
	case "!!int":
		var i int64
		if err := node.Decode(&i); err != nil {
			return ast.Value{}, err
		}
		return ast.IntValue(i), nil
	case "!!float":
		var f float64
		if err := node.Decode(&f); err != nil {
			return ast.Value{}, err
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return ast.Value{}, fmt.Errorf("non-finite number %s", node.Value)
		}
		return ast.FloatValue(f), nil
	case "!!bool":
		var v bool
		if err := node.Decode(&v); err != nil {
			return ast.Value{}, err
		}
		return ast.BoolValue(v), nil
	case "!!str":
		return ast.StringValue(node.Value), nil
	case "!!null":
		return ast.Value{}, fmt.Errorf("null values are not supported")
	}
	return ast.Value{}, fmt.Errorf("unsupported value type %s", node.ShortTag())
}

// validName reports whether name is usable as a stored rule name.
func validName(name string) bool {
	if len(name) == 0 || len(name) > 128 {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case (c == '-' || c == '_' || c == '.') && i > 0:
		default:
			return false
		}
	}
	return true
}
