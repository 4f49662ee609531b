// Package parser compiles textual rules into predicate trees.
//
// Rules compare record fields against typed literals and combine the
// comparisons with NOT, AND and OR, in decreasing order of precedence:
//
//	age > 30 AND department == 'Sales'
//	(a > 1 OR b > 2) AND NOT c == 3
//	salary >= 50000.0 OR experience > 5
//
// Literals are integers (30, -4), floats (1.5, 2e3), single or double quoted
// strings and the booleans true and false. Keywords are case-insensitive.
//
// # Basic Usage
//
//	rule, err := parser.Parse("age > 30 AND department == 'Sales'")
//	if err != nil {
//	    var pe *errors.ParseError
//	    if stderrors.As(err, &pe) {
//	        fmt.Print(pe.Detailed())
//	    }
//	}
//
// # Limits
//
// Rules produced by tools can be large. NewParser applies DefaultMaxLength to
// the rule text and DefaultMaxDepth to both parenthesis/NOT nesting and the
// depth of the resulting tree; both are configurable:
//
//	p := parser.NewParser().WithMaxDepth(64).WithMaxLength(4096)
package parser
