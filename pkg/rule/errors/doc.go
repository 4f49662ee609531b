// Package errors provides the structured errors reported while compiling
// rule text and rule bundles.
//
// ParseError describes why a single rule expression was rejected: a kind from
// a fixed set, the byte offset of the offending character and, when one is
// available, a suggestion. ParseError.Context renders the rule text with a
// caret under the offset:
//
//	age > 30 AND department = 'Sales'
//	                        ^
//
// Error and ErrorList collect problems found in rule bundle files, where
// reporting every problem at once is more useful than stopping at the first.
package errors
