package ast

import (
	"errors"
	"fmt"
	"strings"
)

// NodeKind distinguishes operator nodes from operand nodes.
type NodeKind string

const (
	KindOperator NodeKind = "operator" // AND, OR, NOT over child nodes
	KindOperand  NodeKind = "operand"  // field comparator literal
)

// Op is a logical operator.
type Op string

const (
	OpAnd Op = "AND"
	OpOr  Op = "OR"
	OpNot Op = "NOT"
)

// Arity returns the number of children an operator node of this kind has,
// or 0 for an unknown operator.
func (o Op) Arity() int {
	switch o {
	case OpAnd, OpOr:
		return 2
	case OpNot:
		return 1
	}
	return 0
}

// IsValid returns true for AND, OR and NOT.
func (o Op) IsValid() bool {
	return o.Arity() > 0
}

// Comparator is the comparison applied by an operand node.
type Comparator string

const (
	CmpGreater      Comparator = ">"
	CmpLess         Comparator = "<"
	CmpGreaterEqual Comparator = ">="
	CmpLessEqual    Comparator = "<="
	CmpEqual        Comparator = "=="
	CmpNotEqual     Comparator = "!="
)

// Comparators lists every comparator in a stable order.
var Comparators = []Comparator{CmpGreater, CmpLess, CmpGreaterEqual, CmpLessEqual, CmpEqual, CmpNotEqual}

// IsValid returns true if c is one of the six supported comparators.
func (c Comparator) IsValid() bool {
	for _, known := range Comparators {
		if c == known {
			return true
		}
	}
	return false
}

// IsOrdering returns true for >, <, >= and <=, which only apply to numbers.
func (c Comparator) IsOrdering() bool {
	switch c {
	case CmpGreater, CmpLess, CmpGreaterEqual, CmpLessEqual:
		return true
	}
	return false
}

// Construction errors. NewOperator and NewOperand wrap one of these.
var (
	ErrUnknownOperator   = errors.New("unknown operator")
	ErrUnknownComparator = errors.New("unknown comparator")
	ErrArity             = errors.New("operator arity mismatch")
	ErrInvalidField      = errors.New("invalid field name")
	ErrInvalidValue      = errors.New("invalid literal value")
)

// Node is a node of a rule tree. It is either an operator with one or two
// children or an operand with a field, a comparator and a literal.
type Node struct {
	kind  NodeKind
	op    Op
	left  *Node
	right *Node
	field string
	cmp   Comparator
	value Value
}

// NewOperator builds an operator node. AND and OR take exactly two children,
// NOT exactly one. Children are referenced, not copied.
func NewOperator(op Op, children ...*Node) (*Node, error) {
	if !op.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOperator, string(op))
	}
	if len(children) != op.Arity() {
		return nil, fmt.Errorf("%w: %s takes %d operand(s), got %d", ErrArity, op, op.Arity(), len(children))
	}
	for i, child := range children {
		if child == nil {
			return nil, fmt.Errorf("%w: %s operand %d is nil", ErrArity, op, i+1)
		}
	}

	n := &Node{kind: KindOperator, op: op, left: children[0]}
	if op.Arity() == 2 {
		n.right = children[1]
	}
	return n, nil
}

// NewOperand builds a comparison of a record field against a literal.
func NewOperand(field string, cmp Comparator, value Value) (*Node, error) {
	if !IsValidField(field) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidField, field)
	}
	if !cmp.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownComparator, string(cmp))
	}
	if !value.IsValid() {
		return nil, fmt.Errorf("%w: missing type", ErrInvalidValue)
	}
	if value.Type() == ValueTypeFloat && !isFinite(value.f) {
		return nil, fmt.Errorf("%w: %v is not a finite number", ErrInvalidValue, value.f)
	}
	return &Node{kind: KindOperand, field: field, cmp: cmp, value: value}, nil
}

// And returns AND(left, right). It panics on nil children.
func And(left, right *Node) *Node { return must(NewOperator(OpAnd, left, right)) }

// Or returns OR(left, right). It panics on nil children.
func Or(left, right *Node) *Node { return must(NewOperator(OpOr, left, right)) }

// Not returns NOT(child). It panics on a nil child.
func Not(child *Node) *Node { return must(NewOperator(OpNot, child)) }

// Condition returns an operand node. It panics if the operand is invalid.
func Condition(field string, cmp Comparator, value Value) *Node {
	return must(NewOperand(field, cmp, value))
}

func must(n *Node, err error) *Node {
	if err != nil {
		panic(err)
	}
	return n
}

// Kind returns KindOperator or KindOperand.
func (n *Node) Kind() NodeKind { return n.kind }

// IsOperator returns true if n is an AND, OR or NOT node.
func (n *Node) IsOperator() bool { return n.kind == KindOperator }

// IsOperand returns true if n is a field comparison.
func (n *Node) IsOperand() bool { return n.kind == KindOperand }

// Op returns the operator, or "" for operands.
func (n *Node) Op() Op { return n.op }

// Left returns the first child of an operator node, nil for operands.
func (n *Node) Left() *Node { return n.left }

// Right returns the second child of an AND/OR node, nil otherwise.
func (n *Node) Right() *Node { return n.right }

// Children returns the children of an operator node in order.
func (n *Node) Children() []*Node {
	switch {
	case n.kind != KindOperator:
		return nil
	case n.right == nil:
		return []*Node{n.left}
	default:
		return []*Node{n.left, n.right}
	}
}

// Field returns the record field an operand compares, "" for operators.
func (n *Node) Field() string { return n.field }

// Comparator returns the operand comparator, "" for operators.
func (n *Node) Comparator() Comparator { return n.cmp }

// Value returns the operand literal, the zero Value for operators.
func (n *Node) Value() Value { return n.value }

// String renders the tree as rule text. For trees no deeper than the parser
// accepts (256 levels), the output parses back into a tree that is Equal to
// n; parentheses are only emitted where precedence or left
// association would otherwise change the shape.
func (n *Node) String() string {
	if n == nil {
		return "<nil>"
	}
	var sb strings.Builder
	n.format(&sb)
	return sb.String()
}

func (n *Node) format(sb *strings.Builder) {
	if n.kind == KindOperand {
		sb.WriteString(n.field)
		sb.WriteByte(' ')
		sb.WriteString(string(n.cmp))
		sb.WriteByte(' ')
		sb.WriteString(n.value.String())
		return
	}

	switch n.op {
	case OpNot:
		sb.WriteString("NOT ")
		writeGrouped(sb, n.left, n.left.isBinary())
	case OpAnd:
		writeGrouped(sb, n.left, n.left.isOp(OpOr))
		sb.WriteString(" AND ")
		writeGrouped(sb, n.right, n.right.isBinary())
	case OpOr:
		n.left.format(sb)
		sb.WriteString(" OR ")
		writeGrouped(sb, n.right, n.right.isOp(OpOr))
	}
}

func writeGrouped(sb *strings.Builder, n *Node, paren bool) {
	if paren {
		sb.WriteByte('(')
	}
	n.format(sb)
	if paren {
		sb.WriteByte(')')
	}
}

func (n *Node) isOp(op Op) bool {
	return n.kind == KindOperator && n.op == op
}

func (n *Node) isBinary() bool {
	return n.isOp(OpAnd) || n.isOp(OpOr)
}

// IsValidField reports whether name can be used as an operand field:
// a letter or underscore followed by letters, digits, underscores or dots,
// and not one of the reserved words AND, OR, NOT, true, false.
func IsValidField(name string) bool {
	if name == "" || IsReserved(name) {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z'):
		case i > 0 && ((c >= '0' && c <= '9') || c == '.'):
		default:
			return false
		}
	}
	return true
}

// IsReserved reports whether word is a keyword of the rule language.
// Keywords are case-insensitive.
func IsReserved(word string) bool {
	switch strings.ToUpper(word) {
	case "AND", "OR", "NOT", "TRUE", "FALSE":
		return true
	}
	return false
}
