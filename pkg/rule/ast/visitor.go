package ast

// Visitor is called for each node reached by Walk.
// Returning an error stops the traversal.
type Visitor interface {
	VisitOperator(*Node) error
	VisitOperand(*Node) error
}

// Walk traverses the tree rooted at n in pre-order (node, left, right) and
// calls the visitor for each node. It returns the first error encountered.
// A subtree shared by several parents is visited once per reference.
func Walk(n *Node, visitor Visitor) error {
	var err error
	Inspect(n, func(node *Node) bool {
		if node.IsOperand() {
			err = visitor.VisitOperand(node)
		} else {
			err = visitor.VisitOperator(node)
		}
		return err == nil
	})
	return err
}

// Inspect traverses the tree in pre-order and calls fn for each node until
// fn returns false. The traversal uses an explicit stack, so arbitrarily deep
// trees (long combinations of rules) do not grow the goroutine stack.
func Inspect(n *Node, fn func(*Node) bool) {
	if n == nil {
		return
	}
	stack := []*Node{n}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(node) {
			return
		}
		if node.right != nil {
			stack = append(stack, node.right)
		}
		if node.left != nil {
			stack = append(stack, node.left)
		}
	}
}

// Depth returns the number of levels of the tree; an operand alone is 1.
func Depth(n *Node) int {
	if n == nil {
		return 0
	}
	type frame struct {
		node  *Node
		level int
	}
	deepest := 0
	stack := []frame{{n, 1}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if f.level > deepest {
			deepest = f.level
		}
		if f.node.right != nil {
			stack = append(stack, frame{f.node.right, f.level + 1})
		}
		if f.node.left != nil {
			stack = append(stack, frame{f.node.left, f.level + 1})
		}
	}
	return deepest
}

// Count returns the number of nodes in the tree.
func Count(n *Node) int {
	count := 0
	Inspect(n, func(*Node) bool {
		count++
		return true
	})
	return count
}

// Fields returns the distinct field names referenced by the tree in the
// order they first appear (left to right).
func Fields(n *Node) []string {
	seen := make(map[string]bool)
	var fields []string
	Inspect(n, func(node *Node) bool {
		if node.IsOperand() && !seen[node.field] {
			seen[node.field] = true
			fields = append(fields, node.field)
		}
		return true
	})
	return fields
}

// Equal reports whether two trees have the same shape, operators, fields,
// comparators and literals. Node identity is irrelevant.
func Equal(a, b *Node) bool {
	type pair struct{ a, b *Node }
	stack := []pair{{a, b}}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if p.a == p.b {
			continue
		}
		if p.a == nil || p.b == nil || p.a.kind != p.b.kind {
			return false
		}
		if p.a.kind == KindOperand {
			if p.a.field != p.b.field || p.a.cmp != p.b.cmp || !p.a.value.Equal(p.b.value) {
				return false
			}
			continue
		}
		if p.a.op != p.b.op {
			return false
		}
		stack = append(stack, pair{p.a.left, p.b.left}, pair{p.a.right, p.b.right})
	}
	return true
}
