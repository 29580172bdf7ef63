// Package query implements Boolean query parsing and compilation for
// literature search. Raw query strings are parsed into an abstract
// syntax tree of atoms and operators, which can then be compiled into
// executable index queries or walked by analysis tooling.
package query

import (
	"strings"
)

// Node is a node in a parsed Boolean query tree. A tree is either a
// single AtomNode or an OperatorNode whose children are themselves
// trees.
type Node interface {
	// Format renders the node back into parseable query syntax.
	Format() string
	// Equal reports structural equality with another node.
	Equal(other Node) bool
}

// Field restricts an atom to one index field alias, optionally
// carrying a field option such as ":noexp".
type Field struct {
	Name   string
	Option string
}

// String renders the field the way it appears inside brackets.
func (f Field) String() string {
	return f.Name + f.Option
}

// NoExplode reports whether the field carries the noexp option,
// which suppresses subsumption expansion for heading atoms.
func (f Field) NoExplode() bool {
	return f.Option == ":noexp"
}

// AtomNode is a leaf of the query tree: a single searchable unit
// restricted to a field. Query holds the unit in raw query syntax so
// the node round-trips through Format and reparsing.
type AtomNode struct {
	Query string
	Field Field
}

// Format renders the atom as query[field].
func (a *AtomNode) Format() string {
	return a.Query + "[" + a.Field.String() + "]"
}

// Equal reports whether other is an atom with the same query string
// and field restriction.
func (a *AtomNode) Equal(other Node) bool {
	b, ok := other.(*AtomNode)
	if !ok {
		return false
	}
	return a.Query == b.Query && a.Field == b.Field
}

// String implements fmt.Stringer for logging.
func (a *AtomNode) String() string { return a.Format() }

// OperatorNode is an inner node combining two or more children with a
// Boolean operator. Operator is stored upper-case; NOT nodes always
// have exactly two children.
type OperatorNode struct {
	Operator string
	Children []Node
}

// Format renders the subtree as (child1 OP child2 ...).
func (o *OperatorNode) Format() string {
	parts := make([]string, len(o.Children))
	for i, c := range o.Children {
		parts[i] = c.Format()
	}
	return "(" + strings.Join(parts, " "+o.Operator+" ") + ")"
}

// Equal reports whether other has the same operator and pairwise
// equal children in the same order.
func (o *OperatorNode) Equal(other Node) bool {
	b, ok := other.(*OperatorNode)
	if !ok {
		return false
	}
	if o.Operator != b.Operator || len(o.Children) != len(b.Children) {
		return false
	}
	for i, c := range o.Children {
		if !c.Equal(b.Children[i]) {
			return false
		}
	}
	return true
}

// String implements fmt.Stringer for logging.
func (o *OperatorNode) String() string { return o.Format() }

// WithOperator returns a copy of the node with the operator label
// replaced, leaving the children shared. Used to annotate trees with
// per-node threshold decisions without mutating the original.
func (o *OperatorNode) WithOperator(op string) *OperatorNode {
	children := make([]Node, len(o.Children))
	copy(children, o.Children)
	return &OperatorNode{Operator: op, Children: children}
}

// BaseOperator strips an @theta annotation from an operator label, so
// "AND@0.95" and "AND" both map to "AND".
func BaseOperator(op string) string {
	if i := strings.IndexByte(op, '@'); i >= 0 {
		return op[:i]
	}
	return op
}

// Walk visits every node of the tree in depth-first pre-order. If fn
// returns false the subtree below the current node is skipped.
func Walk(node Node, fn func(Node) bool) {
	if !fn(node) {
		return
	}
	if op, ok := node.(*OperatorNode); ok {
		for _, c := range op.Children {
			Walk(c, fn)
		}
	}
}
