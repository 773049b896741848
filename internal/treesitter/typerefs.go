package treesitter

import (
	"unicode"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
)

// TypeRefPredicate decides whether a node denotes a type reference.
// Predicates are pluggable so grammars without explicit type-identifier
// kinds can still be covered by a heuristic.
type TypeRefPredicate func(n *sitter.Node, src []byte) bool

// TypeRef is the default predicate: explicitly tagged type-identifier
// nodes, or identifiers under a parse-error node whose first character
// is upper-case. The heuristic intentionally overshoots; unresolvable
// candidates are filtered out by empty resolver responses downstream.
func (l *Language) TypeRef(n *sitter.Node, src []byte) bool {
	if l.kinds.typeIdents[n.Type()] {
		return true
	}
	if n.Type() != "identifier" {
		return false
	}
	parent := n.Parent()
	if parent == nil || parent.Type() != "ERROR" {
		return false
	}
	r, _ := utf8.DecodeRuneInString(n.Content(src))
	return unicode.IsUpper(r)
}

// TypeIdentifiers walks the tree pre-order (each node before its
// children) and returns every node matching pred, in document order.
func TypeIdentifiers(root *sitter.Node, src []byte, pred TypeRefPredicate) []*sitter.Node {
	var matches []*sitter.Node
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if pred(n, src) {
			matches = append(matches, n)
		}
		count := int(n.ChildCount())
		for i := 0; i < count; i++ {
			walk(n.Child(i))
		}
	}
	if root != nil {
		walk(root)
	}
	return matches
}
