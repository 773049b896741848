// Package treesitter provides tree-sitter based parsing for the context
// crawler: language detection, ancestor-path lookup at a cursor offset,
// and type-reference extraction.
package treesitter

import (
	"context"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// Language describes a supported source language: its grammar, LSP
// language ID, line-comment prefix, and node-kind tables.
type Language struct {
	ID      string
	Comment string // line comment prefix, e.g. "//" or "#"

	grammar *sitter.Language
	kinds   kindTable
}

var languages = map[string]*Language{
	".go": {
		ID:      "go",
		Comment: "//",
		grammar: golang.GetLanguage(),
		kinds:   goKinds,
	},
	".js": {
		ID:      "javascript",
		Comment: "//",
		grammar: javascript.GetLanguage(),
		kinds:   jsKinds,
	},
	".jsx": {
		ID:      "javascriptreact",
		Comment: "//",
		grammar: javascript.GetLanguage(),
		kinds:   jsKinds,
	},
	".ts": {
		ID:      "typescript",
		Comment: "//",
		grammar: typescript.GetLanguage(),
		kinds:   tsKinds,
	},
	".tsx": {
		ID:      "typescriptreact",
		Comment: "//",
		grammar: tsx.GetLanguage(),
		kinds:   tsKinds,
	},
	".py": {
		ID:      "python",
		Comment: "#",
		grammar: python.GetLanguage(),
		kinds:   pyKinds,
	},
}

// LanguageForPath returns the language for a file extension, or nil.
func LanguageForPath(path string) *Language {
	return languages[strings.ToLower(filepath.Ext(path))]
}

// Supported returns true if the file extension has a tree-sitter grammar.
func Supported(path string) bool {
	return LanguageForPath(path) != nil
}

// Parse parses source bytes into a syntax tree. The caller owns the
// returned tree and must Close it.
func Parse(ctx context.Context, lang *Language, src []byte) (*sitter.Tree, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(lang.grammar)
	return parser.ParseCtx(ctx, nil, src)
}

// AncestorPath returns the nodes from the root down to the innermost
// node covering the byte offset, in root-to-leaf order. Returns nil if
// the offset falls outside the tree.
func AncestorPath(tree *sitter.Tree, offset uint32) []*sitter.Node {
	root := tree.RootNode()
	if root == nil {
		return nil
	}
	// A cursor at end-of-file still belongs to the last node.
	if offset > root.EndByte() {
		return nil
	}
	if offset == root.EndByte() && offset > 0 {
		offset--
	}

	var path []*sitter.Node
	node := root
	for node != nil {
		path = append(path, node)
		node = childAt(node, offset)
	}
	return path
}

// childAt returns the child of n whose span covers the offset, or nil.
func childAt(n *sitter.Node, offset uint32) *sitter.Node {
	count := int(n.ChildCount())
	for i := 0; i < count; i++ {
		child := n.Child(i)
		if child.StartByte() <= offset && offset < child.EndByte() {
			return child
		}
	}
	return nil
}
