package crawler

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/xonecas/tabctx/internal/treesitter"
)

// maxDefinitionLines is the body size above which a resolved function
// definition is truncated to its signature.
const maxDefinitionLines = 15

// handleNode gathers context for one ancestor node on the cursor path,
// branching on the node's syntactic class. Declarators, implementation
// clauses, and unclassified kinds contribute nothing. Resolver failures
// drop the node's contribution; content-read failures propagate.
func (cr *crawl) handleNode(ctx context.Context, node *sitter.Node, file string, lang *treesitter.Language, src []byte) error {
	switch lang.Classify(node.Type()) {
	case treesitter.ClassCall:
		return cr.handleCall(ctx, node, file, lang)
	case treesitter.ClassConstruction:
		return cr.handleConstruction(ctx, node, file, lang, src)
	default:
		// Declarator and implementation nodes are placeholders for
		// future handling; unknown kinds are an explicit no-op.
		return nil
	}
}

// handleCall resolves the called function's definition, truncates
// oversized bodies to the signature, and crawls the types the
// definition references.
func (cr *crawl) handleCall(ctx context.Context, node *sitter.Node, file string, lang *treesitter.Language) error {
	target := node
	if fn := node.ChildByFieldName("function"); fn != nil {
		target = fn
	}
	// Member calls put the receiver first; descend to the selected name
	// so the query hits the called function, not the receiver.
	for {
		field := lang.SelectorField(target.Type())
		if field == "" {
			break
		}
		sel := target.ChildByFieldName(field)
		if sel == nil {
			break
		}
		target = sel
	}
	pos := Position{Line: int(target.StartPoint().Row), Character: int(target.StartPoint().Column)}

	def, ok := cr.resolveOne(ctx, file, pos)
	if !ok {
		return nil
	}

	r := def.Range
	text, err := cr.c.reader.ReadRange(def.Filepath, r.Start.Line, r.Start.Character, r.End.Line, r.End.Character)
	if err != nil {
		return err
	}

	if lineCount(text) > maxDefinitionLines {
		text = truncateToSignature(ctx, def.Filepath, text)
	}

	entry := LocationWithContents{Location: def, Contents: text}
	cr.insert(entry)
	return cr.crawlTypes(ctx, entry, cr.c.depth)
}

// handleConstruction resolves the constructed type's definition,
// prefixes it with a comment naming the type, and crawls the types the
// definition references.
func (cr *crawl) handleConstruction(ctx context.Context, node *sitter.Node, file string, lang *treesitter.Language, src []byte) error {
	var name string
	pos := Position{Line: int(node.EndPoint().Row), Character: int(node.EndPoint().Column)}
	if tok := firstNameToken(node, lang); tok != nil {
		name = tok.Content(src)
		pos = Position{Line: int(tok.StartPoint().Row), Character: int(tok.StartPoint().Column)}
	}

	def, ok := cr.resolveOne(ctx, file, pos)
	if !ok {
		return nil
	}

	r := def.Range
	text, err := cr.c.reader.ReadRange(def.Filepath, r.Start.Line, r.Start.Character, r.End.Line, r.End.Character)
	if err != nil {
		return err
	}
	if name != "" {
		text = lang.Comment + " " + name + "\n" + text
	}

	entry := LocationWithContents{Location: def, Contents: text}
	cr.insert(entry)
	return cr.crawlTypes(ctx, entry, cr.c.depth)
}

// resolveOne issues a definition query and returns the first target.
// Failures are downgraded to "no definition found".
func (cr *crawl) resolveOne(ctx context.Context, file string, pos Position) (Location, bool) {
	locs, err := cr.c.resolver.Resolve(ctx, file, pos, ResolveDefinition)
	if err != nil {
		log.Warn().Err(err).Str("file", file).Int("line", pos.Line).Msg("crawler: definition query failed")
		return Location{}, false
	}
	if len(locs) == 0 {
		return Location{}, false
	}
	return locs[0], true
}

// firstNameToken returns the first identifier-ish child of node, or nil.
func firstNameToken(node *sitter.Node, lang *treesitter.Language) *sitter.Node {
	count := int(node.ChildCount())
	for i := 0; i < count; i++ {
		child := node.Child(i)
		if lang.IsName(child.Type()) {
			return child
		}
	}
	return nil
}

// truncateToSignature reparses a definition and keeps only the text
// before its body block, trimmed. When no function-shaped node with a
// block is found, the first line of the definition is kept instead.
func truncateToSignature(ctx context.Context, path, text string) string {
	firstLine := text
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		firstLine = text[:i]
	}

	lang := treesitter.LanguageForPath(path)
	if lang == nil {
		return firstLine
	}
	src := []byte(text)
	tree, err := treesitter.Parse(ctx, lang, src)
	if err != nil || tree == nil {
		return firstLine
	}
	defer tree.Close()

	fn := findFirst(tree.RootNode(), lang.IsFunction)
	if fn == nil {
		return firstLine
	}
	block := fn.ChildByFieldName("body")
	if block == nil || !lang.IsBlock(block.Type()) {
		block = findFirst(fn, lang.IsBlock)
	}
	if block == nil {
		return firstLine
	}
	return strings.TrimSpace(text[:block.StartByte()])
}

// findFirst returns the first node in pre-order whose kind satisfies match.
func findFirst(root *sitter.Node, match func(kind string) bool) *sitter.Node {
	if root == nil {
		return nil
	}
	if match(root.Type()) {
		return root
	}
	count := int(root.ChildCount())
	for i := 0; i < count; i++ {
		if found := findFirst(root.Child(i), match); found != nil {
			return found
		}
	}
	return nil
}

func lineCount(text string) int {
	return strings.Count(text, "\n") + 1
}
