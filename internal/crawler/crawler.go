package crawler

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/xonecas/tabctx/internal/treesitter"
)

// Confidence is the fixed score attached to every crawler snippet.
const Confidence = 0.8

// DefaultDepth is the recursion budget for the type crawl when the
// caller does not configure one.
const DefaultDepth = 1

// Crawler produces context snippets for a cursor position. It holds no
// per-request state; one Crawler serves concurrent requests.
type Crawler struct {
	resolver Resolver
	reader   ContentReader
	depth    int
}

// New creates a crawler. depth <= 0 uses DefaultDepth.
func New(resolver Resolver, reader ContentReader, depth int) *Crawler {
	if depth <= 0 {
		depth = DefaultDepth
	}
	return &Crawler{resolver: resolver, reader: reader, depth: depth}
}

// Snippets returns context snippets for the cursor offset in the given
// file contents. It is a total function: parse failures, resolver
// failures, and collaborator contract violations all degrade to an
// empty result, never an error. A completion request must not fail
// because context gathering did.
func (c *Crawler) Snippets(ctx context.Context, file, contents string, cursorOffset int, lang *treesitter.Language) (snippets []Snippet) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn().Interface("panic", r).Str("file", file).Msg("crawler: recovered, returning no context")
			snippets = nil
		}
	}()

	if lang == nil {
		lang = treesitter.LanguageForPath(file)
	}
	if lang == nil || cursorOffset < 0 || cursorOffset > len(contents) {
		return nil
	}

	src := []byte(contents)
	tree, err := treesitter.Parse(ctx, lang, src)
	if err != nil || tree == nil {
		return nil
	}
	defer tree.Close()

	path := treesitter.AncestorPath(tree, uint32(cursorOffset))
	if len(path) == 0 {
		return nil
	}

	// Innermost first: the node closest to the cursor contributes the
	// most relevant context, so it wins accumulator slots on overlap.
	session := newCrawl(c)
	for i := len(path) - 1; i >= 0; i-- {
		if err := session.handleNode(ctx, path[i], file, lang, src); err != nil {
			log.Warn().Err(err).Str("file", file).Msg("crawler: aborting crawl, returning no context")
			return nil
		}
	}

	entries := session.entries()
	snippets = make([]Snippet, 0, len(entries))
	for _, entry := range entries {
		if entry.Contents == "" {
			r := entry.Range
			text, err := c.reader.ReadRange(entry.Filepath, r.Start.Line, r.Start.Character, r.End.Line, r.End.Character)
			if err != nil {
				log.Warn().Err(err).Str("file", entry.Filepath).Msg("crawler: materialize failed, returning no context")
				return nil
			}
			entry.Contents = text
		}
		snippets = append(snippets, Snippet{LocationWithContents: entry, Score: Confidence})
	}
	return snippets
}

// Crawl runs one recursive type crawl over an explicit region with the
// crawler's configured depth budget. Exposed for callers that already
// know the region of interest rather than a cursor offset.
func (c *Crawler) Crawl(ctx context.Context, region LocationWithContents) ([]LocationWithContents, error) {
	session := newCrawl(c)
	if err := session.crawlTypes(ctx, region, c.depth); err != nil {
		return nil, err
	}
	return session.entries(), nil
}
