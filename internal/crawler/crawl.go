package crawler

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	sitter "github.com/smacker/go-tree-sitter"
	"golang.org/x/sync/errgroup"

	"github.com/xonecas/tabctx/internal/treesitter"
)

// crawl holds the per-request state of one top-level invocation: the
// visited-label set and the overlap-deduplicated result accumulator.
// Both are discarded when the request ends; nothing is shared across
// requests.
type crawl struct {
	c *Crawler

	mu      sync.Mutex
	visited map[string]struct{}
	acc     []LocationWithContents
}

func newCrawl(c *Crawler) *crawl {
	return &crawl{c: c, visited: make(map[string]struct{})}
}

// insert appends entry to the accumulator unless its range overlaps an
// existing entry in the same file. Reports whether the entry was added.
func (cr *crawl) insert(entry LocationWithContents) bool {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	for _, have := range cr.acc {
		if have.Filepath == entry.Filepath && have.Range.Overlaps(entry.Range) {
			return false
		}
	}
	cr.acc = append(cr.acc, entry)
	return true
}

// entries returns a snapshot of the accumulator.
func (cr *crawl) entries() []LocationWithContents {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	return append([]LocationWithContents(nil), cr.acc...)
}

// typeRef is one extracted type reference, translated to
// document-absolute coordinates.
type typeRef struct {
	label string
	pos   Position
}

// crawlTypes resolves definitions for the type references found in
// region and recurses into each discovered definition until the depth
// budget runs out. Resolver queries for one step run concurrently;
// results are inserted sequentially in extraction order so output stays
// deterministic. Parse failures and empty regions degrade to "nothing
// found"; content-read failures propagate to the top-level boundary.
func (cr *crawl) crawlTypes(ctx context.Context, region LocationWithContents, depth int) error {
	contents := region.Contents
	if contents == "" {
		var err error
		r := region.Range
		contents, err = cr.c.reader.ReadRange(region.Filepath, r.Start.Line, r.Start.Character, r.End.Line, r.End.Character)
		if err != nil {
			return err
		}
	}
	if strings.TrimSpace(contents) == "" {
		return nil
	}

	lang := treesitter.LanguageForPath(region.Filepath)
	if lang == nil {
		return nil
	}

	refs, err := cr.extractRefs(ctx, lang, region, contents)
	if err != nil || len(refs) == 0 {
		return err
	}

	// Fan out one definition query per reference. Failures and empty
	// results drop that reference without disturbing its siblings.
	resolved := make([]*Location, len(refs))
	g, gctx := errgroup.WithContext(ctx)
	for i, ref := range refs {
		g.Go(func() error {
			locs, err := cr.c.resolver.Resolve(gctx, region.Filepath, ref.pos, ResolveDefinition)
			if err != nil {
				log.Warn().Err(err).Str("label", ref.label).Str("file", region.Filepath).Msg("crawler: definition query failed")
				return nil
			}
			if len(locs) > 0 {
				resolved[i] = &locs[0]
			}
			return nil
		})
	}
	_ = g.Wait() // workers never return errors

	for _, loc := range resolved {
		if loc == nil {
			continue
		}
		r := loc.Range
		text, err := cr.c.reader.ReadRange(loc.Filepath, r.Start.Line, r.Start.Character, r.End.Line, r.End.Character)
		if err != nil {
			return err
		}
		cr.insert(LocationWithContents{Location: *loc, Contents: text})
	}

	if depth <= 0 {
		return nil
	}
	// Entries added while recursing are not re-visited at this level,
	// but they carry into deeper levels through the shared accumulator.
	for _, entry := range cr.entries() {
		if err := cr.crawlTypes(ctx, entry, depth-1); err != nil {
			return err
		}
	}
	return nil
}

// extractRefs parses the region contents, extracts unvisited type
// references, marks them visited, and translates their tree-local
// coordinates to document-absolute ones.
func (cr *crawl) extractRefs(ctx context.Context, lang *treesitter.Language, region LocationWithContents, contents string) ([]typeRef, error) {
	src := []byte(contents)
	tree, err := treesitter.Parse(ctx, lang, src)
	if err != nil || tree == nil {
		return nil, nil // best-effort: unparseable region has no references
	}
	defer tree.Close()

	nodes := treesitter.TypeIdentifiers(tree.RootNode(), src, lang.TypeRef)
	if len(nodes) == 0 {
		return nil, nil
	}

	lineCount, err := cr.c.reader.LineCount(region.Filepath)
	if err != nil {
		return nil, err
	}

	cr.mu.Lock()
	var refs []typeRef
	for _, n := range nodes {
		label := n.Content(src)
		if _, seen := cr.visited[label]; seen {
			continue
		}
		// Visited even if resolution later fails: one resolver attempt
		// per distinct label per crawl.
		cr.visited[label] = struct{}{}
		refs = append(refs, typeRef{label: label, pos: absolutePosition(n, region, lineCount)})
	}
	cr.mu.Unlock()
	return refs, nil
}

// absolutePosition translates a node position, local to the parsed
// region, into document coordinates by adding the region's start
// offset. The computed row is clamped to the document's line count;
// tree and document rows can disagree by one and the clamp tolerates
// that skew rather than guaranteeing an exact mapping.
func absolutePosition(n *sitter.Node, region LocationWithContents, lineCount int) Position {
	point := n.StartPoint()
	line := region.Range.Start.Line + int(point.Row)
	char := int(point.Column)
	if point.Row == 0 {
		char += region.Range.Start.Character
	}
	if line >= lineCount {
		line = lineCount - 1
	}
	if line < 0 {
		line = 0
	}
	return Position{Line: line, Character: char}
}
