package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xonecas/tabctx/internal/crawler"
)

// renderJSON formats snippets as indented JSON. An empty crawl renders
// as an empty array, not null.
func renderJSON(snippets []crawler.Snippet) (string, error) {
	if snippets == nil {
		snippets = []crawler.Snippet{}
	}
	out, err := json.MarshalIndent(snippets, "", "  ")
	if err != nil {
		return "", fmt.Errorf("render: %w", err)
	}
	return string(out), nil
}

// renderText formats snippets as a human-readable block, one header
// line per snippet followed by its contents.
func renderText(snippets []crawler.Snippet) string {
	var b strings.Builder
	for i, s := range snippets {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "-- %s:%d-%d (score %.1f)\n", s.Filepath, s.Range.Start.Line+1, s.Range.End.Line+1, s.Score)
		b.WriteString(s.Contents)
		b.WriteByte('\n')
	}
	return b.String()
}
