// Package source reads file contents and line/character ranges for the
// crawler, behind an in-memory LRU cache so repeated lookups during one
// completion request do not hit the filesystem twice.
package source

import (
	"fmt"
	"os"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of files kept in the content cache.
const DefaultCacheSize = 256

// Reader provides file and range contents.
type Reader struct {
	cache *lru.Cache[string, string]
}

// NewReader creates a reader with a content cache of the given size.
// size <= 0 uses DefaultCacheSize.
func NewReader(size int) (*Reader, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, string](size)
	if err != nil {
		return nil, fmt.Errorf("source: create cache: %w", err)
	}
	return &Reader{cache: cache}, nil
}

// ReadFile returns the full contents of a file.
func (r *Reader) ReadFile(path string) (string, error) {
	if cached, ok := r.cache.Get(path); ok {
		return cached, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("source: read %s: %w", path, err)
	}
	text := string(data)
	r.cache.Add(path, text)
	return text, nil
}

// ReadRange returns the text of a half-open line/character range.
// Lines and characters are 0-indexed; out-of-range coordinates clamp
// to the document rather than erroring.
func (r *Reader) ReadRange(path string, startLine, startChar, endLine, endChar int) (string, error) {
	text, err := r.ReadFile(path)
	if err != nil {
		return "", err
	}
	return SliceRange(text, startLine, startChar, endLine, endChar), nil
}

// LineCount returns the number of lines in a file.
func (r *Reader) LineCount(path string) (int, error) {
	text, err := r.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strings.Count(text, "\n") + 1, nil
}

// Invalidate drops a file from the cache, for callers that know the
// file changed on disk.
func (r *Reader) Invalidate(path string) {
	r.cache.Remove(path)
}

// SliceRange extracts a half-open line/character range from text,
// clamping coordinates to the document.
func SliceRange(text string, startLine, startChar, endLine, endChar int) string {
	lines := strings.Split(text, "\n")

	startLine = clamp(startLine, 0, len(lines)-1)
	endLine = clamp(endLine, 0, len(lines)-1)
	if startLine > endLine {
		return ""
	}

	if startLine == endLine {
		line := lines[startLine]
		start := clamp(startChar, 0, len(line))
		end := clamp(endChar, start, len(line))
		return line[start:end]
	}

	var b strings.Builder
	first := lines[startLine]
	b.WriteString(first[clamp(startChar, 0, len(first)):])
	for i := startLine + 1; i < endLine; i++ {
		b.WriteByte('\n')
		b.WriteString(lines[i])
	}
	last := lines[endLine]
	b.WriteByte('\n')
	b.WriteString(last[:clamp(endChar, 0, len(last))])
	return b.String()
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
