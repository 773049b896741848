package crawler

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
	"github.com/hexops/gotextdiff/span"

	"github.com/xonecas/tabctx/internal/source"
)

// fakeResolver answers definition queries from a fixed position map and
// records every call.
type fakeResolver struct {
	mu    sync.Mutex
	calls []string
	defs  map[string][]Location
	errAt map[string]error
	panic bool
}

func posKey(file string, pos Position) string {
	return fmt.Sprintf("%s:%d:%d", file, pos.Line, pos.Character)
}

func (f *fakeResolver) Resolve(_ context.Context, file string, pos Position, _ ResolveKind) ([]Location, error) {
	if f.panic {
		panic("resolver exploded")
	}
	key := posKey(file, pos)
	f.mu.Lock()
	f.calls = append(f.calls, key)
	f.mu.Unlock()
	if err := f.errAt[key]; err != nil {
		return nil, err
	}
	return f.defs[key], nil
}

func (f *fakeResolver) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeResolver) called(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c == key {
			return true
		}
	}
	return false
}

// fakeReader serves file contents from memory.
type fakeReader struct {
	files map[string]string
}

func (r *fakeReader) ReadFile(path string) (string, error) {
	text, ok := r.files[path]
	if !ok {
		return "", fmt.Errorf("no such file: %s", path)
	}
	return text, nil
}

func (r *fakeReader) ReadRange(path string, startLine, startChar, endLine, endChar int) (string, error) {
	text, err := r.ReadFile(path)
	if err != nil {
		return "", err
	}
	return source.SliceRange(text, startLine, startChar, endLine, endChar), nil
}

func (r *fakeReader) LineCount(path string) (int, error) {
	text, err := r.ReadFile(path)
	if err != nil {
		return 0, err
	}
	n := 1
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			n++
		}
	}
	return n, nil
}

// assertContents fails with a unified diff when got differs from want.
func assertContents(t *testing.T, want, got string) {
	t.Helper()
	if want == got {
		return
	}
	edits := myers.ComputeEdits(span.URIFromPath("want"), want, got)
	t.Errorf("contents mismatch:\n%s", fmt.Sprint(gotextdiff.ToUnified("want", "got", want, edits)))
}

// loc builds a Location from explicit coordinates.
func loc(path string, startLine, startChar, endLine, endChar int) Location {
	return Location{
		Filepath: path,
		Range: Range{
			Start: Position{Line: startLine, Character: startChar},
			End:   Position{Line: endLine, Character: endChar},
		},
	}
}
