// Package crawler walks a syntax tree outward from the cursor,
// resolves nearby symbol usages through a definition resolver, and
// produces deduplicated, depth-bounded context snippets for code
// completion.
package crawler

import "context"

// Position is a 0-indexed line/character position in a document.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Range is a half-open text region: Start inclusive, End exclusive.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Overlaps reports whether two half-open ranges intersect.
func (r Range) Overlaps(o Range) bool {
	return r.Start.before(o.End) && o.Start.before(r.End)
}

func (p Position) before(o Position) bool {
	if p.Line != o.Line {
		return p.Line < o.Line
	}
	return p.Character < o.Character
}

// Location identifies a range in a file. Immutable once created.
type Location struct {
	Filepath string `json:"filepath"`
	Range    Range  `json:"range"`
}

// LocationWithContents is a Location materialized with the literal text
// of its range.
type LocationWithContents struct {
	Location
	Contents string `json:"contents"`
}

// Snippet is the unit returned to the caller: a materialized location
// with a confidence score.
type Snippet struct {
	LocationWithContents
	Score float64 `json:"score"`
}

// ResolveKind selects the symbol-navigation query issued to the resolver.
type ResolveKind int

const (
	ResolveDefinition ResolveKind = iota
	ResolveTypeDefinition
	ResolveDeclaration
	ResolveImplementation
	ResolveReferences
)

// String returns the LSP-style name of the resolution kind.
func (k ResolveKind) String() string {
	switch k {
	case ResolveDefinition:
		return "definition"
	case ResolveTypeDefinition:
		return "typeDefinition"
	case ResolveDeclaration:
		return "declaration"
	case ResolveImplementation:
		return "implementation"
	case ResolveReferences:
		return "references"
	default:
		return "unknown"
	}
}

// Resolver answers symbol-navigation queries. Implementations must
// return an empty slice (not an error) for no-result queries and must
// tolerate out-of-range positions.
type Resolver interface {
	Resolve(ctx context.Context, file string, pos Position, kind ResolveKind) ([]Location, error)
}

// ContentReader provides file and range contents. Coordinates are
// 0-indexed; ranges are half-open.
type ContentReader interface {
	ReadFile(path string) (string, error)
	ReadRange(path string, startLine, startChar, endLine, endChar int) (string, error)
	LineCount(path string) (int, error)
}
