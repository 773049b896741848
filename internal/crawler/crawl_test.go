package crawler

import (
	"context"
	"errors"
	"testing"
)

const pairDef = "type Pair struct {\n\ta Alpha\n\tb Beta\n}\n"

const betaDef = "type Beta struct {\n\tn int\n}\n"

func pairRegion() LocationWithContents {
	return LocationWithContents{
		Location: loc("pair.go", 0, 0, 3, 1),
		Contents: "type Pair struct {\n\ta Alpha\n\tb Beta\n}",
	}
}

func TestCrawlTypesSiblingFailureIsolation(t *testing.T) {
	resolver := &fakeResolver{
		defs: map[string][]Location{
			"pair.go:2:3": {loc("beta.go", 0, 0, 2, 1)},
		},
		errAt: map[string]error{
			"pair.go:1:3": errors.New("server gone"),
		},
	}
	reader := &fakeReader{files: map[string]string{
		"pair.go": pairDef,
		"beta.go": betaDef,
	}}
	cr := newCrawl(New(resolver, reader, 1))

	if err := cr.crawlTypes(context.Background(), pairRegion(), 0); err != nil {
		t.Fatalf("crawlTypes: %v", err)
	}

	got := cr.entries()
	if len(got) != 1 {
		t.Fatalf("expected Beta despite Alpha failing, got %+v", got)
	}
	assertContents(t, "type Beta struct {\n\tn int\n}", got[0].Contents)
	if !resolver.called("pair.go:1:3") {
		t.Error("Alpha was never queried")
	}
}

func TestCrawlTypesVisitedLabelsNotRequeried(t *testing.T) {
	resolver := &fakeResolver{
		defs: map[string][]Location{
			"pair.go:2:3": {loc("beta.go", 0, 0, 2, 1)},
		},
	}
	reader := &fakeReader{files: map[string]string{
		"pair.go": pairDef,
		"beta.go": betaDef,
	}}
	cr := newCrawl(New(resolver, reader, 1))
	ctx := context.Background()

	if err := cr.crawlTypes(ctx, pairRegion(), 0); err != nil {
		t.Fatalf("first crawl: %v", err)
	}
	first := resolver.callCount()

	// Same region again within the same request: every label is
	// visited, so no further resolver traffic and no duplicate entries.
	if err := cr.crawlTypes(ctx, pairRegion(), 0); err != nil {
		t.Fatalf("second crawl: %v", err)
	}
	if got := resolver.callCount(); got != first {
		t.Errorf("resolver calls grew from %d to %d", first, got)
	}
	if got := cr.entries(); len(got) != 1 {
		t.Errorf("accumulator grew: %+v", got)
	}
}

func TestCrawlTypesDepthBudget(t *testing.T) {
	defs := map[string][]Location{
		"decl.go:0:6":   {loc("widget.go", 0, 0, 2, 1)},
		"widget.go:1:3": {loc("gadget.go", 0, 0, 2, 1)},
	}
	files := map[string]string{
		"decl.go":   "var w Widget\n",
		"widget.go": "type Widget struct {\n\tg Gadget\n}\n",
		"gadget.go": gadgetDef,
	}
	ctx := context.Background()
	region := LocationWithContents{Location: loc("decl.go", 0, 0, 0, 12)}

	// Depth 0: Widget's definition is collected, the types it
	// references are not followed.
	shallow := newCrawl(New(&fakeResolver{defs: defs}, &fakeReader{files: files}, 1))
	if err := shallow.crawlTypes(ctx, region, 0); err != nil {
		t.Fatalf("depth 0: %v", err)
	}
	if got := shallow.entries(); len(got) != 1 {
		t.Fatalf("depth 0: expected only Widget, got %+v", got)
	}

	// Depth 1: one recursion step reaches Gadget through Widget.
	deep := newCrawl(New(&fakeResolver{defs: defs}, &fakeReader{files: files}, 1))
	if err := deep.crawlTypes(ctx, region, 1); err != nil {
		t.Fatalf("depth 1: %v", err)
	}
	got := deep.entries()
	if len(got) != 2 {
		t.Fatalf("depth 1: expected Widget and Gadget, got %+v", got)
	}
	assertContents(t, "type Gadget struct {\n\tid int\n}", got[1].Contents)
}

func TestCrawlTypesWhitespaceRegion(t *testing.T) {
	resolver := &fakeResolver{}
	reader := &fakeReader{files: map[string]string{"blank.go": "  \n\t\n"}}
	cr := newCrawl(New(resolver, reader, 1))

	region := LocationWithContents{Location: loc("blank.go", 0, 0, 1, 1)}
	if err := cr.crawlTypes(context.Background(), region, 1); err != nil {
		t.Fatalf("crawlTypes: %v", err)
	}
	if resolver.callCount() != 0 {
		t.Errorf("resolver queried for a whitespace-only region")
	}
	if got := cr.entries(); len(got) != 0 {
		t.Errorf("entries = %+v, want none", got)
	}
}

func TestCrawlTypesUnsupportedRegionFile(t *testing.T) {
	resolver := &fakeResolver{}
	cr := newCrawl(New(resolver, &fakeReader{files: map[string]string{}}, 1))

	region := LocationWithContents{
		Location: loc("notes.txt", 0, 0, 0, 5),
		Contents: "Alpha",
	}
	if err := cr.crawlTypes(context.Background(), region, 1); err != nil {
		t.Fatalf("crawlTypes: %v", err)
	}
	if resolver.callCount() != 0 {
		t.Errorf("resolver queried for an unsupported file type")
	}
}

func TestCrawlTypesRowClamp(t *testing.T) {
	// The region claims to start past the end of its file; extracted
	// reference rows clamp to the last document line instead of running
	// off the end.
	resolver := &fakeResolver{}
	reader := &fakeReader{files: map[string]string{"short.go": "x\n"}}
	cr := newCrawl(New(resolver, reader, 1))

	region := LocationWithContents{
		Location: loc("short.go", 5, 0, 8, 0),
		Contents: "type T struct {\n\tf Widget\n}",
	}
	if err := cr.crawlTypes(context.Background(), region, 0); err != nil {
		t.Fatalf("crawlTypes: %v", err)
	}
	if !resolver.called("short.go:1:5") {
		t.Errorf("T not clamped to last line; calls: %v", resolver.calls)
	}
	if !resolver.called("short.go:1:3") {
		t.Errorf("Widget not clamped to last line; calls: %v", resolver.calls)
	}
}

func TestInsertOverlapDedup(t *testing.T) {
	cr := newCrawl(New(&fakeResolver{}, &fakeReader{}, 1))

	if !cr.insert(LocationWithContents{Location: loc("a.go", 0, 0, 10, 0), Contents: "first"}) {
		t.Fatal("first insert rejected")
	}
	// Contained within the first entry's range.
	if cr.insert(LocationWithContents{Location: loc("a.go", 3, 0, 5, 0), Contents: "inner"}) {
		t.Error("overlapping insert accepted")
	}
	// Same range, different file.
	if !cr.insert(LocationWithContents{Location: loc("b.go", 3, 0, 5, 0), Contents: "other file"}) {
		t.Error("insert in a different file rejected")
	}
	// Adjacent, half-open: starts exactly where the first ends.
	if !cr.insert(LocationWithContents{Location: loc("a.go", 10, 0, 12, 0), Contents: "adjacent"}) {
		t.Error("adjacent insert rejected")
	}
	if got := len(cr.entries()); got != 3 {
		t.Errorf("accumulator size = %d, want 3", got)
	}
}

func TestRangeOverlaps(t *testing.T) {
	tests := []struct {
		name string
		a, b Range
		want bool
	}{
		{"identical", rng(1, 0, 2, 0), rng(1, 0, 2, 0), true},
		{"contained", rng(0, 0, 10, 0), rng(3, 0, 5, 0), true},
		{"partial", rng(0, 0, 5, 0), rng(4, 0, 8, 0), true},
		{"disjoint", rng(0, 0, 2, 0), rng(5, 0, 7, 0), false},
		{"adjacent half-open", rng(0, 0, 2, 0), rng(2, 0, 4, 0), false},
		{"same line disjoint", rng(1, 0, 1, 4), rng(1, 6, 1, 9), false},
		{"same line touching", rng(1, 0, 1, 4), rng(1, 4, 1, 9), false},
		{"same line overlapping", rng(1, 0, 1, 5), rng(1, 4, 1, 9), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Overlaps(tt.b); got != tt.want {
				t.Errorf("a.Overlaps(b) = %v, want %v", got, tt.want)
			}
			if got := tt.b.Overlaps(tt.a); got != tt.want {
				t.Errorf("b.Overlaps(a) = %v, want %v", got, tt.want)
			}
		})
	}
}

func rng(sl, sc, el, ec int) Range {
	return Range{
		Start: Position{Line: sl, Character: sc},
		End:   Position{Line: el, Character: ec},
	}
}
