package convert

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/jackzampolin/bindery/internal/cache"
	"github.com/jackzampolin/bindery/internal/parser"
)

// fakeBackend produces the same six-page document on every parse.
type fakeBackend struct {
	caps   parser.Capabilities
	parses int
}

func (b *fakeBackend) Parse(ctx context.Context, path string, opts parser.ParseOptions) (*parser.Document, error) {
	b.parses++
	doc := &parser.Document{
		Title:         "Fixture",
		SourcePath:    path,
		ParserVersion: "fake-1.0",
		Outline: []parser.OutlineEntry{
			{Level: 1, Title: "One", PageIndex: 0},
			{Level: 2, Title: "Alpha", PageIndex: 0},
			{Level: 2, Title: "Beta", PageIndex: 1},
			{Level: 1, Title: "Two", PageIndex: 2},
			{Level: 1, Title: "Three", PageIndex: 4},
		},
	}
	for i := 0; i < 6; i++ {
		doc.Pages = append(doc.Pages, parser.Page{
			Index:  i,
			Width:  600,
			Height: 800,
			Runs: []parser.TextRun{
				{Text: fmt.Sprintf("Body text of page %d.", i+1), FontSize: 10,
					BBox: parser.Rect{X: 50, Y: 100, W: 500, H: 600}},
			},
		})
	}
	doc.Pages[0].Links = append(doc.Pages[0].Links, parser.LinkAnnotation{
		PageIndex: 0, Text: "see beta", TargetPage: 1,
	})
	return doc, nil
}

func (b *fakeBackend) Capabilities() parser.Capabilities { return b.caps }

func baseOptions(t *testing.T) Options {
	t.Helper()
	return Options{
		SourcePath:       "fixture.pdf",
		ModID:            "fixture-mod",
		OutDir:           filepath.Join(t.TempDir(), "dist"),
		Workers:          1,
		DeterministicIDs: true,
		Backend:          &fakeBackend{caps: parser.Capabilities{SupportsParallelExtraction: true}},
		Logger:           slog.New(slog.DiscardHandler),
	}
}

func readSources(t *testing.T, outDir string) map[string]json.RawMessage {
	t.Helper()
	dir := filepath.Join(outDir, "sources", "journals")
	names, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("reading sources: %v", err)
	}
	out := make(map[string]json.RawMessage)
	for _, entry := range names {
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			t.Fatal(err)
		}
		out[entry.Name()] = data
	}
	return out
}

func TestRunEndToEnd(t *testing.T) {
	opts := baseOptions(t)
	res, err := Run(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}

	if got := len(res.Book.Chapters); got != 3 {
		t.Fatalf("chapters = %d, want 3", got)
	}
	if len(res.Entries) != 3 {
		t.Fatalf("entries = %d, want 3", len(res.Entries))
	}
	sources := readSources(t, opts.OutDir)
	if len(sources) != 3 {
		t.Errorf("source files = %d, want 3", len(sources))
	}
	if res.Report.ResolvedLinks != 1 {
		t.Errorf("ResolvedLinks = %d, want 1", res.Report.ResolvedLinks)
	}
}

func TestRunDeterministicAcrossRuns(t *testing.T) {
	optsA := baseOptions(t)
	optsB := baseOptions(t)

	resA, err := Run(context.Background(), optsA)
	if err != nil {
		t.Fatal(err)
	}
	resB, err := Run(context.Background(), optsB)
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(readSources(t, optsA.OutDir), readSources(t, optsB.OutDir)) {
		t.Error("output differs between identical runs")
	}
	if resA.Entries[0].ID != resB.Entries[0].ID {
		t.Error("entry ids differ between identical runs")
	}
}

func TestRunOrderInvariantAcrossWorkerCounts(t *testing.T) {
	var baseline map[string]json.RawMessage
	for _, workers := range []int{1, 2, 4} {
		opts := baseOptions(t)
		opts.Workers = workers
		if _, err := Run(context.Background(), opts); err != nil {
			t.Fatalf("workers=%d: %v", workers, err)
		}
		sources := readSources(t, opts.OutDir)
		if baseline == nil {
			baseline = sources
			continue
		}
		if !reflect.DeepEqual(baseline, sources) {
			t.Errorf("workers=%d produced different output", workers)
		}
	}
}

func TestRunCacheRoundTrip(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "parsed.json")

	first := baseOptions(t)
	first.CachePath = cachePath
	first.WriteCache = true
	resFirst, err := Run(context.Background(), first)
	if err != nil {
		t.Fatal(err)
	}

	// Second run has no backend at all; the cache must carry it.
	second := baseOptions(t)
	second.Backend = nil
	second.CachePath = cachePath
	resSecond, err := Run(context.Background(), second)
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(readSources(t, first.OutDir), readSources(t, second.OutDir)) {
		t.Error("cached run output differs from parsed run output")
	}
	if resFirst.Entries[0].ID != resSecond.Entries[0].ID {
		t.Error("entry ids differ between parsed and cached runs")
	}
}

func TestRunInvalidCacheAbortsWithoutOutput(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "parsed.json")
	stale := `{"schemaVersion": 99, "document": {"pages": []}}`
	if err := os.WriteFile(cachePath, []byte(stale), 0o644); err != nil {
		t.Fatal(err)
	}

	opts := baseOptions(t)
	opts.CachePath = cachePath
	opts.CacheFallback = false

	_, err := Run(context.Background(), opts)
	var invalid *cache.InvalidError
	if !errors.As(err, &invalid) {
		t.Fatalf("err = %v, want *cache.InvalidError", err)
	}
	if _, statErr := os.Stat(opts.OutDir); !os.IsNotExist(statErr) {
		t.Error("output directory exists after aborted run")
	}
}

func TestRunInvalidCacheFallsBackWhenEnabled(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "parsed.json")
	if err := os.WriteFile(cachePath, []byte("not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	backend := &fakeBackend{caps: parser.Capabilities{SupportsParallelExtraction: true}}
	opts := baseOptions(t)
	opts.Backend = backend
	opts.CachePath = cachePath
	opts.CacheFallback = true

	res, err := Run(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if backend.parses != 1 {
		t.Errorf("parses = %d, want 1", backend.parses)
	}
	if len(res.Report.Warnings) == 0 {
		t.Error("expected a cache warning on the report")
	}
}

func TestRunMissingCacheParsesSource(t *testing.T) {
	backend := &fakeBackend{caps: parser.Capabilities{SupportsParallelExtraction: true}}
	opts := baseOptions(t)
	opts.Backend = backend
	opts.CachePath = filepath.Join(t.TempDir(), "nope.json")

	if _, err := Run(context.Background(), opts); err != nil {
		t.Fatal(err)
	}
	if backend.parses != 1 {
		t.Errorf("parses = %d, want 1", backend.parses)
	}
}

func TestRunPageRangeLimitsExtraction(t *testing.T) {
	opts := baseOptions(t)
	opts.Pages = "1-2"

	res, err := Run(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}

	// Pages 3-6 were skipped, so chapters Two and Three carry no blocks.
	for _, ch := range res.Book.Chapters[1:] {
		for _, sec := range ch.Sections {
			if len(sec.Blocks) != 0 {
				t.Errorf("section %s has %d blocks, want 0", sec.PathKey, len(sec.Blocks))
			}
		}
	}
	if len(res.Book.Chapters[0].Sections[0].Blocks) == 0 {
		t.Error("selected pages produced no blocks")
	}
}

func TestRunNoParallelBackendDowngradesWorkers(t *testing.T) {
	opts := baseOptions(t)
	opts.Backend = &fakeBackend{} // no parallel support
	opts.Workers = 4

	res, err := Run(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if res.Plan.EffectiveWorkers != 1 {
		t.Errorf("EffectiveWorkers = %d, want 1", res.Plan.EffectiveWorkers)
	}
	if len(res.Report.Downgrade) != 1 {
		t.Errorf("downgrades = %d, want 1", len(res.Report.Downgrade))
	}
}

func TestRunReplacesPreviousOutput(t *testing.T) {
	opts := baseOptions(t)
	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		t.Fatal(err)
	}
	marker := filepath.Join(opts.OutDir, "stale.txt")
	if err := os.WriteFile(marker, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Run(context.Background(), opts); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(marker); !os.IsNotExist(err) {
		t.Error("stale file survived output replacement")
	}
}

func TestParsePageRange(t *testing.T) {
	tests := []struct {
		spec    string
		count   int
		want    []int
		wantErr bool
	}{
		{"", 3, []int{0, 1, 2}, false},
		{"1-2", 6, []int{0, 1}, false},
		{"2,4-5", 6, []int{1, 3, 4}, false},
		{"5,1,5", 6, []int{0, 4}, false},
		{"0-2", 6, nil, true},
		{"5-2", 6, nil, true},
		{"7", 6, nil, true},
		{"abc", 6, nil, true},
	}
	for _, tc := range tests {
		got, err := ParsePageRange(tc.spec, tc.count)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParsePageRange(%q) succeeded, want error", tc.spec)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParsePageRange(%q): %v", tc.spec, err)
			continue
		}
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("ParsePageRange(%q) = %v, want %v", tc.spec, got, tc.want)
		}
	}
}
