package cache

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/jackzampolin/bindery/internal/parser"
)

func sampleDoc() *parser.Document {
	return &parser.Document{
		Title:         "Cached Book",
		SourcePath:    "book.pdf",
		ParserVersion: "docling-2.1",
		Pages: []parser.Page{
			{
				Index: 0, Width: 612, Height: 792,
				Runs: []parser.TextRun{
					{Text: "Chapter One", FontSize: 24, FontWeight: 700, BBox: parser.Rect{X: 72, Y: 72, W: 200, H: 30}},
					{Text: "Body text.", FontSize: 10, FontWeight: 400, BBox: parser.Rect{X: 72, Y: 120, W: 450, H: 600}},
				},
				Links: []parser.LinkAnnotation{
					{PageIndex: 0, TargetPage: 1, BBox: parser.Rect{X: 72, Y: 700, W: 90, H: 12}},
				},
			},
			{Index: 1, Width: 612, Height: 792},
		},
		Outline: []parser.OutlineEntry{{Level: 1, Title: "Chapter One", PageIndex: 0}},
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")
	doc := sampleDoc()

	if err := Save(doc, path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if !reflect.DeepEqual(doc, loaded) {
		t.Errorf("round trip changed document:\n got %+v\nwant %+v", loaded, doc)
	}
}

func TestLoadSchemaVersionMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")
	if err := Save(sampleDoc(), path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// Rewrite the envelope with a future schema version.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var env map[string]json.RawMessage
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatal(err)
	}
	env["schemaVersion"] = json.RawMessage("99")
	data, _ = json.Marshal(env)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	_, err = Load(path)
	var invalid *InvalidError
	if !errors.As(err, &invalid) {
		t.Fatalf("err = %v, want *InvalidError", err)
	}
}

func TestLoadCorruptJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(path)
	var invalid *InvalidError
	if !errors.As(err, &invalid) {
		t.Fatalf("err = %v, want *InvalidError", err)
	}
}

func TestLoadMissingDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")
	if err := os.WriteFile(path, []byte(`{"schemaVersion": 1}`), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(path)
	var invalid *InvalidError
	if !errors.As(err, &invalid) {
		t.Fatalf("err = %v, want *InvalidError", err)
	}
}

func TestLoadMissingFileIsNotInvalid(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	var invalid *InvalidError
	if errors.As(err, &invalid) {
		t.Error("missing file reported as invalid cache; should surface as I/O error")
	}
}

func TestSaveLeavesNoTempFilesBehind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.json")
	if err := Save(sampleDoc(), path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "doc.json" {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("cache dir contents = %v, want only doc.json", names)
	}
}
