package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "signatures.db")
	s, err := Open(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func writeSignatureFile(t *testing.T, dir, name string, doc map[string]any) {
	t.Helper()
	raw, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal fixture: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), raw, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
}

func libpngFixture() map[string]any {
	return map[string]any{
		"component": map[string]any{
			"name":      "libpng",
			"version":   "1.6.37",
			"license":   "libpng-2.0",
			"publisher": "PNG Development Group",
			"ecosystem": "native",
		},
		"signature_metadata": map[string]any{"version": "1"},
		"patterns": []map[string]any{
			{"pattern": "png_create_read_struct", "confidence": 0.9},
			{"pattern": "libpng version 1.6.37", "confidence": 0.9},
			{"pattern": "png_", "confidence": 0.6, "context": "prefix"},
		},
	}
}

func TestImportAndLookupExact(t *testing.T) {
	dir := t.TempDir()
	writeSignatureFile(t, dir, "libpng.json", libpngFixture())

	s := newTestStore(t)
	summary, err := s.Import(context.Background(), dir)
	if err != nil {
		t.Fatalf("Import() error: %v", err)
	}
	if summary.FilesProcessed != 1 || summary.FilesRejected != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.PatternsWritten != 3 {
		t.Fatalf("expected 3 patterns written, got %d", summary.PatternsWritten)
	}

	hits, err := s.LookupExact(context.Background(), "png_create_read_struct")
	if err != nil {
		t.Fatalf("LookupExact() error: %v", err)
	}
	if len(hits) != 1 || hits[0].Confidence != 0.9 {
		t.Fatalf("unexpected exact hits: %+v", hits)
	}
}

func TestImportRejectsEmptyPatternList(t *testing.T) {
	dir := t.TempDir()
	writeSignatureFile(t, dir, "empty.json", map[string]any{
		"component": map[string]any{"name": "nothing"},
		"patterns": []map[string]any{
			{"pattern": "init", "confidence": 0.9}, // stop-listed, dropped
		},
	})

	s := newTestStore(t)
	summary, err := s.Import(context.Background(), dir)
	if err != nil {
		t.Fatalf("Import() error: %v", err)
	}
	if summary.FilesProcessed != 0 || summary.FilesRejected != 1 {
		t.Fatalf("expected the whole file rejected, got %+v", summary)
	}
}

func TestImportIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	writeSignatureFile(t, dir, "libpng.json", libpngFixture())

	s := newTestStore(t)
	ctx := context.Background()
	if _, err := s.Import(ctx, dir); err != nil {
		t.Fatalf("first Import() error: %v", err)
	}
	first, err := s.Status(ctx)
	if err != nil {
		t.Fatalf("Status() error: %v", err)
	}
	if _, err := s.Import(ctx, dir); err != nil {
		t.Fatalf("second Import() error: %v", err)
	}
	second, err := s.Status(ctx)
	if err != nil {
		t.Fatalf("Status() error: %v", err)
	}
	if first.ComponentCount != second.ComponentCount || first.PatternCount != second.PatternCount {
		t.Fatalf("import not idempotent: %+v vs %+v", first, second)
	}
}

func TestLookupContainsVerifiesCandidates(t *testing.T) {
	dir := t.TempDir()
	writeSignatureFile(t, dir, "libpng.json", libpngFixture())

	s := newTestStore(t)
	ctx := context.Background()
	if _, err := s.Import(ctx, dir); err != nil {
		t.Fatalf("Import() error: %v", err)
	}

	hits, err := s.LookupContains(ctx, "___png_create_read_struct___extra")
	if err != nil {
		t.Fatalf("LookupContains() error: %v", err)
	}
	found := false
	for _, h := range hits {
		if h.Pattern == "png_create_read_struct" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected png_create_read_struct among contains hits, got %+v", hits)
	}
}

func TestDigestsPopulatedWhenPayloadLargeEnough(t *testing.T) {
	dir := t.TempDir()
	fixture := libpngFixture()
	// Pad with enough distinct patterns to clear the 256-byte digest
	// payload minimum.
	patterns := fixture["patterns"].([]map[string]any)
	for i := 0; i < 40; i++ {
		patterns = append(patterns, map[string]any{
			"pattern":    "png_extra_symbol_padding_" + string(rune('a'+i%26)),
			"confidence": 0.8,
		})
	}
	fixture["patterns"] = patterns
	writeSignatureFile(t, dir, "libpng.json", fixture)

	s := newTestStore(t)
	ctx := context.Background()
	summary, err := s.Import(ctx, dir)
	if err != nil {
		t.Fatalf("Import() error: %v", err)
	}
	if summary.DigestsWritten != 1 {
		t.Fatalf("expected a digest to be written, got summary %+v", summary)
	}

	digests, err := s.Digests(ctx)
	if err != nil {
		t.Fatalf("Digests() error: %v", err)
	}
	if len(digests) != 1 || digests[0].Digest.IsZero() {
		t.Fatalf("expected one non-zero digest, got %+v", digests)
	}
}
