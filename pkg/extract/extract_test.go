package extract

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/binarysniffer/binarysniffer/pkg/errors"
	"github.com/binarysniffer/binarysniffer/pkg/model"
)

func TestExtractEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.bin")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	res, err := Extract(context.Background(), path, Options{})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.FileType != model.FileTypeEmpty || len(res.Features) != 0 {
		t.Fatalf("expected an empty result, got %+v", res)
	}
}

func TestExtractMissingFileReturnsIOError(t *testing.T) {
	_, err := Extract(context.Background(), filepath.Join(t.TempDir(), "gone.bin"), Options{})
	if err == nil {
		t.Fatal("expected an error for a missing file")
	}
	if errors.KindOf(err) != errors.KindIO {
		t.Fatalf("expected KindIO, got %v", errors.KindOf(err))
	}
}

func TestExtractRejectsOversizedInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.bin")
	if err := os.WriteFile(path, make([]byte, 1024), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	_, err := Extract(context.Background(), path, Options{MaxFileSize: 100})
	if err == nil {
		t.Fatal("expected a ResourceExceeded error")
	}
	if errors.KindOf(err) != errors.KindResourceExceeded {
		t.Fatalf("expected KindResourceExceeded, got %v", errors.KindOf(err))
	}
}

func TestExtractSourceFileUsesSourceExtractor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "main.go")
	src := "package main\n\nfunc Run() {}\n"
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	res, err := Extract(context.Background(), path, Options{})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.FileType != model.FileTypeSource {
		t.Fatalf("expected FileTypeSource, got %v", res.FileType)
	}
	if !contains(res.Features, "Run") {
		t.Fatalf("expected Run func name in %v", res.Features)
	}
}

func TestExtractGenericBinaryFallsBackToStrings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.bin")
	data := append([]byte{0x00, 0x01, 0x02}, []byte("embedded_marker_string_value\x00")...)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	res, err := Extract(context.Background(), path, Options{})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.FileType != model.FileTypeGeneric {
		t.Fatalf("expected FileTypeGeneric, got %v", res.FileType)
	}
	if !contains(res.Features, "embedded_marker_string_value") {
		t.Fatalf("expected embedded marker string in %v", res.Features)
	}
}
