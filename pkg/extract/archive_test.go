package extract

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/binarysniffer/binarysniffer/pkg/model"
)

func writeTestZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create zip: %v", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip.Create(%q): %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("write zip entry %q: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
}

func TestWalkArchiveExtractsMembersAndManifest(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "app.jar")
	writeTestZip(t, zipPath, map[string]string{
		"META-INF/MANIFEST.MF": "Manifest-Version: 1.0\nImplementation-Title: demo-lib\n",
		"src/App.class":        "some_unique_class_marker_string_value",
	})

	c := newCollector(1000)
	if err := walkArchive(context.Background(), zipPath, model.FileTypeZip, defaultOptions(Options{}), 0, c); err != nil {
		t.Fatalf("walkArchive: %v", err)
	}
	if !contains(c.features, "jar:demo-lib") {
		t.Fatalf("expected manifest-derived feature in %v", c.features)
	}
	if !contains(c.features, "some_unique_class_marker_string_value") {
		t.Fatalf("expected src/App.class's bare feature text (no archive prefix) in %v", c.features)
	}
	if got := c.sources["some_unique_class_marker_string_value"]; got != "src/App.class" {
		t.Fatalf("expected the feature's source to be tracked as src/App.class, got %q", got)
	}
}

func TestWalkArchiveRecursesIntoNestedZip(t *testing.T) {
	dir := t.TempDir()
	innerPath := filepath.Join(dir, "inner.zip")
	writeTestZip(t, innerPath, map[string]string{
		"payload.txt": "deeply_nested_marker_string",
	})
	inner, err := os.ReadFile(innerPath)
	if err != nil {
		t.Fatalf("read inner zip: %v", err)
	}

	outerPath := filepath.Join(dir, "outer.zip")
	f, err := os.Create(outerPath)
	if err != nil {
		t.Fatalf("create outer zip: %v", err)
	}
	zw := zip.NewWriter(f)
	w, err := zw.Create("nested/inner.zip")
	if err != nil {
		t.Fatalf("zip.Create: %v", err)
	}
	if _, err := w.Write(inner); err != nil {
		t.Fatalf("write nested zip: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close outer zip: %v", err)
	}
	f.Close()

	c := newCollector(1000)
	if err := walkArchive(context.Background(), outerPath, model.FileTypeZip, defaultOptions(Options{}), 0, c); err != nil {
		t.Fatalf("walkArchive: %v", err)
	}
	if !contains(c.features, "deeply_nested_marker_string") {
		t.Fatalf("expected nested member's bare content to surface, got %v", c.features)
	}
	if got := c.sources["deeply_nested_marker_string"]; got != "payload.txt" {
		t.Fatalf("expected the nested feature's source to be tracked as payload.txt, got %q", got)
	}
}

func TestWalkArchiveDetectsZipWrappingSingleNativeBinary(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "app.apk")
	writeTestZip(t, zipPath, map[string]string{
		"lib/arm64-v8a/libfoo.so": "\x7fELFjunkbytesfollowinghere",
	})

	c := newCollector(1000)
	if err := walkArchive(context.Background(), zipPath, model.FileTypeZip, defaultOptions(Options{}), 0, c); err != nil {
		t.Fatalf("walkArchive: %v", err)
	}
	if !c.nativeContainer {
		t.Fatal("expected a ZIP wrapping a single native binary member to set nativeContainer")
	}
}

func TestWalkArchiveDoesNotFlagZipWithMultipleMembers(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "app.apk")
	writeTestZip(t, zipPath, map[string]string{
		"lib/arm64-v8a/libfoo.so": "\x7fELFjunkbytesfollowinghere",
		"classes.dex":             "dex\nsome_other_content",
	})

	c := newCollector(1000)
	if err := walkArchive(context.Background(), zipPath, model.FileTypeZip, defaultOptions(Options{}), 0, c); err != nil {
		t.Fatalf("walkArchive: %v", err)
	}
	if c.nativeContainer {
		t.Fatal("expected a ZIP with more than one member to never set nativeContainer")
	}
}

func TestWalkArchiveDoesNotFlagZipWithSingleNonNativeMember(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "app.jar")
	writeTestZip(t, zipPath, map[string]string{
		"README.txt": "just_some_plain_text",
	})

	c := newCollector(1000)
	if err := walkArchive(context.Background(), zipPath, model.FileTypeZip, defaultOptions(Options{}), 0, c); err != nil {
		t.Fatalf("walkArchive: %v", err)
	}
	if c.nativeContainer {
		t.Fatal("expected a ZIP whose single member isn't native to never set nativeContainer")
	}
}

func TestWalkArchiveRespectsMaxDepth(t *testing.T) {
	dir := t.TempDir()
	innerPath := filepath.Join(dir, "inner.zip")
	writeTestZip(t, innerPath, map[string]string{"payload.txt": "should_not_be_seen_marker"})
	inner, err := os.ReadFile(innerPath)
	if err != nil {
		t.Fatalf("read inner zip: %v", err)
	}

	outerPath := filepath.Join(dir, "outer.zip")
	f, err := os.Create(outerPath)
	if err != nil {
		t.Fatalf("create outer zip: %v", err)
	}
	zw := zip.NewWriter(f)
	w, _ := zw.Create("nested/inner.zip")
	w.Write(inner)
	zw.Close()
	f.Close()

	opts := Options{MaxDepth: 0, MaxArchiveMembers: 1000}
	c := newCollector(1000)
	if err := walkArchive(context.Background(), outerPath, model.FileTypeZip, opts, 0, c); err != nil {
		t.Fatalf("walkArchive: %v", err)
	}
	if contains(c.features, "should_not_be_seen_marker") {
		t.Fatalf("expected recursion to stop at MaxDepth, got %v", c.features)
	}
}
