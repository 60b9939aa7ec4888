package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/binarysniffer/binarysniffer/pkg/event"
	"github.com/binarysniffer/binarysniffer/pkg/model"
)

func TestAnalyzeSourceFileDirectMatch(t *testing.T) {
	fs := newFakeStore()
	fs.addComponent(1, model.Component{ID: 1, Name: "libpng"}, []model.Pattern{
		{Text: "png_create_read_struct", Confidence: 0.9},
		{Text: "png_write_struct", Confidence: 0.9},
	})

	dir := t.TempDir()
	path := filepath.Join(dir, "reader.c")
	src := "int png_create_read_struct() { return 0; }\nint png_write_struct() { return 0; }\n"
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	eng := New(fs)
	opts := DefaultOptions()
	opts.FuzzyEnabled = false
	result := eng.Analyze(context.Background(), path, opts)

	if result.Error != nil {
		t.Fatalf("unexpected error: %+v", result.Error)
	}
	if result.FileType != model.FileTypeSource {
		t.Fatalf("expected source file type, got %v", result.FileType)
	}
	if len(result.Matches) != 1 || result.Matches[0].Component.Name != "libpng" {
		t.Fatalf("expected a single libpng match, got %+v", result.Matches)
	}
}

func TestAnalyzeMissingFileYieldsIOError(t *testing.T) {
	fs := newFakeStore()
	eng := New(fs)
	result := eng.Analyze(context.Background(), filepath.Join(t.TempDir(), "missing.bin"), DefaultOptions())
	if result.Error == nil {
		t.Fatal("expected an error for a missing input file")
	}
}

func TestAnalyzeEmptyFileYieldsNoMatches(t *testing.T) {
	fs := newFakeStore()
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.bin")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	eng := New(fs)
	result := eng.Analyze(context.Background(), path, DefaultOptions())
	if result.Error != nil {
		t.Fatalf("unexpected error: %+v", result.Error)
	}
	if result.FileType != model.FileTypeEmpty || len(result.Matches) != 0 {
		t.Fatalf("expected an empty, matchless result, got %+v", result)
	}
}

func TestAnalyzeDirectoryCoversEveryFileInLexicographicKeys(t *testing.T) {
	fs := newFakeStore()
	fs.addComponent(1, model.Component{ID: 1, Name: "libpng"}, []model.Pattern{
		{Text: "png_create_read_struct", Confidence: 0.9},
		{Text: "png_write_struct", Confidence: 0.9},
	})

	dir := t.TempDir()
	files := map[string]string{
		"a.c": "int png_create_read_struct() {}\nint png_write_struct() {}\n",
		"b.c": "int unrelated_function() {}\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write fixture: %v", err)
		}
	}

	eng := New(fs)
	opts := DefaultOptions()
	opts.FuzzyEnabled = false
	results, err := eng.AnalyzeDirectory(context.Background(), dir, opts)
	if err != nil {
		t.Fatalf("AnalyzeDirectory() error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d: %+v", len(results), results)
	}
	a := results[filepath.Join(dir, "a.c")]
	if len(a.Matches) != 1 {
		t.Fatalf("expected a.c to match libpng, got %+v", a)
	}
	b := results[filepath.Join(dir, "b.c")]
	if len(b.Matches) != 0 {
		t.Fatalf("expected b.c to have no matches, got %+v", b)
	}
}

func TestAnalyzeDirectoryPublishesFileAnalyzedEvents(t *testing.T) {
	fs := newFakeStore()
	dir := t.TempDir()
	for _, name := range []string{"a.c", "b.c"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("int f() {}\n"), 0o644); err != nil {
			t.Fatalf("write fixture: %v", err)
		}
	}

	var mu sync.Mutex
	seen := map[string]bool{}
	var wg sync.WaitGroup
	wg.Add(2)

	bus := event.New()
	bus.Subscribe(FileAnalyzed, func(_ context.Context, data any) {
		ev, ok := data.(FileAnalyzedEvent)
		if !ok {
			return
		}
		mu.Lock()
		seen[ev.Path] = true
		mu.Unlock()
		wg.Done()
	})

	eng := New(fs)
	opts := DefaultOptions()
	opts.FuzzyEnabled = false
	opts.Events = bus

	if _, err := eng.AnalyzeDirectory(context.Background(), dir, opts); err != nil {
		t.Fatalf("AnalyzeDirectory() error: %v", err)
	}

	waitOrTimeout(t, &wg, time.Second)

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 {
		t.Fatalf("expected an event for each of 2 files, got %v", seen)
	}
}

// buildARFixture returns a minimal ar-format static-library file containing
// a single member named memberName with the given body. extractAR degrades
// gracefully on malformed/synthetic ar input (unlike the ELF/PE/Mach-O/DEX
// parsers, which hard-fail), so ar is the only format that lets a test
// synthesize a top-level native container by hand.
func buildARFixture(memberName string, body []byte) []byte {
	var buf []byte
	buf = append(buf, []byte("!<arch>\n")...)

	pad := func(s string, width int) string {
		for len(s) < width {
			s += " "
		}
		return s
	}
	header := pad(memberName, 16) // name
	header += pad("0", 12)        // mtime
	header += pad("0", 6)         // uid
	header += pad("0", 6)         // gid
	header += pad("0", 8)         // mode
	header += pad(fmt.Sprintf("%d", len(body)), 10) // size
	header += "`\n"                                 // end marker, 2 bytes

	buf = append(buf, []byte(header)...)
	buf = append(buf, body...)
	if len(body)%2 == 1 {
		buf = append(buf, 0)
	}
	return buf
}

func TestAnalyzeNativeContainerFiltersMobileEcosystemByDefault(t *testing.T) {
	fs := newFakeStore()
	fs.addComponent(1, model.Component{ID: 1, Name: "android-sdk", Ecosystem: model.EcosystemAndroid}, []model.Pattern{
		{Text: "member:android_marker", Confidence: 0.9},
	})

	dir := t.TempDir()
	path := filepath.Join(dir, "libstatic.a")
	if err := os.WriteFile(path, buildARFixture("android_marker", []byte("TEST")), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	eng := New(fs)
	opts := DefaultOptions()
	opts.FuzzyEnabled = false
	opts.Threshold = 0.1

	result := eng.Analyze(context.Background(), path, opts)
	if result.Error != nil {
		t.Fatalf("unexpected error: %+v", result.Error)
	}
	if result.FileType != model.FileTypeAR {
		t.Fatalf("expected an ar file type, got %v", result.FileType)
	}
	if len(result.Matches) != 0 {
		t.Fatalf("expected the android-ecosystem match to be filtered by the native-container context filter, got %+v", result.Matches)
	}

	opts.DisableContextFilter = true
	result = eng.Analyze(context.Background(), path, opts)
	if result.Error != nil {
		t.Fatalf("unexpected error: %+v", result.Error)
	}
	if len(result.Matches) != 1 || result.Matches[0].Component.Name != "android-sdk" {
		t.Fatalf("expected the android-sdk match with the context filter disabled, got %+v", result.Matches)
	}
}

func waitOrTimeout(t *testing.T, wg *sync.WaitGroup, timeout time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		t.Fatal("timed out waiting for events")
	}
}
