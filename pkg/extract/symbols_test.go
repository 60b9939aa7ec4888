package extract

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/binarysniffer/binarysniffer/pkg/model"
)

// arMember builds one "!<arch>\n"-format member header plus its payload,
// padded to an even boundary as the format requires.
func arMember(name string, data []byte) []byte {
	header := make([]byte, 60)
	copy(header, name+"/")
	for i := len(name) + 1; i < 16; i++ {
		header[i] = ' '
	}
	for i := 16; i < 48; i++ {
		header[i] = ' '
	}
	sizeStr := []byte(padRight(itoa(len(data)), 10))
	copy(header[48:58], sizeStr)
	header[58] = '`'
	header[59] = '\n'

	out := append([]byte{}, header...)
	out = append(out, data...)
	if len(data)%2 == 1 {
		out = append(out, '\n')
	}
	return out
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

func padRight(s string, n int) string {
	for len(s) < n {
		s += " "
	}
	return s
}

func TestExtractARListsMemberNames(t *testing.T) {
	buf := []byte("!<arch>\n")
	buf = append(buf, arMember("hello.o", []byte("not-an-object-file-just-bytes"))...)
	buf = append(buf, arMember("world.o", []byte("more-plain-bytes-here"))...)

	path := filepath.Join(t.TempDir(), "libtest.a")
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open fixture: %v", err)
	}
	defer f.Close()

	c := newCollector(100)
	if err := extractAR(f, c); err != nil {
		t.Fatalf("extractAR: %v", err)
	}
	if !contains(c.features, "member:hello.o") {
		t.Fatalf("expected member:hello.o in %v", c.features)
	}
	if !contains(c.features, "member:world.o") {
		t.Fatalf("expected member:world.o in %v", c.features)
	}
}

func TestExtractSymbolsDispatchesByKind(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.elf")
	if err := os.WriteFile(path, []byte("\x7fELFnotreallyanelf"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open fixture: %v", err)
	}
	defer f.Close()

	if err := extractSymbols(f, model.FileTypeELF, newCollector(10)); err == nil {
		t.Fatal("expected a FormatError for a truncated ELF header")
	}
}

func TestAddSymbolEmitsMangledAndDemangledForms(t *testing.T) {
	c := newCollector(10)
	if !addSymbol(c, "__ZN3fooEv") {
		t.Fatal("addSymbol reported full before its cap")
	}
	if !contains(c.features, "__ZN3fooEv") {
		t.Fatalf("expected mangled form retained, got %v", c.features)
	}
	if !contains(c.features, "_ZN3fooEv") {
		t.Fatalf("expected demangled form present, got %v", c.features)
	}
}

func TestAddSymbolSkipsDemangleWhenUnchanged(t *testing.T) {
	c := newCollector(10)
	addSymbol(c, "plain_symbol")
	if len(c.features) != 1 {
		t.Fatalf("expected exactly one feature for an unmangled name, got %v", c.features)
	}
}
