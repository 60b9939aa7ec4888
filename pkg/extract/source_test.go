package extract

import (
	"strings"
	"testing"
)

func TestExtractSourceGo(t *testing.T) {
	src := `package main

import "fmt"

const MaxRetries = 3

type Client struct{}

func (c *Client) Connect() error {
	return nil
}
`
	c := newCollector(100)
	if err := extractSource(strings.NewReader(src), "client.go", c); err != nil {
		t.Fatalf("extractSource: %v", err)
	}
	if !contains(c.features, "Connect") {
		t.Fatalf("expected Connect func name in %v", c.features)
	}
	if !contains(c.features, "MaxRetries") {
		t.Fatalf("expected MaxRetries const name in %v", c.features)
	}
}

func TestExtractSourcePython(t *testing.T) {
	src := "import requests\n\nclass Session:\n    def get(self, url):\n        pass\n"
	c := newCollector(100)
	if err := extractSource(strings.NewReader(src), "session.py", c); err != nil {
		t.Fatalf("extractSource: %v", err)
	}
	if !contains(c.features, "Session") {
		t.Fatalf("expected Session class name in %v", c.features)
	}
	if !contains(c.features, "get") {
		t.Fatalf("expected get method name in %v", c.features)
	}
}

func TestExtractSourceUnknownExtensionIsANoop(t *testing.T) {
	c := newCollector(100)
	if err := extractSource(strings.NewReader("whatever"), "notes.txt", c); err != nil {
		t.Fatalf("extractSource: %v", err)
	}
	if len(c.features) != 0 {
		t.Fatalf("expected no features for an unrecognized extension, got %v", c.features)
	}
}

func TestExtractSourceHeaderAliasesCRules(t *testing.T) {
	src := "struct png_struct {\n    int x;\n};\n"
	c := newCollector(100)
	if err := extractSource(strings.NewReader(src), "png.h", c); err != nil {
		t.Fatalf("extractSource: %v", err)
	}
	if !contains(c.features, "png_struct") {
		t.Fatalf("expected png_struct in %v", c.features)
	}
}
