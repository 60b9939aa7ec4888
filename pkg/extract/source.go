package extract

import (
	"bufio"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/binarysniffer/binarysniffer/pkg/errors"
)

// langRules is a small per-language production table: each pattern's first
// capture group is the identifier emitted as a feature, a regex-driven
// extraction path used in place of a full per-language parser.
type langRules struct {
	patterns []*regexp.Regexp
}

var sourceLangs = map[string]langRules{
	".go": {patterns: []*regexp.Regexp{
		regexp.MustCompile(`\bfunc\s+(?:\([^)]*\)\s+)?(\w+)\s*\(`),
		regexp.MustCompile(`\btype\s+(\w+)\s+(?:struct|interface)\b`),
		regexp.MustCompile(`\bconst\s+(\w+)\s*=`),
		regexp.MustCompile(`^\s*"([^"]+)"\s*$`),
	}},
	".py": {patterns: []*regexp.Regexp{
		regexp.MustCompile(`\bdef\s+(\w+)\s*\(`),
		regexp.MustCompile(`\bclass\s+(\w+)\s*[:(]`),
		regexp.MustCompile(`^\s*(?:from\s+(\S+)\s+import|import\s+(\S+))`),
	}},
	".java": {patterns: []*regexp.Regexp{
		regexp.MustCompile(`\bclass\s+(\w+)\b`),
		regexp.MustCompile(`\binterface\s+(\w+)\b`),
		regexp.MustCompile(`\benum\s+(\w+)\b`),
		regexp.MustCompile(`\bimport\s+([\w.]+)\s*;`),
		regexp.MustCompile(`\bstatic\s+final\s+\w+\s+(\w+)\s*=`),
	}},
	".kt": {patterns: []*regexp.Regexp{
		regexp.MustCompile(`\bfun\s+(\w+)\s*\(`),
		regexp.MustCompile(`\bclass\s+(\w+)\b`),
		regexp.MustCompile(`\bimport\s+([\w.]+)`),
	}},
	".c": {patterns: []*regexp.Regexp{
		regexp.MustCompile(`\b(\w+)\s*\([^;{]*\)\s*\{`),
		regexp.MustCompile(`#define\s+(\w+)`),
		regexp.MustCompile(`\bstruct\s+(\w+)\s*\{`),
	}},
	".cpp": {patterns: []*regexp.Regexp{
		regexp.MustCompile(`\b(\w+)\s*\([^;{]*\)\s*\{`),
		regexp.MustCompile(`#define\s+(\w+)`),
		regexp.MustCompile(`\bclass\s+(\w+)\b`),
		regexp.MustCompile(`\bstruct\s+(\w+)\s*\{`),
	}},
	".rs": {patterns: []*regexp.Regexp{
		regexp.MustCompile(`\bfn\s+(\w+)\s*\(`),
		regexp.MustCompile(`\bstruct\s+(\w+)\b`),
		regexp.MustCompile(`\benum\s+(\w+)\b`),
		regexp.MustCompile(`\buse\s+([\w:]+)`),
	}},
	".js": {patterns: []*regexp.Regexp{
		regexp.MustCompile(`\bfunction\s+(\w+)\s*\(`),
		regexp.MustCompile(`\bclass\s+(\w+)\b`),
		regexp.MustCompile(`\brequire\(['"]([^'"]+)['"]\)`),
	}},
	".ts": {patterns: []*regexp.Regexp{
		regexp.MustCompile(`\bfunction\s+(\w+)\s*\(`),
		regexp.MustCompile(`\bclass\s+(\w+)\b`),
		regexp.MustCompile(`\binterface\s+(\w+)\b`),
		regexp.MustCompile(`\bimport\s+.*\bfrom\s+['"]([^'"]+)['"]`),
	}},
	".cs": {patterns: []*regexp.Regexp{
		regexp.MustCompile(`\bclass\s+(\w+)\b`),
		regexp.MustCompile(`\binterface\s+(\w+)\b`),
		regexp.MustCompile(`\busing\s+([\w.]+)\s*;`),
	}},
	".swift": {patterns: []*regexp.Regexp{
		regexp.MustCompile(`\bfunc\s+(\w+)\s*\(`),
		regexp.MustCompile(`\bclass\s+(\w+)\b`),
		regexp.MustCompile(`\bstruct\s+(\w+)\b`),
		regexp.MustCompile(`\bimport\s+(\w+)`),
	}},
	".rb": {patterns: []*regexp.Regexp{
		regexp.MustCompile(`\bdef\s+(\w+)`),
		regexp.MustCompile(`\bclass\s+(\w+)\b`),
		regexp.MustCompile(`\brequire\s+['"]([^'"]+)['"]`),
	}},
	".php": {patterns: []*regexp.Regexp{
		regexp.MustCompile(`\bfunction\s+(\w+)\s*\(`),
		regexp.MustCompile(`\bclass\s+(\w+)\b`),
	}},
	".m": {patterns: []*regexp.Regexp{
		regexp.MustCompile(`@interface\s+(\w+)`),
		regexp.MustCompile(`@implementation\s+(\w+)`),
		regexp.MustCompile(`#import\s+[<"]([^>"]+)[>"]`),
	}},
}

func init() {
	sourceLangs[".h"] = sourceLangs[".c"]
	sourceLangs[".hpp"] = sourceLangs[".cpp"]
	sourceLangs[".cc"] = sourceLangs[".cpp"]
}

// extractSource applies the per-language regex table to each line of the
// file, emitting every captured identifier as a feature.
func extractSource(r io.Reader, path string, c *collector) error {
	rules, ok := sourceLangs[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return nil
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := sc.Text()
		for _, re := range rules.patterns {
			m := re.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			for _, g := range m[1:] {
				if g == "" {
					continue
				}
				if !c.add(g) {
					return nil
				}
			}
		}
	}
	if err := sc.Err(); err != nil {
		return errors.New(errors.KindIO, path, err)
	}
	return nil
}
