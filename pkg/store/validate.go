package store

import "strings"

// minPatternLength is the general minimum pattern length; prefixPatternLength
// is the shorter allowance granted to library-prefix patterns ending in "_".
const (
	minPatternLength       = 6
	prefixPatternLength    = 4
	prefixPatternSuffix    = "_"
)

// stopWords is the curated set of ~140 generic programming tokens the
// pattern validator rejects. A pattern exactly equal to one of these
// (case-insensitive) is too generic to be useful evidence of a specific
// component.
var stopWords = buildStopWordSet([]string{
	"init", "process", "buffer", "data", "error", "config", "test", "path",
	"bool", "exit", "copy", "main", "value", "state", "result", "count",
	"index", "start", "close", "open", "read", "write", "file", "name",
	"type", "list", "item", "node", "next", "size", "get", "set", "add",
	"remove", "delete", "update", "create", "destroy", "free", "alloc",
	"malloc", "calloc", "realloc", "memcpy", "memset", "memmove", "strcpy",
	"strcat", "strlen", "strcmp", "sprintf", "printf", "scanf", "fopen",
	"fclose", "fread", "fwrite", "fprintf", "fflush", "fseek", "ftell",
	"exit_code", "return", "callback", "handler", "listener", "context",
	"session", "request", "response", "client", "server", "socket",
	"connect", "disconnect", "send", "receive", "recv", "bind", "listen",
	"accept", "thread", "mutex", "lock", "unlock", "queue", "stack",
	"array", "vector", "string", "object", "class", "struct", "enum",
	"interface", "module", "package", "import", "export", "public",
	"private", "protected", "static", "final", "abstract", "virtual",
	"override", "constructor", "destructor", "method", "function", "param",
	"argument", "flag", "option", "default", "unknown", "true", "false",
	"null", "none", "empty", "valid", "invalid", "check", "verify",
	"validate", "parse", "format", "encode", "decode", "compress",
	"decompress", "load", "save", "run", "stop", "pause", "resume",
})

func buildStopWordSet(words []string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[strings.ToLower(w)] = struct{}{}
	}
	return m
}

// primitiveTypeNames covers the language-agnostic primitive spellings that
// are too generic to identify a component on their own.
var primitiveTypeNames = buildStopWordSet([]string{
	"int", "int8", "int16", "int32", "int64",
	"uint", "uint8", "uint16", "uint32", "uint64",
	"float", "float32", "float64", "double", "char", "byte", "short",
	"long", "bool", "boolean", "void", "string", "size_t", "wchar_t",
})

// ValidationIssue describes why a candidate pattern was rejected.
type ValidationIssue struct {
	Pattern string
	Reason  string
}

// patternValidator rejects, at ingest time, patterns that are too generic
// to be useful signal. It runs exactly once per candidate pattern during
// import; the matcher never re-validates.
type patternValidator struct {
	seenInFile map[string]struct{}
}

func newPatternValidator() *patternValidator {
	return &patternValidator{seenInFile: make(map[string]struct{})}
}

// Validate reports whether text is an acceptable pattern, and if not, why.
// The duplicate check is scoped to the signature file currently being
// imported; call Reset between files.
func (v *patternValidator) Validate(text string) (ok bool, reason string) {
	if _, dup := v.seenInFile[text]; dup {
		return false, "duplicate pattern within signature file"
	}
	if len(text) < minPatternLength {
		if !(strings.HasSuffix(text, prefixPatternSuffix) && len(text) >= prefixPatternLength) {
			return false, "pattern shorter than minimum length"
		}
	}
	if _, stopped := stopWords[strings.ToLower(text)]; stopped {
		return false, "pattern is a stop-listed generic token"
	}
	if _, primitive := primitiveTypeNames[strings.ToLower(text)]; primitive {
		return false, "pattern is a primitive type name"
	}
	if isGenericLowercaseWord(text) {
		return false, "pattern is an unstructured lowercase word"
	}

	v.seenInFile[text] = struct{}{}
	return true, ""
}

// Reset clears the per-file duplicate tracking, to be called before
// importing each new signature file.
func (v *patternValidator) Reset() {
	v.seenInFile = make(map[string]struct{})
}

// isGenericLowercaseWord reports whether s is all-letters, all-lowercase,
// and free of the structural punctuation ('_', '/', ':') or mixed case
// that would make it a specific-enough identifier.
func isGenericLowercaseWord(s string) bool {
	hasStructure := false
	for _, r := range s {
		switch {
		case r == '_' || r == '/' || r == ':':
			hasStructure = true
		case r >= 'A' && r <= 'Z':
			hasStructure = true
		case r >= 'a' && r <= 'z':
			// fine
		default:
			// digits, punctuation, non-ASCII: treated as structure too,
			// since a plain generic word is letters-only.
			hasStructure = true
		}
	}
	return !hasStructure
}

// ClipConfidence clips a source-file confidence value to the accepted
// range [0.5, 1.0].
func ClipConfidence(c float64) float64 {
	if c < 0.5 {
		return 0.5
	}
	if c > 1.0 {
		return 1.0
	}
	return c
}
