package engine

import (
	"runtime"
	"time"

	"github.com/binarysniffer/binarysniffer/pkg/event"
)

// FileAnalyzed is the event name published on Options.Events after each
// file AnalyzeDirectory processes. The payload is a FileAnalyzedEvent.
const FileAnalyzed = "engine.file.analyzed"

// FileAnalyzedEvent is the payload published to FileAnalyzed.
type FileAnalyzedEvent struct {
	BatchID string
	Path    string
	Matches int
	Err     bool
}

// Default option values per the configuration table; these are the values
// DefaultOptions() returns before any override is applied.
const (
	DefaultThreshold      = 0.5
	DefaultFuzzyThreshold = 70
	DefaultMinMatches     = 1
	DefaultFeatureCap     = 150000
	DefaultTimeout        = 60 * time.Second
	DefaultRecursionCap   = 5
	DefaultFileCountCap   = 10000
)

// Options configures a single call to Analyze or AnalyzeDirectory. There is
// no mutable state outside of an Options value: every worker reads the same
// immutable struct.
type Options struct {
	// Threshold is the minimum confidence a component match must clear to
	// be reported.
	Threshold float64
	// FuzzyEnabled toggles the fuzzy (LSH) matcher.
	FuzzyEnabled bool
	// FuzzyThreshold is the Hamming distance at or above which the fuzzy
	// matcher discards a candidate.
	FuzzyThreshold int
	// MinMatches is the minimum number of distinct patterns a component
	// must hit before its confidence is even computed.
	MinMatches int
	// FeatureCap bounds the number of features carried into matching.
	FeatureCap int
	// SizeCeiling, when non-zero, causes files larger than this many bytes
	// to be skipped outright.
	SizeCeiling int64
	// Timeout bounds a single call to Analyze.
	Timeout time.Duration
	// RecursionCap bounds nested-archive descent.
	RecursionCap int
	// FileCountCap bounds the number of archive members walked per file.
	FileCountCap int
	// Workers is the size of the bounded worker pool AnalyzeDirectory uses.
	// Zero means hardware concurrency.
	Workers int
	// IncludeHashes attaches MD5/SHA1/SHA256 to the result.
	IncludeHashes bool
	// IncludeFuzzyHashes attaches a TLSH-style fuzzy hash to the result.
	IncludeFuzzyHashes bool
	// PatternGlobs, when non-empty, restricts matching to components whose
	// name matches at least one of the given glob patterns.
	PatternGlobs []string
	// DisableContextFilter turns off the native/mobile ecosystem filter
	// applied by the direct matcher.
	DisableContextFilter bool
	// NativeContainer forces the native-container context filter trigger
	// on even when Analyze's own detection (top-level ELF/PE/Mach-O/ar,
	// or a ZIP wrapping a single native binary) says otherwise. Analyze
	// ORs this with its own detection; it never has to be set for the
	// filter to activate on an ordinary native binary.
	NativeContainer bool
	// CollapseFamilies, when true, keeps only the highest-confidence match
	// per declared component Family instead of reporting every family
	// member that independently matched. Off by default.
	CollapseFamilies bool
	// Recursive enables directory descent in AnalyzeDirectory.
	Recursive bool
	// Events, when set, receives a FileAnalyzed event after every file
	// AnalyzeDirectory completes. Analyze never publishes to it directly;
	// only the batch operation has a natural progress notion.
	Events *event.Bus
}

// DefaultOptions returns the documented default configuration.
func DefaultOptions() Options {
	return Options{
		Threshold:      DefaultThreshold,
		FuzzyEnabled:   true,
		FuzzyThreshold: DefaultFuzzyThreshold,
		MinMatches:     DefaultMinMatches,
		FeatureCap:     DefaultFeatureCap,
		Timeout:        DefaultTimeout,
		RecursionCap:   DefaultRecursionCap,
		FileCountCap:   DefaultFileCountCap,
		Workers:        runtime.GOMAXPROCS(0),
		Recursive:      true,
	}
}

// workers returns the effective worker-pool size, applying the
// hardware-concurrency default when the caller left it unset.
func (o Options) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return runtime.GOMAXPROCS(0)
}
