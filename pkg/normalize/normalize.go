// Package normalize implements the feature normalizer: it takes the raw,
// concatenated output of the feature extractors and turns it into the
// canonical, bounded sequence the matchers rely on. This package owns the
// "no surprises" contract — everything downstream
// sees a deduplicated, size-capped, insertion-ordered feature set.
package normalize

import "strings"

const (
	// MaxFeatureLength truncates any single feature longer than this.
	MaxFeatureLength = 512
	// MinFeatureLength drops any feature shorter than this after truncation.
	MinFeatureLength = 4
	// DefaultCap is the default maximum number of features kept per analysis.
	DefaultCap = 150000
)

// defaultStopList is the small set of ultra-generic tokens the normalizer
// drops outright unless the token is "structured" (contains an underscore
// or a non-ASCII byte, so real prefixes like "av_" survive while bare
// English words like "init" do not).
var defaultStopList = map[string]struct{}{
	"init": {}, "process": {}, "buffer": {}, "data": {}, "error": {},
	"config": {}, "test": {}, "path": {}, "bool": {}, "exit": {},
	"copy": {}, "main": {}, "value": {}, "state": {}, "result": {},
	"count": {}, "index": {}, "start": {}, "close": {}, "open": {},
	"read": {}, "write": {}, "file": {}, "name": {}, "type": {},
	"list": {}, "item": {}, "node": {}, "next": {}, "size": {},
}

// Options configures a normalization pass.
type Options struct {
	// Cap bounds the number of features kept, applied after
	// deduplication so excess features are discarded from the tail.
	// Zero means DefaultCap.
	Cap int
	// StopList overrides the default generic-token stop-list. Nil means
	// use defaultStopList.
	StopList map[string]struct{}
}

func (o Options) cap() int {
	if o.Cap <= 0 {
		return DefaultCap
	}
	return o.Cap
}

func (o Options) stopList() map[string]struct{} {
	if o.StopList != nil {
		return o.StopList
	}
	return defaultStopList
}

// Result is the outcome of a normalization pass.
type Result struct {
	Features []string
	// Sources carries forward the surviving subset of the extractor's
	// feature-to-source-path map (see extract.Result.FeatureSources),
	// re-keyed to each feature's post-truncation text. Nil when the input
	// carried no source annotations.
	Sources map[string]string
	// Truncated is true when the input had more features than the cap
	// allowed; the caller should annotate the result as resource-exceeded.
	Truncated bool
}

// Normalize deduplicates raw (stable, first-seen order preserved),
// truncates over-length features, drops under-length and stop-listed
// features, and enforces the cap. It is idempotent: Normalize(Normalize(f))
// == Normalize(f). sources optionally maps a pre-truncation raw feature to
// the archive member path it came from; entries for features that survive
// normalization are carried into the result under their final text.
func Normalize(raw []string, sources map[string]string, opts Options) Result {
	stop := opts.stopList()
	cap_ := opts.cap()

	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	var outSources map[string]string
	if len(sources) > 0 {
		outSources = make(map[string]string, len(sources))
	}

	for _, rawF := range raw {
		src, hasSrc := sources[rawF]
		f := truncate(rawF)
		if len(f) < MinFeatureLength {
			continue
		}
		if isStopped(f, stop) {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
		if hasSrc {
			if _, exists := outSources[f]; !exists {
				outSources[f] = src
			}
		}
	}

	truncated := false
	if len(out) > cap_ {
		for _, dropped := range out[cap_:] {
			delete(outSources, dropped)
		}
		out = out[:cap_]
		truncated = true
	}

	return Result{Features: out, Sources: outSources, Truncated: truncated}
}

func truncate(f string) string {
	if len(f) <= MaxFeatureLength {
		return f
	}
	return f[:MaxFeatureLength]
}

func isStopped(f string, stop map[string]struct{}) bool {
	lower := strings.ToLower(f)
	if _, ok := stop[lower]; !ok {
		return false
	}
	// Structured survivors: an underscore or any non-ASCII byte means the
	// token is more specific than the bare English word it collides with.
	for i := 0; i < len(f); i++ {
		if f[i] == '_' || f[i] >= 0x80 {
			return false
		}
	}
	return true
}
