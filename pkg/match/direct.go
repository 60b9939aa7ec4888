// Package match implements the progressive two-path matching engine: the
// direct (exact + substring pattern) matcher, the fuzzy (LSH) matcher, and
// the result merger. A separate bloom-filter tier is intentionally absent
// — the store's n-gram inverted index gives the same pruning without
// probabilistic false positives, keeping the whole pipeline deterministic.
package match

import (
	"context"
	"sort"

	"github.com/binarysniffer/binarysniffer/pkg/model"
	"github.com/binarysniffer/binarysniffer/pkg/store"
)

// containsMinFeatureLength is the minimum feature length before the direct
// matcher also attempts a substring lookup.
const containsMinFeatureLength = 8

// substringWeightFactor discounts a substring hit relative to an exact hit
// ("w_sub = 0.7 × pattern.confidence").
const substringWeightFactor = 0.7

// DirectOptions configures a direct-matcher pass.
type DirectOptions struct {
	// MinMatches is the minimum distinct-pattern hit count a component
	// needs to survive; components below it are discarded. Default 1.
	MinMatches int
	// Threshold is the minimum confidence a candidate needs to survive.
	// Default 0.5.
	Threshold float64
	// NativeContainer is true when the file's top-level container is a
	// native executable or library, activating the mobile-ecosystem
	// context filter.
	NativeContainer bool
	// DisableContextFilter turns off the native-vs-mobile heuristic
	// filter (see DESIGN.md's Open Questions: "an implementer should
	// expose a switch to disable them").
	DisableContextFilter bool
}

func (o DirectOptions) minMatches() int {
	if o.MinMatches <= 0 {
		return 1
	}
	return o.MinMatches
}

func (o DirectOptions) threshold() float64 {
	if o.Threshold <= 0 {
		return 0.5
	}
	return o.Threshold
}

// DirectHit is one component's aggregated direct-match evidence.
type DirectHit struct {
	Confidence      float64
	HitCount        int
	PatternsMatched []string // sorted, deterministic evidence list
	// SourcePaths lists, sorted, the archive-member paths (if any) of the
	// features that produced this component's hits.
	SourcePaths []string
}

type componentAgg struct {
	weights     map[string]float64 // pattern text -> best weight seen
	order       []string           // first-seen pattern order, for stable evidence
	sources     map[string]struct{}
	sourceOrder []string
}

func newComponentAgg() *componentAgg {
	return &componentAgg{weights: make(map[string]float64), sources: make(map[string]struct{})}
}

func (a *componentAgg) add(pattern string, weight float64) {
	if existing, ok := a.weights[pattern]; ok {
		if weight > existing {
			a.weights[pattern] = weight
		}
		return
	}
	a.weights[pattern] = weight
	a.order = append(a.order, pattern)
}

func (a *componentAgg) addSource(path string) {
	if path == "" {
		return
	}
	if _, ok := a.sources[path]; ok {
		return
	}
	a.sources[path] = struct{}{}
	a.sourceOrder = append(a.sourceOrder, path)
}

func (a *componentAgg) rawScore() float64 {
	var sum float64
	for _, w := range a.weights {
		sum += w
	}
	return sum
}

// Direct runs the direct matcher over a normalized, ordered feature set.
// Features must already be deduplicated and in first-seen order (the
// Feature Normalizer's contract) — Direct iterates them in that order so
// results are reproducible independent of any map's ambient order.
func Direct(ctx context.Context, features []string, sources map[string]string, st store.Store, opts DirectOptions) (map[int64]DirectHit, error) {
	aggs := make(map[int64]*componentAgg)
	var componentOrder []int64

	touch := func(id int64) *componentAgg {
		if a, ok := aggs[id]; ok {
			return a
		}
		a := newComponentAgg()
		aggs[id] = a
		componentOrder = append(componentOrder, id)
		return a
	}

	for _, f := range features {
		exact, err := st.LookupExact(ctx, f)
		if err != nil {
			return nil, err
		}
		for _, h := range exact {
			a := touch(h.ComponentID)
			a.add(f, h.Confidence)
			a.addSource(sources[f])
		}

		if len(f) >= containsMinFeatureLength {
			contains, err := st.LookupContains(ctx, f)
			if err != nil {
				return nil, err
			}
			for _, h := range contains {
				a := touch(h.ComponentID)
				a.add(h.Pattern, substringWeightFactor*h.Confidence)
				a.addSource(sources[f])
			}
		}
	}

	results := make(map[int64]DirectHit, len(aggs))
	for _, id := range componentOrder {
		agg := aggs[id]
		hitCount := len(agg.weights)
		if hitCount < opts.minMatches() {
			continue
		}

		if !opts.DisableContextFilter && opts.NativeContainer {
			comp, err := st.Component(ctx, id)
			if err != nil {
				return nil, err
			}
			if isMobileEcosystem(comp.Ecosystem) {
				continue
			}
		}

		patternCount, err := st.PatternCount(ctx, id)
		if err != nil {
			return nil, err
		}
		denominator := 0.15 * float64(patternCount)
		if denominator < 3 {
			denominator = 3
		}
		confidence := agg.rawScore() / denominator
		if confidence > 1.0 {
			confidence = 1.0
		}
		if confidence < opts.threshold() {
			continue
		}

		patterns := append([]string(nil), agg.order...)
		sort.Strings(patterns)

		var sourcePaths []string
		if len(agg.sourceOrder) > 0 {
			sourcePaths = append([]string(nil), agg.sourceOrder...)
			sort.Strings(sourcePaths)
		}

		results[id] = DirectHit{
			Confidence:      confidence,
			HitCount:        hitCount,
			PatternsMatched: patterns,
			SourcePaths:     sourcePaths,
		}
	}

	return results, nil
}

func isMobileEcosystem(e model.Ecosystem) bool {
	return e == model.EcosystemAndroid || e == model.EcosystemIOS
}
