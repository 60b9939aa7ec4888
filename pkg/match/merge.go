package match

import (
	"context"
	"sort"

	"github.com/Masterminds/semver/v3"

	"github.com/binarysniffer/binarysniffer/pkg/model"
	"github.com/binarysniffer/binarysniffer/pkg/store"
)

// MergeOptions configures the result merger.
type MergeOptions struct {
	// TopN truncates the merged list to its N highest-ranked matches.
	// Zero means unbounded (return every post-threshold match).
	TopN int
	// Threshold discards merged matches whose final confidence falls
	// below it. The direct and fuzzy matchers apply their own internal
	// thresholds (raw score normalization, distance cutoff); this catches
	// fuzzy-only matches whose curve-derived confidence still lands below
	// the caller's global bar.
	Threshold float64
	// CollapseFamilies, when true, keeps only the highest-confidence match
	// per non-empty Component.Family instead of reporting every family
	// member that independently matched. Off by default: two components
	// that legitimately share a pattern (the same exact pattern text
	// mapped to both, e.g. sibling library versions) are meant to surface
	// as independent detections, and collapsing them can suppress a true
	// positive the caller had every reason to see.
	CollapseFamilies bool
}

// Merge unifies direct and fuzzy hits into one ranked, deduplicated match
// list. Every component id present in either input map appears at most
// once in the output, in (confidence descending, name ascending) order.
func Merge(ctx context.Context, st store.Store, direct map[int64]DirectHit, fuzzy map[int64]FuzzyHit, opts MergeOptions) ([]model.ComponentMatch, error) {
	ids := make(map[int64]struct{}, len(direct)+len(fuzzy))
	for id := range direct {
		ids[id] = struct{}{}
	}
	for id := range fuzzy {
		ids[id] = struct{}{}
	}

	ordered := make([]int64, 0, len(ids))
	for id := range ids {
		ordered = append(ordered, id)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i] < ordered[j] })

	matches := make([]model.ComponentMatch, 0, len(ordered))
	for _, id := range ordered {
		comp, err := st.Component(ctx, id)
		if err != nil {
			return nil, err
		}

		d, hasDirect := direct[id]
		f, hasFuzzy := fuzzy[id]

		confidence := 0.0
		method := model.MethodDirect
		evidence := model.Evidence{FuzzyDistance: -1}

		switch {
		case hasDirect && hasFuzzy:
			confidence = maxFloat(d.Confidence, f.Confidence)
			method = model.MethodDirectFuzzy
			evidence.PatternCount = d.HitCount
			evidence.SourcePaths = d.SourcePaths
			evidence.FuzzyDistance = f.Distance
		case hasDirect:
			confidence = d.Confidence
			method = model.MethodDirect
			evidence.PatternCount = d.HitCount
			evidence.SourcePaths = d.SourcePaths
		case hasFuzzy:
			confidence = f.Confidence
			method = model.MethodFuzzy
			evidence.FuzzyDistance = f.Distance
		}

		if comp.Version == "" {
			comp.Version = model.UnknownVersion
		}

		matches = append(matches, model.ComponentMatch{
			Component:   comp,
			Confidence:  confidence,
			MatchMethod: method,
			Evidence:    evidence,
		})
	}

	if opts.Threshold > 0 {
		kept := matches[:0]
		for _, m := range matches {
			if m.Confidence >= opts.Threshold {
				kept = append(kept, m)
			}
		}
		matches = kept
	}

	if opts.CollapseFamilies {
		matches = collapseFamilies(matches)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Confidence != matches[j].Confidence {
			return matches[i].Confidence > matches[j].Confidence
		}
		return matches[i].Component.Name < matches[j].Component.Name
	})

	if opts.TopN > 0 && len(matches) > opts.TopN {
		matches = matches[:opts.TopN]
	}
	return matches, nil
}

// collapseFamilies keeps a single representative per non-empty Family,
// used only when MergeOptions.CollapseFamilies opts in. Ties on confidence
// are broken by the higher semantic version, falling back to the
// first-seen match when neither version parses.
func collapseFamilies(matches []model.ComponentMatch) []model.ComponentMatch {
	best := make(map[string]int, len(matches)) // family -> index into kept
	kept := make([]model.ComponentMatch, 0, len(matches))

	for _, m := range matches {
		if m.Component.Family == "" {
			kept = append(kept, m)
			continue
		}
		if idx, ok := best[m.Component.Family]; ok {
			if bWinsFamily(kept[idx], m) {
				kept[idx] = m
			}
			continue
		}
		best[m.Component.Family] = len(kept)
		kept = append(kept, m)
	}
	return kept
}

// bWinsFamily reports whether b should replace a as the kept representative.
func bWinsFamily(a, b model.ComponentMatch) bool {
	if a.Confidence != b.Confidence {
		return b.Confidence > a.Confidence
	}
	av, aerr := semver.NewVersion(a.Component.Version)
	bv, berr := semver.NewVersion(b.Component.Version)
	if aerr == nil && berr == nil && !av.Equal(bv) {
		return bv.GreaterThan(av)
	}
	return false
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// EnsureContext is a small helper the engine façade uses to make sure a
// nil context never reaches the matchers.
func EnsureContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
