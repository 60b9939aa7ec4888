package match

import (
	"context"
	"sort"

	"github.com/binarysniffer/binarysniffer/pkg/lsh"
	"github.com/binarysniffer/binarysniffer/pkg/store"
)

// FuzzyOptions configures a fuzzy-matcher pass.
type FuzzyOptions struct {
	// DistanceThreshold discards candidates at or beyond this Hamming
	// distance. Default 70.
	DistanceThreshold int
	// ConfidenceCurve overrides the default distance-to-confidence
	// mapping. Nil uses lsh.DefaultConfidenceCurve.
	ConfidenceCurve []lsh.ConfidenceBreakpoint
}

func (o FuzzyOptions) distanceThreshold() int {
	if o.DistanceThreshold <= 0 {
		return 70
	}
	return o.DistanceThreshold
}

// FuzzyHit is one component's fuzzy-match evidence.
type FuzzyHit struct {
	Distance   int
	Confidence float64
}

// Fuzzy computes the query digest for a normalized feature set and scans
// every stored component digest for the nearest match. It emits nothing
// when the feature payload is below the LSH minimum length; the
// scan order is the store's ascending component-id order so results are
// reproducible regardless of any underlying map iteration.
func Fuzzy(ctx context.Context, features []string, st store.Store, opts FuzzyOptions) (map[int64]FuzzyHit, error) {
	queryDigest, ok := lsh.Compute(features)
	if !ok {
		return nil, nil
	}

	digests, err := st.Digests(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(digests, func(i, j int) bool { return digests[i].Component.ID < digests[j].Component.ID })

	threshold := opts.distanceThreshold()
	results := make(map[int64]FuzzyHit)
	for _, cd := range digests {
		if cd.Digest.IsZero() {
			continue
		}
		distance := lsh.Distance(queryDigest, cd.Digest)
		if distance >= threshold {
			continue
		}
		results[cd.Component.ID] = FuzzyHit{
			Distance:   distance,
			Confidence: lsh.Confidence(distance, opts.ConfidenceCurve),
		}
	}
	return results, nil
}
