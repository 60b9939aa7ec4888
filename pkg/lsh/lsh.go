// Package lsh implements the fuzzy-matching layer's locality-sensitive
// hash: a fixed-size digest over a canonical feature set such that
// similar feature sets produce digests at small Hamming distance.
// It is deliberately independent of the store and matcher packages so
// both can depend on it without a cycle: the store computes and persists
// a digest at ingest time, the matcher computes one per analysis and
// compares it against every stored digest.
package lsh

import (
	"math/bits"
	"math/rand"

	"github.com/binarysniffer/binarysniffer/pkg/hashutil"
)

// Size is the digest length in bytes.
const Size = 70

// bitCount is the digest's bit width: each bit is one simhash hyperplane.
const bitCount = Size * 8

// MinPayloadLength is the minimum canonicalized feature payload length (in
// bytes) required before a digest is computed; below it Compute returns
// (Digest{}, false).
const MinPayloadLength = hashutil.FuzzyHashMinLength

// Digest is a fixed-size locality-sensitive hash.
type Digest [Size]byte

// IsZero reports whether d is the zero digest (never computed).
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// PayloadLength returns the canonical byte length of features, matching
// how Compute measures the 256-byte minimum: the sum of feature lengths
// plus one separator byte per feature.
func PayloadLength(features []string) int {
	n := 0
	for _, f := range features {
		n += len(f) + 1
	}
	return n
}

// Compute derives the LSH digest of a canonical (deduplicated,
// insertion-ordered) feature set. Byte ordering and the hash family are
// fixed so that ingest-time and query-time computations over an identical
// feature set are byte-identical (the Determinism Layer's requirement).
// Compute returns ok=false when the payload is smaller than
// MinPayloadLength.
func Compute(features []string) (digest Digest, ok bool) {
	if PayloadLength(features) < MinPayloadLength {
		return Digest{}, false
	}

	var votes [bitCount]int
	for _, f := range features {
		// Each feature nominates a pseudo-random hyperplane sign for
		// every bit, seeded deterministically from its content hash so
		// the same feature always casts the same votes.
		seed := int64(hashutil.Hash64(f)) // #nosec G404 -- similarity hash, not crypto
		rng := rand.New(rand.NewSource(seed))
		for i := 0; i < bitCount; i++ {
			if rng.Int63()&1 == 1 {
				votes[i]++
			} else {
				votes[i]--
			}
		}
	}

	var d Digest
	for i := 0; i < bitCount; i++ {
		if votes[i] > 0 {
			d[i/8] |= 1 << uint(i%8)
		}
	}
	return d, true
}

// Distance is the Hamming distance between two digests: an integer where
// lower means more similar.
func Distance(a, b Digest) int {
	dist := 0
	for i := range a {
		dist += bits.OnesCount8(a[i] ^ b[i])
	}
	return dist
}

// ConfidenceBreakpoint is one (distance, confidence) anchor of the
// piecewise-linear distance-to-confidence mapping.
type ConfidenceBreakpoint struct {
	Distance   int
	Confidence float64
}

// DefaultConfidenceCurve maps distance to confidence: 0→1.00, ≤30→0.92,
// ≤70→0.78, ≤100→0.60, linearly interpolated between breakpoints. It is a
// policy tunable, not a fixed constant (see DESIGN.md's Open Questions).
var DefaultConfidenceCurve = []ConfidenceBreakpoint{
	{Distance: 0, Confidence: 1.00},
	{Distance: 30, Confidence: 0.92},
	{Distance: 70, Confidence: 0.78},
	{Distance: 100, Confidence: 0.60},
}

// Confidence maps a distance to a confidence value via linear
// interpolation across curve. Distances past the last breakpoint return
// the last breakpoint's confidence.
func Confidence(distance int, curve []ConfidenceBreakpoint) float64 {
	if len(curve) == 0 {
		curve = DefaultConfidenceCurve
	}
	if distance <= curve[0].Distance {
		return curve[0].Confidence
	}
	for i := 1; i < len(curve); i++ {
		if distance <= curve[i].Distance {
			lo, hi := curve[i-1], curve[i]
			span := hi.Distance - lo.Distance
			if span <= 0 {
				return hi.Confidence
			}
			frac := float64(distance-lo.Distance) / float64(span)
			return lo.Confidence + frac*(hi.Confidence-lo.Confidence)
		}
	}
	return curve[len(curve)-1].Confidence
}
