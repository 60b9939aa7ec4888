package engine

import (
	"fmt"

	"github.com/binarysniffer/binarysniffer/pkg/hashutil"
	"github.com/binarysniffer/binarysniffer/pkg/lsh"
	"github.com/binarysniffer/binarysniffer/pkg/model"
)

// fuzzyContentHash computes a fuzzy digest of the raw file content for the
// optional file metadata hashes. No TLSH or ssdeep implementation exists
// anywhere in the retrieval pack, so this reuses the locality-sensitive
// hash already built for signature matching, run over consecutive,
// non-overlapping 8-byte windows of the raw content (a trailing partial
// window is dropped) instead of extracted features. It is not
// wire-compatible with TLSH; it exists to give two similar inputs a small
// Hamming distance under the same lsh.Distance the store already uses.
func fuzzyContentHash(data []byte) string {
	if len(data) < hashutil.FuzzyHashMinLength {
		return ""
	}
	const window = 8
	windows := make([]string, 0, len(data)/window+1)
	for i := 0; i+window <= len(data); i += window {
		windows = append(windows, string(data[i:i+window]))
	}
	digest, ok := lsh.Compute(windows)
	if !ok {
		return ""
	}
	return fmt.Sprintf("%x", digest[:])
}

func toModelHashes(h hashutil.FileHashes, fuzzy string) *model.FileHashes {
	return &model.FileHashes{
		MD5:    h.MD5,
		SHA1:   h.SHA1,
		SHA256: h.SHA256,
		TLSH:   fuzzy,
	}
}
