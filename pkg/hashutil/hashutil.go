// Package hashutil implements content-addressed hashing with a fixed seed
// shared by every hash operation, plus the optional file-metadata hashes.
package hashutil

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"io"

	"github.com/cespare/xxhash/v2"
)

// Seed is the fixed hash seed used everywhere the engine needs a
// content-addressed digest (n-gram keys, LSH bands). Fixing it is what
// makes the store and the fuzzy matcher reproducible across processes.
const Seed uint64 = 0x62696e6172795f31 // "binary_1"

// FuzzyHashMinLength is the minimum input length (in canonicalized feature
// payload bytes) required before a fuzzy digest is computed.
const FuzzyHashMinLength = 256

// FileHashes are the plain content hashes of a file's optional metadata.
type FileHashes struct {
	MD5    string
	SHA1   string
	SHA256 string
}

// HashReader computes MD5/SHA1/SHA256 over r in a single pass.
func HashReader(r io.Reader) (FileHashes, error) {
	hMD5 := md5.New()
	hSHA1 := sha1.New()
	hSHA256 := sha256.New()
	w := io.MultiWriter(hMD5, hSHA1, hSHA256)
	if _, err := io.Copy(w, r); err != nil {
		return FileHashes{}, err
	}
	return FileHashes{
		MD5:    hex.EncodeToString(hMD5.Sum(nil)),
		SHA1:   hex.EncodeToString(hSHA1.Sum(nil)),
		SHA256: hex.EncodeToString(hSHA256.Sum(nil)),
	}, nil
}

// Hash64 returns the seeded xxhash of s, used for n-gram index keys and as
// the underlying hash family for the fuzzy matcher's LSH bands.
func Hash64(s string) uint64 {
	d := xxhash.New()
	// Fold the fixed seed into the digest so all callers of Hash64 are
	// pinned to the same content-addressing space regardless of process.
	var seedBuf [8]byte
	putUint64(seedBuf[:], Seed)
	_, _ = d.Write(seedBuf[:])
	_, _ = d.Write([]byte(s))
	return d.Sum64()
}

func putUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}
