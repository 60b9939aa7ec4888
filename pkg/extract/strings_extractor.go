package extract

import (
	"io"
	"regexp"
	"unicode/utf16"

	"github.com/binarysniffer/binarysniffer/pkg/errors"
)

// fourCCOpcodeRe matches ISOBMFF-style four-character-code codec strings
// ("avc1.640028", "mp4a.40.2", "hvc1.1.6.L93.B0") that turn up in MP4/APK
// container metadata: a four-character opcode, a dot, and one or more
// dot-separated parameter segments.
var fourCCOpcodeRe = regexp.MustCompile(`\b[A-Za-z0-9]{4}\.[A-Za-z0-9]+(?:\.[A-Za-z0-9]+)*\b`)

// mimeTypeRe matches a bare "type/subtype" MIME token, the shape used by
// manifest and metadata strings (content types, package MIME types).
var mimeTypeRe = regexp.MustCompile(`\b[A-Za-z0-9][A-Za-z0-9!#$&\-^_.+]*/[A-Za-z0-9][A-Za-z0-9!#$&\-^_.+]*\b`)

const (
	minRunLength   = 4
	maxRunLength   = 512
	maxStringCount = 50000
	// maxScanBytes bounds how much of a single file the strings extractor
	// will read into memory; larger inputs are still symbol-parsed when
	// recognized, they just skip the raw-strings pass beyond this point.
	maxScanBytes = 64 << 20
)

func isPrintableByte(b byte) bool {
	return b >= 0x20 && b < 0x7f
}

// scanStrings scans r for runs of printable ASCII and UTF-16LE characters,
// feeding each into c. It stops early once either the string-count cap or
// the collector's feature cap is reached.
func scanStrings(r io.Reader, c *collector) error {
	data, err := io.ReadAll(io.LimitReader(r, maxScanBytes))
	if err != nil {
		return errors.New(errors.KindIO, "", err)
	}

	count := 0
	if !scanASCIIRuns(data, c, &count) {
		return nil
	}
	scanUTF16LERuns(data, c, &count)
	return nil
}

func scanASCIIRuns(data []byte, c *collector, count *int) bool {
	start := -1
	emit := func(end int) bool {
		if start < 0 {
			return true
		}
		s := string(data[start:end])
		start = -1
		if !emitString(s, c, count) {
			return false
		}
		return emitSynthetic(s, c, count)
	}
	for i, b := range data {
		if isPrintableByte(b) {
			if start < 0 {
				start = i
			}
			if i-start+1 >= maxRunLength {
				if !emit(i + 1) {
					return false
				}
			}
			continue
		}
		if !emit(i) {
			return false
		}
	}
	return emit(len(data))
}

// scanUTF16LERuns performs a second pass over the same buffer for
// null-interleaved ASCII (the common UTF-16LE encoding of Windows PE
// string tables and resources). Both byte alignments are scanned, so a run
// that starts at an odd offset is found too.
func scanUTF16LERuns(data []byte, c *collector, count *int) {
	var run []uint16
	flush := func() bool {
		if len(run) < minRunLength {
			run = run[:0]
			return true
		}
		s := string(utf16.Decode(run))
		run = run[:0]
		if !emitString(s, c, count) {
			return false
		}
		return emitSynthetic(s, c, count)
	}
	for align := 0; align < 2; align++ {
		for i := align; i+1 < len(data); i += 2 {
			lo, hi := data[i], data[i+1]
			if hi == 0 && isPrintableByte(lo) {
				run = append(run, uint16(lo))
				if len(run) >= maxRunLength {
					if !flush() {
						return
					}
				}
				continue
			}
			if !flush() {
				return
			}
		}
		if !flush() {
			return
		}
	}
}

func emitString(s string, c *collector, count *int) bool {
	if len(s) < minRunLength {
		return true
	}
	if len(s) > maxRunLength {
		s = s[:maxRunLength]
	}
	*count++
	if *count > maxStringCount {
		return false
	}
	return c.add(s)
}

// emitSynthetic re-scans an already-emitted printable run for recognized
// byte-aligned identifier shapes the signature store is more likely to
// key on than the surrounding run: a four-character-code codec opcode
// pulled out of a longer dotted string, and a MIME type substring pulled
// out of a longer sentence. It shares emitString's count/cap accounting,
// so it can itself trigger early abort.
func emitSynthetic(s string, c *collector, count *int) bool {
	for _, m := range fourCCOpcodeRe.FindAllString(s, -1) {
		if !emitString(m[:4], c, count) {
			return false
		}
	}
	for _, m := range mimeTypeRe.FindAllString(s, -1) {
		if !emitString(m, c, count) {
			return false
		}
	}
	return true
}
