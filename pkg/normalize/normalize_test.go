package normalize

import (
	"strings"
	"testing"
)

func TestNormalizeDedupePreservesOrder(t *testing.T) {
	raw := []string{"libpng_read", "libjpeg_dec", "libpng_read", "libjpeg_dec", "zlib_inflate"}
	got := Normalize(raw, nil, Options{}).Features
	want := []string{"libpng_read", "libjpeg_dec", "zlib_inflate"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestNormalizeDropsShortFeatures(t *testing.T) {
	got := Normalize([]string{"a", "ab", "abc", "abcd", "abcde"}, nil, Options{}).Features
	for _, f := range got {
		if len(f) < MinFeatureLength {
			t.Errorf("feature %q shorter than minimum", f)
		}
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 surviving features, got %v", got)
	}
}

func TestNormalizeTruncatesLongFeatures(t *testing.T) {
	long := strings.Repeat("x", MaxFeatureLength+100)
	got := Normalize([]string{long}, nil, Options{}).Features
	if len(got) != 1 || len(got[0]) != MaxFeatureLength {
		t.Fatalf("expected truncation to %d, got len=%d", MaxFeatureLength, len(got[0]))
	}
}

func TestNormalizeStopList(t *testing.T) {
	got := Normalize([]string{"init", "av_init", "error", "process"}, nil, Options{}).Features
	want := map[string]bool{"av_init": true}
	for _, f := range got {
		if !want[f] {
			t.Errorf("unexpected surviving feature %q", f)
		}
	}
	if len(got) != 1 {
		t.Fatalf("expected only av_init to survive, got %v", got)
	}
}

func TestNormalizeCapEnforcedAfterDedup(t *testing.T) {
	raw := make([]string, 0, 20)
	for i := 0; i < 10; i++ {
		raw = append(raw, "feat_dup_marker")
	}
	for i := 0; i < 10; i++ {
		raw = append(raw, "feat_unique_"+string(rune('a'+i)))
	}
	got := Normalize(raw, nil, Options{Cap: 5}).Features
	if len(got) != 5 {
		t.Fatalf("expected cap of 5, got %d", len(got))
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	raw := []string{"feat_a", "feat_b", "feat_a", "init", "feat_c"}
	once := Normalize(raw, nil, Options{}).Features
	twice := Normalize(once, nil, Options{}).Features
	if len(once) != len(twice) {
		t.Fatalf("not idempotent: %v vs %v", once, twice)
	}
	for i := range once {
		if once[i] != twice[i] {
			t.Fatalf("not idempotent: %v vs %v", once, twice)
		}
	}
}
