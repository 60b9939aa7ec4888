// Package extract turns a file on disk into the flat feature strings the
// matchers consume: format sniffing, binary string scanning, structured
// symbol tables, source-code identifiers, and transparent archive descent.
package extract

import (
	"context"
	"os"

	"github.com/binarysniffer/binarysniffer/pkg/errors"
	"github.com/binarysniffer/binarysniffer/pkg/model"
)

// Options bounds a single extraction pass.
type Options struct {
	// MaxFeatures caps the number of features returned; extraction aborts
	// early once the cap is hit rather than discarding after the fact.
	MaxFeatures int
	// MaxDepth bounds nested-archive recursion.
	MaxDepth int
	// MaxArchiveMembers bounds the number of members walked per archive.
	MaxArchiveMembers int
	// MaxFileSize, when non-zero, causes Extract to return a
	// ResourceExceeded error before reading a file larger than this.
	MaxFileSize int64
}

// Result is what one call to Extract produces.
type Result struct {
	FileType model.FileType
	Features []string
	// FeatureSources maps a feature to the archive-relative path of the
	// member it was pulled from. Only features extracted from inside an
	// archive carry an entry; top-level features have none.
	FeatureSources map[string]string
	// NativeContainer is true when the input's top-level container is
	// itself a native executable/library (model.IsNativeContainer), or
	// is a ZIP whose only member is one — the two triggers the direct
	// matcher's native-vs-mobile context filter reacts to.
	NativeContainer bool
	// Truncated is true when MaxFeatures was hit before extraction
	// finished; the caller should annotate the analysis result.
	Truncated bool
}

func defaultOptions(o Options) Options {
	if o.MaxFeatures <= 0 {
		o.MaxFeatures = 150000
	}
	if o.MaxDepth <= 0 {
		o.MaxDepth = 5
	}
	if o.MaxArchiveMembers <= 0 {
		o.MaxArchiveMembers = 10000
	}
	return o
}

// Extract dispatches path to the appropriate feature extractor and returns
// its flattened feature list. It never returns a partial Result together
// with an error. Hitting MaxFeatures is not an error: the Result carries
// whatever was collected before the cap was hit and Truncated is set.
func Extract(ctx context.Context, path string, opts Options) (Result, error) {
	opts = defaultOptions(opts)

	info, err := os.Stat(path)
	if err != nil {
		return Result{}, errors.New(errors.KindIO, path, err)
	}
	if opts.MaxFileSize > 0 && info.Size() > opts.MaxFileSize {
		return Result{}, errors.Newf(errors.KindResourceExceeded, path, "input is %d bytes, ceiling is %d", info.Size(), opts.MaxFileSize)
	}
	if info.Size() == 0 {
		return Result{FileType: model.FileTypeEmpty}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return Result{}, errors.New(errors.KindIO, path, err)
	}
	defer f.Close()

	header := make([]byte, 512)
	n, _ := f.Read(header)
	header = header[:n]
	if _, err := f.Seek(0, 0); err != nil {
		return Result{}, errors.New(errors.KindIO, path, err)
	}

	kind := Sniff(header, path)

	c := newCollector(opts.MaxFeatures)

	switch kind {
	case model.FileTypeELF, model.FileTypePE, model.FileTypeMachO, model.FileTypeAR, model.FileTypeDEX:
		if err := extractSymbols(f, kind, c); err != nil {
			return Result{}, err
		}
		if err := scanStrings(f, c); err != nil {
			return Result{}, err
		}
	case model.FileTypeZip, model.FileTypeTar, model.FileTypeZstd, model.FileTypeDeb, model.FileTypeCPIO:
		if err := walkArchive(ctx, path, kind, opts, 0, c); err != nil {
			return Result{}, err
		}
	case model.FileTypeSource:
		if err := extractSource(f, path, c); err != nil {
			return Result{}, err
		}
	default:
		if err := scanStrings(f, c); err != nil {
			return Result{}, err
		}
	}

	native := model.IsNativeContainer(kind) || c.nativeContainer
	return Result{FileType: kind, Features: c.features, FeatureSources: c.sources, NativeContainer: native, Truncated: c.truncated}, nil
}

// collector accumulates features up to a cap, tracking truncation.
type collector struct {
	features  []string
	sources   map[string]string // feature -> archive member path, first-seen wins
	cap       int
	truncated bool
	// nativeContainer is set by walkArchive when the top-level input is a
	// ZIP whose only member is a native executable/library — the
	// "ZIP-only wrapper" sub-case of the native-container context filter.
	nativeContainer bool
}

func newCollector(cap int) *collector { return &collector{cap: cap} }

// add appends f, returning false once the cap has been reached so callers
// can stop scanning early.
func (c *collector) add(f string) bool {
	return c.addWithSource(f, "")
}

// addWithSource is add, additionally recording source as f's origin path
// (e.g. an archive member name) the first time f is seen.
func (c *collector) addWithSource(f, source string) bool {
	if len(c.features) >= c.cap {
		c.truncated = true
		return false
	}
	c.features = append(c.features, f)
	if source != "" {
		if _, ok := c.sources[f]; !ok {
			if c.sources == nil {
				c.sources = make(map[string]string)
			}
			c.sources[f] = source
		}
	}
	return true
}

func (c *collector) full() bool { return len(c.features) >= c.cap }
