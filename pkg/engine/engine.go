// Package engine is the façade: it wires the extractor, normalizer, and
// matchers into the two operations callers actually use, applies the
// concurrency and resource model, and turns internal errors into the
// per-file result shape.
package engine

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/binarysniffer/binarysniffer/pkg/errors"
	"github.com/binarysniffer/binarysniffer/pkg/extract"
	"github.com/binarysniffer/binarysniffer/pkg/hashutil"
	"github.com/binarysniffer/binarysniffer/pkg/match"
	"github.com/binarysniffer/binarysniffer/pkg/model"
	"github.com/binarysniffer/binarysniffer/pkg/normalize"
	"github.com/binarysniffer/binarysniffer/pkg/store"
)

// Engine binds a signature store to the analysis operations. It carries no
// mutable state beyond the store handle; every call is independently
// configured by the Options it's given.
type Engine struct {
	st store.Store
}

// New wraps an already-open store. The store is a process-wide read-only
// resource; Engine never closes it — the caller owns its lifecycle.
func New(st store.Store) *Engine {
	return &Engine{st: st}
}

// Analyze runs the full pipeline against a single file: dispatch, extract,
// normalize, match, merge. It never returns a Go error for a per-file
// failure; those are attached to the returned AnalysisResult's Error field
// so a caller iterating many files never has to special-case one failing.
func (e *Engine) Analyze(ctx context.Context, path string, opts Options) model.AnalysisResult {
	start := time.Now()
	result := model.AnalysisResult{Path: path}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := extract.Extract(ctx, path, extract.Options{
		MaxFeatures:       featureCap(opts),
		MaxDepth:          recursionCap(opts),
		MaxArchiveMembers: fileCountCap(opts),
		MaxFileSize:       opts.SizeCeiling,
	})
	if err != nil {
		result.Error = toResultError(err, ctx)
		result.WallTime = time.Since(start)
		return result
	}
	result.FileType = res.FileType

	norm := normalize.Normalize(res.Features, res.FeatureSources, normalize.Options{Cap: featureCap(opts)})
	result.FeaturesExtracted = len(norm.Features)

	if opts.IncludeHashes || opts.IncludeFuzzyHashes {
		if h, err := hashFile(path); err == nil {
			if !opts.IncludeHashes {
				h.MD5, h.SHA1, h.SHA256 = "", "", ""
			}
			if !opts.IncludeFuzzyHashes {
				h.TLSH = ""
			}
			result.Hashes = h
		}
	}

	native := res.NativeContainer || opts.NativeContainer
	matches, err := e.match(ctx, norm.Features, norm.Sources, native, opts)
	if err != nil {
		result.Error = toResultError(err, ctx)
		result.WallTime = time.Since(start)
		return result
	}
	result.Matches = matches
	result.WallTime = time.Since(start)
	return result
}

func (e *Engine) match(ctx context.Context, features []string, sources map[string]string, native bool, opts Options) ([]model.ComponentMatch, error) {
	var direct map[int64]match.DirectHit
	var err error
	direct, err = match.Direct(ctx, features, sources, e.st, match.DirectOptions{
		MinMatches:           minMatches(opts),
		Threshold:            threshold(opts),
		NativeContainer:      native,
		DisableContextFilter: opts.DisableContextFilter,
	})
	if err != nil {
		return nil, err
	}

	fuzzy := map[int64]match.FuzzyHit{}
	if opts.FuzzyEnabled {
		fuzzy, err = match.Fuzzy(ctx, features, e.st, match.FuzzyOptions{
			DistanceThreshold: fuzzyThreshold(opts),
		})
		if err != nil {
			return nil, err
		}
	}

	merged, err := match.Merge(ctx, e.st, direct, fuzzy, match.MergeOptions{
		Threshold:        threshold(opts),
		CollapseFamilies: opts.CollapseFamilies,
	})
	if err != nil || len(opts.PatternGlobs) == 0 {
		return merged, err
	}
	kept := merged[:0]
	for _, m := range merged {
		for _, g := range opts.PatternGlobs {
			if ok, _ := filepath.Match(g, m.Component.Name); ok {
				kept = append(kept, m)
				break
			}
		}
	}
	return kept, nil
}

func hashFile(path string) (*model.FileHashes, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	h, err := hashutil.HashReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return toModelHashes(h, fuzzyContentHash(data)), nil
}

func toResultError(err error, ctx context.Context) *model.ResultError {
	if ctx.Err() != nil {
		return &model.ResultError{Kind: string(errors.KindTimeout), Cause: "analysis exceeded its wall-clock timeout"}
	}
	kind := errors.KindOf(err)
	if kind == "" {
		kind = errors.KindIO
	}
	return &model.ResultError{Kind: string(kind), Cause: err.Error()}
}

// AnalyzeDirectory dispatches every regular file under root to a bounded
// worker pool and returns a map keyed by path. One file's failure never
// aborts the batch; only a StoreError does, since every worker depends on
// the same store.
func (e *Engine) AnalyzeDirectory(ctx context.Context, root string, opts Options) (map[string]model.AnalysisResult, error) {
	batchID := uuid.NewString()
	log.Info().Str("batch_id", batchID).Str("root", root).Msg("starting directory analysis")

	var paths []string
	walkErr := filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != root && isExcludedDir(d.Name()) {
				return filepath.SkipDir
			}
			if !opts.Recursive && p != root {
				return filepath.SkipDir
			}
			return nil
		}
		paths = append(paths, p)
		return nil
	})
	if walkErr != nil {
		return nil, errors.New(errors.KindIO, root, walkErr)
	}
	sort.Strings(paths)

	results := make(map[string]model.AnalysisResult, len(paths))
	resultsCh := make(chan model.AnalysisResult, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.workers())

	for _, p := range paths {
		p := p
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			r := e.Analyze(gctx, p, opts)
			resultsCh <- r
			if opts.Events != nil {
				opts.Events.Publish(gctx, FileAnalyzed, FileAnalyzedEvent{
					BatchID: batchID,
					Path:    r.Path,
					Matches: len(r.Matches),
					Err:     r.Error != nil,
				})
			}
			// A StoreError is fatal to the whole invocation: every worker
			// depends on the same store, so one worker's store failure
			// cancels the rest rather than being scoped to its file.
			if r.Error != nil && r.Error.Kind == string(errors.KindStore) {
				return errors.Newf(errors.KindStore, p, "%s", r.Error.Cause)
			}
			return nil
		})
	}

	waitErr := g.Wait()
	close(resultsCh)
	for r := range resultsCh {
		results[r.Path] = r
	}
	log.Info().Str("batch_id", batchID).Int("files", len(results)).Msg("directory analysis complete")
	if waitErr != nil && errors.Is(waitErr, errors.KindStore) {
		return results, waitErr
	}
	return results, nil
}

// excludedDirs are directory names AnalyzeDirectory never descends into:
// version-control metadata, Python virtualenvs, and dependency trees
// that would otherwise burn the whole scan's feature/file budget on
// content nobody meant to fingerprint.
var excludedDirs = map[string]bool{
	".git": true, ".svn": true, ".hg": true, ".bzr": true,
	"__pycache__": true, "node_modules": true,
	"venv": true, ".venv": true, "env": true, ".env": true,
	"virtualenv": true, ".virtualenv": true,
}

func isExcludedDir(name string) bool {
	if excludedDirs[name] {
		return true
	}
	return strings.HasPrefix(name, ".")
}

func featureCap(o Options) int {
	if o.FeatureCap > 0 {
		return o.FeatureCap
	}
	return DefaultFeatureCap
}

func recursionCap(o Options) int {
	if o.RecursionCap > 0 {
		return o.RecursionCap
	}
	return DefaultRecursionCap
}

func fileCountCap(o Options) int {
	if o.FileCountCap > 0 {
		return o.FileCountCap
	}
	return DefaultFileCountCap
}

func minMatches(o Options) int {
	if o.MinMatches > 0 {
		return o.MinMatches
	}
	return DefaultMinMatches
}

func threshold(o Options) float64 {
	if o.Threshold > 0 {
		return o.Threshold
	}
	return DefaultThreshold
}

func fuzzyThreshold(o Options) int {
	if o.FuzzyThreshold > 0 {
		return o.FuzzyThreshold
	}
	return DefaultFuzzyThreshold
}
