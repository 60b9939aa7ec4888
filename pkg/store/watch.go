package store

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/binarysniffer/binarysniffer/pkg/model"
)

// Watched wraps a Store opened from a file path and transparently swaps in
// a freshly reopened handle when that file is replaced on disk, e.g. an
// operator drops in a newly rebuilt signature database while the process
// keeps running. Every Store method is forwarded to whatever handle is
// currently live.
type Watched struct {
	path    string
	current atomic.Pointer[Store]

	watcher       *fsnotify.Watcher
	debounceDelay time.Duration
	logger        zerolog.Logger

	mu            sync.Mutex
	debounceTimer *time.Timer
}

// OpenWatched opens the store at path and starts watching it for external
// replacement. Callers still receive a plain Store; Start must be run in
// its own goroutine to actually observe filesystem events.
func OpenWatched(ctx context.Context, path string, logger zerolog.Logger) (*Watched, error) {
	st, err := Open(ctx, path)
	if err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		st.Close()
		return nil, err
	}

	w := &Watched{
		path:          path,
		watcher:       fw,
		debounceDelay: 250 * time.Millisecond,
		logger:        logger.With().Str("component", "store.watch").Logger(),
	}
	w.current.Store(&st)
	return w, nil
}

// Start begins watching the store file's directory for changes. It blocks
// until ctx is canceled, so run it as `go w.Start(ctx)`.
func (w *Watched) Start(ctx context.Context) error {
	dir := filepath.Dir(w.path)
	file := filepath.Base(w.path)

	if err := w.watcher.Add(dir); err != nil {
		w.logger.Error().Err(err).Str("dir", dir).Msg("failed to watch signature store directory")
		return err
	}
	defer w.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != file {
				continue
			}
			if ev.Op&fsnotify.Write == fsnotify.Write || ev.Op&fsnotify.Create == fsnotify.Create {
				w.scheduleReload(ctx)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn().Err(err).Msg("signature store watcher error")
		}
	}
}

func (w *Watched) scheduleReload(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debounceDelay, func() {
		if err := w.reload(ctx); err != nil {
			w.logger.Warn().Err(err).Msg("failed to reload signature store")
			return
		}
		w.logger.Info().Str("path", w.path).Msg("signature store reloaded")
	})
}

func (w *Watched) reload(ctx context.Context) error {
	fresh, err := Open(ctx, w.path)
	if err != nil {
		return err
	}
	old := w.current.Swap(&fresh)
	if old != nil {
		return (*old).Close()
	}
	return nil
}

func (w *Watched) delegate() Store { return *w.current.Load() }

func (w *Watched) LookupExact(ctx context.Context, s string) ([]ExactHit, error) {
	return w.delegate().LookupExact(ctx, s)
}

func (w *Watched) LookupContains(ctx context.Context, s string) ([]ContainsHit, error) {
	return w.delegate().LookupContains(ctx, s)
}

func (w *Watched) Component(ctx context.Context, id int64) (model.Component, error) {
	return w.delegate().Component(ctx, id)
}

func (w *Watched) PatternCount(ctx context.Context, componentID int64) (int, error) {
	return w.delegate().PatternCount(ctx, componentID)
}

func (w *Watched) Digests(ctx context.Context) ([]ComponentDigest, error) {
	return w.delegate().Digests(ctx)
}

func (w *Watched) Import(ctx context.Context, dir string) (ImportSummary, error) {
	return w.delegate().Import(ctx, dir)
}

func (w *Watched) Status(ctx context.Context) (Status, error) {
	return w.delegate().Status(ctx)
}

// Close stops the watcher's debounce timer and closes the live handle. The
// watcher goroutine itself exits when its context is canceled.
func (w *Watched) Close() error {
	w.mu.Lock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.mu.Unlock()
	return w.delegate().Close()
}
