package match

import (
	"context"
	"strings"

	"github.com/binarysniffer/binarysniffer/pkg/lsh"
	"github.com/binarysniffer/binarysniffer/pkg/model"
	"github.com/binarysniffer/binarysniffer/pkg/store"
)

// fakeStore is a minimal in-memory store.Store used to unit-test the
// matchers without a real SQLite file.
type fakeStore struct {
	components map[int64]model.Component
	patterns   map[int64][]model.Pattern // componentID -> patterns
	digests    []store.ComponentDigest
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		components: make(map[int64]model.Component),
		patterns:   make(map[int64][]model.Pattern),
	}
}

func (s *fakeStore) addComponent(id int64, c model.Component, patterns []model.Pattern) {
	s.components[id] = c
	s.patterns[id] = patterns
}

func (s *fakeStore) addDigest(id int64, features []string) {
	d, ok := lsh.Compute(features)
	if !ok {
		return
	}
	s.digests = append(s.digests, store.ComponentDigest{Component: s.components[id], Digest: d})
}

func (s *fakeStore) LookupExact(_ context.Context, text string) ([]store.ExactHit, error) {
	var hits []store.ExactHit
	for id, pats := range s.patterns {
		for _, p := range pats {
			if p.Text == text {
				hits = append(hits, store.ExactHit{ComponentID: id, Confidence: p.Confidence})
			}
		}
	}
	return hits, nil
}

func (s *fakeStore) LookupContains(_ context.Context, text string) ([]store.ContainsHit, error) {
	var hits []store.ContainsHit
	for id, pats := range s.patterns {
		for _, p := range pats {
			if len(p.Text) >= 3 && strings.Contains(text, p.Text) {
				hits = append(hits, store.ContainsHit{ComponentID: id, Pattern: p.Text, Confidence: p.Confidence})
			}
		}
	}
	return hits, nil
}

func (s *fakeStore) Component(_ context.Context, id int64) (model.Component, error) {
	return s.components[id], nil
}

func (s *fakeStore) PatternCount(_ context.Context, id int64) (int, error) {
	return len(s.patterns[id]), nil
}

func (s *fakeStore) Digests(_ context.Context) ([]store.ComponentDigest, error) {
	return s.digests, nil
}

func (s *fakeStore) Import(_ context.Context, _ string) (store.ImportSummary, error) {
	return store.ImportSummary{}, nil
}

func (s *fakeStore) Status(_ context.Context) (store.Status, error) {
	return store.Status{}, nil
}

func (s *fakeStore) Close() error { return nil }
