// Package store implements the signature store: a single-file, indexed
// database of components, patterns, an inverted pattern index
// (exact and n-gram), and per-component LSH digests. It is the engine's
// one process-wide shared resource — a single read-write handle that
// matching only reads through, with Import serialized by a filesystem lock.
package store

import (
	"context"

	"github.com/binarysniffer/binarysniffer/pkg/lsh"
	"github.com/binarysniffer/binarysniffer/pkg/model"
)

// ExactHit is one exact-pattern match returned by LookupExact.
type ExactHit struct {
	ComponentID int64
	Confidence  float64
}

// ContainsHit is one substring-pattern match returned by LookupContains.
type ContainsHit struct {
	ComponentID int64
	Pattern     string
	Confidence  float64
}

// ComponentDigest pairs a component with its optional LSH digest, used by
// the fuzzy matcher's nearest-signature scan.
type ComponentDigest struct {
	Component model.Component
	Digest    lsh.Digest
}

// ImportSummary reports the outcome of importing a directory of signature
// files.
type ImportSummary struct {
	FilesProcessed    int
	FilesRejected     int
	ComponentsWritten int
	PatternsWritten   int
	DigestsWritten    int
	Warnings          []string
}

// Status is the store's status summary: counts and last import time.
type Status struct {
	ComponentCount int64
	PatternCount   int64
	LastImportUnix int64 // 0 when never imported
}

// Store is the read/write handle onto the signature database. Matching
// code should only ever call the read methods; Import is reserved for the
// offline ingest workflow and takes an exclusive lock for its duration.
type Store interface {
	// LookupExact returns every component whose pattern equals s exactly.
	LookupExact(ctx context.Context, s string) ([]ExactHit, error)
	// LookupContains returns every pattern that occurs as a substring of
	// s, verified with a literal contains check after n-gram pruning.
	LookupContains(ctx context.Context, s string) ([]ContainsHit, error)
	// Component returns the row of the component with the given id, used
	// by context filtering and result enrichment.
	Component(ctx context.Context, id int64) (model.Component, error)
	// PatternCount returns the number of patterns owned by a component,
	// used by the direct matcher's score normalization.
	PatternCount(ctx context.Context, componentID int64) (int, error)
	// Digests streams every component with a stored LSH digest, in
	// ascending component-id order, for the fuzzy matcher's linear scan.
	Digests(ctx context.Context) ([]ComponentDigest, error)
	// Import bulk-loads every *.json signature file in dir. Re-running it
	// against an unchanged directory leaves components, patterns and
	// digests as they were; the recorded last-import time is rewritten on
	// every run, so the store is not byte-identical afterwards.
	Import(ctx context.Context, dir string) (ImportSummary, error)
	// Status reports the store's summary counters.
	Status(ctx context.Context) (Status, error)
	// Close releases the underlying database handle.
	Close() error
}
