package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog/log"

	"github.com/binarysniffer/binarysniffer/pkg/lsh"
	binerrors "github.com/binarysniffer/binarysniffer/pkg/errors"
)

// signatureFile is the JSON document shape ingested at import time. Both
// the "signatures" and "patterns" keys are accepted as a historical alias;
// unknown keys are ignored by encoding/json's default decoding.
type signatureFile struct {
	Component struct {
		Name        string `json:"name"`
		Version     string `json:"version"`
		License     string `json:"license"`
		Publisher   string `json:"publisher"`
		Ecosystem   string `json:"ecosystem"`
		Description string `json:"description"`
		// Family is a signature author's declared grouping: forks,
		// vendored copies, or renamed releases of the same upstream
		// project that legitimately share patterns. Empty means
		// ungrouped.
		Family string `json:"family"`
	} `json:"component"`
	SignatureMetadata struct {
		Version             string  `json:"version"`
		ConfidenceThreshold float64 `json:"confidence_threshold"`
	} `json:"signature_metadata"`
	Signatures []patternEntry `json:"signatures"`
	Patterns   []patternEntry `json:"patterns"`
}

type patternEntry struct {
	Pattern    string  `json:"pattern"`
	Confidence float64 `json:"confidence"`
	Context    string  `json:"context"`
}

func (f signatureFile) entries() []patternEntry {
	if len(f.Signatures) > 0 {
		return f.Signatures
	}
	return f.Patterns
}

// Import bulk-loads every *.json signature file in dir. Files are
// processed in lexicographic order for determinism. A lock file next to
// the store serializes concurrent `store import` invocations; "no reader
// present" during writes is the caller's responsibility, the lock only
// prevents two writers from racing.
func (s *sqliteStore) Import(ctx context.Context, dir string) (ImportSummary, error) {
	lock := flock.New(s.path + ".lock")
	locked, err := lock.TryLockContext(ctx, 100*time.Millisecond)
	if err != nil || !locked {
		return ImportSummary{}, binerrors.Newf(binerrors.KindStore, s.path, "could not acquire import lock: %v", err)
	}
	defer lock.Unlock()

	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return ImportSummary{}, binerrors.New(binerrors.KindIO, dir, err)
	}
	sort.Strings(paths)

	summary := ImportSummary{}
	validator := newPatternValidator()

	for _, p := range paths {
		validator.Reset()
		if err := s.importOne(ctx, p, validator, &summary); err != nil {
			summary.FilesRejected++
			summary.Warnings = append(summary.Warnings, fmt.Sprintf("%s: %v", p, err))
			log.Warn().Str("file", p).Err(err).Msg("signature file rejected")
			continue
		}
		summary.FilesProcessed++
	}

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO store_meta(key, value) VALUES('last_import_unix', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		fmt.Sprintf("%d", time.Now().Unix())); err != nil {
		return summary, binerrors.New(binerrors.KindStore, s.path, err)
	}

	return summary, nil
}

func (s *sqliteStore) importOne(ctx context.Context, path string, validator *patternValidator, summary *ImportSummary) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return binerrors.New(binerrors.KindIO, path, err)
	}

	var sig signatureFile
	if err := json.Unmarshal(raw, &sig); err != nil {
		return binerrors.New(binerrors.KindValidation, path, err)
	}
	if sig.Component.Name == "" {
		return binerrors.Newf(binerrors.KindValidation, path, "component.name is required")
	}

	type accepted struct {
		text       string
		confidence float64
		context    string
	}
	var acceptedPatterns []accepted
	for _, e := range sig.entries() {
		ok, reason := validator.Validate(e.Pattern)
		if !ok {
			log.Debug().Str("file", path).Str("pattern", e.Pattern).Str("reason", reason).Msg("pattern rejected")
			continue
		}
		acceptedPatterns = append(acceptedPatterns, accepted{
			text:       e.Pattern,
			confidence: ClipConfidence(e.Confidence),
			context:    e.Context,
		})
	}
	if len(acceptedPatterns) == 0 {
		return binerrors.Newf(binerrors.KindValidation, path, "no patterns survived validation")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return binerrors.New(binerrors.KindStore, s.path, err)
	}
	defer tx.Rollback() //nolint:errcheck

	ecosystem := sig.Component.Ecosystem
	if ecosystem == "" {
		ecosystem = "unknown"
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO components(name, version, license, publisher, ecosystem, description, family)
		 VALUES(?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(name, version) DO NOTHING`,
		sig.Component.Name, sig.Component.Version, sig.Component.License,
		sig.Component.Publisher, ecosystem, sig.Component.Description, sig.Component.Family); err != nil {
		return binerrors.New(binerrors.KindStore, s.path, err)
	}

	componentID, err := lastComponentID(ctx, tx, sig.Component.Name, sig.Component.Version)
	if err != nil {
		return err
	}

	featureTexts := make([]string, 0, len(acceptedPatterns))
	for _, p := range acceptedPatterns {
		patRes, err := tx.ExecContext(ctx,
			`INSERT INTO patterns(component_id, text, confidence, context)
			 VALUES(?, ?, ?, ?)
			 ON CONFLICT(component_id, text) DO UPDATE SET
			   confidence = excluded.confidence, context = excluded.context`,
			componentID, p.text, p.confidence, p.context)
		if err != nil {
			return binerrors.New(binerrors.KindStore, s.path, err)
		}
		patternID, err := patRes.LastInsertId()
		if err != nil || patternID == 0 {
			patternID, err = lastPatternID(ctx, tx, componentID, p.text)
			if err != nil {
				return err
			}
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM pattern_ngrams WHERE pattern_id = ?`, patternID); err != nil {
			return binerrors.New(binerrors.KindStore, s.path, err)
		}
		for _, g := range ngrams(p.text, ngramLength) {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO pattern_ngrams(ngram_hash, pattern_id) VALUES(?, ?)`, g, patternID); err != nil {
				return binerrors.New(binerrors.KindStore, s.path, err)
			}
		}

		featureTexts = append(featureTexts, p.text)
		summary.PatternsWritten++
	}
	summary.ComponentsWritten++

	if digest, ok := lsh.Compute(featureTexts); ok {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO lsh_digests(component_id, digest) VALUES(?, ?)
			 ON CONFLICT(component_id) DO UPDATE SET digest = excluded.digest`,
			componentID, digest[:]); err != nil {
			return binerrors.New(binerrors.KindStore, s.path, err)
		}
		summary.DigestsWritten++
	}

	if err := tx.Commit(); err != nil {
		return binerrors.New(binerrors.KindStore, s.path, err)
	}
	return nil
}

func lastComponentID(ctx context.Context, tx *sql.Tx, name, version string) (int64, error) {
	row := tx.QueryRowContext(ctx, `SELECT id FROM components WHERE name = ? AND version = ?`, name, version)
	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, binerrors.New(binerrors.KindStore, "", err)
	}
	return id, nil
}

func lastPatternID(ctx context.Context, tx *sql.Tx, componentID int64, text string) (int64, error) {
	row := tx.QueryRowContext(ctx, `SELECT id FROM patterns WHERE component_id = ? AND text = ?`, componentID, text)
	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, binerrors.New(binerrors.KindStore, "", err)
	}
	return id, nil
}
