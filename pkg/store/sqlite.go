package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	// modernc.org/sqlite is a pure-Go SQLite driver: no cgo, which keeps
	// the engine a single static binary. It registers itself under the
	// "sqlite" driver name.
	_ "modernc.org/sqlite"

	"github.com/binarysniffer/binarysniffer/pkg/hashutil"
	"github.com/binarysniffer/binarysniffer/pkg/lsh"
	"github.com/binarysniffer/binarysniffer/pkg/model"
	binerrors "github.com/binarysniffer/binarysniffer/pkg/errors"
)

const ngramLength = 3

const schema = `
CREATE TABLE IF NOT EXISTS components (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	name        TEXT NOT NULL,
	version     TEXT NOT NULL DEFAULT '',
	license     TEXT NOT NULL DEFAULT '',
	publisher   TEXT NOT NULL DEFAULT '',
	ecosystem   TEXT NOT NULL DEFAULT 'unknown',
	description TEXT NOT NULL DEFAULT '',
	family      TEXT NOT NULL DEFAULT '',
	UNIQUE(name, version)
);

CREATE TABLE IF NOT EXISTS patterns (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	component_id INTEGER NOT NULL REFERENCES components(id),
	text         TEXT NOT NULL,
	confidence   REAL NOT NULL,
	context      TEXT NOT NULL DEFAULT '',
	UNIQUE(component_id, text)
);
CREATE INDEX IF NOT EXISTS idx_patterns_text ON patterns(text);
CREATE INDEX IF NOT EXISTS idx_patterns_component ON patterns(component_id);

CREATE TABLE IF NOT EXISTS pattern_ngrams (
	ngram_hash INTEGER NOT NULL,
	pattern_id INTEGER NOT NULL REFERENCES patterns(id)
);
CREATE INDEX IF NOT EXISTS idx_pattern_ngrams_hash ON pattern_ngrams(ngram_hash);

CREATE TABLE IF NOT EXISTS lsh_digests (
	component_id INTEGER PRIMARY KEY REFERENCES components(id),
	digest       BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS store_meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

type sqliteStore struct {
	db   *sql.DB
	path string
}

// Open creates (if absent) and opens a signature store at path.
func Open(ctx context.Context, path string) (Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, binerrors.New(binerrors.KindStore, path, err)
	}
	// The store is opened once per process and shared read-only across
	// worker goroutines; a single connection avoids SQLITE_BUSY under
	// modernc.org/sqlite's file-level locking for the read path, while
	// Import takes its own exclusive filesystem lock (see ingest.go).
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, binerrors.New(binerrors.KindStore, path, fmt.Errorf("apply schema: %w", err))
	}
	return &sqliteStore{db: db, path: path}, nil
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}

func (s *sqliteStore) LookupExact(ctx context.Context, text string) ([]ExactHit, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT component_id, confidence FROM patterns WHERE text = ?`, text)
	if err != nil {
		return nil, binerrors.New(binerrors.KindStore, s.path, err)
	}
	defer rows.Close()

	var hits []ExactHit
	for rows.Next() {
		var h ExactHit
		if err := rows.Scan(&h.ComponentID, &h.Confidence); err != nil {
			return nil, binerrors.New(binerrors.KindStore, s.path, err)
		}
		hits = append(hits, h)
	}
	sortExactHits(hits)
	return hits, rows.Err()
}

// LookupContains finds every stored pattern that occurs as a substring of
// s. It prunes candidates using the 3-gram inverted index built at ingest
// time, then verifies each candidate with a literal Contains check so the
// n-gram index can never itself produce a false positive in the result.
func (s *sqliteStore) LookupContains(ctx context.Context, text string) ([]ContainsHit, error) {
	grams := ngrams(text, ngramLength)
	if len(grams) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(grams))
	args := make([]any, len(grams))
	for i, g := range grams {
		placeholders[i] = "?"
		args[i] = g
	}
	query := fmt.Sprintf(
		`SELECT DISTINCT p.id, p.component_id, p.text, p.confidence
		 FROM pattern_ngrams pn JOIN patterns p ON p.id = pn.pattern_id
		 WHERE pn.ngram_hash IN (%s)`, strings.Join(placeholders, ","))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, binerrors.New(binerrors.KindStore, s.path, err)
	}
	defer rows.Close()

	var hits []ContainsHit
	for rows.Next() {
		var id, componentID int64
		var patternText string
		var confidence float64
		if err := rows.Scan(&id, &componentID, &patternText, &confidence); err != nil {
			return nil, binerrors.New(binerrors.KindStore, s.path, err)
		}
		if !strings.Contains(text, patternText) {
			continue // n-gram false positive, discarded
		}
		hits = append(hits, ContainsHit{ComponentID: componentID, Pattern: patternText, Confidence: confidence})
	}
	sortContainsHits(hits)
	return hits, rows.Err()
}

func (s *sqliteStore) Component(ctx context.Context, id int64) (model.Component, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, version, license, publisher, ecosystem, description, family
		 FROM components WHERE id = ?`, id)
	var c model.Component
	var ecosystem string
	if err := row.Scan(&c.ID, &c.Name, &c.Version, &c.License, &c.Publisher, &ecosystem, &c.Description, &c.Family); err != nil {
		return model.Component{}, binerrors.New(binerrors.KindStore, s.path, err)
	}
	c.Ecosystem = model.Ecosystem(ecosystem)
	return c, nil
}

func (s *sqliteStore) PatternCount(ctx context.Context, componentID int64) (int, error) {
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM patterns WHERE component_id = ?`, componentID)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, binerrors.New(binerrors.KindStore, s.path, err)
	}
	return n, nil
}

func (s *sqliteStore) Digests(ctx context.Context) ([]ComponentDigest, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.id, c.name, c.version, c.license, c.publisher, c.ecosystem, c.description, c.family, d.digest
		 FROM lsh_digests d JOIN components c ON c.id = d.component_id
		 ORDER BY c.id ASC`)
	if err != nil {
		return nil, binerrors.New(binerrors.KindStore, s.path, err)
	}
	defer rows.Close()

	var out []ComponentDigest
	for rows.Next() {
		var cd ComponentDigest
		var ecosystem string
		var raw []byte
		if err := rows.Scan(&cd.Component.ID, &cd.Component.Name, &cd.Component.Version,
			&cd.Component.License, &cd.Component.Publisher, &ecosystem, &cd.Component.Description,
			&cd.Component.Family, &raw); err != nil {
			return nil, binerrors.New(binerrors.KindStore, s.path, err)
		}
		cd.Component.Ecosystem = model.Ecosystem(ecosystem)
		if len(raw) == lsh.Size {
			copy(cd.Digest[:], raw)
		}
		out = append(out, cd)
	}
	return out, rows.Err()
}

func (s *sqliteStore) Status(ctx context.Context) (Status, error) {
	var st Status
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM components`)
	if err := row.Scan(&st.ComponentCount); err != nil {
		return Status{}, binerrors.New(binerrors.KindStore, s.path, err)
	}
	row = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM patterns`)
	if err := row.Scan(&st.PatternCount); err != nil {
		return Status{}, binerrors.New(binerrors.KindStore, s.path, err)
	}
	row = s.db.QueryRowContext(ctx, `SELECT value FROM store_meta WHERE key = 'last_import_unix'`)
	var raw string
	if err := row.Scan(&raw); err == nil {
		fmt.Sscanf(raw, "%d", &st.LastImportUnix)
	}
	return st, nil
}

// ngrams returns the deterministic, order-preserving set of unique n-gram
// keys of s, each the seeded xxhash of the raw n-byte substring rather
// than the substring itself — the index only ever needs equality lookups,
// never the text back, so storing the hash keeps pattern_ngrams an
// INTEGER-indexed table instead of a TEXT one. Shorter-than-n strings
// yield no n-grams (they can only ever be found by LookupExact).
func ngrams(s string, n int) []int64 {
	if len(s) < n {
		return nil
	}
	seen := make(map[string]struct{})
	var out []int64
	for i := 0; i+n <= len(s); i++ {
		g := s[i : i+n]
		if _, ok := seen[g]; ok {
			continue
		}
		seen[g] = struct{}{}
		out = append(out, int64(hashutil.Hash64(g)))
	}
	return out
}

// sortExactHits and sortContainsHits impose the Determinism Layer's stable
// ordering on results before they leave the store: hash-table/map
// iteration inside a driver must never be observable, so callers always
// see hits ordered by component id.
func sortExactHits(hits []ExactHit) {
	sort.Slice(hits, func(i, j int) bool { return hits[i].ComponentID < hits[j].ComponentID })
}

func sortContainsHits(hits []ContainsHit) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].ComponentID != hits[j].ComponentID {
			return hits[i].ComponentID < hits[j].ComponentID
		}
		return hits[i].Pattern < hits[j].Pattern
	})
}
