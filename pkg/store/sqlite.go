package store

import (
	"database/sql"
	"fmt"

	"github.com/laguileracl/leychile-epub/pkg/norma"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS edges (
	source TEXT NOT NULL,
	target TEXT NOT NULL,
	kind   TEXT NOT NULL,
	detail TEXT NOT NULL DEFAULT '',
	UNIQUE(source, target, kind)
);

CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(source);

CREATE TABLE IF NOT EXISTS vigency (
	norm_id TEXT PRIMARY KEY,
	state   TEXT NOT NULL,
	note    TEXT NOT NULL DEFAULT ''
);
`

// SQLiteStore is a durable Store backed by a SQLite database. Idempotence is
// enforced by the schema: edges carry a UNIQUE(source, target, kind)
// constraint, vigency records upsert on norm_id.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (and if needed initializes) a SQLite-backed store at the
// given path. ":memory:" works for tests.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", path, err)
	}

	// The driver allows concurrent readers but a single writer; corpus
	// workers share one store, so serialize access at the pool level.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// AddEdge records an edge, ignoring duplicates through the UNIQUE constraint.
func (s *SQLiteStore) AddEdge(e Edge) error {
	if e.Source == "" || e.Target == "" || e.Kind == "" {
		return fmt.Errorf("edge requires source, target and kind")
	}

	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO edges (source, target, kind, detail) VALUES (?, ?, ?, ?)`,
		e.Source, e.Target, string(e.Kind), e.Detail,
	)
	if err != nil {
		return fmt.Errorf("inserting edge: %w", err)
	}
	return nil
}

// Edges returns all edges originating at the source.
func (s *SQLiteStore) Edges(source string) ([]Edge, error) {
	rows, err := s.db.Query(
		`SELECT source, target, kind, detail FROM edges WHERE source = ? ORDER BY rowid`,
		source,
	)
	if err != nil {
		return nil, fmt.Errorf("querying edges: %w", err)
	}
	defer rows.Close()

	return scanEdges(rows)
}

// AllEdges returns every stored edge in insertion order.
func (s *SQLiteStore) AllEdges() ([]Edge, error) {
	rows, err := s.db.Query(`SELECT source, target, kind, detail FROM edges ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("querying edges: %w", err)
	}
	defer rows.Close()

	return scanEdges(rows)
}

func scanEdges(rows *sql.Rows) ([]Edge, error) {
	var out []Edge
	for rows.Next() {
		var e Edge
		var kind string
		if err := rows.Scan(&e.Source, &e.Target, &kind, &e.Detail); err != nil {
			return nil, fmt.Errorf("scanning edge: %w", err)
		}
		e.Kind = EdgeKind(kind)
		out = append(out, e)
	}
	return out, rows.Err()
}

// UpsertVigency sets the vigency state of a norm.
func (s *SQLiteStore) UpsertVigency(rec VigencyRecord) error {
	if rec.NormID == "" {
		return fmt.Errorf("vigency record requires a norm ID")
	}

	_, err := s.db.Exec(
		`INSERT INTO vigency (norm_id, state, note) VALUES (?, ?, ?)
		 ON CONFLICT(norm_id) DO UPDATE SET state = excluded.state, note = excluded.note`,
		rec.NormID, string(rec.State), rec.Note,
	)
	if err != nil {
		return fmt.Errorf("upserting vigency: %w", err)
	}
	return nil
}

// Vigency returns the vigency record of a norm.
func (s *SQLiteStore) Vigency(normID string) (VigencyRecord, bool, error) {
	var rec VigencyRecord
	var state string
	err := s.db.QueryRow(
		`SELECT norm_id, state, note FROM vigency WHERE norm_id = ?`, normID,
	).Scan(&rec.NormID, &state, &rec.Note)
	if err == sql.ErrNoRows {
		return VigencyRecord{}, false, nil
	}
	if err != nil {
		return VigencyRecord{}, false, fmt.Errorf("querying vigency: %w", err)
	}
	rec.State = norma.VigencyState(state)
	return rec, true, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
