package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"

	"github.com/matzehuels/astkg/pkg/kg"

	apperr "github.com/matzehuels/astkg/pkg/errors"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS triples (
	graph TEXT NOT NULL,
	seq   INTEGER NOT NULL,
	src   TEXT NOT NULL,
	rel   TEXT NOT NULL,
	dst   TEXT NOT NULL,
	PRIMARY KEY (graph, seq)
);
CREATE INDEX IF NOT EXISTS triples_src ON triples (graph, src);
`

// SQLite is a Store in a single SQLite database file.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path. An empty path opens a
// private in-memory database.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	dsn := path
	if dsn == "" {
		dsn = ":memory:"
	} else if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, storeErr(err, "create %s", filepath.Dir(path))
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, storeErr(err, "open sqlite %s", dsn)
	}
	if path == "" {
		// Every pooled connection to :memory: would see its own database.
		db.SetMaxOpenConns(1)
	} else {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, storeErr(err, "enable WAL")
		}
		db.ExecContext(ctx, "PRAGMA busy_timeout=5000")
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, storeErr(err, "create schema")
	}
	return &SQLite{db: db}, nil
}

// Put replaces the triples stored under graphID in one transaction.
func (s *SQLite) Put(ctx context.Context, graphID string, triples []kg.Triple) error {
	if err := checkPut(graphID, triples); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr(err, "begin")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM triples WHERE graph = ?", graphID); err != nil {
		return storeErr(err, "clear %s", graphID)
	}
	stmt, err := tx.PrepareContext(ctx, "INSERT INTO triples (graph, seq, src, rel, dst) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return storeErr(err, "prepare insert")
	}
	defer stmt.Close()
	for i, t := range triples {
		if _, err := stmt.ExecContext(ctx, graphID, i, t.Source, t.Relation, t.Destination); err != nil {
			return storeErr(err, "insert into %s", graphID)
		}
	}
	if err := tx.Commit(); err != nil {
		return storeErr(err, "commit %s", graphID)
	}
	return nil
}

// Scan calls fn for every triple of graphID.
func (s *SQLite) Scan(ctx context.Context, graphID string, fn func(kg.Triple) error) error {
	if err := apperr.ValidateGraphID(graphID); err != nil {
		return err
	}
	rows, err := s.db.QueryContext(ctx, "SELECT src, rel, dst FROM triples WHERE graph = ? ORDER BY seq", graphID)
	if err != nil {
		return storeErr(err, "query %s", graphID)
	}
	defer rows.Close()

	found := false
	for rows.Next() {
		found = true
		var t kg.Triple
		if err := rows.Scan(&t.Source, &t.Relation, &t.Destination); err != nil {
			return storeErr(err, "read %s", graphID)
		}
		if err := fn(t); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return storeErr(err, "read %s", graphID)
	}
	if !found {
		return notFound(graphID)
	}
	return nil
}

// Delete removes graphID.
func (s *SQLite) Delete(ctx context.Context, graphID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM triples WHERE graph = ?", graphID)
	if err != nil {
		return storeErr(err, "delete %s", graphID)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notFound(graphID)
	}
	return nil
}

// List returns the stored graph ids.
func (s *SQLite) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT graph FROM triples ORDER BY graph")
	if err != nil {
		return nil, storeErr(err, "list graphs")
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, storeErr(err, "list graphs")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err, "list graphs")
	}
	return sorted(ids), nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

var _ Store = (*SQLite)(nil)
