// Package query materializes build-log and deps-log entries into an
// on-disk SQLite database for ad-hoc reporting: slowest edges, why a
// given output last rebuilt, dependency counts.
package query

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"forge/internal/buildlog"
	"forge/internal/depslog"
)

// Store wraps a SQLite database populated from a build's logs.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database at path and ensures its schema
// exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) initSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS build_runs (
			output TEXT PRIMARY KEY,
			command_hash TEXT,
			start_ms INTEGER,
			end_ms INTEGER,
			mtime INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS deps (
			output TEXT,
			input TEXT,
			PRIMARY KEY (output, input)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_build_runs_duration ON build_runs((end_ms - start_ms))`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Ingest replaces the database's contents with bl's and (if non-nil)
// dl's current entries.
func (s *Store) Ingest(bl *buildlog.Log, dl *depslog.Log) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM build_runs"); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM deps"); err != nil {
		return err
	}

	for output, entry := range bl.Entries() {
		if _, err := tx.Exec(
			"INSERT INTO build_runs(output, command_hash, start_ms, end_ms, mtime) VALUES (?, ?, ?, ?, ?)",
			output, fmt.Sprintf("%016x", entry.CommandHash), entry.StartMS, entry.EndMS, int64(entry.MTime),
		); err != nil {
			return err
		}
	}

	if dl != nil {
		for output, inputs := range dl.AllDeps() {
			for _, input := range inputs {
				if _, err := tx.Exec("INSERT OR IGNORE INTO deps(output, input) VALUES (?, ?)", output, input); err != nil {
					return err
				}
			}
		}
	}

	return tx.Commit()
}

// SlowestEdges returns the n outputs with the largest recorded
// end_ms-start_ms duration, descending.
func (s *Store) SlowestEdges(n int) ([]EdgeDuration, error) {
	rows, err := s.db.Query(
		"SELECT output, end_ms - start_ms AS dur FROM build_runs ORDER BY dur DESC LIMIT ?", n,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EdgeDuration
	for rows.Next() {
		var d EdgeDuration
		if err := rows.Scan(&d.Output, &d.DurationMS); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// WhyDirty returns the recorded inputs for output, for a human deciding
// whether a rebuild makes sense.
func (s *Store) WhyDirty(output string) ([]string, error) {
	rows, err := s.db.Query("SELECT input FROM deps WHERE output = ?", output)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var inputs []string
	for rows.Next() {
		var in string
		if err := rows.Scan(&in); err != nil {
			return nil, err
		}
		inputs = append(inputs, in)
	}
	return inputs, rows.Err()
}

// EdgeDuration is one row of a SlowestEdges result.
type EdgeDuration struct {
	Output     string
	DurationMS int32
}
