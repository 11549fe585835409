package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite" // register pure-Go SQLite driver

	"github.com/DarthPollos/CV-Compare-Project/internal/candidates"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS candidates (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	summary TEXT NOT NULL DEFAULT '',
	skills TEXT NOT NULL DEFAULT '',
	languages TEXT NOT NULL DEFAULT '',
	experience TEXT NOT NULL DEFAULT '',
	location TEXT NOT NULL DEFAULT '',
	education TEXT NOT NULL DEFAULT '',
	email TEXT NOT NULL DEFAULT '',
	phone TEXT NOT NULL DEFAULT ''
)`

const sqliteUpsert = `INSERT INTO candidates (` + columns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	name = excluded.name, summary = excluded.summary, skills = excluded.skills,
	languages = excluded.languages, experience = excluded.experience,
	location = excluded.location, education = excluded.education,
	email = excluded.email, phone = excluded.phone`

// SQLite is a Store backed by a local SQLite database file.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (and migrates) the database at dsn.
func OpenSQLite(ctx context.Context, dsn string) (*SQLite, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "cv_database.db"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	if strings.Contains(dsn, ":memory:") {
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating candidates table: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) All(ctx context.Context) ([]*candidates.Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+columns+` FROM candidates ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying candidates: %w", err)
	}
	defer rows.Close()

	var records []*candidates.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning candidate: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating candidates: %w", err)
	}
	return records, nil
}

func (s *SQLite) Get(ctx context.Context, id string) (*candidates.Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+columns+` FROM candidates WHERE id = ?`, strings.TrimSpace(id))
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting candidate %s: %w", id, err)
	}
	return r, nil
}

func (s *SQLite) Put(ctx context.Context, records []*candidates.Record) error {
	prepared, err := prepare(records)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, sqliteUpsert)
	if err != nil {
		return fmt.Errorf("preparing upsert: %w", err)
	}
	defer stmt.Close()

	for _, r := range prepared {
		if _, err := stmt.ExecContext(ctx, recordArgs(r)...); err != nil {
			return fmt.Errorf("storing candidate %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing candidates: %w", err)
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
