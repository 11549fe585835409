package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/DarthPollos/CV-Compare-Project/internal/candidates"
)

const postgresSchema = `CREATE TABLE IF NOT EXISTS candidates (
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

const postgresUpsert = `INSERT INTO candidates (` + columns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name, summary = EXCLUDED.summary, skills = EXCLUDED.skills,
	languages = EXCLUDED.languages, experience = EXCLUDED.experience,
	location = EXCLUDED.location, education = EXCLUDED.education,
	email = EXCLUDED.email, phone = EXCLUDED.phone`

// Postgres is a Store backed by a PostgreSQL connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to databaseURL, verifies the connection and creates the table.
func OpenPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating candidates table: %w", err)
	}

	return &Postgres{pool: pool}, nil
}

func (p *Postgres) All(ctx context.Context) ([]*candidates.Record, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+columns+` FROM candidates ORDER BY id`)
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

func (p *Postgres) Get(ctx context.Context, id string) (*candidates.Record, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+columns+` FROM candidates WHERE id = $1`, strings.TrimSpace(id))
	r, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting candidate %s: %w", id, err)
	}
	return r, nil
}

func (p *Postgres) Put(ctx context.Context, records []*candidates.Record) error {
	prepared, err := prepare(records)
	if err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, r := range prepared {
		batch.Queue(postgresUpsert, recordArgs(r)...)
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("storing candidates: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing candidates: %w", err)
	}
	return nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
