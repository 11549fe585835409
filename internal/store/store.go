// Package store keeps candidate records in a SQL table.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/DarthPollos/CV-Compare-Project/internal/candidates"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// ErrNotFound is returned by Get when no record has the requested ID.
var ErrNotFound = errors.New("candidate not found")

// Store is the record store consumed by the retriever and the CLI.
// Records returned by a Store are already normalized.
type Store interface {
	All(ctx context.Context) ([]*candidates.Record, error)
	Get(ctx context.Context, id string) (*candidates.Record, error)
	Put(ctx context.Context, records []*candidates.Record) error
	Close() error
}

const columns = "id, name, summary, skills, languages, experience, location, education, email, phone"

// Open connects to the backend selected by driver.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", DriverSQLite:
		return OpenSQLite(ctx, dsn)
	case DriverPostgres, "postgresql", "pgx":
		return OpenPostgres(ctx, dsn)
	default:
		return nil, fmt.Errorf("unsupported store driver %q", driver)
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*candidates.Record, error) {
	var r candidates.Record
	if err := row.Scan(&r.ID, &r.Name, &r.Summary, &r.Skills, &r.Languages,
		&r.Experience, &r.Location, &r.Education, &r.Email, &r.Phone); err != nil {
		return nil, err
	}
	r.Normalize()
	return &r, nil
}

func recordArgs(r *candidates.Record) []any {
	return []any{r.ID, r.Name, r.Summary, r.Skills, r.Languages,
		r.Experience, r.Location, r.Education, r.Email, r.Phone}
}

func prepare(records []*candidates.Record) ([]*candidates.Record, error) {
	out := make([]*candidates.Record, 0, len(records))
	for i, r := range records {
		if r == nil {
			continue
		}
		c := *r
		c.Normalize()
		if c.ID == "" {
			return nil, fmt.Errorf("record %d has empty id", i)
		}
		out = append(out, &c)
	}
	return out, nil
}
