// Package database keeps a history of printer snapshots in Postgres.
package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/anicoll/souzu/internal/pkg/model"
)

var ErrNotFound = errors.New("no snapshot found")

// retention is how long snapshots are kept before Cleanup removes them.
const retention = 8 * 24 * time.Hour

type Database struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewDatabase(pool *pgxpool.Pool) *Database {
	return &Database{
		pool: pool,
		now:  time.Now,
	}
}

// Connect opens a connection pool to dsn and checks that it is reachable.
func Connect(ctx context.Context, dsn string) (*Database, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return NewDatabase(pool), nil
}

func (db *Database) Close() error {
	if db.pool != nil {
		db.pool.Close()
	}
	return nil
}

// Snapshot is one stored report.
type Snapshot struct {
	ID        int64               `json:"id"`
	DeviceID  string              `json:"device_id"`
	TimeStamp time.Time           `json:"timestamp"`
	Report    *model.StatusReport `json:"report"`
}
