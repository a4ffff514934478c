package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

const snapshotColumns = `id, device_id, time_stamp, report`

// LatestSnapshot returns the most recent snapshot stored for deviceID.
func (db *Database) LatestSnapshot(ctx context.Context, deviceID string) (*Snapshot, error) {
	rows, err := db.pool.Query(ctx, `
	SELECT `+snapshotColumns+`
	FROM snapshot
	WHERE device_id = $1
	ORDER BY time_stamp DESC, id DESC
	LIMIT 1;
	`, deviceID)
	if err != nil {
		return nil, err
	}
	snapshot, err := pgx.CollectExactlyOneRow(rows, scanSnapshot)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w for %s", ErrNotFound, deviceID)
	}
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

// Snapshots returns the snapshots for deviceID between from and to, newest
// first. Without bounds it returns the last two days.
func (db *Database) Snapshots(ctx context.Context, deviceID string, from, to *time.Time) ([]*Snapshot, error) {
	if from == nil || to == nil {
		end := db.now()
		start := end.AddDate(0, 0, -2)
		from, to = &start, &end
	}
	rows, err := db.pool.Query(ctx, `
	SELECT `+snapshotColumns+`
	FROM snapshot
	WHERE device_id = $1 AND time_stamp BETWEEN $2 AND $3
	ORDER BY time_stamp DESC, id DESC;
	`, deviceID, *from, *to)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanSnapshot)
}

func scanSnapshot(row pgx.CollectableRow) (*Snapshot, error) {
	var (
		snapshot Snapshot
		doc      []byte
	)
	if err := row.Scan(&snapshot.ID, &snapshot.DeviceID, &snapshot.TimeStamp, &doc); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(doc, &snapshot.Report); err != nil {
		return nil, fmt.Errorf("decoding snapshot %d: %w", snapshot.ID, err)
	}
	return &snapshot, nil
}
