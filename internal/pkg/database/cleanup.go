package database

import (
	"context"
)

// Cleanup removes snapshots older than eight days and returns how many were
// deleted.
func (db *Database) Cleanup(ctx context.Context) (int64, error) {
	tag, err := db.pool.Exec(ctx, "DELETE FROM snapshot WHERE time_stamp < $1", db.now().Add(-retention))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
