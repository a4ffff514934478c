package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/anicoll/souzu/internal/pkg/model"
)

func (db *Database) WriteSnapshot(ctx context.Context, deviceID string, at time.Time, report *model.StatusReport) error {
	doc, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	var gcodeState *string
	if state := report.State(); state != "" {
		s := state.String()
		gcodeState = &s
	}
	if _, err := db.pool.Exec(ctx, `
		INSERT INTO snapshot (device_id, time_stamp, gcode_state, report)
		VALUES ($1, $2, $3, $4)
	`, deviceID, at, gcodeState, doc); err != nil {
		return fmt.Errorf("inserting snapshot: %w", err)
	}
	return nil
}
