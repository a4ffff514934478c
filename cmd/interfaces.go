package cmd

import (
	"context"
	"time"

	"github.com/anicoll/souzu/internal/pkg/model"
)

// DeviceSource finds printers to monitor. Run sends each one to out and
// closes out when it is done looking.
type DeviceSource interface {
	Run(ctx context.Context, out chan<- model.Device) error
}

// HistoryStore keeps a long term record of snapshots.
type HistoryStore interface {
	WriteSnapshot(ctx context.Context, deviceID string, at time.Time, report *model.StatusReport) error
	Cleanup(ctx context.Context) (int64, error)
}
