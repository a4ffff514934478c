package database

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/anicoll/souzu/internal/pkg/model"
)

type snapshotWriter interface {
	WriteSnapshot(ctx context.Context, deviceID string, at time.Time, report *model.StatusReport) error
}

// Recorder stores the snapshots of one device, skipping any that equal the
// one stored before it.
type Recorder struct {
	db       snapshotWriter
	deviceID string
	clock    clock.Clock
	logger   *zap.Logger
	last     *model.StatusReport
}

func NewRecorder(db snapshotWriter, deviceID string, clk clock.Clock, logger *zap.Logger) *Recorder {
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = zap.L()
	}
	return &Recorder{
		db:       db,
		deviceID: deviceID,
		clock:    clk,
		logger:   logger.With(zap.String("device_id", deviceID)),
	}
}

// Run records reports until the feed closes or ctx is done. Write failures
// are logged and the report is retried with the next one.
func (r *Recorder) Run(ctx context.Context, reports <-chan *model.StatusReport) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case report, ok := <-reports:
			if !ok {
				return nil
			}
			r.record(ctx, report)
		}
	}
}

func (r *Recorder) record(ctx context.Context, report *model.StatusReport) {
	if r.last != nil && report.Equal(r.last) {
		return
	}
	if err := r.db.WriteSnapshot(ctx, r.deviceID, r.clock.Now().UTC(), report); err != nil {
		r.logger.Error("failed to record snapshot", zap.Error(err))
		return
	}
	r.last = report
}
