// Package jobs follows print jobs through the reconstructed status feed of a
// printer and reports their lifecycle to a notification sink.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/anicoll/souzu/internal/pkg/bambu"
	"github.com/anicoll/souzu/internal/pkg/model"
	"github.com/anicoll/souzu/pkg/jsonfile"
)

// Notifier posts and edits chat messages. Implementations must be safe for
// concurrent use by several trackers.
type Notifier interface {
	Post(ctx context.Context, channel, text string) (string, error)
	PostReply(ctx context.Context, channel, thread, text string) (string, error)
	Edit(ctx context.Context, channel, ts, text string) error
}

type Tracker struct {
	device   model.Device
	notifier Notifier
	channel  string
	stateDir string
	clock    clock.Clock
	location *time.Location
	logger   *zap.Logger

	state model.PrinterState
}

type Option func(*Tracker)

func WithClock(clk clock.Clock) Option {
	return func(t *Tracker) {
		t.clock = clk
	}
}

func WithLocation(loc *time.Location) Option {
	return func(t *Tracker) {
		t.location = loc
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(t *Tracker) {
		t.logger = logger
	}
}

// NewTracker returns a tracker for device that posts new jobs to channel and
// keeps its state under stateDir.
func NewTracker(device model.Device, notifier Notifier, channel, stateDir string, opts ...Option) *Tracker {
	t := &Tracker{
		device:   device,
		notifier: notifier,
		channel:  channel,
		stateDir: stateDir,
		clock:    clock.New(),
		location: time.Local,
		logger:   zap.L(),
	}
	for _, o := range opts {
		o(t)
	}
	t.logger = t.logger.With(zap.String("device_id", device.ID), zap.String("device_name", device.Name))
	return t
}

func (t *Tracker) path() string {
	return filepath.Join(t.stateDir, fmt.Sprintf("job.%s.json", t.device.FilenamePrefix))
}

// Job returns the job currently being tracked, if any.
func (t *Tracker) Job() *model.PrintJob {
	return t.state.CurrentJob
}

// Load reads the persisted state. A missing or corrupt file starts from no
// job.
func (t *Tracker) Load() error {
	path := t.path()
	state := model.PrinterState{}
	err := jsonfile.Read(path, &state)
	switch {
	case err == nil:
		t.logger.Info("loaded state file", zap.String("path", path))
	case jsonfile.IsMissing(err):
	case errors.Is(err, jsonfile.ErrCorrupt):
		t.logger.Warn("ignoring corrupt state file", zap.String("path", path), zap.Error(err))
	default:
		return err
	}
	if job := state.CurrentJob; job != nil && !job.State.Valid() {
		job.State = model.JobStateRunning
	}
	t.state = state
	return nil
}

func (t *Tracker) Save() error {
	path := t.path()
	if err := jsonfile.Write(path, &t.state); err != nil {
		return err
	}
	t.logger.Debug("saved state file", zap.String("path", path))
	return nil
}

// Run loads the persisted state and processes reports until the feed closes
// or ctx is done. State is saved after every report.
func (t *Tracker) Run(ctx context.Context, reports <-chan *model.StatusReport) error {
	if err := t.Load(); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case report, ok := <-reports:
			if !ok {
				return nil
			}
			t.Handle(ctx, report)
			if err := t.Save(); err != nil {
				return fmt.Errorf("saving job state: %w", err)
			}
		}
	}
}

// Handle applies one snapshot to the job state. Notification failures are
// logged and never undo a transition.
func (t *Tracker) Handle(ctx context.Context, report *model.StatusReport) {
	job := t.state.CurrentJob
	gcodeState := report.State()

	if job == nil {
		if gcodeState == model.GcodeStateRunning && report.McRemainingTime != nil && *report.McRemainingTime > 0 {
			t.start(ctx, time.Duration(*report.McRemainingTime)*time.Minute)
		}
		return
	}

	switch {
	case gcodeState == model.GcodeStatePause && job.State == model.JobStateRunning:
		job.State = model.JobStatePaused
		job.Eta = nil
		t.notify(ctx, job, fmt.Sprintf(":pause_button: %s: Print paused", t.device.Name))

	case gcodeState == model.GcodeStateRunning && job.State == model.JobStatePaused:
		job.State = model.JobStateRunning
		remaining := job.Duration.Duration()
		if report.McRemainingTime != nil {
			remaining = time.Duration(*report.McRemainingTime) * time.Minute
		}
		job.Duration = model.Seconds(remaining)
		eta := t.clock.Now().Add(remaining)
		job.Eta = &eta
		formatted := FormatEta(t.clock.Now(), remaining, t.location)
		t.notify(ctx, job, fmt.Sprintf(":arrow_forward: %s: Print resumed, %s remaining, done around %s",
			t.device.Name, formatted.Duration, formatted.FinishTime))

	case gcodeState == model.GcodeStateFinish:
		t.finish(ctx, job, ":white_check_mark:", "Finished!", "Print finished!")

	case gcodeState == model.GcodeStateFailed && bambu.IsCancelled(report.PrintError):
		t.finish(ctx, job, ":heavy_multiplication_x:", "Cancelled", "Print cancelled")

	case gcodeState == model.GcodeStateFailed && bambu.IsFilamentRunout(report.PrintError):
		t.finish(ctx, job, ":x:", "Out of filament",
			fmt.Sprintf("Print failed, out of filament!\nMessage from printer: %s", bambu.ParseErrorCode(report.PrintError)))

	case gcodeState == model.GcodeStateFailed:
		t.finish(ctx, job, ":x:", "Failed!",
			fmt.Sprintf("Print failed!\nMessage from printer: %s", bambu.ParseErrorCode(report.PrintError)))

	case gcodeState == model.GcodeStateIdle:
		t.finish(ctx, job, ":warning:", "Tracking lost", "Lost track of the print job")
	}
}

func (t *Tracker) start(ctx context.Context, duration time.Duration) {
	now := t.clock.Now()
	eta := now.Add(duration)
	formatted := FormatEta(now, duration, t.location)
	startMessage := fmt.Sprintf("%s: Print started, %s, done around %s", t.device.Name, formatted.Duration, formatted.FinishTime)

	job := &model.PrintJob{
		Duration:     model.Seconds(duration),
		Eta:          &eta,
		State:        model.JobStateRunning,
		StartMessage: &startMessage,
	}
	t.state.CurrentJob = job
	t.logger.Info("print job started", zap.Duration("duration", duration), zap.Time("eta", eta))

	ts, err := t.notifier.Post(ctx, t.channel, ":progress_bar: "+startMessage)
	if err != nil {
		t.logger.Error("failed to notify channel", zap.Error(err))
		return
	}
	channel := t.channel
	job.SlackChannel = &channel
	if ts != "" {
		job.SlackThreadTs = &ts
	}
}

// finish reports the end of job and forgets it.
func (t *Tracker) finish(ctx context.Context, job *model.PrintJob, emoji, short, long string) {
	t.state.CurrentJob = nil
	t.logger.Info("print job ended", zap.String("outcome", short))

	update := fmt.Sprintf("%s %s: %s", emoji, t.device.Name, long)
	t.notify(ctx, job, update)

	if job.SlackThreadTs == nil {
		return
	}
	edited := fmt.Sprintf("%s %s: %s", emoji, t.device.Name, short)
	if job.StartMessage != nil {
		edited = fmt.Sprintf("~%s~\n%s %s", *job.StartMessage, emoji, short)
	}
	if err := t.notifier.Edit(ctx, t.jobChannel(job), *job.SlackThreadTs, edited); err != nil {
		t.logger.Error("failed to edit message", zap.Error(err))
	}
}

// notify posts text in the job's thread, falling back to the channel when
// there is no thread or the reply fails.
func (t *Tracker) notify(ctx context.Context, job *model.PrintJob, text string) {
	channel := t.jobChannel(job)
	if job.SlackThreadTs != nil {
		_, err := t.notifier.PostReply(ctx, channel, *job.SlackThreadTs, text)
		if err == nil {
			return
		}
		t.logger.Error("failed to notify thread", zap.Error(err))
	}
	if _, err := t.notifier.Post(ctx, channel, text); err != nil {
		t.logger.Error("failed to notify channel", zap.Error(err))
	}
}

func (t *Tracker) jobChannel(job *model.PrintJob) string {
	if job.SlackChannel != nil && *job.SlackChannel != "" {
		return *job.SlackChannel
	}
	return t.channel
}
