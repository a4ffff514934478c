package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/anicoll/souzu/internal/pkg/bambu"
	"github.com/anicoll/souzu/internal/pkg/config"
	"github.com/anicoll/souzu/internal/pkg/database"
	"github.com/anicoll/souzu/internal/pkg/jobs"
	"github.com/anicoll/souzu/internal/pkg/model"
	"github.com/anicoll/souzu/internal/pkg/reportlog"
	"github.com/anicoll/souzu/internal/pkg/server"
)

const cleanupSchedule = "0 3 * * *"

type monitor struct {
	cfg       *config.Config
	discovery DeviceSource
	connect   func(model.Device) (*bambu.Connection, error)
	notifier  jobs.Notifier
	history   HistoryStore
	location  *time.Location
	registry  *bambu.Registry
	logger    *zap.Logger
}

// run monitors every printer the discovery finds until ctx is done. A
// printer whose tasks fail is logged and left alone; other printers carry
// on.
func (m *monitor) run(ctx context.Context) error {
	if m.location == nil {
		m.location = time.Local
	}
	eg, ctx := errgroup.WithContext(ctx)

	devices := make(chan model.Device)
	eg.Go(func() error {
		if err := m.discovery.Run(ctx, devices); err != nil && !errors.Is(err, context.Canceled) {
			m.logger.Error("discovery failed", zap.Error(err))
		}
		return nil
	})

	if m.history != nil {
		eg.Go(func() error {
			return cronDbCleanup(ctx, m.history, m.location)
		})
	}

	if m.cfg.HTTPAddr != "" {
		eg.Go(func() error {
			return server.New(m.registry).ListenAndServe(ctx, m.cfg.HTTPAddr)
		})
	}

	started := 0
	for device := range devices {
		if m.startDevice(ctx, eg, device) {
			started++
		}
	}
	if started == 0 && ctx.Err() == nil {
		m.logger.Warn("no printers found")
	}
	return eg.Wait()
}

// startDevice launches the connection and every consumer of one printer.
// They share a context so that when one of them stops the rest follow.
func (m *monitor) startDevice(ctx context.Context, eg *errgroup.Group, device model.Device) bool {
	logger := m.logger.With(zap.String("device_id", device.ID), zap.String("device_name", device.Name))
	logger.Info("found device", zap.String("address", device.Address))

	conn, err := m.connect(device)
	if err != nil {
		logger.Error("failed to set up subscription", zap.Error(err))
		return false
	}
	if !m.registry.Add(conn) {
		logger.Debug("device already monitored")
		return false
	}

	deviceCtx, cancel := context.WithCancel(ctx)
	task := func(name string, fn func(context.Context) error) {
		eg.Go(func() error {
			defer cancel()
			err := fn(deviceCtx)
			switch {
			case err == nil, errors.Is(err, context.Canceled):
				logger.Debug("device task stopped", zap.String("task", name))
			default:
				logger.Error("device task failed", zap.String("task", name), zap.Error(err))
				m.reportFailure(ctx, logger, device, name, err)
			}
			return nil
		})
	}

	// subscribe before the connection starts so no snapshot is missed
	logSub := conn.Subscribe()
	task("report log", func(ctx context.Context) error {
		defer logSub.Close()
		path := reportlog.Path(filepath.Join(m.cfg.CacheDir, "logs"), device)
		return reportlog.NewWriter(path, reportlog.WithLogger(logger)).Run(ctx, logSub.C())
	})

	jobSub := conn.Subscribe()
	task("job tracking", func(ctx context.Context) error {
		defer jobSub.Close()
		tracker := jobs.NewTracker(device, m.notifier, m.cfg.SlackCfg.PrintNotificationChannel, m.cfg.StateDir,
			jobs.WithLocation(m.location),
			jobs.WithLogger(logger),
		)
		return tracker.Run(ctx, jobSub.C())
	})

	if m.history != nil {
		historySub := conn.Subscribe()
		task("history", func(ctx context.Context) error {
			defer historySub.Close()
			return database.NewRecorder(m.history, device.ID, nil, logger).Run(ctx, historySub.C())
		})
	}

	task("connection", func(ctx context.Context) error {
		defer m.registry.Remove(device.ID)
		return conn.Run(ctx)
	})
	return true
}

// reportFailure tells the error channel, if there is one, that a printer is
// no longer monitored.
func (m *monitor) reportFailure(ctx context.Context, logger *zap.Logger, device model.Device, task string, taskErr error) {
	channel := m.cfg.SlackCfg.ErrorNotificationChannel
	if channel == "" {
		return
	}
	text := fmt.Sprintf(":rotating_light: %s: stopped monitoring, %s failed: %v", device.Name, task, taskErr)
	if _, err := m.notifier.Post(ctx, channel, text); err != nil {
		logger.Error("failed to notify error channel", zap.Error(err))
	}
}

// cronDbCleanup removes old history now and then every night until ctx is
// done.
func cronDbCleanup(ctx context.Context, db HistoryStore, loc *time.Location) error {
	cleanup := func() {
		deleted, err := db.Cleanup(ctx)
		if err != nil {
			zap.L().Error("error cleaning up database", zap.Error(err))
			return
		}
		zap.L().Info("cleaned up snapshot history", zap.Int64("deleted", deleted))
	}
	cleanup()

	c := cron.New(cron.WithLocation(loc))
	if _, err := c.AddFunc(cleanupSchedule, cleanup); err != nil {
		return err
	}
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return ctx.Err()
}
