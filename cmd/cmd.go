package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/anicoll/souzu/internal/pkg/bambu"
	"github.com/anicoll/souzu/internal/pkg/cache"
	"github.com/anicoll/souzu/internal/pkg/config"
	"github.com/anicoll/souzu/internal/pkg/database"
	"github.com/anicoll/souzu/internal/pkg/database/migration"
	"github.com/anicoll/souzu/internal/pkg/discovery"
	"github.com/anicoll/souzu/internal/pkg/jobs"
	"github.com/anicoll/souzu/internal/pkg/model"
	"github.com/anicoll/souzu/internal/pkg/reportlog"
	"github.com/anicoll/souzu/internal/pkg/slack"
)

// loadConfig reads the environment and applies the global flags on top.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	if c.Bool("verbose") {
		cfg.LogLevel = "DEBUG"
	}
	return cfg, nil
}

func newLogger(level string) (*zap.Logger, error) {
	var err error
	logCfg := zap.NewProductionConfig()

	logCfg.Level, err = zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	logCfg.OutputPaths = []string{"stdout"}
	logCfg.ErrorOutputPaths = []string{"stdout"}
	logCfg.Sampling = nil
	return logCfg.Build(zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel))
}

func setupLogger(level string) (*zap.Logger, error) {
	logger, err := newLogger(level)
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

// MonitorCommand discovers printers and watches them until interrupted.
func MonitorCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	logger, err := setupLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync() // flushes buffer, if any.
	}()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	m, cleanup, err := newMonitor(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := m.run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("monitor stopped")
	return nil
}

// newMonitor wires the production collaborators. The returned cleanup
// releases them.
func newMonitor(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*monitor, func(), error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, nil, err
	}
	roots, err := bambu.LoadCA(cfg.PrinterCfg.CACertFile)
	if err != nil {
		return nil, nil, err
	}
	store := cache.New(cfg.CacheDir)

	var notifier jobs.Notifier = slack.Disabled{}
	client, err := slack.New(cfg.SlackCfg.AccessToken)
	switch {
	case errors.Is(err, slack.ErrNoToken):
		logger.Warn("slack is not configured, print notifications are disabled")
	case err != nil:
		return nil, nil, err
	default:
		notifier = client
	}

	m := &monitor{
		cfg:       cfg,
		discovery: discovery.New(&cfg.PrinterCfg, discovery.WithTimeout(cfg.DiscoveryTimeout)),
		connect: func(device model.Device) (*bambu.Connection, error) {
			return bambu.New(device, &cfg.PrinterCfg, roots, store)
		},
		notifier: notifier,
		location: loc,
		registry: bambu.NewRegistry(),
		logger:   logger,
	}

	cleanup := func() {}
	if cfg.DatabaseURL != "" {
		if err := migration.Migrate(cfg.DatabaseURL); err != nil {
			return nil, nil, fmt.Errorf("migrating database: %w", err)
		}
		db, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		m.history = db
		cleanup = func() {
			_ = db.Close()
		}
	}
	return m, cleanup, nil
}

// CompactCommand rewrites a report log without its repeated reports.
func CompactCommand(c *cli.Context) error {
	input := c.Args().Get(0)
	if input == "" {
		return errors.New("usage: compact <log file> [output file]")
	}
	output := c.Args().Get(1)
	if output == "" {
		output = reportlog.DefaultCompactPath(input)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	logger, err := setupLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	result, err := reportlog.Compact(input, output, logger)
	if err != nil {
		return err
	}
	logger.Info("compacted report log",
		zap.String("input", input),
		zap.String("output", output),
		zap.Int("lines", result.Lines),
		zap.Int("kept", result.Kept),
		zap.String("reduction", fmt.Sprintf("%.1f%%", result.Reduction())),
	)
	return nil
}
