// Package reportlog keeps a plain text history of every reconstructed report
// a printer produced, one timestamped JSON document per line.
package reportlog

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/anicoll/souzu/internal/pkg/model"
)

// Path is the log file for device under dir.
func Path(dir string, device model.Device) string {
	return filepath.Join(dir, device.FilenamePrefix+".log")
}

type Writer struct {
	path   string
	clock  clock.Clock
	logger *zap.Logger
}

type Option func(*Writer)

func WithClock(clk clock.Clock) Option {
	return func(w *Writer) {
		w.clock = clk
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(w *Writer) {
		w.logger = logger
	}
}

func NewWriter(path string, opts ...Option) *Writer {
	w := &Writer{
		path:   path,
		clock:  clock.New(),
		logger: zap.L(),
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Run appends every report from reports to the log file until the feed
// closes or ctx is done.
func (w *Writer) Run(ctx context.Context, reports <-chan *model.StatusReport) (err error) {
	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening report log: %w", err)
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()
	w.logger.Info("logging reports", zap.String("path", w.path))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case report, ok := <-reports:
			if !ok {
				return nil
			}
			if err := w.write(f, report); err != nil {
				return err
			}
		}
	}
}

func (w *Writer) write(out io.Writer, report *model.StatusReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	timestamp := w.clock.Now().UTC().Format(time.RFC3339Nano)
	if _, err := fmt.Fprintf(out, "%s %s\n", timestamp, data); err != nil {
		return fmt.Errorf("writing report log: %w", err)
	}
	return nil
}

// ParseLine splits a log line into its timestamp and report.
func ParseLine(line string) (time.Time, *model.StatusReport, error) {
	timestamp, document, ok := strings.Cut(strings.TrimRight(line, "\r\n"), " ")
	if !ok {
		return time.Time{}, nil, errors.New("missing timestamp separator")
	}
	at, err := time.Parse(time.RFC3339Nano, timestamp)
	if err != nil {
		return time.Time{}, nil, fmt.Errorf("parsing timestamp: %w", err)
	}
	report := &model.StatusReport{}
	if err := json.Unmarshal([]byte(document), report); err != nil {
		return time.Time{}, nil, fmt.Errorf("parsing report: %w", err)
	}
	return at, report, nil
}

// Replay calls fn for every well formed line of r, in order.
func Replay(r io.Reader, fn func(at time.Time, report *model.StatusReport) error) error {
	return eachLine(r, func(n int, line string) error {
		at, report, err := ParseLine(line)
		if err != nil {
			return fmt.Errorf("line %d: %w", n, err)
		}
		return fn(at, report)
	})
}

func eachLine(r io.Reader, fn func(n int, line string) error) error {
	br := bufio.NewReader(r)
	for n := 1; ; n++ {
		line, err := br.ReadString('\n')
		if line != "" {
			if fnErr := fn(n, line); fnErr != nil {
				return fnErr
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
