package reportlog

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/anicoll/souzu/internal/pkg/model"
)

// CompactResult counts the lines read and written by Compact.
type CompactResult struct {
	Lines int
	Kept  int
}

// Reduction is the share of lines removed, as a percentage.
func (r CompactResult) Reduction() float64 {
	if r.Lines == 0 {
		return 0
	}
	return float64(r.Lines-r.Kept) / float64(r.Lines) * 100
}

// DefaultCompactPath is where Compact writes when no output is given:
// printer.log becomes printer.compact.log.
func DefaultCompactPath(input string) string {
	return strings.TrimSuffix(input, filepath.Ext(input)) + ".compact.log"
}

// Compact copies input to output without the reports that are identical to
// the one before them. Lines that cannot be parsed are kept as they are.
func Compact(input, output string, logger *zap.Logger) (result CompactResult, err error) {
	in, err := os.Open(input)
	if err != nil {
		return result, fmt.Errorf("opening log: %w", err)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return result, fmt.Errorf("creating output directory: %w", err)
	}
	out, err := os.Create(output)
	if err != nil {
		return result, fmt.Errorf("creating compacted log: %w", err)
	}
	defer func() {
		err = errors.Join(err, out.Close())
	}()

	result, err = compact(in, out, logger)
	if err != nil {
		return result, fmt.Errorf("compacting %s: %w", input, err)
	}
	return result, nil
}

func compact(in io.Reader, out io.Writer, logger *zap.Logger) (CompactResult, error) {
	var (
		result CompactResult
		last   *model.StatusReport
	)
	err := eachLine(in, func(n int, line string) error {
		result.Lines++
		_, report, err := ParseLine(line)
		if err != nil {
			logger.Warn("keeping unparseable line", zap.Int("line", n), zap.Error(err))
		} else if last != nil && report.Equal(last) {
			return nil
		} else {
			last = report
		}
		result.Kept++
		_, err = io.WriteString(out, line)
		return err
	})
	return result, err
}
