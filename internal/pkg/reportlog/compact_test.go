package reportlog

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestCompact(t *testing.T) {
	in := strings.Join([]string{
		"2024-03-01T12:00:00Z {\"mc_percent\":1}",
		"2024-03-01T12:00:01Z {\"mc_percent\":1}",
		"2024-03-01T12:00:02Z {\"mc_percent\":1,\"layer_num\":2}",
		"not a report",
		"2024-03-01T12:00:03Z {\"mc_percent\":1,\"layer_num\":2}",
		"2024-03-01T12:00:04Z {\"mc_percent\":1}",
	}, "\n") + "\n"

	var out bytes.Buffer
	result, err := compact(strings.NewReader(in), &out, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.Equal(t, CompactResult{Lines: 6, Kept: 4}, result)
	assert.Equal(t, strings.Join([]string{
		"2024-03-01T12:00:00Z {\"mc_percent\":1}",
		"2024-03-01T12:00:02Z {\"mc_percent\":1,\"layer_num\":2}",
		"not a report",
		"2024-03-01T12:00:04Z {\"mc_percent\":1}",
	}, "\n")+"\n", out.String())
	assert.InDelta(t, 33.3, result.Reduction(), 0.1)
}

func TestCompactFiles(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "workshop.log")
	require.NoError(t, os.WriteFile(input, []byte(
		"2024-03-01T12:00:00Z {\"mc_percent\":1}\n2024-03-01T12:00:01Z {\"mc_percent\":1}"), 0o600))

	output := DefaultCompactPath(input)
	assert.Equal(t, filepath.Join(dir, "workshop.compact.log"), output)

	result, err := Compact(input, output, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, CompactResult{Lines: 2, Kept: 1}, result)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01T12:00:00Z {\"mc_percent\":1}\n", string(data))

	_, err = Compact(filepath.Join(dir, "missing.log"), output, zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestReductionOfEmptyLog(t *testing.T) {
	assert.Zero(t, CompactResult{}.Reduction())
}
