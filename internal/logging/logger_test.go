package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_FormatAndLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelInfo)
	l.clock = func() time.Time { return time.Date(2024, 1, 3, 10, 0, 0, 0, time.UTC) }

	l.Debugf("hidden %d", 1)
	l.Infof("[IndexBuilder] pages=%d", 12)
	l.Errorf("[Fetcher] %s failed", "https://example.com")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "2024-01-03 10:00:00 - INFO: [IndexBuilder] pages=12\n")
	assert.Contains(t, out, "2024-01-03 10:00:00 - ERROR: [Fetcher] https://example.com failed\n")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LevelWarn, ParseLevel("warning"))
	assert.Equal(t, LevelError, ParseLevel("error"))
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))
}

func TestSetup_AppendsToFile(t *testing.T) {
	prev := Default()
	defer SetDefault(prev)

	path := filepath.Join(t.TempDir(), "error_log.log")
	closer, err := Setup(path, "warn", false)
	require.NoError(t, err)

	Infof("not written")
	Warnf("written once")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "not written")
	assert.Contains(t, string(data), "WARNING: written once")
}
