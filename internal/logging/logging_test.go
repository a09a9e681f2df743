package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("INFO"))
	assert.Equal(t, slog.LevelWarn, ParseLevel(" warning "))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
}

func TestSplitHandlerRouting(t *testing.T) {
	var out, errOut bytes.Buffer
	log := slog.New(NewSplitHandler(&out, &errOut, slog.LevelDebug))

	log.Info("fine")
	log.Warn("trouble")

	assert.Contains(t, out.String(), "fine")
	assert.NotContains(t, out.String(), "trouble")
	assert.Contains(t, errOut.String(), "trouble")
}

func TestRecordShape(t *testing.T) {
	var out, errOut bytes.Buffer
	log := slog.New(NewSplitHandler(&out, &errOut, slog.LevelInfo)).With("module", "scanner")

	log.Info("scan complete", "tasks", 3)

	var record map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &record))
	assert.Equal(t, "scan complete", record["message"])
	assert.Equal(t, "info", record["level"])
	assert.Equal(t, "scanner", record["module"])
	assert.Equal(t, float64(3), record["tasks"])
	assert.Contains(t, record, "timestamp")
	assert.NotContains(t, record, "msg")
	assert.NotContains(t, record, "time")
}

func TestMinimumLevel(t *testing.T) {
	var out, errOut bytes.Buffer
	log := slog.New(NewSplitHandler(&out, &errOut, slog.LevelWarn))

	log.Info("ignored")
	log.Error("kept")

	assert.Empty(t, out.String())
	assert.Contains(t, errOut.String(), "kept")
}
