// internal/observability/logger_test.go
package observability

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/webready/internal/config"
)

// syncBuffer adapts a bytes.Buffer to zapcore.WriteSyncer.
func syncBuffer() (*bytes.Buffer, zapcore.WriteSyncer) {
	var buf bytes.Buffer
	return &buf, zapcore.AddSync(&buf)
}

func TestInitialize(t *testing.T) {
	t.Run("console logger colorizes levels", func(t *testing.T) {
		ResetForTest()
		buf, ws := syncBuffer()

		Initialize(config.LoggerConfig{
			Level:       "debug",
			Format:      "console",
			ServiceName: "TestService",
			Colors:      config.ColorConfig{Info: "green"},
		}, ws)
		GetLogger().Info("This is a test message.")
		Sync()

		out := buf.String()
		assert.Contains(t, out, "INFO")
		assert.Contains(t, out, "TestService.")
		assert.Contains(t, out, "This is a test message.")
		assert.Contains(t, out, ansiColors["green"]+"INFO"+colorReset)
	})

	t.Run("json logger", func(t *testing.T) {
		ResetForTest()
		buf, ws := syncBuffer()

		Initialize(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "JSONTest"}, ws)
		GetLogger().Warn("This is a JSON message.", zap.String("key", "value"))
		Sync()

		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "Log output should be valid JSON")
		assert.Equal(t, "WARN", entry["level"])
		assert.Equal(t, "JSONTest", entry["logger"])
		assert.Equal(t, "This is a JSON message.", entry["msg"])
		assert.Equal(t, "value", entry["key"])
	})

	t.Run("level filters entries", func(t *testing.T) {
		ResetForTest()
		buf, ws := syncBuffer()

		Initialize(config.LoggerConfig{Level: "warn", Format: "json"}, ws)
		GetLogger().Info("dropped")
		Sync()
		assert.Empty(t, buf.String())
	})

	t.Run("writes to a rotated log file", func(t *testing.T) {
		ResetForTest()
		_, ws := syncBuffer()
		path := filepath.Join(t.TempDir(), "webready.log")

		Initialize(config.LoggerConfig{Level: "debug", Format: "console", LogFile: path, MaxSize: 1}, ws)
		GetLogger().Error("This should go to the file.")
		Sync()

		content, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(content), `"msg":"This should go to the file."`)
	})

	t.Run("initializes only once", func(t *testing.T) {
		ResetForTest()
		buf, ws := syncBuffer()

		Initialize(config.LoggerConfig{Level: "info", ServiceName: "First"}, ws)
		first := GetLogger()
		Initialize(config.LoggerConfig{Level: "debug", ServiceName: "Second"}, ws)
		second := GetLogger()

		assert.Same(t, first, second)
		second.Info("test")
		Sync()
		assert.Contains(t, buf.String(), "First")
		assert.NotContains(t, buf.String(), "Second")
	})
	ResetForTest()
}

func TestGetLogger_Fallback(t *testing.T) {
	ResetForTest()
	assert.NotNil(t, GetLogger())
}

func TestWriteTextfile_Recorders(t *testing.T) {
	RecordPoll(OutcomeReady, 3, 120*time.Millisecond)
	RecordClickFallback(true)
	RecordScenarioStep("click", false)

	path := filepath.Join(t.TempDir(), "webready.prom")
	require.NoError(t, WriteTextfile(path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(content)
	assert.Contains(t, out, `webready_polls_total{outcome="ready"}`)
	assert.Contains(t, out, "webready_poll_evaluations_total")
	assert.Contains(t, out, `webready_click_fallbacks_total{result="ok"}`)
	assert.Contains(t, out, `webready_scenario_steps_total{action="click",result="error"}`)
}
