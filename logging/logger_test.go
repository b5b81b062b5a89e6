package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigureLogging(t *testing.T) {
	originalLevel := Level.Level()
	originalDefault := Default
	t.Cleanup(func() {
		Level.Set(originalLevel)
		Default = originalDefault
		slog.SetDefault(originalDefault)
	})

	for name, params := range map[string]struct {
		envValue      *string
		expectedLevel slog.Level
	}{
		"unset":   {expectedLevel: slog.LevelInfo},
		"empty":   {envValue: strPtr(""), expectedLevel: slog.LevelInfo},
		"debug":   {envValue: strPtr("DEBUG"), expectedLevel: slog.LevelDebug},
		"lower":   {envValue: strPtr("warn"), expectedLevel: slog.LevelWarn},
		"unknown": {envValue: strPtr("LOUD"), expectedLevel: slog.LevelInfo},
	} {
		t.Run(name, func(t *testing.T) {
			Level.Set(slog.LevelInfo)
			if params.envValue != nil {
				t.Setenv(LevelKey, *params.envValue)
			} else {
				// t.Setenv restores any pre-existing value once the test is done
				t.Setenv(LevelKey, "")
				require.NoError(t, os.Unsetenv(LevelKey))
			}
			var buf bytes.Buffer
			configureLogging(&buf)
			assert.Equal(t, params.expectedLevel, Level.Level())
		})
	}
}

func TestNew_Format(t *testing.T) {
	var jsonBuf bytes.Buffer
	New(&jsonBuf, "").Info("hello", slog.String("taskArn", "arn:aws:ecs:task/1"))
	var record map[string]any
	require.NoError(t, json.Unmarshal(jsonBuf.Bytes(), &record))
	assert.Equal(t, "hello", record["msg"])
	assert.Equal(t, "arn:aws:ecs:task/1", record["taskArn"])

	var textBuf bytes.Buffer
	New(&textBuf, "TEXT").Info("hello")
	assert.Contains(t, textBuf.String(), "msg=hello")
}

func strPtr(s string) *string {
	return &s
}
