package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jsonConfig(level Level) *Config {
	cfg := DefaultConfig()
	cfg.Format = JSONFormat
	cfg.Level = level
	return cfg
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		m := map[string]interface{}{}
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestKeysAndValues(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(jsonConfig(InfoLevel), &buf)

	l.Named("ledger").WithFields("user_id", 7).Info("draw committed", "count", 10, "balance", int64(990))
	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "ledger", lines[0]["logger"])
	assert.Equal(t, "draw committed", lines[0]["msg"])
	assert.EqualValues(t, 7, lines[0]["user_id"])
	assert.EqualValues(t, 10, lines[0]["count"])
	assert.EqualValues(t, 990, lines[0]["balance"])
}

func TestLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(jsonConfig(WarnLevel), &buf)
	l.Debug("hidden")
	l.Info("hidden")
	l.Warn("shown")
	assert.Len(t, decodeLines(t, &buf), 1)
}

func TestOddKeysAndValues(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(jsonConfig(InfoLevel), &buf)
	l.Info("odd", "a", 1, "dangling")
	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.EqualValues(t, 1, lines[0]["a"])
	_, ok := lines[0]["dangling"]
	assert.False(t, ok)
}

func TestContextFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(jsonConfig(InfoLevel), &buf)
	ctx := ContextWithFields(context.Background(), "session_id", "abc")
	l.InfoContext(ctx, "hello", "k", "v")
	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "abc", lines[0]["session_id"])
	assert.Equal(t, "v", lines[0]["k"])
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnableFile = true
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidOutputPath)

	cfg = DefaultConfig()
	cfg.EnableConsole = false
	assert.ErrorIs(t, cfg.Validate(), ErrNoOutputEnabled)

	_, err := New(cfg)
	assert.ErrorIs(t, err, ErrNoOutputEnabled)
}

func TestFileOutput(t *testing.T) {
	cfg := jsonConfig(InfoLevel)
	cfg.EnableConsole = false
	cfg.EnableFile = true
	cfg.OutputPath = filepath.Join(t.TempDir(), "wish.log")
	l, err := New(cfg)
	require.NoError(t, err)
	l.Info("to file")
	_ = l.Sync()
}

func TestNoop(t *testing.T) {
	var l Logger = NewNoop()
	l.Named("x").WithFields("a", 1).Error("nothing")
	assert.NoError(t, l.Sync())
}
