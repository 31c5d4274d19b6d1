package logging_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/shmtable/internal/logging"
)

func Test_ParseLevel_Maps_Names_When_Known(t *testing.T) {
	t.Parallel()

	for name, want := range map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"":        slog.LevelWarn,
		"warning": slog.LevelWarn,
		" error ": slog.LevelError,
	} {
		got, err := logging.ParseLevel(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := logging.ParseLevel("loud")
	require.ErrorIs(t, err, logging.ErrUnknownLevel)
}

func Test_New_Writes_Text_To_Stderr_When_No_File(t *testing.T) {
	t.Parallel()

	var stderr bytes.Buffer

	log, closeLog, err := logging.New(logging.Options{Level: slog.LevelWarn, Stderr: &stderr})
	require.NoError(t, err)

	log.Info("hidden")
	log.Warn("insert_unique: key size mismatch", "op", "insert_unique")
	require.NoError(t, closeLog())

	out := stderr.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "op=insert_unique")
}

func Test_New_Appends_JSON_Lines_When_File_Set(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "logs", "shmt.log")

	for run := range 2 {
		log, closeLog, err := logging.New(logging.Options{Level: slog.LevelDebug, File: path})
		require.NoError(t, err)

		log.Debug("opened", "run", run)
		require.NoError(t, closeLog())
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	for i, line := range lines {
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		assert.Equal(t, "opened", rec["msg"])
		assert.InDelta(t, float64(i), rec["run"], 0)
	}
}

func Test_New_Discards_When_No_Destination(t *testing.T) {
	t.Parallel()

	log, closeLog, err := logging.New(logging.Options{})
	require.NoError(t, err)
	require.NoError(t, closeLog())

	assert.Same(t, logging.Discard, log)
	assert.False(t, log.Enabled(t.Context(), slog.LevelError))
}
