package logger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/exp/slog"
	"stockcount/internal/app/server/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name           string
		env            string
		expectedLevel  slog.Level
		expectedPretty bool
	}{
		{
			name:           "local environment",
			env:            config.EnvLocal,
			expectedLevel:  slog.LevelDebug,
			expectedPretty: true,
		},
		{
			name:           "dev environment",
			env:            config.EnvDev,
			expectedLevel:  slog.LevelDebug,
			expectedPretty: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := New(tt.env)
			require.NotNil(t, logger)
			ctx := context.Background()
			assert.Equal(t, tt.expectedLevel <= 0, logger.Enabled(ctx, slog.LevelDebug))
			assert.Equal(t, tt.expectedLevel <= slog.LevelInfo, logger.Enabled(ctx, slog.LevelInfo))
		})
	}
}

func TestNewWithFile_ProdSkipsDebug(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.log")

	log, closer := NewWithFile(config.EnvProd, FileOptions{Path: path, MaxSizeMB: 1})
	defer closer.Close()

	ctx := context.Background()
	assert.False(t, log.Enabled(ctx, slog.LevelDebug))

	log.Debug("отладка")
	log.Warn("сервер недоступен")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "отладка")
	assert.Contains(t, string(data), `"level":"WARN"`)
}

func TestNewWithFile_LocalTeesToStderr(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.log")

	log, closer := NewWithFile(config.EnvLocal, FileOptions{Path: path})
	defer closer.Close()

	assert.True(t, log.Enabled(context.Background(), slog.LevelDebug))
	log.With("component", "sync_engine").Debug("обход очереди")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"component":"sync_engine"`)
}

func TestNewWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.log")

	log, closer := NewWithFile(config.EnvDev, FileOptions{Path: path})
	require.NotNil(t, log)
	defer closer.Close()

	log.Info("позиция сохранена", "local_id", "0001")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "позиция сохранена")
	assert.Contains(t, string(data), `"local_id":"0001"`)
}
