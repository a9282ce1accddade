package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ha1tch/odbcbridge/pkg/errors"
	"github.com/ha1tch/odbcbridge/pkg/log"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, "sqlite3", cfg.Source.Driver)
	assert.Equal(t, 64, cfg.Conversion.MaxDepth)
	assert.Equal(t, 1024, cfg.Conversion.VarcharSize)
	assert.True(t, cfg.Cursor.Scrollable)
	assert.False(t, cfg.Watch)
	assert.Empty(t, cfg.File)
}

func TestLoad_Layers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "odbcbridge.yaml")
	writeFile(t, path, `
log:
  level: info
  format: json
source:
  driver: sqlserver
  dsn: sqlserver://localhost
conversion:
  varchar_size: 255
`)

	t.Setenv(EnvConfigFile, path)
	t.Setenv("ODBCBRIDGE_LOG_LEVEL", "debug")
	t.Setenv("ODBCBRIDGE_CONVERSION_MAX_DEPTH", "8")

	cfg, err := Load(WithEnv(), WithOverrides(map[string]string{
		"source.dsn": "sqlserver://override",
	}))
	require.NoError(t, err)

	assert.Equal(t, path, cfg.File)
	assert.Equal(t, "debug", cfg.Log.Level, "environment beats file")
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "sqlserver", cfg.Source.Driver)
	assert.Equal(t, "sqlserver://override", cfg.Source.DSN, "overrides beat everything")
	assert.Equal(t, 8, cfg.Conversion.MaxDepth)
	assert.Equal(t, 255, cfg.Conversion.VarcharSize)
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(WithFile(filepath.Join(t.TempDir(), "absent.yaml")))
	require.NoError(t, err)
	assert.Empty(t, cfg.File)
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	writeFile(t, path, "log: [unterminated")

	_, err := Load(WithFile(path))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeConfigParse))
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		overrides map[string]string
	}{
		{"log level", map[string]string{"log.level": "loud"}},
		{"log format", map[string]string{"log.format": "xml"}},
		{"max depth", map[string]string{"conversion.max_depth": "0"}},
		{"varchar size", map[string]string{"conversion.varchar_size": "-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(WithOverrides(tt.overrides))
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrCodeConfigInvalid))
		})
	}
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "log.level", envKey("ODBCBRIDGE_LOG_LEVEL"))
	assert.Equal(t, "conversion.varchar_size", envKey("ODBCBRIDGE_CONVERSION_VARCHAR_SIZE"))
	assert.Equal(t, "watch", envKey("ODBCBRIDGE_WATCH"))
}

func TestLoggerConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "driver.log")
	cfg, err := Load(WithOverrides(map[string]string{
		"log.level":  "error",
		"log.format": "json",
		"log.file":   path,
	}))
	require.NoError(t, err)

	lc, closer, err := cfg.LoggerConfig()
	require.NoError(t, err)
	defer closer.Close()

	assert.Equal(t, log.LevelError, lc.DefaultLevel)
	assert.Equal(t, log.FormatJSON, lc.Format)
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestWatcher_Reloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "odbcbridge.yaml")
	writeFile(t, path, "log:\n  level: warn\n")

	var mu sync.Mutex
	var levels []string
	logger := log.New(log.Config{DefaultLevel: log.LevelOff})

	w, err := NewWatcher(path, logger,
		WithDebounceDelay(20*time.Millisecond),
		WithOnReload(func(cfg *Config) {
			mu.Lock()
			levels = append(levels, cfg.Log.Level)
			mu.Unlock()
		}),
	)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()
	assert.True(t, w.IsRunning())

	time.Sleep(50 * time.Millisecond)
	writeFile(t, path, "log:\n  level: debug\n")

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(levels) > 0 && levels[len(levels)-1] == "debug"
	}, 2*time.Second, 20*time.Millisecond)
}

func TestWatcher_ReportsBadReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "odbcbridge.yaml")
	writeFile(t, path, "log:\n  level: warn\n")

	errs := make(chan error, 4)
	w, err := NewWatcher(path, log.New(log.Config{DefaultLevel: log.LevelOff}),
		WithDebounceDelay(20*time.Millisecond),
		WithOnError(func(err error) { errs <- err }),
	)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	time.Sleep(50 * time.Millisecond)
	writeFile(t, path, "log:\n  level: shouting\n")

	select {
	case err := <-errs:
		assert.True(t, errors.IsCode(err, errors.ErrCodeConfigInvalid))
	case <-time.After(2 * time.Second):
		t.Fatal("expected a reload error")
	}
}

func TestWatcher_StopIdempotent(t *testing.T) {
	w, err := NewWatcher(filepath.Join(t.TempDir(), "x.yaml"), nil)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())
	assert.False(t, w.IsRunning())
}
