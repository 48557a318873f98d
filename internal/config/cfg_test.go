package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfiguration_Defaults(t *testing.T) {
	cfg, err := LoadConfiguration("")
	require.NoError(t, err)
	require.Equal(t, 1, cfg.Version)
	require.Equal(t, "json", cfg.Output.Format)
	require.Equal(t, 2, cfg.Output.Indent)
	require.Equal(t, "normal", cfg.Logging.ConsoleLogger.Level)
	require.Equal(t, "none", cfg.Logging.FileLogger.Level)
}

func TestLoadConfiguration_Overlay(t *testing.T) {
	path := writeConfig(t, `version: 1
output:
  format: yaml
logging:
  console:
    level: debug
`)
	cfg, err := LoadConfiguration(path)
	require.NoError(t, err)
	require.Equal(t, "yaml", cfg.Output.Format)
	// untouched values keep their defaults
	require.Equal(t, 2, cfg.Output.Indent)
	require.Equal(t, "debug", cfg.Logging.ConsoleLogger.Level)
}

func TestLoadConfiguration_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown field", "version: 1\nunknown: 1\n"},
		{"bad version", "version: 2\n"},
		{"bad format", "version: 1\noutput:\n  format: xml\n"},
		{"bad indent", "version: 1\noutput:\n  indent: 40\n"},
		{"bad log level", "version: 1\nlogging:\n  console:\n    level: loud\n"},
		{"invalid yaml", "version: 1\noutput:\n  format: json\n invalid indent\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfiguration(writeConfig(t, tt.content))
			require.Error(t, err)
		})
	}

	_, err := LoadConfiguration(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestPrepareAndDump(t *testing.T) {
	data, err := Prepare()
	require.NoError(t, err)
	cfg, err := unmarshalConfig(data, &Config{}, true)
	require.NoError(t, err)

	dumped, err := Dump(cfg)
	require.NoError(t, err)
	back, err := unmarshalConfig(dumped, &Config{}, true)
	require.NoError(t, err)
	require.Equal(t, cfg, back)
}

func TestLoggingPrepare(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "mat73.log")
	conf := LoggingConfig{
		ConsoleLogger: LoggerConfig{Level: "none"},
		FileLogger:    LoggerConfig{Level: "normal", Destination: dest, Mode: "overwrite"},
	}
	log, err := conf.Prepare()
	require.NoError(t, err)
	require.False(t, log.Core().Enabled(zapcore.DebugLevel))
	log.Info("hello from test")
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.Contains(t, string(data), "hello from test")

	conf.FileLogger.Destination = ""
	_, err = conf.Prepare()
	require.Error(t, err)

	conf.FileLogger.Level = "none"
	log, err = conf.Prepare()
	require.NoError(t, err)
	require.False(t, log.Core().Enabled(zapcore.ErrorLevel))
}
