package config

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func load(t *testing.T, env map[string]string) (*Config, error) {
	t.Helper()
	return LoadFrom(context.Background(), envconfig.MapLookuper(env))
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(t, map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, 1200, cfg.Width)
	assert.Equal(t, 680, cfg.Height)
	assert.Equal(t, 95, cfg.Quality)
	assert.Equal(t, "jpg", cfg.Format)
	assert.Equal(t, "frames_output", cfg.OutputDir)
	assert.Equal(t, 20.0, cfg.TargetFPS)
	assert.Equal(t, "skip", cfg.OnError)
	assert.Equal(t, 0, cfg.QueueDepth)
	assert.Equal(t, "ffmpeg", cfg.FFmpegPath)
	assert.Equal(t, "ffprobe", cfg.FFprobePath)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "/tmp/framegrab", cfg.TempDir)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.S3Enabled())
}

func TestLoad_CustomValues(t *testing.T) {
	cfg, err := load(t, map[string]string{
		"FRAMEGRAB_WIDTH":       "640",
		"FRAMEGRAB_HEIGHT":      "360",
		"FRAMEGRAB_QUALITY":     "80",
		"FRAMEGRAB_FORMAT":      "webp",
		"FRAMEGRAB_OUTPUT_DIR":  "/data/frames",
		"FRAMEGRAB_TARGET_FPS":  "2.5",
		"FRAMEGRAB_ON_ERROR":    "abort",
		"FRAMEGRAB_QUEUE_DEPTH": "8",
		"FFMPEG_PATH":           "/opt/ffmpeg/bin/ffmpeg",
		"PORT":                  "3000",
		"TEMP_DIR":              "/custom/temp",
		"S3_BUCKET":             "my-bucket",
		"S3_REGION":             "us-east-1",
		"S3_ENDPOINT":           "http://localhost:9000",
		"AWS_ACCESS_KEY_ID":     "access-key",
		"AWS_SECRET_ACCESS_KEY": "secret-key",
		"LOG_FORMAT":            "json",
		"LOG_LEVEL":             "debug",
	})
	require.NoError(t, err)

	assert.Equal(t, 640, cfg.Width)
	assert.Equal(t, 360, cfg.Height)
	assert.Equal(t, 80, cfg.Quality)
	assert.Equal(t, "webp", cfg.Format)
	assert.Equal(t, "/data/frames", cfg.OutputDir)
	assert.Equal(t, 2.5, cfg.TargetFPS)
	assert.Equal(t, "abort", cfg.OnError)
	assert.Equal(t, 8, cfg.QueueDepth)
	assert.Equal(t, "/opt/ffmpeg/bin/ffmpeg", cfg.FFmpegPath)
	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, "/custom/temp", cfg.TempDir)
	assert.Equal(t, "my-bucket", cfg.S3Bucket)
	assert.Equal(t, "us-east-1", cfg.S3Region)
	assert.Equal(t, "http://localhost:9000", cfg.S3Endpoint)
	assert.Equal(t, "access-key", cfg.AWSAccessKeyID)
	assert.Equal(t, "secret-key", cfg.AWSSecretAccessKey)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.S3Enabled())
}

func TestLoad_FromProcessEnvironment(t *testing.T) {
	t.Setenv("FRAMEGRAB_WIDTH", "320")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 320, cfg.Width)
}

func TestLoad_ParseErrors(t *testing.T) {
	_, err := load(t, map[string]string{"PORT": "not-a-number"})
	require.Error(t, err)

	_, err = load(t, map[string]string{"FRAMEGRAB_TARGET_FPS": "fast"})
	require.Error(t, err)
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name  string
		env   map[string]string
		field string
	}{
		{"zero width", map[string]string{"FRAMEGRAB_WIDTH": "0"}, "Width"},
		{"huge height", map[string]string{"FRAMEGRAB_HEIGHT": "20000"}, "Height"},
		{"quality above 100", map[string]string{"FRAMEGRAB_QUALITY": "101"}, "Quality"},
		{"unknown format", map[string]string{"FRAMEGRAB_FORMAT": "gif"}, "Format"},
		{"zero target fps", map[string]string{"FRAMEGRAB_TARGET_FPS": "0"}, "TargetFPS"},
		{"unknown policy", map[string]string{"FRAMEGRAB_ON_ERROR": "retry"}, "OnError"},
		{"negative queue", map[string]string{"FRAMEGRAB_QUEUE_DEPTH": "-1"}, "QueueDepth"},
		{"bucket without region", map[string]string{"S3_BUCKET": "b"}, "S3Region"},
		{"bad endpoint", map[string]string{"S3_ENDPOINT": "not a url"}, "S3Endpoint"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := load(t, tt.env)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestConfig_S3Enabled(t *testing.T) {
	tests := []struct {
		name     string
		bucket   string
		region   string
		expected bool
	}{
		{"both set", "bucket", "region", true},
		{"only bucket", "bucket", "", false},
		{"only region", "", "region", false},
		{"neither set", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				S3Bucket: tt.bucket,
				S3Region: tt.region,
			}
			assert.Equal(t, tt.expected, cfg.S3Enabled())
		})
	}
}

func TestConfig_String(t *testing.T) {
	cfg := &Config{
		Width:              1200,
		Height:             680,
		Port:               8080,
		TempDir:            "/tmp/test",
		S3Bucket:           "bucket",
		S3Region:           "region",
		AWSAccessKeyID:     "AKIDEXAMPLE",
		AWSSecretAccessKey: "secret-key",
		LogFormat:          "json",
		LogLevel:           "info",
	}

	str := cfg.String()

	// Should contain non-sensitive values
	assert.Contains(t, str, "8080")
	assert.Contains(t, str, "1200")
	assert.Contains(t, str, "/tmp/test")

	// Should NOT contain sensitive values
	assert.NotContains(t, str, "secret-key")
	assert.NotContains(t, str, "AKIDEXAMPLE")
}

func TestConfig_NewLoggerTo(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		cfg := &Config{LogFormat: "json", LogLevel: "info"}
		cfg.NewLoggerTo(&buf).Info("test message", slog.Int("frames", 3))

		assert.Contains(t, buf.String(), `"msg":"test message"`)
		assert.Contains(t, buf.String(), `"frames":3`)
	})

	t.Run("text respects level", func(t *testing.T) {
		var buf bytes.Buffer
		cfg := &Config{LogFormat: "text", LogLevel: "warn"}
		logger := cfg.NewLoggerTo(&buf)
		logger.Info("hidden")
		logger.Warn("shown")

		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "msg=shown")
	})

	t.Run("stdout logger", func(t *testing.T) {
		cfg := &Config{LogFormat: "text", LogLevel: "debug"}
		require.NotNil(t, cfg.NewLogger())
	})
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"unknown", slog.LevelInfo}, // defaults to info
		{"", slog.LevelInfo},        // defaults to info
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLogLevel(tt.input))
		})
	}
}
