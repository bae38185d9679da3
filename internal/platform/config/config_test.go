package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultValues(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "audio/songs", cfg.SourcesDir)
	assert.Equal(t, "audio/fx", cfg.EffectsDir)
	assert.Equal(t, "conversation", cfg.DefaultSource)
	assert.Equal(t, "sox", cfg.SoxPath)
	assert.Equal(t, "mp3", cfg.AudioFormat)
	assert.InDelta(t, 0.99, cfg.ProgramVolume, 1e-9)
	assert.InDelta(t, 0.1, cfg.EffectVolume, 1e-9)
	assert.Equal(t, 128000, cfg.FallbackBitrate)
	assert.Equal(t, 4096, cfg.ChunkSize)
	assert.Equal(t, 64, cfg.ListenerBufferChunks)
	assert.True(t, cfg.WatchEffects)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_CustomValues(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("APP_ENV", "Production")
	t.Setenv("SOURCES_DIR", "/srv/songs")
	t.Setenv("EFFECT_VOLUME", "0.25")
	t.Setenv("WATCH_EFFECTS", "false")
	t.Setenv("SHUTDOWN_TIMEOUT", "3s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "/srv/songs", cfg.SourcesDir)
	assert.InDelta(t, 0.25, cfg.EffectVolume, 1e-9)
	assert.False(t, cfg.WatchEffects)
	assert.Equal(t, 3*time.Second, cfg.ShutdownTimeout)
}

func TestLoad_MissingRequired(t *testing.T) {
	tests := []struct {
		name    string
		env     string
		wantErr string
	}{
		{"empty SOURCES_DIR", "SOURCES_DIR", "SOURCES_DIR is required"},
		{"empty EFFECTS_DIR", "EFFECTS_DIR", "EFFECTS_DIR is required"},
		{"empty DEFAULT_SOURCE", "DEFAULT_SOURCE", "DEFAULT_SOURCE is required"},
		{"empty SOX_PATH", "SOX_PATH", "SOX_PATH is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.env, " ")

			_, err := Load()
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, err.Error())
		})
	}
}

func TestLoad_RejectsInvalidNumbers(t *testing.T) {
	tests := []struct {
		name    string
		env     string
		value   string
		wantErr string
	}{
		{"zero fallback bitrate", "FALLBACK_BITRATE", "0", "FALLBACK_BITRATE must be positive"},
		{"negative chunk size", "CHUNK_SIZE", "-1", "CHUNK_SIZE must be positive"},
		{"zero listener buffer", "LISTENER_BUFFER_CHUNKS", "0", "LISTENER_BUFFER_CHUNKS must be positive"},
		{"zero effect volume", "EFFECT_VOLUME", "0", "EFFECT_VOLUME must be positive"},
		{"zero rate limit", "COMMAND_RATE_LIMIT", "0", "COMMAND_RATE_BURST must be positive"},
		{"zero shutdown timeout", "SHUTDOWN_TIMEOUT", "0s", "SHUTDOWN_TIMEOUT must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.env, tt.value)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_MalformedValue(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "lots")

	_, err := Load()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load environment variables")
}
