package config

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv    string `env:"APP_ENV" default:"development"`
	Port      string `env:"PORT" default:"8080"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	SourcesDir    string `env:"SOURCES_DIR" default:"audio/songs"`
	EffectsDir    string `env:"EFFECTS_DIR" default:"audio/fx"`
	DefaultSource string `env:"DEFAULT_SOURCE" default:"conversation"`
	WatchEffects  bool   `env:"WATCH_EFFECTS" default:"true"`

	SoxPath         string  `env:"SOX_PATH" default:"sox"`
	AudioFormat     string  `env:"AUDIO_FORMAT" default:"mp3"`
	ProgramVolume   float64 `env:"PROGRAM_VOLUME" default:"0.99"`
	EffectVolume    float64 `env:"EFFECT_VOLUME" default:"0.1"`
	FallbackBitrate int     `env:"FALLBACK_BITRATE" default:"128000"`

	ChunkSize            int `env:"CHUNK_SIZE" default:"4096"`
	ListenerBufferChunks int `env:"LISTENER_BUFFER_CHUNKS" default:"64"`
	MaxStatusClients     int `env:"MAX_STATUS_CLIENTS" default:"100"`

	CommandRateLimit float64 `env:"COMMAND_RATE_LIMIT" default:"5"`
	CommandRateBurst int     `env:"COMMAND_RATE_BURST" default:"10"`

	StopTimeout     time.Duration `env:"STOP_TIMEOUT" default:"5s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" default:"10s"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// IsProduction reports whether APP_ENV selects production behavior.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

func validate(cfg *Config) error {
	required := map[string]string{
		"SOURCES_DIR":    cfg.SourcesDir,
		"EFFECTS_DIR":    cfg.EffectsDir,
		"DEFAULT_SOURCE": cfg.DefaultSource,
		"SOX_PATH":       cfg.SoxPath,
		"AUDIO_FORMAT":   cfg.AudioFormat,
	}
	for _, name := range slices.Sorted(maps.Keys(required)) {
		if strings.TrimSpace(required[name]) == "" {
			return fmt.Errorf("%s is required", name)
		}
	}

	if cfg.ProgramVolume <= 0 || cfg.EffectVolume <= 0 {
		return errors.New("PROGRAM_VOLUME and EFFECT_VOLUME must be positive")
	}
	if cfg.FallbackBitrate <= 0 {
		return fmt.Errorf("FALLBACK_BITRATE must be positive, got %d", cfg.FallbackBitrate)
	}
	if cfg.ChunkSize <= 0 {
		return fmt.Errorf("CHUNK_SIZE must be positive, got %d", cfg.ChunkSize)
	}
	if cfg.ListenerBufferChunks <= 0 {
		return fmt.Errorf("LISTENER_BUFFER_CHUNKS must be positive, got %d", cfg.ListenerBufferChunks)
	}
	if cfg.CommandRateLimit <= 0 || cfg.CommandRateBurst <= 0 {
		return errors.New("COMMAND_RATE_LIMIT and COMMAND_RATE_BURST must be positive")
	}
	if cfg.StopTimeout <= 0 || cfg.ShutdownTimeout <= 0 {
		return errors.New("STOP_TIMEOUT and SHUTDOWN_TIMEOUT must be positive")
	}

	return nil
}
