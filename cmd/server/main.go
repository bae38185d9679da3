package main

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/radiocast/internal/adapter/httpserver"
	"github.com/pscheid92/radiocast/internal/adapter/sox"
	"github.com/pscheid92/radiocast/internal/app"
	"github.com/pscheid92/radiocast/internal/audio"
	"github.com/pscheid92/radiocast/internal/broadcast"
	"github.com/pscheid92/radiocast/internal/domain"
	"github.com/pscheid92/radiocast/internal/metrics"
	"github.com/pscheid92/radiocast/internal/platform/config"
	"github.com/pscheid92/radiocast/internal/platform/logging"
	"github.com/pscheid92/radiocast/internal/platform/version"
	"github.com/pscheid92/radiocast/internal/playback"
	"github.com/pscheid92/radiocast/internal/websocket"
	"github.com/pscheid92/radiocast/web"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupLibraries(ctx context.Context, cfg *config.Config) (sources, effects *audio.Library) {
	sources = audio.NewLibrary(cfg.SourcesDir, domain.ErrSourceNotFound)
	effects = audio.NewLibrary(cfg.EffectsDir, domain.ErrEffectNotFound)

	if cfg.WatchEffects {
		for _, lib := range []*audio.Library{sources, effects} {
			if err := lib.Watch(ctx); err != nil {
				slog.Warn("Library watch disabled, listing on every lookup", "dir", lib.Dir(), "error", err)
			}
		}
	}
	return sources, effects
}

func runGracefulShutdown(cfg *config.Config, srv *httpserver.Server, session *playback.Session, registry *broadcast.Registry, hub *websocket.Hub, stopWatchers context.CancelFunc) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		session.Close()
		registry.CloseAll()
		hub.Stop()
		stopWatchers()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	build := version.Get()
	metrics.BuildInfo.WithLabelValues(build.Version, build.Commit, build.BuildTime, build.GoVersion).Set(1)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "version", build.Version)

	watchCtx, stopWatchers := context.WithCancel(context.Background())
	sources, effects := setupLibraries(watchCtx, cfg)

	gateway := sox.NewGateway(sox.WithBinary(cfg.SoxPath), sox.WithFormat(cfg.AudioFormat))
	prober := audio.NewProber(gateway, cfg.FallbackBitrate)

	registry := broadcast.NewRegistry()
	broadcaster := broadcast.NewBroadcaster(registry, cfg.ChunkSize)

	session := playback.NewSession(
		playback.Config{
			DefaultSource: cfg.DefaultSource,
			Levels:        domain.MixLevels{Primary: cfg.ProgramVolume, Secondary: cfg.EffectVolume},
			ChunkSize:     cfg.ChunkSize,
			StopTimeout:   cfg.StopTimeout,
		},
		sources, effects, prober, gateway, broadcaster, clock,
	)

	hub := websocket.NewHub(cfg.MaxStatusClients)
	session.Subscribe(hub.Publish)
	hub.Publish(session.State())

	commands := app.NewCommands(session, effects)

	static, err := fs.Sub(web.StaticFiles, "static")
	if err != nil {
		slog.Error("Failed to load static files", "error", err)
		os.Exit(1)
	}

	healthChecks := []httpserver.HealthCheck{
		httpserver.BinaryCheck("sox", cfg.SoxPath),
		httpserver.DirCheck("sources_dir", cfg.SourcesDir),
		httpserver.DirCheck("effects_dir", cfg.EffectsDir),
	}
	srv := httpserver.NewServer(cfg, commands, registry, hub, static, healthChecks)

	done := runGracefulShutdown(cfg, srv, session, registry, hub, stopWatchers)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
