package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/harmonia-labs/livemix/internal/adapters/lastfm"
	"github.com/harmonia-labs/livemix/internal/adapters/ollama"
	"github.com/harmonia-labs/livemix/internal/adapters/rest"
	"github.com/harmonia-labs/livemix/internal/adapters/spotify"
	"github.com/harmonia-labs/livemix/internal/adapters/sqlite"
	"github.com/harmonia-labs/livemix/internal/adapters/tempo"
	valkeystore "github.com/harmonia-labs/livemix/internal/adapters/valkey"
	"github.com/harmonia-labs/livemix/internal/config"
	"github.com/harmonia-labs/livemix/internal/core/ports"
	"github.com/harmonia-labs/livemix/internal/core/services"
	"github.com/harmonia-labs/livemix/internal/ratelimit"
	"github.com/harmonia-labs/livemix/internal/stream"
	"github.com/harmonia-labs/livemix/internal/worker"
)

func main() {
	// 1. Configuration. Crash early if required settings are missing.
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))

	// 2. Session storage.
	var repo ports.SessionRepository
	var repoCloser func()

	switch cfg.StorageDriver {
	case "valkey":
		store, err := valkeystore.NewStore(cfg.ValkeyAddr, cfg.SessionTTL)
		if err != nil {
			logger.Error("failed to connect to valkey", "addr", cfg.ValkeyAddr, "error", err)
			os.Exit(1)
		}
		repo = store
		repoCloser = store.Close
	case "sqlite":
		store, err := sqlite.NewStore(cfg.SQLitePath, cfg.SessionTTL)
		if err != nil {
			logger.Error("failed to open sqlite store", "path", cfg.SQLitePath, "error", err)
			os.Exit(1)
		}
		repo = store
		repoCloser = func() { _ = store.Close() }
	}
	defer repoCloser()

	// 3. Driven adapters.
	// Spotify auth: a stored refresh token gives a user-scoped client
	// (playback control needs one); without it, client credentials
	// still cover catalog search.
	ctx := context.Background()
	var spotifyHTTP *http.Client
	if cfg.SpotifyRefreshToken != "" {
		oauthCfg := &oauth2.Config{
			ClientID:     cfg.SpotifyClientID,
			ClientSecret: cfg.SpotifyClientSecret,
			Endpoint:     oauth2.Endpoint{TokenURL: cfg.SpotifyTokenURL},
		}
		token := &oauth2.Token{RefreshToken: cfg.SpotifyRefreshToken, Expiry: time.Now()}
		spotifyHTTP = oauth2.NewClient(ctx, oauthCfg.TokenSource(ctx, token))
	} else {
		logger.Warn("no SPOTIFY_REFRESH_TOKEN set, playback control will be unavailable")
		cc := &clientcredentials.Config{
			ClientID:     cfg.SpotifyClientID,
			ClientSecret: cfg.SpotifyClientSecret,
			TokenURL:     cfg.SpotifyTokenURL,
		}
		spotifyHTTP = cc.Client(ctx)
	}
	spotifyHTTP.Timeout = 15 * time.Second

	spotifyClient := spotify.NewClient(spotifyHTTP, cfg.SpotifyAPIURL, logger)
	similarClient := lastfm.New(cfg.LastFMAPIKey, cfg.LastFMSecret)
	tempoClient := tempo.NewClient(cfg.TempoAPIURL, cfg.TempoAPIKey)
	aiClient := ollama.NewClient(cfg.OllamaURL, cfg.OllamaModel)

	// 4. Core services.
	limiter := ratelimit.New(ratelimit.DefaultLanes(), cfg.GlobalRPS)
	runner := worker.NewRunner(logger)

	suggester := services.NewSuggester(spotifyClient, similarClient, tempoClient, aiClient, limiter, logger)
	autofill := services.NewAutoFill(repo, suggester, spotifyClient, logger)
	sessions := services.NewSessions(repo, spotifyClient, spotifyClient, tempoClient, aiClient, autofill, logger)

	newStream := func(userID string) *stream.Streamer {
		return stream.New(spotifyClient, sessions, runner, logger, stream.Config{
			UserID:       userID,
			PollInterval: cfg.PollInterval,
			MaxLifetime:  cfg.StreamMaxLifetime,
		})
	}

	// 5. HTTP surface.
	handler := rest.NewHandler(sessions, suggester, newStream, logger)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("live mix engine listening", "port", cfg.Port, "storage", cfg.StorageDriver)
		err := srv.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-serverErr:
		if err != nil {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	case <-sigCtx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown error", "error", err)
		}
		// Let in-flight background transitions land before exiting.
		runner.Wait()
	}
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
