// Package main provides the driftdj CLI application entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"driftdj/internal/audius"
	"driftdj/internal/core"
	"driftdj/internal/flood"
	"driftdj/internal/gateway"
	httpserver "driftdj/internal/http"
	"driftdj/internal/player"
	"driftdj/internal/playlist"
	"driftdj/internal/queue"
	"driftdj/internal/store"
)

const defaultServerHost = "0.0.0.0"

var (
	cfgFile string
	config  *core.Config
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "driftdj",
	Short: "driftdj - Audius vibe radio and discovery",
	Long: `driftdj streams continuous vibe radio from the Audius catalog, with directed
search, fair shuffling, artist-diverse queueing, and a local draft playlist.`,
	RunE: runDriftdj,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("catalog-host", "", "Audius API host (default from discovery)")
	rootCmd.PersistentFlags().String("catalog-app-name", "driftdj", "app_name sent with catalog requests")
	rootCmd.PersistentFlags().String("write-proxy-url", "", "base URL of the playlist write proxy (empty disables writes)")
	rootCmd.PersistentFlags().Int("request-timeout-secs", 15, "catalog request timeout in seconds")
	rootCmd.PersistentFlags().String("server-host", defaultServerHost, "HTTP server host")
	rootCmd.PersistentFlags().Int("server-port", 8080, "HTTP server port")
	rootCmd.PersistentFlags().String("store-path", "", "directory for persisted preferences")
	rootCmd.PersistentFlags().String("player-backend", "speaker", "audio backend (speaker, none)")
	rootCmd.PersistentFlags().Int("stall-timeout-secs", core.DefaultStallTimeoutSecs, "buffering time before a track is skipped")
	rootCmd.PersistentFlags().Bool("preload", true, "buffer the upcoming track ahead of time")
	rootCmd.PersistentFlags().String("default-vibe", "lofi", "vibe started on boot")
	rootCmd.PersistentFlags().Int("batch-limit", core.DefaultBatchLimit, "page size for vibe fetches")
	rootCmd.PersistentFlags().Int("recent-ring-size", core.DefaultRecentRingSize, "recently-played ring capacity")
	rootCmd.PersistentFlags().Int("search-limit-per-minute", core.DefaultSearchLimitPerMinute, "directed searches allowed per caller per minute")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bind flags: %v\n", err)
		os.Exit(1)
	}
}

func initConfig() {
	envFile := ".env"
	if cfgFile != "" {
		envFile = cfgFile
	}

	if err := gotenv.Load(envFile); err != nil {
		// Missing .env is fine, anything else is worth a warning
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Error loading .env file: %v\n", err)
		}
	}

	viper.SetEnvPrefix("DRIFTDJ")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	config = buildConfig()
	logger = buildLogger(config.Log.Level)
}

func buildConfig() *core.Config {
	cfg := core.DefaultConfig()

	configureCatalog(cfg)
	configureServer(cfg)
	configurePlayer(cfg)
	configureApp(cfg)

	return cfg
}

func configureCatalog(cfg *core.Config) {
	if host := viper.GetString("catalog-host"); host != "" {
		cfg.Catalog.Host = host
	}
	if appName := viper.GetString("catalog-app-name"); appName != "" {
		cfg.Catalog.AppName = appName
	}
	cfg.Catalog.WriteProxyURL = viper.GetString("write-proxy-url")
	if secs := viper.GetInt("request-timeout-secs"); secs > 0 {
		cfg.Catalog.RequestTimeout = time.Duration(secs) * time.Second
	}
}

func configureServer(cfg *core.Config) {
	cfg.Server.Host = viper.GetString("server-host")
	if cfg.Server.Host == "" {
		cfg.Server.Host = defaultServerHost
	}
	cfg.Server.Port = viper.GetInt("server-port")
	cfg.Log.Level = viper.GetString("log-level")
}

func configurePlayer(cfg *core.Config) {
	cfg.Player.Backend = viper.GetString("player-backend")
	cfg.Player.StallTimeoutSecs = viper.GetInt("stall-timeout-secs")
	cfg.Player.Preload = viper.GetBool("preload")
	if cfg.Player.StallTimeoutSecs <= 0 {
		cfg.Player.StallTimeoutSecs = core.DefaultStallTimeoutSecs
	}
}

func configureApp(cfg *core.Config) {
	if path := viper.GetString("store-path"); path != "" {
		cfg.Store.Path = path
	}
	cfg.App.DefaultVibe = viper.GetString("default-vibe")
	cfg.App.BatchLimit = viper.GetInt("batch-limit")
	if cfg.App.BatchLimit <= 0 {
		cfg.App.BatchLimit = core.DefaultBatchLimit
	}
	cfg.App.RecentRingSize = viper.GetInt("recent-ring-size")
	if cfg.App.RecentRingSize <= 0 {
		cfg.App.RecentRingSize = core.DefaultRecentRingSize
	}
	cfg.App.SearchLimitPerMinute = viper.GetInt("search-limit-per-minute")
	if cfg.App.SearchLimitPerMinute <= 0 {
		cfg.App.SearchLimitPerMinute = core.DefaultSearchLimitPerMinute
	}
}

func buildLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch strings.ToLower(level) {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)

	builtLogger, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("Failed to build logger: %v", err))
	}

	return builtLogger
}

func runDriftdj(_ *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("Starting driftdj",
		zap.String("catalog_host", config.Catalog.Host),
		zap.String("default_vibe", config.App.DefaultVibe),
		zap.String("player_backend", config.Player.Backend),
		zap.Bool("writes_enabled", config.Catalog.WriteProxyURL != ""))

	if err := validateConfig(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	svcs, err := initializeServices()
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := svcs.audio.Close(); closeErr != nil {
			logger.Debug("Failed to close audio backend", zap.Error(closeErr))
		}
	}()

	return runServices(ctx, svcs)
}

func validateConfig() error {
	if config.Catalog.Host == "" {
		return fmt.Errorf("catalog host must not be empty")
	}
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", config.Server.Port)
	}
	if _, ok := core.Vibes[config.App.DefaultVibe]; !ok {
		return fmt.Errorf("unknown default vibe %q", config.App.DefaultVibe)
	}
	switch config.Player.Backend {
	case "speaker", "none":
	default:
		return fmt.Errorf("unknown player backend %q", config.Player.Backend)
	}
	return nil
}

type services struct {
	prefs      *store.PrefStore
	catalog    *audius.Client
	gateway    *gateway.Gateway
	queue      *queue.Controller
	audio      player.Audio
	session    *player.Session
	gate       *flood.Floodgate
	httpServer *httpserver.Server
}

func initializeServices() (*services, error) {
	prefs, err := store.NewPrefStore(config.Store.Path, config.App.RecentRingSize, logger.Named("store"))
	if err != nil {
		return nil, fmt.Errorf("opening preference store: %w", err)
	}

	catalog := audius.NewClient(config.Catalog.Host, config.Catalog.AppName,
		config.Catalog.RequestTimeout, logger.Named("audius"))

	metrics := httpserver.NewMetrics()
	gw := gateway.New(catalog, prefs, logger.Named("gateway"), metrics, config.App.BatchLimit, nil)

	seen := store.NewSeenSet(10000, 0.001)
	queueCtl := queue.NewController(gw, prefs, seen, logger.Named("queue"))

	audio := createAudioBackend()
	stallTimeout := time.Duration(config.Player.StallTimeoutSecs) * time.Second
	session := player.NewSession(audio, queueCtl, prefs, catalog, stallTimeout,
		config.Player.Preload, metrics, logger.Named("player"))

	var actions *audius.ActionClient
	var remote playlist.Remote
	var reactor httpserver.Reactor
	if config.Catalog.WriteProxyURL != "" {
		actions = audius.NewActionClient(config.Catalog.WriteProxyURL,
			config.Catalog.RequestTimeout, logger.Named("actions"))
		remote = actions
		reactor = actions
	}
	drafts := playlist.NewManager(prefs, remote, catalog, logger.Named("playlist"))

	gate := flood.New(config.App.SearchLimitPerMinute)

	httpServer := httpserver.NewServer(&config.Server, logger.Named("http"),
		gw, catalog, queueCtl, session, drafts, prefs, reactor, gate, metrics)

	return &services{
		prefs:      prefs,
		catalog:    catalog,
		gateway:    gw,
		queue:      queueCtl,
		audio:      audio,
		session:    session,
		gate:       gate,
		httpServer: httpServer,
	}, nil
}

func createAudioBackend() player.Audio {
	if config.Player.Backend == "none" {
		logger.Info("Running headless, no audio output")
		return player.NewNullAudio()
	}
	return player.NewBeepAudio(config.Catalog.RequestTimeout, logger.Named("audio"))
}

func runServices(ctx context.Context, svcs *services) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return svcs.httpServer.Start(gCtx)
	})

	g.Go(func() error {
		return svcs.queue.Run(gCtx)
	})

	g.Go(func() error {
		return svcs.session.Run(gCtx)
	})

	logger.Info("driftdj started successfully",
		zap.String("http_addr", fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)))

	startDefaultVibe(gCtx, svcs)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		svcs.gate.Stop()
		logger.Error("driftdj stopped with error", zap.Error(err))
		return err
	}

	svcs.gate.Stop()
	logger.Info("driftdj stopped gracefully")
	return nil
}

// startDefaultVibe primes the queue so the service plays something right
// after boot instead of waiting for the first API call.
func startDefaultVibe(ctx context.Context, svcs *services) {
	tracks, err := svcs.gateway.FetchVibeBatch(ctx, config.App.DefaultVibe)
	if err != nil {
		logger.Warn("Default vibe fetch failed, waiting for API input",
			zap.String("vibe", config.App.DefaultVibe),
			zap.Error(err))
		return
	}
	svcs.queue.Load(config.App.DefaultVibe, tracks)
	svcs.session.StartCurrent()
}
