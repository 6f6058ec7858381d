package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/topicseg/topicseg-agent/internal/api"
	"github.com/topicseg/topicseg-agent/internal/cache"
	"github.com/topicseg/topicseg-agent/internal/catalog"
	"github.com/topicseg/topicseg-agent/internal/config"
	"github.com/topicseg/topicseg-agent/internal/db"
	"github.com/topicseg/topicseg-agent/internal/llm"
	"github.com/topicseg/topicseg-agent/internal/logging"
	"github.com/topicseg/topicseg-agent/internal/segmentation"
	"github.com/topicseg/topicseg-agent/internal/transcript"
	"github.com/topicseg/topicseg-agent/internal/ui"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	startTime := time.Now()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel())
	if cfg.LogFile() != "" {
		var closer io.Closer
		logger, closer = logging.NewFileLogger(cfg.LogLevel(), logging.FileOptions{Path: cfg.LogFile()})
		defer closer.Close()
	}
	logger.Info("starting topicseg agent",
		"version", config.Version,
		"commit", config.GitCommit,
		"build_time", config.BuildTime,
		"data_dir", cfg.DataDir(),
	)

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	repo := catalog.NewRepository(database.Conn())

	instanceID, err := ensureInstanceID(repo)
	if err != nil {
		return fmt.Errorf("failed to ensure instance ID: %w", err)
	}
	logger.Info("agent instance", "instance_id", instanceID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scheduler, err := segmentation.NewScheduler(newSegmenter(cfg, logger), segmentation.Options{
		ChunkDuration:   cfg.ChunkDuration(),
		OverlapDuration: cfg.OverlapDuration(),
		MaxChars:        cfg.MaxChars(),
		Adjacency:       cfg.AdjacencyThreshold(),
	}, logging.WithComponent(logger, "scheduler"))
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	hot := newHotCache(ctx, cfg, logger)
	defer hot.Close()

	service := catalog.NewService(repo, newTranscriptSource(cfg, logger), scheduler, hot, catalog.ServiceConfig{
		MinCoverage:       cfg.MinCoverage(),
		MaxConcurrentRuns: int64(cfg.MaxConcurrentRuns()),
	}, logger)

	hub := catalog.NewProgressHub()
	runner := catalog.NewRunner(service, repo, hub, logging.WithComponent(logger, "runner"))
	go runner.Start(ctx)

	apiServer := api.NewServer(api.ServerConfig{
		Port:       cfg.Port(),
		Service:    service,
		Hub:        hub,
		Runner:     runner,
		Database:   database,
		Logger:     logger,
		StartTime:  startTime,
		Version:    config.Version,
		InstanceID: instanceID,
	})

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	fmt.Println()
	fmt.Printf("  Topicseg agent v%s\n", config.Version)
	fmt.Printf("  API URL: http://%s\n", apiServer.Addr())
	fmt.Println()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	quitCh := make(chan struct{})

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			close(quitCh)
		case <-quitCh:
		}
	}()

	if cfg.Headless() {
		logger.Info("running in headless mode (no system tray)")
	} else {
		tray := ui.NewTray(ui.TrayConfig{
			Videos: service,
			Runner: runner,
			Logger: logging.WithComponent(logger, "tray"),
			APIURL: "http://" + apiServer.Addr(),
			OnQuit: func() {
				close(quitCh)
			},
		})
		go tray.Run()
	}

	<-quitCh

	logger.Info("initiating graceful shutdown")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// newSegmenter returns the LLM client when an API key is configured and the
// offline stub otherwise.
func newSegmenter(cfg config.Config, logger *slog.Logger) segmentation.Segmenter {
	if cfg.LLMAPIKey() == "" {
		logger.Warn("no LLM API key configured, using offline stub segmenter")
		return &llm.StubSegmenter{}
	}

	client, err := llm.NewClient(llm.Config{
		BaseURL: cfg.LLMBaseURL(),
		APIKey:  cfg.LLMAPIKey(),
		Model:   cfg.LLMModel(),
		Timeout: cfg.LLMTimeout(),
		Logger:  logger,
	})
	if err != nil {
		logger.Warn("LLM client unavailable, using offline stub segmenter", "error", err)
		return &llm.StubSegmenter{}
	}

	logger.Info("LLM segmenter enabled",
		"model", client.Model(),
		"api_key", logging.SanitizeToken(cfg.LLMAPIKey()),
	)
	return client
}

// newTranscriptSource chains the local transcript directory, when set, in
// front of the transcript CLI.
func newTranscriptSource(cfg config.Config, logger *slog.Logger) transcript.Source {
	var sources []transcript.Source

	if dir := cfg.TranscriptDir(); dir != "" {
		sources = append(sources, transcript.NewFileSource(dir))
		logger.Info("local transcripts enabled", "dir", dir)
	}

	subCfg := transcript.DefaultSubprocessConfig(logging.WithComponent(logger, "transcript"))
	subCfg.PythonPath = cfg.TranscriptPython()
	if m := cfg.TranscriptModule(); m != "" {
		subCfg.ModuleName = m
	}
	if d := cfg.TranscriptTimeout(); d > 0 {
		subCfg.Timeout = d
	}
	sub, err := transcript.NewSubprocessSource(subCfg)
	if err != nil {
		logger.Warn("transcript CLI unavailable, fetching disabled", "error", err)
	} else {
		sources = append(sources, sub)
	}

	return transcript.NewChainSource(sources...)
}

func newHotCache(ctx context.Context, cfg config.Config, logger *slog.Logger) cache.Cache {
	if cfg.RedisURL() == "" {
		return cache.Noop{}
	}

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rc, err := cache.ConnectRedis(connectCtx, cfg.RedisURL(), cfg.RedisTTL())
	if err != nil {
		logger.Warn("redis unavailable, hot cache disabled", "error", err)
		return cache.Noop{}
	}
	logger.Info("redis hot cache enabled", "ttl", cfg.RedisTTL())
	return rc
}

// ensureInstanceID returns the id stored in the config table, creating it
// on first start.
func ensureInstanceID(repo catalog.Repository) (string, error) {
	ctx := context.Background()

	existing, err := repo.GetConfig(ctx, "instance_id")
	if err == nil && existing != "" {
		return existing, nil
	}

	id := catalog.NewID()
	if err := repo.SetConfig(ctx, "instance_id", id); err != nil {
		return "", err
	}
	return id, nil
}
