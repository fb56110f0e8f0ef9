package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	config "pagesmith/app/configs"
	"pagesmith/app/core/generate"
	"pagesmith/app/core/intake"
	httpserver "pagesmith/app/core/interaction/http"
	"pagesmith/app/core/llm"
	"pagesmith/app/core/notify"
	"pagesmith/app/core/publish"
	"pagesmith/app/core/queue"
	"pagesmith/app/core/repohost"
	"pagesmith/app/core/store"
	"pagesmith/app/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	cfg := config.FromEnv()
	if err := logger.Init(cfg.Log.Dir, cfg.Log.Level); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	logger.Info("Pagesmith starting up")

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration invalid: %v", err)
		os.Exit(1)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		logger.Error("Failed to prepare directories: %v", err)
		os.Exit(1)
	}

	dedup := store.New(cfg.Storage.StorePath)

	providers := []llm.Provider{llm.NewGroq(cfg.LLM.GroqAPIKey)}
	if cfg.LLM.GeminiAPIKey != "" {
		providers = append(providers, llm.NewGemini(cfg.LLM.GeminiAPIKey))
		logger.Info("Generation chain: groq with gemini backup")
	} else {
		logger.Info("Generation chain: groq only")
	}
	engine := generate.NewEngine(cfg.Storage.AttachmentsDir, providers...)

	host := repohost.NewClient(cfg.GitHub.Token, cfg.GitHub.Username,
		repohost.WithPolling(cfg.Deploy.PollAttempts, cfg.Deploy.PollInterval))
	pipeline := publish.New(host)
	notifier := notify.New(cfg.Notifier.MaxRetries, cfg.Notifier.InitialDelay)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	jobs := queue.New(cfg.Server.QueueBuffer)
	if err := jobs.Start(ctx, cfg.Server.QueueWorkers); err != nil {
		logger.Error("Failed to start queue: %v", err)
		os.Exit(1)
	}
	defer func() {
		if err := jobs.Stop(30 * time.Second); err != nil {
			logger.Error("Queue shutdown: %v", err)
		}
	}()

	processor := intake.NewPipeline(engine, pipeline, notifier, dedup)
	gate := intake.NewGate(cfg.Server.Secret, dedup, notifier, jobs, processor)

	server := httpserver.NewServer(cfg.Server.Port, gate)
	go func() {
		if err := server.Start(ctx); err != nil {
			logger.Error("HTTP server crashed: %v", err)
			os.Exit(1)
		}
	}()

	logger.Info("Pagesmith is ready to serve on port %d", cfg.Server.Port)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("Received signal: %v. Shutting down...", sig)
	cancel()
}
