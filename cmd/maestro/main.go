// Maestro orchestration server — provides the JSON-RPC API and executes
// agent runs against the configured model provider.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/codeready-toolchain/maestro/pkg/agent"
	"github.com/codeready-toolchain/maestro/pkg/api"
	"github.com/codeready-toolchain/maestro/pkg/config"
	"github.com/codeready-toolchain/maestro/pkg/database"
	"github.com/codeready-toolchain/maestro/pkg/llm"
	"github.com/codeready-toolchain/maestro/pkg/services"
	"github.com/codeready-toolchain/maestro/pkg/version"
	"github.com/codeready-toolchain/maestro/pkg/workflow"
)

func main() {
	envPath := flag.String("env-file", ".env", "Path to the .env file")
	flag.Parse()

	// Load .env when present; a missing file is fine in container deploys.
	if err := godotenv.Load(*envPath); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment",
			"path", *envPath, "error", err)
	} else {
		slog.Info("Loaded environment", "path", *envPath)
	}

	cfg := config.Load()
	slog.Info("Starting maestro",
		"version", version.Full(),
		"port", cfg.Port,
		"model", cfg.ModelName)

	ctx := context.Background()

	dbClient, err := database.NewClient(ctx, database.Config{
		URI:      cfg.MongoURI,
		Database: cfg.MongoDB,
	})
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(context.Background()); err != nil {
			slog.Error("Error closing database client", "error", err)
		}
	}()
	slog.Info("Connected to MongoDB", "database", cfg.MongoDB)

	db := dbClient.DB()
	sessionService := services.NewSessionService(db)
	agentService := services.NewAgentService(db)
	runService := services.NewRunService(db)
	eventService := services.NewEventService(db)
	workflowService := services.NewWorkflowService(db)
	slog.Info("Services initialized")

	modelClient := llm.New(llm.Config{
		ModelName:      cfg.ModelName,
		OpenAIKey:      cfg.OpenAIKey,
		FireworksKey:   cfg.FireworksKey,
		FireworksModel: cfg.FireworksModel,
	})
	slog.Info("Model client initialized", "provider", modelClient.Provider())

	executor := agent.NewExecutor(cfg, runService, agentService, eventService, modelClient)
	runner := workflow.NewRunner(runService, agentService, executor)

	// Create the directory agent up front so the roster is never empty.
	if _, _, err := agent.EnsureDirectoryAgent(ctx, agentService, cfg.MainRouterSlug, cfg.MainRouterName); err != nil {
		slog.Error("Failed to ensure directory agent", "error", err)
		os.Exit(1)
	}
	slog.Info("Directory agent ready", "slug", cfg.MainRouterSlug)

	httpServer := api.NewServer(cfg, dbClient, sessionService, agentService,
		runService, eventService, workflowService, executor, runner)

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		slog.Info("HTTP server listening", "addr", addr)
		if err := httpServer.Start(addr); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
}
