// Command server boots the compliance rule engine: wiring the generator,
// sandbox, validator, refinement loop, ingestion pipeline, rules store, and
// compliance evaluator into one HTTP process.
package main

import (
	"context"
	"database/sql"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/production-agents-for-compliance/claude-chatbot/internal/compliance"
	"github.com/production-agents-for-compliance/claude-chatbot/internal/config"
	"github.com/production-agents-for-compliance/claude-chatbot/internal/employees"
	"github.com/production-agents-for-compliance/claude-chatbot/internal/generator"
	"github.com/production-agents-for-compliance/claude-chatbot/internal/httpapi"
	"github.com/production-agents-for-compliance/claude-chatbot/internal/ingest"
	"github.com/production-agents-for-compliance/claude-chatbot/internal/refine"
	"github.com/production-agents-for-compliance/claude-chatbot/internal/rulesstore"
	"github.com/production-agents-for-compliance/claude-chatbot/internal/sandbox"
	"github.com/production-agents-for-compliance/claude-chatbot/internal/validator"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

func main() {
	os.Exit(run())
}

func run() int {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		log.Printf("[rules-engine] config: %v", err)
		return 1
	}

	ctx := context.Background()

	gen := buildGenerator(cfg)
	executor := buildSandboxExecutor(cfg)

	val := validator.New(executor, logger, cfg.PreserveSandboxes)
	loop := refine.New(gen, val, logger)

	var auditLog ingest.AuditLog
	if sqlLog, err := buildAuditLog(cfg); err != nil {
		logger.Warn("audit log unavailable, continuing without it", "error", err)
	} else {
		auditLog = sqlLog
	}
	pipeline := ingest.New(gen, loop, auditLog, logger)

	cache := buildCache(cfg)
	store, err := rulesstore.New(cfg.RulesDir, cache)
	if err != nil {
		log.Printf("[rules-engine] rules store: %v", err)
		return 1
	}

	localRunner := compliance.NewLocalRunner(cfg.PythonBin, executor)
	evaluator := compliance.New(store, localRunner, logger)

	directory, err := employees.LoadDemo()
	if err != nil {
		log.Printf("[rules-engine] employee directory: %v", err)
		return 1
	}

	srv := &httpapi.Server{
		Pipeline:  pipeline,
		Store:     store,
		Evaluator: evaluator,
		Directory: directory,
		Logger:    logger,
	}

	limiter := httpapi.NewRateLimiter(20, 40)
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Routes(limiter),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("rules engine listening", "port", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		return 1
	}
	return 0
}

// buildGenerator wires an Anthropic client, optionally wrapped in a
// fast/smart Router when both model identifiers are configured.
func buildGenerator(cfg *config.Config) generator.Generator {
	fastModel := cfg.FastModel
	if fastModel == "" {
		fastModel = "claude-haiku-4-5"
	}
	smartModel := cfg.SmartModel
	if smartModel == "" {
		smartModel = "claude-sonnet-4-5"
	}

	if cfg.FastModel != "" && cfg.SmartModel != "" {
		fast := generator.NewAnthropicClient(cfg.AnthropicAPIKey, fastModel)
		smart := generator.NewAnthropicClient(cfg.AnthropicAPIKey, smartModel)
		return generator.NewRouter(fast, smart)
	}
	return generator.NewAnthropicClient(cfg.AnthropicAPIKey, smartModel)
}

// buildSandboxExecutor prefers the WASI-backed executor when a guest module
// is configured, falling back to a subprocess interpreter otherwise.
func buildSandboxExecutor(cfg *config.Config) sandbox.Executor {
	if cfg.SandboxGuestWASM != "" {
		guest, err := os.ReadFile(cfg.SandboxGuestWASM)
		if err == nil {
			return sandbox.NewWASIExecutor(guest, 64*1024*1024)
		}
		log.Printf("[rules-engine] failed to read sandbox guest module %q, falling back to subprocess: %v", cfg.SandboxGuestWASM, err)
	}
	return sandbox.NewSubprocessExecutor(cfg.PythonBin)
}

func buildCache(cfg *config.Config) rulesstore.Cache {
	if cfg.RedisAddr == "" {
		return rulesstore.NewMemoryCache()
	}
	return rulesstore.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, 10*time.Minute)
}

func buildAuditLog(cfg *config.Config) (*ingest.SQLAuditLog, error) {
	driver := "sqlite"
	dsn := "file:./data/audit.db?_pragma=journal_mode(WAL)"
	if cfg.AuditDatabaseURL != "" {
		driver = "postgres"
		dsn = cfg.AuditDatabaseURL
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	return ingest.NewSQLiteAuditLog(db)
}
