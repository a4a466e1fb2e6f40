package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/casebooklabs/casebook/internal/config"
	"github.com/casebooklabs/casebook/internal/daemon"
	"github.com/casebooklabs/casebook/internal/dialogue"
	"github.com/casebooklabs/casebook/internal/progress"
	"github.com/casebooklabs/casebook/internal/queue"
	"github.com/casebooklabs/casebook/internal/storage/local"
	"github.com/casebooklabs/casebook/internal/storage/postgres"
	"github.com/casebooklabs/casebook/internal/storage/sqlite"
)

const (
	pidFileName = "casebookd.pid"
)

func main() {
	if err := run(); err != nil {
		slog.Error("daemon error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Ensure ~/.casebook directory exists
	casebookDir, err := config.EnsureCasebookDir()
	if err != nil {
		return fmt.Errorf("ensure casebook dir: %w", err)
	}

	// Load configuration; environment variables fill values the config
	// file leaves unset.
	cfg, err := config.LoadLocalConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	envCfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load env config: %w", err)
	}
	if cfg.Storage.DatabaseURL == "" {
		cfg.Storage.DatabaseURL = envCfg.DatabaseURL
	}
	if cfg.Queue.URL == "" {
		cfg.Queue.URL = envCfg.RabbitMQURL
	}

	// Setup logging
	logLevel := parseLogLevel(cfg.Daemon.LogLevel)
	logFile, err := setupLogging(casebookDir, logLevel)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}

	// Write PID file
	pidPath := filepath.Join(casebookDir, pidFileName)
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	// Use lessons directory (try current dir first, then ~/.casebook)
	lessonsPath := cfg.Lessons.Path
	if lessonsPath == "" {
		lessonsPath = "./lessons"
		if _, err := os.Stat(lessonsPath); os.IsNotExist(err) {
			lessonsPath = filepath.Join(casebookDir, "lessons")
		}
	}

	// Open the progress store
	store, closeStore, err := openStore(cfg, casebookDir)
	if err != nil {
		return fmt.Errorf("open progress store: %w", err)
	}
	defer closeStore()

	// Optional completion queue
	var producer *queue.Producer
	if cfg.Queue.URL != "" {
		conn, err := queue.NewConnection(cfg.Queue.URL)
		if err != nil {
			return fmt.Errorf("connect queue: %w", err)
		}
		defer conn.Close()
		producer = queue.NewProducer(conn)
		slog.Info("completion queue enabled")
	}

	// Create server
	server, err := daemon.NewServer(daemon.ServerConfig{
		Config:      cfg,
		LessonsPath: lessonsPath,
		Store:       store,
		Evaluator:   &dialogue.KeywordEvaluator{},
		Producer:    producer,
	})
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh

		slog.Info("received signal, shutting down", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
		close(done)
	}()

	// Start server
	if err := server.Start(); err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	<-done
	slog.Info("daemon stopped")
	return nil
}

// openStore builds the configured progress store backend.
func openStore(cfg *config.LocalConfig, casebookDir string) (progress.Store, func(), error) {
	switch cfg.Storage.Backend {
	case "local":
		path := cfg.Storage.Path
		if path == "" {
			path = filepath.Join(casebookDir, "progress")
		}
		fileStore, err := local.NewStore(path)
		if err != nil {
			return nil, nil, err
		}
		return local.NewProgressStore(fileStore), func() {}, nil

	case "sqlite", "":
		path := cfg.Storage.Path
		if path == "" {
			path = filepath.Join(casebookDir, "casebook.db")
		}
		db, err := sqlite.Open(path)
		if err != nil {
			return nil, nil, err
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, nil, err
		}
		return sqlite.NewProgressStore(db), func() { db.Close() }, nil

	case "postgres":
		if cfg.Storage.DatabaseURL == "" {
			return nil, nil, fmt.Errorf("postgres backend requires storage.database_url")
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		store, err := postgres.Connect(ctx, cfg.Storage.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

func parseLogLevel(level string) slog.Level {
	switch level {
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

func setupLogging(casebookDir string, level slog.Level) (*os.File, error) {
	logPath := filepath.Join(casebookDir, "logs", "casebookd.log")

	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	// JSON to the log file, text to stderr for foreground mode
	multi := &multiHandler{
		handlers: []slog.Handler{
			slog.NewJSONHandler(logFile, &slog.HandlerOptions{Level: level}),
			slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}),
		},
	}

	slog.SetDefault(slog.New(multi))

	return logFile, nil
}

func writePIDFile(path string) error {
	pid := os.Getpid()
	return os.WriteFile(path, []byte(fmt.Sprintf("%d\n", pid)), 0644)
}

// multiHandler fans records out to multiple handlers
type multiHandler struct {
	handlers []slog.Handler
}

func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, r.Level) {
			if err := handler.Handle(ctx, r); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithAttrs(attrs)
	}
	return &multiHandler{handlers: handlers}
}

func (h *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithGroup(name)
	}
	return &multiHandler{handlers: handlers}
}
