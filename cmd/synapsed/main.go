package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/kode4food/timebox"

	"github.com/dnw3/synapse/checkpoint"
	"github.com/dnw3/synapse/graph"
	"github.com/dnw3/synapse/internal/config"
	"github.com/dnw3/synapse/internal/loader"
	"github.com/dnw3/synapse/internal/runtime"
	"github.com/dnw3/synapse/internal/server"
	"github.com/dnw3/synapse/pkg/log"
	"github.com/dnw3/synapse/script"
	"github.com/dnw3/synapse/store"
)

const version = "1.0.0"

type synapse struct {
	cfg        *config.Config
	store      store.Store
	saver      graph.Checkpointer
	timebox    *timebox.Timebox
	runtime    *runtime.Runtime
	server     *server.Server
	httpServer *http.Server
}

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

func main() {
	cfg := config.NewDefaultConfig()
	cfg.LoadFromEnv()

	s := &synapse{cfg: cfg}
	if err := s.run(); err != nil {
		slog.Error("Failed to start application",
			log.Error(err))
		os.Exit(1)
	}
}

func (s *synapse) run() error {
	s.setupLogging()

	if err := s.cfg.Validate(); err != nil {
		return err
	}

	ctx := context.Background()
	if err := s.initializeStores(ctx); err != nil {
		return err
	}
	if err := s.initializeRuntime(); err != nil {
		return err
	}
	s.startServer()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	s.shutdown()
	return nil
}

func (s *synapse) setupLogging() {
	level, ok := logLevels[s.cfg.LogLevel]
	if !ok {
		level = slog.LevelInfo
	}
	slog.SetDefault(log.NewWithLevel("synapse", version, level))

	slog.Info("Synapse starting")

	slog.Info("Configuration loaded",
		slog.String("store_backend", s.cfg.StoreBackend),
		slog.String("checkpoint_backend", s.cfg.CheckpointBackend),
		slog.String("graph_dir", s.cfg.GraphDir),
		slog.String("api_host", s.cfg.APIHost),
		slog.Int("api_port", s.cfg.APIPort))
}

func (s *synapse) initializeStores(ctx context.Context) error {
	var err error
	switch s.cfg.StoreBackend {
	case config.BackendMemory:
		s.store = store.NewMemoryStore()
	case config.BackendFile:
		s.store, err = store.NewFileStore(s.cfg.FileRoot)
	case config.BackendRedis:
		s.store, err = store.NewRedisStore(ctx, s.cfg.Redis)
	case config.BackendBlob:
		s.store, err = store.NewBlobStore(ctx, s.cfg.BucketURL, "synapse")
	}
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}

	if s.cfg.CheckpointBackend == config.CheckpointJournal {
		return s.initializeJournal()
	}
	s.saver = checkpoint.NewStoreCheckpointer(s.store)
	return nil
}

// initializeJournal event-sources checkpoints through a Redis-backed
// timebox store instead of plain documents
func (s *synapse) initializeJournal() error {
	tb, err := timebox.NewTimebox(timebox.Config{
		MaxRetries: timebox.DefaultMaxRetries,
	})
	if err != nil {
		return fmt.Errorf("failed to create timebox: %w", err)
	}

	tbStore, err := tb.NewStore(timebox.StoreConfig{
		Addr:     s.cfg.Redis.Addr,
		Password: s.cfg.Redis.Password,
		DB:       s.cfg.Redis.DB,
		Prefix:   s.cfg.Redis.Prefix,
	})
	if err != nil {
		_ = tb.Close()
		return fmt.Errorf("failed to create journal store: %w", err)
	}

	s.timebox = tb
	s.saver = checkpoint.NewJournal(tbStore)
	return nil
}

func (s *synapse) initializeRuntime() error {
	s.runtime = runtime.NewRuntime(s.saver, s.cfg.RecursionLimit)

	graphs, err := loader.NewLoader(script.NewRegistry()).
		LoadDir(s.cfg.GraphDir)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Warn("Graph directory not found",
				slog.String("dir", s.cfg.GraphDir))
			return nil
		}
		return fmt.Errorf("failed to load graphs: %w", err)
	}
	for id, g := range graphs {
		if err := s.runtime.Register(id, g); err != nil {
			return err
		}
		slog.Info("Graph registered",
			log.GraphID(id))
	}
	return nil
}

func (s *synapse) startServer() {
	s.server = server.NewServer(s.runtime)
	mux := s.server.SetupRoutes()

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.cfg.APIHost, s.cfg.APIPort),
		Handler: mux,
	}

	go func() {
		slog.Info("HTTP server starting",
			slog.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error",
				log.Error(err))
		}
	}()
}

func (s *synapse) shutdown() {
	slog.Info("Shutting down")

	ctx, cancel := context.WithTimeout(
		context.Background(), s.cfg.ShutdownTimeout,
	)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		slog.Error("Shutdown failed",
			log.Error(err))
	}

	s.server.CloseWebSockets()
	s.runtime.Close()

	if s.timebox != nil {
		_ = s.timebox.Close()
	}
	if closer, ok := s.store.(interface{ Close() error }); ok {
		_ = closer.Close()
	}

	slog.Info("Server exited")
}
