package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/basket/recall/internal/config"
	"github.com/basket/recall/internal/contentstore"
	"github.com/basket/recall/internal/otelx"
	"github.com/basket/recall/internal/telemetry"
)

// Runtime owns the process-wide pieces sessions share: the content store,
// its retention janitor, the logger, and the OTel provider. Sessions
// themselves stay per-conversation.
type Runtime struct {
	Config  *config.Config
	Logger  *slog.Logger
	Store   *contentstore.Store
	Otel    *otelx.Provider
	Metrics *otelx.Metrics

	logCloser io.Closer
	janitor   *contentstore.Janitor
	watcher   *config.Watcher

	mu       sync.Mutex
	sessions []*Session
}

// NewRuntime loads configuration from homeDir and builds the shared stack.
func NewRuntime(ctx context.Context, homeDir string) (*Runtime, error) {
	cfg, err := config.Load(homeDir)
	if err != nil {
		return nil, err
	}

	logger, closer, err := telemetry.NewLogger(homeDir, cfg.Telemetry.Level, cfg.Telemetry.Quiet)
	if err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}

	provider, err := otelx.Init(ctx, cfg.Otel)
	if err != nil {
		closer.Close()
		return nil, fmt.Errorf("init otel: %w", err)
	}

	metrics, err := otelx.NewMetrics(provider.Meter)
	if err != nil {
		closer.Close()
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	store, err := contentstore.New(contentstore.Config{
		Path:           cfg.Store.Path,
		ThresholdBytes: cfg.Store.ThresholdBytes,
		PreviewChars:   cfg.Store.PreviewChars,
	}, logger)
	if err != nil {
		closer.Close()
		return nil, err
	}

	janitor, err := contentstore.NewJanitor(store, contentstore.JanitorConfig{
		Schedule: cfg.Store.RetentionSchedule,
		MaxAge:   time.Duration(cfg.Store.RetentionMaxAgeHours) * time.Hour,
	}, logger)
	if err != nil {
		store.Close()
		closer.Close()
		return nil, fmt.Errorf("init janitor: %w", err)
	}

	return &Runtime{
		Config:    cfg,
		Logger:    logger,
		Store:     store,
		Otel:      provider,
		Metrics:   metrics,
		logCloser: closer,
		janitor:   janitor,
		watcher:   config.NewWatcher(homeDir, logger),
	}, nil
}

// Start launches the retention janitor and the config watcher. Config edits
// re-apply window limits to every open session; an invalid edit is logged
// and ignored, never applied.
func (r *Runtime) Start(ctx context.Context) error {
	r.janitor.Start(ctx)
	if err := r.watcher.Start(ctx); err != nil {
		return fmt.Errorf("start config watcher: %w", err)
	}
	go r.reloadLoop(ctx)
	return nil
}

func (r *Runtime) reloadLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-r.watcher.Events():
			if !ok {
				return
			}
			cfg, err := config.Load(r.Config.HomeDir())
			if err != nil {
				r.Logger.Warn("config reload rejected", "error", err)
				continue
			}
			r.mu.Lock()
			r.Config = cfg
			// Sessions are single-owner; hand the new limits over and let
			// each owner apply them at its next turn.
			for _, s := range r.sessions {
				if err := s.ScheduleLimits(cfg.Memory.MaxTokens, cfg.Memory.ReserveTokens); err != nil {
					r.Logger.Warn("config reload skipped for session", "session_id", s.ID, "error", err)
				}
			}
			r.mu.Unlock()
			r.Logger.Info("config reloaded", "max_tokens", cfg.Memory.MaxTokens)
		}
	}
}

// NewSession opens a conversation session over the shared store.
func (r *Runtime) NewSession() (*Session, error) {
	// The reload loop swaps the Config pointer under r.mu.
	r.mu.Lock()
	cfg := r.Config
	r.mu.Unlock()

	s, err := New(r.Store, Config{
		Model:         cfg.Memory.Model,
		MaxTokens:     cfg.Memory.MaxTokens,
		ReserveTokens: cfg.Memory.ReserveTokens,
	}, Options{Logger: r.Logger, Tracer: r.Otel.Tracer, Metrics: r.Metrics})
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.sessions = append(r.sessions, s)
	r.mu.Unlock()
	return s, nil
}

// Close stops background work and releases resources.
func (r *Runtime) Close(ctx context.Context) error {
	r.janitor.Stop()
	err := r.Store.Close()
	if oerr := r.Otel.Shutdown(ctx); err == nil {
		err = oerr
	}
	if cerr := r.logCloser.Close(); err == nil {
		err = cerr
	}
	return err
}
