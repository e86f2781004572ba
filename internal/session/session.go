// Package session wires one conversation's memory window, content
// processor, and reference tracker over a shared content store. One session
// serves one conversation; turns are processed sequentially, so sessions
// need no internal locking.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/basket/recall/internal/content"
	"github.com/basket/recall/internal/contentstore"
	"github.com/basket/recall/internal/conversation"
	"github.com/basket/recall/internal/otelx"
	"github.com/basket/recall/internal/refs"
)

// ContentStore is the store surface a session depends on.
type ContentStore interface {
	ShouldExternalize(sizeBytes int) bool
	Put(ctx context.Context, data []byte, meta contentstore.Metadata) (*contentstore.Reference, error)
	IsLive(ctx context.Context, id string) bool
}

// Config sizes a session's conversation window.
type Config struct {
	Model         string
	MaxTokens     int
	ReserveTokens int
}

// Options carries optional observability dependencies.
type Options struct {
	Logger  *slog.Logger
	Tracer  trace.Tracer
	Metrics *otelx.Metrics
}

// Session owns one conversation's mutable state.
type Session struct {
	ID string

	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *otelx.Metrics

	window    *conversation.Window
	tracker   *refs.Tracker
	processor *content.Processor

	// Limits scheduled from another goroutine (config reload). The window
	// itself is single-owner; only this handoff is locked, and the pending
	// values are applied by the owner at the next turn boundary.
	limitMu        sync.Mutex
	pendingMax     int
	pendingReserve int
	hasPending     bool
}

// New creates a session over the given store. Returns the window's
// ConfigError when the limits are invalid.
func New(store ContentStore, cfg Config, opts Options) (*Session, error) {
	window, err := conversation.NewWindow(cfg.Model, cfg.MaxTokens, cfg.ReserveTokens)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = nooptrace.NewTracerProvider().Tracer(otelx.TracerName)
	}
	id := uuid.NewString()
	logger = logger.With("session_id", id)
	return &Session{
		ID:        id,
		logger:    logger,
		tracer:    tracer,
		metrics:   opts.Metrics,
		window:    window,
		tracker:   refs.NewTracker(store, logger),
		processor: content.NewProcessor(store, logger),
	}, nil
}

// ToolTurn summarizes one processed tool result.
type ToolTurn struct {
	Result  content.Result
	Message conversation.Message
	Pruned  []conversation.Message
}

// HandleToolResult runs the full turn pipeline: externalize oversized
// content, track the created references, then append the processed result
// to the window as a conversation message. The window is only mutated once
// the message is fully constructed, so an abandoned turn leaves the window
// untouched (already-created references stay valid in the store).
func (s *Session) HandleToolResult(ctx context.Context, response any, sourceName, toolName string) ToolTurn {
	s.applyPendingLimits()
	ctx, span := otelx.StartSpan(ctx, s.tracer, "session.tool_result",
		otelx.AttrSessionID.String(s.ID), otelx.AttrToolName.String(sourceName+"::"+toolName))
	defer span.End()

	res := s.processor.Process(ctx, response, sourceName, toolName)
	s.recordProcessing(ctx, res)

	var refIDs []string
	for _, ref := range res.References {
		s.tracker.AddReference(ref)
		refIDs = append(refIDs, ref.ID)
	}

	msg := conversation.NewMessage(conversation.RoleUser, renderContent(res.Content))
	msg.Meta = map[string]string{"source": sourceName, "tool": toolName}
	if len(refIDs) > 0 {
		msg.Meta["refs"] = strings.Join(refIDs, ",")
	}

	_, pruned := s.window.Add(msg)
	s.recordWindow(ctx, len(pruned))

	if len(res.Errors) > 0 {
		s.logger.Warn("tool result processed with degradations",
			"tool", toolName, "errors", strings.Join(res.Errors, "; "))
	}
	return ToolTurn{Result: res, Message: msg, Pruned: pruned}
}

// AddUserMessage appends a user turn, returning any pruned messages.
func (s *Session) AddUserMessage(ctx context.Context, text string) []conversation.Message {
	s.applyPendingLimits()
	_, pruned := s.window.Add(conversation.NewMessage(conversation.RoleUser, text))
	s.recordWindow(ctx, len(pruned))
	return pruned
}

// AddAssistantMessage appends an assistant turn, returning any pruned
// messages.
func (s *Session) AddAssistantMessage(ctx context.Context, text string) []conversation.Message {
	s.applyPendingLimits()
	_, pruned := s.window.Add(conversation.NewMessage(conversation.RoleAssistant, text))
	s.recordWindow(ctx, len(pruned))
	return pruned
}

// SetSystemPrompt replaces the window preamble.
func (s *Session) SetSystemPrompt(ctx context.Context, text string) []conversation.Message {
	s.applyPendingLimits()
	pruned := s.window.SetSystemPrompt(text)
	s.recordWindow(ctx, len(pruned))
	return pruned
}

// PromptMessages returns the window contents for building the next model
// prompt.
func (s *Session) PromptMessages() []conversation.Message {
	return s.window.Messages()
}

// TokenCount returns current window occupancy.
func (s *Session) TokenCount() int {
	return s.window.TokenCount()
}

// ResolveRecentReference returns the most recently surfaced reference, for
// turns where the user says "that" or "it". Nil when nothing is tracked.
func (s *Session) ResolveRecentReference(ctx context.Context) *contentstore.Reference {
	ref := s.tracker.MostRecent()
	if s.metrics != nil {
		s.metrics.ReferenceLookups.Add(ctx, 1)
	}
	return ref
}

// ShowReference renders a reference for display, checking liveness first.
func (s *Session) ShowReference(ctx context.Context, ref contentstore.Reference, format refs.Format) refs.DisplayResult {
	return s.tracker.Display(ctx, ref, refs.DisplayOptions{Format: format})
}

// ValidateReferences evicts tracked references whose bytes are gone.
func (s *Session) ValidateReferences(ctx context.Context) refs.ValidationResult {
	return s.tracker.ValidateAll(ctx)
}

// ApplyLimits re-sizes the window, re-pruning immediately. Must be called
// by the session owner; other goroutines use ScheduleLimits.
func (s *Session) ApplyLimits(maxTokens, reserveTokens int) error {
	if err := s.window.UpdateLimits(maxTokens, reserveTokens); err != nil {
		return err
	}
	s.logger.Info("window limits updated", "max_tokens", maxTokens, "reserve_tokens", reserveTokens)
	return nil
}

// ScheduleLimits records new window limits without touching the window.
// Safe to call from any goroutine; the owner applies them at the start of
// its next turn. Later schedules overwrite earlier unapplied ones.
func (s *Session) ScheduleLimits(maxTokens, reserveTokens int) error {
	if maxTokens <= 0 || reserveTokens < 0 || reserveTokens >= maxTokens {
		return &conversation.ConfigError{
			Reason: fmt.Sprintf("reserveTokens %d must be in [0, maxTokens %d)", reserveTokens, maxTokens),
		}
	}
	s.limitMu.Lock()
	s.pendingMax = maxTokens
	s.pendingReserve = reserveTokens
	s.hasPending = true
	s.limitMu.Unlock()
	return nil
}

// applyPendingLimits runs on the owner goroutine at turn boundaries.
func (s *Session) applyPendingLimits() {
	s.limitMu.Lock()
	if !s.hasPending {
		s.limitMu.Unlock()
		return
	}
	maxTokens, reserveTokens := s.pendingMax, s.pendingReserve
	s.hasPending = false
	s.limitMu.Unlock()

	if err := s.ApplyLimits(maxTokens, reserveTokens); err != nil {
		s.logger.Warn("scheduled limits rejected", "error", err)
	}
}

// Reset empties the window and the reference tracker. The preamble and the
// stored bytes survive.
func (s *Session) Reset() {
	s.window.Clear()
	s.tracker.Clear()
}

func (s *Session) recordProcessing(ctx context.Context, res content.Result) {
	if s.metrics == nil {
		return
	}
	for _, ref := range res.References {
		s.metrics.BytesExternalized.Add(ctx, int64(ref.SizeBytes))
	}
	s.metrics.ReferencesCreated.Add(ctx, int64(len(res.References)))
	s.metrics.StoreFailures.Add(ctx, int64(len(res.Errors)))
}

func (s *Session) recordWindow(ctx context.Context, pruned int) {
	if s.metrics == nil {
		return
	}
	if pruned > 0 {
		s.metrics.MessagesPruned.Add(ctx, int64(pruned))
	}
	s.metrics.WindowTokens.Record(ctx, int64(s.window.TokenCount()))
}

// renderContent flattens a processed response into message text. Strings
// pass through; anything else is JSON-encoded.
func renderContent(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	encoded, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(encoded)
}
