// Package logging provides the session log emitters. Emission is
// fire-and-forget: a store or relay failure is reported to the process
// diagnostic logger and never reaches the caller.
package logging

import (
	"context"
	"log/slog"

	"nexusagent/internal/domain"
	"nexusagent/internal/ports"
)

// Emitter tags records with a session and optional user identifier and
// forwards them to a log store.
type Emitter struct {
	store     ports.LogStore
	sessionID string
	userID    string
	logger    *slog.Logger
}

// NewEmitter builds an emitter bound to one session.
func NewEmitter(store ports.LogStore, sessionID, userID string, logger *slog.Logger) *Emitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Emitter{store: store, sessionID: sessionID, userID: userID, logger: logger}
}

// SessionID returns the correlated session identifier.
func (e *Emitter) SessionID() string { return e.sessionID }

func (e *Emitter) Emit(ctx context.Context, kind domain.LogKind, data map[string]any) {
	rec := domain.LogRecord{
		SessionID: e.sessionID,
		UserID:    e.userID,
		Kind:      kind,
		Data:      data,
	}
	if err := e.store.Append(ctx, rec); err != nil {
		e.logger.Warn("failed to append session log", "sessionId", e.sessionID, "kind", kind, "error", err)
	}
}

func (e *Emitter) Input(ctx context.Context, content string, role domain.Role) {
	e.Emit(ctx, domain.LogKindInput, map[string]any{"content": content, "role": string(role)})
}

func (e *Emitter) Output(ctx context.Context, content string, role domain.Role) {
	e.Emit(ctx, domain.LogKindOutput, map[string]any{"content": content, "role": string(role)})
}

func (e *Emitter) Processing(ctx context.Context, step string, details map[string]any) {
	data := map[string]any{"step": step}
	for k, v := range details {
		data[k] = v
	}
	e.Emit(ctx, domain.LogKindProcessing, data)
}

func (e *Emitter) Error(ctx context.Context, message string, details map[string]any) {
	data := map[string]any{"error": message}
	for k, v := range details {
		data[k] = v
	}
	e.Emit(ctx, domain.LogKindError, data)
}

func (e *Emitter) APICall(ctx context.Context, endpoint string, request, response map[string]any) {
	e.Emit(ctx, domain.LogKindAPICall, map[string]any{
		"apiEndpoint":  endpoint,
		"requestData":  request,
		"responseData": response,
	})
}
