package ports

import (
	"context"

	"nexusagent/internal/domain"
)

// StartConfig describes how the voice engine should run a call.
// Generate mode supplies a workflow ID plus username/userid variables;
// interview mode supplies the interviewer assistant plus a formatted
// question list.
type StartConfig struct {
	Mode        domain.SessionMode
	WorkflowID  string
	AssistantID string
	Variables   map[string]string
}

// EngineHandlers receives voice engine events for one subscription.
// Handlers run to completion before the next event is delivered.
type EngineHandlers struct {
	OnCallStart   func()
	OnCallEnd     func()
	OnTranscript  func(role domain.Role, kind domain.TranscriptKind, text string)
	OnSpeechStart func()
	OnSpeechEnd   func()
	OnError       func(message string)
}

// Unsubscribe releases an engine subscription. Safe to call more than once.
type Unsubscribe func()

// VoiceEngine is the consumed call engine boundary: two commands and a
// subscription capability for its five event types.
type VoiceEngine interface {
	Subscribe(h EngineHandlers) Unsubscribe
	Start(ctx context.Context, cfg StartConfig) error
	Stop(ctx context.Context) error
}

// Scorer produces a structured score over a formatted transcript document.
type Scorer interface {
	Score(ctx context.Context, transcriptDoc string) (domain.ScoreResult, error)
}

// InterviewStore looks up persisted interview documents.
type InterviewStore interface {
	GetInterviewByID(ctx context.Context, id string) (domain.Interview, error)
	SaveInterview(ctx context.Context, interview domain.Interview) error
}

// FeedbackStore persists scoring results. CreateOrUpdate overwrites when
// feedbackID is non-empty and allocates a fresh ID otherwise.
type FeedbackStore interface {
	CreateOrUpdateFeedback(ctx context.Context, feedbackID string, fb domain.Feedback) (string, error)
	GetFeedbackByInterview(ctx context.Context, interviewID, userID string) (domain.Feedback, error)
}

// LogStore is the append-only, day-partitioned session log store.
type LogStore interface {
	Append(ctx context.Context, rec domain.LogRecord) error
	Query(ctx context.Context, sessionID string) ([]domain.LogRecord, error)
}

// LogEmitter relays structured session facts to the log store.
// Delivery is best-effort: failures never propagate to the caller.
type LogEmitter interface {
	Emit(ctx context.Context, kind domain.LogKind, data map[string]any)
	Input(ctx context.Context, content string, role domain.Role)
	Output(ctx context.Context, content string, role domain.Role)
	Processing(ctx context.Context, step string, details map[string]any)
	Error(ctx context.Context, message string, details map[string]any)
	APICall(ctx context.Context, endpoint string, request, response map[string]any)
}
