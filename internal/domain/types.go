package domain

import "time"

// CallState models the interview call lifecycle.
type CallState string

const (
	CallStateInactive   CallState = "INACTIVE"
	CallStateConnecting CallState = "CONNECTING"
	CallStateActive     CallState = "ACTIVE"
	CallStateFinished   CallState = "FINISHED"
)

// SessionMode determines what happens when a call finishes.
type SessionMode string

const (
	// ModeGenerate runs the question-generation workflow; the session is
	// discarded on completion.
	ModeGenerate SessionMode = "generate"
	// ModeInterview runs an evaluative interview; completion triggers
	// feedback scoring over the accumulated transcript.
	ModeInterview SessionMode = "interview"
)

// Role identifies the speaker of an utterance.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// TranscriptKind identifies whether a transcript event is partial or final text.
type TranscriptKind string

const (
	TranscriptKindPartial TranscriptKind = "partial"
	TranscriptKindFinal   TranscriptKind = "final"
)

// Utterance is one accepted line of the transcript.
type Utterance struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// EngineEventType enumerates the voice engine events the core consumes.
type EngineEventType string

const (
	EngineEventCallStart   EngineEventType = "call-start"
	EngineEventCallEnd     EngineEventType = "call-end"
	EngineEventTranscript  EngineEventType = "transcript"
	EngineEventSpeechStart EngineEventType = "speech-start"
	EngineEventSpeechEnd   EngineEventType = "speech-end"
	EngineEventError       EngineEventType = "error"
)

// EngineEvent is a single event delivered by the voice engine.
type EngineEvent struct {
	Type       EngineEventType `json:"type"`
	Role       Role            `json:"role,omitempty"`
	Transcript string          `json:"transcript,omitempty"`
	Kind       TranscriptKind  `json:"transcriptType,omitempty"`
	Message    string          `json:"message,omitempty"`
}

// LogKind classifies a session log record.
type LogKind string

const (
	LogKindInput      LogKind = "input"
	LogKindOutput     LogKind = "output"
	LogKindProcessing LogKind = "processing"
	LogKindError      LogKind = "error"
	LogKindAPICall    LogKind = "api_call"
)

// Valid reports whether k is one of the five record kinds.
func (k LogKind) Valid() bool {
	switch k {
	case LogKindInput, LogKindOutput, LogKindProcessing, LogKindError, LogKindAPICall:
		return true
	}
	return false
}

// LogRecord is one immutable entry in the session log store. Records for
// a session are not contiguous within a day partition; other sessions
// interleave.
type LogRecord struct {
	Timestamp time.Time      `json:"timestamp"`
	SessionID string         `json:"sessionId"`
	UserID    string         `json:"userId,omitempty"`
	Kind      LogKind        `json:"type"`
	Data      map[string]any `json:"data"`
}

// Interview is the persisted interview document a session scores against.
type Interview struct {
	ID        string   `json:"id"`
	UserID    string   `json:"userId"`
	Role      string   `json:"role"`
	Level     string   `json:"level"`
	Type      string   `json:"type"`
	Techstack []string `json:"techstack"`
	Questions []string `json:"questions"`
	Finalized bool     `json:"finalized"`
	CreatedAt string   `json:"createdAt"`
}

// Feedback category names. The scorer returns exactly this set.
const (
	CategoryCommunication  = "Communication Skills"
	CategoryTechnical      = "Technical Knowledge"
	CategoryProblemSolving = "Problem-Solving"
	CategoryCulturalFit    = "Cultural & Role Fit"
	CategoryConfidence     = "Confidence & Clarity"
)

// FeedbackCategories lists the five permitted scoring categories.
func FeedbackCategories() []string {
	return []string{
		CategoryCommunication,
		CategoryTechnical,
		CategoryProblemSolving,
		CategoryCulturalFit,
		CategoryConfidence,
	}
}

// ScoreResult is the raw structured output of the scoring collaborator.
type ScoreResult struct {
	TotalScore          float64            `json:"totalScore"`
	CategoryScores      map[string]float64 `json:"categoryScores"`
	Strengths           []string           `json:"strengths"`
	AreasForImprovement []string           `json:"areasForImprovement"`
	FinalAssessment     string             `json:"finalAssessment"`
}

// Feedback is the persisted scoring result for one interview attempt.
type Feedback struct {
	ID                  string             `json:"id"`
	InterviewID         string             `json:"interviewId"`
	UserID              string             `json:"userId"`
	TotalScore          float64            `json:"totalScore"`
	CategoryScores      map[string]float64 `json:"categoryScores"`
	Strengths           []string           `json:"strengths"`
	AreasForImprovement []string           `json:"areasForImprovement"`
	FinalAssessment     string             `json:"finalAssessment"`
	CreatedAt           string             `json:"createdAt"`
}

// SessionStatus summarizes a call session for the control surface.
type SessionStatus struct {
	SessionID   string      `json:"sessionId"`
	State       CallState   `json:"state"`
	Mode        SessionMode `json:"mode"`
	Speaking    bool        `json:"speaking"`
	LastMessage string      `json:"lastMessage,omitempty"`
	Utterances  int         `json:"utterances"`
}
