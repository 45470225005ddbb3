package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"nexusagent/internal/domain"
	"nexusagent/internal/ports"
)

var ErrSessionNotFound = errors.New("no such call session")

// EngineFactory builds a voice engine client for one session.
type EngineFactory func() ports.VoiceEngine

// EmitterFactory builds a log emitter correlated to one session.
type EmitterFactory func(sessionID, userID string) ports.LogEmitter

// Config carries the engine identifiers sessions start calls with.
type Config struct {
	// WorkflowID is the generation-mode workflow.
	WorkflowID string
	// InterviewerID is the evaluative-mode interviewer assistant.
	InterviewerID string
}

// StartParams describes one call attempt.
type StartParams struct {
	Mode        domain.SessionMode
	UserName    string
	UserID      string
	InterviewID string
	FeedbackID  string
	// Questions overrides the interview document's question list when
	// non-empty.
	Questions []string
}

// Controller creates and drives call sessions. Sessions are
// independent; each gets its own engine client and emitter, and only
// the log store is shared behind them.
type Controller struct {
	newEngine  EngineFactory
	newEmitter EmitterFactory
	trigger    *FeedbackTrigger
	interviews ports.InterviewStore
	cfg        Config

	mu       sync.Mutex
	sessions map[string]*callSession
}

func NewController(
	newEngine EngineFactory,
	newEmitter EmitterFactory,
	trigger *FeedbackTrigger,
	interviews ports.InterviewStore,
	cfg Config,
) *Controller {
	return &Controller{
		newEngine:  newEngine,
		newEmitter: newEmitter,
		trigger:    trigger,
		interviews: interviews,
		cfg:        cfg,
		sessions:   make(map[string]*callSession),
	}
}

// StartCall creates a session for params and requests the engine start
// the call. On a connect failure the session is returned alongside the
// error: it is back in INACTIVE and may be retried with RetryCall.
func (c *Controller) StartCall(ctx context.Context, params StartParams) (domain.SessionStatus, error) {
	questions := params.Questions
	if params.Mode == domain.ModeInterview && len(questions) == 0 && params.InterviewID != "" {
		interview, err := c.interviews.GetInterviewByID(ctx, params.InterviewID)
		if err != nil {
			return domain.SessionStatus{}, fmt.Errorf("failed to load interview %s: %w", params.InterviewID, err)
		}
		questions = interview.Questions
	}

	session := &callSession{
		id:          uuid.NewString(),
		userName:    params.UserName,
		userID:      params.UserID,
		interviewID: params.InterviewID,
		feedbackID:  params.FeedbackID,
		mode:        params.Mode,
		questions:   questions,
		workflowID:  c.cfg.WorkflowID,
		assistantID: c.cfg.InterviewerID,
		engine:      c.newEngine(),
		trigger:     c.trigger,
		ctx:         context.WithoutCancel(ctx),
		transcript:  newTranscriptLog(),
		state:       domain.CallStateInactive,
	}
	session.emitter = c.newEmitter(session.id, params.UserID)

	c.mu.Lock()
	c.sessions[session.id] = session
	c.mu.Unlock()

	session.emitter.Processing(ctx, "agent_session_initialized", map[string]any{
		"mode":        string(params.Mode),
		"interviewId": params.InterviewID,
		"feedbackId":  params.FeedbackID,
		"userName":    params.UserName,
	})

	err := session.start(ctx)
	return session.status(), err
}

// RetryCall re-attempts a session whose start previously failed.
func (c *Controller) RetryCall(ctx context.Context, sessionID string) (domain.SessionStatus, error) {
	session, err := c.get(sessionID)
	if err != nil {
		return domain.SessionStatus{}, err
	}
	startErr := session.start(ctx)
	return session.status(), startErr
}

// Disconnect is the user-facing end-call control.
func (c *Controller) Disconnect(ctx context.Context, sessionID string) (domain.SessionStatus, error) {
	session, err := c.get(sessionID)
	if err != nil {
		return domain.SessionStatus{}, err
	}
	discErr := session.disconnect(ctx)
	return session.status(), discErr
}

// Status reports the session's current state and transcript projection.
func (c *Controller) Status(sessionID string) (domain.SessionStatus, error) {
	session, err := c.get(sessionID)
	if err != nil {
		return domain.SessionStatus{}, err
	}
	return session.status(), nil
}

// Result returns the feedback outcome of a finished evaluative session,
// or nil while none exists.
func (c *Controller) Result(sessionID string) (*CallResult, error) {
	session, err := c.get(sessionID)
	if err != nil {
		return nil, err
	}
	return session.callResult(), nil
}

func (c *Controller) get(sessionID string) (*callSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	session, ok := c.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session, nil
}
