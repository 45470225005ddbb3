package usecase

import (
	"context"
	"errors"
	"sync"

	"nexusagent/internal/domain"
	"nexusagent/internal/ports"
)

var (
	ErrCallInProgress = errors.New("call already started for this session")
	ErrCallNotActive  = errors.New("call is not active")
	ErrCallFinished   = errors.New("call session already finished")
)

// CallResult records the outcome of an evaluative session.
type CallResult struct {
	FeedbackID string `json:"feedbackId,omitempty"`
	Success    bool   `json:"success"`
}

// callSession owns the lifecycle state for one call attempt. Handlers
// for its engine events run to completion in arrival order; the mutex
// guards state, the speaking flag and the single-fire feedback guard.
type callSession struct {
	id          string
	userName    string
	userID      string
	interviewID string
	feedbackID  string
	mode        domain.SessionMode
	questions   []string
	workflowID  string
	assistantID string

	engine  ports.VoiceEngine
	emitter ports.LogEmitter
	trigger *FeedbackTrigger

	// ctx is the process-scoped context engine handlers emit under.
	ctx context.Context

	transcript *transcriptLog

	mu           sync.Mutex
	state        domain.CallState
	speaking     bool
	unsub        ports.Unsubscribe
	feedbackDone bool
	result       *CallResult
}

func (s *callSession) handlers() ports.EngineHandlers {
	return ports.EngineHandlers{
		OnCallStart:   s.onCallStart,
		OnCallEnd:     s.onCallEnd,
		OnTranscript:  s.onTranscript,
		OnSpeechStart: s.onSpeechStart,
		OnSpeechEnd:   s.onSpeechEnd,
		OnError:       s.onError,
	}
}

// start requests the engine begin the call: INACTIVE → CONNECTING. A
// connect failure reverts to INACTIVE and is retryable.
func (s *callSession) start(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case domain.CallStateInactive:
	case domain.CallStateFinished:
		s.mu.Unlock()
		return ErrCallFinished
	default:
		s.mu.Unlock()
		return ErrCallInProgress
	}
	old := s.state
	s.state = domain.CallStateConnecting
	if s.unsub == nil {
		s.unsub = s.engine.Subscribe(s.handlers())
	}
	s.mu.Unlock()

	s.logTransition(ctx, old, domain.CallStateConnecting, "call_initiation_started")

	if err := s.engine.Start(ctx, s.startConfig()); err != nil {
		s.mu.Lock()
		var reverted bool
		if s.state == domain.CallStateConnecting {
			s.state = domain.CallStateInactive
			reverted = true
			if s.unsub != nil {
				s.unsub()
				s.unsub = nil
			}
		}
		s.mu.Unlock()

		if reverted {
			s.logTransition(ctx, domain.CallStateConnecting, domain.CallStateInactive, "call_start_failed")
		}
		s.emitter.Error(ctx, err.Error(), map[string]any{
			"errorType": "call_start_failed",
			"mode":      string(s.mode),
		})
		return err
	}

	s.emitter.Processing(ctx, "call_workflow_started", map[string]any{
		"mode": string(s.mode),
	})
	return nil
}

// disconnect forces the session into FINISHED after requesting the
// engine stop, without waiting for the engine's own call-end event.
func (s *callSession) disconnect(ctx context.Context) error {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()

	switch state {
	case domain.CallStateFinished:
		return nil
	case domain.CallStateActive:
	default:
		return ErrCallNotActive
	}

	s.emitter.Processing(ctx, "manual_disconnect_initiated", map[string]any{
		"messagesCount": s.transcript.Len(),
	})
	if err := s.engine.Stop(ctx); err != nil {
		// The call still finishes locally; the engine may already be gone.
		s.emitter.Error(ctx, err.Error(), map[string]any{"errorType": "engine_stop_failed"})
	}
	s.finish(ctx, "manual_disconnect_completed")
	return nil
}

func (s *callSession) status() domain.SessionStatus {
	transcript := s.transcript.Snapshot()
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.SessionStatus{
		SessionID:   s.id,
		State:       s.state,
		Mode:        s.mode,
		Speaking:    s.speaking,
		LastMessage: lastMessage(transcript),
		Utterances:  len(transcript),
	}
}

func (s *callSession) callResult() *CallResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return nil
	}
	out := *s.result
	return &out
}

func (s *callSession) onCallStart() {
	s.mu.Lock()
	if s.state != domain.CallStateConnecting {
		s.mu.Unlock()
		return
	}
	old := s.state
	s.state = domain.CallStateActive
	s.mu.Unlock()

	s.logTransition(s.ctx, old, domain.CallStateActive, "call_started")
}

func (s *callSession) onCallEnd() {
	s.finish(s.ctx, "call_ended")
}

func (s *callSession) onTranscript(role domain.Role, kind domain.TranscriptKind, text string) {
	s.mu.Lock()
	finished := s.state == domain.CallStateFinished
	s.mu.Unlock()
	if finished {
		return
	}

	if !s.transcript.Add(role, kind, text) {
		s.emitter.Processing(s.ctx, "transcript_ignored", map[string]any{
			"transcriptType": string(kind),
			"role":           string(role),
		})
		return
	}

	if role == domain.RoleUser {
		s.emitter.Input(s.ctx, text, role)
	} else {
		s.emitter.Output(s.ctx, text, role)
	}
}

func (s *callSession) onSpeechStart() {
	s.setSpeaking(true, "speech_started")
}

func (s *callSession) onSpeechEnd() {
	s.setSpeaking(false, "speech_ended")
}

func (s *callSession) setSpeaking(speaking bool, step string) {
	s.mu.Lock()
	s.speaking = speaking
	s.mu.Unlock()
	s.emitter.Processing(s.ctx, step, map[string]any{"isSpeaking": speaking})
}

// onError reverts CONNECTING to INACTIVE (a failed connect is
// retryable); in any other state the error is logged and the session
// state is left alone.
func (s *callSession) onError(message string) {
	s.mu.Lock()
	var reverted bool
	if s.state == domain.CallStateConnecting {
		s.state = domain.CallStateInactive
		reverted = true
		if s.unsub != nil {
			s.unsub()
			s.unsub = nil
		}
	}
	state := s.state
	s.mu.Unlock()

	if reverted {
		s.logTransition(s.ctx, domain.CallStateConnecting, domain.CallStateInactive, "connection_failed")
	}
	s.emitter.Error(s.ctx, message, map[string]any{
		"errorType":  "engine_error",
		"callStatus": string(state),
	})
}

// finish is the ACTIVE → FINISHED edge. It is idempotent: redundant
// terminal signals (an engine call-end racing a manual disconnect) find
// the session already FINISHED and return without side effects, so the
// feedback trigger fires at most once per session.
func (s *callSession) finish(ctx context.Context, step string) {
	s.mu.Lock()
	if s.state != domain.CallStateActive {
		s.mu.Unlock()
		return
	}
	old := s.state
	s.state = domain.CallStateFinished
	unsub := s.unsub
	s.unsub = nil
	shouldScore := s.mode == domain.ModeInterview && !s.feedbackDone
	if shouldScore {
		s.feedbackDone = true
	}
	s.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	s.logTransition(ctx, old, domain.CallStateFinished, step)

	transcript := s.transcript.Snapshot()
	s.emitter.Processing(ctx, "call_finished_processing", map[string]any{
		"mode":          string(s.mode),
		"messagesCount": len(transcript),
	})

	if s.mode == domain.ModeGenerate {
		s.emitter.Processing(ctx, "generate_session_discarded", nil)
		return
	}
	if !shouldScore {
		return
	}

	id, ok := s.trigger.Generate(ctx, s.emitter, s.interviewID, s.userID, transcript, s.feedbackID)
	s.mu.Lock()
	s.result = &CallResult{FeedbackID: id, Success: ok}
	s.mu.Unlock()

	if !ok {
		// Soft failure: the call itself completed, the caller falls back
		// to a neutral view.
		s.emitter.Processing(ctx, "feedback_generation_fallback", map[string]any{
			"redirectTo": "/",
		})
	}
}

func (s *callSession) startConfig() ports.StartConfig {
	if s.mode == domain.ModeGenerate {
		return ports.StartConfig{
			Mode:       s.mode,
			WorkflowID: s.workflowID,
			Variables: map[string]string{
				"username": s.userName,
				"userid":   s.userID,
			},
		}
	}
	return ports.StartConfig{
		Mode:        s.mode,
		AssistantID: s.assistantID,
		Variables: map[string]string{
			"questions": FormatQuestions(s.questions),
		},
	}
}

func (s *callSession) logTransition(ctx context.Context, from, to domain.CallState, step string) {
	s.emitter.Processing(ctx, step, map[string]any{
		"oldState": string(from),
		"newState": string(to),
	})
}
