// Package vapi adapts the Vapi realtime call engine to the
// ports.VoiceEngine capability: a websocket client whose read loop
// decodes wire messages into typed events and delivers them, in
// arrival order, to subscribed handler sets.
package vapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"nexusagent/internal/domain"
	"nexusagent/internal/ports"
)

// Config controls the Vapi websocket connection.
type Config struct {
	URL         string
	APIKey      string
	DialTimeout time.Duration
}

// Engine is a per-session voice engine client.
type Engine struct {
	cfg Config

	subMu  sync.Mutex
	nextID int
	subs   map[int]ports.EngineHandlers

	callMu sync.Mutex
	call   *activeCall
}

type activeCall struct {
	conn *websocket.Conn

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func NewEngine(cfg Config) *Engine {
	if cfg.URL == "" {
		cfg.URL = "wss://api.vapi.ai/ws"
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 15 * time.Second
	}
	return &Engine{cfg: cfg, subs: make(map[int]ports.EngineHandlers)}
}

// Subscribe registers handlers for engine events. The returned token
// releases the subscription and is safe to call more than once.
func (e *Engine) Subscribe(h ports.EngineHandlers) ports.Unsubscribe {
	e.subMu.Lock()
	id := e.nextID
	e.nextID++
	e.subs[id] = h
	e.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.subMu.Lock()
			delete(e.subs, id)
			e.subMu.Unlock()
		})
	}
}

// Start dials the engine and issues the start command for cfg. ctx
// bounds the dial and handshake only; a connected call outlives it and
// is torn down by Stop or the engine's own call-end. Events flow to
// subscribers until then.
func (e *Engine) Start(ctx context.Context, cfg ports.StartConfig) error {
	e.callMu.Lock()
	defer e.callMu.Unlock()
	if e.call != nil {
		return errors.New("a call is already in progress")
	}

	headers := http.Header{}
	if e.cfg.APIKey != "" {
		headers.Set("Authorization", "Bearer "+e.cfg.APIKey)
	}

	dialer := websocket.Dialer{HandshakeTimeout: e.cfg.DialTimeout}
	conn, _, err := dialer.DialContext(ctx, e.cfg.URL, headers)
	if err != nil {
		return fmt.Errorf("failed to connect to voice engine: %w", err)
	}

	call := &activeCall{conn: conn}
	if err := call.writeJSON(startCommand(cfg)); err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to start call: %w", err)
	}

	e.call = call
	go e.readLoop(call)
	return nil
}

// Stop requests the engine end the current call. A missing call is a
// no-op: the engine may already have torn it down.
func (e *Engine) Stop(ctx context.Context) error {
	e.callMu.Lock()
	call := e.call
	e.callMu.Unlock()
	if call == nil {
		return nil
	}

	err := call.writeJSON(map[string]any{"type": "stop"})
	call.close()
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		return fmt.Errorf("failed to stop call: %w", err)
	}
	return nil
}

func (e *Engine) readLoop(call *activeCall) {
	defer func() {
		call.close()
		e.callMu.Lock()
		if e.call == call {
			e.call = nil
		}
		e.callMu.Unlock()
	}()

	for {
		_, payload, err := call.conn.ReadMessage()
		if err != nil {
			if !isExpectedClose(err) {
				e.dispatch(domain.EngineEvent{
					Type:    domain.EngineEventError,
					Message: fmt.Sprintf("engine connection lost: %v", err),
				})
			}
			return
		}

		var msg wireMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			continue
		}
		event, ok := decodeEvent(msg)
		if !ok {
			continue
		}
		e.dispatch(event)
		if event.Type == domain.EngineEventCallEnd {
			return
		}
	}
}

// dispatch delivers one event to every subscriber. Delivery happens on
// the read loop goroutine, so handlers for one engine run to
// completion in arrival order.
func (e *Engine) dispatch(event domain.EngineEvent) {
	e.subMu.Lock()
	handlers := make([]ports.EngineHandlers, 0, len(e.subs))
	for _, h := range e.subs {
		handlers = append(handlers, h)
	}
	e.subMu.Unlock()

	for _, h := range handlers {
		switch event.Type {
		case domain.EngineEventCallStart:
			if h.OnCallStart != nil {
				h.OnCallStart()
			}
		case domain.EngineEventCallEnd:
			if h.OnCallEnd != nil {
				h.OnCallEnd()
			}
		case domain.EngineEventTranscript:
			if h.OnTranscript != nil {
				h.OnTranscript(event.Role, event.Kind, event.Transcript)
			}
		case domain.EngineEventSpeechStart:
			if h.OnSpeechStart != nil {
				h.OnSpeechStart()
			}
		case domain.EngineEventSpeechEnd:
			if h.OnSpeechEnd != nil {
				h.OnSpeechEnd()
			}
		case domain.EngineEventError:
			if h.OnError != nil {
				h.OnError(event.Message)
			}
		}
	}
}

func (c *activeCall) writeJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(v)
}

func (c *activeCall) close() {
	c.closeOnce.Do(func() {
		_ = c.conn.Close()
	})
}

type wireMessage struct {
	Type           string `json:"type"`
	Role           string `json:"role"`
	Transcript     string `json:"transcript"`
	TranscriptType string `json:"transcriptType"`
	Message        string `json:"message"`
}

func decodeEvent(msg wireMessage) (domain.EngineEvent, bool) {
	switch strings.ToLower(msg.Type) {
	case "call-start":
		return domain.EngineEvent{Type: domain.EngineEventCallStart}, true
	case "call-end":
		return domain.EngineEvent{Type: domain.EngineEventCallEnd}, true
	case "speech-start":
		return domain.EngineEvent{Type: domain.EngineEventSpeechStart}, true
	case "speech-end":
		return domain.EngineEvent{Type: domain.EngineEventSpeechEnd}, true
	case "error":
		message := strings.TrimSpace(msg.Message)
		if message == "" {
			message = "engine returned an unknown error"
		}
		return domain.EngineEvent{Type: domain.EngineEventError, Message: message}, true
	case "transcript":
		kind := domain.TranscriptKindPartial
		if strings.EqualFold(msg.TranscriptType, "final") {
			kind = domain.TranscriptKindFinal
		}
		return domain.EngineEvent{
			Type:       domain.EngineEventTranscript,
			Role:       domain.Role(strings.ToLower(msg.Role)),
			Kind:       kind,
			Transcript: msg.Transcript,
		}, true
	default:
		return domain.EngineEvent{}, false
	}
}

func startCommand(cfg ports.StartConfig) map[string]any {
	cmd := map[string]any{"type": "start"}
	if cfg.Mode == domain.ModeGenerate {
		cmd["workflowId"] = cfg.WorkflowID
	} else {
		cmd["assistantId"] = cfg.AssistantID
	}
	if len(cfg.Variables) > 0 {
		cmd["variableValues"] = cfg.Variables
	}
	return cmd
}

func isExpectedClose(err error) bool {
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	)
}
