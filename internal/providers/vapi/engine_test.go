package vapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"nexusagent/internal/domain"
	"nexusagent/internal/ports"
)

func TestNewEngineDefaults(t *testing.T) {
	t.Parallel()

	e := NewEngine(Config{})
	if e.cfg.URL != "wss://api.vapi.ai/ws" {
		t.Fatalf("unexpected url: %q", e.cfg.URL)
	}
}

func TestDecodeEvent(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		msg  wireMessage
		want domain.EngineEvent
		ok   bool
	}{
		{
			name: "call start",
			msg:  wireMessage{Type: "call-start"},
			want: domain.EngineEvent{Type: domain.EngineEventCallStart},
			ok:   true,
		},
		{
			name: "call end",
			msg:  wireMessage{Type: "call-end"},
			want: domain.EngineEvent{Type: domain.EngineEventCallEnd},
			ok:   true,
		},
		{
			name: "final transcript",
			msg:  wireMessage{Type: "transcript", Role: "User", TranscriptType: "final", Transcript: "hello"},
			want: domain.EngineEvent{
				Type:       domain.EngineEventTranscript,
				Role:       domain.RoleUser,
				Kind:       domain.TranscriptKindFinal,
				Transcript: "hello",
			},
			ok: true,
		},
		{
			name: "partial transcript",
			msg:  wireMessage{Type: "transcript", Role: "assistant", TranscriptType: "partial", Transcript: "hel"},
			want: domain.EngineEvent{
				Type:       domain.EngineEventTranscript,
				Role:       domain.RoleAssistant,
				Kind:       domain.TranscriptKindPartial,
				Transcript: "hel",
			},
			ok: true,
		},
		{
			name: "error with blank message",
			msg:  wireMessage{Type: "error", Message: "  "},
			want: domain.EngineEvent{Type: domain.EngineEventError, Message: "engine returned an unknown error"},
			ok:   true,
		},
		{
			name: "unknown type",
			msg:  wireMessage{Type: "status-update"},
			ok:   false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := decodeEvent(tc.msg)
			if ok != tc.ok {
				t.Fatalf("ok = %v, want %v", ok, tc.ok)
			}
			if ok && got != tc.want {
				t.Fatalf("event = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestStartCommandByMode(t *testing.T) {
	t.Parallel()

	cmd := startCommand(ports.StartConfig{
		Mode:       domain.ModeGenerate,
		WorkflowID: "wf-1",
		Variables:  map[string]string{"username": "Ada", "userid": "u-1"},
	})
	if cmd["workflowId"] != "wf-1" {
		t.Fatalf("expected workflowId, got %v", cmd)
	}
	if _, ok := cmd["assistantId"]; ok {
		t.Fatalf("generate mode must not carry assistantId")
	}

	cmd = startCommand(ports.StartConfig{
		Mode:        domain.ModeInterview,
		AssistantID: "asst-1",
		Variables:   map[string]string{"questions": "- Q1\n- Q2"},
	})
	if cmd["assistantId"] != "asst-1" {
		t.Fatalf("expected assistantId, got %v", cmd)
	}
	vars, ok := cmd["variableValues"].(map[string]string)
	if !ok || vars["questions"] != "- Q1\n- Q2" {
		t.Fatalf("unexpected variables: %v", cmd["variableValues"])
	}
}

func TestSubscribeAndUnsubscribe(t *testing.T) {
	t.Parallel()

	e := NewEngine(Config{})
	var calls int
	unsub := e.Subscribe(ports.EngineHandlers{
		OnCallStart: func() { calls++ },
	})

	e.dispatch(domain.EngineEvent{Type: domain.EngineEventCallStart})
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}

	unsub()
	unsub() // safe to release twice
	e.dispatch(domain.EngineEvent{Type: domain.EngineEventCallStart})
	if calls != 1 {
		t.Fatalf("unsubscribed handler still invoked")
	}
}

func TestEngineEventFlowOverWebsocket(t *testing.T) {
	t.Parallel()

	upgrader := websocket.Upgrader{}
	received := make(chan map[string]any, 4)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		var start map[string]any
		if err := conn.ReadJSON(&start); err != nil {
			t.Errorf("read start command: %v", err)
			return
		}
		received <- start

		events := []map[string]any{
			{"type": "call-start"},
			{"type": "transcript", "role": "user", "transcriptType": "final", "transcript": "hello"},
			{"type": "call-end"},
		}
		for _, ev := range events {
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	e := NewEngine(Config{URL: wsURL, APIKey: "test-key"})

	var mu sync.Mutex
	var got []string
	done := make(chan struct{})
	e.Subscribe(ports.EngineHandlers{
		OnCallStart: func() {
			mu.Lock()
			got = append(got, "call-start")
			mu.Unlock()
		},
		OnTranscript: func(role domain.Role, kind domain.TranscriptKind, text string) {
			mu.Lock()
			got = append(got, "transcript:"+string(role)+":"+string(kind)+":"+text)
			mu.Unlock()
		},
		OnCallEnd: func() {
			mu.Lock()
			got = append(got, "call-end")
			mu.Unlock()
			close(done)
		},
	})

	if err := e.Start(context.Background(), ports.StartConfig{
		Mode:        domain.ModeInterview,
		AssistantID: "asst-1",
	}); err != nil {
		t.Fatalf("start: %v", err)
	}

	start := <-received
	if start["type"] != "start" || start["assistantId"] != "asst-1" {
		t.Fatalf("unexpected start command: %v", start)
	}

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for call-end")
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{"call-start", "transcript:user:final:hello", "call-end"}
	if len(got) != len(want) {
		t.Fatalf("unexpected events: %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestCallSurvivesStartContextCancellation(t *testing.T) {
	t.Parallel()

	upgrader := websocket.Upgrader{}
	release := make(chan struct{})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		var start map[string]any
		if err := conn.ReadJSON(&start); err != nil {
			t.Errorf("read start command: %v", err)
			return
		}

		// Hold the events back until the caller's context is gone.
		<-release
		events := []map[string]any{
			{"type": "call-start"},
			{"type": "transcript", "role": "user", "transcriptType": "final", "transcript": "still here"},
			{"type": "call-end"},
		}
		for _, ev := range events {
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	e := NewEngine(Config{URL: wsURL})

	var mu sync.Mutex
	var got []string
	var errMsgs []string
	done := make(chan struct{})
	e.Subscribe(ports.EngineHandlers{
		OnCallStart: func() {
			mu.Lock()
			got = append(got, "call-start")
			mu.Unlock()
		},
		OnTranscript: func(role domain.Role, kind domain.TranscriptKind, text string) {
			mu.Lock()
			got = append(got, "transcript:"+text)
			mu.Unlock()
		},
		OnCallEnd: func() {
			mu.Lock()
			got = append(got, "call-end")
			mu.Unlock()
			close(done)
		},
		OnError: func(message string) {
			mu.Lock()
			errMsgs = append(errMsgs, message)
			mu.Unlock()
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	if err := e.Start(ctx, ports.StartConfig{
		Mode:        domain.ModeInterview,
		AssistantID: "asst-1",
	}); err != nil {
		t.Fatalf("start: %v", err)
	}

	// The caller's context ends once the start request is answered; the
	// connected call must not be torn down with it.
	cancel()
	close(release)

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatalf("call did not survive start context cancellation")
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{"call-start", "transcript:still here", "call-end"}
	if len(got) != len(want) {
		t.Fatalf("unexpected events: %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d = %q, want %q", i, got[i], want[i])
		}
	}
	if len(errMsgs) != 0 {
		t.Fatalf("cancellation surfaced as engine errors: %v", errMsgs)
	}
}

func TestStopWithoutCallIsNoOp(t *testing.T) {
	t.Parallel()

	e := NewEngine(Config{})
	if err := e.Stop(context.Background()); err != nil {
		t.Fatalf("stop without call: %v", err)
	}
}
