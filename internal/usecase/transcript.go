package usecase

import (
	"strings"
	"sync"

	"nexusagent/internal/domain"
)

// transcriptLog accumulates accepted utterances in arrival order.
// Only final transcript events are admitted; partials are dropped,
// never buffered.
type transcriptLog struct {
	mu         sync.Mutex
	utterances []domain.Utterance
}

func newTranscriptLog() *transcriptLog {
	return &transcriptLog{}
}

// Add appends one utterance when the event is final and non-empty.
// Returns whether the event was accepted.
func (t *transcriptLog) Add(role domain.Role, kind domain.TranscriptKind, text string) bool {
	text = strings.TrimSpace(text)
	if text == "" || kind != domain.TranscriptKindFinal {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.utterances = append(t.utterances, domain.Utterance{Role: role, Content: text})
	return true
}

// Snapshot returns a copy of the accumulated transcript.
func (t *transcriptLog) Snapshot() []domain.Utterance {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]domain.Utterance, len(t.utterances))
	copy(out, t.utterances)
	return out
}

func (t *transcriptLog) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.utterances)
}

// lastMessage is the display projection over a transcript: the content
// of the most recently accepted utterance.
func lastMessage(transcript []domain.Utterance) string {
	if len(transcript) == 0 {
		return ""
	}
	return transcript[len(transcript)-1].Content
}
