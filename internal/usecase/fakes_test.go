package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"nexusagent/internal/domain"
	"nexusagent/internal/logging"
	"nexusagent/internal/ports"
)

// fakeEngine records commands and lets tests fire engine events at the
// subscribed handlers.
type fakeEngine struct {
	mu       sync.Mutex
	startErr error
	started  []ports.StartConfig
	stops    int
	subs     map[int]ports.EngineHandlers
	nextID   int
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{subs: make(map[int]ports.EngineHandlers)}
}

func (f *fakeEngine) Subscribe(h ports.EngineHandlers) ports.Unsubscribe {
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.subs[id] = h
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		delete(f.subs, id)
		f.mu.Unlock()
	}
}

func (f *fakeEngine) Start(_ context.Context, cfg ports.StartConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.started = append(f.started, cfg)
	return nil
}

func (f *fakeEngine) Stop(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	return nil
}

func (f *fakeEngine) handlers() []ports.EngineHandlers {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]ports.EngineHandlers, 0, len(f.subs))
	for _, h := range f.subs {
		out = append(out, h)
	}
	return out
}

func (f *fakeEngine) fireCallStart() {
	for _, h := range f.handlers() {
		if h.OnCallStart != nil {
			h.OnCallStart()
		}
	}
}

func (f *fakeEngine) fireCallEnd() {
	for _, h := range f.handlers() {
		if h.OnCallEnd != nil {
			h.OnCallEnd()
		}
	}
}

func (f *fakeEngine) fireTranscript(role domain.Role, kind domain.TranscriptKind, text string) {
	for _, h := range f.handlers() {
		if h.OnTranscript != nil {
			h.OnTranscript(role, kind, text)
		}
	}
}

func (f *fakeEngine) fireError(message string) {
	for _, h := range f.handlers() {
		if h.OnError != nil {
			h.OnError(message)
		}
	}
}

func (f *fakeEngine) subscriberCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// memLogStore keeps appended records in memory, in append order.
type memLogStore struct {
	mu      sync.Mutex
	records []domain.LogRecord
	failing bool
}

func (m *memLogStore) Append(_ context.Context, rec domain.LogRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return errors.New("store unavailable")
	}
	m.records = append(m.records, rec)
	return nil
}

func (m *memLogStore) Query(_ context.Context, sessionID string) ([]domain.LogRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.LogRecord
	for _, rec := range m.records {
		if rec.SessionID == sessionID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *memLogStore) byKind(kind domain.LogKind) []domain.LogRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.LogRecord
	for _, rec := range m.records {
		if rec.Kind == kind {
			out = append(out, rec)
		}
	}
	return out
}

// fakeScorer returns a fixed result or error and counts invocations.
type fakeScorer struct {
	mu     sync.Mutex
	result domain.ScoreResult
	err    error
	calls  []string
}

func evenScores(score float64) domain.ScoreResult {
	scores := make(map[string]float64, 5)
	for _, category := range domain.FeedbackCategories() {
		scores[category] = score
	}
	return domain.ScoreResult{
		TotalScore:          score,
		CategoryScores:      scores,
		Strengths:           []string{"clear answers"},
		AreasForImprovement: []string{"more depth"},
		FinalAssessment:     "solid candidate",
	}
}

func (f *fakeScorer) Score(_ context.Context, doc string) (domain.ScoreResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, doc)
	if f.err != nil {
		return domain.ScoreResult{}, f.err
	}
	return f.result, nil
}

func (f *fakeScorer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// fakeStore implements interview and feedback persistence in memory.
type fakeStore struct {
	mu         sync.Mutex
	interviews map[string]domain.Interview
	feedback   map[string]domain.Feedback
	saveErr    error
	nextID     int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		interviews: make(map[string]domain.Interview),
		feedback:   make(map[string]domain.Feedback),
	}
}

func (f *fakeStore) GetInterviewByID(_ context.Context, id string) (domain.Interview, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	interview, ok := f.interviews[id]
	if !ok {
		return domain.Interview{}, errors.New("interview not found")
	}
	return interview, nil
}

func (f *fakeStore) SaveInterview(_ context.Context, interview domain.Interview) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.interviews[interview.ID] = interview
	return nil
}

func (f *fakeStore) CreateOrUpdateFeedback(_ context.Context, feedbackID string, fb domain.Feedback) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return "", f.saveErr
	}
	if feedbackID == "" {
		f.nextID++
		feedbackID = fmt.Sprintf("fb-%d", f.nextID)
	}
	fb.ID = feedbackID
	f.feedback[feedbackID] = fb
	return feedbackID, nil
}

func (f *fakeStore) GetFeedbackByInterview(_ context.Context, interviewID, userID string) (domain.Feedback, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, fb := range f.feedback {
		if fb.InterviewID == interviewID && fb.UserID == userID {
			return fb, nil
		}
	}
	return domain.Feedback{}, errors.New("feedback not found")
}

func (f *fakeStore) feedbackCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.feedback)
}

type testRig struct {
	engine     *fakeEngine
	logs       *memLogStore
	scorer     *fakeScorer
	store      *fakeStore
	controller *Controller
}

func newTestRig() *testRig {
	rig := &testRig{
		engine: newFakeEngine(),
		logs:   &memLogStore{},
		scorer: &fakeScorer{result: evenScores(80)},
		store:  newFakeStore(),
	}
	rig.controller = NewController(
		func() ports.VoiceEngine { return rig.engine },
		func(sessionID, userID string) ports.LogEmitter {
			return logging.NewEmitter(rig.logs, sessionID, userID, nil)
		},
		NewFeedbackTrigger(rig.scorer, rig.store),
		rig.store,
		Config{WorkflowID: "wf-gen", InterviewerID: "asst-interviewer"},
	)
	return rig
}
