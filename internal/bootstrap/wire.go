package bootstrap

import (
	"log/slog"

	"nexusagent/internal/config"
	"nexusagent/internal/httpapi"
	"nexusagent/internal/logging"
	"nexusagent/internal/logstore"
	"nexusagent/internal/ports"
	"nexusagent/internal/providers/vapi"
	"nexusagent/internal/scoring"
	"nexusagent/internal/storage"
	"nexusagent/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Controller *usecase.Controller
	Handlers   *httpapi.Handlers
	LogStore   *logstore.FileStore
	Storage    *storage.Store
	Config     config.Config
}

// Build wires all server dependencies.
func Build(logger *slog.Logger) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}

	logs, err := logstore.NewFileStore(cfg.Logs.Dir, logstore.WithLogger(logger))
	if err != nil {
		return Services{}, err
	}

	store, err := storage.Open(storage.Config{
		Path:     cfg.Storage.Path,
		InMemory: cfg.Storage.InMemory,
		Logger:   logger,
	})
	if err != nil {
		_ = logs.Close()
		return Services{}, err
	}

	scorer := scoring.New(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Model)
	trigger := usecase.NewFeedbackTrigger(scorer, store)

	controller := usecase.NewController(
		func() ports.VoiceEngine {
			return vapi.NewEngine(vapi.Config{
				URL:         cfg.Engine.URL,
				APIKey:      cfg.Engine.APIKey,
				DialTimeout: cfg.Engine.DialTimeout,
			})
		},
		func(sessionID, userID string) ports.LogEmitter {
			return logging.NewEmitter(logs, sessionID, userID, logger)
		},
		trigger,
		store,
		usecase.Config{
			WorkflowID:    cfg.Engine.WorkflowID,
			InterviewerID: cfg.Engine.InterviewerID,
		},
	)

	return Services{
		Controller: controller,
		Handlers:   httpapi.NewHandlers(controller, logs, logger),
		LogStore:   logs,
		Storage:    store,
		Config:     cfg,
	}, nil
}

// Close releases the stores behind the service graph.
func (s Services) Close() {
	if s.Storage != nil {
		_ = s.Storage.Close()
	}
	if s.LogStore != nil {
		_ = s.LogStore.Close()
	}
}
