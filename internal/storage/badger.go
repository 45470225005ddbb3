// Package storage persists interview and feedback documents in an
// embedded BadgerDB. Documents are JSON values under typed key
// prefixes; feedback lookup by interview scans the prefix with an
// equality filter, document-store style.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"nexusagent/internal/domain"
)

var (
	ErrInterviewNotFound = errors.New("interview not found")
	ErrFeedbackNotFound  = errors.New("feedback not found")
)

const (
	interviewPrefix = "interview/"
	feedbackPrefix  = "feedback/"
)

// Config holds Badger settings.
type Config struct {
	// Path is the database directory. Ignored when InMemory is true.
	Path string
	// InMemory disables disk persistence. Useful for testing.
	InMemory bool
	// Logger receives Badger's internal diagnostics. Disabled when nil.
	Logger *slog.Logger
}

// Store is the Badger-backed interview/feedback store.
type Store struct {
	db *badger.DB
}

// Open creates the database directory if needed and opens the store.
// Callers must Close it.
func Open(cfg Config) (*Store, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, errors.New("storage path is required")
		}
		if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create storage directory: %w", err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger store: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// GetInterviewByID returns the interview document for id.
func (s *Store) GetInterviewByID(ctx context.Context, id string) (domain.Interview, error) {
	if err := ctx.Err(); err != nil {
		return domain.Interview{}, err
	}
	var interview domain.Interview
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(interviewPrefix + id))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrInterviewNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &interview)
		})
	})
	if err != nil {
		return domain.Interview{}, err
	}
	return interview, nil
}

// SaveInterview writes an interview document, allocating an ID if unset.
func (s *Store) SaveInterview(ctx context.Context, interview domain.Interview) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if interview.ID == "" {
		interview.ID = uuid.NewString()
	}
	val, err := json.Marshal(interview)
	if err != nil {
		return fmt.Errorf("failed to encode interview: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(interviewPrefix+interview.ID), val)
	})
}

// CreateOrUpdateFeedback persists a feedback document. A non-empty
// feedbackID overwrites in place; otherwise a fresh ID is allocated.
func (s *Store) CreateOrUpdateFeedback(ctx context.Context, feedbackID string, fb domain.Feedback) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if feedbackID == "" {
		feedbackID = uuid.NewString()
	}
	fb.ID = feedbackID

	val, err := json.Marshal(fb)
	if err != nil {
		return "", fmt.Errorf("failed to encode feedback: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(feedbackPrefix+feedbackID), val)
	})
	if err != nil {
		return "", fmt.Errorf("failed to persist feedback: %w", err)
	}
	return feedbackID, nil
}

// GetFeedbackByInterview returns the first feedback document matching
// interviewID and userID.
func (s *Store) GetFeedbackByInterview(ctx context.Context, interviewID, userID string) (domain.Feedback, error) {
	if err := ctx.Err(); err != nil {
		return domain.Feedback{}, err
	}
	var found domain.Feedback
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(feedbackPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var fb domain.Feedback
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &fb)
			})
			if err != nil {
				return err
			}
			if fb.InterviewID == interviewID && fb.UserID == userID {
				found = fb
				return nil
			}
		}
		return ErrFeedbackNotFound
	})
	if err != nil {
		return domain.Feedback{}, err
	}
	return found, nil
}

// badgerLogger adapts slog.Logger to Badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
