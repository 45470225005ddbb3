// Package logstore persists session log records into day-partitioned
// files, one JSON record per line, named agent-logs-YYYY-MM-DD.jsonl.
//
// Appends across sessions are funneled through a single writer
// goroutine, so concurrent sessions cannot lose each other's records.
// Query scans only the current UTC day's partition: a session that
// crosses midnight has split logs and only the newer part is
// retrievable.
package logstore

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"nexusagent/internal/domain"
)

var ErrClosed = errors.New("log store is closed")

const queueDepth = 256

// FileStore is a day-partitioned JSONL log store.
type FileStore struct {
	dir    string
	clock  func() time.Time
	logger *slog.Logger

	writes chan writeReq

	closeOnce sync.Once
	closed    chan struct{}
	drained   chan struct{}
}

type writeReq struct {
	rec  domain.LogRecord
	done chan error
}

// Option configures a FileStore.
type Option func(*FileStore)

// WithClock overrides the partition clock. Used by tests to pin the day.
func WithClock(clock func() time.Time) Option {
	return func(s *FileStore) { s.clock = clock }
}

// WithLogger sets the diagnostic logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *FileStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewFileStore creates the log directory if needed and starts the
// writer goroutine. Callers must Close the store to flush it.
func NewFileStore(dir string, opts ...Option) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	s := &FileStore{
		dir:     dir,
		clock:   time.Now,
		logger:  slog.Default(),
		writes:  make(chan writeReq, queueDepth),
		closed:  make(chan struct{}),
		drained: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.writeLoop()
	return s, nil
}

// Append hands the record to the writer goroutine, blocking until it
// is on disk or the context is done. The writer stamps unset
// timestamps, so timestamps are monotonic in append order.
func (s *FileStore) Append(ctx context.Context, rec domain.LogRecord) error {
	select {
	case <-s.closed:
		return ErrClosed
	default:
	}

	req := writeReq{rec: rec, done: make(chan error, 1)}
	select {
	case s.writes <- req:
	case <-s.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-s.drained:
		// The writer may have exited between enqueue and drain.
		select {
		case err := <-req.done:
			return err
		default:
			return ErrClosed
		}
	}
}

// Query returns the current day's records for sessionID in append order.
func (s *FileStore) Query(ctx context.Context, sessionID string) ([]domain.LogRecord, error) {
	f, err := os.Open(s.partitionPath(s.clock().UTC()))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open log partition: %w", err)
	}
	defer f.Close()

	var out []domain.LogRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec domain.LogRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			// A torn line from a crash mid-write; skip it.
			s.logger.Warn("skipping malformed log line", "dir", s.dir, "error", err)
			continue
		}
		if rec.SessionID == sessionID {
			out = append(out, rec)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan log partition: %w", err)
	}
	return out, nil
}

// Close stops the writer after draining queued records.
func (s *FileStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
	})
	<-s.drained
	return nil
}

func (s *FileStore) writeLoop() {
	defer close(s.drained)
	for {
		select {
		case req := <-s.writes:
			req.done <- s.write(req.rec)
		case <-s.closed:
			for {
				select {
				case req := <-s.writes:
					req.done <- s.write(req.rec)
				default:
					return
				}
			}
		}
	}
}

func (s *FileStore) write(rec domain.LogRecord) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = s.clock().UTC()
	}
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode log record: %w", err)
	}

	f, err := os.OpenFile(s.partitionPath(rec.Timestamp.UTC()), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log partition: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to append log record: %w", err)
	}
	return nil
}

func (s *FileStore) partitionPath(day time.Time) string {
	return filepath.Join(s.dir, "agent-logs-"+day.Format("2006-01-02")+".jsonl")
}
