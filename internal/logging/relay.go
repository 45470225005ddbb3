package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"nexusagent/internal/domain"
)

// RelayStore forwards log records over HTTP to the server-side write
// endpoint. Used by processes that do not own the log directory. The
// response body is ignored.
type RelayStore struct {
	baseURL string
	client  *http.Client
}

type relayPayload struct {
	SessionID string         `json:"sessionId"`
	UserID    string         `json:"userId,omitempty"`
	Type      domain.LogKind `json:"type"`
	Data      map[string]any `json:"data"`
}

func NewRelayStore(baseURL string, client *http.Client) *RelayStore {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &RelayStore{baseURL: baseURL, client: client}
}

func (r *RelayStore) Append(ctx context.Context, rec domain.LogRecord) error {
	body, err := json.Marshal(relayPayload{
		SessionID: rec.SessionID,
		UserID:    rec.UserID,
		Type:      rec.Kind,
		Data:      rec.Data,
	})
	if err != nil {
		return fmt.Errorf("failed to encode log payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/api/logs", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to relay log record: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("log relay rejected record: %s", resp.Status)
	}
	return nil
}

// Query fetches the stored records for a session from the server.
func (r *RelayStore) Query(ctx context.Context, sessionID string) ([]domain.LogRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/api/logs/"+sessionID, nil)
	if err != nil {
		return nil, err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query session logs: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("log query failed: %s", resp.Status)
	}

	var out struct {
		Logs []domain.LogRecord `json:"logs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode session logs: %w", err)
	}
	return out.Logs, nil
}
