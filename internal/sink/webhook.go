// Package sink delivers due occurrences to the outbound webhook.
package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jnst/birthday-outbox/internal/model"
)

const (
	contentTypeJSON = "Content-Type"
	applicationJSON = "application/json"
	maxErrorBody    = 512
)

// ErrNoEndpoint is returned by Deliver when no webhook URL is configured.
var ErrNoEndpoint = errors.New("webhook url is not configured")

// Sink delivers one occurrence. A nil error means the receiver accepted it.
type Sink interface {
	Deliver(ctx context.Context, occurrence *model.Occurrence) error
}

// Notification is the JSON body posted to the webhook.
type Notification struct {
	ID          string `json:"id"`
	UserID      string `json:"userId"`
	Message     string `json:"message"`
	ScheduledAt int64  `json:"scheduledAt"`
}

// WebhookSink posts notifications to a fixed URL.
type WebhookSink struct {
	url    string
	client *http.Client
}

// NewWebhookSink creates a sink posting to url with a per-request timeout.
func NewWebhookSink(url string, timeout time.Duration) *WebhookSink {
	return &WebhookSink{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Deliver posts the occurrence and treats any non-2xx status as failure.
func (s *WebhookSink) Deliver(ctx context.Context, occurrence *model.Occurrence) error {
	if s.url == "" {
		return ErrNoEndpoint
	}

	body, err := json.Marshal(Notification{
		ID:          occurrence.ID,
		UserID:      occurrence.PersonID,
		Message:     occurrence.Payload,
		ScheduledAt: occurrence.ScheduledAt.UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}

	req.Header.Set(contentTypeJSON, applicationJSON)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}

	_, _ = io.Copy(io.Discard, resp.Body)

	return nil
}
