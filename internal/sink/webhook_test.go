package sink

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jnst/birthday-outbox/internal/model"
)

func testOccurrence() *model.Occurrence {
	return &model.Occurrence{
		ID:          "occ-1",
		PersonID:    "p-1",
		ScheduledAt: time.Date(2025, 10, 1, 13, 0, 0, 0, time.UTC),
		Payload:     "Hey, Ada Lovelace, it’s your birthday",
	}
}

func TestWebhookSinkDeliver(t *testing.T) {
	var got Notification

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, applicationJSON, r.Header.Get(contentTypeJSON))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s := NewWebhookSink(srv.URL, time.Second)
	require.NoError(t, s.Deliver(context.Background(), testOccurrence()))

	assert.Equal(t, Notification{
		ID:          "occ-1",
		UserID:      "p-1",
		Message:     "Hey, Ada Lovelace, it’s your birthday",
		ScheduledAt: time.Date(2025, 10, 1, 13, 0, 0, 0, time.UTC).UnixMilli(),
	}, got)
}

func TestWebhookSinkNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down for maintenance", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := NewWebhookSink(srv.URL, time.Second).Deliver(context.Background(), testOccurrence())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "down for maintenance")
}

func TestWebhookSinkTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	start := time.Now()
	err := NewWebhookSink(srv.URL, 50*time.Millisecond).Deliver(context.Background(), testOccurrence())
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestWebhookSinkWithoutURL(t *testing.T) {
	err := NewWebhookSink("", time.Second).Deliver(context.Background(), testOccurrence())
	require.ErrorIs(t, err, ErrNoEndpoint)
}
