package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goliatone/go-activities/pkg/adapters"
)

func TestSendPostsActivityPayload(t *testing.T) {
	var got Payload
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	adapter := New(nil, WithConfig(Config{URL: srv.URL}))
	err := adapter.Send(context.Background(), adapters.Message{
		ID:          "a1",
		Channel:     "webhook",
		SubjectType: "events.event",
		SubjectID:   "1",
		Status:      "created",
		Body:        "New event",
		Credentials: map[string]string{"token": "secret"},
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if got.ActivityID != "a1" || got.Status != "created" || got.Body != "New event" {
		t.Fatalf("unexpected payload %+v", got)
	}
	if auth != "Bearer secret" {
		t.Fatalf("expected bearer token, got %q", auth)
	}
}

func TestSendFailsOnErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	adapter := New(nil, WithConfig(Config{URL: srv.URL}))
	if err := adapter.Send(context.Background(), adapters.Message{ID: "a1"}); err == nil {
		t.Fatalf("expected error on 502")
	}
	if err := New(nil).Send(context.Background(), adapters.Message{}); err == nil {
		t.Fatalf("expected error without url")
	}
}
