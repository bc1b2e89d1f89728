package twitter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/goliatone/go-activities/pkg/adapters"
)

func TestSendPostsTruncatedTweet(t *testing.T) {
	var payload map[string]string
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tweets" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&payload)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"id":"1"}}`))
	}))
	defer srv.Close()

	adapter := New(nil, WithConfig(Config{BaseURL: srv.URL}), WithDelegatedCredentials(true))
	if !adapter.DelegatedCredentials() {
		t.Fatalf("expected delegated adapter")
	}
	err := adapter.Send(context.Background(), adapters.Message{
		Body:        strings.Repeat("あ", 300),
		Credentials: map[string]string{"access_token": "user-token"},
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if auth != "Bearer user-token" {
		t.Fatalf("unexpected auth header %q", auth)
	}
	if n := utf8.RuneCountInString(payload["text"]); n != MaxTweetLength {
		t.Fatalf("expected %d runes, got %d", MaxTweetLength, n)
	}
}

func TestSendRequiresToken(t *testing.T) {
	adapter := New(nil)
	if err := adapter.Send(context.Background(), adapters.Message{Body: "hi"}); err == nil {
		t.Fatalf("expected missing token error")
	}
}

func TestSendReportsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"title":"Forbidden","detail":"duplicate content"}`))
	}))
	defer srv.Close()

	adapter := New(nil, WithConfig(Config{BaseURL: srv.URL}))
	err := adapter.Send(context.Background(), adapters.Message{Body: "hi", Credentials: map[string]string{"token": "t"}})
	if err == nil || !strings.Contains(err.Error(), "duplicate content") {
		t.Fatalf("expected api error detail, got %v", err)
	}
}
