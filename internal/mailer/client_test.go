package mailer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"eventFlow/internal/config"
)

func newTestClient(t *testing.T, baseURL string) Client {
	t.Helper()
	c, err := NewClient(config.MailConfig{
		APIKey:     "test-key",
		BaseURL:    baseURL,
		FromEmail:  "noreply@eventflow.test",
		FromName:   "EventFlow",
		MaxRetries: 2,
	}, nil)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	return c
}

func TestSendBuildsSendGridRequest(t *testing.T) {
	var captured mailSendRequest
	var authHeader string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		w.Header().Set("X-Message-Id", "msg-1")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	result, err := client.Send(context.Background(), SendEmailRequest{
		To:      []EmailAddress{{Email: "guest@example.com"}},
		Subject: "报名确认",
		HTML:    "<p>欢迎参加</p>",
		Attachments: []Attachment{
			{Filename: "qr.png", MIMEType: "image/png", Content: []byte{1, 2, 3}},
		},
	})
	if err != nil {
		t.Fatalf("Send returned error: %v", err)
	}

	if result.MessageID != "msg-1" {
		t.Errorf("MessageID = %q, want msg-1", result.MessageID)
	}
	if authHeader != "Bearer test-key" {
		t.Errorf("Authorization = %q", authHeader)
	}
	if captured.From.Email != "noreply@eventflow.test" {
		t.Errorf("From fallback not applied, got %q", captured.From.Email)
	}
	if len(captured.Personalizations) != 1 || len(captured.Personalizations[0].To) != 1 {
		t.Fatalf("unexpected personalizations: %+v", captured.Personalizations)
	}
	if len(captured.Attachments) != 1 || captured.Attachments[0].Content == "" {
		t.Errorf("attachment not base64 encoded: %+v", captured.Attachments)
	}
}

func TestSendRetriesOnServerError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.Send(context.Background(), SendEmailRequest{
		To:      []EmailAddress{{Email: "guest@example.com"}},
		Subject: "hello",
		Text:    "world",
	})
	if err != nil {
		t.Fatalf("Send returned error after retry: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 attempts, got %d", calls.Load())
	}
}

func TestSendDoesNotRetryClientError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.Send(context.Background(), SendEmailRequest{
		To:      []EmailAddress{{Email: "guest@example.com"}},
		Subject: "hello",
		Text:    "world",
	})
	if err == nil {
		t.Fatal("expected error for 400 response")
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 attempt, got %d", calls.Load())
	}
}

func TestSendValidatesRequest(t *testing.T) {
	client := newTestClient(t, "http://127.0.0.1:0")

	cases := []SendEmailRequest{
		{Subject: "s", Text: "t"},
		{To: []EmailAddress{{Email: "a@b.c"}}, Text: "t"},
		{To: []EmailAddress{{Email: "a@b.c"}}, Subject: "s"},
	}
	for i, req := range cases {
		if _, err := client.Send(context.Background(), req); err == nil {
			t.Errorf("case %d: expected validation error", i)
		}
	}
}
