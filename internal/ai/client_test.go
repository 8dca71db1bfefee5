package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"eventFlow/internal/config"
	"eventFlow/internal/content"
)

func newTestClient(t *testing.T, baseURL string) Client {
	t.Helper()
	c, err := NewClient(config.OpenAIConfig{
		APIKey:     "test-key",
		BaseURL:    baseURL,
		MaxRetries: 2,
	}, nil)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	return c
}

func chatResponse(payload string) string {
	body, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"role": "assistant", "content": payload}},
		},
	})
	return string(body)
}

func TestGenerateBlockContentDecodesVariant(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chatResponse(`{"headline":"年度技术大会","text":"三天两夜","buttonText":"抢票"}`)))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	got, err := client.GenerateBlockContent(context.Background(), content.BlockHero, "技术大会", "年度盛会", "")
	if err != nil {
		t.Fatalf("GenerateBlockContent returned error: %v", err)
	}

	hero, ok := got.(*content.HeroContent)
	if !ok {
		t.Fatalf("expected *HeroContent, got %T", got)
	}
	if hero.Headline != "年度技术大会" || hero.ButtonText != "抢票" {
		t.Errorf("unexpected hero content: %+v", hero)
	}
}

func TestGenerateBlockContentStripsCodeFence(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(chatResponse("```json\n{\"text\":\"欢迎\"}\n```")))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	got, err := client.GenerateBlockContent(context.Background(), content.BlockText, "活动", "", "")
	if err != nil {
		t.Fatalf("GenerateBlockContent returned error: %v", err)
	}
	text, ok := got.(*content.TextContent)
	if !ok || text.Text != "欢迎" {
		t.Errorf("unexpected content: %#v", got)
	}
}

func TestGenerateBlockContentRejectsImageType(t *testing.T) {
	client := newTestClient(t, "http://127.0.0.1:0")
	if _, err := client.GenerateBlockContent(context.Background(), content.BlockImage, "活动", "", ""); err == nil {
		t.Fatal("expected error for image block type")
	}
}

func TestGenerateImageRetriesOnRateLimit(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"data":[{"url":"https://img.example.com/1.png"}]}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	url, err := client.GenerateImage(context.Background(), "a banner")
	if err != nil {
		t.Fatalf("GenerateImage returned error: %v", err)
	}
	if url != "https://img.example.com/1.png" {
		t.Errorf("url = %q", url)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 attempts, got %d", calls.Load())
	}
}

func TestGenerateImagePrefersURLThenB64(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"b64_json":"aGVsbG8="}]}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	url, err := client.GenerateImage(context.Background(), "a banner")
	if err != nil {
		t.Fatalf("GenerateImage returned error: %v", err)
	}
	if url != "data:image/png;base64,aGVsbG8=" {
		t.Errorf("url = %q", url)
	}
}

func TestStaticContentCoversGeneratableTypes(t *testing.T) {
	for blockType := range blockFieldHints {
		if StaticContent(blockType) == nil {
			t.Errorf("StaticContent(%s) returned nil", blockType)
		}
	}
	if StaticContent(content.BlockImage) != nil {
		t.Error("image blocks should have no static text fallback")
	}
}
