package qr

import (
	"bytes"
	"strings"
	"testing"
)

func TestPNGProducesValidImage(t *testing.T) {
	png, err := PNG("https://example.com/checkin/abc", 128)
	if err != nil {
		t.Fatalf("PNG returned error: %v", err)
	}
	if !bytes.HasPrefix(png, []byte("\x89PNG")) {
		t.Fatalf("output does not look like a PNG, got prefix %q", png[:4])
	}
}

func TestPNGRejectsEmptyContent(t *testing.T) {
	if _, err := PNG("", 128); err == nil {
		t.Fatal("expected error for empty content")
	}
}

func TestDataURIPrefix(t *testing.T) {
	uri, err := DataURI("hello", 0)
	if err != nil {
		t.Fatalf("DataURI returned error: %v", err)
	}
	if !strings.HasPrefix(uri, "data:image/png;base64,") {
		t.Fatalf("unexpected data uri prefix: %q", uri[:32])
	}
}

func TestCheckInURL(t *testing.T) {
	got := CheckInURL("https://eventflow.example.com", "tok-123")
	want := "https://eventflow.example.com/checkin/tok-123"
	if got != want {
		t.Fatalf("CheckInURL = %q, want %q", got, want)
	}
}
