package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"moodline/internal/domain"
)

func TestLineAcknowledge(t *testing.T) {
	var got replyRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != replyPath {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer token-1" {
			t.Errorf("unexpected auth header: %s", auth)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	l := NewLine("token-1", srv.URL)
	if err := l.Acknowledge(context.Background(), "rt-1", "processing"); err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}
	if got.ReplyToken != "rt-1" || len(got.Messages) != 1 || got.Messages[0].Text != "processing" || got.Messages[0].Type != "text" {
		t.Fatalf("unexpected request: %+v", got)
	}
}

func TestLineNotify(t *testing.T) {
	var got pushRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != pushPath {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"sentMessages":[{"id":"1"}]}`))
	}))
	defer srv.Close()

	l := NewLine("token-1", srv.URL+"/")
	if err := l.Notify(context.Background(), "U123", "positive 92%"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if got.To != "U123" || got.Messages[0].Text != "positive 92%" {
		t.Fatalf("unexpected request: %+v", got)
	}
}

func TestLineInvalidReplyToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"Invalid reply token"}`))
	}))
	defer srv.Close()

	err := NewLine("t", srv.URL).Acknowledge(context.Background(), "spent", "x")
	if err == nil {
		t.Fatalf("expected delivery error")
	}
	if !domain.IsDeliveryError(err) {
		t.Fatalf("expected DeliveryError, got %v", err)
	}
	if !strings.Contains(err.Error(), "Invalid reply token") {
		t.Fatalf("expected platform message in error, got %v", err)
	}
}

func TestLineNotifyErrors(t *testing.T) {
	l := NewLine("t", "http://127.0.0.1:0")
	if err := l.Notify(context.Background(), "", "x"); !domain.IsDeliveryError(err) {
		t.Fatalf("expected missing user error, got %v", err)
	}
	if err := l.Acknowledge(context.Background(), "", "x"); !domain.IsDeliveryError(err) {
		t.Fatalf("expected missing token error, got %v", err)
	}

	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`upstream down`))
	}))
	defer srv.Close()

	err := NewLine("t", srv.URL).Notify(context.Background(), "U1", "x")
	if !domain.IsDeliveryError(err) {
		t.Fatalf("expected DeliveryError, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single attempt, got %d", calls)
	}

	srv.Close()
	if err := NewLine("t", srv.URL).Notify(context.Background(), "U1", "x"); !domain.IsDeliveryError(err) {
		t.Fatalf("expected transport DeliveryError, got %v", err)
	}
}

func TestNewTextTruncates(t *testing.T) {
	long := strings.Repeat("字", maxTextRunes+10)
	msg := newText(long)
	if n := len([]rune(msg.Text)); n != maxTextRunes {
		t.Fatalf("expected %d runes, got %d", maxTextRunes, n)
	}
}
