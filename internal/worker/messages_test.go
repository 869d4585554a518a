package worker

import (
	"testing"
	"time"

	"moodline/internal/config"
	"moodline/internal/domain"
)

func TestMessagesSummary(t *testing.T) {
	m, err := NewMessages(config.MessagesConfig{
		Processing:     "分析中…",
		Prompt:         "請輸入一句話來分析情感喔～",
		Result:         "這句話是「{{.Label}}」情感（信心：{{.Percent}} %）",
		Undeterminable: "無法判斷",
	})
	if err != nil {
		t.Fatalf("NewMessages: %v", err)
	}

	got := m.Summary(domain.ClassificationResult{Label: "正面", Confidence: 0.916})
	if got != "這句話是「正面」情感（信心：92 %）" {
		t.Fatalf("unexpected summary: %q", got)
	}
	if got := m.Summary(domain.Undeterminable(time.Time{})); got != "無法判斷" {
		t.Fatalf("unexpected fallback summary: %q", got)
	}
	if m.Prompt() != "請輸入一句話來分析情感喔～" || m.Processing() != "分析中…" {
		t.Fatalf("unexpected static messages")
	}
}

func TestMessagesLowConfidenceIsNotFallback(t *testing.T) {
	m, _ := NewMessages(config.Default().Messages)
	got := m.Summary(domain.ClassificationResult{Label: "negative", Confidence: 0.0})
	if got == config.Default().Messages.Undeterminable {
		t.Fatalf("a successful low-confidence result must not read as undeterminable")
	}
}

func TestNewMessagesRejectsBadTemplate(t *testing.T) {
	cfg := config.Default().Messages
	cfg.Result = "{{.Label"
	if _, err := NewMessages(cfg); err == nil {
		t.Fatalf("expected parse error")
	}
}
