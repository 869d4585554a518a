package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"moodline/internal/domain"
)

const (
	DefaultLineBaseURL = "https://api.line.me"

	replyPath = "/v2/bot/message/reply"
	pushPath  = "/v2/bot/message/push"

	// maxTextRunes is the LINE limit for a single text message.
	maxTextRunes = 5000
)

type Line struct {
	accessToken string
	baseURL     string
	client      *http.Client
}

func NewLine(accessToken, baseURL string) *Line {
	if baseURL == "" {
		baseURL = DefaultLineBaseURL
	}
	return &Line{
		accessToken: accessToken,
		baseURL:     strings.TrimRight(baseURL, "/"),
		client:      &http.Client{Timeout: 10 * time.Second},
	}
}

type textMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type replyRequest struct {
	ReplyToken string        `json:"replyToken"`
	Messages   []textMessage `json:"messages"`
}

type pushRequest struct {
	To       string        `json:"to"`
	Messages []textMessage `json:"messages"`
}

func (l *Line) Acknowledge(ctx context.Context, replyToken, text string) error {
	if replyToken == "" {
		return domain.DeliveryError("reply: missing reply token", nil, nil)
	}
	return l.send(ctx, "reply", replyPath, replyRequest{
		ReplyToken: replyToken,
		Messages:   []textMessage{newText(text)},
	})
}

func (l *Line) Notify(ctx context.Context, userID, text string) error {
	if userID == "" {
		return domain.DeliveryError("push: missing user id", nil, nil)
	}
	return l.send(ctx, "push", pushPath, pushRequest{
		To:       userID,
		Messages: []textMessage{newText(text)},
	})
}

func (l *Line) send(ctx context.Context, op, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return domain.DeliveryError(op+": encode request", err, nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return domain.DeliveryError(op+": build request", err, nil)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+l.accessToken)

	resp, err := l.client.Do(req)
	if err != nil {
		return domain.DeliveryError(op+": request failed", err, nil)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	var apiErr struct {
		Message string `json:"message"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if json.Unmarshal(raw, &apiErr) != nil || apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(raw))
	}

	return domain.DeliveryError(
		fmt.Sprintf("%s: line error %d: %s", op, resp.StatusCode, apiErr.Message),
		nil,
		map[string]any{"status": resp.StatusCode, "operation": op},
	)
}

func newText(text string) textMessage {
	if r := []rune(text); len(r) > maxTextRunes {
		text = string(r[:maxTextRunes])
	}
	return textMessage{Type: "text", Text: text}
}
