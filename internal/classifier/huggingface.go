package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"time"

	"moodline/internal/domain"
)

const defaultTimeout = 5 * time.Second

// maxResponseBytes bounds how much of a backend response is read.
const maxResponseBytes = 1 << 20

type Option func(*HuggingFace)

func WithTimeout(d time.Duration) Option {
	return func(h *HuggingFace) { h.client.Timeout = d }
}

func WithHTTPClient(c *http.Client) Option {
	return func(h *HuggingFace) { h.client = c }
}

// WithHypothesisTemplate sets the NLI hypothesis, e.g. "這句話的情感是 {}。".
func WithHypothesisTemplate(tmpl string) Option {
	return func(h *HuggingFace) { h.template = tmpl }
}

func WithClock(now func() time.Time) Option {
	return func(h *HuggingFace) { h.now = now }
}

// HuggingFace calls a zero-shot-classification inference endpoint.
type HuggingFace struct {
	endpoint string
	token    string
	labels   []string
	template string
	client   *http.Client
	now      func() time.Time
}

func NewHuggingFace(endpoint, token string, labels []string, opts ...Option) *HuggingFace {
	h := &HuggingFace{
		endpoint: endpoint,
		token:    token,
		labels:   slices.Clone(labels),
		client:   &http.Client{Timeout: defaultTimeout},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type zeroShotRequest struct {
	Inputs     string             `json:"inputs"`
	Parameters zeroShotParameters `json:"parameters"`
}

type zeroShotParameters struct {
	CandidateLabels    []string `json:"candidate_labels"`
	HypothesisTemplate string   `json:"hypothesis_template,omitempty"`
}

type zeroShotResponse struct {
	Labels []string  `json:"labels"`
	Scores []float64 `json:"scores"`
}

func (h *HuggingFace) Classify(ctx context.Context, text string) Outcome {
	label, score, err := h.call(ctx, text)
	if err != nil {
		return Outcome{Result: domain.Undeterminable(h.now()), Err: err}
	}
	return Outcome{Result: domain.ClassificationResult{
		Label:        label,
		Confidence:   score,
		ClassifiedAt: h.now(),
	}}
}

func (h *HuggingFace) call(ctx context.Context, text string) (string, float64, error) {
	body, err := json.Marshal(zeroShotRequest{
		Inputs: text,
		Parameters: zeroShotParameters{
			CandidateLabels:    h.labels,
			HypothesisTemplate: h.template,
		},
	})
	if err != nil {
		return "", 0, domain.ClassificationError("encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", 0, domain.ClassificationError("build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		msg := "request failed"
		if isTimeout(err) {
			msg = "request timed out"
		}
		return "", 0, domain.ClassificationError(msg, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", 0, domain.ClassificationError("read response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", 0, domain.ClassificationError(fmt.Sprintf("API error: %d", resp.StatusCode), errors.New(snippet(raw)))
	}

	return h.parseResponse(raw)
}

// parseResponse takes index 0 of the backend's descending ordering as the
// answer. Some deployments wrap the object in a one-element array.
func (h *HuggingFace) parseResponse(raw []byte) (string, float64, error) {
	raw = bytes.TrimSpace(raw)
	var parsed zeroShotResponse
	if len(raw) > 0 && raw[0] == '[' {
		var wrapped []zeroShotResponse
		if err := json.Unmarshal(raw, &wrapped); err != nil {
			return "", 0, domain.ClassificationError("decode response", err)
		}
		if len(wrapped) == 0 {
			return "", 0, domain.ClassificationError("empty response", nil)
		}
		parsed = wrapped[0]
	} else if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", 0, domain.ClassificationError("decode response", err)
	}

	if len(parsed.Labels) == 0 || len(parsed.Labels) != len(parsed.Scores) {
		return "", 0, domain.ClassificationError(
			fmt.Sprintf("malformed response: %d labels, %d scores", len(parsed.Labels), len(parsed.Scores)), nil)
	}

	label, score := parsed.Labels[0], parsed.Scores[0]
	if !slices.Contains(h.labels, label) {
		return "", 0, domain.ClassificationError(fmt.Sprintf("unexpected label %q", label), nil)
	}
	if !domain.ValidConfidence(score) {
		return "", 0, domain.ClassificationError(fmt.Sprintf("score out of range: %v", score), nil)
	}

	return label, score, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}

func snippet(raw []byte) string {
	if len(raw) > 256 {
		raw = raw[:256]
	}
	return string(raw)
}
