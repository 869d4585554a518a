package domain

import (
	"errors"
	"math"
	"net/http"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

func TestInboundEventBlank(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"", true},
		{"   ", true},
		{"\t\n　", true},
		{"我今天很開心", false},
		{"  hi  ", false},
	}
	for _, tt := range tests {
		got := InboundEvent{Text: tt.text}.Blank()
		if got != tt.want {
			t.Errorf("Blank(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestUndeterminable(t *testing.T) {
	now := time.Unix(1700000000, 0)
	r := Undeterminable(now)
	if r.Label != LabelUndeterminable || r.Confidence != 0 || !r.Fallback {
		t.Fatalf("unexpected fallback result: %+v", r)
	}
	if !r.ClassifiedAt.Equal(now) {
		t.Fatalf("expected classified_at %v, got %v", now, r.ClassifiedAt)
	}
}

func TestValidConfidence(t *testing.T) {
	for _, c := range []float64{0, 0.5, 1} {
		if !ValidConfidence(c) {
			t.Errorf("expected %v to be valid", c)
		}
	}
	for _, c := range []float64{-0.01, 1.01, math.NaN(), math.Inf(1)} {
		if ValidConfidence(c) {
			t.Errorf("expected %v to be invalid", c)
		}
	}
}

func TestNewAuditRecord(t *testing.T) {
	at := time.Unix(1700000000, 0)
	rec := NewAuditRecord(
		InboundEvent{UserID: "U1", Text: " 我今天很開心 "},
		ClassificationResult{Label: "positive", Confidence: 0.92, ClassifiedAt: at},
	)
	if rec.UserID != "U1" || rec.InputText != "我今天很開心" || rec.Label != "positive" || rec.Confidence != 0.92 {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if !rec.Timestamp.Equal(at) {
		t.Fatalf("unexpected timestamp: %v", rec.Timestamp)
	}
}

func TestErrorTaxonomy(t *testing.T) {
	cause := errors.New("boom")
	tests := []struct {
		name     string
		err      error
		is       func(error) bool
		category goerrors.Category
		code     int
	}{
		{"signature", SignatureError("bad signature", nil), IsSignatureError, goerrors.CategoryAuth, http.StatusBadRequest},
		{"classification", ClassificationError("timeout", cause), IsClassificationError, goerrors.CategoryExternal, http.StatusBadGateway},
		{"delivery", DeliveryError("push failed", cause, map[string]any{"status": 500}), IsDeliveryError, goerrors.CategoryExternal, http.StatusBadGateway},
		{"log", LogError("append failed", cause), IsLogError, goerrors.CategoryOperation, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.is(tt.err) {
				t.Fatalf("expected kind predicate to match")
			}
			var rich *goerrors.Error
			if !goerrors.As(tt.err, &rich) {
				t.Fatalf("expected go-errors envelope, got %T", tt.err)
			}
			if rich.Category != tt.category {
				t.Fatalf("expected category %q, got %q", tt.category, rich.Category)
			}
			if rich.Code != tt.code {
				t.Fatalf("expected code %d, got %d", tt.code, rich.Code)
			}
		})
	}

	if IsDeliveryError(LogError("x", nil)) {
		t.Fatalf("log error must not match delivery kind")
	}
	if IsLogError(cause) {
		t.Fatalf("plain error must not match any kind")
	}
}
