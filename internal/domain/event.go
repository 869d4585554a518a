package domain

import (
	"math"
	"strings"
	"time"
)

// LabelUndeterminable is the fallback label used when the classifier could
// not produce a usable answer.
const LabelUndeterminable = "undeterminable"

type InboundEvent struct {
	ID         string
	UserID     string
	Text       string
	ReplyToken string
	ReceivedAt time.Time
	Redelivery bool
}

// Blank reports whether the event carries no classifiable text.
func (e InboundEvent) Blank() bool {
	return strings.TrimSpace(e.Text) == ""
}

type ClassificationResult struct {
	Label        string
	Confidence   float64
	ClassifiedAt time.Time
	Fallback     bool
}

func Undeterminable(at time.Time) ClassificationResult {
	return ClassificationResult{
		Label:        LabelUndeterminable,
		Confidence:   0,
		ClassifiedAt: at,
		Fallback:     true,
	}
}

// ValidConfidence reports whether c is a finite value in [0,1].
func ValidConfidence(c float64) bool {
	return !math.IsNaN(c) && c >= 0 && c <= 1
}

type AuditRecord struct {
	Timestamp  time.Time
	UserID     string
	InputText  string
	Label      string
	Confidence float64
}

func NewAuditRecord(e InboundEvent, r ClassificationResult) AuditRecord {
	return AuditRecord{
		Timestamp:  r.ClassifiedAt,
		UserID:     e.UserID,
		InputText:  strings.TrimSpace(e.Text),
		Label:      r.Label,
		Confidence: r.Confidence,
	}
}
