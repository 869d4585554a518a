package classifier

import (
	"context"

	"moodline/internal/domain"
)

// Outcome is the result of one classification attempt. Result is always
// usable; Err is non-nil when Result is the undeterminable fallback and
// describes why.
type Outcome struct {
	Result domain.ClassificationResult
	Err    error
}

// Classifier never fails: failures are folded into the fallback Outcome.
type Classifier interface {
	Classify(ctx context.Context, text string) Outcome
}
