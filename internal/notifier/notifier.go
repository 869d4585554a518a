package notifier

import (
	"context"
)

// Notifier delivers text back to a chat user. Neither call retries.
type Notifier interface {
	// Acknowledge spends a single-use reply token.
	Acknowledge(ctx context.Context, replyToken, text string) error
	// Notify pushes to a user and may be called any number of times.
	Notify(ctx context.Context, userID, text string) error
}
