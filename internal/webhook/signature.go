package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"

	"moodline/internal/domain"
)

// Verify checks a LINE-style signature: base64(HMAC-SHA256(secret, body)).
func Verify(secret string, body []byte, signature string) error {
	if secret == "" {
		return domain.SignatureError("signing secret not configured", nil)
	}
	if signature == "" {
		return domain.SignatureError("missing signature", nil)
	}

	got, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return domain.SignatureError("malformed signature", err)
	}

	if !hmac.Equal(got, Sign(secret, body)) {
		return domain.SignatureError("invalid signature", nil)
	}
	return nil
}

// Sign returns the raw HMAC-SHA256 of body.
func Sign(secret string, body []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	return mac.Sum(nil)
}

// SignBase64 returns the header value the platform would send for body.
func SignBase64(secret string, body []byte) string {
	return base64.StdEncoding.EncodeToString(Sign(secret, body))
}
