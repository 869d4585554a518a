package domain

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeSignature      = "SIGNATURE_INVALID"
	TextCodeClassification = "CLASSIFICATION_FAILED"
	TextCodeDelivery       = "DELIVERY_FAILED"
	TextCodeLog            = "AUDIT_LOG_FAILED"
)

// SignatureError rejects an inbound request before any processing happens.
func SignatureError(message string, cause error) error {
	return wrap(cause, goerrors.CategoryAuth, message, http.StatusBadRequest, TextCodeSignature, nil)
}

// ClassificationError explains why a fallback result was produced.
func ClassificationError(message string, cause error) error {
	return wrap(cause, goerrors.CategoryExternal, message, http.StatusBadGateway, TextCodeClassification, nil)
}

func DeliveryError(message string, cause error, metadata map[string]any) error {
	return wrap(cause, goerrors.CategoryExternal, message, http.StatusBadGateway, TextCodeDelivery, metadata)
}

func LogError(message string, cause error) error {
	return wrap(cause, goerrors.CategoryOperation, message, http.StatusInternalServerError, TextCodeLog, nil)
}

// HasTextCode reports whether err carries the given taxonomy code.
func HasTextCode(err error, code string) bool {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return false
	}
	return rich.TextCode == code
}

func IsSignatureError(err error) bool      { return HasTextCode(err, TextCodeSignature) }
func IsClassificationError(err error) bool { return HasTextCode(err, TextCodeClassification) }
func IsDeliveryError(err error) bool       { return HasTextCode(err, TextCodeDelivery) }
func IsLogError(err error) bool            { return HasTextCode(err, TextCodeLog) }

func wrap(
	source error,
	category goerrors.Category,
	message string,
	code int,
	textCode string,
	metadata map[string]any,
) error {
	var err *goerrors.Error
	if source == nil {
		err = goerrors.New(message, category)
	} else {
		err = goerrors.Wrap(source, category, message)
	}
	err = err.WithCode(code).WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}
