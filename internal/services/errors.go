package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTransient marks failures worth retrying (timeouts, rate limits, 5xx).
	ErrTransient = errors.New("transient service failure")
	// ErrPermanent marks failures the capability reported as unrecoverable.
	ErrPermanent = errors.New("permanent service failure")
	// ErrExtraction marks responses that did not conform to the expected schema.
	ErrExtraction = errors.New("schema extraction failure")
	// ErrConfiguration marks invalid or missing operator configuration.
	ErrConfiguration = errors.New("configuration error")
	ErrTimeout       = errors.New("timeout")
	ErrNotFound      = errors.New("not found")
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsRetryable reports whether the worker pool should retry the operation.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransient) || errors.Is(err, ErrTimeout)
}

// FailureClass maps an error to the reason code persisted on a failed record.
func FailureClass(err error) string {
	switch {
	case errors.Is(err, ErrExtraction):
		return "schema_extraction_error"
	case errors.Is(err, ErrPermanent):
		return "permanent_service_error"
	case errors.Is(err, ErrTransient), errors.Is(err, ErrTimeout):
		return "transient_service_error"
	case errors.Is(err, ErrConfiguration):
		return "configuration_error"
	default:
		return "unknown_error"
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
