package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTransientGateway marks network or server-side failures from an
	// external API. The current cycle abandons the attempt and the next
	// cycle retries it.
	ErrTransientGateway = errors.New("transient gateway failure")
	// ErrConflict marks a duplicate-name or already-exists condition from
	// the content store.
	ErrConflict = errors.New("conflict")
	// ErrNotReady marks a polled resource that has not finished yet. It is
	// a normal outcome, not a failure.
	ErrNotReady = errors.New("not ready")
	// ErrCapacityExhausted marks a dispatch cycle that had queued documents
	// but no processor slots to place them on.
	ErrCapacityExhausted = errors.New("capacity exhausted")
	// ErrFatalProvisioning marks a compute instance that never reached the
	// running state after a start or launch request.
	ErrFatalProvisioning = errors.New("fatal provisioning failure")
	// ErrValidation marks bad input or an operation attempted against a
	// record in the wrong state.
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks a missing registry record.
	ErrNotFound = errors.New("not found")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransientGateway
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsRetryable reports whether an error represents an outcome the next cycle
// should simply retry rather than escalate.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransientGateway) || errors.Is(err, ErrNotReady)
}

// Details extracts the human-readable portion of a wrapped error with the
// sentinel prefix stripped.
func Details(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	for _, marker := range []error{
		ErrTransientGateway,
		ErrConflict,
		ErrNotReady,
		ErrCapacityExhausted,
		ErrFatalProvisioning,
		ErrValidation,
		ErrNotFound,
	} {
		prefix := marker.Error() + ": "
		if strings.HasPrefix(msg, prefix) {
			return strings.TrimPrefix(msg, prefix)
		}
	}
	return msg
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
