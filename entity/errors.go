package entity

import "errors"

var (
	ErrAuthFailure         = errors.New("signature verification failed")
	ErrForbidden           = errors.New("forbidden")
	ErrUnsupportedPlatform = errors.New("platform not supported")
	ErrNotFound            = errors.New("not found")
	ErrAgentUnavailable    = errors.New("agent unavailable")
	ErrAgentRejected       = errors.New("agent rejected request")
	ErrDeliveryFailed      = errors.New("delivery failed")
	ErrInvalidRecipient    = errors.New("invalid recipient")
	ErrInFlight            = errors.New("message is being processed by another worker")
	ErrStoreUnavailable    = errors.New("store unavailable")
	ErrNotSupported        = errors.New("operation not supported")
)

// IsRetryable reports whether err is transient and the queue should redeliver.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrAgentUnavailable) ||
		errors.Is(err, ErrDeliveryFailed) ||
		errors.Is(err, ErrInFlight) ||
		errors.Is(err, ErrStoreUnavailable)
}

// FailureKind names the terminal failure class of err for logs and events.
func FailureKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAgentRejected):
		return "agent_rejected"
	case errors.Is(err, ErrInvalidRecipient):
		return "invalid_recipient"
	case errors.Is(err, ErrAgentUnavailable):
		return "agent_unavailable"
	case errors.Is(err, ErrDeliveryFailed):
		return "delivery_failed"
	case errors.Is(err, ErrInFlight):
		return "in_flight"
	case errors.Is(err, ErrStoreUnavailable):
		return "store_unavailable"
	default:
		return "internal"
	}
}
