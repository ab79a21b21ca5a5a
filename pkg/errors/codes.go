package errors

import "net/http"

// ErrorCode identifies a failure category. Codes are grouped by the module
// prefix before the underscore.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common error codes.
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeNotFound           ErrorCode = "COMMON_003"
	ErrCodeValidation         ErrorCode = "COMMON_004"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_005"
	ErrCodeTimeout            ErrorCode = "COMMON_006"

	CodeOK      = ErrorCode("OK")
	CodeUnknown = ErrCodeInternal
)

// Booking-portal error codes.
const (
	// ErrCodeAuthExpired marks a stale or invalid portal session. Not retried
	// within a run; a full update (re-login) or the operator must intervene.
	ErrCodeAuthExpired ErrorCode = "AUTH_001"

	// ErrCodeFeedFormat marks an unexpected response shape from the activity
	// feed: non-2xx status or a body that is not the expected JSON. Usually
	// means the portal changed or the session is stale.
	ErrCodeFeedFormat ErrorCode = "FEED_002"

	// ErrCodeFeedTransport marks a network-level feed failure (timeout,
	// connection refused). Retryable on the next scheduled cycle.
	ErrCodeFeedTransport ErrorCode = "FEED_003"
)

// Persistence and delivery error codes.
const (
	// ErrCodeMetadataStore marks a metadata read or merge failure. The
	// calendar's run for this cycle is considered failed.
	ErrCodeMetadataStore ErrorCode = "META_001"

	// ErrCodeDispatch marks a push-gateway send failure. The notification
	// cursor must not advance when this is returned.
	ErrCodeDispatch ErrorCode = "PUSH_001"

	// ErrCodeBlobStore marks a calendar artifact publish failure.
	ErrCodeBlobStore ErrorCode = "BLOB_001"
)

// errorCodeHTTPStatus maps codes to HTTP statuses for the update/status API.
var errorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeValidation:         http.StatusUnprocessableEntity,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,

	ErrCodeAuthExpired:   http.StatusBadGateway,
	ErrCodeFeedFormat:    http.StatusBadGateway,
	ErrCodeFeedTransport: http.StatusBadGateway,

	ErrCodeMetadataStore: http.StatusInternalServerError,
	ErrCodeDispatch:      http.StatusInternalServerError,
	ErrCodeBlobStore:     http.StatusInternalServerError,
}

// HTTPStatusForCode returns the HTTP status code mapped to code, or 500 when
// the code is unknown.
func HTTPStatusForCode(code ErrorCode) int {
	if status, ok := errorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// Retryable reports whether the failure category is expected to clear on a
// later scheduled cycle without operator intervention.
func Retryable(code ErrorCode) bool {
	switch code {
	case ErrCodeFeedTransport, ErrCodeTimeout, ErrCodeDispatch, ErrCodeServiceUnavailable:
		return true
	}
	return false
}
