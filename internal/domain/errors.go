package domain

import "errors"

// Sentinel error kinds. Components wrap these with fmt.Errorf("...: %w", ...)
// so callers can branch on errors.Is while logs keep the detail.
var (
	// ErrInvalidInput marks malformed caller input (empty question, k <= 0,
	// no documents). Never retried.
	ErrInvalidInput = errors.New("invalid input")

	// ErrIndexNotReady is returned for queries while no index is servable.
	ErrIndexNotReady = errors.New("index not ready")

	// ErrBuildInProgress rejects an ingestion request while another run
	// holds the build slot.
	ErrBuildInProgress = errors.New("build in progress")

	// ErrIndexNotFound means the store has never completed a save.
	ErrIndexNotFound = errors.New("index not found")

	// ErrCorruptIndex means persisted state exists but cannot be trusted.
	ErrCorruptIndex = errors.New("corrupt index")

	// ErrEmbeddingUnavailable marks a failed embedding call. Transient,
	// eligible for bounded retry.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")

	// ErrAuthFailure means the provider rejected our credential. Never
	// retried automatically.
	ErrAuthFailure = errors.New("authentication failure")

	// ErrRateLimited marks a provider 429. Transient, eligible for bounded
	// retry with backoff.
	ErrRateLimited = errors.New("rate limited")

	// ErrModelUnavailable marks a provider-side outage. Transient, eligible
	// for bounded retry.
	ErrModelUnavailable = errors.New("model unavailable")

	// ErrMalformedResponse means the model returned content that cannot be
	// used as an answer. Never retried.
	ErrMalformedResponse = errors.New("malformed model response")
)

// ErrorKind maps err to its stable machine-readable kind string, so the
// presentation layer can pick guidance without parsing free text.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrIndexNotReady):
		return "index_not_ready"
	case errors.Is(err, ErrBuildInProgress):
		return "build_in_progress"
	case errors.Is(err, ErrIndexNotFound):
		return "index_not_found"
	case errors.Is(err, ErrCorruptIndex):
		return "corrupt_index"
	case errors.Is(err, ErrEmbeddingUnavailable):
		return "embedding_unavailable"
	case errors.Is(err, ErrAuthFailure):
		return "auth_failure"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrModelUnavailable):
		return "model_unavailable"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed_response"
	default:
		return "internal"
	}
}

// Retryable reports whether err is a transient external-dependency error
// that a component may retry a bounded number of times.
func Retryable(err error) bool {
	return errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrModelUnavailable) ||
		errors.Is(err, ErrEmbeddingUnavailable)
}
