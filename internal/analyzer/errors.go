package analyzer

import "errors"

// Sentinel errors for analysis-service failures, in classification priority
// order. Every one of these must end in a terminal failed commit upstream;
// none may be swallowed.
var (
	// ErrAnalyzerTimeout: no response within the configured bound. Transient.
	ErrAnalyzerTimeout = errors.New("analyzer timeout")

	// ErrAnalyzerUnreachable: connection-level failure. Transient.
	ErrAnalyzerUnreachable = errors.New("analyzer unreachable")

	// ErrAnalyzerRejected: the service answered with an error. Non-transient
	// unless the service explicitly marked it retryable.
	ErrAnalyzerRejected = errors.New("analyzer rejected request")

	// ErrMalformedResponse: the body could not be decoded as the expected
	// structure. Transient but suspicious.
	ErrMalformedResponse = errors.New("analyzer returned malformed response")

	// ErrMissingFields: the body decoded but lacks the fields a job outcome
	// requires. Non-transient.
	ErrMissingFields = errors.New("analyzer response missing required fields")
)

// IsTransient reports whether err is worth resubmitting as-is.
func IsTransient(err error) bool {
	return errors.Is(err, ErrAnalyzerTimeout) ||
		errors.Is(err, ErrAnalyzerUnreachable) ||
		errors.Is(err, ErrMalformedResponse)
}
