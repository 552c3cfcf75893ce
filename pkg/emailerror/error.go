package emailerror

import "time"

// Kind classifies a failed send attempt for retry decisions.
type Kind string

const (
	// KindNetwork covers transport failures: timeouts, connection resets,
	// DNS errors. Always retryable.
	KindNetwork Kind = "network"

	// KindRateLimited is an HTTP 429 from the provider. Retryable after the
	// provider-mandated cooldown.
	KindRateLimited Kind = "rate_limited"

	// KindProvider4xx is any 4xx other than 429: malformed request, bad
	// recipient, auth failure. Never retryable.
	KindProvider4xx Kind = "provider_4xx"

	// KindProvider5xx is a provider-side server error. Retryable.
	KindProvider5xx Kind = "provider_5xx"
)

// ClassifiedError wraps a send failure with classification metadata.
type ClassifiedError struct {
	// Original is the underlying error, if the failure came from transport
	Original error

	Kind       Kind
	HTTPStatus int
	Retryable  bool

	// RetryAfter is the provider-mandated cooldown for rate-limit responses,
	// zero otherwise.
	RetryAfter time.Duration

	Detail string
}

// Error implements the error interface
func (e *ClassifiedError) Error() string {
	if e.Original != nil {
		return e.Original.Error()
	}
	return e.Detail
}

// Unwrap returns the underlying error for errors.Is/As compatibility
func (e *ClassifiedError) Unwrap() error {
	return e.Original
}
