package emailerror

import (
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ClassifyStatus classifies a non-2xx provider response by HTTP status.
// Status codes below 400 return a zero Kind and retryable=false; callers
// should not pass successful responses here.
func ClassifyStatus(status int) (Kind, bool) {
	switch {
	case status == 429:
		return KindRateLimited, true
	case status >= 500:
		return KindProvider5xx, true
	case status >= 400:
		return KindProvider4xx, false
	default:
		return "", false
	}
}

// ClassifyTransport classifies an error returned by the HTTP transport before
// any provider response arrived. All transport failures are retryable: the
// request may never have reached the provider, or the response was lost.
func ClassifyTransport(err error) *ClassifiedError {
	if err == nil {
		return nil
	}
	return &ClassifiedError{
		Original:  err,
		Kind:      KindNetwork,
		Retryable: true,
		Detail:    err.Error(),
	}
}

// IsTimeout reports whether err is a transport timeout (including context
// deadline expiry surfaced through net/http).
func IsTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "timeout")
}

// ParseRetryAfter parses a Retry-After header value. Both delta-seconds and
// HTTP-date forms are accepted; unparseable values yield zero.
func ParseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}

	if at, err := http.ParseTime(value); err == nil {
		d := time.Until(at)
		if d < 0 {
			return 0
		}
		return d
	}

	return 0
}
