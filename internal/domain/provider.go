package domain

import (
	"context"
	"time"
)

//go:generate mockgen -destination mocks/mock_provider_client.go -package mocks github.com/mailcannon/mailcannon/internal/domain ProviderClient

// SendRequest is one message handed to the email provider.
type SendRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html,omitempty"`
	Text    string `json:"text,omitempty"`
	ReplyTo string `json:"reply_to,omitempty"`
}

// SendResultKind discriminates the SendResult sum.
type SendResultKind string

const (
	// SendAccepted: the provider took the message and issued an ID.
	SendAccepted SendResultKind = "accepted"

	// SendTransientFailure: 5xx, 429, or a transport failure. Worth retrying.
	SendTransientFailure SendResultKind = "transient_failure"

	// SendPermanentFailure: a non-429 4xx. Retrying cannot help.
	SendPermanentFailure SendResultKind = "permanent_failure"
)

// SendResult is the classified outcome of one provider call. The client never
// retries; retry policy belongs to the caller.
type SendResult struct {
	Kind              SendResultKind
	ProviderMessageID string
	HTTPStatus        int

	// RetryAfter carries the provider's mandated cooldown on 429 responses,
	// zero otherwise.
	RetryAfter time.Duration

	// ErrorKind and Detail are set on failures.
	ErrorKind ErrorKind
	Detail    string
}

// Accepted reports whether the provider took the message.
func (r *SendResult) Accepted() bool {
	return r.Kind == SendAccepted
}

// Retryable reports whether another attempt may succeed.
func (r *SendResult) Retryable() bool {
	return r.Kind == SendTransientFailure
}

// ProviderClient is the thin wrapper over the provider's send API. The
// returned result is always non-nil on nil error; errors are reserved for
// request construction failures, which are not retryable.
type ProviderClient interface {
	Send(ctx context.Context, req *SendRequest) (*SendResult, error)
}
