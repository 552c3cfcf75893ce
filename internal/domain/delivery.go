package domain

import (
	"context"
	"time"
)

//go:generate mockgen -destination mocks/mock_delivery_repository.go -package mocks github.com/mailcannon/mailcannon/internal/domain DeliveryRepository

// DeliveryStatus represents the lifecycle state of a delivery attempt.
type DeliveryStatus string

const (
	DeliveryStatusQueued     DeliveryStatus = "queued"
	DeliveryStatusSent       DeliveryStatus = "sent"
	DeliveryStatusDelivered  DeliveryStatus = "delivered"
	DeliveryStatusBounced    DeliveryStatus = "bounced"
	DeliveryStatusComplained DeliveryStatus = "complained"
	DeliveryStatusFailed     DeliveryStatus = "failed"
	DeliveryStatusSuppressed DeliveryStatus = "suppressed"
	DeliveryStatusDryRun     DeliveryStatus = "dry_run"
)

// Terminal reports whether no further in-process transition is expected.
// A `sent` row is not terminal: provider webhooks may still move it.
func (s DeliveryStatus) Terminal() bool {
	switch s {
	case DeliveryStatusDelivered, DeliveryStatusBounced, DeliveryStatusComplained,
		DeliveryStatusFailed, DeliveryStatusSuppressed, DeliveryStatusDryRun:
		return true
	}
	return false
}

// ErrorKind classifies why an attempt failed. The values mirror the retry
// classification: which kinds retry, and which halt the whole campaign, is
// decided by the scheduler and retry controller.
type ErrorKind string

const (
	ErrorKindNetwork        ErrorKind = "network"
	ErrorKindProvider5xx    ErrorKind = "provider_5xx"
	ErrorKindRateLimited    ErrorKind = "rate_limited"
	ErrorKindProvider4xx    ErrorKind = "provider_4xx"
	ErrorKindRender         ErrorKind = "render"
	ErrorKindQuotaExhausted ErrorKind = "quota_exhausted"
	ErrorKindStorage        ErrorKind = "storage"
	ErrorKindCancelled      ErrorKind = "cancelled"
)

// MaxErrorDetailLen bounds the stored error_detail column.
const MaxErrorDetailLen = 512

// TruncateDetail clips an error detail to the stored bound.
func TruncateDetail(detail string) string {
	if len(detail) <= MaxErrorDetailLen {
		return detail
	}
	return detail[:MaxErrorDetailLen]
}

// DeliveryAttempt is the append-only audit row for one recipient in one
// campaign. One row covers all retries of the send; AttemptNo records the
// final try.
type DeliveryAttempt struct {
	ID                int64          `json:"id"`
	CampaignID        string         `json:"campaign_id"`
	Email             string         `json:"email"`
	TemplateID        string         `json:"template_id"`
	Subject           string         `json:"subject"`
	ProviderMessageID *string        `json:"provider_message_id,omitempty"`
	Status            DeliveryStatus `json:"status"`
	AttemptNo         int            `json:"attempt_no"`
	HTTPStatus        *int           `json:"http_status,omitempty"`
	ErrorKind         *ErrorKind     `json:"error_kind,omitempty"`
	ErrorDetail       *string        `json:"error_detail,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// DeliveryResult is the outcome recorded against a queued attempt after the
// per-recipient pipeline finishes. Zero-valued optional fields persist as
// NULL.
type DeliveryResult struct {
	Status            DeliveryStatus
	AttemptNo         int
	ProviderMessageID string
	HTTPStatus        int
	ErrorKind         ErrorKind
	ErrorDetail       string
}

// CampaignStats counts delivery attempts by status for one campaign (or for
// all campaigns when unfiltered).
type CampaignStats struct {
	Total      int `json:"total"`
	Sent       int `json:"sent"`
	Delivered  int `json:"delivered"`
	Bounced    int `json:"bounced"`
	Complained int `json:"complained"`
	Failed     int `json:"failed"`
	Suppressed int `json:"suppressed"`
	DryRun     int `json:"dry_run"`
}

// DeliveryRepository persists delivery attempts.
//
// Lifecycle guard: RecordResult only applies to rows still in `queued`;
// UpdateByMessageID only moves rows from `sent` (or re-applies the same
// terminal status, which is a no-op), making webhook updates idempotent.
type DeliveryRepository interface {
	// BeginAttempt inserts a `queued` row and returns its ID.
	BeginAttempt(ctx context.Context, campaignID, email, templateID, subject string) (int64, error)

	// RecordResult finalizes a queued attempt with the pipeline outcome.
	// Returns ErrInvalidTransition if the row already left `queued`.
	RecordResult(ctx context.Context, attemptID int64, result DeliveryResult) error

	// UpdateByMessageID applies a webhook-driven transition to the row
	// carrying the provider message ID. Returns false (and no error) when no
	// row matches or the row is not in a state the transition applies to.
	UpdateByMessageID(ctx context.Context, providerMessageID string, status DeliveryStatus, eventTime time.Time) (bool, error)

	// Stats returns counts grouped by status. Empty campaignID means all.
	Stats(ctx context.Context, campaignID string) (*CampaignStats, error)

	// Recent returns the most recent attempts, newest first.
	Recent(ctx context.Context, limit int) ([]*DeliveryAttempt, error)
}
