package domain

import (
	"context"
	"time"
)

//go:generate mockgen -destination mocks/mock_suppression_store.go -package mocks github.com/mailcannon/mailcannon/internal/domain SuppressionStore

// SuppressionKind records why an address is blocked from sending.
type SuppressionKind string

const (
	SuppressionKindUnsubscribe SuppressionKind = "unsubscribe"
	SuppressionKindBounce      SuppressionKind = "bounce"
	SuppressionKindComplaint   SuppressionKind = "complaint"
	SuppressionKindManual      SuppressionKind = "manual"
)

// Suppression is a policy-level block on one address. Unique per email;
// last write wins.
type Suppression struct {
	Email     string          `json:"email"`
	Kind      SuppressionKind `json:"kind"`
	Detail    string          `json:"detail,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// SuppressionStore is the read-mostly pre-send gate. Addresses are normalized
// at the boundary; callers may pass unnormalized input.
type SuppressionStore interface {
	IsSuppressed(ctx context.Context, email string) (bool, error)

	// Add upserts a suppression. Idempotent; repeated adds update kind and
	// detail.
	Add(ctx context.Context, email string, kind SuppressionKind, detail string) error
}
