package domain

import (
	"context"
	"time"
)

//go:generate mockgen -destination mocks/mock_quota_store.go -package mocks github.com/mailcannon/mailcannon/internal/domain QuotaStore

// QuotaDayFormat keys the daily counter by UTC calendar day.
const QuotaDayFormat = "2006-01-02"

// QuotaDay returns the counter key for an instant.
func QuotaDay(t time.Time) string {
	return t.UTC().Format(QuotaDayFormat)
}

// QuotaUsage is a snapshot of the current day's counter.
type QuotaUsage struct {
	Used  int    `json:"used"`
	Limit int    `json:"limit"`
	Day   string `json:"day"`
}

// QuotaStore enforces the hard daily ceiling on send intents. Reservations
// are never refunded: a reserved slot that fails to send still counts.
type QuotaStore interface {
	// TryReserve atomically consumes n slots from today's quota. It returns
	// false when the reservation would exceed the limit. Concurrent callers
	// can never jointly exceed the limit.
	TryReserve(ctx context.Context, n int) (bool, error)

	// UsedToday reports the current day's counter.
	UsedToday(ctx context.Context) (*QuotaUsage, error)
}
