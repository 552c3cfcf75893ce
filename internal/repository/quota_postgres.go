package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mailcannon/mailcannon/internal/domain"
)

// QuotaRepository implements domain.QuotaStore with an atomic upsert on the
// daily counter. Reservations are never refunded.
type QuotaRepository struct {
	db    *sql.DB
	limit int
	now   func() time.Time
}

// QuotaOption customizes a QuotaRepository.
type QuotaOption func(*QuotaRepository)

// WithQuotaNowFunc replaces the wall clock, for tests.
func WithQuotaNowFunc(now func() time.Time) QuotaOption {
	return func(r *QuotaRepository) {
		r.now = now
	}
}

// NewQuotaRepository creates a quota store with the given daily limit.
func NewQuotaRepository(db *sql.DB, dailyLimit int, opts ...QuotaOption) *QuotaRepository {
	r := &QuotaRepository{
		db:    db,
		limit: dailyLimit,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// TryReserve consumes n slots from today's counter. The conditional upsert
// makes the check-and-increment a single atomic statement, so concurrent
// workers can never jointly exceed the limit.
func (r *QuotaRepository) TryReserve(ctx context.Context, n int) (bool, error) {
	if n <= 0 {
		return false, fmt.Errorf("reservation size must be positive, got %d", n)
	}
	if n > r.limit {
		return false, nil
	}

	day := domain.QuotaDay(r.now())

	query := `
		INSERT INTO daily_quota (day, used)
		VALUES ($1, $2)
		ON CONFLICT (day) DO UPDATE SET used = daily_quota.used + $2
		WHERE daily_quota.used + $2 <= $3
	`

	res, err := r.db.ExecContext(ctx, query, day, n, r.limit)
	if err != nil {
		return false, fmt.Errorf("failed to reserve quota: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}

	return rows > 0, nil
}

// UsedToday reports the current day's counter. A missing row means nothing
// has been reserved yet.
func (r *QuotaRepository) UsedToday(ctx context.Context) (*domain.QuotaUsage, error) {
	day := domain.QuotaDay(r.now())

	var used int
	err := r.db.QueryRowContext(ctx, `SELECT used FROM daily_quota WHERE day = $1`, day).Scan(&used)
	if err == sql.ErrNoRows {
		used = 0
	} else if err != nil {
		return nil, fmt.Errorf("failed to query quota usage: %w", err)
	}

	return &domain.QuotaUsage{Used: used, Limit: r.limit, Day: day}, nil
}
