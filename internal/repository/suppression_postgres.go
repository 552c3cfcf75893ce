package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/mailcannon/mailcannon/internal/domain"
)

// SuppressionRepository implements domain.SuppressionStore on Postgres with
// an in-memory read cache. The cache is warmed once at startup; Add keeps it
// in sync with the table.
type SuppressionRepository struct {
	db *sql.DB

	mu     sync.RWMutex
	cache  map[string]struct{}
	warmed bool
}

// NewSuppressionRepository creates a new suppression store. Call Warm before
// serving traffic to avoid per-check queries.
func NewSuppressionRepository(db *sql.DB) *SuppressionRepository {
	return &SuppressionRepository{
		db:    db,
		cache: make(map[string]struct{}),
	}
}

// Warm loads the full suppression list into the cache. Safe to call more
// than once; each call rebuilds the cache from the table.
func (r *SuppressionRepository) Warm(ctx context.Context) error {
	rows, err := r.db.QueryContext(ctx, `SELECT email FROM suppressions`)
	if err != nil {
		return fmt.Errorf("failed to load suppression list: %w", err)
	}
	defer rows.Close()

	cache := make(map[string]struct{})
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return fmt.Errorf("failed to scan suppression row: %w", err)
		}
		cache[email] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate suppression rows: %w", err)
	}

	r.mu.Lock()
	r.cache = cache
	r.warmed = true
	r.mu.Unlock()

	return nil
}

// IsSuppressed checks the pre-send gate. Served from the cache once warmed,
// otherwise falls through to the table.
func (r *SuppressionRepository) IsSuppressed(ctx context.Context, email string) (bool, error) {
	normalized := domain.NormalizeEmail(email)

	r.mu.RLock()
	if r.warmed {
		_, found := r.cache[normalized]
		r.mu.RUnlock()
		return found, nil
	}
	r.mu.RUnlock()

	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM suppressions WHERE email = $1)`, normalized,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check suppression: %w", err)
	}

	return exists, nil
}

// Add upserts a suppression, last write wins, and updates the cache on
// success.
func (r *SuppressionRepository) Add(ctx context.Context, email string, kind domain.SuppressionKind, detail string) error {
	normalized := domain.NormalizeEmail(email)
	if normalized == "" {
		return domain.NewValidationError("suppression email is required")
	}

	query := `
		INSERT INTO suppressions (email, kind, detail, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (email) DO UPDATE SET
			kind = EXCLUDED.kind,
			detail = EXCLUDED.detail,
			created_at = NOW()
	`

	_, err := r.db.ExecContext(ctx, query, normalized, kind, domain.TruncateDetail(detail))
	if err != nil {
		return fmt.Errorf("failed to add suppression: %w", err)
	}

	r.mu.Lock()
	r.cache[normalized] = struct{}{}
	r.mu.Unlock()

	return nil
}
