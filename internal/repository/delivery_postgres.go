package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/mailcannon/mailcannon/internal/domain"
)

// DeliveryRepository implements domain.DeliveryRepository on Postgres.
type DeliveryRepository struct {
	db *sql.DB
}

// NewDeliveryRepository creates a new delivery repository.
func NewDeliveryRepository(db *sql.DB) *DeliveryRepository {
	return &DeliveryRepository{db: db}
}

// deliverySelectFields returns the common SELECT fields for delivery queries.
func deliverySelectFields() []string {
	return []string{
		"id", "campaign_id", "email", "template_id", "subject",
		"provider_message_id", "status", "attempt_no", "http_status",
		"error_kind", "error_detail", "created_at", "updated_at",
	}
}

// scanDelivery scans a delivery row including its nullable columns.
func scanDelivery(scanner interface {
	Scan(dest ...interface{}) error
}) (*domain.DeliveryAttempt, error) {
	var (
		attempt     domain.DeliveryAttempt
		messageID   sql.NullString
		httpStatus  sql.NullInt64
		errorKind   sql.NullString
		errorDetail sql.NullString
	)

	err := scanner.Scan(
		&attempt.ID,
		&attempt.CampaignID,
		&attempt.Email,
		&attempt.TemplateID,
		&attempt.Subject,
		&messageID,
		&attempt.Status,
		&attempt.AttemptNo,
		&httpStatus,
		&errorKind,
		&errorDetail,
		&attempt.CreatedAt,
		&attempt.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if messageID.Valid {
		attempt.ProviderMessageID = &messageID.String
	}
	if httpStatus.Valid {
		v := int(httpStatus.Int64)
		attempt.HTTPStatus = &v
	}
	if errorKind.Valid {
		k := domain.ErrorKind(errorKind.String)
		attempt.ErrorKind = &k
	}
	if errorDetail.Valid {
		attempt.ErrorDetail = &errorDetail.String
	}

	return &attempt, nil
}

// BeginAttempt inserts a queued row for the recipient and returns its ID.
func (r *DeliveryRepository) BeginAttempt(ctx context.Context, campaignID, email, templateID, subject string) (int64, error) {
	query := `
		INSERT INTO deliveries (campaign_id, email, template_id, subject, status, attempt_no, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 1, NOW(), NOW())
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		campaignID,
		domain.NormalizeEmail(email),
		templateID,
		subject,
		domain.DeliveryStatusQueued,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to begin delivery attempt: %w", err)
	}

	return id, nil
}

// RecordResult finalizes a queued attempt. The WHERE clause enforces the
// lifecycle guard: only queued rows accept a pipeline result.
func (r *DeliveryRepository) RecordResult(ctx context.Context, attemptID int64, result domain.DeliveryResult) error {
	switch result.Status {
	case domain.DeliveryStatusSent, domain.DeliveryStatusFailed,
		domain.DeliveryStatusSuppressed, domain.DeliveryStatusDryRun:
	default:
		return &domain.ErrInvalidTransition{
			AttemptID: attemptID,
			From:      domain.DeliveryStatusQueued,
			To:        result.Status,
		}
	}

	attemptNo := result.AttemptNo
	if attemptNo < 1 {
		attemptNo = 1
	}

	query := `
		UPDATE deliveries SET
			status = $2,
			attempt_no = $3,
			provider_message_id = $4,
			http_status = $5,
			error_kind = $6,
			error_detail = $7,
			updated_at = NOW()
		WHERE id = $1 AND status = $8
	`

	res, err := r.db.ExecContext(ctx, query,
		attemptID,
		result.Status,
		attemptNo,
		nullString(result.ProviderMessageID),
		nullInt(result.HTTPStatus),
		nullString(string(result.ErrorKind)),
		nullString(domain.TruncateDetail(result.ErrorDetail)),
		domain.DeliveryStatusQueued,
	)
	if err != nil {
		return fmt.Errorf("failed to record delivery result: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows > 0 {
		return nil
	}

	// The row either does not exist or already left `queued`.
	var current domain.DeliveryStatus
	err = r.db.QueryRowContext(ctx, `SELECT status FROM deliveries WHERE id = $1`, attemptID).Scan(&current)
	if err == sql.ErrNoRows {
		return &domain.ErrDeliveryNotFound{AttemptID: attemptID}
	}
	if err != nil {
		return fmt.Errorf("failed to check delivery status: %w", err)
	}

	return &domain.ErrInvalidTransition{AttemptID: attemptID, From: current, To: result.Status}
}

// UpdateByMessageID applies a webhook-driven transition. Only rows in `sent`
// move; re-delivered events match zero rows, which keeps the update
// idempotent.
func (r *DeliveryRepository) UpdateByMessageID(ctx context.Context, providerMessageID string, status domain.DeliveryStatus, eventTime time.Time) (bool, error) {
	if providerMessageID == "" {
		return false, nil
	}

	query := `
		UPDATE deliveries SET
			status = $2,
			updated_at = $3
		WHERE provider_message_id = $1 AND status = $4
	`

	res, err := r.db.ExecContext(ctx, query,
		providerMessageID,
		status,
		eventTime.UTC(),
		domain.DeliveryStatusSent,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update delivery by message ID: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}

	return rows > 0, nil
}

// Stats returns attempt counts grouped by status. Empty campaignID counts all
// campaigns.
func (r *DeliveryRepository) Stats(ctx context.Context, campaignID string) (*domain.CampaignStats, error) {
	builder := sq.Select("status", "COUNT(*)").
		From("deliveries").
		GroupBy("status").
		PlaceholderFormat(sq.Dollar)

	if campaignID != "" {
		builder = builder.Where(sq.Eq{"campaign_id": campaignID})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build stats query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query delivery stats: %w", err)
	}
	defer rows.Close()

	stats := &domain.CampaignStats{}
	for rows.Next() {
		var (
			status domain.DeliveryStatus
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan stats row: %w", err)
		}

		stats.Total += count
		switch status {
		case domain.DeliveryStatusSent:
			stats.Sent = count
		case domain.DeliveryStatusDelivered:
			stats.Delivered = count
		case domain.DeliveryStatusBounced:
			stats.Bounced = count
		case domain.DeliveryStatusComplained:
			stats.Complained = count
		case domain.DeliveryStatusFailed:
			stats.Failed = count
		case domain.DeliveryStatusSuppressed:
			stats.Suppressed = count
		case domain.DeliveryStatusDryRun:
			stats.DryRun = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate stats rows: %w", err)
	}

	return stats, nil
}

// Recent returns the most recent attempts, newest first.
func (r *DeliveryRepository) Recent(ctx context.Context, limit int) ([]*domain.DeliveryAttempt, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	query, args, err := sq.Select(deliverySelectFields()...).
		From("deliveries").
		OrderBy("id DESC").
		Limit(uint64(limit)).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build recent query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent deliveries: %w", err)
	}
	defer rows.Close()

	var attempts []*domain.DeliveryAttempt
	for rows.Next() {
		attempt, err := scanDelivery(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan delivery row: %w", err)
		}
		attempts = append(attempts, attempt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate delivery rows: %w", err)
	}

	return attempts, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(i int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(i), Valid: i != 0}
}
