package repository

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/mailcannon/mailcannon/internal/domain"
)

// EventRepository implements domain.EventRepository on Postgres. Events are
// append-only; nothing updates or deletes them.
type EventRepository struct {
	db *sql.DB
}

// NewEventRepository creates a new event repository.
func NewEventRepository(db *sql.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Save stores the event verbatim. The payload is clipped to the storage
// bound; an empty ID gets a fresh UUID.
func (r *EventRepository) Save(ctx context.Context, event *domain.Event) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}

	payload := event.PayloadJSON
	if len(payload) > domain.MaxEventPayloadBytes {
		payload = payload[:domain.MaxEventPayloadBytes]
	}

	query := `
		INSERT INTO events (id, provider, event_type, provider_message_id, recipient, payload_json, signature_valid, received_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(ctx, query,
		event.ID,
		event.Provider,
		event.Type,
		event.ProviderMessageID,
		domain.NormalizeEmail(event.Recipient),
		payload,
		event.SignatureValid,
		event.ReceivedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save event: %w", err)
	}

	return nil
}

// Recent returns the most recent events, newest first.
func (r *EventRepository) Recent(ctx context.Context, limit int) ([]*domain.Event, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	query, args, err := sq.Select(
		"id", "provider", "event_type", "provider_message_id",
		"recipient", "payload_json", "signature_valid", "received_at",
	).
		From("events").
		OrderBy("received_at DESC").
		Limit(uint64(limit)).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build recent events query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent events: %w", err)
	}
	defer rows.Close()

	var events []*domain.Event
	for rows.Next() {
		var event domain.Event
		err := rows.Scan(
			&event.ID,
			&event.Provider,
			&event.Type,
			&event.ProviderMessageID,
			&event.Recipient,
			&event.PayloadJSON,
			&event.SignatureValid,
			&event.ReceivedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		events = append(events, &event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate event rows: %w", err)
	}

	return events, nil
}
