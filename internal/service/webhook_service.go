package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	standardwebhooks "github.com/standard-webhooks/standard-webhooks/libraries/go"
	"github.com/tidwall/gjson"

	"github.com/mailcannon/mailcannon/internal/domain"
	"github.com/mailcannon/mailcannon/pkg/logger"
)

// ErrInvalidSignature marks a webhook whose signature did not verify. The
// event is still persisted for audit before this is returned.
var ErrInvalidSignature = errors.New("webhook signature verification failed")

// WebhookService ingests provider callbacks: verify, persist, link to the
// delivery row, and feed bounces and complaints into the suppression list.
type WebhookService struct {
	verifier     *standardwebhooks.Webhook
	replayWindow time.Duration
	events       domain.EventRepository
	deliveries   domain.DeliveryRepository
	suppressions domain.SuppressionStore
	logger       logger.Logger
	now          func() time.Time
}

// NewWebhookService creates the ingestion service. The secret is the signing
// key issued by the provider, in standard-webhooks form.
func NewWebhookService(
	secret string,
	replayWindow time.Duration,
	events domain.EventRepository,
	deliveries domain.DeliveryRepository,
	suppressions domain.SuppressionStore,
	log logger.Logger,
) (*WebhookService, error) {
	verifier, err := standardwebhooks.NewWebhook(secret)
	if err != nil {
		return nil, fmt.Errorf("failed to create webhook verifier: %w", err)
	}

	return &WebhookService{
		verifier:     verifier,
		replayWindow: replayWindow,
		events:       events,
		deliveries:   deliveries,
		suppressions: suppressions,
		logger:       log,
		now:          time.Now,
	}, nil
}

// HandleEvent processes one raw callback. Every event is persisted, valid or
// not; ErrInvalidSignature is returned after persisting so the handler can
// answer 401 without losing the audit row.
func (s *WebhookService) HandleEvent(ctx context.Context, payload []byte, headers http.Header) (*domain.Event, error) {
	valid := s.verifySignature(payload, headers)

	envelope := gjson.GetBytes(payload, "type").String()
	eventType := domain.ParseProviderEventType(envelope)

	messageID := gjson.GetBytes(payload, "data.email_id").String()
	if messageID == "" {
		messageID = gjson.GetBytes(payload, "data.id").String()
	}

	recipient := gjson.GetBytes(payload, "data.to.0").String()
	if recipient == "" {
		recipient = gjson.GetBytes(payload, "data.to").String()
	}

	event := &domain.Event{
		Provider:          "resend",
		Type:              eventType,
		ProviderMessageID: messageID,
		Recipient:         domain.NormalizeEmail(recipient),
		PayloadJSON:       string(payload),
		SignatureValid:    valid,
		ReceivedAt:        s.now().UTC(),
	}

	if err := s.events.Save(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to persist webhook event: %w", err)
	}

	if !valid {
		s.logger.WithFields(map[string]interface{}{
			"event_id":   event.ID,
			"event_type": envelope,
		}).Warn("Rejected webhook with invalid signature")
		return event, ErrInvalidSignature
	}

	s.applyTransition(ctx, event, envelope)
	s.applySuppression(ctx, event, envelope)

	return event, nil
}

// verifySignature checks the svix-style signature headers against the
// payload, then enforces the configured replay window on the timestamp.
func (s *WebhookService) verifySignature(payload []byte, headers http.Header) bool {
	idHeader := firstHeader(headers, "svix-id", "webhook-id")
	timestampHeader := firstHeader(headers, "svix-timestamp", "webhook-timestamp")
	signatureHeader := firstHeader(headers, "svix-signature", "webhook-signature")
	if idHeader == "" || timestampHeader == "" || signatureHeader == "" {
		return false
	}

	// The library expects the standard-webhooks header names
	normalized := http.Header{}
	normalized.Set("Webhook-Id", idHeader)
	normalized.Set("Webhook-Timestamp", timestampHeader)
	normalized.Set("Webhook-Signature", signatureHeader)

	if err := s.verifier.VerifyIgnoringTimestamp(payload, normalized); err != nil {
		return false
	}

	// Timestamp check done here instead of through Verify so the replay
	// window stays configurable
	unix, err := strconv.ParseInt(timestampHeader, 10, 64)
	if err != nil {
		return false
	}
	age := s.now().Sub(time.Unix(unix, 0))
	if age < 0 {
		age = -age
	}
	return age <= s.replayWindow
}

func firstHeader(headers http.Header, names ...string) string {
	for _, name := range names {
		if v := headers.Get(name); v != "" {
			return v
		}
	}
	return ""
}

// applyTransition moves the linked delivery row when the event type carries a
// transition. A miss is normal: the event may be for an unknown message or
// the row already moved.
func (s *WebhookService) applyTransition(ctx context.Context, event *domain.Event, envelope string) {
	status, ok := event.Type.DeliveryTransition()
	if !ok || event.ProviderMessageID == "" {
		return
	}

	eventTime := event.ReceivedAt
	if createdAt := gjson.Get(event.PayloadJSON, "created_at").String(); createdAt != "" {
		if parsed, err := time.Parse(time.RFC3339, createdAt); err == nil {
			eventTime = parsed
		}
	}

	matched, err := s.deliveries.UpdateByMessageID(ctx, event.ProviderMessageID, status, eventTime)
	if err != nil {
		s.logger.WithFields(map[string]interface{}{
			"provider_message_id": event.ProviderMessageID,
			"error":               err.Error(),
		}).Error("Failed to apply webhook transition")
		return
	}
	if !matched {
		s.logger.WithFields(map[string]interface{}{
			"provider_message_id": event.ProviderMessageID,
			"event_type":          envelope,
		}).Debug("Webhook event matched no transitionable delivery")
	}
}

// applySuppression adds bounced and complained recipients to the suppression
// list so later campaigns skip them.
func (s *WebhookService) applySuppression(ctx context.Context, event *domain.Event, envelope string) {
	if event.Recipient == "" {
		return
	}

	var kind domain.SuppressionKind
	switch event.Type {
	case domain.EventTypeBounced:
		kind = domain.SuppressionKindBounce
	case domain.EventTypeComplained:
		kind = domain.SuppressionKindComplaint
	default:
		return
	}

	detail := fmt.Sprintf("%s event for message %s", envelope, event.ProviderMessageID)
	if err := s.suppressions.Add(ctx, event.Recipient, kind, detail); err != nil {
		s.logger.WithFields(map[string]interface{}{
			"recipient": event.Recipient,
			"error":     err.Error(),
		}).Error("Failed to add suppression from webhook")
	}
}
