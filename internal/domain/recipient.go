package domain

import (
	"context"
	"strings"

	"github.com/asaskevich/govalidator"
)

// Recipient is a per-campaign input row. It is never persisted; the audit
// trail lives in DeliveryAttempt.
type Recipient struct {
	Email string            `json:"email"`
	Name  string            `json:"name,omitempty"`
	Vars  map[string]string `json:"vars,omitempty"`
}

// NormalizeEmail trims and lowercases an address. Every email crossing a
// component boundary goes through this first.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Validate normalizes the address in place and checks it syntactically.
func (r *Recipient) Validate() error {
	r.Email = NormalizeEmail(r.Email)
	if r.Email == "" {
		return NewValidationError("recipient email is required")
	}
	if !govalidator.IsEmail(r.Email) {
		return NewValidationError("invalid recipient email: " + r.Email)
	}
	return nil
}

//go:generate mockgen -destination mocks/mock_recipient_source.go -package mocks github.com/mailcannon/mailcannon/internal/domain RecipientSource

// RecipientSource yields the recipients of one campaign in input order.
// Implementations return ErrEndOfRecipients after the last one. The scheduler pulls
// from the source only as workers become available, so sources may stream
// from disk without buffering the whole list.
type RecipientSource interface {
	Next(ctx context.Context) (*Recipient, error)
}

// SliceSource adapts an in-memory recipient slice to RecipientSource.
type SliceSource struct {
	recipients []*Recipient
	pos        int
}

// NewSliceSource returns a source over the given recipients.
func NewSliceSource(recipients []*Recipient) *SliceSource {
	return &SliceSource{recipients: recipients}
}

// Next implements RecipientSource.
func (s *SliceSource) Next(ctx context.Context) (*Recipient, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.recipients) {
		return nil, ErrEndOfRecipients
	}
	r := s.recipients[s.pos]
	s.pos++
	return r, nil
}
