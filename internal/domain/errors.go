package domain

import (
	"errors"
	"fmt"
)

// ErrEndOfRecipients is returned by RecipientSource.Next when the campaign's
// recipient sequence is exhausted.
var ErrEndOfRecipients = errors.New("no more recipients")

// ErrDeliveryNotFound is returned when a delivery attempt cannot be located.
type ErrDeliveryNotFound struct {
	AttemptID         int64
	ProviderMessageID string
}

func (e *ErrDeliveryNotFound) Error() string {
	if e.ProviderMessageID != "" {
		return fmt.Sprintf("delivery not found for provider message ID %s", e.ProviderMessageID)
	}
	return fmt.Sprintf("delivery not found with ID %d", e.AttemptID)
}

// ErrInvalidTransition is returned when a delivery status update violates the
// attempt lifecycle.
type ErrInvalidTransition struct {
	AttemptID int64
	From      DeliveryStatus
	To        DeliveryStatus
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("invalid delivery transition %s -> %s for attempt %d", e.From, e.To, e.AttemptID)
}

// ValidationError represents an error that occurs due to invalid input or parameters
type ValidationError struct {
	Message string
}

// Error implements the error interface
func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s", e.Message)
}

// NewValidationError creates a new validation error with the given message
func NewValidationError(message string) error {
	return ValidationError{
		Message: message,
	}
}
