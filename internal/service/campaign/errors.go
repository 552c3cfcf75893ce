package campaign

import (
	"errors"
	"fmt"
)

// ErrorCode represents specific error conditions in campaign processing.
type ErrorCode string

const (
	// Input related errors
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	ErrCodeSourceFailed ErrorCode = "SOURCE_FAILED"

	// Pipeline related errors
	ErrCodeRenderFailed   ErrorCode = "RENDER_FAILED"
	ErrCodeStorageFailed  ErrorCode = "STORAGE_FAILED"
	ErrCodeQuotaExhausted ErrorCode = "QUOTA_EXHAUSTED"

	// Sending related errors
	ErrCodeSendFailed ErrorCode = "SEND_FAILED"
	ErrCodeCancelled  ErrorCode = "CANCELLED"
)

// CampaignError represents an error in campaign processing with context.
type CampaignError struct {
	Code       ErrorCode
	Message    string
	CampaignID string
	Retryable  bool
	Err        error
}

// Error implements the error interface.
func (e *CampaignError) Error() string {
	if e.Err != nil {
		if e.CampaignID != "" {
			return fmt.Sprintf("[%s] %s (campaign: %s): %v", e.Code, e.Message, e.CampaignID, e.Err)
		}
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	if e.CampaignID != "" {
		return fmt.Sprintf("[%s] %s (campaign: %s)", e.Code, e.Message, e.CampaignID)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *CampaignError) Unwrap() error {
	return e.Err
}

// NewCampaignError creates a new campaign error.
func NewCampaignError(code ErrorCode, message string, retryable bool, err error) *CampaignError {
	return &CampaignError{
		Code:      code,
		Message:   message,
		Retryable: retryable,
		Err:       err,
	}
}

// IsRetryable returns whether the error is retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var ce *CampaignError
	if errors.As(err, &ce) {
		return ce.Retryable
	}
	return false
}
