package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"github.com/mailcannon/mailcannon/internal/domain"
	"github.com/mailcannon/mailcannon/pkg/emailerror"
	"github.com/mailcannon/mailcannon/pkg/logger"
)

// maxResponseBytes bounds how much of a provider response is read. Resend
// responses are small JSON documents; anything larger is noise.
const maxResponseBytes = 1 << 20

// resendPayload is the request body for POST /emails.
type resendPayload struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html,omitempty"`
	Text    string   `json:"text,omitempty"`
	ReplyTo string   `json:"reply_to,omitempty"`
}

// ResendClient implements domain.ProviderClient against the Resend HTTP API.
// It performs exactly one HTTP call per Send and classifies the outcome;
// retry policy belongs to the caller.
type ResendClient struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
	logger     logger.Logger
}

// NewResendClient creates a Resend API client. The endpoint should not carry
// a trailing slash.
func NewResendClient(apiKey, endpoint string, timeout time.Duration, log logger.Logger) *ResendClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ResendClient{
		apiKey:   apiKey,
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: log,
	}
}

// Send submits one message. A non-nil error means the request could not be
// constructed; every provider or transport outcome comes back as a SendResult.
func (c *ResendClient) Send(ctx context.Context, req *domain.SendRequest) (*domain.SendResult, error) {
	if req.To == "" {
		return nil, fmt.Errorf("send request requires a recipient")
	}
	if req.From == "" {
		return nil, fmt.Errorf("send request requires a sender")
	}

	body, err := json.Marshal(resendPayload{
		From:    req.From,
		To:      []string{req.To},
		Subject: req.Subject,
		HTML:    req.HTML,
		Text:    req.Text,
		ReplyTo: req.ReplyTo,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal send payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/emails", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create send request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		classified := emailerror.ClassifyTransport(err)
		c.logger.WithField("error", classified.Detail).Warn("Provider request failed in transport")
		return &domain.SendResult{
			Kind:      domain.SendTransientFailure,
			ErrorKind: domain.ErrorKindNetwork,
			Detail:    classified.Detail,
		}, nil
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		// The status line arrived but the body was cut off mid-read
		classified := emailerror.ClassifyTransport(err)
		return &domain.SendResult{
			Kind:       domain.SendTransientFailure,
			HTTPStatus: resp.StatusCode,
			ErrorKind:  domain.ErrorKindNetwork,
			Detail:     classified.Detail,
		}, nil
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		messageID := gjson.GetBytes(respBody, "id").String()
		if messageID == "" {
			c.logger.WithField("status", resp.StatusCode).Warn("Provider accepted message without an ID")
		}
		return &domain.SendResult{
			Kind:              domain.SendAccepted,
			ProviderMessageID: messageID,
			HTTPStatus:        resp.StatusCode,
		}, nil
	}

	kind, retryable := emailerror.ClassifyStatus(resp.StatusCode)
	detail := gjson.GetBytes(respBody, "message").String()
	if detail == "" {
		detail = string(respBody)
	}
	detail = domain.TruncateDetail(detail)

	result := &domain.SendResult{
		HTTPStatus: resp.StatusCode,
		ErrorKind:  domain.ErrorKind(kind),
		Detail:     detail,
	}
	if retryable {
		result.Kind = domain.SendTransientFailure
	} else {
		result.Kind = domain.SendPermanentFailure
	}
	if kind == emailerror.KindRateLimited {
		result.RetryAfter = emailerror.ParseRetryAfter(resp.Header.Get("Retry-After"))
	}

	return result, nil
}
