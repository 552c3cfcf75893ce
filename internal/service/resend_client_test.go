package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailcannon/mailcannon/internal/domain"
	"github.com/mailcannon/mailcannon/pkg/logger"
)

func testSendRequest() *domain.SendRequest {
	return &domain.SendRequest{
		From:    "Sender <sender@example.com>",
		To:      "alice@example.com",
		Subject: "Hello",
		HTML:    "<p>Hi</p>",
	}
}

func TestResendClient_Send_Accepted(t *testing.T) {
	var gotAuth string
	var gotPayload resendPayload

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"id":"msg-123"}`))
	}))
	defer server.Close()

	client := NewResendClient("test-key", server.URL, 5*time.Second, logger.NewTestLogger(t))

	result, err := client.Send(context.Background(), testSendRequest())
	require.NoError(t, err)

	assert.True(t, result.Accepted())
	assert.Equal(t, "msg-123", result.ProviderMessageID)
	assert.Equal(t, http.StatusOK, result.HTTPStatus)

	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, []string{"alice@example.com"}, gotPayload.To)
	assert.Equal(t, "Hello", gotPayload.Subject)
}

func TestResendClient_Send_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "42")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"message":"rate limit exceeded"}`))
	}))
	defer server.Close()

	client := NewResendClient("test-key", server.URL, 5*time.Second, logger.NewTestLogger(t))

	result, err := client.Send(context.Background(), testSendRequest())
	require.NoError(t, err)

	assert.True(t, result.Retryable())
	assert.Equal(t, domain.ErrorKindRateLimited, result.ErrorKind)
	assert.Equal(t, 42*time.Second, result.RetryAfter)
	assert.Equal(t, "rate limit exceeded", result.Detail)
}

func TestResendClient_Send_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"message":"internal error"}`))
	}))
	defer server.Close()

	client := NewResendClient("test-key", server.URL, 5*time.Second, logger.NewTestLogger(t))

	result, err := client.Send(context.Background(), testSendRequest())
	require.NoError(t, err)

	assert.Equal(t, domain.SendTransientFailure, result.Kind)
	assert.Equal(t, domain.ErrorKindProvider5xx, result.ErrorKind)
	assert.Equal(t, http.StatusInternalServerError, result.HTTPStatus)
	assert.Zero(t, result.RetryAfter)
}

func TestResendClient_Send_PermanentFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"invalid to address"}`))
	}))
	defer server.Close()

	client := NewResendClient("test-key", server.URL, 5*time.Second, logger.NewTestLogger(t))

	result, err := client.Send(context.Background(), testSendRequest())
	require.NoError(t, err)

	assert.Equal(t, domain.SendPermanentFailure, result.Kind)
	assert.False(t, result.Retryable())
	assert.Equal(t, domain.ErrorKindProvider4xx, result.ErrorKind)
	assert.Equal(t, "invalid to address", result.Detail)
}

func TestResendClient_Send_TransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused from here on

	client := NewResendClient("test-key", server.URL, time.Second, logger.NewTestLogger(t))

	result, err := client.Send(context.Background(), testSendRequest())
	require.NoError(t, err)

	assert.Equal(t, domain.SendTransientFailure, result.Kind)
	assert.Equal(t, domain.ErrorKindNetwork, result.ErrorKind)
	assert.NotEmpty(t, result.Detail)
}

func TestResendClient_Send_MissingFields(t *testing.T) {
	client := NewResendClient("test-key", "http://localhost:0", time.Second, logger.NewTestLogger(t))

	_, err := client.Send(context.Background(), &domain.SendRequest{From: "sender@example.com"})
	assert.Error(t, err)

	_, err = client.Send(context.Background(), &domain.SendRequest{To: "alice@example.com"})
	assert.Error(t, err)
}
