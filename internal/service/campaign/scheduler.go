package campaign

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/mailcannon/mailcannon/internal/domain"
	"github.com/mailcannon/mailcannon/pkg/logger"
)

// RateLimiter admits send intents in FIFO order under the per-minute cap.
type RateLimiter interface {
	Acquire(ctx context.Context) error
}

// Input describes one campaign run.
type Input struct {
	CampaignID string
	TemplateID string
	Source     domain.RecipientSource

	// From and ReplyTo are the campaign-wide envelope settings.
	From    string
	ReplyTo string

	// DryRun walks the whole pipeline except quota, rate limiting, and the
	// provider call.
	DryRun bool

	// Concurrency overrides the configured bound when positive.
	Concurrency int

	// Progress, when set, receives one event per completed recipient in
	// completion order, then a final Done event, and is closed when the run
	// ends. Sends block until the consumer drains.
	Progress chan<- ProgressEvent
}

// Scheduler drives one campaign: it pulls recipients as workers free up and
// runs each through the suppression gate, renderer, quota, rate limiter, and
// provider, recording every outcome.
type Scheduler struct {
	deliveries   domain.DeliveryRepository
	quota        domain.QuotaStore
	suppressions domain.SuppressionStore
	limiter      RateLimiter
	renderer     domain.TemplateRenderer
	provider     domain.ProviderClient
	retry        *RetryPolicy
	clock        Clock
	logger       logger.Logger
	config       *Config
}

// NewScheduler creates a campaign scheduler.
func NewScheduler(
	deliveries domain.DeliveryRepository,
	quota domain.QuotaStore,
	suppressions domain.SuppressionStore,
	limiter RateLimiter,
	renderer domain.TemplateRenderer,
	provider domain.ProviderClient,
	clock Clock,
	log logger.Logger,
	config *Config,
) *Scheduler {
	if config == nil {
		config = DefaultConfig()
	}
	if clock == nil {
		clock = NewRealClock()
	}

	return &Scheduler{
		deliveries:   deliveries,
		quota:        quota,
		suppressions: suppressions,
		limiter:      limiter,
		renderer:     renderer,
		provider:     provider,
		retry:        NewRetryPolicy(config),
		clock:        clock,
		logger:       log,
		config:       config,
	}
}

// halt latches the first reason any worker found for stopping intake, plus
// the error that caused it when the reason is fatal.
type halt struct {
	mu     sync.Mutex
	reason Reason
	err    error
}

func (h *halt) set(reason Reason) {
	h.fail(reason, nil)
}

func (h *halt) fail(reason Reason, err error) {
	h.mu.Lock()
	if h.reason == "" {
		h.reason = reason
		h.err = err
	}
	h.mu.Unlock()
}

func (h *halt) get() Reason {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.reason
}

func (h *halt) cause() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Run executes the campaign to completion and returns its summary. The
// summary is non-nil even on error so partial progress is never lost.
func (s *Scheduler) Run(ctx context.Context, input Input) (*Summary, error) {
	if err := validateInput(input); err != nil {
		if input.Progress != nil {
			close(input.Progress)
		}
		return nil, err
	}

	concurrency := input.Concurrency
	if concurrency <= 0 {
		concurrency = s.config.Concurrency
	}
	if concurrency < 1 {
		concurrency = 1
	}
	if concurrency > MaxConcurrency {
		concurrency = MaxConcurrency
	}

	s.logger.WithFields(map[string]interface{}{
		"campaign_id": input.CampaignID,
		"template_id": input.TemplateID,
		"concurrency": concurrency,
		"dry_run":     input.DryRun,
	}).Info("Starting campaign")

	tracker := NewTracker(s.clock, s.logger, s.config.ProgressLogInterval, input.Progress)
	sem := semaphore.NewWeighted(int64(concurrency))
	var wg sync.WaitGroup
	var h halt
	var runErr error

intake:
	for {
		if ctx.Err() != nil {
			h.set(ReasonCancelled)
			break
		}
		if h.get() != "" {
			break
		}

		// Pull-based backpressure: block for a worker slot before consuming
		// the next recipient, so a halt raised mid-wait stops intake cleanly
		if err := sem.Acquire(ctx, 1); err != nil {
			h.set(ReasonCancelled)
			break
		}
		if h.get() != "" {
			sem.Release(1)
			break
		}

		recipient, err := input.Source.Next(ctx)
		if err != nil {
			sem.Release(1)
			switch {
			case errors.Is(err, domain.ErrEndOfRecipients):
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				h.set(ReasonCancelled)
			default:
				h.set(ReasonErrored)
				runErr = NewCampaignError(ErrCodeSourceFailed, "recipient source failed", false, err)
			}
			break intake
		}

		wg.Add(1)
		go func(r *domain.Recipient) {
			defer wg.Done()
			defer sem.Release(1)
			s.processRecipient(ctx, input, r, tracker, &h)
		}(recipient)
	}

	wg.Wait()

	reason := h.get()
	if reason == "" {
		reason = ReasonFinished
	}

	if reason == ReasonQuotaExhausted {
		s.failRemaining(ctx, input, tracker, &h)
	}

	if runErr == nil {
		runErr = h.cause()
	}

	summary := tracker.Summarize(input.CampaignID, reason)
	s.logger.Info(summary.String())

	return summary, runErr
}

func validateInput(input Input) error {
	if input.CampaignID == "" {
		return NewCampaignError(ErrCodeInvalidInput, "campaign ID is required", false, nil)
	}
	if input.Source == nil {
		return NewCampaignError(ErrCodeInvalidInput, "recipient source is required", false, nil)
	}
	if input.From == "" {
		return NewCampaignError(ErrCodeInvalidInput, "from address is required", false, nil)
	}
	return nil
}

// processRecipient runs the full per-recipient pipeline and records exactly
// one terminal outcome for it.
func (s *Scheduler) processRecipient(ctx context.Context, input Input, recipient *domain.Recipient, tracker *Tracker, h *halt) {
	log := s.logger.WithFields(map[string]interface{}{
		"campaign_id": input.CampaignID,
		"email":       recipient.Email,
	})

	suppressed, err := s.suppressions.IsSuppressed(ctx, recipient.Email)
	if err != nil {
		log.WithField("error", err.Error()).Error("Suppression check failed")
		h.fail(ReasonErrored, NewCampaignError(ErrCodeStorageFailed, "suppression check failed", false, err))
		tracker.Record(domain.DeliveryStatusFailed)
		return
	}
	if suppressed {
		s.recordOutcome(ctx, input, recipient, "", domain.DeliveryResult{
			Status: domain.DeliveryStatusSuppressed,
		}, tracker, h, log)
		return
	}

	rendered, err := s.renderer.Render(input.TemplateID, recipient.Vars)
	if err != nil {
		log.WithField("error", err.Error()).Warn("Template rendering failed")
		s.recordOutcome(ctx, input, recipient, "", domain.DeliveryResult{
			Status:      domain.DeliveryStatusFailed,
			ErrorKind:   domain.ErrorKindRender,
			ErrorDetail: err.Error(),
		}, tracker, h, log)
		return
	}

	// The queued row exists for the whole remainder of the pipeline, so an
	// interrupted run leaves an audit trail of what was in flight
	attemptID, err := s.deliveries.BeginAttempt(ctx, input.CampaignID, recipient.Email, input.TemplateID, rendered.Subject)
	if err != nil {
		log.WithField("error", err.Error()).Error("Failed to create delivery row")
		h.fail(ReasonErrored, NewCampaignError(ErrCodeStorageFailed, "failed to create delivery row", false, err))
		tracker.Record(domain.DeliveryStatusFailed)
		return
	}

	if input.DryRun {
		s.finalize(ctx, attemptID, domain.DeliveryResult{
			Status: domain.DeliveryStatusDryRun,
		}, tracker, h, log)
		return
	}

	granted, err := s.tryReserveQuota(ctx, log)
	if err != nil {
		// Two consecutive reservation failures end the whole run
		h.fail(ReasonErrored, NewCampaignError(ErrCodeStorageFailed, "quota reservation failed", false, err))
		s.finalize(ctx, attemptID, domain.DeliveryResult{
			Status:      domain.DeliveryStatusFailed,
			ErrorKind:   domain.ErrorKindStorage,
			ErrorDetail: err.Error(),
		}, tracker, h, log)
		return
	}
	if !granted {
		h.set(ReasonQuotaExhausted)
		s.finalize(ctx, attemptID, domain.DeliveryResult{
			Status:      domain.DeliveryStatusFailed,
			ErrorKind:   domain.ErrorKindQuotaExhausted,
			ErrorDetail: "daily quota exhausted",
		}, tracker, h, log)
		return
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		h.set(ReasonCancelled)
		s.finalize(ctx, attemptID, domain.DeliveryResult{
			Status:      domain.DeliveryStatusFailed,
			ErrorKind:   domain.ErrorKindCancelled,
			ErrorDetail: "cancelled while waiting for rate limiter",
		}, tracker, h, log)
		return
	}

	result := s.sendWithRetry(ctx, input, recipient, rendered, log)
	s.finalize(ctx, attemptID, result, tracker, h, log)
}

// tryReserveQuota reserves one send, retrying a failed reservation once
// before giving up on the store.
func (s *Scheduler) tryReserveQuota(ctx context.Context, log logger.Logger) (bool, error) {
	granted, err := s.quota.TryReserve(ctx, 1)
	if err == nil {
		return granted, nil
	}
	log.WithField("error", err.Error()).Warn("Quota reservation failed, retrying once")
	return s.quota.TryReserve(ctx, 1)
}

// finalize records the terminal result against an already-created attempt.
func (s *Scheduler) finalize(ctx context.Context, attemptID int64, result domain.DeliveryResult, tracker *Tracker, h *halt, log logger.Logger) {
	if err := s.deliveries.RecordResult(ctx, attemptID, result); err != nil {
		log.WithFields(map[string]interface{}{
			"attempt_id": attemptID,
			"error":      err.Error(),
		}).Error("Failed to record delivery result")
		h.fail(ReasonErrored, NewCampaignError(ErrCodeStorageFailed, "failed to record delivery result", false, err))
		tracker.Record(domain.DeliveryStatusFailed)
		return
	}
	tracker.Record(result.Status)
}

// sendWithRetry drives the provider call through the retry policy. All
// retries of one recipient share a single delivery row; the returned result
// carries the final attempt number.
func (s *Scheduler) sendWithRetry(ctx context.Context, input Input, recipient *domain.Recipient, rendered *domain.RenderedMessage, log logger.Logger) domain.DeliveryResult {
	req := &domain.SendRequest{
		From:    input.From,
		To:      recipient.Email,
		Subject: rendered.Subject,
		HTML:    rendered.HTML,
		Text:    rendered.Text,
		ReplyTo: input.ReplyTo,
	}

	var last domain.DeliveryResult
	for attempt := 1; ; attempt++ {
		sendResult, err := s.provider.Send(ctx, req)
		if err != nil {
			// Construction failures cannot improve with retries
			return domain.DeliveryResult{
				Status:      domain.DeliveryStatusFailed,
				AttemptNo:   attempt,
				ErrorKind:   domain.ErrorKindProvider4xx,
				ErrorDetail: err.Error(),
			}
		}

		if sendResult.Accepted() {
			return domain.DeliveryResult{
				Status:            domain.DeliveryStatusSent,
				AttemptNo:         attempt,
				ProviderMessageID: sendResult.ProviderMessageID,
				HTTPStatus:        sendResult.HTTPStatus,
			}
		}

		last = domain.DeliveryResult{
			Status:      domain.DeliveryStatusFailed,
			AttemptNo:   attempt,
			HTTPStatus:  sendResult.HTTPStatus,
			ErrorKind:   sendResult.ErrorKind,
			ErrorDetail: sendResult.Detail,
		}

		if !sendResult.Retryable() || !s.retry.ShouldRetry(attempt) {
			return last
		}

		delay := s.retry.Delay(attempt)
		if sendResult.ErrorKind == domain.ErrorKindRateLimited {
			delay = s.retry.RateLimitDelay(attempt, sendResult.RetryAfter)
		}

		log.WithFields(map[string]interface{}{
			"attempt": attempt,
			"delay":   delay.String(),
			"kind":    string(sendResult.ErrorKind),
		}).Warn("Send failed, retrying")

		if err := s.clock.Sleep(ctx, delay); err != nil {
			last.ErrorKind = domain.ErrorKindCancelled
			last.ErrorDetail = "cancelled during retry backoff"
			return last
		}
	}
}

// recordOutcome writes the delivery row pair (begin + result) and feeds the
// tracker. Storage failures latch the run as errored.
func (s *Scheduler) recordOutcome(ctx context.Context, input Input, recipient *domain.Recipient, subject string, result domain.DeliveryResult, tracker *Tracker, h *halt, log logger.Logger) {
	attemptID, err := s.deliveries.BeginAttempt(ctx, input.CampaignID, recipient.Email, input.TemplateID, subject)
	if err != nil {
		log.WithField("error", err.Error()).Error("Failed to create delivery row")
		h.fail(ReasonErrored, NewCampaignError(ErrCodeStorageFailed, "failed to create delivery row", false, err))
		tracker.Record(domain.DeliveryStatusFailed)
		return
	}

	s.finalize(ctx, attemptID, result, tracker, h, log)
}

// failRemaining drains the source after quota exhaustion, recording a failed
// row for every recipient that never got a send intent.
func (s *Scheduler) failRemaining(ctx context.Context, input Input, tracker *Tracker, h *halt) {
	for {
		recipient, err := input.Source.Next(ctx)
		if err != nil {
			return
		}
		s.recordOutcome(ctx, input, recipient, "", domain.DeliveryResult{
			Status:      domain.DeliveryStatusFailed,
			ErrorKind:   domain.ErrorKindQuotaExhausted,
			ErrorDetail: "daily quota exhausted",
		}, tracker, h, s.logger.WithField("email", recipient.Email))
	}
}
