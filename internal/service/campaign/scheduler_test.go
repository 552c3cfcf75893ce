package campaign

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailcannon/mailcannon/internal/domain"
	"github.com/mailcannon/mailcannon/internal/domain/mocks"
	"github.com/mailcannon/mailcannon/pkg/logger"
)

// nopLimiter admits every intent immediately.
type nopLimiter struct{}

func (nopLimiter) Acquire(ctx context.Context) error { return ctx.Err() }

type schedulerFixture struct {
	deliveries   *mocks.MockDeliveryRepository
	quota        *mocks.MockQuotaStore
	suppressions *mocks.MockSuppressionStore
	renderer     *mocks.MockTemplateRenderer
	provider     *mocks.MockProviderClient
	clock        *fakeClock
	scheduler    *Scheduler
}

func setupSchedulerTest(t *testing.T) *schedulerFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	f := &schedulerFixture{
		deliveries:   mocks.NewMockDeliveryRepository(ctrl),
		quota:        mocks.NewMockQuotaStore(ctrl),
		suppressions: mocks.NewMockSuppressionStore(ctrl),
		renderer:     mocks.NewMockTemplateRenderer(ctrl),
		provider:     mocks.NewMockProviderClient(ctrl),
		clock:        newFakeClock(),
	}

	cfg := DefaultConfig()
	cfg.Concurrency = 1
	cfg.ProgressLogInterval = 0

	f.scheduler = NewScheduler(
		f.deliveries,
		f.quota,
		f.suppressions,
		nopLimiter{},
		f.renderer,
		f.provider,
		f.clock,
		logger.NewTestLogger(t),
		cfg,
	)
	return f
}

func testInput(recipients ...*domain.Recipient) Input {
	return Input{
		CampaignID: "camp-1",
		TemplateID: "welcome",
		Source:     domain.NewSliceSource(recipients),
		From:       "Sender <sender@example.com>",
	}
}

func recipient(email string) *domain.Recipient {
	return &domain.Recipient{Email: email, Vars: map[string]string{"email": email}}
}

func renderedMsg() *domain.RenderedMessage {
	return &domain.RenderedMessage{Subject: "Hello", HTML: "<p>Hi</p>"}
}

func TestScheduler_Run_AllSent(t *testing.T) {
	f := setupSchedulerTest(t)

	f.suppressions.EXPECT().IsSuppressed(gomock.Any(), gomock.Any()).Return(false, nil).Times(2)
	f.renderer.EXPECT().Render("welcome", gomock.Any()).Return(renderedMsg(), nil).Times(2)
	f.deliveries.EXPECT().BeginAttempt(gomock.Any(), "camp-1", gomock.Any(), "welcome", "Hello").
		Return(int64(1), nil).Times(2)
	f.quota.EXPECT().TryReserve(gomock.Any(), 1).Return(true, nil).Times(2)
	f.provider.EXPECT().Send(gomock.Any(), gomock.Any()).
		Return(&domain.SendResult{Kind: domain.SendAccepted, ProviderMessageID: "msg-1", HTTPStatus: 200}, nil).
		Times(2)
	f.deliveries.EXPECT().RecordResult(gomock.Any(), int64(1), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ int64, result domain.DeliveryResult) error {
			assert.Equal(t, domain.DeliveryStatusSent, result.Status)
			assert.Equal(t, 1, result.AttemptNo)
			assert.Equal(t, "msg-1", result.ProviderMessageID)
			return nil
		}).Times(2)

	summary, err := f.scheduler.Run(context.Background(), testInput(
		recipient("alice@example.com"),
		recipient("bob@example.com"),
	))
	require.NoError(t, err)

	assert.Equal(t, ReasonFinished, summary.Reason)
	assert.Equal(t, 2, summary.Sent)
	assert.Equal(t, 2, summary.Processed)
	assert.Zero(t, summary.Failed)
}

func TestScheduler_Run_SuppressedRecipientNeverSends(t *testing.T) {
	f := setupSchedulerTest(t)

	f.suppressions.EXPECT().IsSuppressed(gomock.Any(), "blocked@example.com").Return(true, nil)
	f.deliveries.EXPECT().BeginAttempt(gomock.Any(), "camp-1", "blocked@example.com", "welcome", "").
		Return(int64(5), nil)
	f.deliveries.EXPECT().RecordResult(gomock.Any(), int64(5), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ int64, result domain.DeliveryResult) error {
			assert.Equal(t, domain.DeliveryStatusSuppressed, result.Status)
			return nil
		})
	// No render, no quota, no provider call

	summary, err := f.scheduler.Run(context.Background(), testInput(recipient("blocked@example.com")))
	require.NoError(t, err)

	assert.Equal(t, ReasonFinished, summary.Reason)
	assert.Equal(t, 1, summary.Suppressed)
	assert.Zero(t, summary.Sent)
}

func TestScheduler_Run_DryRun(t *testing.T) {
	f := setupSchedulerTest(t)

	f.suppressions.EXPECT().IsSuppressed(gomock.Any(), gomock.Any()).Return(false, nil)
	f.renderer.EXPECT().Render("welcome", gomock.Any()).Return(renderedMsg(), nil)
	f.deliveries.EXPECT().BeginAttempt(gomock.Any(), "camp-1", gomock.Any(), "welcome", "Hello").
		Return(int64(1), nil)
	f.deliveries.EXPECT().RecordResult(gomock.Any(), int64(1), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ int64, result domain.DeliveryResult) error {
			assert.Equal(t, domain.DeliveryStatusDryRun, result.Status)
			return nil
		})
	// Dry run touches neither quota nor provider

	input := testInput(recipient("alice@example.com"))
	input.DryRun = true

	summary, err := f.scheduler.Run(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.DryRun)
	assert.Equal(t, ReasonFinished, summary.Reason)
}

func TestScheduler_Run_RetriesTransientFailure(t *testing.T) {
	f := setupSchedulerTest(t)

	f.suppressions.EXPECT().IsSuppressed(gomock.Any(), gomock.Any()).Return(false, nil)
	f.renderer.EXPECT().Render("welcome", gomock.Any()).Return(renderedMsg(), nil)
	f.deliveries.EXPECT().BeginAttempt(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(int64(1), nil)
	f.quota.EXPECT().TryReserve(gomock.Any(), 1).Return(true, nil)

	gomock.InOrder(
		f.provider.EXPECT().Send(gomock.Any(), gomock.Any()).
			Return(&domain.SendResult{
				Kind:       domain.SendTransientFailure,
				HTTPStatus: http.StatusInternalServerError,
				ErrorKind:  domain.ErrorKindProvider5xx,
			}, nil),
		f.provider.EXPECT().Send(gomock.Any(), gomock.Any()).
			Return(&domain.SendResult{Kind: domain.SendAccepted, ProviderMessageID: "msg-1", HTTPStatus: 200}, nil),
	)

	f.deliveries.EXPECT().RecordResult(gomock.Any(), int64(1), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ int64, result domain.DeliveryResult) error {
			assert.Equal(t, domain.DeliveryStatusSent, result.Status)
			assert.Equal(t, 2, result.AttemptNo)
			return nil
		})

	summary, err := f.scheduler.Run(context.Background(), testInput(recipient("alice@example.com")))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Sent)

	sleeps := f.clock.sleeps()
	require.Len(t, sleeps, 1)
	assert.GreaterOrEqual(t, sleeps[0], 800*time.Millisecond)
	assert.LessOrEqual(t, sleeps[0], 1200*time.Millisecond)
}

func TestScheduler_Run_RateLimitedRetryHonorsFloor(t *testing.T) {
	f := setupSchedulerTest(t)

	f.suppressions.EXPECT().IsSuppressed(gomock.Any(), gomock.Any()).Return(false, nil)
	f.renderer.EXPECT().Render("welcome", gomock.Any()).Return(renderedMsg(), nil)
	f.deliveries.EXPECT().BeginAttempt(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(int64(1), nil)
	f.quota.EXPECT().TryReserve(gomock.Any(), 1).Return(true, nil)

	gomock.InOrder(
		f.provider.EXPECT().Send(gomock.Any(), gomock.Any()).
			Return(&domain.SendResult{
				Kind:       domain.SendTransientFailure,
				HTTPStatus: http.StatusTooManyRequests,
				ErrorKind:  domain.ErrorKindRateLimited,
				RetryAfter: 2 * time.Second,
			}, nil),
		f.provider.EXPECT().Send(gomock.Any(), gomock.Any()).
			Return(&domain.SendResult{Kind: domain.SendAccepted, ProviderMessageID: "msg-1"}, nil),
	)
	f.deliveries.EXPECT().RecordResult(gomock.Any(), int64(1), gomock.Any()).Return(nil)

	_, err := f.scheduler.Run(context.Background(), testInput(recipient("alice@example.com")))
	require.NoError(t, err)

	sleeps := f.clock.sleeps()
	require.Len(t, sleeps, 1)
	assert.GreaterOrEqual(t, sleeps[0], 30*time.Second, "429 cooldown never drops below the floor")
}

func TestScheduler_Run_PermanentFailureNoRetry(t *testing.T) {
	f := setupSchedulerTest(t)

	f.suppressions.EXPECT().IsSuppressed(gomock.Any(), gomock.Any()).Return(false, nil)
	f.renderer.EXPECT().Render("welcome", gomock.Any()).Return(renderedMsg(), nil)
	f.deliveries.EXPECT().BeginAttempt(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(int64(1), nil)
	f.quota.EXPECT().TryReserve(gomock.Any(), 1).Return(true, nil)

	f.provider.EXPECT().Send(gomock.Any(), gomock.Any()).
		Return(&domain.SendResult{
			Kind:       domain.SendPermanentFailure,
			HTTPStatus: http.StatusUnprocessableEntity,
			ErrorKind:  domain.ErrorKindProvider4xx,
			Detail:     "invalid to address",
		}, nil)

	f.deliveries.EXPECT().RecordResult(gomock.Any(), int64(1), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ int64, result domain.DeliveryResult) error {
			assert.Equal(t, domain.DeliveryStatusFailed, result.Status)
			assert.Equal(t, domain.ErrorKindProvider4xx, result.ErrorKind)
			assert.Equal(t, 1, result.AttemptNo)
			return nil
		})

	summary, err := f.scheduler.Run(context.Background(), testInput(recipient("alice@example.com")))
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Failed)
	assert.Empty(t, f.clock.sleeps(), "permanent failures never back off")
}

func TestScheduler_Run_ExhaustsRetries(t *testing.T) {
	f := setupSchedulerTest(t)

	f.suppressions.EXPECT().IsSuppressed(gomock.Any(), gomock.Any()).Return(false, nil)
	f.renderer.EXPECT().Render("welcome", gomock.Any()).Return(renderedMsg(), nil)
	f.deliveries.EXPECT().BeginAttempt(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(int64(1), nil)
	f.quota.EXPECT().TryReserve(gomock.Any(), 1).Return(true, nil)

	f.provider.EXPECT().Send(gomock.Any(), gomock.Any()).
		Return(&domain.SendResult{
			Kind:      domain.SendTransientFailure,
			ErrorKind: domain.ErrorKindNetwork,
			Detail:    "connection reset",
		}, nil).Times(3)

	f.deliveries.EXPECT().RecordResult(gomock.Any(), int64(1), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ int64, result domain.DeliveryResult) error {
			assert.Equal(t, domain.DeliveryStatusFailed, result.Status)
			assert.Equal(t, 3, result.AttemptNo)
			assert.Equal(t, domain.ErrorKindNetwork, result.ErrorKind)
			return nil
		})

	summary, err := f.scheduler.Run(context.Background(), testInput(recipient("alice@example.com")))
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Failed)
	assert.Len(t, f.clock.sleeps(), 2, "two backoffs between three attempts")
}

func TestScheduler_Run_QuotaExhaustionHaltsCampaign(t *testing.T) {
	f := setupSchedulerTest(t)

	// First recipient reaches the quota gate and is denied
	f.suppressions.EXPECT().IsSuppressed(gomock.Any(), "alice@example.com").Return(false, nil)
	f.renderer.EXPECT().Render("welcome", gomock.Any()).Return(renderedMsg(), nil)
	f.quota.EXPECT().TryReserve(gomock.Any(), 1).Return(false, nil)

	// One queued row per recipient: the denied one plus the two drained ones
	f.deliveries.EXPECT().BeginAttempt(gomock.Any(), "camp-1", gomock.Any(), "welcome", gomock.Any()).
		Return(int64(1), nil).Times(3)
	f.deliveries.EXPECT().RecordResult(gomock.Any(), int64(1), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ int64, result domain.DeliveryResult) error {
			assert.Equal(t, domain.DeliveryStatusFailed, result.Status)
			assert.Equal(t, domain.ErrorKindQuotaExhausted, result.ErrorKind)
			return nil
		}).Times(3)

	summary, err := f.scheduler.Run(context.Background(), testInput(
		recipient("alice@example.com"),
		recipient("bob@example.com"),
		recipient("carol@example.com"),
	))
	require.NoError(t, err)

	assert.Equal(t, ReasonQuotaExhausted, summary.Reason)
	assert.Equal(t, 3, summary.Failed)
	assert.Zero(t, summary.Sent)
}

func TestScheduler_Run_QuotaStorageFailureEndsCampaign(t *testing.T) {
	f := setupSchedulerTest(t)

	f.suppressions.EXPECT().IsSuppressed(gomock.Any(), "alice@example.com").Return(false, nil)
	f.renderer.EXPECT().Render("welcome", gomock.Any()).Return(renderedMsg(), nil)
	f.deliveries.EXPECT().BeginAttempt(gomock.Any(), "camp-1", "alice@example.com", "welcome", "Hello").
		Return(int64(1), nil)

	// The reservation is retried once before the store is declared dead
	f.quota.EXPECT().TryReserve(gomock.Any(), 1).Return(false, errors.New("db is down")).Times(2)

	f.deliveries.EXPECT().RecordResult(gomock.Any(), int64(1), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ int64, result domain.DeliveryResult) error {
			assert.Equal(t, domain.DeliveryStatusFailed, result.Status)
			assert.Equal(t, domain.ErrorKindStorage, result.ErrorKind)
			return nil
		})
	// No provider call, and bob is never pulled from the source

	summary, err := f.scheduler.Run(context.Background(), testInput(
		recipient("alice@example.com"),
		recipient("bob@example.com"),
	))
	require.Error(t, err)

	var campaignErr *CampaignError
	require.True(t, errors.As(err, &campaignErr))
	assert.Equal(t, ErrCodeStorageFailed, campaignErr.Code)

	assert.Equal(t, ReasonErrored, summary.Reason)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Processed)
}

func TestScheduler_Run_QuotaStorageFailureRecoversOnRetry(t *testing.T) {
	f := setupSchedulerTest(t)

	f.suppressions.EXPECT().IsSuppressed(gomock.Any(), gomock.Any()).Return(false, nil)
	f.renderer.EXPECT().Render("welcome", gomock.Any()).Return(renderedMsg(), nil)
	f.deliveries.EXPECT().BeginAttempt(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(int64(1), nil)

	gomock.InOrder(
		f.quota.EXPECT().TryReserve(gomock.Any(), 1).Return(false, errors.New("connection reset")),
		f.quota.EXPECT().TryReserve(gomock.Any(), 1).Return(true, nil),
	)

	f.provider.EXPECT().Send(gomock.Any(), gomock.Any()).
		Return(&domain.SendResult{Kind: domain.SendAccepted, ProviderMessageID: "msg-1", HTTPStatus: 200}, nil)
	f.deliveries.EXPECT().RecordResult(gomock.Any(), int64(1), gomock.Any()).Return(nil)

	summary, err := f.scheduler.Run(context.Background(), testInput(recipient("alice@example.com")))
	require.NoError(t, err)

	assert.Equal(t, ReasonFinished, summary.Reason)
	assert.Equal(t, 1, summary.Sent)
}

func TestScheduler_Run_DeliveryStorageFailureEndsCampaign(t *testing.T) {
	f := setupSchedulerTest(t)

	f.suppressions.EXPECT().IsSuppressed(gomock.Any(), "alice@example.com").Return(false, nil)
	f.renderer.EXPECT().Render("welcome", gomock.Any()).Return(renderedMsg(), nil)
	f.deliveries.EXPECT().BeginAttempt(gomock.Any(), "camp-1", "alice@example.com", "welcome", "Hello").
		Return(int64(0), errors.New("db is down"))
	// No quota, no provider, no result row

	summary, err := f.scheduler.Run(context.Background(), testInput(
		recipient("alice@example.com"),
		recipient("bob@example.com"),
	))
	require.Error(t, err)

	var campaignErr *CampaignError
	require.True(t, errors.As(err, &campaignErr))
	assert.Equal(t, ErrCodeStorageFailed, campaignErr.Code)
	assert.Equal(t, ReasonErrored, summary.Reason)
}

func TestScheduler_Run_ProgressStream(t *testing.T) {
	f := setupSchedulerTest(t)

	f.suppressions.EXPECT().IsSuppressed(gomock.Any(), gomock.Any()).Return(false, nil).Times(2)
	f.renderer.EXPECT().Render("welcome", gomock.Any()).Return(renderedMsg(), nil).Times(2)
	f.deliveries.EXPECT().BeginAttempt(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(int64(1), nil).Times(2)
	f.quota.EXPECT().TryReserve(gomock.Any(), 1).Return(true, nil).Times(2)
	f.provider.EXPECT().Send(gomock.Any(), gomock.Any()).
		Return(&domain.SendResult{Kind: domain.SendAccepted, ProviderMessageID: "msg-1", HTTPStatus: 200}, nil).
		Times(2)
	f.deliveries.EXPECT().RecordResult(gomock.Any(), int64(1), gomock.Any()).Return(nil).Times(2)

	progress := make(chan ProgressEvent, 8)
	input := testInput(recipient("alice@example.com"), recipient("bob@example.com"))
	input.Progress = progress

	summary, err := f.scheduler.Run(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Sent)

	var events []ProgressEvent
	for ev := range progress {
		events = append(events, ev)
	}
	require.Len(t, events, 3, "one event per recipient plus the final one")

	assert.Equal(t, 1, events[0].Processed)
	assert.Equal(t, 2, events[1].Processed)
	assert.True(t, events[2].Done)
	assert.Equal(t, ReasonFinished, events[2].Reason)
	assert.Equal(t, 2, events[2].Sent)
}

func TestScheduler_Run_RenderFailure(t *testing.T) {
	f := setupSchedulerTest(t)

	f.suppressions.EXPECT().IsSuppressed(gomock.Any(), gomock.Any()).Return(false, nil)
	f.renderer.EXPECT().Render("welcome", gomock.Any()).
		Return(nil, &domain.RenderError{TemplateID: "welcome", Err: errors.New("undefined variable")})
	f.deliveries.EXPECT().BeginAttempt(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), "").
		Return(int64(1), nil)
	f.deliveries.EXPECT().RecordResult(gomock.Any(), int64(1), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ int64, result domain.DeliveryResult) error {
			assert.Equal(t, domain.DeliveryStatusFailed, result.Status)
			assert.Equal(t, domain.ErrorKindRender, result.ErrorKind)
			return nil
		})
	// Render failures are deterministic: no provider call, no retry

	summary, err := f.scheduler.Run(context.Background(), testInput(recipient("alice@example.com")))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)
}

func TestScheduler_Run_CancelledBeforeStart(t *testing.T) {
	f := setupSchedulerTest(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := f.scheduler.Run(ctx, testInput(recipient("alice@example.com")))
	require.NoError(t, err)

	assert.Equal(t, ReasonCancelled, summary.Reason)
	assert.Zero(t, summary.Processed)
}

func TestScheduler_Run_SourceFailure(t *testing.T) {
	f := setupSchedulerTest(t)

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	source := mocks.NewMockRecipientSource(ctrl)
	source.EXPECT().Next(gomock.Any()).Return(nil, errors.New("disk read failed"))

	input := testInput()
	input.Source = source

	summary, err := f.scheduler.Run(context.Background(), input)
	require.Error(t, err)

	var campaignErr *CampaignError
	require.True(t, errors.As(err, &campaignErr))
	assert.Equal(t, ErrCodeSourceFailed, campaignErr.Code)
	assert.Equal(t, ReasonErrored, summary.Reason)
}

func TestScheduler_Run_InvalidInput(t *testing.T) {
	f := setupSchedulerTest(t)

	_, err := f.scheduler.Run(context.Background(), Input{TemplateID: "welcome"})
	assert.Error(t, err)

	_, err = f.scheduler.Run(context.Background(), Input{CampaignID: "camp-1", From: "a@b.co"})
	assert.Error(t, err)

	_, err = f.scheduler.Run(context.Background(), Input{
		CampaignID: "camp-1",
		Source:     domain.NewSliceSource(nil),
	})
	assert.Error(t, err, "from address is required")
}
