package campaign

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailcannon/mailcannon/internal/domain"
	"github.com/mailcannon/mailcannon/pkg/logger"
)

func TestTracker_CountsByStatus(t *testing.T) {
	clock := newFakeClock()
	tracker := NewTracker(clock, logger.NewTestLogger(t), 0, nil)

	tracker.Record(domain.DeliveryStatusSent)
	tracker.Record(domain.DeliveryStatusSent)
	tracker.Record(domain.DeliveryStatusFailed)
	tracker.Record(domain.DeliveryStatusSuppressed)
	tracker.Record(domain.DeliveryStatusDryRun)

	summary := tracker.Summarize("camp-1", ReasonFinished)

	assert.Equal(t, "camp-1", summary.CampaignID)
	assert.Equal(t, ReasonFinished, summary.Reason)
	assert.Equal(t, 5, summary.Processed)
	assert.Equal(t, 2, summary.Sent)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Suppressed)
	assert.Equal(t, 1, summary.DryRun)
}

func TestTracker_ElapsedUsesClock(t *testing.T) {
	clock := newFakeClock()
	tracker := NewTracker(clock, logger.NewTestLogger(t), 0, nil)

	clock.now = clock.now.Add(90 * time.Second)

	summary := tracker.Summarize("camp-1", ReasonCancelled)
	assert.Equal(t, 90*time.Second, summary.Elapsed)
}

func TestTracker_EmitsOneEventPerCompletion(t *testing.T) {
	clock := newFakeClock()
	progress := make(chan ProgressEvent, 8)
	tracker := NewTracker(clock, logger.NewTestLogger(t), 0, progress)

	tracker.Record(domain.DeliveryStatusSent)
	tracker.Record(domain.DeliveryStatusFailed)
	tracker.Record(domain.DeliveryStatusSuppressed)
	tracker.Summarize("camp-1", ReasonFinished)

	var events []ProgressEvent
	for ev := range progress {
		events = append(events, ev)
	}

	require.Len(t, events, 4, "one event per recipient plus the final one")

	assert.Equal(t, ProgressEvent{Processed: 1, Sent: 1}, events[0])
	assert.Equal(t, ProgressEvent{Processed: 2, Sent: 1, Failed: 1}, events[1])
	assert.Equal(t, ProgressEvent{Processed: 3, Sent: 1, Failed: 1, Suppressed: 1}, events[2])

	final := events[3]
	assert.True(t, final.Done)
	assert.Equal(t, ReasonFinished, final.Reason)
	assert.Equal(t, 3, final.Processed)
}

func TestTracker_NoChannelStillCounts(t *testing.T) {
	clock := newFakeClock()
	tracker := NewTracker(clock, logger.NewTestLogger(t), 0, nil)

	tracker.Record(domain.DeliveryStatusSent)

	summary := tracker.Summarize("camp-1", ReasonFinished)
	assert.Equal(t, 1, summary.Sent)
}

func TestSummary_String(t *testing.T) {
	s := &Summary{
		CampaignID: "camp-1",
		Reason:     ReasonFinished,
		Processed:  3,
		Sent:       2,
		Failed:     1,
		Elapsed:    1500 * time.Millisecond,
	}
	out := s.String()
	assert.Contains(t, out, "camp-1")
	assert.Contains(t, out, "sent=2")
	assert.Contains(t, out, "failed=1")
}
