package campaign

import (
	"fmt"
	"sync"
	"time"

	"github.com/mailcannon/mailcannon/internal/domain"
	"github.com/mailcannon/mailcannon/pkg/logger"
)

// Reason explains why a campaign run ended.
type Reason string

const (
	// ReasonFinished: the recipient source was drained.
	ReasonFinished Reason = "finished"

	// ReasonCancelled: the run's context was cancelled mid-flight.
	ReasonCancelled Reason = "cancelled"

	// ReasonQuotaExhausted: the daily quota ran out before the source did.
	ReasonQuotaExhausted Reason = "quota_exhausted"

	// ReasonErrored: the source or storage failed in a way that made
	// continuing pointless.
	ReasonErrored Reason = "errored"
)

// Summary is the final account of one campaign run.
type Summary struct {
	CampaignID string        `json:"campaign_id"`
	Reason     Reason        `json:"reason"`
	Processed  int           `json:"processed"`
	Sent       int           `json:"sent"`
	Failed     int           `json:"failed"`
	Suppressed int           `json:"suppressed"`
	DryRun     int           `json:"dry_run"`
	Elapsed    time.Duration `json:"elapsed"`
}

// ProgressEvent is one entry in a campaign's progress stream. The stream
// carries one event per completed recipient, in completion order, followed by
// a final event with Done set and the run's Reason.
type ProgressEvent struct {
	Processed  int `json:"processed"`
	Sent       int `json:"sent"`
	Failed     int `json:"failed"`
	Suppressed int `json:"suppressed"`
	DryRun     int `json:"dry_run"`

	Done   bool   `json:"done,omitempty"`
	Reason Reason `json:"reason,omitempty"`
}

// Tracker accumulates per-status counts while workers run, emits the progress
// stream, and logs progress at a bounded rate.
type Tracker struct {
	clock       Clock
	logger      logger.Logger
	logInterval time.Duration
	progress    chan<- ProgressEvent

	mu         sync.Mutex
	startTime  time.Time
	lastLog    time.Time
	sent       int
	failed     int
	suppressed int
	dryRun     int
}

// NewTracker creates a tracker and stamps the run's start time. The progress
// channel may be nil; when set, the tracker owns it and closes it from
// Summarize.
func NewTracker(clock Clock, log logger.Logger, logInterval time.Duration, progress chan<- ProgressEvent) *Tracker {
	now := clock.Now()
	return &Tracker{
		clock:       clock,
		logger:      log,
		logInterval: logInterval,
		progress:    progress,
		startTime:   now,
		lastLog:     now,
	}
}

func (t *Tracker) snapshotLocked() ProgressEvent {
	return ProgressEvent{
		Processed:  t.sent + t.failed + t.suppressed + t.dryRun,
		Sent:       t.sent,
		Failed:     t.failed,
		Suppressed: t.suppressed,
		DryRun:     t.dryRun,
	}
}

// Record counts one finished recipient pipeline by its terminal status and
// emits a progress event. Emission happens under the tracker lock, which is
// what serializes the stream into completion order.
func (t *Tracker) Record(status domain.DeliveryStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch status {
	case domain.DeliveryStatusSent:
		t.sent++
	case domain.DeliveryStatusSuppressed:
		t.suppressed++
	case domain.DeliveryStatusDryRun:
		t.dryRun++
	default:
		t.failed++
	}

	if t.progress != nil {
		t.progress <- t.snapshotLocked()
	}

	if t.logInterval > 0 && t.clock.Since(t.lastLog) >= t.logInterval {
		t.lastLog = t.clock.Now()
		t.logger.WithFields(map[string]interface{}{
			"processed":  t.sent + t.failed + t.suppressed + t.dryRun,
			"sent":       t.sent,
			"failed":     t.failed,
			"suppressed": t.suppressed,
		}).Info("Campaign progress")
	}
}

// Summarize closes the run: it emits the final progress event, closes the
// stream, and returns the final counts.
func (t *Tracker) Summarize(campaignID string, reason Reason) *Summary {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.progress != nil {
		final := t.snapshotLocked()
		final.Done = true
		final.Reason = reason
		t.progress <- final
		close(t.progress)
		t.progress = nil
	}

	return &Summary{
		CampaignID: campaignID,
		Reason:     reason,
		Processed:  t.sent + t.failed + t.suppressed + t.dryRun,
		Sent:       t.sent,
		Failed:     t.failed,
		Suppressed: t.suppressed,
		DryRun:     t.dryRun,
		Elapsed:    t.clock.Since(t.startTime),
	}
}

// String renders a one-line human summary.
func (s *Summary) String() string {
	return fmt.Sprintf("campaign %s %s: processed=%d sent=%d failed=%d suppressed=%d dry_run=%d elapsed=%s",
		s.CampaignID, s.Reason, s.Processed, s.Sent, s.Failed, s.Suppressed, s.DryRun, s.Elapsed.Round(time.Millisecond))
}
