package service

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/asaskevich/govalidator"

	"github.com/mailcannon/mailcannon/config"
	"github.com/mailcannon/mailcannon/internal/domain"
	"github.com/mailcannon/mailcannon/pkg/logger"
)

// MaxRecipientsFileBytes bounds the accepted recipients file size.
const MaxRecipientsFileBytes = 100 << 20

// preflightBudget bounds the whole preflight run.
const preflightBudget = 10 * time.Second

// PreflightCheck is one named validation with its outcome.
type PreflightCheck struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

// PreflightResult aggregates all checks for one campaign.
type PreflightResult struct {
	Checks []PreflightCheck `json:"checks"`
}

// Passed reports whether every check succeeded.
func (r *PreflightResult) Passed() bool {
	for _, c := range r.Checks {
		if !c.OK {
			return false
		}
	}
	return true
}

// Failures returns the failed checks.
func (r *PreflightResult) Failures() []PreflightCheck {
	var failed []PreflightCheck
	for _, c := range r.Checks {
		if !c.OK {
			failed = append(failed, c)
		}
	}
	return failed
}

// PreflightInput names what one campaign run is about to use.
type PreflightInput struct {
	RecipientsPath string
	TemplateID     string
	DryRun         bool
}

// PreflightService validates a campaign's inputs before the first send.
type PreflightService struct {
	cfg      *config.Config
	renderer domain.TemplateRenderer
	quota    domain.QuotaStore
	logger   logger.Logger
}

// NewPreflightService creates a preflight validator.
func NewPreflightService(cfg *config.Config, renderer domain.TemplateRenderer, quota domain.QuotaStore, log logger.Logger) *PreflightService {
	return &PreflightService{
		cfg:      cfg,
		renderer: renderer,
		quota:    quota,
		logger:   log,
	}
}

// Run executes every check and returns the aggregate. It never sends
// anything; a failed check means the campaign should not start.
func (s *PreflightService) Run(ctx context.Context, input PreflightInput) (*PreflightResult, error) {
	ctx, cancel := context.WithTimeout(ctx, preflightBudget)
	defer cancel()

	result := &PreflightResult{}

	result.Checks = append(result.Checks, s.checkAPIKey())
	result.Checks = append(result.Checks, s.checkFromAddress())
	result.Checks = append(result.Checks, s.checkTemplate(input.TemplateID))
	result.Checks = append(result.Checks, s.checkRecipientsFile(input.RecipientsPath))
	result.Checks = append(result.Checks, s.checkQuota(ctx, input.DryRun))
	result.Checks = append(result.Checks, s.checkWebhookSecret())

	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("preflight aborted: %w", err)
	}

	return result, nil
}

func (s *PreflightService) checkAPIKey() PreflightCheck {
	check := PreflightCheck{Name: "api_key"}
	if s.cfg.Provider.APIKey == "" {
		check.Detail = "RESEND_API_KEY is not set"
		return check
	}
	check.OK = true
	return check
}

func (s *PreflightService) checkFromAddress() PreflightCheck {
	check := PreflightCheck{Name: "from_address"}
	if !govalidator.IsEmail(s.cfg.Provider.FromEmail) {
		check.Detail = fmt.Sprintf("FROM_EMAIL %q is not a valid address", s.cfg.Provider.FromEmail)
		return check
	}
	check.OK = true
	return check
}

func (s *PreflightService) checkTemplate(templateID string) PreflightCheck {
	check := PreflightCheck{Name: "template"}
	if templateID == "" {
		check.Detail = "template ID is required"
		return check
	}
	if !s.renderer.Exists(templateID) {
		check.Detail = fmt.Sprintf("template %q does not resolve under %s", templateID, s.cfg.Templates.Dir)
		return check
	}
	check.OK = true
	return check
}

func (s *PreflightService) checkRecipientsFile(path string) PreflightCheck {
	check := PreflightCheck{Name: "recipients_file"}

	info, err := os.Stat(path)
	if err != nil {
		check.Detail = fmt.Sprintf("cannot stat recipients file: %v", err)
		return check
	}
	if info.IsDir() {
		check.Detail = "recipients path is a directory"
		return check
	}
	if info.Size() == 0 {
		check.Detail = "recipients file is empty"
		return check
	}
	if info.Size() > MaxRecipientsFileBytes {
		check.Detail = fmt.Sprintf("recipients file is %d bytes, limit is %d", info.Size(), MaxRecipientsFileBytes)
		return check
	}

	file, err := os.Open(path)
	if err != nil {
		check.Detail = fmt.Sprintf("recipients file is not readable: %v", err)
		return check
	}
	file.Close()

	check.OK = true
	return check
}

func (s *PreflightService) checkQuota(ctx context.Context, dryRun bool) PreflightCheck {
	check := PreflightCheck{Name: "daily_quota"}

	if dryRun {
		check.OK = true
		check.Detail = "skipped in dry run"
		return check
	}

	usage, err := s.quota.UsedToday(ctx)
	if err != nil {
		check.Detail = fmt.Sprintf("cannot read quota: %v", err)
		return check
	}
	if usage.Used >= usage.Limit {
		check.Detail = fmt.Sprintf("daily quota exhausted: %d/%d used", usage.Used, usage.Limit)
		return check
	}

	check.OK = true
	check.Detail = fmt.Sprintf("%d/%d used", usage.Used, usage.Limit)
	return check
}

func (s *PreflightService) checkWebhookSecret() PreflightCheck {
	check := PreflightCheck{Name: "webhook_secret", OK: true}
	if s.cfg.Webhook.Secret == "" {
		check.Detail = "WEBHOOK_SECRET is not set; delivery events will not be ingested"
	}
	return check
}
