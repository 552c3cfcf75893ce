package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/mailcannon/mailcannon/config"
	"github.com/mailcannon/mailcannon/internal/app"
	"github.com/mailcannon/mailcannon/internal/service"
	"github.com/mailcannon/mailcannon/internal/service/campaign"
	"github.com/mailcannon/mailcannon/pkg/logger"
)

// Exit codes: 0 success, 2 preflight or input failure, 3 campaign ended
// abnormally, 130 interrupted.
const (
	exitOK          = 0
	exitUsage       = 2
	exitFailed      = 3
	exitInterrupted = 130
)

var osExit = os.Exit

func main() {
	osExit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) < 1 {
		usage()
		return exitUsage
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return exitUsage
	}

	appLogger := logger.NewLoggerWithLevel(cfg.LogLevel)

	switch args[0] {
	case "run-campaign":
		return runCampaign(cfg, appLogger, args[1:])
	case "serve-webhooks":
		return serveWebhooks(cfg, appLogger, args[1:])
	default:
		usage()
		return exitUsage
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage:
  mailcannon run-campaign -campaign <id> -recipients <path.csv> -template <id> [-dry-run] [-concurrency N]
  mailcannon serve-webhooks [-bind host:port]`)
}

func runCampaign(cfg *config.Config, appLogger logger.Logger, args []string) int {
	flags := flag.NewFlagSet("run-campaign", flag.ContinueOnError)
	campaignID := flags.String("campaign", "", "campaign identifier (required)")
	recipients := flags.String("recipients", "", "path to the recipients CSV (required)")
	templateID := flags.String("template", "", "template identifier (required)")
	dryRun := flags.Bool("dry-run", false, "walk the pipeline without sending")
	concurrency := flags.Int("concurrency", 0, "in-flight pipeline bound (0 uses the configured default)")

	if err := flags.Parse(args); err != nil {
		return exitUsage
	}
	if *campaignID == "" || *recipients == "" || *templateID == "" {
		flags.Usage()
		return exitUsage
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application := app.NewApp(cfg, app.WithLogger(appLogger))
	if err := application.Initialize(ctx); err != nil {
		appLogger.WithField("error", err.Error()).Error("Initialization failed")
		return exitFailed
	}
	defer shutdownApp(application, appLogger)

	result, err := application.RunPreflight(ctx, service.PreflightInput{
		RecipientsPath: *recipients,
		TemplateID:     *templateID,
		DryRun:         *dryRun,
	})
	if err != nil {
		appLogger.WithField("error", err.Error()).Error("Preflight failed to run")
		return exitFailed
	}
	if !result.Passed() {
		for _, check := range result.Failures() {
			appLogger.WithFields(map[string]interface{}{
				"check":  check.Name,
				"detail": check.Detail,
			}).Error("Preflight check failed")
		}
		return exitUsage
	}

	summary, err := application.RunCampaign(ctx, *campaignID, *recipients, *templateID, *dryRun, *concurrency)
	if err != nil {
		appLogger.WithField("error", err.Error()).Error("Campaign run failed")
		return exitFailed
	}

	switch summary.Reason {
	case campaign.ReasonFinished:
		return exitOK
	case campaign.ReasonCancelled:
		return exitInterrupted
	default:
		return exitFailed
	}
}

func serveWebhooks(cfg *config.Config, appLogger logger.Logger, args []string) int {
	flags := flag.NewFlagSet("serve-webhooks", flag.ContinueOnError)
	bind := flags.String("bind", "", "listen address as host:port (overrides SERVER_HOST/SERVER_PORT)")

	if err := flags.Parse(args); err != nil {
		return exitUsage
	}
	if *bind != "" {
		host, port, err := splitBindAddr(*bind)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid -bind address %q: %v\n", *bind, err)
			return exitUsage
		}
		cfg.Server.Host = host
		cfg.Server.Port = port
	}

	ctx := context.Background()

	application := app.NewApp(cfg, app.WithLogger(appLogger))
	if err := application.Initialize(ctx); err != nil {
		appLogger.WithField("error", err.Error()).Error("Initialization failed")
		return exitFailed
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	serverError := make(chan error, 1)
	go func() {
		serverError <- application.Start()
	}()

	select {
	case err := <-serverError:
		shutdownApp(application, appLogger)
		if err != nil {
			appLogger.WithField("error", err.Error()).Error("Server error")
			return exitFailed
		}
		return exitOK
	case sig := <-shutdown:
		appLogger.WithField("signal", sig.String()).Info("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := application.Shutdown(shutdownCtx); err != nil {
			appLogger.WithField("error", err.Error()).Error("Graceful shutdown failed")
			return exitFailed
		}
		return exitInterrupted
	}
}

// splitBindAddr parses host:port, allowing an empty host for all interfaces.
func splitBindAddr(addr string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return "", 0, fmt.Errorf("port must be in 1..65535, got %q", portStr)
	}
	return host, port, nil
}

func shutdownApp(application *app.App, appLogger logger.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := application.Shutdown(ctx); err != nil {
		appLogger.WithField("error", err.Error()).Error("Shutdown failed")
	}
}
