// Command pennant polls one boolean flag across several feature flag
// vendors and prints what each answers, and how fast, until interrupted.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/OrlandoBitencourt/pennant"
	"github.com/OrlandoBitencourt/pennant/internal/logger"
	"github.com/OrlandoBitencourt/pennant/internal/provider"
	"github.com/OrlandoBitencourt/pennant/internal/provider/configcat"
	"github.com/OrlandoBitencourt/pennant/internal/provider/devcycle"
	"github.com/OrlandoBitencourt/pennant/internal/provider/featbit"
	"github.com/OrlandoBitencourt/pennant/internal/provider/flagsmith"
	"github.com/OrlandoBitencourt/pennant/internal/provider/launchdarkly"
	"github.com/OrlandoBitencourt/pennant/internal/provider/openfeature"
	"github.com/OrlandoBitencourt/pennant/internal/report"
	"github.com/OrlandoBitencourt/pennant/internal/telemetry"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := loadConfig(nil)
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.loggerOptions()...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg, log, os.Stdout)
	stop()
	if err != nil {
		log.Error("pennant stopped", "error", err)
		os.Exit(1)
	}
}

// run blocks until ctx is cancelled. It returns configuration and
// provider-init errors; evaluation errors only show up in the output.
func run(ctx context.Context, cfg config, log *slog.Logger, out io.Writer) error {
	tel, err := telemetry.NewOTel()
	if err != nil {
		return fmt.Errorf("create telemetry: %w", err)
	}

	opts, err := clientOptions(cfg, log, out)
	if err != nil {
		return err
	}
	opts = append(opts, pennant.WithTelemetry(tel))

	client, err := pennant.New(opts...)
	if err != nil {
		return err
	}

	log.Info("starting", "providers", client.Providers(), "flag", cfg.FlagKey)
	return client.Run(ctx)
}

func clientOptions(cfg config, log *slog.Logger, out io.Writer) ([]pennant.Option, error) {
	regs, err := registrations(cfg, logger.NewLogrus(cfg.loggerOptions()...))
	if err != nil {
		return nil, err
	}

	user := pennant.NewUser(cfg.User.ID,
		pennant.UserEmail(cfg.User.Email),
		pennant.UserCountry(cfg.User.Country),
		pennant.UserTenantID(cfg.User.Tenant),
		pennant.UserRole(cfg.User.Role),
	)

	opts := []pennant.Option{
		pennant.WithSecretsFile(cfg.SecretsFile),
		pennant.WithFlagKey(cfg.FlagKey),
		pennant.WithUser(user),
		pennant.WithPollInterval(cfg.PollInterval),
		pennant.WithEvaluationTimeout(cfg.EvaluationTimeout),
		pennant.WithInitTimeout(cfg.InitTimeout),
		pennant.WithLogger(log),
		pennant.WithReporter(report.NewConsole(out)),
		pennant.WithReporter(report.NewLog(log, slog.LevelDebug)),
	}
	for _, reg := range regs {
		opts = append(opts, pennant.WithProvider(reg))
	}
	if cfg.CircuitThreshold > 0 {
		opts = append(opts, pennant.WithCircuitBreaker(cfg.CircuitThreshold, cfg.CircuitTimeout))
	}
	if cfg.AdminPort > 0 {
		opts = append(opts, pennant.WithAdminServer(pennant.AdminConfig{Port: cfg.AdminPort}))
	}
	if cfg.WebhookPort > 0 {
		opts = append(opts, pennant.WithWebhook(pennant.WebhookConfig{
			Port:   cfg.WebhookPort,
			Secret: cfg.WebhookSecret,
		}))
	}
	return opts, nil
}

// registrations maps provider names to adapters, keeping the listed order.
func registrations(cfg config, sdkLog *logrus.Logger) ([]pennant.Registration, error) {
	regs := make([]pennant.Registration, 0, len(cfg.Providers))
	for _, name := range cfg.Providers {
		switch name {
		case "configcat":
			cc := configcat.DefaultConfig()
			cc.PollInterval = cfg.ConfigCatPollInterval
			cc.Logger = sdkLog
			regs = append(regs, configcat.Registration(cc))
		case "launchdarkly":
			regs = append(regs, launchdarkly.Registration(launchdarkly.DefaultConfig()))
		case "flagsmith":
			regs = append(regs, flagsmith.Registration(flagsmith.DefaultConfig()))
		case "devcycle":
			regs = append(regs, devcycle.Registration(devcycle.DefaultConfig()))
		case "featbit":
			regs = append(regs, featbit.Registration(featbit.Config{
				StreamingURL: cfg.FeatBitStreamingURL,
				EventURL:     cfg.FeatBitEventURL,
			}))
		case "openfeature":
			regs = append(regs, openfeature.Registration(openfeature.Config{
				Domain:     openfeature.DefaultDomain,
				Credential: provider.DevCycleCredential,
				Source:     devcycle.FeatureProviderSource(devcycle.DefaultConfig()),
			}))
		default:
			return nil, pennant.NewConfigurationError("PENNANT_PROVIDERS", fmt.Sprintf("unknown provider %q", name))
		}
	}
	return regs, nil
}
