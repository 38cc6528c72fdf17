// Package pennant polls one boolean feature flag across several feature
// flag vendors side by side and reports what each of them answers, and how
// fast, on every iteration.
package pennant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/OrlandoBitencourt/pennant/internal/circuit"
	"github.com/OrlandoBitencourt/pennant/internal/domain"
	"github.com/OrlandoBitencourt/pennant/internal/keystore"
	"github.com/OrlandoBitencourt/pennant/internal/logger"
	"github.com/OrlandoBitencourt/pennant/internal/poller"
	"github.com/OrlandoBitencourt/pennant/internal/registry"
	"github.com/OrlandoBitencourt/pennant/internal/report"
	"github.com/OrlandoBitencourt/pennant/internal/server"
	"github.com/OrlandoBitencourt/pennant/internal/storage"
	"github.com/OrlandoBitencourt/pennant/internal/telemetry"
)

var (
	// ErrNotStarted is returned by operations that need Start first.
	ErrNotStarted = errors.New("pennant client not started")

	// ErrStopped is returned by Start after Stop.
	ErrStopped = errors.New("pennant client stopped")
)

// Client owns the providers, the polling loop and the optional servers.
type Client struct {
	cfg       clientConfig
	registry  *registry.Registry
	logger    *slog.Logger
	telemetry telemetry.Provider

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	poller  *poller.Poller
	store   *storage.MemoryStorage
	started bool
	stopped bool
}

// New validates the configuration and registers the providers. No vendor
// client is created until Start.
//
// Example:
//
//	client, err := pennant.New(
//	    pennant.WithSecretsFile("secrets.env"),
//	    pennant.WithUser(user),
//	    pennant.WithProvider(configcat.Registration(configcat.DefaultConfig())),
//	    pennant.WithReporter(report.NewConsole(os.Stdout)),
//	)
func New(opts ...Option) (*Client, error) {
	cfg := clientConfig{config: DefaultConfig()}
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, domain.NewConfigurationErrorWithCause("option", "invalid option", err)
		}
	}

	if err := cfg.config.Validate(); err != nil {
		return nil, err
	}
	if len(cfg.registrations) == 0 {
		return nil, NewConfigurationError("providers", "at least one provider is required")
	}
	if cfg.credentials == nil {
		cfg.credentials = keystore.New(cfg.config.SecretsFile)
	}
	if cfg.logger == nil {
		cfg.logger = logger.Discard()
	}
	if cfg.telemetry == nil {
		cfg.telemetry = telemetry.NewNoOp()
	}

	reg := registry.New(
		registry.WithInitTimeout(cfg.config.InitTimeout),
		registry.WithLogger(cfg.logger),
	)
	for _, r := range cfg.registrations {
		if err := reg.Register(r); err != nil {
			return nil, err
		}
	}

	return &Client{
		cfg:       cfg,
		registry:  reg,
		logger:    cfg.logger,
		telemetry: cfg.telemetry,
	}, nil
}

// Start initializes every provider, in registration order, and then starts
// the polling loop and any configured servers in the background. If any
// provider fails to initialize, none is kept and the error is returned.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return ErrStopped
	}
	if c.started {
		return nil
	}

	if err := c.registry.Start(ctx, c.cfg.credentials); err != nil {
		return err
	}
	providers, err := c.registry.Providers()
	if err != nil {
		return err
	}

	store, err := storage.NewMemoryStorage(storage.DefaultConfig())
	if err != nil {
		_ = c.registry.Close()
		return fmt.Errorf("create result store: %w", err)
	}

	p, err := poller.New(providers, c.cfg.config.FlagKey, c.cfg.user, c.pollerOptions(store)...)
	if err != nil {
		_ = c.registry.Close()
		_ = store.Close()
		return err
	}

	c.store = store
	c.poller = p
	c.ctx, c.cancel = context.WithCancel(context.WithoutCancel(ctx))
	c.started = true

	c.goRun("poller", p.Run)
	if c.cfg.adminEnabled {
		admin := server.NewAdminServer(p, store, c.cfg.adminPort, c.logger)
		c.goRun("admin server", admin.Run)
	}
	if c.cfg.webhookEnabled {
		webhook := server.NewWebhookServer(p, c.cfg.webhookPort, c.cfg.webhookSecret, c.logger)
		c.goRun("webhook server", webhook.Run)
	}

	return nil
}

func (c *Client) pollerOptions(store storage.ResultStore) []poller.Option {
	cfg := c.cfg.config
	opts := []poller.Option{
		poller.WithInterval(cfg.Polling.Interval),
		poller.WithEvaluationTimeout(cfg.Polling.EvaluationTimeout),
		poller.WithDefaultValue(cfg.DefaultValue),
		poller.WithStore(store),
		poller.WithTelemetry(c.telemetry),
		poller.WithLogger(c.logger),
	}
	if cfg.CircuitBreaker.Threshold > 0 {
		opts = append(opts, poller.WithCircuitBreaker(circuit.Config{
			MaxFailures: cfg.CircuitBreaker.Threshold,
			Timeout:     cfg.CircuitBreaker.Timeout,
		}))
	}
	switch len(c.cfg.reporters) {
	case 0:
	case 1:
		opts = append(opts, poller.WithReporter(c.cfg.reporters[0]))
	default:
		opts = append(opts, poller.WithReporter(report.Multi(c.cfg.reporters)))
	}
	return opts
}

func (c *Client) goRun(name string, run func(context.Context) error) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := run(c.ctx); err != nil {
			c.logger.Error("background task failed", "task", name, "error", err)
		}
	}()
}

// Run starts the client, blocks until ctx is cancelled and then stops it.
// It returns nil after a cancellation and the Start error otherwise.
func (c *Client) Run(ctx context.Context) error {
	if err := c.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return c.Stop()
}

// Stop ends polling, shuts the servers down and closes every provider.
// Later calls are no-ops.
func (c *Client) Stop() error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	started := c.started
	c.mu.Unlock()

	if !started {
		return c.registry.Close()
	}

	c.cancel()
	c.wg.Wait()

	var errs []error
	if err := c.registry.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := c.store.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := c.telemetry.Shutdown(context.Background()); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c *Client) activePoller() (*poller.Poller, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started || c.stopped {
		return nil, ErrNotStarted
	}
	return c.poller, nil
}

// RunOnce runs one iteration synchronously. It never overlaps with the
// background loop.
func (c *Client) RunOnce(ctx context.Context) ([]Result, error) {
	p, err := c.activePoller()
	if err != nil {
		return nil, err
	}
	return p.RunOnce(ctx)
}

// Trigger starts the next background iteration now.
func (c *Client) Trigger() error {
	p, err := c.activePoller()
	if err != nil {
		return err
	}
	p.Trigger()
	return nil
}

// Results returns the latest result of every provider.
func (c *Client) Results(ctx context.Context) ([]Result, error) {
	c.mu.Lock()
	store := c.store
	stopped := c.stopped
	c.mu.Unlock()

	if store == nil || stopped {
		return nil, ErrNotStarted
	}
	return store.List(ctx)
}

// Stats returns a snapshot of the polling loop.
func (c *Client) Stats() (Stats, error) {
	p, err := c.activePoller()
	if err != nil {
		return Stats{}, err
	}
	return p.Stats(), nil
}

// Providers returns the registered provider names in order.
func (c *Client) Providers() []string {
	return c.registry.Names()
}
