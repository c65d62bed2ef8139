// Package probe checks that an OpenAI-compatible serving endpoint is ready
// to accept requests before load is pointed at it.
package probe

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/qps-sweep/qps-sweep/internal/metrics"
)

// Prober polls an endpoint's model list until it answers or the deadline
// passes.
type Prober struct {
	client   *openai.Client
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger
}

// Option configures a Prober
type Option func(*Prober)

// WithInterval sets the polling interval
func WithInterval(d time.Duration) Option {
	return func(p *Prober) {
		p.interval = d
	}
}

// WithTimeout sets the overall deadline for the endpoint to become ready
func WithTimeout(d time.Duration) Option {
	return func(p *Prober) {
		p.timeout = d
	}
}

// WithLogger sets a custom logger
func WithLogger(l *slog.Logger) Option {
	return func(p *Prober) {
		p.logger = l
	}
}

// New creates a Prober for the given base URL. The API key may be empty for
// unauthenticated local endpoints.
func New(baseURL, apiKey string, opts ...Option) *Prober {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL

	p := &Prober{
		client:   openai.NewClientWithConfig(cfg),
		interval: 5 * time.Second,
		timeout:  2 * time.Minute,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WaitReady blocks until the endpoint lists at least one model, the timeout
// expires, or the context is cancelled.
func (p *Prober) WaitReady(ctx context.Context) error {
	deadline := time.Now().Add(p.timeout)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	attempt := 0
	for {
		attempt++
		err := p.check(ctx)
		if err == nil {
			metrics.RecordProbeAttempt("success")
			p.logger.Info("endpoint ready", "attempts", attempt)
			return nil
		}
		metrics.RecordProbeAttempt("failure")
		p.logger.Debug("endpoint not ready", "attempt", attempt, "error", err)

		if time.Now().After(deadline) {
			return fmt.Errorf("endpoint not ready after %s: %w", p.timeout, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Check performs a single readiness check.
func (p *Prober) Check(ctx context.Context) error {
	return p.check(ctx)
}

func (p *Prober) check(ctx context.Context) error {
	models, err := p.client.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	if len(models.Models) == 0 {
		return fmt.Errorf("endpoint reports no models")
	}
	return nil
}
