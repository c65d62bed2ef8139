// Package sweep drives a benchmark sweep: a warm-up pass followed by a
// sequence of measured load-generator runs at increasing QPS, with a
// cool-down between every phase.
package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/qps-sweep/qps-sweep/internal/config"
	"github.com/qps-sweep/qps-sweep/internal/loadgen"
	"github.com/qps-sweep/qps-sweep/internal/logging"
	"github.com/qps-sweep/qps-sweep/internal/metrics"
	"github.com/qps-sweep/qps-sweep/internal/results"
)

// Plan describes one sweep: which model and endpoint to load, where the
// artifacts go, and which QPS values to measure.
type Plan struct {
	Model     string
	BaseURL   string
	OutputKey string
	QPSValues []string
}

// Validate checks the plan before any load is generated.
func (p Plan) Validate() error {
	if p.Model == "" {
		return fmt.Errorf("model is required")
	}
	if p.BaseURL == "" {
		return fmt.Errorf("base URL is required")
	}
	if p.OutputKey == "" {
		return fmt.Errorf("output key is required")
	}
	if len(p.QPSValues) == 0 {
		return fmt.Errorf("at least one QPS value is required")
	}
	for _, qps := range p.QPSValues {
		if _, err := config.ParseQPS(qps); err != nil {
			return err
		}
	}
	return nil
}

// OutputFile returns the artifact path for one measured QPS run. The QPS
// text is embedded verbatim, so "1.0" and "1" name different files.
func (p Plan) OutputFile(qps string) string {
	return fmt.Sprintf("%s_output_%s.csv", p.OutputKey, qps)
}

// ReadinessChecker gates the sweep on the endpoint being up.
type ReadinessChecker interface {
	WaitReady(ctx context.Context) error
}

// Driver runs sweeps.
type Driver struct {
	runner loadgen.Runner
	cfg    config.DriverConfig
	store  *results.Store
	prober ReadinessChecker
	logger *slog.Logger

	sleep   func(ctx context.Context, d time.Duration) error
	analyze func(path string) (results.RunSummary, error)
}

// Option configures a Driver
type Option func(*Driver)

// WithStore enables run-history recording.
func WithStore(s *results.Store) Option {
	return func(d *Driver) {
		d.store = s
	}
}

// WithProber gates the sweep on an endpoint readiness check.
func WithProber(p ReadinessChecker) Option {
	return func(d *Driver) {
		d.prober = p
	}
}

// WithLogger sets a custom logger
func WithLogger(l *slog.Logger) Option {
	return func(d *Driver) {
		d.logger = l
	}
}

// WithSleep replaces the cool-down sleep, for tests.
func WithSleep(f func(ctx context.Context, d time.Duration) error) Option {
	return func(d *Driver) {
		d.sleep = f
	}
}

// WithAnalyzer replaces the artifact analyzer, for tests.
func WithAnalyzer(f func(path string) (results.RunSummary, error)) Option {
	return func(d *Driver) {
		d.analyze = f
	}
}

// NewDriver creates a sweep driver.
func NewDriver(runner loadgen.Runner, cfg config.DriverConfig, opts ...Option) *Driver {
	d := &Driver{
		runner:  runner,
		cfg:     cfg,
		logger:  slog.Default(),
		sleep:   sleepCtx,
		analyze: results.AnalyzeFile,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Run executes a sweep: readiness probe, warm-up, then one measured run per
// QPS value, with a cool-down after every generator invocation. A failed
// phase is recorded and, unless continue_on_fail is disabled, the remaining
// phases still run.
func (d *Driver) Run(ctx context.Context, plan Plan) (*results.Sweep, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	sweep := &results.Sweep{
		Model:     plan.Model,
		BaseURL:   plan.BaseURL,
		OutputKey: plan.OutputKey,
		Status:    results.RunStatusRunning,
	}
	return d.Resume(ctx, sweep, plan)
}

// Resume executes a sweep whose record may already exist, as when the
// manager registers it before handing off to a background goroutine.
func (d *Driver) Resume(ctx context.Context, sweep *results.Sweep, plan Plan) (*results.Sweep, error) {
	runs, err := d.record(ctx, sweep, plan)
	if err != nil {
		return nil, err
	}

	logger := d.logger.With("sweep_id", sweep.ID, "model", plan.Model)
	logger.Info("starting sweep",
		"base_url", plan.BaseURL,
		"output_key", plan.OutputKey,
		"qps_values", plan.QPSValues)
	metrics.RecordSweepStarted(d.mode())

	if d.prober != nil {
		if err := d.prober.WaitReady(ctx); err != nil {
			d.finish(ctx, sweep, runs, 0, results.RunStatusFailed)
			return sweep, fmt.Errorf("endpoint readiness: %w", err)
		}
	}

	// Warm-up pass. The artifact lands in a scratch path and is never
	// inspected; its only job is to get caches and batch schedulers hot. A
	// failed warm-up does not gate the measured runs unless continue_on_fail
	// is disabled, and the cool-down follows either way.
	warmup := loadgen.Invocation{
		Model:       plan.Model,
		BaseURL:     plan.BaseURL,
		QPS:         d.cfg.WarmupQPS,
		Output:      d.cfg.WarmupScratch,
		DatasetFile: d.cfg.WarmupDataset,
		LogInterval: d.cfg.LogInterval,
	}
	failed := false
	logger.Info("warming up", "qps", warmup.QPS)
	if err := d.runPhase(ctx, runs[0], warmup, "warmup", false); err != nil {
		if ctx.Err() != nil {
			d.finish(ctx, sweep, runs, 1, results.RunStatusFailed)
			return sweep, ctx.Err()
		}
		failed = true
		logger.Error("warm-up failed", "error", err)
		if !d.cfg.ContinueOnFail {
			d.finish(ctx, sweep, runs, 1, results.RunStatusFailed)
			return sweep, fmt.Errorf("warm-up failed: %w", err)
		}
	}
	if err := d.sleep(ctx, d.cfg.Cooldown); err != nil {
		d.finish(ctx, sweep, runs, 1, results.RunStatusFailed)
		return sweep, err
	}

	// Measured runs
	for i, qps := range plan.QPSValues {
		run := runs[i+1]
		inv := loadgen.Invocation{
			Model:       plan.Model,
			BaseURL:     plan.BaseURL,
			QPS:         qps,
			Output:      plan.OutputFile(qps),
			DatasetFile: d.cfg.RunDataset,
			LogInterval: d.cfg.LogInterval,
			Duration:    d.cfg.RunDuration,
		}
		logger.Info("running load", "qps", qps, "output", inv.Output)
		if err := d.runPhase(ctx, run, inv, "run", true); err != nil {
			if ctx.Err() != nil {
				d.finish(ctx, sweep, runs, i+2, results.RunStatusFailed)
				return sweep, ctx.Err()
			}
			failed = true
			logger.Error("run failed", "qps", qps, "error", err)
			if !d.cfg.ContinueOnFail {
				d.finish(ctx, sweep, runs, i+2, results.RunStatusFailed)
				return sweep, fmt.Errorf("run at QPS %s failed: %w", qps, err)
			}
		}
		if err := d.sleep(ctx, d.cfg.Cooldown); err != nil {
			d.finish(ctx, sweep, runs, i+2, results.RunStatusFailed)
			return sweep, err
		}
	}

	status := results.RunStatusSuccess
	if failed {
		status = results.RunStatusFailed
	}
	d.finish(ctx, sweep, runs, len(runs), status)
	logger.Info("sweep complete", "status", status)
	return sweep, nil
}

func (d *Driver) mode() string {
	if _, ok := d.runner.(*loadgen.LocalRunner); ok {
		return "local"
	}
	return "remote"
}

// record creates the sweep and its pending runs in the store. With no store
// configured it still builds the in-memory run records the driver tracks.
func (d *Driver) record(ctx context.Context, sweep *results.Sweep, plan Plan) ([]*results.SweepRun, error) {
	if d.store != nil && sweep.ID == "" {
		if err := d.store.CreateSweep(ctx, sweep); err != nil {
			return nil, fmt.Errorf("failed to record sweep: %w", err)
		}
	}
	if d.store != nil && sweep.Status != results.RunStatusRunning {
		sweep.Status = results.RunStatusRunning
		if err := d.store.MarkSweepStatus(ctx, sweep.ID, results.RunStatusRunning); err != nil {
			d.logger.Warn("failed to mark sweep running", "sweep_id", sweep.ID, "error", err)
		}
	}

	runs := make([]*results.SweepRun, 0, len(plan.QPSValues)+1)
	warmup := &results.SweepRun{
		SweepID: sweep.ID,
		Phase:   "warmup",
		QPS:     d.cfg.WarmupQPS,
		Output:  d.cfg.WarmupScratch,
		Status:  results.RunStatusPending,
	}
	runs = append(runs, warmup)
	for _, qps := range plan.QPSValues {
		runs = append(runs, &results.SweepRun{
			SweepID: sweep.ID,
			Phase:   "run",
			QPS:     qps,
			Output:  plan.OutputFile(qps),
			Status:  results.RunStatusPending,
		})
	}

	if d.store != nil {
		for _, run := range runs {
			if err := d.store.CreateRun(ctx, run); err != nil {
				return nil, fmt.Errorf("failed to record run: %w", err)
			}
		}
	}
	return runs, nil
}

// runPhase executes one generator invocation and records its outcome. The
// run ID rides on the context so the runner's logs carry it.
func (d *Driver) runPhase(ctx context.Context, run *results.SweepRun, inv loadgen.Invocation, phase string, inspect bool) error {
	if run.ID != "" {
		ctx = logging.WithRunID(ctx, run.ID)
	}
	if d.store != nil {
		if err := d.store.MarkRunRunning(ctx, run.ID); err != nil {
			d.logger.Warn("failed to mark run running", "run_id", run.ID, "error", err)
		}
	}
	run.Status = results.RunStatusRunning

	start := time.Now()
	err := d.runner.Run(ctx, inv)
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	metrics.RecordGeneratorInvocation(phase, outcome, time.Since(start))

	if err != nil {
		run.Status = results.RunStatusFailed
		run.FailureReason = err.Error()
		if d.store != nil {
			// Cancellation must not lose the failure record
			storeCtx := context.WithoutCancel(ctx)
			if serr := d.store.MarkRunFailed(storeCtx, run.ID, err.Error()); serr != nil {
				d.logger.Warn("failed to mark run failed", "run_id", run.ID, "error", serr)
			}
		}
		return err
	}

	run.Status = results.RunStatusSuccess
	var summary results.RunSummary
	if inspect {
		s, aerr := d.analyze(inv.Output)
		if aerr != nil {
			d.logger.Warn("could not analyze artifact", "output", inv.Output, "error", aerr)
		} else {
			summary = s
			run.TotalRequests = s.TotalRequests
			run.Throughput = s.Throughput
			run.AvgTTFT = s.AvgTTFT
			run.P95TTFT = s.P95TTFT
		}
	}
	if d.store != nil {
		if serr := d.store.MarkRunSuccess(context.WithoutCancel(ctx), run.ID, summary); serr != nil {
			d.logger.Warn("failed to mark run success", "run_id", run.ID, "error", serr)
		}
	}
	return nil
}

// finish marks any runs that never started as skipped and stamps the sweep's
// terminal status.
func (d *Driver) finish(ctx context.Context, sweep *results.Sweep, runs []*results.SweepRun, completed int, status results.RunStatus) {
	// The sweep may be finishing because ctx was cancelled; the terminal
	// records still have to land.
	ctx = context.WithoutCancel(ctx)
	for _, run := range runs[completed:] {
		run.Status = results.RunStatusSkipped
		if d.store != nil {
			if err := d.store.MarkRunSkipped(ctx, run.ID); err != nil {
				d.logger.Warn("failed to mark run skipped", "run_id", run.ID, "error", err)
			}
		}
	}
	sweep.Status = status
	if d.store != nil {
		if err := d.store.MarkSweepStatus(ctx, sweep.ID, status); err != nil {
			d.logger.Warn("failed to mark sweep status", "sweep_id", sweep.ID, "error", err)
		}
	}
	metrics.RecordSweepCompleted(string(status))
}
