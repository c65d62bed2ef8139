package loadgen

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
)

// Runner executes a load-generator invocation and blocks until it finishes.
type Runner interface {
	Run(ctx context.Context, inv Invocation) error
}

// LocalRunner executes the generator as a local subprocess.
type LocalRunner struct {
	command string
	args    []string // fixed leading args, e.g. the script path
	workDir string
	logger  *slog.Logger
}

// LocalOption configures a LocalRunner
type LocalOption func(*LocalRunner)

// WithWorkDir sets the working directory for the generator process
func WithWorkDir(dir string) LocalOption {
	return func(r *LocalRunner) {
		r.workDir = dir
	}
}

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) LocalOption {
	return func(r *LocalRunner) {
		r.logger = logger
	}
}

// NewLocalRunner creates a runner that starts command with the given fixed
// leading arguments, e.g. ("python3", []string{"sharegpt-qa.py"}).
func NewLocalRunner(command string, args []string, opts ...LocalOption) *LocalRunner {
	r := &LocalRunner{
		command: command,
		args:    args,
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Run invokes the generator and waits for it to exit. The generator's own
// progress logging goes straight to this process's stdout/stderr; the driver
// never inspects it.
func (r *LocalRunner) Run(ctx context.Context, inv Invocation) error {
	if err := inv.Validate(); err != nil {
		return fmt.Errorf("invalid invocation: %w", err)
	}

	argv := append(append([]string{}, r.args...), inv.Args()...)

	cmd := exec.CommandContext(ctx, r.command, argv...)
	cmd.Dir = r.workDir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	r.logger.InfoContext(ctx, "invoking load generator",
		slog.String("command", r.command),
		slog.String("qps", inv.QPS),
		slog.String("output", inv.Output))

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("load generator interrupted: %w", ctx.Err())
		}
		return fmt.Errorf("load generator failed: %w", err)
	}
	return nil
}
