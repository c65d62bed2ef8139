package remote

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/qps-sweep/qps-sweep/internal/loadgen"
)

// Runner executes load-generator invocations on the benchmark host over SSH.
// The generator writes its CSV next to itself on the remote side; Run fetches
// it back to the output path the driver asked for.
type Runner struct {
	executor *Executor
	creds    Credentials
	command  string
	args     []string
	workDir  string
	logger   *slog.Logger
}

// RunnerOption configures a Runner
type RunnerOption func(*Runner)

// WithRunnerLogger sets a custom logger
func WithRunnerLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithRemoteWorkDir sets the directory on the benchmark host that holds the
// generator script and datasets.
func WithRemoteWorkDir(dir string) RunnerOption {
	return func(r *Runner) {
		r.workDir = dir
	}
}

// NewRunner creates a remote runner for the given host credentials and
// generator command.
func NewRunner(executor *Executor, creds Credentials, command string, args []string, opts ...RunnerOption) *Runner {
	r := &Runner{
		executor: executor,
		creds:    creds,
		command:  command,
		args:     args,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Run executes the generator remotely and fetches the resulting CSV.
func (r *Runner) Run(ctx context.Context, inv loadgen.Invocation) error {
	if err := inv.Validate(); err != nil {
		return fmt.Errorf("invalid invocation: %w", err)
	}

	conn, err := r.executor.Connect(ctx, r.creds)
	if err != nil {
		return fmt.Errorf("failed to reach benchmark host: %w", err)
	}
	defer conn.Close()

	// The remote generator writes into its own working directory; keep only
	// the file name and fetch it back to the driver's output path afterwards.
	remoteOutput := path.Base(inv.Output)
	remoteInv := inv
	remoteInv.Output = remoteOutput

	cmd := r.buildCommand(remoteInv)

	r.logger.InfoContext(ctx, "invoking load generator on benchmark host",
		slog.String("host", conn.Host()),
		slog.String("qps", inv.QPS),
		slog.String("output", inv.Output))

	_, stderr, err := r.executor.RunCommand(ctx, conn, cmd)
	if err != nil {
		if stderr != "" {
			return fmt.Errorf("load generator failed: %w: %s", err, stderr)
		}
		return fmt.Errorf("load generator failed: %w", err)
	}

	remotePath := remoteOutput
	if r.workDir != "" {
		remotePath = path.Join(r.workDir, remoteOutput)
	}
	if err := Fetch(ctx, conn, remotePath, inv.Output); err != nil {
		return fmt.Errorf("failed to fetch run artifact: %w", err)
	}
	return nil
}

// buildCommand assembles the remote shell command, quoting every argument.
func (r *Runner) buildCommand(inv loadgen.Invocation) string {
	parts := make([]string, 0, 2+len(r.args)+len(inv.Args()))
	if r.workDir != "" {
		parts = append(parts, "cd", ShellQuote(r.workDir), "&&")
	}
	parts = append(parts, ShellQuote(r.command))
	for _, a := range r.args {
		parts = append(parts, ShellQuote(a))
	}
	for _, a := range inv.Args() {
		parts = append(parts, ShellQuote(a))
	}
	return strings.Join(parts, " ")
}
