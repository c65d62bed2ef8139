// Package remote runs the load generator on the benchmark host over SSH and
// retrieves the CSV artifacts it writes there. This keeps the driver box out
// of the network path between generator and serving endpoint.
package remote

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
)

const (
	// DefaultConnectTimeout is the default timeout for establishing SSH connections
	DefaultConnectTimeout = 30 * time.Second
)

// Credentials holds SSH connection details for the benchmark host.
type Credentials struct {
	Host       string
	Port       int
	User       string
	PrivateKey []byte // PEM-encoded private key
}

// Validate checks that the credentials have all required fields
func (c *Credentials) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host cannot be empty")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	if c.User == "" {
		return fmt.Errorf("user cannot be empty")
	}
	if len(c.PrivateKey) == 0 {
		return fmt.Errorf("private key cannot be empty")
	}
	return nil
}

// Connection represents an established SSH connection to the benchmark host.
type Connection struct {
	client *ssh.Client
	host   string
}

// Host returns the connection's host
func (c *Connection) Host() string {
	return c.host
}

// Close closes the SSH connection
func (c *Connection) Close() error {
	if c.client != nil {
		err := c.client.Close()
		c.client = nil
		return err
	}
	return nil
}

// Executor opens SSH connections and runs commands on the benchmark host.
type Executor struct {
	connectTimeout time.Duration
}

// ExecutorOption configures the Executor
type ExecutorOption func(*Executor)

// WithConnectTimeout sets the connection timeout for the executor
func WithConnectTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		e.connectTimeout = d
	}
}

// NewExecutor creates an executor with configurable timeouts
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{
		connectTimeout: DefaultConnectTimeout,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Connect establishes an SSH connection using the given credentials.
func (e *Executor) Connect(ctx context.Context, creds Credentials) (*Connection, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}

	signer, err := ssh.ParsePrivateKey(creds.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	config := &ssh.ClientConfig{
		User: creds.User,
		Auth: []ssh.AuthMethod{
			ssh.PublicKeys(signer),
		},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), // benchmark hosts have dynamic host keys
		Timeout:         e.connectTimeout,
	}

	addr := fmt.Sprintf("%s:%d", creds.Host, creds.Port)

	dialer := net.Dialer{Timeout: e.connectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("SSH handshake failed: %w", err)
	}

	return &Connection{
		client: ssh.NewClient(sshConn, chans, reqs),
		host:   creds.Host,
	}, nil
}

// RunCommand executes a command and returns stdout/stderr. The command runs
// until it exits or ctx is cancelled; generator runs are long, so callers
// pass a context with whatever deadline fits the run duration.
func (e *Executor) RunCommand(ctx context.Context, conn *Connection, cmd string) (stdout, stderr string, err error) {
	if conn == nil || conn.client == nil {
		return "", "", fmt.Errorf("connection is nil or closed")
	}

	session, err := conn.client.NewSession()
	if err != nil {
		return "", "", fmt.Errorf("failed to create session: %w", err)
	}
	defer session.Close()

	var stdoutBuf, stderrBuf bytes.Buffer
	session.Stdout = &stdoutBuf
	session.Stderr = &stderrBuf

	done := make(chan error, 1)
	go func() {
		done <- session.Run(cmd)
	}()

	select {
	case runErr := <-done:
		stdout = strings.TrimSpace(stdoutBuf.String())
		stderr = strings.TrimSpace(stderrBuf.String())
		return stdout, stderr, runErr
	case <-ctx.Done():
		session.Signal(ssh.SIGKILL)
		return "", "", fmt.Errorf("command interrupted: %w", ctx.Err())
	}
}

// CheckHealth verifies the connection is responsive by running a simple command
func (e *Executor) CheckHealth(ctx context.Context, conn *Connection) error {
	stdout, stderr, err := e.RunCommand(ctx, conn, "echo ok")
	if err != nil {
		return fmt.Errorf("health check failed: %w (stderr: %s)", err, stderr)
	}
	if stdout != "ok" {
		return fmt.Errorf("health check returned unexpected output: %q", stdout)
	}
	return nil
}

// FileExists checks if a file exists on the benchmark host
func (e *Executor) FileExists(ctx context.Context, conn *Connection, path string) (bool, error) {
	if path == "" {
		return false, fmt.Errorf("path cannot be empty")
	}

	_, _, err := e.RunCommand(ctx, conn, fmt.Sprintf("test -f %q", path))
	if err != nil {
		return false, nil
	}
	return true, nil
}

// ShellQuote wraps a string in single quotes for safe shell usage.
func ShellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "'\\''") + "'"
}
