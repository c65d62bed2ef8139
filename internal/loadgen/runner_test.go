package loadgen

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testInvocation(output string) Invocation {
	return Invocation{
		Model:       "m",
		BaseURL:     "http://h:1",
		QPS:         "1.0",
		Output:      output,
		DatasetFile: "d.json",
		LogInterval: time.Second,
	}
}

func TestLocalRunner_Run(t *testing.T) {
	tmpDir := t.TempDir()
	output := filepath.Join(tmpDir, "out.csv")

	// Stand-in generator: touch the file named by --output
	script := filepath.Join(tmpDir, "gen.sh")
	require.NoError(t, os.WriteFile(script, []byte(`#!/bin/sh
while [ "$1" != "--output" ]; do shift; done
touch "$2"
`), 0o755))

	runner := NewLocalRunner("sh", []string{script})
	err := runner.Run(context.Background(), testInvocation(output))
	require.NoError(t, err)

	_, err = os.Stat(output)
	assert.NoError(t, err)
}

func TestLocalRunner_Run_Failure(t *testing.T) {
	runner := NewLocalRunner("sh", []string{"-c", "exit 3"})
	err := runner.Run(context.Background(), testInvocation("/tmp/out.csv"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "load generator failed")
}

func TestLocalRunner_Run_InvalidInvocation(t *testing.T) {
	runner := NewLocalRunner("sh", nil)
	err := runner.Run(context.Background(), Invocation{})
	assert.Error(t, err)
}

func TestLocalRunner_Run_Cancelled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	// Extra generator args land in the script's positional params
	runner := NewLocalRunner("sh", []string{"-c", "sleep 10", "gen"})
	err := runner.Run(ctx, testInvocation("/tmp/out.csv"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
