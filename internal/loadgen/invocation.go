// Package loadgen invokes the external ShareGPT replay load generator.
// The generator is a collaborator, not part of this module: it replays
// prompts against an OpenAI-compatible endpoint at a fixed QPS and writes a
// CSV report to the path the driver hands it.
package loadgen

import (
	"fmt"
	"strconv"
	"time"
)

// Invocation describes a single load-generator run.
type Invocation struct {
	Model       string
	BaseURL     string
	QPS         string // kept as text: it also names the output file
	Output      string
	DatasetFile string
	LogInterval time.Duration
	Duration    time.Duration // zero means "replay the whole dataset"
}

// Validate checks the invocation for the fields the generator requires.
func (inv Invocation) Validate() error {
	if inv.Model == "" {
		return fmt.Errorf("model is required")
	}
	if inv.BaseURL == "" {
		return fmt.Errorf("base URL is required")
	}
	if inv.Output == "" {
		return fmt.Errorf("output path is required")
	}
	if inv.DatasetFile == "" {
		return fmt.Errorf("dataset file is required")
	}
	qps, err := strconv.ParseFloat(inv.QPS, 64)
	if err != nil || qps <= 0 {
		return fmt.Errorf("QPS must be a positive number, got %q", inv.QPS)
	}
	return nil
}

// Args builds the generator's command-line arguments.
func (inv Invocation) Args() []string {
	args := []string{
		"--qps", inv.QPS,
		"--model", inv.Model,
		"--base-url", inv.BaseURL,
		"--output", inv.Output,
		"--log-interval", strconv.Itoa(int(inv.LogInterval.Seconds())),
		"--sharegpt-file", inv.DatasetFile,
	}
	if inv.Duration > 0 {
		args = append(args, "--time", strconv.Itoa(int(inv.Duration.Seconds())))
	}
	return args
}
