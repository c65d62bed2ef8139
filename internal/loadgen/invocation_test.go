package loadgen

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInvocation_Args(t *testing.T) {
	inv := Invocation{
		Model:       "meta-llama/Llama-3.1-8B",
		BaseURL:     "http://localhost:8000",
		QPS:         "1.0",
		Output:      "/tmp/run_output_1.0.csv",
		DatasetFile: "./datasets/run.json",
		LogInterval: 30 * time.Second,
		Duration:    100 * time.Second,
	}

	assert.Equal(t, []string{
		"--qps", "1.0",
		"--model", "meta-llama/Llama-3.1-8B",
		"--base-url", "http://localhost:8000",
		"--output", "/tmp/run_output_1.0.csv",
		"--log-interval", "30",
		"--sharegpt-file", "./datasets/run.json",
		"--time", "100",
	}, inv.Args())
}

func TestInvocation_Args_NoDuration(t *testing.T) {
	inv := Invocation{
		Model:       "m",
		BaseURL:     "http://h:1",
		QPS:         "2",
		Output:      "/tmp/warmup.csv",
		DatasetFile: "./datasets/warmup.json",
		LogInterval: 30 * time.Second,
	}

	// The warm-up replays the whole dataset, so no --time flag
	assert.NotContains(t, inv.Args(), "--time")
}

func TestInvocation_Args_KeepsQPSText(t *testing.T) {
	inv := Invocation{QPS: "1.0"}
	args := inv.Args()
	assert.Equal(t, "1.0", args[1], "QPS text must pass through unmodified")
}

func TestInvocation_Validate(t *testing.T) {
	valid := Invocation{
		Model:       "m",
		BaseURL:     "http://h:1",
		QPS:         "1.0",
		Output:      "/tmp/out.csv",
		DatasetFile: "d.json",
	}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Invocation)
	}{
		{"missing model", func(i *Invocation) { i.Model = "" }},
		{"missing base url", func(i *Invocation) { i.BaseURL = "" }},
		{"missing output", func(i *Invocation) { i.Output = "" }},
		{"missing dataset", func(i *Invocation) { i.DatasetFile = "" }},
		{"zero qps", func(i *Invocation) { i.QPS = "0" }},
		{"garbage qps", func(i *Invocation) { i.QPS = "fast" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := valid
			tt.mutate(&inv)
			assert.Error(t, inv.Validate())
		})
	}
}
