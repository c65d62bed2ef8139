package results

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyze(t *testing.T) {
	records := []RequestRecord{
		{PromptTokens: 100, GenerationTokens: 200, TTFT: 0.2, GenerationTime: 2.0, LaunchTime: 1000, FinishTime: 1004},
		{PromptTokens: 50, GenerationTokens: 100, TTFT: 0.4, GenerationTime: 1.0, LaunchTime: 1001, FinishTime: 1003},
		{PromptTokens: 150, GenerationTokens: 300, TTFT: 0.6, GenerationTime: 3.0, LaunchTime: 1002, FinishTime: 1010},
	}

	s := Analyze(records)

	assert.Equal(t, 3, s.TotalRequests)
	assert.Equal(t, 600, s.TotalTokens)
	assert.Equal(t, 300, s.PromptTokens)
	assert.InDelta(t, 10.0, s.DurationSec, 1e-9) // 1010 - 1000
	assert.InDelta(t, 0.3, s.Throughput, 1e-9)   // 3 requests / 10 s
	assert.InDelta(t, 0.4, s.AvgTTFT, 1e-9)
	assert.InDelta(t, 0.4, s.P50TTFT, 1e-9)
	assert.InDelta(t, 100.0, s.AvgGenSpeed, 1e-9) // mean of 100, 100, 100
}

func TestAnalyze_Empty(t *testing.T) {
	s := Analyze(nil)
	assert.Equal(t, 0, s.TotalRequests)
	assert.Zero(t, s.Throughput)
}

func TestAnalyze_SingleRecord(t *testing.T) {
	s := Analyze([]RequestRecord{
		{GenerationTokens: 10, TTFT: 0.1, GenerationTime: 1, LaunchTime: 5, FinishTime: 5},
	})
	assert.Equal(t, 1, s.TotalRequests)
	// Zero wall time leaves throughput undefined rather than infinite
	assert.Zero(t, s.Throughput)
	assert.InDelta(t, 0.1, s.P99TTFT, 1e-9)
}

func TestPercentile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	assert.InDelta(t, 5.0, percentile(sorted, 50), 1e-9)
	assert.InDelta(t, 9.0, percentile(sorted, 95), 1e-9)
	assert.InDelta(t, 9.0, percentile(sorted, 99), 1e-9)
	assert.InDelta(t, 1.0, percentile(sorted, 0), 1e-9)
	assert.InDelta(t, 10.0, percentile(sorted, 100), 1e-9)
	assert.Zero(t, percentile(nil, 95))
}

func TestBestUnderTTFT(t *testing.T) {
	summaries := []QPSSummary{
		{QPS: "1.0", Summary: RunSummary{Throughput: 1.0, P95TTFT: 0.5}},
		{QPS: "2.0", Summary: RunSummary{Throughput: 1.9, P95TTFT: 1.4}},
		{QPS: "4.0", Summary: RunSummary{Throughput: 3.1, P95TTFT: 4.8}},
	}

	best := BestUnderTTFT(summaries, 2.0)
	require.NotNil(t, best)
	assert.Equal(t, "2.0", best.QPS)
}

func TestBestUnderTTFT_NoneQualify(t *testing.T) {
	summaries := []QPSSummary{
		{QPS: "8.0", Summary: RunSummary{Throughput: 5.0, P95TTFT: 9.0}},
	}
	assert.Nil(t, BestUnderTTFT(summaries, 2.0))
}

func TestAnalyzeFile(t *testing.T) {
	path := writeArtifact(t, `prompt_tokens,generation_tokens,ttft,generation_time,launch_time,finish_time
10,20,0.1,1.0,100.0,102.0
10,20,0.3,1.0,101.0,104.0
`)

	s, err := AnalyzeFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, s.TotalRequests)
	assert.InDelta(t, 4.0, s.DurationSec, 1e-9)
	assert.InDelta(t, 0.2, s.AvgTTFT, 1e-9)
}
