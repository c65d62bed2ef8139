package results

import (
	"fmt"
	"sort"
)

// RunSummary contains the statistics computed from one run artifact.
type RunSummary struct {
	TotalRequests int     `json:"total_requests"`
	TotalTokens   int     `json:"total_tokens"`
	PromptTokens  int     `json:"prompt_tokens"`
	DurationSec   float64 `json:"duration_seconds"`

	// Achieved request rate over the run's wall time
	Throughput float64 `json:"throughput_qps"`

	// Time to first token, in seconds
	AvgTTFT float64 `json:"avg_ttft"`
	P50TTFT float64 `json:"p50_ttft"`
	P95TTFT float64 `json:"p95_ttft"`
	P99TTFT float64 `json:"p99_ttft"`

	// Mean per-request generation speed, tokens/second
	AvgGenSpeed float64 `json:"avg_generation_speed"`
}

// Analyze computes a summary from parsed request records.
func Analyze(records []RequestRecord) RunSummary {
	if len(records) == 0 {
		return RunSummary{}
	}

	var (
		totalTokens, promptTokens int
		ttfts                     []float64
		speedSum                  float64
		speedCount                int
		minLaunch                 = records[0].LaunchTime
		maxFinish                 = records[0].FinishTime
	)

	for _, r := range records {
		totalTokens += r.GenerationTokens
		promptTokens += r.PromptTokens
		ttfts = append(ttfts, r.TTFT)

		if r.GenerationTime > 0 {
			speedSum += float64(r.GenerationTokens) / r.GenerationTime
			speedCount++
		}
		if r.LaunchTime < minLaunch {
			minLaunch = r.LaunchTime
		}
		if r.FinishTime > maxFinish {
			maxFinish = r.FinishTime
		}
	}

	s := RunSummary{
		TotalRequests: len(records),
		TotalTokens:   totalTokens,
		PromptTokens:  promptTokens,
		DurationSec:   maxFinish - minLaunch,
	}

	if s.DurationSec > 0 {
		s.Throughput = float64(len(records)) / s.DurationSec
	}
	if speedCount > 0 {
		s.AvgGenSpeed = speedSum / float64(speedCount)
	}

	sort.Float64s(ttfts)
	var sum float64
	for _, v := range ttfts {
		sum += v
	}
	s.AvgTTFT = sum / float64(len(ttfts))
	s.P50TTFT = percentile(ttfts, 50)
	s.P95TTFT = percentile(ttfts, 95)
	s.P99TTFT = percentile(ttfts, 99)

	return s
}

// AnalyzeFile parses and summarizes a single artifact.
func AnalyzeFile(path string) (RunSummary, error) {
	records, err := ParseCSV(path)
	if err != nil {
		return RunSummary{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	return Analyze(records), nil
}

// percentile calculates the p-th percentile of a sorted slice.
func percentile(sorted []float64, p int) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (len(sorted) - 1) * p / 100
	return sorted[idx]
}

// QPSSummary pairs a QPS value (as supplied on the command line) with the
// summary of its artifact.
type QPSSummary struct {
	QPS     string     `json:"qps"`
	Summary RunSummary `json:"summary"`
}

// BestUnderTTFT returns the summary with the highest achieved throughput
// whose p95 TTFT stays at or below threshold seconds, or nil when none
// qualifies.
func BestUnderTTFT(summaries []QPSSummary, threshold float64) *QPSSummary {
	var best *QPSSummary
	for i := range summaries {
		s := &summaries[i]
		if s.Summary.P95TTFT > threshold {
			continue
		}
		if best == nil || s.Summary.Throughput > best.Summary.Throughput {
			best = s
		}
	}
	return best
}
