// Package results parses the CSV artifacts the load generator writes and
// computes per-run latency and throughput statistics from them.
package results

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
)

// RequestRecord is one row of a run artifact: a single replayed request.
type RequestRecord struct {
	PromptTokens     int
	GenerationTokens int
	TTFT             float64 // seconds
	GenerationTime   float64 // seconds
	LaunchTime       float64 // unix seconds
	FinishTime       float64 // unix seconds
}

// ParseCSV reads a run artifact. The generator writes a header row naming the
// columns; the order is not assumed.
func ParseCSV(path string) ([]RequestRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return parse(csv.NewReader(file))
}

func parse(reader *csv.Reader) ([]RequestRecord, error) {
	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("artifact is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[name] = i
	}
	for _, required := range []string{"ttft", "launch_time", "finish_time"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("artifact is missing column %q", required)
		}
	}

	field := func(record []string, name string) float64 {
		idx, ok := cols[name]
		if !ok || idx >= len(record) {
			return 0
		}
		v, _ := strconv.ParseFloat(record[idx], 64)
		return v
	}

	var records []RequestRecord
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read record: %w", err)
		}

		records = append(records, RequestRecord{
			PromptTokens:     int(field(record, "prompt_tokens")),
			GenerationTokens: int(field(record, "generation_tokens")),
			TTFT:             field(record, "ttft"),
			GenerationTime:   field(record, "generation_time"),
			LaunchTime:       field(record, "launch_time"),
			FinishTime:       field(record, "finish_time"),
		})
	}
	return records, nil
}
