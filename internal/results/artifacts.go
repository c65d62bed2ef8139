package results

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Artifact is one sweep output file found on disk, with the QPS text
// embedded in its name.
type Artifact struct {
	QPS  string
	Path string
}

// FindArtifacts locates every `<outputKey>_output_<qps>.csv` next to the
// output key. The QPS text is taken verbatim from the filename; files whose
// QPS portion does not parse as a positive number are ignored. Artifacts are
// returned in ascending rate order.
func FindArtifacts(outputKey string) ([]Artifact, error) {
	prefix := outputKey + "_output_"
	matches, err := filepath.Glob(prefix + "*.csv")
	if err != nil {
		return nil, fmt.Errorf("failed to glob artifacts: %w", err)
	}

	artifacts := make([]Artifact, 0, len(matches))
	rates := make(map[string]float64, len(matches))
	for _, m := range matches {
		qps := strings.TrimSuffix(strings.TrimPrefix(m, prefix), ".csv")
		rate, perr := strconv.ParseFloat(qps, 64)
		if perr != nil || rate <= 0 {
			continue
		}
		artifacts = append(artifacts, Artifact{QPS: qps, Path: m})
		rates[qps] = rate
	}

	sort.Slice(artifacts, func(i, j int) bool {
		return rates[artifacts[i].QPS] < rates[artifacts[j].QPS]
	})
	return artifacts, nil
}
