package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/qps-sweep/qps-sweep/internal/results"
)

var summarizeMaxTTFT float64

var summarizeCmd = &cobra.Command{
	Use:   "summarize <output_key> [qps...]",
	Short: "Summarize collected sweep artifacts",
	Long: `Parse the CSV artifacts a sweep produced and print per-QPS statistics:
request count, throughput, and TTFT percentiles. The highest QPS whose
p95 TTFT stays under the threshold is reported as the best rate.

With no QPS values every <output_key>_output_<qps>.csv found on disk is
summarized; listing QPS values restricts the report to those artifacts.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSummarize,
}

func init() {
	rootCmd.AddCommand(summarizeCmd)
	summarizeCmd.Flags().Float64Var(&summarizeMaxTTFT, "max-ttft", 2.0, "p95 TTFT threshold in seconds for best-QPS selection")
}

func runSummarize(cmd *cobra.Command, args []string) error {
	key := args[0]

	artifacts, err := collectArtifacts(key, args[1:])
	if err != nil {
		return err
	}

	var summaries []results.QPSSummary
	for _, a := range artifacts {
		summary, err := results.AnalyzeFile(a.Path)
		if err != nil {
			return fmt.Errorf("failed to analyze %s: %w", a.Path, err)
		}
		summaries = append(summaries, results.QPSSummary{QPS: a.QPS, Summary: summary})
	}

	best := results.BestUnderTTFT(summaries, summarizeMaxTTFT)

	if outputFormat == "json" {
		out := struct {
			Summaries []results.QPSSummary `json:"summaries"`
			BestQPS   string               `json:"best_qps,omitempty"`
		}{Summaries: summaries}
		if best != nil {
			out.BestQPS = best.QPS
		}
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(out)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "QPS\tREQUESTS\tTHROUGHPUT\tAVG TTFT\tP50 TTFT\tP95 TTFT\tP99 TTFT")
	for _, s := range summaries {
		fmt.Fprintf(w, "%s\t%d\t%.2f\t%.3fs\t%.3fs\t%.3fs\t%.3fs\n",
			s.QPS, s.Summary.TotalRequests, s.Summary.Throughput,
			s.Summary.AvgTTFT, s.Summary.P50TTFT, s.Summary.P95TTFT, s.Summary.P99TTFT)
	}
	w.Flush()

	if best != nil {
		fmt.Printf("\nBest QPS with p95 TTFT under %.1fs: %s\n", summarizeMaxTTFT, best.QPS)
	} else {
		fmt.Printf("\nNo QPS kept p95 TTFT under %.1fs.\n", summarizeMaxTTFT)
	}
	return nil
}

// collectArtifacts resolves the output key to artifact files: discovered from
// disk when no QPS values were given, built from the supplied values
// otherwise.
func collectArtifacts(key string, qpsValues []string) ([]results.Artifact, error) {
	if len(qpsValues) == 0 {
		artifacts, err := results.FindArtifacts(key)
		if err != nil {
			return nil, err
		}
		if len(artifacts) == 0 {
			return nil, fmt.Errorf("no artifacts matching %s_output_*.csv", key)
		}
		return artifacts, nil
	}

	artifacts := make([]results.Artifact, 0, len(qpsValues))
	for _, qps := range qpsValues {
		artifacts = append(artifacts, results.Artifact{
			QPS:  qps,
			Path: fmt.Sprintf("%s_output_%s.csv", key, qps),
		})
	}
	return artifacts, nil
}
