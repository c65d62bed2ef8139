package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var resultsLimit int

// Sweep mirrors the server's sweep representation
type Sweep struct {
	ID          string     `json:"id"`
	Model       string     `json:"model"`
	BaseURL     string     `json:"base_url"`
	OutputKey   string     `json:"output_key"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// SweepRun mirrors the server's run representation
type SweepRun struct {
	ID            string  `json:"id"`
	Phase         string  `json:"phase"`
	QPS           string  `json:"qps"`
	Output        string  `json:"output_file,omitempty"`
	Status        string  `json:"status"`
	FailureReason string  `json:"failure_reason,omitempty"`
	TotalRequests int     `json:"total_requests,omitempty"`
	Throughput    float64 `json:"throughput_qps,omitempty"`
	AvgTTFT       float64 `json:"avg_ttft,omitempty"`
	P95TTFT       float64 `json:"p95_ttft,omitempty"`
}

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Browse sweep history",
	Long:  `Browse sweeps recorded by a running status API server.`,
}

var resultsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent sweeps",
	RunE:  runResultsList,
}

var resultsGetCmd = &cobra.Command{
	Use:   "get [sweep-id]",
	Short: "Get sweep details",
	Args:  cobra.ExactArgs(1),
	RunE:  runResultsGet,
}

func init() {
	rootCmd.AddCommand(resultsCmd)
	resultsCmd.AddCommand(resultsListCmd)
	resultsCmd.AddCommand(resultsGetCmd)

	resultsListCmd.Flags().IntVarP(&resultsLimit, "limit", "l", 20, "Maximum sweeps to list")
}

func runResultsList(cmd *cobra.Command, args []string) error {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(resultsLimit))
	reqURL := fmt.Sprintf("%s/api/v1/sweeps?%s", serverURL, params.Encode())

	resp, err := http.Get(reqURL)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server error: %s", string(body))
	}

	var result struct {
		Sweeps []Sweep `json:"sweeps"`
		Count  int     `json:"count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputFormat == "json" {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(result)
	}

	if len(result.Sweeps) == 0 {
		fmt.Println("No sweeps found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMODEL\tBASE URL\tOUTPUT KEY\tSTATUS\tCREATED")
	for _, s := range result.Sweeps {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			s.ID, s.Model, s.BaseURL, s.OutputKey, s.Status,
			s.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}

func runResultsGet(cmd *cobra.Command, args []string) error {
	reqURL := fmt.Sprintf("%s/api/v1/sweeps/%s", serverURL, url.PathEscape(args[0]))

	resp, err := http.Get(reqURL)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("sweep not found: %s", args[0])
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server error: %s", string(body))
	}

	var result struct {
		Sweep Sweep      `json:"sweep"`
		Runs  []SweepRun `json:"runs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputFormat == "json" {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(result)
	}

	s := result.Sweep
	fmt.Printf("Sweep:      %s\n", s.ID)
	fmt.Printf("Model:      %s\n", s.Model)
	fmt.Printf("Base URL:   %s\n", s.BaseURL)
	fmt.Printf("Output key: %s\n", s.OutputKey)
	fmt.Printf("Status:     %s\n", s.Status)
	fmt.Printf("Created:    %s\n", s.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	if s.CompletedAt != nil {
		fmt.Printf("Completed:  %s\n", s.CompletedAt.Local().Format("2006-01-02 15:04:05"))
	}

	if len(result.Runs) == 0 {
		return nil
	}

	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PHASE\tQPS\tSTATUS\tREQUESTS\tTHROUGHPUT\tAVG TTFT\tP95 TTFT\tOUTPUT")
	for _, r := range result.Runs {
		if r.Status == "success" && r.Phase == "run" {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.2f\t%.3fs\t%.3fs\t%s\n",
				r.Phase, r.QPS, r.Status, r.TotalRequests, r.Throughput, r.AvgTTFT, r.P95TTFT, r.Output)
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t-\t-\t-\t-\t%s\n", r.Phase, r.QPS, r.Status, r.Output)
	}
	return w.Flush()
}
