package cmd

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/qps-sweep/qps-sweep/internal/config"
)

func TestRunCommand_UsageError(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no args", []string{"run"}},
		{"one arg", []string{"run", "modelX"}},
		{"two args", []string{"run", "modelX", "http://h:1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out, errOut bytes.Buffer
			rootCmd.SetOut(&out)
			rootCmd.SetErr(&errOut)
			rootCmd.SetArgs(tt.args)
			defer rootCmd.SetArgs(nil)

			err := rootCmd.Execute()
			if err == nil {
				t.Fatal("expected a usage error")
			}
			if !strings.Contains(err.Error(), "usage:") {
				t.Errorf("error %q does not contain the usage line", err.Error())
			}
			if !strings.Contains(err.Error(), "<model> <base_url> <output_key> [qps...]") {
				t.Errorf("error %q does not show the invocation format", err.Error())
			}
		})
	}
}

func TestRunCommand_ArgsAccepted(t *testing.T) {
	// Three or more positional arguments pass argument validation
	if err := runCmd.Args(runCmd, []string{"modelX", "http://h:1", "/tmp/run"}); err != nil {
		t.Errorf("three args rejected: %v", err)
	}
	if err := runCmd.Args(runCmd, []string{"modelX", "http://h:1", "/tmp/run", "1.0", "2.0"}); err != nil {
		t.Errorf("five args rejected: %v", err)
	}
}

func TestBuildPlan(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}

	// Exactly three arguments fall back to the single default rate
	plan := buildPlan(cfg, []string{"modelX", "http://h:1", "/tmp/run"})
	if plan.Model != "modelX" || plan.BaseURL != "http://h:1" || plan.OutputKey != "/tmp/run" {
		t.Errorf("positional arguments not mapped: %+v", plan)
	}
	if !reflect.DeepEqual(plan.QPSValues, []string{"1.0"}) {
		t.Errorf("expected the default QPS value, got %v", plan.QPSValues)
	}

	// Trailing arguments become the QPS sequence, in order
	plan = buildPlan(cfg, []string{"modelX", "http://h:1", "/tmp/run", "4.0", "0.5"})
	if !reflect.DeepEqual(plan.QPSValues, []string{"4.0", "0.5"}) {
		t.Errorf("expected the supplied QPS values, got %v", plan.QPSValues)
	}
}

func TestSummarizeCommand(t *testing.T) {
	tmpDir := t.TempDir()
	key := filepath.Join(tmpDir, "run")

	csv := `prompt_tokens,generation_tokens,ttft,generation_time,launch_time,finish_time
10,20,0.1,1.0,100.0,102.0
10,20,0.3,1.0,101.0,104.0
`
	if err := os.WriteFile(key+"_output_1.0.csv", []byte(csv), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := runSummarize(summarizeCmd, []string{key, "1.0"}); err != nil {
		t.Errorf("summarize failed: %v", err)
	}
}

func TestSummarizeCommand_DiscoversArtifacts(t *testing.T) {
	tmpDir := t.TempDir()
	key := filepath.Join(tmpDir, "run")

	csv := `prompt_tokens,generation_tokens,ttft,generation_time,launch_time,finish_time
10,20,0.1,1.0,100.0,102.0
`
	for _, qps := range []string{"1.0", "2.0"} {
		if err := os.WriteFile(key+"_output_"+qps+".csv", []byte(csv), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	// A bare output key summarizes every artifact the sweep wrote
	if err := runSummarize(summarizeCmd, []string{key}); err != nil {
		t.Errorf("summarize failed: %v", err)
	}
}

func TestSummarizeCommand_NoArtifacts(t *testing.T) {
	key := filepath.Join(t.TempDir(), "run")
	err := runSummarize(summarizeCmd, []string{key})
	if err == nil || !strings.Contains(err.Error(), "no artifacts") {
		t.Errorf("expected a no-artifacts error, got %v", err)
	}
}

func TestSummarizeCommand_MissingArtifact(t *testing.T) {
	key := filepath.Join(t.TempDir(), "run")
	err := runSummarize(summarizeCmd, []string{key, "9.0"})
	if err == nil {
		t.Error("expected an error for a missing artifact")
	}
}

func TestResultsList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/sweeps" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"sweeps":[{"id":"sweep-abc12345","model":"m","base_url":"http://h:1","output_key":"/tmp/k","status":"success","created_at":"2026-08-30T10:00:00Z"}],"count":1}`))
	}))
	defer srv.Close()

	oldURL := serverURL
	serverURL = srv.URL
	defer func() { serverURL = oldURL }()

	if err := runResultsList(resultsListCmd, nil); err != nil {
		t.Errorf("results list failed: %v", err)
	}
}

func TestResultsGet_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"sweep not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	oldURL := serverURL
	serverURL = srv.URL
	defer func() { serverURL = oldURL }()

	err := runResultsGet(resultsGetCmd, []string{"sweep-missing"})
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("expected a not-found error, got %v", err)
	}
}
