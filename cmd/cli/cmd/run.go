package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/qps-sweep/qps-sweep/internal/config"
	"github.com/qps-sweep/qps-sweep/internal/loadgen"
	"github.com/qps-sweep/qps-sweep/internal/logging"
	"github.com/qps-sweep/qps-sweep/internal/probe"
	"github.com/qps-sweep/qps-sweep/internal/remote"
	"github.com/qps-sweep/qps-sweep/internal/results"
	"github.com/qps-sweep/qps-sweep/internal/storage"
	"github.com/qps-sweep/qps-sweep/internal/sweep"
)

var runNoProbe bool

var runCmd = &cobra.Command{
	Use:   "run <model> <base_url> <output_key> [qps...]",
	Short: "Run a QPS sweep against a serving endpoint",
	Long: `Run a warm-up pass followed by one measured load-generator run per QPS
value, writing one CSV artifact per value.

With no QPS values a single run at the default rate is performed.

Example:
  qps-sweep run meta-llama/Llama-3.1-8B http://localhost:8000 /tmp/llama 1.0 2.0 4.0`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) < 3 {
			return fmt.Errorf("usage: %s run <model> <base_url> <output_key> [qps...]", rootCmd.Use)
		}
		return nil
	},
	RunE: runSweep,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().BoolVar(&runNoProbe, "no-probe", false, "Skip the endpoint readiness probe")
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := logging.Setup(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	plan := buildPlan(cfg, args)
	if err := plan.Validate(); err != nil {
		return err
	}

	runner, err := buildRunner(cfg, logger)
	if err != nil {
		return err
	}

	db, err := storage.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	store, err := results.NewStore(db.DB)
	if err != nil {
		return err
	}

	opts := []sweep.Option{
		sweep.WithStore(store),
		sweep.WithLogger(logger),
	}
	if cfg.Probe.Enabled && !runNoProbe {
		opts = append(opts, sweep.WithProber(probe.New(plan.BaseURL, cfg.Probe.APIKey,
			probe.WithTimeout(cfg.Probe.Timeout),
			probe.WithInterval(cfg.Probe.Interval),
			probe.WithLogger(logger))))
	}
	driver := sweep.NewDriver(runner, cfg.Driver, opts...)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sw, err := driver.Run(ctx, plan)
	if err != nil {
		return err
	}

	runs, lerr := store.ListRuns(ctx, sw.ID)
	if lerr != nil {
		logger.Warn("failed to list runs", slog.String("error", lerr.Error()))
	} else {
		printRunTable(runs)
	}

	if sw.Status != results.RunStatusSuccess {
		return fmt.Errorf("sweep %s finished with status %s", sw.ID, sw.Status)
	}
	fmt.Printf("Sweep %s complete.\n", sw.ID)
	return nil
}

// buildPlan maps the positional arguments onto a sweep plan. With no QPS
// values supplied a single run at the configured default rate is planned.
func buildPlan(cfg *config.Config, args []string) sweep.Plan {
	plan := sweep.Plan{
		Model:     args[0],
		BaseURL:   args[1],
		OutputKey: args[2],
	}
	if len(args) > 3 {
		plan.QPSValues = args[3:]
	} else {
		plan.QPSValues = []string{cfg.Driver.DefaultQPS}
	}
	return plan
}

// buildRunner picks local process execution or SSH depending on config.
func buildRunner(cfg *config.Config, logger *slog.Logger) (loadgen.Runner, error) {
	if !cfg.Remote.Enabled() {
		return loadgen.NewLocalRunner(cfg.Generator.Command, cfg.Generator.Args,
			loadgen.WithWorkDir(cfg.Generator.WorkDir),
			loadgen.WithLogger(logger)), nil
	}

	key, err := os.ReadFile(cfg.Remote.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key: %w", err)
	}
	creds := remote.Credentials{
		Host:       cfg.Remote.Host,
		Port:       cfg.Remote.Port,
		User:       cfg.Remote.User,
		PrivateKey: key,
	}
	executor := remote.NewExecutor(remote.WithConnectTimeout(cfg.Remote.ConnectTimeout))
	return remote.NewRunner(executor, creds, cfg.Generator.Command, cfg.Generator.Args,
		remote.WithRemoteWorkDir(cfg.Remote.WorkDir),
		remote.WithRunnerLogger(logger)), nil
}

func printRunTable(runs []*results.SweepRun) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PHASE\tQPS\tSTATUS\tREQUESTS\tTHROUGHPUT\tAVG TTFT\tP95 TTFT\tOUTPUT")
	for _, r := range runs {
		if r.Status == results.RunStatusSuccess && r.Phase == "run" {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.2f\t%.3fs\t%.3fs\t%s\n",
				r.Phase, r.QPS, r.Status, r.TotalRequests, r.Throughput, r.AvgTTFT, r.P95TTFT, r.Output)
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t-\t-\t-\t-\t%s\n", r.Phase, r.QPS, r.Status, r.Output)
	}
	w.Flush()
}
