package sweep

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qps-sweep/qps-sweep/internal/loadgen"
	"github.com/qps-sweep/qps-sweep/internal/results"
	"github.com/qps-sweep/qps-sweep/internal/storage"
)

// gateRunner blocks invocations until the gate closes.
type gateRunner struct {
	started chan struct{}
	gate    chan struct{}
}

func (r *gateRunner) Run(ctx context.Context, inv loadgen.Invocation) error {
	select {
	case r.started <- struct{}{}:
	default:
	}
	select {
	case <-r.gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func newTestManager(t *testing.T, runner loadgen.Runner) (*Manager, *results.Store) {
	t.Helper()
	db, err := storage.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	store, err := results.NewStore(db.DB)
	require.NoError(t, err)

	cfg := testDriverConfig()
	cfg.Cooldown = 0
	driver := NewDriver(runner, cfg,
		WithStore(store),
		WithAnalyzer(func(path string) (results.RunSummary, error) {
			return results.RunSummary{}, nil
		}))
	return NewManager(driver, store, nil), store
}

func waitForStatus(t *testing.T, store *results.Store, id string, want results.RunStatus) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		sw, err := store.GetSweep(context.Background(), id)
		require.NoError(t, err)
		if sw != nil && sw.Status == want {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("sweep %s never reached status %s", id, want)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func waitForIdle(t *testing.T, manager *Manager) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		if _, running := manager.Running(); !running {
			return
		}
		select {
		case <-deadline:
			t.Fatal("manager never went idle")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestManager_Start(t *testing.T) {
	runner := &gateRunner{started: make(chan struct{}, 1), gate: make(chan struct{})}
	close(runner.gate)
	manager, store := newTestManager(t, runner)

	sw, err := manager.Start(testPlan("1.0"))
	require.NoError(t, err)
	require.NotEmpty(t, sw.ID)

	waitForStatus(t, store, sw.ID, results.RunStatusSuccess)
}

func TestManager_Start_Conflict(t *testing.T) {
	runner := &gateRunner{started: make(chan struct{}, 1), gate: make(chan struct{})}
	manager, store := newTestManager(t, runner)

	sw, err := manager.Start(testPlan("1.0"))
	require.NoError(t, err)
	<-runner.started

	_, err = manager.Start(testPlan("2.0"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already running")

	close(runner.gate)
	waitForStatus(t, store, sw.ID, results.RunStatusSuccess)
	waitForIdle(t, manager)

	// A finished sweep no longer blocks new ones
	sw2, err := manager.Start(testPlan("2.0"))
	require.NoError(t, err)
	waitForStatus(t, store, sw2.ID, results.RunStatusSuccess)
}

func TestManager_Cancel(t *testing.T) {
	runner := &gateRunner{started: make(chan struct{}, 1), gate: make(chan struct{})}
	manager, store := newTestManager(t, runner)

	sw, err := manager.Start(testPlan("1.0", "2.0"))
	require.NoError(t, err)
	<-runner.started

	require.NoError(t, manager.Cancel(sw.ID))
	waitForStatus(t, store, sw.ID, results.RunStatusFailed)

	runs, err := store.ListRuns(context.Background(), sw.ID)
	require.NoError(t, err)
	var skipped int
	for _, r := range runs {
		if r.Status == results.RunStatusSkipped {
			skipped++
		}
	}
	assert.NotZero(t, skipped)
}

func TestManager_Cancel_NotRunning(t *testing.T) {
	runner := &gateRunner{started: make(chan struct{}, 1), gate: make(chan struct{})}
	manager, _ := newTestManager(t, runner)

	assert.Error(t, manager.Cancel("sweep-missing"))
}

func TestManager_Start_InvalidPlan(t *testing.T) {
	manager, _ := newTestManager(t, &gateRunner{started: make(chan struct{}, 1), gate: make(chan struct{})})
	_, err := manager.Start(Plan{})
	assert.Error(t, err)
}
