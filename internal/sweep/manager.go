package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/qps-sweep/qps-sweep/internal/logging"
	"github.com/qps-sweep/qps-sweep/internal/results"
)

// Manager starts sweeps in the background and lets callers cancel them. One
// sweep runs at a time; the generator saturates the target endpoint, so
// overlapping sweeps would measure each other.
type Manager struct {
	driver *Driver
	store  *results.Store
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	sweepID string
	cancel  context.CancelFunc
}

// NewManager creates a sweep manager.
func NewManager(driver *Driver, store *results.Store, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{driver: driver, store: store, logger: logger}
}

// Start launches a sweep in the background. It returns the sweep record once
// the sweep and its runs have been registered, or an error when a sweep is
// already in flight.
func (m *Manager) Start(plan Plan) (*results.Sweep, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return nil, fmt.Errorf("sweep %s is already running", m.sweepID)
	}

	ctx, cancel := context.WithCancel(context.Background())

	// Register synchronously so the caller gets an ID, then run the phases
	// in the background.
	sweep := &results.Sweep{
		Model:     plan.Model,
		BaseURL:   plan.BaseURL,
		OutputKey: plan.OutputKey,
		Status:    results.RunStatusPending,
	}
	if m.store != nil {
		if err := m.store.CreateSweep(ctx, sweep); err != nil {
			cancel()
			return nil, fmt.Errorf("failed to record sweep: %w", err)
		}
	}

	m.running = true
	m.sweepID = sweep.ID
	m.cancel = cancel

	go func() {
		defer func() {
			m.mu.Lock()
			m.running = false
			m.cancel = nil
			m.mu.Unlock()
			cancel()
		}()

		ctx := logging.WithSweepID(ctx, sweep.ID)
		if _, err := m.driver.Resume(ctx, sweep, plan); err != nil {
			m.logger.Error("sweep finished with error",
				slog.String("sweep_id", sweep.ID),
				slog.String("error", err.Error()))
		}
	}()

	return sweep, nil
}

// Cancel stops the sweep with the given ID. Runs that have not started yet
// are marked skipped by the driver.
func (m *Manager) Cancel(sweepID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running || m.sweepID != sweepID {
		return fmt.Errorf("sweep %s is not running", sweepID)
	}
	m.cancel()
	return nil
}

// Running reports the ID of the in-flight sweep, if any.
func (m *Manager) Running() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sweepID, m.running
}
