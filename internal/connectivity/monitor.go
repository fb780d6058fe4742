// Package connectivity watches network availability and drives the
// reconciliation engine: an immediate cycle on regaining connectivity and
// a periodic cycle while online.
package connectivity

import (
	"context"
	"errors"
	"log"
	"os"
	"sync"
	"time"

	"github.com/champschool/champdesk/internal/engine"
)

// Config holds monitor tuning knobs.
type Config struct {
	// ProbeInterval is how often connectivity is re-checked.
	ProbeInterval time.Duration

	// SyncInterval is the periodic reconciliation period while online.
	SyncInterval time.Duration

	// OnChange, if set, is invoked after every online/offline
	// transition. The status broadcaster hooks in here.
	OnChange func(online bool)

	// ProbeTick and SyncTick override the internal tickers. Tests feed
	// these channels to advance virtual time; leave nil in production.
	ProbeTick <-chan time.Time
	SyncTick  <-chan time.Time

	// Logger for monitor activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults. The 30-second sync period
// matches the console's background cadence.
func DefaultConfig() *Config {
	return &Config{
		ProbeInterval: 5 * time.Second,
		SyncInterval:  30 * time.Second,
		Logger:        log.New(os.Stderr, "[connectivity] ", log.LstdFlags),
	}
}

// Monitor is the two-state (online/offline) connectivity machine.
type Monitor struct {
	probe  Probe
	engine *engine.Engine
	config *Config

	mu      sync.Mutex
	online  bool
	running bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMonitor creates a Monitor. A nil config gets DefaultConfig.
func NewMonitor(probe Probe, eng *engine.Engine, config *Config) *Monitor {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[connectivity] ", log.LstdFlags)
	}
	return &Monitor{probe: probe, engine: eng, config: config}
}

// Online reports the current connectivity state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Start takes the initial connectivity snapshot and begins the probe and
// sync loops. If the process starts online, one reconciliation cycle is
// triggered immediately.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	ctx, m.cancel = context.WithCancel(ctx)
	m.online = m.probe.Online(ctx)
	online := m.online
	m.mu.Unlock()

	m.config.Logger.Printf("Starting (online=%v)", online)
	m.emitChange(online)

	if online {
		m.triggerSync(ctx)
	}

	m.wg.Add(1)
	go m.loop(ctx)
}

// Stop halts the loops. An in-flight cycle is allowed to finish or fail
// naturally; there is no forced cancellation.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	cancel := m.cancel
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	m.config.Logger.Println("Stopped")
}

func (m *Monitor) loop(ctx context.Context) {
	defer m.wg.Done()

	probeTick := m.config.ProbeTick
	syncTick := m.config.SyncTick

	var probeTicker, syncTicker *time.Ticker
	if probeTick == nil {
		probeTicker = time.NewTicker(m.config.ProbeInterval)
		defer probeTicker.Stop()
		probeTick = probeTicker.C
	}
	if syncTick == nil {
		syncTicker = time.NewTicker(m.config.SyncInterval)
		defer syncTicker.Stop()
		syncTick = syncTicker.C
	}

	for {
		select {
		case <-ctx.Done():
			return

		case <-probeTick:
			if m.transition(m.probe.Online(ctx)) {
				if m.Online() {
					// Back online: sync immediately and restart the
					// periodic clock from now.
					if syncTicker != nil {
						syncTicker.Reset(m.config.SyncInterval)
					}
					m.triggerSync(ctx)
				}
			}

		case <-syncTick:
			if m.Online() {
				m.triggerSync(ctx)
			}
		}
	}
}

// transition records a new connectivity observation. Returns true if the
// state flipped.
func (m *Monitor) transition(online bool) bool {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return false
	}
	m.online = online
	m.mu.Unlock()

	if online {
		m.config.Logger.Println("Connectivity restored")
	} else {
		m.config.Logger.Println("Connectivity lost")
	}
	m.emitChange(online)
	return true
}

func (m *Monitor) triggerSync(ctx context.Context) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if _, err := m.engine.Sync(ctx); err != nil {
			if errors.Is(err, engine.ErrCycleInProgress) {
				return
			}
			m.config.Logger.Printf("Sync cycle failed: %v", err)
		}
	}()
}

// SetOnChange registers the transition hook. Call before Start.
func (m *Monitor) SetOnChange(fn func(online bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config.OnChange = fn
}

func (m *Monitor) emitChange(online bool) {
	m.mu.Lock()
	fn := m.config.OnChange
	m.mu.Unlock()
	if fn != nil {
		fn(online)
	}
}
