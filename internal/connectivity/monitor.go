package connectivity

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"moneynotes/internal/log"
)

// Pinger checks whether the backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Listener is called on a connectivity transition.
type Listener func(ctx context.Context)

// MonitorConfig holds configuration for the monitor
type MonitorConfig struct {
	// ProbeInterval is how often the backend is pinged (default: 10s)
	ProbeInterval time.Duration

	// ProbeTimeout bounds a single ping (default: 5s)
	ProbeTimeout time.Duration
}

// DefaultMonitorConfig returns sensible defaults
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		ProbeInterval: 10 * time.Second,
		ProbeTimeout:  5 * time.Second,
	}
}

// Monitor tracks backend reachability and fires listeners on transitions.
// It starts out online.
type Monitor struct {
	pinger Pinger
	config MonitorConfig
	online atomic.Bool

	listenersMu sync.RWMutex
	onOnline    []Listener
	onOffline   []Listener

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewMonitor(pinger Pinger, config MonitorConfig) *Monitor {
	if config.ProbeInterval <= 0 {
		config.ProbeInterval = DefaultMonitorConfig().ProbeInterval
	}
	if config.ProbeTimeout <= 0 {
		config.ProbeTimeout = DefaultMonitorConfig().ProbeTimeout
	}
	m := &Monitor{pinger: pinger, config: config}
	m.online.Store(true)
	return m
}

// Online reports the last known state.
func (m *Monitor) Online() bool {
	return m.online.Load()
}

// IsOnline adapts Online to queue.OnlineFunc.
func (m *Monitor) IsOnline(context.Context) bool {
	return m.Online()
}

func (m *Monitor) OnOnline(l Listener) {
	m.listenersMu.Lock()
	defer m.listenersMu.Unlock()
	m.onOnline = append(m.onOnline, l)
}

func (m *Monitor) OnOffline(l Listener) {
	m.listenersMu.Lock()
	defer m.listenersMu.Unlock()
	m.onOffline = append(m.onOffline, l)
}

// MarkOffline records a failure observed by a caller without waiting for
// the next probe.
func (m *Monitor) MarkOffline(ctx context.Context) {
	m.set(ctx, false)
}

// Probe pings the backend once and applies the result.
func (m *Monitor) Probe(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, m.config.ProbeTimeout)
	defer cancel()

	err := m.pinger.Ping(probeCtx)
	if err != nil {
		slog.DebugContext(ctx, "Backend probe failed", log.FieldError, err)
	}
	m.set(ctx, err == nil)
	return err == nil
}

func (m *Monitor) set(ctx context.Context, up bool) {
	was := m.online.Swap(up)
	if was == up {
		return
	}

	m.listenersMu.RLock()
	var listeners []Listener
	if up {
		listeners = append(listeners, m.onOnline...)
	} else {
		listeners = append(listeners, m.onOffline...)
	}
	m.listenersMu.RUnlock()

	if up {
		slog.InfoContext(ctx, "Backend reachable again")
	} else {
		slog.WarnContext(ctx, "Backend unreachable, switching to offline mode")
	}

	for _, l := range listeners {
		l(ctx)
	}
}

// Start begins the probe loop. Returns an error if already running.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("connectivity monitor is already running")
	}
	m.running = true
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})
	m.mu.Unlock()

	go m.runLoop(ctx)

	slog.InfoContext(ctx, "Connectivity monitor started",
		"probe_interval", m.config.ProbeInterval)

	return nil
}

// Stop stops the probe loop and waits for it to exit.
func (m *Monitor) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	close(m.stopCh)

	select {
	case <-m.doneCh:
		slog.InfoContext(ctx, "Connectivity monitor stopped")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Connectivity monitor stop timed out")
		return ctx.Err()
	}

	m.mu.Lock()
	m.running = false
	m.mu.Unlock()

	return nil
}

func (m *Monitor) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Monitor) runLoop(ctx context.Context) {
	defer close(m.doneCh)

	ticker := time.NewTicker(m.config.ProbeInterval)
	defer ticker.Stop()

	m.Probe(ctx)

	for {
		select {
		case <-m.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Probe(ctx)
		}
	}
}
