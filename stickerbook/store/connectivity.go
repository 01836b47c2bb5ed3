package store

import (
	"context"
	"sync"
	"time"

	"log/slog"

	"github.com/stickerbook/manager/stickerbook/config"
	"github.com/stickerbook/manager/stickerbook/events"
)

// Pinger is the health probe, normally the database wrapper.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ConnectivityMonitor polls the backend and publishes a bus event on
// every online/offline transition. The cache keeps serving mirror data
// while offline; views use the flag to disable writes.
type ConnectivityMonitor struct {
	pinger   Pinger
	bus      *events.Bus
	interval time.Duration
	timeout  time.Duration

	mu     sync.RWMutex
	online bool

	cancel context.CancelFunc
	done   chan struct{}
}

func NewConnectivityMonitor(pinger Pinger, bus *events.Bus) *ConnectivityMonitor {
	return &ConnectivityMonitor{
		pinger:   pinger,
		bus:      bus,
		interval: config.ConnectivityInterval,
		timeout:  config.ConnectivityTimeout,
		online:   true, // assume online until the first probe says otherwise
	}
}

func (m *ConnectivityMonitor) Online() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// Start probes immediately, then on every tick until the context is
// cancelled or Stop is called.
func (m *ConnectivityMonitor) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})

	go func() {
		defer close(m.done)

		m.probe(ctx)
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.probe(ctx)
			}
		}
	}()
}

func (m *ConnectivityMonitor) probe(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
	err := m.pinger.Ping(probeCtx)
	cancel()

	nowOnline := err == nil

	m.mu.Lock()
	changed := m.online != nowOnline
	m.online = nowOnline
	m.mu.Unlock()

	if !changed {
		return
	}

	if nowOnline {
		slog.Info("Backend connection restored",
			slog.String("type", "sys"),
		)
	} else {
		slog.Warn("Backend unreachable, switching to mirror data",
			slog.String("type", "sys"),
			slog.Any("error", err),
		)
	}
	if m.bus != nil {
		m.bus.PublishNow(events.ConnectivityChanged{Online: nowOnline})
	}
}

func (m *ConnectivityMonitor) Stop() {
	if m.cancel != nil {
		m.cancel()
		<-m.done
	}
}
