// Package session owns the per-device connection lifecycle: connect, poll on
// the configured interval, tear down on fatal errors and reconnect after the
// retry interval. One manager goroutine runs per device; the retry timer and
// the poll timer are mutually exclusive by construction.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hausnetz/snmp_bridge/pkg/snmpbridge/device"
	"github.com/hausnetz/snmp_bridge/pkg/snmpbridge/poller"
	"github.com/hausnetz/snmp_bridge/pkg/snmpbridge/transport"
)

// Manager drives one device through its connection states. It implements
// poller.SessionProvider so the reader always sees the current session.
type Manager struct {
	dctx   *device.Context
	tr     transport.Transport
	reader *poller.Reader
	logger *slog.Logger

	mu   sync.Mutex
	sess transport.Session
}

// NewManager assembles a manager for one device.
func NewManager(dctx *device.Context, tr transport.Transport, reader *poller.Reader, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	return &Manager{dctx: dctx, tr: tr, reader: reader, logger: logger}
}

// Session returns the current session, or nil while disconnected.
func (m *Manager) Session() transport.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sess
}

// Run loops until ctx is cancelled: connect, poll, reconnect. A failed
// connect and a fatal read error both wait out the retry interval before the
// next attempt; timeouts never tear the session down.
func (m *Manager) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		sess, err := m.tr.CreateSession(m.dctx)
		if err != nil {
			m.logger.Warn("session: connect failed",
				"device", m.dctx.Name, "error", err.Error())
			m.reader.SetOnlineState(ctx, m.dctx, false, err.Error())
			if !sleep(ctx, m.dctx.RetryIntvl) {
				return
			}
			continue
		}

		m.setSession(sess)
		m.logger.Debug("session: connected", "device", m.dctx.Name)

		m.poll(ctx)
		m.closeSession()

		if ctx.Err() != nil {
			return
		}
		if !sleep(ctx, m.dctx.RetryIntvl) {
			return
		}
	}
}

// poll runs an immediate cycle and then one per poll interval, returning when
// a cycle reports a fatal transport error or ctx is cancelled.
func (m *Manager) poll(ctx context.Context) {
	if m.reader.ReadAll(ctx, m.dctx, m) {
		return
	}

	ticker := time.NewTicker(m.dctx.PollIntvl)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if m.reader.ReadAll(ctx, m.dctx, m) {
				return
			}
		}
	}
}

func (m *Manager) setSession(s transport.Session) {
	m.mu.Lock()
	m.sess = s
	m.mu.Unlock()
}

// closeSession tears down the current session. Close errors are expected on
// already-broken connections and only logged at debug level.
func (m *Manager) closeSession() {
	m.mu.Lock()
	sess := m.sess
	m.sess = nil
	m.mu.Unlock()

	if sess == nil {
		return
	}
	if err := sess.Close(); err != nil {
		m.logger.Debug("session: close failed", "device", m.dctx.Name, "error", err.Error())
	}
}

// sleep waits for d or until ctx is cancelled; it reports whether the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
