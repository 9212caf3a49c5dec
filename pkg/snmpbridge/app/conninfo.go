package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hausnetz/snmp_bridge/models"
	"github.com/hausnetz/snmp_bridge/pkg/snmpbridge/store"
)

// ConnStateID is the id of the overall connectivity indicator: true while at
// least one device is reachable.
const ConnStateID = "info.connection"

// safetyNetInterval is the period of the unconditional republish that keeps
// the indicator correct even if an edge-triggered update was lost.
const safetyNetInterval = 15 * time.Second

// ConnInfo aggregates per-device reachability into the overall connectivity
// indicator. It implements poller.OnlineSink; transitions are recomputed
// synchronously under the lock, so the indicator can never lag behind the
// per-device flags.
type ConnInfo struct {
	store  store.Store
	logger *slog.Logger

	mu          sync.Mutex
	online      map[string]bool
	connected   bool
	initialized bool
}

// NewConnInfo returns an aggregator with no devices observed yet.
func NewConnInfo(st store.Store, logger *slog.Logger) *ConnInfo {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	return &ConnInfo{store: st, logger: logger, online: make(map[string]bool)}
}

// SetDeviceOnline records one device's reachability and republishes the
// aggregate if it changed.
func (c *ConnInfo) SetDeviceOnline(name string, online bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.online[name] = online
	c.recompute()
}

// recompute must be called with the lock held.
func (c *ConnInfo) recompute() {
	any := false
	for _, on := range c.online {
		if on {
			any = true
			break
		}
	}
	if c.initialized && any == c.connected {
		return
	}
	c.connected = any
	c.initialized = true

	if any {
		c.logger.Info("app: connected to at least one device")
	} else {
		c.logger.Info("app: disconnected from all devices")
	}
	c.publish(any)
}

// Announce publishes the current aggregate unconditionally.
func (c *ConnInfo) Announce() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.publish(c.connected)
}

// Run republishes the aggregate on a fixed interval until ctx is cancelled.
func (c *ConnInfo) Run(ctx context.Context) {
	ticker := time.NewTicker(safetyNetInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Announce()
		}
	}
}

// ForceDisconnected marks the aggregate false and publishes it, used during
// shutdown after the pollers have stopped.
func (c *ConnInfo) ForceDisconnected() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	c.initialized = true
	c.publish(false)
}

func (c *ConnInfo) publish(connected bool) {
	err := c.store.SetState(context.Background(), ConnStateID, models.StateUpdate{
		Val:     connected,
		Ack:     true,
		Quality: models.QualityOK,
	})
	if err != nil {
		c.logger.Error("app: connectivity publish failed", "error", err.Error())
	}
}
