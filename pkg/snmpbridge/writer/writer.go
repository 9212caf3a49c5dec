// Package writer is the write-back path: externally-initiated state writes
// are encoded against the wire type observed on the last read, sent to the
// device over a dedicated short-lived session, and confirmed by an immediate
// read-back through the regular publish path.
package writer

import (
	"context"
	"log/slog"
	"sync"

	"github.com/gosnmp/gosnmp"

	"github.com/hausnetz/snmp_bridge/models"
	"github.com/hausnetz/snmp_bridge/pkg/snmpbridge/poller"
	"github.com/hausnetz/snmp_bridge/pkg/snmpbridge/transport"
	"github.com/hausnetz/snmp_bridge/snmp/codec"
)

// ─────────────────────────────────────────────────────────────────────────────
// Registry
// ─────────────────────────────────────────────────────────────────────────────

// Registry maps writeable state ids to their write targets. The poll loop
// refreshes entries on every successful read; commands for ids that were
// never read successfully are dropped.
type Registry struct {
	mu      sync.RWMutex
	targets map[string]poller.WriteTarget
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{targets: make(map[string]poller.WriteTarget)}
}

// Register stores or refreshes the target for id.
func (r *Registry) Register(id string, t poller.WriteTarget) {
	r.mu.Lock()
	r.targets[id] = t
	r.mu.Unlock()
}

// Lookup returns the target for id and whether one is registered.
func (r *Registry) Lookup(id string) (poller.WriteTarget, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.targets[id]
	return t, ok
}

// ─────────────────────────────────────────────────────────────────────────────
// Writer
// ─────────────────────────────────────────────────────────────────────────────

// Writer handles write commands from the state store.
type Writer struct {
	registry *Registry
	tr       transport.Transport
	reader   *poller.Reader
	logger   *slog.Logger
}

// NewWriter assembles a writer. The reader is used to publish the read-back
// result through the regular value path.
func NewWriter(registry *Registry, tr transport.Transport, reader *poller.Reader, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	return &Writer{registry: registry, tr: tr, reader: reader, logger: logger}
}

// HandleCommand processes one state write from the store. Acknowledged
// updates are the bridge's own publishes echoed back and are ignored, which
// breaks the feedback loop. The device is always read back afterwards, even
// when the value could not be encoded, so the store converges on what the
// device actually holds.
func (w *Writer) HandleCommand(ctx context.Context, id string, st models.StateUpdate) {
	if st.Ack {
		return
	}

	t, ok := w.registry.Lookup(id)
	if !ok {
		w.logger.Warn("writer: dropping command for unknown or not yet polled state", "state", id)
		return
	}

	sess, err := w.tr.CreateSession(t.Device)
	if err != nil {
		w.logger.Error("writer: connect failed",
			"device", t.Device.Name, "state", id, "error", err.Error())
		return
	}
	defer sess.Close()

	kind := codec.KindOf(st.Val, t.Def.Format)
	wireVal, wireType, err := codec.Encode(t.WireType, st.Val, kind)
	if err != nil {
		w.logger.Warn("writer: value cannot be encoded for device",
			"device", t.Device.Name, "state", id, "error", err.Error())
	} else {
		pdus := []gosnmp.SnmpPDU{{Name: t.Oid, Type: wireType, Value: wireVal}}
		if _, err := sess.Set(pdus); err != nil {
			w.logger.Error("writer: set failed",
				"device", t.Device.Name, "state", id, "oid", t.Oid, "error", err.Error())
		} else {
			w.logger.Debug("writer: value written",
				"device", t.Device.Name, "state", id, "oid", t.Oid)
		}
	}

	back, err := sess.Get([]string{t.Oid})
	if err != nil || len(back) == 0 {
		w.logger.Warn("writer: read-back failed",
			"device", t.Device.Name, "state", id, "oid", t.Oid)
		return
	}
	w.reader.PublishValue(ctx, t.Device, id, t.Def, back[0])
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
