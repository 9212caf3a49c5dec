// Package poller reads chunked values from a device session, classifies the
// outcome of every request, and publishes values, qualities and per-device
// indicator states to the state store. It owns the read half of a poll
// cycle; session lifecycle and scheduling live in the session package.
package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/gosnmp/gosnmp"

	"github.com/hausnetz/snmp_bridge/models"
	"github.com/hausnetz/snmp_bridge/pkg/snmpbridge/device"
	"github.com/hausnetz/snmp_bridge/pkg/snmpbridge/store"
	"github.com/hausnetz/snmp_bridge/pkg/snmpbridge/transport"
	"github.com/hausnetz/snmp_bridge/snmp/codec"
)

// ─────────────────────────────────────────────────────────────────────────────
// Capability interfaces
// ─────────────────────────────────────────────────────────────────────────────

// WriteTarget binds a writeable state id to everything the write path needs:
// the owning device, the wire OID, the wire type observed on the last read,
// and the originating definition.
type WriteTarget struct {
	Device   *device.Context
	Oid      string
	WireType gosnmp.Asn1BER
	Def      models.OidDefinition
}

// WriteRegistrar receives write targets as they are discovered during reads.
// The mapping is keyed by state id and refreshed on every successful read, so
// the write path always encodes against the most recently observed wire type.
type WriteRegistrar interface {
	Register(id string, t WriteTarget)
}

// SessionProvider yields the device's current session, or nil while the
// device is disconnected.
type SessionProvider interface {
	Session() transport.Session
}

// OnlineSink observes per-device reachability transitions, e.g. to aggregate
// them into an overall connectivity indicator.
type OnlineSink interface {
	SetDeviceOnline(name string, online bool)
}

// ─────────────────────────────────────────────────────────────────────────────
// Reader
// ─────────────────────────────────────────────────────────────────────────────

// Reader executes poll cycles against device sessions and publishes the
// results. One Reader is shared by all devices; it carries no per-device
// state.
type Reader struct {
	store     store.Store
	registrar WriteRegistrar
	online    OnlineSink
	opts      models.Options
	logger    *slog.Logger
}

// NewReader assembles a reader. registrar and online may be nil when write
// support or connectivity aggregation is not wanted.
func NewReader(st store.Store, registrar WriteRegistrar, online OnlineSink, opts models.Options, logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	return &Reader{store: st, registrar: registrar, online: online, opts: opts, logger: logger}
}

// chunk outcomes.
type chunkOutcome int

const (
	chunkOK chunkOutcome = iota
	chunkSensorIssue
	chunkTimeout
	chunkError
)

// ReadAll runs one full poll cycle over the device's chunks, in order. It
// returns true when the session suffered a non-timeout transport error and
// must be torn down and rebuilt; timeouts leave the session open.
func (r *Reader) ReadAll(ctx context.Context, dctx *device.Context, sp SessionProvider) bool {
	sess := sp.Session()
	if sess == nil {
		return false
	}

	alarm := false
	fatal := false
	for i := range dctx.Chunks {
		if ctx.Err() != nil {
			return fatal
		}
		switch r.readChunk(ctx, dctx, sess, &dctx.Chunks[i]) {
		case chunkSensorIssue:
			alarm = true
		case chunkError:
			alarm = true
			fatal = true
		}
		if fatal {
			break
		}
	}

	r.publish(ctx, dctx.ID+".alarm", models.StateUpdate{Val: alarm, Ack: true, Quality: models.QualityOK})
	return fatal
}

// readChunk issues one batched request and dispatches every varbind.
func (r *Reader) readChunk(ctx context.Context, dctx *device.Context, sess transport.Session, ch *device.Chunk) chunkOutcome {
	pdus, err := sess.Get(ch.Oids)
	if err != nil {
		if transport.IsTimeout(err) {
			// The device is unreachable or slow; keep the session and let
			// the next cycle try again.
			r.logger.Info("poller: request timed out",
				"device", dctx.Name, "oids", len(ch.Oids))
			r.markChunk(ctx, ch, models.QualityConnProblem)
			r.SetOnlineState(ctx, dctx, false, "request timed out")
			return chunkTimeout
		}
		r.logger.Error("poller: request failed",
			"device", dctx.Name, "error", err.Error())
		r.markChunk(ctx, ch, models.QualityDeviceError)
		r.SetOnlineState(ctx, dctx, false, err.Error())
		return chunkError
	}

	r.SetOnlineState(ctx, dctx, true, "")

	outcome := chunkOK
	for i := range ch.IDs {
		if i >= len(pdus) {
			// The agent answered with fewer varbinds than requested.
			r.logger.Warn("poller: short response",
				"device", dctx.Name, "expected", len(ch.IDs), "got", len(pdus))
			r.publish(ctx, ch.IDs[i], models.StateUpdate{Val: nil, Ack: true, Quality: models.QualitySensorError})
			outcome = chunkSensorIssue
			continue
		}
		if r.PublishValue(ctx, dctx, ch.IDs[i], ch.Defs[i], pdus[i]) {
			outcome = chunkSensorIssue
		}
	}
	return outcome
}

// markChunk publishes a nil value with the given quality for every id in the
// chunk.
func (r *Reader) markChunk(ctx context.Context, ch *device.Chunk, q models.Quality) {
	for _, id := range ch.IDs {
		r.publish(ctx, id, models.StateUpdate{Val: nil, Ack: true, Quality: q})
	}
}

// PublishValue converts one varbind into its logical value and publishes it,
// along with the optional type and raw diagnostic states. It returns true
// when the varbind carried a per-value protocol error. The write path reuses
// it to publish read-back results.
func (r *Reader) PublishValue(ctx context.Context, dctx *device.Context, id string, def models.OidDefinition, pdu gosnmp.SnmpPDU) bool {
	if r.opts.TypeStates {
		r.publish(ctx, id+"-type", models.StateUpdate{
			Val:     fmt.Sprintf("%d: %s", uint8(pdu.Type), codec.TypeLabel(pdu.Type)),
			Ack:     true,
			Quality: models.QualityOK,
		})
	}
	if r.opts.RawStates {
		r.publish(ctx, id+"-raw", models.StateUpdate{Val: rawEcho(pdu), Ack: true, Quality: models.QualityOK})
	}

	if codec.IsVarbindError(pdu.Type) {
		// A single value the device cannot deliver. Optional values answer
		// noSuchInstance without noise.
		if !(def.Optional && pdu.Type == gosnmp.NoSuchInstance) {
			r.logger.Warn("poller: value not available on device",
				"device", dctx.Name, "state", id, "oid", def.Oid, "reason", codec.TypeLabel(pdu.Type))
		}
		r.publish(ctx, id, models.StateUpdate{Val: nil, Ack: true, Quality: models.QualitySensorError})
		return true
	}

	d := codec.Decode(pdu, def.Format)
	if d.Quality != models.QualityOK {
		r.logger.Warn("poller: value could not be represented in requested format",
			"device", dctx.Name, "state", id, "oid", def.Oid, "wire_type", d.TypeLabel, "format", string(def.Format))
	}
	r.publish(ctx, id, models.StateUpdate{Val: d.Value, Ack: true, Quality: d.Quality})

	if def.Writeable && r.registrar != nil {
		r.registrar.Register(id, WriteTarget{Device: dctx, Oid: def.Oid, WireType: pdu.Type, Def: def})
	}
	return false
}

// SetOnlineState publishes the device's reachability indicator and last error
// text. It is edge-triggered: nothing is published or logged while the flag
// is unchanged, except for the very first observation after startup.
func (r *Reader) SetOnlineState(ctx context.Context, dctx *device.Context, online bool, reason string) {
	if dctx.Initialized && dctx.Online == online {
		return
	}
	dctx.Online = online
	dctx.Initialized = true

	if online {
		r.logger.Info("poller: device is reachable", "device", dctx.Name)
	} else {
		r.logger.Info("poller: device is not reachable", "device", dctx.Name, "reason", reason)
	}

	r.publish(ctx, dctx.ID+".online", models.StateUpdate{Val: online, Ack: true, Quality: models.QualityOK})
	r.publish(ctx, dctx.ID+".last_error", models.StateUpdate{Val: reason, Ack: true, Quality: models.QualityOK})

	if r.online != nil {
		r.online.SetDeviceOnline(dctx.Name, online)
	}
}

func (r *Reader) publish(ctx context.Context, id string, st models.StateUpdate) {
	if err := r.store.SetState(ctx, id, st); err != nil {
		r.logger.Error("poller: publish failed", "state", id, "error", err.Error())
	}
}

// rawEcho renders a varbind as a JSON string for the "-raw" diagnostic state.
func rawEcho(pdu gosnmp.SnmpPDU) string {
	echo := struct {
		Oid   string `json:"oid"`
		Type  string `json:"type"`
		Value any    `json:"value"`
	}{
		Oid:  pdu.Name,
		Type: codec.TypeLabel(pdu.Type),
	}
	switch v := pdu.Value.(type) {
	case []byte:
		echo.Value = string(v)
	default:
		echo.Value = v
	}
	raw, err := json.Marshal(echo)
	if err != nil {
		return fmt.Sprintf(`{"oid":%q,"type":%q}`, pdu.Name, echo.Type)
	}
	return string(raw)
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
