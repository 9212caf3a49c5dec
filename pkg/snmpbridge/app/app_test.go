package app

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gosnmp/gosnmp"

	"github.com/hausnetz/snmp_bridge/models"
	"github.com/hausnetz/snmp_bridge/pkg/snmpbridge/device"
	"github.com/hausnetz/snmp_bridge/pkg/snmpbridge/store"
	"github.com/hausnetz/snmp_bridge/pkg/snmpbridge/transport"
)

// ─────────────────────────────────────────────────────────────────────────────
// Fakes
// ─────────────────────────────────────────────────────────────────────────────

// fakeSession answers Get from a fixed oid→varbind table and records Set
// calls.
type fakeSession struct {
	mu     sync.Mutex
	answer map[string]gosnmp.SnmpPDU
	sets   [][]gosnmp.SnmpPDU
}

func (s *fakeSession) Get(oids []string) ([]gosnmp.SnmpPDU, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pdus := make([]gosnmp.SnmpPDU, len(oids))
	for i, oid := range oids {
		if pdu, ok := s.answer[oid]; ok {
			pdus[i] = pdu
		} else {
			pdus[i] = gosnmp.SnmpPDU{Name: oid, Type: gosnmp.NoSuchObject}
		}
	}
	return pdus, nil
}

func (s *fakeSession) Set(pdus []gosnmp.SnmpPDU) ([]gosnmp.SnmpPDU, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets = append(s.sets, pdus)
	return pdus, nil
}

func (s *fakeSession) Close() error { return nil }

func (s *fakeSession) setCalls() [][]gosnmp.SnmpPDU {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]gosnmp.SnmpPDU, len(s.sets))
	copy(out, s.sets)
	return out
}

type fakeTransport struct{ sess *fakeSession }

func (t *fakeTransport) CreateSession(*device.Context) (transport.Session, error) {
	return t.sess, nil
}

func writeTestConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	content := `
oids:
  - group: switch
    name: system.name
    oid: 1.3.6.1.2.1.1.5.0
    active: true
    writeable: true
    format: text
  - group: switch
    name: uptime
    oid: 1.3.6.1.2.1.1.3.0
    active: true
    format: numeric
devices:
  - name: sw1
    address: 192.168.0.10
    oid_group: switch
    auth_id: public
    version: "2c"
    active: true
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discard{}, nil))
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func startBridge(t *testing.T) (*App, *store.MemStore, *fakeSession) {
	t.Helper()
	sess := &fakeSession{answer: map[string]gosnmp.SnmpPDU{
		"1.3.6.1.2.1.1.5.0": {Name: "1.3.6.1.2.1.1.5.0", Type: gosnmp.OctetString, Value: []byte("core-sw")},
		"1.3.6.1.2.1.1.3.0": {Name: "1.3.6.1.2.1.1.3.0", Type: gosnmp.TimeTicks, Value: uint32(12345)},
	}}
	st := store.NewMemStore()
	a := New(Config{ConfigPath: writeTestConfig(t)}, st, &fakeTransport{sess: sess}, quietLogger())

	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	// The first poll cycle runs immediately; the next one is seconds away.
	time.Sleep(150 * time.Millisecond)
	return a, st, sess
}

// ─────────────────────────────────────────────────────────────────────────────
// Tests
// ─────────────────────────────────────────────────────────────────────────────

func TestStart_announcesObjects(t *testing.T) {
	a, st, _ := startBridge(t)
	defer a.Stop()

	checks := []struct {
		id       string
		typ      string
		writable bool
	}{
		{ConnStateID, "state", false},
		{"sw1", "device", false},
		{"sw1.online", "state", false},
		{"sw1.alarm", "state", false},
		{"sw1.last_error", "state", false},
		{"sw1.system", "folder", false},
		{"sw1.system.name", "state", true},
		{"sw1.uptime", "state", false},
	}
	for _, c := range checks {
		meta, ok := st.Object(c.id)
		if !ok {
			t.Errorf("object %q not announced", c.id)
			continue
		}
		if meta.Type != c.typ {
			t.Errorf("object %q type = %q, want %q", c.id, meta.Type, c.typ)
		}
		if meta.Writeable != c.writable {
			t.Errorf("object %q writeable = %v, want %v", c.id, meta.Writeable, c.writable)
		}
	}
}

func TestLifecycle_valuesFlowExactlyOncePerCycle(t *testing.T) {
	a, st, _ := startBridge(t)

	name, _ := st.GetState(context.Background(), "sw1.system.name")
	if name.Val != "core-sw" || !name.Ack || name.Quality != models.QualityOK {
		t.Errorf("sw1.system.name = %+v, want acknowledged core-sw", name)
	}
	up, _ := st.GetState(context.Background(), "sw1.uptime")
	if up.Val != float64(12345) {
		t.Errorf("sw1.uptime = %+v, want 12345", up)
	}

	// Exactly one publish per value for the single cycle that ran.
	for _, id := range []string{"sw1.system.name", "sw1.uptime"} {
		if h := st.History(id); len(h) != 1 {
			t.Errorf("%s published %d times, want 1", id, len(h))
		}
	}

	a.Stop()

	online := st.History("sw1.online")
	if len(online) != 2 || online[0].Val != true || online[1].Val != false {
		t.Errorf("online history = %+v, want true then forced false", online)
	}
	conn := st.History(ConnStateID)
	if len(conn) < 3 || conn[0].Val != false || conn[1].Val != true || conn[len(conn)-1].Val != false {
		t.Errorf("connectivity history = %+v, want false, true, ..., false", conn)
	}
}

func TestWriteCommand_roundTrip(t *testing.T) {
	a, st, sess := startBridge(t)
	defer a.Stop()

	st.InjectCommand("sw1.system.name", models.StateUpdate{Val: "edge-sw", Ack: false})

	sets := sess.setCalls()
	if len(sets) != 1 {
		t.Fatalf("set calls = %d, want 1", len(sets))
	}
	pdu := sets[0][0]
	if pdu.Name != "1.3.6.1.2.1.1.5.0" || pdu.Type != gosnmp.OctetString || string(pdu.Value.([]byte)) != "edge-sw" {
		t.Errorf("set pdu = %+v", pdu)
	}

	// The read-back republished the device's value, acknowledged.
	h := st.History("sw1.system.name")
	if len(h) != 2 {
		t.Fatalf("history = %d entries, want poll + read-back", len(h))
	}
	last := h[len(h)-1]
	if last.Val != "core-sw" || !last.Ack {
		t.Errorf("read-back = %+v", last)
	}
}

func TestWriteCommand_ignoresOwnEcho(t *testing.T) {
	a, st, sess := startBridge(t)
	defer a.Stop()

	st.InjectCommand("sw1.system.name", models.StateUpdate{Val: "core-sw", Ack: true})
	if n := len(sess.setCalls()); n != 0 {
		t.Errorf("set calls = %d, want 0 for acknowledged echo", n)
	}
	if h := st.History("sw1.system.name"); len(h) != 1 {
		t.Errorf("history = %d entries, echo must not trigger a read-back", len(h))
	}
}

func TestStart_badConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte("oids: []\ndevices: []\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	a := New(Config{ConfigPath: path}, store.NewMemStore(), &fakeTransport{sess: &fakeSession{}}, quietLogger())
	if err := a.Start(context.Background()); err == nil {
		a.Stop()
		t.Fatal("Start must fail on invalid configuration")
	}
}
