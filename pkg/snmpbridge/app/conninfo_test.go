package app

import (
	"testing"

	"github.com/hausnetz/snmp_bridge/pkg/snmpbridge/store"
)

func TestConnInfo_anySemantics(t *testing.T) {
	st := store.NewMemStore()
	c := NewConnInfo(st, quietLogger())

	c.SetDeviceOnline("a", true)
	c.SetDeviceOnline("b", false)
	c.SetDeviceOnline("a", false)
	c.SetDeviceOnline("b", true)
	c.SetDeviceOnline("b", false)

	h := st.History(ConnStateID)
	want := []bool{true, false, true, false}
	if len(h) != len(want) {
		t.Fatalf("publishes = %d, want %d: %+v", len(h), len(want), h)
	}
	for i, w := range want {
		if h[i].Val != w {
			t.Errorf("publish %d = %v, want %v", i, h[i].Val, w)
		}
	}
}

func TestConnInfo_firstObservationPublishes(t *testing.T) {
	st := store.NewMemStore()
	c := NewConnInfo(st, quietLogger())

	// Even an all-offline first observation must be announced once.
	c.SetDeviceOnline("a", false)
	c.SetDeviceOnline("a", false)

	h := st.History(ConnStateID)
	if len(h) != 1 || h[0].Val != false {
		t.Errorf("history = %+v, want a single false", h)
	}
}

func TestConnInfo_announceIsUnconditional(t *testing.T) {
	st := store.NewMemStore()
	c := NewConnInfo(st, quietLogger())

	c.Announce()
	c.Announce()
	if h := st.History(ConnStateID); len(h) != 2 {
		t.Errorf("publishes = %d, want 2", len(h))
	}
}
