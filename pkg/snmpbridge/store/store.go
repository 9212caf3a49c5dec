// Package store is the external key-value state store capability: the
// bridge continuously overwrites per-value states, announces object
// metadata, and receives externally-initiated writes back through a
// subscription. The production implementation is Redis-backed; tests use
// the in-memory implementation.
package store

import (
	"context"

	"github.com/hausnetz/snmp_bridge/models"
)

// ObjectMeta describes a state object announced to the store before the
// first value is published.
type ObjectMeta struct {
	// Name is the display name.
	Name string `json:"name"`

	// Type is the object class: "device", "folder" or "state".
	Type string `json:"type"`

	// StateType is the value type for state objects: "string", "number"
	// or "boolean".
	StateType string `json:"state_type,omitempty"`

	// Writeable marks states that accept external writes.
	Writeable bool `json:"writeable,omitempty"`

	// Role is a free-form semantic hint, e.g. "value" or
	// "indicator.reachable".
	Role string `json:"role,omitempty"`
}

// CommandFunc receives one externally-initiated, not-yet-acknowledged state
// write, keyed by the fully-qualified id.
type CommandFunc func(id string, st models.StateUpdate)

// Store is the state store consumed by the bridge.
type Store interface {
	// SetState overwrites the state for id.
	SetState(ctx context.Context, id string, st models.StateUpdate) error

	// GetState reads the state for id.
	GetState(ctx context.Context, id string) (models.StateUpdate, error)

	// EnsureObject creates or refreshes the object metadata for id.
	EnsureObject(ctx context.Context, id string, meta ObjectMeta) error

	// Subscribe delivers external write commands to fn until ctx is
	// cancelled. It does not block.
	Subscribe(ctx context.Context, fn CommandFunc) error

	// Close releases store resources.
	Close() error
}
