package models

// StateUpdate is the payload written to (and read from) the external state
// store for a single state id. Val is nil when the value could not be
// retrieved or decoded.
type StateUpdate struct {
	// Val is the logical value: string, float64, bool, a serialized JSON
	// envelope string, or nil.
	Val any `json:"val"`

	// Ack is true for updates originating from the bridge itself (poll
	// results, write read-backs) and false for externally-initiated writes
	// that have not been delivered to the device yet.
	Ack bool `json:"ack"`

	// Quality annotates the confidence/error state of Val.
	Quality Quality `json:"q"`
}
