// Package models defines the canonical data types shared across the SNMP
// bridge: the three configuration collections (OID definitions, SNMPv3
// authentication sets, devices), global options, and the state-store payload.
package models

// ─────────────────────────────────────────────────────────────────────────────
// Logical value formats
// ─────────────────────────────────────────────────────────────────────────────

// Format is the user-configurable logical format of a polled value. It decides
// how a typed SNMP wire value is coerced before it is published.
type Format string

const (
	// FormatText publishes the value as a string.
	FormatText Format = "text"

	// FormatNumeric publishes the value as a number.
	FormatNumeric Format = "numeric"

	// FormatBoolean publishes the value as a boolean.
	FormatBoolean Format = "boolean"

	// FormatJSON publishes the value as a JSON envelope string of the shape
	// {"type":"boolean"|"number"|"Buffer","data":...}.
	FormatJSON Format = "json"

	// FormatAuto selects the natural format for the wire type at decode time
	// (boolean → boolean, integer family → numeric, octet string → text).
	FormatAuto Format = "auto"
)

// Valid reports whether f is one of the five known format codes.
func (f Format) Valid() bool {
	switch f {
	case FormatText, FormatNumeric, FormatBoolean, FormatJSON, FormatAuto:
		return true
	}
	return false
}

// StateType returns the state-store value type announced for this format.
// JSON values travel as serialized strings.
func (f Format) StateType() string {
	switch f {
	case FormatNumeric:
		return "number"
	case FormatBoolean:
		return "boolean"
	default:
		return "string"
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Quality codes
// ─────────────────────────────────────────────────────────────────────────────

// Quality annotates a published value with a confidence/error state,
// independent of the value itself.
type Quality uint8

const (
	// QualityOK marks a value that was retrieved and decoded without error.
	QualityOK Quality = 0x00

	// QualityGeneralError marks a value that could not be decoded or
	// represented in the requested format.
	QualityGeneralError Quality = 0x01

	// QualityConnProblem marks a value whose last poll timed out.
	QualityConnProblem Quality = 0x02

	// QualityDeviceError marks a value whose device reported a
	// request-level error other than a timeout.
	QualityDeviceError Quality = 0x44

	// QualitySensorError marks a single value the device could not deliver
	// (no such object, no such instance, end of MIB view).
	QualitySensorError Quality = 0x84
)

// ─────────────────────────────────────────────────────────────────────────────
// Configuration collections
// ─────────────────────────────────────────────────────────────────────────────

// SNMP version codes as used in device configuration.
const (
	SnmpV1  = "1"
	SnmpV2c = "2c"
	SnmpV3  = "3"
)

// ReservedName is the one OID name that can never be configured because it
// collides with the per-device online indicator state.
const ReservedName = "online"

// OidDefinition describes one manageable value, grouped under an oid-group
// that devices reference to select what to poll.
type OidDefinition struct {
	// Group is the oid-group this definition belongs to.
	Group string `yaml:"group"`

	// Name is the display name; it becomes part of the publish id. It must
	// not contain leading, trailing or consecutive dots and must not equal
	// the reserved name "online".
	Name string `yaml:"name"`

	// Oid is the dotted-numeric object identifier, e.g. "1.3.6.1.2.1.1.5.0".
	Oid string `yaml:"oid"`

	// Active entries are polled; inactive ones are skipped entirely.
	Active bool `yaml:"active"`

	// Optional suppresses the warning normally logged when the device
	// answers "no such instance" for this value.
	Optional bool `yaml:"optional"`

	// Writeable registers the value for write-back from the state store.
	Writeable bool `yaml:"writeable"`

	// Format is the logical format; empty defaults to auto.
	Format Format `yaml:"format"`
}

// AuthSet holds one set of SNMPv3 security parameters, referenced from
// devices by its ID.
type AuthSet struct {
	// ID is the authentication-id; it must be unique and non-empty.
	ID string `yaml:"id"`

	// SecurityLevel is one of: noAuthNoPriv, authNoPriv, authPriv.
	SecurityLevel string `yaml:"security_level"`

	// User is the SNMPv3 security name.
	User string `yaml:"user"`

	// AuthProtocol is one of: md5, sha, sha224, sha256, sha384, sha512.
	// Unrecognised codes fall back to no authentication.
	AuthProtocol string `yaml:"auth_protocol"`

	// AuthKey is the passphrase for the chosen auth protocol.
	AuthKey string `yaml:"auth_key"`

	// PrivProtocol is one of: des, aes, aes192, aes256, aes192c, aes256c.
	// Unrecognised codes fall back to no privacy.
	PrivProtocol string `yaml:"priv_protocol"`

	// PrivKey is the passphrase for the chosen privacy protocol.
	PrivKey string `yaml:"priv_key"`
}

// DeviceConfig describes one monitored device. The timing fields arrive as
// numeric strings (seconds) and are parsed and clamped by the validator,
// which fills the resolved *Sec fields.
type DeviceConfig struct {
	// Name is the unique device name; it doubles as the publish-namespace
	// root and follows the same dot rules as OID names.
	Name string `yaml:"name"`

	// Address is the raw address string: IPv4/IPv6 address or hostname,
	// with an optional port (bracketed for IPv6).
	Address string `yaml:"address"`

	// IPv6 selects the IPv6 address grammar and the udp6 transport.
	IPv6 bool `yaml:"ipv6"`

	// OidGroup selects which OID definitions this device polls.
	OidGroup string `yaml:"oid_group"`

	// AuthID is the community string for v1/v2c devices and the AuthSet
	// reference for v3 devices.
	AuthID string `yaml:"auth_id"`

	// Version is the SNMP version: "1", "2c" or "3".
	Version string `yaml:"version"`

	// Active devices are polled; inactive ones are skipped entirely.
	Active bool `yaml:"active"`

	// Timeout is the SNMP request timeout in seconds (numeric string,
	// clamped to [1,600]).
	Timeout string `yaml:"timeout"`

	// RetryInterval is the reconnect delay in seconds (numeric string,
	// clamped to [1,3600]).
	RetryInterval string `yaml:"retry_interval"`

	// PollInterval is the polling interval in seconds (numeric string,
	// clamped to [5,3600] and forced strictly greater than Timeout).
	PollInterval string `yaml:"poll_interval"`

	// Resolved timing values in seconds, filled in by the validator.
	TimeoutSec int `yaml:"-"`
	RetrySec   int `yaml:"-"`
	PollSec    int `yaml:"-"`
}

// Options holds the global adapter options.
type Options struct {
	// ChunkSize is the maximum number of OIDs per SNMP request.
	// Default 20.
	ChunkSize int `yaml:"chunk_size"`

	// RawStates publishes an additional "<id>-raw" state carrying a JSON
	// echo of the original varbind.
	RawStates bool `yaml:"raw_states"`

	// TypeStates publishes an additional "<id>-type" diagnostic state
	// carrying the wire type code and decoded type label.
	TypeStates bool `yaml:"type_states"`

	// UseAddressIDs is the deprecated compatibility naming mode: IPv4
	// devices publish under their underscored address instead of their
	// name.
	UseAddressIDs bool `yaml:"use_address_ids"`
}

// Config is the full parsed configuration document.
type Config struct {
	Oids     []OidDefinition `yaml:"oids"`
	AuthSets []AuthSet       `yaml:"auth_sets"`
	Devices  []DeviceConfig  `yaml:"devices"`
	Options  Options         `yaml:"options"`
}
