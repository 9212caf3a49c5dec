// Package codec converts typed SNMP wire values to the bridge's logical
// formats (text, numeric, boolean, json) and back to wire-ready values for
// writes. All functions are pure: no I/O, no state, deterministic for a given
// input. Callers are responsible for logging degraded results.
package codec

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/gosnmp/gosnmp"

	"github.com/hausnetz/snmp_bridge/models"
)

// ─────────────────────────────────────────────────────────────────────────────
// Decoded result
// ─────────────────────────────────────────────────────────────────────────────

// Decoded is the outcome of converting one wire value into a logical value.
type Decoded struct {
	// Value is the logical value: string, float64, bool, a serialized JSON
	// envelope string, or nil when the value was not representable.
	Value any

	// TypeLabel is the human-readable wire type name, used in the "-type"
	// diagnostic state.
	TypeLabel string

	// Quality annotates the result; QualityGeneralError means the value
	// could not be decoded or represented in the requested format.
	Quality models.Quality

	// Format is the effective format after auto resolution.
	Format models.Format
}

// ─────────────────────────────────────────────────────────────────────────────
// Wire type labels
// ─────────────────────────────────────────────────────────────────────────────

// TypeLabel returns the human-readable name for a gosnmp Asn1BER type tag.
func TypeLabel(t gosnmp.Asn1BER) string {
	switch t {
	case gosnmp.Boolean:
		return "Boolean"
	case gosnmp.Integer:
		return "Integer"
	case gosnmp.OctetString:
		return "OctetString"
	case gosnmp.Null:
		return "Null"
	case gosnmp.ObjectIdentifier:
		return "OID"
	case gosnmp.IPAddress:
		return "IpAddress"
	case gosnmp.Counter32:
		return "Counter32"
	case gosnmp.Gauge32:
		return "Gauge32"
	case gosnmp.TimeTicks:
		return "TimeTicks"
	case gosnmp.Opaque:
		return "Opaque"
	case gosnmp.OpaqueFloat:
		return "OpaqueFloat"
	case gosnmp.OpaqueDouble:
		return "OpaqueDouble"
	case gosnmp.Counter64:
		return "Counter64"
	case gosnmp.Uinteger32:
		return "Unsigned32"
	case gosnmp.NoSuchObject:
		return "NoSuchObject"
	case gosnmp.NoSuchInstance:
		return "NoSuchInstance"
	case gosnmp.EndOfMibView:
		return "EndOfMibView"
	default:
		return fmt.Sprintf("Unknown(0x%02X)", uint8(t))
	}
}

// IsVarbindError reports whether the PDU type signals a per-value protocol
// error rather than an actual value.
func IsVarbindError(t gosnmp.Asn1BER) bool {
	return t == gosnmp.NoSuchObject || t == gosnmp.NoSuchInstance || t == gosnmp.EndOfMibView
}

// ─────────────────────────────────────────────────────────────────────────────
// Decode
// ─────────────────────────────────────────────────────────────────────────────

// The SNMP Float textual convention (NET-SNMP-TC): a 7-byte Opaque value
// tagged 9F 78, length 04, followed by a big-endian IEEE-754 single.
var opaqueFloatHeader = []byte{0x9F, 0x78, 0x04}

// Decode converts one wire value into the requested logical format.
//
// Known approximation: Counter64 values are converted to float64 for the
// numeric format and therefore lose precision above 2^53. The text format
// goes through math/big and is exact at any width.
func Decode(pdu gosnmp.SnmpPDU, format models.Format) Decoded {
	switch pdu.Type {
	case gosnmp.Boolean:
		b, ok := pdu.Value.(bool)
		if !ok {
			return failed(pdu.Type)
		}
		return decodeBoolean(b, pdu.Type, format)

	case gosnmp.Integer, gosnmp.Counter32, gosnmp.Gauge32, gosnmp.TimeTicks, gosnmp.Uinteger32:
		f, text, ok := numericValue(pdu.Value)
		if !ok {
			return failed(pdu.Type)
		}
		return decodeNumeric(f, text, pdu.Type, format)

	case gosnmp.Counter64:
		return decodeCounter64(pdu.Value, format)

	case gosnmp.OctetString:
		return decodeOctets(octets(pdu.Value), pdu.Type, format)

	case gosnmp.ObjectIdentifier:
		return decodeTextOnly(strings.TrimPrefix(stringValue(pdu.Value), "."), pdu.Type, format)

	case gosnmp.IPAddress:
		return decodeTextOnly(stringValue(pdu.Value), pdu.Type, format)

	case gosnmp.Opaque:
		b := octets(pdu.Value)
		if len(b) != 7 || b[0] != opaqueFloatHeader[0] || b[1] != opaqueFloatHeader[1] || b[2] != opaqueFloatHeader[2] {
			return failed(pdu.Type)
		}
		f := float64(math.Float32frombits(binary.BigEndian.Uint32(b[3:])))
		return decodeNumeric(f, formatFloat(f), pdu.Type, format)

	case gosnmp.OpaqueFloat:
		f, _, ok := numericValue(pdu.Value)
		if !ok {
			return failed(pdu.Type)
		}
		return decodeNumeric(f, formatFloat(f), pdu.Type, format)

	case gosnmp.OpaqueDouble:
		f, _, ok := numericValue(pdu.Value)
		if !ok {
			return failed(pdu.Type)
		}
		return decodeNumeric(f, formatFloat(f), pdu.Type, format)

	case gosnmp.Null, gosnmp.NoSuchObject, gosnmp.NoSuchInstance, gosnmp.EndOfMibView:
		// The value is not retrievable; force text and flag the result.
		return Decoded{Value: nil, TypeLabel: TypeLabel(pdu.Type), Quality: models.QualityGeneralError, Format: models.FormatText}

	default:
		// Best effort for unrecognised wire types: treat the stringified
		// value like an octet string.
		return decodeOctets([]byte(stringValue(pdu.Value)), pdu.Type, format)
	}
}

// failed is the uniform decode-error result.
func failed(t gosnmp.Asn1BER) Decoded {
	return Decoded{Value: nil, TypeLabel: TypeLabel(t), Quality: models.QualityGeneralError, Format: models.FormatText}
}

func decodeBoolean(b bool, t gosnmp.Asn1BER, format models.Format) Decoded {
	d := Decoded{TypeLabel: TypeLabel(t), Quality: models.QualityOK, Format: format}
	switch format {
	case models.FormatText:
		d.Value = strconv.FormatBool(b)
	case models.FormatNumeric:
		if b {
			d.Value = float64(1)
		} else {
			d.Value = float64(0)
		}
	case models.FormatJSON:
		d.Value = marshalEnvelope("boolean", b)
	default: // boolean, auto
		d.Value = b
		d.Format = models.FormatBoolean
	}
	return d
}

// decodeNumeric applies the per-format rules shared by the integer family and
// the opaque float types. text is the canonical textual rendering of the
// value, which for wide integers is exact where f is not.
func decodeNumeric(f float64, text string, t gosnmp.Asn1BER, format models.Format) Decoded {
	d := Decoded{TypeLabel: TypeLabel(t), Quality: models.QualityOK, Format: format}
	switch format {
	case models.FormatText:
		d.Value = text
	case models.FormatBoolean:
		d.Value = f != 0
	case models.FormatJSON:
		d.Value = marshalEnvelope("number", f)
	default: // numeric, auto
		if math.IsNaN(f) {
			d.Value = nil
			d.Quality = models.QualityGeneralError
		} else {
			d.Value = f
		}
		d.Format = models.FormatNumeric
	}
	return d
}

// decodeCounter64 handles 64-bit counters, which gosnmp delivers as uint64
// and some transports deliver as a big-endian byte sequence.
func decodeCounter64(v any, format models.Format) Decoded {
	var (
		u     uint64
		exact *big.Int
	)
	switch x := v.(type) {
	case uint64:
		u = x
		exact = new(big.Int).SetUint64(x)
	case []byte:
		exact = new(big.Int).SetBytes(x)
		u = exact.Uint64()
	default:
		f, _, ok := numericValue(v)
		if !ok {
			return failed(gosnmp.Counter64)
		}
		u = uint64(f)
		exact = new(big.Int).SetUint64(u)
	}

	d := Decoded{TypeLabel: TypeLabel(gosnmp.Counter64), Quality: models.QualityOK, Format: format}
	switch format {
	case models.FormatText:
		d.Value = exact.String()
	case models.FormatBoolean:
		d.Value = exact.Sign() != 0
	case models.FormatJSON:
		d.Value = marshalEnvelope("number", u)
	default: // numeric, auto — lossy above 2^53
		d.Value = float64(u)
		d.Format = models.FormatNumeric
	}
	return d
}

func decodeOctets(b []byte, t gosnmp.Asn1BER, format models.Format) Decoded {
	d := Decoded{TypeLabel: TypeLabel(t), Quality: models.QualityOK, Format: format}
	text := strings.TrimRight(string(b), "\x00")
	switch format {
	case models.FormatNumeric:
		f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if err != nil {
			return Decoded{Value: nil, TypeLabel: d.TypeLabel, Quality: models.QualityGeneralError, Format: format}
		}
		d.Value = f
	case models.FormatBoolean:
		if parsed, err := strconv.ParseBool(strings.TrimSpace(text)); err == nil {
			d.Value = parsed
			break
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if err != nil {
			return Decoded{Value: nil, TypeLabel: d.TypeLabel, Quality: models.QualityGeneralError, Format: format}
		}
		d.Value = f != 0
	case models.FormatJSON:
		d.Value = marshalEnvelope("Buffer", byteInts(b))
	default: // text, auto
		d.Value = text
		d.Format = models.FormatText
	}
	return d
}

// decodeTextOnly handles wire types that only have a textual representation
// (OID, IpAddress). Numeric and boolean requests are decode errors.
func decodeTextOnly(s string, t gosnmp.Asn1BER, format models.Format) Decoded {
	d := Decoded{TypeLabel: TypeLabel(t), Quality: models.QualityOK, Format: format}
	switch format {
	case models.FormatNumeric, models.FormatBoolean:
		d.Value = nil
		d.Quality = models.QualityGeneralError
		d.Format = models.FormatText
	case models.FormatJSON:
		raw, _ := json.Marshal(s)
		d.Value = string(raw)
	default: // text, auto
		d.Value = s
		d.Format = models.FormatText
	}
	return d
}

// ─────────────────────────────────────────────────────────────────────────────
// JSON envelope
// ─────────────────────────────────────────────────────────────────────────────

// envelope is the JSON wrapper used for the json logical format. The Buffer
// shape matches what downstream consumers of the original adapter expect.
type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

func marshalEnvelope(typ string, data any) string {
	raw, err := json.Marshal(envelope{Type: typ, Data: data})
	if err != nil {
		// Only unmarshalable data reaches this; all callers pass plain types.
		return ""
	}
	return string(raw)
}

// ─────────────────────────────────────────────────────────────────────────────
// Low-level value helpers
// ─────────────────────────────────────────────────────────────────────────────

// numericValue widens any numeric wire value to float64 and renders its exact
// textual form.
func numericValue(v any) (float64, string, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), strconv.FormatInt(int64(x), 10), true
	case int8:
		return float64(x), strconv.FormatInt(int64(x), 10), true
	case int16:
		return float64(x), strconv.FormatInt(int64(x), 10), true
	case int32:
		return float64(x), strconv.FormatInt(int64(x), 10), true
	case int64:
		return float64(x), strconv.FormatInt(x, 10), true
	case uint:
		return float64(x), strconv.FormatUint(uint64(x), 10), true
	case uint8:
		return float64(x), strconv.FormatUint(uint64(x), 10), true
	case uint16:
		return float64(x), strconv.FormatUint(uint64(x), 10), true
	case uint32:
		return float64(x), strconv.FormatUint(uint64(x), 10), true
	case uint64:
		return float64(x), strconv.FormatUint(x, 10), true
	case float32:
		return float64(x), formatFloat(float64(x)), true
	case float64:
		return x, formatFloat(x), true
	default:
		return 0, "", false
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func octets(v any) []byte {
	switch x := v.(type) {
	case []byte:
		return x
	case string:
		return []byte(x)
	default:
		return []byte(fmt.Sprintf("%v", v))
	}
}

func stringValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func byteInts(b []byte) []int {
	out := make([]int, len(b))
	for i, v := range b {
		out[i] = int(v)
	}
	return out
}
