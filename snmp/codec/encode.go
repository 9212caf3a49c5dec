package codec

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/gosnmp/gosnmp"

	"github.com/hausnetz/snmp_bridge/models"
)

// ─────────────────────────────────────────────────────────────────────────────
// Source representation
// ─────────────────────────────────────────────────────────────────────────────

// SourceKind tags the representation of a logical value arriving from the
// state store. It is assigned once at the point of ingestion and threaded
// alongside the value — never inferred from the value's runtime shape.
type SourceKind int

const (
	// SourceBoolean is a native boolean value.
	SourceBoolean SourceKind = iota

	// SourceNumber is a native numeric value.
	SourceNumber

	// SourceString is a plain string value.
	SourceString

	// SourceJSON is a serialized JSON envelope string that must be
	// unwrapped before encoding.
	SourceJSON

	// sourceBuffer is the internal kind produced by unwrapping a Buffer
	// envelope.
	sourceBuffer
)

// KindOf tags a store value at ingestion time. Strings on values configured
// with the json format carry envelopes; all other strings are plain text.
func KindOf(val any, format models.Format) SourceKind {
	switch val.(type) {
	case bool:
		return SourceBoolean
	case float64, float32, int, int32, int64, uint, uint32, uint64:
		return SourceNumber
	default:
		if format == models.FormatJSON {
			return SourceJSON
		}
		return SourceString
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Encode
// ─────────────────────────────────────────────────────────────────────────────

// Encode converts a logical value into a wire-ready value for the given
// target wire type. On any unsupported combination it returns a nil wire
// value and an error; it never panics. Counter64 targets are unsupported for
// writes and always fail.
func Encode(target gosnmp.Asn1BER, val any, kind SourceKind) (any, gosnmp.Asn1BER, error) {
	if kind == SourceJSON {
		unwrapped, unwrappedKind, err := unwrapEnvelope(val)
		if err != nil {
			return nil, target, err
		}
		val = unwrapped
		kind = unwrappedKind
	}

	switch target {
	case gosnmp.Boolean:
		b, err := asBool(val, kind)
		if err != nil {
			return nil, target, err
		}
		return b, target, nil

	case gosnmp.Integer:
		n, err := asInt64(val, kind)
		if err != nil {
			return nil, target, err
		}
		return int(n), target, nil

	case gosnmp.Counter32, gosnmp.Gauge32, gosnmp.TimeTicks, gosnmp.Uinteger32:
		n, err := asInt64(val, kind)
		if err != nil {
			return nil, target, err
		}
		if n < 0 {
			return nil, target, fmt.Errorf("codec: negative value %d for unsigned wire type %s", n, TypeLabel(target))
		}
		return uint32(n), target, nil

	case gosnmp.OctetString:
		switch kind {
		case SourceString:
			s, _ := val.(string)
			return []byte(s), target, nil
		case sourceBuffer:
			b, _ := val.([]byte)
			return b, target, nil
		case SourceNumber:
			f, _ := asFloat(val)
			return []byte(strconv.FormatFloat(f, 'g', -1, 64)), target, nil
		default:
			return nil, target, fmt.Errorf("codec: cannot encode %s source as OctetString", kindLabel(kind))
		}

	case gosnmp.ObjectIdentifier:
		if kind != SourceString {
			return nil, target, fmt.Errorf("codec: cannot encode %s source as OID", kindLabel(kind))
		}
		s, _ := val.(string)
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, target, fmt.Errorf("codec: empty OID value")
		}
		return s, target, nil

	case gosnmp.IPAddress:
		if kind != SourceString {
			return nil, target, fmt.Errorf("codec: cannot encode %s source as IpAddress", kindLabel(kind))
		}
		s, _ := val.(string)
		return s, target, nil

	case gosnmp.Opaque:
		if kind != sourceBuffer {
			return nil, target, fmt.Errorf("codec: cannot encode %s source as Opaque", kindLabel(kind))
		}
		b, _ := val.([]byte)
		return b, target, nil

	case gosnmp.Counter64:
		return nil, target, fmt.Errorf("codec: Counter64 values are not writeable")

	default:
		return nil, target, fmt.Errorf("codec: unsupported target wire type %s", TypeLabel(target))
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Envelope unwrapping
// ─────────────────────────────────────────────────────────────────────────────

// unwrapEnvelope decodes a JSON envelope string ({"type":...,"data":...})
// into its native value. A malformed envelope or a declared type that does
// not match the data is an error.
func unwrapEnvelope(val any) (any, SourceKind, error) {
	s, ok := val.(string)
	if !ok {
		return nil, SourceJSON, fmt.Errorf("codec: json source value is %T, expected string", val)
	}

	var env struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal([]byte(s), &env); err != nil {
		return nil, SourceJSON, fmt.Errorf("codec: malformed json envelope: %w", err)
	}

	switch env.Type {
	case "boolean":
		var b bool
		if err := json.Unmarshal(env.Data, &b); err != nil {
			return nil, SourceJSON, fmt.Errorf("codec: envelope declares boolean but data is not: %w", err)
		}
		return b, SourceBoolean, nil
	case "number":
		var f float64
		if err := json.Unmarshal(env.Data, &f); err != nil {
			return nil, SourceJSON, fmt.Errorf("codec: envelope declares number but data is not: %w", err)
		}
		return f, SourceNumber, nil
	case "Buffer":
		var ints []int
		if err := json.Unmarshal(env.Data, &ints); err != nil {
			return nil, SourceJSON, fmt.Errorf("codec: envelope declares Buffer but data is not: %w", err)
		}
		b := make([]byte, len(ints))
		for i, v := range ints {
			if v < 0 || v > 255 {
				return nil, SourceJSON, fmt.Errorf("codec: Buffer envelope byte %d out of range", v)
			}
			b[i] = byte(v)
		}
		return b, sourceBuffer, nil
	default:
		return nil, SourceJSON, fmt.Errorf("codec: unknown envelope type %q", env.Type)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Coercion helpers
// ─────────────────────────────────────────────────────────────────────────────

func asBool(val any, kind SourceKind) (bool, error) {
	switch kind {
	case SourceBoolean:
		b, _ := val.(bool)
		return b, nil
	case SourceNumber:
		f, _ := asFloat(val)
		return f != 0, nil
	case SourceString:
		s, _ := val.(string)
		b, err := strconv.ParseBool(strings.TrimSpace(s))
		if err != nil {
			return false, fmt.Errorf("codec: cannot parse %q as boolean", s)
		}
		return b, nil
	default:
		return false, fmt.Errorf("codec: cannot encode %s source as Boolean", kindLabel(kind))
	}
}

func asInt64(val any, kind SourceKind) (int64, error) {
	switch kind {
	case SourceBoolean:
		if b, _ := val.(bool); b {
			return 1, nil
		}
		return 0, nil
	case SourceNumber:
		f, ok := asFloat(val)
		if !ok {
			return 0, fmt.Errorf("codec: numeric source value is %T", val)
		}
		return int64(f), nil
	case SourceString:
		s, _ := val.(string)
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, fmt.Errorf("codec: cannot parse %q as number", s)
		}
		return int64(f), nil
	default:
		return 0, fmt.Errorf("codec: cannot encode %s source as integer", kindLabel(kind))
	}
}

func asFloat(val any) (float64, bool) {
	f, _, ok := numericValue(val)
	return f, ok
}

func kindLabel(kind SourceKind) string {
	switch kind {
	case SourceBoolean:
		return "boolean"
	case SourceNumber:
		return "number"
	case SourceString:
		return "string"
	case SourceJSON:
		return "json"
	case sourceBuffer:
		return "buffer"
	default:
		return "unknown"
	}
}
