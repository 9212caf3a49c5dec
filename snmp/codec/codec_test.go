package codec

import (
	"encoding/binary"
	"math"
	"reflect"
	"testing"

	"github.com/gosnmp/gosnmp"

	"github.com/hausnetz/snmp_bridge/models"
)

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

func pdu(t gosnmp.Asn1BER, v any) gosnmp.SnmpPDU {
	return gosnmp.SnmpPDU{Name: ".1.3.6.1.2.1.1.5.0", Type: t, Value: v}
}

func opaqueFloat(f float32) []byte {
	b := make([]byte, 7)
	copy(b, opaqueFloatHeader)
	binary.BigEndian.PutUint32(b[3:], math.Float32bits(f))
	return b
}

// ─────────────────────────────────────────────────────────────────────────────
// Decode
// ─────────────────────────────────────────────────────────────────────────────

func TestDecode_matrix(t *testing.T) {
	tests := []struct {
		name    string
		pdu     gosnmp.SnmpPDU
		format  models.Format
		wantVal any
		wantQ   models.Quality
		wantFmt models.Format
	}{
		{"integer auto", pdu(gosnmp.Integer, 42), models.FormatAuto, float64(42), models.QualityOK, models.FormatNumeric},
		{"integer text", pdu(gosnmp.Integer, 42), models.FormatText, "42", models.QualityOK, models.FormatText},
		{"integer boolean", pdu(gosnmp.Integer, 0), models.FormatBoolean, false, models.QualityOK, models.FormatBoolean},
		{"integer json", pdu(gosnmp.Integer, 5), models.FormatJSON, `{"type":"number","data":5}`, models.QualityOK, models.FormatJSON},
		{"gauge numeric", pdu(gosnmp.Gauge32, uint(7)), models.FormatNumeric, float64(7), models.QualityOK, models.FormatNumeric},
		{"timeticks auto", pdu(gosnmp.TimeTicks, uint32(12345)), models.FormatAuto, float64(12345), models.QualityOK, models.FormatNumeric},

		{"boolean auto", pdu(gosnmp.Boolean, true), models.FormatAuto, true, models.QualityOK, models.FormatBoolean},
		{"boolean text", pdu(gosnmp.Boolean, true), models.FormatText, "true", models.QualityOK, models.FormatText},
		{"boolean numeric", pdu(gosnmp.Boolean, true), models.FormatNumeric, float64(1), models.QualityOK, models.FormatNumeric},
		{"boolean json", pdu(gosnmp.Boolean, true), models.FormatJSON, `{"type":"boolean","data":true}`, models.QualityOK, models.FormatJSON},

		{"octets auto", pdu(gosnmp.OctetString, []byte("hello\x00")), models.FormatAuto, "hello", models.QualityOK, models.FormatText},
		{"octets numeric", pdu(gosnmp.OctetString, []byte("3.14")), models.FormatNumeric, 3.14, models.QualityOK, models.FormatNumeric},
		{"octets numeric invalid", pdu(gosnmp.OctetString, []byte("abc")), models.FormatNumeric, nil, models.QualityGeneralError, models.FormatNumeric},
		{"octets boolean word", pdu(gosnmp.OctetString, []byte("true")), models.FormatBoolean, true, models.QualityOK, models.FormatBoolean},
		{"octets boolean numeric", pdu(gosnmp.OctetString, []byte("0")), models.FormatBoolean, false, models.QualityOK, models.FormatBoolean},
		{"octets json", pdu(gosnmp.OctetString, []byte{1, 2}), models.FormatJSON, `{"type":"Buffer","data":[1,2]}`, models.QualityOK, models.FormatJSON},

		{"oid auto", pdu(gosnmp.ObjectIdentifier, ".1.3.6.1"), models.FormatAuto, "1.3.6.1", models.QualityOK, models.FormatText},
		{"oid numeric", pdu(gosnmp.ObjectIdentifier, ".1.3.6.1"), models.FormatNumeric, nil, models.QualityGeneralError, models.FormatText},
		{"ipaddress auto", pdu(gosnmp.IPAddress, "192.168.0.1"), models.FormatAuto, "192.168.0.1", models.QualityOK, models.FormatText},

		{"opaque float auto", pdu(gosnmp.Opaque, opaqueFloat(1.5)), models.FormatAuto, 1.5, models.QualityOK, models.FormatNumeric},
		{"opaque bad header", pdu(gosnmp.Opaque, []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07}), models.FormatAuto, nil, models.QualityGeneralError, models.FormatText},
		{"opaque short", pdu(gosnmp.Opaque, []byte{0x9F, 0x78}), models.FormatAuto, nil, models.QualityGeneralError, models.FormatText},

		{"null", pdu(gosnmp.Null, nil), models.FormatNumeric, nil, models.QualityGeneralError, models.FormatText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Decode(tt.pdu, tt.format)
			if !reflect.DeepEqual(d.Value, tt.wantVal) {
				t.Errorf("Value = %#v, want %#v", d.Value, tt.wantVal)
			}
			if d.Quality != tt.wantQ {
				t.Errorf("Quality = 0x%02X, want 0x%02X", uint8(d.Quality), uint8(tt.wantQ))
			}
			if d.Format != tt.wantFmt {
				t.Errorf("Format = %q, want %q", d.Format, tt.wantFmt)
			}
		})
	}
}

func TestDecode_counter64(t *testing.T) {
	// Full-width value: the text format stays exact, numeric widens.
	d := Decode(pdu(gosnmp.Counter64, uint64(math.MaxUint64)), models.FormatText)
	if d.Value != "18446744073709551615" {
		t.Errorf("text value = %v, want full 64-bit rendering", d.Value)
	}
	if d.Quality != models.QualityOK {
		t.Errorf("Quality = 0x%02X, want OK", uint8(d.Quality))
	}

	// Byte-sequence delivery.
	d = Decode(pdu(gosnmp.Counter64, []byte{0x01, 0x00}), models.FormatNumeric)
	if d.Value != float64(256) {
		t.Errorf("byte-sequence value = %v, want 256", d.Value)
	}

	d = Decode(pdu(gosnmp.Counter64, uint64(0)), models.FormatBoolean)
	if d.Value != false {
		t.Errorf("boolean value = %v, want false", d.Value)
	}
}

func TestDecode_deterministic(t *testing.T) {
	inputs := []gosnmp.SnmpPDU{
		pdu(gosnmp.Integer, 42),
		pdu(gosnmp.OctetString, []byte("abc")),
		pdu(gosnmp.Opaque, opaqueFloat(2.25)),
		pdu(gosnmp.Counter64, uint64(9000000000000000001)),
	}
	for _, in := range inputs {
		for _, f := range []models.Format{models.FormatText, models.FormatNumeric, models.FormatBoolean, models.FormatJSON, models.FormatAuto} {
			a := Decode(in, f)
			b := Decode(in, f)
			if !reflect.DeepEqual(a, b) {
				t.Errorf("Decode(%v, %q) not deterministic: %#v vs %#v", in.Type, f, a, b)
			}
		}
	}
}

func TestIsVarbindError(t *testing.T) {
	for _, typ := range []gosnmp.Asn1BER{gosnmp.NoSuchObject, gosnmp.NoSuchInstance, gosnmp.EndOfMibView} {
		if !IsVarbindError(typ) {
			t.Errorf("IsVarbindError(%v) = false, want true", typ)
		}
	}
	if IsVarbindError(gosnmp.Integer) {
		t.Error("IsVarbindError(Integer) = true, want false")
	}
}

func TestTypeLabel_unknown(t *testing.T) {
	if got := TypeLabel(gosnmp.Asn1BER(0x7D)); got != "Unknown(0x7D)" {
		t.Errorf("TypeLabel = %q", got)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Round trips
// ─────────────────────────────────────────────────────────────────────────────

func TestRoundTrip_decodeThenEncode(t *testing.T) {
	tests := []struct {
		name   string
		pdu    gosnmp.SnmpPDU
		format models.Format
		want   any
	}{
		{"text octets", pdu(gosnmp.OctetString, []byte("hello")), models.FormatText, []byte("hello")},
		{"numeric integer", pdu(gosnmp.Integer, 42), models.FormatNumeric, 42},
		{"boolean", pdu(gosnmp.Boolean, true), models.FormatBoolean, true},
		{"json buffer", pdu(gosnmp.OctetString, []byte{0, 255, 7}), models.FormatJSON, []byte{0, 255, 7}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Decode(tt.pdu, tt.format)
			if d.Quality != models.QualityOK {
				t.Fatalf("decode quality = 0x%02X", uint8(d.Quality))
			}
			kind := KindOf(d.Value, tt.format)
			got, wireType, err := Encode(tt.pdu.Type, d.Value, kind)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			if wireType != tt.pdu.Type {
				t.Errorf("wire type = %v, want %v", wireType, tt.pdu.Type)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("encoded = %#v, want %#v", got, tt.want)
			}
		})
	}
}
