// Package transport is the protocol capability consumed by the session
// manager and the write path: create a session for a device context, issue
// batched get/set requests, close. The production implementation is backed
// by gosnmp; tests substitute fakes.
package transport

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/gosnmp/gosnmp"

	"github.com/hausnetz/snmp_bridge/models"
	"github.com/hausnetz/snmp_bridge/pkg/snmpbridge/device"
)

// ─────────────────────────────────────────────────────────────────────────────
// Capability interfaces
// ─────────────────────────────────────────────────────────────────────────────

// Session is one live protocol session to one device. Sessions are created
// fresh on every (re)connect and every write operation, never reused across
// reconnects.
type Session interface {
	// Get issues a batched read for the given wire OIDs and returns one
	// varbind per OID, in request order.
	Get(oids []string) ([]gosnmp.SnmpPDU, error)

	// Set writes the given varbinds to the device.
	Set(pdus []gosnmp.SnmpPDU) ([]gosnmp.SnmpPDU, error)

	// Close releases the underlying connection. Safe to call once.
	Close() error
}

// Transport creates sessions. Implementations must not retry beyond a single
// transport-level retry — reconnect policy lives in the session manager.
type Transport interface {
	CreateSession(dctx *device.Context) (Session, error)
}

// ─────────────────────────────────────────────────────────────────────────────
// gosnmp production implementation
// ─────────────────────────────────────────────────────────────────────────────

// SNMPTransport is the gosnmp-backed Transport.
type SNMPTransport struct {
	// MaxOids bounds the per-request varbind count; it must be at least
	// the configured chunk size. Zero means the gosnmp default.
	MaxOids int
}

// CreateSession assembles version-specific session parameters for the device
// and connects. The community string travels in the device's AuthID field
// for v1/v2c; v3 devices carry resolved AuthSet material.
func (t *SNMPTransport) CreateSession(dctx *device.Context) (Session, error) {
	g := &gosnmp.GoSNMP{
		Target:    dctx.IPAddr,
		Port:      dctx.Port,
		Transport: transportFamily(dctx.IPv6),
		Timeout:   dctx.Timeout,
		Retries:   1,
		MaxOids:   t.MaxOids,
	}

	switch dctx.Version {
	case models.SnmpV1:
		g.Version = gosnmp.Version1
		g.Community = dctx.AuthID
	case models.SnmpV2c:
		g.Version = gosnmp.Version2c
		g.Community = dctx.AuthID
	case models.SnmpV3:
		if dctx.Auth == nil {
			return nil, fmt.Errorf("transport: device %q has no resolved v3 authentication set", dctx.Name)
		}
		g.Version = gosnmp.Version3
		g.SecurityModel = gosnmp.UserSecurityModel
		g.MsgFlags = mapSecurityLevel(dctx.Auth.SecurityLevel)
		g.SecurityParameters = &gosnmp.UsmSecurityParameters{
			UserName:                 dctx.Auth.User,
			AuthenticationProtocol:   mapAuthProto(dctx.Auth.AuthProtocol),
			AuthenticationPassphrase: dctx.Auth.AuthKey,
			PrivacyProtocol:          mapPrivProto(dctx.Auth.PrivProtocol),
			PrivacyPassphrase:        dctx.Auth.PrivKey,
		}
	default:
		return nil, fmt.Errorf("transport: unsupported snmp version %q for device %q", dctx.Version, dctx.Name)
	}

	if err := g.Connect(); err != nil {
		return nil, fmt.Errorf("transport: connect %s:%d: %w", dctx.IPAddr, dctx.Port, err)
	}
	return &snmpSession{g: g, target: dctx.IPAddr}, nil
}

func transportFamily(ipv6 bool) string {
	if ipv6 {
		return "udp6"
	}
	return "udp4"
}

// snmpSession wraps a connected gosnmp instance together with its target
// address for diagnostics.
type snmpSession struct {
	g      *gosnmp.GoSNMP
	target string
}

func (s *snmpSession) Get(oids []string) ([]gosnmp.SnmpPDU, error) {
	pkt, err := s.g.Get(oids)
	if err != nil {
		return nil, fmt.Errorf("snmp get %s: %w", s.target, err)
	}
	return pkt.Variables, nil
}

func (s *snmpSession) Set(pdus []gosnmp.SnmpPDU) ([]gosnmp.SnmpPDU, error) {
	pkt, err := s.g.Set(pdus)
	if err != nil {
		return nil, fmt.Errorf("snmp set %s: %w", s.target, err)
	}
	return pkt.Variables, nil
}

func (s *snmpSession) Close() error {
	return s.g.Conn.Close()
}

// ─────────────────────────────────────────────────────────────────────────────
// Error classification
// ─────────────────────────────────────────────────────────────────────────────

// IsTimeout reports whether err is a request timeout — the expected,
// recoverable failure mode of an unreachable device — as opposed to any
// other transport error.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "timeout")
}

// ─────────────────────────────────────────────────────────────────────────────
// SNMPv3 enumerations
// ─────────────────────────────────────────────────────────────────────────────

// mapSecurityLevel maps the configured security level onto gosnmp message
// flags. Unrecognised codes fall back to noAuthNoPriv rather than failing.
func mapSecurityLevel(s string) gosnmp.SnmpV3MsgFlags {
	switch {
	case strings.EqualFold(s, "authPriv"):
		return gosnmp.AuthPriv
	case strings.EqualFold(s, "authNoPriv"):
		return gosnmp.AuthNoPriv
	default:
		return gosnmp.NoAuthNoPriv
	}
}

func mapAuthProto(s string) gosnmp.SnmpV3AuthProtocol {
	switch strings.ToLower(s) {
	case "md5":
		return gosnmp.MD5
	case "sha":
		return gosnmp.SHA
	case "sha224":
		return gosnmp.SHA224
	case "sha256":
		return gosnmp.SHA256
	case "sha384":
		return gosnmp.SHA384
	case "sha512":
		return gosnmp.SHA512
	default:
		return gosnmp.NoAuth
	}
}

func mapPrivProto(s string) gosnmp.SnmpV3PrivProtocol {
	switch strings.ToLower(s) {
	case "des":
		return gosnmp.DES
	case "aes":
		return gosnmp.AES
	case "aes192":
		return gosnmp.AES192
	case "aes256":
		return gosnmp.AES256
	case "aes192c":
		return gosnmp.AES192C
	case "aes256c":
		return gosnmp.AES256C
	default:
		return gosnmp.NoPriv
	}
}
