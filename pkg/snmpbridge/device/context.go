// Package device turns validated configuration into runtime contexts, one
// per active device. A context's shape is immutable after Build: only its
// connection flags are mutated, and only by the device's own session
// goroutine.
package device

import (
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hausnetz/snmp_bridge/models"
)

// DefaultPort is the SNMP agent port used when the address carries none.
const DefaultPort = 161

// maxTimerMs guards every timer against the 0x7fffffff millisecond limit of
// 32-bit timer representations; anything larger would fire immediately on
// such platforms.
const maxTimerMs = math.MaxInt32

// forbiddenChars matches every character that may not appear in a state id
// segment. Hyphens and whitespace are folded into underscores as well.
var forbiddenChars = regexp.MustCompile(`[^0-9A-Za-z._]`)

var ipv6BracketedAddr = regexp.MustCompile(`^\[([0-9a-fA-F:.]+)\](:(\d+))?$`)

// ─────────────────────────────────────────────────────────────────────────────
// Context
// ─────────────────────────────────────────────────────────────────────────────

// Chunk is one bounded-size batch of OIDs read together in a single request.
// The three slices are parallel: Oids carries the wire OIDs, IDs the publish
// ids, Defs the originating definitions (format/writeable/optional flags).
type Chunk struct {
	Defs []models.OidDefinition
	Oids []string
	IDs  []string
}

// Context holds everything the session manager and poll loop need for one
// device. Online and Initialized are owned by the device's session goroutine.
type Context struct {
	// Name is the configured device name.
	Name string

	// ID is the publish-namespace root: the sanitized name, or the
	// underscored address in compatibility naming mode.
	ID string

	// Resolved address.
	IPAddr string
	Port   uint16
	IPv6   bool

	// Resolved timing.
	Timeout    time.Duration
	RetryIntvl time.Duration
	PollIntvl  time.Duration

	// Version and credentials. AuthID is the community string for v1/v2c;
	// Auth is the resolved SNMPv3 material (nil otherwise).
	Version string
	AuthID  string
	Auth    *models.AuthSet

	// Chunks is the device's OID partition, in configuration order.
	Chunks []Chunk

	// Connection flags, mutated only by the owning session goroutine.
	Online      bool
	Initialized bool
}

// ─────────────────────────────────────────────────────────────────────────────
// Build
// ─────────────────────────────────────────────────────────────────────────────

// Build creates one Context per active device, in configuration order. The
// configuration must already be validated.
func Build(cfg *models.Config, logger *slog.Logger) []*Context {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}

	chunkSize := cfg.Options.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 20
	}

	var ctxs []*Context
	for i := range cfg.Devices {
		dev := &cfg.Devices[i]
		if !dev.Active {
			continue
		}

		addr, port := ResolveAddress(dev.Address, dev.IPv6)

		c := &Context{
			Name:       dev.Name,
			ID:         SanitizeName(dev.Name),
			IPAddr:     addr,
			Port:       port,
			IPv6:       dev.IPv6,
			Timeout:    secondsToTimer(dev.TimeoutSec),
			RetryIntvl: secondsToTimer(dev.RetrySec),
			PollIntvl:  secondsToTimer(dev.PollSec),
			Version:    dev.Version,
			AuthID:     dev.AuthID,
		}

		if cfg.Options.UseAddressIDs {
			if dev.IPv6 {
				logger.Warn("device requests ipv6, compatibility naming mode ignored",
					"device", dev.Name, "address", dev.Address)
			} else {
				c.ID = strings.ReplaceAll(addr, ".", "_")
			}
		}

		if dev.Version == models.SnmpV3 {
			for j := range cfg.AuthSets {
				if cfg.AuthSets[j].ID == dev.AuthID {
					c.Auth = &cfg.AuthSets[j]
					break
				}
			}
		}

		c.Chunks = buildChunks(cfg.Oids, dev.OidGroup, c.ID, chunkSize)

		logger.Debug("device context created",
			"device", c.Name,
			"address", fmt.Sprintf("%s:%d", c.IPAddr, c.Port),
			"version", c.Version,
			"chunks", len(c.Chunks),
			"timeout_ms", c.Timeout.Milliseconds(),
			"retry_ms", c.RetryIntvl.Milliseconds(),
			"poll_ms", c.PollIntvl.Milliseconds(),
		)
		ctxs = append(ctxs, c)
	}
	return ctxs
}

// buildChunks partitions the device's applicable OIDs into chunks of at most
// size entries, preserving configuration order.
func buildChunks(oids []models.OidDefinition, group, deviceID string, size int) []Chunk {
	var chunks []Chunk
	for _, oid := range oids {
		if !oid.Active || oid.Group != group {
			continue
		}
		if len(chunks) == 0 || len(chunks[len(chunks)-1].Oids) >= size {
			chunks = append(chunks, Chunk{})
		}
		ch := &chunks[len(chunks)-1]
		ch.Defs = append(ch.Defs, oid)
		ch.Oids = append(ch.Oids, oid.Oid)
		ch.IDs = append(ch.IDs, deviceID+"."+SanitizeName(oid.Name))
	}
	return chunks
}

// ─────────────────────────────────────────────────────────────────────────────
// Address and id helpers
// ─────────────────────────────────────────────────────────────────────────────

// ResolveAddress splits a validated raw address into host and port. The port
// defaults to 161 in every branch.
func ResolveAddress(raw string, ipv6 bool) (string, uint16) {
	if ipv6 {
		if m := ipv6BracketedAddr.FindStringSubmatch(raw); m != nil {
			return m[1], parsePort(m[3])
		}
		if strings.Count(raw, ":") >= 2 {
			// Plain IPv6 address, no port attached.
			return raw, DefaultPort
		}
		// Hostname with optional port.
		host, port, ok := strings.Cut(raw, ":")
		if ok {
			return host, parsePort(port)
		}
		return raw, DefaultPort
	}

	host, port, ok := strings.Cut(raw, ":")
	if ok {
		return host, parsePort(port)
	}
	return raw, DefaultPort
}

func parsePort(s string) uint16 {
	if s == "" {
		return DefaultPort
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 || n > 65535 {
		return DefaultPort
	}
	return uint16(n)
}

// SanitizeName folds every character outside the allowed identifier set,
// plus hyphens and whitespace, into an underscore. Dots are kept as
// hierarchy separators.
func SanitizeName(name string) string {
	return forbiddenChars.ReplaceAllString(name, "_")
}

// secondsToTimer converts a configured second count into a duration, capped
// at the 32-bit millisecond timer limit.
func secondsToTimer(sec int) time.Duration {
	ms := int64(sec) * 1000
	if ms > maxTimerMs {
		ms = maxTimerMs
	}
	return time.Duration(ms) * time.Millisecond
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
