package config

import (
	"fmt"
	"log/slog"
	"net"
	"regexp"
	"strconv"
	"strings"

	"github.com/hausnetz/snmp_bridge/models"
)

// Timing clamp ranges, in seconds. The upper bounds keep every timer well
// below the 0x7fffffff millisecond limit of 32-bit timer representations.
const (
	minTimeoutSec = 1
	maxTimeoutSec = 600
	minRetrySec   = 1
	maxRetrySec   = 3600
	minPollSec    = 5
	maxPollSec    = 3600

	defaultTimeoutSec = 5
	defaultRetrySec   = 5
	defaultPollSec    = 30
)

var (
	oidPattern      = regexp.MustCompile(`^\d+(\.\d+)*$`)
	numericPattern  = regexp.MustCompile(`^\d+$`)
	hostnamePattern = regexp.MustCompile(`^[a-zA-Z0-9.-]+(:\d+)?$`)
	ipv4Pattern     = regexp.MustCompile(`^\d+\.\d+\.\d+\.\d+(:\d+)?$`)
	ipv6Plain       = regexp.MustCompile(`^[0-9a-fA-F:.]+$`)
	ipv6Bracketed   = regexp.MustCompile(`^\[([0-9a-fA-F:.]+)\](:\d+)?$`)
)

// Validate checks and normalizes the configuration in place: strings are
// trimmed, timing values parsed and clamped. Soft issues (out-of-range
// timings, unreferenced oid-groups) are corrected with a warning; hard
// issues are accumulated per stage and returned together, aborting before
// the next stage. A non-nil error means the configuration must not be used.
func Validate(cfg *models.Config, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}

	if cfg.Options.UseAddressIDs {
		logger.Warn("config: compatibility naming mode is deprecated, please adapt the configuration")
	}

	var errs []string
	groups := make(map[string]bool)

	// ── Stage 1: OID definitions ────────────────────────────────────────
	if len(cfg.Oids) == 0 {
		errs = append(errs, "no oids configured")
	}
	for i := range cfg.Oids {
		oid := &cfg.Oids[i]
		if !oid.Active {
			continue
		}

		oid.Group = strings.TrimSpace(oid.Group)
		oid.Name = strings.TrimSpace(oid.Name)
		oid.Oid = strings.TrimPrefix(strings.TrimSpace(oid.Oid), ".")
		if oid.Format == "" {
			oid.Format = models.FormatAuto
		}

		if oid.Group == "" {
			errs = append(errs, "oid group must not be empty")
		}
		if oid.Name == "" {
			errs = append(errs, "oid name must not be empty")
		}
		if err := checkName(oid.Name); err != nil {
			errs = append(errs, fmt.Sprintf("oid %q: %v", oid.Name, err))
		}
		if oid.Name == models.ReservedName {
			errs = append(errs, fmt.Sprintf("oid name %q is reserved", oid.Name))
		}
		if oid.Oid == "" {
			errs = append(errs, "oid must not be empty")
		} else if !oidPattern.MatchString(oid.Oid) {
			errs = append(errs, fmt.Sprintf("oid %q has invalid format", oid.Oid))
		}
		if !oid.Format.Valid() {
			errs = append(errs, fmt.Sprintf("oid %q: unknown format %q", oid.Name, oid.Format))
		}

		groups[oid.Group] = true
	}
	if len(errs) > 0 {
		return validationError(errs)
	}

	// ── Stage 2: authentication sets ────────────────────────────────────
	authIDs := make(map[string]bool)
	for i := range cfg.AuthSets {
		a := &cfg.AuthSets[i]
		a.ID = strings.TrimSpace(a.ID)
		a.User = strings.TrimSpace(a.User)
		a.AuthKey = strings.TrimSpace(a.AuthKey)
		a.PrivKey = strings.TrimSpace(a.PrivKey)

		if a.ID == "" {
			errs = append(errs, "empty authentication id detected")
			continue
		}
		if authIDs[a.ID] {
			errs = append(errs, fmt.Sprintf("duplicate authentication id %q", a.ID))
			continue
		}
		authIDs[a.ID] = true
	}
	if len(errs) > 0 {
		return validationError(errs)
	}

	// ── Stage 3: devices ────────────────────────────────────────────────
	if len(cfg.Devices) == 0 {
		errs = append(errs, "no devices configured")
	}
	for i := range cfg.Devices {
		dev := &cfg.Devices[i]
		if !dev.Active {
			continue
		}

		dev.Name = strings.TrimSpace(dev.Name)
		dev.Address = strings.TrimSpace(dev.Address)
		dev.OidGroup = strings.TrimSpace(dev.OidGroup)
		dev.AuthID = strings.TrimSpace(dev.AuthID)

		if dev.Name == "" {
			errs = append(errs, "device name must not be empty")
		}
		if err := checkName(dev.Name); err != nil {
			errs = append(errs, fmt.Sprintf("device %q: %v", dev.Name, err))
		}

		if err := checkAddress(dev.Address, dev.IPv6); err != nil {
			errs = append(errs, fmt.Sprintf("device %q: %v", dev.Name, err))
		}

		if dev.OidGroup == "" {
			errs = append(errs, fmt.Sprintf("device %q does not specify an oid group", dev.Name))
		} else if !groups[dev.OidGroup] {
			logger.Warn("config: device references unknown or completely inactive oid group",
				"device", dev.Name,
				"oid_group", dev.OidGroup,
			)
		}

		if dev.Version == models.SnmpV3 {
			if dev.AuthID == "" {
				errs = append(errs, fmt.Sprintf("device %q requires an authentication id", dev.Name))
			} else if !authIDs[dev.AuthID] {
				errs = append(errs, fmt.Sprintf("device %q references unknown authentication id %q", dev.Name, dev.AuthID))
			}
		}

		dev.TimeoutSec = parseTiming(dev.Name, "timeout", dev.Timeout, defaultTimeoutSec, &errs)
		dev.RetrySec = parseTiming(dev.Name, "retry interval", dev.RetryInterval, defaultRetrySec, &errs)
		dev.PollSec = parseTiming(dev.Name, "poll interval", dev.PollInterval, defaultPollSec, &errs)

		// Independent, idempotent correction passes: each range first,
		// then the poll-vs-timeout relation against the final timeout.
		dev.TimeoutSec = clamp(logger, dev.Name, "timeout", dev.TimeoutSec, minTimeoutSec, maxTimeoutSec)
		dev.RetrySec = clamp(logger, dev.Name, "retry interval", dev.RetrySec, minRetrySec, maxRetrySec)
		dev.PollSec = clamp(logger, dev.Name, "poll interval", dev.PollSec, minPollSec, maxPollSec)
		if dev.PollSec <= dev.TimeoutSec {
			logger.Warn("config: poll interval must be larger than device timeout, adjusting",
				"device", dev.Name,
				"poll_interval", dev.PollSec,
				"timeout", dev.TimeoutSec,
				"adjusted", dev.TimeoutSec+1,
			)
			dev.PollSec = dev.TimeoutSec + 1
		}
	}
	if len(errs) > 0 {
		return validationError(errs)
	}

	logger.Debug("config: validation completed")
	return nil
}

// checkName enforces the shared id rules for device and OID names: no
// leading, trailing or consecutive dots (ids must not contain empty
// segments).
func checkName(name string) error {
	if strings.HasPrefix(name, ".") {
		return fmt.Errorf("name must not start with \".\"")
	}
	if strings.HasSuffix(name, ".") {
		return fmt.Errorf("name must not end with \".\"")
	}
	if strings.Contains(name, "..") {
		return fmt.Errorf("name must not include consecutive dots")
	}
	return nil
}

// checkAddress validates the textual address per the device's v6 flag.
// Allowed forms: hostname[:port]; IPv4 a.b.c.d[:port]; IPv6 plain or
// bracketed [addr][:port].
func checkAddress(addr string, ipv6 bool) error {
	if addr == "" {
		return fmt.Errorf("address must not be empty")
	}
	if ipv6 {
		if m := ipv6Bracketed.FindStringSubmatch(addr); m != nil {
			if net.ParseIP(m[1]) == nil || !strings.Contains(m[1], ":") {
				return fmt.Errorf("address %q is not a valid ipv6 address", m[1])
			}
			return nil
		}
		if ipv6Plain.MatchString(addr) {
			if ip := net.ParseIP(addr); ip == nil || !strings.Contains(addr, ":") {
				return fmt.Errorf("address %q is not a valid ipv6 address", addr)
			}
			return nil
		}
		if hostnamePattern.MatchString(addr) {
			return nil
		}
		return fmt.Errorf("address %q has invalid format for ipv6", addr)
	}

	if ipv4Pattern.MatchString(addr) {
		host := strings.SplitN(addr, ":", 2)[0]
		if ip := net.ParseIP(host); ip == nil || ip.To4() == nil {
			return fmt.Errorf("address %q is not a valid ipv4 address", host)
		}
		return nil
	}
	if hostnamePattern.MatchString(addr) {
		return nil
	}
	return fmt.Errorf("address %q has invalid format for ipv4", addr)
}

// parseTiming parses one numeric-string timing field. A non-numeric value is
// a hard error; the default keeps later passes meaningful while errors
// accumulate.
func parseTiming(device, field, raw string, def int, errs *[]string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def
	}
	if !numericPattern.MatchString(raw) {
		*errs = append(*errs, fmt.Sprintf("device %q: %s (%q) must be numeric", device, field, raw))
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("device %q: %s (%q) must be numeric", device, field, raw))
		return def
	}
	return n
}

func clamp(logger *slog.Logger, device, field string, v, lo, hi int) int {
	if v < lo {
		logger.Warn("config: timing value below minimum, adjusting",
			"device", device, "field", field, "value", v, "adjusted", lo)
		return lo
	}
	if v > hi {
		logger.Warn("config: timing value above maximum, adjusting",
			"device", device, "field", field, "value", v, "adjusted", hi)
		return hi
	}
	return v
}

func validationError(errs []string) error {
	return fmt.Errorf("config: %d error(s):\n  %s", len(errs), strings.Join(errs, "\n  "))
}
