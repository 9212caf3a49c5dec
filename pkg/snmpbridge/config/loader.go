// Package config loads and validates the bridge configuration: the three
// collections (OID definitions, SNMPv3 authentication sets, devices) plus
// global options, read from a single YAML document.
package config

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hausnetz/snmp_bridge/models"
)

// DefaultChunkSize is the maximum number of OIDs per SNMP request when the
// configuration does not set one.
const DefaultChunkSize = 20

// EnvConfigPath names the environment variable holding the configuration
// file path, used when no flag override is given.
const EnvConfigPath = "SNMPBRIDGE_CONFIG"

// PathFromEnv returns the configuration file path from the environment,
// falling back to the documented default.
func PathFromEnv() string {
	if v := os.Getenv(EnvConfigPath); v != "" {
		return v
	}
	return "/etc/snmp_bridge/config.yml"
}

// Load reads and parses the YAML configuration at path. It applies global
// option defaults but performs no validation — call Validate before using
// the result.
func Load(path string, logger *slog.Logger) (*models.Config, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	var cfg models.Config
	dec := yaml.NewDecoder(f)
	dec.KnownFields(false) // be lenient — extra keys are fine
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}

	if cfg.Options.ChunkSize <= 0 {
		cfg.Options.ChunkSize = DefaultChunkSize
	}

	logger.Debug("config: loaded",
		"file", path,
		"oids", len(cfg.Oids),
		"auth_sets", len(cfg.AuthSets),
		"devices", len(cfg.Devices),
		"chunk_size", cfg.Options.ChunkSize,
	)
	return &cfg, nil
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
