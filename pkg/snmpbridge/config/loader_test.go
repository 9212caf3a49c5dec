package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hausnetz/snmp_bridge/models"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
oids:
  - group: switch
    name: system.name
    oid: 1.3.6.1.2.1.1.5.0
    active: true
    writeable: true
    format: text
devices:
  - name: sw1
    address: 192.168.0.10
    oid_group: switch
    auth_id: public
    version: "2c"
    active: true
options:
  raw_states: true
`)

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Oids) != 1 || len(cfg.Devices) != 1 {
		t.Fatalf("oids = %d, devices = %d", len(cfg.Oids), len(cfg.Devices))
	}
	if cfg.Oids[0].Format != models.FormatText || !cfg.Oids[0].Writeable {
		t.Errorf("oid parsed wrong: %+v", cfg.Oids[0])
	}
	if cfg.Devices[0].Version != models.SnmpV2c {
		t.Errorf("version = %q, want 2c", cfg.Devices[0].Version)
	}
	if !cfg.Options.RawStates {
		t.Error("raw_states not parsed")
	}
	if cfg.Options.ChunkSize != DefaultChunkSize {
		t.Errorf("chunk size = %d, want default %d", cfg.Options.ChunkSize, DefaultChunkSize)
	}
}

func TestLoad_missingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yml"), nil); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_badYAML(t *testing.T) {
	path := writeConfig(t, "oids: [unterminated")
	if _, err := Load(path, nil); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestPathFromEnv(t *testing.T) {
	t.Setenv(EnvConfigPath, "/tmp/custom.yml")
	if got := PathFromEnv(); got != "/tmp/custom.yml" {
		t.Errorf("PathFromEnv = %q", got)
	}
	t.Setenv(EnvConfigPath, "")
	if got := PathFromEnv(); got != "/etc/snmp_bridge/config.yml" {
		t.Errorf("PathFromEnv default = %q", got)
	}
}
