// Package app wires the SNMP bridge together and manages its lifecycle.
//
// Read path:
//
//	session.Manager (one goroutine per device) → poller.Reader → store
//
// Write path (parallel):
//
//	store subscription → writer.Writer → fresh session → read-back → store
//
// Per-device reachability feeds the ConnInfo aggregator, which maintains the
// overall connectivity indicator.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/hausnetz/snmp_bridge/models"
	"github.com/hausnetz/snmp_bridge/pkg/snmpbridge/config"
	"github.com/hausnetz/snmp_bridge/pkg/snmpbridge/device"
	"github.com/hausnetz/snmp_bridge/pkg/snmpbridge/poller"
	"github.com/hausnetz/snmp_bridge/pkg/snmpbridge/session"
	"github.com/hausnetz/snmp_bridge/pkg/snmpbridge/store"
	"github.com/hausnetz/snmp_bridge/pkg/snmpbridge/transport"
	"github.com/hausnetz/snmp_bridge/pkg/snmpbridge/writer"
)

// ─────────────────────────────────────────────────────────────────────────────
// Configuration
// ─────────────────────────────────────────────────────────────────────────────

// Config holds the top-level settings for the bridge application.
type Config struct {
	// ConfigPath is the YAML configuration file. Empty falls back to the
	// environment variable and then the documented default path.
	ConfigPath string
}

// ─────────────────────────────────────────────────────────────────────────────
// App
// ─────────────────────────────────────────────────────────────────────────────

// App orchestrates the bridge. Create one with New, start it with Start, stop
// it with Stop. The store is injected and stays owned by the caller; the
// transport may be nil, in which case the gosnmp transport is built after the
// configuration is loaded.
type App struct {
	cfg    Config
	logger *slog.Logger

	store store.Store
	tr    transport.Transport

	// Loaded configuration and runtime contexts (populated in Start).
	loaded   *models.Config
	devices  []*device.Context
	reader   *poller.Reader
	registry *writer.Registry
	writer   *writer.Writer
	conn     *ConnInfo

	// Lifecycle.
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs an App. It does not start anything — call Start for that.
func New(cfg Config, st store.Store, tr transport.Transport, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	return &App{cfg: cfg, logger: logger, store: st, tr: tr}
}

// Start loads and validates the configuration, announces all state objects,
// subscribes to write commands and launches one session manager per device
// plus the connectivity safety net. The caller must eventually call Stop.
func (a *App) Start(ctx context.Context) error {
	// ── 1. Load and validate configuration ──────────────────────────────
	path := a.cfg.ConfigPath
	if path == "" {
		path = config.PathFromEnv()
	}
	a.logger.Info("app: loading configuration", "file", path)
	loaded, err := config.Load(path, a.logger)
	if err != nil {
		return fmt.Errorf("app: load config: %w", err)
	}
	if err := config.Validate(loaded, a.logger); err != nil {
		return fmt.Errorf("app: validate config: %w", err)
	}
	a.loaded = loaded

	// ── 2. Build device contexts ────────────────────────────────────────
	a.devices = device.Build(loaded, a.logger)
	if len(a.devices) == 0 {
		a.logger.Warn("app: no active devices configured, nothing will be polled")
	}
	a.logger.Info("app: configuration loaded",
		"devices", len(a.devices),
		"chunk_size", loaded.Options.ChunkSize,
	)

	if a.tr == nil {
		a.tr = &transport.SNMPTransport{MaxOids: loaded.Options.ChunkSize}
	}

	pipeCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	// ── 3. Assemble read and write paths ────────────────────────────────
	a.conn = NewConnInfo(a.store, a.logger)
	a.registry = writer.NewRegistry()
	a.reader = poller.NewReader(a.store, a.registry, a.conn, loaded.Options, a.logger)
	a.writer = writer.NewWriter(a.registry, a.tr, a.reader, a.logger)

	// ── 4. Announce objects and the initial connectivity state ──────────
	if err := a.announceObjects(pipeCtx); err != nil {
		return fmt.Errorf("app: announce objects: %w", err)
	}
	a.conn.Announce()

	// ── 5. Subscribe to write commands ──────────────────────────────────
	if err := a.store.Subscribe(pipeCtx, func(id string, st models.StateUpdate) {
		a.writer.HandleCommand(pipeCtx, id, st)
	}); err != nil {
		return fmt.Errorf("app: subscribe commands: %w", err)
	}

	// ── 6. Launch one session manager per device ────────────────────────
	for _, dctx := range a.devices {
		m := session.NewManager(dctx, a.tr, a.reader, a.logger)
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			m.Run(pipeCtx)
		}()
	}

	// ── 7. Connectivity safety net ──────────────────────────────────────
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.conn.Run(pipeCtx)
	}()

	a.logger.Info("app: bridge running", "devices", len(a.devices))
	return nil
}

// Stop cancels all goroutines, waits for them to exit and marks every device
// and the overall connectivity indicator as offline. The store itself stays
// open; its owner closes it.
func (a *App) Stop() {
	a.logger.Info("app: shutting down")

	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()

	// The pipeline context is gone; publish the final flags on a fresh one.
	ctx := context.Background()
	for _, dctx := range a.devices {
		err := a.store.SetState(ctx, dctx.ID+".online", models.StateUpdate{
			Val: false, Ack: true, Quality: models.QualityOK,
		})
		if err != nil {
			a.logger.Error("app: final offline publish failed", "device", dctx.Name, "error", err.Error())
		}
	}
	if a.conn != nil {
		a.conn.ForceDisconnected()
	}

	a.logger.Info("app: shutdown complete")
}

// ─────────────────────────────────────────────────────────────────────────────
// Object announcement
// ─────────────────────────────────────────────────────────────────────────────

// announceObjects publishes the metadata for every object the bridge will
// write: the connectivity indicator, one device object with its three
// indicator states, folder objects for intermediate id segments, and one
// state object per polled value (plus the optional diagnostic states).
func (a *App) announceObjects(ctx context.Context) error {
	ensure := func(id string, meta store.ObjectMeta) error {
		if err := a.store.EnsureObject(ctx, id, meta); err != nil {
			return fmt.Errorf("object %q: %w", id, err)
		}
		return nil
	}

	if err := ensure(ConnStateID, store.ObjectMeta{
		Name: "connected to at least one device", Type: "state",
		StateType: "boolean", Role: "indicator.connected",
	}); err != nil {
		return err
	}

	folders := make(map[string]bool)
	for _, dctx := range a.devices {
		if err := ensure(dctx.ID, store.ObjectMeta{Name: dctx.Name, Type: "device"}); err != nil {
			return err
		}
		folders[dctx.ID] = true

		indicators := []struct {
			suffix, name, stateType, role string
		}{
			{".online", "device reachable", "boolean", "indicator.reachable"},
			{".alarm", "device error detected", "boolean", "indicator.maintenance"},
			{".last_error", "last connection error", "string", "text"},
		}
		for _, ind := range indicators {
			if err := ensure(dctx.ID+ind.suffix, store.ObjectMeta{
				Name: ind.name, Type: "state", StateType: ind.stateType, Role: ind.role,
			}); err != nil {
				return err
			}
		}

		for ci := range dctx.Chunks {
			ch := &dctx.Chunks[ci]
			for i, id := range ch.IDs {
				if err := a.ensureFolders(ctx, folders, dctx.ID, id); err != nil {
					return err
				}
				def := ch.Defs[i]
				if err := ensure(id, store.ObjectMeta{
					Name:      def.Name,
					Type:      "state",
					StateType: def.Format.StateType(),
					Writeable: def.Writeable,
					Role:      "value",
				}); err != nil {
					return err
				}
				if a.loaded.Options.TypeStates {
					if err := ensure(id+"-type", store.ObjectMeta{
						Name: def.Name + " wire type", Type: "state", StateType: "string", Role: "text",
					}); err != nil {
						return err
					}
				}
				if a.loaded.Options.RawStates {
					if err := ensure(id+"-raw", store.ObjectMeta{
						Name: def.Name + " raw varbind", Type: "state", StateType: "string", Role: "json",
					}); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}

// ensureFolders announces a folder object for every intermediate segment of
// id between the device root and the leaf, once.
func (a *App) ensureFolders(ctx context.Context, seen map[string]bool, root, id string) error {
	prefix := root
	rest := strings.TrimPrefix(id, root+".")
	parts := strings.Split(rest, ".")
	for _, p := range parts[:len(parts)-1] {
		prefix = prefix + "." + p
		if seen[prefix] {
			continue
		}
		seen[prefix] = true
		if err := a.store.EnsureObject(ctx, prefix, store.ObjectMeta{Name: p, Type: "folder"}); err != nil {
			return fmt.Errorf("object %q: %w", prefix, err)
		}
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Utilities
// ─────────────────────────────────────────────────────────────────────────────

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
