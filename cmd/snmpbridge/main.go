// Command snmpbridge is the main SNMP bridge binary.
//
// It loads the YAML configuration, connects to the Redis state store, and
// polls all configured devices until interrupted (SIGINT / SIGTERM). Write
// commands arriving on the store's command channel are forwarded to the
// devices.
//
// Usage:
//
//	snmpbridge [flags]
//
// Redis connection settings may also come from a .env file in the working
// directory.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/hausnetz/snmp_bridge/pkg/snmpbridge/app"
	"github.com/hausnetz/snmp_bridge/pkg/snmpbridge/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "snmpbridge: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env file is fine; explicit flags and env vars still apply.
	_ = godotenv.Load()

	// ── Flags ────────────────────────────────────────────────────────────
	var (
		logLevel string
		logFmt   string
		cfgPath  string

		redisAddr string
		redisDB   int
		namespace string
	)

	flag.StringVar(&logLevel, "log.level", "info", "Log level: debug, info, warn, error")
	flag.StringVar(&logFmt, "log.fmt", "json", "Log format: json, text")
	flag.StringVar(&cfgPath, "config", "", "Override SNMPBRIDGE_CONFIG")
	flag.StringVar(&redisAddr, "redis.addr", envOr("REDIS_ADDR", "127.0.0.1:6379"), "Redis address")
	flag.IntVar(&redisDB, "redis.db", envInt("REDIS_DB", 0), "Redis database index")
	flag.StringVar(&namespace, "store.namespace", envOr("STORE_NAMESPACE", "snmpbridge"), "Key and channel prefix in the store")
	flag.Parse()

	// ── Logger ───────────────────────────────────────────────────────────
	logger, err := buildLogger(logLevel, logFmt)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── State store ──────────────────────────────────────────────────────
	st, err := store.NewRedisStore(ctx, store.RedisOptions{
		Addr:      redisAddr,
		DB:        redisDB,
		Namespace: namespace,
	}, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	// ── Build and start the bridge ───────────────────────────────────────
	application := app.New(app.Config{ConfigPath: cfgPath}, st, nil, logger)
	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	logger.Info("snmpbridge: running — press Ctrl-C to stop")

	<-ctx.Done()
	logger.Info("snmpbridge: received shutdown signal")

	application.Stop()
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

func buildLogger(level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level %q (expected debug|info|warn|error)", level)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler

	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	case "text":
		handler = slog.NewTextHandler(os.Stderr, opts)
	default:
		return nil, fmt.Errorf("unknown log format %q (expected json|text)", format)
	}

	return slog.New(handler), nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
