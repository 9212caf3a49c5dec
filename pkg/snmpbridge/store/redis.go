package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/go-redis/redis/v8"

	"github.com/hausnetz/snmp_bridge/models"
)

// ─────────────────────────────────────────────────────────────────────────────
// RedisStore
// ─────────────────────────────────────────────────────────────────────────────

// RedisOptions configures the Redis-backed store.
type RedisOptions struct {
	// Addr is the Redis address, host:port or a unix socket path.
	Addr string

	// Network is "tcp" (default) or "unix".
	Network string

	// DB is the Redis database index.
	DB int

	// Namespace prefixes every key and channel; default "snmpbridge".
	Namespace string
}

func (o *RedisOptions) withDefaults() {
	if o.Network == "" {
		o.Network = "tcp"
	}
	if o.Addr == "" {
		o.Addr = "127.0.0.1:6379"
	}
	if o.Namespace == "" {
		o.Namespace = "snmpbridge"
	}
}

// RedisStore keeps one hash per state id (fields val/ack/q), an objects hash
// for metadata, and two pub/sub channels: "<ns>:state" carries every
// acknowledged publish for downstream consumers, "<ns>:cmd" carries
// externally-initiated writes back into the bridge.
type RedisStore struct {
	client *redis.Client
	ns     string
	logger *slog.Logger
}

// NewRedisStore connects to Redis and verifies the connection with a ping.
func NewRedisStore(ctx context.Context, opts RedisOptions, logger *slog.Logger) (*RedisStore, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	opts.withDefaults()

	client := redis.NewClient(&redis.Options{
		Network: opts.Network,
		Addr:    opts.Addr,
		DB:      opts.DB,
	})
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("store: connect redis %s: %w", opts.Addr, err)
	}

	logger.Debug("store: redis connected", "addr", opts.Addr, "db", opts.DB, "namespace", opts.Namespace)
	return &RedisStore{client: client, ns: opts.Namespace, logger: logger}, nil
}

func (s *RedisStore) stateKey(id string) string { return s.ns + ":" + id }

// stateMessage is the wire form used on both pub/sub channels.
type stateMessage struct {
	ID string `json:"id"`
	models.StateUpdate
}

// SetState overwrites the state hash for id and announces the update on the
// state channel.
func (s *RedisStore) SetState(ctx context.Context, id string, st models.StateUpdate) error {
	val, err := json.Marshal(st.Val)
	if err != nil {
		return fmt.Errorf("store: marshal value for %q: %w", id, err)
	}

	fields := map[string]interface{}{
		"val": string(val),
		"ack": boolField(st.Ack),
		"q":   int(st.Quality),
	}
	if err := s.client.HSet(ctx, s.stateKey(id), fields).Err(); err != nil {
		return fmt.Errorf("store: hset %q: %w", id, err)
	}

	msg, _ := json.Marshal(stateMessage{ID: id, StateUpdate: st})
	if err := s.client.Publish(ctx, s.ns+":state", msg).Err(); err != nil {
		return fmt.Errorf("store: publish state %q: %w", id, err)
	}
	return nil
}

// GetState reads the state hash for id. A missing id yields a zero update.
func (s *RedisStore) GetState(ctx context.Context, id string) (models.StateUpdate, error) {
	var st models.StateUpdate

	fields, err := s.client.HGetAll(ctx, s.stateKey(id)).Result()
	if err != nil {
		return st, fmt.Errorf("store: hgetall %q: %w", id, err)
	}
	if len(fields) == 0 {
		return st, nil
	}

	if raw, ok := fields["val"]; ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &st.Val); err != nil {
			return st, fmt.Errorf("store: unmarshal value for %q: %w", id, err)
		}
	}
	st.Ack = fields["ack"] == "1"
	if raw, ok := fields["q"]; ok {
		q, err := strconv.Atoi(raw)
		if err != nil {
			return st, fmt.Errorf("store: bad quality for %q: %w", id, err)
		}
		st.Quality = models.Quality(q)
	}
	return st, nil
}

// EnsureObject stores the object metadata in the objects hash.
func (s *RedisStore) EnsureObject(ctx context.Context, id string, meta ObjectMeta) error {
	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("store: marshal object %q: %w", id, err)
	}
	if err := s.client.HSet(ctx, s.ns+":objects", id, raw).Err(); err != nil {
		return fmt.Errorf("store: ensure object %q: %w", id, err)
	}
	return nil
}

// Subscribe consumes the command channel and delivers every decodable
// message to fn. The consumer goroutine exits when ctx is cancelled.
func (s *RedisStore) Subscribe(ctx context.Context, fn CommandFunc) error {
	sub := s.client.Subscribe(ctx, s.ns+":cmd")
	// Force the subscription to be established before returning.
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("store: subscribe %s:cmd: %w", s.ns, err)
	}

	ch := sub.Channel()
	go func() {
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var cmd stateMessage
				if err := json.Unmarshal([]byte(msg.Payload), &cmd); err != nil {
					s.logger.Warn("store: dropping undecodable command", "error", err.Error())
					continue
				}
				if cmd.ID == "" {
					s.logger.Warn("store: dropping command without id")
					continue
				}
				fn(cmd.ID, cmd.StateUpdate)
			}
		}
	}()
	return nil
}

// Close releases the Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
