package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const cancelChannel = "avatar-studio:run-cancel"

// Broadcaster tells other service instances that a session started a new
// run, so they abandon their copy of the session's previous run.
type Broadcaster interface {
	Announce(ctx context.Context, sessionID, runID string) error
	Listen(ctx context.Context, onCancel func(sessionID, runID string)) error
	Close() error
}

// NoopBroadcaster is used when only one instance runs.
type NoopBroadcaster struct{}

func (NoopBroadcaster) Announce(context.Context, string, string) error { return nil }

func (NoopBroadcaster) Listen(ctx context.Context, _ func(string, string)) error {
	<-ctx.Done()
	return nil
}

func (NoopBroadcaster) Close() error { return nil }

type cancelMessage struct {
	SessionID string `json:"sessionId"`
	RunID     string `json:"runId"`
	Instance  string `json:"instance"`
}

// RedisBroadcaster publishes run announcements over Redis pub/sub.
type RedisBroadcaster struct {
	rdb      *redis.Client
	instance string
	logger   *slog.Logger
}

// NewRedisBroadcaster connects to redisURL (redis:// or rediss://) and
// verifies the connection.
func NewRedisBroadcaster(ctx context.Context, redisURL string, logger *slog.Logger) (*RedisBroadcaster, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opts.DialTimeout = 10 * time.Second
	opts.ReadTimeout = 30 * time.Second
	opts.WriteTimeout = 30 * time.Second

	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisBroadcaster{rdb: rdb, instance: uuid.NewString(), logger: logger}, nil
}

func (b *RedisBroadcaster) Announce(ctx context.Context, sessionID, runID string) error {
	payload, err := encodeCancel(cancelMessage{SessionID: sessionID, RunID: runID, Instance: b.instance})
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, cancelChannel, payload).Err()
}

// Listen blocks, invoking onCancel for announcements from other instances,
// until ctx ends.
func (b *RedisBroadcaster) Listen(ctx context.Context, onCancel func(sessionID, runID string)) error {
	sub := b.rdb.Subscribe(ctx, cancelChannel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe failed: %w", err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			m, err := decodeCancel(msg.Payload)
			if err != nil {
				b.logger.Warn("ignoring malformed cancel message", "error", err)
				continue
			}
			if m.Instance == b.instance {
				continue
			}
			onCancel(m.SessionID, m.RunID)
		}
	}
}

func (b *RedisBroadcaster) Close() error {
	return b.rdb.Close()
}

func encodeCancel(m cancelMessage) (string, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to encode cancel message: %w", err)
	}
	return string(data), nil
}

func decodeCancel(payload string) (cancelMessage, error) {
	var m cancelMessage
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		return m, err
	}
	if m.SessionID == "" || m.RunID == "" {
		return m, fmt.Errorf("cancel message missing session or run id")
	}
	return m, nil
}
