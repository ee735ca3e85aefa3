package eventstream

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/foldershare/sharer/domain/port"
	"github.com/foldershare/sharer/pkg/logger"
)

// RedisRelaySink mirrors every emitted line onto a Redis pub/sub channel so
// the control-plane process (interfaces/control) can fan it out to
// websocket clients without sharing memory with the engine process. It
// wraps an underlying Sink (usually StdoutSink) and never lets a publish
// failure block the engine: the stdout line is the source of truth.
type RedisRelaySink struct {
	inner   port.Sink
	client  *redis.Client
	channel string
}

// NewRedisRelaySink wraps inner, additionally publishing each line to
// channel on client. client may be nil, in which case this behaves exactly
// like inner (used when Redis.Addr is unset, per SPEC_FULL's domain stack).
func NewRedisRelaySink(inner port.Sink, client *redis.Client, channel string) *RedisRelaySink {
	return &RedisRelaySink{inner: inner, client: client, channel: channel}
}

func (s *RedisRelaySink) EmitLine(line string) error {
	if err := s.inner.EmitLine(line); err != nil {
		return err
	}
	if s.client == nil {
		return nil
	}
	if err := s.client.Publish(context.Background(), s.channel, line).Err(); err != nil {
		logger.Warn(logger.CategoryControl, "redis_relay_failed", "failed to relay event to redis", map[string]interface{}{"error": err.Error()})
	}
	return nil
}
