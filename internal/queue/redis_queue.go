package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisQueue backs the Queue with a Redis list: RPush to enqueue, BLPop
// to consume in FIFO order, grounded on the original system's
// apps/api/services/queue.py (same RPUSH/BLPOP pair, same
// lore_anchor_tasks key).
type RedisQueue struct {
	client        *redis.Client
	queueKey      string
	deadLetterKey string
}

// NewRedisQueue constructs a RedisQueue from a connection URL.
func NewRedisQueue(redisURL, queueKey, deadLetterKey string) (*RedisQueue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	return &RedisQueue{client: client, queueKey: queueKey, deadLetterKey: deadLetterKey}, nil
}

func (q *RedisQueue) Push(ctx context.Context, env Envelope) error {
	payload, err := env.Marshal()
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	return q.client.RPush(ctx, q.queueKey, payload).Err()
}

func (q *RedisQueue) Take(ctx context.Context) (Envelope, error) {
	result, err := q.client.BLPop(ctx, TakeTimeout, q.queueKey).Result()
	if err == redis.Nil {
		return Envelope{}, ErrEmpty
	}
	if err != nil {
		return Envelope{}, fmt.Errorf("blpop: %w", err)
	}
	// result[0] is the key name, result[1] is the payload.
	if len(result) < 2 {
		return Envelope{}, ErrEmpty
	}

	var env Envelope
	if err := json.Unmarshal([]byte(result[1]), &env); err != nil {
		// Malformed payload: the caller is expected to divert the raw
		// bytes to the dead-letter queue (spec §4.3); surface them via
		// the error so it can.
		return Envelope{}, malformedPayloadError{raw: []byte(result[1]), cause: err}
	}
	return env, nil
}

func (q *RedisQueue) PushDeadLetter(ctx context.Context, raw []byte) error {
	return q.client.RPush(ctx, q.deadLetterKey, raw).Err()
}

func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.queueKey).Result()
}

// Close releases the underlying Redis connection.
func (q *RedisQueue) Close() error {
	return q.client.Close()
}

// malformedPayloadError carries the raw bytes of an envelope that
// failed to deserialise, so the caller can route it to the dead-letter
// queue without re-fetching it.
type malformedPayloadError struct {
	raw   []byte
	cause error
}

func (e malformedPayloadError) Error() string {
	return fmt.Sprintf("malformed queue payload: %v", e.cause)
}

func (e malformedPayloadError) Unwrap() error { return e.cause }

// RawPayload extracts the offending bytes from a Take error, if any.
func RawPayload(err error) ([]byte, bool) {
	if mp, ok := err.(malformedPayloadError); ok {
		return mp.raw, true
	}
	return nil, false
}
