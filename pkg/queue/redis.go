package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces the per-priority Redis lists.
const keyPrefix = "maestro:queue:"

// RedisAdapter stores jobs in Redis lists, one per priority class.
// Submit LPUSHes and Claim RPOPs, so each list is FIFO; Claim walks the
// lists in priority order.
type RedisAdapter struct {
	client *redis.Client
}

// NewRedisAdapter creates an adapter over an existing Redis client.
func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

// NewRedisAdapterFromAddr dials Redis at host:port.
func NewRedisAdapterFromAddr(addr string) *RedisAdapter {
	return NewRedisAdapter(redis.NewClient(&redis.Options{Addr: addr}))
}

func laneKey(priority string) string {
	return keyPrefix + priority
}

// Submit pushes the serialized job onto its priority list.
func (r *RedisAdapter) Submit(ctx context.Context, job *Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshaling job %s: %w", job.ID, err)
	}
	if err := r.client.LPush(ctx, laneKey(string(job.Priority)), data).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
	}
	return nil
}

// Claim pops the oldest job from the highest-priority non-empty list.
func (r *RedisAdapter) Claim(ctx context.Context) (*Job, error) {
	for _, p := range priorityOrder {
		data, err := r.client.RPop(ctx, laneKey(string(p))).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
		}
		var job Job
		if err := json.Unmarshal(data, &job); err != nil {
			return nil, fmt.Errorf("unmarshaling claimed job: %w", err)
		}
		return &job, nil
	}
	return nil, ErrQueueEmpty
}

// Depth sums the lengths of all priority lists.
func (r *RedisAdapter) Depth(ctx context.Context) (int, error) {
	total := 0
	for _, p := range priorityOrder {
		n, err := r.client.LLen(ctx, laneKey(string(p))).Result()
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
		}
		total += int(n)
	}
	return total, nil
}

// Ping checks the Redis connection.
func (r *RedisAdapter) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
	}
	return nil
}

// Close releases the underlying client.
func (r *RedisAdapter) Close() error {
	return r.client.Close()
}
