// Package broker wraps github.com/redis/go-redis/v9, exposing the
// three narrow interfaces the rest of the pipeline actually needs
// (spec §4.9) instead of threading a single fat client through every
// component.
package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DB indices, matching the cache layout fixed in spec §6.3.
const (
	DBTaskQueue        = 0
	DBOpeningRanges    = 1
	DBCompressedSeries = 2
)

// Client wraps a single *redis.Client bound to one DB. The pipeline's
// four processes each construct their own Client via NewClient with
// the DB their component owns, following spec §9's "explicit
// dependency-injected handle, never a module-load side effect"
// guidance.
type Client struct {
	rdb *redis.Client
}

// NewClient dials addr (host:6379 per spec §6.1, port is always 6379)
// against the given DB number.
func NewClient(addr string, db int) *Client {
	return &Client{
		rdb: redis.NewClient(&redis.Options{
			Addr: fmt.Sprintf("%s:6379", addr),
			DB:   db,
		}),
	}
}

// NewClientFromRedisClient adapts an already-constructed *redis.Client,
// used by tests to point a Client at a miniredis instance.
func NewClientFromRedisClient(rdb *redis.Client) *Client {
	return &Client{rdb: rdb}
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Set uploads one key/value pair, used by the staging writer
// (spec §4.3) and by workers writing results (spec §4.5).
func (c *Client) Set(ctx context.Context, key string, value []byte) error {
	return c.rdb.Set(ctx, key, value, 0).Err()
}

// LPush enqueues payloads onto queueName, used by the dispatcher
// (spec §4.4).
func (c *Client) LPush(ctx context.Context, queueName string, payloads [][]byte) error {
	args := make([]interface{}, len(payloads))
	for i, p := range payloads {
		args[i] = p
	}
	return c.rdb.LPush(ctx, queueName, args...).Err()
}

// BRPop blocks up to timeout waiting for a message on queueName,
// used by the worker pool (spec §4.5).
func (c *Client) BRPop(ctx context.Context, queueName string, timeout time.Duration) ([]byte, error) {
	res, err := c.rdb.BRPop(ctx, timeout, queueName).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	// BRPop returns [key, value].
	if len(res) < 2 {
		return nil, fmt.Errorf("unexpected BRPOP reply shape: %v", res)
	}
	return []byte(res[1]), nil
}

// ScanKeys performs a non-blocking SCAN for keys matching pattern,
// used by the reaper (spec §4.6 step 1).
func (c *Client) ScanKeys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := c.rdb.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

// MGet bulk-reads keys, used by the reaper and the worker pool.
func (c *Client) MGet(ctx context.Context, keys []string) ([][]byte, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	vals, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	out := make([][]byte, len(vals))
	for i, v := range vals {
		if v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		out[i] = []byte(s)
	}
	return out, nil
}

// Delete removes keys in one multi-delete call, used by the reaper
// (spec §4.6 step 6) after a successful durable-store commit.
func (c *Client) Delete(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}

// Pipeline batches LPush calls into a single round trip, used by the
// dispatcher (spec §4.4).
func (c *Client) Pipeline(ctx context.Context, queueName string, payloads [][]byte) error {
	pipe := c.rdb.Pipeline()
	for _, p := range payloads {
		pipe.LPush(ctx, queueName, p)
	}
	_, err := pipe.Exec(ctx)
	return err
}
