package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// logFail records a failed command. A missing key is not a failure.
func (c *Client) logFail(op string, err error, fields ...zap.Field) {
	if err == nil || IsNil(err) {
		return
	}
	c.logger.Error("redis "+op+" failed", append(fields, zap.Error(err))...)
}

// ---- strings ----

func (c *Client) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	err := c.master.Set(ctx, key, value, expiration).Err()
	c.logFail("set", err, zap.String("key", key))
	return err
}

// Get returns ErrNil when key does not exist.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	val, err := c.reader().Get(ctx, key).Result()
	c.logFail("get", err, zap.String("key", key))
	return val, err
}

// MGet returns one entry per key; missing keys are nil.
func (c *Client) MGet(ctx context.Context, keys ...string) ([]any, error) {
	vals, err := c.reader().MGet(ctx, keys...).Result()
	c.logFail("mget", err, zap.Int("keys", len(keys)))
	return vals, err
}

func (c *Client) Del(ctx context.Context, keys ...string) (int64, error) {
	n, err := c.master.Del(ctx, keys...).Result()
	c.logFail("del", err, zap.Strings("keys", keys))
	return n, err
}

func (c *Client) Expire(ctx context.Context, key string, expiration time.Duration) (bool, error) {
	ok, err := c.master.Expire(ctx, key, expiration).Result()
	c.logFail("expire", err, zap.String("key", key))
	return ok, err
}

func (c *Client) Incr(ctx context.Context, key string) (int64, error) {
	n, err := c.master.Incr(ctx, key).Result()
	c.logFail("incr", err, zap.String("key", key))
	return n, err
}

func (c *Client) SetNX(ctx context.Context, key string, value any, expiration time.Duration) (bool, error) {
	ok, err := c.master.SetNX(ctx, key, value, expiration).Result()
	c.logFail("setnx", err, zap.String("key", key))
	return ok, err
}

// ---- hashes ----

func (c *Client) HSet(ctx context.Context, key string, values ...any) (int64, error) {
	n, err := c.master.HSet(ctx, key, values...).Result()
	c.logFail("hset", err, zap.String("key", key))
	return n, err
}

// HGet returns ErrNil when the field does not exist.
func (c *Client) HGet(ctx context.Context, key, field string) (string, error) {
	val, err := c.reader().HGet(ctx, key, field).Result()
	c.logFail("hget", err, zap.String("key", key), zap.String("field", field))
	return val, err
}

// HGetAll returns an empty map for a missing key.
func (c *Client) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	val, err := c.reader().HGetAll(ctx, key).Result()
	c.logFail("hgetall", err, zap.String("key", key))
	return val, err
}

func (c *Client) HDel(ctx context.Context, key string, fields ...string) (int64, error) {
	n, err := c.master.HDel(ctx, key, fields...).Result()
	c.logFail("hdel", err, zap.String("key", key))
	return n, err
}

func (c *Client) HLen(ctx context.Context, key string) (int64, error) {
	n, err := c.reader().HLen(ctx, key).Result()
	c.logFail("hlen", err, zap.String("key", key))
	return n, err
}

func (c *Client) HIncrBy(ctx context.Context, key, field string, incr int64) (int64, error) {
	n, err := c.master.HIncrBy(ctx, key, field, incr).Result()
	c.logFail("hincrby", err, zap.String("key", key), zap.String("field", field))
	return n, err
}

// ---- sets ----

func (c *Client) SAdd(ctx context.Context, key string, members ...any) (int64, error) {
	n, err := c.master.SAdd(ctx, key, members...).Result()
	c.logFail("sadd", err, zap.String("key", key))
	return n, err
}

func (c *Client) SCard(ctx context.Context, key string) (int64, error) {
	n, err := c.reader().SCard(ctx, key).Result()
	c.logFail("scard", err, zap.String("key", key))
	return n, err
}

func (c *Client) SMembers(ctx context.Context, key string) ([]string, error) {
	val, err := c.reader().SMembers(ctx, key).Result()
	c.logFail("smembers", err, zap.String("key", key))
	return val, err
}

// ---- sorted sets ----

func (c *Client) ZAdd(ctx context.Context, key string, members ...redis.Z) (int64, error) {
	n, err := c.master.ZAdd(ctx, key, members...).Result()
	c.logFail("zadd", err, zap.String("key", key))
	return n, err
}

func (c *Client) ZCard(ctx context.Context, key string) (int64, error) {
	n, err := c.reader().ZCard(ctx, key).Result()
	c.logFail("zcard", err, zap.String("key", key))
	return n, err
}

// ZRevRange returns members from highest to lowest score.
func (c *Client) ZRevRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	val, err := c.reader().ZRevRange(ctx, key, start, stop).Result()
	c.logFail("zrevrange", err, zap.String("key", key))
	return val, err
}

func (c *Client) ZRem(ctx context.Context, key string, members ...any) (int64, error) {
	n, err := c.master.ZRem(ctx, key, members...).Result()
	c.logFail("zrem", err, zap.String("key", key))
	return n, err
}

// ZRemRangeByScore trims members whose score falls in [min, max].
func (c *Client) ZRemRangeByScore(ctx context.Context, key, min, max string) (int64, error) {
	n, err := c.master.ZRemRangeByScore(ctx, key, min, max).Result()
	c.logFail("zremrangebyscore", err, zap.String("key", key))
	return n, err
}

// ---- pipelines, scripts, scanning ----

// Pipeline batches commands against the master.
func (c *Client) Pipeline() redis.Pipeliner {
	return c.master.Pipeline()
}

// TxPipeline wraps the batch in MULTI/EXEC.
func (c *Client) TxPipeline() redis.Pipeliner {
	return c.master.TxPipeline()
}

// Eval runs a Lua script on the master.
func (c *Client) Eval(ctx context.Context, script string, keys []string, args ...any) (any, error) {
	res, err := c.master.Eval(ctx, script, keys, args...).Result()
	c.logFail("eval", err, zap.Strings("keys", keys))
	return res, err
}

// ScanAll walks the keyspace for match and returns every key found.
func (c *Client) ScanAll(ctx context.Context, match string, count int64) ([]string, error) {
	var (
		keys   []string
		cursor uint64
	)
	for {
		batch, next, err := c.reader().Scan(ctx, cursor, match, count).Result()
		if err != nil {
			c.logFail("scan", err, zap.String("match", match))
			return nil, err
		}
		keys = append(keys, batch...)
		if next == 0 {
			return keys, nil
		}
		cursor = next
	}
}
