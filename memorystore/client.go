// Package memorystore stores JSON values in Redis (Cloud Memorystore).
package memorystore

import (
	"encoding/json"
	"time"

	"github.com/gomodule/redigo/redis"

	"github.com/m-lab/authgate/metrics"
	"github.com/m-lab/authgate/static"
)

// Client reads and writes values of type V as JSON strings.
type Client[V any] struct {
	pool *redis.Pool
}

// NewClient returns a new Client that reads and writes data in Redis.
func NewClient[V any](pool *redis.Pool) *Client[V] {
	return &Client[V]{pool}
}

// NewPool returns a redis connection pool for the given address.
func NewPool(addr string) *redis.Pool {
	return &redis.Pool{
		MaxIdle:     static.RedisMaxIdle,
		IdleTimeout: static.RedisIdleTimeout,
		Dial: func() (redis.Conn, error) {
			return redis.Dial("tcp", addr, redis.DialConnectTimeout(static.RedisDialTimeout))
		},
	}
}

// Put stores value under key using `SET key value EX seconds`. The TTL is
// rounded down to whole seconds; a TTL under one second is rejected by Redis.
func (c *Client[V]) Put(key string, value V, ttl time.Duration) error {
	t := time.Now()
	conn := c.pool.Get()
	defer conn.Close()

	b, err := json.Marshal(value)
	if err != nil {
		metrics.MemorystoreRequestDuration.WithLabelValues("put", "marshal error").Observe(time.Since(t).Seconds())
		return err
	}

	_, err = conn.Do("SET", key, string(b), "EX", int64(ttl/time.Second))
	if err != nil {
		metrics.MemorystoreRequestDuration.WithLabelValues("put", "SET error").Observe(time.Since(t).Seconds())
		return err
	}

	metrics.MemorystoreRequestDuration.WithLabelValues("put", "OK").Observe(time.Since(t).Seconds())
	return nil
}

// Get returns the value stored under key. The boolean is false when the key
// does not exist.
func (c *Client[V]) Get(key string) (V, bool, error) {
	t := time.Now()
	conn := c.pool.Get()
	defer conn.Close()

	var v V
	b, err := redis.Bytes(conn.Do("GET", key))
	if err == redis.ErrNil {
		metrics.MemorystoreRequestDuration.WithLabelValues("get", "miss").Observe(time.Since(t).Seconds())
		return v, false, nil
	}
	if err != nil {
		metrics.MemorystoreRequestDuration.WithLabelValues("get", "GET error").Observe(time.Since(t).Seconds())
		return v, false, err
	}

	if err := json.Unmarshal(b, &v); err != nil {
		metrics.MemorystoreRequestDuration.WithLabelValues("get", "unmarshal error").Observe(time.Since(t).Seconds())
		return v, false, err
	}

	metrics.MemorystoreRequestDuration.WithLabelValues("get", "OK").Observe(time.Since(t).Seconds())
	return v, true, nil
}

// Del removes key.
func (c *Client[V]) Del(key string) error {
	t := time.Now()
	conn := c.pool.Get()
	defer conn.Close()

	_, err := conn.Do("DEL", key)
	if err != nil {
		metrics.MemorystoreRequestDuration.WithLabelValues("del", "DEL error").Observe(time.Since(t).Seconds())
		return err
	}

	metrics.MemorystoreRequestDuration.WithLabelValues("del", "OK").Observe(time.Since(t).Seconds())
	return nil
}
