package config

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig describes the optional Redis server backing the rate limiter,
// the response cache and the check-in lock.
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	TLS      bool
}

// LoadRedisConfig reads REDIS_* variables.  REDIS_HOST and REDIS_PORT take
// precedence over REDIS_ADDR.
func LoadRedisConfig() RedisConfig {
	c := RedisConfig{
		Enabled:  envBool("REDIS_ENABLED", false),
		Addr:     envStr("REDIS_ADDR", "localhost:6379"),
		Password: envStr("REDIS_PASSWORD", ""),
		DB:       envInt("REDIS_DB", 0),
		TLS:      envBool("REDIS_TLS", false),
	}
	if host, port := envStr("REDIS_HOST", ""), envStr("REDIS_PORT", ""); host != "" && port != "" {
		c.Addr = host + ":" + port
	}
	return c
}

// NewRedisClient connects to Redis.  It returns nil when Redis is disabled
// or unreachable; callers degrade by skipping rate limiting, caching and
// locking.
func NewRedisClient(c RedisConfig) *redis.Client {
	if !c.Enabled {
		return nil
	}
	opts := &redis.Options{Addr: c.Addr, Password: c.Password, DB: c.DB}
	if c.TLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil
	}
	return client
}
