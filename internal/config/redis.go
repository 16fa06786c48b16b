package config

// Redis backs the auth rate limiter and the lock that keeps the
// blacklist sweep to one replica.  Both degrade gracefully without it:
// the limiter lets everything through and the sweep runs unguarded.

import (
	"context"
	"crypto/tls"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig is read from REDIS_* variables.
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	TLS      bool
}

// LoadRedisConfig supports:
//
//	REDIS_ENABLED - "false" skips redis entirely (default true)
//	REDIS_HOST and REDIS_PORT - hostname and port of the Redis server
//	REDIS_ADDR - host:port shorthand, used when host/port are not both set
//	REDIS_PASSWORD - optional password
//	REDIS_DB - database number (default 0)
//	REDIS_TLS - enable TLS when "true" or "1"
func LoadRedisConfig() RedisConfig {
	host := envStr("REDIS_HOST", "")
	port := envStr("REDIS_PORT", "")
	addr := envStr("REDIS_ADDR", "localhost:6379")
	if host != "" && port != "" {
		addr = host + ":" + port
	}
	tlsEnv := envStr("REDIS_TLS", "")
	return RedisConfig{
		Enabled:  envBool("REDIS_ENABLED", true),
		Addr:     addr,
		Password: envStr("REDIS_PASSWORD", ""),
		DB:       envInt("REDIS_DB", 0),
		TLS:      strings.EqualFold(tlsEnv, "true") || tlsEnv == "1",
	}
}

// NewRedisClient connects and pings with a short timeout.  The returned
// client is nil when redis is disabled or unreachable.
func NewRedisClient(cfg RedisConfig) *redis.Client {
	if !cfg.Enabled {
		return nil
	}
	var tlsConf *tls.Config
	if cfg.TLS {
		tlsConf = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(&redis.Options{
		Addr:      cfg.Addr,
		Password:  cfg.Password,
		DB:        cfg.DB,
		TLSConfig: tlsConf,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil
	}
	return client
}
