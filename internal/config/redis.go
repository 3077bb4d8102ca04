package config

// Redis backs the availability cache, the preview response cache and the
// rate limiters.  When it cannot be reached at startup NewRedisClient
// returns nil and each of those features switches itself off.

import (
    "context"
    "crypto/tls"
    "log"
    "os"
    "strconv"
    "strings"
    "time"

    "github.com/redis/go-redis/v9"
)

// RedisOptions builds client options from the environment:
//   REDIS_URL – redis:// or rediss:// URL (takes precedence over the rest)
//   REDIS_ADDR – host:port shorthand
//   REDIS_HOST and REDIS_PORT – override REDIS_ADDR when both are set
//   REDIS_PASSWORD – optional password
//   REDIS_DB – database number (default 0)
//   REDIS_TLS – enable TLS when "true" or "1"
func RedisOptions() (*redis.Options, error) {
    if u := os.Getenv("REDIS_URL"); u != "" {
        return redis.ParseURL(u)
    }
    addr := getenv("REDIS_ADDR", "localhost:6379")
    if host, port := os.Getenv("REDIS_HOST"), os.Getenv("REDIS_PORT"); host != "" && port != "" {
        addr = host + ":" + port
    }
    opts := &redis.Options{Addr: addr, Password: os.Getenv("REDIS_PASSWORD")}
    if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
        if n, err := strconv.Atoi(dbStr); err == nil {
            opts.DB = n
        }
    }
    if tlsEnv := os.Getenv("REDIS_TLS"); strings.EqualFold(tlsEnv, "true") || tlsEnv == "1" {
        opts.TLSConfig = &tls.Config{InsecureSkipVerify: true}
    }
    return opts, nil
}

// NewRedisClient connects and pings with a short timeout.  The returned
// client is nil on any failure.
func NewRedisClient() *redis.Client {
    opts, err := RedisOptions()
    if err != nil {
        log.Printf("redis: invalid configuration: %v", err)
        return nil
    }
    client := redis.NewClient(opts)
    ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
    defer cancel()
    if err := client.Ping(ctx).Err(); err != nil {
        log.Printf("redis: %s unreachable, caching and rate limiting disabled: %v", opts.Addr, err)
        _ = client.Close()
        return nil
    }
    return client
}
