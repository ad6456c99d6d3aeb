package cache

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	valkey "github.com/valkey-io/valkey-go"
)

// RedisTLSConfig configures optional TLS for the decision-cache backend.
type RedisTLSConfig struct {
	Enabled bool
	CAFile  string
}

// RedisConfig names the Valkey/Redis endpoint backing a distributed
// DecisionCache, shared by every gallerysrv instance behind the same
// reverse proxy.
type RedisConfig struct {
	Address  string
	Username string
	Password string
	DB       int
	TTL      time.Duration
	TLS      RedisTLSConfig
}

type redisCache struct {
	client valkey.Client
	ttl    time.Duration
}

// NewRedis dials cfg.Address and verifies connectivity with a PING before
// returning, so a misconfigured cache fails at startup rather than on the
// first request.
func NewRedis(cfg RedisConfig) (DecisionCache, error) {
	if cfg.Address == "" {
		return nil, errors.New("cache: redis address required")
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}

	option := valkey.ClientOption{
		InitAddress:       []string{cfg.Address},
		Username:          cfg.Username,
		Password:          cfg.Password,
		SelectDB:          cfg.DB,
		AlwaysRESP2:       true,
		ForceSingleClient: true,
		DisableCache:      true,
	}

	if cfg.TLS.Enabled {
		tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
		if cfg.TLS.CAFile != "" {
			caData, err := os.ReadFile(cfg.TLS.CAFile)
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return nil, fmt.Errorf("cache: read redis ca file: %w", err)
				}
				return nil, fmt.Errorf("cache: read redis ca file: %w", err)
			}
			pool := x509.NewCertPool()
			if !pool.AppendCertsFromPEM(caData) {
				return nil, errors.New("cache: redis ca file contains no certificates")
			}
			tlsConfig.RootCAs = pool
		}
		option.TLSConfig = tlsConfig
	}

	client, err := valkey.NewClient(option)
	if err != nil {
		return nil, fmt.Errorf("cache: redis client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("cache: redis ping: %w", err)
	}

	return &redisCache{client: client, ttl: ttl}, nil
}

// Lookup reads the single-byte decision payload ("1" allowed, "0" denied)
// stored under key.
func (c *redisCache) Lookup(ctx context.Context, key string) (Entry, bool, error) {
	resp := c.client.Do(ctx, c.client.B().Get().Key(key).Build())
	if err := resp.Error(); err != nil {
		if errors.Is(err, valkey.Nil) {
			return Entry{}, false, nil
		}
		return Entry{}, false, fmt.Errorf("cache: redis get: %w", err)
	}
	payload, err := resp.ToString()
	if err != nil {
		return Entry{}, false, fmt.Errorf("cache: redis get string: %w", err)
	}
	return Entry{Allowed: payload == "1"}, true, nil
}

// Store writes entry under key with the cache's fixed TTL.
func (c *redisCache) Store(ctx context.Context, key string, entry Entry) error {
	payload := "0"
	if entry.Allowed {
		payload = "1"
	}
	cmd := c.client.B().Set().Key(key).Value(payload).Px(c.ttl).Build()
	if err := c.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("cache: redis set: %w", err)
	}
	return nil
}

func (c *redisCache) Close(context.Context) error {
	c.client.Close()
	return nil
}
