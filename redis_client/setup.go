package redis_client

import (
	"context"
	"fmt"
	"sync"
	"time"

	redis "github.com/go-redis/redis/v8"
	apperrors "github.com/leeforge/moneykeeper/errors"
	"github.com/leeforge/moneykeeper/registry"
	"go.uber.org/zap"
)

// Key is the registry entry holding the shared cache pool.
var Key = registry.NewKey[*Pool]("redis")

// Pool is the shared cache connection pool.
type Pool struct {
	client *redis.Client
	logger *zap.Logger

	closeOnce sync.Once
	closeErr  error
}

// NewRedis connects to redis and verifies the connection with PING. The
// client is closed again when the ping fails.
func NewRedis(ctx context.Context, cnf Config, logger *zap.Logger) (*Pool, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cnf.Addr(),
		Password:     cnf.Password,
		DB:           cnf.DB,
		PoolSize:     cnf.PoolSize,
		DialTimeout:  cnf.DialTimeout,
		ReadTimeout:  cnf.ReadTimeout,
		WriteTimeout: cnf.WriteTimeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, apperrors.NewConnectivity("redis", err).
			WithDetail("addr", cnf.Addr())
	}

	logger.Info("redis.connected", zap.String("config", redisConfigLogFields(cnf)))
	return &Pool{client: client, logger: logger}, nil
}

// Client exposes the underlying go-redis client.
func (p *Pool) Client() *redis.Client {
	return p.client
}

// Dump replaces the hash stored under key with mapping in a single MULTI/EXEC.
// An empty mapping leaves the key absent.
func (p *Pool) Dump(ctx context.Context, key string, mapping map[string]string) error {
	_, err := p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(mapping) == 0 {
			return nil
		}
		values := make([]any, 0, len(mapping)*2)
		for field, value := range mapping {
			values = append(values, field, value)
		}
		pipe.HSet(ctx, key, values...)
		return nil
	})
	if err != nil {
		return apperrors.NewQuery(fmt.Sprintf("dump %s", key), err)
	}
	return nil
}

// Load returns the hash stored under key. A missing key yields an empty map.
func (p *Pool) Load(ctx context.Context, key string) (map[string]string, error) {
	values, err := p.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, apperrors.NewQuery(fmt.Sprintf("load %s", key), err)
	}
	return values, nil
}

// Get returns a single field of the hash under key. ok is false when either
// the key or the field is absent.
func (p *Pool) Get(ctx context.Context, key, field string) (value string, ok bool, err error) {
	value, err = p.client.HGet(ctx, key, field).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, apperrors.NewQuery(fmt.Sprintf("get %s[%s]", key, field), err)
	}
	return value, true, nil
}

// Put stores a plain string value under key. A zero ttl keeps it until removed.
func (p *Pool) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := p.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return apperrors.NewQuery(fmt.Sprintf("put %s", key), err)
	}
	return nil
}

// Fetch returns the string value under key; ok is false when it is absent.
func (p *Pool) Fetch(ctx context.Context, key string) (value string, ok bool, err error) {
	value, err = p.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, apperrors.NewQuery(fmt.Sprintf("fetch %s", key), err)
	}
	return value, true, nil
}

// incrScript increments and arms the expiry in one step. A counter left
// without a TTL gets one on its next increment.
var incrScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if tonumber(ARGV[1]) > 0 and redis.call('PTTL', KEYS[1]) < 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n
`)

// Incr increments the counter under key and returns the new value. The first
// increment starts a window of length ttl after which the counter disappears.
func (p *Pool) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	n, err := incrScript.Run(ctx, p.client, []string{key}, ttl.Milliseconds()).Int64()
	if err != nil {
		return 0, apperrors.NewQuery(fmt.Sprintf("incr %s", key), err)
	}
	return n, nil
}

// Remove deletes key. Removing an absent key is not an error.
func (p *Pool) Remove(ctx context.Context, key string) error {
	if err := p.client.Del(ctx, key).Err(); err != nil {
		return apperrors.NewQuery(fmt.Sprintf("remove %s", key), err)
	}
	return nil
}

// Close releases every pooled connection. Later calls return the first result.
func (p *Pool) Close() error {
	p.closeOnce.Do(func() {
		p.closeErr = p.client.Close()
		p.logger.Debug("redis.closed")
	})
	return p.closeErr
}

func redisConfigLogFields(cnf Config) string {
	return fmt.Sprintf("addr=%s db=%d password=%s", cnf.Addr(), cnf.DB, redactedPassword(cnf.Password))
}

func redactedPassword(password string) string {
	if password == "" {
		return "<empty>"
	}
	return "[REDACTED]"
}
