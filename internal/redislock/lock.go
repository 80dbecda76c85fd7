// Package redislock serializes same-user draws across processes with a
// single-node Redis lock (SET NX PX plus a token-checked delete).
package redislock

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/xtding233/wish-ledger/internal/ledger"
	"github.com/xtding233/wish-ledger/internal/logger"
)

const (
	DefaultKeyPrefix     = "wish:lock:user:"
	DefaultTTL           = 10 * time.Second
	DefaultRetryInterval = 20 * time.Millisecond
)

var ErrLockNotHeld = errors.New("lock not held")

// releaseScript deletes the key only if it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`)

type Config struct {
	KeyPrefix     string
	TTL           time.Duration
	RetryInterval time.Duration
}

// Locker implements ledger.Locker on Redis. The lock expires after TTL even
// if the holder dies, so TTL must exceed the longest draw transaction.
type Locker struct {
	client redis.UniversalClient
	cfg    Config
	log    logger.Logger
}

var _ ledger.Locker = (*Locker)(nil)

func New(client redis.UniversalClient, cfg Config, log logger.Logger) *Locker {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultKeyPrefix
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = DefaultRetryInterval
	}
	if log == nil {
		log = logger.NewNoop()
	}
	return &Locker{client: client, cfg: cfg, log: log.Named("redislock")}
}

func (l *Locker) key(userID int64) string {
	return l.cfg.KeyPrefix + strconv.FormatInt(userID, 10)
}

// Lock retries SET NX every RetryInterval until it wins or ctx is done.
func (l *Locker) Lock(ctx context.Context, userID int64) (func(), error) {
	key := l.key(userID)
	token := uuid.NewString()

	ticker := time.NewTicker(l.cfg.RetryInterval)
	defer ticker.Stop()
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.cfg.TTL).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			return func() { l.release(key, token) }, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (l *Locker) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), l.cfg.TTL)
	defer cancel()
	if err := l.unlock(ctx, key, token); err != nil {
		l.log.Warn("release lock", "key", key, "error", err)
	}
}

func (l *Locker) unlock(ctx context.Context, key, token string) error {
	n, err := releaseScript.Run(ctx, l.client, []string{key}, token).Int64()
	if err != nil {
		return fmt.Errorf("release lock %s: %w", key, err)
	}
	if n == 0 {
		return ErrLockNotHeld
	}
	return nil
}
