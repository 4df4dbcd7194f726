package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/signalweave/signalweave/internal/infrastructure/monitoring/logging"
	"github.com/signalweave/signalweave/pkg/errors"
	"github.com/signalweave/signalweave/pkg/types/common"
)

// ErrLockNotAcquired is returned when another run already holds the batch.
var ErrLockNotAcquired = errors.New(errors.ErrCodeConflict, "batch lock is held by another run")

// unlockScript releases the lock only when the caller still owns it.
const unlockScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

// BatchLock serializes synthesis runs per batch: similarity-index inserts are
// order-sensitive, so two concurrent runs of the same batch must never
// interleave.
type BatchLock struct {
	client *Client
	logger logging.Logger
	ttl    time.Duration

	key   string
	value string
}

// NewBatchLock creates an unacquired lock for one batch identifier.
func NewBatchLock(client *Client, batchID common.BatchID, ttl time.Duration, log logging.Logger) *BatchLock {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &BatchLock{
		client: client,
		logger: log,
		ttl:    ttl,
		key:    client.key("lock", "batch", string(batchID)),
		value:  uuid.New().String(),
	}
}

// Acquire takes the lock or returns ErrLockNotAcquired without waiting.
func (l *BatchLock) Acquire(ctx context.Context) error {
	ok, err := l.client.Raw().SetNX(ctx, l.key, l.value, l.ttl).Result()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "acquiring batch lock")
	}
	if !ok {
		return ErrLockNotAcquired
	}
	l.logger.Debug("batch lock acquired", logging.String("key", l.key))
	return nil
}

// Release frees the lock if this instance still owns it.  Releasing a lock
// that expired or was taken over is a no-op.
func (l *BatchLock) Release(ctx context.Context) error {
	res, err := l.client.Raw().Eval(ctx, unlockScript, []string{l.key}, l.value).Result()
	if err != nil && err != redis.Nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "releasing batch lock")
	}
	if n, ok := res.(int64); ok && n == 0 {
		l.logger.Warn("batch lock was not held at release", logging.String("key", l.key))
	}
	return nil
}

// Extend renews the TTL while a long run is still in progress.
func (l *BatchLock) Extend(ctx context.Context) (bool, error) {
	const extendScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`
	res, err := l.client.Raw().Eval(ctx, extendScript,
		[]string{l.key}, l.value, l.ttl.Milliseconds()).Result()
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeCacheError, "extending batch lock")
	}
	n, _ := res.(int64)
	return n == 1, nil
}
