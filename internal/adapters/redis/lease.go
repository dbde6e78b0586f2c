package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/robertarktes/court-reservations/internal/domain"
	"github.com/robertarktes/court-reservations/internal/observability"
)

const (
	minLockBackoff = 10 * time.Millisecond
	maxLockBackoff = 200 * time.Millisecond
)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// CourtLocker is a per-court lease held in redis. Each holder owns a random
// token so only it can extend or release the lease.
type CourtLocker struct {
	client *redis.Client
	wait   time.Duration
	lease  time.Duration
	logger observability.Logger
}

func NewCourtLocker(client *redis.Client, wait, lease time.Duration, logger observability.Logger) *CourtLocker {
	return &CourtLocker{client: client, wait: wait, lease: lease, logger: logger}
}

func courtLockKey(courtID int64) string {
	return "court-lock:" + strconv.FormatInt(courtID, 10)
}

// WithLock runs fn while holding the court's lease. Waiting longer than the
// configured bound fails with ErrLockTimeout.
func (l *CourtLocker) WithLock(ctx context.Context, courtID int64, fn func(ctx context.Context) error) error {
	key := courtLockKey(courtID)
	token := uuid.NewString()

	start := time.Now()
	if err := l.acquire(ctx, key, token); err != nil {
		return err
	}
	observability.CourtLockWait.Observe(time.Since(start).Seconds())

	stop := make(chan struct{})
	done := make(chan struct{})
	go l.keepAlive(ctx, key, token, stop, done)

	defer func() {
		close(stop)
		<-done
		relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		if err := releaseScript.Run(relCtx, l.client, []string{key}, token).Err(); err != nil {
			l.logger.WithError(err).WithField("court_id", courtID).Warn("failed to release court lock")
		}
	}()
	return fn(ctx)
}

func (l *CourtLocker) acquire(ctx context.Context, key, token string) error {
	deadline := time.Now().Add(l.wait)
	backoff := minLockBackoff
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.lease).Result()
		if err != nil {
			return upstream(err, "acquire "+key)
		}
		if ok {
			return nil
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return errors.Wrapf(domain.ErrLockTimeout, "%s held for more than %s", key, l.wait)
		}
		timer := time.NewTimer(min(backoff, remaining))
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Mark(errors.Wrapf(ctx.Err(), "wait for %s", key), domain.ErrLockTimeout)
		case <-timer.C:
		}
		backoff = min(backoff*2, maxLockBackoff)
	}
}

// keepAlive extends the lease while fn runs so long transactions keep it.
func (l *CourtLocker) keepAlive(ctx context.Context, key, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(l.lease / 3)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := extendScript.Run(ctx, l.client, []string{key}, token, l.lease.Milliseconds()).Err()
			if err != nil {
				l.logger.WithError(err).WithField("key", key).Warn("failed to extend court lock")
			}
		}
	}
}
