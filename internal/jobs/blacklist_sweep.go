// Package jobs runs periodic maintenance in the background of the API
// process.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/gommon/log"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
)

// Sweep lock defaults.
const (
	BlacklistSweepLockKey = "lock:blacklist-sweep"
	BlacklistSweepLockTTL = 5 * time.Minute
	sweepTimeout          = time.Minute
)

// ExpiredCleaner is what the sweep calls.  *service.TokenBlacklist
// satisfies it.
type ExpiredCleaner interface {
	CleanExpired(ctx context.Context) (int64, error)
}

// BlacklistSweep purges expired blacklist rows.  With redis configured,
// replicas race for a SET NX lock and only the winner sweeps; the lock is
// left to expire so a replica whose clock fires a little later still
// sees it held.
type BlacklistSweep struct {
	Cleaner ExpiredCleaner
	Redis   *redis.Client // optional
	Log     *log.Logger
	LockKey string
	LockTTL time.Duration
	owner   string
}

// NewBlacklistSweep applies the default lock key and TTL.
func NewBlacklistSweep(cleaner ExpiredCleaner, rdb *redis.Client, l *log.Logger) *BlacklistSweep {
	return &BlacklistSweep{
		Cleaner: cleaner,
		Redis:   rdb,
		Log:     l,
		LockKey: BlacklistSweepLockKey,
		LockTTL: BlacklistSweepLockTTL,
		owner:   uuid.NewString(),
	}
}

// Run performs one sweep.  ran is false when another replica holds the
// lock.
func (j *BlacklistSweep) Run(ctx context.Context) (removed int64, ran bool, err error) {
	if j.Redis != nil {
		ok, lerr := j.Redis.SetNX(ctx, j.LockKey, j.owner, j.LockTTL).Result()
		switch {
		case lerr != nil:
			// The delete is idempotent; sweeping twice beats not sweeping.
			j.Log.Warnf("blacklist-sweep: lock unavailable, sweeping anyway: %v", lerr)
		case !ok:
			j.Log.Debugf("blacklist-sweep: lock %s held elsewhere, skipping", j.LockKey)
			return 0, false, nil
		}
	}
	removed, err = j.Cleaner.CleanExpired(ctx)
	if err != nil {
		return 0, true, fmt.Errorf("blacklist sweep: %w", err)
	}
	return removed, true, nil
}

// Schedule registers the sweep on a new cron scheduler and starts it.
// Stop the returned scheduler on shutdown.
func Schedule(spec string, j *BlacklistSweep) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()
		n, ran, err := j.Run(ctx)
		switch {
		case err != nil:
			j.Log.Errorf("blacklist-sweep: %v", err)
		case ran:
			j.Log.Infof("blacklist-sweep: removed %d expired tokens", n)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", spec, err)
	}
	c.Start()
	return c, nil
}
