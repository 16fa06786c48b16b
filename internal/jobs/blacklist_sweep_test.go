package jobs

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/travel-availability/internal/logger"
)

type countingCleaner struct {
	calls atomic.Int32
	err   error
}

func (c *countingCleaner) CleanExpired(context.Context) (int64, error) {
	c.calls.Add(1)
	return 2, c.err
}

func TestSweepRunsOncePerLockWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	lg := logger.NewWithOutput("test", "OFF", io.Discard)

	cleaner := &countingCleaner{}
	a := NewBlacklistSweep(cleaner, rdb, lg)
	b := NewBlacklistSweep(cleaner, rdb, lg)

	n, ran, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, int64(2), n)

	_, ran, err = b.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, ran, "second replica sees the lock")
	assert.Equal(t, int32(1), cleaner.calls.Load())

	mr.FastForward(BlacklistSweepLockTTL)
	_, ran, err = b.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestSweepWithoutRedis(t *testing.T) {
	cleaner := &countingCleaner{}
	j := NewBlacklistSweep(cleaner, nil, logger.NewWithOutput("test", "OFF", io.Discard))
	for i := 0; i < 2; i++ {
		_, ran, err := j.Run(context.Background())
		require.NoError(t, err)
		assert.True(t, ran)
	}
	assert.Equal(t, int32(2), cleaner.calls.Load())
}

func TestSweepReportsCleanerError(t *testing.T) {
	cleaner := &countingCleaner{err: errors.New("db gone")}
	j := NewBlacklistSweep(cleaner, nil, logger.NewWithOutput("test", "OFF", io.Discard))
	_, ran, err := j.Run(context.Background())
	assert.True(t, ran)
	assert.ErrorContains(t, err, "db gone")
}

func TestScheduleRejectsBadSpec(t *testing.T) {
	j := NewBlacklistSweep(&countingCleaner{}, nil, logger.NewWithOutput("test", "OFF", io.Discard))
	_, err := Schedule("every tuesday", j)
	assert.Error(t, err)

	c, err := Schedule("@daily", j)
	require.NoError(t, err)
	<-c.Stop().Done()
}
