package tickets

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisLockerAcquireRelease(t *testing.T) {
	db, mock := redismock.NewClientMock()
	locker := NewRedisLocker(db, time.Minute)
	locker.token = func() string { return "token-1" }

	mock.ExpectSetNX("mintix:lock:ticket:abc", "token-1", time.Minute).SetVal(true)
	mock.ExpectEval(releaseScript, []string{"mintix:lock:ticket:abc"}, "token-1").SetVal(int64(1))

	release, err := locker.TryLock(context.Background(), "ticket:abc")
	require.NoError(t, err)
	require.NoError(t, release(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisLockerContention(t *testing.T) {
	db, mock := redismock.NewClientMock()
	locker := NewRedisLocker(db, 0)
	locker.token = func() string { return "token-2" }

	mock.ExpectSetNX("mintix:lock:idem:k", "token-2", DefaultLockTTL).SetVal(false)

	_, err := locker.TryLock(context.Background(), "idem:k")
	assert.ErrorIs(t, err, ErrLockHeld)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisLockerBackendError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	locker := NewRedisLocker(db, time.Second)
	locker.token = func() string { return "t" }

	mock.ExpectSetNX("mintix:lock:x", "t", time.Second).SetErr(errors.New("connection refused"))

	_, err := locker.TryLock(context.Background(), "x")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrLockHeld)
}

func TestLocalLockerExpiry(t *testing.T) {
	locker := NewLocalLocker(time.Minute)
	now := time.Now()
	locker.now = func() time.Time { return now }

	release, err := locker.TryLock(context.Background(), "k")
	require.NoError(t, err)

	_, err = locker.TryLock(context.Background(), "k")
	assert.ErrorIs(t, err, ErrLockHeld)

	// a stale holder is replaced once its TTL passes
	now = now.Add(2 * time.Minute)
	second, err := locker.TryLock(context.Background(), "k")
	require.NoError(t, err)

	// releasing the stale lock must not free the new holder
	require.NoError(t, release(context.Background()))
	_, err = locker.TryLock(context.Background(), "k")
	assert.ErrorIs(t, err, ErrLockHeld)

	require.NoError(t, second(context.Background()))
	_, err = locker.TryLock(context.Background(), "k")
	assert.NoError(t, err)
}
