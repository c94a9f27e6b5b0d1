package lockfile

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTryAcquireAndRelease(t *testing.T) {
	target := filepath.Join(t.TempDir(), "state.json")
	l := New(target)

	ok, err := l.TryAcquire()
	require.NoError(t, err)
	assert.True(t, ok)

	// Lock file exists with a millisecond-timestamp payload.
	content, err := os.ReadFile(target + ".lock")
	require.NoError(t, err)
	millis, err := strconv.ParseInt(string(content), 10, 64)
	require.NoError(t, err)
	assert.InDelta(t, time.Now().UnixMilli(), millis, float64(time.Minute.Milliseconds()))

	// Second acquisition on a fresh lock fails.
	ok, err = New(target).TryAcquire()
	require.NoError(t, err)
	assert.False(t, ok)

	l.Release()
	_, err = os.Stat(target + ".lock")
	assert.True(t, os.IsNotExist(err))
}

func TestStaleLockRecovery(t *testing.T) {
	target := filepath.Join(t.TempDir(), "state.json")
	lockPath := target + ".lock"

	// Simulate a lock abandoned by a crashed process 31s ago.
	require.NoError(t, os.WriteFile(lockPath, []byte("12345"), 0o600))
	old := time.Now().Add(-31 * time.Second)
	require.NoError(t, os.Chtimes(lockPath, old, old))

	ok, err := New(target).TryAcquire()
	require.NoError(t, err)
	assert.True(t, ok, "stale lock must be removable by a new acquisition")
}

func TestAcquireTimesOutWithRetryCount(t *testing.T) {
	target := filepath.Join(t.TempDir(), "state.json")

	holder := New(target)
	ok, err := holder.TryAcquire()
	require.NoError(t, err)
	require.True(t, ok)
	defer holder.Release()

	waiter := New(target,
		WithWaitBudget(120*time.Millisecond),
		WithRetryInterval(20*time.Millisecond),
	)
	err = waiter.Acquire()
	require.Error(t, err)

	var timeout *TimeoutError
	require.True(t, errors.As(err, &timeout))
	assert.Greater(t, timeout.Retries, 0)
}

func TestAcquireSucceedsAfterRelease(t *testing.T) {
	target := filepath.Join(t.TempDir(), "state.json")

	holder := New(target)
	ok, err := holder.TryAcquire()
	require.NoError(t, err)
	require.True(t, ok)

	go func() {
		time.Sleep(50 * time.Millisecond)
		holder.Release()
	}()

	waiter := New(target, WithRetryInterval(10*time.Millisecond))
	assert.NoError(t, waiter.Acquire())
	waiter.Release()
}

func TestReleaseIsIdempotent(t *testing.T) {
	l := New(filepath.Join(t.TempDir(), "state.json"))
	l.Release() // nothing to remove; must not panic
	ok, err := l.TryAcquire()
	require.NoError(t, err)
	assert.True(t, ok)
	l.Release()
	l.Release()
}
