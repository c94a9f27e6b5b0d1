// Package lockfile implements advisory cross-process mutual exclusion via
// lock sidecar files.
//
// A lock on /path/to/state.json is the file /path/to/state.json.lock,
// created with an exclusive-create write. Staleness is judged by the lock
// file's modification time: a lock older than the stale threshold is assumed
// abandoned by a crashed process and may be taken over. This is cooperative
// locking for local processes sharing a directory; it offers no protection
// against writers that bypass the protocol.
package lockfile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"
)

// Defaults for the acquisition protocol.
const (
	DefaultStaleThreshold = 30 * time.Second
	DefaultRetryInterval  = 50 * time.Millisecond
	DefaultWaitBudget     = 5 * time.Second
)

// TimeoutError is returned when a lock cannot be acquired within the wait
// budget. It reports how many acquisition attempts were made.
type TimeoutError struct {
	Path    string
	Retries int
	Budget  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("failed to acquire lock %s after %d retries (budget %s)", e.Path, e.Retries, e.Budget)
}

// Lock guards a target file through a sidecar lock file.
type Lock struct {
	path     string
	stale    time.Duration
	interval time.Duration
	budget   time.Duration
}

// Option configures a Lock.
type Option func(*Lock)

// WithStaleThreshold overrides the age after which an existing lock file is
// treated as abandoned.
func WithStaleThreshold(d time.Duration) Option {
	return func(l *Lock) { l.stale = d }
}

// WithRetryInterval overrides the poll interval between acquisition attempts.
func WithRetryInterval(d time.Duration) Option {
	return func(l *Lock) { l.interval = d }
}

// WithWaitBudget overrides the total time Acquire will keep retrying.
func WithWaitBudget(d time.Duration) Option {
	return func(l *Lock) { l.budget = d }
}

// New creates a lock for the given target file. The lock file itself is
// target + ".lock".
func New(target string, opts ...Option) *Lock {
	l := &Lock{
		path:     target + ".lock",
		stale:    DefaultStaleThreshold,
		interval: DefaultRetryInterval,
		budget:   DefaultWaitBudget,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

// TryAcquire makes a single acquisition attempt. It returns false (without
// error) when another live process holds the lock. A lock file older than the
// stale threshold is forcibly removed and acquisition retried once.
func (l *Lock) TryAcquire() (bool, error) {
	ok, err := l.createExclusive()
	if err != nil || ok {
		return ok, err
	}

	info, statErr := os.Stat(l.path)
	if statErr != nil {
		// Holder released between our create attempt and the stat; let the
		// caller's retry loop pick it up.
		return false, nil
	}
	if time.Since(info.ModTime()) < l.stale {
		return false, nil
	}

	// Stale lock from a crashed process: remove and retry the create once.
	_ = os.Remove(l.path)
	return l.createExclusive()
}

// Acquire retries TryAcquire at the poll interval until the wait budget is
// exhausted, then returns a *TimeoutError.
func (l *Lock) Acquire() error {
	deadline := time.Now().Add(l.budget)
	retries := 0
	for {
		ok, err := l.TryAcquire()
		if err != nil {
			return fmt.Errorf("acquire lock %s: %w", l.path, err)
		}
		if ok {
			return nil
		}
		retries++
		if time.Now().After(deadline) {
			return &TimeoutError{Path: l.path, Retries: retries, Budget: l.budget}
		}
		time.Sleep(l.interval)
	}
}

// Release removes the lock file. Best-effort: errors are swallowed, since the
// lock may already have been cleaned up by a stale-takeover elsewhere.
func (l *Lock) Release() {
	_ = os.Remove(l.path)
}

// createExclusive attempts the exclusive-create write. The file content is a
// millisecond timestamp, written for diagnostics only.
func (l *Lock) createExclusive() (bool, error) {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return false, nil
		}
		return false, err
	}
	// A lock file we cannot write is still a held lock; the content exists
	// only for diagnostics.
	_, _ = f.WriteString(strconv.FormatInt(time.Now().UnixMilli(), 10))
	_ = f.Close()
	return true, nil
}
