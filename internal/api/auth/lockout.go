package auth

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Lockout defaults applied to login attempts.
const (
	DefaultLockoutThreshold = 5
	DefaultLockoutDuration  = 15 * time.Minute
)

type lockoutEntry struct {
	failures  int
	expiresAt time.Time // zero while not locked
}

func (e *lockoutEntry) locked(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.Before(e.expiresAt)
}

// LockoutTracker counts failed logins per account email and locks the
// account for a fixed duration once the threshold is reached. State is held
// in memory, so a restart clears every lockout.
type LockoutTracker struct {
	mu        sync.Mutex
	entries   map[string]*lockoutEntry
	threshold int
	duration  time.Duration
}

// NewLockoutTracker creates a new lockout tracker. Call Run to purge
// stale entries periodically.
func NewLockoutTracker(threshold int, duration time.Duration) *LockoutTracker {
	if threshold <= 0 {
		threshold = DefaultLockoutThreshold
	}
	if duration <= 0 {
		duration = DefaultLockoutDuration
	}
	return &LockoutTracker{
		entries:   make(map[string]*lockoutEntry),
		threshold: threshold,
		duration:  duration,
	}
}

func lockoutKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// RecordFailure records a failed login attempt.
// Returns true if the account is now locked.
func (t *LockoutTracker) RecordFailure(email string) bool {
	key := lockoutKey(email)
	now := time.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries[key]
	if !ok {
		entry = &lockoutEntry{}
		t.entries[key] = entry
	}
	if entry.locked(now) {
		return true
	}
	if !entry.expiresAt.IsZero() {
		*entry = lockoutEntry{}
	}

	entry.failures++
	if entry.failures >= t.threshold {
		entry.expiresAt = now.Add(t.duration)
		return true
	}
	return false
}

// IsLocked returns true if the account is currently locked.
func (t *LockoutTracker) IsLocked(email string) bool {
	return t.RemainingLockoutTime(email) > 0
}

// RemainingLockoutTime returns how long until the lockout expires.
func (t *LockoutTracker) RemainingLockoutTime(email string) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries[lockoutKey(email)]
	if !ok || entry.expiresAt.IsZero() {
		return 0
	}
	if remaining := time.Until(entry.expiresAt); remaining > 0 {
		return remaining
	}
	return 0
}

// ClearFailures clears failed attempts on successful login.
func (t *LockoutTracker) ClearFailures(email string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, lockoutKey(email))
}

// Run purges expired lockouts every interval until ctx is canceled.
func (t *LockoutTracker) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			t.cleanup(time.Now())
		}
	}
}

func (t *LockoutTracker) cleanup(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for key, entry := range t.entries {
		if !entry.expiresAt.IsZero() && !entry.locked(now) {
			delete(t.entries, key)
		}
	}
}

func (t *LockoutTracker) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
