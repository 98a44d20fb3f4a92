package auth

import (
	"testing"
	"time"
)

func TestLockoutTracker_Basic(t *testing.T) {
	tracker := NewLockoutTracker(3, time.Hour)
	email := "ada@example.com"

	if tracker.IsLocked(email) {
		t.Error("account should not be locked initially")
	}

	tracker.RecordFailure(email)
	tracker.RecordFailure(email)
	if tracker.IsLocked(email) {
		t.Error("account should not be locked after 2 failures (threshold=3)")
	}

	if !tracker.RecordFailure(email) {
		t.Error("third failure should report a lockout")
	}
	if !tracker.IsLocked(email) {
		t.Error("account should be locked after 3 failures")
	}
}

func TestLockoutTracker_KeyIsCaseInsensitive(t *testing.T) {
	tracker := NewLockoutTracker(2, time.Hour)
	tracker.RecordFailure("Ada@Example.com")
	tracker.RecordFailure(" ada@example.com ")

	if !tracker.IsLocked("ADA@EXAMPLE.COM") {
		t.Error("failures for differently cased emails should share one entry")
	}
}

func TestLockoutTracker_LockoutExpires(t *testing.T) {
	tracker := NewLockoutTracker(2, 50*time.Millisecond)
	email := "ada@example.com"

	tracker.RecordFailure(email)
	tracker.RecordFailure(email)
	if !tracker.IsLocked(email) {
		t.Fatal("account should be locked")
	}

	time.Sleep(80 * time.Millisecond)
	if tracker.IsLocked(email) {
		t.Error("lockout should have expired")
	}

	// A fresh window starts after expiry.
	if tracker.RecordFailure(email) {
		t.Error("first failure after expiry should not lock")
	}
}

func TestLockoutTracker_ClearFailures(t *testing.T) {
	tracker := NewLockoutTracker(3, time.Hour)
	email := "ada@example.com"

	for i := 0; i < 3; i++ {
		tracker.RecordFailure(email)
	}
	tracker.ClearFailures(email)

	if tracker.IsLocked(email) {
		t.Error("account should not be locked after clear")
	}
	tracker.RecordFailure(email)
	if tracker.IsLocked(email) {
		t.Error("count should restart after clear")
	}
}

func TestLockoutTracker_RemainingTime(t *testing.T) {
	duration := time.Minute
	tracker := NewLockoutTracker(1, duration)
	email := "ada@example.com"

	if remaining := tracker.RemainingLockoutTime(email); remaining != 0 {
		t.Errorf("remaining time should be 0, got %v", remaining)
	}

	tracker.RecordFailure(email)
	remaining := tracker.RemainingLockoutTime(email)
	if remaining <= 0 || remaining > duration {
		t.Errorf("remaining = %v, want (0, %v]", remaining, duration)
	}
}

func TestLockoutTracker_IndependentAccounts(t *testing.T) {
	tracker := NewLockoutTracker(2, time.Hour)
	tracker.RecordFailure("a@example.com")
	tracker.RecordFailure("a@example.com")

	if !tracker.IsLocked("a@example.com") {
		t.Error("a should be locked")
	}
	if tracker.IsLocked("b@example.com") {
		t.Error("b should not be locked")
	}
}

func TestLockoutTracker_Cleanup(t *testing.T) {
	tracker := NewLockoutTracker(1, time.Minute)
	tracker.RecordFailure("expired@example.com")
	tracker.RecordFailure("pending@example.com")
	tracker.entries["pending@example.com"].expiresAt = time.Time{}
	tracker.entries["pending@example.com"].failures = 0

	tracker.cleanup(time.Now().Add(2 * time.Minute))

	if n := tracker.size(); n != 1 {
		t.Errorf("entries after cleanup = %d, want 1", n)
	}
	if _, ok := tracker.entries["pending@example.com"]; !ok {
		t.Error("unlocked entry with pending failures should survive cleanup")
	}
}

func TestNewLockoutTracker_Defaults(t *testing.T) {
	tracker := NewLockoutTracker(0, 0)
	if tracker.threshold != DefaultLockoutThreshold || tracker.duration != DefaultLockoutDuration {
		t.Errorf("defaults = %d/%v", tracker.threshold, tracker.duration)
	}
}
