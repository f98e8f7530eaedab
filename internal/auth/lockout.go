package auth

import "time"

// LockoutPolicy is the consecutive-failure counter logic shared by both
// account kinds. It is pure: callers read the current counter state off
// the account record, apply the policy, and persist the result.
type LockoutPolicy struct {
	Threshold    int
	LockDuration time.Duration
}

func DefaultLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{Threshold: 5, LockDuration: 2 * time.Hour}
}

// OnFailure returns the counter and lock timestamp to persist after a
// wrong-password attempt. Crossing the threshold sets the lock and
// resets the counter; the lock then holds until it expires on its own.
func (p LockoutPolicy) OnFailure(failedCount int, now time.Time) (int, *time.Time) {
	failedCount++
	if failedCount >= p.Threshold {
		until := now.Add(p.LockDuration)
		return 0, &until
	}
	return failedCount, nil
}

// OnSuccess returns the counter to persist after a successful
// authentication. The lock timestamp is left alone: an active lock is
// rejected before password verification, so success never races one.
func (p LockoutPolicy) OnSuccess(failedCount int) (int, bool) {
	if failedCount == 0 {
		return 0, false
	}
	return 0, true
}
