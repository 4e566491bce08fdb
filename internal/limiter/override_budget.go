package limiter

import (
	"context"
	"fmt"
	"time"
)

// OverrideCounter counts a user's override-sourced decisions in a window.
// Satisfied by the Postgres store.
type OverrideCounter interface {
	CountOverridesSince(ctx context.Context, userID string, since time.Time) (int, error)
}

// OverrideBudget enforces the per-user daily quota of manual difficulty
// overrides. An over-quota override is not an error for the request: the
// caller degrades to the engine's own decision and flags the response.
type OverrideBudget struct {
	counter OverrideCounter
	quota   int
	now     func() time.Time
}

// NewOverrideBudget creates an override budget with the given daily quota.
func NewOverrideBudget(counter OverrideCounter, quota int) *OverrideBudget {
	return &OverrideBudget{counter: counter, quota: quota, now: time.Now}
}

// OverrideStatus reports a user's override consumption for the current day.
type OverrideStatus struct {
	Used      int `json:"used"`
	Quota     int `json:"quota"`
	Remaining int `json:"remaining"`
}

// Status returns the user's override usage since UTC midnight.
func (b *OverrideBudget) Status(ctx context.Context, userID string) (*OverrideStatus, error) {
	used, err := b.counter.CountOverridesSince(ctx, userID, dayStart(b.now()))
	if err != nil {
		return nil, fmt.Errorf("override budget: %w", err)
	}
	remaining := b.quota - used
	if remaining < 0 {
		remaining = 0
	}
	return &OverrideStatus{Used: used, Quota: b.quota, Remaining: remaining}, nil
}

// Allow reports whether the user may spend one more override today.
func (b *OverrideBudget) Allow(ctx context.Context, userID string) (bool, *OverrideStatus, error) {
	status, err := b.Status(ctx, userID)
	if err != nil {
		return false, nil, err
	}
	return status.Remaining > 0, status, nil
}
