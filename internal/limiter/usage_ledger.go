package limiter

import (
	"context"
	"fmt"
	"time"
)

// UsageSummer sums a user's committed tokens in a window. Satisfied by the
// Postgres store.
type UsageSummer interface {
	SumTokensSince(ctx context.Context, userID string, since time.Time) (int64, error)
}

// UsageLedger enforces the per-user daily token budget. The check runs
// before the backend call; a user at or over the limit is denied before any
// tokens are spent.
type UsageLedger struct {
	summer UsageSummer
	limit  int64
	now    func() time.Time
}

// NewUsageLedger creates a ledger with the given daily token limit.
func NewUsageLedger(summer UsageSummer, limit int64) *UsageLedger {
	return &UsageLedger{summer: summer, limit: limit, now: time.Now}
}

// BudgetStatus reports a user's token consumption for the current day.
type BudgetStatus struct {
	UsedTokens int64 `json:"used_tokens"`
	Limit      int64 `json:"limit"`
	Remaining  int64 `json:"remaining"`
	Exhausted  bool  `json:"exhausted"`
}

// Status returns the user's token usage since UTC midnight.
func (l *UsageLedger) Status(ctx context.Context, userID string) (*BudgetStatus, error) {
	used, err := l.summer.SumTokensSince(ctx, userID, dayStart(l.now()))
	if err != nil {
		return nil, fmt.Errorf("usage ledger: %w", err)
	}
	status := &BudgetStatus{
		UsedTokens: used,
		Limit:      l.limit,
		Remaining:  l.limit - used,
		Exhausted:  used >= l.limit,
	}
	if status.Remaining < 0 {
		status.Remaining = 0
	}
	return status, nil
}

// Allow reports whether the user still has daily budget. Commit of the
// actual spend happens through the usage record after the backend answers,
// so a single request may finish over the limit; the next one is denied.
func (l *UsageLedger) Allow(ctx context.Context, userID string) (bool, *BudgetStatus, error) {
	status, err := l.Status(ctx, userID)
	if err != nil {
		return false, nil, err
	}
	return !status.Exhausted, status, nil
}
