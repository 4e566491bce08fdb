package limiter

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeUsageSummer struct {
	totals map[string]int64
	err    error
	since  time.Time
}

func (f *fakeUsageSummer) SumTokensSince(_ context.Context, userID string, since time.Time) (int64, error) {
	f.since = since
	if f.err != nil {
		return 0, f.err
	}
	return f.totals[userID], nil
}

func TestUsageLedger_AllowsUnderLimit(t *testing.T) {
	summer := &fakeUsageSummer{totals: map[string]int64{"u1": 99999}}
	ledger := NewUsageLedger(summer, 100000)

	allowed, status, err := ledger.Allow(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !allowed {
		t.Error("expected request under limit to be allowed")
	}
	if status.Remaining != 1 {
		t.Errorf("expected 1 token remaining, got %d", status.Remaining)
	}
}

func TestUsageLedger_DeniesAtLimit(t *testing.T) {
	summer := &fakeUsageSummer{totals: map[string]int64{"u1": 100000}}
	ledger := NewUsageLedger(summer, 100000)

	allowed, status, err := ledger.Allow(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if allowed {
		t.Error("expected request at limit to be denied")
	}
	if !status.Exhausted {
		t.Error("expected exhausted flag")
	}
}

func TestUsageLedger_RemainingClampedOverLimit(t *testing.T) {
	// A request that commits past the limit leaves usage over quota; the
	// next status must not report negative remaining.
	summer := &fakeUsageSummer{totals: map[string]int64{"u1": 104000}}
	ledger := NewUsageLedger(summer, 100000)

	status, err := ledger.Status(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.Remaining != 0 {
		t.Errorf("expected remaining clamped to 0, got %d", status.Remaining)
	}
	if status.UsedTokens != 104000 {
		t.Errorf("expected raw usage preserved, got %d", status.UsedTokens)
	}
}

func TestUsageLedger_WindowResetsAtMidnight(t *testing.T) {
	summer := &fakeUsageSummer{totals: map[string]int64{}}
	ledger := NewUsageLedger(summer, 100000)
	ledger.now = func() time.Time {
		return time.Date(2026, 8, 31, 0, 0, 1, 0, time.UTC)
	}

	if _, err := ledger.Status(context.Background(), "u1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	if !summer.since.Equal(want) {
		t.Errorf("expected window start %v, got %v", want, summer.since)
	}
}

func TestUsageLedger_SummerErrorPropagates(t *testing.T) {
	summer := &fakeUsageSummer{err: errors.New("db down")}
	ledger := NewUsageLedger(summer, 100000)

	if _, _, err := ledger.Allow(context.Background(), "u1"); err == nil {
		t.Error("expected error from failing summer")
	}
}
