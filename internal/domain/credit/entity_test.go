package credit

import (
	"testing"
	"time"
)

func TestTierForBalance_Boundaries(t *testing.T) {
	cases := []struct {
		balance int64
		want    Tier
	}{
		{0, TierFree},
		{1999, TierFree},
		{2000, TierPremium},
		{9999, TierPremium},
		{10000, TierPro},
		{50000, TierPro},
	}

	for _, c := range cases {
		if got := TierForBalance(c.balance); got != c.want {
			t.Errorf("TierForBalance(%d) = %s, want %s", c.balance, got, c.want)
		}
	}
}

func TestExpireAt_OneYearLifetime(t *testing.T) {
	purchased := time.Date(2024, 3, 10, 12, 30, 0, 0, time.UTC)
	want := time.Date(2025, 3, 10, 12, 30, 0, 0, time.UTC)

	if got := ExpireAt(purchased); !got.Equal(want) {
		t.Fatalf("ExpireAt = %v, want %v", got, want)
	}
}

func TestDaysUntilExpiration_NeverNegative(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	txn := Transaction{ExpiresAt: now.AddDate(0, 0, 30)}
	if got := txn.DaysUntilExpiration(now); got != 30 {
		t.Fatalf("expected 30 days, got %d", got)
	}

	overdue := Transaction{ExpiresAt: now.AddDate(0, 0, -5)}
	if got := overdue.DaysUntilExpiration(now); got != 0 {
		t.Fatalf("expected 0 for overdue lot, got %d", got)
	}
}

func TestIsExpirable(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	due := Transaction{Status: StatusActive, ExpiresAt: now}
	if !due.IsExpirable(now) {
		t.Fatal("lot due exactly at now should be expirable")
	}

	future := Transaction{Status: StatusActive, ExpiresAt: now.Add(time.Minute)}
	if future.IsExpirable(now) {
		t.Fatal("lot expiring in the future should not be expirable")
	}

	consumed := Transaction{Status: StatusConsumed, ExpiresAt: now.AddDate(-1, 0, 0)}
	if consumed.IsExpirable(now) {
		t.Fatal("consumed lot should never be swept")
	}
}

func TestBuildBalanceStats(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	first := lot(1, 2000, now.AddDate(0, -11, 0), StatusActive)
	second := lot(2, 10000, now.AddDate(0, -2, 0), StatusActive)

	stats := BuildBalanceStats([]Transaction{first, second}, 5, now)

	if stats.CreditBalance != 12000 {
		t.Fatalf("expected balance 12000, got %d", stats.CreditBalance)
	}
	if stats.Tier != TierPro {
		t.Fatalf("expected PRO tier, got %s", stats.Tier)
	}
	if stats.TotalTransactions != 5 {
		t.Fatalf("expected 5 total transactions, got %d", stats.TotalTransactions)
	}
	if len(stats.ActiveTransactions) != 2 {
		t.Fatalf("expected 2 active lots, got %d", len(stats.ActiveTransactions))
	}

	if stats.NextExpiration == nil || !stats.NextExpiration.Equal(first.ExpiresAt) {
		t.Fatalf("expected next expiration from oldest lot, got %v", stats.NextExpiration)
	}
	if stats.DaysUntilExpiration == nil || *stats.DaysUntilExpiration != first.DaysUntilExpiration(now) {
		t.Fatalf("unexpected days until expiration: %v", stats.DaysUntilExpiration)
	}
}

func TestBuildBalanceStats_Empty(t *testing.T) {
	now := time.Now().UTC()
	stats := BuildBalanceStats(nil, 0, now)

	if stats.CreditBalance != 0 || stats.Tier != TierFree {
		t.Fatalf("expected empty FREE stats, got %+v", stats)
	}
	if stats.NextExpiration != nil || stats.DaysUntilExpiration != nil {
		t.Fatal("expected nil expiration fields with no active lots")
	}
	if stats.ActiveTransactions == nil {
		t.Fatal("active transactions should marshal as [], not null")
	}
}
