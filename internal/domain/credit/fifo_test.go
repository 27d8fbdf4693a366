package credit

import (
	"errors"
	"testing"
	"time"
)

func lot(id, remaining int64, purchasedAt time.Time, status TransactionStatus) Transaction {
	return Transaction{
		ID:               id,
		CreditsPurchased: remaining,
		CreditsRemaining: remaining,
		PurchasedAt:      purchasedAt,
		ExpiresAt:        ExpireAt(purchasedAt),
		Status:           status,
	}
}

func TestPlanDeductions_SpansOldestLotsFirst(t *testing.T) {
	jan := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	jun := time.Date(2024, 6, 20, 0, 0, 0, 0, time.UTC)

	lots := []Transaction{
		lot(1, 2000, jan, StatusActive),
		lot(2, 10000, jun, StatusActive),
	}

	plan, err := planDeductions(lots, 3000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(plan) != 2 {
		t.Fatalf("expected 2 deductions, got %d", len(plan))
	}
	if plan[0].TransactionID != 1 || plan[0].Amount != 2000 {
		t.Fatalf("expected lot 1 fully drained, got %+v", plan[0])
	}
	if plan[1].TransactionID != 2 || plan[1].Amount != 1000 {
		t.Fatalf("expected 1000 from lot 2, got %+v", plan[1])
	}
}

func TestPlanDeductions_AllOrNothing(t *testing.T) {
	jan := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	lots := []Transaction{
		lot(1, 500, jan, StatusActive),
		lot(2, 400, jan.Add(time.Hour), StatusActive),
	}

	plan, err := planDeductions(lots, 1000)
	if !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("expected ErrInsufficientCredits, got %v", err)
	}
	if plan != nil {
		t.Fatalf("expected no plan on shortfall, got %+v", plan)
	}
}

func TestPlanDeductions_ExactDepletion(t *testing.T) {
	jan := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	lots := []Transaction{lot(1, 750, jan, StatusActive)}

	plan, err := planDeductions(lots, 750)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plan) != 1 || plan[0].Amount != 750 {
		t.Fatalf("expected single full deduction, got %+v", plan)
	}
}

func TestPlanDeductions_SkipsNonActiveLots(t *testing.T) {
	jan := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	lots := []Transaction{
		lot(1, 5000, jan, StatusExpired),
		lot(2, 300, jan.AddDate(0, 1, 0), StatusActive),
	}

	if _, err := planDeductions(lots, 1000); !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("expected expired lot to be ignored, got %v", err)
	}

	plan, err := planDeductions(lots, 300)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plan) != 1 || plan[0].TransactionID != 2 {
		t.Fatalf("expected deduction only from active lot, got %+v", plan)
	}
}

func TestPlanDeductions_InvalidAmount(t *testing.T) {
	if _, err := planDeductions(nil, 0); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for zero, got %v", err)
	}
	if _, err := planDeductions(nil, -10); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for negative, got %v", err)
	}
}
