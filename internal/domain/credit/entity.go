package credit

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// TransactionStatus represents the lifecycle state of a purchase lot
// (matches transaction_status enum). A transaction leaves ACTIVE exactly
// once and never comes back.
type TransactionStatus string

const (
	StatusActive   TransactionStatus = "ACTIVE"
	StatusExpired  TransactionStatus = "EXPIRED"
	StatusConsumed TransactionStatus = "CONSUMED"
)

// Tier is derived purely from the active credit balance. It is cached on
// the users row but never authoritative there.
type Tier string

const (
	TierFree    Tier = "FREE"
	TierPremium Tier = "PREMIUM"
	TierPro     Tier = "PRO"
)

// Tier thresholds: FREE < 2000 <= PREMIUM < 10000 <= PRO.
const (
	PremiumThreshold = 2000
	ProThreshold     = 10000
)

// TierForBalance maps an active balance onto a tier label.
func TierForBalance(balance int64) Tier {
	switch {
	case balance >= ProThreshold:
		return TierPro
	case balance >= PremiumThreshold:
		return TierPremium
	default:
		return TierFree
	}
}

// Transaction is one purchase lot in the credit ledger (matches the
// credit_transactions table). Rows are never deleted; consumed and
// expired lots stay for audit history.
type Transaction struct {
	ID               int64             `db:"id" json:"id"`
	UserID           uuid.UUID         `db:"user_id" json:"user_id"`
	CreditsPurchased int64             `db:"credits_purchased" json:"credits_purchased"`
	CreditsRemaining int64             `db:"credits_remaining" json:"credits_remaining"`
	PurchasePrice    int64             `db:"purchase_price" json:"purchase_price"`
	TierAtPurchase   Tier              `db:"tier_at_purchase" json:"tier_at_purchase"`
	PurchasedAt      time.Time         `db:"purchased_at" json:"purchased_at"`
	ExpiresAt        time.Time         `db:"expires_at" json:"expires_at"`
	Status           TransactionStatus `db:"status" json:"status"`
	ExternalRef      string            `db:"external_ref" json:"external_ref"`
	CreatedAt        time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt        sql.NullTime      `db:"updated_at" json:"-"`
}

// ExpireAt computes the expiration timestamp for a purchase made at t.
// Every lot gets the same fixed one-year lifetime.
func ExpireAt(t time.Time) time.Time {
	return t.AddDate(1, 0, 0)
}

// DaysUntilExpiration returns whole days between now and the lot's
// expiration, never negative.
func (t *Transaction) DaysUntilExpiration(now time.Time) int {
	d := int(t.ExpiresAt.Sub(now).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}

// IsExpirable reports whether an expiry sweep at now should pick this lot up.
func (t *Transaction) IsExpirable(now time.Time) bool {
	return t.Status == StatusActive && !t.ExpiresAt.After(now)
}

// Deduction records how much a consume call took from one lot.
type Deduction struct {
	TransactionID int64 `json:"transaction_id"`
	Amount        int64 `json:"amount_deducted"`
}

// ConsumptionResult is returned by a successful Consume.
type ConsumptionResult struct {
	Balance    int64       `json:"credit_balance"`
	Tier       Tier        `json:"tier"`
	Deductions []Deduction `json:"deductions"`
}

// ExpiredTransaction reports one lot zeroed by an expiry sweep, with the
// amount the user forfeited (consumed by the notification path).
type ExpiredTransaction struct {
	TransactionID  int64     `json:"transaction_id"`
	UserID         uuid.UUID `json:"user_id"`
	CreditsExpired int64     `json:"credits_expired"`
	ExpiresAt      time.Time `json:"expires_at"`
}
