package credit

import "time"

// TransactionView is one active lot in the balance stats payload.
type TransactionView struct {
	ID                  int64             `json:"id"`
	CreditsPurchased    int64             `json:"credits_purchased"`
	CreditsRemaining    int64             `json:"credits_remaining"`
	PurchasePrice       int64             `json:"purchase_price"`
	TierAtPurchase      Tier              `json:"tier_at_purchase"`
	PurchasedAt         time.Time         `json:"purchased_at"`
	ExpiresAt           time.Time         `json:"expires_at"`
	DaysUntilExpiration int               `json:"days_until_expiration"`
	Status              TransactionStatus `json:"status"`
	ExternalRef         string            `json:"external_ref"`
	CreatedAt           time.Time         `json:"created_at"`
}

// BalanceStats is the read contract served by GET /credits/balance.
type BalanceStats struct {
	CreditBalance       int64             `json:"credit_balance"`
	Tier                Tier              `json:"tier"`
	NextExpiration      *time.Time        `json:"next_expiration"`
	DaysUntilExpiration *int              `json:"days_until_expiration"`
	ActiveTransactions  []TransactionView `json:"active_transactions"`
	TotalTransactions   int64             `json:"total_transactions"`
}

// BuildBalanceStats derives the stats payload from the user's active lots
// (in FIFO order) and the all-status transaction count. The balance is
// summed from the lots themselves, never read from a cached column.
func BuildBalanceStats(active []Transaction, total int64, now time.Time) *BalanceStats {
	stats := &BalanceStats{
		ActiveTransactions: make([]TransactionView, 0, len(active)),
		TotalTransactions:  total,
	}

	var soonest *time.Time
	for i := range active {
		lot := &active[i]
		stats.CreditBalance += lot.CreditsRemaining
		stats.ActiveTransactions = append(stats.ActiveTransactions, TransactionView{
			ID:                  lot.ID,
			CreditsPurchased:    lot.CreditsPurchased,
			CreditsRemaining:    lot.CreditsRemaining,
			PurchasePrice:       lot.PurchasePrice,
			TierAtPurchase:      lot.TierAtPurchase,
			PurchasedAt:         lot.PurchasedAt,
			ExpiresAt:           lot.ExpiresAt,
			DaysUntilExpiration: lot.DaysUntilExpiration(now),
			Status:              lot.Status,
			ExternalRef:         lot.ExternalRef,
			CreatedAt:           lot.CreatedAt,
		})

		if soonest == nil || lot.ExpiresAt.Before(*soonest) {
			t := lot.ExpiresAt
			soonest = &t
		}
	}

	stats.Tier = TierForBalance(stats.CreditBalance)

	if soonest != nil {
		stats.NextExpiration = soonest
		days := int(soonest.Sub(now).Hours() / 24)
		if days < 0 {
			days = 0
		}
		stats.DaysUntilExpiration = &days
	}

	return stats
}

type consumeRequest struct {
	Amount int64 `json:"amount" validate:"required,gt=0"`
}
