package credit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Ledger defines the transaction store operations the service is built
// on. LedgerRepository is the postgres implementation.
type Ledger interface {
	// RecordPurchase appends an ACTIVE purchase lot, idempotent on
	// externalRef; created=false means the reference was already applied
	RecordPurchase(ctx context.Context, userID uuid.UUID, credits, priceCents int64, tier Tier, externalRef string, purchasedAt time.Time) (*Transaction, bool, error)

	// Consume deducts amount FIFO across the user's ACTIVE lots,
	// all-or-nothing
	Consume(ctx context.Context, userID uuid.UUID, amount int64) (*ConsumptionResult, error)

	// ExpireDueForUser zeroes and EXPIREs the user's due lots
	ExpireDueForUser(ctx context.Context, userID uuid.UUID, now time.Time) ([]ExpiredTransaction, error)

	// UsersWithDueCredits lists users holding at least one due ACTIVE lot
	UsersWithDueCredits(ctx context.Context, now time.Time) ([]uuid.UUID, error)

	// FindExpiringBetween lists ACTIVE lots expiring inside [from, to]
	FindExpiringBetween(ctx context.Context, from, to time.Time) ([]Transaction, error)

	// ActiveTransactions returns the user's ACTIVE lots in FIFO order
	ActiveTransactions(ctx context.Context, userID uuid.UUID) ([]Transaction, error)

	// CountTransactions counts the user's transactions in any status
	CountTransactions(ctx context.Context, userID uuid.UUID) (int64, error)
}
