package user

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// User represents a user account (matches actual users table). The
// credit_balance and tier columns are cached projections of the credit
// ledger; the ledger recomputes them on every mutation and nothing else
// writes them.
type User struct {
	ID       uuid.UUID `db:"id"`
	Email    string    `db:"email"`
	Username string    `db:"username"`

	// Ledger projection (read-through cache, owned by the credit domain)
	CreditBalance int64  `db:"credit_balance"`
	Tier          string `db:"tier"`

	// Stripe linkage
	StripeCustomerID sql.NullString `db:"stripe_customer_id"`

	// Timestamps
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}
