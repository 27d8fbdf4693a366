package credit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const queryTimeout = 5 * time.Second

// LedgerRepository owns the credit_transactions table and the cached
// balance/tier projection on users. Every mutation locks the users row
// first, then recomputes the projection inside the same SQL transaction,
// so the cache can never drift from the ledger.
type LedgerRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// RecordPurchase appends a new ACTIVE purchase lot with a one-year
// expiry. It is idempotent on externalRef: a redelivered reference
// returns the previously created transaction with created=false and no
// second row is written.
func (r *LedgerRepository) RecordPurchase(ctx context.Context, userID uuid.UUID, credits, priceCents int64, tier Tier, externalRef string, purchasedAt time.Time) (*Transaction, bool, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx2, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, false, fmt.Errorf("%w: begin tx", ErrInternal)
	}
	defer tx.Rollback()

	if err := r.lockUser(ctx2, tx, userID); err != nil {
		return nil, false, err
	}

	var txn Transaction
	err = tx.GetContext(ctx2, &txn, `
		INSERT INTO credit_transactions (
			user_id, credits_purchased, credits_remaining, purchase_price,
			tier_at_purchase, purchased_at, expires_at, status, external_ref
		)
		VALUES ($1, $2, $2, $3, $4, $5, $6, 'ACTIVE', $7)
		RETURNING id, user_id, credits_purchased, credits_remaining, purchase_price,
		          tier_at_purchase, purchased_at, expires_at, status, external_ref,
		          created_at, updated_at
	`, userID, credits, priceCents, tier, purchasedAt, ExpireAt(purchasedAt), externalRef)
	if err != nil {
		if isUniqueViolation(err) {
			existing, lookupErr := r.getByExternalRef(ctx2, externalRef)
			if lookupErr != nil {
				return nil, false, lookupErr
			}
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("%w: insert transaction: %v", ErrInternal, err)
	}

	if _, _, err := r.recomputeProjection(ctx2, tx, userID); err != nil {
		return nil, false, err
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("%w: commit tx", ErrInternal)
	}

	return &txn, true, nil
}

// Consume deducts amount across the user's ACTIVE lots in strict FIFO
// order (purchased_at, then id). The users row lock serializes this
// against other mutations for the same user, so two consumers can never
// both see the same unconsumed balance and the sweep cannot expire a lot
// mid-walk. All-or-nothing: on ErrInsufficientCredits nothing was
// changed.
func (r *LedgerRepository) Consume(ctx context.Context, userID uuid.UUID, amount int64) (*ConsumptionResult, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx2, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("%w: begin tx", ErrInternal)
	}
	defer tx.Rollback()

	if err := r.lockUser(ctx2, tx, userID); err != nil {
		return nil, err
	}

	lots := make([]Transaction, 0, 4)
	err = tx.SelectContext(ctx2, &lots, `
		SELECT id, user_id, credits_purchased, credits_remaining, purchase_price,
		       tier_at_purchase, purchased_at, expires_at, status, external_ref,
		       created_at, updated_at
		FROM credit_transactions
		WHERE user_id = $1 AND status = 'ACTIVE' AND credits_remaining > 0
		ORDER BY purchased_at ASC, id ASC
		FOR UPDATE
	`, userID)
	if err != nil {
		return nil, mapConflict(err, "lock active transactions")
	}

	plan, err := planDeductions(lots, amount)
	if err != nil {
		return nil, err
	}

	for _, d := range plan {
		_, err := tx.ExecContext(ctx2, `
			UPDATE credit_transactions
			SET credits_remaining = credits_remaining - $2,
			    status = CASE WHEN credits_remaining - $2 = 0 THEN 'CONSUMED'::transaction_status ELSE status END,
			    updated_at = now()
			WHERE id = $1
		`, d.TransactionID, d.Amount)
		if err != nil {
			return nil, mapConflict(err, "apply deduction")
		}
	}

	balance, tier, err := r.recomputeProjection(ctx2, tx, userID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, mapConflict(err, "commit tx")
	}

	return &ConsumptionResult{Balance: balance, Tier: tier, Deductions: plan}, nil
}

// ExpireDueForUser zeroes and EXPIREs every ACTIVE lot of one user whose
// expires_at has passed. Idempotent: already-EXPIRED lots are excluded by
// the status filter. Scoped to one user so the sweep never blocks
// consume calls for unrelated users.
func (r *LedgerRepository) ExpireDueForUser(ctx context.Context, userID uuid.UUID, now time.Time) ([]ExpiredTransaction, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx2, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("%w: begin tx", ErrInternal)
	}
	defer tx.Rollback()

	if err := r.lockUser(ctx2, tx, userID); err != nil {
		return nil, err
	}

	due := make([]Transaction, 0, 2)
	err = tx.SelectContext(ctx2, &due, `
		SELECT id, user_id, credits_purchased, credits_remaining, purchase_price,
		       tier_at_purchase, purchased_at, expires_at, status, external_ref,
		       created_at, updated_at
		FROM credit_transactions
		WHERE user_id = $1 AND status = 'ACTIVE' AND expires_at <= $2
		ORDER BY id ASC
		FOR UPDATE
	`, userID, now)
	if err != nil {
		return nil, mapConflict(err, "lock due transactions")
	}
	if len(due) == 0 {
		return nil, nil
	}

	expired := make([]ExpiredTransaction, 0, len(due))
	for i := range due {
		lot := &due[i]
		_, err := tx.ExecContext(ctx2, `
			UPDATE credit_transactions
			SET credits_remaining = 0,
			    status = 'EXPIRED',
			    updated_at = now()
			WHERE id = $1
		`, lot.ID)
		if err != nil {
			return nil, mapConflict(err, "expire transaction")
		}
		expired = append(expired, ExpiredTransaction{
			TransactionID:  lot.ID,
			UserID:         lot.UserID,
			CreditsExpired: lot.CreditsRemaining,
			ExpiresAt:      lot.ExpiresAt,
		})
	}

	if _, _, err := r.recomputeProjection(ctx2, tx, userID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, mapConflict(err, "commit tx")
	}

	return expired, nil
}

// UsersWithDueCredits lists users that have at least one ACTIVE lot past
// its expiration, so the sweep can lock one user's set at a time.
func (r *LedgerRepository) UsersWithDueCredits(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	ids := make([]uuid.UUID, 0)
	err := r.db.SelectContext(ctx2, &ids, `
		SELECT DISTINCT user_id
		FROM credit_transactions
		WHERE status = 'ACTIVE' AND expires_at <= $1
	`, now)
	if err != nil {
		return nil, fmt.Errorf("%w: list users with due credits", ErrInternal)
	}
	return ids, nil
}

// FindExpiringBetween returns ACTIVE lots with remaining credits whose
// expiration falls inside [from, to]. Used for pre-expiry warnings.
func (r *LedgerRepository) FindExpiringBetween(ctx context.Context, from, to time.Time) ([]Transaction, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	lots := make([]Transaction, 0)
	err := r.db.SelectContext(ctx2, &lots, `
		SELECT id, user_id, credits_purchased, credits_remaining, purchase_price,
		       tier_at_purchase, purchased_at, expires_at, status, external_ref,
		       created_at, updated_at
		FROM credit_transactions
		WHERE status = 'ACTIVE' AND credits_remaining > 0
		  AND expires_at >= $1 AND expires_at <= $2
		ORDER BY expires_at ASC
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("%w: find expiring transactions", ErrInternal)
	}
	return lots, nil
}

// ActiveTransactions returns the user's ACTIVE lots in FIFO order.
func (r *LedgerRepository) ActiveTransactions(ctx context.Context, userID uuid.UUID) ([]Transaction, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	lots := make([]Transaction, 0)
	err := r.db.SelectContext(ctx2, &lots, `
		SELECT id, user_id, credits_purchased, credits_remaining, purchase_price,
		       tier_at_purchase, purchased_at, expires_at, status, external_ref,
		       created_at, updated_at
		FROM credit_transactions
		WHERE user_id = $1 AND status = 'ACTIVE'
		ORDER BY purchased_at ASC, id ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: list active transactions", ErrInternal)
	}
	return lots, nil
}

// CountTransactions counts the user's transactions in any status.
func (r *LedgerRepository) CountTransactions(ctx context.Context, userID uuid.UUID) (int64, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var total int64
	err := r.db.GetContext(ctx2, &total, `
		SELECT COUNT(*) FROM credit_transactions WHERE user_id = $1
	`, userID)
	if err != nil {
		return 0, fmt.Errorf("%w: count transactions", ErrInternal)
	}
	return total, nil
}

// GetBalance returns the cached active balance and tier from the users
// projection.
func (r *LedgerRepository) GetBalance(ctx context.Context, userID uuid.UUID) (int64, Tier, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var row struct {
		Balance int64 `db:"credit_balance"`
		Tier    Tier  `db:"tier"`
	}
	err := r.db.GetContext(ctx2, &row, `SELECT credit_balance, tier FROM users WHERE id = $1`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, "", ErrUserNotFound
		}
		return 0, "", fmt.Errorf("%w: get balance", ErrInternal)
	}
	return row.Balance, row.Tier, nil
}

// lockUser takes the row lock on the users row. Every mutating
// transaction acquires this lock before reading or summing ledger rows;
// it serializes RecordPurchase, Consume and ExpireDueForUser per user so
// no recompute can write a total derived from a snapshot that misses
// another transaction's in-flight mutation.
func (r *LedgerRepository) lockUser(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID) error {
	var id uuid.UUID
	err := tx.GetContext(ctx, &id, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrUserNotFound
		}
		return mapConflict(err, "lock user")
	}
	return nil
}

func (r *LedgerRepository) getByExternalRef(ctx context.Context, externalRef string) (*Transaction, error) {
	var txn Transaction
	err := r.db.GetContext(ctx, &txn, `
		SELECT id, user_id, credits_purchased, credits_remaining, purchase_price,
		       tier_at_purchase, purchased_at, expires_at, status, external_ref,
		       created_at, updated_at
		FROM credit_transactions
		WHERE external_ref = $1
	`, externalRef)
	if err != nil {
		return nil, fmt.Errorf("%w: get transaction by external_ref", ErrInternal)
	}
	return &txn, nil
}

// recomputeProjection re-derives the user's active balance and tier from
// the ledger and persists both onto the users row. Must run inside the
// same transaction as the ledger mutation, after lockUser, so the SUM
// sees every committed mutation for this user.
func (r *LedgerRepository) recomputeProjection(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID) (int64, Tier, error) {
	var balance int64
	err := tx.GetContext(ctx, &balance, `
		SELECT COALESCE(SUM(credits_remaining), 0)
		FROM credit_transactions
		WHERE user_id = $1 AND status = 'ACTIVE'
	`, userID)
	if err != nil {
		return 0, "", mapConflict(err, "recompute balance")
	}

	tier := TierForBalance(balance)
	result, err := tx.ExecContext(ctx, `
		UPDATE users SET credit_balance = $2, tier = $3, updated_at = now() WHERE id = $1
	`, userID, balance, tier)
	if err != nil {
		return 0, "", mapConflict(err, "update user projection")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, "", fmt.Errorf("%w: rows affected", ErrInternal)
	}
	if rows == 0 {
		return 0, "", ErrUserNotFound
	}

	return balance, tier, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// mapConflict turns postgres serialization failures and deadlocks into
// ErrConcurrencyConflict so the service can retry with a fresh read.
func mapConflict(err error, op string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01":
			return ErrConcurrencyConflict
		}
	}
	return fmt.Errorf("%w: %s: %v", ErrInternal, op, err)
}
