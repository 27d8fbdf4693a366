package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Repository defines user data access interface
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	UpdateStripeCustomerID(ctx context.Context, id uuid.UUID, customerID string) error
}

const selectColumns = `id, email, username, credit_balance, tier, stripe_customer_id, created_at, updated_at`

// repository implements Repository
type repository struct {
	db *sqlx.DB
}

// NewRepository creates new user repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

// GetByID retrieves a user by ID
func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	var u User
	err := r.db.GetContext(ctx, &u, `SELECT `+selectColumns+` FROM users WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}
	return &u, nil
}

// GetByUsername retrieves a user by username. The Stripe checkout flow
// carries the username as client_reference_id, so webhook processing
// resolves users through this lookup.
func (r *repository) GetByUsername(ctx context.Context, username string) (*User, error) {
	var u User
	err := r.db.GetContext(ctx, &u, `SELECT `+selectColumns+` FROM users WHERE username = $1`, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by username: %w", err)
	}
	return &u, nil
}

// UpdateStripeCustomerID stores the Stripe customer linked to the user.
func (r *repository) UpdateStripeCustomerID(ctx context.Context, id uuid.UUID, customerID string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE users SET stripe_customer_id = $2, updated_at = now() WHERE id = $1
	`, id, customerID)
	if err != nil {
		return fmt.Errorf("failed to update stripe customer id: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		return ErrUserNotFound
	}
	return nil
}
