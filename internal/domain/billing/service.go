package billing

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/ttsreader/credits-api/internal/domain/credit"
	"github.com/ttsreader/credits-api/internal/domain/user"
	"github.com/ttsreader/credits-api/internal/pkg/stripe"
)

// CreditLedger is the slice of the credit service the webhook needs.
type CreditLedger interface {
	RecordPurchase(ctx context.Context, userID uuid.UUID, credits, priceCents int64, tier credit.Tier, externalRef string) (*credit.Transaction, bool, error)
}

// UserDirectory resolves checkout references to accounts.
type UserDirectory interface {
	GetByUsername(ctx context.Context, username string) (*user.User, error)
	UpdateStripeCustomerID(ctx context.Context, id uuid.UUID, customerID string) error
}

// Service turns verified Stripe events into ledger purchases. The
// checkout session id is the idempotency key, so Stripe's at-least-once
// delivery lands on the ledger exactly once.
type Service struct {
	ledger CreditLedger
	users  UserDirectory
}

func NewService(ledger CreditLedger, users UserDirectory) *Service {
	return &Service{ledger: ledger, users: users}
}

// ProcessEvent dispatches one verified webhook event. Unhandled event
// types are acknowledged without action so Stripe stops redelivering
// them.
func (s *Service) ProcessEvent(ctx context.Context, event *stripe.Event) error {
	switch event.Type {
	case stripe.EventCheckoutSessionCompleted:
		session, err := event.CheckoutSession()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		return s.handleCheckoutCompleted(ctx, session)
	default:
		log.Debug().Str("event_type", event.Type).Str("event_id", event.ID).Msg("ignoring unhandled stripe event")
		return nil
	}
}

func (s *Service) handleCheckoutCompleted(ctx context.Context, session *stripe.CheckoutSession) error {
	if session.PaymentStatus != "" && session.PaymentStatus != "paid" {
		log.Warn().
			Str("session_id", session.ID).
			Str("payment_status", session.PaymentStatus).
			Msg("checkout session completed without payment, skipping")
		return nil
	}

	account, err := s.users.GetByUsername(ctx, session.ClientReferenceID)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrUnknownUser, session.ClientReferenceID)
	}

	credits, err := creditsFromMetadata(session.Metadata)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	if session.Customer != "" && (!account.StripeCustomerID.Valid || account.StripeCustomerID.String != session.Customer) {
		if err := s.users.UpdateStripeCustomerID(ctx, account.ID, session.Customer); err != nil {
			// Purchase recording matters more than the customer link;
			// the next webhook re-attempts it.
			log.Error().Err(err).Str("user_id", account.ID.String()).Msg("failed to store stripe customer id")
		}
	}

	_, created, err := s.ledger.RecordPurchase(ctx, account.ID, credits, session.AmountTotal, credit.Tier(account.Tier), session.ID)
	if err != nil {
		return err
	}

	if !created {
		log.Info().
			Str("session_id", session.ID).
			Str("user_id", account.ID.String()).
			Msg("checkout session redelivered, purchase already recorded")
	}

	return nil
}

// creditsFromMetadata reads the purchased credit amount from the checkout
// session metadata set when the session was created.
func creditsFromMetadata(metadata map[string]string) (int64, error) {
	raw, ok := metadata["credits"]
	if !ok {
		return 0, fmt.Errorf("metadata is missing credits")
	}
	credits, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || credits <= 0 {
		return 0, fmt.Errorf("metadata credits %q is not a positive integer", raw)
	}
	return credits, nil
}
