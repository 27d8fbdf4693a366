package billing

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/ttsreader/credits-api/internal/domain/credit"
	"github.com/ttsreader/credits-api/internal/domain/user"
	"github.com/ttsreader/credits-api/internal/pkg/stripe"
)

type recordedPurchase struct {
	UserID      uuid.UUID
	Credits     int64
	PriceCents  int64
	Tier        credit.Tier
	ExternalRef string
}

type stubLedger struct {
	purchases []recordedPurchase
	seen      map[string]bool
	err       error
}

func (s *stubLedger) RecordPurchase(_ context.Context, userID uuid.UUID, credits, priceCents int64, tier credit.Tier, externalRef string) (*credit.Transaction, bool, error) {
	if s.err != nil {
		return nil, false, s.err
	}
	if s.seen == nil {
		s.seen = make(map[string]bool)
	}
	if s.seen[externalRef] {
		return &credit.Transaction{ID: 1, UserID: userID, ExternalRef: externalRef}, false, nil
	}
	s.seen[externalRef] = true
	s.purchases = append(s.purchases, recordedPurchase{userID, credits, priceCents, tier, externalRef})
	return &credit.Transaction{ID: int64(len(s.purchases)), UserID: userID, ExternalRef: externalRef}, true, nil
}

type stubUsers struct {
	user       *user.User
	customerID string
}

func (s *stubUsers) GetByUsername(_ context.Context, username string) (*user.User, error) {
	if s.user == nil || s.user.Username != username {
		return nil, user.ErrUserNotFound
	}
	return s.user, nil
}

func (s *stubUsers) UpdateStripeCustomerID(_ context.Context, _ uuid.UUID, customerID string) error {
	s.customerID = customerID
	return nil
}

func checkoutEvent(t *testing.T, object string) *stripe.Event {
	t.Helper()
	return &stripe.Event{
		ID:   "evt_1",
		Type: stripe.EventCheckoutSessionCompleted,
		Data: stripe.EventData{Object: []byte(object)},
	}
}

func TestProcessEvent_RecordsPurchase(t *testing.T) {
	account := &user.User{ID: uuid.New(), Username: "reader42", Tier: "FREE"}
	ledger := &stubLedger{}
	users := &stubUsers{user: account}
	service := NewService(ledger, users)

	event := checkoutEvent(t, `{
		"id": "cs_1",
		"client_reference_id": "reader42",
		"customer": "cus_abc",
		"amount_total": 999,
		"payment_status": "paid",
		"metadata": {"credits": "2000"}
	}`)

	if err := service.ProcessEvent(context.Background(), event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(ledger.purchases) != 1 {
		t.Fatalf("expected 1 purchase, got %d", len(ledger.purchases))
	}
	p := ledger.purchases[0]
	if p.UserID != account.ID || p.Credits != 2000 || p.PriceCents != 999 {
		t.Fatalf("unexpected purchase: %+v", p)
	}
	if p.ExternalRef != "cs_1" {
		t.Fatalf("expected session id as external ref, got %s", p.ExternalRef)
	}
	if p.Tier != credit.TierFree {
		t.Fatalf("expected tier snapshot FREE, got %s", p.Tier)
	}
	if users.customerID != "cus_abc" {
		t.Fatalf("expected stripe customer stored, got %q", users.customerID)
	}
}

func TestProcessEvent_RedeliveryIsNoOp(t *testing.T) {
	account := &user.User{ID: uuid.New(), Username: "reader42", Tier: "FREE"}
	ledger := &stubLedger{}
	service := NewService(ledger, &stubUsers{user: account})

	object := `{
		"id": "cs_dup",
		"client_reference_id": "reader42",
		"payment_status": "paid",
		"amount_total": 999,
		"metadata": {"credits": "2000"}
	}`

	if err := service.ProcessEvent(context.Background(), checkoutEvent(t, object)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := service.ProcessEvent(context.Background(), checkoutEvent(t, object)); err != nil {
		t.Fatalf("redelivery must succeed: %v", err)
	}

	if len(ledger.purchases) != 1 {
		t.Fatalf("expected single purchase after redelivery, got %d", len(ledger.purchases))
	}
}

func TestProcessEvent_SkipsUnpaidSession(t *testing.T) {
	account := &user.User{ID: uuid.New(), Username: "reader42", Tier: "FREE"}
	ledger := &stubLedger{}
	service := NewService(ledger, &stubUsers{user: account})

	event := checkoutEvent(t, `{
		"id": "cs_unpaid",
		"client_reference_id": "reader42",
		"payment_status": "unpaid",
		"metadata": {"credits": "2000"}
	}`)

	if err := service.ProcessEvent(context.Background(), event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ledger.purchases) != 0 {
		t.Fatal("unpaid session must not record a purchase")
	}
}

func TestProcessEvent_UnknownUser(t *testing.T) {
	service := NewService(&stubLedger{}, &stubUsers{})

	event := checkoutEvent(t, `{
		"id": "cs_1",
		"client_reference_id": "ghost",
		"payment_status": "paid",
		"metadata": {"credits": "2000"}
	}`)

	err := service.ProcessEvent(context.Background(), event)
	if !errors.Is(err, ErrUnknownUser) {
		t.Fatalf("expected ErrUnknownUser, got %v", err)
	}
}

func TestProcessEvent_BadMetadata(t *testing.T) {
	account := &user.User{ID: uuid.New(), Username: "reader42", Tier: "FREE"}
	service := NewService(&stubLedger{}, &stubUsers{user: account})

	cases := []string{
		`{"id":"cs_1","client_reference_id":"reader42","payment_status":"paid","metadata":{}}`,
		`{"id":"cs_1","client_reference_id":"reader42","payment_status":"paid","metadata":{"credits":"zero"}}`,
		`{"id":"cs_1","client_reference_id":"reader42","payment_status":"paid","metadata":{"credits":"-100"}}`,
	}

	for _, object := range cases {
		err := service.ProcessEvent(context.Background(), checkoutEvent(t, object))
		if !errors.Is(err, ErrInvalidPayload) {
			t.Errorf("expected ErrInvalidPayload for %s, got %v", object, err)
		}
	}
}

func TestProcessEvent_IgnoresOtherEventTypes(t *testing.T) {
	ledger := &stubLedger{}
	service := NewService(ledger, &stubUsers{})

	event := &stripe.Event{ID: "evt_2", Type: "invoice.paid"}
	if err := service.ProcessEvent(context.Background(), event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ledger.purchases) != 0 {
		t.Fatal("unhandled event must not touch the ledger")
	}
}

func TestProcessEvent_KeepsExistingCustomerLink(t *testing.T) {
	account := &user.User{
		ID:               uuid.New(),
		Username:         "reader42",
		Tier:             "PREMIUM",
		StripeCustomerID: sql.NullString{String: "cus_abc", Valid: true},
	}
	users := &stubUsers{user: account}
	service := NewService(&stubLedger{}, users)

	event := checkoutEvent(t, `{
		"id": "cs_1",
		"client_reference_id": "reader42",
		"customer": "cus_abc",
		"payment_status": "paid",
		"amount_total": 2999,
		"metadata": {"credits": "10000"}
	}`)

	if err := service.ProcessEvent(context.Background(), event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if users.customerID != "" {
		t.Fatal("unchanged customer link should not be rewritten")
	}
}
