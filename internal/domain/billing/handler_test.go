package billing

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ttsreader/credits-api/internal/domain/user"
	"github.com/ttsreader/credits-api/internal/pkg/stripe"
)

const webhookSecret = "whsec_handler_test"

func postWebhook(t *testing.T, h *Handler, payload string, sign bool) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(payload))
	if sign {
		now := time.Now()
		req.Header.Set("Stripe-Signature",
			fmt.Sprintf("t=%d,v1=%s", now.Unix(), stripe.Sign([]byte(payload), now, webhookSecret)))
	}

	rec := httptest.NewRecorder()
	h.StripeWebhook(rec, req)
	return rec
}

func TestStripeWebhook_Success(t *testing.T) {
	account := &user.User{ID: uuid.New(), Username: "reader42", Tier: "FREE"}
	ledger := &stubLedger{}
	h := NewHandler(NewService(ledger, &stubUsers{user: account}), webhookSecret)

	payload := `{
		"id": "evt_1",
		"type": "checkout.session.completed",
		"data": {"object": {
			"id": "cs_1",
			"client_reference_id": "reader42",
			"payment_status": "paid",
			"amount_total": 999,
			"metadata": {"credits": "2000"}
		}}
	}`

	rec := postWebhook(t, h, payload, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(ledger.purchases) != 1 {
		t.Fatalf("expected 1 purchase, got %d", len(ledger.purchases))
	}
}

func TestStripeWebhook_MissingSignature(t *testing.T) {
	h := NewHandler(NewService(&stubLedger{}, &stubUsers{}), webhookSecret)

	rec := postWebhook(t, h, `{"id":"evt_1","type":"checkout.session.completed"}`, false)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unsigned request, got %d", rec.Code)
	}
}

func TestStripeWebhook_UnknownUser(t *testing.T) {
	h := NewHandler(NewService(&stubLedger{}, &stubUsers{}), webhookSecret)

	payload := `{
		"id": "evt_1",
		"type": "checkout.session.completed",
		"data": {"object": {
			"id": "cs_1",
			"client_reference_id": "ghost",
			"payment_status": "paid",
			"metadata": {"credits": "2000"}
		}}
	}`

	rec := postWebhook(t, h, payload, true)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown user, got %d", rec.Code)
	}
}

func TestStripeWebhook_TransientFailureTriggersRetry(t *testing.T) {
	account := &user.User{ID: uuid.New(), Username: "reader42", Tier: "FREE"}
	ledger := &stubLedger{err: fmt.Errorf("db down")}
	h := NewHandler(NewService(ledger, &stubUsers{user: account}), webhookSecret)

	payload := `{
		"id": "evt_1",
		"type": "checkout.session.completed",
		"data": {"object": {
			"id": "cs_1",
			"client_reference_id": "reader42",
			"payment_status": "paid",
			"metadata": {"credits": "2000"}
		}}
	}`

	rec := postWebhook(t, h, payload, true)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 so stripe redelivers, got %d", rec.Code)
	}
}
