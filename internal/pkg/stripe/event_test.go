package stripe

import (
	"fmt"
	"testing"
	"time"
)

const checkoutPayload = `{
	"id": "evt_test_1",
	"type": "checkout.session.completed",
	"created": 1700000000,
	"data": {
		"object": {
			"id": "cs_test_1",
			"client_reference_id": "reader42",
			"customer": "cus_abc",
			"amount_total": 999,
			"currency": "usd",
			"payment_status": "paid",
			"metadata": {"credits": "2000"}
		}
	}
}`

func TestConstructEvent(t *testing.T) {
	payload := []byte(checkoutPayload)
	now := time.Now()
	header := fmt.Sprintf("t=%d,v1=%s", now.Unix(), Sign(payload, now, testSecret))

	event, err := ConstructEvent(payload, header, testSecret)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if event.Type != EventCheckoutSessionCompleted {
		t.Fatalf("unexpected event type: %s", event.Type)
	}

	session, err := event.CheckoutSession()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session.ID != "cs_test_1" || session.ClientReferenceID != "reader42" {
		t.Fatalf("unexpected session: %+v", session)
	}
	if session.Metadata["credits"] != "2000" {
		t.Fatalf("expected credits metadata, got %v", session.Metadata)
	}
}

func TestConstructEvent_BadSignature(t *testing.T) {
	payload := []byte(checkoutPayload)
	now := time.Now()
	header := fmt.Sprintf("t=%d,v1=deadbeef", now.Unix())

	if _, err := ConstructEvent(payload, header, testSecret); err == nil {
		t.Fatal("expected signature rejection")
	}
}

func TestConstructEvent_InvalidJSON(t *testing.T) {
	payload := []byte(`{not json`)
	now := time.Now()
	header := fmt.Sprintf("t=%d,v1=%s", now.Unix(), Sign(payload, now, testSecret))

	if _, err := ConstructEvent(payload, header, testSecret); err == nil {
		t.Fatal("expected unmarshal failure")
	}
}

func TestCheckoutSession_MissingID(t *testing.T) {
	event := &Event{
		Type: EventCheckoutSessionCompleted,
		Data: EventData{Object: []byte(`{"client_reference_id":"reader42"}`)},
	}

	if _, err := event.CheckoutSession(); err == nil {
		t.Fatal("expected missing session id to be rejected")
	}
}
