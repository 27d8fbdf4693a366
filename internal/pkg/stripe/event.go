package stripe

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types handled by the billing webhook.
const (
	EventCheckoutSessionCompleted = "checkout.session.completed"
)

// Event is the Stripe webhook event envelope.
type Event struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Created int64           `json:"created"`
	Data    EventData       `json:"data"`
	Raw     json.RawMessage `json:"-"`
}

type EventData struct {
	Object json.RawMessage `json:"object"`
}

// CheckoutSession is the data.object payload of a
// checkout.session.completed event, reduced to the fields the billing
// flow uses.
type CheckoutSession struct {
	ID                string            `json:"id"`
	ClientReferenceID string            `json:"client_reference_id"`
	Customer          string            `json:"customer"`
	AmountTotal       int64             `json:"amount_total"`
	Currency          string            `json:"currency"`
	PaymentStatus     string            `json:"payment_status"`
	Metadata          map[string]string `json:"metadata"`
}

// ConstructEvent verifies the payload signature and unmarshals the event
// envelope. The returned event keeps the raw payload for audit logging.
func ConstructEvent(payload []byte, sigHeader, secret string) (*Event, error) {
	if err := VerifySignature(payload, sigHeader, secret, time.Now(), DefaultTolerance); err != nil {
		return nil, fmt.Errorf("signature verification failed: %w", err)
	}

	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("invalid event payload: %w", err)
	}
	if event.Type == "" {
		return nil, fmt.Errorf("event type is missing")
	}
	event.Raw = payload

	return &event, nil
}

// CheckoutSession unmarshals the event's object as a checkout session.
func (e *Event) CheckoutSession() (*CheckoutSession, error) {
	var session CheckoutSession
	if err := json.Unmarshal(e.Data.Object, &session); err != nil {
		return nil, fmt.Errorf("invalid checkout session payload: %w", err)
	}
	if session.ID == "" {
		return nil, fmt.Errorf("checkout session id is missing")
	}
	return &session, nil
}
