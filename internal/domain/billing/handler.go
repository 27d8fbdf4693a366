package billing

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/ttsreader/credits-api/internal/pkg/response"
	"github.com/ttsreader/credits-api/internal/pkg/stripe"
)

// maxWebhookBody caps how much of a webhook payload is read.
const maxWebhookBody = 1 << 20 // 1 MiB

// Handler handles inbound payment-provider webhooks.
type Handler struct {
	service       *Service
	webhookSecret string
}

func NewHandler(service *Service, webhookSecret string) *Handler {
	return &Handler{service: service, webhookSecret: webhookSecret}
}

// StripeWebhook handles POST /webhooks/stripe. Stripe retries on any
// non-2xx, so payload problems that will never succeed return 400 while
// transient failures return 500 to trigger redelivery.
func (h *Handler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		response.BadRequest(w, "failed to read request body")
		return
	}
	defer r.Body.Close()

	event, err := stripe.ConstructEvent(payload, r.Header.Get("Stripe-Signature"), h.webhookSecret)
	if err != nil {
		log.Warn().Err(err).Msg("stripe webhook rejected")
		response.BadRequest(w, "invalid webhook")
		return
	}

	if err := h.service.ProcessEvent(r.Context(), event); err != nil {
		switch {
		case errors.Is(err, ErrInvalidPayload), errors.Is(err, ErrUnknownUser):
			log.Warn().Err(err).Str("event_id", event.ID).Msg("stripe event not processable")
			response.BadRequest(w, "event not processable")
		default:
			log.Error().Err(err).Str("event_id", event.ID).Msg("stripe event processing failed")
			response.InternalError(w)
		}
		return
	}

	response.OK(w, map[string]string{"status": "success"})
}

// WebhookRoutes returns unauthenticated webhook routes; authenticity
// comes from the signature check, not a bearer token.
func (h *Handler) WebhookRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/stripe", h.StripeWebhook)
	return r
}
