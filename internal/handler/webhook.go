package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/paysync/backend/internal/service"
	"github.com/paysync/backend/pkg/payment"
	"github.com/sirupsen/logrus"
)

// maxWebhookBodySize caps inbound webhook payloads. Processor events are
// small; the limit protects the raw-body read.
const maxWebhookBodySize = 64 * 1024

// WebhookHandler receives asynchronous billing events from the payment
// processor. The endpoint is unauthenticated; the signature over the raw
// body is the authentication mechanism.
type WebhookHandler struct {
	verifier   *payment.Verifier
	dispatcher *service.EventDispatcher
	log        *logrus.Logger
}

// NewWebhookHandler creates a WebhookHandler.
func NewWebhookHandler(verifier *payment.Verifier, dispatcher *service.EventDispatcher, log *logrus.Logger) *WebhookHandler {
	return &WebhookHandler{verifier: verifier, dispatcher: dispatcher, log: log}
}

// HandleBilling handles POST /api/billing/webhook.
//
// Only verifier failures produce a non-success response: they are the only
// failures the processor's retry mechanism can resolve. Everything past
// verification is acknowledged, with handler problems surfacing in logs.
func (h *WebhookHandler) HandleBilling(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodySize)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		JSON(w, http.StatusBadRequest, map[string]string{"error": "failed to read body"})
		return
	}

	ev, err := h.verifier.Verify(body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, payment.ErrConfigMissing) {
			// Deployment fault, not a client error.
			status = http.StatusInternalServerError
		}
		h.log.WithError(err).Warn("webhook rejected")
		JSON(w, status, map[string]string{"error": "webhook verification failed"})
		return
	}

	h.dispatcher.Dispatch(r.Context(), ev)
	JSON(w, http.StatusOK, map[string]bool{"received": true})
}
