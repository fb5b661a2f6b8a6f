package handler

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/paysync/backend/internal/service"
	"github.com/paysync/backend/pkg/payment"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79/webhook"
)

const webhookTestSecret = "whsec_handler_test"

func newWebhookHandler(secret string) *WebhookHandler {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	// An unhandled event never reaches the reconciler, so nil stores are safe
	// for boundary tests.
	guard := service.NewIdempotencyGuard(nil, nil, log)
	reconciler := service.NewPaymentReconciler(guard, nil, nil, service.NewLogNotifier(log), log)
	dispatcher := service.NewEventDispatcher(reconciler, log)
	return NewWebhookHandler(payment.NewVerifier(secret), dispatcher, log)
}

func signedRequest(t *testing.T, payload []byte, secret string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/billing/webhook", bytes.NewReader(payload))
	ts := time.Now()
	sig := webhook.ComputeSignature(ts, payload, secret)
	req.Header.Set("Stripe-Signature", fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(sig)))
	return req
}

func TestWebhookAcknowledgesVerifiedEvent(t *testing.T) {
	h := newWebhookHandler(webhookTestSecret)
	payload := []byte(`{"id": "evt_1", "type": "charge.refunded", "data": {"object": {"id": "ch_1"}}}`)

	rec := httptest.NewRecorder()
	h.HandleBilling(rec, signedRequest(t, payload, webhookTestSecret))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"received": true}`, rec.Body.String())
}

func TestWebhookRejectsTamperedSignature(t *testing.T) {
	h := newWebhookHandler(webhookTestSecret)
	payload := []byte(`{"id": "evt_1", "type": "charge.refunded", "data": {"object": {"id": "ch_1"}}}`)

	req := signedRequest(t, payload, "whsec_wrong_secret")
	rec := httptest.NewRecorder()
	h.HandleBilling(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhookRejectsMissingSignature(t *testing.T) {
	h := newWebhookHandler(webhookTestSecret)
	payload := []byte(`{"id": "evt_1", "type": "charge.refunded", "data": {"object": {}}}`)

	req := httptest.NewRequest(http.MethodPost, "/api/billing/webhook", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	h.HandleBilling(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhookMissingSecretIsServerFault(t *testing.T) {
	h := newWebhookHandler("")
	payload := []byte(`{"id": "evt_1", "type": "charge.refunded", "data": {"object": {}}}`)

	rec := httptest.NewRecorder()
	h.HandleBilling(rec, signedRequest(t, payload, webhookTestSecret))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestWebhookRejectsOversizedBody(t *testing.T) {
	h := newWebhookHandler(webhookTestSecret)
	payload := bytes.Repeat([]byte("a"), 128*1024)

	rec := httptest.NewRecorder()
	h.HandleBilling(rec, signedRequest(t, payload, webhookTestSecret))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
