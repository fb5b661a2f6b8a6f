package handler

import (
	"net/http"

	"github.com/paysync/backend/internal/contextkeys"
	"github.com/paysync/backend/internal/domain"
	"github.com/paysync/backend/internal/service"
)

// SubscriptionHandler exposes the synchronous subscription command surface.
type SubscriptionHandler struct {
	svc *service.SubscriptionService
}

// NewSubscriptionHandler creates a SubscriptionHandler.
func NewSubscriptionHandler(svc *service.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{svc: svc}
}

// Get handles GET /api/billing/subscription.
func (h *SubscriptionHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(r)
	if !ok {
		JSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	view, err := h.svc.GetCurrentSubscription(r.Context(), userID)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, view)
}

// Create handles POST /api/billing/subscription.
func (h *SubscriptionHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(r)
	if !ok {
		JSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	var req domain.CreateSubscriptionRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}

	resp, err := h.svc.CreateSubscription(r.Context(), userID, &req)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusCreated, resp)
}

// Update handles PUT /api/billing/subscription (action=portal or cancel).
func (h *SubscriptionHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(r)
	if !ok {
		JSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	var req domain.UpdateSubscriptionRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}

	switch req.Action {
	case "portal":
		resp, err := h.svc.OpenBillingPortal(r.Context(), userID, req.ReturnURL)
		if err != nil {
			Error(w, err)
			return
		}
		JSON(w, http.StatusOK, resp)
	case "cancel":
		sub, err := h.svc.CancelAtPeriodEnd(r.Context(), userID)
		if err != nil {
			Error(w, err)
			return
		}
		JSON(w, http.StatusOK, sub)
	default:
		Error(w, domain.ErrBadRequest("unknown action"))
	}
}

// Delete handles DELETE /api/billing/subscription.
func (h *SubscriptionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(r)
	if !ok {
		JSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	if err := h.svc.DeleteIncompleteSubscription(r.Context(), userID); err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func callerID(r *http.Request) (string, bool) {
	userID, ok := r.Context().Value(contextkeys.UserID).(string)
	return userID, ok && userID != ""
}
