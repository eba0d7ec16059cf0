package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/veloztours/booking-engine/internal/booking"
	"github.com/veloztours/booking-engine/internal/domain"
	"github.com/veloztours/booking-engine/internal/idempotency"
	"github.com/veloztours/booking-engine/internal/observability"
	"github.com/veloztours/booking-engine/internal/payments"
)

// BookingService is what the transport needs from the core.
type BookingService interface {
	CreateReservation(ctx context.Context, req booking.CreateRequest) (*booking.CreateResult, error)
	JoinWaitlist(ctx context.Context, req booking.JoinRequest) (*booking.JoinResult, error)
	Claim(ctx context.Context, reservationID uuid.UUID) (*booking.ClaimResult, error)
	UpdateHoldDetails(ctx context.Context, reservationID uuid.UUID, upd booking.DetailUpdate) error
	ConfirmCheckout(ctx context.Context, checkoutSessionID string, amountTotal int64, currency, chargeID, path string) error
	HandleCheckoutExpired(ctx context.Context, checkoutSessionID string) error
	PaymentStatus(ctx context.Context, checkoutSessionID string) (*booking.StatusResult, error)
	SweepExpiredHolds(ctx context.Context) (int, error)
	NotifyWaitlist(ctx context.Context, sessionFilter *uuid.UUID) (booking.NotifyReport, error)
	Resubscribe(ctx context.Context, reservationID uuid.UUID) error
}

type Handlers struct {
	svc           BookingService
	idemp         *idempotency.Idempotency
	logger        observability.Logger
	webhookSecret string
}

func NewHandlers(svc BookingService, idemp *idempotency.Idempotency, logger observability.Logger, webhookSecret string) *Handlers {
	return &Handlers{svc: svc, idemp: idemp, logger: logger, webhookSecret: webhookSecret}
}

func respondJSON(w http.ResponseWriter, status int, body interface{}) []byte {
	data, _ := json.Marshal(body)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
	return data
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// businessCode maps conflict errors to the machine-readable codes clients
// branch on.
func businessCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrNoSeats):
		return "NO_SEATS"
	case errors.Is(err, domain.ErrNoGuide):
		return "NO_GUIDE"
	case errors.Is(err, domain.ErrNotWaiting):
		return "NOT_WAITING"
	case errors.Is(err, domain.ErrNotHold):
		return "NOT_HOLD"
	case errors.Is(err, domain.ErrBookingClosed):
		return "CLOSED"
	case errors.Is(err, domain.ErrSessionCancelled):
		return "CANCELLED"
	case errors.Is(err, domain.ErrDuplicateReservation):
		return "DUPLICATE"
	case errors.Is(err, domain.ErrSerializationFailure):
		return "CONFLICT"
	}
	return ""
}

func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		respondJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		respondJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	case errors.Is(err, domain.ErrSessionCancelled), errors.Is(err, domain.ErrBookingClosed):
		respondJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Code: businessCode(err)})
	case businessCode(err) != "":
		respondJSON(w, http.StatusConflict, errorBody{Error: err.Error(), Code: businessCode(err)})
	case errors.Is(err, domain.ErrAmountMismatch):
		h.logger.WithError(err).Error("payment integrity failure")
		respondJSON(w, http.StatusInternalServerError, errorBody{Error: "payment integrity failure"})
	default:
		h.logger.WithError(err).Error("internal error")
		respondJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

type reservationRequest struct {
	SessionID uuid.UUID `json:"session_id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Adults    int       `json:"adults"`
	Minors    int       `json:"minors"`
	Language  *string   `json:"language,omitempty"`
}

func (h *Handlers) CreateReservation(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get("Idempotency-Key")
	if existing, err := h.idemp.Get(r.Context(), key); err == nil && existing != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(existing.Status)
		w.Write(existing.Result)
		return
	}

	var req reservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}

	result, err := h.svc.CreateReservation(r.Context(), booking.CreateRequest{
		SessionID: req.SessionID,
		Email:     req.Email,
		Name:      req.Name,
		Phone:     req.Phone,
		Party:     domain.Party{Adults: req.Adults, Minors: req.Minors},
		Language:  req.Language,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	body := map[string]interface{}{
		"kind":           result.Kind,
		"reservation_id": result.ReservationID,
	}
	if result.HoldExpiresAt != nil {
		body["hold_expires_at"] = result.HoldExpiresAt
	}
	data := respondJSON(w, http.StatusCreated, body)
	h.idemp.Set(r.Context(), key, idempotency.Response{Status: http.StatusCreated, Result: data})
}

func (h *Handlers) JoinWaitlist(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get("Idempotency-Key")
	if existing, err := h.idemp.Get(r.Context(), key); err == nil && existing != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(existing.Status)
		w.Write(existing.Result)
		return
	}

	var req reservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}

	result, err := h.svc.JoinWaitlist(r.Context(), booking.JoinRequest{
		SessionID: req.SessionID,
		Email:     req.Email,
		Name:      req.Name,
		Phone:     req.Phone,
		Party:     domain.Party{Adults: req.Adults, Minors: req.Minors},
		Language:  req.Language,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	status := http.StatusCreated
	if result.Reused {
		status = http.StatusOK
	}
	data := respondJSON(w, status, map[string]interface{}{
		"kind":           domain.StatusWaiting,
		"reservation_id": result.ReservationID,
	})
	h.idemp.Set(r.Context(), key, idempotency.Response{Status: status, Result: data})
}

func (h *Handlers) ClaimWaitlist(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondJSON(w, http.StatusBadRequest, errorBody{Error: "invalid id"})
		return
	}

	result, err := h.svc.Claim(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			respondJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
			return
		}
		if code := businessCode(err); code != "" {
			respondJSON(w, http.StatusConflict, map[string]interface{}{"ok": false, "code": code})
			return
		}
		h.writeError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"ok":              true,
		"reservation_id":  result.ReservationID,
		"hold_expires_at": result.HoldExpiresAt,
	})
}

func (h *Handlers) Resubscribe(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondJSON(w, http.StatusBadRequest, errorBody{Error: "invalid id"})
		return
	}
	if err := h.svc.Resubscribe(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}

func (h *Handlers) UpdateReservation(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondJSON(w, http.StatusBadRequest, errorBody{Error: "invalid id"})
		return
	}

	var req struct {
		Name     string  `json:"name"`
		Phone    string  `json:"phone"`
		Language *string `json:"language,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}

	err = h.svc.UpdateHoldDetails(r.Context(), id, booking.DetailUpdate{
		Name:     req.Name,
		Phone:    req.Phone,
		Language: req.Language,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}

// PaymentWebhook is the oracle's push path. The body is trusted only after
// the shared-secret signature verifies. 200 means processed or intentionally
// ignored; 5xx asks the oracle to retry.
func (h *Handlers) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, errorBody{Error: "unreadable body"})
		return
	}
	if !payments.VerifySignature(h.webhookSecret, body, r.Header.Get(payments.SignatureHeader)) {
		respondJSON(w, http.StatusUnauthorized, errorBody{Error: "invalid signature"})
		return
	}

	ev, err := payments.ParseEvent(body)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, errorBody{Error: "invalid event"})
		return
	}

	switch ev.Type {
	case payments.EventCheckoutCompleted:
		err = h.svc.ConfirmCheckout(r.Context(), ev.CheckoutSessionID, ev.AmountTotal, ev.Currency, ev.ChargeID, booking.PathPush)
	case payments.EventCheckoutExpired:
		err = h.svc.HandleCheckoutExpired(r.Context(), ev.CheckoutSessionID)
	default:
		// Event types this core does not act on are acknowledged so the
		// oracle stops retrying them.
		respondJSON(w, http.StatusOK, map[string]interface{}{"received": true, "ignored": true})
		return
	}

	if errors.Is(err, domain.ErrNotFound) {
		// Unknown checkout session: not ours, acknowledge.
		respondJSON(w, http.StatusOK, map[string]interface{}{"received": true, "ignored": true})
		return
	}
	if err != nil {
		h.logger.WithField("event_type", ev.Type).WithError(err).Error("webhook processing failed")
		respondJSON(w, http.StatusInternalServerError, errorBody{Error: "processing failed"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"received": true})
}

func (h *Handlers) PaymentStatus(w http.ResponseWriter, r *http.Request) {
	checkoutID := r.URL.Query().Get("checkout_session_id")
	if checkoutID == "" {
		respondJSON(w, http.StatusBadRequest, errorBody{Error: "checkout_session_id required"})
		return
	}

	status, err := h.svc.PaymentStatus(r.Context(), checkoutID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"reservationStatus": status.ReservationStatus,
		"paymentStatus":     status.PaymentStatus,
	})
}

func (h *Handlers) AdminCleanup(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.SweepExpiredHolds(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"expired": n})
}

func (h *Handlers) AdminNotify(w http.ResponseWriter, r *http.Request) {
	var filter *uuid.UUID
	if raw := r.URL.Query().Get("session_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			respondJSON(w, http.StatusBadRequest, errorBody{Error: "invalid session_id"})
			return
		}
		filter = &id
	}

	report, err := h.svc.NotifyWaitlist(r.Context(), filter)
	if err != nil {
		h.writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Ready"))
}
