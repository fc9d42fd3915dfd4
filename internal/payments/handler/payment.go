package handler

import (
	"encoding/json"
	"net/http"

	"rentpay/internal/payments/service"
	apperrors "rentpay/pkg/errors"
	httputil "rentpay/pkg/http"
	"rentpay/pkg/logger"
	"rentpay/pkg/middleware"
	"rentpay/pkg/model"

	"github.com/julienschmidt/httprouter"
)

const webhookPath = "/api/v1/payments/webhook"

type PaymentHandler struct {
	service service.PaymentService
	log     *logger.Logger
}

func NewPaymentHandler(service service.PaymentService, log *logger.Logger) *PaymentHandler {
	return &PaymentHandler{
		service: service,
		log:     log,
	}
}

// webhookEvent accepts both spellings Chapa uses for the reference.
type webhookEvent struct {
	TxRef  string `json:"tx_ref"`
	TrxRef string `json:"trx_ref"`
	Status string `json:"status"`
}

func (e webhookEvent) reference() string {
	if e.TxRef != "" {
		return e.TxRef
	}
	return e.TrxRef
}

func (h *PaymentHandler) Initiate(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	caller, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		h.writeError(w, "Initiate", apperrors.Unauthorized("Authentication required"))
		return
	}

	var req model.InitiatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
			Code:  apperrors.CodeInvalidInput,
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Initiate", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	resp, err := h.service.InitiatePayment(r.Context(), caller, &req)
	if err != nil {
		h.writeError(w, "Initiate", err)
		return
	}

	if err := httputil.WriteCreated(w, resp); err != nil {
		h.log.Error("failed to write created response", "handler", "Initiate", "operation", "WriteCreated", "error", err)
	}
}

func (h *PaymentHandler) Verify(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	caller, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		h.writeError(w, "Verify", apperrors.Unauthorized("Authentication required"))
		return
	}

	resp, err := h.service.VerifyPayment(r.Context(), caller, r.URL.Query().Get("tx_ref"))
	if err != nil {
		h.writeError(w, "Verify", err)
		return
	}

	if err := httputil.WriteSuccess(w, resp); err != nil {
		h.log.Error("failed to write success response", "handler", "Verify", "operation", "WriteSuccess", "error", err)
	}
}

func (h *PaymentHandler) ListByBooking(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	caller, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		h.writeError(w, "ListByBooking", apperrors.Unauthorized("Authentication required"))
		return
	}

	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "ListByBooking", err)
		return
	}

	payments, count, err := h.service.ListByBooking(r.Context(), caller, ps.ByName("id"), limit, offset)
	if err != nil {
		h.writeError(w, "ListByBooking", err)
		return
	}

	if err := httputil.WritePaginated(w, payments, count, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "ListByBooking", "operation", "WritePaginated", "error", err)
	}
}

// Webhook treats the event as a trigger only; the reported status is never
// trusted and the outcome is read back from the gateway.
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var event webhookEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		h.writeError(w, "Webhook", apperrors.InvalidInput("Invalid webhook body"))
		return
	}

	h.log.Debug("Gateway webhook received", "tx_ref", event.reference(), "reported_status", event.Status)

	resp, err := h.service.ReconcileFromWebhook(r.Context(), event.reference())
	if err != nil {
		h.writeError(w, "Webhook", err)
		return
	}

	if err := httputil.WriteSuccess(w, resp); err != nil {
		h.log.Error("failed to write success response", "handler", "Webhook", "operation", "WriteSuccess", "error", err)
	}
}

// Callback handles the unsigned browser callback. It reconciles the named
// payment but answers with a bare 204 whatever the outcome, so the payment
// status is only ever disclosed to the owner or to a signed webhook.
func (h *PaymentHandler) Callback(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	query := r.URL.Query()
	event := webhookEvent{
		TxRef:  query.Get("tx_ref"),
		TrxRef: query.Get("trx_ref"),
		Status: query.Get("status"),
	}

	h.log.Debug("Gateway callback received", "tx_ref", event.reference(), "reported_status", event.Status)

	if _, err := h.service.ReconcileFromWebhook(r.Context(), event.reference()); err != nil {
		h.log.Warn("Gateway callback reconciliation failed", "tx_ref", event.reference(), "error", err)
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *PaymentHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *PaymentHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/payments/initiate", h.Initiate)
	router.GET("/api/v1/payments/verify", h.Verify)
	router.GET("/api/v1/bookings/id/:id/payments", h.ListByBooking)
}

func (h *PaymentHandler) RegisterWebhookRoutes(router *httprouter.Router) {
	router.POST(webhookPath, h.Webhook)
	router.GET(webhookPath, h.Callback)
}
