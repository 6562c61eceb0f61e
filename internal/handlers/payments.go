package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lylaw27/glaze-store/internal/platform/httpx"
	"github.com/lylaw27/glaze-store/internal/platform/requestctx"
	"github.com/lylaw27/glaze-store/internal/services"
)

// PaymentHandlers exposes the payment intent bridge.
type PaymentHandlers struct {
	payments services.PaymentService
	intentMW []func(http.Handler) http.Handler
}

// NewPaymentHandlers constructs payment handlers. intentMiddlewares wrap intent creation only.
func NewPaymentHandlers(payments services.PaymentService, intentMiddlewares ...func(http.Handler) http.Handler) *PaymentHandlers {
	return &PaymentHandlers{payments: payments, intentMW: compactMiddlewares(intentMiddlewares)}
}

// Routes wires the /payments endpoints onto the provided router.
func (h *PaymentHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.With(h.intentMW...).Post("/intent", h.createIntent)
}

type createIntentRequest struct {
	Items []cartLineRequest `json:"items"`
}

type paymentIntentResponse struct {
	ClientSecret    string `json:"clientSecret"`
	PaymentIntentID string `json:"paymentIntentId"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
}

func (h *PaymentHandlers) createIntent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.payments == nil {
		httpx.WriteError(ctx, w, httpx.NewError("payment_unavailable", "Payments are not configured", http.StatusServiceUnavailable))
		return
	}
	var req createIntentRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	intent, err := h.payments.CreatePaymentIntent(ctx, services.CreatePaymentIntentCommand{
		Items:          toCartLines(req.Items),
		IdempotencyKey: requestctx.IdempotencyKey(ctx),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, paymentIntentResponse{
		ClientSecret:    intent.ClientSecret,
		PaymentIntentID: intent.ID,
		Amount:          intent.Amount,
		Currency:        intent.Currency,
	})
}
