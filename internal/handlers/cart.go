package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lylaw27/glaze-store/internal/platform/httpx"
	"github.com/lylaw27/glaze-store/internal/services"
)

// CartHandlers exposes stateless cart validation.
type CartHandlers struct {
	carts services.CartService
}

// NewCartHandlers constructs cart handlers backed by the cart service.
func NewCartHandlers(carts services.CartService) *CartHandlers {
	return &CartHandlers{carts: carts}
}

// Routes wires the /cart endpoints onto the provided router.
func (h *CartHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/validate", h.validateCart)
}

type validateCartRequest struct {
	Items []cartLineRequest `json:"items"`
}

type validatedCartItemPayload struct {
	ProductID      string      `json:"productId"`
	Name           string      `json:"name"`
	Price          json.Number `json:"price"`
	Quantity       int         `json:"quantity"`
	Image          *string     `json:"image"`
	ItemTotal      json.Number `json:"itemTotal"`
	AvailableStock int         `json:"availableStock"`
}

type cartValidationResponse struct {
	Items       []validatedCartItemPayload `json:"items"`
	TotalAmount json.Number                `json:"totalAmount"`
	Errors      []string                   `json:"errors,omitempty"`
	IsValid     bool                       `json:"isValid"`
}

func (h *CartHandlers) validateCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
		return
	}
	var req validateCartRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	result, err := h.carts.Validate(ctx, services.ValidateCartCommand{Items: toCartLines(req.Items)})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildCartValidation(result))
}

func buildCartValidation(result services.CartValidation) cartValidationResponse {
	resp := cartValidationResponse{
		Items:       make([]validatedCartItemPayload, 0, len(result.Items)),
		TotalAmount: money(result.TotalAmount),
		Errors:      result.Errors,
		IsValid:     result.IsValid,
	}
	for _, item := range result.Items {
		resp.Items = append(resp.Items, validatedCartItemPayload{
			ProductID:      item.ProductID,
			Name:           item.Name,
			Price:          money(item.Price),
			Quantity:       item.Quantity,
			Image:          item.Image,
			ItemTotal:      money(item.ItemTotal),
			AvailableStock: item.AvailableStock,
		})
	}
	return resp
}
