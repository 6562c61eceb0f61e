package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	domain "github.com/lylaw27/glaze-store/internal/domain"
	"github.com/lylaw27/glaze-store/internal/platform/httpx"
	"github.com/lylaw27/glaze-store/internal/services"
)

type updateOrderStatusRequest struct {
	Status string `json:"status"`
}

func (h *AdminHandlers) ordersAvailable(w http.ResponseWriter, r *http.Request) bool {
	if h.orders == nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return false
	}
	return true
}

func (h *AdminHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	if !h.ordersAvailable(w, r) {
		return
	}
	ctx := r.Context()
	values := r.URL.Query()
	pageSize, err := parsePageSize(values.Get("pageSize"))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_query", err.Error(), http.StatusBadRequest))
		return
	}
	filter := services.OrderListFilter{
		Pagination: services.Pagination{PageSize: pageSize, PageToken: values.Get("pageToken")},
	}
	for _, status := range splitListParam(values["status"]) {
		filter.Status = append(filter.Status, domain.OrderStatus(status))
	}

	page, err := h.orders.ListOrders(ctx, filter)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	resp := pageResponse[orderPayload]{Items: make([]orderPayload, 0, len(page.Items)), NextPageToken: page.NextPageToken}
	for _, order := range page.Items {
		resp.Items = append(resp.Items, buildOrderPayload(order))
	}
	writeJSONResponse(w, http.StatusOK, resp)
}

func (h *AdminHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	if !h.ordersAvailable(w, r) {
		return
	}
	ctx := r.Context()
	order, err := h.orders.GetOrder(ctx, chi.URLParam(r, "orderId"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderPayload(order))
}

func (h *AdminHandlers) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	if !h.ordersAvailable(w, r) {
		return
	}
	ctx := r.Context()
	var req updateOrderStatusRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	order, err := h.orders.UpdateStatus(ctx, services.UpdateOrderStatusCommand{
		OrderID: chi.URLParam(r, "orderId"),
		Status:  domain.OrderStatus(req.Status),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderPayload(order))
}
