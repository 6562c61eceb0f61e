package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/lylaw27/glaze-store/internal/platform/httpx"
	"github.com/lylaw27/glaze-store/internal/platform/requestctx"
	"github.com/lylaw27/glaze-store/internal/services"
)

const maxJSONBodySize = 64 * 1024

var (
	errEmptyBody    = errors.New("request body is required")
	errBodyTooLarge = errors.New("request body exceeds allowed size")
)

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, errEmptyBody
	}
	if limit <= 0 {
		limit = maxJSONBodySize
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errEmptyBody
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	return data, nil
}

// decodeJSONBody reads a bounded body into dst and writes the error response itself on failure.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	ctx := r.Context()
	body, err := readLimitedBody(r, maxJSONBodySize)
	if err != nil {
		if errors.Is(err, errBodyTooLarge) {
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", err.Error(), http.StatusRequestEntityTooLarge))
			return false
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", fmt.Sprintf("invalid JSON payload: %s", jsonErrorDetail(err)), http.StatusBadRequest))
		return false
	}
	return true
}

func jsonErrorDetail(err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return fmt.Sprintf("field %s must be %s", typeErr.Field, typeErr.Type.String())
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return "malformed JSON"
	}
	return err.Error()
}

// writeServiceError maps service sentinels onto the error envelope. Unknown errors are logged and
// rendered as a generic 500.
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	var (
		code   string
		status int
	)
	switch {
	case errors.Is(err, services.ErrOrderInsufficientStock):
		code, status = "insufficient_stock", http.StatusBadRequest
	case errors.Is(err, services.ErrCartInvalidInput),
		errors.Is(err, services.ErrOrderInvalidInput),
		errors.Is(err, services.ErrCatalogInvalidInput),
		errors.Is(err, services.ErrPaymentInvalidInput):
		code, status = "invalid_request", http.StatusBadRequest
	case errors.Is(err, services.ErrOrderNotFound), errors.Is(err, services.ErrCatalogNotFound):
		code, status = "not_found", http.StatusNotFound
	case errors.Is(err, services.ErrOrderInvalidState):
		code, status = "invalid_status_transition", http.StatusConflict
	case errors.Is(err, services.ErrCatalogConflict):
		code, status = "conflict", http.StatusConflict
	case errors.Is(err, services.ErrCatalogUploadTooLarge):
		code, status = "payload_too_large", http.StatusRequestEntityTooLarge
	case errors.Is(err, services.ErrCatalogStorageDisabled):
		code, status = "storage_unavailable", http.StatusServiceUnavailable
	case errors.Is(err, services.ErrPaymentUnavailable):
		code, status = "payment_unavailable", http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		requestctx.Logger(ctx).Warn("request deadline exceeded", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("timeout", "The request timed out", http.StatusGatewayTimeout))
		return
	default:
		requestctx.Logger(ctx).Error("request failed", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "Internal server error", http.StatusInternalServerError))
		return
	}

	httpx.WriteError(ctx, w, httpx.NewError(code, services.PublicMessage(err, http.StatusText(status)), status).
		WithDetails(services.PublicDetails(err)))
}
