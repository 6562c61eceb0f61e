package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lylaw27/glaze-store/internal/platform/requestctx"
)

func TestWriteErrorEnvelope(t *testing.T) {
	ctx := requestctx.WithTrace(context.Background(), requestctx.TraceInfo{TraceID: "trace-1"})
	rec := httptest.NewRecorder()

	WriteError(ctx, rec, NewError("category_in_use", "Cannot delete category.\nIt is used by 2 product(s)", http.StatusConflict).
		WithDetails(map[string]any{"productCount": 2, "error": "ignored"}))

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %q", ct)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["error"] != "Cannot delete category. It is used by 2 product(s)" {
		t.Fatalf("unexpected error message %v", body["error"])
	}
	if body["code"] != "category_in_use" || body["trace_id"] != "trace-1" {
		t.Fatalf("unexpected envelope %v", body)
	}
	if body["productCount"] != float64(2) {
		t.Fatalf("expected detail to be merged, got %v", body["productCount"])
	}
}

func TestNewErrorDefaultsStatusAndTruncates(t *testing.T) {
	err := NewError("x", strings.Repeat("a", 600), 0)
	if err.Status != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", err.Status)
	}
	if len(err.Message) != 512 {
		t.Fatalf("expected truncated message, got %d chars", len(err.Message))
	}
}
