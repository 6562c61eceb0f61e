package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lylaw27/glaze-store/internal/platform/httpx"
	"github.com/lylaw27/glaze-store/internal/services"
)

// CategoryHandlers exposes category listing and management.
type CategoryHandlers struct {
	categories services.CategoryService
}

// NewCategoryHandlers constructs category handlers.
func NewCategoryHandlers(categories services.CategoryService) *CategoryHandlers {
	return &CategoryHandlers{categories: categories}
}

// Routes wires the /categories endpoints onto the provided router.
func (h *CategoryHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.listCategories)
	r.Post("/", h.createCategory)
	r.Put("/{categoryId}", h.updateCategory)
	r.Delete("/{categoryId}", h.deleteCategory)
}

type upsertCategoryRequest struct {
	Name   string `json:"name"`
	Handle string `json:"handle"`
	Type   string `json:"type"`
}

func (h *CategoryHandlers) available(w http.ResponseWriter, r *http.Request) bool {
	if h.categories == nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("category_service_unavailable", "category service is unavailable", http.StatusServiceUnavailable))
		return false
	}
	return true
}

func (h *CategoryHandlers) listCategories(w http.ResponseWriter, r *http.Request) {
	if !h.available(w, r) {
		return
	}
	ctx := r.Context()
	categories, err := h.categories.ListCategories(ctx)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	payload := make([]categoryPayload, 0, len(categories))
	for _, category := range categories {
		payload = append(payload, buildCategoryPayload(category, true))
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *CategoryHandlers) createCategory(w http.ResponseWriter, r *http.Request) {
	if !h.available(w, r) {
		return
	}
	ctx := r.Context()
	var req upsertCategoryRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	category, err := h.categories.CreateCategory(ctx, services.UpsertCategoryCommand{Name: req.Name, Handle: req.Handle, Type: req.Type})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, buildCategoryPayload(category, true))
}

func (h *CategoryHandlers) updateCategory(w http.ResponseWriter, r *http.Request) {
	if !h.available(w, r) {
		return
	}
	ctx := r.Context()
	var req upsertCategoryRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	category, err := h.categories.UpdateCategory(ctx, services.UpsertCategoryCommand{
		CategoryID: chi.URLParam(r, "categoryId"),
		Name:       req.Name,
		Handle:     req.Handle,
		Type:       req.Type,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildCategoryPayload(category, true))
}

func (h *CategoryHandlers) deleteCategory(w http.ResponseWriter, r *http.Request) {
	if !h.available(w, r) {
		return
	}
	ctx := r.Context()
	if err := h.categories.DeleteCategory(ctx, chi.URLParam(r, "categoryId")); err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"message": "Category deleted successfully"})
}
