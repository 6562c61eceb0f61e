package handlers

import (
	"bufio"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	domain "github.com/lylaw27/glaze-store/internal/domain"
	"github.com/lylaw27/glaze-store/internal/platform/httpx"
	"github.com/lylaw27/glaze-store/internal/services"
)

const (
	defaultMaxUploadBytes int64 = 10 << 20
	multipartOverhead     int64 = 1 << 20
	imageFormField              = "file"
)

// AdminHandlers exposes back-office product and order management.
type AdminHandlers struct {
	catalog        services.CatalogService
	orders         services.OrderService
	maxUploadBytes int64
}

// AdminOption customises AdminHandlers.
type AdminOption func(*AdminHandlers)

// WithMaxUploadBytes caps multipart image uploads.
func WithMaxUploadBytes(limit int64) AdminOption {
	return func(h *AdminHandlers) {
		if limit > 0 {
			h.maxUploadBytes = limit
		}
	}
}

// NewAdminHandlers constructs admin handlers.
func NewAdminHandlers(catalog services.CatalogService, orders services.OrderService, opts ...AdminOption) *AdminHandlers {
	h := &AdminHandlers{catalog: catalog, orders: orders, maxUploadBytes: defaultMaxUploadBytes}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes wires the /admin endpoints onto the provided router.
func (h *AdminHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Route("/products", func(productRoutes chi.Router) {
		productRoutes.Get("/", h.listProducts)
		productRoutes.Post("/", h.createProduct)
		productRoutes.Get("/{productId}", h.getProduct)
		productRoutes.Put("/{productId}", h.updateProduct)
		productRoutes.Delete("/{productId}", h.deleteProduct)
		productRoutes.Post("/{productId}/images", h.uploadImage)
		productRoutes.Delete("/{productId}/images", h.removeImage)
	})
	r.Route("/orders", func(orderRoutes chi.Router) {
		orderRoutes.Get("/", h.listOrders)
		orderRoutes.Get("/{orderId}", h.getOrder)
		orderRoutes.Patch("/{orderId}/status", h.updateOrderStatus)
	})
}

type variantOptionRequest struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

type upsertProductRequest struct {
	Name           string                 `json:"name"`
	Handle         string                 `json:"handle"`
	Description    *string                `json:"description"`
	Price          decimal.Decimal        `json:"price"`
	Stock          int                    `json:"stock"`
	Status         string                 `json:"status"`
	Images         []string               `json:"images"`
	CategoryIDs    []string               `json:"categoryIds"`
	VariantOptions []variantOptionRequest `json:"variantOptions"`
	AddOnIDs       []string               `json:"addOnIds"`
}

func (req upsertProductRequest) command(productID string) services.UpsertProductCommand {
	cmd := services.UpsertProductCommand{
		ProductID:   productID,
		Name:        req.Name,
		Handle:      req.Handle,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
		Status:      domain.ProductStatus(req.Status),
		Images:      req.Images,
		CategoryIDs: req.CategoryIDs,
		AddOnIDs:    req.AddOnIDs,
	}
	for _, option := range req.VariantOptions {
		cmd.VariantOptions = append(cmd.VariantOptions, services.VariantOption{Name: option.Name, Values: option.Values})
	}
	return cmd
}

func (h *AdminHandlers) catalogAvailable(w http.ResponseWriter, r *http.Request) bool {
	if h.catalog == nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("catalog_service_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return false
	}
	return true
}

func (h *AdminHandlers) listProducts(w http.ResponseWriter, r *http.Request) {
	if !h.catalogAvailable(w, r) {
		return
	}
	ctx := r.Context()
	values := r.URL.Query()
	pageSize, err := parsePageSize(values.Get("pageSize"))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_query", err.Error(), http.StatusBadRequest))
		return
	}
	filter := services.AdminProductFilter{
		Search:     strings.TrimSpace(values.Get("search")),
		Pagination: services.Pagination{PageSize: pageSize, PageToken: values.Get("pageToken")},
	}
	if raw := strings.TrimSpace(values.Get("status")); raw != "" {
		status := domain.ProductStatus(strings.ToLower(raw))
		filter.Status = &status
	}

	page, err := h.catalog.ListAdminProducts(ctx, filter)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, pageResponse[productPayload]{
		Items:         buildProductList(page.Items),
		NextPageToken: page.NextPageToken,
	})
}

func (h *AdminHandlers) getProduct(w http.ResponseWriter, r *http.Request) {
	if !h.catalogAvailable(w, r) {
		return
	}
	ctx := r.Context()
	product, err := h.catalog.GetAdminProduct(ctx, chi.URLParam(r, "productId"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildProductPayload(product))
}

func (h *AdminHandlers) createProduct(w http.ResponseWriter, r *http.Request) {
	if !h.catalogAvailable(w, r) {
		return
	}
	ctx := r.Context()
	var req upsertProductRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	product, err := h.catalog.CreateProduct(ctx, req.command(""))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, buildProductPayload(product))
}

func (h *AdminHandlers) updateProduct(w http.ResponseWriter, r *http.Request) {
	if !h.catalogAvailable(w, r) {
		return
	}
	ctx := r.Context()
	var req upsertProductRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	product, err := h.catalog.UpdateProduct(ctx, req.command(chi.URLParam(r, "productId")))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildProductPayload(product))
}

func (h *AdminHandlers) deleteProduct(w http.ResponseWriter, r *http.Request) {
	if !h.catalogAvailable(w, r) {
		return
	}
	ctx := r.Context()
	if err := h.catalog.DeleteProduct(ctx, chi.URLParam(r, "productId")); err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"message": "Product deleted successfully"})
}

// uploadImage streams the "file" part of a multipart body to the catalog service without buffering it
// on disk.
func (h *AdminHandlers) uploadImage(w http.ResponseWriter, r *http.Request) {
	if !h.catalogAvailable(w, r) {
		return
	}
	ctx := r.Context()
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/form-data" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "expected multipart/form-data body", http.StatusBadRequest))
		return
	}
	if r.ContentLength > h.maxUploadBytes+multipartOverhead {
		writeUploadTooLarge(w, r, h.maxUploadBytes)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+multipartOverhead)

	reader, err := r.MultipartReader()
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "malformed multipart body", http.StatusBadRequest))
		return
	}
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "Image file is required", http.StatusBadRequest))
			return
		}
		if err != nil {
			if isMaxBytesError(err) {
				writeUploadTooLarge(w, r, h.maxUploadBytes)
				return
			}
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "malformed multipart body", http.StatusBadRequest))
			return
		}
		if part.FormName() != imageFormField {
			_ = part.Close()
			continue
		}

		body := bufio.NewReader(part)
		contentType := partContentType(part.Header.Get("Content-Type"), body)
		product, err := h.catalog.AddProductImage(ctx, services.AddProductImageCommand{
			ProductID:   chi.URLParam(r, "productId"),
			ContentType: contentType,
			Body:        body,
		})
		_ = part.Close()
		if err != nil {
			if isMaxBytesError(err) {
				writeUploadTooLarge(w, r, h.maxUploadBytes)
				return
			}
			writeServiceError(ctx, w, err)
			return
		}
		writeJSONResponse(w, http.StatusCreated, buildProductPayload(product))
		return
	}
}

func (h *AdminHandlers) removeImage(w http.ResponseWriter, r *http.Request) {
	if !h.catalogAvailable(w, r) {
		return
	}
	ctx := r.Context()
	product, err := h.catalog.RemoveProductImage(ctx, chi.URLParam(r, "productId"), r.URL.Query().Get("url"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildProductPayload(product))
}

// partContentType trusts an explicit image type and sniffs the payload otherwise.
func partContentType(declared string, body *bufio.Reader) string {
	if mediaType, _, err := mime.ParseMediaType(declared); err == nil && strings.HasPrefix(mediaType, "image/") {
		return mediaType
	}
	head, _ := body.Peek(512)
	mediaType, _, _ := mime.ParseMediaType(http.DetectContentType(head))
	return mediaType
}

func isMaxBytesError(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

func writeUploadTooLarge(w http.ResponseWriter, r *http.Request, limit int64) {
	httpx.WriteError(r.Context(), w, httpx.NewError("payload_too_large", "Image exceeds the upload size limit", http.StatusRequestEntityTooLarge).
		WithDetails(map[string]any{"maxBytes": limit}))
}
