package handlers

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/lylaw27/glaze-store/internal/platform/httpx"
	"github.com/lylaw27/glaze-store/internal/services"
)

// ProductHandlers serves the storefront catalog. Hidden products are never returned.
type ProductHandlers struct {
	catalog services.CatalogService
}

// NewProductHandlers constructs storefront product handlers.
func NewProductHandlers(catalog services.CatalogService) *ProductHandlers {
	return &ProductHandlers{catalog: catalog}
}

// Routes wires the /products endpoints onto the provided router.
func (h *ProductHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.listProducts)
	r.Get("/{idOrHandle}", h.getProduct)
}

func (h *ProductHandlers) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}
	query, err := parseProductQuery(r.URL.Query())
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_query", err.Error(), http.StatusBadRequest))
		return
	}
	products, err := h.catalog.ListProducts(ctx, query)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildProductList(products))
}

func (h *ProductHandlers) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}
	product, err := h.catalog.GetProduct(ctx, chi.URLParam(r, "idOrHandle"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildProductPayload(product))
}

func parseProductQuery(values url.Values) (services.ProductQuery, error) {
	query := services.ProductQuery{
		Search:     strings.TrimSpace(values.Get("search")),
		Categories: splitListParam(values["category"]),
	}
	var err error
	if query.MinPrice, err = parseDecimalParam(values, "minPrice"); err != nil {
		return services.ProductQuery{}, err
	}
	if query.MaxPrice, err = parseDecimalParam(values, "maxPrice"); err != nil {
		return services.ProductQuery{}, err
	}
	if raw := strings.TrimSpace(values.Get("inStock")); raw != "" {
		inStock, err := strconv.ParseBool(raw)
		if err != nil {
			return services.ProductQuery{}, fmt.Errorf("inStock must be true or false")
		}
		query.InStock = &inStock
	}
	if raw := strings.TrimSpace(values.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return services.ProductQuery{}, fmt.Errorf("limit must be a positive integer")
		}
		query.Limit = limit
	}
	return query, nil
}

func parseDecimalParam(values url.Values, name string) (*decimal.Decimal, error) {
	raw := strings.TrimSpace(values.Get(name))
	if raw == "" {
		return nil, nil
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be a number", name)
	}
	return &value, nil
}

// splitListParam accepts repeated parameters and comma separated lists.
func splitListParam(raw []string) []string {
	var out []string
	for _, entry := range raw {
		for _, part := range strings.Split(entry, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				out = append(out, trimmed)
			}
		}
	}
	return out
}

func parsePageSize(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	size, err := strconv.Atoi(raw)
	if err != nil || size < 0 {
		return 0, fmt.Errorf("pageSize must be a non-negative integer")
	}
	return size, nil
}
