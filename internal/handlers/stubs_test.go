package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	domain "github.com/lylaw27/glaze-store/internal/domain"
	"github.com/lylaw27/glaze-store/internal/services"
)

var errNotImplemented = errors.New("not implemented")

type stubCartService struct {
	validateFn func(context.Context, services.ValidateCartCommand) (services.CartValidation, error)
}

func (s *stubCartService) Validate(ctx context.Context, cmd services.ValidateCartCommand) (services.CartValidation, error) {
	if s.validateFn != nil {
		return s.validateFn(ctx, cmd)
	}
	return services.CartValidation{}, errNotImplemented
}

type stubOrderService struct {
	createFn func(context.Context, services.CreateOrderCommand) (services.Order, error)
	getFn    func(context.Context, string) (services.Order, error)
	listFn   func(context.Context, services.OrderListFilter) (domain.CursorPage[services.Order], error)
	updateFn func(context.Context, services.UpdateOrderStatusCommand) (services.Order, error)
}

func (s *stubOrderService) CreateOrder(ctx context.Context, cmd services.CreateOrderCommand) (services.Order, error) {
	if s.createFn != nil {
		return s.createFn(ctx, cmd)
	}
	return services.Order{}, errNotImplemented
}

func (s *stubOrderService) GetOrder(ctx context.Context, orderID string) (services.Order, error) {
	if s.getFn != nil {
		return s.getFn(ctx, orderID)
	}
	return services.Order{}, errNotImplemented
}

func (s *stubOrderService) ListOrders(ctx context.Context, filter services.OrderListFilter) (domain.CursorPage[services.Order], error) {
	if s.listFn != nil {
		return s.listFn(ctx, filter)
	}
	return domain.CursorPage[services.Order]{}, nil
}

func (s *stubOrderService) UpdateStatus(ctx context.Context, cmd services.UpdateOrderStatusCommand) (services.Order, error) {
	if s.updateFn != nil {
		return s.updateFn(ctx, cmd)
	}
	return services.Order{}, errNotImplemented
}

type stubCatalogService struct {
	listFn        func(context.Context, services.ProductQuery) ([]services.Product, error)
	getFn         func(context.Context, string) (services.Product, error)
	adminListFn   func(context.Context, services.AdminProductFilter) (domain.CursorPage[services.Product], error)
	adminGetFn    func(context.Context, string) (services.Product, error)
	createFn      func(context.Context, services.UpsertProductCommand) (services.Product, error)
	updateFn      func(context.Context, services.UpsertProductCommand) (services.Product, error)
	deleteFn      func(context.Context, string) error
	addImageFn    func(context.Context, services.AddProductImageCommand) (services.Product, error)
	removeImageFn func(context.Context, string, string) (services.Product, error)
}

func (s *stubCatalogService) ListProducts(ctx context.Context, query services.ProductQuery) ([]services.Product, error) {
	if s.listFn != nil {
		return s.listFn(ctx, query)
	}
	return nil, nil
}

func (s *stubCatalogService) GetProduct(ctx context.Context, idOrHandle string) (services.Product, error) {
	if s.getFn != nil {
		return s.getFn(ctx, idOrHandle)
	}
	return services.Product{}, errNotImplemented
}

func (s *stubCatalogService) ListAdminProducts(ctx context.Context, filter services.AdminProductFilter) (domain.CursorPage[services.Product], error) {
	if s.adminListFn != nil {
		return s.adminListFn(ctx, filter)
	}
	return domain.CursorPage[services.Product]{}, nil
}

func (s *stubCatalogService) GetAdminProduct(ctx context.Context, productID string) (services.Product, error) {
	if s.adminGetFn != nil {
		return s.adminGetFn(ctx, productID)
	}
	return services.Product{}, errNotImplemented
}

func (s *stubCatalogService) CreateProduct(ctx context.Context, cmd services.UpsertProductCommand) (services.Product, error) {
	if s.createFn != nil {
		return s.createFn(ctx, cmd)
	}
	return services.Product{}, errNotImplemented
}

func (s *stubCatalogService) UpdateProduct(ctx context.Context, cmd services.UpsertProductCommand) (services.Product, error) {
	if s.updateFn != nil {
		return s.updateFn(ctx, cmd)
	}
	return services.Product{}, errNotImplemented
}

func (s *stubCatalogService) DeleteProduct(ctx context.Context, productID string) error {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, productID)
	}
	return errNotImplemented
}

func (s *stubCatalogService) AddProductImage(ctx context.Context, cmd services.AddProductImageCommand) (services.Product, error) {
	if s.addImageFn != nil {
		return s.addImageFn(ctx, cmd)
	}
	return services.Product{}, errNotImplemented
}

func (s *stubCatalogService) RemoveProductImage(ctx context.Context, productID, imageURL string) (services.Product, error) {
	if s.removeImageFn != nil {
		return s.removeImageFn(ctx, productID, imageURL)
	}
	return services.Product{}, errNotImplemented
}

type stubCategoryService struct {
	listFn   func(context.Context) ([]services.Category, error)
	createFn func(context.Context, services.UpsertCategoryCommand) (services.Category, error)
	updateFn func(context.Context, services.UpsertCategoryCommand) (services.Category, error)
	deleteFn func(context.Context, string) error
}

func (s *stubCategoryService) ListCategories(ctx context.Context) ([]services.Category, error) {
	if s.listFn != nil {
		return s.listFn(ctx)
	}
	return nil, nil
}

func (s *stubCategoryService) CreateCategory(ctx context.Context, cmd services.UpsertCategoryCommand) (services.Category, error) {
	if s.createFn != nil {
		return s.createFn(ctx, cmd)
	}
	return services.Category{}, errNotImplemented
}

func (s *stubCategoryService) UpdateCategory(ctx context.Context, cmd services.UpsertCategoryCommand) (services.Category, error) {
	if s.updateFn != nil {
		return s.updateFn(ctx, cmd)
	}
	return services.Category{}, errNotImplemented
}

func (s *stubCategoryService) DeleteCategory(ctx context.Context, categoryID string) error {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, categoryID)
	}
	return errNotImplemented
}

type stubPaymentService struct {
	createFn func(context.Context, services.CreatePaymentIntentCommand) (services.PaymentIntent, error)
}

func (s *stubPaymentService) CreatePaymentIntent(ctx context.Context, cmd services.CreatePaymentIntentCommand) (services.PaymentIntent, error) {
	if s.createFn != nil {
		return s.createFn(ctx, cmd)
	}
	return services.PaymentIntent{}, errNotImplemented
}

type stubSystemService struct {
	reportFn func(context.Context) (services.SystemHealthReport, error)
}

func (s *stubSystemService) HealthReport(ctx context.Context) (services.SystemHealthReport, error) {
	if s.reportFn != nil {
		return s.reportFn(ctx)
	}
	return services.SystemHealthReport{}, errNotImplemented
}

func decodeBody(t *testing.T, data []byte) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(data, &body); err != nil {
		t.Fatalf("decode body %q: %v", string(data), err)
	}
	return body
}

func assertErrorEnvelope(t *testing.T, data []byte, code, message string) map[string]any {
	t.Helper()
	body := decodeBody(t, data)
	if body["code"] != code {
		t.Fatalf("expected code %q, got %v (body %s)", code, body["code"], string(data))
	}
	if message != "" && body["error"] != message {
		t.Fatalf("expected message %q, got %v", message, body["error"])
	}
	return body
}

func serviceError(kind error, message string) error {
	return &services.Error{Kind: kind, Message: message}
}
