package services

import (
	"context"
	"io"

	"github.com/shopspring/decimal"

	domain "github.com/lylaw27/glaze-store/internal/domain"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination         = domain.Pagination
	Product            = domain.Product
	ProductStatus      = domain.ProductStatus
	ProductSummary     = domain.ProductSummary
	ProductVariant     = domain.ProductVariant
	VariantOption      = domain.VariantOption
	Category           = domain.Category
	Order              = domain.Order
	OrderItem          = domain.OrderItem
	OrderStatus        = domain.OrderStatus
	SystemHealthReport = domain.SystemHealthReport
)

// CartService re-prices client carts against the live catalog without mutating anything.
type CartService interface {
	Validate(ctx context.Context, cmd ValidateCartCommand) (CartValidation, error)
}

// OrderService creates orders with stock reconciliation and drives their status lifecycle.
type OrderService interface {
	CreateOrder(ctx context.Context, cmd CreateOrderCommand) (Order, error)
	GetOrder(ctx context.Context, orderID string) (Order, error)
	ListOrders(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error)
	UpdateStatus(ctx context.Context, cmd UpdateOrderStatusCommand) (Order, error)
}

// CatalogService serves the storefront catalog and the admin product workflows.
type CatalogService interface {
	ListProducts(ctx context.Context, query ProductQuery) ([]Product, error)
	GetProduct(ctx context.Context, idOrHandle string) (Product, error)

	ListAdminProducts(ctx context.Context, filter AdminProductFilter) (domain.CursorPage[Product], error)
	GetAdminProduct(ctx context.Context, productID string) (Product, error)
	CreateProduct(ctx context.Context, cmd UpsertProductCommand) (Product, error)
	UpdateProduct(ctx context.Context, cmd UpsertProductCommand) (Product, error)
	DeleteProduct(ctx context.Context, productID string) error
	AddProductImage(ctx context.Context, cmd AddProductImageCommand) (Product, error)
	RemoveProductImage(ctx context.Context, productID, imageURL string) (Product, error)
}

// CategoryService manages categories and guards deletion of referenced ones.
type CategoryService interface {
	ListCategories(ctx context.Context) ([]Category, error)
	CreateCategory(ctx context.Context, cmd UpsertCategoryCommand) (Category, error)
	UpdateCategory(ctx context.Context, cmd UpsertCategoryCommand) (Category, error)
	DeleteCategory(ctx context.Context, categoryID string) error
}

// PaymentService bridges server-priced carts to the payment provider.
type PaymentService interface {
	CreatePaymentIntent(ctx context.Context, cmd CreatePaymentIntentCommand) (PaymentIntent, error)
}

// SystemService exposes liveness and readiness information.
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
}

// CartLine is one requested (product, quantity) pair.
type CartLine struct {
	ProductID string
	Quantity  int
}

// ValidateCartCommand carries the cart to re-price.
type ValidateCartCommand struct {
	Items []CartLine
}

// ValidatedCartItem is a cart line priced from the current catalog.
type ValidatedCartItem struct {
	ProductID      string
	Name           string
	Price          decimal.Decimal
	Quantity       int
	Image          *string
	ItemTotal      decimal.Decimal
	AvailableStock int
}

// CartValidation is the advisory outcome of a cart check. Errors is nil when every line passed.
type CartValidation struct {
	Items       []ValidatedCartItem
	TotalAmount decimal.Decimal
	Errors      []string
	IsValid     bool
}

// CreateOrderCommand carries the customer details and lines of a new order.
type CreateOrderCommand struct {
	CustomerName    string
	CustomerEmail   string
	CustomerAddress string
	PaymentID       *string
	Items           []CartLine
}

// OrderListFilter narrows admin order listings.
type OrderListFilter struct {
	Status     []OrderStatus
	Pagination Pagination
}

// UpdateOrderStatusCommand requests a lifecycle transition.
type UpdateOrderStatusCommand struct {
	OrderID string
	Status  OrderStatus
}

// ProductQuery filters the storefront product listing.
type ProductQuery struct {
	Search     string
	Categories []string
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
	// InStock restricts results to stock > 0. Nil means true.
	InStock *bool
	Limit   int
}

// AdminProductFilter narrows the admin product listing. Hidden products are included.
type AdminProductFilter struct {
	Search     string
	Status     *ProductStatus
	Pagination Pagination
}

// UpsertProductCommand carries a full product definition for create or replace.
type UpsertProductCommand struct {
	ProductID      string
	Name           string
	Handle         string
	Description    *string
	Price          decimal.Decimal
	Stock          int
	Status         ProductStatus
	Images         []string
	CategoryIDs    []string
	VariantOptions []VariantOption
	AddOnIDs       []string
}

// AddProductImageCommand streams an image to object storage and appends it to the product.
type AddProductImageCommand struct {
	ProductID   string
	ContentType string
	Size        int64
	Body        io.Reader
}

// UpsertCategoryCommand carries category fields for create or update.
type UpsertCategoryCommand struct {
	CategoryID string
	Name       string
	Handle     string
	Type       string
}

// CreatePaymentIntentCommand carries the cart to be charged.
type CreatePaymentIntentCommand struct {
	Items          []CartLine
	IdempotencyKey string
}

// PaymentIntent is the client-facing part of a provider payment intent.
type PaymentIntent struct {
	ID           string
	ClientSecret string
	Amount       int64
	Currency     string
}

// PaymentProvider creates payment intents at the PSP.
type PaymentProvider interface {
	CreatePaymentIntent(ctx context.Context, req PaymentIntentRequest) (PaymentIntent, error)
}

// PaymentIntentRequest is the provider-neutral intent request in minor units.
type PaymentIntentRequest struct {
	Amount         int64
	Currency       string
	Metadata       map[string]string
	IdempotencyKey string
}
