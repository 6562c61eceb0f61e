package repositories

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/lylaw27/glaze-store/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Products() ProductRepository
	Categories() CategoryRepository
	Inventory() InventoryRepository
	Orders() OrderRepository
	Ping(ctx context.Context) error
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork allows grouping repository operations in a transactional boundary when supported.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// ProductRepository persists catalog products and their relations.
type ProductRepository interface {
	// List returns products ordered newest first. Relations (categories, variants, add-ons) are populated.
	List(ctx context.Context, filter ProductListFilter) (domain.CursorPage[domain.Product], error)
	// FindByID returns the product with relations regardless of status.
	FindByID(ctx context.Context, productID string) (domain.Product, error)
	// FindByHandle returns the product with relations regardless of status.
	FindByHandle(ctx context.Context, handle string) (domain.Product, error)
	// FindByIDs bulk-reads products without relations in a single query. Missing ids are skipped.
	FindByIDs(ctx context.Context, productIDs []string) ([]domain.Product, error)
	Insert(ctx context.Context, product domain.Product) error
	Update(ctx context.Context, product domain.Product) error
	// AppendImage and RemoveImage edit only the images column; stock is never rewritten.
	AppendImage(ctx context.Context, productID, imageURL string, now time.Time) error
	RemoveImage(ctx context.Context, productID, imageURL string, now time.Time) error
	Delete(ctx context.Context, productID string) error
	ReplaceCategories(ctx context.Context, productID string, categoryIDs []string) error
	ReplaceVariant(ctx context.Context, productID string, variant *domain.ProductVariant) error
	ReplaceAddOns(ctx context.Context, productID string, addOnIDs []string, now time.Time) error
	// HasOrderItems reports whether any order line references the product.
	HasOrderItems(ctx context.Context, productID string) (bool, error)
}

// ProductListFilter narrows product listings.
type ProductListFilter struct {
	Search          string
	CategoryHandles []string
	MinPrice        *decimal.Decimal
	MaxPrice        *decimal.Decimal
	InStockOnly     bool
	Status          *domain.ProductStatus
	Pagination      domain.Pagination
}

// InventoryRepository mutates the stock ledger. Both operations must run inside the caller's transaction.
type InventoryRepository interface {
	// Decrement lowers stock only when enough units remain; otherwise it returns an InventoryError
	// with InventoryErrorInsufficientStock and changes nothing.
	Decrement(ctx context.Context, adjustment InventoryAdjustment) error
	// Restock returns units to the ledger.
	Restock(ctx context.Context, adjustment InventoryAdjustment) error
}

// InventoryAdjustment describes a single stock mutation.
type InventoryAdjustment struct {
	ProductID string
	Quantity  int
	Now       time.Time
}

// CategoryRepository persists categories and answers reference counts.
type CategoryRepository interface {
	// List returns every category ordered by name with ProductCount populated.
	List(ctx context.Context) ([]domain.Category, error)
	FindByID(ctx context.Context, categoryID string) (domain.Category, error)
	FindByIDs(ctx context.Context, categoryIDs []string) ([]domain.Category, error)
	Insert(ctx context.Context, category domain.Category) error
	Update(ctx context.Context, category domain.Category) error
	Delete(ctx context.Context, categoryID string) error
	// CountProducts returns the number of product links referencing the category.
	CountProducts(ctx context.Context, categoryID string) (int, error)
}

// OrderRepository persists order headers and lines.
type OrderRepository interface {
	// Insert writes the order header and all of its items.
	Insert(ctx context.Context, order domain.Order) error
	// FindByID returns the order with items and their product projection.
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[domain.Order], error)
	// UpdateStatus performs a compare-and-set from the expected status. A mismatch yields a conflict error.
	UpdateStatus(ctx context.Context, update OrderStatusUpdate) error
}

// OrderListFilter narrows admin order listings.
type OrderListFilter struct {
	Status     []domain.OrderStatus
	Pagination domain.Pagination
}

// OrderStatusUpdate carries the expected and target status of a transition.
type OrderStatusUpdate struct {
	OrderID  string
	Expected domain.OrderStatus
	Next     domain.OrderStatus
	Now      time.Time
}
