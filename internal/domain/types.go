package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// CursorPage wraps paginated results with the token for the next page.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

// ProductStatus controls storefront visibility of a product.
type ProductStatus string

const (
	// ProductStatusActive products are listed and purchasable.
	ProductStatusActive ProductStatus = "active"
	// ProductStatusHidden products are treated as non-existent by the storefront.
	ProductStatusHidden ProductStatus = "hidden"
)

// IsValid reports whether the status is a known product status.
func (s ProductStatus) IsValid() bool {
	switch s {
	case ProductStatusActive, ProductStatusHidden:
		return true
	default:
		return false
	}
}

// Product is a catalog entry. Price and stock live at this level; variants carry no own stock.
type Product struct {
	ID          string
	Name        string
	Handle      string
	Description *string
	Price       decimal.Decimal
	Stock       int
	Status      ProductStatus
	Images      []string
	Categories  []Category
	Variants    []ProductVariant
	AddOns      []ProductAddOn
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PrimaryImage returns the first image URL, if any.
func (p Product) PrimaryImage() *string {
	if len(p.Images) == 0 {
		return nil
	}
	image := p.Images[0]
	return &image
}

// Category groups products under a free-text type label.
type Category struct {
	ID           string
	Name         string
	Handle       string
	Type         string
	ProductCount int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// VariantOption is a named option group with its ordered allowed values, e.g. Size: S, M, L.
type VariantOption struct {
	Name   string
	Values []string
}

// ProductVariant holds the option groups offered for a product.
type ProductVariant struct {
	ID        string
	ProductID string
	Options   []VariantOption
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProductAddOn is a merchandising edge from a main product to an add-on product.
type ProductAddOn struct {
	MainProductID string
	AddOn         ProductSummary
	CreatedAt     time.Time
}

// ProductSummary is the minimal product projection embedded in orders and add-ons.
type ProductSummary struct {
	ID     string
	Name   string
	Handle string
	Price  decimal.Decimal
	Stock  int
	Status ProductStatus
	Images []string
}

// OrderStatus enumerates valid lifecycle states for orders.
type OrderStatus string

const (
	// OrderStatusConfirmed is the initial status assigned at creation.
	OrderStatusConfirmed OrderStatus = "confirmed"
	// OrderStatusProcessing indicates the order is being prepared.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusShipped indicates the order has been handed to the carrier.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusDelivered indicates the order reached the customer.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled indicates the order was cancelled and its stock returned.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Order captures the order header together with its line items.
type Order struct {
	ID              string
	CustomerName    string
	CustomerEmail   string
	CustomerAddress string
	TotalAmount     decimal.Decimal
	Status          OrderStatus
	PaymentID       *string
	Items           []OrderItem
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// OrderItem is an immutable order line. Price is the product price at order time.
type OrderItem struct {
	ID        string
	OrderID   string
	ProductID string
	Quantity  int
	Price     decimal.Decimal
	Product   *ProductSummary
}

// LineTotal returns price * quantity.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
