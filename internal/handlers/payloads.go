package handlers

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lylaw27/glaze-store/internal/services"
)

// money renders decimals as JSON numbers with two fraction digits.
func money(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}

type categoryPayload struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Handle       string    `json:"handle"`
	Type         string    `json:"type"`
	ProductCount *int      `json:"productCount,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func buildCategoryPayload(category services.Category, withCount bool) categoryPayload {
	payload := categoryPayload{
		ID:        category.ID,
		Name:      category.Name,
		Handle:    category.Handle,
		Type:      category.Type,
		CreatedAt: category.CreatedAt,
		UpdatedAt: category.UpdatedAt,
	}
	if withCount {
		count := category.ProductCount
		payload.ProductCount = &count
	}
	return payload
}

type variantOptionPayload struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

type variantPayload struct {
	ID        string                 `json:"id"`
	ProductID string                 `json:"productId"`
	Options   []variantOptionPayload `json:"options"`
}

type productSummaryPayload struct {
	ID     string      `json:"id"`
	Name   string      `json:"name"`
	Handle string      `json:"handle,omitempty"`
	Price  json.Number `json:"price,omitempty"`
	Stock  *int        `json:"stock,omitempty"`
	Images []string    `json:"images"`
}

type productPayload struct {
	ID          string                  `json:"id"`
	Name        string                  `json:"name"`
	Handle      string                  `json:"handle"`
	Description *string                 `json:"description"`
	Price       json.Number             `json:"price"`
	Stock       int                     `json:"stock"`
	Status      string                  `json:"status"`
	Images      []string                `json:"images"`
	Categories  []categoryPayload       `json:"categories"`
	Variants    []variantPayload        `json:"variants"`
	AddOns      []productSummaryPayload `json:"addOns"`
	CreatedAt   time.Time               `json:"createdAt"`
	UpdatedAt   time.Time               `json:"updatedAt"`
}

func buildProductPayload(product services.Product) productPayload {
	payload := productPayload{
		ID:          product.ID,
		Name:        product.Name,
		Handle:      product.Handle,
		Description: product.Description,
		Price:       money(product.Price),
		Stock:       product.Stock,
		Status:      string(product.Status),
		Images:      nonNilStrings(product.Images),
		Categories:  make([]categoryPayload, 0, len(product.Categories)),
		Variants:    make([]variantPayload, 0, len(product.Variants)),
		AddOns:      make([]productSummaryPayload, 0, len(product.AddOns)),
		CreatedAt:   product.CreatedAt,
		UpdatedAt:   product.UpdatedAt,
	}
	for _, category := range product.Categories {
		payload.Categories = append(payload.Categories, buildCategoryPayload(category, false))
	}
	for _, variant := range product.Variants {
		options := make([]variantOptionPayload, 0, len(variant.Options))
		for _, option := range variant.Options {
			options = append(options, variantOptionPayload{Name: option.Name, Values: nonNilStrings(option.Values)})
		}
		payload.Variants = append(payload.Variants, variantPayload{ID: variant.ID, ProductID: variant.ProductID, Options: options})
	}
	for _, addOn := range product.AddOns {
		summary := addOn.AddOn
		stock := summary.Stock
		payload.AddOns = append(payload.AddOns, productSummaryPayload{
			ID:     summary.ID,
			Name:   summary.Name,
			Handle: summary.Handle,
			Price:  money(summary.Price),
			Stock:  &stock,
			Images: nonNilStrings(summary.Images),
		})
	}
	return payload
}

func buildProductList(products []services.Product) []productPayload {
	out := make([]productPayload, 0, len(products))
	for _, product := range products {
		out = append(out, buildProductPayload(product))
	}
	return out
}

type orderItemPayload struct {
	ID        string                 `json:"id"`
	OrderID   string                 `json:"orderId"`
	ProductID string                 `json:"productId"`
	Quantity  int                    `json:"quantity"`
	Price     json.Number            `json:"price"`
	Product   *productSummaryPayload `json:"product,omitempty"`
}

type orderPayload struct {
	ID              string             `json:"id"`
	CustomerName    string             `json:"customerName"`
	CustomerEmail   string             `json:"customerEmail"`
	CustomerAddress string             `json:"customerAddress"`
	TotalAmount     json.Number        `json:"totalAmount"`
	Status          string             `json:"status"`
	PaymentID       *string            `json:"paymentId"`
	Items           []orderItemPayload `json:"items"`
	CreatedAt       time.Time          `json:"createdAt"`
	UpdatedAt       time.Time          `json:"updatedAt"`
}

func buildOrderPayload(order services.Order) orderPayload {
	payload := orderPayload{
		ID:              order.ID,
		CustomerName:    order.CustomerName,
		CustomerEmail:   order.CustomerEmail,
		CustomerAddress: order.CustomerAddress,
		TotalAmount:     money(order.TotalAmount),
		Status:          string(order.Status),
		PaymentID:       order.PaymentID,
		Items:           make([]orderItemPayload, 0, len(order.Items)),
		CreatedAt:       order.CreatedAt,
		UpdatedAt:       order.UpdatedAt,
	}
	for _, item := range order.Items {
		line := orderItemPayload{
			ID:        item.ID,
			OrderID:   item.OrderID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     money(item.Price),
		}
		if item.Product != nil {
			line.Product = &productSummaryPayload{
				ID:     item.Product.ID,
				Name:   item.Product.Name,
				Images: nonNilStrings(item.Product.Images),
			}
		}
		payload.Items = append(payload.Items, line)
	}
	return payload
}

type pageResponse[T any] struct {
	Items         []T    `json:"items"`
	NextPageToken string `json:"nextPageToken,omitempty"`
}

type cartLineRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

func toCartLines(lines []cartLineRequest) []services.CartLine {
	out := make([]services.CartLine, 0, len(lines))
	for _, line := range lines {
		out = append(out, services.CartLine{ProductID: line.ProductID, Quantity: line.Quantity})
	}
	return out
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
