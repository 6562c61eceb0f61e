package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	domain "github.com/lylaw27/glaze-store/internal/domain"
	"github.com/lylaw27/glaze-store/internal/repositories"
)

// CartServiceDeps bundles collaborators required by the cart service.
type CartServiceDeps struct {
	Products repositories.ProductRepository
	Logger   EventLogger
}

type cartService struct {
	products repositories.ProductRepository
	logger   EventLogger
}

// NewCartService wires dependencies into a CartService.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Products == nil {
		return nil, errors.New("cart service: product repository is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = nopLogger
	}
	return &cartService{products: deps.Products, logger: logger}, nil
}

func (s *cartService) Validate(ctx context.Context, cmd ValidateCartCommand) (CartValidation, error) {
	if len(cmd.Items) == 0 {
		return CartValidation{}, newError(ErrCartInvalidInput, "Cart items are required")
	}
	for _, line := range cmd.Items {
		if strings.TrimSpace(line.ProductID) == "" || line.Quantity < 1 || line.Quantity > MaxLineQuantity {
			return CartValidation{}, newError(ErrCartInvalidInput, "Invalid cart item: %s", strings.TrimSpace(line.ProductID))
		}
	}

	products, err := s.activeProducts(ctx, uniqueProductIDs(cmd.Items))
	if err != nil {
		return CartValidation{}, fmt.Errorf("cart: load products: %w", err)
	}

	result := CartValidation{Items: []ValidatedCartItem{}, TotalAmount: decimal.Zero}
	for _, line := range cmd.Items {
		id := strings.TrimSpace(line.ProductID)
		product, ok := products[id]
		if !ok {
			result.Errors = append(result.Errors, fmt.Sprintf("product not available: %s", id))
			continue
		}
		if line.Quantity > product.Stock {
			result.Errors = append(result.Errors, fmt.Sprintf("insufficient stock for %s. Available: %d", product.Name, product.Stock))
			continue
		}
		itemTotal := product.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
		result.Items = append(result.Items, ValidatedCartItem{
			ProductID:      product.ID,
			Name:           product.Name,
			Price:          product.Price,
			Quantity:       line.Quantity,
			Image:          product.PrimaryImage(),
			ItemTotal:      itemTotal,
			AvailableStock: product.Stock,
		})
		result.TotalAmount = result.TotalAmount.Add(itemTotal)
	}
	result.IsValid = len(result.Errors) == 0
	if !result.IsValid {
		s.logger(ctx, "cart.validation.rejected", map[string]any{
			"lines":    len(cmd.Items),
			"failures": len(result.Errors),
		})
	}
	return result, nil
}

// activeProducts bulk-loads ids and drops hidden products, which the storefront treats as missing.
func (s *cartService) activeProducts(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	found, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	products := make(map[string]domain.Product, len(found))
	for _, product := range found {
		if product.Status == domain.ProductStatusActive {
			products[product.ID] = product
		}
	}
	return products, nil
}
