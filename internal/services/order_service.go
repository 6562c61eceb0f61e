package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	domain "github.com/lylaw27/glaze-store/internal/domain"
	"github.com/lylaw27/glaze-store/internal/platform/events"
	"github.com/lylaw27/glaze-store/internal/repositories"
)

const (
	orderIDPrefix     = "ord_"
	orderItemIDPrefix = "itm_"

	instrumentationName = "github.com/lylaw27/glaze-store/internal/services"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

var orderStateTransitions = map[domain.OrderStatus][]domain.OrderStatus{
	domain.OrderStatusConfirmed:  {domain.OrderStatusProcessing, domain.OrderStatusCancelled},
	domain.OrderStatusProcessing: {domain.OrderStatusShipped, domain.OrderStatusCancelled},
	domain.OrderStatusShipped:    {domain.OrderStatusDelivered, domain.OrderStatusCancelled},
}

// OrderEventPublisher publishes order lifecycle events for downstream consumers.
type OrderEventPublisher interface {
	Publish(ctx context.Context, event events.OrderEvent) error
}

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders      repositories.OrderRepository
	Products    repositories.ProductRepository
	Inventory   repositories.InventoryRepository
	UnitOfWork  repositories.UnitOfWork
	Clock       func() time.Time
	IDGenerator func() string
	Events      OrderEventPublisher
	Meter       metric.Meter
	Logger      EventLogger
}

type orderService struct {
	orders     repositories.OrderRepository
	products   repositories.ProductRepository
	inventory  repositories.InventoryRepository
	unitOfWork repositories.UnitOfWork
	clock      func() time.Time
	newID      func() string
	events     OrderEventPublisher
	logger     EventLogger

	created        metric.Int64Counter
	stockConflicts metric.Int64Counter
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("order service: product repository is required")
	}
	if deps.Inventory == nil {
		return nil, errors.New("order service: inventory repository is required")
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = defaultIDGenerator
	}
	logger := deps.Logger
	if logger == nil {
		logger = nopLogger
	}
	meter := deps.Meter
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(instrumentationName)
	}
	created, err := meter.Int64Counter("orders.created",
		metric.WithDescription("Orders committed with their stock decrements"))
	if err != nil {
		return nil, fmt.Errorf("order service: create counter: %w", err)
	}
	stockConflicts, err := meter.Int64Counter("orders.stock_conflicts",
		metric.WithDescription("Order attempts rejected because stock ran out"))
	if err != nil {
		return nil, fmt.Errorf("order service: create counter: %w", err)
	}

	return &orderService{
		orders:     deps.Orders,
		products:   deps.Products,
		inventory:  deps.Inventory,
		unitOfWork: unit,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:          idGen,
		events:         deps.Events,
		logger:         logger,
		created:        created,
		stockConflicts: stockConflicts,
	}, nil
}

func (s *orderService) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (Order, error) {
	name := strings.TrimSpace(cmd.CustomerName)
	email := strings.TrimSpace(cmd.CustomerEmail)
	address := strings.TrimSpace(cmd.CustomerAddress)
	if name == "" || email == "" || address == "" || len(cmd.Items) == 0 {
		return Order{}, newError(ErrOrderInvalidInput, "Missing required fields")
	}
	if !emailPattern.MatchString(email) {
		return Order{}, newError(ErrOrderInvalidInput, "Invalid email format")
	}
	for _, line := range cmd.Items {
		if strings.TrimSpace(line.ProductID) == "" || line.Quantity < 1 {
			return Order{}, newError(ErrOrderInvalidInput, "Invalid quantity for: %s", strings.TrimSpace(line.ProductID))
		}
	}
	lines, oversized := mergeLines(cmd.Items)
	if oversized != "" {
		return Order{}, newError(ErrOrderInvalidInput, "Invalid quantity for: %s", oversized)
	}

	snapshot, err := s.products.FindByIDs(ctx, uniqueProductIDs(lines))
	if err != nil {
		return Order{}, fmt.Errorf("order: load products: %w", err)
	}
	byID := make(map[string]domain.Product, len(snapshot))
	for _, product := range snapshot {
		byID[product.ID] = product
	}

	now := s.clock()
	order := Order{
		ID:              prefixedID(orderIDPrefix, s.newID),
		CustomerName:    name,
		CustomerEmail:   email,
		CustomerAddress: address,
		Status:          domain.OrderStatusConfirmed,
		PaymentID:       trimmedPtr(cmd.PaymentID),
		TotalAmount:     decimal.Zero,
		Items:           make([]OrderItem, 0, len(lines)),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	for _, line := range lines {
		product, ok := byID[line.ProductID]
		if !ok || product.Status != domain.ProductStatusActive {
			return Order{}, newError(ErrOrderInvalidInput, "Product not found: %s", line.ProductID)
		}
		if product.Stock < line.Quantity {
			s.stockConflicts.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", "precheck")))
			return Order{}, newError(ErrOrderInsufficientStock, "Insufficient stock for: %s", product.Name)
		}
		item := OrderItem{
			ID:        prefixedID(orderItemIDPrefix, s.newID),
			OrderID:   order.ID,
			ProductID: product.ID,
			Quantity:  line.Quantity,
			Price:     product.Price,
			Product:   summarize(product),
		}
		item.Product.Stock -= line.Quantity
		order.Items = append(order.Items, item)
		order.TotalAmount = order.TotalAmount.Add(item.LineTotal())
	}

	err = s.runInTx(ctx, func(txCtx context.Context) error {
		if err := s.orders.Insert(txCtx, order); err != nil {
			return err
		}
		// Decrement in product id order so concurrent orders lock rows in the same sequence.
		for _, item := range sortedByProduct(order.Items) {
			if err := s.inventory.Decrement(txCtx, repositories.InventoryAdjustment{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				Now:       now,
			}); err != nil {
				if _, short := repositories.IsInsufficientStock(err); short {
					return newError(ErrOrderInsufficientStock, "Insufficient stock for: %s", item.Product.Name)
				}
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrOrderInsufficientStock) {
			s.stockConflicts.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", "decrement")))
			s.logger(ctx, "order.create.rejected", map[string]any{"orderId": order.ID, "reason": PublicMessage(err, "")})
			return Order{}, err
		}
		var svcErr *Error
		if errors.As(err, &svcErr) {
			return Order{}, err
		}
		s.logger(ctx, "order.create.failed", map[string]any{"orderId": order.ID, "error": err})
		return Order{}, fmt.Errorf("order: create: %w", err)
	}

	s.created.Add(ctx, 1)
	s.logger(ctx, "order.created", map[string]any{
		"orderId":     order.ID,
		"items":       len(order.Items),
		"totalAmount": order.TotalAmount.StringFixed(2),
	})
	s.publish(ctx, events.OrderEvent{
		Type:        events.TypeOrderCreated,
		OrderID:     order.ID,
		Status:      string(order.Status),
		TotalAmount: order.TotalAmount,
		ItemCount:   len(order.Items),
		OccurredAt:  now,
	})
	return order, nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID string) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, newError(ErrOrderNotFound, "Order not found")
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepoError(err, "get")
	}
	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error) {
	for _, status := range filter.Status {
		if !isKnownOrderStatus(status) {
			return domain.CursorPage[Order]{}, newError(ErrOrderInvalidInput, "Invalid status: %s", status)
		}
	}
	page, err := s.orders.List(ctx, repositories.OrderListFilter{Status: filter.Status, Pagination: filter.Pagination})
	if err != nil {
		return domain.CursorPage[Order]{}, s.mapRepoError(err, "list")
	}
	return page, nil
}

func (s *orderService) UpdateStatus(ctx context.Context, cmd UpdateOrderStatusCommand) (Order, error) {
	next := domain.OrderStatus(strings.ToLower(strings.TrimSpace(string(cmd.Status))))
	if !isKnownOrderStatus(next) {
		return Order{}, newError(ErrOrderInvalidInput, "Invalid status: %s", cmd.Status)
	}

	var (
		order    Order
		previous domain.OrderStatus
		changed  bool
	)
	now := s.clock()
	err := s.runInTx(ctx, func(txCtx context.Context) error {
		current, err := s.orders.FindByID(txCtx, strings.TrimSpace(cmd.OrderID))
		if err != nil {
			return err
		}
		order = current
		previous = current.Status
		if current.Status == next {
			return nil
		}
		if !slices.Contains(orderStateTransitions[current.Status], next) {
			return newError(ErrOrderInvalidState, "Cannot change order status from %s to %s", current.Status, next)
		}
		if err := s.orders.UpdateStatus(txCtx, repositories.OrderStatusUpdate{
			OrderID:  current.ID,
			Expected: current.Status,
			Next:     next,
			Now:      now,
		}); err != nil {
			return err
		}
		if next == domain.OrderStatusCancelled {
			for _, item := range sortedByProduct(current.Items) {
				if err := s.inventory.Restock(txCtx, repositories.InventoryAdjustment{
					ProductID: item.ProductID,
					Quantity:  item.Quantity,
					Now:       now,
				}); err != nil {
					return err
				}
			}
		}
		order.Status = next
		order.UpdatedAt = now
		changed = true
		return nil
	})
	if err != nil {
		var svcErr *Error
		if errors.As(err, &svcErr) {
			return Order{}, err
		}
		return Order{}, s.mapRepoError(err, "update status")
	}
	if !changed {
		return order, nil
	}

	s.logger(ctx, "order.status.changed", map[string]any{
		"orderId": order.ID,
		"from":    string(previous),
		"to":      string(next),
	})
	s.publish(ctx, events.OrderEvent{
		Type:           events.TypeOrderStatusChanged,
		OrderID:        order.ID,
		Status:         string(next),
		PreviousStatus: string(previous),
		TotalAmount:    order.TotalAmount,
		ItemCount:      len(order.Items),
		OccurredAt:     now,
	})
	return order, nil
}

func (s *orderService) mapRepoError(err error, action string) error {
	switch {
	case isRepoNotFound(err):
		return &Error{Kind: ErrOrderNotFound, Message: "Order not found"}
	case isRepoConflict(err):
		return &Error{Kind: ErrOrderInvalidState, Message: "Order was modified concurrently"}
	case errors.Is(err, errInvalidPageToken):
		return &Error{Kind: ErrOrderInvalidInput, Message: "Invalid page token"}
	default:
		return fmt.Errorf("order: %s: %w", action, err)
	}
}

func (s *orderService) runInTx(ctx context.Context, fn func(context.Context) error) error {
	return s.unitOfWork.RunInTx(ctx, fn)
}

func (s *orderService) publish(ctx context.Context, event events.OrderEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger(ctx, "order.event.publish.failed", map[string]any{
			"orderId": event.OrderID,
			"type":    event.Type,
			"error":   err,
		})
	}
}

func isKnownOrderStatus(status domain.OrderStatus) bool {
	switch status {
	case domain.OrderStatusConfirmed, domain.OrderStatusProcessing, domain.OrderStatusShipped,
		domain.OrderStatusDelivered, domain.OrderStatusCancelled:
		return true
	default:
		return false
	}
}

func sortedByProduct(items []OrderItem) []OrderItem {
	sorted := slices.Clone(items)
	slices.SortFunc(sorted, func(a, b OrderItem) int {
		return strings.Compare(a.ProductID, b.ProductID)
	})
	return sorted
}

func summarize(product Product) *ProductSummary {
	return &ProductSummary{
		ID:     product.ID,
		Name:   product.Name,
		Handle: product.Handle,
		Price:  product.Price,
		Stock:  product.Stock,
		Status: product.Status,
		Images: product.Images,
	}
}

func trimmedPtr(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
