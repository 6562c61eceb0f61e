package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	defaultPaymentCurrency = "hkd"
	maxMetadataValueLength = 500
)

var minorUnitFactor = decimal.NewFromInt(100)

// PaymentServiceDeps bundles collaborators required by the payment service.
type PaymentServiceDeps struct {
	Cart     CartService
	Provider PaymentProvider
	Currency string
	Logger   EventLogger
}

type paymentService struct {
	cart     CartService
	provider PaymentProvider
	currency string
	logger   EventLogger
}

// NewPaymentService wires dependencies into a PaymentService. A nil provider yields ErrPaymentUnavailable on use.
func NewPaymentService(deps PaymentServiceDeps) (PaymentService, error) {
	if deps.Cart == nil {
		return nil, errors.New("payment service: cart service is required")
	}
	currency := strings.ToLower(strings.TrimSpace(deps.Currency))
	if currency == "" {
		currency = defaultPaymentCurrency
	}
	logger := deps.Logger
	if logger == nil {
		logger = nopLogger
	}
	return &paymentService{cart: deps.Cart, provider: deps.Provider, currency: currency, logger: logger}, nil
}

func (s *paymentService) CreatePaymentIntent(ctx context.Context, cmd CreatePaymentIntentCommand) (PaymentIntent, error) {
	if s.provider == nil {
		return PaymentIntent{}, newError(ErrPaymentUnavailable, "Payments are not configured")
	}
	validation, err := s.cart.Validate(ctx, ValidateCartCommand{Items: cmd.Items})
	if err != nil {
		if errors.Is(err, ErrCartInvalidInput) {
			return PaymentIntent{}, newError(ErrPaymentInvalidInput, "%s", PublicMessage(err, "Invalid cart"))
		}
		return PaymentIntent{}, fmt.Errorf("payment: validate cart: %w", err)
	}
	if !validation.IsValid {
		return PaymentIntent{}, &Error{
			Kind:    ErrPaymentInvalidInput,
			Message: "Cart is not valid",
			Details: map[string]any{"errors": validation.Errors},
		}
	}

	amount := ToMinorUnits(validation.TotalAmount)
	if amount <= 0 {
		return PaymentIntent{}, newError(ErrPaymentInvalidInput, "Cart total must be greater than zero")
	}

	intent, err := s.provider.CreatePaymentIntent(ctx, PaymentIntentRequest{
		Amount:         amount,
		Currency:       s.currency,
		Metadata:       intentMetadata(validation),
		IdempotencyKey: strings.TrimSpace(cmd.IdempotencyKey),
	})
	if err != nil {
		s.logger(ctx, "payment.intent.failed", map[string]any{"amount": amount, "currency": s.currency, "error": err})
		return PaymentIntent{}, &Error{Kind: ErrPaymentUnavailable, Message: "Unable to create payment intent"}
	}
	s.logger(ctx, "payment.intent.created", map[string]any{"paymentIntentId": intent.ID, "amount": amount})
	if intent.Amount == 0 {
		intent.Amount = amount
	}
	if intent.Currency == "" {
		intent.Currency = s.currency
	}
	return intent, nil
}

// ToMinorUnits converts a major-unit amount to minor units, rounding half away from zero.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(minorUnitFactor).Round(0).IntPart()
}

func intentMetadata(validation CartValidation) map[string]string {
	parts := make([]string, 0, len(validation.Items))
	for _, item := range validation.Items {
		parts = append(parts, item.ProductID+"x"+strconv.Itoa(item.Quantity)+"@"+item.Price.StringFixed(2))
	}
	items := strings.Join(parts, ",")
	if len(items) > maxMetadataValueLength {
		items = items[:maxMetadataValueLength]
	}
	return map[string]string{
		"items":       items,
		"lineCount":   strconv.Itoa(len(validation.Items)),
		"totalAmount": validation.TotalAmount.StringFixed(2),
	}
}
