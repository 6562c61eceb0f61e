package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"

	"github.com/lylaw27/glaze-store/internal/services"
)

// DefaultPaymentMethodTypes lists the methods offered on storefront payment intents.
var DefaultPaymentMethodTypes = []string{"card", "alipay", "wechat_pay"}

// StripeLogger defines the logging contract for Stripe provider operations.
type StripeLogger func(ctx context.Context, event string, fields map[string]any)

type stripePaymentIntentAPI interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

// StripeProviderConfig configures the StripeProvider.
type StripeProviderConfig struct {
	APIKey             string
	AccountID          string
	PaymentMethodTypes []string
	Backends           *stripe.Backends
	Logger             StripeLogger

	intents stripePaymentIntentAPI
}

// StripeProvider creates PaymentIntents through the Stripe API.
type StripeProvider struct {
	intents     stripePaymentIntentAPI
	account     string
	methodTypes []string
	logger      StripeLogger
}

var _ services.PaymentProvider = (*StripeProvider)(nil)

// NewStripeProvider constructs a StripeProvider using the given configuration.
func NewStripeProvider(cfg StripeProviderConfig) (*StripeProvider, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	intents := cfg.intents
	if intents == nil {
		if apiKey == "" {
			return nil, errors.New("stripe: api key is required")
		}
		intents = client.New(apiKey, cfg.Backends).PaymentIntents
	}

	methodTypes := cfg.PaymentMethodTypes
	if len(methodTypes) == 0 {
		methodTypes = DefaultPaymentMethodTypes
	}
	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &StripeProvider{
		intents:     intents,
		account:     strings.TrimSpace(cfg.AccountID),
		methodTypes: methodTypes,
		logger:      logger,
	}, nil
}

// CreatePaymentIntent creates a PaymentIntent for the request amount and returns its client secret.
func (p *StripeProvider) CreatePaymentIntent(ctx context.Context, req services.PaymentIntentRequest) (services.PaymentIntent, error) {
	if p == nil {
		return services.PaymentIntent{}, errors.New("stripe: provider is nil")
	}
	if req.Amount <= 0 {
		return services.PaymentIntent{}, errors.New("stripe: amount must be positive")
	}

	params := p.intentParams(ctx, req)
	intent, err := p.intents.New(params)
	if err != nil {
		fields := map[string]any{"amount": req.Amount, "currency": req.Currency, "error": err.Error()}
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) {
			fields["stripeCode"] = string(stripeErr.Code)
			fields["requestId"] = stripeErr.RequestID
		}
		p.logger(ctx, "payments.stripe.intent.failed", fields)
		return services.PaymentIntent{}, fmt.Errorf("stripe: create payment intent: %w", err)
	}

	p.logger(ctx, "payments.stripe.intent.created", map[string]any{
		"paymentIntentId": intent.ID,
		"amount":          intent.Amount,
		"currency":        string(intent.Currency),
	})
	return services.PaymentIntent{
		ID:           intent.ID,
		ClientSecret: intent.ClientSecret,
		Amount:       intent.Amount,
		Currency:     string(intent.Currency),
	}, nil
}

func (p *StripeProvider) intentParams(ctx context.Context, req services.PaymentIntentRequest) *stripe.PaymentIntentParams {
	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(req.Amount),
		Currency:           stripe.String(strings.ToLower(req.Currency)),
		PaymentMethodTypes: stripe.StringSlice(p.methodTypes),
	}
	params.Context = ctx
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		params.SetIdempotencyKey(key)
	}
	if p.account != "" {
		params.SetStripeAccount(p.account)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	return params
}
