package services

import (
	"context"
	"errors"
	"testing"

	domain "github.com/lylaw27/glaze-store/internal/domain"
)

type stubPaymentProvider struct {
	createFn func(context.Context, PaymentIntentRequest) (PaymentIntent, error)
	requests []PaymentIntentRequest
}

func (s *stubPaymentProvider) CreatePaymentIntent(ctx context.Context, req PaymentIntentRequest) (PaymentIntent, error) {
	s.requests = append(s.requests, req)
	if s.createFn != nil {
		return s.createFn(ctx, req)
	}
	return PaymentIntent{ID: "pi_1", ClientSecret: "pi_1_secret", Amount: req.Amount, Currency: req.Currency}, nil
}

func newPaymentFixture(t *testing.T, provider PaymentProvider) (*fakeStore, PaymentService) {
	t.Helper()
	store := newFakeStore()
	cart, err := NewCartService(CartServiceDeps{Products: fakeProducts{store}})
	if err != nil {
		t.Fatalf("NewCartService: %v", err)
	}
	svc, err := NewPaymentService(PaymentServiceDeps{Cart: cart, Provider: provider})
	if err != nil {
		t.Fatalf("NewPaymentService: %v", err)
	}
	return store, svc
}

func TestPaymentServiceCreatesIntentInMinorUnits(t *testing.T) {
	provider := &stubPaymentProvider{}
	store, svc := newPaymentFixture(t, provider)
	store.addProduct(domain.Product{ID: "P1", Name: "Mug", Price: money("10.005"), Stock: 5})

	intent, err := svc.CreatePaymentIntent(context.Background(), CreatePaymentIntentCommand{
		Items:          []CartLine{{ProductID: "P1", Quantity: 2}},
		IdempotencyKey: "key-1",
	})
	if err != nil {
		t.Fatalf("CreatePaymentIntent: %v", err)
	}
	if intent.Amount != 2001 || intent.Currency != "hkd" || intent.ClientSecret == "" {
		t.Fatalf("unexpected intent %+v", intent)
	}
	req := provider.requests[0]
	if req.IdempotencyKey != "key-1" || req.Metadata["lineCount"] != "1" {
		t.Fatalf("unexpected request %+v", req)
	}
}

func TestPaymentServiceRejectsInvalidCart(t *testing.T) {
	provider := &stubPaymentProvider{}
	store, svc := newPaymentFixture(t, provider)
	store.addProduct(domain.Product{ID: "P1", Name: "Mug", Price: money("10"), Stock: 1})

	_, err := svc.CreatePaymentIntent(context.Background(), CreatePaymentIntentCommand{Items: []CartLine{{ProductID: "P1", Quantity: 3}}})
	if !errors.Is(err, ErrPaymentInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	details := PublicDetails(err)
	if errs, ok := details["errors"].([]string); !ok || len(errs) != 1 {
		t.Fatalf("expected validation errors in details, got %v", details)
	}
	if _, err := svc.CreatePaymentIntent(context.Background(), CreatePaymentIntentCommand{}); !errors.Is(err, ErrPaymentInvalidInput) {
		t.Fatalf("expected invalid input for empty cart, got %v", err)
	}
	if len(provider.requests) != 0 {
		t.Fatal("provider must not be called for invalid carts")
	}
}

func TestPaymentServiceProviderFailures(t *testing.T) {
	_, unconfigured := newPaymentFixture(t, nil)
	if _, err := unconfigured.CreatePaymentIntent(context.Background(), CreatePaymentIntentCommand{}); !errors.Is(err, ErrPaymentUnavailable) {
		t.Fatalf("expected unavailable without provider, got %v", err)
	}

	provider := &stubPaymentProvider{createFn: func(context.Context, PaymentIntentRequest) (PaymentIntent, error) {
		return PaymentIntent{}, errors.New("card network down")
	}}
	store, svc := newPaymentFixture(t, provider)
	store.addProduct(domain.Product{ID: "P1", Name: "Mug", Price: money("10"), Stock: 1})
	if _, err := svc.CreatePaymentIntent(context.Background(), CreatePaymentIntentCommand{Items: []CartLine{{ProductID: "P1", Quantity: 1}}}); !errors.Is(err, ErrPaymentUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}

func TestToMinorUnits(t *testing.T) {
	cases := map[string]int64{"0": 0, "10": 1000, "12.345": 1235, "0.004": 0, "99.995": 10000}
	for input, want := range cases {
		if got := ToMinorUnits(money(input)); got != want {
			t.Errorf("ToMinorUnits(%s) = %d, want %d", input, got, want)
		}
	}
}
