package services

import (
	"context"
	"errors"
	"reflect"
	"testing"

	domain "github.com/lylaw27/glaze-store/internal/domain"
)

func newCartFixture(t *testing.T) (*fakeStore, CartService) {
	t.Helper()
	store := newFakeStore()
	svc, err := NewCartService(CartServiceDeps{Products: fakeProducts{store}})
	if err != nil {
		t.Fatalf("NewCartService: %v", err)
	}
	return store, svc
}

func TestCartServiceValidateHappyPath(t *testing.T) {
	store, svc := newCartFixture(t)
	store.addProduct(domain.Product{ID: "P1", Name: "Mug", Price: money("10.00"), Stock: 5, Images: []string{"a.jpg", "b.jpg"}})

	result, err := svc.Validate(context.Background(), ValidateCartCommand{Items: []CartLine{{ProductID: "P1", Quantity: 2}}})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !result.IsValid || result.Errors != nil {
		t.Fatalf("expected valid cart, got %+v", result)
	}
	if len(result.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(result.Items))
	}
	item := result.Items[0]
	if !item.Price.Equal(money("10")) || !item.ItemTotal.Equal(money("20")) || item.AvailableStock != 5 {
		t.Fatalf("unexpected item %+v", item)
	}
	if item.Image == nil || *item.Image != "a.jpg" {
		t.Fatalf("expected first image, got %v", item.Image)
	}
	if !result.TotalAmount.Equal(money("20.00")) {
		t.Fatalf("expected total 20, got %s", result.TotalAmount)
	}
	if store.stock("P1") != 5 {
		t.Fatal("validation must not mutate stock")
	}
}

func TestCartServiceValidateCollectsLineFailures(t *testing.T) {
	store, svc := newCartFixture(t)
	store.addProduct(domain.Product{ID: "P1", Name: "Mug", Price: money("10"), Stock: 1})
	store.addProduct(domain.Product{ID: "P2", Name: "Bowl", Price: money("15.50"), Stock: 4})
	store.addProduct(domain.Product{ID: "P3", Name: "Secret", Price: money("1"), Stock: 9, Status: domain.ProductStatusHidden})

	result, err := svc.Validate(context.Background(), ValidateCartCommand{Items: []CartLine{
		{ProductID: "P1", Quantity: 2},
		{ProductID: "P2", Quantity: 2},
		{ProductID: "P3", Quantity: 1},
		{ProductID: "missing", Quantity: 1},
	}})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if result.IsValid {
		t.Fatal("expected invalid cart")
	}
	wantErrors := []string{
		"insufficient stock for Mug. Available: 1",
		"product not available: P3",
		"product not available: missing",
	}
	if !reflect.DeepEqual(result.Errors, wantErrors) {
		t.Fatalf("unexpected errors %q", result.Errors)
	}
	if len(result.Items) != 1 || result.Items[0].ProductID != "P2" {
		t.Fatalf("expected only P2 to pass, got %+v", result.Items)
	}
	if !result.TotalAmount.Equal(money("31")) {
		t.Fatalf("expected total 31, got %s", result.TotalAmount)
	}
}

func TestCartServiceValidateIsRepeatable(t *testing.T) {
	store, svc := newCartFixture(t)
	store.addProduct(domain.Product{ID: "P1", Name: "Mug", Price: money("10"), Stock: 3})
	cmd := ValidateCartCommand{Items: []CartLine{{ProductID: "P1", Quantity: 1}, {ProductID: "gone", Quantity: 1}}}

	first, err := svc.Validate(context.Background(), cmd)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	second, err := svc.Validate(context.Background(), cmd)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical results:\n%+v\n%+v", first, second)
	}
}

func TestCartServiceValidateRejectsMalformedCart(t *testing.T) {
	_, svc := newCartFixture(t)
	cases := []ValidateCartCommand{
		{},
		{Items: []CartLine{{ProductID: "", Quantity: 1}}},
		{Items: []CartLine{{ProductID: "P1", Quantity: 0}}},
		{Items: []CartLine{{ProductID: "P1", Quantity: MaxLineQuantity + 1}}},
	}
	for _, cmd := range cases {
		if _, err := svc.Validate(context.Background(), cmd); !errors.Is(err, ErrCartInvalidInput) {
			t.Fatalf("expected ErrCartInvalidInput for %+v, got %v", cmd, err)
		}
	}
}
