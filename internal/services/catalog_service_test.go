package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	domain "github.com/lylaw27/glaze-store/internal/domain"
	"github.com/lylaw27/glaze-store/internal/platform/storage"
	"github.com/lylaw27/glaze-store/internal/repositories"
)

type catalogFixture struct {
	store  *fakeStore
	images *stubImageStore
	svc    CatalogService
}

func newCatalogFixture(t *testing.T) catalogFixture {
	t.Helper()
	store := newFakeStore()
	images := &stubImageStore{}
	svc, err := NewCatalogService(CatalogServiceDeps{
		Products:      fakeProducts{store},
		Categories:    fakeCategories{store},
		UnitOfWork:    store,
		Images:        images,
		MaxImageBytes: 16,
		Clock:         fixedClock,
		IDGenerator:   sequentialIDs(),
	})
	if err != nil {
		t.Fatalf("NewCatalogService: %v", err)
	}
	return catalogFixture{store: store, images: images, svc: svc}
}

func TestCatalogServiceListProductsDefaults(t *testing.T) {
	fx := newCatalogFixture(t)
	fx.store.addProduct(domain.Product{ID: "P1", Name: "Mug", Price: money("10"), Stock: 2})
	fx.store.addProduct(domain.Product{ID: "P2", Name: "Empty Mug", Price: money("10"), Stock: 0})
	fx.store.addProduct(domain.Product{ID: "P3", Name: "Hidden Mug", Price: money("10"), Stock: 2, Status: domain.ProductStatusHidden})

	products, err := fx.svc.ListProducts(context.Background(), ProductQuery{})
	if err != nil {
		t.Fatalf("ListProducts: %v", err)
	}
	if len(products) != 1 || products[0].ID != "P1" {
		t.Fatalf("expected only active in-stock product, got %+v", products)
	}

	inStock := false
	products, err = fx.svc.ListProducts(context.Background(), ProductQuery{InStock: &inStock})
	if err != nil || len(products) != 2 {
		t.Fatalf("expected 2 active products with inStock=false, got %d (%v)", len(products), err)
	}
}

func TestCatalogServiceListProductsRejectsInvertedRange(t *testing.T) {
	fx := newCatalogFixture(t)
	lo, hi := decimal.NewFromInt(50), decimal.NewFromInt(10)
	if _, err := fx.svc.ListProducts(context.Background(), ProductQuery{MinPrice: &lo, MaxPrice: &hi}); !errors.Is(err, ErrCatalogInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestCatalogServiceGetProductByIDOrHandle(t *testing.T) {
	fx := newCatalogFixture(t)
	fx.store.addProduct(domain.Product{ID: "prd_1", Name: "Mug", Handle: "blue-mug", Price: money("10"), Stock: 1})
	fx.store.addProduct(domain.Product{ID: "prd_2", Name: "Hidden", Handle: "hidden", Price: money("10"), Stock: 1, Status: domain.ProductStatusHidden})

	for _, key := range []string{"prd_1", "blue-mug"} {
		product, err := fx.svc.GetProduct(context.Background(), key)
		if err != nil || product.ID != "prd_1" {
			t.Fatalf("GetProduct(%q) = %+v, %v", key, product, err)
		}
	}
	for _, key := range []string{"prd_2", "hidden", "nope"} {
		if _, err := fx.svc.GetProduct(context.Background(), key); !errors.Is(err, ErrCatalogNotFound) {
			t.Fatalf("GetProduct(%q) expected not found, got %v", key, err)
		}
	}
}

func TestCatalogServiceCreateProduct(t *testing.T) {
	fx := newCatalogFixture(t)
	fx.store.addCategory(domain.Category{ID: "cat_1", Name: "Mugs", Handle: "mugs", Type: "shape"})
	fx.store.addProduct(domain.Product{ID: "prd_saucer", Name: "Saucer", Price: money("3"), Stock: 1})
	description := `<p>Hand thrown</p><script>alert(1)</script>`

	product, err := fx.svc.CreateProduct(context.Background(), UpsertProductCommand{
		Name:           "Blue Café Mug",
		Description:    &description,
		Price:          money("12.5"),
		Stock:          4,
		Images:         []string{" https://cdn.example.com/a.jpg ", "https://cdn.example.com/a.jpg"},
		CategoryIDs:    []string{"cat_1"},
		AddOnIDs:       []string{"prd_saucer"},
		VariantOptions: []VariantOption{{Name: "Size", Values: []string{"S", "M", "M"}}, {Name: " "}},
	})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	if product.Handle != "blue-cafe-mug" || product.Status != domain.ProductStatusActive {
		t.Fatalf("unexpected product %+v", product)
	}
	if product.Description == nil || *product.Description != "<p>Hand thrown</p>" {
		t.Fatalf("expected sanitized description, got %v", product.Description)
	}
	if len(product.Images) != 1 || len(product.Categories) != 1 || len(product.AddOns) != 1 {
		t.Fatalf("unexpected relations %+v", product)
	}
	if len(product.Variants) != 1 || len(product.Variants[0].Options) != 1 || len(product.Variants[0].Options[0].Values) != 2 {
		t.Fatalf("unexpected variants %+v", product.Variants)
	}
	if !strings.HasPrefix(product.ID, "prd_") || !strings.HasPrefix(product.Variants[0].ID, "var_") {
		t.Fatalf("unexpected ids %s %s", product.ID, product.Variants[0].ID)
	}
}

func TestCatalogServiceCreateProductValidation(t *testing.T) {
	fx := newCatalogFixture(t)
	fx.store.addProduct(domain.Product{ID: "prd_1", Name: "Mug", Handle: "mug", Price: money("1"), Stock: 1})

	cases := []struct {
		name string
		cmd  UpsertProductCommand
		kind error
	}{
		{"missing name", UpsertProductCommand{Price: money("1")}, ErrCatalogInvalidInput},
		{"negative price", UpsertProductCommand{Name: "A", Price: money("-1")}, ErrCatalogInvalidInput},
		{"negative stock", UpsertProductCommand{Name: "A", Stock: -1}, ErrCatalogInvalidInput},
		{"bad status", UpsertProductCommand{Name: "A", Status: "archived"}, ErrCatalogInvalidInput},
		{"unknown category", UpsertProductCommand{Name: "A", CategoryIDs: []string{"cat_x"}}, ErrCatalogInvalidInput},
		{"unknown add-on", UpsertProductCommand{Name: "A", AddOnIDs: []string{"prd_x"}}, ErrCatalogInvalidInput},
		{"duplicate handle", UpsertProductCommand{Name: "Mug"}, ErrCatalogConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := fx.svc.CreateProduct(context.Background(), tc.cmd); !errors.Is(err, tc.kind) {
				t.Fatalf("expected %v, got %v", tc.kind, err)
			}
		})
	}
}

func TestCatalogServiceUpdateProductDeletesRemovedImages(t *testing.T) {
	fx := newCatalogFixture(t)
	fx.store.addProduct(domain.Product{ID: "prd_1", Name: "Mug", Handle: "mug", Price: money("1"), Stock: 1,
		Images: []string{"https://cdn.example.com/a.jpg", "https://cdn.example.com/b.jpg"}})

	product, err := fx.svc.UpdateProduct(context.Background(), UpsertProductCommand{
		ProductID: "prd_1",
		Name:      "Mug",
		Handle:    "mug",
		Price:     money("2"),
		Stock:     3,
		Status:    domain.ProductStatusHidden,
		Images:    []string{"https://cdn.example.com/b.jpg"},
	})
	if err != nil {
		t.Fatalf("UpdateProduct: %v", err)
	}
	if product.Status != domain.ProductStatusHidden || product.Stock != 3 || !product.CreatedAt.Equal(fixedNow) {
		t.Fatalf("unexpected product %+v", product)
	}
	if len(fx.images.deleted) != 1 || fx.images.deleted[0] != "https://cdn.example.com/a.jpg" {
		t.Fatalf("expected removed image deleted, got %v", fx.images.deleted)
	}

	if _, err := fx.svc.UpdateProduct(context.Background(), UpsertProductCommand{ProductID: "prd_1", Name: "Mug", AddOnIDs: []string{"prd_1"}}); !errors.Is(err, ErrCatalogInvalidInput) {
		t.Fatalf("expected self add-on rejection, got %v", err)
	}
	if _, err := fx.svc.UpdateProduct(context.Background(), UpsertProductCommand{ProductID: "prd_x", Name: "X"}); !errors.Is(err, ErrCatalogNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCatalogServiceDeleteProduct(t *testing.T) {
	fx := newCatalogFixture(t)
	fx.store.addProduct(domain.Product{ID: "prd_1", Name: "Mug", Price: money("1"), Stock: 1, Images: []string{"https://cdn.example.com/a.jpg"}})
	fx.store.addProduct(domain.Product{ID: "prd_2", Name: "Bowl", Price: money("1"), Stock: 1})
	fx.store.orders["ord_1"] = domain.Order{ID: "ord_1", Items: []domain.OrderItem{{ProductID: "prd_2", Quantity: 1}}}

	if err := fx.svc.DeleteProduct(context.Background(), "prd_2"); !errors.Is(err, ErrCatalogConflict) || PublicMessage(err, "") != "Product has existing orders" {
		t.Fatalf("expected conflict, got %v", err)
	}
	if err := fx.svc.DeleteProduct(context.Background(), "prd_1"); err != nil {
		t.Fatalf("DeleteProduct: %v", err)
	}
	if len(fx.images.deleted) != 1 {
		t.Fatalf("expected image cleanup, got %v", fx.images.deleted)
	}
	if err := fx.svc.DeleteProduct(context.Background(), "prd_1"); !errors.Is(err, ErrCatalogNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCatalogServiceAddAndRemoveImage(t *testing.T) {
	fx := newCatalogFixture(t)
	fx.store.addProduct(domain.Product{ID: "prd_1", Name: "Mug", Handle: "mug", Price: money("1"), Stock: 1})

	product, err := fx.svc.AddProductImage(context.Background(), AddProductImageCommand{
		ProductID: "prd_1", ContentType: "image/png", Size: 4, Body: strings.NewReader("data"),
	})
	if err != nil {
		t.Fatalf("AddProductImage: %v", err)
	}
	if len(product.Images) != 1 || !strings.HasPrefix(product.Images[0], "https://cdn.example.com/products/mug/") {
		t.Fatalf("unexpected images %v", product.Images)
	}

	product, err = fx.svc.RemoveProductImage(context.Background(), "prd_1", product.Images[0])
	if err != nil || len(product.Images) != 0 {
		t.Fatalf("RemoveProductImage: %v %v", product.Images, err)
	}
	if _, err := fx.svc.RemoveProductImage(context.Background(), "prd_1", "https://cdn.example.com/none.png"); !errors.Is(err, ErrCatalogNotFound) {
		t.Fatalf("expected image not found, got %v", err)
	}
}

func TestCatalogServiceAddImageRejections(t *testing.T) {
	fx := newCatalogFixture(t)
	fx.store.addProduct(domain.Product{ID: "prd_1", Name: "Mug", Handle: "mug", Price: money("1"), Stock: 1})
	ctx := context.Background()

	if _, err := fx.svc.AddProductImage(ctx, AddProductImageCommand{ProductID: "prd_1", ContentType: "application/pdf", Body: strings.NewReader("x")}); !errors.Is(err, ErrCatalogInvalidInput) {
		t.Fatalf("expected invalid type, got %v", err)
	}
	if _, err := fx.svc.AddProductImage(ctx, AddProductImageCommand{ProductID: "prd_1", ContentType: "image/png", Size: 17, Body: strings.NewReader("x")}); !errors.Is(err, ErrCatalogUploadTooLarge) {
		t.Fatalf("expected too large by declared size, got %v", err)
	}
	if _, err := fx.svc.AddProductImage(ctx, AddProductImageCommand{ProductID: "prd_1", ContentType: "image/png", Body: strings.NewReader(strings.Repeat("x", 32))}); !errors.Is(err, ErrCatalogUploadTooLarge) {
		t.Fatalf("expected too large while streaming, got %v", err)
	}

	fx.images.uploadFn = func(context.Context, string, string, io.Reader) (string, error) { return "", storage.ErrDisabled }
	if _, err := fx.svc.AddProductImage(ctx, AddProductImageCommand{ProductID: "prd_1", ContentType: "image/png", Body: strings.NewReader("x")}); !errors.Is(err, ErrCatalogStorageDisabled) {
		t.Fatalf("expected storage disabled, got %v", err)
	}
}

// orderingProducts commits an order decrement after every product read, as a concurrent checkout would.
type orderingProducts struct {
	fakeProducts
	quantity int
	ordered  *int
}

func (p orderingProducts) FindByID(ctx context.Context, id string) (domain.Product, error) {
	product, err := p.fakeProducts.FindByID(ctx, id)
	if err != nil {
		return product, err
	}
	if err := (fakeInventory{p.fakeStore}).Decrement(ctx, repositories.InventoryAdjustment{ProductID: id, Quantity: p.quantity, Now: fixedNow}); err != nil {
		return domain.Product{}, err
	}
	*p.ordered += p.quantity
	return product, nil
}

func TestCatalogServiceImageEditsKeepConcurrentStockDecrements(t *testing.T) {
	store := newFakeStore()
	store.addProduct(domain.Product{ID: "prd_1", Name: "Mug", Handle: "mug", Price: money("1"), Stock: 100})
	var ordered int
	svc, err := NewCatalogService(CatalogServiceDeps{
		Products:      orderingProducts{fakeProducts: fakeProducts{store}, quantity: 3, ordered: &ordered},
		Categories:    fakeCategories{store},
		UnitOfWork:    store,
		Images:        &stubImageStore{},
		MaxImageBytes: 16,
		Clock:         fixedClock,
		IDGenerator:   sequentialIDs(),
	})
	if err != nil {
		t.Fatalf("NewCatalogService: %v", err)
	}
	ctx := context.Background()

	product, err := svc.AddProductImage(ctx, AddProductImageCommand{
		ProductID: "prd_1", ContentType: "image/png", Size: 4, Body: strings.NewReader("data"),
	})
	if err != nil {
		t.Fatalf("AddProductImage: %v", err)
	}
	if got := store.stock("prd_1"); got != 100-ordered {
		t.Fatalf("stock after image attach: %d (want %d)", got, 100-ordered)
	}

	if _, err := svc.RemoveProductImage(ctx, "prd_1", product.Images[0]); err != nil {
		t.Fatalf("RemoveProductImage: %v", err)
	}
	if got := store.stock("prd_1"); got != 100-ordered {
		t.Fatalf("stock after image removal: %d (want %d)", got, 100-ordered)
	}
	if images := store.products["prd_1"].Images; len(images) != 0 {
		t.Fatalf("expected image removed, got %v", images)
	}
}

func TestCatalogServiceStorefrontHidesHiddenAddOns(t *testing.T) {
	fx := newCatalogFixture(t)
	fx.store.addProduct(domain.Product{ID: "prd_main", Name: "Teapot", Handle: "teapot", Price: money("30"), Stock: 3})
	fx.store.addProduct(domain.Product{ID: "prd_cup", Name: "Cup", Handle: "cup", Price: money("5"), Stock: 3})
	fx.store.addProduct(domain.Product{ID: "prd_lid", Name: "Spare Lid", Handle: "lid", Price: money("4"), Stock: 3, Status: domain.ProductStatusHidden})
	fx.store.addOns["prd_main"] = []string{"prd_cup", "prd_lid"}
	ctx := context.Background()

	product, err := fx.svc.GetProduct(ctx, "teapot")
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	if len(product.AddOns) != 1 || product.AddOns[0].AddOn.ID != "prd_cup" {
		t.Fatalf("expected only the active add-on, got %+v", product.AddOns)
	}

	products, err := fx.svc.ListProducts(ctx, ProductQuery{Search: "teapot"})
	if err != nil || len(products) != 1 {
		t.Fatalf("ListProducts: %d %v", len(products), err)
	}
	if len(products[0].AddOns) != 1 {
		t.Fatalf("expected hidden add-on filtered from listing, got %+v", products[0].AddOns)
	}

	admin, err := fx.svc.GetAdminProduct(ctx, "prd_main")
	if err != nil || len(admin.AddOns) != 2 {
		t.Fatalf("expected admin read to keep both add-ons, got %+v (%v)", admin.AddOns, err)
	}
}
