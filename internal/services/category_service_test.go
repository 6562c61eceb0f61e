package services

import (
	"context"
	"errors"
	"testing"

	domain "github.com/lylaw27/glaze-store/internal/domain"
)

func newCategoryFixture(t *testing.T) (*fakeStore, CategoryService) {
	t.Helper()
	store := newFakeStore()
	svc, err := NewCategoryService(CategoryServiceDeps{
		Categories:  fakeCategories{store},
		UnitOfWork:  store,
		Clock:       fixedClock,
		IDGenerator: sequentialIDs(),
	})
	if err != nil {
		t.Fatalf("NewCategoryService: %v", err)
	}
	return store, svc
}

func TestCategoryServiceCreate(t *testing.T) {
	_, svc := newCategoryFixture(t)
	ctx := context.Background()

	category, err := svc.CreateCategory(ctx, UpsertCategoryCommand{Name: " Tea Cups ", Type: "shape"})
	if err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}
	if category.Handle != "tea-cups" || category.Name != "Tea Cups" || category.ID[:4] != "cat_" {
		t.Fatalf("unexpected category %+v", category)
	}

	if _, err := svc.CreateCategory(ctx, UpsertCategoryCommand{Name: "Tea Cups", Type: "shape"}); !errors.Is(err, ErrCatalogConflict) ||
		PublicMessage(err, "") != "A category with this name already exists" {
		t.Fatalf("expected duplicate conflict, got %v", err)
	}
	if _, err := svc.CreateCategory(ctx, UpsertCategoryCommand{Name: "Bowls"}); !errors.Is(err, ErrCatalogInvalidInput) ||
		PublicMessage(err, "") != "Name and type are required" {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCategoryServiceUpdate(t *testing.T) {
	store, svc := newCategoryFixture(t)
	store.addCategory(domain.Category{ID: "cat_1", Name: "Mugs", Handle: "mugs", Type: "shape", CreatedAt: fixedNow})
	store.addCategory(domain.Category{ID: "cat_2", Name: "Bowls", Handle: "bowls", Type: "shape"})
	ctx := context.Background()

	updated, err := svc.UpdateCategory(ctx, UpsertCategoryCommand{CategoryID: "cat_1", Name: "Big Mugs", Type: "size"})
	if err != nil || updated.Handle != "mugs" || updated.Name != "Big Mugs" || updated.Type != "size" {
		t.Fatalf("expected rename to keep handle, got %+v %v", updated, err)
	}
	if stored := store.categories["cat_1"]; stored.Handle != "mugs" {
		t.Fatalf("expected stored handle mugs, got %q", stored.Handle)
	}
	updated, err = svc.UpdateCategory(ctx, UpsertCategoryCommand{CategoryID: "cat_1", Name: "Big Mugs", Handle: "Big Mugs", Type: "size"})
	if err != nil || updated.Handle != "big-mugs" {
		t.Fatalf("expected explicit handle applied, got %+v %v", updated, err)
	}
	if _, err := svc.UpdateCategory(ctx, UpsertCategoryCommand{CategoryID: "cat_1", Name: "Bowls", Type: "shape"}); !errors.Is(err, ErrCatalogConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if _, err := svc.UpdateCategory(ctx, UpsertCategoryCommand{CategoryID: "cat_x", Name: "X", Type: "y"}); !errors.Is(err, ErrCatalogNotFound) ||
		PublicMessage(err, "") != "Category not found" {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCategoryServiceDeleteGuard(t *testing.T) {
	store, svc := newCategoryFixture(t)
	store.addCategory(domain.Category{ID: "cat_1", Name: "Mugs", Handle: "mugs", Type: "shape"})
	store.addProduct(domain.Product{ID: "P1", Name: "Mug", Price: money("1")})
	store.addProduct(domain.Product{ID: "P2", Name: "Mug 2", Price: money("1")})
	store.links["P1"] = []string{"cat_1"}
	store.links["P2"] = []string{"cat_1"}
	ctx := context.Background()

	err := svc.DeleteCategory(ctx, "cat_1")
	if !errors.Is(err, ErrCatalogConflict) || PublicMessage(err, "") != "Cannot delete category. It is used by 2 product(s)" {
		t.Fatalf("expected guard conflict, got %v", err)
	}
	if PublicDetails(err)["productCount"] != 2 {
		t.Fatalf("expected productCount detail, got %v", PublicDetails(err))
	}

	delete(store.links, "P1")
	delete(store.links, "P2")
	if err := svc.DeleteCategory(ctx, "cat_1"); err != nil {
		t.Fatalf("DeleteCategory: %v", err)
	}
	if err := svc.DeleteCategory(ctx, "cat_1"); !errors.Is(err, ErrCatalogNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCategoryServiceListOrdersByName(t *testing.T) {
	store, svc := newCategoryFixture(t)
	store.addCategory(domain.Category{ID: "cat_2", Name: "Vases", Handle: "vases", Type: "shape"})
	store.addCategory(domain.Category{ID: "cat_1", Name: "Bowls", Handle: "bowls", Type: "shape"})

	categories, err := svc.ListCategories(context.Background())
	if err != nil || len(categories) != 2 || categories[0].Name != "Bowls" {
		t.Fatalf("unexpected categories %+v %v", categories, err)
	}
}
