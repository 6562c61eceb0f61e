package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lylaw27/glaze-store/internal/platform/textutil"
	"github.com/lylaw27/glaze-store/internal/repositories"
)

const categoryIDPrefix = "cat_"

// CategoryServiceDeps bundles collaborators required by the category service.
type CategoryServiceDeps struct {
	Categories  repositories.CategoryRepository
	UnitOfWork  repositories.UnitOfWork
	Clock       func() time.Time
	IDGenerator func() string
	Logger      EventLogger
}

type categoryService struct {
	categories repositories.CategoryRepository
	unitOfWork repositories.UnitOfWork
	clock      func() time.Time
	newID      func() string
	logger     EventLogger
}

// NewCategoryService wires dependencies into a CategoryService.
func NewCategoryService(deps CategoryServiceDeps) (CategoryService, error) {
	if deps.Categories == nil {
		return nil, errors.New("category service: category repository is required")
	}
	svc := &categoryService{
		categories: deps.Categories,
		unitOfWork: deps.UnitOfWork,
		clock:      deps.Clock,
		newID:      deps.IDGenerator,
		logger:     deps.Logger,
	}
	if svc.unitOfWork == nil {
		svc.unitOfWork = noopUnitOfWork{}
	}
	if svc.clock == nil {
		svc.clock = time.Now
	}
	if svc.newID == nil {
		svc.newID = defaultIDGenerator
	}
	if svc.logger == nil {
		svc.logger = nopLogger
	}
	return svc, nil
}

func (s *categoryService) ListCategories(ctx context.Context) ([]Category, error) {
	categories, err := s.categories.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("category: list: %w", err)
	}
	if categories == nil {
		categories = []Category{}
	}
	return categories, nil
}

func (s *categoryService) CreateCategory(ctx context.Context, cmd UpsertCategoryCommand) (Category, error) {
	category, err := normalizeCategory(cmd)
	if err != nil {
		return Category{}, err
	}
	now := s.clock().UTC()
	category.ID = prefixedID(categoryIDPrefix, s.newID)
	category.CreatedAt = now
	category.UpdatedAt = now

	if err := s.categories.Insert(ctx, category); err != nil {
		return Category{}, mapCategoryError(err, "create")
	}
	s.logger(ctx, "category.created", map[string]any{"categoryId": category.ID, "handle": category.Handle})
	return category, nil
}

func (s *categoryService) UpdateCategory(ctx context.Context, cmd UpsertCategoryCommand) (Category, error) {
	category, err := normalizeCategory(cmd)
	if err != nil {
		return Category{}, err
	}
	categoryID := strings.TrimSpace(cmd.CategoryID)

	err = s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		existing, err := s.categories.FindByID(txCtx, categoryID)
		if err != nil {
			return err
		}
		category.ID = existing.ID
		if strings.TrimSpace(cmd.Handle) == "" {
			category.Handle = existing.Handle
		}
		category.CreatedAt = existing.CreatedAt
		category.ProductCount = existing.ProductCount
		category.UpdatedAt = s.clock().UTC()
		return s.categories.Update(txCtx, category)
	})
	if err != nil {
		return Category{}, mapCategoryError(err, "update")
	}
	s.logger(ctx, "category.updated", map[string]any{"categoryId": category.ID})
	return category, nil
}

// DeleteCategory refuses to remove a category that any product still links to. The count and the delete
// share one transaction; the RESTRICT foreign key rejects links added concurrently.
func (s *categoryService) DeleteCategory(ctx context.Context, categoryID string) error {
	categoryID = strings.TrimSpace(categoryID)
	err := s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.categories.FindByID(txCtx, categoryID); err != nil {
			return err
		}
		count, err := s.categories.CountProducts(txCtx, categoryID)
		if err != nil {
			return err
		}
		if count > 0 {
			return &Error{
				Kind:    ErrCatalogConflict,
				Message: fmt.Sprintf("Cannot delete category. It is used by %d product(s)", count),
				Details: map[string]any{"productCount": count},
			}
		}
		return s.categories.Delete(txCtx, categoryID)
	})
	if err != nil {
		if isRepoConflict(err) {
			return newError(ErrCatalogConflict, "Cannot delete category. It is used by products")
		}
		return mapCategoryError(err, "delete")
	}
	s.logger(ctx, "category.deleted", map[string]any{"categoryId": categoryID})
	return nil
}

func normalizeCategory(cmd UpsertCategoryCommand) (Category, error) {
	name := strings.TrimSpace(cmd.Name)
	kind := strings.TrimSpace(cmd.Type)
	if name == "" || kind == "" {
		return Category{}, newError(ErrCatalogInvalidInput, "Name and type are required")
	}
	handle := textutil.Slugify(cmd.Handle)
	if handle == "" {
		handle = textutil.Slugify(name)
	}
	if handle == "" {
		return Category{}, newError(ErrCatalogInvalidInput, "Handle is required")
	}
	return Category{Name: name, Handle: handle, Type: kind}, nil
}

func mapCategoryError(err error, action string) error {
	var svcErr *Error
	switch {
	case errors.As(err, &svcErr):
		return err
	case isRepoNotFound(err):
		return newError(ErrCatalogNotFound, "Category not found")
	case isRepoConflict(err):
		return newError(ErrCatalogConflict, "A category with this name already exists")
	default:
		return fmt.Errorf("category: %s: %w", action, err)
	}
}
