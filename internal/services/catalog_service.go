package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	domain "github.com/lylaw27/glaze-store/internal/domain"
	"github.com/lylaw27/glaze-store/internal/platform/pagination"
	"github.com/lylaw27/glaze-store/internal/platform/storage"
	"github.com/lylaw27/glaze-store/internal/platform/textutil"
	"github.com/lylaw27/glaze-store/internal/repositories"
)

const (
	productIDPrefix = "prd_"
	variantIDPrefix = "var_"

	// DefaultMaxImageBytes caps product image uploads when no limit is configured.
	DefaultMaxImageBytes int64 = 10 << 20
)

var errImageTooLarge = errors.New("catalog: image exceeds size limit")

// CatalogServiceDeps bundles collaborators required by the catalog service.
type CatalogServiceDeps struct {
	Products      repositories.ProductRepository
	Categories    repositories.CategoryRepository
	UnitOfWork    repositories.UnitOfWork
	Images        storage.ImageStore
	MaxImageBytes int64
	Clock         func() time.Time
	IDGenerator   func() string
	Logger        EventLogger
}

type catalogService struct {
	products      repositories.ProductRepository
	categories    repositories.CategoryRepository
	unitOfWork    repositories.UnitOfWork
	images        storage.ImageStore
	maxImageBytes int64
	clock         func() time.Time
	newID         func() string
	logger        EventLogger
}

// NewCatalogService wires dependencies into a CatalogService.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Products == nil {
		return nil, errors.New("catalog service: product repository is required")
	}
	if deps.Categories == nil {
		return nil, errors.New("catalog service: category repository is required")
	}
	svc := &catalogService{
		products:      deps.Products,
		categories:    deps.Categories,
		unitOfWork:    deps.UnitOfWork,
		images:        deps.Images,
		maxImageBytes: deps.MaxImageBytes,
		clock:         deps.Clock,
		newID:         deps.IDGenerator,
		logger:        deps.Logger,
	}
	if svc.unitOfWork == nil {
		svc.unitOfWork = noopUnitOfWork{}
	}
	if svc.images == nil {
		svc.images = storage.DisabledStore{}
	}
	if svc.maxImageBytes <= 0 {
		svc.maxImageBytes = DefaultMaxImageBytes
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

func (s *catalogService) now() time.Time {
	return s.clock().UTC()
}

func (s *catalogService) ListProducts(ctx context.Context, query ProductQuery) ([]Product, error) {
	if query.MinPrice != nil && query.MinPrice.IsNegative() || query.MaxPrice != nil && query.MaxPrice.IsNegative() {
		return nil, newError(ErrCatalogInvalidInput, "Price filters must not be negative")
	}
	if query.MinPrice != nil && query.MaxPrice != nil && query.MinPrice.GreaterThan(*query.MaxPrice) {
		return nil, newError(ErrCatalogInvalidInput, "minPrice must not exceed maxPrice")
	}
	inStock := true
	if query.InStock != nil {
		inStock = *query.InStock
	}
	active := domain.ProductStatusActive
	page, err := s.products.List(ctx, repositories.ProductListFilter{
		Search:          strings.TrimSpace(query.Search),
		CategoryHandles: uniqueTrimmed(query.Categories),
		MinPrice:        query.MinPrice,
		MaxPrice:        query.MaxPrice,
		InStockOnly:     inStock,
		Status:          &active,
		Pagination: domain.Pagination{
			PageSize: pagination.NormalizePageSize(query.Limit, pagination.DefaultPageSize, pagination.DefaultMaxPageSize),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("catalog: list products: %w", err)
	}
	if page.Items == nil {
		return []Product{}, nil
	}
	for i := range page.Items {
		page.Items[i].AddOns = activeAddOns(page.Items[i].AddOns)
	}
	return page.Items, nil
}

func (s *catalogService) GetProduct(ctx context.Context, idOrHandle string) (Product, error) {
	key := strings.TrimSpace(idOrHandle)
	if key == "" {
		return Product{}, newError(ErrCatalogNotFound, "Product not found")
	}
	product, err := s.products.FindByID(ctx, key)
	if isRepoNotFound(err) {
		product, err = s.products.FindByHandle(ctx, key)
	}
	if err != nil {
		return Product{}, s.mapProductError(err, "get product")
	}
	if product.Status != domain.ProductStatusActive {
		return Product{}, newError(ErrCatalogNotFound, "Product not found")
	}
	product.AddOns = activeAddOns(product.AddOns)
	return product, nil
}

func (s *catalogService) ListAdminProducts(ctx context.Context, filter AdminProductFilter) (domain.CursorPage[Product], error) {
	if filter.Status != nil && !filter.Status.IsValid() {
		return domain.CursorPage[Product]{}, newError(ErrCatalogInvalidInput, "Invalid status: %s", *filter.Status)
	}
	page, err := s.products.List(ctx, repositories.ProductListFilter{
		Search:     strings.TrimSpace(filter.Search),
		Status:     filter.Status,
		Pagination: filter.Pagination,
	})
	if err != nil {
		return domain.CursorPage[Product]{}, s.mapProductError(err, "list products")
	}
	return page, nil
}

func (s *catalogService) GetAdminProduct(ctx context.Context, productID string) (Product, error) {
	product, err := s.products.FindByID(ctx, strings.TrimSpace(productID))
	if err != nil {
		return Product{}, s.mapProductError(err, "get product")
	}
	return product, nil
}

func (s *catalogService) CreateProduct(ctx context.Context, cmd UpsertProductCommand) (Product, error) {
	draft, err := s.normalizeProduct(ctx, cmd, "")
	if err != nil {
		return Product{}, err
	}
	now := s.now()
	draft.product.ID = prefixedID(productIDPrefix, s.newID)
	draft.product.CreatedAt = now
	draft.product.UpdatedAt = now

	err = s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.products.Insert(txCtx, draft.product); err != nil {
			return err
		}
		return s.replaceRelations(txCtx, draft, "", now)
	})
	if err != nil {
		return Product{}, s.mapProductError(err, "create product")
	}
	s.logger(ctx, "catalog.product.created", map[string]any{"productId": draft.product.ID, "handle": draft.product.Handle})
	return s.GetAdminProduct(ctx, draft.product.ID)
}

func (s *catalogService) UpdateProduct(ctx context.Context, cmd UpsertProductCommand) (Product, error) {
	productID := strings.TrimSpace(cmd.ProductID)
	if productID == "" {
		return Product{}, newError(ErrCatalogNotFound, "Product not found")
	}
	draft, err := s.normalizeProduct(ctx, cmd, productID)
	if err != nil {
		return Product{}, err
	}
	now := s.now()

	var removed []string
	err = s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		existing, err := s.products.FindByID(txCtx, productID)
		if err != nil {
			return err
		}
		draft.product.ID = existing.ID
		draft.product.CreatedAt = existing.CreatedAt
		draft.product.UpdatedAt = now
		if err := s.products.Update(txCtx, draft.product); err != nil {
			return err
		}
		existingVariantID := ""
		if len(existing.Variants) > 0 {
			existingVariantID = existing.Variants[0].ID
		}
		if err := s.replaceRelations(txCtx, draft, existingVariantID, now); err != nil {
			return err
		}
		removed = missingFrom(existing.Images, draft.product.Images)
		return nil
	})
	if err != nil {
		return Product{}, s.mapProductError(err, "update product")
	}
	s.deleteImages(ctx, productID, removed)
	s.logger(ctx, "catalog.product.updated", map[string]any{"productId": productID})
	return s.GetAdminProduct(ctx, productID)
}

func (s *catalogService) DeleteProduct(ctx context.Context, productID string) error {
	productID = strings.TrimSpace(productID)
	var images []string
	err := s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		existing, err := s.products.FindByID(txCtx, productID)
		if err != nil {
			return err
		}
		referenced, err := s.products.HasOrderItems(txCtx, productID)
		if err != nil {
			return err
		}
		if referenced {
			return newError(ErrCatalogConflict, "Product has existing orders")
		}
		images = existing.Images
		return s.products.Delete(txCtx, productID)
	})
	if err != nil {
		if isRepoConflict(err) {
			return newError(ErrCatalogConflict, "Product has existing orders")
		}
		return s.mapProductError(err, "delete product")
	}
	s.deleteImages(ctx, productID, images)
	s.logger(ctx, "catalog.product.deleted", map[string]any{"productId": productID})
	return nil
}

func (s *catalogService) AddProductImage(ctx context.Context, cmd AddProductImageCommand) (Product, error) {
	if cmd.Body == nil {
		return Product{}, newError(ErrCatalogInvalidInput, "Image file is required")
	}
	if cmd.Size > s.maxImageBytes {
		return Product{}, newError(ErrCatalogUploadTooLarge, "Image exceeds the %d byte limit", s.maxImageBytes)
	}
	productID := strings.TrimSpace(cmd.ProductID)
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return Product{}, s.mapProductError(err, "load product")
	}
	object, err := storage.ProductImagePath(product.Handle, cmd.ContentType)
	if err != nil {
		if errors.Is(err, storage.ErrUnsupportedContentType) {
			return Product{}, newError(ErrCatalogInvalidInput, "Unsupported image type: %s", cmd.ContentType)
		}
		return Product{}, fmt.Errorf("catalog: image path: %w", err)
	}

	url, err := s.images.Upload(ctx, object, cmd.ContentType, &limitedReader{r: cmd.Body, remaining: s.maxImageBytes})
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrDisabled):
			return Product{}, newError(ErrCatalogStorageDisabled, "Image storage is not configured")
		case errors.Is(err, errImageTooLarge):
			return Product{}, newError(ErrCatalogUploadTooLarge, "Image exceeds the %d byte limit", s.maxImageBytes)
		}
		s.logger(ctx, "catalog.image.upload.failed", map[string]any{"productId": productID, "error": err})
		return Product{}, fmt.Errorf("catalog: upload image: %w", err)
	}

	err = s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		return s.products.AppendImage(txCtx, productID, url, s.now())
	})
	if err != nil {
		s.deleteImages(ctx, productID, []string{url})
		return Product{}, s.mapProductError(err, "attach image")
	}
	s.logger(ctx, "catalog.image.uploaded", map[string]any{"productId": productID, "object": object})
	return s.GetAdminProduct(ctx, productID)
}

func (s *catalogService) RemoveProductImage(ctx context.Context, productID, imageURL string) (Product, error) {
	productID = strings.TrimSpace(productID)
	imageURL = strings.TrimSpace(imageURL)
	if imageURL == "" {
		return Product{}, newError(ErrCatalogInvalidInput, "Image url is required")
	}
	err := s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		current, err := s.products.FindByID(txCtx, productID)
		if err != nil {
			return err
		}
		if !slices.Contains(current.Images, imageURL) {
			return newError(ErrCatalogNotFound, "Image not found")
		}
		return s.products.RemoveImage(txCtx, productID, imageURL, s.now())
	})
	if err != nil {
		return Product{}, s.mapProductError(err, "remove image")
	}
	s.deleteImages(ctx, productID, []string{imageURL})
	return s.GetAdminProduct(ctx, productID)
}

type productDraft struct {
	product     Product
	categoryIDs []string
	addOnIDs    []string
	options     []VariantOption
}

func (s *catalogService) normalizeProduct(ctx context.Context, cmd UpsertProductCommand, selfID string) (productDraft, error) {
	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		return productDraft{}, newError(ErrCatalogInvalidInput, "Name is required")
	}
	handle := textutil.Slugify(cmd.Handle)
	if handle == "" {
		handle = textutil.Slugify(name)
	}
	if handle == "" {
		return productDraft{}, newError(ErrCatalogInvalidInput, "Handle is required")
	}
	if cmd.Price.IsNegative() {
		return productDraft{}, newError(ErrCatalogInvalidInput, "Price must not be negative")
	}
	if cmd.Stock < 0 {
		return productDraft{}, newError(ErrCatalogInvalidInput, "Stock must not be negative")
	}
	status := domain.ProductStatus(strings.ToLower(strings.TrimSpace(string(cmd.Status))))
	if status == "" {
		status = domain.ProductStatusActive
	}
	if !status.IsValid() {
		return productDraft{}, newError(ErrCatalogInvalidInput, "Invalid status: %s", cmd.Status)
	}

	var description *string
	if cmd.Description != nil {
		if cleaned := textutil.SanitizeHTML(*cmd.Description); cleaned != "" {
			description = &cleaned
		}
	}

	draft := productDraft{
		product: Product{
			Name:        name,
			Handle:      handle,
			Description: description,
			Price:       cmd.Price.Round(2),
			Stock:       cmd.Stock,
			Status:      status,
			Images:      uniqueTrimmed(cmd.Images),
		},
		categoryIDs: uniqueTrimmed(cmd.CategoryIDs),
		addOnIDs:    uniqueTrimmed(cmd.AddOnIDs),
		options:     normalizeOptions(cmd.VariantOptions),
	}
	if draft.product.Images == nil {
		draft.product.Images = []string{}
	}
	if selfID != "" && slices.Contains(draft.addOnIDs, selfID) {
		return productDraft{}, newError(ErrCatalogInvalidInput, "A product cannot be its own add-on")
	}

	if len(draft.categoryIDs) > 0 {
		found, err := s.categories.FindByIDs(ctx, draft.categoryIDs)
		if err != nil {
			return productDraft{}, fmt.Errorf("catalog: load categories: %w", err)
		}
		if missing := missingIDs(draft.categoryIDs, categoryIDs(found)); len(missing) > 0 {
			return productDraft{}, newError(ErrCatalogInvalidInput, "Unknown category ids: %s", strings.Join(missing, ", "))
		}
	}
	if len(draft.addOnIDs) > 0 {
		found, err := s.products.FindByIDs(ctx, draft.addOnIDs)
		if err != nil {
			return productDraft{}, fmt.Errorf("catalog: load add-ons: %w", err)
		}
		if missing := missingIDs(draft.addOnIDs, productIDs(found)); len(missing) > 0 {
			return productDraft{}, newError(ErrCatalogInvalidInput, "Unknown add-on ids: %s", strings.Join(missing, ", "))
		}
	}
	return draft, nil
}

func (s *catalogService) replaceRelations(ctx context.Context, draft productDraft, variantID string, now time.Time) error {
	productID := draft.product.ID
	if err := s.products.ReplaceCategories(ctx, productID, draft.categoryIDs); err != nil {
		return err
	}
	var variant *ProductVariant
	if len(draft.options) > 0 {
		if variantID == "" {
			variantID = prefixedID(variantIDPrefix, s.newID)
		}
		variant = &ProductVariant{
			ID:        variantID,
			ProductID: productID,
			Options:   draft.options,
			CreatedAt: now,
			UpdatedAt: now,
		}
	}
	if err := s.products.ReplaceVariant(ctx, productID, variant); err != nil {
		return err
	}
	return s.products.ReplaceAddOns(ctx, productID, draft.addOnIDs, now)
}

func (s *catalogService) deleteImages(ctx context.Context, productID string, urls []string) {
	for _, url := range urls {
		if err := s.images.Delete(ctx, url); err != nil {
			s.logger(ctx, "catalog.image.delete.failed", map[string]any{
				"productId": productID,
				"url":       url,
				"error":     err,
			})
		}
	}
}

func (s *catalogService) mapProductError(err error, action string) error {
	var svcErr *Error
	switch {
	case errors.As(err, &svcErr):
		return err
	case isRepoNotFound(err):
		return newError(ErrCatalogNotFound, "Product not found")
	case isRepoConflict(err):
		return newError(ErrCatalogConflict, "A product with this handle already exists")
	case errors.Is(err, errInvalidPageToken):
		return newError(ErrCatalogInvalidInput, "Invalid page token")
	default:
		return fmt.Errorf("catalog: %s: %w", action, err)
	}
}

// activeAddOns drops add-ons whose product is hidden from the storefront.
func activeAddOns(addOns []domain.ProductAddOn) []domain.ProductAddOn {
	out := make([]domain.ProductAddOn, 0, len(addOns))
	for _, addOn := range addOns {
		if addOn.AddOn.Status == domain.ProductStatusActive {
			out = append(out, addOn)
		}
	}
	return out
}

func normalizeOptions(options []VariantOption) []VariantOption {
	out := make([]VariantOption, 0, len(options))
	for _, option := range options {
		name := strings.TrimSpace(option.Name)
		if name == "" {
			continue
		}
		values := uniqueTrimmed(option.Values)
		if values == nil {
			values = []string{}
		}
		out = append(out, VariantOption{Name: name, Values: values})
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func missingIDs(want, have []string) []string {
	var missing []string
	for _, id := range want {
		if !slices.Contains(have, id) {
			missing = append(missing, id)
		}
	}
	return missing
}

func missingFrom(before, after []string) []string {
	var removed []string
	for _, url := range before {
		if !slices.Contains(after, url) {
			removed = append(removed, url)
		}
	}
	return removed
}

func categoryIDs(categories []Category) []string {
	ids := make([]string, len(categories))
	for i, category := range categories {
		ids[i] = category.ID
	}
	return ids
}

func productIDs(products []Product) []string {
	ids := make([]string, len(products))
	for i, product := range products {
		ids[i] = product.ID
	}
	return ids
}

// limitedReader fails once more than remaining bytes are read.
type limitedReader struct {
	r         io.Reader
	remaining int64
}

func (l *limitedReader) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	if l.remaining < 0 {
		return n, errImageTooLarge
	}
	return n, err
}
