package services

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/lylaw27/glaze-store/internal/domain"
	"github.com/lylaw27/glaze-store/internal/platform/events"
	"github.com/lylaw27/glaze-store/internal/repositories"
)

var fixedNow = time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func sequentialIDs() func() string {
	var (
		mu sync.Mutex
		n  int
	)
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%026d", n)
	}
}

type fakeRepoError struct {
	msg         string
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e *fakeRepoError) Error() string       { return e.msg }
func (e *fakeRepoError) IsNotFound() bool    { return e.notFound }
func (e *fakeRepoError) IsConflict() bool    { return e.conflict }
func (e *fakeRepoError) IsUnavailable() bool { return e.unavailable }

func errNotFound(what string) error { return &fakeRepoError{msg: what + " not found", notFound: true} }
func errConflict(what string) error { return &fakeRepoError{msg: what + " conflict", conflict: true} }

type fakeState struct {
	products   map[string]domain.Product
	categories map[string]domain.Category
	links      map[string][]string
	variants   map[string]*domain.ProductVariant
	addOns     map[string][]string
	orders     map[string]domain.Order
}

func (s fakeState) clone() fakeState {
	out := fakeState{
		products:   maps.Clone(s.products),
		categories: maps.Clone(s.categories),
		links:      make(map[string][]string, len(s.links)),
		variants:   maps.Clone(s.variants),
		addOns:     make(map[string][]string, len(s.addOns)),
		orders:     maps.Clone(s.orders),
	}
	for k, v := range s.links {
		out.links[k] = slices.Clone(v)
	}
	for k, v := range s.addOns {
		out.addOns[k] = slices.Clone(v)
	}
	return out
}

// fakeStore is an in-memory registry. Transactions are serialised and roll back by restoring a snapshot.
type fakeStore struct {
	txMu sync.Mutex
	mu   sync.Mutex
	fakeState
}

func newFakeStore() *fakeStore {
	return &fakeStore{fakeState: fakeState{
		products:   map[string]domain.Product{},
		categories: map[string]domain.Category{},
		links:      map[string][]string{},
		variants:   map[string]*domain.ProductVariant{},
		addOns:     map[string][]string{},
		orders:     map[string]domain.Order{},
	}}
}

type txKey struct{}

func (f *fakeStore) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	f.txMu.Lock()
	defer f.txMu.Unlock()

	f.mu.Lock()
	snapshot := f.fakeState.clone()
	f.mu.Unlock()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		f.mu.Lock()
		f.fakeState = snapshot
		f.mu.Unlock()
		return err
	}
	return nil
}

func (f *fakeStore) addProduct(p domain.Product) domain.Product {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p.Status == "" {
		p.Status = domain.ProductStatusActive
	}
	if p.Handle == "" {
		p.Handle = strings.ToLower(p.ID)
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = fixedNow
		p.UpdatedAt = fixedNow
	}
	f.products[p.ID] = p
	return p
}

func (f *fakeStore) addCategory(c domain.Category) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.categories[c.ID] = c
}

func (f *fakeStore) stock(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.products[id].Stock
}

func (f *fakeStore) orderCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.orders)
}

// ProductRepository

type fakeProducts struct{ *fakeStore }

func (f fakeProducts) List(_ context.Context, filter repositories.ProductListFilter) (domain.CursorPage[domain.Product], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var items []domain.Product
	for _, p := range f.products {
		if filter.Status != nil && p.Status != *filter.Status {
			continue
		}
		if filter.InStockOnly && p.Stock <= 0 {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(filter.Search)) {
			continue
		}
		if filter.MinPrice != nil && p.Price.LessThan(*filter.MinPrice) {
			continue
		}
		if filter.MaxPrice != nil && p.Price.GreaterThan(*filter.MaxPrice) {
			continue
		}
		if len(filter.CategoryHandles) > 0 && !f.inCategories(p.ID, filter.CategoryHandles) {
			continue
		}
		items = append(items, f.withRelations(p))
	}
	slices.SortFunc(items, func(a, b domain.Product) int { return strings.Compare(b.ID, a.ID) })
	if filter.Pagination.PageSize > 0 && len(items) > filter.Pagination.PageSize {
		items = items[:filter.Pagination.PageSize]
	}
	return domain.CursorPage[domain.Product]{Items: items}, nil
}

func (f fakeProducts) inCategories(productID string, handles []string) bool {
	for _, categoryID := range f.links[productID] {
		if slices.Contains(handles, f.categories[categoryID].Handle) {
			return true
		}
	}
	return false
}

func (f fakeProducts) withRelations(p domain.Product) domain.Product {
	p.Categories = nil
	for _, id := range f.links[p.ID] {
		p.Categories = append(p.Categories, f.categories[id])
	}
	p.Variants = nil
	if v := f.variants[p.ID]; v != nil {
		p.Variants = []domain.ProductVariant{*v}
	}
	p.AddOns = nil
	for _, id := range f.addOns[p.ID] {
		addOn := f.products[id]
		p.AddOns = append(p.AddOns, domain.ProductAddOn{MainProductID: p.ID, AddOn: domain.ProductSummary{
			ID: addOn.ID, Name: addOn.Name, Handle: addOn.Handle, Price: addOn.Price, Stock: addOn.Stock, Status: addOn.Status,
		}})
	}
	return p
}

func (f fakeProducts) FindByID(_ context.Context, id string) (domain.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return domain.Product{}, errNotFound("product")
	}
	return f.withRelations(p), nil
}

func (f fakeProducts) FindByHandle(_ context.Context, handle string) (domain.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.products {
		if p.Handle == handle {
			return f.withRelations(p), nil
		}
	}
	return domain.Product{}, errNotFound("product")
}

func (f fakeProducts) FindByIDs(_ context.Context, ids []string) ([]domain.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Product
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f fakeProducts) handleTaken(handle, exceptID string) bool {
	for _, p := range f.products {
		if p.Handle == handle && p.ID != exceptID {
			return true
		}
	}
	return false
}

func (f fakeProducts) Insert(_ context.Context, p domain.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.handleTaken(p.Handle, "") {
		return errConflict("product handle")
	}
	f.products[p.ID] = p
	return nil
}

func (f fakeProducts) Update(_ context.Context, p domain.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.products[p.ID]; !ok {
		return errNotFound("product")
	}
	if f.handleTaken(p.Handle, p.ID) {
		return errConflict("product handle")
	}
	p.Categories, p.Variants, p.AddOns = nil, nil, nil
	f.products[p.ID] = p
	return nil
}

func (f fakeProducts) AppendImage(_ context.Context, id, url string, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return errNotFound("product")
	}
	p.Images = append(slices.Clone(p.Images), url)
	p.UpdatedAt = now
	f.products[id] = p
	return nil
}

func (f fakeProducts) RemoveImage(_ context.Context, id, url string, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return errNotFound("product")
	}
	p.Images = slices.DeleteFunc(slices.Clone(p.Images), func(image string) bool { return image == url })
	p.UpdatedAt = now
	f.products[id] = p
	return nil
}

func (f fakeProducts) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.products[id]; !ok {
		return errNotFound("product")
	}
	delete(f.products, id)
	delete(f.links, id)
	delete(f.variants, id)
	delete(f.addOns, id)
	return nil
}

func (f fakeProducts) ReplaceCategories(_ context.Context, id string, categoryIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.links[id] = slices.Clone(categoryIDs)
	return nil
}

func (f fakeProducts) ReplaceVariant(_ context.Context, id string, v *domain.ProductVariant) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v == nil {
		delete(f.variants, id)
		return nil
	}
	copied := *v
	f.variants[id] = &copied
	return nil
}

func (f fakeProducts) ReplaceAddOns(_ context.Context, id string, ids []string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addOns[id] = slices.Clone(ids)
	return nil
}

func (f fakeProducts) HasOrderItems(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.orders {
		for _, item := range o.Items {
			if item.ProductID == id {
				return true, nil
			}
		}
	}
	return false, nil
}

// InventoryRepository

type fakeInventory struct{ *fakeStore }

func (f fakeInventory) Decrement(_ context.Context, adj repositories.InventoryAdjustment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[adj.ProductID]
	if !ok {
		return repositories.NewInventoryError(repositories.InventoryErrorStockNotFound, adj.ProductID, "missing", nil)
	}
	if p.Stock < adj.Quantity {
		return repositories.NewInventoryError(repositories.InventoryErrorInsufficientStock, adj.ProductID, "short", nil)
	}
	p.Stock -= adj.Quantity
	f.products[adj.ProductID] = p
	return nil
}

func (f fakeInventory) Restock(_ context.Context, adj repositories.InventoryAdjustment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[adj.ProductID]
	if !ok {
		return repositories.NewInventoryError(repositories.InventoryErrorStockNotFound, adj.ProductID, "missing", nil)
	}
	p.Stock += adj.Quantity
	f.products[adj.ProductID] = p
	return nil
}

// CategoryRepository

type fakeCategories struct{ *fakeStore }

func (f fakeCategories) count(id string) int {
	n := 0
	for _, ids := range f.links {
		if slices.Contains(ids, id) {
			n++
		}
	}
	return n
}

func (f fakeCategories) List(context.Context) ([]domain.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Category, 0, len(f.categories))
	for _, c := range f.categories {
		c.ProductCount = f.count(c.ID)
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b domain.Category) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

func (f fakeCategories) FindByID(_ context.Context, id string) (domain.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.categories[id]
	if !ok {
		return domain.Category{}, errNotFound("category")
	}
	c.ProductCount = f.count(id)
	return c, nil
}

func (f fakeCategories) FindByIDs(_ context.Context, ids []string) ([]domain.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Category
	for _, id := range ids {
		if c, ok := f.categories[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f fakeCategories) taken(c domain.Category) bool {
	for _, existing := range f.categories {
		if existing.ID != c.ID && (existing.Name == c.Name || existing.Handle == c.Handle) {
			return true
		}
	}
	return false
}

func (f fakeCategories) Insert(_ context.Context, c domain.Category) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.taken(c) {
		return errConflict("category")
	}
	f.categories[c.ID] = c
	return nil
}

func (f fakeCategories) Update(_ context.Context, c domain.Category) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.categories[c.ID]; !ok {
		return errNotFound("category")
	}
	if f.taken(c) {
		return errConflict("category")
	}
	f.categories[c.ID] = c
	return nil
}

func (f fakeCategories) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.categories[id]; !ok {
		return errNotFound("category")
	}
	if f.count(id) > 0 {
		return errConflict("category reference")
	}
	delete(f.categories, id)
	return nil
}

func (f fakeCategories) CountProducts(_ context.Context, id string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count(id), nil
}

// OrderRepository

type fakeOrders struct{ *fakeStore }

func (f fakeOrders) Insert(_ context.Context, o domain.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o.Items = slices.Clone(o.Items)
	f.orders[o.ID] = o
	return nil
}

func (f fakeOrders) FindByID(_ context.Context, id string) (domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return domain.Order{}, errNotFound("order")
	}
	return o, nil
}

func (f fakeOrders) List(_ context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Order
	for _, o := range f.orders {
		if len(filter.Status) > 0 && !slices.Contains(filter.Status, o.Status) {
			continue
		}
		out = append(out, o)
	}
	slices.SortFunc(out, func(a, b domain.Order) int { return strings.Compare(b.ID, a.ID) })
	return domain.CursorPage[domain.Order]{Items: out}, nil
}

func (f fakeOrders) UpdateStatus(_ context.Context, u repositories.OrderStatusUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[u.OrderID]
	if !ok {
		return errNotFound("order")
	}
	if o.Status != u.Expected {
		return errConflict("order status")
	}
	o.Status = u.Next
	o.UpdatedAt = u.Now
	f.orders[u.OrderID] = o
	return nil
}

// Collaborators

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.OrderEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event events.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

type loggedEvent struct {
	name   string
	fields map[string]any
}

type recordingLogger struct {
	mu     sync.Mutex
	events []loggedEvent
}

func (l *recordingLogger) log(_ context.Context, event string, fields map[string]any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, loggedEvent{name: event, fields: fields})
}

func (l *recordingLogger) has(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.events {
		if e.name == name {
			return true
		}
	}
	return false
}

type stubImageStore struct {
	uploadFn func(ctx context.Context, object, contentType string, body io.Reader) (string, error)
	mu       sync.Mutex
	deleted  []string
}

func (s *stubImageStore) Upload(ctx context.Context, object, contentType string, body io.Reader) (string, error) {
	if s.uploadFn != nil {
		return s.uploadFn(ctx, object, contentType, body)
	}
	if _, err := io.Copy(io.Discard, body); err != nil {
		return "", err
	}
	return "https://cdn.example.com/" + object, nil
}

func (s *stubImageStore) Delete(_ context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, url)
	return nil
}

func money(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}
