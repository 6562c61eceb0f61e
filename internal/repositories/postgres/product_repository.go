package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	domain "github.com/lylaw27/glaze-store/internal/domain"
	"github.com/lylaw27/glaze-store/internal/platform/pagination"
	"github.com/lylaw27/glaze-store/internal/repositories"
)

const productColumns = `p.id, p.name, p.handle, p.description, p.price, p.stock, p.status, p.images, p.created_at, p.updated_at`

// ProductRepository persists products and their category, variant, and add-on relations.
type ProductRepository struct {
	db *sql.DB
}

var _ repositories.ProductRepository = (*ProductRepository)(nil)

// NewProductRepository constructs a repository bound to db.
func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

type variantOptionRecord struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

func (r *ProductRepository) List(ctx context.Context, filter repositories.ProductListFilter) (domain.CursorPage[domain.Product], error) {
	cursor, err := pagination.DecodeToken(filter.Pagination.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Product]{}, err
	}
	limit := pagination.NormalizePageSize(filter.Pagination.PageSize, pagination.DefaultPageSize, pagination.DefaultMaxPageSize)

	where := newWhere()
	if filter.Status != nil {
		where.add("p.status = %s", string(*filter.Status))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + escapeLike(search) + "%"
		where.add("(p.name ILIKE %[1]s OR COALESCE(p.description, '') ILIKE %[1]s)", pattern)
	}
	if len(filter.CategoryHandles) > 0 {
		where.add(`EXISTS (SELECT 1 FROM product_categories pc JOIN categories c ON c.id = pc.category_id
			WHERE pc.product_id = p.id AND c.handle = ANY(%s))`, pq.Array(filter.CategoryHandles))
	}
	if filter.MinPrice != nil {
		where.add("p.price >= %s", *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		where.add("p.price <= %s", *filter.MaxPrice)
	}
	if filter.InStockOnly {
		where.clause("p.stock > 0")
	}
	if !cursor.IsZero() {
		where.add("(p.created_at, p.id) < (%s, %s)", cursor.CreatedAt, cursor.ID)
	}

	query := fmt.Sprintf(`SELECT %s FROM products p%s ORDER BY p.created_at DESC, p.id DESC LIMIT %s`,
		productColumns, where.sql(), where.arg(limit+1))

	products, err := r.query(ctx, "products.list", query, where.args...)
	if err != nil {
		return domain.CursorPage[domain.Product]{}, err
	}

	page := domain.CursorPage[domain.Product]{}
	if len(products) > limit {
		products = products[:limit]
		last := products[len(products)-1]
		token, err := pagination.EncodeToken(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
		if err != nil {
			return domain.CursorPage[domain.Product]{}, err
		}
		page.NextPageToken = token
	}
	if err := r.loadRelations(ctx, products); err != nil {
		return domain.CursorPage[domain.Product]{}, err
	}
	page.Items = products
	return page, nil
}

func (r *ProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	return r.findOne(ctx, "products.findByID", "p.id = $1", productID)
}

func (r *ProductRepository) FindByHandle(ctx context.Context, handle string) (domain.Product, error) {
	return r.findOne(ctx, "products.findByHandle", "p.handle = $1", handle)
}

func (r *ProductRepository) findOne(ctx context.Context, op, predicate string, value string) (domain.Product, error) {
	query := fmt.Sprintf(`SELECT %s FROM products p WHERE %s`, productColumns, predicate)
	products, err := r.query(ctx, op, query, value)
	if err != nil {
		return domain.Product{}, err
	}
	if len(products) == 0 {
		return domain.Product{}, notFound(op, "product %s not found", value)
	}
	if err := r.loadRelations(ctx, products); err != nil {
		return domain.Product{}, err
	}
	return products[0], nil
}

func (r *ProductRepository) FindByIDs(ctx context.Context, productIDs []string) ([]domain.Product, error) {
	if len(productIDs) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`SELECT %s FROM products p WHERE p.id = ANY($1)`, productColumns)
	return r.query(ctx, "products.findByIDs", query, pq.Array(productIDs))
}

func (r *ProductRepository) Insert(ctx context.Context, product domain.Product) error {
	_, err := conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO products (id, name, handle, description, price, stock, status, images, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		product.ID, product.Name, product.Handle, product.Description, product.Price, product.Stock,
		string(product.Status), pq.StringArray(nonNilStrings(product.Images)), product.CreatedAt, product.UpdatedAt)
	return WrapError("products.insert", err)
}

func (r *ProductRepository) Update(ctx context.Context, product domain.Product) error {
	res, err := conn(ctx, r.db).ExecContext(ctx, `
		UPDATE products
		SET name = $2, handle = $3, description = $4, price = $5, stock = $6, status = $7, images = $8, updated_at = $9
		WHERE id = $1`,
		product.ID, product.Name, product.Handle, product.Description, product.Price, product.Stock,
		string(product.Status), pq.StringArray(nonNilStrings(product.Images)), product.UpdatedAt)
	if err != nil {
		return WrapError("products.update", err)
	}
	return requireOneRow("products.update", res, "product %s not found", product.ID)
}

func (r *ProductRepository) AppendImage(ctx context.Context, productID, imageURL string, now time.Time) error {
	res, err := conn(ctx, r.db).ExecContext(ctx, `
		UPDATE products SET images = array_append(images, $2), updated_at = $3 WHERE id = $1`,
		productID, imageURL, now)
	if err != nil {
		return WrapError("products.appendImage", err)
	}
	return requireOneRow("products.appendImage", res, "product %s not found", productID)
}

func (r *ProductRepository) RemoveImage(ctx context.Context, productID, imageURL string, now time.Time) error {
	res, err := conn(ctx, r.db).ExecContext(ctx, `
		UPDATE products SET images = array_remove(images, $2), updated_at = $3 WHERE id = $1`,
		productID, imageURL, now)
	if err != nil {
		return WrapError("products.removeImage", err)
	}
	return requireOneRow("products.removeImage", res, "product %s not found", productID)
}

func (r *ProductRepository) Delete(ctx context.Context, productID string) error {
	res, err := conn(ctx, r.db).ExecContext(ctx, `DELETE FROM products WHERE id = $1`, productID)
	if err != nil {
		return WrapError("products.delete", err)
	}
	return requireOneRow("products.delete", res, "product %s not found", productID)
}

func (r *ProductRepository) ReplaceCategories(ctx context.Context, productID string, categoryIDs []string) error {
	q := conn(ctx, r.db)
	if _, err := q.ExecContext(ctx, `DELETE FROM product_categories WHERE product_id = $1`, productID); err != nil {
		return WrapError("products.replaceCategories", err)
	}
	if len(categoryIDs) == 0 {
		return nil
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO product_categories (product_id, category_id)
		SELECT $1, unnest($2::text[])
		ON CONFLICT DO NOTHING`, productID, pq.Array(categoryIDs))
	return WrapError("products.replaceCategories", err)
}

func (r *ProductRepository) ReplaceVariant(ctx context.Context, productID string, variant *domain.ProductVariant) error {
	q := conn(ctx, r.db)
	if _, err := q.ExecContext(ctx, `DELETE FROM product_variants WHERE product_id = $1`, productID); err != nil {
		return WrapError("products.replaceVariant", err)
	}
	if variant == nil {
		return nil
	}
	records := make([]variantOptionRecord, 0, len(variant.Options))
	for _, option := range variant.Options {
		records = append(records, variantOptionRecord{Name: option.Name, Values: nonNilStrings(option.Values)})
	}
	payload, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("products.replaceVariant: encode options: %w", err)
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO product_variants (id, product_id, options, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`,
		variant.ID, productID, string(payload), variant.CreatedAt, variant.UpdatedAt)
	return WrapError("products.replaceVariant", err)
}

func (r *ProductRepository) ReplaceAddOns(ctx context.Context, productID string, addOnIDs []string, now time.Time) error {
	q := conn(ctx, r.db)
	if _, err := q.ExecContext(ctx, `DELETE FROM product_add_ons WHERE main_product_id = $1`, productID); err != nil {
		return WrapError("products.replaceAddOns", err)
	}
	if len(addOnIDs) == 0 {
		return nil
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO product_add_ons (main_product_id, add_on_product_id, created_at)
		SELECT $1, unnest($2::text[]), $3
		ON CONFLICT DO NOTHING`, productID, pq.Array(addOnIDs), now)
	return WrapError("products.replaceAddOns", err)
}

func (r *ProductRepository) HasOrderItems(ctx context.Context, productID string) (bool, error) {
	var exists bool
	err := conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM order_items WHERE product_id = $1)`, productID).Scan(&exists)
	if err != nil {
		return false, WrapError("products.hasOrderItems", err)
	}
	return exists, nil
}

func (r *ProductRepository) query(ctx context.Context, op, query string, args ...any) ([]domain.Product, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, WrapError(op, err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, WrapError(op, err)
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, WrapError(op, err)
	}
	return products, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var (
		product     domain.Product
		description sql.NullString
		status      string
		images      pq.StringArray
	)
	if err := row.Scan(&product.ID, &product.Name, &product.Handle, &description, &product.Price, &product.Stock,
		&status, &images, &product.CreatedAt, &product.UpdatedAt); err != nil {
		return domain.Product{}, err
	}
	if description.Valid {
		value := description.String
		product.Description = &value
	}
	product.Status = domain.ProductStatus(status)
	product.Images = []string(images)
	if product.Images == nil {
		product.Images = []string{}
	}
	return product, nil
}

func (r *ProductRepository) loadRelations(ctx context.Context, products []domain.Product) error {
	if len(products) == 0 {
		return nil
	}
	ids := make([]string, len(products))
	index := make(map[string]int, len(products))
	for i := range products {
		ids[i] = products[i].ID
		index[products[i].ID] = i
		products[i].Categories = []domain.Category{}
		products[i].Variants = []domain.ProductVariant{}
		products[i].AddOns = []domain.ProductAddOn{}
	}

	q := conn(ctx, r.db)

	if err := forEachRow(ctx, q, "products.loadCategories", `
		SELECT pc.product_id, c.id, c.name, c.handle, c.type, c.created_at, c.updated_at
		FROM product_categories pc JOIN categories c ON c.id = pc.category_id
		WHERE pc.product_id = ANY($1)
		ORDER BY c.name`, []any{pq.Array(ids)}, func(rows *sql.Rows) error {
		var productID string
		var category domain.Category
		if err := rows.Scan(&productID, &category.ID, &category.Name, &category.Handle, &category.Type,
			&category.CreatedAt, &category.UpdatedAt); err != nil {
			return err
		}
		if i, ok := index[productID]; ok {
			products[i].Categories = append(products[i].Categories, category)
		}
		return nil
	}); err != nil {
		return err
	}

	if err := forEachRow(ctx, q, "products.loadVariants", `
		SELECT id, product_id, options, created_at, updated_at
		FROM product_variants
		WHERE product_id = ANY($1)
		ORDER BY created_at, id`, []any{pq.Array(ids)}, func(rows *sql.Rows) error {
		var variant domain.ProductVariant
		var raw []byte
		if err := rows.Scan(&variant.ID, &variant.ProductID, &raw, &variant.CreatedAt, &variant.UpdatedAt); err != nil {
			return err
		}
		var records []variantOptionRecord
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &records); err != nil {
				return fmt.Errorf("decode variant %s options: %w", variant.ID, err)
			}
		}
		variant.Options = make([]domain.VariantOption, 0, len(records))
		for _, record := range records {
			variant.Options = append(variant.Options, domain.VariantOption{Name: record.Name, Values: nonNilStrings(record.Values)})
		}
		if i, ok := index[variant.ProductID]; ok {
			products[i].Variants = append(products[i].Variants, variant)
		}
		return nil
	}); err != nil {
		return err
	}

	return forEachRow(ctx, q, "products.loadAddOns", `
		SELECT a.main_product_id, a.created_at, p.id, p.name, p.handle, p.price, p.stock, p.status, p.images
		FROM product_add_ons a JOIN products p ON p.id = a.add_on_product_id
		WHERE a.main_product_id = ANY($1)
		ORDER BY a.created_at, p.id`, []any{pq.Array(ids)}, func(rows *sql.Rows) error {
		var addOn domain.ProductAddOn
		var status string
		var images pq.StringArray
		if err := rows.Scan(&addOn.MainProductID, &addOn.CreatedAt, &addOn.AddOn.ID, &addOn.AddOn.Name,
			&addOn.AddOn.Handle, &addOn.AddOn.Price, &addOn.AddOn.Stock, &status, &images); err != nil {
			return err
		}
		addOn.AddOn.Status = domain.ProductStatus(status)
		addOn.AddOn.Images = nonNilStrings(images)
		if i, ok := index[addOn.MainProductID]; ok {
			products[i].AddOns = append(products[i].AddOns, addOn)
		}
		return nil
	})
}

func forEachRow(ctx context.Context, q querier, op, query string, args []any, fn func(*sql.Rows) error) error {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return WrapError(op, err)
	}
	defer rows.Close()
	for rows.Next() {
		if err := fn(rows); err != nil {
			return WrapError(op, err)
		}
	}
	return WrapError(op, rows.Err())
}

func requireOneRow(op string, res sql.Result, format string, args ...any) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return WrapError(op, err)
	}
	if affected == 0 {
		return notFound(op, format, args...)
	}
	return nil
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}

// whereBuilder accumulates positional arguments and AND-ed predicates.
type whereBuilder struct {
	clauses []string
	args    []any
}

func newWhere() *whereBuilder {
	return &whereBuilder{}
}

// arg registers value and returns its placeholder.
func (w *whereBuilder) arg(value any) string {
	w.args = append(w.args, value)
	return fmt.Sprintf("$%d", len(w.args))
}

// add formats predicate with one placeholder per value.
func (w *whereBuilder) add(predicate string, values ...any) {
	placeholders := make([]any, len(values))
	for i, value := range values {
		placeholders[i] = w.arg(value)
	}
	w.clauses = append(w.clauses, fmt.Sprintf(predicate, placeholders...))
}

func (w *whereBuilder) clause(predicate string) {
	w.clauses = append(w.clauses, predicate)
}

func (w *whereBuilder) sql() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}
