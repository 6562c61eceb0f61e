package postgres

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	domain "github.com/lylaw27/glaze-store/internal/domain"
	"github.com/lylaw27/glaze-store/internal/repositories"
)

// CategoryRepository persists categories.
type CategoryRepository struct {
	db *sql.DB
}

var _ repositories.CategoryRepository = (*CategoryRepository)(nil)

// NewCategoryRepository constructs a repository bound to db.
func NewCategoryRepository(db *sql.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

func (r *CategoryRepository) List(ctx context.Context) ([]domain.Category, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, `
		SELECT c.id, c.name, c.handle, c.type, c.created_at, c.updated_at, COUNT(pc.product_id)
		FROM categories c LEFT JOIN product_categories pc ON pc.category_id = c.id
		GROUP BY c.id
		ORDER BY c.name`)
	if err != nil {
		return nil, WrapError("categories.list", err)
	}
	defer rows.Close()

	categories := []domain.Category{}
	for rows.Next() {
		var category domain.Category
		if err := rows.Scan(&category.ID, &category.Name, &category.Handle, &category.Type,
			&category.CreatedAt, &category.UpdatedAt, &category.ProductCount); err != nil {
			return nil, WrapError("categories.list", err)
		}
		categories = append(categories, category)
	}
	if err := rows.Err(); err != nil {
		return nil, WrapError("categories.list", err)
	}
	return categories, nil
}

func (r *CategoryRepository) FindByID(ctx context.Context, categoryID string) (domain.Category, error) {
	var category domain.Category
	err := conn(ctx, r.db).QueryRowContext(ctx, `
		SELECT id, name, handle, type, created_at, updated_at,
			(SELECT COUNT(*) FROM product_categories WHERE category_id = $1)
		FROM categories WHERE id = $1`, categoryID).
		Scan(&category.ID, &category.Name, &category.Handle, &category.Type,
			&category.CreatedAt, &category.UpdatedAt, &category.ProductCount)
	if err != nil {
		return domain.Category{}, WrapError("categories.findByID", err)
	}
	return category, nil
}

func (r *CategoryRepository) FindByIDs(ctx context.Context, categoryIDs []string) ([]domain.Category, error) {
	if len(categoryIDs) == 0 {
		return nil, nil
	}
	rows, err := conn(ctx, r.db).QueryContext(ctx, `
		SELECT id, name, handle, type, created_at, updated_at
		FROM categories WHERE id = ANY($1)
		ORDER BY name`, pq.Array(categoryIDs))
	if err != nil {
		return nil, WrapError("categories.findByIDs", err)
	}
	defer rows.Close()

	var categories []domain.Category
	for rows.Next() {
		var category domain.Category
		if err := rows.Scan(&category.ID, &category.Name, &category.Handle, &category.Type,
			&category.CreatedAt, &category.UpdatedAt); err != nil {
			return nil, WrapError("categories.findByIDs", err)
		}
		categories = append(categories, category)
	}
	return categories, WrapError("categories.findByIDs", rows.Err())
}

func (r *CategoryRepository) Insert(ctx context.Context, category domain.Category) error {
	_, err := conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO categories (id, name, handle, type, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		category.ID, category.Name, category.Handle, category.Type, category.CreatedAt, category.UpdatedAt)
	return WrapError("categories.insert", err)
}

func (r *CategoryRepository) Update(ctx context.Context, category domain.Category) error {
	res, err := conn(ctx, r.db).ExecContext(ctx, `
		UPDATE categories SET name = $2, handle = $3, type = $4, updated_at = $5
		WHERE id = $1`,
		category.ID, category.Name, category.Handle, category.Type, category.UpdatedAt)
	if err != nil {
		return WrapError("categories.update", err)
	}
	return requireOneRow("categories.update", res, "category %s not found", category.ID)
}

func (r *CategoryRepository) Delete(ctx context.Context, categoryID string) error {
	res, err := conn(ctx, r.db).ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, categoryID)
	if err != nil {
		return WrapError("categories.delete", err)
	}
	return requireOneRow("categories.delete", res, "category %s not found", categoryID)
}

func (r *CategoryRepository) CountProducts(ctx context.Context, categoryID string) (int, error) {
	var count int
	err := conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM product_categories WHERE category_id = $1`, categoryID).Scan(&count)
	if err != nil {
		return 0, WrapError("categories.countProducts", err)
	}
	return count, nil
}
