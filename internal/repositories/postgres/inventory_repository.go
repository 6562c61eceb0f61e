package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lylaw27/glaze-store/internal/repositories"
)

// InventoryRepository mutates products.stock with guarded updates.
type InventoryRepository struct {
	db *sql.DB
}

var _ repositories.InventoryRepository = (*InventoryRepository)(nil)

// NewInventoryRepository constructs a repository bound to db.
func NewInventoryRepository(db *sql.DB) *InventoryRepository {
	return &InventoryRepository{db: db}
}

// Decrement subtracts the quantity only while enough stock remains. The row lock taken by the UPDATE
// serialises concurrent decrements of the same product.
func (r *InventoryRepository) Decrement(ctx context.Context, adjustment repositories.InventoryAdjustment) error {
	const op = "inventory.decrement"
	if adjustment.Quantity <= 0 {
		return fmt.Errorf("%s: quantity must be positive", op)
	}

	q := conn(ctx, r.db)
	res, err := q.ExecContext(ctx, `
		UPDATE products SET stock = stock - $1, updated_at = $3
		WHERE id = $2 AND stock >= $1`,
		adjustment.Quantity, adjustment.ProductID, adjustment.Now)
	if err != nil {
		return WrapError(op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return WrapError(op, err)
	}
	if affected == 1 {
		return nil
	}

	var exists bool
	if err := q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, adjustment.ProductID).Scan(&exists); err != nil {
		return WrapError(op, err)
	}
	if !exists {
		invErr := repositories.NewInventoryError(repositories.InventoryErrorStockNotFound, adjustment.ProductID,
			fmt.Sprintf("product %s not found", adjustment.ProductID), nil)
		invErr.Op = op
		return invErr
	}
	invErr := repositories.NewInventoryError(repositories.InventoryErrorInsufficientStock, adjustment.ProductID,
		fmt.Sprintf("insufficient stock for product %s", adjustment.ProductID), errors.New("conditional update matched no rows"))
	invErr.Op = op
	return invErr
}

// Restock adds the quantity back to the product.
func (r *InventoryRepository) Restock(ctx context.Context, adjustment repositories.InventoryAdjustment) error {
	const op = "inventory.restock"
	if adjustment.Quantity <= 0 {
		return fmt.Errorf("%s: quantity must be positive", op)
	}
	res, err := conn(ctx, r.db).ExecContext(ctx, `
		UPDATE products SET stock = stock + $1, updated_at = $3 WHERE id = $2`,
		adjustment.Quantity, adjustment.ProductID, adjustment.Now)
	if err != nil {
		return WrapError(op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return WrapError(op, err)
	}
	if affected == 0 {
		invErr := repositories.NewInventoryError(repositories.InventoryErrorStockNotFound, adjustment.ProductID,
			fmt.Sprintf("product %s not found", adjustment.ProductID), nil)
		invErr.Op = op
		return invErr
	}
	return nil
}
