package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	domain "github.com/lylaw27/glaze-store/internal/domain"
	"github.com/lylaw27/glaze-store/internal/platform/pagination"
	"github.com/lylaw27/glaze-store/internal/repositories"
)

const orderColumns = `o.id, o.customer_name, o.customer_email, o.customer_address, o.total_amount, o.status,
	o.payment_id, o.created_at, o.updated_at`

// OrderRepository persists order headers and lines.
type OrderRepository struct {
	db *sql.DB
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)

// NewOrderRepository constructs a repository bound to db.
func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	const op = "orders.insert"
	q := conn(ctx, r.db)
	_, err := q.ExecContext(ctx, `
		INSERT INTO orders (id, customer_name, customer_email, customer_address, total_amount, status, payment_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		order.ID, order.CustomerName, order.CustomerEmail, order.CustomerAddress, order.TotalAmount,
		string(order.Status), order.PaymentID, order.CreatedAt, order.UpdatedAt)
	if err != nil {
		return WrapError(op, err)
	}
	for _, item := range order.Items {
		if _, err := q.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, product_id, quantity, price)
			VALUES ($1, $2, $3, $4, $5)`,
			item.ID, order.ID, item.ProductID, item.Quantity, item.Price); err != nil {
			return WrapError(op, err)
		}
	}
	return nil
}

func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	const op = "orders.findByID"
	row := conn(ctx, r.db).QueryRowContext(ctx, fmt.Sprintf(`SELECT %s FROM orders o WHERE o.id = $1`, orderColumns), orderID)
	order, err := scanOrder(row)
	if err != nil {
		return domain.Order{}, WrapError(op, err)
	}
	orders := []domain.Order{order}
	if err := r.loadItems(ctx, orders); err != nil {
		return domain.Order{}, err
	}
	return orders[0], nil
}

func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	const op = "orders.list"
	cursor, err := pagination.DecodeToken(filter.Pagination.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}
	limit := pagination.NormalizePageSize(filter.Pagination.PageSize, pagination.DefaultPageSize, pagination.DefaultMaxPageSize)

	where := newWhere()
	if len(filter.Status) > 0 {
		statuses := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			statuses[i] = string(status)
		}
		where.add("o.status = ANY(%s)", pq.Array(statuses))
	}
	if !cursor.IsZero() {
		where.add("(o.created_at, o.id) < (%s, %s)", cursor.CreatedAt, cursor.ID)
	}
	query := fmt.Sprintf(`SELECT %s FROM orders o%s ORDER BY o.created_at DESC, o.id DESC LIMIT %s`,
		orderColumns, where.sql(), where.arg(limit+1))

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, where.args...)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, WrapError(op, err)
	}
	orders := []domain.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return domain.CursorPage[domain.Order]{}, WrapError(op, err)
		}
		orders = append(orders, order)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return domain.CursorPage[domain.Order]{}, WrapError(op, err)
	}

	page := domain.CursorPage[domain.Order]{}
	if len(orders) > limit {
		orders = orders[:limit]
		last := orders[len(orders)-1]
		token, err := pagination.EncodeToken(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
		if err != nil {
			return domain.CursorPage[domain.Order]{}, err
		}
		page.NextPageToken = token
	}
	if err := r.loadItems(ctx, orders); err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}
	page.Items = orders
	return page, nil
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, update repositories.OrderStatusUpdate) error {
	const op = "orders.updateStatus"
	q := conn(ctx, r.db)
	res, err := q.ExecContext(ctx, `
		UPDATE orders SET status = $3, updated_at = $4
		WHERE id = $1 AND status = $2`,
		update.OrderID, string(update.Expected), string(update.Next), update.Now)
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
	if err := q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, update.OrderID).Scan(&exists); err != nil {
		return WrapError(op, err)
	}
	if !exists {
		return notFound(op, "order %s not found", update.OrderID)
	}
	return conflict(op, "order %s is no longer %s", update.OrderID, update.Expected)
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var (
		order     domain.Order
		status    string
		paymentID sql.NullString
	)
	if err := row.Scan(&order.ID, &order.CustomerName, &order.CustomerEmail, &order.CustomerAddress,
		&order.TotalAmount, &status, &paymentID, &order.CreatedAt, &order.UpdatedAt); err != nil {
		return domain.Order{}, err
	}
	order.Status = domain.OrderStatus(status)
	if paymentID.Valid {
		value := paymentID.String
		order.PaymentID = &value
	}
	order.Items = []domain.OrderItem{}
	return order, nil
}

func (r *OrderRepository) loadItems(ctx context.Context, orders []domain.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]string, len(orders))
	index := make(map[string]int, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
		index[orders[i].ID] = i
	}

	return forEachRow(ctx, conn(ctx, r.db), "orders.loadItems", `
		SELECT i.id, i.order_id, i.product_id, i.quantity, i.price,
			p.id, p.name, p.handle, p.price, p.stock, p.status, p.images
		FROM order_items i JOIN products p ON p.id = i.product_id
		WHERE i.order_id = ANY($1)
		ORDER BY i.order_id, i.id`, []any{pq.Array(ids)}, func(rows *sql.Rows) error {
		var (
			item    domain.OrderItem
			product domain.ProductSummary
			status  string
			images  pq.StringArray
		)
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity, &item.Price,
			&product.ID, &product.Name, &product.Handle, &product.Price, &product.Stock, &status, &images); err != nil {
			return err
		}
		product.Status = domain.ProductStatus(status)
		product.Images = nonNilStrings(images)
		item.Product = &product
		if i, ok := index[item.OrderID]; ok {
			orders[i].Items = append(orders[i].Items, item)
		}
		return nil
	})
}
