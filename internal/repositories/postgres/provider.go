package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	_ "github.com/lib/pq"

	"github.com/lylaw27/glaze-store/internal/platform/config"
	"github.com/lylaw27/glaze-store/internal/repositories"
)

const defaultConnectTimeout = 10 * time.Second

//go:embed schema.sql
var schemaSQL string

// ErrStoreClosed is returned once Close has been called.
var ErrStoreClosed = errors.New("postgres: store is closed")

// Store owns the connection pool and exposes the PostgreSQL repositories.
type Store struct {
	db     *sql.DB
	closed atomic.Bool

	products   *ProductRepository
	categories *CategoryRepository
	inventory  *InventoryRepository
	orders     *OrderRepository
}

var _ repositories.Registry = (*Store)(nil)

// Open connects to PostgreSQL using cfg, verifies connectivity, and applies the schema when AutoMigrate is set.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	dsn := strings.TrimSpace(cfg.URL)
	if dsn == "" {
		return nil, errors.New("postgres: database url is required")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, WrapError("ping", err)
	}

	if cfg.AutoMigrate {
		if err := Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return NewStore(db), nil
}

// NewStore wraps an existing pool.
func NewStore(db *sql.DB) *Store {
	return &Store{
		db:         db,
		products:   NewProductRepository(db),
		categories: NewCategoryRepository(db),
		inventory:  NewInventoryRepository(db),
		orders:     NewOrderRepository(db),
	}
}

// Migrate applies the embedded schema. Statements are idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return WrapError("migrate", err)
	}
	return nil
}

// DB exposes the underlying pool.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Products() repositories.ProductRepository     { return s.products }
func (s *Store) Categories() repositories.CategoryRepository { return s.categories }
func (s *Store) Inventory() repositories.InventoryRepository { return s.inventory }
func (s *Store) Orders() repositories.OrderRepository         { return s.orders }

// RunInTx implements repositories.UnitOfWork. Work runs exactly once; a serialization failure surfaces
// as a conflict and the caller decides whether to retry.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}
	return RunTransaction(ctx, s.db, fn, WithTxAttempts(1))
}

// Ping verifies the pool can reach the database.
func (s *Store) Ping(ctx context.Context) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}
	return WrapError("ping", s.db.PingContext(ctx))
}

// Close releases the pool. It is safe to call more than once.
func (s *Store) Close(context.Context) error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.db.Close()
}
