package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"

	"github.com/XSAM/otelsql"
	"github.com/lib/pq"
	"github.com/trendhub-shop/commerce-platform/internal/config"
	"github.com/trendhub-shop/commerce-platform/internal/errors"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx, so every repository can run
// either standalone or inside a Store.Transact block.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Repos bundles one repository per aggregate, all bound to the same DBTX.
type Repos struct {
	User     UserRepository
	Product  ProductRepository
	Cart     CartRepository
	Coupon   CouponRepository
	Order    OrderRepository
	Settings SettingsRepository
}

func newRepos(db DBTX) *Repos {
	return &Repos{
		User:     NewUserRepo(db),
		Product:  NewProductRepo(db),
		Cart:     NewCartRepo(db),
		Coupon:   NewCouponRepo(db),
		Order:    NewOrderRepo(db),
		Settings: NewSettingsRepo(db),
	}
}

// Store owns the database handle. Multi-step mutations go through Transact so
// concurrent requests against the same cart, coupon or order cannot lose
// updates; the row locks are taken by the repositories' *ForUpdate queries.
type Store interface {
	Repos() *Repos
	Transact(ctx context.Context, fn func(r *Repos) error) error
	DB() *sql.DB
	Close() error
}

type store struct {
	db    *sql.DB
	repos *Repos
}

func New(cfg *config.Config) (Store, error) {

	db, err := otelsql.Open("postgres", cfg.Database.GetDSN(),
		otelsql.WithAttributes(semconv.DBSystemPostgreSQL))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.Database.ConnMaxIdleTime)

	// Test the connection to make sure DB is reachable
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := initSchema(db); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &store{db: db, repos: newRepos(db)}, nil
}

// NewWithDB wires a Store over an already-open handle; used by the tests.
func NewWithDB(db *sql.DB) Store {
	return &store{db: db, repos: newRepos(db)}
}

func (s *store) Repos() *Repos {
	return s.repos
}

func (s *store) DB() *sql.DB {
	return s.db
}

func (s *store) Close() error {
	return s.db.Close()
}

func (s *store) Transact(ctx context.Context, fn func(r *Repos) error) error {

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(newRepos(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}

		if isRetryableTxError(err) {
			return errors.ConflictError("Concurrent update conflict, retry the request").WithError(err)
		}

		return err
	}

	if err := tx.Commit(); err != nil {
		if isRetryableTxError(err) {
			return errors.ConflictError("Concurrent update conflict, retry the request").WithError(err)
		}

		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// isRetryableTxError matches the Postgres aborts a client is expected to
// retry: serialization failure and deadlock.
func isRetryableTxError(err error) bool {
	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) {
		return pqErr.Code == "40001" || pqErr.Code == "40P01"
	}

	return false
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id SERIAL PRIMARY KEY,
		email VARCHAR(255) UNIQUE NOT NULL,
		name VARCHAR(255) NOT NULL,
		address TEXT,
		role VARCHAR(20) NOT NULL DEFAULT 'customer',
		created_at TIMESTAMP NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS products (
		id SERIAL PRIMARY KEY,
		name VARCHAR(200) NOT NULL,
		description TEXT,
		image_cover TEXT,
		price DECIMAL(10,2) NOT NULL,
		price_after_discount DECIMAL(10,2) NOT NULL DEFAULT 0,
		quantity INTEGER NOT NULL DEFAULT 0,
		sold INTEGER NOT NULL DEFAULT 0,
		status VARCHAR(20) NOT NULL DEFAULT 'active', -- active, out_of_stock, discontinued
		created_at TIMESTAMP NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS coupons (
		id SERIAL PRIMARY KEY,
		code VARCHAR(50) UNIQUE NOT NULL,
		discount DECIMAL(5,2) NOT NULL,
		type VARCHAR(20) NOT NULL, -- percentage, fixed
		expiration_date DATE NOT NULL,
		max_usage INTEGER NOT NULL,
		current_usage INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS carts (
		id SERIAL PRIMARY KEY,
		user_id INTEGER UNIQUE NOT NULL REFERENCES users(id),
		total_price DECIMAL(10,2) NOT NULL DEFAULT 0,
		total_price_after_discount DECIMAL(10,2) NOT NULL DEFAULT 0,
		coupon_id INTEGER REFERENCES coupons(id),
		created_at TIMESTAMP NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS cart_items (
		id SERIAL PRIMARY KEY,
		cart_id INTEGER NOT NULL REFERENCES carts(id) ON DELETE CASCADE,
		product_id INTEGER NOT NULL REFERENCES products(id),
		quantity INTEGER NOT NULL CHECK (quantity >= 1),
		created_at TIMESTAMP NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
		UNIQUE (cart_id, product_id)
	);

	CREATE TABLE IF NOT EXISTS orders (
		id SERIAL PRIMARY KEY,
		order_number VARCHAR(30) UNIQUE,
		user_id INTEGER NOT NULL REFERENCES users(id),
		tax_price DECIMAL(10,2) NOT NULL DEFAULT 0,
		shipping_price DECIMAL(10,2) NOT NULL DEFAULT 0,
		total_order_price DECIMAL(10,2) NOT NULL,
		payment_method_type VARCHAR(10) NOT NULL DEFAULT 'card', -- cash, card
		is_paid BOOLEAN NOT NULL DEFAULT FALSE,
		paid_at TIMESTAMP,
		is_delivered BOOLEAN NOT NULL DEFAULT FALSE,
		delivered_at TIMESTAMP,
		shipping_address TEXT,
		stripe_checkout_id VARCHAR(255),
		status VARCHAR(20) NOT NULL DEFAULT 'pending', -- pending, paid, failed, cancelled
		created_at TIMESTAMP NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS order_items (
		id SERIAL PRIMARY KEY,
		order_id INTEGER NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		product_id INTEGER NOT NULL REFERENCES products(id),
		quantity INTEGER NOT NULL CHECK (quantity >= 1),
		unit_price DECIMAL(10,2) NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS settings (
		id SERIAL PRIMARY KEY,
		store_name VARCHAR(255),
		store_email VARCHAR(255),
		store_phone VARCHAR(20),
		store_address VARCHAR(255),
		store_logo VARCHAR(255),
		tax_rate DECIMAL(4,2) NOT NULL DEFAULT 0,
		tax_enabled BOOLEAN NOT NULL DEFAULT TRUE,
		shipping_rate DECIMAL(4,2) NOT NULL DEFAULT 0,
		shipping_enabled BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP NOT NULL DEFAULT NOW()
	);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to execute schema creation: %w", err)
	}

	return nil
}
