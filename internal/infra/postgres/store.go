// Package postgres implements the plan, order and customer stores on
// PostgreSQL via pgx. Schema is managed with golang-migrate (see
// migrations/).
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opadata/checkout-api/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// Store implements the store ports on a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a postgres-backed store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Connect opens a pgx pool and verifies connectivity.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// ==================== PlanStore ====================

func (s *Store) ListPlans(ctx context.Context) ([]domain.Plan, error) {
	query := `
		SELECT id, name, type, monthly_price, specs, active, created_at
		FROM plans
		WHERE active = true
		ORDER BY monthly_price
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query plans: %w", err)
	}
	defer rows.Close()

	var plans []domain.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, *p)
	}
	return plans, rows.Err()
}

func (s *Store) GetPlan(ctx context.Context, id string) (*domain.Plan, error) {
	query := `
		SELECT id, name, type, monthly_price, specs, active, created_at
		FROM plans
		WHERE id = $1
	`

	p, err := scanPlan(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &domain.ErrNotFound{Resource: "plan", ID: id}
		}
		return nil, err
	}
	return p, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlan(row rowScanner) (*domain.Plan, error) {
	var (
		p     domain.Plan
		specs []byte
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Type, &p.MonthlyPrice, &specs, &p.Active, &p.CreatedAt); err != nil {
		return nil, err
	}
	if len(specs) > 0 {
		if err := json.Unmarshal(specs, &p.Specs); err != nil {
			return nil, fmt.Errorf("decode plan specs: %w", err)
		}
	}
	return &p, nil
}

// ==================== OrderStore ====================

func (s *Store) CreateOrder(ctx context.Context, order *domain.Order) error {
	specs, err := json.Marshal(order.Specs)
	if err != nil {
		return fmt.Errorf("encode order specs: %w", err)
	}

	query := `
		INSERT INTO orders (id, invoice_id, customer_id, plan_id, plan_name, plan_type,
			amount, billing_cycle, location, specs, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err = s.pool.Exec(ctx, query,
		order.ID, order.InvoiceID, order.CustomerID, order.PlanID, order.PlanName,
		order.PlanType, order.Amount, order.BillingCycle, order.Location,
		specs, order.Status, order.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return &domain.ErrConflict{Message: "pedido já existe"}
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	return s.getOrder(ctx, "id", id)
}

func (s *Store) GetOrderByInvoice(ctx context.Context, invoiceID string) (*domain.Order, error) {
	return s.getOrder(ctx, "invoice_id", invoiceID)
}

func (s *Store) getOrder(ctx context.Context, column, value string) (*domain.Order, error) {
	query := fmt.Sprintf(`
		SELECT id, invoice_id, customer_id, plan_id, plan_name, plan_type,
			amount, billing_cycle, location, specs, status, created_at
		FROM orders
		WHERE %s = $1
	`, column)

	var (
		o     domain.Order
		specs []byte
	)
	err := s.pool.QueryRow(ctx, query, value).Scan(
		&o.ID, &o.InvoiceID, &o.CustomerID, &o.PlanID, &o.PlanName, &o.PlanType,
		&o.Amount, &o.BillingCycle, &o.Location, &specs, &o.Status, &o.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &domain.ErrNotFound{Resource: "order", ID: value}
		}
		return nil, fmt.Errorf("select order: %w", err)
	}
	if len(specs) > 0 {
		if err := json.Unmarshal(specs, &o.Specs); err != nil {
			return nil, fmt.Errorf("decode order specs: %w", err)
		}
	}
	return &o, nil
}

func (s *Store) UpdateOrderStatus(ctx context.Context, id, status string) error {
	result, err := s.pool.Exec(ctx, `UPDATE orders SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return &domain.ErrNotFound{Resource: "order", ID: id}
	}
	return nil
}

// ==================== CustomerStore ====================

func (s *Store) CreateCustomer(ctx context.Context, c *domain.Customer, passwordHash string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO customers (id, name, email, phone, tax_id, postal_code, street, number,
			complement, neighborhood, city, state, accepted_terms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err = tx.Exec(ctx, query,
		c.ID, c.Name, c.Email, c.Phone, c.TaxID,
		c.Address.PostalCode, c.Address.Street, c.Address.Number, c.Address.Complement,
		c.Address.Neighborhood, c.Address.City, c.Address.State,
		c.AcceptedTerms, c.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return &domain.ErrConflict{Message: "e-mail já cadastrado"}
		}
		return fmt.Errorf("insert customer: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO credentials (customer_id, password_hash, failed_attempts) VALUES ($1, $2, 0)`,
		c.ID, passwordHash,
	)
	if err != nil {
		return fmt.Errorf("insert credentials: %w", err)
	}

	return tx.Commit(ctx)
}

const customerColumns = `id, name, email, phone, tax_id, postal_code, street, number,
	complement, neighborhood, city, state, accepted_terms, created_at`

func (s *Store) GetCustomerByID(ctx context.Context, id string) (*domain.Customer, error) {
	return s.getCustomer(ctx, "id", id)
}

func (s *Store) GetCustomerByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	return s.getCustomer(ctx, "email", email)
}

func (s *Store) getCustomer(ctx context.Context, column, value string) (*domain.Customer, error) {
	query := fmt.Sprintf(`SELECT %s FROM customers WHERE %s = $1`, customerColumns, column)

	var c domain.Customer
	err := s.pool.QueryRow(ctx, query, value).Scan(
		&c.ID, &c.Name, &c.Email, &c.Phone, &c.TaxID,
		&c.Address.PostalCode, &c.Address.Street, &c.Address.Number, &c.Address.Complement,
		&c.Address.Neighborhood, &c.Address.City, &c.Address.State,
		&c.AcceptedTerms, &c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &domain.ErrNotFound{Resource: "customer", ID: value}
		}
		return nil, fmt.Errorf("select customer: %w", err)
	}
	return &c, nil
}

func (s *Store) GetCredentials(ctx context.Context, customerID string) (*domain.Credentials, error) {
	query := `
		SELECT customer_id, password_hash, failed_attempts, locked_until, last_login_at
		FROM credentials
		WHERE customer_id = $1
	`

	var cr domain.Credentials
	err := s.pool.QueryRow(ctx, query, customerID).Scan(
		&cr.CustomerID, &cr.PasswordHash, &cr.FailedAttempts, &cr.LockedUntil, &cr.LastLoginAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &domain.ErrNotFound{Resource: "credentials", ID: customerID}
		}
		return nil, fmt.Errorf("select credentials: %w", err)
	}
	return &cr, nil
}

func (s *Store) SetFailedAttempts(ctx context.Context, customerID string, attempts int, lockedUntil *time.Time) error {
	result, err := s.pool.Exec(ctx,
		`UPDATE credentials SET failed_attempts = $1, locked_until = $2 WHERE customer_id = $3`,
		attempts, lockedUntil, customerID,
	)
	if err != nil {
		return fmt.Errorf("update failed attempts: %w", err)
	}
	if result.RowsAffected() == 0 {
		return &domain.ErrNotFound{Resource: "credentials", ID: customerID}
	}
	return nil
}

func (s *Store) TouchLogin(ctx context.Context, customerID string) error {
	result, err := s.pool.Exec(ctx,
		`UPDATE credentials SET last_login_at = now(), failed_attempts = 0, locked_until = NULL WHERE customer_id = $1`,
		customerID,
	)
	if err != nil {
		return fmt.Errorf("touch login: %w", err)
	}
	if result.RowsAffected() == 0 {
		return &domain.ErrNotFound{Resource: "credentials", ID: customerID}
	}
	return nil
}

func (s *Store) StoreRefreshToken(ctx context.Context, customerID, tokenHash string, expiresAt time.Time) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO refresh_tokens (token_hash, customer_id, expires_at, revoked) VALUES ($1, $2, $3, false)`,
		tokenHash, customerID, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}
	return nil
}

func (s *Store) GetRefreshToken(ctx context.Context, tokenHash string) (*domain.RefreshToken, error) {
	query := `
		SELECT token_hash, customer_id, expires_at, revoked
		FROM refresh_tokens
		WHERE token_hash = $1
	`

	var rt domain.RefreshToken
	err := s.pool.QueryRow(ctx, query, tokenHash).Scan(&rt.TokenHash, &rt.CustomerID, &rt.ExpiresAt, &rt.Revoked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &domain.ErrNotFound{Resource: "refresh_token", ID: tokenHash}
		}
		return nil, fmt.Errorf("select refresh token: %w", err)
	}
	return &rt, nil
}

func (s *Store) RevokeRefreshToken(ctx context.Context, tokenHash string) error {
	result, err := s.pool.Exec(ctx,
		`UPDATE refresh_tokens SET revoked = true WHERE token_hash = $1`,
		tokenHash,
	)
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	if result.RowsAffected() == 0 {
		return &domain.ErrNotFound{Resource: "refresh_token", ID: tokenHash}
	}
	return nil
}

func (s *Store) RevokeAllRefreshTokens(ctx context.Context, customerID string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE refresh_tokens SET revoked = true WHERE customer_id = $1`,
		customerID,
	)
	if err != nil {
		return fmt.Errorf("revoke refresh tokens: %w", err)
	}
	return nil
}
