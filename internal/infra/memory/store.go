// Package memory provides in-memory store implementations. They back
// local development and tests; production deployments point DATABASE_URL
// at Postgres instead.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/opadata/checkout-api/internal/domain"
)

// Store implements the plan, order and customer store ports with
// mutex-guarded maps.
type Store struct {
	mu sync.RWMutex

	plans         map[string]domain.Plan
	orders        map[string]*domain.Order
	customers     map[string]*domain.Customer
	byEmail       map[string]string
	credentials   map[string]*domain.Credentials
	refreshTokens map[string]*domain.RefreshToken
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		plans:         make(map[string]domain.Plan),
		orders:        make(map[string]*domain.Order),
		customers:     make(map[string]*domain.Customer),
		byEmail:       make(map[string]string),
		credentials:   make(map[string]*domain.Credentials),
		refreshTokens: make(map[string]*domain.RefreshToken),
	}
}

// NewStoreWithCatalog creates an in-memory store seeded with a small
// plan catalog for local development.
func NewStoreWithCatalog() *Store {
	s := NewStore()
	now := time.Now()
	for _, p := range []domain.Plan{
		{
			ID: "vps-start", Name: "VPS Start", Type: domain.PlanVPS,
			MonthlyPrice: 29.90,
			Specs:        map[string]string{"cpu": "2 vCPU", "ram": "2 GB", "disk": "40 GB NVMe"},
			Active:       true, CreatedAt: now,
		},
		{
			ID: "vps-pro", Name: "VPS Pro", Type: domain.PlanVPS,
			MonthlyPrice: 89.90,
			Specs:        map[string]string{"cpu": "4 vCPU", "ram": "8 GB", "disk": "120 GB NVMe"},
			Active:       true, CreatedAt: now,
		},
		{
			ID: "vps-eco-1", Name: "VPS Economy I", Type: domain.PlanVPSEconomy,
			MonthlyPrice: 19.90,
			Specs:        map[string]string{"cpu": "1 vCPU", "ram": "1 GB", "disk": "20 GB SSD"},
			Active:       true, CreatedAt: now,
		},
		{
			ID: "dedi-e2336", Name: "Dedicado Xeon E-2336", Type: domain.PlanDedicated,
			MonthlyPrice: 699.00,
			Specs:        map[string]string{"cpu": "Xeon E-2336", "ram": "32 GB", "disk": "2x 480 GB SSD"},
			Active:       true, CreatedAt: now,
		},
	} {
		s.plans[p.ID] = p
	}
	return s
}

// ==================== PlanStore ====================

func (s *Store) ListPlans(ctx context.Context) ([]domain.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	plans := make([]domain.Plan, 0, len(s.plans))
	for _, p := range s.plans {
		if p.Active {
			plans = append(plans, p)
		}
	}
	return plans, nil
}

func (s *Store) GetPlan(ctx context.Context, id string) (*domain.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.plans[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "plan", ID: id}
	}
	return &p, nil
}

// ==================== OrderStore ====================

func (s *Store) CreateOrder(ctx context.Context, order *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orders[order.ID]; exists {
		return &domain.ErrConflict{Message: "pedido já existe"}
	}
	cp := *order
	s.orders[order.ID] = &cp
	return nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "order", ID: id}
	}
	cp := *o
	return &cp, nil
}

func (s *Store) GetOrderByInvoice(ctx context.Context, invoiceID string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, o := range s.orders {
		if o.InvoiceID == invoiceID {
			cp := *o
			return &cp, nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "order", ID: invoiceID}
}

func (s *Store) UpdateOrderStatus(ctx context.Context, id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return &domain.ErrNotFound{Resource: "order", ID: id}
	}
	o.Status = status
	return nil
}

// ==================== CustomerStore ====================

func (s *Store) CreateCustomer(ctx context.Context, c *domain.Customer, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[c.Email]; exists {
		return &domain.ErrConflict{Message: "e-mail já cadastrado"}
	}

	cp := *c
	s.customers[c.ID] = &cp
	s.byEmail[c.Email] = c.ID
	s.credentials[c.ID] = &domain.Credentials{
		CustomerID:   c.ID,
		PasswordHash: passwordHash,
	}
	return nil
}

func (s *Store) GetCustomerByID(ctx context.Context, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.customers[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "customer", ID: id}
	}
	cp := *c
	return &cp, nil
}

func (s *Store) GetCustomerByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "customer", ID: email}
	}
	cp := *s.customers[id]
	return &cp, nil
}

func (s *Store) GetCredentials(ctx context.Context, customerID string) (*domain.Credentials, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cr, ok := s.credentials[customerID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "credentials", ID: customerID}
	}
	cp := *cr
	return &cp, nil
}

func (s *Store) SetFailedAttempts(ctx context.Context, customerID string, attempts int, lockedUntil *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cr, ok := s.credentials[customerID]
	if !ok {
		return &domain.ErrNotFound{Resource: "credentials", ID: customerID}
	}
	cr.FailedAttempts = attempts
	cr.LockedUntil = lockedUntil
	return nil
}

func (s *Store) TouchLogin(ctx context.Context, customerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cr, ok := s.credentials[customerID]
	if !ok {
		return &domain.ErrNotFound{Resource: "credentials", ID: customerID}
	}
	now := time.Now()
	cr.LastLoginAt = &now
	cr.FailedAttempts = 0
	cr.LockedUntil = nil
	return nil
}

func (s *Store) StoreRefreshToken(ctx context.Context, customerID, tokenHash string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.refreshTokens[tokenHash] = &domain.RefreshToken{
		CustomerID: customerID,
		TokenHash:  tokenHash,
		ExpiresAt:  expiresAt,
	}
	return nil
}

func (s *Store) GetRefreshToken(ctx context.Context, tokenHash string) (*domain.RefreshToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rt, ok := s.refreshTokens[tokenHash]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "refresh_token", ID: tokenHash}
	}
	cp := *rt
	return &cp, nil
}

func (s *Store) RevokeRefreshToken(ctx context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rt, ok := s.refreshTokens[tokenHash]
	if !ok {
		return &domain.ErrNotFound{Resource: "refresh_token", ID: tokenHash}
	}
	rt.Revoked = true
	return nil
}

func (s *Store) RevokeAllRefreshTokens(ctx context.Context, customerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rt := range s.refreshTokens {
		if rt.CustomerID == customerID {
			rt.Revoked = true
		}
	}
	return nil
}
