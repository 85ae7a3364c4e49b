// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"
	"time"

	"github.com/opadata/checkout-api/internal/domain"
)

// AddressLookup resolves an 8-digit CEP into a canonical address.
// Implementations return *domain.ErrNotFound when the service reports an
// unknown code and *domain.ErrLookupFailed on transport failure.
type AddressLookup interface {
	Lookup(ctx context.Context, cep string) (*domain.Address, error)
}

// PaymentGateway creates hosted payment sessions at the external gateway.
type PaymentGateway interface {
	CreatePaymentSession(ctx context.Context, invoiceID, description string, amount float64) (*domain.PaymentSession, error)
}

// PlanStore is the content-store capability for the plan catalog.
type PlanStore interface {
	ListPlans(ctx context.Context) ([]domain.Plan, error)
	GetPlan(ctx context.Context, id string) (*domain.Plan, error)
}

// OrderStore persists submitted orders. Gateway callbacks reference
// orders by invoice, hence the secondary lookup.
type OrderStore interface {
	CreateOrder(ctx context.Context, order *domain.Order) error
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	GetOrderByInvoice(ctx context.Context, invoiceID string) (*domain.Order, error)
	UpdateOrderStatus(ctx context.Context, id, status string) error
}

// CustomerStore persists registered customers and their credentials.
type CustomerStore interface {
	CreateCustomer(ctx context.Context, c *domain.Customer, passwordHash string) error
	GetCustomerByID(ctx context.Context, id string) (*domain.Customer, error)
	GetCustomerByEmail(ctx context.Context, email string) (*domain.Customer, error)

	GetCredentials(ctx context.Context, customerID string) (*domain.Credentials, error)
	SetFailedAttempts(ctx context.Context, customerID string, attempts int, lockedUntil *time.Time) error
	TouchLogin(ctx context.Context, customerID string) error

	StoreRefreshToken(ctx context.Context, customerID, tokenHash string, expiresAt time.Time) error
	GetRefreshToken(ctx context.Context, tokenHash string) (*domain.RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, tokenHash string) error
	RevokeAllRefreshTokens(ctx context.Context, customerID string) error
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}

// Notifier surfaces transient, non-blocking notices to the user (e.g.
// "CEP não encontrado"). It is a required capability: tests inject the
// no-op implementation instead of nil-checking a callback.
type Notifier interface {
	Notify(sessionID, level, message string)
}

// NopNotifier discards all notices.
type NopNotifier struct{}

func (NopNotifier) Notify(string, string, string) {}
