package service

import (
	"context"

	"github.com/opadata/checkout-api/internal/domain"
	"github.com/opadata/checkout-api/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var catalogTracer = otel.Tracer("service/catalog")

// CatalogService serves the plan catalog the pricing pages are built
// from.
type CatalogService struct {
	plans  port.PlanStore
	logger *zap.Logger
}

// NewCatalogService creates a catalog service.
func NewCatalogService(plans port.PlanStore, logger *zap.Logger) *CatalogService {
	return &CatalogService{plans: plans, logger: logger}
}

// ListPlans returns the active plans.
func (s *CatalogService) ListPlans(ctx context.Context) ([]domain.Plan, error) {
	ctx, span := catalogTracer.Start(ctx, "CatalogService.ListPlans")
	defer span.End()

	return s.plans.ListPlans(ctx)
}

// GetPlan returns one plan by ID.
func (s *CatalogService) GetPlan(ctx context.Context, id string) (*domain.Plan, error) {
	ctx, span := catalogTracer.Start(ctx, "CatalogService.GetPlan")
	defer span.End()
	span.SetAttributes(attribute.String("plan.id", id))

	return s.plans.GetPlan(ctx, id)
}
