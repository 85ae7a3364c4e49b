// Package service — CheckoutService orchestrates the four-step checkout
// wizard: product review, configuration, account and payment. Sessions
// live in the TTL session store; nothing is persisted until submission.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/opadata/checkout-api/internal/brdoc"
	"github.com/opadata/checkout-api/internal/domain"
	"github.com/opadata/checkout-api/internal/infra/observability"
	"github.com/opadata/checkout-api/internal/mask"
	"github.com/opadata/checkout-api/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var checkoutTracer = otel.Tracer("service/checkout")

// CheckoutState is a session plus its concurrency bookkeeping. The mutex
// serializes wizard mutations; lookupSeq is the supersede token for
// address lookups; the in-flight flags are the double-submit guards.
type CheckoutState struct {
	mu      sync.Mutex
	Session *domain.CheckoutSession

	lookupSeq         uint64
	creatingAccount   bool
	submittingPayment bool
}

// AccountRegistrar creates customer accounts. Satisfied by AuthService.
type AccountRegistrar interface {
	SignUp(ctx context.Context, req *domain.SignUpRequest) (*domain.SignUpResponse, error)
}

// CheckoutService runs the checkout wizard.
type CheckoutService struct {
	sessions  port.Cache[*CheckoutState]
	customers port.CustomerStore
	orders    port.OrderStore
	lookup    port.AddressLookup
	gateway   port.PaymentGateway
	registrar AccountRegistrar
	notifier  port.Notifier
	metrics   *observability.Metrics
	logger    *zap.Logger

	yearlyFactor float64
}

// NewCheckoutService creates a checkout service.
func NewCheckoutService(
	sessions port.Cache[*CheckoutState],
	customers port.CustomerStore,
	orders port.OrderStore,
	lookup port.AddressLookup,
	gateway port.PaymentGateway,
	registrar AccountRegistrar,
	notifier port.Notifier,
	metrics *observability.Metrics,
	logger *zap.Logger,
	yearlyFactor float64,
) *CheckoutService {
	return &CheckoutService{
		sessions:     sessions,
		customers:    customers,
		orders:       orders,
		lookup:       lookup,
		gateway:      gateway,
		registrar:    registrar,
		notifier:     notifier,
		metrics:      metrics,
		logger:       logger,
		yearlyFactor: yearlyFactor,
	}
}

// ============================================================
// StartSession — POST /v1/checkout/sessions
// ============================================================

// StartSession validates the pricing-page parameters and opens a wizard
// session at ProductReview. customerID is non-empty when the request
// carried a valid access token; the registrant is then prefilled and the
// Account step will be skipped.
func (s *CheckoutService) StartSession(ctx context.Context, params *domain.PlanParams, customerID string) (*domain.CheckoutView, error) {
	ctx, span := checkoutTracer.Start(ctx, "CheckoutService.StartSession")
	defer span.End()
	span.SetAttributes(attribute.String("plan.id", params.PlanID))

	var missing []string
	if strings.TrimSpace(params.PlanID) == "" {
		missing = append(missing, "plan")
	}
	if strings.TrimSpace(params.Name) == "" {
		missing = append(missing, "name")
	}
	planType := domain.PlanType(params.Type)
	if strings.TrimSpace(params.Type) == "" || !planType.Valid() {
		missing = append(missing, "type")
	}
	price, err := domain.ParsePrice(params.Price)
	if err != nil {
		missing = append(missing, "price")
	}
	if len(missing) > 0 {
		return nil, &domain.ErrInvalidPlanParams{Missing: missing}
	}

	// Specs arrive URL-encoded; a malformed blob is dropped, not fatal.
	specs := parseSpecs(params.Specs, s.logger)

	location := domain.ServerLocation(params.Location)
	if location != domain.LocationBR && location != domain.LocationUS {
		location = domain.LocationBR
	}

	session := &domain.CheckoutSession{
		ID:   uuid.NewString(),
		Step: domain.StepProductReview,
		Draft: domain.OrderDraft{
			PlanID:       params.PlanID,
			PlanName:     params.Name,
			PlanType:     planType,
			MonthlyPrice: domain.RoundPrice(price),
			Specs:        specs,
			BillingCycle: domain.BillingMonthly,
			Location:     location,
		},
		CreatedAt: time.Now(),
	}

	if customerID != "" {
		customer, err := s.customers.GetCustomerByID(ctx, customerID)
		if err != nil {
			return nil, fmt.Errorf("load customer: %w", err)
		}
		session.Registrant = domain.Registrant{
			CustomerID:    customer.ID,
			Name:          customer.Name,
			Email:         customer.Email,
			Phone:         customer.Phone,
			TaxID:         customer.TaxID,
			Address:       customer.Address,
			AcceptedTerms: customer.AcceptedTerms,
		}
	}

	state := &CheckoutState{Session: session}
	s.sessions.Set(session.ID, state)
	s.metrics.IncrSessionStarted()

	s.logger.Info("checkout session started",
		zap.String("session_id", session.ID),
		zap.String("plan_id", params.PlanID),
		zap.Bool("authenticated", session.Authenticated()),
	)

	return s.view(session), nil
}

func parseSpecs(raw string, logger *zap.Logger) map[string]string {
	if raw == "" {
		return nil
	}
	decoded, err := url.QueryUnescape(raw)
	if err != nil {
		decoded = raw
	}
	var specs map[string]string
	if err := json.Unmarshal([]byte(decoded), &specs); err != nil {
		logger.Warn("dropping malformed plan specs", zap.Error(err))
		return nil
	}
	return specs
}

// ============================================================
// GetSession — GET /v1/checkout/sessions/{id}
// ============================================================

// GetSession returns the current wizard view. Touching an authenticated
// session parked at Account advances it to Payment, since that step has
// nothing left to collect.
func (s *CheckoutService) GetSession(ctx context.Context, sessionID string) (*domain.CheckoutView, error) {
	_, span := checkoutTracer.Start(ctx, "CheckoutService.GetSession")
	defer span.End()

	state, err := s.state(sessionID)
	if err != nil {
		return nil, err
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	if state.Session.Step == domain.StepAccount && state.Session.Authenticated() {
		s.transition(state.Session, domain.StepPayment)
	}
	return s.view(state.Session), nil
}

// ============================================================
// Advance / Back — POST /v1/checkout/sessions/{id}/advance|back
// ============================================================

// Advance moves the wizard forward one step. Authenticated sessions skip
// the Account step. The Payment step does not advance; it submits.
func (s *CheckoutService) Advance(ctx context.Context, sessionID string) (*domain.CheckoutView, error) {
	_, span := checkoutTracer.Start(ctx, "CheckoutService.Advance")
	defer span.End()

	state, err := s.state(sessionID)
	if err != nil {
		return nil, err
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	session := state.Session
	switch session.Step {
	case domain.StepProductReview:
		s.transition(session, domain.StepConfiguration)
	case domain.StepConfiguration:
		if session.Authenticated() {
			s.transition(session, domain.StepPayment)
		} else {
			s.transition(session, domain.StepAccount)
		}
	case domain.StepAccount:
		if !session.Authenticated() {
			return nil, &domain.ErrNotAuthenticated{}
		}
		s.transition(session, domain.StepPayment)
	default:
		return nil, &domain.ErrInvalidTransition{From: session.Step, Action: "advance"}
	}

	return s.view(session), nil
}

// Back moves the wizard one step back. From Payment, authenticated
// sessions return to Configuration because Account was never shown.
func (s *CheckoutService) Back(ctx context.Context, sessionID string) (*domain.CheckoutView, error) {
	_, span := checkoutTracer.Start(ctx, "CheckoutService.Back")
	defer span.End()

	state, err := s.state(sessionID)
	if err != nil {
		return nil, err
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	session := state.Session
	switch session.Step {
	case domain.StepConfiguration:
		s.transition(session, domain.StepProductReview)
	case domain.StepAccount:
		s.transition(session, domain.StepConfiguration)
	case domain.StepPayment:
		if session.Authenticated() {
			s.transition(session, domain.StepConfiguration)
		} else {
			s.transition(session, domain.StepAccount)
		}
	default:
		return nil, &domain.ErrInvalidTransition{From: session.Step, Action: "go back"}
	}

	return s.view(session), nil
}

// ============================================================
// UpdateDraft — PATCH /v1/checkout/sessions/{id}/draft
// ============================================================

// UpdateDraft applies the Configuration-step choices (billing cycle,
// server location).
func (s *CheckoutService) UpdateDraft(ctx context.Context, sessionID string, upd *domain.DraftUpdate) (*domain.CheckoutView, error) {
	_, span := checkoutTracer.Start(ctx, "CheckoutService.UpdateDraft")
	defer span.End()

	state, err := s.state(sessionID)
	if err != nil {
		return nil, err
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	session := state.Session
	if upd.BillingCycle != nil {
		switch *upd.BillingCycle {
		case domain.BillingMonthly, domain.BillingYearly:
			session.Draft.BillingCycle = *upd.BillingCycle
		default:
			return nil, &domain.ErrValidation{Field: "billingCycle", Message: "Ciclo de cobrança inválido"}
		}
	}
	if upd.Location != nil {
		switch *upd.Location {
		case domain.LocationBR, domain.LocationUS:
			session.Draft.Location = *upd.Location
		default:
			return nil, &domain.ErrValidation{Field: "location", Message: "Localização inválida"}
		}
	}

	s.touch(state)
	return s.view(session), nil
}

// ============================================================
// UpdateRegistrant — PATCH /v1/checkout/sessions/{id}/registrant
// ============================================================

// UpdateRegistrant applies a partial registrant edit. Document, phone and
// postal code are normalized to digits; masks are reapplied in the view.
func (s *CheckoutService) UpdateRegistrant(ctx context.Context, sessionID string, upd *domain.RegistrantUpdate) (*domain.CheckoutView, error) {
	_, span := checkoutTracer.Start(ctx, "CheckoutService.UpdateRegistrant")
	defer span.End()

	state, err := s.state(sessionID)
	if err != nil {
		return nil, err
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	r := &state.Session.Registrant
	if upd.Name != nil {
		r.Name = strings.TrimSpace(*upd.Name)
	}
	if upd.Email != nil {
		r.Email = strings.ToLower(strings.TrimSpace(*upd.Email))
	}
	if upd.Phone != nil {
		r.Phone = brdoc.Digits(*upd.Phone)
	}
	if upd.TaxID != nil {
		r.TaxID = brdoc.Digits(*upd.TaxID)
	}
	if upd.PostalCode != nil {
		r.Address.PostalCode = brdoc.Digits(*upd.PostalCode)
	}
	if upd.Street != nil {
		r.Address.Street = *upd.Street
	}
	if upd.Number != nil {
		r.Address.Number = *upd.Number
	}
	if upd.Complement != nil {
		r.Address.Complement = *upd.Complement
	}
	if upd.Neighborhood != nil {
		r.Address.Neighborhood = *upd.Neighborhood
	}
	if upd.City != nil {
		r.Address.City = *upd.City
	}
	if upd.State != nil {
		r.Address.State = strings.ToUpper(strings.TrimSpace(*upd.State))
	}
	if upd.AcceptedTerms != nil {
		r.AcceptedTerms = *upd.AcceptedTerms
	}

	s.touch(state)
	return s.view(state.Session), nil
}

// ============================================================
// Attach — POST /v1/checkout/sessions/{id}/attach
// ============================================================

// Attach binds an existing customer (who logged in mid-checkout) to the
// session. A session parked at Account jumps straight to Payment.
func (s *CheckoutService) Attach(ctx context.Context, sessionID, customerID string) (*domain.CheckoutView, error) {
	ctx, span := checkoutTracer.Start(ctx, "CheckoutService.Attach")
	defer span.End()

	state, err := s.state(sessionID)
	if err != nil {
		return nil, err
	}

	customer, err := s.customers.GetCustomerByID(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("load customer: %w", err)
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	session := state.Session
	session.Registrant = domain.Registrant{
		CustomerID:    customer.ID,
		Name:          customer.Name,
		Email:         customer.Email,
		Phone:         customer.Phone,
		TaxID:         customer.TaxID,
		Address:       customer.Address,
		AcceptedTerms: customer.AcceptedTerms,
	}
	if session.Step == domain.StepAccount {
		s.transition(session, domain.StepPayment)
	}

	s.logger.Info("customer attached to checkout session",
		zap.String("session_id", sessionID),
		zap.String("customer_id", customerID),
	)
	return s.view(session), nil
}

// ============================================================
// Internal helpers
// ============================================================

func (s *CheckoutService) state(sessionID string) (*CheckoutState, error) {
	state, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "checkout_session", ID: sessionID}
	}
	return state, nil
}

// transition moves the wizard cursor and records the funnel metric.
// Callers hold the state mutex.
func (s *CheckoutService) transition(session *domain.CheckoutSession, to domain.Step) {
	s.metrics.IncrStepTransition(session.Step.String(), to.String())
	session.Step = to
}

// touch re-Sets the state so the session TTL restarts on activity.
func (s *CheckoutService) touch(state *CheckoutState) {
	s.sessions.Set(state.Session.ID, state)
}

// view builds the wire representation with display masks applied.
func (s *CheckoutService) view(session *domain.CheckoutSession) *domain.CheckoutView {
	registrant := session.Registrant
	registrant.TaxID = mask.Document(registrant.TaxID)
	registrant.Phone = mask.Phone(registrant.Phone)
	registrant.Address.PostalCode = mask.PostalCode(registrant.Address.PostalCode)

	return &domain.CheckoutView{
		ID:             session.ID,
		Step:           session.Step,
		StepName:       session.Step.String(),
		Draft:          session.Draft,
		Registrant:     registrant,
		CurrentPrice:   domain.CyclePrice(session.Draft.MonthlyPrice, session.Draft.BillingCycle, s.yearlyFactor),
		YearlyPerMonth: domain.MonthlyEquivalent(session.Draft.MonthlyPrice, s.yearlyFactor),
	}
}
