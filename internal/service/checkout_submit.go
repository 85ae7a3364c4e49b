package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/opadata/checkout-api/internal/brdoc"
	"github.com/opadata/checkout-api/internal/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const minPasswordLength = 8

// ============================================================
// CreateAccount — POST /v1/checkout/sessions/{id}/account
// ============================================================

// CreateAccount registers the registrant as a customer and advances to
// Payment. The session stays at Account on any failure so the user can
// correct the form. Concurrent calls for the same session are rejected
// while one is outstanding.
func (s *CheckoutService) CreateAccount(ctx context.Context, sessionID string, req *domain.AccountRequest) (*domain.CheckoutView, error) {
	ctx, span := checkoutTracer.Start(ctx, "CheckoutService.CreateAccount")
	defer span.End()

	state, err := s.state(sessionID)
	if err != nil {
		return nil, err
	}

	state.mu.Lock()
	session := state.Session

	if session.Step != domain.StepAccount {
		state.mu.Unlock()
		return nil, &domain.ErrInvalidTransition{From: session.Step, Action: "create account"}
	}
	if state.creatingAccount {
		state.mu.Unlock()
		return nil, &domain.ErrOperationInFlight{Operation: "create_account"}
	}

	name := strings.TrimSpace(req.Name)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if name == "" {
		state.mu.Unlock()
		return nil, &domain.ErrValidation{Field: "name", Message: "Nome é obrigatório"}
	}
	if email == "" || !strings.Contains(email, "@") {
		state.mu.Unlock()
		return nil, &domain.ErrValidation{Field: "email", Message: "E-mail inválido"}
	}
	if len(req.Password) < minPasswordLength {
		state.mu.Unlock()
		return nil, &domain.ErrValidation{
			Field:   "password",
			Message: fmt.Sprintf("Senha deve ter no mínimo %d caracteres", minPasswordLength),
		}
	}

	registrant := session.Registrant
	// The document is optional; only a non-empty one is validated.
	if taxID := brdoc.Digits(registrant.TaxID); taxID != "" && !brdoc.ValidDocument(taxID) {
		state.mu.Unlock()
		kind := "cpf"
		if len(taxID) > 11 {
			kind = "cnpj"
		}
		return nil, &domain.ErrInvalidDocument{Kind: kind}
	}
	if !registrant.AcceptedTerms {
		state.mu.Unlock()
		return nil, &domain.ErrTermsNotAccepted{}
	}

	state.creatingAccount = true
	state.mu.Unlock()

	resp, err := s.registrar.SignUp(ctx, &domain.SignUpRequest{
		Name:          name,
		Email:         email,
		Password:      req.Password,
		Phone:         registrant.Phone,
		TaxID:         registrant.TaxID,
		PostalCode:    registrant.Address.PostalCode,
		Street:        registrant.Address.Street,
		Number:        registrant.Address.Number,
		Complement:    registrant.Address.Complement,
		Neighborhood:  registrant.Address.Neighborhood,
		City:          registrant.Address.City,
		State:         registrant.Address.State,
		AcceptedTerms: registrant.AcceptedTerms,
	})

	state.mu.Lock()
	defer state.mu.Unlock()
	state.creatingAccount = false

	if err != nil {
		// Duplicate email, store failure: the session stays at Account.
		return nil, err
	}

	session.Registrant.Name = name
	session.Registrant.Email = email
	session.Registrant.CustomerID = resp.CustomerID
	s.transition(session, domain.StepPayment)
	s.metrics.IncrAccountCreated()
	s.touch(state)

	s.logger.Info("account created during checkout",
		zap.String("session_id", sessionID),
		zap.String("customer_id", resp.CustomerID),
	)
	return s.view(session), nil
}

// ============================================================
// Submit — POST /v1/checkout/sessions/{id}/submit
// ============================================================

// Submit persists the order and opens a payment session at the gateway.
// Requires an authenticated registrant at the Payment step. A second
// submit while one is outstanding is rejected, not duplicated.
func (s *CheckoutService) Submit(ctx context.Context, sessionID string) (*domain.SubmitResult, error) {
	ctx, span := checkoutTracer.Start(ctx, "CheckoutService.Submit")
	defer span.End()

	state, err := s.state(sessionID)
	if err != nil {
		return nil, err
	}

	state.mu.Lock()
	session := state.Session

	if session.Step != domain.StepPayment {
		state.mu.Unlock()
		return nil, &domain.ErrInvalidTransition{From: session.Step, Action: "submit"}
	}
	if !session.Authenticated() {
		state.mu.Unlock()
		return nil, &domain.ErrNotAuthenticated{}
	}
	if state.submittingPayment {
		state.mu.Unlock()
		return nil, &domain.ErrOperationInFlight{Operation: "submit_order"}
	}
	state.submittingPayment = true

	draft := session.Draft
	customerID := session.Registrant.CustomerID
	state.mu.Unlock()

	clearFlag := func() {
		state.mu.Lock()
		state.submittingPayment = false
		state.mu.Unlock()
	}

	amount := domain.CyclePrice(draft.MonthlyPrice, draft.BillingCycle, s.yearlyFactor)

	order := &domain.Order{
		ID:           uuid.NewString(),
		InvoiceID:    newInvoiceID(),
		CustomerID:   customerID,
		PlanID:       draft.PlanID,
		PlanName:     draft.PlanName,
		PlanType:     draft.PlanType,
		Amount:       amount,
		BillingCycle: draft.BillingCycle,
		Location:     draft.Location,
		Specs:        draft.Specs,
		Status:       domain.OrderStatusCreated,
		CreatedAt:    time.Now(),
	}

	if err := s.orders.CreateOrder(ctx, order); err != nil {
		clearFlag()
		return nil, fmt.Errorf("create order: %w", err)
	}
	s.metrics.IncrOrderCreated()

	payment, err := s.gateway.CreatePaymentSession(ctx, order.InvoiceID, orderDescription(&draft), amount)
	if err != nil {
		clearFlag()
		s.metrics.IncrPaymentSession("failed")
		s.metrics.IncrExternalError("payment-gateway")
		s.logger.Error("payment session creation failed",
			zap.String("session_id", sessionID),
			zap.String("invoice_id", order.InvoiceID),
			zap.Error(err),
		)
		return nil, err
	}

	if err := s.orders.UpdateOrderStatus(ctx, order.ID, domain.OrderStatusAwaitingPayment); err != nil {
		s.logger.Warn("order status update failed",
			zap.String("order_id", order.ID),
			zap.Error(err),
		)
	}

	s.metrics.IncrPaymentSession("success")
	s.sessions.Delete(sessionID)

	s.logger.Info("order submitted",
		zap.String("session_id", sessionID),
		zap.String("order_id", order.ID),
		zap.String("invoice_id", order.InvoiceID),
		zap.Float64("amount", amount),
	)

	return &domain.SubmitResult{
		InvoiceID: payment.InvoiceID,
		Amount:    payment.Amount,
		InitPoint: payment.InitPoint,
	}, nil
}

// ============================================================
// GetOrder — GET /v1/orders/{orderId}
// ============================================================

// GetOrder returns a customer's own order. Orders of other customers
// read as not found, never as forbidden.
func (s *CheckoutService) GetOrder(ctx context.Context, customerID, orderID string) (*domain.Order, error) {
	ctx, span := checkoutTracer.Start(ctx, "CheckoutService.GetOrder")
	defer span.End()

	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.CustomerID != customerID {
		return nil, &domain.ErrNotFound{Resource: "order", ID: orderID}
	}
	return order, nil
}

func orderDescription(draft *domain.OrderDraft) string {
	cycle := "mensal"
	if draft.BillingCycle == domain.BillingYearly {
		cycle = "anual"
	}
	return fmt.Sprintf("%s (%s)", draft.PlanName, cycle)
}

func newInvoiceID() string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return "INV-" + id[:12]
}
