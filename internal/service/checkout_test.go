package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/opadata/checkout-api/internal/domain"
	"github.com/opadata/checkout-api/internal/infra/memory"
	"github.com/opadata/checkout-api/internal/infra/observability"
	"github.com/opadata/checkout-api/internal/port"

	"go.uber.org/zap"
)

// ==================== test doubles ====================

type mapCache[T any] struct {
	mu    sync.Mutex
	items map[string]T
}

func newMapCache[T any]() *mapCache[T] {
	return &mapCache[T]{items: make(map[string]T)}
}

func (c *mapCache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.items[key]
	return v, ok
}

func (c *mapCache[T]) Set(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = value
}

func (c *mapCache[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

type mockLookup struct {
	mu        sync.Mutex
	addresses map[string]*domain.Address
	errs      map[string]error
	blockers  map[string]chan struct{}
}

func newMockLookup() *mockLookup {
	return &mockLookup{
		addresses: make(map[string]*domain.Address),
		errs:      make(map[string]error),
		blockers:  make(map[string]chan struct{}),
	}
}

func (m *mockLookup) Lookup(ctx context.Context, cep string) (*domain.Address, error) {
	m.mu.Lock()
	blocker := m.blockers[cep]
	m.mu.Unlock()
	if blocker != nil {
		<-blocker
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.errs[cep]; ok {
		return nil, err
	}
	if addr, ok := m.addresses[cep]; ok {
		cp := *addr
		return &cp, nil
	}
	return nil, &domain.ErrNotFound{Resource: "cep", ID: cep}
}

type mockGateway struct {
	mu       sync.Mutex
	calls    []float64
	err      error
	blocker  chan struct{}
	lastDesc string
}

func (m *mockGateway) CreatePaymentSession(ctx context.Context, invoiceID, description string, amount float64) (*domain.PaymentSession, error) {
	if m.blocker != nil {
		<-m.blocker
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, amount)
	m.lastDesc = description
	if m.err != nil {
		return nil, m.err
	}
	return &domain.PaymentSession{
		ID:        "pref-1",
		InvoiceID: invoiceID,
		Amount:    amount,
		InitPoint: "https://pay.example.com/init/pref-1",
	}, nil
}

type mockRegistrar struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (m *mockRegistrar) SignUp(ctx context.Context, req *domain.SignUpRequest) (*domain.SignUpResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return &domain.SignUpResponse{CustomerID: "cust-1", Message: "ok"}, nil
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []string
}

func (n *recordingNotifier) Notify(sessionID, level, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, message)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.notices)
}

type checkoutFixture struct {
	svc       *CheckoutService
	sessions  *mapCache[*CheckoutState]
	store     *memory.Store
	lookup    *mockLookup
	gateway   *mockGateway
	registrar *mockRegistrar
	notifier  *recordingNotifier
}

func newCheckoutFixture(t *testing.T) *checkoutFixture {
	t.Helper()
	f := &checkoutFixture{
		sessions:  newMapCache[*CheckoutState](),
		store:     memory.NewStore(),
		lookup:    newMockLookup(),
		gateway:   &mockGateway{},
		registrar: &mockRegistrar{},
		notifier:  &recordingNotifier{},
	}
	f.svc = NewCheckoutService(
		f.sessions,
		f.store,
		f.store,
		f.lookup,
		f.gateway,
		f.registrar,
		f.notifier,
		observability.NewMetrics(),
		zap.NewNop(),
		0.85,
	)
	return f
}

var _ port.Cache[*CheckoutState] = (*mapCache[*CheckoutState])(nil)

func validParams() *domain.PlanParams {
	return &domain.PlanParams{
		PlanID: "vps-start",
		Name:   "VPS Start",
		Type:   "vps",
		Price:  "29,90",
	}
}

// ==================== StartSession ====================

func TestStartSessionMissingParams(t *testing.T) {
	f := newCheckoutFixture(t)

	_, err := f.svc.StartSession(context.Background(), &domain.PlanParams{Name: "VPS Start"}, "")

	var invalid *domain.ErrInvalidPlanParams
	if !errors.As(err, &invalid) {
		t.Fatalf("error = %v, want *domain.ErrInvalidPlanParams", err)
	}
	want := map[string]bool{"plan": true, "type": true, "price": true}
	if len(invalid.Missing) != len(want) {
		t.Fatalf("missing = %v", invalid.Missing)
	}
	for _, m := range invalid.Missing {
		if !want[m] {
			t.Errorf("unexpected missing field %q", m)
		}
	}
}

func TestStartSessionInvalidPrice(t *testing.T) {
	f := newCheckoutFixture(t)

	params := validParams()
	params.Price = "zero"
	if _, err := f.svc.StartSession(context.Background(), params, ""); err == nil {
		t.Fatal("expected error for unparseable price")
	}

	params.Price = "-10,00"
	if _, err := f.svc.StartSession(context.Background(), params, ""); err == nil {
		t.Fatal("expected error for negative price")
	}
}

func TestStartSessionDefaults(t *testing.T) {
	f := newCheckoutFixture(t)

	view, err := f.svc.StartSession(context.Background(), validParams(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if view.Step != domain.StepProductReview {
		t.Errorf("step = %v, want ProductReview", view.Step)
	}
	if view.Draft.BillingCycle != domain.BillingMonthly {
		t.Errorf("cycle = %v, want monthly", view.Draft.BillingCycle)
	}
	if view.Draft.Location != domain.LocationBR {
		t.Errorf("location = %v, want br", view.Draft.Location)
	}
	if view.Draft.MonthlyPrice != 29.90 {
		t.Errorf("price = %v, want 29.90", view.Draft.MonthlyPrice)
	}
	if view.CurrentPrice != 29.90 {
		t.Errorf("current price = %v, want 29.90", view.CurrentPrice)
	}
}

func TestStartSessionParsesSpecs(t *testing.T) {
	f := newCheckoutFixture(t)

	params := validParams()
	params.Specs = "%7B%22cpu%22%3A%222%20vCPU%22%2C%22ram%22%3A%222%20GB%22%7D"

	view, err := f.svc.StartSession(context.Background(), params, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.Draft.Specs["cpu"] != "2 vCPU" {
		t.Errorf("specs = %v", view.Draft.Specs)
	}
}

func TestStartSessionMalformedSpecsDropped(t *testing.T) {
	f := newCheckoutFixture(t)

	params := validParams()
	params.Specs = "{not json"

	view, err := f.svc.StartSession(context.Background(), params, "")
	if err != nil {
		t.Fatalf("malformed specs must not be fatal: %v", err)
	}
	if view.Draft.Specs != nil {
		t.Errorf("specs = %v, want nil", view.Draft.Specs)
	}
}

// ==================== wizard navigation ====================

func TestWizardUnauthenticatedPath(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()

	view, err := f.svc.StartSession(ctx, validParams(), "")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	id := view.ID

	for _, want := range []domain.Step{domain.StepConfiguration, domain.StepAccount} {
		view, err = f.svc.Advance(ctx, id)
		if err != nil {
			t.Fatalf("advance to %v: %v", want, err)
		}
		if view.Step != want {
			t.Fatalf("step = %v, want %v", view.Step, want)
		}
	}

	// Account cannot be advanced past without an account.
	if _, err := f.svc.Advance(ctx, id); err == nil {
		t.Fatal("expected error advancing past Account unauthenticated")
	}
}

func TestWizardAuthenticatedSkipsAccount(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()

	seedCustomer(t, f.store, "cust-9", "maria@example.com")

	view, err := f.svc.StartSession(ctx, validParams(), "cust-9")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	id := view.ID

	if view, err = f.svc.Advance(ctx, id); err != nil || view.Step != domain.StepConfiguration {
		t.Fatalf("advance 1: step=%v err=%v", view.Step, err)
	}
	if view, err = f.svc.Advance(ctx, id); err != nil || view.Step != domain.StepPayment {
		t.Fatalf("authenticated advance should skip Account: step=%v err=%v", view.Step, err)
	}

	// Back from Payment returns to Configuration, not Account.
	if view, err = f.svc.Back(ctx, id); err != nil || view.Step != domain.StepConfiguration {
		t.Fatalf("back from payment: step=%v err=%v", view.Step, err)
	}
}

func TestWizardBackFromFirstStep(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()

	view, _ := f.svc.StartSession(ctx, validParams(), "")

	_, err := f.svc.Back(ctx, view.ID)
	var invalid *domain.ErrInvalidTransition
	if !errors.As(err, &invalid) {
		t.Fatalf("error = %v, want *domain.ErrInvalidTransition", err)
	}
}

func TestBackFromPaymentUnauthenticatedReturnsToAccount(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()

	view, _ := f.svc.StartSession(ctx, validParams(), "")
	id := view.ID

	// Walk to Account, create the account, land on Payment.
	f.svc.Advance(ctx, id)
	f.svc.Advance(ctx, id)
	fillValidRegistrant(t, f.svc, id)
	if view, err := f.svc.CreateAccount(ctx, id, validAccountRequest()); err != nil || view.Step != domain.StepPayment {
		t.Fatalf("create account: step=%v err=%v", view.Step, err)
	}

	// This registrant created an account through the wizard, so Account
	// was a real step for them and back returns there... but they are now
	// authenticated, and Account has nothing left to show. Configuration
	// is where back lands.
	view, err := f.svc.Back(ctx, id)
	if err != nil {
		t.Fatalf("back: %v", err)
	}
	if view.Step != domain.StepConfiguration {
		t.Errorf("step = %v, want Configuration", view.Step)
	}
}

func TestGetSessionAutoAdvancesAuthenticatedAccount(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()

	seedCustomer(t, f.store, "cust-7", "joao@example.com")

	view, _ := f.svc.StartSession(ctx, validParams(), "")
	id := view.ID
	f.svc.Advance(ctx, id)
	f.svc.Advance(ctx, id) // parked at Account

	if _, err := f.svc.Attach(ctx, id, "cust-7"); err != nil {
		t.Fatalf("attach: %v", err)
	}

	got, err := f.svc.GetSession(ctx, id)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got.Step != domain.StepPayment {
		t.Errorf("step = %v, want Payment", got.Step)
	}
}

func TestSessionNotFound(t *testing.T) {
	f := newCheckoutFixture(t)

	_, err := f.svc.GetSession(context.Background(), "nope")
	var notFound *domain.ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("error = %v, want *domain.ErrNotFound", err)
	}
}

// ==================== draft and registrant updates ====================

func TestUpdateDraftYearlyPrice(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()

	view, _ := f.svc.StartSession(ctx, validParams(), "")
	yearly := domain.BillingYearly

	view, err := f.svc.UpdateDraft(ctx, view.ID, &domain.DraftUpdate{BillingCycle: &yearly})
	if err != nil {
		t.Fatalf("update draft: %v", err)
	}
	if view.CurrentPrice != 304.98 {
		t.Errorf("yearly price = %v, want 304.98", view.CurrentPrice)
	}
	// The "R$ X/mês" display value rides along on every view.
	if want := domain.MonthlyEquivalent(29.90, 0.85); view.YearlyPerMonth != want {
		t.Errorf("yearly per month = %v, want %v", view.YearlyPerMonth, want)
	}
	if view.YearlyPerMonth <= 0 {
		t.Errorf("yearly per month = %v, want > 0", view.YearlyPerMonth)
	}
}

func TestUpdateDraftInvalidCycle(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()

	view, _ := f.svc.StartSession(ctx, validParams(), "")
	bad := domain.BillingCycle("weekly")

	_, err := f.svc.UpdateDraft(ctx, view.ID, &domain.DraftUpdate{BillingCycle: &bad})
	var validation *domain.ErrValidation
	if !errors.As(err, &validation) {
		t.Fatalf("error = %v, want *domain.ErrValidation", err)
	}
}

func TestUpdateRegistrantNormalizesAndMasks(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()

	view, _ := f.svc.StartSession(ctx, validParams(), "")

	taxID := "529.982.247-25"
	phone := "(11) 98765-4321"
	cep := "01310-100"
	view, err := f.svc.UpdateRegistrant(ctx, view.ID, &domain.RegistrantUpdate{
		TaxID:      &taxID,
		Phone:      &phone,
		PostalCode: &cep,
	})
	if err != nil {
		t.Fatalf("update registrant: %v", err)
	}

	// The view carries the display masks; the session stores raw digits.
	if view.Registrant.TaxID != "529.982.247-25" {
		t.Errorf("masked taxId = %q", view.Registrant.TaxID)
	}
	if view.Registrant.Phone != "(11) 98765-4321" {
		t.Errorf("masked phone = %q", view.Registrant.Phone)
	}
	if view.Registrant.Address.PostalCode != "01310-100" {
		t.Errorf("masked cep = %q", view.Registrant.Address.PostalCode)
	}

	state, _ := f.sessions.Get(view.ID)
	if state.Session.Registrant.TaxID != "52998224725" {
		t.Errorf("stored taxId = %q, want digits only", state.Session.Registrant.TaxID)
	}
	if state.Session.Registrant.Address.PostalCode != "01310100" {
		t.Errorf("stored cep = %q, want digits only", state.Session.Registrant.Address.PostalCode)
	}
}

// ==================== helpers ====================

func seedCustomer(t *testing.T, store *memory.Store, id, email string) {
	t.Helper()
	err := store.CreateCustomer(context.Background(), &domain.Customer{
		ID:            id,
		Name:          "Cliente Teste",
		Email:         email,
		TaxID:         "52998224725",
		AcceptedTerms: true,
	}, "hash")
	if err != nil {
		t.Fatalf("seed customer: %v", err)
	}
}

func fillValidRegistrant(t *testing.T, svc *CheckoutService, sessionID string) {
	t.Helper()
	taxID := "52998224725"
	terms := true
	_, err := svc.UpdateRegistrant(context.Background(), sessionID, &domain.RegistrantUpdate{
		TaxID:         &taxID,
		AcceptedTerms: &terms,
	})
	if err != nil {
		t.Fatalf("fill registrant: %v", err)
	}
}

func validAccountRequest() *domain.AccountRequest {
	return &domain.AccountRequest{
		Name:     "Maria Silva",
		Email:    "maria@example.com",
		Password: "senha-muito-segura",
	}
}
