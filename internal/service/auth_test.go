package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/opadata/checkout-api/internal/domain"
	"github.com/opadata/checkout-api/internal/infra/memory"

	"go.uber.org/zap"
)

func newTestAuth(t *testing.T) (*AuthService, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	svc := NewAuthService(store, "test-secret", 15*time.Minute, 7*24*time.Hour, zap.NewNop())
	return svc, store
}

func validSignUp() *domain.SignUpRequest {
	return &domain.SignUpRequest{
		Name:          "Maria Silva",
		Email:         "maria@example.com",
		Password:      "senha-muito-segura",
		Phone:         "(11) 98765-4321",
		TaxID:         "529.982.247-25",
		PostalCode:    "01310-100",
		Street:        "Avenida Paulista",
		Number:        "1000",
		City:          "São Paulo",
		State:         "sp",
		AcceptedTerms: true,
	}
}

func TestSignUpAndLogin(t *testing.T) {
	svc, store := newTestAuth(t)
	ctx := context.Background()

	resp, err := svc.SignUp(ctx, validSignUp())
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if resp.CustomerID == "" {
		t.Fatal("empty customer ID")
	}

	// Stored normalized: digits-only document and phone, uppercase UF.
	customer, err := store.GetCustomerByID(ctx, resp.CustomerID)
	if err != nil {
		t.Fatalf("get customer: %v", err)
	}
	if customer.TaxID != "52998224725" {
		t.Errorf("taxId = %q, want digits only", customer.TaxID)
	}
	if customer.Phone != "11987654321" {
		t.Errorf("phone = %q, want digits only", customer.Phone)
	}
	if customer.Address.State != "SP" {
		t.Errorf("state = %q, want SP", customer.Address.State)
	}

	login, err := svc.Login(ctx, &domain.LoginRequest{Email: "Maria@Example.com", Password: "senha-muito-segura"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if login.AccessToken == "" || login.RefreshToken == "" {
		t.Error("missing tokens")
	}

	claims, err := svc.ValidateAccessToken(login.AccessToken)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.Sub != resp.CustomerID {
		t.Errorf("sub = %q, want %q", claims.Sub, resp.CustomerID)
	}
}

func TestSignUpDuplicateEmail(t *testing.T) {
	svc, _ := newTestAuth(t)
	ctx := context.Background()

	if _, err := svc.SignUp(ctx, validSignUp()); err != nil {
		t.Fatalf("first signup: %v", err)
	}

	_, err := svc.SignUp(ctx, validSignUp())
	var conflict *domain.ErrConflict
	if !errors.As(err, &conflict) {
		t.Fatalf("error = %v, want *domain.ErrConflict", err)
	}
}

func TestSignUpInvalidDocument(t *testing.T) {
	svc, _ := newTestAuth(t)

	req := validSignUp()
	req.TaxID = "111.111.111-11"

	_, err := svc.SignUp(context.Background(), req)
	var invalidDoc *domain.ErrInvalidDocument
	if !errors.As(err, &invalidDoc) {
		t.Fatalf("error = %v, want *domain.ErrInvalidDocument", err)
	}
}

func TestSignUpWithoutDocument(t *testing.T) {
	svc, store := newTestAuth(t)
	ctx := context.Background()

	req := validSignUp()
	req.TaxID = ""

	resp, err := svc.SignUp(ctx, req)
	if err != nil {
		t.Fatalf("signup without document: %v", err)
	}

	customer, err := store.GetCustomerByID(ctx, resp.CustomerID)
	if err != nil {
		t.Fatalf("get customer: %v", err)
	}
	if customer.TaxID != "" {
		t.Errorf("taxId = %q, want empty", customer.TaxID)
	}
}

func TestSignUpRequiresName(t *testing.T) {
	svc, _ := newTestAuth(t)

	req := validSignUp()
	req.Name = "   "

	_, err := svc.SignUp(context.Background(), req)
	var validation *domain.ErrValidation
	if !errors.As(err, &validation) {
		t.Fatalf("error = %v, want *domain.ErrValidation", err)
	}
	if validation.Field != "name" {
		t.Errorf("field = %q, want name", validation.Field)
	}
}

func TestSignUpRequiresTerms(t *testing.T) {
	svc, _ := newTestAuth(t)

	req := validSignUp()
	req.AcceptedTerms = false

	_, err := svc.SignUp(context.Background(), req)
	var terms *domain.ErrTermsNotAccepted
	if !errors.As(err, &terms) {
		t.Fatalf("error = %v, want *domain.ErrTermsNotAccepted", err)
	}
}

func TestLoginWrongPasswordCountsAttempts(t *testing.T) {
	svc, store := newTestAuth(t)
	ctx := context.Background()

	resp, err := svc.SignUp(ctx, validSignUp())
	if err != nil {
		t.Fatalf("signup: %v", err)
	}

	for i := 0; i < maxFailedAttempts; i++ {
		_, err := svc.Login(ctx, &domain.LoginRequest{Email: "maria@example.com", Password: "errada"})
		var unauthorized *domain.ErrUnauthorized
		if !errors.As(err, &unauthorized) {
			t.Fatalf("attempt %d: error = %v, want *domain.ErrUnauthorized", i, err)
		}
	}

	cred, err := store.GetCredentials(ctx, resp.CustomerID)
	if err != nil {
		t.Fatalf("get credentials: %v", err)
	}
	if cred.LockedUntil == nil {
		t.Fatal("account not locked after max attempts")
	}

	// Even the right password is refused while locked.
	_, err = svc.Login(ctx, &domain.LoginRequest{Email: "maria@example.com", Password: "senha-muito-segura"})
	var unauthorized *domain.ErrUnauthorized
	if !errors.As(err, &unauthorized) {
		t.Fatalf("locked login error = %v, want *domain.ErrUnauthorized", err)
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	svc, _ := newTestAuth(t)
	ctx := context.Background()

	if _, err := svc.SignUp(ctx, validSignUp()); err != nil {
		t.Fatalf("signup: %v", err)
	}
	login, err := svc.Login(ctx, &domain.LoginRequest{Email: "maria@example.com", Password: "senha-muito-segura"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	refreshed, err := svc.Refresh(ctx, &domain.RefreshRequest{RefreshToken: login.RefreshToken})
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if refreshed.RefreshToken == login.RefreshToken {
		t.Error("refresh token was not rotated")
	}

	// The old token is single-use.
	_, err = svc.Refresh(ctx, &domain.RefreshRequest{RefreshToken: login.RefreshToken})
	var unauthorized *domain.ErrUnauthorized
	if !errors.As(err, &unauthorized) {
		t.Fatalf("reused token error = %v, want *domain.ErrUnauthorized", err)
	}
}

func TestLogoutRevokesRefreshTokens(t *testing.T) {
	svc, _ := newTestAuth(t)
	ctx := context.Background()

	resp, _ := svc.SignUp(ctx, validSignUp())
	login, err := svc.Login(ctx, &domain.LoginRequest{Email: "maria@example.com", Password: "senha-muito-segura"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if err := svc.Logout(ctx, resp.CustomerID); err != nil {
		t.Fatalf("logout: %v", err)
	}

	_, err = svc.Refresh(ctx, &domain.RefreshRequest{RefreshToken: login.RefreshToken})
	var unauthorized *domain.ErrUnauthorized
	if !errors.As(err, &unauthorized) {
		t.Fatalf("error = %v, want *domain.ErrUnauthorized", err)
	}
}

func TestValidateAccessTokenRejectsGarbage(t *testing.T) {
	svc, _ := newTestAuth(t)

	_, err := svc.ValidateAccessToken("not-a-jwt")
	var unauthorized *domain.ErrUnauthorized
	if !errors.As(err, &unauthorized) {
		t.Fatalf("error = %v, want *domain.ErrUnauthorized", err)
	}
}
