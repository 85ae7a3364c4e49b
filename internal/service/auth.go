// Package service — AuthService handles registration, login, JWT token
// management and refresh-token rotation for checkout customers.
package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/opadata/checkout-api/internal/brdoc"
	"github.com/opadata/checkout-api/internal/domain"
	"github.com/opadata/checkout-api/internal/port"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var authTracer = otel.Tracer("service/auth")

const (
	maxFailedAttempts = 5
	lockDuration      = 30 * time.Minute
	bcryptCost        = 12
)

// AuthService orchestrates authentication flows.
type AuthService struct {
	store      port.CustomerStore
	jwtSecret  []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	logger     *zap.Logger
}

// NewAuthService creates a new auth service.
func NewAuthService(store port.CustomerStore, jwtSecret string, accessTTL, refreshTTL time.Duration, logger *zap.Logger) *AuthService {
	return &AuthService{
		store:      store,
		jwtSecret:  []byte(jwtSecret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		logger:     logger,
	}
}

// ============================================================
// SignUp — POST /v1/auth/signup (also driven by CreateAccount)
// ============================================================

func (s *AuthService) SignUp(ctx context.Context, req *domain.SignUpRequest) (*domain.SignUpResponse, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.SignUp")
	defer span.End()

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, &domain.ErrValidation{Field: "name", Message: "Nome é obrigatório"}
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, &domain.ErrValidation{Field: "email", Message: "E-mail inválido"}
	}
	if len(req.Password) < minPasswordLength {
		return nil, &domain.ErrValidation{
			Field:   "password",
			Message: fmt.Sprintf("Senha deve ter no mínimo %d caracteres", minPasswordLength),
		}
	}

	// The document is optional at sign-up; when present it must validate.
	taxID := brdoc.Digits(req.TaxID)
	if taxID != "" && !brdoc.ValidDocument(taxID) {
		kind := "cpf"
		if len(taxID) > 11 {
			kind = "cnpj"
		}
		return nil, &domain.ErrInvalidDocument{Kind: kind}
	}
	if !req.AcceptedTerms {
		return nil, &domain.ErrTermsNotAccepted{}
	}

	// Check for duplicate email up front for a friendly error; the unique
	// constraint still catches races.
	if _, err := s.store.GetCustomerByEmail(ctx, email); err == nil {
		return nil, &domain.ErrConflict{Message: "e-mail já cadastrado"}
	} else {
		var notFound *domain.ErrNotFound
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("check existing customer: %w", err)
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	customer := &domain.Customer{
		ID:    uuid.NewString(),
		Name:  name,
		Email: email,
		Phone: brdoc.Digits(req.Phone),
		TaxID: taxID,
		Address: domain.Address{
			PostalCode:   brdoc.Digits(req.PostalCode),
			Street:       req.Street,
			Number:       req.Number,
			Complement:   req.Complement,
			Neighborhood: req.Neighborhood,
			City:         req.City,
			State:        strings.ToUpper(strings.TrimSpace(req.State)),
		},
		AcceptedTerms: req.AcceptedTerms,
		CreatedAt:     time.Now(),
	}

	if err := s.store.CreateCustomer(ctx, customer, string(hash)); err != nil {
		return nil, err
	}

	s.logger.Info("customer registered",
		zap.String("customer_id", customer.ID),
		zap.String("email", email),
	)

	return &domain.SignUpResponse{
		CustomerID: customer.ID,
		Message:    "Conta criada com sucesso",
	}, nil
}

// ============================================================
// Login — POST /v1/auth/login
// ============================================================

func (s *AuthService) Login(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.Login")
	defer span.End()

	email := strings.ToLower(strings.TrimSpace(req.Email))

	customer, err := s.store.GetCustomerByEmail(ctx, email)
	if err != nil {
		var notFound *domain.ErrNotFound
		if errors.As(err, &notFound) {
			return nil, &domain.ErrUnauthorized{Message: "Credenciais inválidas"}
		}
		return nil, fmt.Errorf("get customer: %w", err)
	}

	cred, err := s.store.GetCredentials(ctx, customer.ID)
	if err != nil {
		return nil, fmt.Errorf("get credentials: %w", err)
	}

	// Check if account is locked
	if cred.LockedUntil != nil && cred.LockedUntil.After(time.Now()) {
		remaining := time.Until(*cred.LockedUntil).Minutes()
		s.logger.Warn("login: account temporarily locked",
			zap.String("customer_id", customer.ID),
			zap.Float64("remaining_minutes", remaining),
		)
		return nil, &domain.ErrUnauthorized{
			Message: fmt.Sprintf("Conta temporariamente bloqueada. Tente novamente em %.0f minutos", remaining),
		}
	}

	// Verify password
	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(req.Password)); err != nil {
		newAttempts := cred.FailedAttempts + 1
		var lockedUntil *time.Time
		if newAttempts >= maxFailedAttempts {
			t := time.Now().Add(lockDuration)
			lockedUntil = &t
			s.logger.Warn("login: account locked after max attempts",
				zap.String("customer_id", customer.ID),
				zap.Int("attempts", newAttempts),
			)
		} else {
			s.logger.Warn("login: failed password attempt",
				zap.String("customer_id", customer.ID),
				zap.Int("attempts", newAttempts),
				zap.Int("max", maxFailedAttempts),
			)
		}
		_ = s.store.SetFailedAttempts(ctx, customer.ID, newAttempts, lockedUntil)

		remaining := maxFailedAttempts - newAttempts
		if remaining <= 0 {
			return nil, &domain.ErrUnauthorized{
				Message: fmt.Sprintf("Conta bloqueada por %d minutos após %d tentativas", int(lockDuration.Minutes()), maxFailedAttempts),
			}
		}
		return nil, &domain.ErrUnauthorized{
			Message: fmt.Sprintf("Credenciais inválidas. %d tentativa(s) restante(s)", remaining),
		}
	}

	// Reset failed attempts on successful login
	_ = s.store.TouchLogin(ctx, customer.ID)

	accessToken, err := s.signAccessToken(customer.ID, customer.TaxID)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	refreshToken, refreshHash, err := s.generateRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}
	if err := s.store.StoreRefreshToken(ctx, customer.ID, refreshHash, time.Now().Add(s.refreshTTL)); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	s.logger.Info("customer logged in", zap.String("customer_id", customer.ID))

	return &domain.LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int(s.accessTTL.Seconds()),
		CustomerID:   customer.ID,
		CustomerName: customer.Name,
	}, nil
}

// ============================================================
// Refresh — POST /v1/auth/refresh
// ============================================================

func (s *AuthService) Refresh(ctx context.Context, req *domain.RefreshRequest) (*domain.LoginResponse, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.Refresh")
	defer span.End()

	tokenHash := hashToken(req.RefreshToken)

	stored, err := s.store.GetRefreshToken(ctx, tokenHash)
	if err != nil {
		var notFound *domain.ErrNotFound
		if errors.As(err, &notFound) {
			return nil, &domain.ErrUnauthorized{Message: "Token de atualização inválido"}
		}
		return nil, fmt.Errorf("get refresh token: %w", err)
	}
	if stored.Revoked {
		return nil, &domain.ErrUnauthorized{Message: "Token de atualização inválido"}
	}
	if stored.ExpiresAt.Before(time.Now()) {
		s.logger.Warn("refresh: expired token used",
			zap.String("customer_id", stored.CustomerID),
		)
		_ = s.store.RevokeRefreshToken(ctx, tokenHash)
		return nil, &domain.ErrUnauthorized{Message: "Token de atualização expirado"}
	}

	// Rotation: the old token is single-use.
	_ = s.store.RevokeRefreshToken(ctx, tokenHash)

	customer, err := s.store.GetCustomerByID(ctx, stored.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("get customer: %w", err)
	}

	accessToken, err := s.signAccessToken(customer.ID, customer.TaxID)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	newRefreshToken, newRefreshHash, err := s.generateRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}
	if err := s.store.StoreRefreshToken(ctx, customer.ID, newRefreshHash, time.Now().Add(s.refreshTTL)); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return &domain.LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: newRefreshToken,
		ExpiresIn:    int(s.accessTTL.Seconds()),
		CustomerID:   customer.ID,
		CustomerName: customer.Name,
	}, nil
}

// ============================================================
// Logout — POST /v1/auth/logout
// ============================================================

func (s *AuthService) Logout(ctx context.Context, customerID string) error {
	ctx, span := authTracer.Start(ctx, "AuthService.Logout")
	defer span.End()

	if err := s.store.RevokeAllRefreshTokens(ctx, customerID); err != nil {
		return fmt.Errorf("revoke refresh tokens: %w", err)
	}

	s.logger.Info("customer logged out", zap.String("customer_id", customerID))
	return nil
}

// ============================================================
// ValidateAccessToken — used by middleware
// ============================================================

// JWTClaims represents the custom claims in access tokens.
type JWTClaims struct {
	Sub   string `json:"sub"`
	TaxID string `json:"tax_id"`
	Type  string `json:"type"`
	jwt.RegisteredClaims
}

func (s *AuthService) ValidateAccessToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, &domain.ErrUnauthorized{Message: "Token inválido ou expirado"}
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, &domain.ErrUnauthorized{Message: "Token inválido"}
	}
	if claims.Type != "access" {
		return nil, &domain.ErrUnauthorized{Message: "Tipo de token inválido"}
	}

	return claims, nil
}

// ============================================================
// Internal helpers
// ============================================================

func (s *AuthService) signAccessToken(customerID, taxID string) (string, error) {
	now := time.Now()
	claims := JWTClaims{
		Sub:   customerID,
		TaxID: taxID,
		Type:  "access",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
			Issuer:    "checkout-api",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

func (s *AuthService) generateRefreshToken() (raw string, hashed string, err error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", "", err
	}
	raw = hex.EncodeToString(b)
	hashed = hashToken(raw)
	return raw, hashed, nil
}

func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}
