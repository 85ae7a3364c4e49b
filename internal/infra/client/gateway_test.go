package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/opadata/checkout-api/internal/domain"
	"github.com/opadata/checkout-api/internal/infra/resilience"
)

func newTestGateway(t *testing.T, handler http.HandlerFunc) *PaymentGateway {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewPaymentGateway(
		srv.Client(),
		srv.URL,
		"test-token",
		resilience.NewCircuitBreaker("gateway-test"),
		resilience.Config{MaxRetries: 0, InitialBackoff: time.Millisecond},
	)
}

func TestCreatePaymentSessionSuccess(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/checkout/preferences" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("authorization = %q", got)
		}

		var req preferenceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.ExternalReference != "INV-123" {
			t.Errorf("external_reference = %q, want INV-123", req.ExternalReference)
		}
		if req.Amount != 304.98 {
			t.Errorf("amount = %v, want 304.98", req.Amount)
		}

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(preferenceResponse{
			ID:        "pref-1",
			InitPoint: "https://pay.example.com/init/pref-1",
		})
	})

	sess, err := g.CreatePaymentSession(context.Background(), "INV-123", "VPS Start (anual)", 304.98)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.InitPoint != "https://pay.example.com/init/pref-1" {
		t.Errorf("init_point = %q", sess.InitPoint)
	}
	if sess.InvoiceID != "INV-123" {
		t.Errorf("invoiceID = %q", sess.InvoiceID)
	}
	if sess.Amount != 304.98 {
		t.Errorf("amount = %v", sess.Amount)
	}
}

func TestCreatePaymentSessionGatewayError(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := g.CreatePaymentSession(context.Background(), "INV-123", "VPS Start", 29.90)

	var external *domain.ErrExternalService
	if !errors.As(err, &external) {
		t.Fatalf("error = %v, want *domain.ErrExternalService", err)
	}
	if external.Service != "payment-gateway" {
		t.Errorf("service = %q", external.Service)
	}
}

func TestCreatePaymentSessionMissingInitPoint(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(preferenceResponse{ID: "pref-2"})
	})

	_, err := g.CreatePaymentSession(context.Background(), "INV-456", "VPS Start", 29.90)

	var external *domain.ErrExternalService
	if !errors.As(err, &external) {
		t.Fatalf("error = %v, want *domain.ErrExternalService", err)
	}
}
