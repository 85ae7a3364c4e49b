package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/opadata/checkout-api/internal/domain"
	"github.com/opadata/checkout-api/internal/infra/cache"
	"github.com/opadata/checkout-api/internal/infra/resilience"
)

func newTestViaCEP(t *testing.T, handler http.HandlerFunc) (*ViaCEP, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewViaCEP(
		srv.Client(),
		srv.URL,
		resilience.NewCircuitBreaker("viacep-test"),
		resilience.Config{MaxRetries: 0, InitialBackoff: time.Millisecond},
		cache.New[*domain.Address](time.Minute),
	)
	return c, srv
}

func TestViaCEPLookupSuccess(t *testing.T) {
	c, _ := newTestViaCEP(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ws/01310100/json/" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"logradouro": "Avenida Paulista",
			"bairro": "Bela Vista",
			"localidade": "São Paulo",
			"uf": "SP",
			"complemento": "de 612 a 1510 - lado par"
		}`))
	})

	addr, err := c.Lookup(context.Background(), "01310100")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if addr.Street != "Avenida Paulista" {
		t.Errorf("street = %q, want Avenida Paulista", addr.Street)
	}
	if addr.Neighborhood != "Bela Vista" {
		t.Errorf("neighborhood = %q, want Bela Vista", addr.Neighborhood)
	}
	if addr.City != "São Paulo" || addr.State != "SP" {
		t.Errorf("city/state = %q/%q", addr.City, addr.State)
	}
	if addr.PostalCode != "01310100" {
		t.Errorf("postal code = %q, want 01310100", addr.PostalCode)
	}
}

func TestViaCEPLookupNotFound(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestViaCEP(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"erro": true}`))
	})

	_, err := c.Lookup(context.Background(), "99999999")

	var notFound *domain.ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("error = %v, want *domain.ErrNotFound", err)
	}
	if calls.Load() != 1 {
		t.Errorf("unknown code was retried: %d calls", calls.Load())
	}
}

func TestViaCEPUnknownCodesDoNotOpenBreaker(t *testing.T) {
	c, _ := newTestViaCEP(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"erro": true}`))
	})

	// Well past the breaker's trip window. Every answer must stay a
	// not-found; an open breaker would turn them into lookup failures.
	for i := 0; i < 10; i++ {
		_, err := c.Lookup(context.Background(), fmt.Sprintf("9000000%d", i))
		var notFound *domain.ErrNotFound
		if !errors.As(err, &notFound) {
			t.Fatalf("lookup %d: error = %v, want *domain.ErrNotFound", i, err)
		}
	}
}

func TestViaCEPLookupServerError(t *testing.T) {
	c, _ := newTestViaCEP(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.Lookup(context.Background(), "01310100")

	var lookupFailed *domain.ErrLookupFailed
	if !errors.As(err, &lookupFailed) {
		t.Fatalf("error = %v, want *domain.ErrLookupFailed", err)
	}
}

func TestViaCEPLookupRetriesTransientFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"logradouro": "Rua Augusta", "localidade": "São Paulo", "uf": "SP"}`))
	}))
	defer srv.Close()

	c := NewViaCEP(
		srv.Client(),
		srv.URL,
		resilience.NewCircuitBreaker("viacep-retry-test"),
		resilience.Config{MaxRetries: 3, InitialBackoff: time.Millisecond},
		cache.New[*domain.Address](time.Minute),
	)

	addr, err := c.Lookup(context.Background(), "01310100")
	if err != nil {
		t.Fatalf("unexpected error after retries: %v", err)
	}
	if addr.Street != "Rua Augusta" {
		t.Errorf("street = %q, want Rua Augusta", addr.Street)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestViaCEPLookupCacheHit(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestViaCEP(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"logradouro": "Avenida Paulista", "localidade": "São Paulo", "uf": "SP"}`))
	})

	for i := 0; i < 3; i++ {
		if _, err := c.Lookup(context.Background(), "01310100"); err != nil {
			t.Fatalf("lookup %d: %v", i, err)
		}
	}

	if calls.Load() != 1 {
		t.Errorf("upstream calls = %d, want 1 (cache should absorb repeats)", calls.Load())
	}
}
