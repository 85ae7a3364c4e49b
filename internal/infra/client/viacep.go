// Package client contains the outbound HTTP clients for external
// collaborators: the ViaCEP postal-code lookup and the payment gateway.
// Every call goes through retry with backoff and a circuit breaker.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/opadata/checkout-api/internal/domain"
	"github.com/opadata/checkout-api/internal/infra/resilience"
	"github.com/opadata/checkout-api/internal/port"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"
)

var tracer = otel.Tracer("client")

// viaCEPResponse is the wire format of GET /ws/{cep}/json/.
// Erro is set (true) when the code is well-formed but unknown.
type viaCEPResponse struct {
	Erro        bool   `json:"erro,omitempty"`
	Logradouro  string `json:"logradouro"`
	Bairro      string `json:"bairro"`
	Localidade  string `json:"localidade"`
	UF          string `json:"uf"`
	Complemento string `json:"complemento"`
}

// ViaCEP resolves 8-digit postal codes against the public ViaCEP service.
// Results are cached and concurrent lookups for the same code are
// collapsed into one upstream request.
type ViaCEP struct {
	httpClient *http.Client
	baseURL    string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
	cache      port.Cache[*domain.Address]
	group      singleflight.Group
}

// NewViaCEP creates a ViaCEP client.
func NewViaCEP(httpClient *http.Client, baseURL string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, cache port.Cache[*domain.Address]) *ViaCEP {
	return &ViaCEP{
		httpClient: httpClient,
		baseURL:    baseURL,
		cb:         cb,
		cfg:        cfg,
		cache:      cache,
	}
}

// Lookup resolves cep (8 digits, pre-validated by the caller) into an
// address. Unknown codes return *domain.ErrNotFound; transport failures,
// non-2xx statuses and an open breaker return *domain.ErrLookupFailed.
func (c *ViaCEP) Lookup(ctx context.Context, cep string) (*domain.Address, error) {
	ctx, span := tracer.Start(ctx, "ViaCEP.Lookup")
	defer span.End()
	span.SetAttributes(attribute.String("cep", cep))

	if addr, ok := c.cache.Get(cep); ok {
		return addr, nil
	}

	v, err, _ := c.group.Do(cep, func() (any, error) {
		return c.fetch(ctx, cep)
	})
	if err != nil {
		return nil, err
	}

	addr := v.(*domain.Address)
	c.cache.Set(cep, addr)
	return addr, nil
}

func (c *ViaCEP) fetch(ctx context.Context, cep string) (*domain.Address, error) {
	var payload viaCEPResponse

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			url := fmt.Sprintf("%s/ws/%s/json/", c.baseURL, cep)
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return err
			}

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				err := fmt.Errorf("viacep returned status %d", resp.StatusCode)
				if resp.StatusCode >= 400 && resp.StatusCode < 500 {
					// Retrying a rejected request will not help.
					return resilience.Permanent(err)
				}
				return err
			}

			return json.NewDecoder(resp.Body).Decode(&payload)
		})
	})
	if err != nil {
		return nil, &domain.ErrLookupFailed{Err: err}
	}

	// A well-formed but unknown code answers 200 with erro:true. That is
	// a successful upstream exchange, not a breaker failure, so it is
	// classified only after Execute returns.
	if payload.Erro {
		return nil, &domain.ErrNotFound{Resource: "cep", ID: cep}
	}

	return &domain.Address{
		PostalCode:   cep,
		Street:       payload.Logradouro,
		Neighborhood: payload.Bairro,
		City:         payload.Localidade,
		State:        payload.UF,
		Complement:   payload.Complemento,
	}, nil
}
