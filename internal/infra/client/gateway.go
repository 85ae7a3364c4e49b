package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/opadata/checkout-api/internal/domain"
	"github.com/opadata/checkout-api/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
)

// preferenceRequest is the gateway's checkout-preference payload.
type preferenceRequest struct {
	ExternalReference string  `json:"external_reference"`
	Description       string  `json:"description"`
	Amount            float64 `json:"amount"`
}

type preferenceResponse struct {
	ID        string `json:"id"`
	InitPoint string `json:"init_point"`
}

// PaymentGateway creates hosted payment sessions (checkout preferences)
// at the external gateway. The returned init_point is the URL the
// browser is redirected to.
type PaymentGateway struct {
	httpClient *http.Client
	baseURL    string
	token      string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
}

// NewPaymentGateway creates a gateway client.
func NewPaymentGateway(httpClient *http.Client, baseURL, token string, cb *gobreaker.CircuitBreaker, cfg resilience.Config) *PaymentGateway {
	return &PaymentGateway{
		httpClient: httpClient,
		baseURL:    baseURL,
		token:      token,
		cb:         cb,
		cfg:        cfg,
	}
}

// CreatePaymentSession creates a payment session for the given invoice.
// Submission is not retried on transport errors: the gateway call is not
// idempotent and the user can retry manually from the Payment step.
func (g *PaymentGateway) CreatePaymentSession(ctx context.Context, invoiceID, description string, amount float64) (*domain.PaymentSession, error) {
	ctx, span := tracer.Start(ctx, "PaymentGateway.CreatePaymentSession")
	defer span.End()
	span.SetAttributes(
		attribute.String("invoice.id", invoiceID),
		attribute.Float64("amount", amount),
	)

	body, err := json.Marshal(preferenceRequest{
		ExternalReference: invoiceID,
		Description:       description,
		Amount:            amount,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal preference: %w", err)
	}

	var payload preferenceResponse

	_, err = g.cb.Execute(func() (any, error) {
		url := fmt.Sprintf("%s/checkout/preferences", g.baseURL)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if g.token != "" {
			req.Header.Set("Authorization", "Bearer "+g.token)
		}

		resp, err := g.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
			return nil, fmt.Errorf("gateway returned status %d", resp.StatusCode)
		}

		return nil, json.NewDecoder(resp.Body).Decode(&payload)
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "payment-gateway", Err: err}
	}

	if payload.InitPoint == "" {
		return nil, &domain.ErrExternalService{
			Service: "payment-gateway",
			Err:     fmt.Errorf("response missing init_point"),
		}
	}

	return &domain.PaymentSession{
		ID:        payload.ID,
		InvoiceID: invoiceID,
		Amount:    amount,
		InitPoint: payload.InitPoint,
	}, nil
}
