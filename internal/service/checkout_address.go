package service

import (
	"context"
	"errors"

	"github.com/opadata/checkout-api/internal/brdoc"
	"github.com/opadata/checkout-api/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// ResolveAddress — POST /v1/checkout/sessions/{id}/address
// ============================================================

// ResolveAddress looks up the registrant's CEP and fills the address
// fields. The lookup runs without holding the session mutex; a supersede
// token guards against a slow lookup overwriting a newer one. The user's
// typed complement is preserved: the looked-up complement only fills an
// empty field.
//
// Lookup failure never blocks the wizard. Unknown codes and transport
// failures surface a notice and return the error for the edge to map;
// the address stays editable either way.
func (s *CheckoutService) ResolveAddress(ctx context.Context, sessionID, cep string) (*domain.CheckoutView, error) {
	ctx, span := checkoutTracer.Start(ctx, "CheckoutService.ResolveAddress")
	defer span.End()

	cep = brdoc.Digits(cep)
	span.SetAttributes(attribute.String("cep", cep))
	if len(cep) != 8 {
		return nil, &domain.ErrValidation{Field: "cep", Message: "CEP deve ter 8 dígitos"}
	}

	state, err := s.state(sessionID)
	if err != nil {
		return nil, err
	}

	state.mu.Lock()
	state.lookupSeq++
	token := state.lookupSeq
	state.Session.Registrant.Address.PostalCode = cep
	state.mu.Unlock()

	addr, lookupErr := s.lookup.Lookup(ctx, cep)

	state.mu.Lock()
	defer state.mu.Unlock()

	session := state.Session
	if token != state.lookupSeq || session.Registrant.Address.PostalCode != cep {
		// A newer lookup started (or the user changed the code) while
		// this one was in flight. Discard the stale result.
		s.metrics.IncrCEPLookup("superseded")
		s.logger.Debug("discarding superseded cep lookup",
			zap.String("session_id", sessionID),
			zap.String("cep", cep),
		)
		return s.view(session), nil
	}

	if lookupErr != nil {
		var notFound *domain.ErrNotFound
		if errors.As(lookupErr, &notFound) {
			s.metrics.IncrCEPLookup("not_found")
			s.notifier.Notify(sessionID, "warning", "CEP não encontrado. Preencha o endereço manualmente.")
		} else {
			s.metrics.IncrCEPLookup("failed")
			s.metrics.IncrExternalError("viacep")
			s.notifier.Notify(sessionID, "warning", "Não foi possível consultar o CEP. Preencha o endereço manualmente.")
			s.logger.Warn("cep lookup failed",
				zap.String("session_id", sessionID),
				zap.String("cep", cep),
				zap.Error(lookupErr),
			)
		}
		return nil, lookupErr
	}

	s.metrics.IncrCEPLookup("hit")

	address := &session.Registrant.Address
	address.Street = addr.Street
	address.Neighborhood = addr.Neighborhood
	address.City = addr.City
	address.State = addr.State
	if address.Complement == "" {
		address.Complement = addr.Complement
	}

	s.touch(state)
	return s.view(session), nil
}
