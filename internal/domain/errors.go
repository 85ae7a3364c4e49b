package domain

import "fmt"

// Error types for consistent handling across the checkout API. Every
// failure is recovered at the step boundary and surfaced as a user-facing
// message; none of these crash the flow.

// ErrInvalidPlanParams indicates the checkout entry point was reached
// without the required plan parameters. Terminal: no session is created.
type ErrInvalidPlanParams struct {
	Missing []string
}

func (e *ErrInvalidPlanParams) Error() string {
	if len(e.Missing) == 0 {
		return "invalid plan parameters"
	}
	return fmt.Sprintf("invalid plan parameters: missing %v", e.Missing)
}

// ErrValidation indicates a validation error (bad input) on a field.
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrTermsNotAccepted blocks the Account step until the registrant
// accepts the terms of service.
type ErrTermsNotAccepted struct{}

func (e *ErrTermsNotAccepted) Error() string {
	return "É necessário aceitar os termos de serviço"
}

// ErrInvalidDocument indicates the registrant's CPF/CNPJ failed the
// check-digit validation.
type ErrInvalidDocument struct {
	Kind string // "cpf" or "cnpj"
}

func (e *ErrInvalidDocument) Error() string {
	if e.Kind == "cnpj" {
		return "CNPJ inválido"
	}
	return "CPF inválido"
}

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrLookupFailed indicates the postal-code service could not be reached
// or answered with a transport-level failure. The user may type the
// address manually.
type ErrLookupFailed struct {
	Err error
}

func (e *ErrLookupFailed) Error() string {
	return fmt.Sprintf("postal code lookup failed: %v", e.Err)
}

func (e *ErrLookupFailed) Unwrap() error { return e.Err }

// ErrNotAuthenticated is the defensive guard before payment submission.
// Not reachable through normal navigation, handled anyway.
type ErrNotAuthenticated struct{}

func (e *ErrNotAuthenticated) Error() string {
	return "registrant is not authenticated"
}

// ErrOperationInFlight is the double-submit guard: the same session
// already has this operation outstanding and the new call is a no-op.
type ErrOperationInFlight struct {
	Operation string
}

func (e *ErrOperationInFlight) Error() string {
	return fmt.Sprintf("operation already in flight: %s", e.Operation)
}

// ErrConflict indicates a resource already exists (e.g. duplicate email).
type ErrConflict struct {
	Message string
}

func (e *ErrConflict) Error() string { return e.Message }

// ErrUnauthorized indicates invalid credentials or token.
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}

// ErrExternalService indicates a failure in an external collaborator.
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error { return e.Err }

// ErrCircuitOpen indicates the circuit breaker is open for a service.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}

// ErrTimeout indicates an operation exceeded its deadline.
type ErrTimeout struct {
	Operation string
}

func (e *ErrTimeout) Error() string {
	return fmt.Sprintf("operation timed out: %s", e.Operation)
}

// ErrInvalidTransition indicates a wizard move the current step does not
// allow (e.g. going back from ProductReview).
type ErrInvalidTransition struct {
	From   Step
	Action string
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("cannot %s from step %s", e.Action, e.From)
}
