package domain

import "time"

// Address is the registrant's billing address. PostalCode holds digits
// only; the display mask is applied at the edge.
type Address struct {
	PostalCode   string `json:"postalCode"`
	Street       string `json:"street"`
	Number       string `json:"number"`
	Complement   string `json:"complement,omitempty"`
	Neighborhood string `json:"neighborhood"`
	City         string `json:"city"`
	State        string `json:"state"`
}

// Registrant is the person or company going through checkout. TaxID holds
// digits only (11 = CPF, 14 = CNPJ). CustomerID is empty until the
// registrant is authenticated.
type Registrant struct {
	CustomerID    string  `json:"customerId,omitempty"`
	Name          string  `json:"name"`
	Email         string  `json:"email"`
	Phone         string  `json:"phone"`
	TaxID         string  `json:"taxId"`
	Address       Address `json:"address"`
	AcceptedTerms bool    `json:"acceptedTerms"`
}

// Customer is a registered account holder.
type Customer struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Phone         string    `json:"phone"`
	TaxID         string    `json:"taxId"`
	Address       Address   `json:"address"`
	AcceptedTerms bool      `json:"acceptedTerms"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Credentials are the stored login secrets for a customer.
type Credentials struct {
	CustomerID     string     `json:"customerId"`
	PasswordHash   string     `json:"-"`
	FailedAttempts int        `json:"failedAttempts"`
	LockedUntil    *time.Time `json:"lockedUntil,omitempty"`
	LastLoginAt    *time.Time `json:"lastLoginAt,omitempty"`
}

// RefreshToken is a stored (hashed) refresh token.
type RefreshToken struct {
	CustomerID string    `json:"customerId"`
	TokenHash  string    `json:"tokenHash"`
	ExpiresAt  time.Time `json:"expiresAt"`
	Revoked    bool      `json:"revoked"`
}
