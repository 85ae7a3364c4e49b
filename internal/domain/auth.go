package domain

// SignUpRequest is the account-creation payload. Field names match the
// storefront contract (snake_case for the Brazilian fiscal fields).
type SignUpRequest struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	Password      string `json:"password"`
	Phone         string `json:"phone"`
	TaxID         string `json:"cpf_cnpj"`
	PostalCode    string `json:"cep"`
	Street        string `json:"street"`
	Number        string `json:"number"`
	Complement    string `json:"complement,omitempty"`
	Neighborhood  string `json:"neighborhood"`
	City          string `json:"city"`
	State         string `json:"state"`
	AcceptedTerms bool   `json:"accepted_terms"`
}

// SignUpResponse is the body for a successful registration.
type SignUpResponse struct {
	CustomerID string `json:"customerId"`
	Message    string `json:"message"`
}

// LoginRequest is the body for POST /v1/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is the body for a successful login or refresh.
type LoginResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int    `json:"expiresIn"`
	CustomerID   string `json:"customerId"`
	CustomerName string `json:"customerName"`
}

// RefreshRequest is the body for POST /v1/auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}
