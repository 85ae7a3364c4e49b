package domain

import "time"

// Step is the checkout wizard cursor.
type Step int

const (
	StepProductReview Step = iota + 1
	StepConfiguration
	StepAccount
	StepPayment
)

func (s Step) String() string {
	switch s {
	case StepProductReview:
		return "product_review"
	case StepConfiguration:
		return "configuration"
	case StepAccount:
		return "account"
	case StepPayment:
		return "payment"
	}
	return "unknown"
}

// CheckoutSession is one prospective purchase walking through the wizard.
// It lives in the session store only; nothing is persisted until the
// order is submitted.
type CheckoutSession struct {
	ID         string     `json:"id"`
	Step       Step       `json:"currentStep"`
	Draft      OrderDraft `json:"draft"`
	Registrant Registrant `json:"registrant"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// Authenticated reports whether the session's registrant is bound to a
// customer account.
func (s *CheckoutSession) Authenticated() bool {
	return s.Registrant.CustomerID != ""
}

// CheckoutView is the wire representation of a session, with display
// masks applied to the registrant's document, phone and postal code.
type CheckoutView struct {
	ID         string     `json:"id"`
	Step       Step       `json:"currentStep"`
	StepName   string     `json:"currentStepName"`
	Draft      OrderDraft `json:"draft"`
	Registrant Registrant `json:"registrant"`
	// Current price for the selected billing cycle, two decimals.
	CurrentPrice float64 `json:"currentPrice"`
	// Per-month cost of the discounted yearly total, shown as
	// "R$ X/mês" next to the yearly option.
	YearlyPerMonth float64 `json:"yearlyPerMonth"`
}

// RegistrantUpdate carries a partial registrant edit. Nil fields are left
// untouched, so the frontend can send one field per keystroke burst.
type RegistrantUpdate struct {
	Name          *string `json:"name,omitempty"`
	Email         *string `json:"email,omitempty"`
	Phone         *string `json:"phone,omitempty"`
	TaxID         *string `json:"taxId,omitempty"`
	PostalCode    *string `json:"postalCode,omitempty"`
	Street        *string `json:"street,omitempty"`
	Number        *string `json:"number,omitempty"`
	Complement    *string `json:"complement,omitempty"`
	Neighborhood  *string `json:"neighborhood,omitempty"`
	City          *string `json:"city,omitempty"`
	State         *string `json:"state,omitempty"`
	AcceptedTerms *bool   `json:"acceptedTerms,omitempty"`
}

// DraftUpdate carries the Configuration-step choices.
type DraftUpdate struct {
	BillingCycle *BillingCycle   `json:"billingCycle,omitempty"`
	Location     *ServerLocation `json:"location,omitempty"`
}

// AccountRequest is the Account-step payload. Password is write-only and
// never stored on the session.
type AccountRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SubmitResult is returned by the Payment-step submission.
type SubmitResult struct {
	InvoiceID string  `json:"invoiceId"`
	Amount    float64 `json:"amount"`
	InitPoint string  `json:"init_point"`
}
