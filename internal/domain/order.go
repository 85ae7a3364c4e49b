package domain

import "time"

// BillingCycle is the invoicing period selected for a plan.
type BillingCycle string

const (
	BillingMonthly BillingCycle = "monthly"
	BillingYearly  BillingCycle = "yearly"
)

// ServerLocation is the data center the plan is provisioned in.
type ServerLocation string

const (
	LocationBR ServerLocation = "br"
	LocationUS ServerLocation = "us"
)

// PlanParams are the checkout entry-point parameters. The frontend passes
// them straight from the pricing page URL; price uses a comma as the
// decimal separator and specs arrive as URL-encoded JSON.
type PlanParams struct {
	PlanID   string `json:"plan"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Price    string `json:"price"`
	Specs    string `json:"specs,omitempty"`
	Location string `json:"location,omitempty"`
}

// OrderDraft is the in-progress, session-held representation of a
// prospective purchase. It is mutated across wizard steps and discarded
// once submitted (or when the session expires).
type OrderDraft struct {
	PlanID       string            `json:"planId"`
	PlanName     string            `json:"planName"`
	PlanType     PlanType          `json:"planType"`
	MonthlyPrice float64           `json:"planPriceMonthly"`
	Specs        map[string]string `json:"planSpecs,omitempty"`
	BillingCycle BillingCycle      `json:"billingCycle"`
	Location     ServerLocation    `json:"serverLocation"`
}

// Order is the persisted result of a submitted draft.
type Order struct {
	ID           string            `json:"id"`
	InvoiceID    string            `json:"invoiceId"`
	CustomerID   string            `json:"customerId"`
	PlanID       string            `json:"planId"`
	PlanName     string            `json:"planName"`
	PlanType     PlanType          `json:"planType"`
	Amount       float64           `json:"amount"`
	BillingCycle BillingCycle      `json:"billingCycle"`
	Location     ServerLocation    `json:"location"`
	Specs        map[string]string `json:"specs,omitempty"`
	Status       string            `json:"status"`
	CreatedAt    time.Time         `json:"createdAt"`
}

// Order statuses.
const (
	OrderStatusCreated         = "created"
	OrderStatusAwaitingPayment = "awaiting_payment"
)

// PaymentSession is the gateway-hosted payment entry returned on submit.
// InitPoint is the URL the browser is redirected to.
type PaymentSession struct {
	ID        string  `json:"id"`
	InvoiceID string  `json:"invoiceId"`
	Amount    float64 `json:"amount"`
	InitPoint string  `json:"init_point"`
}
