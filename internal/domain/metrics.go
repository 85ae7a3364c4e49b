package domain

// FunnelMetrics is the conversion snapshot served by
// GET /v1/metrics/funnel.
type FunnelMetrics struct {
	SessionsStarted int64   `json:"sessionsStarted"`
	AccountsCreated int64   `json:"accountsCreated"`
	OrdersCreated   int64   `json:"ordersCreated"`
	PaymentSessions int64   `json:"paymentSessions"`
	ConversionRate  float64 `json:"conversionRate"`
	CEPLookupsOK    int64   `json:"cepLookupsOk"`
	CEPLookupsBad   int64   `json:"cepLookupsBad"`
}
