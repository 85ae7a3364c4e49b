package domain

import "time"

// PlanType identifies a product family in the hosting catalog.
type PlanType string

const (
	PlanVPS         PlanType = "vps"
	PlanVPSEconomy  PlanType = "vps-economy"
	PlanDedicated   PlanType = "dedicated"
	PlanVPSGames    PlanType = "vps-games"
	PlanServidorOpa PlanType = "servidor-opa"
	PlanServidorIXC PlanType = "servidor-ixc"
	PlanCloudTrader PlanType = "cloud-trader"
	PlanColocation  PlanType = "colocation"
)

// Valid reports whether t is one of the known plan families.
func (t PlanType) Valid() bool {
	switch t {
	case PlanVPS, PlanVPSEconomy, PlanDedicated, PlanVPSGames,
		PlanServidorOpa, PlanServidorIXC, PlanCloudTrader, PlanColocation:
		return true
	}
	return false
}

// Plan is a catalog entry managed through the content store.
type Plan struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Type         PlanType          `json:"type"`
	MonthlyPrice float64           `json:"monthlyPrice"`
	Specs        map[string]string `json:"specs,omitempty"`
	Active       bool              `json:"active"`
	CreatedAt    time.Time         `json:"createdAt"`
}
