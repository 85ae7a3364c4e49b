package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParsePrice parses a price string as sent by the pricing pages, which
// use a comma as the decimal separator ("29,90"). A dot is accepted too.
func ParsePrice(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty price")
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		return 0, fmt.Errorf("parse price %q: %w", s, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("price must be positive, got %v", v)
	}
	return v, nil
}

// RoundPrice rounds to two decimals (standard currency display).
func RoundPrice(v float64) float64 {
	return math.Round(v*100) / 100
}

// CyclePrice computes the amount charged for the selected billing cycle.
// Yearly is twelve months with a flat discount (factor 0.85 charges 85%
// of the annual total).
func CyclePrice(monthly float64, cycle BillingCycle, yearlyFactor float64) float64 {
	if cycle == BillingYearly {
		return RoundPrice(monthly * 12 * yearlyFactor)
	}
	return RoundPrice(monthly)
}

// MonthlyEquivalent is the per-month cost of the yearly total, used for
// the "R$ X/mês" display next to the yearly option.
func MonthlyEquivalent(monthly float64, yearlyFactor float64) float64 {
	return RoundPrice(CyclePrice(monthly, BillingYearly, yearlyFactor) / 12)
}
