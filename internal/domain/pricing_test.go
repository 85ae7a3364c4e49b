package domain_test

import (
	"testing"

	"github.com/opadata/checkout-api/internal/domain"
)

func TestParsePrice(t *testing.T) {
	cases := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"29,90", 29.90, false},
		{"100.00", 100.00, false},
		{" 49,90 ", 49.90, false},
		{"", 0, true},
		{"abc", 0, true},
		{"-10,00", 0, true},
		{"0", 0, true},
	}
	for _, c := range cases {
		got, err := domain.ParsePrice(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("ParsePrice(%q): expected error", c.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParsePrice(%q): unexpected error %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("ParsePrice(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestCyclePrice(t *testing.T) {
	// monthly 100.00 -> yearly 100 * 12 * 0.85 = 1020.00
	if got := domain.CyclePrice(100, domain.BillingYearly, 0.85); got != 1020.00 {
		t.Errorf("yearly total = %v, want 1020.00", got)
	}
	if got := domain.CyclePrice(100, domain.BillingMonthly, 0.85); got != 100.00 {
		t.Errorf("monthly total = %v, want 100.00", got)
	}
	// monthly-equivalent of the yearly total: 1020 / 12 = 85.00
	if got := domain.MonthlyEquivalent(100, 0.85); got != 85.00 {
		t.Errorf("monthly equivalent = %v, want 85.00", got)
	}
	// the end-to-end plan: 29,90 yearly -> 29.90 * 12 * 0.85 = 304.98
	if got := domain.CyclePrice(29.90, domain.BillingYearly, 0.85); got != 304.98 {
		t.Errorf("yearly total for 29.90 = %v, want 304.98", got)
	}
}
