// Package mask formats raw digit input into the canonical Brazilian
// display masks used by the checkout forms (CPF/CNPJ, phone, CEP).
// Masks are progressive: partial input yields a partial mask. Applying a
// mask to an already-masked string yields the same result, so the raw
// digits are always recoverable via brdoc.Digits.
package mask

import (
	"strings"

	"github.com/opadata/checkout-api/internal/brdoc"
)

// Document masks a CPF (###.###.###-##) when the input has up to 11
// digits, and a CNPJ (##.###.###/####-##) beyond that. Input is truncated
// to 14 digits.
func Document(s string) string {
	d := brdoc.Digits(s)
	if len(d) > 14 {
		d = d[:14]
	}
	if len(d) <= 11 {
		return applyPattern(d, "###.###.###-##")
	}
	return applyPattern(d, "##.###.###/####-##")
}

// Phone masks a landline ((##) ####-####) for up to 10 digits and a
// mobile ((##) #####-####) for 11. Input is truncated to 11 digits.
func Phone(s string) string {
	d := brdoc.Digits(s)
	if len(d) > 11 {
		d = d[:11]
	}
	if len(d) <= 10 {
		return applyPattern(d, "(##) ####-####")
	}
	return applyPattern(d, "(##) #####-####")
}

// PostalCode masks a CEP as #####-###. Input is truncated to 8 digits.
func PostalCode(s string) string {
	d := brdoc.Digits(s)
	if len(d) > 8 {
		d = d[:8]
	}
	return applyPattern(d, "#####-###")
}

// applyPattern fills '#' slots with digits, emitting separators only while
// digits remain. Trailing separators are never emitted, which is what
// makes the masks progressive and idempotent.
func applyPattern(digits, pattern string) string {
	var b strings.Builder
	i := 0
	for _, p := range pattern {
		if i >= len(digits) {
			break
		}
		if p == '#' {
			b.WriteByte(digits[i])
			i++
		} else {
			b.WriteRune(p)
		}
	}
	return b.String()
}
