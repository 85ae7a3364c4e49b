// Package brdoc validates Brazilian fiscal documents (CPF and CNPJ)
// using the official modulo-11 check-digit algorithms. All functions are
// pure and never return errors; an invalid input is simply false.
package brdoc

import "strings"

// Digits returns the digit-only projection of s.
func Digits(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}

// ValidCPF reports whether s contains a structurally valid CPF
// (11 digits, two check digits). Masked and unmasked input are accepted.
func ValidCPF(s string) bool {
	d := Digits(s)
	if len(d) != 11 || allSame(d) {
		return false
	}

	// First check digit: weights 10..2 over digits 0..8.
	sum := 0
	for i := 0; i < 9; i++ {
		sum += int(d[i]-'0') * (10 - i)
	}
	if cpfCheckDigit(sum) != int(d[9]-'0') {
		return false
	}

	// Second check digit: weights 11..2 over digits 0..9.
	sum = 0
	for i := 0; i < 10; i++ {
		sum += int(d[i]-'0') * (11 - i)
	}
	return cpfCheckDigit(sum) == int(d[10]-'0')
}

func cpfCheckDigit(sum int) int {
	r := 11 - sum%11
	if r >= 10 {
		return 0
	}
	return r
}

// ValidCNPJ reports whether s contains a structurally valid CNPJ
// (14 digits, two check digits). Masked and unmasked input are accepted.
func ValidCNPJ(s string) bool {
	d := Digits(s)
	if len(d) != 14 || allSame(d) {
		return false
	}

	if cnpjCheckDigit(d[:12]) != int(d[12]-'0') {
		return false
	}
	return cnpjCheckDigit(d[:13]) == int(d[13]-'0')
}

// cnpjCheckDigit computes the modulo-11 check digit over the given prefix.
// Weights cycle 2..9 walking right-to-left; the cycle is the part that is
// easy to mis-port, so it is locked by known-valid vectors in the tests.
func cnpjCheckDigit(prefix string) int {
	sum := 0
	weight := 2
	for i := len(prefix) - 1; i >= 0; i-- {
		sum += int(prefix[i]-'0') * weight
		weight++
		if weight > 9 {
			weight = 2
		}
	}
	if sum%11 < 2 {
		return 0
	}
	return 11 - sum%11
}

// ValidDocument dispatches on digit count: 11 digits are validated as CPF,
// anything else as CNPJ.
func ValidDocument(s string) bool {
	if len(Digits(s)) == 11 {
		return ValidCPF(s)
	}
	return ValidCNPJ(s)
}

func allSame(d string) bool {
	for i := 1; i < len(d); i++ {
		if d[i] != d[0] {
			return false
		}
	}
	return true
}
