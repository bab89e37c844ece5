// Package core provides the domain types shared by the dashboard and the
// reference backend.
//
// This file contains the parsing of GBP amounts as they appear in invoice
// text ("£2,812.50", "GBP 1234.5", "3,375").
package core

import (
	"errors"
	"strconv"
	"strings"
	"unicode"
)

var ErrInvalidAmount = errors.New("invalid amount")

// ParseGBPToPence converts an invoice amount to pence with half-up rounding.
//
// Commas are thousands separators, a single dot is the decimal point. A
// leading "£" or "GBP" is ignored. Negative or empty amounts are rejected.
//
// Examples:
//
//	ParseGBPToPence("£2,812.50") -> 281250, nil
//	ParseGBPToPence("GBP 12")    -> 1200, nil
//	ParseGBPToPence("1.005")     -> 101, nil (rounds up)
func ParseGBPToPence(s string) (int64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "£")
	if len(s) >= 3 && strings.EqualFold(s[:3], "gbp") {
		s = s[3:]
	}
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" || strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		return 0, ErrInvalidAmount
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, ErrInvalidAmount
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart + fracPart {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	const maxSafe = (1<<63 - 1) / 100
	if iv > maxSafe {
		return 0, ErrInvalidAmount
	}
	var frac int64
	if len(fracPart) > 0 {
		frac = int64(fracPart[0]-'0') * 10
		if len(fracPart) > 1 {
			frac += int64(fracPart[1] - '0')
			if len(fracPart) > 2 && fracPart[2] >= '5' {
				frac++
			}
		}
	}
	return iv*100 + frac, nil
}

// PenceToPounds returns the pound value for display and JSON.
func PenceToPounds(p int64) float64 {
	return float64(p) / 100.0
}
