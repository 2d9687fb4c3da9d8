package order

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

var ErrInvalidAmount = errors.New("amount must be a positive number")

type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "Efectivo"
	PaymentTransfer PaymentMethod = "Transferencia"
)

func (p PaymentMethod) Valid() bool {
	return p == PaymentCash || p == PaymentTransfer
}

// AccessCode records whether the delivery address sits behind a gated entrance.
type AccessCode string

const (
	AccessCodeYes AccessCode = "access_code_yes"
	AccessCodeNo  AccessCode = "access_code_no"
)

func (a AccessCode) Valid() bool {
	return a == AccessCodeYes || a == AccessCodeNo
}

func (a AccessCode) Required() bool {
	return a == AccessCodeYes
}

func (a AccessCode) Phrase() string {
	switch a {
	case AccessCodeYes:
		return "Sí, requiere código de acceso"
	case AccessCodeNo:
		return "No requiere código de acceso"
	default:
		return "Sin especificar"
	}
}

var cashAmountPattern = regexp.MustCompile(`^\d+(\.\d{1,2})?$`)

// ParseCashAmount accepts "200", "$500" or "1,000" and returns the normalized amount text.
// Only plain decimal digits pass; signs and exponents are rejected.
func ParseCashAmount(input string) (string, error) {
	s := strings.TrimSpace(input)
	s = strings.TrimSpace(strings.TrimPrefix(s, "$"))
	s = strings.ReplaceAll(s, ",", "")
	if !cashAmountPattern.MatchString(s) {
		return "", ErrInvalidAmount
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 {
		return "", ErrInvalidAmount
	}
	return strconv.FormatFloat(v, 'f', -1, 64), nil
}

// FormatMoney renders an amount the way the web menu prints it.
func FormatMoney(v float64) string {
	return "$" + strconv.FormatFloat(v, 'f', 2, 64)
}
