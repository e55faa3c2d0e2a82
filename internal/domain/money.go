package domain

import "github.com/shopspring/decimal"

var zeroDecimalCurrencies = map[string]bool{
	"JPY": true, "KRW": true, "VND": true, "CLP": true,
	"ISK": true, "UGX": true, "XOF": true, "XAF": true,
}

var threeDecimalCurrencies = map[string]bool{
	"BHD": true, "KWD": true, "OMR": true, "JOD": true, "TND": true,
}

// MinorUnits returns the ISO 4217 exponent for currency. Unknown codes use 2.
func MinorUnits(currency string) int32 {
	switch {
	case zeroDecimalCurrencies[currency]:
		return 0
	case threeDecimalCurrencies[currency]:
		return 3
	default:
		return 2
	}
}

// RoundMoney rounds amount half away from zero to the currency's minor unit.
func RoundMoney(amount decimal.Decimal, currency string) decimal.Decimal {
	return amount.Round(MinorUnits(currency))
}

// MinorUnit returns the smallest representable amount in currency (0.01 for USD).
func MinorUnit(currency string) decimal.Decimal {
	return decimal.New(1, -MinorUnits(currency))
}
