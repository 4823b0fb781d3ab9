package model

import "math"

const (
	// ServiceFeePercent is the operator's cut of each payment.
	ServiceFeePercent = 3

	MinPixAmount = 1.0
	MaxPixAmount = 10000.0
)

// centsSlack absorbs binary representation error so that 1.15 is 115
// cents; it is far below the half cent that separates 33.335 from 33.34.
const centsSlack = 1e-6

// AmountInCents converts a currency amount to integer minor units. Fractions
// of a cent are truncated, never rounded: 33.335 is 3333 cents.
func AmountInCents(amount float64) int64 {
	return int64(amount*100 + centsSlack)
}

// SplitCents is the PushInPay split value: the fee over integer cents, floored.
func SplitCents(amount float64) int64 {
	return AmountInCents(amount) * ServiceFeePercent / 100
}

// ApplicationFee is the Mercado Pago application fee in currency units,
// rounded to two decimals.
func ApplicationFee(amount float64) float64 {
	return RoundCurrency(amount * ServiceFeePercent / 100)
}

// RoundCurrency rounds to two decimal places.
func RoundCurrency(v float64) float64 {
	return math.Round(v*100) / 100
}

// ServiceFee is the fee actually charged by kind, in currency units.
func ServiceFee(kind GatewayKind, amount float64) float64 {
	if kind == GatewayPushInPay {
		return float64(SplitCents(amount)) / 100
	}
	return ApplicationFee(amount)
}
