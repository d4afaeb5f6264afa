package services

import "github.com/shopspring/decimal"

// DefaultPlatformPercent is the platform's share of every payment
var DefaultPlatformPercent = decimal.NewFromInt(5)

var oneHundred = decimal.NewFromInt(100)

// ComputeSplit splits a gross amount into the platform fee and the school
// amount. The fee is gross * percent / 100 rounded to 2 places; the school
// amount is the remainder by subtraction, never rounded independently, so
// platformFee + schoolAmount == gross holds for every input.
//
// Every recording path (online, webhook, manual) must go through this so the
// split rule cannot drift between entry points.
func ComputeSplit(gross, platformPercent decimal.Decimal) (platformFee, schoolAmount decimal.Decimal) {
	platformFee = gross.Mul(platformPercent).Div(oneHundred).Round(2)
	schoolAmount = gross.Sub(platformFee)
	return platformFee, schoolAmount
}
