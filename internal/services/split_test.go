package services

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestComputeSplit(t *testing.T) {
	tests := []struct {
		name       string
		gross      string
		percent    string
		wantFee    string
		wantSchool string
	}{
		{"whole amount", "10000", "5", "500", "9500"},
		{"typical tuition", "5000", "5", "250", "4750"},
		{"large amount", "250000", "5", "12500", "237500"},
		{"repeating fraction rounds", "33.33", "5", "1.67", "31.66"},
		{"tiny amount", "0.01", "5", "0", "0.01"},
		{"odd kobo amount", "100.01", "5", "5", "95.01"},
		{"custom percent", "1000", "7.5", "75", "925"},
		{"zero percent", "1000", "0", "0", "1000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gross := decimal.RequireFromString(tt.gross)
			percent := decimal.RequireFromString(tt.percent)

			fee, school := ComputeSplit(gross, percent)

			if !fee.Equal(decimal.RequireFromString(tt.wantFee)) {
				t.Errorf("platform fee = %s, want %s", fee, tt.wantFee)
			}
			if !school.Equal(decimal.RequireFromString(tt.wantSchool)) {
				t.Errorf("school amount = %s, want %s", school, tt.wantSchool)
			}
			if !fee.Add(school).Equal(gross) {
				t.Errorf("fee %s + school %s = %s, does not equal gross %s",
					fee, school, fee.Add(school), gross)
			}
		})
	}
}

func TestComputeSplitSumExactness(t *testing.T) {
	// The school amount is derived by subtraction, so the parts must sum to
	// the gross for any amount, including ones that don't divide evenly
	amounts := []string{"0.01", "0.03", "1", "19.99", "333.33", "6666.67", "99999.99", "123456.78"}

	for _, a := range amounts {
		gross := decimal.RequireFromString(a)
		fee, school := ComputeSplit(gross, DefaultPlatformPercent)
		if !fee.Add(school).Equal(gross) {
			t.Errorf("amount %s: fee %s + school %s != gross", a, fee, school)
		}
		if fee.IsNegative() || school.IsNegative() {
			t.Errorf("amount %s: negative part in split (%s / %s)", a, fee, school)
		}
	}
}
