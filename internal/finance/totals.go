// Package finance holds the pure money arithmetic shared by invoices, voucher lines and reports.
package finance

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Totals is the derived money breakdown of a taxable amount.
type Totals struct {
	Vat      decimal.Decimal `json:"vat"`
	Wht      decimal.Decimal `json:"wht"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Total    decimal.Decimal `json:"total"`
}

// ComputeTotals derives VAT, WHT, subtotal and total.
// Only VAT and WHT are rounded, to 2 places, half away from zero.
// WHT is levied on the vatable base only.
func ComputeTotals(vatable, nonVatable, vatRate, whtRate decimal.Decimal) Totals {
	vat := vatable.Mul(vatRate).Div(hundred).Round(2)
	wht := vatable.Mul(whtRate).Div(hundred).Round(2)
	subtotal := vatable.Add(nonVatable)
	return Totals{
		Vat:      vat,
		Wht:      wht,
		Subtotal: subtotal,
		Total:    subtotal.Add(vat).Sub(wht),
	}
}

// LineTotals treats a voucher line amount as fully vatable.
func LineTotals(amount, vatRate, whtRate decimal.Decimal) Totals {
	return ComputeTotals(amount, decimal.Zero, vatRate, whtRate)
}

// OrZero turns an absent input into zero.
func OrZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}

// Sum adds a list of amounts.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}
