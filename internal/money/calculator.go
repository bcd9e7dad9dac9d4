// Package money holds the totals calculator shared by every order mutation.
// Amounts are kept at three decimal places (fils) and rounded half-up at the
// point each figure is computed, so receipts can be re-derived exactly.
package money

import "github.com/shopspring/decimal"

// Precision is the number of decimal places every stored amount carries.
const Precision int32 = 3

var hundred = decimal.NewFromInt(100)

// DiscountType: "percent" | "fixed"
type DiscountType string

const (
	DiscountPercent DiscountType = "percent"
	DiscountFixed   DiscountType = "fixed"
)

// Valid reports whether t is a known discount type.
func (t DiscountType) Valid() bool {
	return t == DiscountPercent || t == DiscountFixed
}

// Discount is the discount as entered on an order.
type Discount struct {
	Type  DiscountType
	Value decimal.Decimal
}

// Rates are the per-branch service charge and tax rates, as fractions (0.10 = 10%).
type Rates struct {
	ServiceCharge decimal.Decimal
	Tax           decimal.Decimal
}

// Totals is the output of ComputeTotals.
type Totals struct {
	Subtotal       decimal.Decimal
	DiscountAmount decimal.Decimal
	ServiceCharge  decimal.Decimal
	TaxAmount      decimal.Decimal
	Total          decimal.Decimal
}

// Round rounds to Precision places. Amounts here are never negative, so
// decimal's half-away-from-zero behaves as half-up.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Precision)
}

// ComputeTotals derives discount, service charge, tax and total from a
// subtotal. Tax is charged on the discounted subtotal plus service charge.
//
// The caller must clamp a fixed discount to the subtotal first (see Clamp);
// a discount larger than the subtotal is a contract violation.
func ComputeTotals(subtotal decimal.Decimal, discount *Discount, rates Rates) Totals {
	subtotal = Round(subtotal)

	discountAmount := decimal.Zero
	if discount != nil {
		switch discount.Type {
		case DiscountPercent:
			discountAmount = Round(subtotal.Mul(discount.Value).Div(hundred))
		case DiscountFixed:
			discountAmount = Round(discount.Value)
		}
	}

	afterDiscount := Round(subtotal.Sub(discountAmount))
	serviceCharge := Round(afterDiscount.Mul(rates.ServiceCharge))
	taxAmount := Round(afterDiscount.Add(serviceCharge).Mul(rates.Tax))
	total := Round(afterDiscount.Add(serviceCharge).Add(taxAmount))

	return Totals{
		Subtotal:       subtotal,
		DiscountAmount: discountAmount,
		ServiceCharge:  serviceCharge,
		TaxAmount:      taxAmount,
		Total:          total,
	}
}

// Clamp returns a discount that cannot exceed subtotal: percent values are
// capped at 100 and fixed values at the subtotal. A nil discount stays nil.
func Clamp(subtotal decimal.Decimal, d *Discount) *Discount {
	if d == nil {
		return nil
	}
	out := *d
	if out.Value.IsNegative() {
		out.Value = decimal.Zero
	}
	switch out.Type {
	case DiscountPercent:
		if out.Value.GreaterThan(hundred) {
			out.Value = hundred
		}
	case DiscountFixed:
		if out.Value.GreaterThan(subtotal) {
			out.Value = subtotal
		}
	}
	return &out
}
