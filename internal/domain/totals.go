package domain

import "github.com/shopspring/decimal"

const moneyPlaces = 2

var hundred = decimal.NewFromInt(100)

// RoundMoney rounds half away from zero to currency precision.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(moneyPlaces)
}

// ComputeTotals prices a cart. Tax is computed and rounded per line so that
// the sum of line totals always equals the grand total.
func ComputeTotals(lines []CartLine) Totals {
	totals := Totals{
		Subtotal:       decimal.Zero,
		TaxAmount:      decimal.Zero,
		DiscountAmount: decimal.Zero,
		Total:          decimal.Zero,
		Lines:          make([]LineTotals, 0, len(lines)),
	}

	for _, line := range lines {
		lt := ComputeLine(line)
		totals.Subtotal = totals.Subtotal.Add(lt.Subtotal)
		totals.TaxAmount = totals.TaxAmount.Add(lt.TaxAmount)
		totals.DiscountAmount = totals.DiscountAmount.Add(lt.Discount)
		totals.Lines = append(totals.Lines, lt)
	}
	totals.Total = totals.Subtotal.Add(totals.TaxAmount).Sub(totals.DiscountAmount)

	return totals
}

func ComputeLine(line CartLine) LineTotals {
	qty := decimal.NewFromInt(int64(line.Quantity))
	subtotal := line.UnitPrice.Mul(qty)
	tax := RoundMoney(subtotal.Mul(line.TaxRate).Div(hundred))

	return LineTotals{
		ProductID: line.ProductID,
		Subtotal:  subtotal,
		TaxAmount: tax,
		Discount:  line.Discount,
		LineTotal: subtotal.Add(tax).Sub(line.Discount),
	}
}
