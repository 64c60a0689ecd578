package domain

import "github.com/shopspring/decimal"

var (
	percentMultiplier = decimal.NewFromInt(100)

	// fluctuationBound clamps the percent change to ±300. The bound is
	// load-bearing for the display layer, do not widen it.
	fluctuationBound = decimal.NewFromInt(300)
)

// Fluctuation returns the percent change from base to price, clamped
// to [-300, 300]. Base must be positive.
func Fluctuation(base, price decimal.Decimal) decimal.Decimal {
	pct := price.Sub(base).Div(base).Mul(percentMultiplier)
	if pct.GreaterThan(fluctuationBound) {
		return fluctuationBound
	}
	if pct.LessThan(fluctuationBound.Neg()) {
		return fluctuationBound.Neg()
	}
	return pct
}

// ApplyPrice folds a freshly fetched price into the item's running
// fluctuation statistics. The baseline is the previous price when known,
// falling back to the current price. An item that has never been priced
// gets both prices set and keeps a nil fluctuation until its second fetch.
func (it *Item) ApplyPrice(price decimal.Decimal) {
	base := it.PreviousPrice
	if base == nil {
		base = it.CurrentPrice
	}
	if base == nil {
		first := price
		it.PreviousPrice = &first
		it.CurrentPrice = &price
		it.FluctuationPercent = nil
		return
	}

	if base.IsPositive() {
		pct := Fluctuation(*base, price)
		it.FluctuationPercent = &pct
	} else {
		zero := decimal.Zero
		it.FluctuationPercent = &zero
	}

	it.PreviousPrice = base
	it.CurrentPrice = &price
}
