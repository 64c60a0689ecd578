// Package pricer resolves item market hash names to market prices.
package pricer

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrRateLimited signals that requests arrive too fast for the source.
	ErrRateLimited = errors.New("price source rate limited")
	// ErrUnavailable signals a hard lookup failure for one item.
	ErrUnavailable = errors.New("price source unavailable")
)

// Quote is a best-effort market price for one item. Either field may be nil
// when the source did not report a usable value.
type Quote struct {
	Lowest *decimal.Decimal
	Median *decimal.Decimal
}

// Pricer looks up the current market price of an item by name.
type Pricer interface {
	Lookup(ctx context.Context, name string) (Quote, error)
}
