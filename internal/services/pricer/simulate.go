package pricer

import (
	"context"
	"hash/fnv"
	"math/rand"
	"sync"

	"github.com/shopspring/decimal"
)

// SimulatePricer produces deterministic random-walk prices without touching
// the network, for dry runs and local testing.
type SimulatePricer struct {
	mu     sync.Mutex
	rnd    *rand.Rand
	prices map[string]decimal.Decimal
}

// NewSimulatePricer returns a simulated price source seeded for
// reproducible walks.
func NewSimulatePricer(seed int64) *SimulatePricer {
	return &SimulatePricer{
		rnd:    rand.New(rand.NewSource(seed)),
		prices: make(map[string]decimal.Decimal),
	}
}

// Lookup returns the item's simulated price, moving it up to ±2% per call.
// The starting price derives from the item name so runs are stable.
func (p *SimulatePricer) Lookup(_ context.Context, name string) (Quote, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	price, ok := p.prices[name]
	if !ok {
		price = basePriceFor(name)
	}

	drift := decimal.NewFromFloat((p.rnd.Float64() - 0.5) * 0.04)
	price = price.Mul(decimal.NewFromInt(1).Add(drift)).Round(2)
	if !price.IsPositive() {
		price = decimal.NewFromFloat(0.03)
	}
	p.prices[name] = price

	return Quote{Lowest: &price, Median: &price}, nil
}

func basePriceFor(name string) decimal.Decimal {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	cents := int64(h.Sum32()%10000) + 30
	return decimal.New(cents, -2)
}
