// Package domain holds the collection data model shared by the refresh
// scheduler, the snapshot coordinator and the sync publisher.
package domain

import (
	"github.com/shopspring/decimal"
)

// DashboardList is the reserved list name for the aggregate view.
// It never holds items and is excluded from enumeration and totals.
const DashboardList = "Dashboard"

// Item is a single priced entry of a list. Name doubles as the lookup key
// against the price source; an empty name means the item is never refreshed.
type Item struct {
	Name               string           `json:"name"`
	Quantity           uint             `json:"qty"`
	CurrentPrice       *decimal.Decimal `json:"current_price,omitempty"`
	PreviousPrice      *decimal.Decimal `json:"previous_price,omitempty"`
	FluctuationPercent *decimal.Decimal `json:"fluctuation_percent,omitempty"`
	Locked             bool             `json:"locked,omitempty"`
	// Color is a presentation tag, persisted opaquely and never interpreted.
	Color string `json:"color,omitempty"`
}

// Refreshable reports whether the scheduler should fetch a price for the item.
func (it Item) Refreshable() bool {
	return it.Name != "" && !it.Locked
}

// Value returns quantity times current price, zero when no price is known.
func (it Item) Value() decimal.Decimal {
	if it.CurrentPrice == nil {
		return decimal.Zero
	}
	return it.CurrentPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

// List is a named, ordered collection of items (the "tab" concept).
// Icon is an opaque display image reference, passed through unchanged.
type List struct {
	Name  string `json:"name"`
	Icon  string `json:"icon,omitempty"`
	Items []Item `json:"items"`
}

// Total sums quantity times current price over the list's items.
func (l List) Total() decimal.Decimal {
	total := decimal.Zero
	for _, it := range l.Items {
		total = total.Add(it.Value())
	}
	return total
}

// Group is a named collection of lists (the "folder" concept).
// Groups hold lists only, never other groups.
type Group struct {
	Name  string `json:"name"`
	Lists []List `json:"lists"`
}

// Catalog is the whole collection: top-level lists plus one level of groups.
type Catalog struct {
	Lists  []List  `json:"lists"`
	Groups []Group `json:"groups,omitempty"`
}

// ListNames returns the names of all lists in stored order, top-level lists
// first and then group lists group by group, skipping the reserved Dashboard.
func (c Catalog) ListNames() []string {
	names := make([]string, 0, len(c.Lists))
	for _, l := range c.Lists {
		if l.Name == DashboardList {
			continue
		}
		names = append(names, l.Name)
	}
	for _, g := range c.Groups {
		for _, l := range g.Lists {
			if l.Name == DashboardList {
				continue
			}
			names = append(names, l.Name)
		}
	}
	return names
}

// FindList returns a pointer into the catalog for the named list, nil when
// the list does not exist or is the reserved Dashboard.
func (c *Catalog) FindList(name string) *List {
	if name == DashboardList {
		return nil
	}
	for i := range c.Lists {
		if c.Lists[i].Name == name {
			return &c.Lists[i]
		}
	}
	for gi := range c.Groups {
		for li := range c.Groups[gi].Lists {
			if c.Groups[gi].Lists[li].Name == name {
				return &c.Groups[gi].Lists[li]
			}
		}
	}
	return nil
}

// Total sums quantity times current price across every list except Dashboard.
func (c Catalog) Total() decimal.Decimal {
	total := decimal.Zero
	for _, name := range c.ListNames() {
		if l := c.FindList(name); l != nil {
			total = total.Add(l.Total())
		}
	}
	return total
}
