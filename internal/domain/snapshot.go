package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DashboardScope is the snapshot scope covering the whole collection.
const DashboardScope = "dashboard"

const dateKeyLayout = "2006-01-02"

// SnapshotRecord is a recorded total value for a scope on a calendar date.
// Records are write-once: at most one may exist per (scope, date key) pair
// and an existing record is never overwritten.
type SnapshotRecord struct {
	Scope      string          `json:"scope"`
	DateKey    string          `json:"date_key"`
	Value      decimal.Decimal `json:"value"`
	CapturedAt time.Time       `json:"captured_at"`
}

// DateKey formats t as a calendar date in the given reference location.
func DateKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(dateKeyLayout)
}
