package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func testCatalog() Catalog {
	return Catalog{
		Lists: []List{
			{Name: DashboardList},
			{Name: "Cases", Items: []Item{
				{Name: "Chroma Case", Quantity: 2, CurrentPrice: dec("1.50")},
				{Name: "", Quantity: 5, CurrentPrice: dec("9.99")},
			}},
		},
		Groups: []Group{
			{Name: "Stickers", Lists: []List{
				{Name: "Katowice", Items: []Item{
					{Name: "Sticker X", Quantity: 1, CurrentPrice: dec("10"), Locked: true},
					{Name: "Sticker Y", Quantity: 3},
				}},
			}},
		},
	}
}

func TestListNamesExcludesDashboard(t *testing.T) {
	cat := testCatalog()
	require.Equal(t, []string{"Cases", "Katowice"}, cat.ListNames())
}

func TestFindList(t *testing.T) {
	cat := testCatalog()

	require.NotNil(t, cat.FindList("Cases"))
	require.NotNil(t, cat.FindList("Katowice"), "group lists must be reachable")
	require.Nil(t, cat.FindList("missing"))
	require.Nil(t, cat.FindList(DashboardList), "reserved list is never returned")
}

func TestFindListReturnsMutablePointer(t *testing.T) {
	cat := testCatalog()

	l := cat.FindList("Cases")
	l.Items[0].Quantity = 7

	require.Equal(t, uint(7), cat.Lists[1].Items[0].Quantity)
}

func TestItemRefreshable(t *testing.T) {
	require.True(t, Item{Name: "x"}.Refreshable())
	require.False(t, Item{Name: ""}.Refreshable(), "empty name is skipped")
	require.False(t, Item{Name: "x", Locked: true}.Refreshable(), "locked is skipped")
}

func TestTotals(t *testing.T) {
	cat := testCatalog()

	// Cases: 2*1.50 + 5*9.99; Katowice: 1*10 + 3*0 (nil price counts zero).
	require.True(t, cat.FindList("Cases").Total().Equal(decimal.RequireFromString("52.95")))
	require.True(t, cat.Total().Equal(decimal.RequireFromString("62.95")))
}

func TestDashboardExcludedFromTotal(t *testing.T) {
	cat := testCatalog()
	cat.Lists[0].Items = append(cat.Lists[0].Items, Item{Name: "ghost", Quantity: 1, CurrentPrice: dec("1000")})

	require.True(t, cat.Total().Equal(decimal.RequireFromString("62.95")),
		"items smuggled into Dashboard must not count")
}
