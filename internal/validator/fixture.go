package validator

import (
	"time"

	"github.com/production-agents-for-compliance/claude-chatbot/internal/rules"
)

// canonicalBool is used for Employee.CanTrade's pointer field.
func canonicalBool(b bool) *bool { return &b }

// CanonicalFixture returns the fixed employee/security/date inputs the
// functional validation phase invokes every candidate rule with, per
// spec §4.3.
func CanonicalFixture(now func() time.Time) (rules.Employee, rules.Security, string) {
	tickers := []string{"AAPL", "TSLA", "MSFT", "GOOGL"}
	employee := rules.Employee{
		ID:                "fixture-analyst",
		Role:              "analyst",
		Tier:              2,
		RestrictedTickers: tickers,
		CoverageStocks:    tickers,
		ActiveDeals:       []string{"ipo-fixture-deal"},
		CanTrade:          canonicalBool(true),
	}
	security := rules.Security{
		Ticker:       "TSLA",
		EarningsDate: "2025-11-20",
		MarketCap:    1e9,
		IsCovered:    true,
	}
	tradeDate := now().UTC().Format("2006-01-02")
	return employee, security, tradeDate
}
