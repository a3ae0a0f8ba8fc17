// Package query implements a minimal natural-language trade query parser:
// extracting a ticker and an action from a free-form question like "Can I
// buy Apple stock before earnings?". Dates written in the question are not
// read; the trade date comes from the caller.
package query

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Parsed is the structured result of parsing a query string.
type Parsed struct {
	Ticker    string `json:"ticker"`
	Action    string `json:"action"`
	TradeDate string `json:"trade_date"`
}

// companyAliases maps common company names to tickers, since a firm's
// policy questions tend to reference the company, not the symbol. This is
// a fixed, small table: the parser deliberately does not attempt a general
// entity-resolution pass.
var companyAliases = map[string]string{
	"apple":     "AAPL",
	"tesla":     "TSLA",
	"microsoft": "MSFT",
	"google":    "GOOGL",
	"alphabet":  "GOOGL",
	"amazon":    "AMZN",
	"nvidia":    "NVDA",
	"meta":      "META",
}

var tickerPattern = regexp.MustCompile(`\b[A-Z]{1,5}\b`)

var actionKeywords = map[string]string{
	"buy":  "buy",
	"sell": "sell",
	"short": "sell",
	"trade": "trade",
	"purchase": "buy",
}

// Parse extracts a Parsed query from free text. The text is not searched
// for a date: TradeDate is always defaultDate, or today in UTC when
// defaultDate is empty.
func Parse(text string, defaultDate string) (Parsed, error) {
	lower := strings.ToLower(text)

	action := ""
	for keyword, mapped := range actionKeywords {
		if strings.Contains(lower, keyword) {
			action = mapped
			break
		}
	}

	ticker := ""
	for name, sym := range companyAliases {
		if strings.Contains(lower, name) {
			ticker = sym
			break
		}
	}
	if ticker == "" {
		if match := tickerPattern.FindString(text); match != "" {
			ticker = match
		}
	}

	if ticker == "" {
		return Parsed{}, fmt.Errorf("query: could not identify a ticker in %q", text)
	}
	if action == "" {
		action = "trade"
	}

	tradeDate := defaultDate
	if tradeDate == "" {
		tradeDate = time.Now().UTC().Format("2006-01-02")
	}

	return Parsed{Ticker: ticker, Action: action, TradeDate: tradeDate}, nil
}
