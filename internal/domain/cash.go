package domain

import (
	"math"
	"strings"
)

// CashBetaThreshold is the absolute beta at or below which a position is
// treated as cash-like.
const CashBetaThreshold = 0.1

var moneyMarketSymbols = map[string]bool{
	"SPAXX": true,
	"FDRXX": true,
	"FMPXX": true,
	"SPRXX": true,
	"FZFXX": true,
	"FCASH": true,
	"CORE":  true,
}

var moneyMarketPhrases = []string{
	"MONEY MARKET",
	"GOVT MONEY",
	"GOVERNMENT MONEY",
	"TREASURY MONEY",
	"CASH RESERVES",
	"ESCROW",
}

// IsMoneyMarketInstrument reports whether the symbol or description names a
// money market fund, a core cash sweep or escrow shares. Broker exports mark
// core sweep positions with a trailing "**", which is checked on the raw symbol.
func IsMoneyMarketInstrument(symbol, description string) bool {
	raw := strings.TrimSpace(symbol)
	if strings.HasSuffix(raw, "**") {
		return true
	}

	clean := strings.ToUpper(strings.Trim(raw, "* "))
	if moneyMarketSymbols[clean] {
		return true
	}

	desc := strings.ToUpper(description)
	for _, phrase := range moneyMarketPhrases {
		if strings.Contains(desc, phrase) {
			return true
		}
	}
	return false
}

// IsCashLike combines the pattern rule with the near-zero beta rule.
func IsCashLike(symbol, description string, beta float64) bool {
	if math.Abs(beta) <= CashBetaThreshold {
		return true
	}
	return IsMoneyMarketInstrument(symbol, description)
}
