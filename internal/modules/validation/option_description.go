package validation

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/exposure/internal/domain"
)

var monthAbbreviations = map[string]time.Month{
	"JAN": time.January,
	"FEB": time.February,
	"MAR": time.March,
	"APR": time.April,
	"MAY": time.May,
	"JUN": time.June,
	"JUL": time.July,
	"AUG": time.August,
	"SEP": time.September,
	"OCT": time.October,
	"NOV": time.November,
	"DEC": time.December,
}

// OptionParseResult is the tagged outcome of ParseOptionDescription. When OK
// is false, Reason says which token was rejected.
type OptionParseResult struct {
	OK     bool
	Option domain.OptionContract
	Reason string
}

func parseFailure(format string, args ...interface{}) OptionParseResult {
	return OptionParseResult{Reason: fmt.Sprintf(format, args...)}
}

// ParseOptionDescription parses "<UNDERLYING> <MON> <DAY> <YEAR> $<STRIKE> <CALL|PUT>",
// for example "AAPL APR 17 2025 $160 CALL". Any other shape is rejected.
func ParseOptionDescription(desc string) OptionParseResult {
	tokens := strings.Fields(desc)
	if len(tokens) != 6 {
		return parseFailure("expected 6 tokens, got %d", len(tokens))
	}

	underlying := strings.ToUpper(tokens[0])

	month, ok := monthAbbreviations[strings.ToUpper(tokens[1])]
	if !ok {
		return parseFailure("unknown month %q", tokens[1])
	}

	day, err := strconv.Atoi(tokens[2])
	if err != nil {
		return parseFailure("invalid day %q", tokens[2])
	}
	year, err := strconv.Atoi(tokens[3])
	if err != nil || len(tokens[3]) != 4 {
		return parseFailure("invalid year %q", tokens[3])
	}
	expiry := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if expiry.Day() != day || expiry.Month() != month {
		return parseFailure("invalid date %s %s %s", tokens[1], tokens[2], tokens[3])
	}

	if !strings.HasPrefix(tokens[4], "$") {
		return parseFailure("strike %q does not start with $", tokens[4])
	}
	strike, err := strconv.ParseFloat(strings.ReplaceAll(tokens[4][1:], ",", ""), 64)
	if err != nil || strike <= 0 {
		return parseFailure("invalid strike %q", tokens[4])
	}

	optionType, err := domain.ParseOptionType(tokens[5])
	if err != nil {
		return parseFailure("unknown option type %q", tokens[5])
	}

	return OptionParseResult{
		OK: true,
		Option: domain.OptionContract{
			Underlying: underlying,
			Expiry:     expiry.Format(domain.ExpiryLayout),
			Strike:     strike,
			Type:       optionType,
		},
	}
}

// IsOptionDescription reports whether desc follows the option grammar.
func IsOptionDescription(desc string) bool {
	return ParseOptionDescription(desc).OK
}

// ParseOptionContract is ParseOptionDescription with error flow.
func ParseOptionContract(desc string) (domain.OptionContract, error) {
	res := ParseOptionDescription(desc)
	if !res.OK {
		return domain.OptionContract{}, fmt.Errorf("failed to parse option description %q: %s", desc, res.Reason)
	}
	return res.Option, nil
}
