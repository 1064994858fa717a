package utils

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseCSV splits a comma-separated string and returns trimmed non-empty values.
// Returns nil for empty/whitespace-only input.
// Used for list-valued settings such as SIMULATION_CHANGES and for the
// --price flags of the CLI.
func ParseCSV(s string) []string {
	if s == "" {
		return nil
	}

	var result []string
	for _, v := range strings.Split(s, ",") {
		trimmed := strings.TrimSpace(v)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	if len(result) == 0 {
		return nil
	}

	return result
}

// ParseFloatList parses a comma-separated list of numbers.
func ParseFloatList(s string) ([]float64, error) {
	parts := ParseCSV(s)
	if parts == nil {
		return nil, nil
	}

	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", p, err)
		}
		out = append(out, f)
	}
	return out, nil
}

// CleanSymbol strips surrounding whitespace and the asterisks brokers append
// to sweep and margin symbols, and upper-cases the result.
func CleanSymbol(s string) string {
	return strings.ToUpper(strings.Trim(strings.TrimSpace(s), "* "))
}
