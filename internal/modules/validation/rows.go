// Package validation turns raw broker export rows into validated values.
package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/exposure/internal/domain"
)

// Broker export column names.
const (
	ColSymbol               = "Symbol"
	ColDescription          = "Description"
	ColQuantity             = "Quantity"
	ColCurrentValue         = "Current Value"
	ColLastPrice            = "Last Price"
	ColType                 = "Type"
	ColPercentOfAccount     = "Percent Of Account"
	ColAverageCostBasis     = "Average Cost Basis"
	ColLastPriceChange      = "Last Price Change"
	ColTodaysGainLossDollar = "Today's Gain/Loss Dollar"
	ColBeta                 = "Beta"
)

// RequiredColumns must all be present in the input header.
var RequiredColumns = []string{
	ColSymbol,
	ColDescription,
	ColQuantity,
	ColCurrentValue,
	ColLastPrice,
	ColType,
	ColPercentOfAccount,
}

// ErrEmptyValue is returned by CleanCurrency for blank and placeholder cells.
var ErrEmptyValue = errors.New("empty value")

// Row is one raw broker row keyed by column name. Index is the position of
// the row in the original input.
type Row struct {
	Index int               `json:"index"`
	Cells map[string]string `json:"cells"`
}

// NewRow builds a row from a column map.
func NewRow(index int, cells map[string]string) Row {
	return Row{Index: index, Cells: cells}
}

// Get returns the trimmed value of a column, or "" when absent.
func (r Row) Get(column string) string {
	return strings.TrimSpace(r.Cells[column])
}

// Has reports whether the row carries a non-placeholder value for column.
func (r Row) Has(column string) bool {
	return !isPlaceholder(r.Get(column))
}

// ValidatedRow is a row whose description, quantity and price parsed cleanly.
type ValidatedRow struct {
	Index       int
	Description string
	Quantity    float64
	Price       float64
	Row         Row
}

func isPlaceholder(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "--", "n/a", "na", "-":
		return true
	}
	return false
}

// CleanCurrency parses a broker money cell. "$1,234.50" becomes 1234.5 and
// "(123.45)" becomes -123.45. Blank and "--" cells return ErrEmptyValue.
func CleanCurrency(s string) (float64, error) {
	v := strings.TrimSpace(s)
	if isPlaceholder(v) {
		return 0, ErrEmptyValue
	}

	negative := false
	if strings.HasPrefix(v, "(") && strings.HasSuffix(v, ")") {
		negative = true
		v = v[1 : len(v)-1]
	}
	v = strings.NewReplacer("$", "", ",", "", " ", "", "+", "").Replace(v)
	if v == "" {
		return 0, ErrEmptyValue
	}

	d, err := decimal.NewFromString(v)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	if negative {
		d = d.Neg()
	}
	return d.InexactFloat64(), nil
}

// ValidateRow extracts description, quantity and price from a row.
// Failures are *domain.DataError naming the offending column.
func ValidateRow(row Row) (ValidatedRow, error) {
	desc := row.Get(ColDescription)
	if isPlaceholder(desc) {
		return ValidatedRow{}, domain.NewDataError(row.Index, ColDescription, desc, "missing description")
	}

	rawQty := row.Get(ColQuantity)
	qty, err := CleanCurrency(rawQty)
	if err != nil {
		reason := "not numeric"
		if errors.Is(err, ErrEmptyValue) {
			reason = "missing quantity"
		}
		return ValidatedRow{}, domain.NewDataError(row.Index, ColQuantity, rawQty, reason)
	}

	rawPrice := row.Get(ColLastPrice)
	price, err := CleanCurrency(rawPrice)
	if err != nil {
		reason := "not numeric"
		if errors.Is(err, ErrEmptyValue) {
			reason = "missing price"
		}
		return ValidatedRow{}, domain.NewDataError(row.Index, ColLastPrice, rawPrice, reason)
	}

	return ValidatedRow{
		Index:       row.Index,
		Description: desc,
		Quantity:    qty,
		Price:       price,
		Row:         row,
	}, nil
}

// ExtractRows validates every row accepted by filter (nil accepts all).
// Invalid rows are logged and skipped; survivors keep their original index.
func ExtractRows(rows []Row, filter func(Row) bool, log zerolog.Logger) []ValidatedRow {
	return ValidateRows(rows, filter, func(row Row, err error) {
		log.Warn().
			Int("row", row.Index).
			Str("reason", err.Error()).
			Msg("Skipping invalid row")
	})
}

// ValidateRows is ExtractRows with a caller-supplied handler for invalid rows.
func ValidateRows(rows []Row, filter func(Row) bool, onInvalid func(Row, error)) []ValidatedRow {
	out := make([]ValidatedRow, 0, len(rows))
	for _, row := range rows {
		if filter != nil && !filter(row) {
			continue
		}
		v, err := ValidateRow(row)
		if err != nil {
			if onInvalid != nil {
				onInvalid(row, err)
			}
			continue
		}
		out = append(out, v)
	}
	return out
}

// ValidateColumns fails with a *domain.StructuralError naming every required
// column missing from header.
func ValidateColumns(header []string) error {
	present := make(map[string]bool, len(header))
	for _, h := range header {
		present[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = true
	}

	var missing []string
	for _, col := range RequiredColumns {
		if !present[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return &domain.StructuralError{Reason: "invalid portfolio input", Missing: missing}
	}
	return nil
}

// ColumnsOf returns the union of column names across rows, unordered.
func ColumnsOf(rows []Row) []string {
	seen := make(map[string]bool)
	var cols []string
	for _, r := range rows {
		for k := range r.Cells {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	return cols
}
