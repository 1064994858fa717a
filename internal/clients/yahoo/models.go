package yahoo

import "github.com/aristath/exposure/internal/domain"

// chartResponse is the subset of the v8 chart API payload we read.
type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *chartError   `json:"error"`
	} `json:"chart"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type chartResult struct {
	Meta struct {
		Symbol             string  `json:"symbol"`
		Currency           string  `json:"currency"`
		RegularMarketPrice float64 `json:"regularMarketPrice"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Close []float64 `json:"close"`
		} `json:"quote"`
		AdjClose []struct {
			AdjClose []float64 `json:"adjclose"`
		} `json:"adjclose"`
	} `json:"indicators"`
}

// cachedCloses is the structure stored in the daily_closes table.
type cachedCloses struct {
	Range  string              `json:"range"`
	Closes []domain.DailyClose `json:"closes"`
}

// cachedLatestClose is the structure stored in the latest_close table.
type cachedLatestClose struct {
	Close float64 `json:"close"`
}
