// Package yahoo fetches daily closing prices from the Yahoo Finance chart API.
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/exposure/internal/clientdata"
	"github.com/aristath/exposure/internal/domain"
)

// DefaultBaseURL is the public chart endpoint.
const DefaultBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart"

// chart ranges in increasing length, with the trading days each one covers
var ranges = []struct {
	name string
	days int
}{
	{"5d", 5},
	{"1mo", 20},
	{"3mo", 60},
	{"6mo", 120},
	{"1y", 250},
	{"2y", 500},
	{"5y", 1250},
	{"max", 0},
}

// Client is a Yahoo Finance chart API client
type Client struct {
	baseURL   string
	client    *http.Client
	log       zerolog.Logger
	cacheRepo *clientdata.Repository
}

// NewClient creates a new chart client.
// cacheRepo is optional - if nil, caching is disabled.
func NewClient(cacheRepo *clientdata.Repository, baseURL string, timeout time.Duration, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		client:    &http.Client{Timeout: timeout},
		log:       log.With().Str("client", "yahoo").Logger(),
		cacheRepo: cacheRepo,
	}
}

// Symbol converts a broker ticker to the Yahoo form (BRK.B -> BRK-B).
func Symbol(ticker string) string {
	return strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(ticker)), ".", "-")
}

// rangeFor picks the shortest chart range holding at least days closes.
func rangeFor(days int) string {
	for _, r := range ranges {
		if r.days == 0 || days <= r.days {
			return r.name
		}
	}
	return "max"
}

func rangeRank(name string) int {
	for i, r := range ranges {
		if r.name == name {
			return i
		}
	}
	return -1
}

// GetDailyCloses returns up to days most recent daily closes, oldest first.
// Adjusted closes are used when the API provides them.
// If the API fails, stale cached data is returned when available.
func (c *Client) GetDailyCloses(ctx context.Context, ticker string, days int) ([]domain.DailyClose, error) {
	symbol := Symbol(ticker)
	if symbol == "" {
		return nil, fmt.Errorf("ticker is required")
	}
	if days <= 0 {
		return nil, fmt.Errorf("days must be positive, got %d", days)
	}
	rng := rangeFor(days)

	if cached, ok := c.cachedCloses(symbol, rng, true); ok {
		c.log.Debug().Str("symbol", symbol).Int("closes", len(cached)).Msg("Cache hit")
		return lastN(cached, days), nil
	}

	result, err := c.fetchChart(ctx, symbol, rng)
	if err != nil {
		if stale, ok := c.cachedCloses(symbol, rng, false); ok {
			c.log.Warn().Err(err).Str("symbol", symbol).Msg("API failed, using stale cached closes")
			return lastN(stale, days), nil
		}
		return nil, fmt.Errorf("failed to fetch closes for %s: %w", symbol, err)
	}

	closes := result.closes()
	if len(closes) == 0 {
		return nil, fmt.Errorf("no closes returned for %s", symbol)
	}

	if c.cacheRepo != nil {
		cached := cachedCloses{Range: rng, Closes: closes}
		if err := c.cacheRepo.Store(clientdata.TableDailyCloses, symbol, cached, clientdata.TTLDailyCloses); err != nil {
			c.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to cache closes")
		}
	}

	c.log.Debug().Str("symbol", symbol).Str("range", rng).Int("closes", len(closes)).Msg("Fetched closes")
	return lastN(closes, days), nil
}

// FetchLatestClose returns the most recent close for ticker. The second
// return value is false when no price could be obtained from the API or
// the cache.
func (c *Client) FetchLatestClose(ctx context.Context, ticker string) (float64, bool) {
	symbol := Symbol(ticker)
	if symbol == "" {
		return 0, false
	}

	if price, ok := c.cachedLatest(symbol, true); ok {
		return price, true
	}

	price, err := c.fetchLatest(ctx, symbol)
	if err != nil {
		if stale, ok := c.cachedLatest(symbol, false); ok {
			c.log.Warn().Err(err).Str("symbol", symbol).Float64("price", stale).Msg("API failed, using stale cached close")
			return stale, true
		}
		c.log.Warn().Err(err).Str("symbol", symbol).Msg("No close available")
		return 0, false
	}

	if c.cacheRepo != nil {
		if err := c.cacheRepo.Store(clientdata.TableLatestClose, symbol, cachedLatestClose{Close: price}, clientdata.TTLLatestClose); err != nil {
			c.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to cache close")
		}
	}
	return price, true
}

func (c *Client) fetchLatest(ctx context.Context, symbol string) (float64, error) {
	result, err := c.fetchChart(ctx, symbol, "5d")
	if err != nil {
		return 0, err
	}
	if result.Meta.RegularMarketPrice > 0 {
		return result.Meta.RegularMarketPrice, nil
	}
	closes := result.closes()
	if len(closes) == 0 {
		return 0, fmt.Errorf("no closes returned for %s", symbol)
	}
	return closes[len(closes)-1].Close, nil
}

func (c *Client) fetchChart(ctx context.Context, symbol, rng string) (*chartResult, error) {
	params := url.Values{}
	params.Add("interval", "1d")
	params.Add("range", rng)
	reqURL := c.baseURL + "/" + url.PathEscape(symbol) + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var parsed chartResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if parsed.Chart.Error != nil {
		return nil, fmt.Errorf("API error %s: %s", parsed.Chart.Error.Code, parsed.Chart.Error.Description)
	}
	if len(parsed.Chart.Result) == 0 {
		return nil, fmt.Errorf("empty chart result for %s", symbol)
	}
	return &parsed.Chart.Result[0], nil
}

// closes pairs timestamps with closes, preferring adjusted closes and
// dropping the null entries Yahoo reports for halted sessions.
func (r *chartResult) closes() []domain.DailyClose {
	var raw []float64
	if len(r.Indicators.Quote) > 0 {
		raw = r.Indicators.Quote[0].Close
	}
	var adj []float64
	if len(r.Indicators.AdjClose) > 0 {
		adj = r.Indicators.AdjClose[0].AdjClose
	}

	out := make([]domain.DailyClose, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		price := 0.0
		if i < len(adj) {
			price = adj[i]
		}
		if price == 0 && i < len(raw) {
			price = raw[i]
		}
		if price <= 0 {
			continue
		}
		date := time.Unix(ts, 0).UTC()
		out = append(out, domain.DailyClose{
			Date:  time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC),
			Close: price,
		})
	}
	return out
}

func (c *Client) cachedCloses(symbol, rng string, freshOnly bool) ([]domain.DailyClose, bool) {
	if c.cacheRepo == nil {
		return nil, false
	}

	var data json.RawMessage
	var err error
	if freshOnly {
		data, err = c.cacheRepo.GetIfFresh(clientdata.TableDailyCloses, symbol)
	} else {
		data, err = c.cacheRepo.Get(clientdata.TableDailyCloses, symbol)
	}
	if err != nil || data == nil {
		return nil, false
	}

	var cached cachedCloses
	if err := json.Unmarshal(data, &cached); err != nil || len(cached.Closes) == 0 {
		return nil, false
	}
	// a fresh but shorter series does not satisfy a longer request
	if freshOnly && rangeRank(cached.Range) < rangeRank(rng) {
		return nil, false
	}
	return cached.Closes, true
}

func (c *Client) cachedLatest(symbol string, freshOnly bool) (float64, bool) {
	if c.cacheRepo == nil {
		return 0, false
	}

	var data json.RawMessage
	var err error
	if freshOnly {
		data, err = c.cacheRepo.GetIfFresh(clientdata.TableLatestClose, symbol)
	} else {
		data, err = c.cacheRepo.Get(clientdata.TableLatestClose, symbol)
	}
	if err != nil || data == nil {
		return 0, false
	}

	var cached cachedLatestClose
	if err := json.Unmarshal(data, &cached); err != nil || cached.Close <= 0 {
		return 0, false
	}
	return cached.Close, true
}

func lastN(closes []domain.DailyClose, n int) []domain.DailyClose {
	if len(closes) > n {
		closes = closes[len(closes)-n:]
	}
	out := make([]domain.DailyClose, len(closes))
	copy(out, closes)
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
