package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/sibylchat/sibyl/internal/logging"
)

// DefaultFinanceBaseURL is the Yahoo Finance quote endpoint.
const DefaultFinanceBaseURL = "https://query1.finance.yahoo.com"

var tickerRe = regexp.MustCompile(`\b[A-Z]{1,5}\b`)

// tickerStopwords are common uppercase words that are not stock symbols.
var tickerStopwords = map[string]bool{
	"A": true, "I": true, "THE": true, "IS": true, "OF": true, "FOR": true,
	"AND": true, "TO": true, "IN": true, "ON": true, "AT": true, "WHAT": true,
	"HOW": true, "USD": true, "ETF": true, "CEO": true, "USA": true, "US": true,
}

// ExtractTicker pulls the first plausible stock symbol out of a query.
// Returns "" if none is found.
func ExtractTicker(query string) string {
	for _, match := range tickerRe.FindAllString(query, -1) {
		if !tickerStopwords[match] {
			return match
		}
	}
	return ""
}

// Quote holds the financial data returned for a ticker.
type Quote struct {
	Symbol             string  `json:"symbol"`
	LongName           string  `json:"longName,omitempty"`
	CurrentPrice       float64 `json:"currentPrice"`
	PreviousClose      float64 `json:"previousClose"`
	DayHigh            float64 `json:"dayHigh"`
	DayLow             float64 `json:"dayLow"`
	Volume             int64   `json:"volume"`
	FiftyTwoWeekHigh   float64 `json:"fiftyTwoWeekHigh"`
	FiftyTwoWeekLow    float64 `json:"fiftyTwoWeekLow"`
	Currency           string  `json:"currency"`
	PriceChange        float64 `json:"priceChange"`
	PriceChangePercent float64 `json:"priceChangePercent"`
}

// chartResponse mirrors the Yahoo Finance v8 chart API response.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string  `json:"symbol"`
				LongName           string  `json:"longName"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				PreviousClose      float64 `json:"chartPreviousClose"`
				RegularMarketDayHigh float64 `json:"regularMarketDayHigh"`
				RegularMarketDayLow  float64 `json:"regularMarketDayLow"`
				RegularMarketVolume  int64   `json:"regularMarketVolume"`
				FiftyTwoWeekHigh   float64 `json:"fiftyTwoWeekHigh"`
				FiftyTwoWeekLow    float64 `json:"fiftyTwoWeekLow"`
				Currency           string  `json:"currency"`
			} `json:"meta"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// FinanceTool fetches stock quotes for tickers mentioned in a query.
type FinanceTool struct {
	baseURL    string
	httpClient *http.Client
}

// FinanceOption configures a FinanceTool.
type FinanceOption func(*FinanceTool)

// WithFinanceBaseURL overrides the quote endpoint. Tests point this at
// an httptest server.
func WithFinanceBaseURL(u string) FinanceOption {
	return func(t *FinanceTool) {
		if u != "" {
			t.baseURL = u
		}
	}
}

// WithFinanceHTTPClient overrides the underlying HTTP client.
func WithFinanceHTTPClient(hc *http.Client) FinanceOption {
	return func(t *FinanceTool) {
		if hc != nil {
			t.httpClient = hc
		}
	}
}

// NewFinanceTool creates the stock quote tool.
func NewFinanceTool(opts ...FinanceOption) *FinanceTool {
	t := &FinanceTool{
		baseURL:    DefaultFinanceBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *FinanceTool) Name() string { return "get_stock_info" }

func (t *FinanceTool) Description() string {
	return "Fetches comprehensive financial information for stock tickers with enhanced data validation."
}

// Execute extracts a ticker from the query and fetches its quote. The
// query may also be a bare ticker symbol.
func (t *FinanceTool) Execute(ctx context.Context, query string) (*Output, error) {
	ticker := strings.ToUpper(strings.TrimSpace(query))
	if !tickerRe.MatchString(ticker) || len(strings.Fields(ticker)) > 1 {
		ticker = ExtractTicker(query)
	}
	if ticker == "" {
		return nil, fmt.Errorf("no stock ticker found in %q", query)
	}

	quote, err := t.Quote(ctx, ticker)
	if err != nil {
		return nil, err
	}

	logging.Tools().Debug("quote fetched", "symbol", quote.Symbol, "price", quote.CurrentPrice)
	return formatQuoteOutput(quote), nil
}

// Quote fetches the quote for a single ticker symbol.
func (t *FinanceTool) Quote(ctx context.Context, ticker string) (*Quote, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))

	u := fmt.Sprintf("%s/v8/finance/chart/%s?range=5d&interval=1d", t.baseURL, ticker)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building quote request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "sibyl/1.0")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("quote request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("no valid data found for ticker %q", ticker)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("quote endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("reading quote response: %w", err)
	}

	var parsed chartResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decoding quote response: %w", err)
	}
	if parsed.Chart.Error != nil {
		return nil, fmt.Errorf("quote lookup failed for %q: %s", ticker, parsed.Chart.Error.Description)
	}
	if len(parsed.Chart.Result) == 0 {
		return nil, fmt.Errorf("no valid data found for ticker %q", ticker)
	}

	meta := parsed.Chart.Result[0].Meta
	if meta.Symbol == "" {
		return nil, fmt.Errorf("no valid data found for ticker %q", ticker)
	}

	q := &Quote{
		Symbol:           meta.Symbol,
		LongName:         meta.LongName,
		CurrentPrice:     meta.RegularMarketPrice,
		PreviousClose:    meta.PreviousClose,
		DayHigh:          meta.RegularMarketDayHigh,
		DayLow:           meta.RegularMarketDayLow,
		Volume:           meta.RegularMarketVolume,
		FiftyTwoWeekHigh: meta.FiftyTwoWeekHigh,
		FiftyTwoWeekLow:  meta.FiftyTwoWeekLow,
		Currency:         meta.Currency,
	}
	if q.Currency == "" {
		q.Currency = "USD"
	}
	if q.CurrentPrice != 0 && q.PreviousClose != 0 {
		change := q.CurrentPrice - q.PreviousClose
		q.PriceChange = round2(change)
		q.PriceChangePercent = round2(change / q.PreviousClose * 100)
	}
	return q, nil
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func formatQuoteOutput(q *Quote) *Output {
	name := q.LongName
	if name == "" {
		name = q.Symbol
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s): %.2f %s", name, q.Symbol, q.CurrentPrice, q.Currency)
	if q.PriceChange != 0 {
		fmt.Fprintf(&b, " (%+.2f, %+.2f%%)", q.PriceChange, q.PriceChangePercent)
	}
	fmt.Fprintf(&b, "\nPrevious close: %.2f", q.PreviousClose)
	if q.DayHigh != 0 || q.DayLow != 0 {
		fmt.Fprintf(&b, "\nDay range: %.2f - %.2f", q.DayLow, q.DayHigh)
	}
	if q.FiftyTwoWeekHigh != 0 || q.FiftyTwoWeekLow != 0 {
		fmt.Fprintf(&b, "\n52-week range: %.2f - %.2f", q.FiftyTwoWeekLow, q.FiftyTwoWeekHigh)
	}
	if q.Volume != 0 {
		fmt.Fprintf(&b, "\nVolume: %d", q.Volume)
	}

	return &Output{
		Text: b.String(),
		Sources: []Source{{
			Title: "Yahoo Finance: " + q.Symbol,
			URL:   "https://finance.yahoo.com/quote/" + q.Symbol,
		}},
	}
}
