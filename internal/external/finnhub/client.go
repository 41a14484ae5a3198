// Package finnhub adapts the Finnhub REST API to contracts.Collaborator
package finnhub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/wonny/dipscreener/internal/contracts"
	"github.com/wonny/dipscreener/pkg/config"
	"github.com/wonny/dipscreener/pkg/httputil"
	"github.com/wonny/dipscreener/pkg/logger"
)

const (
	dateLayout = "2006-01-02"

	// candleHistoryDays covers SMA200 plus a margin for holidays
	candleHistoryDays = 400

	// calendarHorizonDays is how far ahead the earnings calendar is searched
	calendarHorizonDays = 120
)

// Client handles communication with Finnhub.
// It only translates transport; metering and retries live in the fetch layer.
// ⭐ SSOT: Finnhub API calls happen in this client only
type Client struct {
	http   *httputil.Client
	apiKey string
	logger *logger.Logger
	now    func() time.Time
}

// NewClient creates a new Finnhub client
func NewClient(cfg config.FinnhubConfig, log *logger.Logger) *Client {
	httpClient := httputil.New(cfg.BaseURL, cfg.Timeout, log).RedactQuery("token")

	return &Client{
		http:   httpClient,
		apiKey: cfg.APIKey,
		logger: log.WithField("module", "finnhub"),
		now:    time.Now,
	}
}

// GetSnapshot implements contracts.Collaborator
func (c *Client) GetSnapshot(ctx context.Context, symbol string, kind contracts.DataKind) (json.RawMessage, error) {
	if c.apiKey == "" {
		return nil, &contracts.UnknownFetchError{Symbol: symbol, Kind: kind, Err: errors.New("FINNHUB_API_KEY not configured")}
	}

	var (
		payload interface{}
		err     error
	)
	switch kind {
	case contracts.KindUniverse:
		payload, err = c.universe(ctx, symbol)
	case contracts.KindProfile:
		payload, err = c.profile(ctx, symbol)
	case contracts.KindQuote:
		payload, err = c.quote(ctx, symbol)
	case contracts.KindFundamentals:
		payload, err = c.fundamentals(ctx, symbol)
	case contracts.KindCandles:
		payload, err = c.candles(ctx, symbol)
	case contracts.KindEarnings:
		payload, err = c.earnings(ctx, symbol)
	case contracts.KindCalendar:
		payload, err = c.calendar(ctx, symbol)
	default:
		return nil, &contracts.UnknownFetchError{Symbol: symbol, Kind: kind, Err: fmt.Errorf("unknown data kind %q", kind)}
	}
	if err != nil {
		return nil, classify(symbol, kind, err)
	}

	out, err := json.Marshal(payload)
	if err != nil {
		return nil, &contracts.UnknownFetchError{Symbol: symbol, Kind: kind, Err: err}
	}
	return out, nil
}

// get fetches one endpoint and decodes its body into v
func (c *Client) get(ctx context.Context, path string, query map[string]string, v interface{}) error {
	query["token"] = c.apiKey

	body, err := c.http.GetJSON(ctx, path, query)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return &malformedError{path: path, err: err}
	}
	return nil
}

func (c *Client) universe(ctx context.Context, exchange string) ([]contracts.ListedSecurity, error) {
	var rows []symbolRow
	if err := c.get(ctx, "/stock/symbol", map[string]string{"exchange": exchange}, &rows); err != nil {
		return nil, err
	}

	out := make([]contracts.ListedSecurity, 0, len(rows))
	for _, r := range rows {
		out = append(out, contracts.ListedSecurity{
			Symbol:      r.Symbol,
			Description: r.Description,
			Type:        r.Type,
			Exchange:    r.MIC,
			Currency:    r.Currency,
		})
	}
	return out, nil
}

func (c *Client) profile(ctx context.Context, symbol string) (*contracts.Profile, error) {
	var p profile2
	if err := c.get(ctx, "/stock/profile2", map[string]string{"symbol": symbol}, &p); err != nil {
		return nil, err
	}
	if p.Ticker == "" && p.Name == "" {
		return nil, &unsupportedError{reason: "empty profile"}
	}

	return &contracts.Profile{
		Symbol:    p.Ticker,
		Name:      p.Name,
		Exchange:  p.Exchange,
		Currency:  p.Currency,
		Sector:    p.FinnhubIndustry,
		MarketCap: p.MarketCapitalization * 1e6,
	}, nil
}

func (c *Client) quote(ctx context.Context, symbol string) (*contracts.Quote, error) {
	var q quote
	if err := c.get(ctx, "/quote", map[string]string{"symbol": symbol}, &q); err != nil {
		return nil, err
	}
	// unknown symbols come back as an all-zero quote
	if q.Current == 0 && q.Timestamp == 0 {
		return nil, &unsupportedError{reason: "empty quote"}
	}

	return &contracts.Quote{
		Price:     q.Current,
		PrevClose: q.PrevClose,
		Volume:    q.Volume,
		Timestamp: q.Timestamp,
	}, nil
}

func (c *Client) fundamentals(ctx context.Context, symbol string) (*contracts.Fundamentals, error) {
	var bf basicFinancials
	query := map[string]string{"symbol": symbol, "metric": "all"}
	if err := c.get(ctx, "/stock/metric", query, &bf); err != nil {
		return nil, err
	}
	if len(bf.Metric) == 0 {
		return nil, &unsupportedError{reason: "no basic financials"}
	}

	m := metrics(bf.Metric)
	return &contracts.Fundamentals{
		PE:           m.first("peTTM", "peBasicExclExtraTTM", "peNormalizedAnnual"),
		ROE:          m.percent("roeTTM", "roeRfy"),
		ProfitMargin: m.percent("netProfitMarginTTM", "netProfitMarginAnnual"),
		DebtToEBITDA: m.first("totalDebt/ebitdaTTM", "totalDebt/ebitdaAnnual", "netDebt/ebitdaTTM"),
		FreeCashFlow: m.first("freeCashFlowTTM", "freeCashFlowAnnual"),
		FCFGrowth:    m.percent("focfCagr5Y"),
		Beta:         m.first("beta"),
		ShortFloat:   m.percent("shortInterestPercentFloat"),
		High52W:      m.first("52WeekHigh"),
		Low52W:       m.first("52WeekLow"),
		AvgVolume10D: m.millions("10DayAverageTradingVolume"),
		AvgVolume3M:  m.millions("3MonthAverageTradingVolume"),
	}, nil
}

func (c *Client) candles(ctx context.Context, symbol string) (*contracts.CandleSeries, error) {
	now := c.now()
	query := map[string]string{
		"symbol":     symbol,
		"resolution": "D",
		"from":       strconv.FormatInt(now.AddDate(0, 0, -candleHistoryDays).Unix(), 10),
		"to":         strconv.FormatInt(now.Unix(), 10),
	}

	var raw candles
	if err := c.get(ctx, "/stock/candle", query, &raw); err != nil {
		return nil, err
	}
	if raw.Status == "no_data" {
		return nil, &unsupportedError{reason: "no_data"}
	}
	if raw.Status != "ok" {
		return nil, &malformedError{path: "/stock/candle", err: fmt.Errorf("status %q", raw.Status)}
	}

	n := len(raw.Time)
	if len(raw.Close) != n || len(raw.Open) != n || len(raw.High) != n || len(raw.Low) != n || len(raw.Volume) != n {
		return nil, &malformedError{path: "/stock/candle", err: errors.New("ragged candle arrays")}
	}

	series := &contracts.CandleSeries{Candles: make([]contracts.Candle, n)}
	for i := 0; i < n; i++ {
		series.Candles[i] = contracts.Candle{
			Date:   time.Unix(raw.Time[i], 0).UTC(),
			Open:   raw.Open[i],
			High:   raw.High[i],
			Low:    raw.Low[i],
			Close:  raw.Close[i],
			Volume: raw.Volume[i],
		}
	}
	sort.Slice(series.Candles, func(i, j int) bool {
		return series.Candles[i].Date.Before(series.Candles[j].Date)
	})
	return series, nil
}

func (c *Client) earnings(ctx context.Context, symbol string) (*contracts.EarningsHistory, error) {
	var rows []earningsRow
	if err := c.get(ctx, "/stock/earnings", map[string]string{"symbol": symbol}, &rows); err != nil {
		return nil, err
	}

	history := &contracts.EarningsHistory{Surprises: make([]contracts.EarningsSurprise, 0, len(rows))}
	for _, r := range rows {
		period, err := time.Parse(dateLayout, r.Period)
		if err != nil {
			c.logger.WithFields(map[string]interface{}{
				"symbol": symbol,
				"period": r.Period,
			}).Debug("Skipping earnings row with unparseable period")
			continue
		}
		history.Surprises = append(history.Surprises, contracts.EarningsSurprise{
			Period:          period,
			Actual:          r.Actual,
			Estimate:        r.Estimate,
			SurprisePercent: r.SurprisePercent,
		})
	}
	sort.Slice(history.Surprises, func(i, j int) bool {
		return history.Surprises[i].Period.After(history.Surprises[j].Period)
	})
	return history, nil
}

func (c *Client) calendar(ctx context.Context, symbol string) (*contracts.EarningsCalendar, error) {
	today := c.now().UTC()
	query := map[string]string{
		"symbol": symbol,
		"from":   today.Format(dateLayout),
		"to":     today.AddDate(0, 0, calendarHorizonDays).Format(dateLayout),
	}

	var raw earningsCalendar
	if err := c.get(ctx, "/calendar/earnings", query, &raw); err != nil {
		return nil, err
	}

	cal := &contracts.EarningsCalendar{}
	for _, e := range raw.EarningsCalendar {
		d, err := time.Parse(dateLayout, e.Date)
		if err != nil {
			continue
		}
		if cal.NextEarningsDate == nil || d.Before(*cal.NextEarningsDate) {
			date := d
			cal.NextEarningsDate = &date
		}
	}
	return cal, nil
}

// metrics reads numeric fields out of the basic financials map
type metrics map[string]interface{}

func (m metrics) first(keys ...string) *float64 {
	for _, k := range keys {
		if v, ok := m[k].(float64); ok {
			return &v
		}
	}
	return nil
}

// percent converts a percentage field to a fraction
func (m metrics) percent(keys ...string) *float64 {
	v := m.first(keys...)
	if v == nil {
		return nil
	}
	f := *v / 100
	return &f
}

// millions converts a field quoted in millions to units
func (m metrics) millions(keys ...string) *float64 {
	v := m.first(keys...)
	if v == nil {
		return nil
	}
	f := *v * 1e6
	return &f
}

type unsupportedError struct {
	reason string
}

func (e *unsupportedError) Error() string { return e.reason }

type malformedError struct {
	path string
	err  error
}

func (e *malformedError) Error() string {
	return fmt.Sprintf("malformed response from %s: %v", e.path, e.err)
}

func (e *malformedError) Unwrap() error { return e.err }

// classify maps transport failures onto the fetch error taxonomy
func classify(symbol string, kind contracts.DataKind, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}

	var unsupported *unsupportedError
	if errors.As(err, &unsupported) {
		return &contracts.PermanentUnsupported{Symbol: symbol, Kind: kind, Reason: unsupported.reason}
	}

	var malformed *malformedError
	if errors.As(err, &malformed) {
		return &contracts.TransientFetchError{Symbol: symbol, Kind: kind, Err: err}
	}

	var status *httputil.StatusError
	if errors.As(err, &status) {
		switch {
		case status.StatusCode == http.StatusNotFound:
			return &contracts.PermanentUnsupported{Symbol: symbol, Kind: kind, Reason: fmt.Sprintf("HTTP %d", status.StatusCode)}
		case httputil.IsRetryableError(status.StatusCode):
			return &contracts.TransientFetchError{Symbol: symbol, Kind: kind, Err: err}
		default:
			return &contracts.UnknownFetchError{Symbol: symbol, Kind: kind, Err: err}
		}
	}

	// timeouts, resets and DNS failures
	return &contracts.TransientFetchError{Symbol: symbol, Kind: kind, Err: err}
}
