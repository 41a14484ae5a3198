package finnhub

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/dipscreener/internal/contracts"
	"github.com/wonny/dipscreener/pkg/config"
	"github.com/wonny/dipscreener/pkg/logger"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient(config.FinnhubConfig{APIKey: "test-key", BaseURL: srv.URL, Timeout: 5 * time.Second}, logger.Nop())
	c.now = func() time.Time { return time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC) }
	return c
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestGetSnapshot_Profile(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/stock/profile2", r.URL.Path)
		assert.Equal(t, "AAPL", r.URL.Query().Get("symbol"))
		assert.Equal(t, "test-key", r.URL.Query().Get("token"))
		writeJSON(w, http.StatusOK, `{"ticker":"AAPL","name":"Apple Inc","exchange":"NASDAQ NMS - GLOBAL MARKET","currency":"USD","finnhubIndustry":"Technology","marketCapitalization":2850000.5}`)
	})

	payload, err := c.GetSnapshot(context.Background(), "AAPL", contracts.KindProfile)
	require.NoError(t, err)

	var p contracts.Profile
	ok, err := contracts.Decode(payload, &p)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Apple Inc", p.Name)
	assert.Equal(t, "Technology", p.Sector)
	assert.InDelta(t, 2.8500005e12, p.MarketCap, 1)
}

func TestGetSnapshot_Fundamentals(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "all", r.URL.Query().Get("metric"))
		writeJSON(w, http.StatusOK, `{"symbol":"AAPL","metric":{
			"peTTM": 28.4, "roeTTM": 147.2, "netProfitMarginTTM": 25.3,
			"focfCagr5Y": 9.5, "beta": 1.21,
			"52WeekHigh": 260.1, "52WeekLow": 164.08,
			"10DayAverageTradingVolume": 48.2, "3MonthAverageTradingVolume": 55.0
		}}`)
	})

	payload, err := c.GetSnapshot(context.Background(), "AAPL", contracts.KindFundamentals)
	require.NoError(t, err)

	var f contracts.Fundamentals
	_, err = contracts.Decode(payload, &f)
	require.NoError(t, err)

	require.NotNil(t, f.PE)
	assert.Equal(t, 28.4, *f.PE)
	assert.InDelta(t, 1.472, *f.ROE, 1e-9)
	assert.InDelta(t, 0.253, *f.ProfitMargin, 1e-9)
	assert.InDelta(t, 0.095, *f.FCFGrowth, 1e-9)
	assert.InDelta(t, 48.2e6, *f.AvgVolume10D, 1e-3)
	assert.Nil(t, f.DebtToEBITDA)
	assert.Nil(t, f.ShortFloat)
}

func TestGetSnapshot_Candles(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "D", r.URL.Query().Get("resolution"))
		writeJSON(w, http.StatusOK, `{"s":"ok",
			"t":[1772409600,1772323200],
			"o":[11,10],"h":[12,11],"l":[10,9],"c":[11.5,10.5],"v":[2000,1000]}`)
	})

	payload, err := c.GetSnapshot(context.Background(), "AAPL", contracts.KindCandles)
	require.NoError(t, err)

	var series contracts.CandleSeries
	_, err = contracts.Decode(payload, &series)
	require.NoError(t, err)
	require.Len(t, series.Candles, 2)
	assert.True(t, series.Candles[0].Date.Before(series.Candles[1].Date), "oldest first")
	assert.Equal(t, 10.5, series.Candles[0].Close)
}

func TestGetSnapshot_EarningsAndCalendar(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/stock/earnings":
			writeJSON(w, http.StatusOK, `[
				{"actual":1.2,"estimate":1.0,"period":"2025-09-30","surprisePercent":20,"symbol":"AAPL"},
				{"actual":1.5,"estimate":1.4,"period":"2025-12-31","surprisePercent":7.1,"symbol":"AAPL"}
			]`)
		case "/calendar/earnings":
			assert.Equal(t, "2026-03-02", r.URL.Query().Get("from"))
			writeJSON(w, http.StatusOK, `{"earningsCalendar":[{"date":"2026-04-30","symbol":"AAPL"},{"date":"2026-04-28","symbol":"AAPL"}]}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	ctx := context.Background()

	payload, err := c.GetSnapshot(ctx, "AAPL", contracts.KindEarnings)
	require.NoError(t, err)
	var history contracts.EarningsHistory
	_, err = contracts.Decode(payload, &history)
	require.NoError(t, err)
	require.Len(t, history.Surprises, 2)
	assert.Equal(t, 2025, history.Surprises[0].Period.Year())
	assert.Equal(t, time.December, history.Surprises[0].Period.Month(), "newest first")

	payload, err = c.GetSnapshot(ctx, "AAPL", contracts.KindCalendar)
	require.NoError(t, err)
	var cal contracts.EarningsCalendar
	_, err = contracts.Decode(payload, &cal)
	require.NoError(t, err)
	require.NotNil(t, cal.NextEarningsDate)
	assert.Equal(t, "2026-04-28", cal.NextEarningsDate.Format(dateLayout))
}

func TestGetSnapshot_Universe(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "US", r.URL.Query().Get("exchange"))
		writeJSON(w, http.StatusOK, `[{"symbol":"AAPL","description":"APPLE INC","type":"Common Stock","mic":"XNAS","currency":"USD"}]`)
	})

	payload, err := c.GetSnapshot(context.Background(), "US", contracts.KindUniverse)
	require.NoError(t, err)

	var rows []contracts.ListedSecurity
	require.NoError(t, json.Unmarshal(payload, &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "XNAS", rows[0].Exchange)
	assert.Equal(t, "Common Stock", rows[0].Type)
}

func TestGetSnapshot_ErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		kind   contracts.DataKind
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{"not found", contracts.KindProfile, http.StatusNotFound, `{}`, func(t *testing.T, err error) {
			assert.ErrorIs(t, err, contracts.ErrUnsupported)
		}},
		{"empty profile", contracts.KindProfile, http.StatusOK, `{}`, func(t *testing.T, err error) {
			var perm *contracts.PermanentUnsupported
			require.ErrorAs(t, err, &perm)
			assert.Equal(t, "empty profile", perm.Reason)
		}},
		{"candles no_data", contracts.KindCandles, http.StatusOK, `{"s":"no_data"}`, func(t *testing.T, err error) {
			assert.ErrorIs(t, err, contracts.ErrUnsupported)
		}},
		{"throttled", contracts.KindQuote, http.StatusTooManyRequests, `{"error":"API limit reached"}`, func(t *testing.T, err error) {
			assert.True(t, contracts.IsTransient(err))
		}},
		{"server error", contracts.KindQuote, http.StatusBadGateway, ``, func(t *testing.T, err error) {
			assert.True(t, contracts.IsTransient(err))
		}},
		{"malformed body", contracts.KindQuote, http.StatusOK, `{"c":`, func(t *testing.T, err error) {
			assert.True(t, contracts.IsTransient(err))
		}},
		{"forbidden", contracts.KindCandles, http.StatusForbidden, `{"error":"You don't have access to this resource."}`, func(t *testing.T, err error) {
			var unknown *contracts.UnknownFetchError
			assert.ErrorAs(t, err, &unknown)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			})

			_, err := c.GetSnapshot(context.Background(), "ZZZZ", tt.kind)
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestGetSnapshot_MissingAPIKey(t *testing.T) {
	c := NewClient(config.FinnhubConfig{BaseURL: "http://127.0.0.1:1", Timeout: time.Second}, logger.Nop())

	_, err := c.GetSnapshot(context.Background(), "AAPL", contracts.KindQuote)
	var unknown *contracts.UnknownFetchError
	assert.ErrorAs(t, err, &unknown)
}
