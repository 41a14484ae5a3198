package s1_master

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/wonny/dipscreener/internal/contracts"
	"github.com/wonny/dipscreener/internal/s0_fetch"
	"github.com/wonny/dipscreener/internal/scoringparams"
)

// commonStock is the only security type admitted into the universe
const commonStock = "Common Stock"

// LoadUniverse reads the provider listing for exchange through the cache.
// Only common stock survives; ADRs, ETFs and warrants are dropped here.
func LoadUniverse(ctx context.Context, cache *s0_fetch.Cache, params *scoringparams.Params, exchange string, offline bool) ([]contracts.Symbol, error) {
	ttl := params.TTLFor(contracts.KindUniverse)

	var (
		payload []byte
		err     error
	)
	if offline {
		payload, err = cache.Get(ctx, exchange, contracts.KindUniverse, ttl, s0_fetch.AllowStale())
	} else {
		payload, err = cache.Ensure(ctx, exchange, contracts.KindUniverse, ttl)
	}
	if errors.Is(err, contracts.ErrMiss) {
		return nil, fmt.Errorf("no cached listing for %s; run online once first", exchange)
	}
	if err != nil {
		return nil, fmt.Errorf("load listing %s: %w", exchange, err)
	}

	var listing []contracts.ListedSecurity
	ok, err := contracts.Decode(payload, &listing)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("listing %s is empty", exchange)
	}

	out := make([]contracts.Symbol, 0, len(listing))
	for _, sec := range listing {
		if sec.Type != "" && sec.Type != commonStock {
			continue
		}
		ticker := contracts.NormalizeTicker(sec.Symbol)
		if ticker == "" || strings.ContainsAny(ticker, ". ") {
			continue
		}
		out = append(out, contracts.Symbol{
			Ticker:   ticker,
			Exchange: NormalizeExchange(sec.Exchange),
			Currency: sec.Currency,
		})
	}
	return out, nil
}

// ReadUniverseFile loads tickers from a file: one per line, or CSV whose
// first column is the ticker. A header row named "symbol" or "ticker" is skipped.
func ReadUniverseFile(path string) ([]contracts.Symbol, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open universe file: %w", err)
	}
	defer f.Close()

	return ParseUniverse(f)
}

// ParseUniverse is ReadUniverseFile on an arbitrary reader
func ParseUniverse(r io.Reader) ([]contracts.Symbol, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.Comment = '#'

	var out []contracts.Symbol
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse universe: %w", err)
		}
		if len(record) == 0 {
			continue
		}

		ticker := contracts.NormalizeTicker(record[0])
		if ticker == "" || ticker == "SYMBOL" || ticker == "TICKER" {
			continue
		}

		sym := contracts.Symbol{Ticker: ticker}
		if len(record) > 1 {
			sym.Exchange = NormalizeExchange(record[1])
		}
		out = append(out, sym)
	}
	return out, nil
}
