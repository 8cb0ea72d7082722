package marketdata

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	apperrors "goalwise/internal/errors"
)

const (
	yahooChartURL = "https://query1.finance.yahoo.com/v8/finance/chart"
	yahooUA       = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7)"
)

// exchangeSuffixes maps exchange codes to Yahoo Finance ticker suffixes.
var exchangeSuffixes = map[string]string{
	"TSX":      ".TO",
	"LSE":      ".L",
	"HKEX":     ".HK",
	"ASX":      ".AX",
	"NSE":      ".NS",
	"BSE":      ".BO",
	"SGX":      ".SI",
	"BURSA":    ".KL",
	"JPX":      ".T",
	"XETRA":    ".DE",
	"EURONEXT": ".PA",
}

// YahooSymbol appends the Yahoo suffix for exchange to symbol unless the
// symbol already carries one.
func YahooSymbol(symbol, exchange string) string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if strings.Contains(symbol, ".") {
		return symbol
	}
	if suffix, ok := exchangeSuffixes[strings.ToUpper(exchange)]; ok {
		return symbol + suffix
	}
	return symbol
}

// yahooChartResponse is the top-level v8 chart payload.
type yahooChartResponse struct {
	Chart *struct {
		Result []yahooChartResult `json:"result"`
		Error  *yahooChartError   `json:"error"`
	} `json:"chart"`
}

type yahooChartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type yahooChartResult struct {
	Meta struct {
		Symbol         string `json:"symbol"`
		Currency       string `json:"currency"`
		ExchangeName   string `json:"exchangeName"`
		InstrumentType string `json:"instrumentType"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []*float64 `json:"open"`
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Close  []*float64 `json:"close"`
			Volume []*int64   `json:"volume"`
		} `json:"quote"`
	} `json:"indicators"`
}

// parseChart validates a decoded chart payload and converts it into a
// Chart, dropping bars without a close price.
func parseChart(symbol string, raw []byte) (*Chart, error) {
	var resp yahooChartResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrUpstreamFormat, fmt.Errorf("decoding response: %w", err))
	}
	if resp.Chart == nil {
		return nil, apperrors.ErrUpstreamFormat
	}
	if resp.Chart.Error != nil {
		msg := strings.TrimSpace(resp.Chart.Error.Code + ": " + resp.Chart.Error.Description)
		return nil, apperrors.WithMessage(apperrors.ErrUpstreamData, msg)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, apperrors.ErrUpstreamFormat
	}

	result := resp.Chart.Result[0]
	chart := &Chart{
		Symbol:         result.Meta.Symbol,
		Currency:       result.Meta.Currency,
		ExchangeName:   result.Meta.ExchangeName,
		InstrumentType: result.Meta.InstrumentType,
		Bars:           []Bar{},
	}
	if chart.Symbol == "" {
		chart.Symbol = symbol
	}

	if len(result.Indicators.Quote) == 0 {
		return nil, apperrors.WithMessage(apperrors.ErrNoData, "No data found for symbol "+symbol)
	}
	quote := result.Indicators.Quote[0]

	for i, ts := range result.Timestamp {
		closePrice := at(quote.Close, i)
		if closePrice == nil {
			continue
		}
		bar := Bar{
			Time:  time.Unix(ts, 0).UTC(),
			Open:  at(quote.Open, i),
			High:  at(quote.High, i),
			Low:   at(quote.Low, i),
			Close: *closePrice,
		}
		if v := at(quote.Volume, i); v != nil {
			bar.Volume = *v
		}
		chart.Bars = append(chart.Bars, bar)
	}

	if len(chart.Bars) == 0 {
		return nil, apperrors.WithMessage(apperrors.ErrNoData, "No data found for symbol "+symbol)
	}
	return chart, nil
}

// at returns s[i] or nil when the series is shorter than the timestamps.
func at[T any](s []*T, i int) *T {
	if i < len(s) {
		return s[i]
	}
	return nil
}
