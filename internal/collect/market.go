package collect

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"
)

const yahooChartURL = "https://query1.finance.yahoo.com/v8/finance/chart/"

// Symbol maps a friendly name ("SPX") to the upstream quote symbol.
type Symbol struct {
	Name   string
	Ticker string
}

// Tracked quote universe, grouped by asset class.
var (
	IndexSymbols = []Symbol{
		{"SPX", "^GSPC"}, // S&P 500
		{"NDX", "^IXIC"}, // Nasdaq
		{"DJI", "^DJI"},  // Dow Jones
		{"RUT", "^RUT"},  // Russell 2000
		{"VIX", "^VIX"},  // Volatility index
	}
	FXSymbols = []Symbol{
		{"DXY", "DX-Y.NYB"}, // Dollar index
		{"EURUSD", "EUR=X"},
		{"USDJPY", "JPY=X"},
		{"GBPUSD", "GBP=X"},
	}
	CommoditySymbols = []Symbol{
		{"GOLD", "GC=F"},
		{"OIL", "CL=F"},
		{"COPPER", "HG=F"},
		{"NATGAS", "NG=F"},
	}
	TreasurySymbols = []Symbol{
		{"US2Y", "^IRX"},
		{"US5Y", "^FVX"},
		{"US10Y", "^TNX"},
		{"US30Y", "^TYX"},
	}
)

// Quote is one snapshot of a tracked symbol.
type Quote struct {
	Name          string
	Ticker        string
	Price         float64
	PreviousClose float64
	ChangePct     float64
	High          float64
	Low           float64
	Open          float64
	Volume        int64
	AsOf          time.Time
}

// MarketSnapshot groups quotes by asset class for one collection cycle.
type MarketSnapshot struct {
	Indices     []Quote
	FX          []Quote
	Commodities []Quote
	AsOf        time.Time
}

// MarketCollector polls the quote feed for the tracked symbol universe.
type MarketCollector struct {
	client  *Client
	baseURL string // override for tests
}

func NewMarketCollector(client *Client) *MarketCollector {
	return &MarketCollector{client: client, baseURL: yahooChartURL}
}

// Collect fetches quotes for every tracked symbol. Individual symbol
// failures are skipped; the snapshot carries whatever succeeded, and an
// error is returned only when nothing could be fetched.
func (c *MarketCollector) Collect(ctx context.Context) (MarketSnapshot, error) {
	snap := MarketSnapshot{AsOf: time.Now()}
	var firstErr error
	total := 0

	groups := []struct {
		symbols []Symbol
		out     *[]Quote
	}{
		{IndexSymbols, &snap.Indices},
		{FXSymbols, &snap.FX},
		{CommoditySymbols, &snap.Commodities},
	}
	for _, g := range groups {
		for _, sym := range g.symbols {
			q, err := c.Fetch(ctx, sym)
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			*g.out = append(*g.out, q)
			total++
		}
	}

	if total == 0 && firstErr != nil {
		return snap, fmt.Errorf("market collection produced no quotes: %w", firstErr)
	}
	return snap, nil
}

// chartResponse is the subset of the Yahoo v8 chart payload we read.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				PreviousClose      float64 `json:"chartPreviousClose"`
				RegularMarketTime  int64   `json:"regularMarketTime"`
			} `json:"meta"`
			Indicators struct {
				Quote []struct {
					High   []float64 `json:"high"`
					Low    []float64 `json:"low"`
					Open   []float64 `json:"open"`
					Volume []int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// Fetch retrieves a single quote.
func (c *MarketCollector) Fetch(ctx context.Context, sym Symbol) (Quote, error) {
	u := c.baseURL + url.PathEscape(sym.Ticker) + "?range=1d&interval=1d"
	body, err := c.client.Get(ctx, u)
	if err != nil {
		return Quote{}, fmt.Errorf("quote %s: %w", sym.Name, err)
	}

	var resp chartResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return Quote{}, fmt.Errorf("quote %s: decode: %w", sym.Name, err)
	}
	if resp.Chart.Error != nil {
		return Quote{}, fmt.Errorf("quote %s: %s", sym.Name, resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return Quote{}, fmt.Errorf("quote %s: empty result", sym.Name)
	}

	r := resp.Chart.Result[0]
	q := Quote{
		Name:          sym.Name,
		Ticker:        sym.Ticker,
		Price:         r.Meta.RegularMarketPrice,
		PreviousClose: r.Meta.PreviousClose,
		AsOf:          time.Unix(r.Meta.RegularMarketTime, 0),
	}
	if q.PreviousClose != 0 {
		q.ChangePct = (q.Price/q.PreviousClose - 1) * 100
	}
	if len(r.Indicators.Quote) > 0 {
		iq := r.Indicators.Quote[0]
		if n := len(iq.High); n > 0 {
			q.High = iq.High[n-1]
		}
		if n := len(iq.Low); n > 0 {
			q.Low = iq.Low[n-1]
		}
		if n := len(iq.Open); n > 0 {
			q.Open = iq.Open[n-1]
		}
		if n := len(iq.Volume); n > 0 {
			q.Volume = iq.Volume[n-1]
		}
	}
	return q, nil
}

// FindQuote returns the named quote from a snapshot, if present.
func (s MarketSnapshot) FindQuote(name string) (Quote, bool) {
	for _, group := range [][]Quote{s.Indices, s.FX, s.Commodities} {
		for _, q := range group {
			if strings.EqualFold(q.Name, name) {
				return q, true
			}
		}
	}
	return Quote{}, false
}
