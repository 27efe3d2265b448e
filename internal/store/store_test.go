package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"macromon/internal/analyze"
	"macromon/internal/collect"
	logx "macromon/pkg/logx"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Config{Path: filepath.Join(t.TempDir(), "test.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestReleaseRoundTrip(t *testing.T) {
	t.Parallel()
	s := openTemp(t)
	ctx := context.Background()

	rows := []ReleaseRow{
		{IndicatorID: "NFP", Date: time.Date(2025, 6, 6, 0, 0, 0, 0, time.UTC), Value: 139000, Surprise: 0.3, Impact: "neutral", Trend: "stable"},
		{IndicatorID: "NFP", Date: time.Date(2025, 7, 3, 0, 0, 0, 0, time.UTC), Value: 147000, Surprise: 1.1, Impact: "positive", Trend: "improving"},
		{IndicatorID: "CPI", Date: time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC), Value: 2.7},
	}
	for _, r := range rows {
		if err := s.SaveRelease(ctx, r); err != nil {
			t.Fatalf("SaveRelease: %v", err)
		}
	}

	got, err := s.RecentReleases(ctx, "NFP", 10)
	if err != nil {
		t.Fatalf("RecentReleases: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d NFP rows, want 2", len(got))
	}
	if got[0].Value != 147000 || got[1].Value != 139000 {
		t.Fatalf("order wrong: %v then %v, want newest first", got[0].Value, got[1].Value)
	}
	if got[0].Impact != "positive" || got[0].Trend != "improving" {
		t.Fatalf("row fields = %+v", got[0])
	}
}

func TestSaveReleaseUpserts(t *testing.T) {
	t.Parallel()
	s := openTemp(t)
	ctx := context.Background()
	day := time.Date(2025, 7, 3, 0, 0, 0, 0, time.UTC)

	if err := s.SaveRelease(ctx, ReleaseRow{IndicatorID: "NFP", Date: day, Value: 140000}); err != nil {
		t.Fatalf("SaveRelease: %v", err)
	}
	if err := s.SaveRelease(ctx, ReleaseRow{IndicatorID: "NFP", Date: day, Value: 147000, Impact: "positive"}); err != nil {
		t.Fatalf("SaveRelease revise: %v", err)
	}

	got, err := s.RecentReleases(ctx, "NFP", 10)
	if err != nil {
		t.Fatalf("RecentReleases: %v", err)
	}
	if len(got) != 1 || got[0].Value != 147000 || got[0].Impact != "positive" {
		t.Fatalf("after upsert got %+v", got)
	}
}

func TestQuotesAndRecentPrices(t *testing.T) {
	t.Parallel()
	s := openTemp(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		snap := collect.MarketSnapshot{
			Indices: []collect.Quote{
				{Name: "SPX", Ticker: "^GSPC", Price: 5000 + float64(i)},
				{Name: "VIX", Ticker: "^VIX", Price: 15},
			},
			AsOf: time.Date(2025, 7, 1+i, 16, 0, 0, 0, time.UTC),
		}
		if err := s.SaveQuotes(ctx, snap); err != nil {
			t.Fatalf("SaveQuotes: %v", err)
		}
	}

	prices, err := s.RecentPrices(ctx, "SPX", 3)
	if err != nil {
		t.Fatalf("RecentPrices: %v", err)
	}
	want := []float64{5002, 5003, 5004}
	if len(prices) != len(want) {
		t.Fatalf("got %d prices, want %d", len(prices), len(want))
	}
	for i := range want {
		if prices[i] != want[i] {
			t.Fatalf("prices = %v, want %v (oldest first)", prices, want)
		}
	}
}

func TestSaveCommunicationDedupes(t *testing.T) {
	t.Parallel()
	s := openTemp(t)
	ctx := context.Background()

	c := collect.Communication{
		Date:   time.Date(2025, 6, 18, 0, 0, 0, 0, time.UTC),
		Title:  "FOMC statement",
		URL:    "https://www.federalreserve.gov/newsevents/pressreleases/monetary20250618a.htm",
		Source: "statements",
		Type:   collect.CommFOMCStatement,
	}
	tone := analyze.ToneResult{Score: 0.5, Bias: analyze.BiasHawkish}

	inserted, err := s.SaveCommunication(ctx, c, tone)
	if err != nil || !inserted {
		t.Fatalf("first insert: inserted=%v err=%v", inserted, err)
	}
	inserted, err = s.SaveCommunication(ctx, c, tone)
	if err != nil {
		t.Fatalf("second insert: %v", err)
	}
	if inserted {
		t.Fatal("duplicate URL reported as inserted")
	}
}

func TestRegimeRoundTrip(t *testing.T) {
	t.Parallel()
	s := openTemp(t)
	ctx := context.Background()

	if _, _, err := s.LatestRegime(ctx); err != nil {
		t.Fatalf("LatestRegime empty: %v", err)
	}

	day := time.Date(2025, 7, 10, 0, 0, 0, 0, time.UTC)
	reg := analyze.Regime{
		Volatility: analyze.VolElevated,
		Risk:       analyze.RiskOff,
		SPXTrend:   analyze.TrendDown,
		CurveShape: collect.CurveFlat,
	}
	if err := s.SaveRegime(ctx, day, reg); err != nil {
		t.Fatalf("SaveRegime: %v", err)
	}

	got, gotDay, err := s.LatestRegime(ctx)
	if err != nil {
		t.Fatalf("LatestRegime: %v", err)
	}
	if got != reg {
		t.Fatalf("regime = %+v, want %+v", got, reg)
	}
	if !gotDay.Equal(day) {
		t.Fatalf("date = %v, want %v", gotDay, day)
	}
}
