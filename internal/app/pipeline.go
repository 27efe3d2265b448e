package app

import (
	"context"
	"math"
	"sync"
	"time"

	"macromon/internal/analyze"
	"macromon/internal/calendar"
	"macromon/internal/collect"
	"macromon/internal/notify"
	"macromon/internal/report"
	"macromon/internal/store"
	logx "macromon/pkg/logx"
)

// upcomingWindow bounds the "coming up" section of the report.
const upcomingWindow = 7

// pipelineState carries the latest intraday snapshots between the
// market refresh loop and the daily report job.
type pipelineState struct {
	mu     sync.Mutex
	market *collect.MarketSnapshot
	bonds  *collect.BondSnapshot
}

// set stores the latest snapshots. A nil bonds keeps the previous bond
// snapshot, so a failed bond fetch never clobbers good data.
func (s *pipelineState) set(m collect.MarketSnapshot, b *collect.BondSnapshot) {
	s.mu.Lock()
	s.market = &m
	if b != nil {
		s.bonds = b
	}
	s.mu.Unlock()
}

func (s *pipelineState) get() (*collect.MarketSnapshot, *collect.BondSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.market, s.bonds
}

// seedHistories warms the analyzers from persisted data so surprise
// baselines and moving averages survive restarts.
func (a *App) seedHistories(ctx context.Context) {
	for _, d := range a.resolver.Store().All() {
		rows, err := a.db.RecentReleases(ctx, d.ID, 12)
		if err != nil {
			a.log.Warn("seed release history failed", logx.String("indicator", d.ID), logx.Err(err))
			continue
		}
		// Newest-first from storage; the analyzer wants oldest-first.
		records := make([]analyze.ReleaseRecord, 0, len(rows))
		for i := len(rows) - 1; i >= 0; i-- {
			records = append(records, analyze.ReleaseRecord{Value: rows[i].Value, Surprise: rows[i].Surprise})
		}
		a.releases.Seed(d.ID, records)
	}

	for _, sym := range collect.IndexSymbols {
		prices, err := a.db.RecentPrices(ctx, sym.Name, 60)
		if err != nil {
			a.log.Warn("seed price history failed", logx.String("symbol", sym.Name), logx.Err(err))
			continue
		}
		a.regimes.SeedPrices(sym.Name, prices)
	}
}

// marketLoop refreshes market and bond snapshots on the configured
// interval so the report never works from stale intraday data.
func (a *App) marketLoop(ctx context.Context) error {
	a.refreshMarkets(ctx)

	t := time.NewTicker(a.marketInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			a.refreshMarkets(ctx)
		}
	}
}

func (a *App) refreshMarkets(ctx context.Context) {
	market, err := a.market.Collect(ctx)
	if err != nil {
		a.log.Warn("market collection failed", logx.Err(err))
		return
	}
	var bonds *collect.BondSnapshot
	if b, err := a.bonds.Collect(ctx); err != nil {
		a.log.Warn("bond collection failed", logx.Err(err))
	} else {
		bonds = &b
	}

	a.regimes.Observe(market)
	a.state.set(market, bonds)

	if err := a.db.SaveQuotes(ctx, market); err != nil {
		a.log.Warn("persist quotes failed", logx.Err(err))
	}
	a.log.Debug("markets refreshed",
		logx.Int("quotes", len(market.Indices)+len(market.FX)+len(market.Commodities)))
}

// runDaily assembles and delivers the daily report.
func (a *App) runDaily(ctx context.Context) error {
	today := calendar.Day(time.Now().In(a.reportLoc))
	a.log.Info("daily report run", logx.Time("date", today))

	lines := a.collectReleases(ctx, today)

	market, bonds := a.state.get()
	if market == nil {
		a.refreshMarkets(ctx)
		market, bonds = a.state.get()
	}

	var regime *analyze.Regime
	if market != nil && bonds != nil {
		r := a.regimes.Classify(*market, *bonds)
		regime = &r
		if err := a.db.SaveRegime(ctx, today, r); err != nil {
			a.log.Warn("persist regime failed", logx.Err(err))
		}
	}

	daily := report.Daily{
		Date:     today,
		Releases: lines,
		Upcoming: a.upcoming(today),
		Market:   market,
		Bonds:    bonds,
		Regime:   regime,
		Comms:    a.collectComms(ctx),
	}

	html, err := a.renderer.HTML(daily)
	if err != nil {
		return err
	}
	text := a.renderer.Text(daily)

	if a.notifier.Channels() == 0 {
		a.log.Info("report rendered (no channels)", logx.String("subject", daily.Subject()))
		return nil
	}
	return a.notifier.Send(ctx, notify.Message{
		Subject: daily.Subject(),
		Text:    text,
		HTML:    html,
	})
}

// collectReleases fetches and scores every release due today. The most
// recent stored value stands in for a consensus estimate.
func (a *App) collectReleases(ctx context.Context, today time.Time) []report.ReleaseLine {
	events := a.resolver.SignificantOn(today, a.minImportance)

	lines := make([]report.ReleaseLine, 0, len(events))
	for _, ev := range events {
		line := report.ReleaseLine{Event: ev}

		// External-schedule events (FOMC decisions) are announcements,
		// not data series; there is no value to fetch.
		if ev.Descriptor.Pattern.Kind == calendar.KindExternal {
			lines = append(lines, line)
			continue
		}

		obs, err := a.econ.Collect(ctx, ev)
		if err != nil {
			a.log.Warn("release collection failed",
				logx.String("indicator", ev.IndicatorID), logx.Err(err))
			line.Err = err.Error()
			lines = append(lines, line)
			continue
		}
		line.Observed = &obs

		expected := math.NaN()
		if prev, err := a.db.RecentReleases(ctx, ev.IndicatorID, 1); err == nil && len(prev) > 0 {
			expected = prev[0].Value
		}
		res := a.releases.Analyze(ev.IndicatorID, obs.Value, expected)
		line.Scored = &res

		if err := a.db.SaveRelease(ctx, storeRow(ev, obs.Value, res)); err != nil {
			a.log.Warn("persist release failed",
				logx.String("indicator", ev.IndicatorID), logx.Err(err))
		}
		lines = append(lines, line)
	}
	report.SortReleases(lines)
	return lines
}

// collectComms scrapes fresh Fed communications and scores their tone.
func (a *App) collectComms(ctx context.Context) []report.CommLine {
	comms, err := a.fed.Collect(ctx)
	if err != nil {
		a.log.Warn("fed communication scrape failed", logx.Err(err))
		return nil
	}

	out := make([]report.CommLine, 0, len(comms))
	for _, c := range comms {
		tone := analyze.ScoreTone(c.Title)
		if _, err := a.db.SaveCommunication(ctx, c, tone); err != nil {
			a.log.Warn("persist communication failed", logx.String("url", c.URL), logx.Err(err))
		}
		out = append(out, report.CommLine{Comm: c, Tone: tone})
	}
	return out
}

// upcoming lists releases due in the next week, for the report's
// forward-looking section.
func (a *App) upcoming(today time.Time) []calendar.ReleaseEvent {
	horizon := today.AddDate(0, 0, upcomingWindow)

	var out []calendar.ReleaseEvent
	day := today
	for day.Before(horizon) {
		day = day.AddDate(0, 0, 1)
		out = append(out, a.resolver.SignificantOn(day, a.minImportance)...)
	}
	return out
}

func storeRow(ev calendar.ReleaseEvent, value float64, res analyze.SurpriseResult) store.ReleaseRow {
	return store.ReleaseRow{
		IndicatorID: ev.IndicatorID,
		Date:        ev.Date,
		Value:       value,
		Surprise:    res.Surprise,
		Impact:      string(res.Impact),
		Trend:       string(res.Trend),
	}
}
