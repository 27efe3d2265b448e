// Package store is the sqlite persistence layer: release history,
// quote history, Fed communications and daily regime classifications.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"macromon/internal/analyze"
	"macromon/internal/collect"
	logx "macromon/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type Config struct {
	Path        string
	BusyTimeout time.Duration
}

// Store wraps the sqlite handle. Safe for concurrent use; sqlite writes
// are serialized through a single connection.
type Store struct {
	db  *sql.DB
	log logx.Logger
}

func Open(cfg Config, log logx.Logger) (*Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		cfg.Path = "./macromon.db"
	}
	if dir := filepath.Dir(cfg.Path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	s := &Store{db: db, log: log}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Debug("storage ready", logx.String("path", cfg.Path))
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// ReleaseRow is one stored economic release.
type ReleaseRow struct {
	IndicatorID string
	Date        time.Time
	Value       float64
	Surprise    float64
	Impact      string
	Trend       string
}

func (s *Store) SaveRelease(ctx context.Context, r ReleaseRow) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO releases(indicator_id, date, value, surprise, impact, trend)
		 VALUES(?,?,?,?,?,?)
		 ON CONFLICT(indicator_id, date) DO UPDATE SET
		   value=excluded.value, surprise=excluded.surprise,
		   impact=excluded.impact, trend=excluded.trend`,
		r.IndicatorID, r.Date.Format("2006-01-02"), r.Value, r.Surprise, r.Impact, r.Trend,
	)
	return err
}

// RecentReleases returns up to n stored releases for an indicator,
// newest first.
func (s *Store) RecentReleases(ctx context.Context, indicatorID string, n int) ([]ReleaseRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT indicator_id, date, value, surprise, impact, trend
		 FROM releases WHERE indicator_id = ?
		 ORDER BY date DESC LIMIT ?`, indicatorID, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ReleaseRow
	for rows.Next() {
		var r ReleaseRow
		var date string
		if err := rows.Scan(&r.IndicatorID, &date, &r.Value, &r.Surprise, &r.Impact, &r.Trend); err != nil {
			return nil, err
		}
		r.Date, _ = time.Parse("2006-01-02", date)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) SaveQuotes(ctx context.Context, snap collect.MarketSnapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO quotes(name, ticker, price, change_pct, volume, at)
		 VALUES(?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	at := snap.AsOf.UTC().Format(time.RFC3339)
	for _, group := range [][]collect.Quote{snap.Indices, snap.FX, snap.Commodities} {
		for _, q := range group {
			if _, err := stmt.ExecContext(ctx, q.Name, q.Ticker, q.Price, q.ChangePct, q.Volume, at); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

// RecentPrices returns up to n closing prices for a symbol, oldest
// first, suitable for seeding moving-average history.
func (s *Store) RecentPrices(ctx context.Context, name string, n int) ([]float64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT price FROM (
		   SELECT price, at FROM quotes WHERE name = ? ORDER BY at DESC LIMIT ?
		 ) ORDER BY at ASC`, name, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []float64
	for rows.Next() {
		var p float64
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SaveCommunication stores a Fed communication with its tone score.
// Returns false when the URL was already recorded.
func (s *Store) SaveCommunication(ctx context.Context, c collect.Communication, tone analyze.ToneResult) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO communications(url, date, title, speaker, source, type, tone_score, tone_bias)
		 VALUES(?,?,?,?,?,?,?,?)`,
		c.URL, c.Date.Format("2006-01-02"), c.Title, c.Speaker, c.Source, string(c.Type), tone.Score, string(tone.Bias),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) SaveRegime(ctx context.Context, day time.Time, r analyze.Regime) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO regimes(date, volatility, risk, spx_trend, curve_shape)
		 VALUES(?,?,?,?,?)
		 ON CONFLICT(date) DO UPDATE SET
		   volatility=excluded.volatility, risk=excluded.risk,
		   spx_trend=excluded.spx_trend, curve_shape=excluded.curve_shape`,
		day.Format("2006-01-02"), string(r.Volatility), string(r.Risk), string(r.SPXTrend), string(r.CurveShape),
	)
	return err
}

// LatestRegime returns the most recent stored regime, if any.
func (s *Store) LatestRegime(ctx context.Context) (analyze.Regime, time.Time, error) {
	var r analyze.Regime
	var vol, risk, trend, curve, date string
	err := s.db.QueryRowContext(ctx,
		`SELECT date, volatility, risk, spx_trend, curve_shape
		 FROM regimes ORDER BY date DESC LIMIT 1`).Scan(&date, &vol, &risk, &trend, &curve)
	if errors.Is(err, sql.ErrNoRows) {
		return r, time.Time{}, nil
	}
	if err != nil {
		return r, time.Time{}, err
	}
	r.Volatility = analyze.VolRegime(vol)
	r.Risk = analyze.RiskEnvironment(risk)
	r.SPXTrend = analyze.PriceTrend(trend)
	r.CurveShape = collect.CurveShape(curve)
	d, _ := time.Parse("2006-01-02", date)
	return r, d, nil
}
