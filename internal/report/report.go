// Package report renders the daily market briefing as HTML and plain
// text from the day's collected and analyzed data.
package report

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"sort"
	"strings"
	"time"

	"macromon/internal/analyze"
	"macromon/internal/calendar"
	"macromon/internal/collect"
)

//go:embed daily.html.tmpl
var dailyTemplate string

// ReleaseLine is one indicator row in the report: the scheduled event
// plus whatever was collected and scored for it.
type ReleaseLine struct {
	Event    calendar.ReleaseEvent
	Observed *collect.Observation
	Scored   *analyze.SurpriseResult
	Err      string
}

// CommLine pairs a Fed communication with its tone score.
type CommLine struct {
	Comm collect.Communication
	Tone analyze.ToneResult
}

// Daily is everything one report covers.
type Daily struct {
	Date     time.Time
	Releases []ReleaseLine
	Upcoming []calendar.ReleaseEvent
	Market   *collect.MarketSnapshot
	Bonds    *collect.BondSnapshot
	Regime   *analyze.Regime
	Comms    []CommLine
}

// Subject is the mail subject line for the report.
func (d Daily) Subject() string {
	return "Market Monitor Daily Update - " + d.Date.Format("2006-01-02")
}

// Renderer turns a Daily into the outgoing message bodies.
type Renderer struct {
	tmpl *template.Template
}

func NewRenderer() (*Renderer, error) {
	tmpl, err := template.New("daily").Funcs(template.FuncMap{
		"pct":   formatPct,
		"num":   formatNum,
		"score": formatScore,
		"label": titleLabel,
	}).Parse(dailyTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse report template: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// HTML renders the full newsletter body.
func (r *Renderer) HTML(d Daily) (string, error) {
	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, d); err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}
	return buf.String(), nil
}

// Text renders a compact plain-text digest, used for chat channels and
// as the multipart fallback for mail clients without HTML.
func (r *Renderer) Text(d Daily) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", d.Subject())

	if len(d.Releases) > 0 {
		b.WriteString("Today's releases:\n")
		for _, rl := range d.Releases {
			fmt.Fprintf(&b, "  %s %s (%s)", rl.Event.Time.String(), rl.Event.Descriptor.Name, rl.Event.Importance)
			switch {
			case rl.Err != "":
				fmt.Fprintf(&b, " - unavailable: %s", rl.Err)
			case rl.Observed != nil:
				fmt.Fprintf(&b, " - %s", formatNum(rl.Observed.Value))
				if rl.Scored != nil {
					fmt.Fprintf(&b, " (surprise %s, %s)", formatScore(rl.Scored.Surprise), rl.Scored.Impact)
				}
			}
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}

	if d.Market != nil {
		b.WriteString("Markets:\n")
		for _, q := range d.Market.Indices {
			fmt.Fprintf(&b, "  %s %s (%s)\n", q.Name, formatNum(q.Price), formatPct(q.ChangePct))
		}
		b.WriteByte('\n')
	}

	if d.Bonds != nil {
		fmt.Fprintf(&b, "Yield curve: %s", titleLabel(string(d.Bonds.Shape)))
		if s, ok := d.Bonds.Spreads["2s10s"]; ok {
			fmt.Fprintf(&b, " (2s10s %+.2f)", s)
		}
		b.WriteString("\n\n")
	}

	if d.Regime != nil {
		fmt.Fprintf(&b, "Regime: %s volatility, %s\n\n",
			titleLabel(string(d.Regime.Volatility)), titleLabel(string(d.Regime.Risk)))
	}

	if len(d.Comms) > 0 {
		b.WriteString("Fed:\n")
		for _, c := range d.Comms {
			fmt.Fprintf(&b, "  %s: %s [%s]\n", c.Comm.Date.Format("Jan 2"), c.Comm.Title, c.Tone.Bias)
		}
		b.WriteByte('\n')
	}

	if len(d.Upcoming) > 0 {
		b.WriteString("Coming up:\n")
		for _, ev := range d.Upcoming {
			fmt.Fprintf(&b, "  %s %s %s\n", ev.Date.Format("Mon Jan 2"), ev.Time.String(), ev.Descriptor.Name)
		}
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}

// SortReleases orders report lines the way the schedule does: release
// time, then importance, then id.
func SortReleases(lines []ReleaseLine) {
	sort.SliceStable(lines, func(i, j int) bool {
		a, b := lines[i].Event, lines[j].Event
		if a.Time.Minutes() != b.Time.Minutes() {
			return a.Time.Minutes() < b.Time.Minutes()
		}
		if a.Importance != b.Importance {
			return a.Importance > b.Importance
		}
		return a.IndicatorID < b.IndicatorID
	})
}

func formatPct(v float64) string {
	return fmt.Sprintf("%+.2f%%", v)
}

func formatNum(v float64) string {
	if v == float64(int64(v)) && v < 1e15 {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.2f", v)
}

func formatScore(v float64) string {
	return fmt.Sprintf("%+.2f", v)
}

// titleLabel prettifies snake_case enum values for display.
func titleLabel(s string) string {
	parts := strings.Split(s, "_")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}
