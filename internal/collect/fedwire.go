package collect

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

// CommType classifies a Federal Reserve communication.
type CommType string

const (
	CommFOMCStatement CommType = "FOMC_STATEMENT"
	CommFOMCMinutes   CommType = "FOMC_MINUTES"
	CommTestimony     CommType = "CONGRESSIONAL_TESTIMONY"
	CommSpeech        CommType = "SPEECH"
	CommOther         CommType = "OTHER"
)

// Communication is one Fed speech, testimony or press release.
type Communication struct {
	Date    time.Time
	Title   string
	Speaker string
	URL     string
	Source  string // listing page it came from
	Type    CommType
}

// recencyWindow drops anything older than a week; the daily report only
// cares about fresh communications.
const recencyWindow = 7 * 24 * time.Hour

var fedSources = map[string]string{
	"speeches":   "https://www.federalreserve.gov/newsevents/speeches.htm",
	"testimony":  "https://www.federalreserve.gov/newsevents/testimony.htm",
	"statements": "https://www.federalreserve.gov/newsevents/pressreleases.htm",
}

// FedWireCollector scrapes the Federal Reserve newsevents listings.
type FedWireCollector struct {
	client  *Client
	now     func() time.Time
	sources map[string]string // override for tests
}

func NewFedWireCollector(client *Client) *FedWireCollector {
	return &FedWireCollector{client: client, now: time.Now, sources: fedSources}
}

// Collect scrapes every listing page, keeps the last 7 days, dedupes by
// URL, and sorts newest first. A single failing source is skipped.
func (c *FedWireCollector) Collect(ctx context.Context) ([]Communication, error) {
	var all []Communication
	var firstErr error

	for source, url := range c.sources {
		body, err := c.client.Get(ctx, url)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("fedwire %s: %w", source, err)
			}
			continue
		}
		all = append(all, c.parseListing(string(body), source, url)...)
	}
	if len(all) == 0 && firstErr != nil {
		return nil, firstErr
	}

	all = dedupeByURL(all)
	sort.Slice(all, func(i, j int) bool { return all[i].Date.After(all[j].Date) })
	return all, nil
}

// The listing pages render each item as an eventlist row: a <time>
// element, the linked title, and a speaker paragraph. We extract with
// regexps rather than a DOM parser since the structure is flat and the
// fields are line-local.
var (
	reEventRow = regexp.MustCompile(`(?s)<div class="row eventlist">(.*?)</div>\s*</div>`)
	reTime     = regexp.MustCompile(`<time[^>]*>([^<]+)</time>`)
	reLink     = regexp.MustCompile(`<a href="([^"]+)"[^>]*>([^<]+)</a>`)
	reSpeaker  = regexp.MustCompile(`<p class="speaker">([^<]+)</p>`)
)

func (c *FedWireCollector) parseListing(html, source, baseURL string) []Communication {
	cutoff := c.now().Add(-recencyWindow)
	var out []Communication

	for _, m := range reEventRow.FindAllStringSubmatch(html, -1) {
		row := m[1]

		tm := reTime.FindStringSubmatch(row)
		if tm == nil {
			continue
		}
		date, err := time.Parse("January 2, 2006", strings.TrimSpace(tm[1]))
		if err != nil {
			continue
		}
		if date.Before(cutoff) {
			continue
		}

		link := reLink.FindStringSubmatch(row)
		if link == nil {
			continue
		}
		href := link[1]
		if strings.HasPrefix(href, "/") {
			href = "https://www.federalreserve.gov" + href
		}
		title := strings.TrimSpace(link[2])

		speaker := ""
		if sp := reSpeaker.FindStringSubmatch(row); sp != nil {
			speaker = strings.TrimSpace(sp[1])
		}

		out = append(out, Communication{
			Date:    date,
			Title:   title,
			Speaker: speaker,
			URL:     href,
			Source:  source,
			Type:    ClassifyCommunication(title, source),
		})
	}
	return out
}

// ClassifyCommunication types a communication from its title and origin.
func ClassifyCommunication(title, source string) CommType {
	t := strings.ToLower(title)
	switch {
	case strings.Contains(t, "fomc statement"):
		return CommFOMCStatement
	case strings.Contains(t, "minutes"):
		return CommFOMCMinutes
	case source == "testimony" || strings.Contains(t, "testimony"):
		return CommTestimony
	case source == "speeches":
		return CommSpeech
	default:
		return CommOther
	}
}

func dedupeByURL(comms []Communication) []Communication {
	seen := make(map[string]bool, len(comms))
	out := comms[:0]
	for _, c := range comms {
		if seen[c.URL] {
			continue
		}
		seen[c.URL] = true
		out = append(out, c)
	}
	return out
}
