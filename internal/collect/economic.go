package collect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"macromon/internal/calendar"
)

const (
	fredObservationsURL = "https://api.stlouisfed.org/fred/series/observations"
	blsTimeseriesURL    = "https://api.bls.gov/publicAPI/v2/timeseries/data/"
)

// Observation is the latest published value of an economic series.
type Observation struct {
	SeriesID string
	Value    float64
	Period   string // provider-reported reference period
	AsOf     time.Time
}

// EconomicCollector fetches the latest value for resolved release
// events. The source field of the descriptor selects the upstream API.
type EconomicCollector struct {
	client  *Client
	fredKey string
	blsKey  string

	// base URL overrides for tests
	fredURL string
	blsURL  string
}

func NewEconomicCollector(client *Client, fredKey, blsKey string) *EconomicCollector {
	return &EconomicCollector{
		client:  client,
		fredKey: fredKey,
		blsKey:  blsKey,
		fredURL: fredObservationsURL,
		blsURL:  blsTimeseriesURL,
	}
}

// Collect fetches the newest observation for one release event.
func (c *EconomicCollector) Collect(ctx context.Context, ev calendar.ReleaseEvent) (Observation, error) {
	switch ev.Descriptor.Source {
	case "FRED":
		return c.collectFRED(ctx, ev.Descriptor.SeriesID)
	case "BLS":
		return c.collectBLS(ctx, ev.Descriptor.SeriesID)
	default:
		return Observation{}, fmt.Errorf("unknown source %q for indicator %s", ev.Descriptor.Source, ev.IndicatorID)
	}
}

type fredResponse struct {
	Observations []struct {
		Date  string `json:"date"`
		Value string `json:"value"`
	} `json:"observations"`
}

func (c *EconomicCollector) collectFRED(ctx context.Context, seriesID string) (Observation, error) {
	q := url.Values{
		"series_id":  {seriesID},
		"api_key":    {c.fredKey},
		"file_type":  {"json"},
		"sort_order": {"desc"},
		"limit":      {"1"},
	}
	body, err := c.client.Get(ctx, c.fredURL+"?"+q.Encode())
	if err != nil {
		return Observation{}, fmt.Errorf("fred %s: %w", seriesID, err)
	}

	var resp fredResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return Observation{}, fmt.Errorf("fred %s: decode: %w", seriesID, err)
	}
	if len(resp.Observations) == 0 {
		return Observation{}, fmt.Errorf("fred %s: no observations", seriesID)
	}
	obs := resp.Observations[0]
	v, err := strconv.ParseFloat(obs.Value, 64)
	if err != nil {
		return Observation{}, fmt.Errorf("fred %s: bad value %q", seriesID, obs.Value)
	}
	return Observation{SeriesID: seriesID, Value: v, Period: obs.Date, AsOf: time.Now()}, nil
}

type blsRequest struct {
	SeriesID        []string `json:"seriesid"`
	StartYear       string   `json:"startyear"`
	EndYear         string   `json:"endyear"`
	RegistrationKey string   `json:"registrationkey,omitempty"`
}

type blsResponse struct {
	Status  string `json:"status"`
	Results struct {
		Series []struct {
			Data []struct {
				Year   string `json:"year"`
				Period string `json:"period"`
				Value  string `json:"value"`
			} `json:"data"`
		} `json:"series"`
	} `json:"Results"`
}

func (c *EconomicCollector) collectBLS(ctx context.Context, seriesID string) (Observation, error) {
	year := time.Now().Year()
	payload, err := json.Marshal(blsRequest{
		SeriesID:        []string{seriesID},
		StartYear:       strconv.Itoa(year - 1),
		EndYear:         strconv.Itoa(year),
		RegistrationKey: c.blsKey,
	})
	if err != nil {
		return Observation{}, err
	}

	body, err := c.client.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.blsURL, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return Observation{}, fmt.Errorf("bls %s: %w", seriesID, err)
	}

	var resp blsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return Observation{}, fmt.Errorf("bls %s: decode: %w", seriesID, err)
	}
	if resp.Status != "REQUEST_SUCCEEDED" {
		return Observation{}, fmt.Errorf("bls %s: status %q", seriesID, resp.Status)
	}
	if len(resp.Results.Series) == 0 || len(resp.Results.Series[0].Data) == 0 {
		return Observation{}, fmt.Errorf("bls %s: no data", seriesID)
	}
	latest := resp.Results.Series[0].Data[0]
	v, err := strconv.ParseFloat(latest.Value, 64)
	if err != nil {
		return Observation{}, fmt.Errorf("bls %s: bad value %q", seriesID, latest.Value)
	}
	return Observation{
		SeriesID: seriesID,
		Value:    v,
		Period:   latest.Year + latest.Period,
		AsOf:     time.Now(),
	}, nil
}
