// Package weather fetches METAR reports from the CheckWX API and formats
// them for chat and TTS readout.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// ErrNoData is returned when CheckWX has no METAR for the requested station.
var ErrNoData = errors.New("no metar data for station")

// Metar holds the raw report and the station it was issued for.
type Metar struct {
	ICAO    string
	RawText string
}

// Client is a CheckWX METAR client with retry on transient failures.
type Client struct {
	APIKey     string
	BaseURL    string // e.g. https://api.checkwx.com/metar
	HTTPClient *http.Client
	MaxTries   uint
}

// NewClient builds a client with sane timeouts and 3 tries.
func NewClient(apiKey, baseURL string) *Client {
	return &Client{
		APIKey:     apiKey,
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		MaxTries:   3,
	}
}

var icaoRe = regexp.MustCompile(`([A-Z]{4})\s`)

// GetMetar fetches the latest METAR for an ICAO station, retrying transport
// errors with exponential backoff.
func (c *Client) GetMetar(ctx context.Context, icao string) (*Metar, error) {
	if c.APIKey == "" {
		return nil, errors.New("checkwx api key not configured")
	}
	icao = strings.ToUpper(strings.TrimSpace(icao))
	if icao == "" {
		return nil, errors.New("icao code empty")
	}

	tries := c.MaxTries
	if tries == 0 {
		tries = 3
	}
	op := func() (*Metar, error) {
		m, err := c.fetch(ctx, icao)
		if err != nil {
			// Permanent conditions must not be retried.
			if errors.Is(err, ErrNoData) || errors.Is(err, context.Canceled) {
				return nil, backoff.Permanent(err)
			}
			slog.Warn("metar fetch failed, retrying", slog.String("icao", icao), slog.Any("error", err))
			return nil, err
		}
		return m, nil
	}
	return backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(tries))
}

func (c *Client) fetch(ctx context.Context, icao string) (*Metar, error) {
	url := strings.TrimRight(c.BaseURL, "/") + "/" + icao
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-API-Key", c.APIKey)
	req.Header.Set("Accept", "application/json")

	hc := c.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("checkwx returned %s: %s", resp.Status, string(b))
	}

	var body struct {
		Results int      `json:"results"`
		Data    []string `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	if body.Results == 0 || len(body.Data) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoData, icao)
	}

	raw := body.Data[0]
	station := icao
	if m := icaoRe.FindStringSubmatch(raw); m != nil {
		station = m[1]
	}
	return &Metar{ICAO: station, RawText: raw}, nil
}
