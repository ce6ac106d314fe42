// Package navmap talks to the LittleNavmap webserver API for live simulator
// state and airport lookups, and formats the results for chat display.
package navmap

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// SimInfo is the raw simulator state returned by /api/sim/info.
// Speeds are meters per second, indicated altitude is feet, altitude
// above ground is meters.
type SimInfo struct {
	Active              bool    `json:"active"`
	SimConnected        bool    `json:"simconnect_status"`
	AircraftName        string  `json:"name"`
	IndicatedAltitude   float64 `json:"indicated_altitude"`
	AltitudeAboveGround float64 `json:"altitude_above_ground"`
	GroundSpeed         float64 `json:"ground_speed"`
	TrueAirspeed        float64 `json:"true_airspeed"`
	VerticalSpeed       float64 `json:"vertical_speed"`
	Heading             float64 `json:"heading"`
	WindSpeed           float64 `json:"wind_speed"`
	WindDirection       float64 `json:"wind_direction"`
	SeaLevelPressure    float64 `json:"sea_level_pressure"`
	OnGround            bool    `json:"on_ground"`
	Position            struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"position"`
}

// AirportInfo is the subset of /api/airport/info the bot reports.
type AirportInfo struct {
	Ident     string  `json:"ident"`
	Name      string  `json:"name"`
	Elevation float64 `json:"elevation"`
}

// Client is a LittleNavmap webserver API client.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient builds a client with a request timeout suited to a local webserver.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *Client) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http().Do(req)
	if err != nil {
		return fmt.Errorf("navmap request %s: %w", path, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("navmap %s returned %s: %s", path, resp.Status, string(b))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// SimInfo fetches the current simulator state.
func (c *Client) SimInfo(ctx context.Context) (*SimInfo, error) {
	var info SimInfo
	if err := c.getJSON(ctx, "/api/sim/info", &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// AirportInfo looks up an airport by ICAO ident.
func (c *Client) AirportInfo(ctx context.Context, ident string) (*AirportInfo, error) {
	if ident == "" {
		return nil, fmt.Errorf("ident empty")
	}
	var info AirportInfo
	path := "/api/airport/info?ident=" + url.QueryEscape(ident)
	if err := c.getJSON(ctx, path, &info); err != nil {
		return nil, err
	}
	return &info, nil
}
