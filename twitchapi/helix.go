package twitchapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// HelixClient provides the methods the bot needs for channel metadata,
// stream uptime, and basic moderation.
type HelixClient struct {
	AppTokenSource *TokenSource
	ClientID       string
	BaseURL        string // override for tests; defaults to api.twitch.tv
	HTTPClient     *http.Client
}

func (hc *HelixClient) http() *http.Client {
	if hc.HTTPClient != nil {
		return hc.HTTPClient
	}
	return http.DefaultClient
}

func (hc *HelixClient) base() string {
	if hc.BaseURL != "" {
		return hc.BaseURL
	}
	return "https://api.twitch.tv"
}

func (hc *HelixClient) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	tok, err := hc.AppTokenSource.Get(ctx)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, hc.base()+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Client-Id", hc.ClientID)
	req.Header.Set("Authorization", "Bearer "+tok)
	return req, nil
}

func closeBody(resp *http.Response) {
	if err := resp.Body.Close(); err != nil {
		slog.Warn("failed to close response body", slog.Any("err", err))
	}
}

// GetUserID resolves a login name to its user ID.
func (hc *HelixClient) GetUserID(ctx context.Context, login string) (string, error) {
	if login == "" {
		return "", fmt.Errorf("login empty")
	}
	req, err := hc.newRequest(ctx, http.MethodGet, "/helix/users", nil)
	if err != nil {
		return "", err
	}
	q := req.URL.Query()
	q.Set("login", login)
	req.URL.RawQuery = q.Encode()
	resp, err := hc.http().Do(req)
	if err != nil {
		return "", err
	}
	defer closeBody(resp)
	var body struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	if len(body.Data) == 0 {
		return "", fmt.Errorf("user not found")
	}
	return body.Data[0].ID, nil
}

// StreamInfo describes a live stream.
type StreamInfo struct {
	GameName  string
	Title     string
	StartedAt time.Time
	Viewers   int
}

// GetStream returns the live stream for a user, or (nil, nil) when offline.
func (hc *HelixClient) GetStream(ctx context.Context, userID string) (*StreamInfo, error) {
	if userID == "" {
		return nil, fmt.Errorf("userID empty")
	}
	req, err := hc.newRequest(ctx, http.MethodGet, "/helix/streams", nil)
	if err != nil {
		return nil, err
	}
	q := req.URL.Query()
	q.Set("user_id", userID)
	req.URL.RawQuery = q.Encode()
	resp, err := hc.http().Do(req)
	if err != nil {
		return nil, err
	}
	defer closeBody(resp)
	var body struct {
		Data []struct {
			GameName    string `json:"game_name"`
			Title       string `json:"title"`
			StartedAt   string `json:"started_at"`
			ViewerCount int    `json:"viewer_count"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	if len(body.Data) == 0 {
		return nil, nil // offline
	}
	d := body.Data[0]
	started, _ := time.Parse(time.RFC3339, d.StartedAt)
	return &StreamInfo{GameName: d.GameName, Title: d.Title, StartedAt: started, Viewers: d.ViewerCount}, nil
}

// ChannelInfo describes a channel's current category and title regardless of live state.
type ChannelInfo struct {
	GameName string
	Title    string
}

// GetChannelInfo fetches the channel's category and title.
func (hc *HelixClient) GetChannelInfo(ctx context.Context, broadcasterID string) (*ChannelInfo, error) {
	if broadcasterID == "" {
		return nil, fmt.Errorf("broadcasterID empty")
	}
	req, err := hc.newRequest(ctx, http.MethodGet, "/helix/channels", nil)
	if err != nil {
		return nil, err
	}
	q := req.URL.Query()
	q.Set("broadcaster_id", broadcasterID)
	req.URL.RawQuery = q.Encode()
	resp, err := hc.http().Do(req)
	if err != nil {
		return nil, err
	}
	defer closeBody(resp)
	var body struct {
		Data []struct {
			GameName string `json:"game_name"`
			Title    string `json:"title"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	if len(body.Data) == 0 {
		return nil, fmt.Errorf("channel not found")
	}
	return &ChannelInfo{GameName: body.Data[0].GameName, Title: body.Data[0].Title}, nil
}

// FormatUptime renders a duration as "Xd Yh Zm Ws", omitting leading zero units.
func FormatUptime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Seconds())
	days := total / 86400
	hours := (total % 86400) / 3600
	mins := (total % 3600) / 60
	secs := total % 60
	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, mins, secs)
	case hours > 0:
		return fmt.Sprintf("%dh %dm %ds", hours, mins, secs)
	case mins > 0:
		return fmt.Sprintf("%dm %ds", mins, secs)
	default:
		return fmt.Sprintf("%ds", secs)
	}
}
