// Package twitchapi talks to the Twitch Helix API with an app access
// token: user id resolution, stream state, and channel metadata backing
// the chat commands and custom-command variables.
package twitchapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	defaultTokenURL = "https://id.twitch.tv/oauth2/token"
	// expiryBuffer forces a refresh shortly before the token actually
	// expires so in-flight Helix calls never race the deadline.
	expiryBuffer = 60 * time.Second
)

// TokenSource fetches and caches a client-credentials app token. An app
// token cannot authenticate IRC chat; the bot account uses its own user
// OAuth token with chat scopes for that.
type TokenSource struct {
	ClientID     string
	ClientSecret string
	TokenURL     string // override for tests; empty means id.twitch.tv
	HTTPClient   *http.Client

	mu        sync.RWMutex
	token     string
	expiresAt time.Time
}

func (ts *TokenSource) fresh() (string, bool) {
	if ts.token == "" {
		return "", false
	}
	if time.Until(ts.expiresAt) <= expiryBuffer {
		return "", false
	}
	return ts.token, true
}

// Get returns the cached token, refreshing it first when missing or
// close to expiry.
func (ts *TokenSource) Get(ctx context.Context) (string, error) {
	ts.mu.RLock()
	tok, ok := ts.fresh()
	ts.mu.RUnlock()
	if ok {
		return tok, nil
	}
	return ts.refresh(ctx)
}

func (ts *TokenSource) refresh(ctx context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	// Another caller may have refreshed while we waited on the lock.
	if tok, ok := ts.fresh(); ok {
		return tok, nil
	}
	if ts.ClientID == "" || ts.ClientSecret == "" {
		return "", errors.New("missing client id/secret for twitch app token")
	}

	form := url.Values{
		"client_id":     {ts.ClientID},
		"client_secret": {ts.ClientSecret},
		"grant_type":    {"client_credentials"},
	}
	endpoint := ts.TokenURL
	if endpoint == "" {
		endpoint = defaultTokenURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	hc := ts.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return "", err
	}
	defer closeBody(resp)
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("twitch token request failed: %s: %s", resp.Status, string(b))
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", err
	}
	if payload.AccessToken == "" {
		return "", errors.New("empty access_token in twitch response")
	}
	ts.token = payload.AccessToken
	ts.expiresAt = time.Now().Add(time.Duration(payload.ExpiresIn) * time.Second)
	return ts.token, nil
}
