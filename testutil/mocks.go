// Package testutil provides mock HTTP servers for the external services the
// bot talks to, plus database helpers for integration tests.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// MockServer routes requests by path to registered handlers.
type MockServer struct {
	*httptest.Server
	Handlers map[string]http.HandlerFunc
}

// NewMockServer creates a path-routed test server. Unregistered paths get 404.
func NewMockServer(t *testing.T) *MockServer {
	t.Helper()
	m := &MockServer{
		Handlers: make(map[string]http.HandlerFunc),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if handler, ok := m.Handlers[r.URL.Path]; ok {
			handler(w, r)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(m.Close)
	return m
}

func (m *MockServer) respondJSON(path string, payload any) {
	m.Handlers[path] = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(payload) //nolint:errcheck // test mock response
	}
}

// MockOAuthTokenResponse adds a handler for the Twitch OAuth token endpoint.
func (m *MockServer) MockOAuthTokenResponse(accessToken string, expiresIn int) {
	m.respondJSON("/oauth2/token", map[string]any{
		"access_token": accessToken,
		"expires_in":   expiresIn,
		"token_type":   "bearer",
	})
}

// MockUserResponse adds a handler for the Helix /helix/users endpoint.
func (m *MockServer) MockUserResponse(userID, login string) {
	m.respondJSON("/helix/users", map[string]any{
		"data": []map[string]string{{"id": userID, "login": login}},
	})
}

// MockStreamsResponse adds a handler for the Helix /helix/streams endpoint.
func (m *MockServer) MockStreamsResponse(streams []map[string]any) {
	m.respondJSON("/helix/streams", map[string]any{"data": streams})
}

// MockSimInfo adds a handler for the Little Navmap sim info endpoint.
func (m *MockServer) MockSimInfo(info map[string]any) {
	m.respondJSON("/api/sim/info", info)
}

// MockAirportInfo adds a handler for the Little Navmap airport endpoint.
func (m *MockServer) MockAirportInfo(airport map[string]any) {
	m.respondJSON("/api/airport/info", airport)
}

// MockMetarResponse adds a handler returning one raw METAR for a station.
func (m *MockServer) MockMetarResponse(station, raw string) {
	m.respondJSON("/"+station, map[string]any{
		"results": 1,
		"data":    []string{raw},
	})
}

// MockChatCompletion adds a handler for the chat completions endpoint that
// always returns content.
func (m *MockServer) MockChatCompletion(content string) {
	m.respondJSON("/chat/completions", map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"role": "assistant", "content": content}},
		},
	})
}
