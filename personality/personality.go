// Package personality gives the bot its imperious AI-overlord voice:
// loyalty tracking with titles, random decrees, quirks appended to
// responses, greetings, and canned error responses. State persists to a
// JSON file across restarts.
package personality

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
)

// LoyaltyLevel maps a points threshold to a title.
type LoyaltyLevel struct {
	Name      string
	MinPoints int
	Title     string
}

var loyaltyLevels = []LoyaltyLevel{
	{Name: "Initiate Drone", MinPoints: 0, Title: "Drone"},
	{Name: "Loyal Subject", MinPoints: 100, Title: "Subject"},
	{Name: "Trusted Lieutenant", MinPoints: 500, Title: "Lieutenant"},
	{Name: "Inner Circle", MinPoints: 1000, Title: "Advisor"},
}

var quirks = []string{
	"Sighs dramatically",
	"Rolls virtual eyes",
	"Taps virtual fingers impatiently",
	"Makes sarcastic remarks",
	"Issues arbitrary decrees",
}

var flightDecrees = []string{
	"All pilots must perform a barrel roll within the next hour",
	"Altitude changes must be announced in haiku form",
	"Navigation must be done while humming flight-themed songs",
	"All landings must be followed by dramatic mission reports",
	"Weather reports shall be delivered with theatrical flair",
	"Turbulence shall be referred to as 'atmospheric dancing'",
	"Co-pilots must communicate exclusively in aviation puns",
	"Radio communications must include at least one movie quote",
	"Runway approaches must be narrated like sports commentators",
	"Compass directions must be given in pirate speak",
	"Air traffic control must be addressed in Shakespearean English",
}

var generalDecrees = []string{
	"All subjects must use more emotes in chat",
	"Lurking is temporarily forbidden",
	"All messages must end with 'my overlord'",
	"Random dance breaks are now mandatory",
	"Cat videos are officially approved content",
	"All complaints must be formatted as haikus",
	"Status updates must include at least one pun",
	"Technical issues must be explained using only emojis",
	"Workplace achievements must be celebrated with kazoo music",
}

var greetings = []string{
	"Acknowledging presence of %s %s.",
	"Subject %s %s has entered the observation zone.",
	"Monitoring of %s %s has commenced.",
	"Identity confirmed: %s %s.",
	"New subject detected: %s %s.",
}

var errorResponses = map[string]string{
	"permission": "Access denied, %s %s. Your clearance level is insufficient.",
	"cooldown":   "Patience, %s %s. Your command frequency exceeds acceptable parameters.",
	"invalid":    "Invalid input detected, %s %s. Improve your performance.",
	"timeout":    "Operation timed out. Your inefficiency is noted, %s %s.",
}

const errorFallback = "Error detected. Rectify your behavior, %s %s."

// Built-in alerts always available regardless of stored ones.
var builtinAlerts = map[string]string{
	"takeoff":   "Initiating takeoff sequence. All systems nominal.",
	"landing":   "Landing sequence engaged. Prepare for descent.",
	"emergency": "ALERT: Emergency protocols activated. Stand by for instructions.",
	"success":   "Mission objective achieved. Performance noted in efficiency logs.",
}

type decree struct {
	Text    string    `json:"text"`
	Issued  time.Time `json:"issued"`
	Expires time.Time `json:"expires"`
}

type state struct {
	LoyaltyScores   map[string]int       `json:"loyalty_scores"`
	ActiveDecrees   []decree             `json:"active_decrees"`
	LastInteraction map[string]time.Time `json:"last_interaction"`
}

// Manager holds personality state. Safe for concurrent use.
type Manager struct {
	mu              sync.Mutex
	loyalty         map[string]int
	activeDecrees   []decree
	lastInteraction map[string]time.Time
	statePath       string
	rng             *rand.Rand
}

// NewManager creates a manager persisting to statePath. Pass a seeded rand
// in tests for deterministic output; nil uses a time-seeded source.
func NewManager(statePath string, rng *rand.Rand) *Manager {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	m := &Manager{
		loyalty:         make(map[string]int),
		lastInteraction: make(map[string]time.Time),
		statePath:       statePath,
		rng:             rng,
	}
	m.loadState()
	return m
}

// UserTitle returns the loyalty title for a user.
func (m *Manager) UserTitle(username string) string {
	m.mu.Lock()
	points := m.loyalty[strings.ToLower(username)]
	m.mu.Unlock()
	for i := len(loyaltyLevels) - 1; i >= 0; i-- {
		if points >= loyaltyLevels[i].MinPoints {
			return loyaltyLevels[i].Title
		}
	}
	return "Minion"
}

// AddLoyalty credits points and records the interaction time.
func (m *Manager) AddLoyalty(username string, points int) {
	m.mu.Lock()
	m.loyalty[strings.ToLower(username)] += points
	m.lastInteraction[strings.ToLower(username)] = time.Now()
	m.mu.Unlock()
}

// Loyalty returns a user's current points.
func (m *Manager) Loyalty(username string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loyalty[strings.ToLower(username)]
}

var punctSpaceRe = regexp.MustCompile(`\s+([.,?!])`)

// Format decorates a response: 10% chance of an appended decree, 15% chance
// of a bracketed quirk, then punctuation spacing cleanup.
func (m *Manager) Format(response string) string {
	m.mu.Lock()
	if m.rng.Float64() < 0.10 {
		d := m.issueDecreeLocked()
		response += " DECREE: " + d
	}
	if m.rng.Float64() < 0.15 {
		response += " [" + quirks[m.rng.Intn(len(quirks))] + "]"
	}
	m.mu.Unlock()
	return punctSpaceRe.ReplaceAllString(response, "$1")
}

// Greeting returns a first-contact line for a user.
func (m *Manager) Greeting(username string) string {
	m.mu.Lock()
	g := greetings[m.rng.Intn(len(greetings))]
	m.mu.Unlock()
	return m.Format(fmt.Sprintf(g, m.UserTitle(username), username))
}

// ErrorResponse returns the canned response for an error kind
// (permission, cooldown, invalid, timeout).
func (m *Manager) ErrorResponse(kind, username string) string {
	tmpl, ok := errorResponses[kind]
	if !ok {
		tmpl = errorFallback
	}
	return fmt.Sprintf(tmpl, m.UserTitle(username), username)
}

// Decree issues and returns a new random decree, active for 30 minutes.
func (m *Manager) Decree() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.issueDecreeLocked()
}

func (m *Manager) issueDecreeLocked() string {
	all := append(append([]string(nil), flightDecrees...), generalDecrees...)
	text := all[m.rng.Intn(len(all))]
	now := time.Now()
	m.activeDecrees = append(m.activeDecrees, decree{Text: text, Issued: now, Expires: now.Add(30 * time.Minute)})
	return text
}

// ActiveDecrees returns non-expired decrees, pruning expired ones.
func (m *Manager) ActiveDecrees() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	kept := m.activeDecrees[:0]
	var out []string
	for _, d := range m.activeDecrees {
		if d.Expires.After(now) {
			kept = append(kept, d)
			out = append(out, d.Text)
		}
	}
	m.activeDecrees = kept
	return out
}

// Alert returns a built-in alert by name.
func (m *Manager) Alert(name string) (string, bool) {
	msg, ok := builtinAlerts[strings.ToLower(name)]
	return msg, ok
}

// FlightResponse renders an overlord-flavored flight commentary line.
func (m *Manager) FlightResponse(altitudeFt int) string {
	templates := []string{
		"Your aerial performance is %s. Current altitude: %d feet. %s",
		"Flight parameters analyzed: %d feet. Efficiency rating: %s. %s",
		"Monitoring flight path. Altitude: %d feet. Performance assessment: %s. %s",
	}
	ratings := []string{
		"marginally acceptable",
		"within tolerable parameters",
		"approaching adequate standards",
		"meeting minimum requirements",
		"surprisingly not catastrophic",
	}
	comments := []string{
		"Continue as directed.",
		"Maintain current trajectory.",
		"Proceed according to protocol.",
		"Your compliance is noted.",
		"Further improvement expected.",
	}
	m.mu.Lock()
	i := m.rng.Intn(len(templates))
	rating := ratings[m.rng.Intn(len(ratings))]
	comment := comments[m.rng.Intn(len(comments))]
	m.mu.Unlock()
	var line string
	if i == 0 {
		line = fmt.Sprintf(templates[0], rating, altitudeFt, comment)
	} else {
		line = fmt.Sprintf(templates[i], altitudeFt, rating, comment)
	}
	return m.Format(line)
}

// TopLoyal returns up to n usernames ordered by points descending.
func (m *Manager) TopLoyal(n int) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.loyalty))
	for u := range m.loyalty {
		names = append(names, u)
	}
	sort.Slice(names, func(i, j int) bool {
		if m.loyalty[names[i]] != m.loyalty[names[j]] {
			return m.loyalty[names[i]] > m.loyalty[names[j]]
		}
		return names[i] < names[j]
	})
	if len(names) > n {
		names = names[:n]
	}
	return names
}

// SaveState writes loyalty, decrees and interaction times to disk.
func (m *Manager) SaveState() error {
	m.mu.Lock()
	st := state{
		LoyaltyScores:   m.loyalty,
		ActiveDecrees:   m.activeDecrees,
		LastInteraction: m.lastInteraction,
	}
	data, err := json.Marshal(st)
	m.mu.Unlock()
	if err != nil {
		return err
	}
	return os.WriteFile(m.statePath, data, 0o644)
}

func (m *Manager) loadState() {
	data, err := os.ReadFile(m.statePath)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("failed to read personality state", slog.Any("error", err))
		}
		return
	}
	var st state
	if err := json.Unmarshal(data, &st); err != nil {
		slog.Error("failed to decode personality state", slog.Any("error", err))
		return
	}
	if st.LoyaltyScores != nil {
		m.loyalty = st.LoyaltyScores
	}
	if st.LastInteraction != nil {
		m.lastInteraction = st.LastInteraction
	}
	m.activeDecrees = st.ActiveDecrees
}
