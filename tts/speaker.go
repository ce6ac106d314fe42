// Package tts queues bot utterances and delivers them to a Streamer.bot
// websocket endpoint as DoAction requests. Higher priority utterances jump
// the queue; delivery failures drop the utterance rather than block chat.
package tts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Priorities for queued utterances.
const (
	PriorityNormal = 0
	PriorityHigh   = 1
	PriorityUrgent = 2
)

const maxQueue = 100

// Settings are the adjustable voice parameters forwarded to Streamer.bot.
type Settings struct {
	Voice  string
	Speed  float64
	Volume float64
}

// Status is a point-in-time view of the speaker for the !ttsstatus command.
type Status struct {
	Enabled           bool
	Connected         bool
	Settings          Settings
	QueueSize         int
	MessagesProcessed int
	AvailableVoices   []string
}

type utterance struct {
	text     string
	priority int
	queuedAt time.Time
}

// Speaker owns the utterance queue and the websocket connection.
type Speaker struct {
	url    string
	dialer *websocket.Dialer

	mu        sync.Mutex
	queue     []utterance
	settings  Settings
	enabled   bool
	connected bool
	processed int
	wake      chan struct{}
}

var defaultVoices = []string{"Brian", "Amy", "Emma", "Geraint"}

// NewSpeaker builds a speaker for the given ws:// URL. An empty URL
// disables TTS entirely.
func NewSpeaker(url string) *Speaker {
	return &Speaker{
		url:      url,
		dialer:   &websocket.Dialer{HandshakeTimeout: 5 * time.Second},
		settings: Settings{Voice: "Brian", Speed: 1.0, Volume: 1.0},
		enabled:  url != "",
		wake:     make(chan struct{}, 1),
	}
}

// Speak queues text for readout. Queue overflow drops the newest
// lowest-priority utterance.
func (s *Speaker) Speak(text string, priority int) {
	if text == "" {
		return
	}
	s.mu.Lock()
	if !s.enabled {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, utterance{text: text, priority: priority, queuedAt: time.Now()})
	// Stable sort keeps FIFO order within a priority level.
	sort.SliceStable(s.queue, func(i, j int) bool {
		return s.queue[i].priority > s.queue[j].priority
	})
	if len(s.queue) > maxQueue {
		s.queue = s.queue[:maxQueue]
	}
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Clear drops all queued utterances.
func (s *Speaker) Clear() {
	s.mu.Lock()
	s.queue = nil
	s.mu.Unlock()
}

// SetEnabled toggles readout. Disabling also clears the queue.
func (s *Speaker) SetEnabled(on bool) {
	s.mu.Lock()
	s.enabled = on && s.url != ""
	if !s.enabled {
		s.queue = nil
	}
	s.mu.Unlock()
}

// UpdateVoice sets the voice if it is known.
func (s *Speaker) UpdateVoice(voice string) error {
	known := false
	for _, v := range defaultVoices {
		if v == voice {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("unknown voice %q, available: %v", voice, defaultVoices)
	}
	s.mu.Lock()
	s.settings.Voice = voice
	s.mu.Unlock()
	return nil
}

// UpdateSpeed sets playback speed in [0.5, 2.0].
func (s *Speaker) UpdateSpeed(speed float64) error {
	if speed < 0.5 || speed > 2.0 {
		return errors.New("speed must be between 0.5 and 2.0")
	}
	s.mu.Lock()
	s.settings.Speed = speed
	s.mu.Unlock()
	return nil
}

// UpdateVolume sets volume in [0, 1].
func (s *Speaker) UpdateVolume(volume float64) error {
	if volume < 0 || volume > 1 {
		return errors.New("volume must be between 0.0 and 1.0")
	}
	s.mu.Lock()
	s.settings.Volume = volume
	s.mu.Unlock()
	return nil
}

// Status reports current speaker state.
func (s *Speaker) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Enabled:           s.enabled,
		Connected:         s.connected,
		Settings:          s.settings,
		QueueSize:         len(s.queue),
		MessagesProcessed: s.processed,
		AvailableVoices:   append([]string(nil), defaultVoices...),
	}
}

// QueueSize returns the number of pending utterances.
func (s *Speaker) QueueSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

func (s *Speaker) pop() (utterance, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return utterance{}, false
	}
	u := s.queue[0]
	s.queue = s.queue[1:]
	return u, true
}

// doActionRequest is the Streamer.bot websocket request envelope.
type doActionRequest struct {
	Request string         `json:"request"`
	ID      string         `json:"id"`
	Action  map[string]any `json:"action"`
	Args    map[string]any `json:"args"`
}

// Run drains the queue until ctx is done, dialing the websocket lazily and
// reconnecting with a flat delay on failure.
func (s *Speaker) Run(ctx context.Context) {
	if s.url == "" {
		slog.Info("tts disabled (no websocket url configured)")
		return
	}
	var conn *websocket.Conn
	defer func() {
		if conn != nil {
			_ = conn.Close()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.wake:
		case <-time.After(time.Second):
		}

		for {
			u, ok := s.pop()
			if !ok {
				break
			}
			if conn == nil {
				c, _, err := s.dialer.DialContext(ctx, s.url, nil)
				if err != nil {
					slog.Warn("tts dial failed, dropping utterance", slog.Any("error", err))
					s.markConnected(false)
					break
				}
				conn = c
				s.markConnected(true)
			}
			if err := s.send(conn, u); err != nil {
				slog.Warn("tts send failed", slog.Any("error", err))
				_ = conn.Close()
				conn = nil
				s.markConnected(false)
				continue
			}
			s.mu.Lock()
			s.processed++
			s.mu.Unlock()
		}
	}
}

func (s *Speaker) markConnected(ok bool) {
	s.mu.Lock()
	s.connected = ok
	s.mu.Unlock()
}

func (s *Speaker) send(conn *websocket.Conn, u utterance) error {
	s.mu.Lock()
	set := s.settings
	s.mu.Unlock()
	req := doActionRequest{
		Request: "DoAction",
		ID:      uuid.NewString(),
		Action:  map[string]any{"name": "Speak"},
		Args: map[string]any{
			"message": u.text,
			"voice":   set.Voice,
			"speed":   set.Speed,
			"volume":  set.Volume,
		},
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteJSON(req)
}
