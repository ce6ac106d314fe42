package chat

import (
	"strings"
	"sync"
	"time"
)

const (
	spamWindow       = 60 * time.Second
	spamMaxMessages  = 5
	spamMinRepeatLen = 20
	spamMinDistinct  = 5
)

// SpamDetector flags flooding, exact repeats of any user's previous
// message, and long low-diversity strings.
type SpamDetector struct {
	mu      sync.Mutex
	windows map[string][]time.Time
	now     func() time.Time
}

// NewSpamDetector builds a detector with an empty history.
func NewSpamDetector() *SpamDetector {
	return &SpamDetector{
		windows: make(map[string][]time.Time),
		now:     time.Now,
	}
}

// Detect reports whether the message is spam. recentContents is the set of
// last messages across all tracked users; a repeat of any of them counts,
// regardless of who sent the original.
func (d *SpamDetector) Detect(username, content string, recentContents []string) bool {
	username = strings.ToLower(username)
	content = strings.ToLower(content)

	d.mu.Lock()
	now := d.now()
	window := d.windows[username][:0]
	for _, ts := range d.windows[username] {
		if now.Sub(ts) < spamWindow {
			window = append(window, ts)
		}
	}
	window = append(window, now)
	d.windows[username] = window
	flooding := len(window) > spamMaxMessages
	d.mu.Unlock()

	if flooding {
		return true
	}

	for _, prev := range recentContents {
		if prev != "" && strings.ToLower(prev) == content {
			return true
		}
	}

	if len(content) > spamMinRepeatLen && distinctRunes(content) < spamMinDistinct {
		return true
	}
	return false
}

func distinctRunes(s string) int {
	seen := make(map[rune]struct{}, len(s))
	for _, r := range s {
		seen[r] = struct{}{}
	}
	return len(seen)
}
