package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/grab-your-parachutes/overlord-bot/personality"
	"github.com/grab-your-parachutes/overlord-bot/telemetry"
)

const (
	queueCapacity  = 256
	metricsPeriod  = 30 * time.Second
	activityWindow = 60 * time.Second
)

// Sender delivers outbound chat lines.
type Sender interface {
	Say(channel, text string)
}

// Speaker queues text for TTS readout.
type Speaker interface {
	Speak(text string, priority int)
}

// Responder produces an AI reply for a mention prompt.
type Responder interface {
	Reply(ctx context.Context, channel, username, prompt string) (string, error)
}

// Dispatcher routes prefixed command messages.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg *Message)
}

// Metrics is a rolling view of chat activity for the !stats command.
type Metrics struct {
	TotalMessages     int
	CommandsProcessed int
	BotMentions       int
	Errors            int
	LastMessageTime   time.Time
	ActiveUsers       int
	MessageFrequency  map[string]int
}

// Manager owns the ingestion queue and drives the pipeline.
type Manager struct {
	BotName      string
	Channel      string
	Prefix       string
	TriggerWords []string
	IgnoreList   []string

	// Intake gates queue consumption, Limiter gates outbound sends. Separate
	// instances so inbound processing cannot starve delivery.
	Intake      *RateLimiter
	Limiter     *RateLimiter
	Spam        *SpamDetector
	Users       *UserStore
	Cache       *ResponseCache
	Personality *personality.Manager
	Sender      Sender
	Speaker     Speaker
	Responder   Responder
	Dispatcher  Dispatcher

	queue chan *Message

	mu             sync.Mutex
	metrics        Metrics
	activeUsers    map[string]struct{}
	msgFrequency   map[string]int
	blockedPhrases map[string]struct{}
}

// NewManager wires the pipeline components together.
func NewManager(botName, channel, prefix string, triggerWords, ignoreList []string) *Manager {
	return &Manager{
		BotName:        strings.ToLower(botName),
		Channel:        strings.ToLower(channel),
		Prefix:         prefix,
		TriggerWords:   triggerWords,
		IgnoreList:     ignoreList,
		Intake:         NewRateLimiter(1.0),
		Limiter:        NewRateLimiter(1.0),
		Spam:           NewSpamDetector(),
		Users:          NewUserStore(),
		Cache:          NewResponseCache(1000, 5*time.Minute),
		queue:          make(chan *Message, queueCapacity),
		activeUsers:    make(map[string]struct{}),
		msgFrequency:   make(map[string]int),
		blockedPhrases: make(map[string]struct{}),
	}
}

// BlockPhrase adds a lowercase substring that causes messages to be dropped.
func (m *Manager) BlockPhrase(phrase string) {
	phrase = strings.ToLower(strings.TrimSpace(phrase))
	if phrase == "" {
		return
	}
	m.mu.Lock()
	m.blockedPhrases[phrase] = struct{}{}
	m.mu.Unlock()
}

// Enqueue filters an inbound message and, if it passes, records state and
// queues it for processing. A full queue drops the message rather than
// blocking the transport callback.
func (m *Manager) Enqueue(msg *Message) {
	telemetry.MessagesReceived.Inc()
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = time.Now()
	}

	if m.shouldFilter(msg) {
		telemetry.MessagesFiltered.Inc()
		return
	}

	m.recordActivity(msg)
	greet := m.Users.Touch(msg)

	select {
	case m.queue <- msg:
		telemetry.SetQueueDepth(len(m.queue))
	default:
		slog.Warn("ingest queue full, dropping message",
			slog.String("user", msg.Username), slog.String("corr", msg.ID))
		m.addError()
	}

	if greet && m.Personality != nil {
		m.Send(msg.Channel, m.Personality.Greeting(msg.Username), true)
		telemetry.GreetingsSent.Inc()
	}
}

func (m *Manager) shouldFilter(msg *Message) bool {
	if msg.Echo {
		return true
	}
	if msg.Username == "" {
		slog.Warn("message with no author")
		return true
	}
	author := strings.ToLower(msg.Username)
	for _, ignored := range m.IgnoreList {
		if author == ignored {
			return true
		}
	}
	// The broadcaster and the bot account are exempt from spam checks.
	if author != m.BotName && author != m.Channel {
		if m.Spam.Detect(author, msg.Content, m.Users.LastContents()) {
			telemetry.SpamDetected.Inc()
			warnings := m.Users.AddWarning(author)
			slog.Warn("spam detected",
				slog.String("user", author),
				slog.Int("warnings", warnings),
				slog.String("corr", msg.ID))
			return true
		}
	}
	content := strings.ToLower(msg.Content)
	m.mu.Lock()
	defer m.mu.Unlock()
	for phrase := range m.blockedPhrases {
		if strings.Contains(content, phrase) {
			slog.Warn("blocked phrase", slog.String("user", author), slog.String("corr", msg.ID))
			return true
		}
	}
	return false
}

// Run drains the queue until ctx is done. Start it once.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(metricsPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.rollMetrics()
		case msg := <-m.queue:
			telemetry.SetQueueDepth(len(m.queue))
			if err := m.Intake.Acquire(ctx); err != nil {
				return
			}
			m.process(ctx, msg)
		}
	}
}

func (m *Manager) process(ctx context.Context, msg *Message) {
	ctx = telemetry.WithCorrelation(ctx, msg.ID)
	content := strings.ToLower(msg.Content)

	switch {
	case m.isMention(content):
		m.addMention()
		telemetry.BotMentions.Inc()
		m.handleMention(ctx, msg)
	case strings.HasPrefix(msg.Content, m.Prefix):
		m.addCommand()
		telemetry.CommandsProcessed.Inc()
		if m.Dispatcher != nil {
			m.Dispatcher.Dispatch(ctx, msg)
		}
	}
}

func (m *Manager) isMention(content string) bool {
	if strings.Contains(content, m.BotName) {
		return true
	}
	for _, w := range m.TriggerWords {
		if w != "" && strings.Contains(content, w) {
			return true
		}
	}
	return false
}

func (m *Manager) handleMention(ctx context.Context, msg *Message) {
	log := telemetry.LoggerWithCorr(ctx)
	prompt := strings.TrimSpace(stripMention(msg.Content, m.BotName))

	if prompt == "" {
		line := fmt.Sprintf("You summoned me, %s %s?", m.Personality.UserTitle(msg.Username), msg.Username)
		m.Send(msg.Channel, m.Personality.Format(line), true)
		return
	}

	if cached, ok := m.Cache.Get(prompt, msg.Channel); ok {
		log.Info("mention served from cache", slog.String("user", msg.Username))
		telemetry.AICacheHits.Inc()
		m.Send(msg.Channel, cached, true)
		return
	}

	telemetry.AIRequests.Inc()
	response, err := m.Responder.Reply(ctx, msg.Channel, msg.Username, prompt)
	if err != nil {
		log.Error("mention reply failed", slog.Any("error", err), slog.String("user", msg.Username))
		m.addError()
		m.Send(msg.Channel, m.Personality.ErrorResponse("timeout", msg.Username), false)
		return
	}
	m.Cache.Put(prompt, msg.Channel, response)
	m.Send(msg.Channel, response, true)
}

func stripMention(content, botName string) string {
	lower := strings.ToLower(content)
	idx := strings.Index(lower, botName)
	if idx < 0 {
		return content
	}
	stripped := content[:idx] + content[idx+len(botName):]
	return strings.Trim(stripped, " @,:")
}

// Send rate limits, delivers the line, and optionally queues TTS readout.
func (m *Manager) Send(channel, text string, tts bool) {
	if text == "" {
		return
	}
	if err := m.Limiter.Acquire(context.Background()); err != nil {
		return
	}
	if m.Sender != nil {
		m.Sender.Say(channel, text)
	}
	if tts && m.Speaker != nil {
		m.Speaker.Speak(text, 0)
		telemetry.TTSMessages.Inc()
	}
}

func (m *Manager) recordActivity(msg *Message) {
	m.mu.Lock()
	m.metrics.TotalMessages++
	m.metrics.LastMessageTime = msg.ReceivedAt
	user := strings.ToLower(msg.Username)
	m.activeUsers[user] = struct{}{}
	m.msgFrequency[user]++
	n := len(m.activeUsers)
	m.mu.Unlock()
	telemetry.SetActiveUsers(n)
}

func (m *Manager) addMention() {
	m.mu.Lock()
	m.metrics.BotMentions++
	m.mu.Unlock()
}

func (m *Manager) addCommand() {
	m.mu.Lock()
	m.metrics.CommandsProcessed++
	m.mu.Unlock()
}

func (m *Manager) addError() {
	m.mu.Lock()
	m.metrics.Errors++
	m.mu.Unlock()
}

// rollMetrics clears the active-user set and per-user frequency counts
// after a minute of silence.
func (m *Manager) rollMetrics() {
	m.mu.Lock()
	if !m.metrics.LastMessageTime.IsZero() && time.Since(m.metrics.LastMessageTime) > activityWindow {
		m.activeUsers = make(map[string]struct{})
		m.msgFrequency = make(map[string]int)
	}
	n := len(m.activeUsers)
	m.mu.Unlock()
	telemetry.SetActiveUsers(n)
}

// Snapshot returns current metrics.
func (m *Manager) Snapshot() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.metrics
	s.ActiveUsers = len(m.activeUsers)
	s.MessageFrequency = make(map[string]int, len(m.msgFrequency))
	for user, n := range m.msgFrequency {
		s.MessageFrequency[user] = n
	}
	return s
}

// QueueDepth returns the number of queued messages.
func (m *Manager) QueueDepth() int { return len(m.queue) }
