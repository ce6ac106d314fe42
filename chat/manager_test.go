package chat

import (
	"context"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/grab-your-parachutes/overlord-bot/personality"
	"github.com/grab-your-parachutes/overlord-bot/telemetry"
)

func TestMain(m *testing.M) {
	telemetry.Init()
	os.Exit(m.Run())
}

type recordingSender struct {
	mu    sync.Mutex
	lines []string
}

func (r *recordingSender) Say(channel, text string) {
	r.mu.Lock()
	r.lines = append(r.lines, text)
	r.mu.Unlock()
}

func (r *recordingSender) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}

type recordingSpeaker struct {
	mu    sync.Mutex
	lines []string
}

func (r *recordingSpeaker) Speak(text string, priority int) {
	r.mu.Lock()
	r.lines = append(r.lines, text)
	r.mu.Unlock()
}

type stubResponder struct {
	mu    sync.Mutex
	calls int
	reply string
	err   error
}

func (s *stubResponder) Reply(ctx context.Context, channel, username, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.reply, s.err
}

func (s *stubResponder) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type recordingDispatcher struct {
	mu   sync.Mutex
	msgs []*Message
}

func (r *recordingDispatcher) Dispatch(ctx context.Context, msg *Message) {
	r.mu.Lock()
	r.msgs = append(r.msgs, msg)
	r.mu.Unlock()
}

func (r *recordingDispatcher) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.msgs)
}

func newTestManager(t *testing.T) (*Manager, *recordingSender, *stubResponder, *recordingDispatcher) {
	t.Helper()
	sender := &recordingSender{}
	responder := &stubResponder{reply: "A generated decree."}
	dispatcher := &recordingDispatcher{}

	m := NewManager("overlordbot", "parachutes", "!", []string{"bot"}, []string{"ignored_user"})
	m.Personality = personality.NewManager(filepath.Join(t.TempDir(), "state.json"), rand.New(rand.NewSource(1)))
	m.Sender = sender
	m.Speaker = &recordingSpeaker{}
	m.Responder = responder
	m.Dispatcher = dispatcher
	// No waiting in tests.
	m.Limiter.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return m, sender, responder, dispatcher
}

func drain(t *testing.T, m *Manager) {
	t.Helper()
	ctx := context.Background()
	for {
		select {
		case msg := <-m.queue:
			m.process(ctx, msg)
		default:
			return
		}
	}
}

func TestEnqueueFilters(t *testing.T) {
	m, _, _, _ := newTestManager(t)

	m.Enqueue(&Message{Username: "overlordbot", Channel: "parachutes", Content: "echo", Echo: true})
	m.Enqueue(&Message{Username: "", Channel: "parachutes", Content: "ghost"})
	m.Enqueue(&Message{Username: "ignored_user", Channel: "parachutes", Content: "hi"})

	if depth := m.QueueDepth(); depth != 0 {
		t.Fatalf("queue depth = %d, filtered messages were queued", depth)
	}
}

func TestGreetingSentOnce(t *testing.T) {
	m, sender, _, _ := newTestManager(t)

	m.Enqueue(&Message{Username: "firsttimer", Channel: "parachutes", Content: "hello there"})
	m.Enqueue(&Message{Username: "firsttimer", Channel: "parachutes", Content: "hello again"})

	var greetings int
	for _, line := range sender.all() {
		if strings.Contains(line, "firsttimer") {
			greetings++
		}
	}
	if greetings != 1 {
		t.Fatalf("greetings = %d, want exactly 1; lines: %v", greetings, sender.all())
	}
}

func TestSpamDropRecordsWarning(t *testing.T) {
	m, _, _, _ := newTestManager(t)

	lines := []string{
		"checking in from the flight deck",
		"anyone else watching the approach",
		"that crosswind looks rough",
		"what runway are we on",
		"nice landing earlier today",
		"one message too many now",
	}
	for _, line := range lines {
		m.Enqueue(&Message{Username: "rapidfire", Channel: "parachutes", Content: line})
	}

	st, ok := m.Users.Get("rapidfire")
	if !ok {
		t.Fatal("spammer has no user state")
	}
	if st.WarningCount != 1 {
		t.Fatalf("WarningCount = %d, want 1", st.WarningCount)
	}
}

func TestMessageFrequencyTracksPerUser(t *testing.T) {
	m, _, _, _ := newTestManager(t)

	m.Enqueue(&Message{Username: "Chatty", Channel: "parachutes", Content: "one"})
	m.Enqueue(&Message{Username: "chatty", Channel: "parachutes", Content: "two"})
	m.Enqueue(&Message{Username: "quiet", Channel: "parachutes", Content: "hi"})

	freq := m.Snapshot().MessageFrequency
	if freq["chatty"] != 2 || freq["quiet"] != 1 {
		t.Fatalf("frequency = %v, want chatty:2 quiet:1", freq)
	}

	// A minute of silence clears both the active set and the counts.
	m.mu.Lock()
	m.metrics.LastMessageTime = time.Now().Add(-2 * activityWindow)
	m.mu.Unlock()
	m.rollMetrics()

	snap := m.Snapshot()
	if snap.ActiveUsers != 0 || len(snap.MessageFrequency) != 0 {
		t.Fatalf("after rollover: active = %d, frequency = %v, want both empty",
			snap.ActiveUsers, snap.MessageFrequency)
	}
}

func TestCommandRouting(t *testing.T) {
	m, _, _, dispatcher := newTestManager(t)

	m.Enqueue(&Message{Username: "viewer", Channel: "parachutes", Content: "!status"})
	drain(t, m)

	if dispatcher.count() != 1 {
		t.Fatalf("dispatched = %d, want 1", dispatcher.count())
	}
	if got := m.Snapshot().CommandsProcessed; got != 1 {
		t.Fatalf("CommandsProcessed = %d", got)
	}
}

func TestMentionUsesResponderThenCache(t *testing.T) {
	m, sender, responder, _ := newTestManager(t)

	m.Enqueue(&Message{Username: "asker", Channel: "parachutes", Content: "overlordbot what is our heading"})
	drain(t, m)
	// Different user, different raw text but identical prompt after the
	// mention is stripped: must be served from cache.
	m.Enqueue(&Message{Username: "secondasker", Channel: "parachutes", Content: "@overlordbot what is our heading"})
	drain(t, m)

	if responder.callCount() != 1 {
		t.Fatalf("responder calls = %d, want 1 (second should hit cache)", responder.callCount())
	}
	var replies int
	for _, line := range sender.all() {
		if line == "A generated decree." {
			replies++
		}
	}
	if replies != 2 {
		t.Fatalf("replies = %d, want 2; lines: %v", replies, sender.all())
	}
	if got := m.Snapshot().BotMentions; got != 2 {
		t.Fatalf("BotMentions = %d", got)
	}
}

func TestMentionEmptyPromptSummons(t *testing.T) {
	m, sender, responder, _ := newTestManager(t)

	m.Enqueue(&Message{Username: "summoner", Channel: "parachutes", Content: "@overlordbot"})
	drain(t, m)

	if responder.callCount() != 0 {
		t.Fatal("empty prompt should not reach the responder")
	}
	found := false
	for _, line := range sender.all() {
		if strings.Contains(line, "You summoned me") {
			found = true
		}
	}
	if !found {
		t.Fatalf("no summon response in %v", sender.all())
	}
}

func TestMentionErrorSendsTimeoutResponse(t *testing.T) {
	m, sender, responder, _ := newTestManager(t)
	responder.err = errors.New("upstream down")
	responder.reply = ""

	m.Enqueue(&Message{Username: "asker", Channel: "parachutes", Content: "overlordbot why"})
	drain(t, m)

	found := false
	for _, line := range sender.all() {
		if strings.Contains(line, "inefficiency is noted") {
			found = true
		}
	}
	if !found {
		t.Fatalf("no timeout error response in %v", sender.all())
	}
}

func TestTriggerWordCountsAsMention(t *testing.T) {
	m, _, responder, _ := newTestManager(t)

	m.Enqueue(&Message{Username: "asker", Channel: "parachutes", Content: "hey bot are you alive"})
	drain(t, m)

	if responder.callCount() != 1 {
		t.Fatalf("responder calls = %d, want 1 for trigger word", responder.callCount())
	}
}

func TestBlockedPhraseFiltered(t *testing.T) {
	m, _, _, _ := newTestManager(t)
	m.BlockPhrase("buy followers")

	m.Enqueue(&Message{Username: "shill", Channel: "parachutes", Content: "Buy Followers cheap today"})
	if depth := m.QueueDepth(); depth != 0 {
		t.Fatalf("blocked phrase message queued, depth = %d", depth)
	}
}

func TestFIFOOrder(t *testing.T) {
	m, _, _, dispatcher := newTestManager(t)

	m.Enqueue(&Message{Username: "a", Channel: "parachutes", Content: "!first"})
	m.Enqueue(&Message{Username: "b", Channel: "parachutes", Content: "!second"})
	m.Enqueue(&Message{Username: "c", Channel: "parachutes", Content: "!third"})
	drain(t, m)

	dispatcher.mu.Lock()
	defer dispatcher.mu.Unlock()
	if len(dispatcher.msgs) != 3 {
		t.Fatalf("dispatched = %d", len(dispatcher.msgs))
	}
	for i, want := range []string{"!first", "!second", "!third"} {
		if dispatcher.msgs[i].Content != want {
			t.Fatalf("order violated at %d: %q", i, dispatcher.msgs[i].Content)
		}
	}
}
