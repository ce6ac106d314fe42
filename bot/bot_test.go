package bot

import (
	"os"
	"testing"
	"time"

	twitchirc "github.com/gempir/go-twitch-irc/v4"

	"github.com/grab-your-parachutes/overlord-bot/chat"
	"github.com/grab-your-parachutes/overlord-bot/config"
	"github.com/grab-your-parachutes/overlord-bot/navmap"
	"github.com/grab-your-parachutes/overlord-bot/personality"
	"github.com/grab-your-parachutes/overlord-bot/telemetry"
	"github.com/grab-your-parachutes/overlord-bot/tts"
)

func TestMain(m *testing.M) {
	telemetry.Init()
	os.Exit(m.Run())
}

func TestMapMessageBadges(t *testing.T) {
	m := twitchirc.PrivateMessage{
		ID:      "abc123",
		Channel: "Hangar",
		Message: "!status",
		Time:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	m.User.Name = "Deputy"
	m.User.DisplayName = "Deputy"
	m.User.Badges = map[string]int{"moderator": 1, "subscriber": 6}

	got := mapMessage(m, "overlordbot")
	if got.Channel != "hangar" || got.Username != "deputy" {
		t.Errorf("channel/username = %q/%q", got.Channel, got.Username)
	}
	if !got.IsMod || !got.IsSubscriber {
		t.Error("moderator and subscriber badges should map")
	}
	if got.IsBroadcaster || got.IsVIP {
		t.Error("unset badges should stay false")
	}
	if got.Echo {
		t.Error("non-bot author should not be flagged as echo")
	}
	if got.ReceivedAt != m.Time {
		t.Errorf("ReceivedAt = %v", got.ReceivedAt)
	}
}

func TestMapMessageEchoAndFounder(t *testing.T) {
	m := twitchirc.PrivateMessage{Channel: "hangar", Message: "hi"}
	m.User.Name = "OverlordBot"
	m.User.Badges = map[string]int{"founder": 1}

	got := mapMessage(m, "overlordbot")
	if !got.Echo {
		t.Error("bot's own message should be flagged as echo")
	}
	if !got.IsSubscriber {
		t.Error("founder badge should count as subscriber")
	}
	if got.ReceivedAt.IsZero() {
		t.Error("zero IRC time should be replaced with now")
	}
}

type recordingSender struct {
	lines []string
}

func (s *recordingSender) Say(channel, text string) { s.lines = append(s.lines, text) }

func newAnnounceBot(t *testing.T) (*Bot, *recordingSender) {
	t.Helper()
	sender := &recordingSender{}
	mgr := chat.NewManager("overlordbot", "hangar", "!", nil, nil)
	mgr.Limiter = chat.NewRateLimiter(1000)
	mgr.Sender = sender
	mgr.Personality = personality.NewManager("", nil)
	return &Bot{
		Cfg:         &config.Config{TwitchChannel: "hangar"},
		Chat:        mgr,
		Speaker:     tts.NewSpeaker(""),
		Personality: mgr.Personality,
	}, sender
}

func TestAnnounceMilestone(t *testing.T) {
	b, sender := newAnnounceBot(t)
	tracker := &flightTracker{}
	info := &navmap.SimInfo{Active: true, AltitudeAboveGround: 900, IndicatedAltitude: 5000}

	b.announceMilestone(tracker, info, info.IndicatedAltitude)
	if len(sender.lines) != 1 {
		t.Fatalf("first crossing should announce, got %d lines", len(sender.lines))
	}

	b.announceMilestone(tracker, info, 5400)
	if len(sender.lines) != 1 {
		t.Fatalf("change under threshold should stay quiet, got %d lines", len(sender.lines))
	}

	b.announceMilestone(tracker, info, 6200)
	if len(sender.lines) != 2 {
		t.Fatalf("crossing the threshold should announce again, got %d lines", len(sender.lines))
	}
}

func TestAnnounceMilestoneSkipsLowAltitude(t *testing.T) {
	b, sender := newAnnounceBot(t)
	tracker := &flightTracker{hasAnnounced: true, lastAnnouncedFt: 5000}
	info := &navmap.SimInfo{Active: true, AltitudeAboveGround: 10, IndicatedAltitude: 300}

	b.announceMilestone(tracker, info, 300)
	if len(sender.lines) != 0 {
		t.Fatalf("near the ground nothing should be announced, got %d lines", len(sender.lines))
	}
	if tracker.hasAnnounced {
		t.Error("low pass should reset announcement tracking")
	}
}

func TestAnnouncePhaseTransitions(t *testing.T) {
	b, sender := newAnnounceBot(t)
	tracker := &flightTracker{}

	// First observation has no previous phase, stays silent.
	b.announcePhase(tracker, navmap.PhaseTakingOff)
	if len(sender.lines) != 0 {
		t.Fatalf("first poll should not announce, got %d lines", len(sender.lines))
	}

	tracker.lastPhase = navmap.PhaseGroundRoll
	b.announcePhase(tracker, navmap.PhaseTakingOff)
	if len(sender.lines) != 1 {
		t.Fatalf("takeoff transition should announce, got %d lines", len(sender.lines))
	}

	tracker.lastPhase = navmap.PhaseClimbing
	b.announcePhase(tracker, navmap.PhaseCruise)
	if len(sender.lines) != 1 {
		t.Fatalf("cruise transition should stay quiet, got %d lines", len(sender.lines))
	}
}
