package bot

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/grab-your-parachutes/overlord-bot/db"
	"github.com/grab-your-parachutes/overlord-bot/navmap"
	"github.com/grab-your-parachutes/overlord-bot/tts"
)

const altitudeMilestoneFt = 1000

// flightTracker carries state between flight poll runs. It is only touched
// from the poll task goroutine.
type flightTracker struct {
	lastPhase       string
	lastAnnouncedFt float64
	hasAnnounced    bool
}

func (b *Bot) registerTasks() {
	tracker := &flightTracker{}
	b.Sched.Every("flight-poll", b.Cfg.NavmapPollInterval, func(ctx context.Context) error {
		return b.pollFlight(ctx, tracker)
	})

	if b.Cfg.OpenAIAPIKey != "" {
		facts := &factSource{ai: b.AI}
		b.Sched.EveryBetween("aviation-fact", 5*time.Minute, 15*time.Minute, func(ctx context.Context) error {
			fact, err := facts.AviationFact(ctx)
			if err != nil {
				return fmt.Errorf("aviation fact: %w", err)
			}
			b.Chat.Send(b.Cfg.TwitchChannel, fact, true)
			return nil
		})
		b.Sched.EveryBetween("location-fact", 15*time.Minute, 30*time.Minute, func(ctx context.Context) error {
			info, err := b.Navmap.SimInfo(ctx)
			if err != nil || !info.Active || info.OnGround {
				return nil
			}
			fact, err := facts.LocationFact(ctx, info.Position.Lat, info.Position.Lon)
			if err != nil {
				return fmt.Errorf("location fact: %w", err)
			}
			b.Chat.Send(b.Cfg.TwitchChannel, fact, true)
			return nil
		})
	}
}

// pollFlight samples the simulator, persists a snapshot, and announces phase
// transitions and altitude milestones.
func (b *Bot) pollFlight(ctx context.Context, t *flightTracker) error {
	info, err := b.Navmap.SimInfo(ctx)
	if err != nil {
		// The simulator being down is routine, not an error worth paging on.
		slog.Debug("simulator poll failed", slog.Any("error", err))
		return nil
	}
	if !info.Active {
		t.lastPhase = ""
		t.hasAnnounced = false
		return nil
	}

	phase := navmap.FlightPhase(info)
	altFt := info.IndicatedAltitude

	if b.DB != nil {
		snap := db.FlightSnapshot{
			Channel:          b.Cfg.TwitchChannel,
			Aircraft:         info.AircraftName,
			AltitudeFt:       altFt,
			GroundSpeedKts:   navmap.Knots(info.GroundSpeed),
			VerticalSpeedFpm: navmap.Fpm(info.VerticalSpeed),
			HeadingDeg:       info.Heading,
			Phase:            phase,
		}
		if err := db.SaveFlightSnapshot(ctx, b.DB, snap); err != nil {
			slog.Warn("flight snapshot save failed", slog.Any("error", err))
		}
	}

	b.announcePhase(t, phase)
	b.announceMilestone(t, info, altFt)
	t.lastPhase = phase
	return nil
}

func (b *Bot) announcePhase(t *flightTracker, phase string) {
	if phase == t.lastPhase || t.lastPhase == "" {
		return
	}
	var alertName string
	switch phase {
	case navmap.PhaseTakingOff:
		alertName = "takeoff"
	case navmap.PhaseLanding:
		alertName = "landing"
	default:
		return
	}
	if msg, ok := b.Personality.Alert(alertName); ok {
		b.Chat.Send(b.Cfg.TwitchChannel, b.Personality.Format(msg), false)
		b.Speaker.Speak(msg, tts.PriorityUrgent)
	}
}

func (b *Bot) announceMilestone(t *flightTracker, info *navmap.SimInfo, altFt float64) {
	aglFt := navmap.Feet(info.AltitudeAboveGround)
	if aglFt < 50 {
		t.hasAnnounced = false
		return
	}
	if t.hasAnnounced && math.Abs(altFt-t.lastAnnouncedFt) < altitudeMilestoneFt {
		return
	}
	line := b.Personality.FlightResponse(int(altFt))
	b.Chat.Send(b.Cfg.TwitchChannel, line, false)
	b.Speaker.Speak(line, tts.PriorityHigh)
	t.lastAnnouncedFt = altFt
	t.hasAnnounced = true
}
