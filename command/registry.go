// Package command routes prefixed chat commands through cooldown and
// permission checks to builtin handlers, custom commands, and aliases.
package command

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/grab-your-parachutes/overlord-bot/chat"
	"github.com/grab-your-parachutes/overlord-bot/navmap"
	"github.com/grab-your-parachutes/overlord-bot/personality"
	"github.com/grab-your-parachutes/overlord-bot/telemetry"
	"github.com/grab-your-parachutes/overlord-bot/tts"
	"github.com/grab-your-parachutes/overlord-bot/twitchapi"
	"github.com/grab-your-parachutes/overlord-bot/weather"
)

// Messenger delivers outbound chat lines, optionally with TTS readout.
type Messenger interface {
	Send(channel, text string, tts bool)
}

// TTSController exposes the speaker controls the tts commands need.
type TTSController interface {
	Speak(text string, priority int)
	Status() tts.Status
	Clear()
	SetEnabled(on bool)
	UpdateVoice(voice string) error
	UpdateSpeed(speed float64) error
	UpdateVolume(volume float64) error
}

// SimSource provides simulator state and airport lookups.
type SimSource interface {
	SimInfo(ctx context.Context) (*navmap.SimInfo, error)
	AirportInfo(ctx context.Context, ident string) (*navmap.AirportInfo, error)
}

// MetarSource fetches METAR reports.
type MetarSource interface {
	GetMetar(ctx context.Context, icao string) (*weather.Metar, error)
}

// ChannelController reads stream metadata.
type ChannelController interface {
	Info(ctx context.Context) (game, title string, err error)
	Uptime(ctx context.Context) (d time.Duration, live bool, err error)
}

// AlertStore persists named alert messages.
type AlertStore interface {
	Save(ctx context.Context, name, message, createdBy string) error
	Get(ctx context.Context, name string) (msg string, ok bool, err error)
}

// FactSource produces aviation trivia on demand.
type FactSource interface {
	AviationFact(ctx context.Context) (string, error)
}

// Deps carries everything builtin handlers reach for. Nil fields disable
// the commands that need them.
type Deps struct {
	Messenger   Messenger
	TTS         TTSController
	Sim         SimSource
	Metar       MetarSource
	Channel     ChannelController
	Alerts      AlertStore
	Facts       FactSource
	Personality *personality.Manager
	// Audit, when set, records each dispatched command.
	Audit func(ctx context.Context, msg *chat.Message, command, args string)
}

// HandlerFunc is a builtin command implementation.
type HandlerFunc func(ctx context.Context, r *Registry, msg *chat.Message, args []string)

// Permission restricts who may run a command. Zero value allows everyone.
type Permission struct {
	BroadcasterOnly bool
	ModOnly         bool
	VIPOnly         bool
	SubscriberOnly  bool
}

type builtin struct {
	name     string
	help     string
	cooldown time.Duration
	perm     Permission
	handler  HandlerFunc
}

// Usage tracks per-command-name usage, shared across all users.
type Usage struct {
	LastUsed time.Time
	UseCount int
	Cooldown time.Duration
}

// Registry resolves and executes commands.
type Registry struct {
	Prefix string
	Deps   Deps

	mu       sync.Mutex
	builtins map[string]*builtin
	customs  map[string]string
	aliases  map[string]string
	usage    map[string]*Usage

	store     *FileStore
	startTime time.Time
	now       func() time.Time
}

// NewRegistry builds a registry with all builtin commands registered and,
// when store is non-nil, custom commands and aliases loaded from disk.
func NewRegistry(prefix string, deps Deps, store *FileStore) *Registry {
	r := &Registry{
		Prefix:    prefix,
		Deps:      deps,
		builtins:  make(map[string]*builtin),
		customs:   make(map[string]string),
		aliases:   make(map[string]string),
		usage:     make(map[string]*Usage),
		store:     store,
		startTime: time.Now(),
		now:       time.Now,
	}
	r.registerBuiltins()
	if store != nil {
		customs, aliases, err := store.Load()
		if err != nil {
			slog.Warn("failed to load command data", slog.Any("error", err))
		} else {
			r.customs = customs
			r.aliases = aliases
		}
	}
	return r
}

func (r *Registry) register(name, help string, cooldown time.Duration, perm Permission, h HandlerFunc) {
	r.builtins[name] = &builtin{name: name, help: help, cooldown: cooldown, perm: perm, handler: h}
}

// Dispatch parses and executes a prefixed command message. Handler panics
// are contained here so one bad command cannot take down the pipeline.
func (r *Registry) Dispatch(ctx context.Context, msg *chat.Message) {
	content := strings.TrimSpace(msg.Content)
	if !strings.HasPrefix(content, r.Prefix) {
		return
	}
	fields := strings.Fields(content[len(r.Prefix):])
	if len(fields) == 0 {
		return
	}
	name := strings.ToLower(fields[0])
	args := fields[1:]

	log := telemetry.LoggerWithCorr(ctx)
	defer func() {
		if rec := recover(); rec != nil {
			telemetry.CommandErrors.Inc()
			log.Error("command handler panicked", slog.String("command", name), slog.Any("panic", rec))
			r.send(msg.Channel, "Command execution failed. Please try again later.", false)
		}
	}()

	if r.Deps.Audit != nil {
		r.Deps.Audit(ctx, msg, name, strings.Join(args, " "))
	}

	ctx, span := telemetry.StartSpan(ctx, "command", telemetry.CommandAttr(name), telemetry.ChannelAttr(msg.Channel))
	defer span.End()

	r.mu.Lock()
	b, isBuiltin := r.builtins[name]
	target, isAlias := r.aliases[name]
	custom, isCustom := r.customs[name]
	if isAlias {
		// One hop only, an alias pointing at another alias is dead.
		if ab, ok := r.builtins[target]; ok {
			b, isBuiltin = ab, true
		} else if ac, ok := r.customs[target]; ok {
			custom, isCustom = ac, true
		} else {
			isAlias = false
		}
	}
	r.mu.Unlock()

	switch {
	case isBuiltin:
		r.runBuiltin(ctx, b, msg, args)
	case isCustom:
		r.runCustom(ctx, msg, custom)
	default:
		log.Debug("unknown command", slog.String("command", name))
		r.send(msg.Channel, fmt.Sprintf("Unknown command: %s. Type %shelp for assistance.", name, r.Prefix), false)
	}
}

// runBuiltin applies the cooldown gate, then the permission gate, then the
// handler. The cooldown is consumed before permissions are evaluated.
func (r *Registry) runBuiltin(ctx context.Context, b *builtin, msg *chat.Message, args []string) {
	if remaining, blocked := r.checkCooldown(b); blocked {
		r.send(msg.Channel, fmt.Sprintf("Command cooldown active. Await %d seconds. Comply.", int(remaining.Seconds())), false)
		return
	}
	if denial := r.checkPermission(b.perm, msg); denial != "" {
		r.send(msg.Channel, denial, false)
		return
	}
	telemetry.TimeFunc(telemetry.DispatchDuration, func() {
		b.handler(ctx, r, msg, args)
	})
}

func (r *Registry) checkCooldown(b *builtin) (time.Duration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.usage[b.name]
	if !ok {
		u = &Usage{Cooldown: b.cooldown}
		r.usage[b.name] = u
	}
	now := r.now()
	if !u.LastUsed.IsZero() {
		if passed := now.Sub(u.LastUsed); passed < u.Cooldown {
			return u.Cooldown - passed, true
		}
	}
	u.LastUsed = now
	u.UseCount++
	return 0, false
}

// checkPermission returns a denial message, or empty when allowed. The
// broadcaster passes every gate; moderators pass mod gates.
func (r *Registry) checkPermission(p Permission, msg *chat.Message) string {
	if p.BroadcasterOnly && !msg.IsBroadcaster {
		return "This command is restricted to the broadcaster. Your attempt has been logged. Comply."
	}
	if p.ModOnly && !msg.IsMod && !msg.IsBroadcaster {
		return "This command requires moderator clearance. Access denied. Comply."
	}
	if p.VIPOnly && !msg.IsVIP && !msg.IsMod && !msg.IsBroadcaster {
		return "This command requires VIP status. Your access is insufficient. Comply."
	}
	if p.SubscriberOnly && !msg.IsSubscriber && !msg.IsMod && !msg.IsBroadcaster {
		return "This command is for subscribers only. Support the channel to gain access. Comply."
	}
	return ""
}

func (r *Registry) send(channel, text string, tts bool) {
	if r.Deps.Messenger != nil {
		r.Deps.Messenger.Send(channel, text, tts)
	}
}

func (r *Registry) speak(text string, priority int) {
	if r.Deps.TTS != nil {
		r.Deps.TTS.Speak(text, priority)
	}
}

// UptimeString renders the bot process uptime as "Xd Yh Zm Ws".
func (r *Registry) UptimeString() string {
	d := r.now().Sub(r.startTime)
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
}

// uptimeString prefers the live stream uptime when the channel controller
// reports the stream as live, falling back to process uptime.
func (r *Registry) uptimeString(ctx context.Context) string {
	if r.Deps.Channel != nil {
		d, live, err := r.Deps.Channel.Uptime(ctx)
		switch {
		case err != nil:
			telemetry.LoggerWithCorr(ctx).Warn("stream uptime lookup failed", slog.Any("error", err))
		case live:
			return twitchapi.FormatUptime(d)
		}
	}
	return r.UptimeString()
}

// Stats summarizes command usage for the !stats command.
func (r *Registry) Stats() (totalUses int, mostUsed string, customCount, aliasCount int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	best := -1
	mostUsed = "None"
	names := make([]string, 0, len(r.usage))
	for name := range r.usage {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		u := r.usage[name]
		totalUses += u.UseCount
		if u.UseCount > best {
			best = u.UseCount
			mostUsed = name
		}
	}
	return totalUses, mostUsed, len(r.customs), len(r.aliases)
}

// CommandNames lists all invocable names (builtins and customs), sorted.
func (r *Registry) CommandNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.builtins)+len(r.customs))
	for name := range r.builtins {
		names = append(names, name)
	}
	for name := range r.customs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
