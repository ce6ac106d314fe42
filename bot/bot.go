// Package bot assembles the chat pipeline, command registry, simulator
// pollers, and the Twitch IRC transport into one runnable unit.
package bot

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"time"

	twitchirc "github.com/gempir/go-twitch-irc/v4"

	"github.com/grab-your-parachutes/overlord-bot/chat"
	"github.com/grab-your-parachutes/overlord-bot/command"
	"github.com/grab-your-parachutes/overlord-bot/config"
	"github.com/grab-your-parachutes/overlord-bot/navmap"
	"github.com/grab-your-parachutes/overlord-bot/openai"
	"github.com/grab-your-parachutes/overlord-bot/personality"
	"github.com/grab-your-parachutes/overlord-bot/sched"
	"github.com/grab-your-parachutes/overlord-bot/tts"
	"github.com/grab-your-parachutes/overlord-bot/twitchapi"
	"github.com/grab-your-parachutes/overlord-bot/weather"
)

const startupMessage = "AI Overlord systems online. Commencing channel supervision."

// Bot owns every long-lived component and the IRC connection.
type Bot struct {
	Cfg         *config.Config
	DB          *sql.DB
	IRC         *twitchirc.Client
	Chat        *chat.Manager
	Commands    *command.Registry
	Speaker     *tts.Speaker
	Navmap      *navmap.Client
	Weather     *weather.Client
	AI          *openai.Client
	Personality *personality.Manager
	Sched       *sched.Scheduler

	channelCtl *channelControl
}

// New wires components from config. database may be nil; DB-backed features
// (conversation history, alerts, audit log) degrade to no-ops.
func New(cfg *config.Config, database *sql.DB) *Bot {
	pers := personality.NewManager(cfg.PersonalityStatePath, nil)
	speaker := tts.NewSpeaker(cfg.TTSWebsocketURL)
	nav := navmap.NewClient(cfg.NavmapBaseURL)
	ai := openai.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, cfg.OpenAIMaxTokens, cfg.OpenAITemperature)

	var wx *weather.Client
	if cfg.CheckWXAPIKey != "" {
		wx = weather.NewClient(cfg.CheckWXAPIKey, cfg.CheckWXBaseURL)
	}

	var helix *twitchapi.HelixClient
	var chanCtl *channelControl
	if cfg.TwitchClientID != "" && cfg.TwitchClientSecret != "" {
		helix = &twitchapi.HelixClient{
			AppTokenSource: &twitchapi.TokenSource{ClientID: cfg.TwitchClientID, ClientSecret: cfg.TwitchClientSecret},
			ClientID:       cfg.TwitchClientID,
		}
		chanCtl = &channelControl{helix: helix, login: cfg.TwitchChannel}
	}

	b := &Bot{
		Cfg:         cfg,
		DB:          database,
		Speaker:     speaker,
		Navmap:      nav,
		Weather:     wx,
		AI:          ai,
		Personality: pers,
		Sched:       sched.New(nil),
		channelCtl:  chanCtl,
	}

	mgr := chat.NewManager(cfg.TwitchBotUsername, cfg.TwitchChannel, cfg.CommandPrefix, cfg.TriggerWords, cfg.IgnoreList)
	mgr.Personality = pers
	mgr.Speaker = speaker
	mgr.Responder = &aiResponder{
		db:          database,
		ai:          ai,
		personality: pers,
		systemRole:  cfg.BotPersonality,
	}
	b.Chat = mgr

	deps := command.Deps{
		Messenger:   mgr,
		TTS:         speaker,
		Sim:         nav,
		Personality: pers,
		Facts:       &factSource{ai: ai},
	}
	if wx != nil {
		deps.Metar = wx
	}
	if chanCtl != nil {
		deps.Channel = chanCtl
	}
	if database != nil {
		deps.Alerts = &alertStore{db: database}
		deps.Audit = b.auditCommand
	}
	b.Commands = command.NewRegistry(cfg.CommandPrefix, deps, &command.FileStore{Path: cfg.CommandDataPath})
	mgr.Dispatcher = b.Commands

	b.registerTasks()
	return b
}

// Run connects to Twitch chat and blocks until ctx is cancelled or the
// connection fails. Background workers are started first so queued chat
// activity is handled from the first message on.
func (b *Bot) Run(ctx context.Context) error {
	client := twitchirc.NewClient(b.Cfg.TwitchBotUsername, b.Cfg.TwitchOAuthToken)
	b.IRC = client
	b.Chat.Sender = client

	client.OnPrivateMessage(func(m twitchirc.PrivateMessage) {
		b.Chat.Enqueue(mapMessage(m, b.Cfg.TwitchBotUsername))
	})
	client.OnConnect(func() {
		slog.Info("connected to twitch chat", slog.String("channel", b.Cfg.TwitchChannel))
		b.Chat.Send(b.Cfg.TwitchChannel, startupMessage, true)
	})
	client.Join(b.Cfg.TwitchChannel)

	go b.Speaker.Run(ctx)
	go b.Chat.Run(ctx)
	b.Sched.Start(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- client.Connect()
	}()

	var err error
	select {
	case <-ctx.Done():
		if derr := client.Disconnect(); derr != nil {
			slog.Warn("twitch disconnect", slog.Any("error", derr))
		}
		<-errCh
	case err = <-errCh:
	}

	b.Sched.Wait()
	if serr := b.Personality.SaveState(); serr != nil {
		slog.Warn("failed to save personality state", slog.Any("error", serr))
	}
	return err
}

// mapMessage converts an IRC message to the pipeline's message type.
// Broadcaster implies moderator privileges downstream.
func mapMessage(m twitchirc.PrivateMessage, botName string) *chat.Message {
	receivedAt := m.Time
	if receivedAt.IsZero() {
		receivedAt = time.Now().UTC()
	}
	return &chat.Message{
		ID:            m.ID,
		Channel:       strings.ToLower(m.Channel),
		Username:      strings.ToLower(m.User.Name),
		DisplayName:   m.User.DisplayName,
		Content:       m.Message,
		IsBroadcaster: m.User.Badges["broadcaster"] > 0,
		IsMod:         m.User.Badges["moderator"] > 0,
		IsVIP:         m.User.Badges["vip"] > 0,
		IsSubscriber:  m.User.Badges["subscriber"] > 0 || m.User.Badges["founder"] > 0,
		Echo:          strings.EqualFold(m.User.Name, botName),
		ReceivedAt:    receivedAt,
	}
}
