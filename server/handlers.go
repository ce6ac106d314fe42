package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/grab-your-parachutes/overlord-bot/bot"
	"github.com/grab-your-parachutes/overlord-bot/navmap"
	"github.com/grab-your-parachutes/overlord-bot/telemetry"
)

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	bot       *bot.Bot
	startedAt time.Time
}

// NewHandlers creates the handler set.
func NewHandlers(b *bot.Bot) *Handlers {
	return &Handlers{bot: b, startedAt: time.Now()}
}

// HandleHealthz responds to liveness probes. The process being up is enough.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HandleReadyz responds to readiness probes with per-dependency checks.
func (h *Handlers) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	checks := []struct {
		name string
		fn   func() error
	}{
		{"database", func() error {
			if h.bot.DB == nil {
				return nil
			}
			return h.bot.DB.PingContext(r.Context())
		}},
		{"chat_queue", func() error {
			if depth := h.bot.Chat.QueueDepth(); depth > 200 {
				return fmt.Errorf("ingestion queue backed up: %d pending", depth)
			}
			return nil
		}},
	}

	type result struct {
		Name  string `json:"name"`
		OK    bool   `json:"ok"`
		Error string `json:"error,omitempty"`
	}
	results := make([]result, 0, len(checks))
	ready := true
	for _, c := range checks {
		res := result{Name: c.name, OK: true}
		if err := c.fn(); err != nil {
			res.OK = false
			res.Error = err.Error()
			ready = false
		}
		results = append(results, res)
	}

	w.Header().Set("Content-Type", "application/json")
	if !ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"ready": ready, "checks": results})
}

// HandleStatus reports chat, command, TTS and simulator state as JSON.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	chatMetrics := h.bot.Chat.Snapshot()
	totalUses, mostUsed, customCount, aliasCount := h.bot.Commands.Stats()
	ttsStatus := h.bot.Speaker.Status()

	simActive := false
	simPhase := navmap.PhaseUnknown
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if info, err := h.bot.Navmap.SimInfo(ctx); err == nil && info.Active {
		simActive = true
		simPhase = navmap.FlightPhase(info)
	} else if err != nil {
		telemetry.LoggerWithCorr(r.Context()).Debug("status sim poll failed", slog.Any("error", err))
	}

	payload := map[string]any{
		"uptime_seconds": int(time.Since(h.startedAt).Seconds()),
		"chat": map[string]any{
			"total_messages":     chatMetrics.TotalMessages,
			"commands_processed": chatMetrics.CommandsProcessed,
			"bot_mentions":       chatMetrics.BotMentions,
			"errors":             chatMetrics.Errors,
			"active_users":       chatMetrics.ActiveUsers,
			"queue_depth":        h.bot.Chat.QueueDepth(),
		},
		"commands": map[string]any{
			"total_uses":      totalUses,
			"most_used":       mostUsed,
			"custom_commands": customCount,
			"aliases":         aliasCount,
		},
		"tts": map[string]any{
			"enabled":    ttsStatus.Enabled,
			"connected":  ttsStatus.Connected,
			"queue_size": ttsStatus.QueueSize,
			"voice":      ttsStatus.Settings.Voice,
		},
		"simulator": map[string]any{
			"active": simActive,
			"phase":  simPhase,
		},
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
