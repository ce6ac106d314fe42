package bot

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/grab-your-parachutes/overlord-bot/db"
	"github.com/grab-your-parachutes/overlord-bot/openai"
	"github.com/grab-your-parachutes/overlord-bot/personality"
	"github.com/grab-your-parachutes/overlord-bot/telemetry"
)

const historyDepth = 10

// aiResponder answers bot mentions through the chat completion API,
// threading recent per-channel conversation history into the prompt.
type aiResponder struct {
	db          *sql.DB
	ai          *openai.Client
	personality *personality.Manager
	systemRole  string
}

func (r *aiResponder) Reply(ctx context.Context, channel, username, prompt string) (string, error) {
	system := r.systemRole
	if r.personality != nil {
		system = fmt.Sprintf("%s Address %s as %q when it fits naturally. Keep replies under 400 characters.",
			system, username, r.personality.UserTitle(username))
	}
	messages := []openai.Message{{Role: "system", Content: system}}

	if r.db != nil {
		history, err := db.ConversationHistory(ctx, r.db, channel, historyDepth)
		if err != nil {
			telemetry.LoggerWithCorr(ctx).Warn("conversation history load failed", slog.Any("error", err))
		} else {
			for _, e := range history {
				messages = append(messages, openai.Message{Role: e.Role, Content: e.Content})
			}
		}
	}
	messages = append(messages, openai.Message{Role: "user", Content: fmt.Sprintf("%s: %s", username, prompt)})

	var response string
	var err error
	telemetry.TimeFunc(telemetry.AICompletionDuration, func() {
		response, err = r.ai.Complete(ctx, messages)
	})
	if err != nil {
		return "", err
	}

	if r.db != nil {
		if err := db.SaveConversation(ctx, r.db, channel, username, "user", prompt); err != nil {
			telemetry.LoggerWithCorr(ctx).Warn("conversation save failed", slog.Any("error", err))
		}
		if err := db.SaveConversation(ctx, r.db, channel, username, "assistant", response); err != nil {
			telemetry.LoggerWithCorr(ctx).Warn("conversation save failed", slog.Any("error", err))
		}
	}
	if r.personality != nil {
		r.personality.AddLoyalty(username, 1)
		response = r.personality.Format(response)
	}
	return response, nil
}
