package bot

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/grab-your-parachutes/overlord-bot/chat"
	"github.com/grab-your-parachutes/overlord-bot/db"
	"github.com/grab-your-parachutes/overlord-bot/telemetry"
)

// alertStore backs the alert commands with the alerts table.
type alertStore struct {
	db *sql.DB
}

func (s *alertStore) Save(ctx context.Context, name, message, createdBy string) error {
	return db.UpsertAlert(ctx, s.db, name, message, createdBy)
}

func (s *alertStore) Get(ctx context.Context, name string) (string, bool, error) {
	msg, err := db.GetAlert(ctx, s.db, name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return msg, true, nil
}

// auditCommand records every dispatched command in the command_log table.
func (b *Bot) auditCommand(ctx context.Context, msg *chat.Message, name, args string) {
	if err := db.LogCommand(ctx, b.DB, msg.Channel, msg.Username, name, args); err != nil {
		telemetry.LoggerWithCorr(ctx).Warn("command audit failed", slog.Any("error", err))
	}
}
