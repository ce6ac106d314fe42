package command

import (
	"context"
	"log/slog"
	"strings"

	"github.com/grab-your-parachutes/overlord-bot/chat"
	"github.com/grab-your-parachutes/overlord-bot/telemetry"
)

// runCustom substitutes variables into a stored response and sends it.
func (r *Registry) runCustom(ctx context.Context, msg *chat.Message, response string) {
	processed := r.substituteVariables(ctx, response, msg)
	r.send(msg.Channel, r.Deps.Personality.Format(processed), false)
}

// substituteVariables expands {user}, {channel}, {uptime}, {game} and
// {title} in custom command responses.
func (r *Registry) substituteVariables(ctx context.Context, text string, msg *chat.Message) string {
	game, title := "Unknown", "Unknown"
	if r.Deps.Channel != nil && (strings.Contains(text, "{game}") || strings.Contains(text, "{title}")) {
		g, t, err := r.Deps.Channel.Info(ctx)
		if err != nil {
			telemetry.LoggerWithCorr(ctx).Warn("channel info lookup failed", slog.Any("error", err))
		} else {
			game, title = g, t
		}
	}
	rep := strings.NewReplacer(
		"{user}", msg.Username,
		"{channel}", msg.Channel,
		"{uptime}", r.uptimeString(ctx),
		"{game}", game,
		"{title}", title,
	)
	return rep.Replace(text)
}

// AddCustom stores a custom command. Builtin names cannot be shadowed.
func (r *Registry) AddCustom(name, response string) error {
	name = strings.ToLower(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.builtins[name]; ok {
		return errBuiltinCollision
	}
	r.customs[name] = response
	return r.persistLocked()
}

// EditCustom replaces a custom command's response.
func (r *Registry) EditCustom(name, response string) error {
	name = strings.ToLower(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.customs[name]; !ok {
		return errNotFound
	}
	r.customs[name] = response
	return r.persistLocked()
}

// DeleteCustom removes a custom command.
func (r *Registry) DeleteCustom(name string) error {
	name = strings.ToLower(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.customs[name]; !ok {
		return errNotFound
	}
	delete(r.customs, name)
	return r.persistLocked()
}

// AddAlias points a new name at an existing builtin or custom command.
func (r *Registry) AddAlias(alias, target string) error {
	alias = strings.ToLower(alias)
	target = strings.ToLower(target)
	r.mu.Lock()
	defer r.mu.Unlock()
	_, isBuiltin := r.builtins[target]
	_, isCustom := r.customs[target]
	if !isBuiltin && !isCustom {
		return errNotFound
	}
	r.aliases[alias] = target
	return r.persistLocked()
}

// Custom returns a custom command's response.
func (r *Registry) Custom(name string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	resp, ok := r.customs[strings.ToLower(name)]
	return resp, ok
}

func (r *Registry) persistLocked() error {
	if r.store == nil {
		return nil
	}
	return r.store.Save(r.customs, r.aliases)
}
