package bot

import (
	"context"
	"sync"
	"time"

	"github.com/grab-your-parachutes/overlord-bot/twitchapi"
)

// channelControl adapts the Helix client to the command registry's channel
// operations, resolving and caching the broadcaster id on first use.
type channelControl struct {
	helix *twitchapi.HelixClient
	login string

	mu            sync.Mutex
	broadcasterID string
}

func (c *channelControl) id(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.broadcasterID != "" {
		return c.broadcasterID, nil
	}
	id, err := c.helix.GetUserID(ctx, c.login)
	if err != nil {
		return "", err
	}
	c.broadcasterID = id
	return id, nil
}

func (c *channelControl) Info(ctx context.Context) (game, title string, err error) {
	id, err := c.id(ctx)
	if err != nil {
		return "", "", err
	}
	info, err := c.helix.GetChannelInfo(ctx, id)
	if err != nil {
		return "", "", err
	}
	return info.GameName, info.Title, nil
}

func (c *channelControl) Uptime(ctx context.Context) (time.Duration, bool, error) {
	id, err := c.id(ctx)
	if err != nil {
		return 0, false, err
	}
	stream, err := c.helix.GetStream(ctx, id)
	if err != nil {
		return 0, false, err
	}
	if stream == nil {
		return 0, false, nil
	}
	return time.Since(stream.StartedAt), true, nil
}
