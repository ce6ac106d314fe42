// Package chat implements the message pipeline: filtering, spam detection,
// outbound rate limiting, user state tracking, the response cache, and the
// ingestion queue feeding command dispatch and mention handling.
package chat

import "time"

// Message is a normalized inbound chat message.
type Message struct {
	ID            string
	Channel       string
	Username      string
	DisplayName   string
	Content       string
	IsBroadcaster bool
	IsMod         bool
	IsVIP         bool
	IsSubscriber  bool
	Echo          bool // sent by the bot itself
	ReceivedAt    time.Time
}
