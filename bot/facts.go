package bot

import (
	"context"
	"fmt"

	"github.com/grab-your-parachutes/overlord-bot/openai"
)

// factSource generates aviation trivia through the chat completion API.
type factSource struct {
	ai *openai.Client
}

func (f *factSource) AviationFact(ctx context.Context) (string, error) {
	messages := []openai.Message{
		{Role: "system", Content: "You are an AI Overlord supervising a flight simulation stream. Respond in character: authoritative, dry, slightly menacing."},
		{Role: "user", Content: "Share one interesting aviation or flight simulation fact in two sentences or fewer. Start with 'ATTENTION:'."},
	}
	return f.ai.Complete(ctx, messages)
}

func (f *factSource) LocationFact(ctx context.Context, lat, lon float64) (string, error) {
	messages := []openai.Message{
		{Role: "system", Content: "You are an AI Overlord supervising a flight simulation stream. Respond in character: authoritative, dry, slightly menacing."},
		{Role: "user", Content: fmt.Sprintf(
			"Our aircraft is at latitude %.4f, longitude %.4f. Share one interesting fact about the region below in two sentences or fewer. Start with 'GEOGRAPHIC ADVISORY:'.", lat, lon)},
	}
	return f.ai.Complete(ctx, messages)
}
