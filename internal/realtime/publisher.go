package realtime

import (
	"context"
	"encoding/json"
	"fmt"
)

type channelPublisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// Publisher pushes messages onto the shared Redis channel.
type Publisher struct {
	redis   channelPublisher
	channel string
}

func NewPublisher(redis channelPublisher, channel string) (*Publisher, error) {
	if redis == nil {
		return nil, fmt.Errorf("redis publisher required")
	}
	if channel == "" {
		return nil, fmt.Errorf("realtime channel required")
	}
	return &Publisher{redis: redis, channel: channel}, nil
}

func (p *Publisher) Publish(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode realtime message: %w", err)
	}
	return p.redis.Publish(ctx, p.channel, body)
}
