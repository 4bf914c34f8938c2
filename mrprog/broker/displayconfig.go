package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/disgoorg/snowflake/v2"

	"github.com/wchill/MrProgDiscordBot/mrprog/statechannel"
)

// DisplayConfig is the small retained configuration blob identifying the
// status-board messages the front-end keeps edited in place. Read on
// startup, republished whenever the front-end creates a new message.
type DisplayConfig struct {
	StatusChannelID snowflake.ID `json:"status_channel"`
	QueueMessageID  snowflake.ID `json:"queue_message_id,omitempty"`
	WorkerMessageID snowflake.ID `json:"worker_message_id,omitempty"`
}

// DisplayConfig waits for the retained bot/config value and parses it.
func (b *Broker) DisplayConfig(ctx context.Context) (*DisplayConfig, error) {
	raw, err := b.sc.WaitForValue(ctx, statechannel.TopicBotConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to read bot config: %w", err)
	}
	var cfg DisplayConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse bot config: %w", err)
	}
	return &cfg, nil
}

// SaveDisplayConfig republishes the retained bot/config value.
func (b *Broker) SaveDisplayConfig(ctx context.Context, cfg *DisplayConfig) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode bot config: %w", err)
	}
	return b.sc.PublishRetained(ctx, statechannel.TopicBotConfig, raw)
}
