package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/disgoorg/disgo/discord"

	"github.com/wchill/MrProgDiscordBot/mrprog"
	"github.com/wchill/MrProgDiscordBot/mrprog/broker"
	"github.com/wchill/MrProgDiscordBot/mrprog/trade"
)

// TradeNotifier consumes broker callbacks and turns them into Discord
// messages: room codes go to the requester as a DM, everything else goes
// to the channel the request came from. Successful trades are recorded in
// the stats store.
type TradeNotifier struct {
	b *mrprog.Bot
}

func NewTradeNotifier(b *mrprog.Bot) *TradeNotifier {
	return &TradeNotifier{b: b}
}

// Callbacks adapts the notifier to the broker's callback interface.
func (n *TradeNotifier) Callbacks() broker.Callbacks {
	return broker.Callbacks{
		OnRoomReady:   n.onRoomReady,
		OnTradeUpdate: n.onTradeUpdate,
	}
}

func (n *TradeNotifier) onRoomReady(response *trade.Response) {
	request := response.Request
	if request == nil {
		return
	}

	dm, err := n.b.Client.Rest().CreateDMChannel(request.UserID)
	if err == nil {
		_, err = n.b.Client.Rest().CreateMessage(dm.ID(), discord.NewMessageCreateBuilder().
			SetContentf("Your `%s` is ready! You have 3 minutes to join before the trade is cancelled.", request.Item).
			SetFiles(discord.NewFile("roomcode.png", "", bytes.NewReader(response.Image))).
			Build())
	}
	if err != nil {
		slog.Warn("Failed to DM room code, falling back to channel",
			slog.String("type", "cmd"),
			slog.String("user_id", request.UserID.String()),
			slog.Any("error", err))
		_, err = n.b.Client.Rest().CreateMessage(request.ChannelID, discord.NewMessageCreateBuilder().
			SetContentf("%s <@%d>: I am unable to send DMs to you. "+
				"Please enable DMs so I can send you the trade code. Skipping trade.", EmoteError, request.UserID).
			Build())
		if err != nil {
			slog.Error("Failed to deliver room code",
				slog.String("type", "cmd"),
				slog.String("user_id", request.UserID.String()),
				slog.Any("error", err))
		}
	}
}

func (n *TradeNotifier) onTradeUpdate(response *trade.Response) {
	request := response.Request
	if request == nil {
		return
	}

	if response.Message != "" || response.Embed != nil || len(response.Image) > 0 {
		builder := discord.NewMessageCreateBuilder()

		if response.Message != "" {
			emote := EmoteError
			if response.Status == trade.StatusSuccess {
				emote = EmoteOK
			}
			content := fmt.Sprintf("%s <@%d>: %s", emote, request.UserID, response.Message)
			if response.Status == trade.StatusFailure || response.Status == trade.StatusCriticalFailure {
				content += fmt.Sprintf("\nRestarting worker and retrying trade. (Worker id %s)", response.WorkerID)
			}
			builder.SetContent(content)
		}
		if response.Embed != nil {
			if embed, err := embedFromPayload(response.Embed); err == nil {
				builder.SetEmbeds(embed)
			}
		}
		if len(response.Image) > 0 {
			builder.SetFiles(discord.NewFile("image.png", "", bytes.NewReader(response.Image)))
		}

		if _, err := n.b.Client.Rest().CreateMessage(request.ChannelID, builder.Build()); err != nil {
			slog.Warn("Failed to post trade update",
				slog.String("type", "cmd"),
				slog.String("channel_id", request.ChannelID.String()),
				slog.Any("error", err))
		}
	}

	if response.Status == trade.StatusSuccess {
		if err := n.b.Stats.RecordTrade(request.UserID, request.Item); err != nil {
			slog.Warn("Failed to persist trade stats",
				slog.String("type", "stats"),
				slog.Any("error", err))
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := n.b.RefreshPresence(ctx); err != nil {
			slog.Debug("Failed to refresh presence", slog.Any("error", err))
		}
	}
}

// embedFromPayload converts the worker-supplied display payload into a
// typed embed. Workers send embeds in Discord's own JSON shape.
func embedFromPayload(payload map[string]any) (discord.Embed, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return discord.Embed{}, err
	}
	var embed discord.Embed
	if err := json.Unmarshal(raw, &embed); err != nil {
		return discord.Embed{}, err
	}
	return embed, nil
}
