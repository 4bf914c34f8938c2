package commands

import (
	"context"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"

	"github.com/wchill/MrProgDiscordBot/mrprog"
	"github.com/wchill/MrProgDiscordBot/mrprog/handlers"
	"github.com/wchill/MrProgDiscordBot/mrprog/trade"
)

func onOff(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}

// ClearQueueHandler purges every pending request from the work queues and the
// local cache. Trades already in progress are left alone.
func ClearQueueHandler(b *mrprog.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		removed, err := b.Broker.ClearQueue(ctx)
		if err != nil {
			return e.CreateMessage(discord.NewMessageCreateBuilder().
				SetContentf("%s Failed to clear the queue: %s", handlers.EmoteError, err).
				SetEphemeral(true).
				Build())
		}
		return e.CreateMessage(discord.NewMessageCreateBuilder().
			SetContentf("%s Cleared %d pending request(s).", handlers.EmoteOK, removed).
			Build())
	}
}

// ToggleGameHandler flips the retained per-game enable flag. Workers serving
// that game observe the flag change and pause between trades.
func ToggleGameHandler(b *mrprog.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		data := e.SlashCommandInteractionData()
		platform := trade.Platform(data.String("platform"))
		game := data.Int("game")
		state := data.Bool("state")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if !trade.IsSupported(platform, game) {
			return e.CreateMessage(discord.NewMessageCreateBuilder().
				SetContentf("%s BN%d is not supported on %s.", handlers.EmoteError, game, platform).
				SetEphemeral(true).
				Build())
		}
		if err := b.Broker.SetGameEnabled(ctx, platform, game, state); err != nil {
			return e.CreateMessage(discord.NewMessageCreateBuilder().
				SetContentf("%s Failed to update %s BN%d: %s", handlers.EmoteError, platform, game, err).
				SetEphemeral(true).
				Build())
		}
		return e.CreateMessage(discord.NewMessageCreateBuilder().
			SetContentf("%s Trading for %s BN%d is now %s.", handlers.EmoteOK, platform, game, onOff(state)).
			Build())
	}
}

// ToggleWorkerHandler flips the retained enable flag for a single worker.
func ToggleWorkerHandler(b *mrprog.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		data := e.SlashCommandInteractionData()
		workerID := data.String("worker_id")
		state := data.Bool("state")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if _, ok := b.Registry.Get(workerID); !ok {
			return e.CreateMessage(discord.NewMessageCreateBuilder().
				SetContentf("%s Unknown worker `%s`.", handlers.EmoteError, workerID).
				SetEphemeral(true).
				Build())
		}
		if err := b.Broker.SetWorkerEnabled(ctx, workerID, state); err != nil {
			return e.CreateMessage(discord.NewMessageCreateBuilder().
				SetContentf("%s Failed to update worker `%s`: %s", handlers.EmoteError, workerID, err).
				SetEphemeral(true).
				Build())
		}
		return e.CreateMessage(discord.NewMessageCreateBuilder().
			SetContentf("%s Worker `%s` is now %s.", handlers.EmoteOK, workerID, onOff(state)).
			Build())
	}
}

// ToggleBotHandler flips the retained global enable flag.
func ToggleBotHandler(b *mrprog.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		state := e.SlashCommandInteractionData().Bool("state")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := b.Broker.SetBotEnabled(ctx, state); err != nil {
			return e.CreateMessage(discord.NewMessageCreateBuilder().
				SetContentf("%s Failed to update the global switch: %s", handlers.EmoteError, err).
				SetEphemeral(true).
				Build())
		}
		return e.CreateMessage(discord.NewMessageCreateBuilder().
			SetContentf("%s Trade processing is now %s globally.", handlers.EmoteOK, onOff(state)).
			Build())
	}
}
