package commands

import (
	"context"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"

	"github.com/wchill/MrProgDiscordBot/mrprog"
	"github.com/wchill/MrProgDiscordBot/mrprog/handlers"
)

// QueueHandler shows the caller an ephemeral snapshot of pending trades.
func QueueHandler(b *mrprog.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		user := e.User()
		return e.CreateMessage(discord.MessageCreate{
			Embeds: []discord.Embed{handlers.QueueEmbed(b, &user)},
			Flags:  discord.MessageFlagEphemeral,
		})
	}
}

// CancelHandler removes the caller's pending request from the queue. A trade
// that a worker already picked up cannot be cancelled.
func CancelHandler(b *mrprog.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		removed, err := b.Broker.Cancel(ctx, e.User().ID)
		if err != nil {
			return e.CreateMessage(discord.NewMessageCreateBuilder().
				SetContentf("%s Failed to cancel your request: %s", handlers.EmoteError, err).
				SetEphemeral(true).
				Build())
		}
		if !removed {
			return e.CreateMessage(discord.NewMessageCreateBuilder().
				SetContentf("%s You have no pending request, or it is already in progress.", handlers.EmoteWarning).
				SetEphemeral(true).
				Build())
		}
		return e.CreateMessage(discord.NewMessageCreateBuilder().
			SetContentf("%s Your trade request has been cancelled.", handlers.EmoteOK).
			Build())
	}
}
