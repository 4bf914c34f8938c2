package commands

import (
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/sahilm/fuzzy"

	"github.com/wchill/MrProgDiscordBot/mrprog"
	"github.com/wchill/MrProgDiscordBot/mrprog/handlers"
)

// ListWorkersHandler shows every known worker and its current state.
func ListWorkersHandler(b *mrprog.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		return e.CreateMessage(discord.MessageCreate{
			Embeds: []discord.Embed{handlers.WorkerEmbed(b)},
		})
	}
}

// WorkerStatusHandler shows the detailed status of a single worker.
func WorkerStatusHandler(b *mrprog.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		workerID := e.SlashCommandInteractionData().String("worker_id")
		worker, ok := b.Registry.Get(workerID)
		if !ok {
			return e.CreateMessage(discord.NewMessageCreateBuilder().
				SetContentf("%s Unknown worker `%s`.", handlers.EmoteError, workerID).
				SetEphemeral(true).
				Build())
		}
		return e.CreateMessage(discord.MessageCreate{
			Embeds: []discord.Embed{handlers.WorkerStatusEmbed(worker)},
		})
	}
}

// WorkerAutocompleteHandler fuzzy-matches worker ids as the user types.
func WorkerAutocompleteHandler(b *mrprog.Bot) handler.AutocompleteHandler {
	return func(e *handler.AutocompleteEvent) error {
		input := e.Data.String("worker_id")
		ids := b.Registry.IDs()

		var choices []discord.AutocompleteChoice
		if input == "" {
			for _, id := range ids {
				choices = append(choices, discord.AutocompleteChoiceString{Name: id, Value: id})
			}
		} else {
			for _, match := range fuzzy.Find(input, ids) {
				choices = append(choices, discord.AutocompleteChoiceString{Name: match.Str, Value: match.Str})
			}
		}
		if len(choices) > 25 {
			choices = choices[:25]
		}
		return e.AutocompleteResult(choices)
	}
}
